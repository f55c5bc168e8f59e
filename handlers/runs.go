package handlers

import (
	"errors"
	"strconv"

	"github.com/flakeboard/flakeboard-backend/models"
	"github.com/flakeboard/flakeboard-backend/services"
	"github.com/flakeboard/flakeboard-backend/utils"
	"github.com/gofiber/fiber/v2"
)

// RunsHandler handles stored run query endpoints
type RunsHandler struct {
	runs services.TestRunRepository
}

// NewRunsHandler creates a new runs handler instance
func NewRunsHandler(runs services.TestRunRepository) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// RunDetail is the payload for a single-run lookup.
type RunDetail struct {
	Run        *models.RunSummary       `json:"run"`
	Executions []models.ExecutionRecord `json:"executions"`
}

// ListRuns handles GET /api/runs - lists stored runs, most recent first
func (h *RunsHandler) ListRuns(c *fiber.Ctx) error {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}

	var projectID int64
	if raw := c.Query("project_id"); raw != "" {
		projectID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || projectID < 1 {
			return utils.BadRequestResponse(c, "project_id must be a positive integer", nil)
		}
	}

	total, err := h.runs.CountRuns(c.Context(), projectID)
	if err != nil {
		return utils.InternalServerErrorResponse(c, "Failed to count runs")
	}

	runs, err := h.runs.ListRuns(c.Context(), projectID, limit, (page-1)*limit)
	if err != nil {
		return utils.InternalServerErrorResponse(c, "Failed to list runs")
	}
	if runs == nil {
		runs = []models.RunSummary{}
	}

	return utils.PaginatedSuccessResponse(c, "Runs retrieved successfully", runs,
		utils.CreatePagination(page, limit, total))
}

// GetRun handles GET /api/runs/:runId - retrieves a run with its executions
func (h *RunsHandler) GetRun(c *fiber.Ctx) error {
	runID := c.Params("runId")
	if runID == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "MISSING_RUN_ID",
			"Run ID is required", nil)
	}

	run, err := h.runs.GetRun(c.Context(), runID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, "Run")
		}
		return utils.InternalServerErrorResponse(c, "Failed to get run")
	}

	executions, err := h.runs.GetExecutions(c.Context(), runID)
	if err != nil {
		return utils.InternalServerErrorResponse(c, "Failed to get run executions")
	}
	if executions == nil {
		executions = []models.ExecutionRecord{}
	}

	return utils.SuccessResponse(c, "Run retrieved successfully", RunDetail{
		Run:        run,
		Executions: executions,
	})
}
