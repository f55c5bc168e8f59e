package handlers

import (
	"errors"
	"io"

	"github.com/flakeboard/flakeboard-backend/models"
	"github.com/flakeboard/flakeboard-backend/parser"
	"github.com/flakeboard/flakeboard-backend/services"
	"github.com/flakeboard/flakeboard-backend/utils"
	"github.com/gofiber/fiber/v2"
)

// UploadHandler handles report archive upload endpoints
type UploadHandler struct {
	uploadService *services.UploadService
	maxUploadSize int64
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(uploadService *services.UploadService, maxUploadSizeMB int) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		maxUploadSize: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// UploadRun handles POST /api/runs/upload - ingests a report archive.
//
// The archive arrives as multipart field "file"; run metadata arrives as
// form fields. A duplicate upload answers 409 with the existing run's
// identity and success=true.
func (h *UploadHandler) UploadRun(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "MISSING_FILE",
			"Report archive file is required", map[string]string{
				"error": err.Error(),
			})
	}
	if fileHeader.Size > h.maxUploadSize {
		return utils.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			"Report archive exceeds the upload size limit", nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.InternalServerErrorResponse(c, "Failed to open uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return utils.InternalServerErrorResponse(c, "Failed to read uploaded file")
	}

	meta := models.UploadMetadata{
		Environment: c.FormValue("environment"),
		Trigger:     c.FormValue("trigger"),
		Suite:       c.FormValue("suite"),
		Branch:      c.FormValue("branch"),
		Commit:      c.FormValue("commit"),
		ContentHash: c.FormValue("content_hash"),
		FileName:    fileHeader.Filename,
	}

	// Validate metadata
	if err := utils.ValidateStruct(&meta); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "VALIDATION_ERROR",
			"Upload metadata validation failed", map[string]string{
				"error": err.Error(),
			})
	}

	result, err := h.uploadService.ProcessUpload(c.Context(), data, &meta)
	if err != nil {
		return uploadErrorResponse(c, err)
	}

	if result.IsDuplicate() {
		return utils.SuccessResponseWithStatus(c, fiber.StatusConflict,
			"Report content already stored", result)
	}

	return utils.SuccessResponseWithStatus(c, fiber.StatusCreated,
		"Report processed successfully", result)
}

// uploadErrorResponse maps pipeline failures to HTTP statuses: extraction
// and validation problems are the caller's fault, persistence failures
// are ours.
func uploadErrorResponse(c *fiber.Ctx, err error) error {
	var procErr *parser.ProcessingError
	if errors.As(err, &procErr) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, string(procErr.Code),
			procErr.Message, nil)
	}

	var persistErr *services.PersistenceError
	if errors.As(err, &persistErr) {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "PERSISTENCE_ERROR",
			"Failed to store processed report", map[string]string{
				"stage": persistErr.Stage,
			})
	}

	return utils.InternalServerErrorResponse(c, "Failed to process report upload")
}
