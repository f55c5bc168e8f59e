package middleware

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidationApp(config ...ValidationConfig) *fiber.App {
	app := fiber.New()
	app.Use(RequestValidation(config...))
	app.All("/test", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestRequestValidation_AllowedMethods(t *testing.T) {
	app := newValidationApp()

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodDelete, "/test", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRequestValidation_InvalidJSONRejected(t *testing.T) {
	app := newValidationApp()

	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"broken`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRequestValidation_ValidJSONPasses(t *testing.T) {
	app := newValidationApp()

	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"key":"value"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequestValidation_MultipartPassesThrough(t *testing.T) {
	app := newValidationApp()

	// A multipart body is binary and must not be syntax-checked as JSON
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", "report.zip")
	require.NoError(t, err)
	_, err = fw.Write([]byte{0x50, 0x4b, 0x03, 0x04, 0xff, 0xfe})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/test", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequestValidation_BodyTooLarge(t *testing.T) {
	app := newValidationApp(ValidationConfig{
		MaxBodySize:    16,
		AllowedMethods: []string{fiber.MethodPost},
	})

	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", 64)))
	req.Header.Set("Content-Type", "text/plain")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestContentTypeValidation(t *testing.T) {
	app := fiber.New()
	app.Use(ContentTypeValidation([]string{"multipart/form-data"}))
	app.All("/test", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	// GET requests are not checked
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// POST without Content-Type is rejected
	req = httptest.NewRequest(http.MethodPost, "/test", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// POST with wrong Content-Type is rejected
	req = httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)

	// POST with matching Content-Type passes
	req = httptest.NewRequest(http.MethodPost, "/test",
		strings.NewReader("--x\r\nContent-Disposition: form-data; name=\"f\"\r\n\r\ndata\r\n--x--\r\n"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
