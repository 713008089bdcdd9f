package validation

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{Logger: zap.NewNop()}))
	app.Post("/api/v1/interviews", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	app.Post("/api/v1/interviews/:id/answers", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestValidProfilePasses(t *testing.T) {
	resp := post(t, testApp(), "/api/v1/interviews",
		`{"role": "Backend Engineer", "seniority": "Senior", "skills": ["Go"]}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestMissingRoleRejected(t *testing.T) {
	resp := post(t, testApp(), "/api/v1/interviews", `{"seniority": "Senior"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMarkupInProfileRejected(t *testing.T) {
	resp := post(t, testApp(), "/api/v1/interviews",
		`{"role": "<script>alert(1)</script>", "seniority": "Senior"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestTooManySkillsRejected(t *testing.T) {
	skills := `"` + strings.Repeat(`x", "`, 25) + `x"`
	resp := post(t, testApp(), "/api/v1/interviews",
		`{"role": "Backend Engineer", "seniority": "Senior", "skills": [`+skills+`]}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestValidAnswerPasses(t *testing.T) {
	resp := post(t, testApp(), "/api/v1/interviews/abc/answers", `{"answer": "I would use channels."}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestEmptyAnswerRejected(t *testing.T) {
	resp := post(t, testApp(), "/api/v1/interviews/abc/answers", `{"answer": "   "}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestOversizedAnswerRejected(t *testing.T) {
	resp := post(t, testApp(), "/api/v1/interviews/abc/answers",
		`{"answer": "`+strings.Repeat("a", 20000)+`"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUnsupportedContentType(t *testing.T) {
	app := testApp()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/interviews", bytes.NewBufferString("role=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestInvalidJSONRejected(t *testing.T) {
	resp := post(t, testApp(), "/api/v1/interviews", `{"role": `)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
