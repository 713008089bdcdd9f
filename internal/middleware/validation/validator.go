package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var markupPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxAnswerLength     int
	MaxSkills           int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware validates interview request bodies before they reach the
// handlers: profile fields on session creation, answer shape and size on
// turn submission. Validated bodies are stashed in locals so handlers do not
// parse twice.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxAnswerLength == 0 {
		cfg.MaxAnswerLength = 10000
	}
	if cfg.MaxSkills == 0 {
		cfg.MaxSkills = 20
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}
		}

		path := c.Path()

		if c.Method() == "POST" && strings.HasSuffix(path, "/api/v1/interviews") {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			role, ok := req["role"].(string)
			if !ok || strings.TrimSpace(role) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Role is required and must be a string",
				})
			}
			seniority, ok := req["seniority"].(string)
			if !ok || strings.TrimSpace(seniority) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Seniority is required and must be a string",
				})
			}

			if containsMarkup(role) || containsMarkup(seniority) {
				cfg.Logger.Warn("Markup in profile fields",
					zap.String("ip", c.IP()),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid profile content",
				})
			}

			if skills, ok := req["skills"].([]interface{}); ok && len(skills) > cfg.MaxSkills {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Too many skills listed",
				})
			}

			req["role"] = sanitizeString(role)
			req["seniority"] = sanitizeString(seniority)
			c.Locals("validated_body", req)
		}

		if c.Method() == "POST" && strings.HasSuffix(path, "/answers") {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			answer, ok := req["answer"].(string)
			if !ok || strings.TrimSpace(answer) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Answer is required and must be a string",
				})
			}

			if len(answer) > cfg.MaxAnswerLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Answer exceeds maximum length",
				})
			}

			req["answer"] = sanitizeString(answer)
			c.Locals("validated_body", req)
		}

		return c.Next()
	}
}

func containsMarkup(input string) bool {
	return markupPattern.MatchString(input)
}

func sanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}
