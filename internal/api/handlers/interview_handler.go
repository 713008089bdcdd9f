package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/interview-agent/backend/internal/interview"
	"github.com/interview-agent/backend/internal/plan"
	"github.com/interview-agent/backend/internal/session"
	"github.com/interview-agent/backend/internal/storage/sqlite"
	"github.com/interview-agent/backend/pkg/logger"
)

type InterviewHandler struct {
	orchestrator *interview.Orchestrator
	archive      *sqlite.Client
}

func NewInterviewHandler(orchestrator *interview.Orchestrator, archive *sqlite.Client) *InterviewHandler {
	return &InterviewHandler{
		orchestrator: orchestrator,
		archive:      archive,
	}
}

func (h *InterviewHandler) StartInterview(c *fiber.Ctx) error {
	var req struct {
		Role      string   `json:"role"`
		Seniority string   `json:"seniority"`
		Skills    []string `json:"skills"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.orchestrator.StartInterview(c.Context(), req.Role, req.Seniority, req.Skills)
	if err != nil {
		if errors.Is(err, plan.ErrContractViolation) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to start interview", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Failed to start interview, please try again",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *InterviewHandler) SubmitAnswer(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	var req struct {
		Answer string `json:"answer"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Answer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Answer is required",
		})
	}

	result, err := h.orchestrator.HandleTurn(c.Context(), sessionID, req.Answer)
	if err != nil {
		return h.turnError(c, sessionID, err)
	}

	return c.JSON(result)
}

func (h *InterviewHandler) CompleteInterview(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	card, err := h.orchestrator.Complete(c.Context(), sessionID)
	if err != nil {
		return h.turnError(c, sessionID, err)
	}

	return c.JSON(card)
}

// GetInterview serves the live summary while the session is active and falls
// back to the archived record once the live keys are gone.
func (h *InterviewHandler) GetInterview(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	summary, err := h.orchestrator.Summary(c.Context(), sessionID)
	if err == nil {
		return c.JSON(fiber.Map{
			"live":    true,
			"session": summary,
		})
	}
	if !errors.Is(err, session.ErrNotFound) {
		logger.Error("Failed to load session summary", zap.String("session_id", sessionID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load session",
		})
	}

	record, err := h.archive.GetSession(c.Context(), sessionID)
	if errors.Is(err, sqlite.ErrNoRecord) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}
	if err != nil {
		logger.Error("Failed to load archived session", zap.String("session_id", sessionID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load session",
		})
	}

	resp := fiber.Map{
		"live": false,
		"session": fiber.Map{
			"session_id": record.SessionID,
			"role":       record.Role,
			"seniority":  record.Seniority,
			"archetype":  record.Archetype,
			"status":     record.Status,
			"created_at": record.CreatedAt,
		},
	}

	if card, err := h.archive.GetScorecard(c.Context(), sessionID); err == nil {
		resp["scorecard"] = card
	}

	return c.JSON(resp)
}

func (h *InterviewHandler) turnError(c *fiber.Ctx, sessionID string, err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found or expired",
		})
	case errors.Is(err, session.ErrTurnInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Another turn is already being processed for this session",
		})
	case errors.Is(err, interview.ErrStateInconsistency):
		logger.Error("Session state inconsistent", zap.String("session_id", sessionID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Session state is corrupted",
		})
	default:
		logger.Error("Failed to process turn", zap.String("session_id", sessionID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process turn",
		})
	}
}
