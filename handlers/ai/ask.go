package ai

import (
	"github.com/gofiber/fiber/v2"
	"github.com/xuebang/xuebang-api/model"
	"github.com/xuebang/xuebang-api/services"
	"github.com/xuebang/xuebang-api/utils/middleware"
	"github.com/xuebang/xuebang-api/utils/response"
)

// AskRequest is one conversational turn
type AskRequest struct {
	Question  string `json:"question" validate:"required"`
	SessionID string `json:"session_id"`
}

// Ask handles POST /api/ai/ask
func (h *AIHandler) Ask(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Question == "" {
		return response.BadRequest(c, "Question is required")
	}

	result, err := h.ai.Ask(c.Context(), userID, req.SessionID, req.Question)
	if err != nil {
		return pipelineError(c, err)
	}

	return response.Success(c, result)
}

// CodeAssistRequest carries code plus an optional question
type CodeAssistRequest struct {
	Code      string `json:"code" validate:"required"`
	Question  string `json:"question"`
	Language  string `json:"language"`
	SessionID string `json:"session_id"`
}

// codeAssistResponseKeys names the JSON field each code-assist endpoint
// returns its text under.
var codeAssistResponseKeys = map[model.FeatureCode]string{
	model.FeatureProgrammingHelp: "response",
	model.FeatureCodeReview:      "review",
	model.FeatureCodeExplain:     "explanation",
	model.FeatureDebugHelp:       "debug_help",
}

// codeAssist builds a handler for one code-assist feature
func (h *AIHandler) codeAssist(feature model.FeatureCode) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			return response.Unauthorized(c, "")
		}

		var req CodeAssistRequest
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
		if req.Code == "" {
			return response.BadRequest(c, "Code is required")
		}

		result, err := h.ai.CodeAssist(c.Context(), userID, services.CodeAssistRequest{
			Feature:   feature,
			Code:      req.Code,
			Question:  req.Question,
			Language:  req.Language,
			SessionID: req.SessionID,
		})
		if err != nil {
			return pipelineError(c, err)
		}

		payload := fiber.Map{codeAssistResponseKeys[feature]: result.Answer}
		if result.SessionID != "" {
			payload["session_id"] = result.SessionID
		}
		return response.Success(c, payload)
	}
}

// ProgrammingHelp handles POST /api/ai/programming-help
func (h *AIHandler) ProgrammingHelp() fiber.Handler { return h.codeAssist(model.FeatureProgrammingHelp) }

// CodeReview handles POST /api/ai/code-review
func (h *AIHandler) CodeReview() fiber.Handler { return h.codeAssist(model.FeatureCodeReview) }

// CodeExplain handles POST /api/ai/code-explain
func (h *AIHandler) CodeExplain() fiber.Handler { return h.codeAssist(model.FeatureCodeExplain) }

// DebugHelp handles POST /api/ai/debug-help
func (h *AIHandler) DebugHelp() fiber.Handler { return h.codeAssist(model.FeatureDebugHelp) }
