package ai

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/xuebang/xuebang-api/services"
	"github.com/xuebang/xuebang-api/utils/middleware"
	"github.com/xuebang/xuebang-api/utils/response"
)

// GenerateQuestion handles POST /api/ai/generate-question (multipart)
func (h *AIHandler) GenerateQuestion(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	filename, content, err := readUpload(c)
	if err != nil {
		return pipelineError(c, err)
	}

	difficulty := c.FormValue("difficulty", "medium")
	count, _ := strconv.Atoi(c.FormValue("count", "5"))

	result, err := h.questions.Generate(c.Context(), userID, filename, content, difficulty, count)
	if err != nil {
		return pipelineError(c, err)
	}

	return response.Success(c, result)
}

// AnswerQuestionsRequest carries the question list to model-answer
type AnswerQuestionsRequest struct {
	Questions []services.SubmittedQuestion `json:"questions" validate:"required"`
}

// AnswerQuestions handles POST /api/ai/answer-questions
func (h *AIHandler) AnswerQuestions(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req AnswerQuestionsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if len(req.Questions) == 0 {
		return response.BadRequest(c, "Questions are required")
	}

	answers, err := h.questions.AnswerQuestions(c.Context(), userID, req.Questions)
	if err != nil {
		return pipelineError(c, err)
	}

	return response.Success(c, fiber.Map{"answers": answers})
}

// GenerateLecture handles POST /api/ai/generate-lecture (multipart)
func (h *AIHandler) GenerateLecture(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	filename, content, err := readUpload(c)
	if err != nil {
		return pipelineError(c, err)
	}

	lecture, err := h.lectures.Generate(c.Context(), userID, filename, content)
	if err != nil {
		return pipelineError(c, err)
	}

	return response.Success(c, fiber.Map{"lecture": lecture})
}
