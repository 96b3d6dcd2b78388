package submit

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/xuebang/xuebang-api/services"
	"github.com/xuebang/xuebang-api/utils/middleware"
	"github.com/xuebang/xuebang-api/utils/response"
)

// SubmitHandler exposes assignment grading and answer scoring
type SubmitHandler struct {
	grading   *services.GradingService
	questions *services.QuestionService
}

// NewSubmitHandler creates a new submit handler
func NewSubmitHandler(grading *services.GradingService, questions *services.QuestionService) *SubmitHandler {
	return &SubmitHandler{
		grading:   grading,
		questions: questions,
	}
}

// GradeAssignment handles POST /api/submit (multipart). The model grades
// the upload and the saved Assignment is returned with 201.
func (h *SubmitHandler) GradeAssignment(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	studentID, err := strconv.ParseUint(c.FormValue("student_id"), 10, 32)
	if err != nil || studentID == 0 {
		return response.BadRequest(c, "student_id is required")
	}

	filename, content, err := readUpload(c)
	if err != nil {
		return pipelineError(c, err)
	}

	assignment, err := h.grading.Grade(c.Context(), userID, services.GradeRequest{
		StudentID: uint(studentID),
		Title:     c.FormValue("title"),
		Subject:   c.FormValue("subject"),
		Chapter:   c.FormValue("chapter"),
		Filename:  filename,
		Content:   content,
	})
	if err != nil {
		return pipelineError(c, err)
	}

	return response.Created(c, assignment)
}

// SubmitAnswersRequest carries a student's answers to generated questions
type SubmitAnswersRequest struct {
	StudentID *uint                        `json:"student_id,omitempty"`
	Answers   []services.SubmittedAnswer   `json:"answers" validate:"required"`
}

// SubmitAnswers handles POST /api/question/submit-answers
func (h *SubmitHandler) SubmitAnswers(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req SubmitAnswersRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if len(req.Answers) == 0 {
		return response.BadRequest(c, "Answers are required")
	}

	result, err := h.questions.SubmitAnswers(userID, req.StudentID, req.Answers)
	if err != nil {
		return pipelineError(c, err)
	}

	return response.Success(c, result)
}

// StudentScores handles GET /api/student/:id/scores
func (h *SubmitHandler) StudentScores(c *fiber.Ctx) error {
	studentID, err := c.ParamsInt("id")
	if err != nil || studentID <= 0 {
		return response.BadRequest(c, "Invalid student id")
	}

	scores, err := h.grading.StudentScores(uint(studentID))
	if err != nil {
		return pipelineError(c, err)
	}
	return response.Success(c, scores)
}
