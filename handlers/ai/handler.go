package ai

import (
	"errors"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/xuebang/xuebang-api/config"
	"github.com/xuebang/xuebang-api/services"
	"github.com/xuebang/xuebang-api/services/extract"
	"github.com/xuebang/xuebang-api/services/llm"
	"github.com/xuebang/xuebang-api/utils/response"
)

// AIHandler exposes the LLM task pipelines over HTTP
type AIHandler struct {
	ai        *services.AIService
	questions *services.QuestionService
	lectures  *services.LectureService
	videos    *services.VideoService
}

// NewAIHandler creates a new AI handler
func NewAIHandler(ai *services.AIService, questions *services.QuestionService, lectures *services.LectureService, videos *services.VideoService) *AIHandler {
	return &AIHandler{
		ai:        ai,
		questions: questions,
		lectures:  lectures,
		videos:    videos,
	}
}

// pipelineError maps service errors to HTTP responses shared by every
// pipeline endpoint.
func pipelineError(c *fiber.Ctx, err error) error {
	var denied *services.AccessDeniedError
	if errors.As(err, &denied) {
		if errors.Is(err, services.ErrQuotaExceeded) {
			return response.QuotaExceeded(c, denied.Message, denied.Remaining)
		}
		return response.NotEntitled(c, denied.Message)
	}

	switch {
	case errors.Is(err, llm.ErrUnavailable):
		return response.ServiceUnavailable(c, "AI服务暂时不可用，请稍后重试")
	case errors.Is(err, extract.ErrTooLarge), errors.Is(err, services.ErrVideoTooLarge):
		return response.PayloadTooLarge(c, err.Error())
	case errors.Is(err, extract.ErrUnsupportedType),
		errors.Is(err, extract.ErrParseFailed),
		errors.Is(err, extract.ErrArchiveInvalid),
		errors.Is(err, extract.ErrEmptyContent):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrConversationNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrStudentNotFound):
		return response.NotFound(c, err.Error())
	}

	return response.InternalServerError(c, err.Error())
}

// readUpload loads the "file" form field, enforcing the ingress size cap
func readUpload(c *fiber.Ctx) (string, []byte, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", nil, errors.New("file is required")
	}
	return readFileHeader(fileHeader, config.MaxUploadBytes)
}

func readFileHeader(fileHeader *multipart.FileHeader, maxBytes int) (string, []byte, error) {
	if fileHeader.Size > int64(maxBytes) {
		return "", nil, extract.ErrTooLarge
	}

	f, err := fileHeader.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)+1))
	if err != nil {
		return "", nil, err
	}
	if len(content) > maxBytes {
		return "", nil, extract.ErrTooLarge
	}

	return fileHeader.Filename, content, nil
}
