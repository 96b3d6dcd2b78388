package submit

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/xuebang/xuebang-api/config"
	"github.com/xuebang/xuebang-api/services"
	"github.com/xuebang/xuebang-api/services/extract"
	"github.com/xuebang/xuebang-api/services/llm"
	"github.com/xuebang/xuebang-api/utils/response"
)

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
	case errors.Is(err, extract.ErrTooLarge):
		return response.PayloadTooLarge(c, err.Error())
	case errors.Is(err, extract.ErrUnsupportedType),
		errors.Is(err, extract.ErrParseFailed),
		errors.Is(err, extract.ErrArchiveInvalid),
		errors.Is(err, extract.ErrEmptyContent):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrStudentNotFound),
		errors.Is(err, services.ErrQuestionNotFound):
		return response.NotFound(c, err.Error())
	}

	return response.InternalServerError(c, err.Error())
}

func readUpload(c *fiber.Ctx) (string, []byte, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", nil, errors.New("file is required")
	}
	if fileHeader.Size > int64(config.MaxUploadBytes) {
		return "", nil, extract.ErrTooLarge
	}

	f, err := fileHeader.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, int64(config.MaxUploadBytes)+1))
	if err != nil {
		return "", nil, err
	}
	if len(content) > config.MaxUploadBytes {
		return "", nil, extract.ErrTooLarge
	}

	return fileHeader.Filename, content, nil
}
