package ai

import (
	"github.com/gofiber/fiber/v2"
	"github.com/xuebang/xuebang-api/config"
	"github.com/xuebang/xuebang-api/services"
	"github.com/xuebang/xuebang-api/utils/middleware"
	"github.com/xuebang/xuebang-api/utils/response"
)

// readVideoRequest accepts either a multipart "file" field or a "url" form
// value. Video uploads get the larger size cap since they are archived,
// never parsed.
func readVideoRequest(c *fiber.Ctx) (services.VideoRequest, error) {
	var req services.VideoRequest

	if fileHeader, err := c.FormFile("file"); err == nil {
		filename, content, err := readFileHeader(fileHeader, config.MaxVideoUploadBytes)
		if err != nil {
			return req, err
		}
		req.Filename = filename
		req.Content = content
		return req, nil
	}

	req.URL = c.FormValue("url")
	return req, nil
}

// VideoSummary handles POST /api/ai/video-summary
func (h *AIHandler) VideoSummary(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	req, err := readVideoRequest(c)
	if err != nil {
		return pipelineError(c, err)
	}
	if req.Filename == "" && req.URL == "" {
		return response.BadRequest(c, "Video file or url is required")
	}

	summary, err := h.videos.Summarize(c.Context(), userID, req)
	if err != nil {
		return pipelineError(c, err)
	}

	return response.Success(c, fiber.Map{"summary": summary})
}

// VideoToLecture handles POST /api/ai/video-to-lecture
func (h *AIHandler) VideoToLecture(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	videoReq, err := readVideoRequest(c)
	if err != nil {
		return pipelineError(c, err)
	}
	if videoReq.Filename == "" && videoReq.URL == "" {
		return response.BadRequest(c, "Video file or url is required")
	}

	note, err := h.videos.ToLecture(c.Context(), userID, services.LectureRequest{
		VideoRequest:  videoReq,
		Title:         c.FormValue("title"),
		CourseName:    c.FormValue("course_name"),
		WithExercises: c.FormValue("with_exercises") == "true",
	})
	if err != nil {
		return pipelineError(c, err)
	}

	return response.Success(c, fiber.Map{
		"lecture": note.Content,
		"note_id": note.ID,
	})
}
