package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"path/filepath"
	"strings"

	"github.com/xuebang/xuebang-api/config"
	"github.com/xuebang/xuebang-api/model"
	"github.com/xuebang/xuebang-api/services/llm"
	"github.com/xuebang/xuebang-api/services/storage"
	"github.com/xuebang/xuebang-api/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrVideoTooLarge is returned when a video upload exceeds the cap.
var ErrVideoTooLarge = errors.New("video file too large")

// Video contents are never parsed: only the filename or URL reaches the
// model, so summaries and lectures are speculative. Known limitation.

const videoSummarySystemPrompt = "你是一位课程视频讲解老师。根据视频的文件名或链接推断课程主题，" +
	"为学生写一份该主题的学习摘要：内容概览、核心概念、学习建议。"

const videoLectureSystemPrompt = "你是一位课程讲义编写老师。根据视频的文件名或链接以及课程信息，" +
	"用Markdown编写该主题的讲义。使用标题、小节和要点列表组织内容。"

// VideoService runs the video_summary and video_to_lecture pipelines and
// archives uploaded video files to object storage.
type VideoService struct {
	db          *gorm.DB
	llm         *llm.Client
	storage     *storage.SpacesClient
	entitlement *EntitlementService
}

// NewVideoService creates a new video service. storage may be nil when
// object storage is not configured; uploads then keep only the filename.
func NewVideoService(db *gorm.DB, client *llm.Client, spaces *storage.SpacesClient, entitlement *EntitlementService) *VideoService {
	return &VideoService{
		db:          db,
		llm:         client,
		storage:     spaces,
		entitlement: entitlement,
	}
}

// archive stores an uploaded video and returns its storage reference.
// Falls back to the bare filename when storage is unavailable.
func (s *VideoService) archive(ctx context.Context, userID uint, filename string, content []byte) string {
	if s.storage == nil || len(content) == 0 {
		return filename
	}

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := storage.VideoKey(userID, filename)
	url, err := s.storage.Upload(ctx, key, content, contentType)
	if err != nil {
		log.Printf("video archive failed for %s: %v", filename, err)
		return filename
	}
	return url
}

// VideoRequest carries the input of a video pipeline invocation. Exactly
// one of Filename/Content or URL is expected.
type VideoRequest struct {
	Filename string
	Content  []byte
	URL      string
}

func (r *VideoRequest) ref() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Filename
}

func (r *VideoRequest) validate() error {
	if r.URL == "" && r.Filename == "" {
		return errors.New("video file or url required")
	}
	if len(r.Content) > config.MaxVideoUploadBytes {
		return ErrVideoTooLarge
	}
	return nil
}

// Summarize produces a study summary from the video's name or URL.
func (s *VideoService) Summarize(ctx context.Context, userID uint, req VideoRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	if _, err := s.entitlement.CheckFeatureAccess(userID, model.FeatureVideoSummary); err != nil {
		return "", err
	}

	videoRef := s.archive(ctx, userID, req.Filename, req.Content)

	userPrompt := fmt.Sprintf("视频: %s", req.ref())
	summary, usage, err := s.llm.SimpleCompletion(ctx, videoSummarySystemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	summary = utils.CleanText(summary)

	details, _ := json.Marshal(map[string]interface{}{
		"video_ref": videoRef,
		"tokens":    usage.TotalTokens,
	})
	if err := s.entitlement.RecordUsage(userID, model.FeatureVideoSummary, datatypes.JSON(details)); err != nil {
		return "", err
	}

	return summary, nil
}

// LectureRequest extends VideoRequest with course metadata.
type LectureRequest struct {
	VideoRequest
	Title         string
	CourseName    string
	WithExercises bool
}

// ToLecture produces a markdown lecture from the video's name or URL and
// persists it as a VideoNote.
func (s *VideoService) ToLecture(ctx context.Context, userID uint, req LectureRequest) (*model.VideoNote, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if _, err := s.entitlement.CheckFeatureAccess(userID, model.FeatureVideoToLecture); err != nil {
		return nil, err
	}

	videoRef := s.archive(ctx, userID, req.Filename, req.Content)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("视频: %s\n", req.ref()))
	if req.CourseName != "" {
		sb.WriteString(fmt.Sprintf("课程: %s\n", req.CourseName))
	}
	if req.Title != "" {
		sb.WriteString(fmt.Sprintf("标题: %s\n", req.Title))
	}
	if req.WithExercises {
		sb.WriteString("要求: 讲义末尾附上练习题\n")
	}

	content, usage, err := s.llm.SimpleCompletion(ctx, videoLectureSystemPrompt, sb.String(),
		llm.WithMaxTokens(8192))
	if err != nil {
		return nil, err
	}
	content = utils.CleanText(content)

	title := req.Title
	if title == "" {
		title = req.ref()
	}
	note := model.VideoNote{
		UserID:     userID,
		Title:      title,
		CourseName: req.CourseName,
		VideoRef:   videoRef,
		Content:    content,
	}
	if err := s.db.Create(&note).Error; err != nil {
		return nil, fmt.Errorf("failed to save video note: %w", err)
	}

	details, _ := json.Marshal(map[string]interface{}{
		"video_ref": videoRef,
		"note_id":   note.ID,
		"tokens":    usage.TotalTokens,
	})
	if err := s.entitlement.RecordUsage(userID, model.FeatureVideoToLecture, datatypes.JSON(details)); err != nil {
		return nil, err
	}

	return &note, nil
}

// ListNotes returns the user's video notes, newest first
func (s *VideoService) ListNotes(userID uint, limit int) ([]model.VideoNote, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var notes []model.VideoNote
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list video notes: %w", err)
	}
	return notes, nil
}
