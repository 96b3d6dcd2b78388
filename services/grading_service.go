package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xuebang/xuebang-api/model"
	"github.com/xuebang/xuebang-api/services/extract"
	"github.com/xuebang/xuebang-api/services/llm"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrStudentNotFound is returned when a grading request names an unknown
// roster entry.
var ErrStudentNotFound = errors.New("student not found")

const gradingSystemPrompt = "你是一位严格而公正的作业批改老师。根据作业内容评分（0-100分）并给出具体的书面反馈。" +
	"反馈要指出优点和不足，并给出改进建议。" +
	`你必须只输出JSON对象：{"score": <0-100的数字>, "feedback": "<反馈文字>"}`

// GradingService runs the grade_assignment pipeline: normalize the upload,
// ask the model for a score/feedback pair, persist the Assignment.
type GradingService struct {
	db          *gorm.DB
	llm         *llm.Client
	normalizer  *extract.Normalizer
	entitlement *EntitlementService
}

// NewGradingService creates a new grading service
func NewGradingService(db *gorm.DB, client *llm.Client, normalizer *extract.Normalizer, entitlement *EntitlementService) *GradingService {
	return &GradingService{
		db:          db,
		llm:         client,
		normalizer:  normalizer,
		entitlement: entitlement,
	}
}

// GradeRequest carries the input of one grading invocation.
type GradeRequest struct {
	StudentID uint
	Title     string
	Subject   string
	Chapter   string
	Filename  string
	Content   []byte
}

// Grade normalizes the uploaded assignment, grades it via the model and
// persists the result against the student's roster entry.
func (s *GradingService) Grade(ctx context.Context, userID uint, req GradeRequest) (*model.Assignment, error) {
	if _, err := s.entitlement.CheckFeatureAccess(userID, model.FeatureGradeAssignment); err != nil {
		return nil, err
	}

	var student model.Student
	if err := s.db.First(&student, req.StudentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to load student %d: %w", req.StudentID, err)
	}

	text, err := s.normalizer.Normalize(req.Filename, req.Content)
	if err != nil {
		return nil, err
	}

	userPrompt := fmt.Sprintf("科目: %s\n章节: %s\n作业标题: %s\n\n作业内容:\n%s",
		req.Subject, req.Chapter, req.Title, text)

	raw, usage, err := s.llm.JSONCompletion(ctx, gradingSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	result, err := llm.ParseScoreResult(raw)
	if err != nil {
		return nil, fmt.Errorf("grading response unusable: %w", err)
	}
	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 100 {
		result.Score = 100
	}

	assignment := model.Assignment{
		StudentID:   student.ID,
		Title:       req.Title,
		Subject:     req.Subject,
		Chapter:     req.Chapter,
		Score:       result.Score,
		Feedback:    result.Feedback,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&assignment).Error; err != nil {
		return nil, fmt.Errorf("failed to save assignment: %w", err)
	}

	details, _ := json.Marshal(map[string]interface{}{
		"student_id": student.ID,
		"subject":    req.Subject,
		"score":      result.Score,
		"tokens":     usage.TotalTokens,
	})
	if err := s.entitlement.RecordUsage(userID, model.FeatureGradeAssignment, datatypes.JSON(details)); err != nil {
		return nil, err
	}

	return &assignment, nil
}

// StudentScores returns a student's graded assignments, newest first.
func (s *GradingService) StudentScores(studentID uint) ([]model.Assignment, error) {
	var student model.Student
	if err := s.db.First(&student, studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	var assignments []model.Assignment
	err := s.db.Where("student_id = ?", studentID).
		Order("submitted_at DESC").
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}
	return assignments, nil
}
