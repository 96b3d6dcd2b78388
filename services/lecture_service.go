package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xuebang/xuebang-api/model"
	"github.com/xuebang/xuebang-api/services/extract"
	"github.com/xuebang/xuebang-api/services/llm"
	"github.com/xuebang/xuebang-api/utils"
	"gorm.io/datatypes"
)

const lectureSystemPrompt = "你是一位课程讲义编写老师。根据提供的学习材料编写结构化讲义。" +
	`你必须只输出JSON对象：{"title": "<讲义标题>", "sections": [{"title": "<章节标题>", "content": "<章节内容>", "subsections": [{"title": "<小节标题>", "content": "<小节内容>", "key_points": ["<要点>"]}]}]}`

// Lecture is the nested structured lecture returned by generate_lecture.
type Lecture struct {
	Title    string           `json:"title"`
	Sections []LectureSection `json:"sections"`
}

// LectureSection is one top-level section of a lecture.
type LectureSection struct {
	Title       string              `json:"title"`
	Content     string              `json:"content"`
	Subsections []LectureSubsection `json:"subsections,omitempty"`
}

// LectureSubsection is one nested subsection with its key points.
type LectureSubsection struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	KeyPoints []string `json:"key_points,omitempty"`
}

// sanitize recursively cleans every text field of the lecture tree
func (l *Lecture) sanitize() {
	l.Title = utils.CleanText(l.Title)
	for i := range l.Sections {
		sec := &l.Sections[i]
		sec.Title = utils.CleanText(sec.Title)
		sec.Content = utils.CleanText(sec.Content)
		for j := range sec.Subsections {
			sub := &sec.Subsections[j]
			sub.Title = utils.CleanText(sub.Title)
			sub.Content = utils.CleanText(sub.Content)
			for k := range sub.KeyPoints {
				sub.KeyPoints[k] = utils.CleanText(sub.KeyPoints[k])
			}
		}
	}
}

// LectureService runs the generate_lecture pipeline.
type LectureService struct {
	llm         *llm.Client
	normalizer  *extract.Normalizer
	entitlement *EntitlementService
}

// NewLectureService creates a new lecture service
func NewLectureService(client *llm.Client, normalizer *extract.Normalizer, entitlement *EntitlementService) *LectureService {
	return &LectureService{
		llm:         client,
		normalizer:  normalizer,
		entitlement: entitlement,
	}
}

// Generate builds a structured lecture from the uploaded material.
func (s *LectureService) Generate(ctx context.Context, userID uint, filename string, content []byte) (*Lecture, error) {
	if _, err := s.entitlement.CheckFeatureAccess(userID, model.FeatureGenerateLecture); err != nil {
		return nil, err
	}

	text, err := s.normalizer.Normalize(filename, content)
	if err != nil {
		return nil, err
	}

	userPrompt := fmt.Sprintf("学习材料:\n%s", text)

	raw, usage, err := s.llm.JSONCompletion(ctx, lectureSystemPrompt, userPrompt,
		llm.WithMaxTokens(8192))
	if err != nil {
		return nil, err
	}

	var lecture Lecture
	if err := utils.ExtractJSONTo(raw, &lecture); err != nil {
		return nil, fmt.Errorf("lecture response unusable: %w", err)
	}
	if lecture.Title == "" && len(lecture.Sections) == 0 {
		return nil, errors.New("model returned an empty lecture")
	}
	lecture.sanitize()

	details, _ := json.Marshal(map[string]interface{}{
		"sections": len(lecture.Sections),
		"tokens":   usage.TotalTokens,
	})
	if err := s.entitlement.RecordUsage(userID, model.FeatureGenerateLecture, datatypes.JSON(details)); err != nil {
		return nil, err
	}

	return &lecture, nil
}
