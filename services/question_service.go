package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/xuebang/xuebang-api/model"
	"github.com/xuebang/xuebang-api/services/extract"
	"github.com/xuebang/xuebang-api/services/llm"
	"github.com/xuebang/xuebang-api/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrQuestionNotFound is returned for submissions naming unknown questions.
var ErrQuestionNotFound = errors.New("question not found")

// pointsPerQuestion is awarded for each correct answer
const pointsPerQuestion = 10.0

const questionGenSystemPrompt = "你是一位出题老师。根据提供的学习材料出题，题型包括选择题(choice)、填空题(fill)、判断题(judgment)和简答题(short)。" +
	`你必须只输出JSON对象：{"status": "ok", "questions": [{"type": "<题型>", "question": "<题目>", "options": ["A. ...", "B. ..."], "correct_answer": "<答案>", "explanation": "<解析>"}]}。` +
	"选择题必须提供options，其他题型省略options。"

const answerQuestionsSystemPrompt = "你是一位答题老师。请解答下面的每一道题。" +
	`你必须只输出JSON对象：{"answers": [{"id": "<原题id>", "type": "<题型>", "question": "<题目>", "answer": "<答案>", "explanation": "<解析>"}]}`

// QuestionService runs question generation, model answering and student
// answer scoring.
type QuestionService struct {
	db          *gorm.DB
	llm         *llm.Client
	normalizer  *extract.Normalizer
	entitlement *EntitlementService
}

// NewQuestionService creates a new question service
func NewQuestionService(db *gorm.DB, client *llm.Client, normalizer *extract.Normalizer, entitlement *EntitlementService) *QuestionService {
	return &QuestionService{
		db:          db,
		llm:         client,
		normalizer:  normalizer,
		entitlement: entitlement,
	}
}

// generatedQuestion is the model-side question shape
type generatedQuestion struct {
	Type          string   `json:"type"`
	Question      string   `json:"question"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
}

type generatedQuestionSet struct {
	Status    string              `json:"status"`
	Questions []generatedQuestion `json:"questions"`
}

// GenerateResult is the outcome of one question generation run.
type GenerateResult struct {
	QuestionSetID string           `json:"question_set_id"`
	Questions     []model.Question `json:"questions"`
}

// Generate builds a question set from the uploaded material. Every question
// gets a fresh UUID, grouped under a fresh set UUID.
func (s *QuestionService) Generate(ctx context.Context, userID uint, filename string, content []byte, difficulty string, count int) (*GenerateResult, error) {
	if count <= 0 || count > 50 {
		count = 5
	}

	if _, err := s.entitlement.CheckFeatureAccess(userID, model.FeatureGenerateQuestion); err != nil {
		return nil, err
	}

	text, err := s.normalizer.Normalize(filename, content)
	if err != nil {
		return nil, err
	}

	userPrompt := fmt.Sprintf("难度: %s\n题目数量: %d\n\n学习材料:\n%s", difficulty, count, text)

	raw, usage, err := s.llm.JSONCompletion(ctx, questionGenSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	var parsed generatedQuestionSet
	if err := utils.ExtractJSONTo(raw, &parsed); err != nil {
		return nil, fmt.Errorf("question response unusable: %w", err)
	}
	if len(parsed.Questions) == 0 {
		return nil, errors.New("model returned no questions")
	}

	set := model.QuestionSet{
		SetID:      uuid.New().String(),
		UserID:     userID,
		Difficulty: difficulty,
		Count:      len(parsed.Questions),
	}

	questions := make([]model.Question, 0, len(parsed.Questions))
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&set).Error; err != nil {
			return err
		}
		for _, q := range parsed.Questions {
			row := model.Question{
				QuestionID:    uuid.New().String(),
				SetRowID:      set.ID,
				Type:          model.QuestionType(q.Type),
				Text:          utils.CleanText(q.Question),
				Options:       model.Options(q.Options),
				CorrectAnswer: utils.CleanText(q.CorrectAnswer),
				Explanation:   utils.CleanText(q.Explanation),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			questions = append(questions, row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save question set: %w", err)
	}

	details, _ := json.Marshal(map[string]interface{}{
		"question_set_id": set.SetID,
		"count":           len(questions),
		"tokens":          usage.TotalTokens,
	})
	if err := s.entitlement.RecordUsage(userID, model.FeatureGenerateQuestion, datatypes.JSON(details)); err != nil {
		return nil, err
	}

	return &GenerateResult{QuestionSetID: set.SetID, Questions: questions}, nil
}

// SubmittedQuestion is one question forwarded for model answering.
type SubmittedQuestion struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// ModelAnswer is the model's answer to one submitted question.
type ModelAnswer struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation,omitempty"`
}

// AnswerQuestions asks the model to answer a list of questions. Gated under
// the question generation feature since it is its companion operation.
func (s *QuestionService) AnswerQuestions(ctx context.Context, userID uint, questions []SubmittedQuestion) ([]ModelAnswer, error) {
	if len(questions) == 0 {
		return nil, errors.New("no questions submitted")
	}

	if _, err := s.entitlement.CheckFeatureAccess(userID, model.FeatureGenerateQuestion); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]interface{}{"questions": questions})
	if err != nil {
		return nil, err
	}

	raw, usage, err := s.llm.JSONCompletion(ctx, answerQuestionsSystemPrompt, string(payload))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Answers []ModelAnswer `json:"answers"`
	}
	if err := utils.ExtractJSONTo(raw, &parsed); err != nil {
		return nil, fmt.Errorf("answers response unusable: %w", err)
	}

	for i := range parsed.Answers {
		parsed.Answers[i].Answer = utils.CleanText(parsed.Answers[i].Answer)
		parsed.Answers[i].Explanation = utils.CleanText(parsed.Answers[i].Explanation)
	}

	details, _ := json.Marshal(map[string]interface{}{
		"count":  len(parsed.Answers),
		"tokens": usage.TotalTokens,
	})
	if err := s.entitlement.RecordUsage(userID, model.FeatureGenerateQuestion, datatypes.JSON(details)); err != nil {
		return nil, err
	}

	return parsed.Answers, nil
}

// SubmittedAnswer is one student answer to score.
type SubmittedAnswer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// ScoredAnswer is the scoring outcome for one answer.
type ScoredAnswer struct {
	QuestionID string  `json:"question_id"`
	IsCorrect  bool    `json:"is_correct"`
	Score      float64 `json:"score"`
	Feedback   string  `json:"feedback"`
}

// ScoreResult aggregates one submission run.
type ScoreResult struct {
	TotalScore   float64        `json:"total_score"`
	AverageScore float64        `json:"average_score"`
	Results      []ScoredAnswer `json:"results"`
}

// answersMatch compares a submitted answer against the canonical one.
// Comparison is case-insensitive on trimmed strings for all question types.
func answersMatch(submitted, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(correct))
}

// SubmitAnswers scores a student's answers against the stored canonical
// answers and persists one QuestionSubmission per answer.
func (s *QuestionService) SubmitAnswers(userID uint, studentID *uint, answers []SubmittedAnswer) (*ScoreResult, error) {
	if len(answers) == 0 {
		return nil, errors.New("no answers submitted")
	}

	result := ScoreResult{Results: make([]ScoredAnswer, 0, len(answers))}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, a := range answers {
			var question model.Question
			if err := tx.Where("question_id = ?", a.QuestionID).First(&question).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: %s", ErrQuestionNotFound, a.QuestionID)
				}
				return err
			}

			correct := answersMatch(a.Answer, question.CorrectAnswer)
			score := 0.0
			feedback := fmt.Sprintf("参考答案: %s", question.CorrectAnswer)
			if correct {
				score = pointsPerQuestion
				feedback = "回答正确"
			}

			submission := model.QuestionSubmission{
				QuestionID: question.QuestionID,
				StudentID:  studentID,
				UserID:     userID,
				Answer:     a.Answer,
				IsCorrect:  correct,
				Score:      score,
				Feedback:   feedback,
			}
			if err := tx.Create(&submission).Error; err != nil {
				return err
			}

			result.TotalScore += score
			result.Results = append(result.Results, ScoredAnswer{
				QuestionID: question.QuestionID,
				IsCorrect:  correct,
				Score:      score,
				Feedback:   feedback,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.AverageScore = math.Round(result.TotalScore/float64(len(result.Results))*100) / 100
	return &result, nil
}

// GetQuestionSet loads a generated set with its questions
func (s *QuestionService) GetQuestionSet(userID uint, setID string) (*model.QuestionSet, error) {
	var set model.QuestionSet
	err := s.db.Preload("Questions").
		Where("set_id = ? AND user_id = ?", setID, userID).
		First(&set).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return &set, nil
}
