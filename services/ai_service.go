package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xuebang/xuebang-api/model"
	"github.com/xuebang/xuebang-api/services/llm"
	"github.com/xuebang/xuebang-api/utils"
	"gorm.io/datatypes"
)

// codeAssistPrompts maps each code-assist feature to its system prompt.
var codeAssistPrompts = map[model.FeatureCode]string{
	model.FeatureProgrammingHelp: "你是一位编程辅导老师。学生会提交代码和问题，你需要给出清晰的指导和示例，帮助学生理解并自己解决问题。",
	model.FeatureCodeReview:      "你是一位资深代码评审员。请从正确性、可读性、性能和安全性角度评审学生提交的代码，指出问题并给出改进建议。",
	model.FeatureCodeExplain:     "你是一位编程老师。请逐段解释学生提交的代码：它做了什么、为什么这样写、涉及哪些语言特性和概念。",
	model.FeatureDebugHelp:       "你是一位调试专家。学生的代码存在问题，请定位可能的错误原因，解释错误机制，并给出修复方案。",
}

// AIService runs the conversational and code-assist pipelines.
type AIService struct {
	llm          *llm.Client
	conversation *ConversationService
	entitlement  *EntitlementService
}

// NewAIService creates a new AI service
func NewAIService(client *llm.Client, conversation *ConversationService, entitlement *EntitlementService) *AIService {
	return &AIService{
		llm:          client,
		conversation: conversation,
		entitlement:  entitlement,
	}
}

// AskResult is the outcome of one ai_ask turn.
type AskResult struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

// Ask runs one ai_ask turn: entitlement check, history replay, completion,
// persistence, usage metering. A missing sessionID opens a new conversation.
func (s *AIService) Ask(ctx context.Context, userID uint, sessionID, question string) (*AskResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	if _, err := s.entitlement.CheckFeatureAccess(userID, model.FeatureAIAsk); err != nil {
		return nil, err
	}

	conv, err := s.conversation.GetOrCreate(userID, sessionID, TutorPersona)
	if err != nil {
		return nil, err
	}

	history, err := s.conversation.History(conv.ID)
	if err != nil {
		return nil, err
	}

	// The LLM call runs outside any transaction; history is already
	// committed and the new turn is persisted only on success.
	messages := append(history, llm.Message{Role: "user", Content: question})
	resp, err := s.llm.ChatCompletion(ctx, messages)
	if err != nil {
		return nil, err
	}

	answer := utils.CleanText(resp.ExtractContent())
	_, _, totalTokens := resp.GetUsage()

	if err := s.conversation.AppendTurn(conv.ID, question, answer, resp.Model, totalTokens); err != nil {
		return nil, err
	}

	details, _ := json.Marshal(map[string]interface{}{
		"session_id": conv.SessionID,
		"tokens":     totalTokens,
	})
	if err := s.entitlement.RecordUsage(userID, model.FeatureAIAsk, datatypes.JSON(details)); err != nil {
		return nil, err
	}

	return &AskResult{SessionID: conv.SessionID, Answer: answer}, nil
}

// CodeAssistRequest carries the input of one code-assist invocation.
// SessionID is honored for programming_help only, which keeps a tutoring
// conversation across turns.
type CodeAssistRequest struct {
	Feature   model.FeatureCode
	Code      string
	Question  string
	Language  string
	SessionID string
}

// CodeAssistResult is the outcome of one code-assist invocation. SessionID
// is set only when the feature is conversational.
type CodeAssistResult struct {
	SessionID string `json:"session_id,omitempty"`
	Answer    string `json:"answer"`
}

// CodeAssist runs one of the code-assist features (programming_help,
// code_review, code_explain, debug_help) and returns sanitized plain text.
func (s *AIService) CodeAssist(ctx context.Context, userID uint, req CodeAssistRequest) (*CodeAssistResult, error) {
	systemPrompt, ok := codeAssistPrompts[req.Feature]
	if !ok {
		return nil, fmt.Errorf("feature %s is not a code-assist feature", req.Feature)
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("code must not be empty")
	}

	if _, err := s.entitlement.CheckFeatureAccess(userID, req.Feature); err != nil {
		return nil, err
	}

	var sb strings.Builder
	if req.Language != "" {
		sb.WriteString(fmt.Sprintf("编程语言: %s\n\n", req.Language))
	}
	sb.WriteString("代码:\n```\n")
	sb.WriteString(req.Code)
	sb.WriteString("\n```\n")
	if strings.TrimSpace(req.Question) != "" {
		sb.WriteString(fmt.Sprintf("\n问题: %s\n", req.Question))
	}
	userPrompt := sb.String()

	// Programming help keeps a conversation so follow-up questions carry
	// the earlier code and answers.
	if req.Feature == model.FeatureProgrammingHelp {
		return s.assistWithSession(ctx, userID, req, systemPrompt, userPrompt)
	}

	answer, usage, err := s.llm.SimpleCompletion(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}
	answer = utils.CleanText(answer)

	details, _ := json.Marshal(map[string]interface{}{
		"language": req.Language,
		"tokens":   usage.TotalTokens,
	})
	if err := s.entitlement.RecordUsage(userID, req.Feature, datatypes.JSON(details)); err != nil {
		return nil, err
	}

	return &CodeAssistResult{Answer: answer}, nil
}

// assistWithSession runs a code-assist turn on a persisted conversation
func (s *AIService) assistWithSession(ctx context.Context, userID uint, req CodeAssistRequest, systemPrompt, userPrompt string) (*CodeAssistResult, error) {
	conv, err := s.conversation.GetOrCreate(userID, req.SessionID, systemPrompt)
	if err != nil {
		return nil, err
	}

	history, err := s.conversation.History(conv.ID)
	if err != nil {
		return nil, err
	}

	messages := append(history, llm.Message{Role: "user", Content: userPrompt})
	resp, err := s.llm.ChatCompletion(ctx, messages)
	if err != nil {
		return nil, err
	}

	answer := utils.CleanText(resp.ExtractContent())
	_, _, totalTokens := resp.GetUsage()

	if err := s.conversation.AppendTurn(conv.ID, userPrompt, answer, resp.Model, totalTokens); err != nil {
		return nil, err
	}

	details, _ := json.Marshal(map[string]interface{}{
		"session_id": conv.SessionID,
		"language":   req.Language,
		"tokens":     totalTokens,
	})
	if err := s.entitlement.RecordUsage(userID, req.Feature, datatypes.JSON(details)); err != nil {
		return nil, err
	}

	return &CodeAssistResult{SessionID: conv.SessionID, Answer: answer}, nil
}
