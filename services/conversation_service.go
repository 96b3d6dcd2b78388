package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xuebang/xuebang-api/model"
	"github.com/xuebang/xuebang-api/services/llm"
	"gorm.io/gorm"
)

// ErrConversationNotFound is returned when a session id does not exist or
// belongs to another user.
var ErrConversationNotFound = errors.New("conversation not found")

// TutorPersona is the system message opening every new conversation.
const TutorPersona = "你是一位耐心、专业的AI学习助教。你帮助学生理解课程内容、解答学习问题、辅导编程作业。" +
	"回答要准确、循序渐进，鼓励学生独立思考。对于你不确定的内容，明确说明而不是编造。"

// historyLimit caps how many stored messages are replayed to the model
const historyLimit = 20

// ConversationService manages ai_ask sessions and their message history.
type ConversationService struct {
	db *gorm.DB
}

// NewConversationService creates a new conversation service
func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{db: db}
}

// GetOrCreate loads the user's conversation by session id, or creates a new
// one (with a fresh UUID and the given persona) when sessionID is empty.
func (s *ConversationService) GetOrCreate(userID uint, sessionID, persona string) (*model.Conversation, error) {
	if sessionID != "" {
		var conv model.Conversation
		err := s.db.Where("session_id = ? AND user_id = ?", sessionID, userID).First(&conv).Error
		if err == nil {
			return &conv, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load conversation %s: %w", sessionID, err)
		}
		return nil, ErrConversationNotFound
	}

	conv := model.Conversation{
		SessionID: uuid.New().String(),
		UserID:    userID,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		// Every non-empty conversation opens with the persona message
		return tx.Create(&model.ConversationMessage{
			ConversationID: conv.ID,
			Role:           model.MessageRoleSystem,
			Content:        persona,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

// History returns the model-facing message window: the most recent
// historyLimit messages, in chronological order.
func (s *ConversationService) History(conversationID uint) ([]llm.Message, error) {
	var messages []model.ConversationMessage
	err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(historyLimit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	// Query returned newest-first; reverse back to chronological order
	history := make([]llm.Message, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		history = append(history, llm.Message{
			Role:    string(messages[i].Role),
			Content: messages[i].Content,
		})
	}
	return history, nil
}

// AppendTurn stores a user/assistant exchange on the conversation.
func (s *ConversationService) AppendTurn(conversationID uint, question, answer, modelUsed string, tokensUsed int) error {
	now := time.Now().UTC()
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model.ConversationMessage{
			ConversationID: conversationID,
			Role:           model.MessageRoleUser,
			Content:        question,
		}).Error; err != nil {
			return err
		}
		if err := tx.Create(&model.ConversationMessage{
			ConversationID: conversationID,
			Role:           model.MessageRoleAssistant,
			Content:        answer,
			TokensUsed:     tokensUsed,
			ModelUsed:      modelUsed,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", conversationID).
			Update("last_message_at", now).Error
	})
}

// ListConversations returns the user's conversations, most recent first
func (s *ConversationService) ListConversations(userID uint, limit int) ([]model.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var convs []model.Conversation
	err := s.db.Where("user_id = ?", userID).
		Order("last_message_at DESC NULLS LAST, created_at DESC").
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// GetMessages returns the full message list of a conversation for display,
// excluding the system persona message.
func (s *ConversationService) GetMessages(userID uint, sessionID string) ([]model.ConversationMessage, error) {
	var conv model.Conversation
	err := s.db.Where("session_id = ? AND user_id = ?", sessionID, userID).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	var messages []model.ConversationMessage
	err = s.db.Where("conversation_id = ? AND role <> ?", conv.ID, model.MessageRoleSystem).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return messages, nil
}
