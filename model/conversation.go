package model

import (
	"time"

	"gorm.io/gorm"
)

// MessageRole represents the role of the message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Conversation is an ai_ask session: an ordered, append-only sequence of
// model-facing messages identified by a UUID. The first message of any
// non-empty conversation carries the system role.
type Conversation struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	SessionID     string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"session_id"`
	UserID        uint           `gorm:"not null;index" json:"user_id"`
	Title         string         `gorm:"type:varchar(255)" json:"title"`
	LastMessageAt *time.Time     `json:"last_message_at,omitempty"`

	// Relationships
	User     User                  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Messages []ConversationMessage `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName specifies the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// ConversationMessage is one turn in a conversation. Messages are totally
// ordered by (created_at, id); the auto-increment id breaks timestamp ties.
type ConversationMessage struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time   `json:"created_at"`
	ConversationID uint        `gorm:"not null;index" json:"conversation_id"`
	Role           MessageRole `gorm:"type:varchar(20);not null" json:"role"`
	Content        string      `gorm:"type:text;not null" json:"content"`
	TokensUsed     int         `gorm:"default:0" json:"tokens_used"`
	ModelUsed      string      `gorm:"type:varchar(100)" json:"model_used"`

	// Relationships
	Conversation Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for ConversationMessage
func (ConversationMessage) TableName() string {
	return "conversation_messages"
}
