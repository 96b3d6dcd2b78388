package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// QuestionType classifies a generated question.
type QuestionType string

const (
	QuestionTypeChoice   QuestionType = "choice"
	QuestionTypeFill     QuestionType = "fill"
	QuestionTypeJudgment QuestionType = "judgment"
	QuestionTypeShort    QuestionType = "short"
)

// Options is a list of answer options stored as JSONB.
type Options []string

// Scan implements the sql.Scanner interface for reading from database
func (o *Options) Scan(value interface{}) error {
	if value == nil {
		*o = Options{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal Options value")
	}

	return json.Unmarshal(bytes, o)
}

// Value implements the driver.Valuer interface for writing to database
func (o Options) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(o)
}

// QuestionSet groups the questions produced by one generation run.
type QuestionSet struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	SetID      string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"question_set_id"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	Difficulty string         `gorm:"type:varchar(20)" json:"difficulty"`
	Count      int            `gorm:"default:0" json:"count"`

	// Relationships
	User      User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Questions []Question `gorm:"foreignKey:SetRowID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

// TableName specifies the table name for QuestionSet
func (QuestionSet) TableName() string {
	return "question_sets"
}

// Question is a single generated question with its canonical answer.
type Question struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time    `json:"created_at"`
	QuestionID    string       `gorm:"type:varchar(36);uniqueIndex;not null" json:"question_id"`
	SetRowID      uint         `gorm:"not null;index" json:"-"`
	Type          QuestionType `gorm:"type:varchar(20);not null" json:"type"`
	Text          string       `gorm:"type:text;not null" json:"question"`
	Options       Options      `gorm:"type:jsonb" json:"options,omitempty"`
	CorrectAnswer string       `gorm:"type:text;not null" json:"correct_answer"`
	Explanation   string       `gorm:"type:text" json:"explanation,omitempty"`

	// Relationships
	Set QuestionSet `gorm:"foreignKey:SetRowID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Question
func (Question) TableName() string {
	return "questions"
}

// QuestionSubmission records a student's answer to one question with the
// computed correctness and score.
type QuestionSubmission struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	QuestionID string    `gorm:"type:varchar(36);not null;index" json:"question_id"`
	StudentID  *uint     `gorm:"index" json:"student_id,omitempty"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	Answer     string    `gorm:"type:text" json:"answer"`
	IsCorrect  bool      `gorm:"default:false" json:"is_correct"`
	Score      float64   `gorm:"default:0" json:"score"`
	Feedback   string    `gorm:"type:text" json:"feedback"`
}

// TableName specifies the table name for QuestionSubmission
func (QuestionSubmission) TableName() string {
	return "question_submissions"
}
