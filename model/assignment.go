package model

import (
	"time"

	"gorm.io/gorm"
)

// Assignment is a graded artifact for one student: the LLM's numeric score
// and textual feedback, tagged by subject and chapter.
type Assignment struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	StudentID   uint           `gorm:"not null;index" json:"student_id"`
	Title       string         `gorm:"type:varchar(255)" json:"title"`
	Subject     string         `gorm:"type:varchar(100)" json:"subject"`
	Chapter     string         `gorm:"type:varchar(100)" json:"chapter"`
	Score       float64        `gorm:"not null" json:"score"`
	Feedback    string         `gorm:"type:text" json:"feedback"`
	SubmittedAt time.Time      `gorm:"not null" json:"submitted_at"`

	// Relationships
	Student Student `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Assignment
func (Assignment) TableName() string {
	return "assignments"
}

// VideoNote is a markdown lecture generated from a video upload or URL.
// Only the filename or URL is sent to the model; video contents are never
// parsed, so the output is speculative (known limitation).
type VideoNote struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	Title      string         `gorm:"type:varchar(255)" json:"title"`
	CourseName string         `gorm:"type:varchar(100)" json:"course_name"`
	VideoRef   string         `gorm:"type:text" json:"video_ref"` // filename, URL or storage key
	Content    string         `gorm:"type:text;not null" json:"content"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for VideoNote
func (VideoNote) TableName() string {
	return "video_notes"
}
