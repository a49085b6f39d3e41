package training

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MinHealthyQuestions is the question count below which a quiz is reported short.
const MinHealthyQuestions = 5

type Quiz struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	LessonID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"lesson_id"`
	Title        string     `gorm:"column:title;not null" json:"title"`
	PassingScore int        `gorm:"column:passing_score;not null;default:80" json:"passing_score"`
	TimeLimit    int        `gorm:"column:time_limit;not null;default:0" json:"time_limit"`
	Questions    []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Quiz) TableName() string { return "quiz" }

func (q *Quiz) BeforeCreate(_ *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

type Question struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	QuizID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"quiz_id"`
	Prompt        string         `gorm:"column:prompt;type:text;not null" json:"prompt"`
	Options       datatypes.JSON `gorm:"column:options" json:"options"`
	CorrectAnswer string         `gorm:"column:correct_answer;not null" json:"correct_answer"`
	Order         int            `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (Question) TableName() string { return "question" }

func (q *Question) BeforeCreate(_ *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

func (q *Question) OptionList() []string {
	if q == nil || len(q.Options) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(q.Options, &out); err != nil {
		return []string{}
	}
	return out
}

func (q *Question) SetOptions(options []string) {
	if options == nil {
		options = []string{}
	}
	raw, _ := json.Marshal(options)
	q.Options = datatypes.JSON(raw)
}
