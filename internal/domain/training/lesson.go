package training

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Lesson struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TrackID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_lesson_track_order,priority:1" json:"track_id"`
	Title            string         `gorm:"column:title;not null" json:"title"`
	Order            int            `gorm:"column:sort_order;not null;default:0;index:idx_lesson_track_order,priority:2" json:"order"`
	Content          string         `gorm:"column:content;type:text" json:"content"`
	Objectives       datatypes.JSON `gorm:"column:objectives" json:"objectives"`
	EstimatedMinutes int            `gorm:"column:estimated_minutes;not null;default:0" json:"estimated_minutes"`
	PodcastURL       *string        `gorm:"column:podcast_url" json:"podcast_url,omitempty"`
	PDFURL           *string        `gorm:"column:pdf_url" json:"pdf_url,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Lesson) TableName() string { return "lesson" }

func (l *Lesson) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// ObjectiveList decodes Objectives. Malformed JSON yields an empty list.
func (l *Lesson) ObjectiveList() []string {
	if l == nil || len(l.Objectives) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(l.Objectives, &out); err != nil {
		return []string{}
	}
	return out
}

func (l *Lesson) SetObjectives(objectives []string) {
	if objectives == nil {
		objectives = []string{}
	}
	raw, _ := json.Marshal(objectives)
	l.Objectives = datatypes.JSON(raw)
}

func (l *Lesson) PodcastRef() string {
	if l == nil || l.PodcastURL == nil {
		return ""
	}
	return strings.TrimSpace(*l.PodcastURL)
}

func (l *Lesson) PDFRef() string {
	if l == nil || l.PDFURL == nil {
		return ""
	}
	return strings.TrimSpace(*l.PDFURL)
}
