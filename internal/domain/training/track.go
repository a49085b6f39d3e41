package training

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Track is a curriculum unit. Slug is the registry key.
type Track struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Slug            string    `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Title           string    `gorm:"column:title;not null" json:"title"`
	Category        string    `gorm:"column:category;not null;default:'general'" json:"category"`
	ExpectedLessons int       `gorm:"column:expected_lessons;not null;default:0" json:"expected_lessons"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Track) TableName() string { return "track" }

func (t *Track) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
