package training

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ContentTypePDF     = "pdf"
	ContentTypePodcast = "podcast"
)

const (
	GenerationPending    = "pending"
	GenerationProcessing = "processing"
	GenerationCompleted  = "completed"
	GenerationFailed     = "failed"
)

// GenerationLog is append-only history: one row per job, moved to processing
// once and to a terminal status once.
type GenerationLog struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LessonID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"lesson_id"`
	TrackID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"track_id"`
	ContentType string         `gorm:"column:content_type;not null;index" json:"content_type"`
	SourceType  string         `gorm:"column:source_type;not null" json:"source_type"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Error       string         `gorm:"column:error;type:text" json:"error,omitempty"`
	Metadata    datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	StartedAt   *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GenerationLog) TableName() string { return "generation_log" }

func (g *GenerationLog) BeforeCreate(_ *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// GenerationMetadata is the structured form of GenerationLog.Metadata.
type GenerationMetadata struct {
	DurationSeconds float64  `json:"duration_seconds,omitempty"`
	SizeBytes       int64    `json:"size_bytes,omitempty"`
	WordCount       int      `json:"word_count,omitempty"`
	Chunks          int      `json:"chunks,omitempty"`
	ArtifactPath    string   `json:"artifact_path,omitempty"`
	ScriptMode      string   `json:"script_mode,omitempty"`
	JobID           string   `json:"job_id,omitempty"`
	ValidationScore *int     `json:"validation_score,omitempty"`
	ValidationNotes []string `json:"validation_notes,omitempty"`
}

func (m GenerationMetadata) JSON() datatypes.JSON {
	raw, _ := json.Marshal(m)
	return datatypes.JSON(raw)
}
