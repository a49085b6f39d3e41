package domain

import (
	"github.com/yungbote/diveops-backend/internal/domain/training"
)

const (
	ContentTypePDF     = training.ContentTypePDF
	ContentTypePodcast = training.ContentTypePodcast

	GenerationPending    = training.GenerationPending
	GenerationProcessing = training.GenerationProcessing
	GenerationCompleted  = training.GenerationCompleted
	GenerationFailed     = training.GenerationFailed

	MinHealthyQuestions = training.MinHealthyQuestions
)

type (
	Track              = training.Track
	Lesson             = training.Lesson
	Quiz               = training.Quiz
	Question           = training.Question
	GenerationLog      = training.GenerationLog
	GenerationMetadata = training.GenerationMetadata
)

// AllModels lists every table owned by the content pipeline, in migration order.
func AllModels() []any {
	return []any{
		&Track{},
		&Lesson{},
		&Quiz{},
		&Question{},
		&GenerationLog{},
	}
}
