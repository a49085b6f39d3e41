package repos

import (
	"github.com/yungbote/diveops-backend/internal/data/repos/training"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"gorm.io/gorm"
)

type TrackRepo = training.TrackRepo
type LessonRepo = training.LessonRepo
type LessonBundle = training.LessonBundle
type QuizRepo = training.QuizRepo
type GenerationLogRepo = training.GenerationLogRepo

// Repos is the set of repositories the content services are built from.
type Repos struct {
	Tracks         TrackRepo
	Lessons        LessonRepo
	Quizzes        QuizRepo
	GenerationLogs GenerationLogRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Tracks:         training.NewTrackRepo(db, log),
		Lessons:        training.NewLessonRepo(db, log),
		Quizzes:        training.NewQuizRepo(db, log),
		GenerationLogs: training.NewGenerationLogRepo(db, log),
	}
}
