package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/diveops-backend/internal/data/repos"
	types "github.com/yungbote/diveops-backend/internal/domain"
	"github.com/yungbote/diveops-backend/internal/modules/content/artifacts"
	"github.com/yungbote/diveops-backend/internal/observability"
	pkgerrors "github.com/yungbote/diveops-backend/internal/pkg/errors"
)

const (
	SourceManual    = "manual"
	SourceBatch     = "batch"
	SourceIntegrity = "integrity"
	SourceCLI       = "cli"
)

// SpeechSynthesizer renders one chunk of narration.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Store is the slice of the persister the services write through.
type Store interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Download(ctx context.Context, rawURL, key, format string, resolver artifacts.ExportResolver) (string, int64, error)
}

type lessonContext struct {
	lesson *types.Lesson
	track  *types.Track
}

func loadLesson(ctx context.Context, tracks repos.TrackRepo, lessons repos.LessonRepo, lessonID uuid.UUID) (lessonContext, error) {
	lesson, err := lessons.GetByID(ctx, nil, lessonID)
	if err != nil {
		return lessonContext{}, pkgerrors.Infrastructure("load lesson", err)
	}
	if lesson == nil {
		return lessonContext{}, fmt.Errorf("lesson %s: %w", lessonID, pkgerrors.ErrNotFound)
	}
	track, err := tracks.GetByID(ctx, nil, lesson.TrackID)
	if err != nil {
		return lessonContext{}, pkgerrors.Infrastructure("load track", err)
	}
	if track == nil {
		return lessonContext{}, fmt.Errorf("track %s of lesson %s: %w", lesson.TrackID, lessonID, pkgerrors.ErrNotFound)
	}
	return lessonContext{lesson: lesson, track: track}, nil
}

// startLog writes the pending row and moves it to processing.
func startLog(ctx context.Context, logs repos.GenerationLogRepo, lc lessonContext, contentType, source string) (*types.GenerationLog, error) {
	entry, err := logs.Create(ctx, nil, &types.GenerationLog{
		LessonID:    lc.lesson.ID,
		TrackID:     lc.track.ID,
		ContentType: contentType,
		SourceType:  source,
	})
	if err != nil {
		return nil, pkgerrors.Infrastructure("create generation log", err)
	}
	if err := logs.MarkProcessing(ctx, nil, entry.ID); err != nil {
		return nil, pkgerrors.Infrastructure("mark generation log processing", err)
	}
	return entry, nil
}

// failLog records the terminal failure even when ctx is already cancelled.
func failLog(ctx context.Context, logs repos.GenerationLogRepo, id uuid.UUID, cause error, meta types.GenerationMetadata) error {
	if err := logs.Fail(context.WithoutCancel(ctx), nil, id, cause, meta); err != nil {
		return errors.Join(cause, pkgerrors.Infrastructure("fail generation log", err))
	}
	return cause
}

func observeRun(contentType, source string, started time.Time, err error) {
	status := types.GenerationCompleted
	if err != nil {
		status = types.GenerationFailed
	}
	observability.Current().ObserveGeneration(contentType, source, status, time.Since(started))
}
