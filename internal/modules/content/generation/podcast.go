package generation

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/diveops-backend/internal/data/repos"
	types "github.com/yungbote/diveops-backend/internal/domain"
	"github.com/yungbote/diveops-backend/internal/modules/content/artifacts"
	"github.com/yungbote/diveops-backend/internal/modules/content/chunker"
	"github.com/yungbote/diveops-backend/internal/modules/content/script"
	"github.com/yungbote/diveops-backend/internal/observability"
	pkgerrors "github.com/yungbote/diveops-backend/internal/pkg/errors"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"github.com/yungbote/diveops-backend/internal/platform/openai"
)

// WordsPerMinute is the narration pace used for duration estimates.
const WordsPerMinute = 150

type PodcastDeps struct {
	Log *logger.Logger

	Tracks  repos.TrackRepo
	Lessons repos.LessonRepo
	Logs    repos.GenerationLogRepo

	Speech      SpeechSynthesizer
	Synthesizer *script.Synthesizer
	Store       Store

	ScriptMode        script.Mode
	ChunkChars        int
	SpeechConcurrency int
}

type PodcastResult struct {
	LessonID        uuid.UUID `json:"lessonId"`
	GenerationLogID uuid.UUID `json:"generationLogId"`
	PodcastURL      string    `json:"podcastUrl"`
	ScriptMode      string    `json:"scriptMode"`
	WordCount       int       `json:"wordCount"`
	Chunks          int       `json:"chunks"`
	SizeBytes       int64     `json:"sizeBytes"`
	DurationSeconds float64   `json:"durationSeconds"`
}

type PodcastService struct {
	log  *logger.Logger
	deps PodcastDeps
}

func NewPodcastService(deps PodcastDeps) *PodcastService {
	if deps.ChunkChars <= 0 || deps.ChunkChars > openai.MaxSpeechInputChars {
		deps.ChunkChars = openai.MaxSpeechInputChars
	}
	if deps.SpeechConcurrency <= 0 {
		deps.SpeechConcurrency = 2
	}
	if deps.ScriptMode == "" {
		deps.ScriptMode = script.ModeGenerative
	}
	return &PodcastService{log: deps.Log.With("service", "PodcastService"), deps: deps}
}

// Generate narrates the lesson and stores podcasts/<track>-<title>.mp3. No file
// is written unless every chunk was synthesized.
func (s *PodcastService) Generate(ctx context.Context, lessonID uuid.UUID, source string) (out PodcastResult, err error) {
	out = PodcastResult{LessonID: lessonID}
	if s.deps.Speech == nil {
		return out, fmt.Errorf("speech backend: %w", pkgerrors.ErrNotConfigured)
	}

	lc, err := loadLesson(ctx, s.deps.Tracks, s.deps.Lessons, lessonID)
	if err != nil {
		return out, err
	}
	entry, err := startLog(ctx, s.deps.Logs, lc, types.ContentTypePodcast, source)
	if err != nil {
		return out, err
	}
	out.GenerationLogID = entry.ID
	started := time.Now()
	defer func() { observeRun(types.ContentTypePodcast, source, started, err) }()

	sc := s.deps.Synthesizer.Synthesize(ctx, script.Source{
		TrackTitle: lc.track.Title,
		Title:      lc.lesson.Title,
		Content:    lc.lesson.Content,
		Objectives: lc.lesson.ObjectiveList(),
	}, s.deps.ScriptMode)
	meta := types.GenerationMetadata{
		WordCount:       sc.WordCount,
		ScriptMode:      string(sc.Mode),
		DurationSeconds: float64(sc.WordCount) / WordsPerMinute * 60,
	}
	out.ScriptMode = string(sc.Mode)
	out.WordCount = sc.WordCount
	out.DurationSeconds = meta.DurationSeconds

	chunks, err := chunker.Split(sc.Text, s.deps.ChunkChars)
	if err != nil {
		return out, failLog(ctx, s.deps.Logs, entry.ID, err, meta)
	}
	meta.Chunks = len(chunks)
	out.Chunks = len(chunks)

	audio, err := s.synthesizeAll(ctx, chunks)
	if err != nil {
		return out, failLog(ctx, s.deps.Logs, entry.ID, err, meta)
	}

	key := artifacts.PodcastKey(lc.track.Slug, lc.lesson.Title)
	public, err := s.deps.Store.Write(ctx, key, audio)
	if err != nil {
		return out, failLog(ctx, s.deps.Logs, entry.ID, err, meta)
	}
	meta.SizeBytes = int64(len(audio))
	meta.ArtifactPath = public
	out.SizeBytes = meta.SizeBytes
	out.PodcastURL = public

	if err := s.deps.Lessons.SetPodcastURL(ctx, nil, lessonID, public); err != nil {
		return out, failLog(ctx, s.deps.Logs, entry.ID, pkgerrors.Infrastructure("set podcast url", err), meta)
	}
	if err := s.deps.Logs.Complete(ctx, nil, entry.ID, meta); err != nil {
		return out, pkgerrors.Infrastructure("complete generation log", err)
	}

	s.log.Info("Podcast generated",
		"lesson_id", lessonID,
		"path", public,
		"chunks", len(chunks),
		"word_count", sc.WordCount,
		"size_bytes", len(audio),
		"elapsed", time.Since(started).String(),
	)
	return out, nil
}

// synthesizeAll renders chunks concurrently and concatenates them in order.
func (s *PodcastService) synthesizeAll(ctx context.Context, chunks []string) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: script is empty", pkgerrors.ErrInvalidArgument)
	}
	parts := make([][]byte, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.deps.SpeechConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			b, err := s.deps.Speech.Synthesize(gctx, chunk)
			observability.Current().IncSpeechChunk(err == nil)
			if err != nil {
				return fmt.Errorf("synthesize chunk %d/%d: %w", i+1, len(chunks), err)
			}
			parts[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bytes.Join(parts, nil), nil
}
