package generation

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/yungbote/diveops-backend/internal/data/repos"
	types "github.com/yungbote/diveops-backend/internal/domain"
	"github.com/yungbote/diveops-backend/internal/modules/content/artifacts"
	"github.com/yungbote/diveops-backend/internal/modules/content/validation"
	pkgerrors "github.com/yungbote/diveops-backend/internal/pkg/errors"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"github.com/yungbote/diveops-backend/internal/platform/deckgen"
)

// BatchConcurrency caps simultaneous document jobs against the provider,
// counted across every caller of the service.
const BatchConcurrency = 3

type DeckDeps struct {
	Log *logger.Logger

	Tracks  repos.TrackRepo
	Lessons repos.LessonRepo
	Quizzes repos.QuizRepo
	Logs    repos.GenerationLogRepo

	Deck  deckgen.Client
	Store Store
	Rules *validation.Rules

	ExportFormat     string
	BatchConcurrency int
}

type DeckResult struct {
	LessonID        uuid.UUID          `json:"lessonId"`
	GenerationLogID uuid.UUID          `json:"generationLogId"`
	JobID           string             `json:"jobId,omitempty"`
	PDFURL          string             `json:"pdfUrl,omitempty"`
	SizeBytes       int64              `json:"sizeBytes,omitempty"`
	Validation      *validation.Report `json:"validation,omitempty"`
}

type BatchItem struct {
	LessonID uuid.UUID `json:"lessonId"`
	Status   string    `json:"status"`
	PDFURL   string    `json:"pdfUrl,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type BatchResult struct {
	Completed int         `json:"completed"`
	Failed    int         `json:"failed"`
	Results   []BatchItem `json:"results"`
	// PeakInFlight is the highest number of jobs observed running at once.
	PeakInFlight int `json:"peakInFlight"`
}

type DeckService struct {
	log   *logger.Logger
	deps  DeckDeps
	slots *semaphore.Weighted
}

func NewDeckService(deps DeckDeps) *DeckService {
	if deps.ExportFormat == "" {
		deps.ExportFormat = "pdf"
	}
	if deps.BatchConcurrency <= 0 {
		deps.BatchConcurrency = BatchConcurrency
	}
	if deps.Rules == nil {
		r := validation.DefaultRules()
		deps.Rules = &r
	}
	return &DeckService{
		log:   deps.Log.With("service", "DeckService"),
		deps:  deps,
		slots: semaphore.NewWeighted(int64(deps.BatchConcurrency)),
	}
}

// Generate submits the lesson to the document backend, waits for the job and
// stores <category>/<title>.pdf. Validation findings are recorded but never
// block generation. The call waits for one of the service's provider slots, so
// manual, batch and integrity runs share the same limit.
func (s *DeckService) Generate(ctx context.Context, lessonID uuid.UUID, source string) (DeckResult, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return DeckResult{LessonID: lessonID}, err
	}
	defer s.slots.Release(1)
	return s.generate(ctx, lessonID, source)
}

func (s *DeckService) generate(ctx context.Context, lessonID uuid.UUID, source string) (out DeckResult, err error) {
	out = DeckResult{LessonID: lessonID}
	if s.deps.Deck == nil {
		return out, fmt.Errorf("document backend: %w", pkgerrors.ErrNotConfigured)
	}

	lc, err := loadLesson(ctx, s.deps.Tracks, s.deps.Lessons, lessonID)
	if err != nil {
		return out, err
	}
	entry, err := startLog(ctx, s.deps.Logs, lc, types.ContentTypePDF, source)
	if err != nil {
		return out, err
	}
	out.GenerationLogID = entry.ID
	started := time.Now()
	defer func() { observeRun(types.ContentTypePDF, source, started, err) }()

	report, err := s.validate(ctx, lc.lesson)
	if err != nil {
		return out, failLog(ctx, s.deps.Logs, entry.ID, err, types.GenerationMetadata{})
	}
	out.Validation = &report
	meta := types.GenerationMetadata{
		ValidationScore: &report.ComplianceScore,
		ValidationNotes: report.Notes(),
	}
	if !report.Passed {
		s.log.Warn("Lesson failed validation; generating anyway",
			"lesson_id", lessonID,
			"score", report.ComplianceScore,
			"critical", report.CriticalCount,
		)
	}

	jobID, err := s.deps.Deck.Submit(ctx, deckgen.Request{
		Prompt:       deckPrompt(lc),
		ExportFormat: s.deps.ExportFormat,
	})
	if err != nil {
		return out, failLog(ctx, s.deps.Logs, entry.ID, err, meta)
	}
	out.JobID = jobID
	meta.JobID = jobID

	res, err := s.deps.Deck.Wait(ctx, jobID)
	if err != nil {
		return out, failLog(ctx, s.deps.Logs, entry.ID, err, meta)
	}

	key := artifacts.DocumentKey(lc.track.Category, lc.lesson.Title, s.deps.ExportFormat)
	public, size, err := s.deps.Store.Download(ctx, res.ArtifactURL, key, s.deps.ExportFormat, s.deps.Deck)
	if err != nil {
		return out, failLog(ctx, s.deps.Logs, entry.ID, err, meta)
	}
	meta.ArtifactPath = public
	meta.SizeBytes = size
	meta.DurationSeconds = time.Since(started).Seconds()
	out.PDFURL = public
	out.SizeBytes = size

	if err := s.deps.Lessons.SetPDFURL(ctx, nil, lessonID, public); err != nil {
		return out, failLog(ctx, s.deps.Logs, entry.ID, pkgerrors.Infrastructure("set pdf url", err), meta)
	}
	if err := s.deps.Logs.Complete(ctx, nil, entry.ID, meta); err != nil {
		return out, pkgerrors.Infrastructure("complete generation log", err)
	}

	s.log.Info("Deck generated",
		"lesson_id", lessonID,
		"job_id", jobID,
		"path", public,
		"size_bytes", size,
		"poll_attempts", res.Attempts,
	)
	return out, nil
}

func (s *DeckService) validate(ctx context.Context, lesson *types.Lesson) (validation.Report, error) {
	quizzes, err := s.deps.Quizzes.GetByLessonIDs(ctx, nil, []uuid.UUID{lesson.ID})
	if err != nil {
		return validation.Report{}, pkgerrors.Infrastructure("load quiz", err)
	}
	payload := validation.Payload{
		Title:      lesson.Title,
		Content:    lesson.Content,
		Objectives: lesson.ObjectiveList(),
	}
	for _, q := range quizzes {
		for i := range q.Questions {
			payload.Questions = append(payload.Questions, validation.Question{
				Prompt:        q.Questions[i].Prompt,
				Options:       q.Questions[i].OptionList(),
				CorrectAnswer: q.Questions[i].CorrectAnswer,
			})
		}
	}
	return s.deps.Rules.Validate(payload), nil
}

// GenerateBatch runs each lesson through the provider slots shared with
// Generate. Item failures are recorded and never stop siblings.
func (s *DeckService) GenerateBatch(ctx context.Context, lessonIDs []uuid.UUID, source string) BatchResult {
	out := BatchResult{Results: make([]BatchItem, len(lessonIDs))}

	var (
		wg       sync.WaitGroup
		inFlight atomic.Int32
		peak     atomic.Int32
	)
	for i, id := range lessonIDs {
		out.Results[i] = BatchItem{LessonID: id}
		if err := s.slots.Acquire(ctx, 1); err != nil {
			out.Results[i].Status = types.GenerationFailed
			out.Results[i].Error = err.Error()
			continue
		}
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			defer s.slots.Release(1)

			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}

			res, err := s.generateSafe(ctx, id, source)
			if err != nil {
				out.Results[i].Status = types.GenerationFailed
				out.Results[i].Error = err.Error()
				s.log.Warn("Batch deck item failed", "lesson_id", id, "error", err)
				return
			}
			out.Results[i].Status = types.GenerationCompleted
			out.Results[i].PDFURL = res.PDFURL
		}(i, id)
	}
	wg.Wait()

	for _, r := range out.Results {
		if r.Status == types.GenerationCompleted {
			out.Completed++
		} else {
			out.Failed++
		}
	}
	out.PeakInFlight = int(peak.Load())
	s.log.Info("Deck batch finished", "completed", out.Completed, "failed", out.Failed, "peak_in_flight", out.PeakInFlight)
	return out
}

func (s *DeckService) generateSafe(ctx context.Context, id uuid.UUID, source string) (res DeckResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Deck generation panic", "lesson_id", id, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.generate(ctx, id, source)
}

func deckPrompt(lc lessonContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a training slide deck for the lesson %q", lc.lesson.Title)
	if lc.track.Title != "" {
		fmt.Fprintf(&b, " from the course %q", lc.track.Title)
	}
	b.WriteString(".\n")
	if objs := lc.lesson.ObjectiveList(); len(objs) > 0 {
		b.WriteString("Learning objectives:\n")
		for _, o := range objs {
			fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(o))
		}
	}
	b.WriteString("Do not mention brand, agency or product names.\n\n")
	b.WriteString(strings.TrimSpace(lc.lesson.Content))
	return b.String()
}
