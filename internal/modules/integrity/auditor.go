package integrity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/diveops-backend/internal/data/repos"
	types "github.com/yungbote/diveops-backend/internal/domain"
	"github.com/yungbote/diveops-backend/internal/observability"
	pkgerrors "github.com/yungbote/diveops-backend/internal/pkg/errors"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"github.com/yungbote/diveops-backend/internal/platform/locks"
)

const (
	defaultConcurrency = 4
	maxAlertIssues     = 20
)

const (
	TriggerStartup   = "startup"
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
	TriggerCLI       = "cli"
)

type Options struct {
	// AutoRepair restores tracks whose lesson count drifted and rebuilds
	// unhealthy quizzes from the backup registry.
	AutoRepair      bool   `json:"autoRepair"`
	RegenerateMedia bool   `json:"regenerateMedia"`
	SendAlerts      bool   `json:"sendAlerts"`
	Trigger         string `json:"trigger,omitempty"`
}

type ArtifactChecker interface {
	Exists(ctx context.Context, ref string) (bool, error)
}

type MediaRegenerator interface {
	RegeneratePodcast(ctx context.Context, lessonID uuid.UUID) (string, error)
	RegeneratePDF(ctx context.Context, lessonID uuid.UUID) (string, error)
}

type AlertSender interface {
	Send(ctx context.Context, payload any) bool
}

type TraceSink interface {
	Record(ctx context.Context, rec observability.AuditRecord)
}

type Deps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Tracks  repos.TrackRepo
	Lessons repos.LessonRepo
	Quizzes repos.QuizRepo

	Registry  *Registry
	Artifacts ArtifactChecker
	Locker    locks.TrackLocker

	// Optional collaborators; nil disables the step.
	Media  MediaRegenerator
	Alerts AlertSender
	Tracer TraceSink

	Concurrency int
}

type Auditor struct {
	log  *logger.Logger
	deps Deps
}

func NewAuditor(deps Deps) (*Auditor, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.DB == nil || deps.Tracks == nil || deps.Lessons == nil || deps.Quizzes == nil {
		return nil, fmt.Errorf("auditor requires db and repos")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("auditor requires a registry")
	}
	if deps.Artifacts == nil {
		return nil, fmt.Errorf("auditor requires an artifact checker")
	}
	if deps.Locker == nil {
		deps.Locker = locks.NewLocal()
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = defaultConcurrency
	}
	return &Auditor{log: deps.Log.With("service", "IntegrityAuditor"), deps: deps}, nil
}

// Run audits every registry track. Data problems become issues; an
// infrastructure error aborts the run and no summary is returned.
func (a *Auditor) Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.Trigger == "" {
		opts.Trigger = TriggerManual
	}
	started := time.Now().UTC()
	a.log.Info("Integrity audit started",
		"trigger", opts.Trigger,
		"auto_repair", opts.AutoRepair,
		"regenerate_media", opts.RegenerateMedia,
	)

	tracks := a.deps.Registry.Tracks
	perTrack := make([][]Issue, len(tracks))
	perStats := make([]Stats, len(tracks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.deps.Concurrency)
	for i, spec := range tracks {
		g.Go(func() error {
			issues, stats, err := a.auditTrack(gctx, spec, opts)
			if err != nil {
				return fmt.Errorf("track %s: %w", spec.Slug, err)
			}
			sortTrackIssues(issues)
			perTrack[i] = issues
			perStats[i] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		err = pkgerrors.Infrastructure("integrity audit", err)
		a.log.Error("Integrity audit aborted", "trigger", opts.Trigger, "error", err)
		a.trace(ctx, Summary{Trigger: opts.Trigger, StartedAt: started}, time.Since(started), err)
		return Summary{}, err
	}

	var (
		issues []Issue
		stats  Stats
	)
	for i := range tracks {
		issues = append(issues, perTrack[i]...)
		stats.add(perStats[i])
	}
	summary := newSummary(opts.Trigger, started, issues, stats)
	elapsed := time.Since(started)
	summary.DurationMS = elapsed.Milliseconds()

	a.log.Info("Integrity audit finished",
		"trigger", opts.Trigger,
		"ok", summary.OK,
		"blocking", summary.BlockingIssues,
		"warnings", summary.WarningIssues,
		"tracks_restored", stats.TracksRestored,
		"quizzes_rebuilt", stats.QuizzesRebuilt,
		"media_regenerated", stats.MediaRegenerated,
		"elapsed", elapsed.String(),
	)

	if opts.SendAlerts && len(summary.Issues) > 0 && a.deps.Alerts != nil {
		observability.Current().IncAlert(a.deps.Alerts.Send(ctx, alertPayload(summary)))
	}
	a.trace(ctx, summary, elapsed, nil)
	return summary, nil
}

func (a *Auditor) auditTrack(ctx context.Context, spec TrackSpec, opts Options) ([]Issue, Stats, error) {
	var (
		issues []Issue
		stats  = Stats{TracksChecked: 1}
	)

	if opts.AutoRepair && spec.HasBackup() {
		restored, err := a.restoreIfDrifted(ctx, spec)
		if err != nil {
			return nil, stats, err
		}
		if restored {
			stats.TracksRestored++
		}
	}

	track, err := a.deps.Tracks.GetBySlug(ctx, nil, spec.Slug)
	if err != nil {
		return nil, stats, pkgerrors.Infrastructure("load track", err)
	}
	if track == nil {
		issues = append(issues, Issue{
			Severity:    SeverityCritical,
			Type:        IssueMissingTrack,
			Message:     fmt.Sprintf("Track %q is missing", spec.Slug),
			TrackSlug:   spec.Slug,
			lessonOrder: -1,
		})
		return issues, stats, nil
	}

	lessons, err := a.deps.Lessons.ListByTrackID(ctx, nil, track.ID)
	if err != nil {
		return nil, stats, pkgerrors.Infrastructure("list lessons", err)
	}
	if len(lessons) != spec.ExpectedLessons {
		issues = append(issues, Issue{
			Severity:  SeverityCritical,
			Type:      IssueLessonCountMismatch,
			Message:   fmt.Sprintf("Track %q has %d lessons, expected %d", spec.Slug, len(lessons), spec.ExpectedLessons),
			TrackSlug: spec.Slug,
			Details: map[string]any{
				"expected": spec.ExpectedLessons,
				"actual":   len(lessons),
			},
			lessonOrder: -1,
		})
	}

	ids := make([]uuid.UUID, 0, len(lessons))
	for _, l := range lessons {
		ids = append(ids, l.ID)
	}
	quizzes, err := a.deps.Quizzes.GetByLessonIDs(ctx, nil, ids)
	if err != nil {
		return nil, stats, pkgerrors.Infrastructure("load quizzes", err)
	}
	quizByLesson := make(map[uuid.UUID]*types.Quiz, len(quizzes))
	for _, q := range quizzes {
		quizByLesson[q.LessonID] = q
	}

	for _, lesson := range lessons {
		stats.LessonsChecked++
		found, err := a.auditLesson(ctx, spec, lesson, quizByLesson[lesson.ID], opts, &stats)
		if err != nil {
			return nil, stats, err
		}
		issues = append(issues, found...)
	}
	return issues, stats, nil
}

// restoreIfDrifted replaces the track's lessons with the backup when the live
// count differs from the registry. It holds the track lock for the whole
// check-and-replace so concurrent restores of one track cannot interleave.
func (a *Auditor) restoreIfDrifted(ctx context.Context, spec TrackSpec) (bool, error) {
	unlock, err := a.deps.Locker.Lock(ctx, spec.Slug)
	if err != nil {
		return false, fmt.Errorf("lock track: %w", err)
	}
	defer unlock()

	restored := false
	err = a.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		track, err := a.deps.Tracks.GetBySlug(ctx, tx, spec.Slug)
		if err != nil {
			return err
		}
		actual := 0
		if track != nil {
			counts, err := a.deps.Lessons.CountByTrackIDs(ctx, tx, []uuid.UUID{track.ID})
			if err != nil {
				return err
			}
			actual = counts[track.ID]
		}
		if track != nil && actual == spec.ExpectedLessons {
			return nil
		}

		track, err = a.deps.Tracks.Upsert(ctx, tx, spec.Model())
		if err != nil {
			return err
		}
		if err := a.deps.Lessons.ReplaceForTrack(ctx, tx, track.ID, spec.Bundles()); err != nil {
			return err
		}
		a.log.Warn("Track restored from backup",
			"track", spec.Slug,
			"previous_lessons", actual,
			"restored_lessons", len(spec.Lessons),
		)
		restored = true
		return nil
	})
	if err != nil {
		return false, pkgerrors.Infrastructure("restore track", err)
	}
	return restored, nil
}

func (a *Auditor) auditLesson(ctx context.Context, spec TrackSpec, lesson *types.Lesson, quiz *types.Quiz, opts Options, stats *Stats) ([]Issue, error) {
	var issues []Issue
	lessonID := lesson.ID
	issue := func(sev Severity, typ IssueType, msg string, details map[string]any) Issue {
		return Issue{
			Severity:    sev,
			Type:        typ,
			Message:     msg,
			TrackSlug:   spec.Slug,
			LessonID:    &lessonID,
			Details:     details,
			lessonOrder: lesson.Order,
		}
	}

	if strings.TrimSpace(lesson.Content) == "" {
		issues = append(issues, issue(SeverityCritical, IssueEmptyLessonContent,
			fmt.Sprintf("Lesson %q has no content", lesson.Title), nil))
	}

	if quiz != nil {
		stats.QuizzesChecked++
		stats.QuestionsChecked += len(quiz.Questions)
	}
	switch {
	case quiz == nil:
		is := issue(SeverityCritical, IssueMissingQuiz, fmt.Sprintf("Lesson %q has no quiz", lesson.Title), nil)
		if err := a.repairQuiz(ctx, spec, lesson, opts, &is, stats); err != nil {
			return nil, err
		}
		issues = append(issues, is)
	case len(quiz.Questions) < types.MinHealthyQuestions:
		is := issue(SeverityWarning, IssueQuizQuestionShortage,
			fmt.Sprintf("Quiz for lesson %q has %d questions, expected at least %d", lesson.Title, len(quiz.Questions), types.MinHealthyQuestions),
			map[string]any{"questions": len(quiz.Questions)})
		if err := a.repairQuiz(ctx, spec, lesson, opts, &is, stats); err != nil {
			return nil, err
		}
		issues = append(issues, is)
	}

	podcast, err := a.checkArtifact(ctx, lesson, lesson.PodcastRef(), types.ContentTypePodcast, opts, stats)
	if err != nil {
		return nil, err
	}
	if podcast != nil {
		issues = append(issues, issue(SeverityWarning, podcast.typ, podcast.message(lesson.Title), podcast.details))
	}
	pdf, err := a.checkArtifact(ctx, lesson, lesson.PDFRef(), types.ContentTypePDF, opts, stats)
	if err != nil {
		return nil, err
	}
	if pdf != nil {
		issues = append(issues, issue(SeverityWarning, pdf.typ, pdf.message(lesson.Title), pdf.details))
	}
	return issues, nil
}

// repairQuiz rebuilds the lesson's quiz from the backup. A repaired issue stays
// in the report, downgraded to a warning and marked repaired.
func (a *Auditor) repairQuiz(ctx context.Context, spec TrackSpec, lesson *types.Lesson, opts Options, is *Issue, stats *Stats) error {
	if !opts.AutoRepair {
		return nil
	}
	backup, ok := spec.BackupQuiz(lesson.Order, lesson.Title)
	if !ok || len(backup.Questions) < types.MinHealthyQuestions {
		return nil
	}
	if err := a.deps.Quizzes.ReplaceForLesson(ctx, nil, lesson.ID, backup.Model()); err != nil {
		return pkgerrors.Infrastructure("rebuild quiz", err)
	}
	stats.QuizzesRebuilt++
	if is.Details == nil {
		is.Details = map[string]any{}
	}
	is.Details["repaired"] = true
	is.Details["rebuiltQuestions"] = len(backup.Questions)
	is.Severity = SeverityWarning
	a.log.Info("Quiz rebuilt from backup", "track", spec.Slug, "lesson_id", lesson.ID, "questions", len(backup.Questions))
	return nil
}

type artifactProblem struct {
	typ     IssueType
	kind    string
	missing string
	details map[string]any
}

func (p *artifactProblem) message(title string) string {
	if p.missing == "url" {
		return fmt.Sprintf("Lesson %q has no %s", title, p.kind)
	}
	return fmt.Sprintf("The %s for lesson %q cannot be found", p.kind, title)
}

// checkArtifact returns nil when the artifact exists or was regenerated.
func (a *Auditor) checkArtifact(ctx context.Context, lesson *types.Lesson, ref, contentType string, opts Options, stats *Stats) (*artifactProblem, error) {
	p := &artifactProblem{kind: "podcast", details: map[string]any{}}
	urlType, fileType := IssueMissingPodcastURL, IssueMissingPodcastFile
	if contentType == types.ContentTypePDF {
		p.kind = "PDF"
		urlType, fileType = IssueMissingPDFURL, IssueMissingPDFFile
	}

	if ref == "" {
		p.typ, p.missing = urlType, "url"
	} else {
		stats.ArtifactsChecked++
		ok, err := a.deps.Artifacts.Exists(ctx, ref)
		if err != nil {
			return nil, pkgerrors.Infrastructure("check artifact", err)
		}
		if ok {
			return nil, nil
		}
		p.typ, p.missing = fileType, "file"
		p.details["ref"] = ref
	}

	if !opts.RegenerateMedia || a.deps.Media == nil {
		return p, nil
	}
	var (
		newRef string
		err    error
	)
	if contentType == types.ContentTypePDF {
		newRef, err = a.deps.Media.RegeneratePDF(ctx, lesson.ID)
	} else {
		newRef, err = a.deps.Media.RegeneratePodcast(ctx, lesson.ID)
	}
	if err != nil {
		a.log.Warn("Media regeneration failed", "lesson_id", lesson.ID, "content_type", contentType, "error", err)
		p.details["regenerationError"] = err.Error()
		return p, nil
	}
	stats.MediaRegenerated++
	a.log.Info("Media regenerated", "lesson_id", lesson.ID, "content_type", contentType, "ref", newRef)
	return nil, nil
}

func (a *Auditor) trace(ctx context.Context, s Summary, elapsed time.Duration, err error) {
	observeAudit(s, elapsed, err)
	if a.deps.Tracer == nil {
		return
	}
	a.deps.Tracer.Record(ctx, observability.AuditRecord{
		Trigger:          s.Trigger,
		StartedAt:        s.StartedAt,
		Duration:         elapsed,
		TracksChecked:    s.Stats.TracksChecked,
		LessonsChecked:   s.Stats.LessonsChecked,
		QuizzesChecked:   s.Stats.QuizzesChecked,
		ArtifactsChecked: s.Stats.ArtifactsChecked,
		OK:               s.OK && err == nil,
		BlockingIssues:   s.BlockingIssues,
		WarningIssues:    s.WarningIssues,
		TracksRestored:   s.Stats.TracksRestored,
		QuizzesRebuilt:   s.Stats.QuizzesRebuilt,
		MediaRegenerated: s.Stats.MediaRegenerated,
		Err:              err,
	})
}

func observeAudit(s Summary, elapsed time.Duration, err error) {
	m := observability.Current()
	if m == nil {
		return
	}
	counts := map[[2]string]int{}
	for _, is := range s.Issues {
		counts[[2]string{string(is.Severity), string(is.Type)}]++
	}
	buckets := make([]observability.IssueCount, 0, len(counts))
	for k, n := range counts {
		buckets = append(buckets, observability.IssueCount{Severity: k[0], Type: k[1], Count: n})
	}
	m.ObserveAudit(s.Trigger, s.OK, err != nil, elapsed, buckets)
	m.AddRepairs("track_restored", s.Stats.TracksRestored)
	m.AddRepairs("quiz_rebuilt", s.Stats.QuizzesRebuilt)
	m.AddRepairs("media_regenerated", s.Stats.MediaRegenerated)
}

type alertBody struct {
	Timestamp      time.Time `json:"timestamp"`
	Trigger        string    `json:"trigger"`
	OK             bool      `json:"ok"`
	BlockingIssues int       `json:"blockingIssues"`
	WarningIssues  int       `json:"warningIssues"`
	Stats          Stats     `json:"stats"`
	Issues         []Issue   `json:"issues"`
	Truncated      bool      `json:"truncated,omitempty"`
}

// alertPayload keeps blocking issues first and caps the list at 20.
func alertPayload(s Summary) alertBody {
	ordered := make([]Issue, 0, len(s.Issues))
	for _, is := range s.Issues {
		if is.Severity == SeverityCritical {
			ordered = append(ordered, is)
		}
	}
	for _, is := range s.Issues {
		if is.Severity != SeverityCritical {
			ordered = append(ordered, is)
		}
	}
	truncated := len(ordered) > maxAlertIssues
	if truncated {
		ordered = ordered[:maxAlertIssues]
	}
	return alertBody{
		Timestamp:      s.StartedAt,
		Trigger:        s.Trigger,
		OK:             s.OK,
		BlockingIssues: s.BlockingIssues,
		WarningIssues:  s.WarningIssues,
		Stats:          s.Stats,
		Issues:         ordered,
		Truncated:      truncated,
	}
}
