package integrity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/diveops-backend/internal/data/repos"
	"github.com/yungbote/diveops-backend/internal/data/repos/testutil"
	types "github.com/yungbote/diveops-backend/internal/domain"
	"github.com/yungbote/diveops-backend/internal/modules/content/artifacts"
	"github.com/yungbote/diveops-backend/internal/observability"
	pkgerrors "github.com/yungbote/diveops-backend/internal/pkg/errors"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"github.com/yungbote/diveops-backend/internal/platform/locks"
)

type harness struct {
	db        *gorm.DB
	repos     repos.Repos
	persister *artifacts.Persister
}

func newHarness(t *testing.T) harness {
	t.Helper()
	db := testutil.DB(t)
	p, err := artifacts.NewPersister(logger.Nop(), artifacts.Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("NewPersister: %v", err)
	}
	return harness{db: db, repos: repos.New(db, testutil.Logger(t)), persister: p}
}

// seedTrack creates a track with n healthy lessons: content, a five question
// quiz and both artifacts on disk.
func (h harness) seedTrack(t *testing.T, slug string, expected, n int) (*types.Track, []*types.Lesson) {
	t.Helper()
	ctx := context.Background()
	track := testutil.SeedTrack(t, ctx, h.db, slug, expected)
	var lessons []*types.Lesson
	for i := 1; i <= n; i++ {
		l := testutil.SeedLesson(t, ctx, h.db, track.ID, i)
		testutil.SeedQuiz(t, ctx, h.db, l.ID, 5)

		podcast, err := h.persister.Write(ctx, artifacts.PodcastKey(slug, l.Title), []byte("ID3 audio"))
		if err != nil {
			t.Fatalf("write podcast: %v", err)
		}
		pdf, err := h.persister.Write(ctx, artifacts.DocumentKey(track.Category, l.Title, "pdf"), []byte("%PDF-1.4"))
		if err != nil {
			t.Fatalf("write pdf: %v", err)
		}
		if err := h.repos.Lessons.SetPodcastURL(ctx, nil, l.ID, podcast); err != nil {
			t.Fatalf("SetPodcastURL: %v", err)
		}
		if err := h.repos.Lessons.SetPDFURL(ctx, nil, l.ID, pdf); err != nil {
			t.Fatalf("SetPDFURL: %v", err)
		}
		l.PodcastURL = &podcast
		l.PDFURL = &pdf
		lessons = append(lessons, l)
	}
	return track, lessons
}

func backupTrack(slug string, n int) TrackSpec {
	spec := TrackSpec{Slug: slug, Title: "Openwater", Category: "general", ExpectedLessons: n}
	for i := 1; i <= n; i++ {
		bl := BackupLesson{
			Title:      fmt.Sprintf("Lesson %d", i),
			Order:      i,
			Content:    "Backup content. Descend slowly.",
			Objectives: []string{"Equalize", "Trim", "Plan gas"},
			Quiz:       BackupQuiz{Title: "Backup check"},
		}
		for q := 0; q < 5; q++ {
			bl.Quiz.Questions = append(bl.Quiz.Questions, BackupQuestion{
				Prompt:  fmt.Sprintf("Backup question %d?", q+1),
				Options: []string{"A", "B"},
				Answer:  "A",
			})
		}
		spec.Lessons = append(spec.Lessons, bl)
	}
	return spec
}

type recordingAlerts struct {
	mu       sync.Mutex
	payloads []any
}

func (r *recordingAlerts) Send(ctx context.Context, payload any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return true
}

type recordingTracer struct {
	records []observability.AuditRecord
}

func (r *recordingTracer) Record(ctx context.Context, rec observability.AuditRecord) {
	r.records = append(r.records, rec)
}

type fakeMedia struct {
	fail  bool
	calls int
}

func (m *fakeMedia) RegeneratePodcast(ctx context.Context, lessonID uuid.UUID) (string, error) {
	m.calls++
	if m.fail {
		return "", errors.New("speech backend down")
	}
	return "/podcasts/regenerated.mp3", nil
}

func (m *fakeMedia) RegeneratePDF(ctx context.Context, lessonID uuid.UUID) (string, error) {
	m.calls++
	if m.fail {
		return "", errors.New("deck backend down")
	}
	return "/general/regenerated.pdf", nil
}

type brokenChecker struct{}

func (brokenChecker) Exists(ctx context.Context, ref string) (bool, error) {
	return false, pkgerrors.Infrastructure("stat artifact", errors.New("input/output error"))
}

func (h harness) auditor(t *testing.T, specs []TrackSpec, mutate func(*Deps)) *Auditor {
	t.Helper()
	reg, err := NewRegistry(specs)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	deps := Deps{
		DB:        h.db,
		Log:       logger.Nop(),
		Tracks:    h.repos.Tracks,
		Lessons:   h.repos.Lessons,
		Quizzes:   h.repos.Quizzes,
		Registry:  reg,
		Artifacts: h.persister,
	}
	if mutate != nil {
		mutate(&deps)
	}
	a, err := NewAuditor(deps)
	if err != nil {
		t.Fatalf("NewAuditor: %v", err)
	}
	return a
}

func countType(s Summary, typ IssueType) int {
	n := 0
	for _, is := range s.Issues {
		if is.Type == typ {
			n++
		}
	}
	return n
}

func TestAuditHealthyTrackIsOK(t *testing.T) {
	h := newHarness(t)
	h.seedTrack(t, "openwater", 12, 12)
	tracer := &recordingTracer{}
	a := h.auditor(t, []TrackSpec{{Slug: "openwater", ExpectedLessons: 12}}, func(d *Deps) { d.Tracer = tracer })

	s, err := a.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !s.OK || s.BlockingIssues != 0 || s.WarningIssues != 0 {
		t.Fatalf("expected clean summary, got %+v", s)
	}
	if s.Stats.LessonsChecked != 12 || s.Stats.QuizzesChecked != 12 || s.Stats.QuestionsChecked != 60 || s.Stats.ArtifactsChecked != 24 {
		t.Fatalf("unexpected stats %+v", s.Stats)
	}
	if len(tracer.records) != 1 || !tracer.records[0].OK || tracer.records[0].LessonsChecked != 12 {
		t.Fatalf("expected one ok trace record, got %+v", tracer.records)
	}
}

func TestAuditLessonCountMismatch(t *testing.T) {
	h := newHarness(t)
	h.seedTrack(t, "openwater", 12, 10)
	a := h.auditor(t, []TrackSpec{{Slug: "openwater", ExpectedLessons: 12}}, nil)

	s, err := a.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.OK {
		t.Fatalf("count mismatch must block")
	}
	if countType(s, IssueLessonCountMismatch) != 1 || s.BlockingIssues != 1 {
		t.Fatalf("expected exactly one lesson_count_mismatch, got %+v", s.Issues)
	}
	if s.Issues[0].TrackSlug != "openwater" || s.Issues[0].Details["actual"] != 10 {
		t.Fatalf("unexpected issue %+v", s.Issues[0])
	}
}

func TestAuditIsIdempotent(t *testing.T) {
	h := newHarness(t)
	_, lessons := h.seedTrack(t, "openwater", 12, 10)
	if err := os.Remove(filepath.Join(h.persister.Root(), "podcasts", "openwater-lesson-3.mp3")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := h.repos.Quizzes.ReplaceForLesson(context.Background(), nil, lessons[4].ID, nil); err != nil {
		t.Fatalf("drop quiz: %v", err)
	}
	a := h.auditor(t, []TrackSpec{{Slug: "openwater", ExpectedLessons: 12}, {Slug: "rescue", ExpectedLessons: 2}}, nil)

	first, err := a.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := a.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if first.OK != second.OK || first.BlockingIssues != second.BlockingIssues || first.WarningIssues != second.WarningIssues {
		t.Fatalf("summaries differ: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(first.Issues, second.Issues) || first.Stats != second.Stats {
		t.Fatalf("issue lists differ between runs")
	}
	if len(first.Issues) != 4 || countType(first, IssueMissingTrack) != 1 || countType(first, IssueMissingQuiz) != 1 || countType(first, IssueMissingPodcastFile) != 1 {
		t.Fatalf("unexpected issues %+v", first.Issues)
	}
	if first.Issues[0].Type != IssueLessonCountMismatch || first.Issues[len(first.Issues)-1].Type != IssueMissingTrack {
		t.Fatalf("issues not ordered by registry then lesson: %+v", first.Issues)
	}
}

func TestAuditMissingPodcastFileWithoutRegeneration(t *testing.T) {
	h := newHarness(t)
	_, lessons := h.seedTrack(t, "openwater", 12, 12)
	if err := os.Remove(filepath.Join(h.persister.Root(), "podcasts", "openwater-lesson-7.mp3")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	media := &fakeMedia{}
	a := h.auditor(t, []TrackSpec{{Slug: "openwater", ExpectedLessons: 12}}, func(d *Deps) { d.Media = media })

	s, err := a.Run(context.Background(), Options{RegenerateMedia: false})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !s.OK || s.BlockingIssues != 0 {
		t.Fatalf("warnings must not block: %+v", s)
	}
	if len(s.Issues) != 1 || s.Issues[0].Type != IssueMissingPodcastFile || s.Issues[0].Severity != SeverityWarning {
		t.Fatalf("expected exactly one missing_podcast_file warning, got %+v", s.Issues)
	}
	if *s.Issues[0].LessonID != lessons[6].ID {
		t.Fatalf("issue points at wrong lesson")
	}
	if media.calls != 0 {
		t.Fatalf("regeneration must not run when disabled")
	}
}

func TestAuditRegeneratesMissingMedia(t *testing.T) {
	h := newHarness(t)
	h.seedTrack(t, "openwater", 3, 3)
	if err := os.Remove(filepath.Join(h.persister.Root(), "general", "lesson-2.pdf")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	media := &fakeMedia{}
	a := h.auditor(t, []TrackSpec{{Slug: "openwater", ExpectedLessons: 3}}, func(d *Deps) { d.Media = media })
	s, err := a.Run(context.Background(), Options{RegenerateMedia: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(s.Issues) != 0 || s.Stats.MediaRegenerated != 1 || media.calls != 1 {
		t.Fatalf("expected silent regeneration, got issues=%+v stats=%+v", s.Issues, s.Stats)
	}

	media.fail = true
	s, err = a.Run(context.Background(), Options{RegenerateMedia: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if countType(s, IssueMissingPDFFile) != 1 || s.Issues[0].Details["regenerationError"] == nil {
		t.Fatalf("failed regeneration must surface the issue: %+v", s.Issues)
	}
}

func TestAuditRestoresDriftedTrack(t *testing.T) {
	h := newHarness(t)
	h.seedTrack(t, "openwater", 12, 10)
	a := h.auditor(t, []TrackSpec{backupTrack("openwater", 12)}, nil)

	s, err := a.Run(context.Background(), Options{AutoRepair: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !s.OK || countType(s, IssueLessonCountMismatch) != 0 || s.Stats.TracksRestored != 1 {
		t.Fatalf("expected restored track, got %+v", s)
	}
	if s.Stats.LessonsChecked != 12 || s.Stats.QuestionsChecked != 60 {
		t.Fatalf("unexpected stats after restore %+v", s.Stats)
	}
	// Lessons 1..10 keep their artifacts; 11 and 12 come back without URLs.
	if countType(s, IssueMissingPodcastURL) != 2 || countType(s, IssueMissingPDFURL) != 2 {
		t.Fatalf("unexpected artifact issues %+v", s.Issues)
	}

	again, err := a.Run(context.Background(), Options{AutoRepair: true})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Stats.TracksRestored != 0 {
		t.Fatalf("healthy track must not be restored again")
	}
}

// countingLocker wraps a locker and tracks how many holders a key has.
type countingLocker struct {
	inner locks.TrackLocker
	calls atomic.Int32
	held  atomic.Int32
	peak  atomic.Int32
}

func (l *countingLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.calls.Add(1)
	unlock, err := l.inner.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	n := l.held.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return func() {
		l.held.Add(-1)
		unlock()
	}, nil
}

func TestAuditConcurrentRestoresOfOneTrackAreSerialized(t *testing.T) {
	h := newHarness(t)
	h.seedTrack(t, "openwater", 12, 7)
	locker := &countingLocker{inner: locks.NewLocal()}
	specs := []TrackSpec{backupTrack("openwater", 12)}
	first := h.auditor(t, specs, func(d *Deps) { d.Locker = locker })
	second := h.auditor(t, specs, func(d *Deps) { d.Locker = locker })

	var (
		wg        sync.WaitGroup
		summaries [2]Summary
		errs      [2]error
	)
	for i, a := range []*Auditor{first, second} {
		wg.Add(1)
		go func(i int, a *Auditor) {
			defer wg.Done()
			summaries[i], errs[i] = a.Run(context.Background(), Options{AutoRepair: true})
		}(i, a)
	}
	wg.Wait()

	restored := 0
	for i := range summaries {
		if errs[i] != nil {
			t.Fatalf("Run %d: %v", i, errs[i])
		}
		restored += summaries[i].Stats.TracksRestored
		if countType(summaries[i], IssueLessonCountMismatch) != 0 || summaries[i].Stats.LessonsChecked != 12 {
			t.Fatalf("run %d saw an inconsistent track: %+v", i, summaries[i])
		}
	}
	if restored != 1 {
		t.Fatalf("expected exactly one restore, got %d", restored)
	}
	if locker.calls.Load() != 2 || locker.peak.Load() != 1 {
		t.Fatalf("restores must hold the track lock one at a time: calls=%d peak=%d", locker.calls.Load(), locker.peak.Load())
	}

	track, err := h.repos.Tracks.GetBySlug(context.Background(), nil, "openwater")
	if err != nil || track == nil {
		t.Fatalf("track lookup: %v", err)
	}
	counts, err := h.repos.Lessons.CountByTrackIDs(context.Background(), nil, []uuid.UUID{track.ID})
	if err != nil || counts[track.ID] != 12 {
		t.Fatalf("expected 12 lessons after concurrent restores, got %d (%v)", counts[track.ID], err)
	}
}

func TestAuditRestoresMissingTrack(t *testing.T) {
	h := newHarness(t)
	a := h.auditor(t, []TrackSpec{backupTrack("openwater", 2)}, nil)

	s, err := a.Run(context.Background(), Options{AutoRepair: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if countType(s, IssueMissingTrack) != 0 || s.Stats.TracksRestored != 1 {
		t.Fatalf("expected track to be created from backup: %+v", s.Issues)
	}
	track, err := h.repos.Tracks.GetBySlug(context.Background(), nil, "openwater")
	if err != nil || track == nil || track.ExpectedLessons != 2 {
		t.Fatalf("track not restored: %v %+v", err, track)
	}
}

func TestAuditRebuildsShortQuiz(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, lessons := h.seedTrack(t, "openwater", 2, 2)
	short := &types.Quiz{Title: "Short"}
	for i := 0; i < 2; i++ {
		q := types.Question{Prompt: fmt.Sprintf("Short %d?", i), CorrectAnswer: "A", Order: i}
		q.SetOptions([]string{"A", "B"})
		short.Questions = append(short.Questions, q)
	}
	if err := h.repos.Quizzes.ReplaceForLesson(ctx, nil, lessons[1].ID, short); err != nil {
		t.Fatalf("shorten quiz: %v", err)
	}
	a := h.auditor(t, []TrackSpec{backupTrack("openwater", 2)}, nil)

	s, err := a.Run(ctx, Options{AutoRepair: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if countType(s, IssueQuizQuestionShortage) != 1 || s.Stats.QuizzesRebuilt != 1 {
		t.Fatalf("expected one repaired shortage, got %+v", s)
	}
	if s.Issues[0].Details["repaired"] != true {
		t.Fatalf("issue must be marked repaired: %+v", s.Issues[0])
	}

	quizzes, err := h.repos.Quizzes.GetByLessonIDs(ctx, nil, []uuid.UUID{lessons[1].ID})
	if err != nil || len(quizzes) != 1 || len(quizzes[0].Questions) != 5 {
		t.Fatalf("quiz not rebuilt: %v", err)
	}

	again, err := a.Run(ctx, Options{AutoRepair: true})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(again.Issues) != 0 {
		t.Fatalf("rebuilt quiz should be healthy, got %+v", again.Issues)
	}
}

func TestAuditSendsTruncatedAlert(t *testing.T) {
	h := newHarness(t)
	h.seedTrack(t, "openwater", 12, 12)
	for i := 1; i <= 12; i++ {
		for _, rel := range []string{
			filepath.Join("podcasts", fmt.Sprintf("openwater-lesson-%d.mp3", i)),
			filepath.Join("general", fmt.Sprintf("lesson-%d.pdf", i)),
		} {
			if err := os.Remove(filepath.Join(h.persister.Root(), rel)); err != nil {
				t.Fatalf("remove: %v", err)
			}
		}
	}
	alerts := &recordingAlerts{}
	a := h.auditor(t, []TrackSpec{{Slug: "openwater", ExpectedLessons: 12}}, func(d *Deps) { d.Alerts = alerts })

	if _, err := a.Run(context.Background(), Options{SendAlerts: false}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(alerts.payloads) != 0 {
		t.Fatalf("alerts disabled but sent")
	}
	s, err := a.Run(context.Background(), Options{SendAlerts: true, Trigger: TriggerScheduled})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.WarningIssues != 24 || len(alerts.payloads) != 1 {
		t.Fatalf("expected 24 warnings and one alert, got %d / %d", s.WarningIssues, len(alerts.payloads))
	}
	body := alerts.payloads[0].(alertBody)
	if len(body.Issues) != maxAlertIssues || !body.Truncated || body.Trigger != TriggerScheduled {
		t.Fatalf("unexpected alert body %+v", body)
	}
}

func TestAuditAbortsOnInfrastructureError(t *testing.T) {
	h := newHarness(t)
	h.seedTrack(t, "openwater", 1, 1)
	tracer := &recordingTracer{}
	alerts := &recordingAlerts{}
	a := h.auditor(t, []TrackSpec{{Slug: "openwater", ExpectedLessons: 1}}, func(d *Deps) {
		d.Artifacts = brokenChecker{}
		d.Tracer = tracer
		d.Alerts = alerts
	})

	_, err := a.Run(context.Background(), Options{SendAlerts: true})
	if !pkgerrors.IsInfrastructure(err) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
	if len(alerts.payloads) != 0 {
		t.Fatalf("aborted run must not alert")
	}
	if len(tracer.records) != 1 || tracer.records[0].Err == nil {
		t.Fatalf("aborted run should still be traced")
	}
}
