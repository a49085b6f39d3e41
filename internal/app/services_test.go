package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/diveops-backend/internal/data/repos"
	"github.com/yungbote/diveops-backend/internal/data/repos/testutil"
	types "github.com/yungbote/diveops-backend/internal/domain"
	"github.com/yungbote/diveops-backend/internal/modules/content/artifacts"
	"github.com/yungbote/diveops-backend/internal/modules/content/generation"
	"github.com/yungbote/diveops-backend/internal/modules/content/script"
	"github.com/yungbote/diveops-backend/internal/modules/integrity"
	"github.com/yungbote/diveops-backend/internal/platform/deckgen"
	"github.com/yungbote/diveops-backend/internal/platform/locks"
)

// slowDeck records how many jobs are waiting on the provider at once.
type slowDeck struct {
	artifactURL string
	hold        time.Duration

	inFlight atomic.Int32
	peak     atomic.Int32
	jobs     atomic.Int32
}

func (d *slowDeck) Submit(ctx context.Context, req deckgen.Request) (string, error) {
	d.jobs.Add(1)
	return uuid.NewString(), nil
}

func (d *slowDeck) Poll(ctx context.Context, jobID string) (deckgen.Status, error) {
	return deckgen.Status{JobID: jobID, State: deckgen.StateSucceeded, ArtifactURL: d.artifactURL}, nil
}

func (d *slowDeck) Wait(ctx context.Context, jobID string) (deckgen.Result, error) {
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(d.hold)
	return deckgen.Result{JobID: jobID, ArtifactURL: d.artifactURL, Attempts: 1}, nil
}

func (d *slowDeck) ExportURL(artifactURL, format string) (string, bool) { return "", false }

func TestAuditRegenerationHonoursDeckLimit(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	r := repos.New(db, testutil.Logger(t))
	root := t.TempDir()

	const tracks = 6
	var registry strings.Builder
	registry.WriteString("tracks:\n")
	for i := 1; i <= tracks; i++ {
		fmt.Fprintf(&registry, "  - slug: track-%d\n    expected_lessons: 1\n", i)
	}
	regPath := filepath.Join(t.TempDir(), "registry.yaml")
	if err := os.WriteFile(regPath, []byte(registry.String()), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	pdf := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 deck"))
	}))
	t.Cleanup(pdf.Close)
	deck := &slowDeck{artifactURL: pdf.URL + "/deck.pdf", hold: 40 * time.Millisecond}

	cfg := Config{
		Artifact:            artifacts.Config{Root: root},
		ScriptMode:          script.ModeDeterministic,
		IntegrityBackupPath: regPath,
		IntegrityInterval:   time.Hour,
	}
	svcs, err := wireServices(db, testutil.Logger(t), cfg, r, Clients{Deck: deck, Locker: locks.NewLocal()})
	if err != nil {
		t.Fatalf("wireServices: %v", err)
	}

	for i := 1; i <= tracks; i++ {
		slug := fmt.Sprintf("track-%d", i)
		track := testutil.SeedTrack(t, ctx, db, slug, 1)
		if err := db.Model(&types.Track{}).Where("id = ?", track.ID).Update("category", slug).Error; err != nil {
			t.Fatalf("set category: %v", err)
		}
		lesson := testutil.SeedLesson(t, ctx, db, track.ID, 1)
		testutil.SeedQuiz(t, ctx, db, lesson.ID, 5)
		podcast, err := svcs.Artifacts.Write(ctx, artifacts.PodcastKey(slug, lesson.Title), []byte("ID3 audio"))
		if err != nil {
			t.Fatalf("write podcast: %v", err)
		}
		if err := r.Lessons.SetPodcastURL(ctx, nil, lesson.ID, podcast); err != nil {
			t.Fatalf("SetPodcastURL: %v", err)
		}
	}

	s, err := svcs.Auditor.Run(ctx, integrity.Options{RegenerateMedia: true, Trigger: integrity.TriggerStartup})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Stats.MediaRegenerated != tracks || int(deck.jobs.Load()) != tracks {
		t.Fatalf("expected %d regenerated decks, got stats=%+v jobs=%d issues=%+v", tracks, s.Stats, deck.jobs.Load(), s.Issues)
	}
	if got := deck.peak.Load(); got > generation.BatchConcurrency {
		t.Fatalf("deck jobs in flight exceeded %d: %d", generation.BatchConcurrency, got)
	}
}
