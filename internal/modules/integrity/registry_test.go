package integrity

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	pkgerrors "github.com/yungbote/diveops-backend/internal/pkg/errors"
)

func TestEmbeddedRegistryLoads(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.Tracks) == 0 {
		t.Fatalf("embedded registry is empty")
	}
	for _, tr := range reg.Tracks {
		if !tr.HasBackup() {
			t.Fatalf("track %s has no backup lessons", tr.Slug)
		}
		for _, b := range tr.Bundles() {
			if b.Quiz == nil || len(b.Quiz.Questions) < 5 {
				t.Fatalf("track %s lesson %q has a short backup quiz", tr.Slug, b.Lesson.Title)
			}
			if len(b.Lesson.ObjectiveList()) < 3 {
				t.Fatalf("track %s lesson %q has too few objectives", tr.Slug, b.Lesson.Title)
			}
		}
	}
}

func TestLoadRegistryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	raw := []byte("tracks:\n  - slug: nitrox\n    title: Enriched Air\n    category: specialty\n    expected_lessons: 4\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	tr, ok := reg.Track("nitrox")
	if !ok || tr.ExpectedLessons != 4 || tr.HasBackup() {
		t.Fatalf("unexpected track %+v", tr)
	}
}

func TestLoadRegistryMissingFileIsInfrastructure(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	if !pkgerrors.IsInfrastructure(err) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}

func TestNewRegistryRejectsInconsistentBackup(t *testing.T) {
	spec := backupTrack("openwater", 3)
	spec.ExpectedLessons = 4
	if _, err := NewRegistry([]TrackSpec{spec}); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := NewRegistry([]TrackSpec{{Slug: "a", ExpectedLessons: 1}, {Slug: "a", ExpectedLessons: 1}}); err == nil {
		t.Fatalf("duplicate slugs must be rejected")
	}
}

func TestBackupQuizLookup(t *testing.T) {
	spec := backupTrack("openwater", 3)
	if q, ok := spec.BackupQuiz(2, "Lesson 2"); !ok || len(q.Questions) != 5 {
		t.Fatalf("expected backup quiz by order and title")
	}
	if _, ok := spec.BackupQuiz(9, "lesson 3"); !ok {
		t.Fatalf("expected title fallback")
	}
	if _, ok := spec.BackupQuiz(9, "Unknown"); ok {
		t.Fatalf("unexpected match")
	}
}
