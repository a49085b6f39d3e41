package integrity

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/diveops-backend/internal/data/repos"
	types "github.com/yungbote/diveops-backend/internal/domain"
	pkgerrors "github.com/yungbote/diveops-backend/internal/pkg/errors"
)

//go:embed registry.yaml
var embeddedRegistry []byte

// Registry is the expected state of the corpus plus the backup copy used to
// restore a track wholesale.
type Registry struct {
	Tracks []TrackSpec `yaml:"tracks"`
}

type TrackSpec struct {
	Slug            string         `yaml:"slug"`
	Title           string         `yaml:"title"`
	Category        string         `yaml:"category"`
	ExpectedLessons int            `yaml:"expected_lessons"`
	Lessons         []BackupLesson `yaml:"lessons"`
}

type BackupLesson struct {
	Title            string     `yaml:"title"`
	Order            int        `yaml:"order"`
	EstimatedMinutes int        `yaml:"estimated_minutes"`
	Objectives       []string   `yaml:"objectives"`
	Content          string     `yaml:"content"`
	Quiz             BackupQuiz `yaml:"quiz"`
}

type BackupQuiz struct {
	Title        string           `yaml:"title"`
	PassingScore int              `yaml:"passing_score"`
	TimeLimit    int              `yaml:"time_limit"`
	Questions    []BackupQuestion `yaml:"questions"`
}

type BackupQuestion struct {
	Prompt  string   `yaml:"prompt"`
	Options []string `yaml:"options"`
	Answer  string   `yaml:"answer"`
}

// LoadRegistry reads the registry at path, or the embedded default when path
// is empty. An unreadable backup source is an infrastructure error.
func LoadRegistry(path string) (*Registry, error) {
	raw := embeddedRegistry
	if p := strings.TrimSpace(path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, pkgerrors.Infrastructure("read integrity backup", err)
		}
		raw = b
	}
	var reg Registry
	if err := yaml.Unmarshal(raw, &reg); err != nil {
		return nil, pkgerrors.Infrastructure("parse integrity backup", err)
	}
	return NewRegistry(reg.Tracks)
}

func NewRegistry(tracks []TrackSpec) (*Registry, error) {
	seen := map[string]bool{}
	for i := range tracks {
		t := &tracks[i]
		t.Slug = strings.TrimSpace(t.Slug)
		if t.Slug == "" {
			return nil, fmt.Errorf("%w: registry track %d has no slug", pkgerrors.ErrInvalidArgument, i)
		}
		if seen[t.Slug] {
			return nil, fmt.Errorf("%w: duplicate registry track %q", pkgerrors.ErrInvalidArgument, t.Slug)
		}
		seen[t.Slug] = true
		if t.ExpectedLessons <= 0 {
			return nil, fmt.Errorf("%w: track %q expects no lessons", pkgerrors.ErrInvalidArgument, t.Slug)
		}
		if len(t.Lessons) > 0 && len(t.Lessons) != t.ExpectedLessons {
			return nil, fmt.Errorf("%w: track %q backup has %d lessons, expected %d",
				pkgerrors.ErrInvalidArgument, t.Slug, len(t.Lessons), t.ExpectedLessons)
		}
		orders := map[int]bool{}
		for _, l := range t.Lessons {
			if orders[l.Order] {
				return nil, fmt.Errorf("%w: track %q repeats lesson order %d", pkgerrors.ErrInvalidArgument, t.Slug, l.Order)
			}
			orders[l.Order] = true
		}
	}
	return &Registry{Tracks: tracks}, nil
}

func (r *Registry) Slugs() []string {
	out := make([]string, 0, len(r.Tracks))
	for _, t := range r.Tracks {
		out = append(out, t.Slug)
	}
	return out
}

func (r *Registry) Track(slug string) (TrackSpec, bool) {
	for _, t := range r.Tracks {
		if t.Slug == slug {
			return t, true
		}
	}
	return TrackSpec{}, false
}

func (t TrackSpec) HasBackup() bool { return len(t.Lessons) > 0 }

func (t TrackSpec) Model() *types.Track {
	return &types.Track{
		Slug:            t.Slug,
		Title:           t.Title,
		Category:        t.Category,
		ExpectedLessons: t.ExpectedLessons,
	}
}

// Bundles converts the backup lessons for ReplaceForTrack.
func (t TrackSpec) Bundles() []repos.LessonBundle {
	out := make([]repos.LessonBundle, 0, len(t.Lessons))
	for _, bl := range t.Lessons {
		lesson := &types.Lesson{
			Title:            bl.Title,
			Order:            bl.Order,
			Content:          bl.Content,
			EstimatedMinutes: bl.EstimatedMinutes,
		}
		lesson.SetObjectives(bl.Objectives)
		out = append(out, repos.LessonBundle{Lesson: lesson, Quiz: bl.Quiz.Model()})
	}
	return out
}

// BackupQuiz finds the backup quiz for a lesson by order, then by title.
func (t TrackSpec) BackupQuiz(order int, title string) (BackupQuiz, bool) {
	for _, bl := range t.Lessons {
		if bl.Order == order && strings.EqualFold(bl.Title, title) {
			return bl.Quiz, len(bl.Quiz.Questions) > 0
		}
	}
	for _, bl := range t.Lessons {
		if strings.EqualFold(strings.TrimSpace(bl.Title), strings.TrimSpace(title)) {
			return bl.Quiz, len(bl.Quiz.Questions) > 0
		}
	}
	return BackupQuiz{}, false
}

func (q BackupQuiz) Model() *types.Quiz {
	if len(q.Questions) == 0 {
		return nil
	}
	quiz := &types.Quiz{
		Title:        q.Title,
		PassingScore: q.PassingScore,
		TimeLimit:    q.TimeLimit,
	}
	if quiz.PassingScore == 0 {
		quiz.PassingScore = 80
	}
	for i, bq := range q.Questions {
		question := types.Question{
			Prompt:        bq.Prompt,
			CorrectAnswer: bq.Answer,
			Order:         i,
		}
		question.SetOptions(bq.Options)
		quiz.Questions = append(quiz.Questions, question)
	}
	return quiz
}
