package integrity

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

type IssueType string

const (
	IssueMissingTrack         IssueType = "missing_track"
	IssueLessonCountMismatch  IssueType = "lesson_count_mismatch"
	IssueEmptyLessonContent   IssueType = "empty_lesson_content"
	IssueMissingQuiz          IssueType = "missing_quiz"
	IssueQuizQuestionShortage IssueType = "quiz_question_shortage"
	IssueMissingPodcastURL    IssueType = "missing_podcast_url"
	IssueMissingPDFURL        IssueType = "missing_pdf_url"
	IssueMissingPodcastFile   IssueType = "missing_podcast_file"
	IssueMissingPDFFile       IssueType = "missing_pdf_file"
)

type Issue struct {
	Severity  Severity       `json:"severity"`
	Type      IssueType      `json:"type"`
	Message   string         `json:"message"`
	TrackSlug string         `json:"trackSlug,omitempty"`
	LessonID  *uuid.UUID     `json:"lessonId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`

	lessonOrder int
}

type Stats struct {
	TracksChecked    int `json:"tracksChecked"`
	LessonsChecked   int `json:"lessonsChecked"`
	QuizzesChecked   int `json:"quizzesChecked"`
	QuestionsChecked int `json:"questionsChecked"`
	ArtifactsChecked int `json:"artifactsChecked"`
	TracksRestored   int `json:"tracksRestored"`
	QuizzesRebuilt   int `json:"quizzesRebuilt"`
	MediaRegenerated int `json:"mediaRegenerated"`
}

func (s *Stats) add(o Stats) {
	s.TracksChecked += o.TracksChecked
	s.LessonsChecked += o.LessonsChecked
	s.QuizzesChecked += o.QuizzesChecked
	s.QuestionsChecked += o.QuestionsChecked
	s.ArtifactsChecked += o.ArtifactsChecked
	s.TracksRestored += o.TracksRestored
	s.QuizzesRebuilt += o.QuizzesRebuilt
	s.MediaRegenerated += o.MediaRegenerated
}

// Summary is the result of one audit. OK is true when no critical issue remains.
type Summary struct {
	OK             bool      `json:"ok"`
	Trigger        string    `json:"trigger"`
	StartedAt      time.Time `json:"timestamp"`
	DurationMS     int64     `json:"durationMs"`
	BlockingIssues int       `json:"blockingIssues"`
	WarningIssues  int       `json:"warningIssues"`
	Issues         []Issue   `json:"issues"`
	Stats          Stats     `json:"stats"`
}

func newSummary(trigger string, started time.Time, issues []Issue, stats Stats) Summary {
	s := Summary{
		Trigger:   trigger,
		StartedAt: started,
		Issues:    issues,
		Stats:     stats,
	}
	if s.Issues == nil {
		s.Issues = []Issue{}
	}
	for _, is := range s.Issues {
		if is.Severity == SeverityCritical {
			s.BlockingIssues++
		} else {
			s.WarningIssues++
		}
	}
	s.OK = s.BlockingIssues == 0
	return s
}

// sortTrackIssues orders one track's issues: track-level first, then by lesson
// order, lesson id and type.
func sortTrackIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.lessonOrder != b.lessonOrder {
			return a.lessonOrder < b.lessonOrder
		}
		ai, bi := lessonKey(a), lessonKey(b)
		if ai != bi {
			return ai < bi
		}
		return a.Type < b.Type
	})
}

func lessonKey(is Issue) string {
	if is.LessonID == nil {
		return ""
	}
	return is.LessonID.String()
}
