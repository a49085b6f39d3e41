package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	types "github.com/yungbote/diveops-backend/internal/domain"
	"gorm.io/gorm"
)

func SeedTrack(tb testing.TB, ctx context.Context, tx *gorm.DB, slug string, expected int) *types.Track {
	tb.Helper()
	t := &types.Track{
		ID:              uuid.New(),
		Slug:            slug,
		Title:           strings.ToUpper(slug[:1]) + slug[1:],
		Category:        "general",
		ExpectedLessons: expected,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed track: %v", err)
	}
	return t
}

func SeedLesson(tb testing.TB, ctx context.Context, tx *gorm.DB, trackID uuid.UUID, order int) *types.Lesson {
	tb.Helper()
	l := &types.Lesson{
		ID:               uuid.New(),
		TrackID:          trackID,
		Title:            fmt.Sprintf("Lesson %d", order),
		Order:            order,
		Content:          "Descend slowly. Equalize early and often.",
		EstimatedMinutes: 10,
	}
	l.SetObjectives([]string{"Equalize"})
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed lesson: %v", err)
	}
	return l
}

// SeedQuiz creates a quiz with n questions for the lesson.
func SeedQuiz(tb testing.TB, ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, n int) *types.Quiz {
	tb.Helper()
	q := &types.Quiz{
		ID:           uuid.New(),
		LessonID:     lessonID,
		Title:        "Check",
		PassingScore: 80,
	}
	if err := tx.WithContext(ctx).Omit("Questions").Create(q).Error; err != nil {
		tb.Fatalf("seed quiz: %v", err)
	}
	for i := 0; i < n; i++ {
		question := types.Question{
			ID:            uuid.New(),
			QuizID:        q.ID,
			Prompt:        fmt.Sprintf("Question %d?", i+1),
			CorrectAnswer: "A",
			Order:         i,
		}
		question.SetOptions([]string{"A", "B", "C"})
		if err := tx.WithContext(ctx).Create(&question).Error; err != nil {
			tb.Fatalf("seed question: %v", err)
		}
		q.Questions = append(q.Questions, question)
	}
	return q
}

func PtrString(v string) *string { return &v }
