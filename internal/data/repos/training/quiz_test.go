package training

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/yungbote/diveops-backend/internal/data/repos/testutil"
	types "github.com/yungbote/diveops-backend/internal/domain"
)

func TestQuizRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewQuizRepo(db, testutil.Logger(t))

	track := testutil.SeedTrack(t, ctx, tx, "nitrox", 1)
	lesson := testutil.SeedLesson(t, ctx, tx, track.ID, 1)
	testutil.SeedQuiz(t, ctx, tx, lesson.ID, 2)

	rows, err := repo.GetByLessonIDs(ctx, tx, []uuid.UUID{lesson.ID})
	if err != nil || len(rows) != 1 || len(rows[0].Questions) != 2 {
		t.Fatalf("GetByLessonIDs: err=%v rows=%v", err, rows)
	}

	replacement := &types.Quiz{Title: "Nitrox check", PassingScore: 75}
	for i := 0; i < 5; i++ {
		q := types.Question{Prompt: "Max PO2?", CorrectAnswer: "1.4", Order: 4 - i}
		q.SetOptions([]string{"1.2", "1.4", "1.6"})
		replacement.Questions = append(replacement.Questions, q)
	}
	if err := repo.ReplaceForLesson(ctx, tx, lesson.ID, replacement); err != nil {
		t.Fatalf("ReplaceForLesson: %v", err)
	}

	rows, err = repo.GetByLessonIDs(ctx, tx, []uuid.UUID{lesson.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("GetByLessonIDs after replace: err=%v len=%d", err, len(rows))
	}
	got := rows[0]
	if got.Title != "Nitrox check" || len(got.Questions) != 5 {
		t.Fatalf("unexpected quiz after replace: %s with %d questions", got.Title, len(got.Questions))
	}
	for i := 1; i < len(got.Questions); i++ {
		if got.Questions[i-1].Order > got.Questions[i].Order {
			t.Fatalf("questions not ordered")
		}
	}

	var count int64
	tx.Model(&types.Question{}).Count(&count)
	if count != 5 {
		t.Fatalf("expected old questions removed, have %d", count)
	}
}
