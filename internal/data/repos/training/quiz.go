package training

import (
	"context"

	"github.com/google/uuid"
	types "github.com/yungbote/diveops-backend/internal/domain"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"gorm.io/gorm"
)

type QuizRepo interface {
	GetByLessonIDs(ctx context.Context, tx *gorm.DB, lessonIDs []uuid.UUID) ([]*types.Quiz, error)
	ReplaceForLesson(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, quiz *types.Quiz) error
}

type quizRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuizRepo(db *gorm.DB, baseLog *logger.Logger) QuizRepo {
	repoLog := baseLog.With("repo", "QuizRepo")
	return &quizRepo{db: db, log: repoLog}
}

// GetByLessonIDs returns quizzes with their questions in order.
func (r *quizRepo) GetByLessonIDs(ctx context.Context, tx *gorm.DB, lessonIDs []uuid.UUID) ([]*types.Quiz, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Quiz
	if len(lessonIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("lesson_id IN ?", lessonIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ReplaceForLesson removes the lesson's quiz and questions and inserts quiz as
// a whole. Quizzes are never patched field by field.
func (r *quizRepo) ReplaceForLesson(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, quiz *types.Quiz) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := deleteQuizzesForLessons(txx, []uuid.UUID{lessonID}); err != nil {
			return err
		}
		if quiz == nil {
			return nil
		}
		return insertQuiz(txx, lessonID, quiz)
	})
}

func deleteQuizzesForLessons(tx *gorm.DB, lessonIDs []uuid.UUID) error {
	var quizIDs []uuid.UUID
	if err := tx.Model(&types.Quiz{}).Where("lesson_id IN ?", lessonIDs).Pluck("id", &quizIDs).Error; err != nil {
		return err
	}
	if len(quizIDs) == 0 {
		return nil
	}
	if err := tx.Where("quiz_id IN ?", quizIDs).Delete(&types.Question{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", quizIDs).Delete(&types.Quiz{}).Error
}

func insertQuiz(tx *gorm.DB, lessonID uuid.UUID, quiz *types.Quiz) error {
	questions := quiz.Questions
	quiz.ID = uuid.Nil
	quiz.LessonID = lessonID
	if err := tx.Omit("Questions").Create(quiz).Error; err != nil {
		return err
	}
	if len(questions) == 0 {
		return nil
	}
	rows := make([]*types.Question, 0, len(questions))
	for i := range questions {
		q := questions[i]
		q.ID = uuid.Nil
		q.QuizID = quiz.ID
		rows = append(rows, &q)
	}
	if err := tx.Create(&rows).Error; err != nil {
		return err
	}
	quiz.Questions = make([]types.Question, 0, len(rows))
	for _, q := range rows {
		quiz.Questions = append(quiz.Questions, *q)
	}
	return nil
}
