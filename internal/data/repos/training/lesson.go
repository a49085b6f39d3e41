package training

import (
	"context"
	"errors"

	"github.com/google/uuid"
	types "github.com/yungbote/diveops-backend/internal/domain"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"gorm.io/gorm"
)

// LessonBundle is one lesson with its quiz, the unit written by a track restore.
type LessonBundle struct {
	Lesson *types.Lesson
	Quiz   *types.Quiz
}

type LessonRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) (*types.Lesson, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, lessonIDs []uuid.UUID) ([]*types.Lesson, error)
	ListByTrackID(ctx context.Context, tx *gorm.DB, trackID uuid.UUID) ([]*types.Lesson, error)
	CountByTrackIDs(ctx context.Context, tx *gorm.DB, trackIDs []uuid.UUID) (map[uuid.UUID]int, error)
	ReplaceForTrack(ctx context.Context, tx *gorm.DB, trackID uuid.UUID, bundles []LessonBundle) error
	SetPodcastURL(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, url string) error
	SetPDFURL(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, url string) error
}

type lessonRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonRepo(db *gorm.DB, baseLog *logger.Logger) LessonRepo {
	repoLog := baseLog.With("repo", "LessonRepo")
	return &lessonRepo{db: db, log: repoLog}
}

func (r *lessonRepo) GetByID(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) (*types.Lesson, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var lesson types.Lesson
	err := transaction.WithContext(ctx).Where("id = ?", lessonID).First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *lessonRepo) GetByIDs(ctx context.Context, tx *gorm.DB, lessonIDs []uuid.UUID) ([]*types.Lesson, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Lesson
	if len(lessonIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", lessonIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *lessonRepo) ListByTrackID(ctx context.Context, tx *gorm.DB, trackID uuid.UUID) ([]*types.Lesson, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Lesson
	if err := transaction.WithContext(ctx).
		Where("track_id = ?", trackID).
		Order("sort_order ASC, title ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *lessonRepo) CountByTrackIDs(ctx context.Context, tx *gorm.DB, trackIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	out := make(map[uuid.UUID]int, len(trackIDs))
	if len(trackIDs) == 0 {
		return out, nil
	}
	type countRow struct {
		TrackID uuid.UUID `gorm:"column:track_id"`
		N       int       `gorm:"column:n"`
	}
	var rows []countRow
	if err := transaction.WithContext(ctx).
		Model(&types.Lesson{}).
		Select("track_id, COUNT(*) AS n").
		Where("track_id IN ?", trackIDs).
		Group("track_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, id := range trackIDs {
		out[id] = 0
	}
	for _, row := range rows {
		out[row.TrackID] = row.N
	}
	return out, nil
}

// ReplaceForTrack deletes every lesson of the track (with quizzes and questions)
// and inserts the bundles, all in one transaction. Artifact URLs of replaced
// lessons carry over to bundles with the same order and title that have none.
func (r *lessonRepo) ReplaceForTrack(ctx context.Context, tx *gorm.DB, trackID uuid.UUID, bundles []LessonBundle) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var existing []*types.Lesson
		if err := txx.Where("track_id = ?", trackID).Find(&existing).Error; err != nil {
			return err
		}
		type lessonKey struct {
			order int
			title string
		}
		prior := make(map[lessonKey]*types.Lesson, len(existing))
		lessonIDs := make([]uuid.UUID, 0, len(existing))
		for _, l := range existing {
			prior[lessonKey{l.Order, l.Title}] = l
			lessonIDs = append(lessonIDs, l.ID)
		}

		if len(lessonIDs) > 0 {
			if err := deleteQuizzesForLessons(txx, lessonIDs); err != nil {
				return err
			}
			if err := txx.Where("id IN ?", lessonIDs).Delete(&types.Lesson{}).Error; err != nil {
				return err
			}
		}

		for _, b := range bundles {
			if b.Lesson == nil {
				continue
			}
			lesson := b.Lesson
			lesson.TrackID = trackID
			if old, ok := prior[lessonKey{lesson.Order, lesson.Title}]; ok {
				if lesson.PodcastURL == nil {
					lesson.PodcastURL = old.PodcastURL
				}
				if lesson.PDFURL == nil {
					lesson.PDFURL = old.PDFURL
				}
			}
			if err := txx.Create(lesson).Error; err != nil {
				return err
			}
			if b.Quiz != nil {
				if err := insertQuiz(txx, lesson.ID, b.Quiz); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (r *lessonRepo) SetPodcastURL(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, url string) error {
	return r.setColumn(ctx, tx, lessonID, "podcast_url", url)
}

func (r *lessonRepo) SetPDFURL(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, url string) error {
	return r.setColumn(ctx, tx, lessonID, "pdf_url", url)
}

func (r *lessonRepo) setColumn(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, column, value string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.Lesson{}).
		Where("id = ?", lessonID).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
