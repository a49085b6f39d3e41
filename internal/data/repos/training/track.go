package training

import (
	"context"
	"errors"

	"github.com/google/uuid"
	types "github.com/yungbote/diveops-backend/internal/domain"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TrackRepo interface {
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Track, error)
	GetBySlugs(ctx context.Context, tx *gorm.DB, slugs []string) ([]*types.Track, error)
	GetByID(ctx context.Context, tx *gorm.DB, trackID uuid.UUID) (*types.Track, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Track, error)
	Upsert(ctx context.Context, tx *gorm.DB, track *types.Track) (*types.Track, error)
}

type trackRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrackRepo(db *gorm.DB, baseLog *logger.Logger) TrackRepo {
	repoLog := baseLog.With("repo", "TrackRepo")
	return &trackRepo{db: db, log: repoLog}
}

func (r *trackRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Track, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var track types.Track
	err := transaction.WithContext(ctx).Where("slug = ?", slug).First(&track).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &track, nil
}

func (r *trackRepo) GetBySlugs(ctx context.Context, tx *gorm.DB, slugs []string) ([]*types.Track, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Track
	if len(slugs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("slug IN ?", slugs).
		Order("slug ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *trackRepo) GetByID(ctx context.Context, tx *gorm.DB, trackID uuid.UUID) (*types.Track, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var track types.Track
	err := transaction.WithContext(ctx).Where("id = ?", trackID).First(&track).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &track, nil
}

func (r *trackRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Track, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Track
	if err := transaction.WithContext(ctx).Order("slug ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// Upsert inserts the track or refreshes title, category and expected count on slug conflict.
func (r *trackRepo) Upsert(ctx context.Context, tx *gorm.DB, track *types.Track) (*types.Track, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "category", "expected_lessons", "updated_at"}),
		}).
		Create(track).Error; err != nil {
		return nil, err
	}
	return r.GetBySlug(ctx, transaction, track.Slug)
}
