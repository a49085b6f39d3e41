package training

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/diveops-backend/internal/domain"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"gorm.io/gorm"
)

type GenerationLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *types.GenerationLog) (*types.GenerationLog, error)
	MarkProcessing(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	Complete(ctx context.Context, tx *gorm.DB, id uuid.UUID, meta types.GenerationMetadata) error
	Fail(ctx context.Context, tx *gorm.DB, id uuid.UUID, cause error, meta types.GenerationMetadata) error
	ListByLessonID(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) ([]*types.GenerationLog, error)
}

type generationLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationLogRepo(db *gorm.DB, baseLog *logger.Logger) GenerationLogRepo {
	repoLog := baseLog.With("repo", "GenerationLogRepo")
	return &generationLogRepo{db: db, log: repoLog}
}

// Create inserts a pending row.
func (r *generationLogRepo) Create(ctx context.Context, tx *gorm.DB, entry *types.GenerationLog) (*types.GenerationLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	entry.Status = types.GenerationPending
	if err := transaction.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *generationLogRepo) MarkProcessing(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.transition(ctx, tx, id, []string{types.GenerationPending}, map[string]any{
		"status":     types.GenerationProcessing,
		"started_at": now,
	})
}

func (r *generationLogRepo) Complete(ctx context.Context, tx *gorm.DB, id uuid.UUID, meta types.GenerationMetadata) error {
	now := time.Now().UTC()
	return r.transition(ctx, tx, id, []string{types.GenerationProcessing}, map[string]any{
		"status":       types.GenerationCompleted,
		"completed_at": now,
		"metadata":     meta.JSON(),
	})
}

func (r *generationLogRepo) Fail(ctx context.Context, tx *gorm.DB, id uuid.UUID, cause error, meta types.GenerationMetadata) error {
	now := time.Now().UTC()
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return r.transition(ctx, tx, id, []string{types.GenerationPending, types.GenerationProcessing}, map[string]any{
		"status":       types.GenerationFailed,
		"completed_at": now,
		"error":        msg,
		"metadata":     meta.JSON(),
	})
}

func (r *generationLogRepo) ListByLessonID(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) ([]*types.GenerationLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.GenerationLog
	if err := transaction.WithContext(ctx).
		Where("lesson_id = ?", lessonID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// transition applies updates only when the row is in one of the from states,
// so a terminal row is never rewritten.
func (r *generationLogRepo) transition(ctx context.Context, tx *gorm.DB, id uuid.UUID, from []string, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.GenerationLog{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("generation log %s: not in state %v", id, from)
	}
	return nil
}
