package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/diveops-backend/internal/domain"
	"github.com/yungbote/diveops-backend/internal/http/response"
	"github.com/yungbote/diveops-backend/internal/modules/content/generation"
	pkgerrors "github.com/yungbote/diveops-backend/internal/pkg/errors"
)

const maxBatchLessons = 100

type PodcastGenerator interface {
	Generate(ctx context.Context, lessonID uuid.UUID, source string) (generation.PodcastResult, error)
}

type DeckGenerator interface {
	Generate(ctx context.Context, lessonID uuid.UUID, source string) (generation.DeckResult, error)
	GenerateBatch(ctx context.Context, lessonIDs []uuid.UUID, source string) generation.BatchResult
}

type GenerationLogLister interface {
	ListByLessonID(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) ([]*types.GenerationLog, error)
}

type ContentHandler struct {
	podcasts PodcastGenerator
	decks    DeckGenerator
	logs     GenerationLogLister
}

func NewContentHandler(podcasts PodcastGenerator, decks DeckGenerator, logs GenerationLogLister) *ContentHandler {
	return &ContentHandler{podcasts: podcasts, decks: decks, logs: logs}
}

// POST /api/lessons/:id/podcast
func (h *ContentHandler) GeneratePodcast(c *gin.Context) {
	lessonID, ok := lessonParam(c)
	if !ok {
		return
	}
	res, err := h.podcasts.Generate(c.Request.Context(), lessonID, generation.SourceManual)
	if err != nil {
		_ = c.Error(err)
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"podcast": res})
}

// POST /api/lessons/:id/pdf
func (h *ContentHandler) GeneratePDF(c *gin.Context) {
	lessonID, ok := lessonParam(c)
	if !ok {
		return
	}
	res, err := h.decks.Generate(c.Request.Context(), lessonID, generation.SourceManual)
	if err != nil {
		_ = c.Error(err)
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"pdf": res})
}

type batchRequest struct {
	LessonIDs []string `json:"lessonIds"`
}

// POST /api/pdf/batch
func (h *ContentHandler) GeneratePDFBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(req.LessonIDs) == 0 || len(req.LessonIDs) > maxBatchLessons {
		response.RespondError(c, http.StatusBadRequest, "invalid_request",
			fmt.Errorf("lessonIds must contain 1 to %d ids", maxBatchLessons))
		return
	}
	ids := make([]uuid.UUID, 0, len(req.LessonIDs))
	for _, raw := range req.LessonIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid lesson id %q", raw))
			return
		}
		ids = append(ids, id)
	}
	response.RespondOK(c, h.decks.GenerateBatch(c.Request.Context(), ids, generation.SourceBatch))
}

// GET /api/lessons/:id/generation-logs
func (h *ContentHandler) ListGenerationLogs(c *gin.Context) {
	lessonID, ok := lessonParam(c)
	if !ok {
		return
	}
	logs, err := h.logs.ListByLessonID(c.Request.Context(), nil, lessonID)
	if err != nil {
		err = pkgerrors.Infrastructure("list generation logs", err)
		_ = c.Error(err)
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"logs": logs})
}

func lessonParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid lesson id"))
		return uuid.Nil, false
	}
	return id, true
}
