package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/diveops-backend/internal/http/response"
	"github.com/yungbote/diveops-backend/internal/jobs/scheduler"
	"github.com/yungbote/diveops-backend/internal/modules/integrity"
)

type AuditRunner interface {
	RunNow(ctx context.Context, opts integrity.Options) (integrity.Summary, error)
	Last() (integrity.Summary, bool)
}

type IntegrityHandler struct {
	audits AuditRunner
}

func NewIntegrityHandler(audits AuditRunner) *IntegrityHandler {
	return &IntegrityHandler{audits: audits}
}

// POST /api/integrity/audit
func (h *IntegrityHandler) RunAudit(c *gin.Context) {
	var opts integrity.Options
	if err := c.ShouldBindJSON(&opts); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	opts.Trigger = integrity.TriggerManual

	summary, err := h.audits.RunNow(c.Request.Context(), opts)
	if errors.Is(err, scheduler.ErrAuditInProgress) {
		response.RespondError(c, http.StatusConflict, "audit_in_progress", err)
		return
	}
	if err != nil {
		_ = c.Error(err)
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, summary)
}

// GET /api/integrity/audit/last
func (h *IntegrityHandler) LastAudit(c *gin.Context) {
	summary, ok := h.audits.Last()
	if !ok {
		response.RespondError(c, http.StatusNotFound, "not_found", errors.New("no audit has completed yet"))
		return
	}
	response.RespondOK(c, summary)
}
