package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/botfleet/pkg/httpcontext"
	"github.com/fastygo/botfleet/repository"
	auditUC "github.com/fastygo/botfleet/usecase/audit"
)

type AuditHandler struct {
	baseHandler
	audit *auditUC.UseCase
}

func NewAuditHandler(audit *auditUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		baseHandler: newBaseHandler(adapter, logger),
		audit:       audit,
	}
}

// @Summary Config history
// @Tags audit
// @Router /api/v2/audit [get]
func (h *AuditHandler) List(ctx *fasthttp.RequestCtx) {
	filter := repository.AuditFilter{
		AccountID: string(ctx.QueryArgs().Peek("account_id")),
		Action:    string(ctx.QueryArgs().Peek("action")),
		Limit:     queryInt(ctx, "limit", 50),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	events, err := h.audit.List(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]any{"events": events})
}
