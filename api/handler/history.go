package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/botfleet/api/transport"
	"github.com/fastygo/botfleet/pkg/httpcontext"
	historyUC "github.com/fastygo/botfleet/usecase/history"
)

type HistoryHandler struct {
	baseHandler
	history *historyUC.UseCase
}

func NewHistoryHandler(history *historyUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		baseHandler: newBaseHandler(adapter, logger),
		history:     history,
	}
}

// @Summary Account statistics
// @Tags history
// @Router /api/v2/stats/{id} [get]
func (h *HistoryHandler) Stats(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	stats, err := h.history.Stats(stdCtx, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, stats)
}

// @Summary Recent activity
// @Tags history
// @Router /api/v2/logs/{id} [get]
func (h *HistoryHandler) Logs(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	entries, err := h.history.Activity(stdCtx, pathParam(ctx, "id"), queryInt(ctx, "limit", 50))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]any{"logs": entries})
}

// @Summary Recent tweets
// @Tags history
// @Router /api/v2/tweets/{id} [get]
func (h *HistoryHandler) Tweets(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tweets, err := h.history.Tweets(stdCtx, pathParam(ctx, "id"), queryInt(ctx, "limit", 20))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]any{"tweets": tweets})
}

// @Summary Conversions of the last days
// @Tags history
// @Router /api/v2/conversions/{id} [get]
func (h *HistoryHandler) Conversions(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	report, err := h.history.Conversions(stdCtx, pathParam(ctx, "id"), queryInt(ctx, "days", 7))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, report)
}

// @Summary Record a conversion
// @Tags history
// @Router /api/v2/conversions/{id}/add [post]
func (h *HistoryHandler) AddConversion(ctx *fasthttp.RequestCtx) {
	var req transport.ConversionRequest
	if !h.decodeJSON(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	c, err := h.history.AddConversion(stdCtx, pathParam(ctx, "id"), req.ToDomain())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, c)
}
