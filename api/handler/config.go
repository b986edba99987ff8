package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/botfleet/pkg/httpcontext"
	workspaceUC "github.com/fastygo/botfleet/usecase/workspace"
)

// ConfigHandler serves the workspace documents. Writes replace the whole
// document.
type ConfigHandler struct {
	baseHandler
	workspace *workspaceUC.UseCase
}

func NewConfigHandler(workspace *workspaceUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{
		baseHandler: newBaseHandler(adapter, logger),
		workspace:   workspace,
	}
}

// @Summary Read settings, templates and keywords
// @Tags config
// @Router /api/v2/config/{id} [get]
func (h *ConfigHandler) Get(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	docs, err := h.workspace.Documents(stdCtx, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, docs)
}

// @Summary Replace settings
// @Tags config
// @Router /api/v2/config/{id}/settings [post]
func (h *ConfigHandler) Settings(ctx *fasthttp.RequestCtx) {
	h.replace(ctx, func(c context.Context, id string, raw []byte) (any, error) {
		return h.workspace.ReplaceSettings(c, id, raw)
	})
}

// @Summary Replace templates
// @Tags config
// @Router /api/v2/config/{id}/templates [post]
func (h *ConfigHandler) Templates(ctx *fasthttp.RequestCtx) {
	h.replace(ctx, func(c context.Context, id string, raw []byte) (any, error) {
		return h.workspace.ReplaceTemplates(c, id, raw)
	})
}

// @Summary Replace keywords
// @Tags config
// @Router /api/v2/config/{id}/keywords [post]
func (h *ConfigHandler) Keywords(ctx *fasthttp.RequestCtx) {
	h.replace(ctx, func(c context.Context, id string, raw []byte) (any, error) {
		return h.workspace.ReplaceKeywords(c, id, raw)
	})
}

func (h *ConfigHandler) replace(ctx *fasthttp.RequestCtx, write func(context.Context, string, []byte) (any, error)) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	// the body is copied; fasthttp reuses its buffer after the handler returns
	raw := append([]byte(nil), ctx.PostBody()...)
	doc, err := write(stdCtx, pathParam(ctx, "id"), raw)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, doc)
}
