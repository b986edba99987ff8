package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/botfleet/api/transport"
	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/pkg/httpcontext"
	workspaceUC "github.com/fastygo/botfleet/usecase/workspace"
)

// MediaFormField is the multipart field carrying an upload.
const MediaFormField = "file"

type MediaHandler struct {
	baseHandler
	workspace *workspaceUC.UseCase
}

func NewMediaHandler(workspace *workspaceUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		baseHandler: newBaseHandler(adapter, logger),
		workspace:   workspace,
	}
}

// @Summary Upload a media file (multipart field "file")
// @Tags media
// @Router /api/v2/accounts/{id}/media/upload [post]
func (h *MediaHandler) Upload(ctx *fasthttp.RequestCtx) {
	id := pathParam(ctx, "id")
	header, err := ctx.FormFile(MediaFormField)
	if err != nil {
		h.respondError(ctx, domain.OpError("upload-media", id, domain.WrapError(domain.ErrCodeInvalid, "multipart field \"file\" is required", err)))
		return
	}
	file, err := header.Open()
	if err != nil {
		h.respondError(ctx, domain.OpError("upload-media", id, err))
		return
	}
	defer file.Close()

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	stored, err := h.workspace.UploadMedia(stdCtx, id, file, header.Header.Get("Content-Type"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, map[string]any{"filename": stored.Name, "file": stored})
}

// @Summary List media files
// @Tags media
// @Router /api/v2/accounts/{id}/media [get]
func (h *MediaHandler) List(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	files, err := h.workspace.ListMedia(stdCtx, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]any{"files": files})
}

// @Summary Download one media file
// @Tags media
// @Router /api/v2/accounts/{id}/media/{filename} [get]
func (h *MediaHandler) Serve(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	path, _, err := h.workspace.MediaPath(stdCtx, pathParam(ctx, "id"), pathParam(ctx, "filename"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	fasthttp.ServeFile(ctx, path)
}

// @Summary Delete a media file and unassign it everywhere
// @Tags media
// @Router /api/v2/accounts/{id}/media/{filename} [delete]
func (h *MediaHandler) Delete(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	cleared, err := h.workspace.DeleteMedia(stdCtx, pathParam(ctx, "id"), pathParam(ctx, "filename"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]int{"templates_cleared": cleared})
}

// @Summary Assign or clear a promo template's media
// @Tags media
// @Router /api/v2/accounts/{id}/templates/assign-media [post]
func (h *MediaHandler) Assign(ctx *fasthttp.RequestCtx) {
	id := pathParam(ctx, "id")
	var req transport.AssignMediaRequest
	if !h.decodeJSON(ctx, &req) {
		return
	}
	if req.TemplateIndex == nil {
		h.respondError(ctx, domain.OpError("assign-media", id, domain.WrapError(domain.ErrCodeInvalid, "template_index is required", nil)))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	templates, err := h.workspace.AssignMedia(stdCtx, id, *req.TemplateIndex, req.MediaFile)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, templates)
}
