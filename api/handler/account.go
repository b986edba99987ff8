package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/botfleet/api/transport"
	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/pkg/httpcontext"
	accountUC "github.com/fastygo/botfleet/usecase/account"
	workspaceUC "github.com/fastygo/botfleet/usecase/workspace"
)

type AccountHandler struct {
	baseHandler
	accounts  *accountUC.UseCase
	workspace *workspaceUC.UseCase
}

func NewAccountHandler(accounts *accountUC.UseCase, workspace *workspaceUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		baseHandler: newBaseHandler(adapter, logger),
		accounts:    accounts,
		workspace:   workspace,
	}
}

// @Summary List accounts
// @Tags accounts
// @Router /api/v2/accounts [get]
func (h *AccountHandler) List(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	listing, err := h.accounts.List(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, listing)
}

// @Summary Get account
// @Tags accounts
// @Router /api/v2/accounts/{id} [get]
func (h *AccountHandler) Get(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	view, err := h.accounts.Get(stdCtx, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, view)
}

// @Summary Create account
// @Tags accounts
// @Router /api/v2/accounts/create [post]
func (h *AccountHandler) Create(ctx *fasthttp.RequestCtx) {
	var req transport.CreateAccountRequest
	if !h.decodeJSON(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	view, err := h.accounts.Create(stdCtx, req.ToDomain())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, view)
}

// @Summary Update account
// @Tags accounts
// @Router /api/v2/accounts/{id}/update [put]
func (h *AccountHandler) Update(ctx *fasthttp.RequestCtx) {
	id := pathParam(ctx, "id")
	var req transport.UpdateAccountRequest
	if !h.decodeJSON(ctx, &req) {
		return
	}
	if req.ID != nil && *req.ID != id {
		h.respondError(ctx, domain.OpError("update", id, domain.ErrImmutableID))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	view, err := h.accounts.Update(stdCtx, id, req.AccountPatch)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, view)
}

// @Summary Enable or disable account
// @Tags accounts
// @Router /api/v2/accounts/{id}/toggle [post]
func (h *AccountHandler) Toggle(ctx *fasthttp.RequestCtx) {
	id := pathParam(ctx, "id")
	var req transport.ToggleRequest
	if !h.decodeJSON(ctx, &req) {
		return
	}
	if req.Enabled == nil {
		h.respondError(ctx, domain.OpError("toggle", id, domain.ErrInvalidPayload))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	view, err := h.accounts.SetEnabled(stdCtx, id, *req.Enabled)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, view)
}

// @Summary Delete account
// @Tags accounts
// @Router /api/v2/accounts/{id}/delete [delete]
func (h *AccountHandler) Delete(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	backup, err := h.accounts.Delete(stdCtx, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"backup": backup})
}

// @Summary Upload session cookies
// @Tags accounts
// @Router /api/v2/accounts/{id}/cookies/upload [post]
func (h *AccountHandler) UploadCookies(ctx *fasthttp.RequestCtx) {
	id := pathParam(ctx, "id")
	var req transport.CookiesRequest
	if !h.decodeJSON(ctx, &req) {
		return
	}
	if len(req.Cookies) == 0 {
		h.respondError(ctx, domain.OpError("cookies", id, domain.ErrInvalidCookies))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.workspace.UploadCookies(stdCtx, id, req.Cookies); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.logFor(stdCtx).Info("cookies uploaded", zap.String("account_id", id))
	h.respondSuccess(ctx, http.StatusOK, map[string]bool{"cookies_exist": true})
}
