package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/pkg/httpcontext"
	fleetUC "github.com/fastygo/botfleet/usecase/fleet"
)

type FleetHandler struct {
	baseHandler
	fleet        *fleetUC.UseCase
	batchTimeout time.Duration
}

// NewFleetHandler builds the supervisor endpoints. batchTimeout bounds the
// start-all and stop-all requests, which outlive the default deadline.
func NewFleetHandler(fleet *fleetUC.UseCase, batchTimeout time.Duration, adapter *httpcontext.Adapter, logger *zap.Logger) *FleetHandler {
	return &FleetHandler{
		baseHandler:  newBaseHandler(adapter, logger),
		fleet:        fleet,
		batchTimeout: batchTimeout,
	}
}

// @Summary Fleet status, optionally long-polled with since and wait
// @Tags fleet
// @Router /api/v2/multi/status [get]
func (h *FleetHandler) Status(ctx *fasthttp.RequestCtx) {
	var since uint64
	if raw := string(ctx.QueryArgs().Peek("since")); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.respondError(ctx, domain.WrapError(domain.ErrCodeInvalid, "since must be a status version", err))
			return
		}
		since = v
	}
	var wait time.Duration
	if raw := string(ctx.QueryArgs().Peek("wait")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			secs, aErr := strconv.Atoi(raw)
			if aErr != nil {
				h.respondError(ctx, domain.WrapError(domain.ErrCodeInvalid, "wait must be a duration", err))
				return
			}
			d = time.Duration(secs) * time.Second
		}
		wait = min(d, fleetUC.MaxWait)
	}

	stdCtx, cancel := h.requestContextWithTimeout(ctx, wait+10*time.Second)
	defer cancel()

	summary, err := h.fleet.Status(stdCtx, since, wait)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, summary)
}

// @Summary Start every enabled account
// @Tags fleet
// @Router /api/v2/multi/start-all [post]
func (h *FleetHandler) StartAll(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContextWithTimeout(ctx, h.batchTimeout)
	defer cancel()

	report, err := h.fleet.StartAll(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, report)
}

// @Summary Stop every enabled account
// @Tags fleet
// @Router /api/v2/multi/stop-all [post]
func (h *FleetHandler) StopAll(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContextWithTimeout(ctx, h.batchTimeout)
	defer cancel()

	report, err := h.fleet.StopAll(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, report)
}

// Command returns the handler of one worker command.
//
// @Summary Start, stop or restart one account's worker
// @Tags fleet
// @Router /api/v2/multi/accounts/{id}/{command} [post]
func (h *FleetHandler) Command(command string) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id := pathParam(ctx, "id")
		stdCtx, cancel := h.requestContext(ctx)
		defer cancel()

		if err := h.fleet.Execute(stdCtx, command, id); err != nil {
			h.respondError(ctx, err)
			return
		}
		h.respondSuccess(ctx, http.StatusOK, map[string]string{"account_id": id, "command": command})
	}
}

// @Summary Recent worker errors
// @Tags fleet
// @Router /api/v2/multi/accounts/{id}/errors [get]
func (h *FleetHandler) Errors(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	errs, err := h.fleet.Errors(stdCtx, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]any{"errors": errs})
}
