package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/botfleet/api/transport"
	"github.com/fastygo/botfleet/internal/infrastructure/monitor"
	"github.com/fastygo/botfleet/pkg/httpcontext"
	fleetUC "github.com/fastygo/botfleet/usecase/fleet"
)

type HealthHandler struct {
	baseHandler
	monitor *monitor.Monitor
	fleet   *fleetUC.UseCase
}

func NewHealthHandler(mon *monitor.Monitor, fleet *fleetUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		fleet:       fleet,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]any{
		"timestamp": time.Now().UTC(),
		"services": map[string]any{
			"postgresql": status.PostgreSQL,
			"redis":      status.Redis,
			"buffer": map[string]any{
				"state": status.Buffer,
				"size":  status.BufferSize,
			},
		},
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()
	if summary, err := h.fleet.Status(stdCtx, 0, 0); err == nil {
		payload["workers"] = map[string]int{
			"total":   summary.TotalAccounts,
			"enabled": summary.EnabledAccounts,
			"running": summary.RunningAccounts,
		}
	} else {
		h.logFor(stdCtx).Warn("fleet status unavailable for health check", zap.Error(err))
	}

	if status.Healthy() {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	env := transport.NewError("DEGRADED", "dependencies unhealthy", nil)
	env.Data = payload
	h.respondJSON(ctx, http.StatusServiceUnavailable, env)
}
