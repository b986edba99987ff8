package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/botfleet/api/handler"
	"github.com/fastygo/botfleet/internal/middleware"
	fleetUC "github.com/fastygo/botfleet/usecase/fleet"
)

// Prefix is the version prefix of the control API.
const Prefix = "/api/v2"

type Handlers struct {
	Account *apiHandler.AccountHandler
	Fleet   *apiHandler.FleetHandler
	Config  *apiHandler.ConfigHandler
	Media   *apiHandler.MediaHandler
	History *apiHandler.HistoryHandler
	Audit   *apiHandler.AuditHandler
	Health  *apiHandler.HealthHandler
}

// New registers the control API. auth guards every route under Prefix;
// /health stays open for probes.
func New(handlers Handlers, auth middleware.Middleware) *router.Router {
	if auth == nil {
		auth = func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	}
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	api := r.Group(Prefix)
	protect := func(h fasthttp.RequestHandler) fasthttp.RequestHandler { return auth(h) }

	// accounts
	api.GET("/accounts", protect(handlers.Account.List))
	api.POST("/accounts/create", protect(handlers.Account.Create))
	api.GET("/accounts/{id}", protect(handlers.Account.Get))
	api.PUT("/accounts/{id}/update", protect(handlers.Account.Update))
	api.POST("/accounts/{id}/toggle", protect(handlers.Account.Toggle))
	api.DELETE("/accounts/{id}/delete", protect(handlers.Account.Delete))
	api.POST("/accounts/{id}/cookies/upload", protect(handlers.Account.UploadCookies))

	// fleet
	api.GET("/multi/status", protect(handlers.Fleet.Status))
	api.POST("/multi/start-all", protect(handlers.Fleet.StartAll))
	api.POST("/multi/stop-all", protect(handlers.Fleet.StopAll))
	api.POST("/multi/accounts/{id}/start", protect(handlers.Fleet.Command(fleetUC.CommandStart)))
	api.POST("/multi/accounts/{id}/stop", protect(handlers.Fleet.Command(fleetUC.CommandStop)))
	api.POST("/multi/accounts/{id}/restart", protect(handlers.Fleet.Command(fleetUC.CommandRestart)))
	api.GET("/multi/accounts/{id}/errors", protect(handlers.Fleet.Errors))

	// config documents
	api.GET("/config/{id}", protect(handlers.Config.Get))
	api.POST("/config/{id}/settings", protect(handlers.Config.Settings))
	api.POST("/config/{id}/templates", protect(handlers.Config.Templates))
	api.POST("/config/{id}/keywords", protect(handlers.Config.Keywords))

	// media
	api.GET("/accounts/{id}/media", protect(handlers.Media.List))
	api.POST("/accounts/{id}/media/upload", protect(handlers.Media.Upload))
	api.GET("/accounts/{id}/media/{filename}", protect(handlers.Media.Serve))
	api.DELETE("/accounts/{id}/media/{filename}", protect(handlers.Media.Delete))
	api.POST("/accounts/{id}/templates/assign-media", protect(handlers.Media.Assign))

	// history
	api.GET("/stats/{id}", protect(handlers.History.Stats))
	api.GET("/logs/{id}", protect(handlers.History.Logs))
	api.GET("/tweets/{id}", protect(handlers.History.Tweets))
	api.GET("/conversions/{id}", protect(handlers.History.Conversions))
	api.POST("/conversions/{id}/add", protect(handlers.History.AddConversion))

	api.GET("/audit", protect(handlers.Audit.List))

	return r
}
