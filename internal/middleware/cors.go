package middleware

import (
	cors "github.com/AdhityaRamadhanus/fasthttpcors"
	"github.com/valyala/fasthttp"
)

// CORS answers preflight requests and sets the allow-origin header for the
// configured dashboard origins. "*" allows any origin. Preflight requests
// never reach the wrapped handler, so they are not subject to auth.
func CORS(allowed []string) Middleware {
	handler := cors.NewCorsHandler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{
			fasthttp.MethodGet,
			fasthttp.MethodPost,
			fasthttp.MethodPut,
			fasthttp.MethodDelete,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		AllowMaxAge:    600,
	})
	return handler.CorsMiddleware
}

// Chain applies middlewares so that the first one is outermost.
func Chain(h fasthttp.RequestHandler, mws ...Middleware) fasthttp.RequestHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
