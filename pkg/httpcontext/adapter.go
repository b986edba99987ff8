// Package httpcontext bridges fasthttp requests to context.Context for the
// use-case layer.
package httpcontext

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/botfleet/pkg/logger"
)

const (
	// HeaderRequestID is read from the request and echoed on the response.
	HeaderRequestID = "X-Request-ID"

	// UserValueActor is the fasthttp user value the auth middleware sets.
	UserValueActor = "actor"

	maxRequestIDLen = 128
)

type clientKey struct{}

// Client describes the caller of a request.
type Client struct {
	RemoteAddr string
	UserAgent  string
}

// ClientFrom returns the caller recorded by Attach.
func ClientFrom(ctx context.Context) Client {
	if ctx == nil {
		return Client{}
	}
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}

// Adapter derives a request-scoped context with a deadline, the request id
// and the authenticated actor.
type Adapter struct {
	timeout time.Duration
}

func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{timeout: timeout}
}

// Attach uses the adapter's default deadline.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	return a.AttachWithTimeout(ctx, a.timeout)
}

// AttachWithTimeout is Attach with a per-route deadline; long-poll and bulk
// endpoints need more than the default.
func (a *Adapter) AttachWithTimeout(ctx *fasthttp.RequestCtx, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = a.timeout
	}
	stdCtx, cancel := context.WithTimeout(context.Background(), timeout)
	if ctx == nil {
		return appLogger.ContextWithRequestID(stdCtx, uuid.NewString()), cancel
	}

	reqID := RequestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	ctx.Response.Header.Set(HeaderRequestID, reqID)

	if actor, ok := ctx.UserValue(UserValueActor).(string); ok && actor != "" {
		stdCtx = appLogger.ContextWithActor(stdCtx, actor)
	}
	client := Client{UserAgent: string(ctx.Request.Header.UserAgent())}
	if addr := ctx.RemoteAddr(); addr != nil {
		client.RemoteAddr = addr.String()
	}
	return context.WithValue(stdCtx, clientKey{}, client), cancel
}

// RequestID returns the id already assigned to this request, the caller's
// X-Request-ID when it is usable, or a fresh UUID. The choice is cached on
// the request so every Attach of one request agrees.
func RequestID(ctx *fasthttp.RequestCtx) string {
	if id, ok := ctx.UserValue(HeaderRequestID).(string); ok && id != "" {
		return id
	}
	id := string(ctx.Request.Header.Peek(HeaderRequestID))
	if !usableRequestID(id) {
		id = uuid.NewString()
	}
	ctx.SetUserValue(HeaderRequestID, id)
	return id
}

func usableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}
