package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/botfleet/api/transport"
	"github.com/fastygo/botfleet/domain"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   domain.ErrorCode
	}{
		{domain.ErrAccountNotFound, http.StatusNotFound, domain.ErrCodeNotFound},
		{domain.OpError("delete", "acc1", domain.ErrStillEnabled), http.StatusConflict, domain.ErrCodeConflict},
		{domain.ErrInvalidCookies, http.StatusBadRequest, domain.ErrCodeInvalid},
		{domain.ErrStopTimeout, http.StatusGatewayTimeout, domain.ErrCodeTimeout},
		{domain.ErrWorkerUnavailable, http.StatusServiceUnavailable, domain.ErrCodeUnavailable},
		{domain.ErrUnauthorized, http.StatusUnauthorized, domain.ErrCodeUnauthorized},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, domain.ErrCodeTimeout},
		{errors.New("disk on fire"), http.StatusInternalServerError, domain.ErrCodeInternal},
	}
	for _, tc := range cases {
		status, code := mapError(tc.err)
		require.Equal(t, tc.status, status, tc.err.Error())
		require.Equal(t, string(tc.code), code, tc.err.Error())
	}
}

func TestRespondErrorCarriesContext(t *testing.T) {
	h := newBaseHandler(nil, nil)
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.Set("X-Request-ID", "req-1")

	h.respondError(&ctx, domain.OpError("start", "acc1", domain.ErrMissingCredentials))

	require.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
	var env transport.Envelope
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &env))
	require.False(t, env.Success)
	require.Equal(t, string(domain.ErrCodeInvalid), env.Code)
	require.Equal(t, "start acc1: account has no session cookies", env.Error)
	require.Equal(t, &transport.ErrorMeta{AccountID: "acc1", Operation: "start", RequestID: "req-1"}, env.Meta)
}

func TestRespondSuccessEnvelope(t *testing.T) {
	h := newBaseHandler(nil, nil)
	var ctx fasthttp.RequestCtx

	h.respondSuccess(&ctx, http.StatusCreated, map[string]string{"id": "acc1"})

	require.Equal(t, http.StatusCreated, ctx.Response.StatusCode())
	require.JSONEq(t, `{"success":true,"data":{"id":"acc1"}}`, string(ctx.Response.Body()))
}

func TestQueryInt(t *testing.T) {
	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/logs/acc1?limit=5&days=x")

	require.Equal(t, 5, queryInt(&ctx, "limit", 50))
	require.Equal(t, 7, queryInt(&ctx, "days", 7))
	require.Equal(t, 20, queryInt(&ctx, "missing", 20))
}
