package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/botfleet/api/handler"
	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/internal/bot"
	"github.com/fastygo/botfleet/internal/infrastructure/history"
	"github.com/fastygo/botfleet/internal/infrastructure/monitor"
	"github.com/fastygo/botfleet/internal/infrastructure/registry"
	"github.com/fastygo/botfleet/internal/infrastructure/schema"
	"github.com/fastygo/botfleet/internal/infrastructure/workspace"
	"github.com/fastygo/botfleet/internal/middleware"
	"github.com/fastygo/botfleet/internal/supervisor"
	"github.com/fastygo/botfleet/pkg/httpcontext"
	accountUC "github.com/fastygo/botfleet/usecase/account"
	auditUC "github.com/fastygo/botfleet/usecase/audit"
	fleetUC "github.com/fastygo/botfleet/usecase/fleet"
	historyUC "github.com/fastygo/botfleet/usecase/history"
	workspaceUC "github.com/fastygo/botfleet/usecase/workspace"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")

type auditLog struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *auditLog) Record(_ context.Context, e domain.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *auditLog) last() domain.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.events[len(a.events)-1]
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Meta    struct {
		AccountID string `json:"account_id"`
		Operation string `json:"operation"`
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

type testAPI struct {
	t       *testing.T
	handler fasthttp.RequestHandler
	audit   *auditLog
	token   string
}

func newTestAPI(t *testing.T, secret string) *testAPI {
	t.Helper()
	dir := t.TempDir()

	accounts, err := registry.Open(filepath.Join(dir, "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = accounts.Close() })

	store, err := workspace.New(workspace.Options{Root: filepath.Join(dir, "accounts")}, nil)
	require.NoError(t, err)
	validator, err := schema.NewValidator()
	require.NoError(t, err)
	histories := history.NewRegistry(store.HistoryPath, nil)
	t.Cleanup(func() { _ = histories.CloseAll(context.Background()) })

	runner := bot.NewRunner(store, histories, 50*time.Millisecond, nil)
	sup, err := supervisor.New(accounts, supervisor.NewTaskLauncher(runner.Run), supervisor.Options{
		StartTimeout: 2 * time.Second,
		StopTimeout:  2 * time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sup.Shutdown(context.Background()) })

	audit := &auditLog{}
	fleet := fleetUC.New(sup, audit, nil)
	ws := workspaceUC.New(accounts, store, validator, audit, nil)
	adapter := httpcontext.NewAdapter(5 * time.Second)
	mon := monitor.New(nil, nil, nil, time.Hour, nil)

	r := New(Handlers{
		Account: apiHandler.NewAccountHandler(accountUC.New(accounts, store, sup, histories, audit, nil), ws, adapter, nil),
		Fleet:   apiHandler.NewFleetHandler(fleet, 10*time.Second, adapter, nil),
		Config:  apiHandler.NewConfigHandler(ws, adapter, nil),
		Media:   apiHandler.NewMediaHandler(ws, adapter, nil),
		History: apiHandler.NewHistoryHandler(historyUC.New(accounts, histories, nil), adapter, nil),
		Audit:   apiHandler.NewAuditHandler(auditUC.New(nil), adapter, nil),
		Health:  apiHandler.NewHealthHandler(mon, fleet, adapter, nil),
	}, middleware.JWTAuth(secret, "botfleet", nil))

	return &testAPI{
		t:       t,
		handler: middleware.Chain(r.Handler, middleware.CORS([]string{"https://dash.example"})),
		audit:   audit,
	}
}

func (a *testAPI) do(method, uri string, body []byte, contentType string) (int, apiEnvelope, *fasthttp.RequestCtx) {
	a.t.Helper()
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if body != nil {
		ctx.Request.SetBody(body)
		if contentType == "" {
			contentType = "application/json"
		}
		ctx.Request.Header.SetContentType(contentType)
	}
	if a.token != "" {
		ctx.Request.Header.Set("Authorization", "Bearer "+a.token)
	}
	a.handler(&ctx)

	var env apiEnvelope
	if bytes.HasPrefix(ctx.Response.Header.ContentType(), []byte("application/json")) {
		require.NoError(a.t, json.Unmarshal(ctx.Response.Body(), &env), string(ctx.Response.Body()))
	}
	return ctx.Response.StatusCode(), env, &ctx
}

func (a *testAPI) json(method, uri string, payload any) (int, apiEnvelope) {
	a.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(a.t, err)
	status, env, _ := a.do(method, uri, raw, "")
	return status, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func (a *testAPI) state(id string) domain.WorkerStatus {
	a.t.Helper()
	status, env, _ := a.do(fasthttp.MethodGet, "/api/v2/multi/status", nil, "")
	require.Equal(a.t, fasthttp.StatusOK, status)
	return decode[domain.FleetSummary](a.t, env.Data).Statuses[id]
}

func TestHealthIsOpenAndHealthyWithoutBackends(t *testing.T) {
	api := newTestAPI(t, "s3cret")

	status, env, _ := api.do(fasthttp.MethodGet, "/health", nil, "")
	require.Equal(t, fasthttp.StatusOK, status)
	require.True(t, env.Success)

	payload := decode[map[string]any](t, env.Data)
	services := payload["services"].(map[string]any)
	require.Equal(t, monitor.StateDisabled, services["postgresql"])
	require.Contains(t, payload, "workers")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t, "s3cret")

	status, env, _ := api.do(fasthttp.MethodGet, "/api/v2/accounts", nil, "")
	require.Equal(t, fasthttp.StatusUnauthorized, status)
	require.False(t, env.Success)
	require.Equal(t, string(domain.ErrCodeUnauthorized), env.Code)

	api.token = "not-a-jwt"
	status, _, _ = api.do(fasthttp.MethodGet, "/api/v2/accounts", nil, "")
	require.Equal(t, fasthttp.StatusUnauthorized, status)

	wrongIssuer := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ops", "iss": "someone-else"})
	api.token, _ = wrongIssuer.SignedString([]byte("s3cret"))
	status, _, _ = api.do(fasthttp.MethodGet, "/api/v2/accounts", nil, "")
	require.Equal(t, fasthttp.StatusUnauthorized, status)
}

func TestActorFromTokenReachesAudit(t *testing.T) {
	api := newTestAPI(t, "s3cret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ops", "iss": "botfleet"})
	signed, err := token.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	api.token = signed

	status, env := api.json(fasthttp.MethodPost, "/api/v2/accounts/create", map[string]any{"id": "acc1"})
	require.Equal(t, fasthttp.StatusCreated, status, env.Error)

	event := api.audit.last()
	require.Equal(t, domain.AuditAccountCreate, event.Action)
	require.Equal(t, "ops", event.Actor)
	require.NotEmpty(t, event.RequestID)
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, "s3cret")

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(fasthttp.MethodOptions)
	ctx.Request.SetRequestURI("/api/v2/accounts")
	ctx.Request.Header.Set("Origin", "https://dash.example")
	ctx.Request.Header.Set("Access-Control-Request-Method", fasthttp.MethodPost)
	api.handler(&ctx)

	// answered by the CORS layer, never by the token check
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	require.Equal(t, "https://dash.example", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))

	var other fasthttp.RequestCtx
	other.Request.Header.SetMethod(fasthttp.MethodGet)
	other.Request.SetRequestURI("/health")
	other.Request.Header.Set("Origin", "https://evil.example")
	api.handler(&other)
	require.Empty(t, other.Response.Header.Peek("Access-Control-Allow-Origin"))
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t, "")

	status, env := api.json(fasthttp.MethodPost, "/api/v2/accounts/create", map[string]any{"id": "acc1", "username": "shop"})
	require.Equal(t, fasthttp.StatusCreated, status, env.Error)
	view := decode[accountUC.View](t, env.Data)
	require.Equal(t, "acc1", view.Name)
	require.True(t, view.Enabled)
	require.True(t, view.FolderExists)
	require.False(t, view.CookiesExist)

	status, env = api.json(fasthttp.MethodPost, "/api/v2/accounts/create", map[string]any{"id": "acc1"})
	require.Equal(t, fasthttp.StatusConflict, status)
	require.Equal(t, string(domain.ErrCodeConflict), env.Code)
	require.Equal(t, "acc1", env.Meta.AccountID)
	require.Equal(t, "create", env.Meta.Operation)
	require.NotEmpty(t, env.Meta.RequestID)

	status, env = api.json(fasthttp.MethodPost, "/api/v2/accounts/create", map[string]any{"id": "../etc"})
	require.Equal(t, fasthttp.StatusBadRequest, status)
	require.Equal(t, string(domain.ErrCodeInvalid), env.Code)

	status, env, _ = api.do(fasthttp.MethodGet, "/api/v2/accounts", nil, "")
	require.Equal(t, fasthttp.StatusOK, status)
	listing := decode[accountUC.Listing](t, env.Data)
	require.Equal(t, 1, listing.Total)
	require.Equal(t, 1, listing.Enabled)

	status, env, _ = api.do(fasthttp.MethodGet, "/api/v2/accounts/missing", nil, "")
	require.Equal(t, fasthttp.StatusNotFound, status)
	require.Equal(t, string(domain.ErrCodeNotFound), env.Code)

	status, env = api.json(fasthttp.MethodPut, "/api/v2/accounts/acc1/update", map[string]any{"id": "acc2", "name": "x"})
	require.Equal(t, fasthttp.StatusBadRequest, status)
	require.Contains(t, env.Error, "cannot be changed")

	status, env = api.json(fasthttp.MethodPut, "/api/v2/accounts/acc1/update", map[string]any{"name": "Shop One"})
	require.Equal(t, fasthttp.StatusOK, status, env.Error)
	require.Equal(t, "Shop One", decode[accountUC.View](t, env.Data).Name)

	status, _, _ = api.do(fasthttp.MethodPut, "/api/v2/accounts/acc1/update", []byte("{"), "")
	require.Equal(t, fasthttp.StatusBadRequest, status)

	// an enabled account cannot be deleted
	status, env, _ = api.do(fasthttp.MethodDelete, "/api/v2/accounts/acc1/delete", nil, "")
	require.Equal(t, fasthttp.StatusConflict, status)
	require.Equal(t, string(domain.ErrCodeConflict), env.Code)

	status, env = api.json(fasthttp.MethodPost, "/api/v2/accounts/acc1/toggle", map[string]any{})
	require.Equal(t, fasthttp.StatusBadRequest, status)

	status, env = api.json(fasthttp.MethodPost, "/api/v2/accounts/acc1/toggle", map[string]any{"enabled": false})
	require.Equal(t, fasthttp.StatusOK, status, env.Error)
	require.False(t, decode[accountUC.View](t, env.Data).Enabled)

	status, env, _ = api.do(fasthttp.MethodDelete, "/api/v2/accounts/acc1/delete", nil, "")
	require.Equal(t, fasthttp.StatusOK, status, env.Error)
	require.NotEmpty(t, decode[map[string]string](t, env.Data)["backup"])

	status, _, _ = api.do(fasthttp.MethodGet, "/api/v2/accounts/acc1", nil, "")
	require.Equal(t, fasthttp.StatusNotFound, status)
}

func TestWorkerCommandsOverHTTP(t *testing.T) {
	api := newTestAPI(t, "")
	status, _ := api.json(fasthttp.MethodPost, "/api/v2/accounts/create", map[string]any{"id": "acc1"})
	require.Equal(t, fasthttp.StatusCreated, status)

	// no cookies yet: the worker refuses to start
	status, env, _ := api.do(fasthttp.MethodPost, "/api/v2/multi/accounts/acc1/start", nil, "")
	require.Equal(t, fasthttp.StatusBadRequest, status)
	require.Equal(t, "acc1", env.Meta.AccountID)
	require.Equal(t, domain.RunStateError, api.state("acc1").Status)

	status, _, _ = api.do(fasthttp.MethodGet, "/api/v2/multi/accounts/acc1/errors", nil, "")
	require.Equal(t, fasthttp.StatusOK, status)

	status, env = api.json(fasthttp.MethodPost, "/api/v2/accounts/acc1/cookies/upload", map[string]any{
		"cookies": []map[string]string{{"name": "ct0", "value": "a"}, {"name": "auth_token", "value": "b"}},
	})
	require.Equal(t, fasthttp.StatusOK, status, env.Error)

	status, env = api.json(fasthttp.MethodPost, "/api/v2/accounts/acc1/cookies/upload", map[string]any{"cookies": map[string]string{"ct0": "a"}})
	require.Equal(t, fasthttp.StatusBadRequest, status)

	status, env, _ = api.do(fasthttp.MethodPost, "/api/v2/multi/accounts/acc1/start", nil, "")
	require.Equal(t, fasthttp.StatusOK, status, env.Error)
	st := api.state("acc1")
	require.Equal(t, domain.WorkerRunning, st.State)
	require.Equal(t, domain.RunStateRunning, st.Status)

	status, env, _ = api.do(fasthttp.MethodPost, "/api/v2/multi/accounts/acc1/restart", nil, "")
	require.Equal(t, fasthttp.StatusOK, status, env.Error)
	require.Equal(t, domain.WorkerRunning, api.state("acc1").State)

	status, env, _ = api.do(fasthttp.MethodPost, "/api/v2/multi/stop-all", nil, "")
	require.Equal(t, fasthttp.StatusOK, status, env.Error)
	report := decode[fleetUC.BatchReport](t, env.Data)
	require.Equal(t, 1, report.Succeeded)
	require.Equal(t, domain.WorkerStopped, api.state("acc1").State)

	status, env, _ = api.do(fasthttp.MethodPost, "/api/v2/multi/start-all", nil, "")
	require.Equal(t, fasthttp.StatusOK, status, env.Error)
	require.Equal(t, domain.WorkerRunning, api.state("acc1").State)

	status, env, _ = api.do(fasthttp.MethodPost, "/api/v2/multi/accounts/acc1/stop", nil, "")
	require.Equal(t, fasthttp.StatusOK, status, env.Error)

	status, env, _ = api.do(fasthttp.MethodPost, "/api/v2/multi/accounts/ghost/start", nil, "")
	require.Equal(t, fasthttp.StatusNotFound, status)

	status, env, _ = api.do(fasthttp.MethodGet, "/api/v2/multi/status?wait=abc", nil, "")
	require.Equal(t, fasthttp.StatusBadRequest, status)

	// the worker recorded its lifecycle in the account history
	status, env, _ = api.do(fasthttp.MethodGet, "/api/v2/logs/acc1", nil, "")
	require.Equal(t, fasthttp.StatusOK, status, env.Error)
	require.NotEqual(t, "null", string(env.Data))
}

func TestStatusLongPollReturnsOnChange(t *testing.T) {
	api := newTestAPI(t, "")
	status, _ := api.json(fasthttp.MethodPost, "/api/v2/accounts/create", map[string]any{"id": "acc1"})
	require.Equal(t, fasthttp.StatusCreated, status)

	_, env, _ := api.do(fasthttp.MethodGet, "/api/v2/multi/status", nil, "")
	version := decode[domain.FleetSummary](t, env.Data).Version

	done := make(chan domain.FleetSummary, 1)
	go func() {
		var ctx fasthttp.RequestCtx
		ctx.Request.Header.SetMethod(fasthttp.MethodGet)
		ctx.Request.SetRequestURI("/api/v2/multi/status?wait=5s&since=" + jsonNumber(version))
		api.handler(&ctx)
		var out apiEnvelope
		if json.Unmarshal(ctx.Response.Body(), &out) == nil {
			var summary domain.FleetSummary
			_ = json.Unmarshal(out.Data, &summary)
			done <- summary
		}
	}()

	time.Sleep(50 * time.Millisecond)
	status, _, _ = api.do(fasthttp.MethodPost, "/api/v2/multi/accounts/acc1/start", nil, "")
	require.Equal(t, fasthttp.StatusBadRequest, status)

	select {
	case summary := <-done:
		require.Greater(t, summary.Version, version)
	case <-time.After(4 * time.Second):
		t.Fatal("long poll did not return after a status change")
	}
}

func jsonNumber(v uint64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

func TestConfigDocumentsOverHTTP(t *testing.T) {
	api := newTestAPI(t, "")
	status, _ := api.json(fasthttp.MethodPost, "/api/v2/accounts/create", map[string]any{"id": "acc1"})
	require.Equal(t, fasthttp.StatusCreated, status)

	status, env, _ := api.do(fasthttp.MethodGet, "/api/v2/config/acc1", nil, "")
	require.Equal(t, fasthttp.StatusOK, status, env.Error)
	docs := decode[domain.Documents](t, env.Data)
	require.True(t, docs.Settings.Schedule.Enabled)

	status, env = api.json(fasthttp.MethodPost, "/api/v2/config/acc1/settings", map[string]any{
		"schedule": map[string]any{"slots": map[string]any{"morning": map[string]any{"time": "25:00"}}},
	})
	require.Equal(t, fasthttp.StatusBadRequest, status)
	require.Equal(t, string(domain.ErrCodeInvalid), env.Code)

	status, env = api.json(fasthttp.MethodPost, "/api/v2/config/acc1/settings", map[string]any{
		"business": map[string]any{"product": "tea", "wa_number": "+62 811", "wa_link": "https://wa.me/62811"},
	})
	require.Equal(t, fasthttp.StatusOK, status, env.Error)

	status, env, _ = api.do(fasthttp.MethodGet, "/api/v2/accounts/acc1", nil, "")
	require.Equal(t, fasthttp.StatusOK, status)
	require.Equal(t, "https://wa.me/62811", decode[accountUC.View](t, env.Data).WALink)

	status, env = api.json(fasthttp.MethodPost, "/api/v2/config/acc1/keywords", map[string][]string{"buy": {"price", "order"}})
	require.Equal(t, fasthttp.StatusOK, status, env.Error)

	status, env = api.json(fasthttp.MethodPost, "/api/v2/config/ghost/keywords", map[string][]string{})
	require.Equal(t, fasthttp.StatusNotFound, status)
}

func multipartBody(t *testing.T, contentType string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="promo.png"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func TestMediaOverHTTP(t *testing.T) {
	api := newTestAPI(t, "")
	status, _ := api.json(fasthttp.MethodPost, "/api/v2/accounts/create", map[string]any{"id": "acc1"})
	require.Equal(t, fasthttp.StatusCreated, status)
	status, env := api.json(fasthttp.MethodPost, "/api/v2/config/acc1/templates", map[string]any{
		"promo_templates": []any{"plain promo", map[string]any{"text": "with media", "media": nil}},
	})
	require.Equal(t, fasthttp.StatusOK, status, env.Error)

	body, ct := multipartBody(t, "application/octet-stream", pngBytes)
	status, env, _ = api.do(fasthttp.MethodPost, "/api/v2/accounts/acc1/media/upload", body, ct)
	require.Equal(t, fasthttp.StatusCreated, status, env.Error)
	uploaded := decode[struct {
		Filename string           `json:"filename"`
		File     domain.MediaFile `json:"file"`
	}](t, env.Data)
	require.Equal(t, domain.MediaImage, uploaded.File.Type)

	body, ct = multipartBody(t, "application/x-msdownload", []byte("MZ\x90\x00"))
	status, env, _ = api.do(fasthttp.MethodPost, "/api/v2/accounts/acc1/media/upload", body, ct)
	require.Equal(t, fasthttp.StatusBadRequest, status)

	status, env, _ = api.do(fasthttp.MethodPost, "/api/v2/accounts/acc1/media/upload", []byte("{}"), "")
	require.Equal(t, fasthttp.StatusBadRequest, status)
	require.Contains(t, env.Error, "file")

	status, env, _ = api.do(fasthttp.MethodGet, "/api/v2/accounts/acc1/media", nil, "")
	require.Equal(t, fasthttp.StatusOK, status)
	files := decode[map[string][]domain.MediaFile](t, env.Data)["files"]
	require.Len(t, files, 1)

	_, _, served := api.do(fasthttp.MethodGet, "/api/v2/accounts/acc1/media/"+uploaded.Filename, nil, "")
	require.Equal(t, fasthttp.StatusOK, served.Response.StatusCode())
	require.Equal(t, pngBytes, served.Response.Body())

	status, env = api.json(fasthttp.MethodPost, "/api/v2/accounts/acc1/templates/assign-media", map[string]any{"template_index": 5, "media_file": uploaded.Filename})
	require.Equal(t, fasthttp.StatusBadRequest, status)

	status, env = api.json(fasthttp.MethodPost, "/api/v2/accounts/acc1/templates/assign-media", map[string]any{"media_file": uploaded.Filename})
	require.Equal(t, fasthttp.StatusBadRequest, status)

	status, env = api.json(fasthttp.MethodPost, "/api/v2/accounts/acc1/templates/assign-media", map[string]any{"template_index": 1, "media_file": uploaded.Filename})
	require.Equal(t, fasthttp.StatusOK, status, env.Error)
	templates := decode[domain.Templates](t, env.Data)
	require.Equal(t, uploaded.Filename, templates.PromoTemplates[1].MediaFile())

	status, env, _ = api.do(fasthttp.MethodDelete, "/api/v2/accounts/acc1/media/"+uploaded.Filename, nil, "")
	require.Equal(t, fasthttp.StatusOK, status, env.Error)
	require.Equal(t, 1, decode[map[string]int](t, env.Data)["templates_cleared"])

	status, env, _ = api.do(fasthttp.MethodGet, "/api/v2/accounts/acc1/media/"+uploaded.Filename, nil, "")
	require.Equal(t, fasthttp.StatusNotFound, status)
}

func TestHistoryOverHTTP(t *testing.T) {
	api := newTestAPI(t, "")
	status, _ := api.json(fasthttp.MethodPost, "/api/v2/accounts/create", map[string]any{"id": "acc1"})
	require.Equal(t, fasthttp.StatusCreated, status)

	status, env := api.json(fasthttp.MethodPost, "/api/v2/conversions/acc1/add", map[string]any{
		"source": "promo", "wa_messages": 4, "confirmed_orders": 2, "revenue": 150.5,
	})
	require.Equal(t, fasthttp.StatusCreated, status, env.Error)

	status, env, _ = api.do(fasthttp.MethodGet, "/api/v2/conversions/acc1?days=7", nil, "")
	require.Equal(t, fasthttp.StatusOK, status, env.Error)
	report := decode[historyUC.ConversionReport](t, env.Data)
	require.Len(t, report.Conversions, 1)

	for _, uri := range []string{"/api/v2/stats/acc1", "/api/v2/tweets/acc1", "/api/v2/logs/acc1?limit=5"} {
		status, env, _ = api.do(fasthttp.MethodGet, uri, nil, "")
		require.Equal(t, fasthttp.StatusOK, status, uri+": "+env.Error)
	}

	status, _, _ = api.do(fasthttp.MethodGet, "/api/v2/stats/ghost", nil, "")
	require.Equal(t, fasthttp.StatusNotFound, status)
}

func TestAuditDisabledWithoutDatabase(t *testing.T) {
	api := newTestAPI(t, "")

	status, env, _ := api.do(fasthttp.MethodGet, "/api/v2/audit", nil, "")
	require.Equal(t, fasthttp.StatusServiceUnavailable, status)
	require.Equal(t, string(domain.ErrCodeUnavailable), env.Code)
}
