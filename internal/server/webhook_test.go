package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paypiece/internal/engine"
	"paypiece/internal/onlinepay"
	"paypiece/internal/plugin"
	"paypiece/internal/plugin/builtin"
	"paypiece/internal/types"
)

type fakeUpstream struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func newFakeUpstream(t *testing.T, status int, body string) *fakeUpstream {
	t.Helper()
	u := &fakeUpstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.paths = append(u.paths, r.URL.Path)
		u.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(u.Close)
	return u
}

func newTestEngine(t *testing.T, upstreamURL string) *engine.Engine {
	t.Helper()
	registry := plugin.NewRegistry()
	require.NoError(t, registry.Register(onlinepay.NewPiece(nil)))
	require.NoError(t, registry.Register(builtin.NewLogPiece(nil)))
	require.NoError(t, registry.Connect("onlinepay", plugin.Connection{
		onlinepay.FieldUserID:          "u",
		onlinepay.FieldAPIKey:          "k",
		onlinepay.FieldOrgID:           "o",
		onlinepay.FieldPaymentContract: "pc",
		onlinepay.FieldThreeDSecure:    "tds",
		onlinepay.FieldEnvironment:     upstreamURL,
	}))
	return engine.NewEngine(registry, nil)
}

func testFlows() map[string]*types.FlowDef {
	return map[string]*types.FlowDef{
		"checkout-events": {
			Name:    "checkout-events",
			Trigger: &types.TriggerRef{Piece: "onlinepay", Name: "onlinepay_webhook"},
			Steps: []types.StepDef{
				{Name: "fetch", Piece: "onlinepay", Action: "get_checkout", Input: map[string]any{"id": "${{ trigger.id }}"}},
				{Name: "note", Piece: "log", Action: "print", Input: map[string]any{"message": "checkout ${{ steps.fetch.output.status }}"}},
			},
		},
		"custom-path": {
			Name:    "custom-path",
			Trigger: &types.TriggerRef{Piece: "onlinepay", Name: "onlinepay_webhook", Path: "/hooks/raw"},
			Steps: []types.StepDef{
				{Name: "echo", Piece: "log", Action: "print", Input: map[string]any{"message": "${{ trigger }}"}},
			},
		},
		"manual": {
			Name:  "manual",
			Steps: []types.StepDef{{Name: "p", Piece: "log", Action: "print", Input: map[string]any{"message": "hi"}}},
		},
	}
}

func serve(t *testing.T, srv *WebhookServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewWebhookServer(newTestEngine(t, "http://unused"), testFlows(), nil)

	rec := serve(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestListFlows(t *testing.T) {
	srv := NewWebhookServer(newTestEngine(t, "http://unused"), testFlows(), nil)
	srv.PublicURL = "https://pay.example.com/"

	rec := serve(t, srv, http.MethodGet, "/flows", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"name":"checkout-events","trigger":"onlinepay/onlinepay_webhook","webhook_path":"/webhooks/checkout-events","webhook_url":"https://pay.example.com/webhooks/checkout-events"},
		{"name":"custom-path","trigger":"onlinepay/onlinepay_webhook","webhook_path":"/hooks/raw","webhook_url":"https://pay.example.com/hooks/raw"},
		{"name":"manual"}
	]`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := NewWebhookServer(newTestEngine(t, "http://unused"), testFlows(), nil)

	rec := serve(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestDeliveryRunsFlow(t *testing.T) {
	up := newFakeUpstream(t, http.StatusOK, `{"id":"chk_9","status":"COMPLETED"}`)
	srv := NewWebhookServer(newTestEngine(t, up.URL), testFlows(), nil)

	rec := serve(t, srv, http.MethodPost, "/webhooks/checkout-events", `{"id":"chk_9","event":"CheckoutTransactionSuccess"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res DeliveryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "checkout-events", res.Flow)
	assert.Equal(t, 1, res.Items)
	require.Len(t, res.Runs, 1)
	assert.Equal(t, "success", res.Runs[0].Status)
	assert.Equal(t, map[string]any{"id": "chk_9", "event": "CheckoutTransactionSuccess"}, res.Runs[0].Trigger)
	require.Len(t, res.Runs[0].Steps, 2)
	assert.Equal(t, map[string]any{"message": "checkout COMPLETED"}, res.Runs[0].Steps[1].Output)

	assert.Equal(t, []string{"/oidc/checkout-service/v2/checkout/chk_9"}, up.paths)
}

func TestDeliveryPassesBodyVerbatim(t *testing.T) {
	srv := NewWebhookServer(newTestEngine(t, "http://unused"), testFlows(), nil)

	rec := serve(t, srv, http.MethodPost, "/hooks/raw", `{"b":1,"a":[true,null]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res DeliveryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Runs, 1)
	assert.Equal(t, map[string]any{"message": `{"a":[true,null],"b":1}`}, res.Runs[0].Steps[0].Output)
}

func TestDeliveryUpstreamFailure(t *testing.T) {
	up := newFakeUpstream(t, http.StatusNotFound, `{"message":"not found"}`)
	srv := NewWebhookServer(newTestEngine(t, up.URL), testFlows(), nil)

	rec := serve(t, srv, http.MethodPost, "/webhooks/checkout-events", `{"id":"missing"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var res DeliveryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Runs, 1)
	assert.Equal(t, "failed", res.Runs[0].Status)
	assert.Contains(t, res.Runs[0].Error, "404")
}

func TestDeliveryNotFound(t *testing.T) {
	srv := NewWebhookServer(newTestEngine(t, "http://unused"), testFlows(), nil)

	rec := serve(t, srv, http.MethodPost, "/webhooks/manual", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no flow mapped")
}

func TestDeliveryMethodNotAllowed(t *testing.T) {
	srv := NewWebhookServer(newTestEngine(t, "http://unused"), testFlows(), nil)

	rec := serve(t, srv, http.MethodGet, "/webhooks/checkout-events", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEnableDisable(t *testing.T) {
	srv := NewWebhookServer(newTestEngine(t, "http://unused"), testFlows(), nil)
	require.NoError(t, srv.Enable(context.Background()))
	require.NoError(t, srv.Disable(context.Background()))
}

func TestEnableUnknownTrigger(t *testing.T) {
	flows := map[string]*types.FlowDef{
		"bad": {Name: "bad", Trigger: &types.TriggerRef{Piece: "onlinepay", Name: "nope"}},
	}
	srv := NewWebhookServer(newTestEngine(t, "http://unused"), flows, nil)
	assert.ErrorContains(t, srv.Enable(context.Background()), `trigger "nope" not found`)
}

func TestWebhookURL(t *testing.T) {
	flow := &types.FlowDef{Name: "f", Trigger: &types.TriggerRef{Piece: "onlinepay", Name: "onlinepay_webhook"}}
	assert.Equal(t, "https://x.io/webhooks/f", WebhookURL("https://x.io/", flow))
	assert.Equal(t, "", WebhookURL("https://x.io", &types.FlowDef{Name: "m"}))
}
