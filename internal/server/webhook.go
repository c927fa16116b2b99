package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"paypiece/internal/engine"
	"paypiece/internal/metrics"
	"paypiece/internal/middleware"
	"paypiece/internal/plugin"
	"paypiece/internal/types"
)

const maxWebhookBody = 5 << 20

// WebhookServer relays webhook deliveries into flows.
type WebhookServer struct {
	// PublicURL is the externally reachable base URL, used when listing
	// the webhook URL of each flow.
	PublicURL string

	engine *engine.Engine
	flows  map[string]*types.FlowDef
	log    *zap.SugaredLogger
}

// NewWebhookServer creates a webhook server for flows. Flows without a
// trigger are listed but not routed.
func NewWebhookServer(eng *engine.Engine, flows map[string]*types.FlowDef, log *zap.SugaredLogger) *WebhookServer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &WebhookServer{
		engine: eng,
		flows:  flows,
		log:    log,
	}
}

// WebhookURL joins a public base URL and the flow's webhook path.
func WebhookURL(base string, flow *types.FlowDef) string {
	path := flow.WebhookPath()
	if path == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + path
}

// Handler builds the HTTP router.
func (s *WebhookServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(s.log))
	r.Use(middleware.AccessLog(s.log))
	r.Use(middleware.Tracing("paypiece", s.log))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("no flow mapped to path %q", r.URL.Path),
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	r.Get("/health", s.handleHealth)
	r.Get("/flows", s.handleListFlows)
	r.Handle("/metrics", promhttp.Handler())

	for _, name := range s.flowNames() {
		flow := s.flows[name]
		if flow.Trigger == nil {
			continue
		}
		r.Post(flow.WebhookPath(), s.handleDelivery(flow))
	}
	return r
}

// Enable calls OnEnable on the trigger of every routed flow.
func (s *WebhookServer) Enable(ctx context.Context) error {
	return s.eachTrigger(func(flow *types.FlowDef, t plugin.Trigger, conn plugin.Connection) error {
		if err := t.OnEnable(ctx, conn); err != nil {
			return fmt.Errorf("enabling trigger %s for flow %q: %w", t.Name(), flow.Name, err)
		}
		s.log.Infow("webhook enabled", "flow", flow.Name, "trigger", t.Name(), "path", flow.WebhookPath())
		return nil
	})
}

// Disable calls OnDisable on the trigger of every routed flow. All
// triggers are disabled even if some fail.
func (s *WebhookServer) Disable(ctx context.Context) error {
	var errs []error
	_ = s.eachTrigger(func(flow *types.FlowDef, t plugin.Trigger, conn plugin.Connection) error {
		if err := t.OnDisable(ctx, conn); err != nil {
			errs = append(errs, fmt.Errorf("disabling trigger %s for flow %q: %w", t.Name(), flow.Name, err))
		}
		return nil
	})
	return errors.Join(errs...)
}

// ListenAndServe enables triggers, serves until ctx is cancelled and then
// shuts down gracefully, disabling triggers on the way out.
func (s *WebhookServer) ListenAndServe(ctx context.Context, addr string) error {
	if err := s.Enable(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("webhook server listening", "addr", addr, "flows", len(s.flows))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if derr := s.Disable(shutdownCtx); derr != nil {
		s.log.Warnw("disabling triggers", "err", derr)
	}
	if terr := middleware.ShutdownTracing(shutdownCtx); terr != nil {
		s.log.Warnw("flushing traces", "err", terr)
	}
	s.log.Infow("webhook server stopped")
	return err
}

func (s *WebhookServer) eachTrigger(fn func(*types.FlowDef, plugin.Trigger, plugin.Connection) error) error {
	registry := s.engine.Registry
	for _, name := range s.flowNames() {
		flow := s.flows[name]
		if flow.Trigger == nil {
			continue
		}
		t, ok := registry.Trigger(flow.Trigger.Piece, flow.Trigger.Name)
		if !ok {
			return fmt.Errorf("flow %q: trigger %q not found on piece %q", flow.Name, flow.Trigger.Name, flow.Trigger.Piece)
		}
		if err := fn(flow, t, registry.Connection(flow.Trigger.Piece)); err != nil {
			return err
		}
	}
	return nil
}

func (s *WebhookServer) flowNames() []string {
	names := make([]string, 0, len(s.flows))
	for name := range s.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *WebhookServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type flowInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Trigger     string `json:"trigger,omitempty"`
	WebhookPath string `json:"webhook_path,omitempty"`
	WebhookURL  string `json:"webhook_url,omitempty"`
}

func (s *WebhookServer) handleListFlows(w http.ResponseWriter, _ *http.Request) {
	infos := make([]flowInfo, 0, len(s.flows))
	for _, name := range s.flowNames() {
		f := s.flows[name]
		fi := flowInfo{Name: f.Name, Description: f.Description}
		if f.Trigger != nil {
			fi.Trigger = f.Trigger.Piece + "/" + f.Trigger.Name
			fi.WebhookPath = f.WebhookPath()
			if s.PublicURL != "" {
				fi.WebhookURL = WebhookURL(s.PublicURL, f)
			}
		}
		infos = append(infos, fi)
	}
	writeJSON(w, http.StatusOK, infos)
}

// DeliveryResult is the response to a webhook delivery: one flow run per
// item the trigger produced.
type DeliveryResult struct {
	Flow  string              `json:"flow"`
	Items int                 `json:"items"`
	Runs  []*types.FlowResult `json:"runs"`
}

func (s *WebhookServer) handleDelivery(flow *types.FlowDef) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.With("flow", flow.Name, "request_id", middleware.RequestIDFrom(r.Context()))

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			metrics.ObserveDelivery(flow.Name, "rejected")
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "reading body: " + err.Error()})
			return
		}

		registry := s.engine.Registry
		trigger, ok := registry.Trigger(flow.Trigger.Piece, flow.Trigger.Name)
		if !ok {
			metrics.ObserveDelivery(flow.Name, "error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": fmt.Sprintf("trigger %q not found on piece %q", flow.Trigger.Name, flow.Trigger.Piece),
			})
			return
		}

		items, err := trigger.Run(r.Context(), registry.Connection(flow.Trigger.Piece), plugin.Payload{
			Body:    body,
			Headers: r.Header.Clone(),
			Query:   r.URL.Query(),
		})
		if err != nil {
			log.Warnw("trigger run failed", "err", err)
			metrics.ObserveDelivery(flow.Name, "error")
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		res := DeliveryResult{Flow: flow.Name, Items: len(items), Runs: make([]*types.FlowResult, 0, len(items))}
		status := http.StatusOK
		for _, item := range items {
			run, err := s.engine.Run(r.Context(), flow, item)
			if err != nil {
				metrics.ObserveDelivery(flow.Name, "error")
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			if run.Status == "failed" {
				status = http.StatusInternalServerError
			}
			res.Runs = append(res.Runs, run)
		}

		outcome := "success"
		if status != http.StatusOK {
			outcome = "failed"
		}
		metrics.ObserveDelivery(flow.Name, outcome)
		log.Infow("webhook delivered", "items", len(items), "outcome", outcome)
		writeJSON(w, status, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
