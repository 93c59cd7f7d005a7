package worker

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snow-ghost/patrefine/core"
	"github.com/snow-ghost/patrefine/dataset"
	"github.com/snow-ghost/patrefine/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 8 << 20

// Ingestor serves the controller over HTTP. At most one run per model working
// directory is in flight; a second request for a busy directory is refused.
type Ingestor struct {
	controller *Controller

	mu   sync.Mutex
	busy map[string]bool
}

// NewIngestor creates an ingestor for c.
func NewIngestor(c *Controller) *Ingestor {
	return &Ingestor{controller: c, busy: make(map[string]bool)}
}

// VerifyRequest is the body of POST /verify. Model is a dataset entry.
type VerifyRequest struct {
	Model json.RawMessage `json:"model"`
	Code  string          `json:"code"`
}

// Handler returns the routes: POST /refine, POST /verify, GET /health and GET /metrics.
// A nil gatherer serves the default registry.
func (i *Ingestor) Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/refine", i.handleRefine)
	mux.HandleFunc("/verify", i.handleVerify)
	mux.HandleFunc("/health", i.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// handleRefine takes a dataset entry and returns the RunReport.
func (i *Ingestor) handleRefine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := parseModel(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !i.acquire(m.Name) {
		http.Error(w, fmt.Sprintf("a run for %q is already in progress", m.Name), http.StatusConflict)
		return
	}
	defer i.release(m.Name)

	report, err := i.controller.Run(r.Context(), m)
	if err != nil {
		slog.ErrorContext(r.Context(), "refine request failed", "model", m.Name, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, report)
}

// handleVerify runs one verification pass over supplied code.
func (i *Ingestor) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req VerifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := parseModel(req.Model)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !i.acquire(m.Name) {
		http.Error(w, fmt.Sprintf("a run for %q is already in progress", m.Name), http.StatusConflict)
		return
	}
	defer i.release(m.Name)

	res, err := i.controller.VerifyOnce(r.Context(), m, req.Code)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

func (i *Ingestor) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"patrefine"}`))
}

// acquire and release key on store.SafeName so names that share a directory exclude
// each other.
func (i *Ingestor) acquire(model string) bool {
	dir := store.SafeName(model)
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.busy[dir] {
		return false
	}
	i.busy[dir] = true
	return true
}

func (i *Ingestor) release(model string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.busy, store.SafeName(model))
}

func parseModel(data []byte) (core.TargetModel, error) {
	if len(data) == 0 {
		return core.TargetModel{}, fmt.Errorf("missing target model")
	}
	models, err := dataset.Parse(data)
	if err != nil {
		return core.TargetModel{}, err
	}
	if len(models) != 1 {
		return core.TargetModel{}, fmt.Errorf("expected one target model, got %d", len(models))
	}
	return models[0], nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
