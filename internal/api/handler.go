// Package api exposes the guard engine over a small HTTP control surface.
package api

import (
	"net/http"
	"strings"
	"time"

	"swarmguard/internal/guard"
)

// Controller is the engine surface the handler drives; engine.Engine satisfies it.
type Controller interface {
	Snapshots() []guard.Snapshot
	Pause()
	Resume()
	Anticipate(queue string, at time.Time) error
}

// Config wires dependencies for the HTTP handler.
type Config struct {
	Engine Controller
	Now    func() time.Time
}

// NewHandler builds the control API handler.
func NewHandler(cfg Config) http.Handler {
	h := &handler{engine: cfg.Engine, nowFn: cfg.Now}
	if h.nowFn == nil {
		h.nowFn = time.Now
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/v1/guards", h.handleGuards)
	mux.HandleFunc("/v1/guards/", h.handleGuardByQueue)
	mux.HandleFunc("/v1/pause", h.handleLifecycle(func(c Controller) { c.Pause() }))
	mux.HandleFunc("/v1/resume", h.handleLifecycle(func(c Controller) { c.Resume() }))
	return mux
}

type handler struct {
	engine Controller
	nowFn  func() time.Time
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handler) handleGuards(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine_unavailable")
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snaps := h.engine.Snapshots()
	out := guardsResponse{Guards: make([]snapshotView, 0, len(snaps))}
	for _, s := range snaps {
		out.Guards = append(out.Guards, viewOf(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGuardByQueue serves /v1/guards/{queue} and /v1/guards/{queue}/anticipate.
func (h *handler) handleGuardByQueue(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine_unavailable")
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/guards/"), "/")
	queue, action, _ := strings.Cut(rest, "/")
	queue = strings.TrimSpace(queue)
	if queue == "" {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	switch action {
	case "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGetGuard(w, queue)
	case "anticipate":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleAnticipate(w, r, queue)
	default:
		writeError(w, http.StatusNotFound, "not_found")
	}
}

func (h *handler) handleGetGuard(w http.ResponseWriter, queue string) {
	for _, s := range h.engine.Snapshots() {
		if s.Alias == queue || s.Queue == queue {
			writeJSON(w, http.StatusOK, viewOf(s))
			return
		}
	}
	writeError(w, http.StatusNotFound, "not_found")
}

func (h *handler) handleLifecycle(apply func(Controller)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.engine == nil {
			writeError(w, http.StatusServiceUnavailable, "engine_unavailable")
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		apply(h.engine)
		writeJSON(w, http.StatusOK, okResponse{OK: true})
	}
}
