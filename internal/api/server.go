// Package api serves run status and history over HTTP.
package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rea/internal/agent"
	"rea/internal/domain"
	"rea/internal/recorder"
)

const (
	maxListLimit = 200
	maxBodySize  = 1 << 20 // 1MB
)

// RunStore is the read side of the run recorder.
type RunStore interface {
	List(ctx context.Context, opts recorder.ListOptions) ([]domain.RunRecord, error)
	Get(ctx context.Context, id string) (*domain.RunRecord, error)
}

// ActiveRuns reports runs in progress.
type ActiveRuns interface {
	Active() []agent.ActiveRun
}

// Submitter starts a run in the background and returns its id.
type Submitter interface {
	Submit(ctx context.Context, task domain.Task) string
}

type Config struct {
	Host      string
	Port      int
	Store     RunStore     // optional; /runs answers 503 without it
	Active    ActiveRuns   // optional
	Submitter Submitter    // optional; enables POST /runs
	MaxActive int          // POST /runs answers 429 at this many active runs; 0 means no limit
	Metrics   http.Handler // optional
	Events    *Hub         // optional; enables GET /events
	Secret    string       // when set, POST /runs requires an X-Signature-256 HMAC of the body
	Logger    *slog.Logger
}

// Server is the status API.
type Server struct {
	addr      string
	store     RunStore
	active    ActiveRuns
	submitter Submitter
	maxActive int
	metrics   http.Handler
	events    *Hub
	secret    string
	logger    *slog.Logger
	started   time.Time
	server    *http.Server

	baseCtx context.Context // parent of submitted runs
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		addr:      net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		store:     cfg.Store,
		active:    cfg.Active,
		submitter: cfg.Submitter,
		maxActive: cfg.MaxActive,
		metrics:   cfg.Metrics,
		events:    cfg.Events,
		secret:    cfg.Secret,
		logger:    cfg.Logger,
		started:   time.Now(),
		baseCtx:   context.Background(),
	}
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /runs", s.handleListRuns)
	if s.submitter != nil {
		mux.HandleFunc("POST /runs", s.handleSubmitRun)
	}
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/steps", s.handleGetSteps)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	if s.events != nil {
		mux.Handle("GET /events", s.events)
	}
	return mux
}

// Start serves until ctx is cancelled. Submitted runs are cancelled with ctx.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("status API started", "addr", s.addr)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusResponse struct {
	Status        string            `json:"status"` // running | stopped
	ActiveRuns    []agent.ActiveRun `json:"active_runs"`
	UptimeSeconds int64             `json:"uptime_seconds"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	active := []agent.ActiveRun{}
	if s.active != nil {
		active = s.active.Active()
	}
	status := "stopped"
	if len(active) > 0 {
		status = "running"
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:        status,
		ActiveRuns:    active,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	q := r.URL.Query()
	opts := recorder.ListOptions{Status: domain.RunStatus(q.Get("status"))}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		opts.Limit = min(n, maxListLimit)
	}
	if v := q.Get("role"); v != "" {
		rl, ok := domain.ParseRole(v)
		if !ok {
			writeError(w, http.StatusBadRequest, (&domain.UnknownRoleError{Value: v}).Error())
			return
		}
		opts.Role = rl
	}

	runs, err := s.store.List(r.Context(), opts)
	if err != nil {
		s.logger.Error("list runs", "err", err)
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

type submitRequest struct {
	Task string `json:"task"`
	Role string `json:"role,omitempty"`
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	if s.secret != "" {
		sig := r.Header.Get("X-Signature-256")
		if sig == "" {
			writeError(w, http.StatusUnauthorized, "missing signature")
			return
		}
		if !verifyHMAC(body, s.secret, sig) {
			writeError(w, http.StatusForbidden, "invalid signature")
			return
		}
	}

	var req submitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Task) == "" {
		writeError(w, http.StatusBadRequest, "task is required")
		return
	}
	if req.Role != "" {
		if _, ok := domain.ParseRole(req.Role); !ok {
			writeError(w, http.StatusBadRequest, (&domain.UnknownRoleError{Value: req.Role}).Error())
			return
		}
	}
	if s.maxActive > 0 && s.active != nil && len(s.active.Active()) >= s.maxActive {
		writeError(w, http.StatusTooManyRequests, fmt.Sprintf("%d runs already active", s.maxActive))
		return
	}

	id := s.submitter.Submit(s.baseCtx, domain.Task{Text: req.Task, Role: req.Role})
	s.logger.Info("run submitted", "run_id", id)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": string(domain.RunRunning)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleGetSteps returns only the step log of a run.
func (s *Server) handleGetSteps(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rec.Steps})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*domain.RunRecord, bool) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not configured")
		return nil, false
	}
	id := r.PathValue("id")
	rec, err := s.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, recorder.ErrRunNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return nil, false
	case err != nil:
		s.logger.Error("get run", "run_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "get run failed")
		return nil, false
	}
	return rec, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// verifyHMAC checks a "sha256=<hex>" HMAC-SHA256 signature of body.
func verifyHMAC(body []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
