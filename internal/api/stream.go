package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rea/internal/domain"
)

const (
	subscriberBuffer = 64
	writeWait        = 10 * time.Second
	pingPeriod       = 30 * time.Second
)

// Event is one message on the run event stream.
type Event struct {
	Type   string              `json:"type"` // "connected" | "step" | "finished"
	RunID  string              `json:"run_id,omitempty"`
	Step   *domain.AgentStep   `json:"step,omitempty"`
	Status domain.RunStatus    `json:"status,omitempty"`
	Answer string              `json:"final_answer,omitempty"`
	Error  string              `json:"error,omitempty"`
	Cost   *domain.CostSummary `json:"cost,omitempty"`
}

type subscriber struct {
	runID string // empty means every run
	ch    chan Event
}

// Hub fans run events out to websocket subscribers. Publish has the shape of
// an agent step observer and Record makes the hub a run recorder, so both can
// be wired without the agent knowing about the API.
type Hub struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, subs: make(map[*subscriber]struct{})}
}

// Publish sends a completed step.
func (h *Hub) Publish(runID string, step domain.AgentStep) {
	h.broadcast(Event{Type: "step", RunID: runID, Step: &step})
}

// Record sends the run outcome. It never fails.
func (h *Hub) Record(_ context.Context, rec *domain.RunRecord) error {
	cost := rec.Cost
	h.broadcast(Event{
		Type:   "finished",
		RunID:  rec.ID,
		Status: rec.Status,
		Answer: rec.FinalAnswer,
		Error:  rec.Error,
		Cost:   &cost,
	})
	return nil
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.runID != "" && s.runID != ev.RunID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			h.logger.Warn("event subscriber too slow, dropping event", "run_id", ev.RunID, "type", ev.Type)
		}
	}
}

func (h *Hub) subscribe(runID string) *subscriber {
	s := &subscriber{runID: runID, ch: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Subscribers reports the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API binds to localhost by default and carries no credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades to a websocket and streams events, optionally for a
// single run given by ?run_id=.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	runID := r.URL.Query().Get("run_id")
	sub := h.subscribe(runID)
	h.logger.Debug("event subscriber connected", "run_id", runID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Drain client frames so close and pong control messages are handled.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("websocket read error", "err", err)
				}
				return
			}
		}
	}()

	defer func() {
		h.unsubscribe(sub)
		conn.Close()
		h.logger.Debug("event subscriber disconnected", "run_id", runID)
	}()

	if err := writeEvent(conn, Event{Type: "connected", RunID: runID}); err != nil {
		return
	}
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case ev := <-sub.ch:
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
