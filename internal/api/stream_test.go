package api

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rea/internal/domain"
)

func dialEvents(t *testing.T, hub *Hub, query string) *websocket.Conn {
	t.Helper()
	ts := newTestServer(t, Config{Events: hub})
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hello Event
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "connected", hello.Type)
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHub_StreamsStepsAndOutcome(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	conn := dialEvents(t, hub, "")

	hub.Publish("r1", domain.AgentStep{Index: 1, ToolName: "list_files", Observation: "a.txt", Kind: domain.ObservationResult})
	require.NoError(t, hub.Record(context.Background(), &domain.RunRecord{
		ID: "r1", Status: domain.RunDone, FinalAnswer: "All good.",
		Cost: domain.CostSummary{TotalTokens: 120},
	}))

	ev := readEvent(t, conn)
	assert.Equal(t, "step", ev.Type)
	assert.Equal(t, "r1", ev.RunID)
	require.NotNil(t, ev.Step)
	assert.Equal(t, "list_files", ev.Step.ToolName)

	ev = readEvent(t, conn)
	assert.Equal(t, "finished", ev.Type)
	assert.Equal(t, domain.RunDone, ev.Status)
	assert.Equal(t, "All good.", ev.Answer)
	require.NotNil(t, ev.Cost)
	assert.Equal(t, 120, ev.Cost.TotalTokens)
}

func TestHub_FiltersByRun(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	conn := dialEvents(t, hub, "?run_id=r2")

	hub.Publish("r1", domain.AgentStep{Index: 1, ToolName: "read_file"})
	hub.Publish("r2", domain.AgentStep{Index: 1, ToolName: "write_file"})

	ev := readEvent(t, conn)
	assert.Equal(t, "r2", ev.RunID)
	assert.Equal(t, "write_file", ev.Step.ToolName)
}

func TestHub_UnsubscribesOnClose(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	conn := dialEvents(t, hub, "")

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(nil)
	hub.Publish("r1", domain.AgentStep{Index: 1})
	assert.NoError(t, hub.Record(context.Background(), &domain.RunRecord{ID: "r1"}))
}
