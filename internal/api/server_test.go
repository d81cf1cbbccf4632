package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rea/internal/agent"
	"rea/internal/domain"
	"rea/internal/recorder"
)

type fakeStore struct {
	runs    map[string]*domain.RunRecord
	lastOpt recorder.ListOptions
}

func (f *fakeStore) List(_ context.Context, opts recorder.ListOptions) ([]domain.RunRecord, error) {
	f.lastOpt = opts
	var out []domain.RunRecord
	for _, r := range f.runs {
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*domain.RunRecord, error) {
	r, ok := f.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", recorder.ErrRunNotFound, id)
	}
	return r, nil
}

type fakeActive []agent.ActiveRun

func (f fakeActive) Active() []agent.ActiveRun { return f }

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(New(cfg).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func sampleStore() *fakeStore {
	return &fakeStore{runs: map[string]*domain.RunRecord{
		"r1": {
			ID:     "r1",
			Task:   "sprint status",
			Role:   domain.RoleScrumLead,
			Status: domain.RunDone,
			Steps: []domain.AgentStep{
				{Index: 1, ToolName: "work_list_team_iterations", Observation: "Sprint 1", Kind: domain.ObservationResult},
			},
		},
	}}
}

func TestStatus_StoppedAndRunning(t *testing.T) {
	ts := newTestServer(t, Config{})
	var body statusResponse
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/status", &body))
	assert.Equal(t, "stopped", body.Status)
	assert.Empty(t, body.ActiveRuns)

	ts = newTestServer(t, Config{Active: fakeActive{{ID: "r9", Task: "x", StartedAt: time.Now()}}})
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/status", &body))
	assert.Equal(t, "running", body.Status)
	require.Len(t, body.ActiveRuns, 1)
	assert.Equal(t, "r9", body.ActiveRuns[0].ID)
}

func TestRuns_ListAndFilters(t *testing.T) {
	store := sampleStore()
	ts := newTestServer(t, Config{Store: store})

	var body struct {
		Runs []domain.RunRecord `json:"runs"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/runs?limit=5&role=scrum%20lead&status=done", &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, 5, store.lastOpt.Limit)
	assert.Equal(t, domain.RoleScrumLead, store.lastOpt.Role)
	assert.Equal(t, domain.RunDone, store.lastOpt.Status)

	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/runs?limit=100000", nil))
	assert.Equal(t, maxListLimit, store.lastOpt.Limit)

	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/runs?status=failed", &body))
	assert.NotNil(t, body.Runs)
	assert.Empty(t, body.Runs)
}

func TestRuns_BadQuery(t *testing.T) {
	ts := newTestServer(t, Config{Store: sampleStore()})
	var body map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/runs?limit=abc", &body))
	assert.Contains(t, body["error"], "invalid limit")
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/runs?role=architect", &body))
	assert.Contains(t, body["error"], "unknown role")
}

func TestRuns_GetAndSteps(t *testing.T) {
	ts := newTestServer(t, Config{Store: sampleStore()})

	var rec domain.RunRecord
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/runs/r1", &rec))
	assert.Equal(t, "sprint status", rec.Task)
	assert.Len(t, rec.Steps, 1)

	var steps struct {
		Data []domain.AgentStep `json:"data"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/runs/r1/steps", &steps))
	require.Len(t, steps.Data, 1)
	assert.Equal(t, "Sprint 1", steps.Data[0].Observation)

	var errBody map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/runs/nope", &errBody))
	assert.Equal(t, "run nope not found", errBody["error"])
}

func TestRuns_NoStore(t *testing.T) {
	ts := newTestServer(t, Config{})
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/runs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/runs/r1", nil))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, Config{Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "rea_steps_total 3\n")
	})})
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "rea_steps_total 3\n", string(data))

	ts = newTestServer(t, Config{})
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/metrics", nil))
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Config{Host: "127.0.0.1", Port: 0, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

type fakeSubmitter struct {
	tasks []domain.Task
}

func (f *fakeSubmitter) Submit(_ context.Context, task domain.Task) string {
	f.tasks = append(f.tasks, task)
	return fmt.Sprintf("run-%d", len(f.tasks))
}

func post(t *testing.T, url, body string, into any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func TestSubmitRun(t *testing.T) {
	sub := &fakeSubmitter{}
	ts := newTestServer(t, Config{Submitter: sub})

	var body map[string]string
	assert.Equal(t, http.StatusAccepted, post(t, ts.URL+"/runs", `{"task":"sprint status","role":"Scrum Lead"}`, &body))
	assert.Equal(t, "run-1", body["id"])
	assert.Equal(t, "running", body["status"])
	require.Len(t, sub.tasks, 1)
	assert.Equal(t, domain.Task{Text: "sprint status", Role: "Scrum Lead"}, sub.tasks[0])

	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/runs", `{"task":"  "}`, &body))
	assert.Equal(t, "task is required", body["error"])
	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/runs", `{"task":"x","role":"architect"}`, nil))
	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/runs", `not json`, nil))
	assert.Len(t, sub.tasks, 1)
}

func TestSubmitRun_LimitsActiveRuns(t *testing.T) {
	sub := &fakeSubmitter{}
	ts := newTestServer(t, Config{
		Submitter: sub,
		Active:    fakeActive{{ID: "a"}, {ID: "b"}},
		MaxActive: 2,
	})
	assert.Equal(t, http.StatusTooManyRequests, post(t, ts.URL+"/runs", `{"task":"x"}`, nil))
	assert.Empty(t, sub.tasks)
}

func TestSubmitRun_DisabledWithoutSubmitter(t *testing.T) {
	ts := newTestServer(t, Config{Store: sampleStore()})
	assert.Equal(t, http.StatusMethodNotAllowed, post(t, ts.URL+"/runs", `{"task":"x"}`, nil))
}

func signedPost(t *testing.T, url, body, sig string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set("X-Signature-256", sig)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestSubmitRun_RequiresSignatureWhenSecretSet(t *testing.T) {
	sub := &fakeSubmitter{}
	ts := newTestServer(t, Config{Submitter: sub, Secret: "s3cret"})
	body := `{"task":"sprint status"}`

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte(body))
	good := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, http.StatusUnauthorized, signedPost(t, ts.URL+"/runs", body, ""))
	assert.Equal(t, http.StatusForbidden, signedPost(t, ts.URL+"/runs", body, "sha256=00"))
	assert.Empty(t, sub.tasks)
	assert.Equal(t, http.StatusAccepted, signedPost(t, ts.URL+"/runs", body, good))
	assert.Len(t, sub.tasks, 1)
}
