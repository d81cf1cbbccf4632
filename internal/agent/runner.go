package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"rea/internal/domain"
	"rea/internal/metrics"
	"rea/internal/role"
)

// RunnerConfig wires classification, the loop and persistence together.
type RunnerConfig struct {
	Classifier *role.Classifier
	Loop       LoopConfig
	Recorder   domain.RunRecorder // optional
	Logger     *slog.Logger
}

// ActiveRun is a snapshot of a run in progress.
type ActiveRun struct {
	ID        string      `json:"id"`
	Task      string      `json:"task"`
	Role      domain.Role `json:"role,omitempty"`
	Steps     int         `json:"steps"`
	StartedAt time.Time   `json:"started_at"`
}

// Runner classifies a task, runs the agent loop under the chosen profile and
// records the result. Runs are independent and may execute concurrently.
type Runner struct {
	classifier *role.Classifier
	loop       *Loop
	recorder   domain.RunRecorder
	logger     *slog.Logger

	mu     sync.Mutex
	active map[string]*ActiveRun
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Classifier == nil {
		return nil, errors.New("agent: classifier is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Loop.Logger == nil {
		cfg.Loop.Logger = cfg.Logger
	}
	r := &Runner{
		classifier: cfg.Classifier,
		recorder:   cfg.Recorder,
		logger:     cfg.Logger,
		active:     make(map[string]*ActiveRun),
	}
	next := cfg.Loop.OnStep
	cfg.Loop.OnStep = func(runID string, step domain.AgentStep) {
		r.stepped(runID)
		if next != nil {
			next(runID, step)
		}
	}
	loop, err := NewLoop(cfg.Loop)
	if err != nil {
		return nil, err
	}
	r.loop = loop
	return r, nil
}

// Classifier returns the runner's classifier.
func (r *Runner) Classifier() *role.Classifier { return r.classifier }

// MaxSteps is the step budget of every run.
func (r *Runner) MaxSteps() int { return r.loop.MaxSteps() }

// Run handles one task end to end. The record is returned even when err is
// non-nil; a classification failure yields a failed record with no steps.
func (r *Runner) Run(ctx context.Context, task domain.Task) (*domain.RunRecord, error) {
	rec := r.loop.NewRecord(task)
	r.track(rec)
	return rec, r.execute(ctx, task, rec)
}

// Submit starts task in the background and returns its run id at once. The
// run is visible through Active until it finishes and is recorded.
func (r *Runner) Submit(ctx context.Context, task domain.Task) string {
	rec := r.loop.NewRecord(task)
	r.track(rec)
	go func() {
		if err := r.execute(ctx, task, rec); err != nil {
			r.logger.Warn("submitted run ended with error", "run_id", rec.ID, "status", rec.Status, "err", err)
		}
	}()
	return rec.ID
}

func (r *Runner) execute(ctx context.Context, task domain.Task, rec *domain.RunRecord) error {
	defer r.untrack(rec.ID)
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	logger := r.logger.With("run_id", rec.ID)
	logger.Info("run started", "task_len", len(task.Text), "role_override", task.Role)

	cls, err := r.classifier.ClassifyDetailed(ctx, task)
	if err != nil {
		rec.Status = domain.RunFailed
		rec.ErrorKind = domain.ErrorKind(err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			rec.Status = domain.RunCancelled
			rec.ErrorKind = domain.KindCancelled
			err = ctxErr
		}
		rec.Error = err.Error()
		rec.FinishedAt = r.loop.now()
		metrics.RunsTotal(string(rec.Status)).Inc()
		logger.Warn("classification failed", "err", err)
		if recErr := r.record(ctx, rec); recErr != nil {
			logger.Error("record run", "err", recErr)
		}
		return err
	}

	if cls.Usage.TotalTokens > 0 || cls.Usage.PromptTokens > 0 {
		rec.Cost.AddUsage(cls.Usage, r.loop.pricing(cls.Model, cls.Usage))
	}
	metrics.RolesTotal(string(cls.Profile.Role)).Inc()
	r.setRole(rec.ID, cls.Profile.Role)

	runErr := r.loop.Execute(ctx, rec, cls.Profile)

	if err := r.record(ctx, rec); err != nil {
		logger.Error("record run", "err", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// Active returns the runs in progress, oldest first.
func (r *Runner) Active() []ActiveRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActiveRun, 0, len(r.active))
	for _, a := range r.active {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (r *Runner) record(ctx context.Context, rec *domain.RunRecord) error {
	if r.recorder == nil {
		return nil
	}
	// A cancelled run is still persisted.
	if err := r.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		return fmt.Errorf("record run %s: %w", rec.ID, err)
	}
	return nil
}

func (r *Runner) track(rec *domain.RunRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[rec.ID] = &ActiveRun{ID: rec.ID, Task: rec.Task, StartedAt: rec.StartedAt}
}

func (r *Runner) untrack(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, id)
}

func (r *Runner) setRole(id string, rl domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.active[id]; ok {
		a.Role = rl
	}
}

func (r *Runner) stepped(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.active[id]; ok {
		a.Steps++
	}
}
