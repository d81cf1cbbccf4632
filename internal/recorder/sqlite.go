// Package recorder persists finished runs: a SQLite store for querying and
// file sinks for the per-run step log and the cost ledger.
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rea/internal/domain"
)

// ErrRunNotFound is returned by Get for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// SQLiteStore records runs, their steps and the approval audit trail.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// SQLite serialises writers; one connection avoids SQLITE_BUSY between runs.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Record inserts or replaces rec together with its steps.
func (s *SQLiteStore) Record(ctx context.Context, rec *domain.RunRecord) error {
	warnings, err := json.Marshal(nonNil(rec.PolicyWarnings))
	if err != nil {
		return fmt.Errorf("encode policy warnings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, task, role, model, status, final_answer, error_kind, error,
			total_tokens, prompt_tokens, completion_tokens, total_cost, started_at, finished_at, policy_warnings)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Task, string(rec.Role), rec.Model, string(rec.Status), rec.FinalAnswer, rec.ErrorKind, rec.Error,
		rec.Cost.TotalTokens, rec.Cost.PromptTokens, rec.Cost.CompletionTokens, rec.Cost.TotalCost,
		rec.StartedAt.UTC(), nullTime(rec.FinishedAt), string(warnings),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE run_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clear steps of %s: %w", rec.ID, err)
	}
	for _, st := range rec.Steps {
		args, err := json.Marshal(nonNilMap(st.Arguments))
		if err != nil {
			return fmt.Errorf("encode arguments of step %d: %w", st.Index, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO steps (run_id, step_index, reasoning, tool_name, tool_call_id, arguments, observation, kind,
				prompt_tokens, completion_tokens, duration_ns, started_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, st.Index, st.Reasoning, st.ToolName, st.ToolCallID, string(args), st.Observation, string(st.Kind),
			st.PromptTokens, st.CompletionTokens, int64(st.Duration), nullTime(st.StartedAt),
		); err != nil {
			return fmt.Errorf("insert step %d of %s: %w", st.Index, rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", rec.ID, err)
	}
	s.logger.Debug("run recorded", "run_id", rec.ID, "steps", len(rec.Steps))
	return nil
}

// ListOptions filters List.
type ListOptions struct {
	Limit  int
	Status domain.RunStatus
	Role   domain.Role
}

const runColumns = `id, task, role, model, status, final_answer, error_kind, error,
	total_tokens, prompt_tokens, completion_tokens, total_cost, started_at, finished_at, policy_warnings`

// List returns runs newest first, without their steps.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]domain.RunRecord, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	var (
		where []string
		args  []any
	)
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}
	if opts.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(opts.Role))
	}
	q := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *rec)
	}
	return runs, rows.Err()
}

// Get returns the run with its steps in order.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.RunRecord, error) {
	rec, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT step_index, reasoning, tool_name, tool_call_id, arguments, observation, kind,
			prompt_tokens, completion_tokens, duration_ns, started_at
		 FROM steps WHERE run_id = ? ORDER BY step_index`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rec.Steps = []domain.AgentStep{}
	for rows.Next() {
		var (
			st        domain.AgentStep
			kind      string
			args      string
			durNs     int64
			startedAt sql.NullTime
		)
		if err := rows.Scan(&st.Index, &st.Reasoning, &st.ToolName, &st.ToolCallID, &args, &st.Observation, &kind,
			&st.PromptTokens, &st.CompletionTokens, &durNs, &startedAt); err != nil {
			return nil, err
		}
		st.Kind = domain.ObservationKind(kind)
		st.Duration = time.Duration(durNs)
		if startedAt.Valid {
			st.StartedAt = startedAt.Time
		}
		if args != "" {
			if err := json.Unmarshal([]byte(args), &st.Arguments); err != nil {
				return nil, fmt.Errorf("decode arguments of step %d: %w", st.Index, err)
			}
		}
		rec.Steps = append(rec.Steps, st)
	}
	return rec, rows.Err()
}

// LogAudit appends an approval audit entry.
func (s *SQLiteStore) LogAudit(ctx context.Context, entry domain.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (run_id, action, tool_name, details) VALUES (?, ?, ?, ?)`,
		entry.RunID, entry.Action, entry.ToolName, entry.Details,
	)
	return err
}

// AuditEntries returns the audit trail of one run in insertion order.
func (s *SQLiteStore) AuditEntries(ctx context.Context, runID string) ([]domain.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, action, tool_name, details FROM audit_log WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			e                 domain.AuditEntry
			toolName, details sql.NullString
		)
		if err := rows.Scan(&e.RunID, &e.Action, &toolName, &details); err != nil {
			return nil, err
		}
		e.ToolName = toolName.String
		e.Details = details.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.RunRecord, error) {
	var (
		rec        domain.RunRecord
		role       string
		status     string
		finishedAt sql.NullTime
		warnings   sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.Task, &role, &rec.Model, &status, &rec.FinalAnswer, &rec.ErrorKind, &rec.Error,
		&rec.Cost.TotalTokens, &rec.Cost.PromptTokens, &rec.Cost.CompletionTokens, &rec.Cost.TotalCost,
		&rec.StartedAt, &finishedAt, &warnings); err != nil {
		return nil, err
	}
	rec.Role = domain.Role(role)
	rec.Status = domain.RunStatus(status)
	if finishedAt.Valid {
		rec.FinishedAt = finishedAt.Time
	}
	if warnings.Valid && warnings.String != "" && warnings.String != "[]" {
		if err := json.Unmarshal([]byte(warnings.String), &rec.PolicyWarnings); err != nil {
			return nil, fmt.Errorf("decode policy warnings of %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

var _ domain.RunRecorder = (*SQLiteStore)(nil)
