package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"rea/internal/domain"
)

// FileSink writes the step log of every run to its own JSON file and appends
// a cost block per run to a shared ledger. Either path may be empty.
type FileSink struct {
	stepsDir string
	costFile string

	mu sync.Mutex // serialises ledger appends
}

func NewFileSink(stepsDir, costFile string) *FileSink {
	return &FileSink{stepsDir: stepsDir, costFile: costFile}
}

// stepsFile is the on-disk shape of one run's step log.
type stepsFile struct {
	RunID          string             `json:"run_id"`
	Role           domain.Role        `json:"role,omitempty"`
	Task           string             `json:"task"`
	Status         domain.RunStatus   `json:"status"`
	FinalAnswer    string             `json:"final_answer,omitempty"`
	Steps          []domain.AgentStep `json:"steps"`
	Cost           domain.CostSummary `json:"cost"`
	PolicyWarnings []string           `json:"policy_warnings,omitempty"`
}

func (f *FileSink) Record(_ context.Context, rec *domain.RunRecord) error {
	if f.stepsDir != "" {
		if err := f.writeSteps(rec); err != nil {
			return err
		}
	}
	if f.costFile != "" {
		if err := f.appendCost(rec); err != nil {
			return err
		}
	}
	return nil
}

// StepsPath is where the step log of rec is written.
func (f *FileSink) StepsPath(rec *domain.RunRecord) string {
	name := rec.ID + "_steps.json"
	if rec.Role != "" {
		name = string(rec.Role) + "_" + name
	}
	return filepath.Join(f.stepsDir, name)
}

func (f *FileSink) writeSteps(rec *domain.RunRecord) error {
	if err := os.MkdirAll(f.stepsDir, 0o755); err != nil {
		return fmt.Errorf("create steps directory: %w", err)
	}
	steps := rec.Steps
	if steps == nil {
		steps = []domain.AgentStep{}
	}
	data, err := json.MarshalIndent(stepsFile{
		RunID:          rec.ID,
		Role:           rec.Role,
		Task:           rec.Task,
		Status:         rec.Status,
		FinalAnswer:    rec.FinalAnswer,
		Steps:          steps,
		Cost:           rec.Cost,
		PolicyWarnings: rec.PolicyWarnings,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode steps of %s: %w", rec.ID, err)
	}

	path := f.StepsPath(rec)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write steps file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write steps file: %w", err)
	}
	return nil
}

func (f *FileSink) appendCost(rec *domain.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.costFile), 0o755); err != nil {
		return fmt.Errorf("create cost file directory: %w", err)
	}
	out, err := os.OpenFile(f.costFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open cost file: %w", err)
	}
	if _, err := out.WriteString(CostBlock(rec)); err != nil {
		out.Close()
		return fmt.Errorf("append cost file: %w", err)
	}
	return out.Close()
}

// CostBlock renders the ledger entry of one run.
func CostBlock(rec *domain.RunRecord) string {
	at := rec.FinishedAt
	if at.IsZero() {
		at = time.Now()
	}
	sep := strings.Repeat("-", 20)
	var b strings.Builder
	b.WriteString(sep + "\n")
	fmt.Fprintf(&b, "Agent execution time: %s\n", at.Format("2006-01-02T15:04:05.000000"))
	fmt.Fprintf(&b, "Run: %s\n", rec.ID)
	if rec.Role != "" {
		fmt.Fprintf(&b, "Role: %s\n", rec.Role.DisplayName())
	}
	fmt.Fprintf(&b, "Total Tokens: %d\n", rec.Cost.TotalTokens)
	fmt.Fprintf(&b, "Prompt Tokens: %d\n", rec.Cost.PromptTokens)
	fmt.Fprintf(&b, "Completion Tokens: %d\n", rec.Cost.CompletionTokens)
	fmt.Fprintf(&b, "Total Cost (USD): $%.6f\n", rec.Cost.TotalCost)
	b.WriteString(sep + "\n")
	return b.String()
}

var _ domain.RunRecorder = (*FileSink)(nil)
