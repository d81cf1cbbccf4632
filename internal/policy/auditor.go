// Package policy audits the approval discipline of agent runs. It never
// blocks a call; violations become warnings on the run record.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"rea/internal/config"
	"rea/internal/domain"
)

// Audit actions.
const (
	ActionToolExec           = "tool_exec"
	ActionApproval           = "approval"
	ActionUnapprovedMutation = "unapproved_mutation"
	ActionUnapprovedDone     = "unapproved_done"
)

// AuditLogger persists audit entries.
type AuditLogger interface {
	LogAudit(ctx context.Context, entry domain.AuditEntry) error
}

// Auditor holds the mutating-tool patterns shared by every run.
type Auditor struct {
	approvalTool string
	mutating     []*regexp.Regexp
	auditLog     bool
	audit        AuditLogger
	logger       *slog.Logger
}

// NewAuditor compiles cfg.MutatingPatterns. approvalTool is the name of the
// tool that counts as asking for approval.
func NewAuditor(cfg config.PolicyConfig, approvalTool string, audit AuditLogger, logger *slog.Logger) (*Auditor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Auditor{
		approvalTool: approvalTool,
		auditLog:     cfg.AuditLog,
		audit:        audit,
		logger:       logger,
	}
	for _, p := range cfg.MutatingPatterns {
		re, err := compilePattern(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mutating pattern: %w", err)
		}
		a.mutating = append(a.mutating, re)
	}
	return a, nil
}

// Mutating reports whether toolName changes state.
func (a *Auditor) Mutating(toolName string) bool {
	for _, re := range a.mutating {
		if re.MatchString(toolName) {
			return true
		}
	}
	return false
}

// Track starts auditing one run. A nil Auditor yields a tracker that never warns.
func (a *Auditor) Track(runID string) *Tracker {
	return &Tracker{auditor: a, runID: runID}
}

// Tracker follows one run. An approval covers the next mutating call only.
type Tracker struct {
	auditor *Auditor
	runID   string

	mu       sync.Mutex
	approved bool
	warnings []string
}

// Observe records that toolName is about to be invoked and returns a warning
// when it mutates state without a preceding approval.
func (t *Tracker) Observe(ctx context.Context, toolName string) string {
	if t == nil || t.auditor == nil {
		return ""
	}
	a := t.auditor
	t.mu.Lock()
	defer t.mu.Unlock()

	if toolName == a.approvalTool {
		t.approved = true
		a.log(ctx, domain.AuditEntry{RunID: t.runID, Action: ActionApproval, ToolName: toolName})
		return ""
	}
	if !a.Mutating(toolName) {
		return ""
	}

	approved := t.approved
	t.approved = false
	if approved {
		a.log(ctx, domain.AuditEntry{RunID: t.runID, Action: ActionToolExec, ToolName: toolName, Details: "approved"})
		return ""
	}

	w := fmt.Sprintf("%s invoked without a preceding %s", toolName, a.approvalTool)
	a.logger.Warn("mutating tool called without approval", "run_id", t.runID, "tool", toolName)
	a.log(ctx, domain.AuditEntry{RunID: t.runID, Action: ActionUnapprovedMutation, ToolName: toolName, Details: w})
	t.warnings = append(t.warnings, w)
	return w
}

// Done records the final answer. When the profile requires approval before
// finishing and none was given since the last mutation, it returns a warning.
func (t *Tracker) Done(ctx context.Context, requireApproval bool) string {
	if t == nil || t.auditor == nil || !requireApproval {
		return ""
	}
	a := t.auditor
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.approved {
		return ""
	}
	w := fmt.Sprintf("final answer given without a preceding %s", a.approvalTool)
	a.logger.Warn("run finished without approval", "run_id", t.runID)
	a.log(ctx, domain.AuditEntry{RunID: t.runID, Action: ActionUnapprovedDone, Details: w})
	t.warnings = append(t.warnings, w)
	return w
}

// Warnings returns the warnings raised so far.
func (t *Tracker) Warnings() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.warnings...)
}

func (a *Auditor) log(ctx context.Context, entry domain.AuditEntry) {
	if !a.auditLog || a.audit == nil {
		return
	}
	if err := a.audit.LogAudit(ctx, entry); err != nil {
		a.logger.Warn("audit log write failed", "run_id", entry.RunID, "action", entry.Action, "err", err)
	}
}

// Simple names become case-insensitive substring patterns.
func compilePattern(p string) (*regexp.Regexp, error) {
	if isRegex(p) {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		return re, nil
	}
	return regexp.Compile(`(?i)` + regexp.QuoteMeta(p))
}

func isRegex(s string) bool {
	for _, c := range s {
		switch c {
		case '(', ')', '[', ']', '{', '}', '|', '^', '$', '.', '*', '+', '?', '\\':
			return true
		}
	}
	return false
}
