package domain

// AuditEntry is one line of the approval-policy audit trail.
type AuditEntry struct {
	RunID    string
	Action   string // tool_exec | approval | unapproved_mutation | unapproved_done
	ToolName string
	Details  string
}
