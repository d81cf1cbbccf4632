package domain

import "strings"

// Role identifies one of the fixed behavior profiles.
type Role string

const (
	RoleProductOwner Role = "product_owner"
	RoleScrumLead    Role = "scrum_lead"
	RolePeerReviewer Role = "peer_reviewer"
)

// Roles lists every known role, lowest priority first.
var Roles = []Role{RoleProductOwner, RoleScrumLead, RolePeerReviewer}

// roleNames maps accepted (lowercase) names to roles: display names, the
// "peer review" label the classification prompt historically used, and the
// identifiers themselves.
var roleNames = map[string]Role{
	"product owner": RoleProductOwner,
	"scrum lead":    RoleScrumLead,
	"peer reviewer": RolePeerReviewer,
	"peer review":   RolePeerReviewer,
	"product_owner": RoleProductOwner,
	"scrum_lead":    RoleScrumLead,
	"peer_reviewer": RolePeerReviewer,
}

// ParseRole maps a role name to a Role, case-insensitively after trimming.
func ParseRole(name string) (Role, bool) {
	r, ok := roleNames[strings.ToLower(strings.TrimSpace(name))]
	return r, ok
}

// Priority is the tie-break rank: PeerReviewer > ScrumLead > ProductOwner.
func (r Role) Priority() int {
	switch r {
	case RolePeerReviewer:
		return 3
	case RoleScrumLead:
		return 2
	case RoleProductOwner:
		return 1
	}
	return 0
}

// DisplayName returns the human-readable role name.
func (r Role) DisplayName() string {
	switch r {
	case RoleProductOwner:
		return "Product Owner"
	case RoleScrumLead:
		return "Scrum Lead"
	case RolePeerReviewer:
		return "Peer Reviewer"
	}
	return string(r)
}

// Profile is the behavior profile that governs one run.
type Profile struct {
	Role                      Role     `json:"role" yaml:"role"`
	Name                      string   `json:"name" yaml:"name"`
	Instructions              string   `json:"instructions" yaml:"instructions"`
	Keywords                  []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	AllowedTools              []string `json:"allowedTools,omitempty" yaml:"allowedTools,omitempty"`
	DeniedTools               []string `json:"deniedTools,omitempty" yaml:"deniedTools,omitempty"`
	RequireApprovalBeforeDone bool     `json:"requireApprovalBeforeDone" yaml:"requireApprovalBeforeDone"`
}

// Task is a submitted instruction with an optional explicit role override.
type Task struct {
	Text string
	Role string
}
