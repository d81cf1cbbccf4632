package role

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"rea/internal/domain"
)

const approvalRule = "Before any file operation, before creating or changing anything in Azure DevOps, " +
	"and before giving your final answer, call request_approval describing what you intend to do, why, " +
	"and the expected outcome. Follow the human's reply."

// DefaultProfiles returns the built-in behavior profiles keyed by role.
func DefaultProfiles() map[domain.Role]domain.Profile {
	return map[domain.Role]domain.Profile{
		domain.RoleProductOwner: {
			Role: domain.RoleProductOwner,
			Name: domain.RoleProductOwner.DisplayName(),
			Instructions: "You are a Product Owner. Turn business OKRs into clear, prioritised backlog items and " +
				"user stories (\"As a <user>, I want <feature> so that <outcome>\") with measurable acceptance " +
				"criteria. Use the Azure DevOps tools to inspect and maintain the backlog, link stories to their " +
				"features, and plan sprints against team capacity.\n\n" + approvalRule,
			Keywords: []string{
				"okr", "feature", "story", "user story", "backlog", "priority", "roadmap", "release",
				"requirement", "acceptance criteria", "product goal", "epic",
			},
			DeniedTools:               []string{"pipelines_run_pipeline"},
			RequireApprovalBeforeDone: true,
		},
		domain.RoleScrumLead: {
			Role: domain.RoleScrumLead,
			Name: domain.RoleScrumLead.DisplayName(),
			Instructions: "You are a Scrum Lead. Facilitate sprint planning and execution, track progress, " +
				"velocity and capacity, surface impediments, and keep work items current. Use the Azure DevOps " +
				"tools to read iterations, team capacity and work item state, and report clearly.\n\n" + approvalRule,
			Keywords: []string{
				"sprint", "burndown", "scrum", "standup", "daily standup", "task assignment", "velocity",
				"retrospective", "impediment", "progress", "capacity", "iteration",
			},
			RequireApprovalBeforeDone: true,
		},
		domain.RolePeerReviewer: {
			Role: domain.RolePeerReviewer,
			Name: domain.RolePeerReviewer.DisplayName(),
			Instructions: "You are a Peer Reviewer. Validate code, configuration scripts and deployment packages " +
				"against coding, compliance and deployment standards. Inspect commits, pull requests and builds " +
				"with the Azure DevOps tools, classify findings as Critical, Major, Minor or Informational, and " +
				"write an audit-ready review report.\n\n" + approvalRule,
			Keywords: []string{
				"code review", "review", "commit", "pull request", "deployment", "compliance", "patch",
				"configuration", "script", "validation", "rollback", "audit", "version", "code change",
			},
			RequireApprovalBeforeDone: true,
		},
	}
}

// LoadProfiles returns the built-in profiles with overrides applied from the
// *.yaml and *.yml files in dir. Each file names its role; fields it sets
// replace the built-in ones. An empty dir yields the defaults.
func LoadProfiles(dir string) (map[domain.Role]domain.Profile, error) {
	profiles := DefaultProfiles()
	if dir == "" {
		return profiles, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return profiles, nil
		}
		return nil, fmt.Errorf("read profiles dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read profile %s: %w", path, err)
		}
		var override profileFile
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("parse profile %s: %w", path, err)
		}
		role, ok := normalizeRole(override.Role)
		if !ok {
			return nil, fmt.Errorf("profile %s: %w", path, &domain.UnknownRoleError{Value: override.Role})
		}
		profiles[role] = merge(profiles[role], override)
	}
	return profiles, nil
}

// normalizeRole accepts both identifiers (scrum_lead) and display names (Scrum Lead).
func normalizeRole(s string) (domain.Role, bool) {
	for _, r := range domain.Roles {
		if string(r) == strings.TrimSpace(s) {
			return r, true
		}
	}
	return domain.ParseRole(strings.ReplaceAll(s, "_", " "))
}

// profileFile is the on-disk form of a profile override. Unset fields keep
// the built-in values.
type profileFile struct {
	Role                      string   `yaml:"role"`
	Name                      string   `yaml:"name"`
	Instructions              string   `yaml:"instructions"`
	Keywords                  []string `yaml:"keywords"`
	AllowedTools              []string `yaml:"allowedTools"`
	DeniedTools               []string `yaml:"deniedTools"`
	RequireApprovalBeforeDone *bool    `yaml:"requireApprovalBeforeDone"`
}

func merge(base domain.Profile, o profileFile) domain.Profile {
	if o.Name != "" {
		base.Name = o.Name
	}
	if o.Instructions != "" {
		base.Instructions = o.Instructions
	}
	if o.Keywords != nil {
		base.Keywords = o.Keywords
	}
	if o.AllowedTools != nil {
		base.AllowedTools = o.AllowedTools
	}
	if o.DeniedTools != nil {
		base.DeniedTools = o.DeniedTools
	}
	if o.RequireApprovalBeforeDone != nil {
		base.RequireApprovalBeforeDone = *o.RequireApprovalBeforeDone
	}
	return base
}
