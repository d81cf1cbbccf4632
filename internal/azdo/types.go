package azdo

import "time"

type WorkItem struct {
	ID     int            `json:"id"`
	Rev    int            `json:"rev"`
	Fields map[string]any `json:"fields"`
	URL    string         `json:"url"`
}

// Field returns a field value formatted as text.
func (w WorkItem) Field(name string) string {
	v, ok := w.Fields[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if dn, ok := t["displayName"].(string); ok {
			return dn
		}
	}
	return fmtAny(v)
}

// PatchOperation is one JSON Patch entry of a work item create/update.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

type Comment struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

type Repository struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DefaultBranch string `json:"defaultBranch"`
	WebURL        string `json:"webUrl"`
}

type IdentityRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
}

type PullRequest struct {
	PullRequestID int         `json:"pullRequestId"`
	Title         string      `json:"title"`
	Status        string      `json:"status"`
	SourceRefName string      `json:"sourceRefName"`
	TargetRefName string      `json:"targetRefName"`
	CreatedBy     IdentityRef `json:"createdBy"`
	CreationDate  time.Time   `json:"creationDate"`
	Repository    Repository  `json:"repository"`
}

type GitUserDate struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

type Commit struct {
	CommitID string      `json:"commitId"`
	Author   GitUserDate `json:"author"`
	Comment  string      `json:"comment"`
}

type CommitQuery struct {
	RepositoryID string
	FromDate     time.Time
	ToDate       time.Time
	Author       string
	Top          int
}

type BuildDefinitionRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Build struct {
	ID           int                `json:"id"`
	BuildNumber  string             `json:"buildNumber"`
	Status       string             `json:"status"`
	Result       string             `json:"result"`
	SourceBranch string             `json:"sourceBranch"`
	QueueTime    time.Time          `json:"queueTime"`
	Definition   BuildDefinitionRef `json:"definition"`
	RequestedFor IdentityRef        `json:"requestedFor"`
}

type BuildQuery struct {
	DefinitionIDs []int
	Branch        string
	Top           int
}

type PipelineRun struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	State  string `json:"state"`
	Result string `json:"result"`
	URL    string `json:"url"`
}

type TeamMember struct {
	Identity    IdentityRef `json:"identity"`
	IsTeamAdmin bool        `json:"isTeamAdmin"`
}

type IterationAttributes struct {
	StartDate  *time.Time `json:"startDate"`
	FinishDate *time.Time `json:"finishDate"`
	TimeFrame  string     `json:"timeFrame"`
}

type Iteration struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Path       string              `json:"path"`
	Attributes IterationAttributes `json:"attributes"`
}

type Activity struct {
	Name           string  `json:"name"`
	CapacityPerDay float64 `json:"capacityPerDay"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type MemberCapacity struct {
	TeamMember IdentityRef `json:"teamMember"`
	Activities []Activity  `json:"activities"`
	DaysOff    []DateRange `json:"daysOff"`
}

// TeamCapacity is the capacity of every member of a team for one iteration.
type TeamCapacity struct {
	TeamMembers         []MemberCapacity `json:"teamMembers"`
	TotalCapacityPerDay float64          `json:"totalCapacityPerDay"`
	TotalDaysOff        int              `json:"totalDaysOff"`
}
