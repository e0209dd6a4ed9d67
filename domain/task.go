package domain

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// DateLayout is the wire format for fields that carry a calendar date with
// no time component (dueDate, startDate, completedDate, lastSessionDate).
const DateLayout = "2006-01-02"

// Column statuses form a closed set; every task status must be one of these.
const (
	StatusBacklog    = "backlog"
	StatusReady      = "ready"
	StatusInProgress = "in-progress"
	StatusReview     = "review"
	StatusDone       = "done"
	StatusParked     = "parked"
)

// ErrTaskNotFound indicates that a referenced task does not exist, or is
// archived and therefore invisible to the active board.
var ErrTaskNotFound = errors.New("task not found")

// Column describes one stage of the board. WIPLimit is advisory: exceeding
// it surfaces a warning, it never blocks a mutation.
type Column struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	WIPLimit int    `json:"wipLimit,omitempty"`
}

// DefaultColumns is the fixed board layout.
var DefaultColumns = []Column{
	{ID: StatusBacklog, Title: "Backlog"},
	{ID: StatusReady, Title: "Ready", WIPLimit: 5},
	{ID: StatusInProgress, Title: "In Progress", WIPLimit: 3},
	{ID: StatusReview, Title: "Review/Test", WIPLimit: 2},
	{ID: StatusDone, Title: "Done"},
	{ID: StatusParked, Title: "Parked"},
}

// ColumnByID returns the column definition for the given status identifier.
func ColumnByID(id string) (Column, bool) {
	for _, c := range DefaultColumns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnTitle returns the display title for a status, falling back to the
// raw identifier for unknown values.
func ColumnTitle(id string) string {
	if c, ok := ColumnByID(id); ok {
		return c.Title
	}
	return id
}

// EffortSizes and ImpactLevels are the closed sets for task sizing.
var (
	EffortSizes  = []string{"XS", "S", "M", "L", "XL"}
	ImpactLevels = []string{"Low", "Medium", "High"}
)

// Portfolios maps each portfolio tag to its fixed project list.
var Portfolios = map[string][]string{
	"pmo-eco":    {"BizSimHub", "ProjectManagerTool", "PMO Advisor", "Education Hub", "PMO Ecosystem Hub"},
	"consulting": {"BL Camions", "Capacity Planner"},
	"tools":      {"Financial Dashboard", "Invoice Tracker", "Activity Tracker"},
	"speaking":   {"Cruise Content", "Presentations", "Destination Talks"},
}

// Task is the only persistent entity: one card on the board.
type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Status          string     `json:"status"`
	Portfolio       string     `json:"portfolio"`
	Project         string     `json:"project,omitempty"`
	Effort          string     `json:"effort,omitempty"`
	Impact          string     `json:"impact,omitempty"`
	Blocked         bool       `json:"blocked"`
	BlockerReason   string     `json:"blockerReason,omitempty"`
	DueDate         string     `json:"dueDate,omitempty"`
	StartDate       string     `json:"startDate,omitempty"`
	CompletedDate   string     `json:"completedDate,omitempty"`
	LastSessionDate string     `json:"lastSessionDate,omitempty"`
	SessionNotes    string     `json:"sessionNotes,omitempty"`
	NextAction      string     `json:"nextAction,omitempty"`
	RepoURL         string     `json:"repoUrl,omitempty"`
	TechStack       []string   `json:"techStack,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	ArchivedAt      *time.Time `json:"archivedAt,omitempty"`
}

// NewTaskID generates a task identifier that embeds the creation time so
// ordinal tie-breaking on id stays consistent with creation order.
func NewTaskID(now time.Time) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return fmt.Sprintf("task-%d-%s", now.UnixMilli(), suffix)
}

// Validate checks the closed-set invariants on a task record.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("title is required")
	}
	if _, ok := ColumnByID(t.Status); !ok {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	projects, ok := Portfolios[t.Portfolio]
	if !ok {
		return fmt.Errorf("unknown portfolio %q", t.Portfolio)
	}
	if t.Project != "" {
		found := false
		for _, p := range projects {
			if p == t.Project {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("project %q does not belong to portfolio %q", t.Project, t.Portfolio)
		}
	}
	if t.Effort != "" && !contains(EffortSizes, t.Effort) {
		return fmt.Errorf("unknown effort %q", t.Effort)
	}
	if t.Impact != "" && !contains(ImpactLevels, t.Impact) {
		return fmt.Errorf("unknown impact %q", t.Impact)
	}
	for _, f := range []string{t.DueDate, t.StartDate, t.CompletedDate, t.LastSessionDate} {
		if f == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, f); err != nil {
			return fmt.Errorf("invalid date %q", f)
		}
	}
	return nil
}

// Archived reports whether the task has been soft-deleted.
func (t Task) Archived() bool { return t.ArchivedAt != nil }

// DaysSince returns whole days elapsed between a calendar-date string and
// now. The second return is false when the date is absent or unparseable.
func DaysSince(dateStr string, now time.Time) (int, bool) {
	if dateStr == "" {
		return 0, false
	}
	d, err := time.Parse(DateLayout, dateStr)
	if err != nil {
		return 0, false
	}
	return int(now.Sub(d).Hours() / 24), true
}

// Stale reports whether the task has had no session for 14 or more days.
func (t Task) Stale(now time.Time) bool {
	days, ok := DaysSince(t.LastSessionDate, now)
	return ok && days >= 14
}

// Overdue reports whether the task's due date has passed and it is not done.
func (t Task) Overdue(now time.Time) bool {
	if t.DueDate == "" || t.Status == StatusDone {
		return false
	}
	d, err := time.Parse(DateLayout, t.DueDate)
	if err != nil {
		return false
	}
	return d.Before(now.Truncate(24 * time.Hour))
}

// NormalizeTechStack drops duplicates while preserving first-seen order.
func NormalizeTechStack(stack []string) []string {
	if len(stack) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(stack))
	out := make([]string, 0, len(stack))
	for _, s := range stack {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
