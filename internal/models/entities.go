package models

import "fmt"

const (
	MilestoneOpen   = "open"
	MilestoneClosed = "closed"

	// DefaultCloseReason is used for closed statuses without an override.
	DefaultCloseReason = "completed"
	// NotPlannedReason closes gap placeholders.
	NotPlannedReason = "not planned"
)

type Status struct {
	Name   string
	Open   bool
	Reason string
}

type Milestone struct {
	SourceID    string
	Name        string
	DueOn       string
	Description string
	State       string
}

func (m *Milestone) Closed() bool {
	return m.State == MilestoneClosed
}

func (m *Milestone) String() string {
	due := m.DueOn
	if due == "" {
		due = "None"
	}
	return fmt.Sprintf("Milestone(name=%s, dueDate=%s, state=%s, description=%s)", m.Name, due, m.State, m.Description)
}

// Label is a label name as attached to one ticket. Two labels are the same
// label when their names match, whichever ticket they came from.
type Label struct {
	Name     string
	TicketID string
}

func (l Label) Equal(other Label) bool {
	return l.Name == other.Name
}

func (l Label) String() string {
	return fmt.Sprintf("Label(name=%s)", l.Name)
}

// DistinctLabels returns one label per name, in first-seen order.
func DistinctLabels(labels []Label) []Label {
	seen := make(map[string]struct{}, len(labels))
	out := make([]Label, 0, len(labels))
	for _, l := range labels {
		if _, ok := seen[l.Name]; ok {
			continue
		}
		seen[l.Name] = struct{}{}
		out = append(out, l)
	}
	return out
}
