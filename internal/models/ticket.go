package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is how timestamps are shown in rendered markdown.
const TimeLayout = "02/01/2006 15:04:05"

// NoWorkedHours is the export's value for a ticket nobody logged time against.
const NoWorkedHours = "0.0"

type Ticket struct {
	SourceID       string
	Number         int
	Title          string
	Description    string
	Priority       string
	CreatedOn      time.Time
	UpdatedOn      time.Time
	CreatedBy      string
	AssignedTo     string
	GitHubAssignee string
	Status         *Status
	Milestone      *Milestone
	WorkedHours    string
	Labels         []string
	Comments       []Comment
}

func (t *Ticket) String() string {
	return fmt.Sprintf("Ticket(id=%d, name=%s)", t.Number, t.Title)
}

func (t *Ticket) AddLabel(name string) {
	t.Labels = append(t.Labels, name)
}

func (t *Ticket) AddComment(c Comment) {
	t.Comments = append(t.Comments, c)
}

// FileName is the snapshot name for the ticket, e.g. 0042.md.
func (t *Ticket) FileName() string {
	return fmt.Sprintf("%04d.md", t.Number)
}

// Markdown renders the ticket. The full form is the offline snapshot and adds
// the heading plus the label and milestone rows, which GitHub tracks natively.
func (t *Ticket) Markdown(full bool) string {
	var b strings.Builder
	if full {
		b.WriteString("# " + strconv.Itoa(t.Number) + " - " + t.Title)
	}
	b.WriteString("\n\n| Attribute | Value |\n| --- | --- |\n")
	writeRow(&b, "Status", t.Status.Name)
	if full && t.Milestone != nil {
		writeRow(&b, "Milestone", t.Milestone.Name)
	}
	writeRow(&b, "Assigned To", t.AssignedTo)
	writeRow(&b, "Created By", t.CreatedBy)
	writeRow(&b, "Created", t.CreatedOn.Format(TimeLayout))
	writeRow(&b, "Last Updated", t.UpdatedOn.Format(TimeLayout))
	writeRow(&b, "Priority", t.Priority)
	if full && len(t.Labels) > 0 {
		writeRow(&b, "Labels", strings.Join(t.Labels, ", "))
	}
	if t.WorkedHours != NoWorkedHours {
		writeRow(&b, "Hours Worked", t.WorkedHours)
	}
	b.WriteString("\n\n" + t.Description + "\n\n")
	if len(t.Comments) > 0 {
		parts := make([]string, 0, len(t.Comments))
		for _, c := range t.Comments {
			parts = append(parts, c.String())
		}
		b.WriteString("### Comments\n\n" + strings.Join(parts, "\n\n"))
	}
	return b.String()
}

func writeRow(b *strings.Builder, name, value string) {
	b.WriteString("| " + name + " | " + value + " |\n")
}

type Comment struct {
	Body      string
	CreatedOn time.Time
	Author    string
}

func (c Comment) String() string {
	return fmt.Sprintf("> Comment by %s at %s\n\n%s", c.Author, c.CreatedOn.Format(TimeLayout), c.Body)
}
