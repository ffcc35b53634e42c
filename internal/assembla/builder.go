package assembla

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Ilia01/assembla2gh/internal/models"
)

// NullValue is how the export writes a missing reference or empty text.
const NullValue = "null"

var (
	ErrUnknownUser      = errors.New("unknown user")
	ErrUnknownStatus    = errors.New("unknown ticket status")
	ErrUnknownMilestone = errors.New("unknown milestone")
	ErrUnknownPriority  = errors.New("unknown priority")
	ErrUnknownTicket    = errors.New("unknown ticket")
	ErrInvalidTicket    = errors.New("invalid ticket number")
)

type textRewriter interface {
	Rewrite(string) string
}

// Options are the lookup tables and settings the builders resolve against.
type Options struct {
	Users        map[string]string
	GitHubUsers  map[string]string
	CloseReasons map[string]string
	Priorities   map[string]string
	UTCOffset    time.Duration
	Rewriter     textRewriter
}

// Dataset is everything built from one export, ready to be emitted.
type Dataset struct {
	Statuses   map[string]*models.Status
	Milestones []*models.Milestone
	Labels     []models.Label
	Tickets    map[string]*models.Ticket

	milestones map[string]*models.Milestone
	byNumber   map[int]*models.Ticket
	maxNumber  int
}

// MaxNumber is the highest ticket number seen.
func (d *Dataset) MaxNumber() int {
	return d.maxNumber
}

func (d *Dataset) TicketByNumber(n int) (*models.Ticket, bool) {
	t, ok := d.byNumber[n]
	return t, ok
}

// AttachLabels appends every label row's name to the ticket it belongs to.
func (d *Dataset) AttachLabels() error {
	for _, l := range d.Labels {
		t, ok := d.Tickets[l.TicketID]
		if !ok {
			return fmt.Errorf("label %q: %w %s", l.Name, ErrUnknownTicket, l.TicketID)
		}
		t.AddLabel(l.Name)
	}
	return nil
}

type builder struct {
	opts Options
	ds   *Dataset
}

// Build turns decoded rows into a Dataset. Statuses and milestones are built
// first so tickets can reference them wherever they appear in the file.
func Build(exp *Export, opts Options) (*Dataset, error) {
	b := &builder{
		opts: opts,
		ds: &Dataset{
			Statuses:   make(map[string]*models.Status),
			Tickets:    make(map[string]*models.Ticket),
			milestones: make(map[string]*models.Milestone),
			byNumber:   make(map[int]*models.Ticket),
		},
	}
	steps := []struct {
		kind  Kind
		build func([]string) error
	}{
		{KindStatus, b.status},
		{KindMilestone, b.milestone},
		{KindTicket, b.ticket},
		{KindComment, b.comment},
		{KindLabel, b.label},
	}
	for _, step := range steps {
		for _, rec := range exp.Records[step.kind] {
			if err := step.build(rec.Fields); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", rec.Line, step.kind, err)
			}
		}
	}
	return b.ds, nil
}

func (b *builder) status(row []string) error {
	name := row[2]
	reason, ok := b.opts.CloseReasons[name]
	if !ok {
		reason = models.DefaultCloseReason
	}
	b.ds.Statuses[row[0]] = &models.Status{Name: name, Open: row[3] == "1", Reason: reason}
	return nil
}

func (b *builder) milestone(row []string) error {
	creator, err := b.user(row[5])
	if err != nil {
		return err
	}
	m := &models.Milestone{
		SourceID:    row[0],
		Name:        row[2],
		Description: "Created By " + creator + "\n" + b.rewrite(row[7]),
		State:       models.MilestoneOpen,
	}
	if row[1] != NullValue {
		m.DueOn = row[1] + "T00:00:00Z"
	}
	if row[8] != "0" {
		m.State = models.MilestoneClosed
		m.Description += "\nCompleted on " + row[9]
	}
	if _, exists := b.ds.milestones[m.SourceID]; !exists {
		b.ds.Milestones = append(b.ds.Milestones, m)
	}
	b.ds.milestones[m.SourceID] = m
	return nil
}

func (b *builder) ticket(row []string) error {
	number, err := strconv.Atoi(row[1])
	if err != nil || number < 1 {
		return fmt.Errorf("%w %q", ErrInvalidTicket, row[1])
	}
	if prev, dup := b.ds.byNumber[number]; dup {
		return fmt.Errorf("%w %d: already used by %s", ErrInvalidTicket, number, prev.SourceID)
	}

	t := &models.Ticket{
		SourceID:    row[0],
		Number:      number,
		Title:       b.rewrite(row[5]),
		Description: b.rewrite(row[7]),
		WorkedHours: row[23],
	}
	if t.Priority, err = b.priority(row[6]); err != nil {
		return err
	}
	if t.CreatedOn, err = b.timestamp(row[8]); err != nil {
		return err
	}
	if t.UpdatedOn, err = b.timestamp(row[9]); err != nil {
		return err
	}
	if t.CreatedBy, err = b.user(row[2]); err != nil {
		return err
	}
	if t.AssignedTo, err = b.user(row[3]); err != nil {
		return err
	}
	t.GitHubAssignee = b.opts.GitHubUsers[row[3]]

	status, ok := b.ds.Statuses[row[19]]
	if !ok {
		return fmt.Errorf("ticket %d: %w %q", number, ErrUnknownStatus, row[19])
	}
	t.Status = status

	if row[10] != NullValue {
		m, ok := b.ds.milestones[row[10]]
		if !ok {
			return fmt.Errorf("ticket %d: %w %q", number, ErrUnknownMilestone, row[10])
		}
		t.Milestone = m
	}

	b.ds.Tickets[t.SourceID] = t
	b.ds.byNumber[number] = t
	if number > b.ds.maxNumber {
		b.ds.maxNumber = number
	}
	return nil
}

func (b *builder) comment(row []string) error {
	body := row[5]
	if body == "" || body == NullValue {
		return nil
	}
	t, ok := b.ds.Tickets[row[1]]
	if !ok {
		return fmt.Errorf("comment: %w %q", ErrUnknownTicket, row[1])
	}
	created, err := b.timestamp(row[4])
	if err != nil {
		return err
	}
	author, err := b.user(row[2])
	if err != nil {
		return err
	}
	t.AddComment(models.Comment{Body: b.rewrite(body), CreatedOn: created, Author: author})
	return nil
}

func (b *builder) label(row []string) error {
	name := row[4]
	if name == "" || name == NullValue {
		return nil
	}
	if _, ok := b.ds.Tickets[row[1]]; !ok {
		return fmt.Errorf("label %q: %w %q", name, ErrUnknownTicket, row[1])
	}
	b.ds.Labels = append(b.ds.Labels, models.Label{Name: name, TicketID: row[1]})
	return nil
}

func (b *builder) user(id string) (string, error) {
	name, ok := b.opts.Users[id]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownUser, id)
	}
	return name, nil
}

func (b *builder) priority(code string) (string, error) {
	label, ok := b.opts.Priorities[code]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownPriority, code)
	}
	return label, nil
}

func (b *builder) rewrite(text string) string {
	if b.opts.Rewriter == nil {
		return text
	}
	return b.opts.Rewriter.Rewrite(text)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// timestamp parses an export timestamp and shifts it by the configured offset,
// keeping any zone the export wrote.
func (b *builder) timestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Add(b.opts.UTCOffset), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}
