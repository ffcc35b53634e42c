// Package migrate replays a built Assembla dataset against GitHub, keeping
// ticket numbers and issue numbers aligned.
package migrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Ilia01/assembla2gh/internal/assembla"
	"github.com/Ilia01/assembla2gh/internal/github"
	"github.com/Ilia01/assembla2gh/internal/models"
	"github.com/Ilia01/assembla2gh/internal/utils"
)

type executor interface {
	Execute(ctx context.Context, args []string) (string, error)
}

type Options struct {
	Repo string
	// OutputDir receives one markdown snapshot per ticket. Empty disables
	// snapshots.
	OutputDir string
	// MilestoneOffset is the number of milestones already in the repository.
	MilestoneOffset int
	// Update edits existing issues instead of creating them and skips
	// placeholders.
	Update bool
	Logger *slog.Logger
}

type Migrator struct {
	ds   *assembla.Dataset
	exec executor
	opts Options
	out  io.Writer
}

func New(ds *assembla.Dataset, exec executor, opts Options, out io.Writer) *Migrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Migrator{ds: ds, exec: exec, opts: opts, out: out}
}

// Run emits milestones, labels, tickets 1..max and finally milestone
// closures. Each phase relies on the one before it.
func (m *Migrator) Run(ctx context.Context) error {
	numbers, err := m.createMilestones(ctx)
	if err != nil {
		return err
	}
	if err := m.createLabels(ctx); err != nil {
		return err
	}
	if err := m.ds.AttachLabels(); err != nil {
		return err
	}
	if m.opts.OutputDir != "" {
		if err := os.MkdirAll(m.opts.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	for n := 1; n <= m.ds.MaxNumber(); n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ticket, ok := m.ds.TicketByNumber(n)
		if ok {
			err = m.emitTicket(ctx, ticket)
		} else {
			err = m.emitPlaceholder(ctx, n)
		}
		if err != nil {
			return fmt.Errorf("ticket %d: %w", n, err)
		}
	}
	return m.closeMilestones(ctx, numbers)
}

// createMilestones returns the GitHub number of each milestone, in dataset
// order. When gh gives no usable response the number is inferred from the
// creation order.
func (m *Migrator) createMilestones(ctx context.Context) ([]int, error) {
	numbers := make([]int, len(m.ds.Milestones))
	for i, ms := range m.ds.Milestones {
		fmt.Fprintln(m.out, utils.Cyan("Creating: "+ms.String()))
		out, err := m.exec.Execute(ctx, github.CreateMilestoneArgs(m.opts.Repo, ms))
		if err != nil {
			return nil, fmt.Errorf("milestone %q: %w", ms.Name, err)
		}
		number, ok := github.MilestoneNumber(out)
		if !ok {
			number = m.opts.MilestoneOffset + i + 1
		}
		numbers[i] = number
	}
	return numbers, nil
}

func (m *Migrator) createLabels(ctx context.Context) error {
	for _, l := range models.DistinctLabels(m.ds.Labels) {
		fmt.Fprintln(m.out, utils.Cyan("Creating: "+l.String()))
		if _, err := m.exec.Execute(ctx, github.CreateLabelArgs(m.opts.Repo, l.Name)); err != nil {
			return fmt.Errorf("label %q: %w", l.Name, err)
		}
	}
	return nil
}

func (m *Migrator) emitTicket(ctx context.Context, t *models.Ticket) error {
	if err := m.writeSnapshot(t); err != nil {
		return err
	}
	args := github.CreateIssueArgs(m.opts.Repo, t)
	if m.opts.Update {
		args = github.EditIssueArgs(m.opts.Repo, t)
	}
	fmt.Fprintln(m.out, utils.Green("Creating: "+t.String()))
	if _, err := m.exec.Execute(ctx, args); err != nil {
		return err
	}
	if t.Status.Open {
		return nil
	}
	fmt.Fprintln(m.out, utils.Dim(" - Closing ticket: "+strconv.Itoa(t.Number)))
	_, err := m.exec.Execute(ctx, github.CloseIssueArgs(m.opts.Repo, t.Number, t.Status.Reason))
	return err
}

func (m *Migrator) emitPlaceholder(ctx context.Context, n int) error {
	if m.opts.Update {
		m.opts.Logger.Debug("no ticket for number, leaving issue untouched", "number", n)
		return nil
	}
	fmt.Fprintln(m.out, utils.Yellow("No ticket found with the given ID = "+strconv.Itoa(n)))
	if _, err := m.exec.Execute(ctx, github.PlaceholderArgs(m.opts.Repo)); err != nil {
		return err
	}
	_, err := m.exec.Execute(ctx, github.CloseIssueArgs(m.opts.Repo, n, models.NotPlannedReason))
	return err
}

func (m *Migrator) closeMilestones(ctx context.Context, numbers []int) error {
	for i, ms := range m.ds.Milestones {
		if !ms.Closed() {
			continue
		}
		fmt.Fprintln(m.out, utils.Cyan(fmt.Sprintf("Closing milestone id: %d for %s", numbers[i], ms)))
		if _, err := m.exec.Execute(ctx, github.CloseMilestoneArgs(m.opts.Repo, numbers[i], ms)); err != nil {
			return fmt.Errorf("close milestone %q: %w", ms.Name, err)
		}
	}
	return nil
}

func (m *Migrator) writeSnapshot(t *models.Ticket) error {
	if m.opts.OutputDir == "" {
		return nil
	}
	path := filepath.Join(m.opts.OutputDir, t.FileName())
	if err := os.WriteFile(path, []byte(t.Markdown(true)), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
