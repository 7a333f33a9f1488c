package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskdesk/internal/config"
	"taskdesk/internal/exitcode"
	"taskdesk/internal/output"
	"taskdesk/internal/service"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `taskdesk` (no args) and `taskdesk list [filters]`.
type ListCmd struct {
	status   string
	priority string
	search   string
}

// SetFilters sets the raw filter flags (for testing).
func (c *ListCmd) SetFilters(status, priority, search string) {
	c.status, c.priority, c.search = status, priority, search
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string {
	return "taskdesk list [--status <s>] [--priority <p>] [--search <text>]"
}
func (c *ListCmd) NeedsService() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.status, "s", "", "")
	fs.StringVar(&c.priority, "priority", "", "")
	fs.StringVar(&c.priority, "p", "", "")
	fs.StringVar(&c.search, "search", "", "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	filters, err := c.filters()
	if err != nil {
		return report(errOut, err)
	}

	b := newBoard(cfg, svc)
	b.SetFilters(ctx, filters)
	if err := fetchErr(b); err != nil {
		return report(errOut, err)
	}

	view := b.Snapshot()
	if desc := output.FormatFilters(view.Filters); desc != "" && !cfg.Quiet {
		fmt.Fprintf(out, "filters: %s\n", desc)
	}
	if len(view.Tasks) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}

	now := nowFunc()
	for i, task := range view.Tasks {
		output.FormatTask(out, i+1, task, now)
	}
	return exitcode.Success
}

// filters validates the flag values. Empty flags leave the filter unset.
func (c *ListCmd) filters() (service.TaskFilters, error) {
	var f service.TaskFilters
	if c.status != "" {
		s, err := service.ParseTaskStatus(c.status)
		if err != nil {
			return f, err
		}
		f.Status = s
	}
	if c.priority != "" {
		p, err := service.ParseTaskPriority(c.priority)
		if err != nil {
			return f, err
		}
		f.Priority = p
	}
	f.Search = c.search
	return f, nil
}
