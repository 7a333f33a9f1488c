package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskdesk/internal/config"
	"taskdesk/internal/exitcode"
	"taskdesk/internal/service"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	description string
	status      string
	priority    string
	due         string
}

// SetFields sets the optional task fields (for testing).
func (c *AddCmd) SetFields(description, status, priority, due string) {
	c.description, c.status, c.priority, c.due = description, status, priority, due
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string {
	return "taskdesk add [-d <text>] [--status <s>] [--priority <p>] [--due <YYYY-MM-DD>] <title...>"
}
func (c *AddCmd) NeedsService() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.description, "description", "", "")
	fs.StringVar(&c.description, "d", "", "")
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.status, "s", "", "")
	fs.StringVar(&c.priority, "priority", "", "")
	fs.StringVar(&c.priority, "p", "", "")
	fs.StringVar(&c.due, "due", "", "")
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}

	b := newBoard(cfg, svc)
	b.OpenCreate()
	form := b.Form()
	form.Title = title
	form.Description = c.description
	form.DueDate = strings.TrimSpace(c.due)
	if c.status != "" {
		s, err := service.ParseTaskStatus(c.status)
		if err != nil {
			return report(errOut, err)
		}
		form.Status = s
	}
	if c.priority != "" {
		p, err := service.ParseTaskPriority(c.priority)
		if err != nil {
			return report(errOut, err)
		}
		form.Priority = p
	}

	if !b.Submit(ctx, form) {
		return report(errOut, boardErr(b))
	}
	return ok(cfg, out)
}
