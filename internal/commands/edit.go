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
	Register(&EditCmd{})
}

// optString is a string flag that remembers whether it was given.
type optString struct {
	set bool
	val string
}

func (o *optString) String() string { return o.val }

func (o *optString) Set(v string) error {
	o.set, o.val = true, v
	return nil
}

// EditCmd implements the edit command.
type EditCmd struct {
	title       optString
	description optString
	status      optString
	priority    optString
	due         optString
}

// SetTitle sets the new title (for testing).
func (c *EditCmd) SetTitle(title string) { c.title.Set(title) }

// SetPriority sets the new priority (for testing).
func (c *EditCmd) SetPriority(priority string) { c.priority.Set(priority) }

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return []string{"update"} }
func (c *EditCmd) Synopsis() string  { return "Change fields of a task" }
func (c *EditCmd) Usage() string {
	return "taskdesk edit [--title <t>] [-d <text>] [--status <s>] [--priority <p>] [--due <YYYY-MM-DD>] <ref>"
}
func (c *EditCmd) NeedsService() bool { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.Var(&c.title, "title", "")
	fs.Var(&c.title, "t", "")
	fs.Var(&c.description, "description", "")
	fs.Var(&c.description, "d", "")
	fs.Var(&c.status, "status", "")
	fs.Var(&c.status, "s", "")
	fs.Var(&c.priority, "priority", "")
	fs.Var(&c.priority, "p", "")
	fs.Var(&c.due, "due", "")
}

func (c *EditCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if !c.title.set && !c.description.set && !c.status.set && !c.priority.set && !c.due.set {
		fmt.Fprintln(errOut, "error: nothing to change")
		return exitcode.UserError
	}
	if len(args) > 1 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[1])
		return exitcode.UserError
	}

	b := newBoard(cfg, svc)
	task, err := lookupTask(ctx, b, args)
	if err != nil {
		return report(errOut, err)
	}
	b.OpenEdit(task.ID)

	form := b.Form()
	if c.title.set {
		form.Title = strings.TrimSpace(c.title.val)
	}
	if c.description.set {
		form.Description = c.description.val
	}
	if c.due.set {
		form.DueDate = strings.TrimSpace(c.due.val)
	}
	if c.status.set {
		s, err := service.ParseTaskStatus(c.status.val)
		if err != nil {
			return report(errOut, err)
		}
		form.Status = s
	}
	if c.priority.set {
		p, err := service.ParseTaskPriority(c.priority.val)
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
