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
	Register(&StatusCmd{})
	Register(&DoneCmd{})
}

// StatusCmd implements the status command.
type StatusCmd struct{}

func (c *StatusCmd) Name() string      { return "status" }
func (c *StatusCmd) Aliases() []string { return []string{"mv"} }
func (c *StatusCmd) Synopsis() string  { return "Move a task to another status" }
func (c *StatusCmd) Usage() string {
	return "taskdesk status <ref> <PENDING|IN_PROGRESS|COMPLETED|CANCELLED>"
}
func (c *StatusCmd) NeedsService() bool { return true }

func (c *StatusCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) < 2 {
		if len(args) == 0 {
			return report(errOut, ErrTaskRefRequired)
		}
		fmt.Fprintln(errOut, "error: status required")
		return exitcode.UserError
	}
	return runStatus(ctx, cfg, svc, args[:1], strings.Join(args[1:], " "), out, errOut)
}

// DoneCmd implements the done command.
type DoneCmd struct{}

func (c *DoneCmd) Name() string       { return "done" }
func (c *DoneCmd) Aliases() []string  { return nil }
func (c *DoneCmd) Synopsis() string   { return "Mark a task completed" }
func (c *DoneCmd) Usage() string      { return "taskdesk done <ref>" }
func (c *DoneCmd) NeedsService() bool { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[1])
		return exitcode.UserError
	}
	return runStatus(ctx, cfg, svc, args, string(service.StatusCompleted), out, errOut)
}

// runStatus is the shared implementation for status and done. The status
// is checked before any request is made.
func runStatus(ctx context.Context, cfg *config.Config, svc service.Service, refArgs []string, raw string, out, errOut io.Writer) int {
	if _, err := service.ParseTaskStatus(raw); err != nil {
		return report(errOut, err)
	}

	b := newBoard(cfg, svc)
	task, err := lookupTask(ctx, b, refArgs)
	if err != nil {
		return report(errOut, err)
	}
	if err := b.ChangeStatus(ctx, task.ID, raw); err != nil {
		return report(errOut, err)
	}
	return ok(cfg, out)
}
