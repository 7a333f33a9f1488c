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
	Register(&AssignCmd{})
}

// AssignCmd implements the assign command.
type AssignCmd struct{}

func (c *AssignCmd) Name() string       { return "assign" }
func (c *AssignCmd) Aliases() []string  { return nil }
func (c *AssignCmd) Synopsis() string   { return "Assign a task to a user" }
func (c *AssignCmd) Usage() string      { return "taskdesk assign <ref> <user-id|full name...>" }
func (c *AssignCmd) NeedsService() bool { return true }

func (c *AssignCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *AssignCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return report(errOut, err)
	}
	who := strings.TrimSpace(strings.Join(args[1:], " "))
	if who == "" {
		fmt.Fprintln(errOut, "error: user required")
		return exitcode.UserError
	}

	b := newBoard(cfg, svc)
	b.Start(ctx)
	view := b.Snapshot()
	if view.Err != nil {
		return report(errOut, view.Err)
	}
	if view.UserErr != nil {
		return report(errOut, view.UserErr)
	}

	task, err := b.ResolveTask(ref)
	if err != nil {
		return report(errOut, err)
	}
	user, err := b.Users().Find(who)
	if err != nil {
		return report(errOut, fmt.Errorf("%w: %s", err, who))
	}

	b.OpenAssign(task.ID)
	if !b.Assign(ctx, user.ID) {
		return report(errOut, boardErr(b))
	}
	return ok(cfg, out)
}
