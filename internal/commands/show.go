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
	Register(&ShowCmd{})
}

// ShowCmd implements the show command.
type ShowCmd struct{}

func (c *ShowCmd) Name() string       { return "show" }
func (c *ShowCmd) Aliases() []string  { return []string{"get"} }
func (c *ShowCmd) Synopsis() string   { return "Show a task in full" }
func (c *ShowCmd) Usage() string      { return "taskdesk show <ref>" }
func (c *ShowCmd) NeedsService() bool { return true }

func (c *ShowCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ShowCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[1])
		return exitcode.UserError
	}

	b := newBoard(cfg, svc)
	task, err := lookupTask(ctx, b, args)
	if err != nil {
		return report(errOut, err)
	}

	// The list payload may be abbreviated; the single-task read is canonical.
	task, err = b.Tasks().Load(ctx, task.ID)
	if err != nil {
		return report(errOut, err)
	}

	output.FormatTaskDetails(out, task, nowFunc())
	return exitcode.Success
}
