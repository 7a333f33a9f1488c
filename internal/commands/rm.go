package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"taskdesk/internal/config"
	"taskdesk/internal/exitcode"
	"taskdesk/internal/service"
)

func init() {
	Register(&RmCmd{})
}

// errAborted is reported when the deletion prompt is declined.
var errAborted = errors.New("aborted")

// RmCmd implements the rm command.
type RmCmd struct {
	yes bool
	in  io.Reader
}

// SetYes skips the confirmation prompt (for testing).
func (c *RmCmd) SetYes(yes bool) { c.yes = yes }

// SetInput sets where the confirmation answer is read from (for testing).
func (c *RmCmd) SetInput(r io.Reader) { c.in = r }

func (c *RmCmd) Name() string       { return "rm" }
func (c *RmCmd) Aliases() []string  { return []string{"delete"} }
func (c *RmCmd) Synopsis() string   { return "Delete a task" }
func (c *RmCmd) Usage() string      { return "taskdesk rm [--yes] <ref>" }
func (c *RmCmd) NeedsService() bool { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.yes, "yes", false, "")
	fs.BoolVar(&c.yes, "y", false, "")
}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[1])
		return exitcode.UserError
	}

	b := newBoard(cfg, svc)
	task, err := lookupTask(ctx, b, args)
	if err != nil {
		return report(errOut, err)
	}

	confirmed := true
	deleted := b.Delete(ctx, task.ID, func(t service.Task) bool {
		if c.yes {
			return true
		}
		confirmed = c.confirm(t, out)
		return confirmed
	})
	if !confirmed {
		return report(errOut, errAborted)
	}
	if !deleted {
		return report(errOut, boardErr(b))
	}
	return ok(cfg, out)
}

// confirm asks on out and reads a y/N answer from the input.
func (c *RmCmd) confirm(task service.Task, out io.Writer) bool {
	in := c.in
	if in == nil {
		in = os.Stdin
	}
	fmt.Fprintf(out, "delete %q? [y/N] ", task.Title)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
