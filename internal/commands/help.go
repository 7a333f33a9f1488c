package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskdesk/internal/config"
	"taskdesk/internal/exitcode"
	"taskdesk/internal/service"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string       { return "help" }
func (c *HelpCmd) Aliases() []string  { return nil }
func (c *HelpCmd) Synopsis() string   { return "Print usage" }
func (c *HelpCmd) Usage() string      { return "taskdesk help" }
func (c *HelpCmd) NeedsService() bool { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  taskdesk                                      List all tasks
  taskdesk list [common flags] [--status <s>] [--priority <p>] [--search <text>]
  taskdesk show [common flags] <ref>
  taskdesk add [common flags] [-d <text>] [--status <s>] [--priority <p>] [--due <date>] <title...>
  taskdesk edit [common flags] [--title <t>] [-d <text>] [--status <s>] [--priority <p>] [--due <date>] <ref>
  taskdesk status [common flags] <ref> <status>
  taskdesk done [common flags] <ref>
  taskdesk assign [common flags] <ref> <user-id|full name...>
  taskdesk rm [common flags] [--yes] <ref>
  taskdesk users [common flags]
  taskdesk tui [common flags]
  taskdesk help
  taskdesk version

References:
  <ref> is a task id, or a number as printed by an unfiltered "taskdesk list".

Statuses:   PENDING, IN_PROGRESS, COMPLETED, CANCELLED
Priorities: LOW, MEDIUM, HIGH, URGENT

Common flags:
  --config <dir>    Override config directory
  --api-url <url>   Override the service address
  --quiet           Suppress informational output
  --debug           Print debug logs to stderr
`
