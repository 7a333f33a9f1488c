package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"taskdesk/internal/config"
	"taskdesk/internal/exitcode"
	"taskdesk/internal/service"
	"taskdesk/internal/tui"
)

func init() {
	Register(&TUICmd{})
}

// TUICmd implements the interactive board.
type TUICmd struct {
	inline bool
}

func (c *TUICmd) Name() string       { return "tui" }
func (c *TUICmd) Aliases() []string  { return []string{"board"} }
func (c *TUICmd) Synopsis() string   { return "Open the interactive task board" }
func (c *TUICmd) Usage() string      { return "taskdesk tui [--inline]" }
func (c *TUICmd) NeedsService() bool { return true }

// LogsToFile keeps logs off the screen the board draws on.
func (c *TUICmd) LogsToFile() bool { return true }

func (c *TUICmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.inline, "inline", false, "")
}

func (c *TUICmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	app := tui.New(ctx, newBoard(cfg, svc), tui.WithLogger(cfg.Logger))
	defer app.Close()

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(out)}
	if !c.inline {
		opts = append(opts, tea.WithAltScreen())
	}
	if _, err := tea.NewProgram(app, opts...).Run(); err != nil && ctx.Err() == nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	return exitcode.Success
}
