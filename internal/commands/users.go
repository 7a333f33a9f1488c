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
	"taskdesk/internal/store"
)

func init() {
	Register(&UsersCmd{})
}

// UsersCmd implements the users command.
type UsersCmd struct{}

func (c *UsersCmd) Name() string       { return "users" }
func (c *UsersCmd) Aliases() []string  { return nil }
func (c *UsersCmd) Synopsis() string   { return "List users tasks can be assigned to" }
func (c *UsersCmd) Usage() string      { return "taskdesk users" }
func (c *UsersCmd) NeedsService() bool { return true }

func (c *UsersCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *UsersCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	users := store.NewUserStore(svc, store.WithLogger(cfg.Logger))
	users.Fetch(ctx)

	state := users.State()
	if state.Err != nil {
		return report(errOut, state.Err)
	}

	if len(state.Users) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no users found")
		}
		return exitcode.Success
	}

	for _, u := range state.Users {
		output.FormatUser(out, u)
	}
	return exitcode.Success
}
