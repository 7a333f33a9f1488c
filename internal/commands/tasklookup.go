package commands

import (
	"context"
	"errors"
	"io"
	"time"

	"taskdesk/internal/config"
	"taskdesk/internal/exitcode"
	"taskdesk/internal/output"
	"taskdesk/internal/service"
	"taskdesk/internal/store"
	"taskdesk/internal/viewmodel"
)

// errUnknown is reported when an action failed without recording why.
var errUnknown = errors.New("an error occurred")

// nowFunc is the clock used to mark overdue tasks.
var nowFunc = time.Now

// newBoard builds the stores and board every task command works through.
func newBoard(cfg *config.Config, svc service.Service) *viewmodel.Board {
	tasks := store.NewTaskStore(svc, store.WithLogger(cfg.Logger))
	users := store.NewUserStore(svc, store.WithLogger(cfg.Logger))
	return viewmodel.NewBoard(tasks, users, cfg.Logger)
}

// lookupTask fetches the unfiltered task list and resolves the reference in
// args against it.
func lookupTask(ctx context.Context, b *viewmodel.Board, args []string) (service.Task, error) {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return service.Task{}, err
	}
	b.Refresh(ctx)
	if err := fetchErr(b); err != nil {
		return service.Task{}, err
	}
	return b.ResolveTask(ref)
}

// fetchErr returns the task store error as an error value, or nil.
func fetchErr(b *viewmodel.Board) error {
	if err := b.Snapshot().Err; err != nil {
		return err
	}
	return nil
}

// boardErr returns the error a failed board action left behind.
func boardErr(b *viewmodel.Board) error {
	if err := fetchErr(b); err != nil {
		return err
	}
	return errUnknown
}

// report prints err and maps it to an exit code.
func report(errOut io.Writer, err error) int {
	output.FormatError(errOut, err)
	return exitcode.FromError(err)
}

// ok prints the success marker unless quiet.
func ok(cfg *config.Config, out io.Writer) int {
	if !cfg.Quiet {
		io.WriteString(out, "ok\n")
	}
	return exitcode.Success
}
