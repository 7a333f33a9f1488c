package cli_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"taskdesk/internal/backend/restapi"
	"taskdesk/internal/cli"
	"taskdesk/internal/commands"
	"taskdesk/internal/config"
	"taskdesk/internal/exitcode"
	"taskdesk/internal/service"
	"taskdesk/internal/testutil"
)

// testFactory creates a service factory that returns the given FakeGateway.
func testFactory(svc *testutil.FakeGateway) cli.ServiceFactory {
	return func(ctx context.Context, cfg *config.Config) (service.Service, error) {
		return svc, nil
	}
}

func run(t *testing.T, factory cli.ServiceFactory, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)
	var outBuf, errBuf bytes.Buffer
	args = append([]string{args[0], "--config", t.TempDir()}, args[1:]...)
	code = dispatcher.Run(context.Background(), args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	svc := testutil.NewFakeGateway()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(svc))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"unknowncmd"}, &stdout, &stderr)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: unknowncmd\n"
	if stderr.String() != expected {
		t.Errorf("expected %q, got %q", expected, stderr.String())
	}
}

func TestDispatcher_FlagBeforeCommand(t *testing.T) {
	svc := testutil.NewFakeGateway()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(svc))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"--quiet"}, &stdout, &stderr)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: --quiet\n"
	if stderr.String() != expected {
		t.Errorf("expected %q, got %q", expected, stderr.String())
	}
}

func TestDispatcher_HelpCommand(t *testing.T) {
	stdout, stderr, code := run(t, nil, "help")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if !strings.Contains(stdout, "Usage:") {
		t.Error("expected help output to contain 'Usage:'")
	}
}

func TestDispatcher_VersionSkipsFactory(t *testing.T) {
	called := false
	factory := func(ctx context.Context, cfg *config.Config) (service.Service, error) {
		called = true
		return nil, errors.New("should not be called")
	}

	stdout, stderr, code := run(t, factory, "version")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "taskdesk 0.1.0\n" {
		t.Errorf("expected 'taskdesk 0.1.0\\n', got %q", stdout)
	}
	if called {
		t.Error("version must not build a service")
	}
}

func TestDispatcher_UnknownFlag(t *testing.T) {
	_, stderr, code := run(t, nil, "help", "--unknown")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown flag: -unknown\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_FlagNeedsValue(t *testing.T) {
	svc := testutil.NewFakeGateway()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(svc))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"list", "--status"}, &stdout, &stderr)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: flag needs an argument: -status\n"
	if stderr.String() != expected {
		t.Errorf("expected %q, got %q", expected, stderr.String())
	}
}

func TestDispatcher_NoArgsListsTasks(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	svc := testutil.NewFakeGateway()
	svc.AddTask(service.Task{Title: "Write report"})
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(svc))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), nil, &stdout, &stderr)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Write report") {
		t.Errorf("expected task in output, got %q", stdout.String())
	}
	if svc.Calls("ListTasks") != 1 {
		t.Errorf("expected one list call, got %d", svc.Calls("ListTasks"))
	}
}

func TestDispatcher_AliasResolves(t *testing.T) {
	svc := testutil.NewFakeGateway()
	svc.AddTask(service.Task{Title: "Write report"})

	stdout, _, code := run(t, testFactory(svc), "ls", "--priority", "medium")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.HasPrefix(stdout, "filters: priority=MEDIUM\n") {
		t.Errorf("expected filter header, got %q", stdout)
	}
	if svc.LastFilters().Priority != service.PriorityMedium {
		t.Errorf("expected priority filter sent, got %+v", svc.LastFilters())
	}
}

func TestDispatcher_APIURLFlag(t *testing.T) {
	var seen string
	factory := func(ctx context.Context, cfg *config.Config) (service.Service, error) {
		seen = cfg.APIURL()
		return testutil.NewFakeGateway(), nil
	}

	_, _, code := run(t, factory, "users", "--api-url", "http://tasks.internal:9000/api")
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if seen != "http://tasks.internal:9000/api" {
		t.Errorf("expected overridden api url, got %q", seen)
	}
}

func TestDispatcher_InvalidAPIURL(t *testing.T) {
	_, stderr, code := run(t, testFactory(testutil.NewFakeGateway()), "users", "--api-url", "tasks.internal")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.HasPrefix(stderr, "error: ") {
		t.Errorf("expected error line, got %q", stderr)
	}
}

func TestDispatcher_FactoryError(t *testing.T) {
	factory := func(ctx context.Context, cfg *config.Config) (service.Service, error) {
		return nil, errors.New("restapi: invalid base url")
	}

	_, stderr, code := run(t, factory, "users")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: restapi: invalid base url\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDispatcher_DebugLogsToStderr(t *testing.T) {
	svc := testutil.NewFakeGateway()
	svc.ListTasksErr = &service.APIError{Message: "Internal server error", StatusCode: 500}

	_, stderr, code := run(t, testFactory(svc), "list", "--debug")

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if !strings.Contains(stderr, "fetch tasks failed") {
		t.Errorf("expected store log line on stderr, got %q", stderr)
	}
	if !strings.HasSuffix(stderr, "error: Internal server error\n") {
		t.Errorf("expected error banner last, got %q", stderr)
	}
}

func TestDispatcher_QuietBackendErrorWithoutDebug(t *testing.T) {
	svc := testutil.NewFakeGateway()
	svc.ListTasksErr = &service.APIError{Message: "Internal server error", StatusCode: 500}

	_, stderr, _ := run(t, testFactory(svc), "list")

	if stderr != "error: Internal server error\n" {
		t.Errorf("expected only the error banner, got %q", stderr)
	}
}

func TestDispatcher_OverHTTP(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddTask(service.Task{ID: "t1", Title: "Write report"})
	gw.AddUser("u9", "Jo", "Doe")
	api := testutil.NewFakeAPI(t, gw)

	factory := func(ctx context.Context, cfg *config.Config) (service.Service, error) {
		return restapi.New(ctx, cfg)
	}

	stdout, stderr, code := run(t, factory, "assign", "--api-url", api.BaseURL(), "1", "jo", "doe")
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}

	last := api.LastRequest()
	if last.Method != "PATCH" || last.Path != "/api/tasks/t1/assign" {
		t.Errorf("unexpected last request %s %s", last.Method, last.Path)
	}
	if got := gw.Tasks()[0].Assignee; got == nil || got.ID != "u9" {
		t.Errorf("expected task assigned to u9, got %+v", got)
	}
}
