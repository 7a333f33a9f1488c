package restapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskdesk/internal/backend/restapi"
	"taskdesk/internal/config"
	"taskdesk/internal/service"
	"taskdesk/internal/testutil"
)

func newClient(t *testing.T, baseURL string, opts ...restapi.Option) *restapi.Client {
	t.Helper()
	c, err := restapi.NewWithBaseURL(baseURL, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func asAPIError(t *testing.T, err error) *service.APIError {
	t.Helper()
	var apiErr *service.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *service.APIError, got %T (%v)", err, err)
	}
	return apiErr
}

func TestListTasksSendsOnlyPresentFilters(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddTask(service.Task{Title: "Write docs"})
	api := testutil.NewFakeAPI(t, gw)
	c := newClient(t, api.BaseURL())

	if _, err := c.ListTasks(context.Background(), service.TaskFilters{Status: service.StatusPending}); err != nil {
		t.Fatalf("list: %v", err)
	}
	req := api.LastRequest()
	if req.Method != http.MethodGet || req.Path != "/api/tasks" {
		t.Fatalf("unexpected request %s %s", req.Method, req.Path)
	}
	if req.Query != "status=PENDING" {
		t.Fatalf("expected only status in query, got %q", req.Query)
	}

	if _, err := c.ListTasks(context.Background(), service.TaskFilters{}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if q := api.LastRequest().Query; q != "" {
		t.Fatalf("expected empty query, got %q", q)
	}

	filters := service.TaskFilters{Status: service.StatusPending, Priority: service.PriorityHigh, Search: "fix bug"}
	if _, err := c.ListTasks(context.Background(), filters); err != nil {
		t.Fatalf("list: %v", err)
	}
	if q := api.LastRequest().Query; q != "priority=HIGH&search=fix+bug&status=PENDING" {
		t.Fatalf("unexpected query %q", q)
	}
	if got := gw.LastFilters(); got != filters {
		t.Fatalf("server saw %+v", got)
	}
}

func TestListTasksDecodesAssigneeFromUserKey(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddUser("u1", "Ada", "Lovelace")
	task := gw.AddTask(service.Task{Title: "Review"})
	if _, err := gw.AssignUser(context.Background(), task.ID, "u1"); err != nil {
		t.Fatalf("seed assign: %v", err)
	}
	api := testutil.NewFakeAPI(t, gw)
	c := newClient(t, api.BaseURL())

	tasks, err := c.ListTasks(context.Background(), service.TaskFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].Assignee == nil || tasks[0].Assignee.Name() != "Ada Lovelace" {
		t.Fatalf("expected assignee, got %+v", tasks[0].Assignee)
	}
	if !tasks[0].CreatedAt.Equal(testutil.FakeNow) {
		t.Fatalf("expected createdAt %s, got %s", testutil.FakeNow, tasks[0].CreatedAt)
	}
}

func TestDefaultHeaders(t *testing.T) {
	api := testutil.NewFakeAPI(t, testutil.NewFakeGateway())
	c := newClient(t, api.BaseURL(),
		restapi.WithToken("s3cret"),
		restapi.WithHeader("X-Team", "blue"),
		restapi.WithRequestIDs(func() string { return "req-1" }),
	)
	if _, err := c.ListUsers(context.Background()); err != nil {
		t.Fatalf("users: %v", err)
	}
	h := api.LastRequest().Header
	checks := map[string]string{
		"Authorization":         "Bearer s3cret",
		"X-Team":                "blue",
		restapi.RequestIDHeader: "req-1",
		"Accept":                "application/json",
		"User-Agent":            config.AppName,
	}
	for key, want := range checks {
		if got := h.Get(key); got != want {
			t.Errorf("header %s: expected %q, got %q", key, want, got)
		}
	}
}

func TestRequestIDIsFreshPerCall(t *testing.T) {
	api := testutil.NewFakeAPI(t, testutil.NewFakeGateway())
	c := newClient(t, api.BaseURL())
	for i := 0; i < 2; i++ {
		if _, err := c.ListUsers(context.Background()); err != nil {
			t.Fatalf("users: %v", err)
		}
	}
	reqs := api.Requests()
	a, b := reqs[0].Header.Get(restapi.RequestIDHeader), reqs[1].Header.Get(restapi.RequestIDHeader)
	if a == "" || a == b {
		t.Fatalf("expected distinct request ids, got %q and %q", a, b)
	}
}

func TestTaskLifecycle(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddUser("u1", "Grace", "Hopper")
	api := testutil.NewFakeAPI(t, gw)
	c := newClient(t, api.BaseURL())
	ctx := context.Background()

	created, err := c.CreateTask(ctx, service.CreateTaskInput{Title: "Ship", Priority: service.PriorityHigh})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.Status != service.StatusPending || created.Priority != service.PriorityHigh {
		t.Fatalf("unexpected created task %+v", created)
	}
	if body := api.LastRequest().Body; body != `{"title":"Ship","priority":"HIGH"}` {
		t.Fatalf("unexpected create body %s", body)
	}

	title := "Ship it"
	updated, err := c.UpdateTask(ctx, created.ID, service.UpdateTaskInput{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title {
		t.Fatalf("expected title %q, got %q", title, updated.Title)
	}
	if req := api.LastRequest(); req.Method != http.MethodPut || req.Body != `{"title":"Ship it"}` {
		t.Fatalf("unexpected update request %s %s", req.Method, req.Body)
	}

	done, err := c.UpdateTaskStatus(ctx, created.ID, service.StatusCompleted)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if done.Status != service.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if req := api.LastRequest(); req.Method != http.MethodPatch || req.Path != "/api/tasks/"+created.ID+"/status" {
		t.Fatalf("unexpected status request %s %s", req.Method, req.Path)
	}

	assigned, err := c.AssignUser(ctx, created.ID, "u1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.Assignee == nil || assigned.Assignee.ID != "u1" {
		t.Fatalf("expected assignee u1, got %+v", assigned.Assignee)
	}
	if body := api.LastRequest().Body; body != `{"userId":"u1"}` {
		t.Fatalf("unexpected assign body %s", body)
	}

	got, err := c.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != title || got.Status != service.StatusCompleted {
		t.Fatalf("unexpected task %+v", got)
	}

	if err := c.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(gw.Tasks()) != 0 {
		t.Fatalf("expected task removed on server")
	}
}

func TestNotFoundIsNormalized(t *testing.T) {
	api := testutil.NewFakeAPI(t, testutil.NewFakeGateway())
	c := newClient(t, api.BaseURL())

	_, err := c.GetTask(context.Background(), "missing")
	apiErr := asAPIError(t, err)
	if !apiErr.NotFound() || apiErr.Message != "Task not found" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestValidationErrorsAreCarried(t *testing.T) {
	api := testutil.NewFakeAPI(t, testutil.NewFakeGateway())
	c := newClient(t, api.BaseURL())

	_, err := c.CreateTask(context.Background(), service.CreateTaskInput{Title: "  "})
	apiErr := asAPIError(t, err)
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", apiErr.StatusCode)
	}
	if apiErr.FirstValidationMessage() != "Title is required" {
		t.Fatalf("unexpected validation errors %+v", apiErr.Errors)
	}
	if apiErr.Errors[0].Path != "title" || apiErr.Errors[0].Location != "body" {
		t.Fatalf("unexpected validation error %+v", apiErr.Errors[0])
	}
}

func TestTransportFailureHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL + "/api"
	srv.Close()

	c := newClient(t, baseURL)
	_, err := c.ListTasks(context.Background(), service.TaskFilters{})
	apiErr := asAPIError(t, err)
	if apiErr.HasStatus() {
		t.Fatalf("expected no status, got %d", apiErr.StatusCode)
	}
	if apiErr.Message == "" {
		t.Fatalf("expected a message")
	}
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newClient(t, srv.URL, restapi.WithTimeout(20*time.Millisecond))
	_, err := c.ListUsers(context.Background())
	apiErr := asAPIError(t, err)
	if apiErr.Message != "request timed out" || apiErr.HasStatus() {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestCancelledContext(t *testing.T) {
	api := testutil.NewFakeAPI(t, testutil.NewFakeGateway())
	c := newClient(t, api.BaseURL())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListUsers(ctx)
	if apiErr := asAPIError(t, err); apiErr.Message != "request cancelled" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestNonJSONErrorFallsBackToStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	_, err := c.ListTasks(context.Background(), service.TaskFilters{})
	apiErr := asAPIError(t, err)
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "request failed with status code 502" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestOversizedResponseIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":[],"pad":"`))
		w.Write([]byte(strings.Repeat("x", 8<<20)))
		w.Write([]byte(`"}`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, restapi.WithHTTPClient(srv.Client()))
	_, err := c.ListUsers(context.Background())
	apiErr := asAPIError(t, err)
	if apiErr.Message != "response too large" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
	if apiErr.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 carried, got %d", apiErr.StatusCode)
	}
}

func TestMalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":         `<html>oops</html>`,
		"missing data":     `{"success":true}`,
		"null data":        `{"success":true,"data":null}`,
		"wrong shape":      `{"success":true,"data":{"id":"t1"}}`,
		"unknown status":   `{"success":true,"data":[{"id":"t1","title":"x","status":"DONE","priority":"LOW"}]}`,
		"unknown priority": `{"success":true,"data":[{"id":"t1","title":"x","status":"PENDING","priority":"MEH"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			c := newClient(t, srv.URL)
			_, err := c.ListTasks(context.Background(), service.TaskFilters{})
			apiErr := asAPIError(t, err)
			if apiErr.StatusCode != http.StatusOK {
				t.Fatalf("expected status 200 carried, got %d", apiErr.StatusCode)
			}
			if !strings.HasPrefix(apiErr.Message, "malformed response") {
				t.Fatalf("unexpected message %q", apiErr.Message)
			}
		})
	}
}

func TestDeleteAcceptsEmptySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.EscapedPath() != "/tasks/a%2Fb" {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	if err := c.DeleteTask(context.Background(), "a/b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	api := testutil.NewFakeAPI(t, testutil.NewFakeGateway())
	cfg := &config.Config{Settings: config.Settings{API: config.APISettings{
		URL:     api.BaseURL() + "/",
		Token:   "cfg-token",
		Headers: map[string]string{"X-Client": "cli"},
	}}}
	c, err := restapi.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.BaseURL() != api.BaseURL() {
		t.Fatalf("expected base url %s, got %s", api.BaseURL(), c.BaseURL())
	}
	if _, err := c.ListUsers(context.Background()); err != nil {
		t.Fatalf("users: %v", err)
	}
	h := api.LastRequest().Header
	if h.Get("Authorization") != "Bearer cfg-token" || h.Get("X-Client") != "cli" {
		t.Fatalf("unexpected headers %v", h)
	}
}

func TestNewRejectsRelativeURL(t *testing.T) {
	if _, err := restapi.NewWithBaseURL("/api"); err == nil {
		t.Fatalf("expected error")
	}
}
