package store_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taskdesk/internal/backend/restapi"
	"taskdesk/internal/service"
	"taskdesk/internal/store"
	"taskdesk/internal/testutil"
)

func seeded(t *testing.T, titles ...string) (*testutil.FakeGateway, *store.TaskStore) {
	t.Helper()
	gw := testutil.NewFakeGateway()
	for _, title := range titles {
		gw.AddTask(service.Task{Title: title})
	}
	s := store.NewTaskStore(gw)
	s.Fetch(context.Background())
	if err := s.State().Err; err != nil {
		t.Fatalf("seed fetch: %v", err)
	}
	return gw, s
}

func ids(tasks []service.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

// holdFirst blocks the first call of op until the returned release func
// is called. entered is signalled once the call is in flight.
func holdFirst(gw *testutil.FakeGateway, op string) (entered <-chan struct{}, release func()) {
	in := make(chan struct{}, 1)
	hold := make(chan struct{})
	var n int32
	gw.BeforeCall = func(ctx context.Context, got string) {
		if got == op && atomic.AddInt32(&n, 1) == 1 {
			in <- struct{}{}
			<-hold
		}
	}
	var once sync.Once
	return in, func() { once.Do(func() { close(hold) }) }
}

func TestFetchReplacesCollection(t *testing.T) {
	_, s := seeded(t, "one", "two")
	st := s.State()
	if st.Loading {
		t.Fatalf("expected loading false after fetch")
	}
	if len(st.Tasks) != 2 || st.Tasks[0].Title != "one" || st.Tasks[1].Title != "two" {
		t.Fatalf("unexpected tasks %+v", st.Tasks)
	}
}

func TestFetchIsIdempotent(t *testing.T) {
	_, s := seeded(t, "one", "two", "three")
	first := s.State().Tasks

	s.Fetch(context.Background())
	st := s.State()
	if st.Err != nil {
		t.Fatalf("fetch: %v", st.Err)
	}
	if !reflect.DeepEqual(first, st.Tasks) {
		t.Fatalf("expected identical tasks, got %+v then %+v", first, st.Tasks)
	}
}

func TestFetchFailureKeepsPreviousTasks(t *testing.T) {
	gw, s := seeded(t, "one")
	gw.ListTasksErr = &service.APIError{Message: "boom", StatusCode: http.StatusInternalServerError}

	s.Fetch(context.Background())

	st := s.State()
	if len(st.Tasks) != 1 {
		t.Fatalf("expected previous tasks kept, got %d", len(st.Tasks))
	}
	if st.Err == nil || st.Err.Message != "boom" {
		t.Fatalf("expected error recorded, got %+v", st.Err)
	}
	if st.Loading {
		t.Fatalf("expected loading released")
	}
}

func TestFetchNormalizesPlainErrors(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.ListTasksErr = errors.New("dial tcp: connection refused")
	s := store.NewTaskStore(gw)

	s.Fetch(context.Background())

	err := s.State().Err
	if err == nil || err.Message != "dial tcp: connection refused" || err.HasStatus() {
		t.Fatalf("unexpected error %+v", err)
	}
}

func TestFetchUsesCurrentFilters(t *testing.T) {
	gw, s := seeded(t)
	f := service.TaskFilters{Priority: service.PriorityUrgent, Search: "db"}
	s.SetFilters(f)
	if gw.Calls("ListTasks") != 1 {
		t.Fatalf("SetFilters must not fetch")
	}
	s.Fetch(context.Background())
	if gw.LastFilters() != f {
		t.Fatalf("expected filters %+v, got %+v", f, gw.LastFilters())
	}
	if s.Filters() != f || s.State().Filters != f {
		t.Fatalf("expected filters kept in state")
	}
}

func TestCreatePrependsCanonicalTask(t *testing.T) {
	_, s := seeded(t, "old")
	task, err := s.Create(context.Background(), service.CreateTaskInput{Title: "new"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	st := s.State()
	if st.Tasks[0].ID != task.ID || st.Tasks[0].Title != "new" || task.ID == "" {
		t.Fatalf("expected created task first, got %+v", st.Tasks)
	}
	if len(st.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(st.Tasks))
	}
}

func TestCreateFailureSetsAndReturnsError(t *testing.T) {
	_, s := seeded(t, "old")
	before := ids(s.State().Tasks)

	_, err := s.Create(context.Background(), service.CreateTaskInput{Title: ""})
	var apiErr *service.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.FirstValidationMessage() != "Title is required" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	st := s.State()
	if st.Err == nil || st.Err.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected error in state, got %+v", st.Err)
	}
	if !slices.Equal(ids(st.Tasks), before) {
		t.Fatalf("collection changed on failure")
	}
}

func TestUpdatePreservesPosition(t *testing.T) {
	_, s := seeded(t, "a", "b", "c")
	before := ids(s.State().Tasks)
	title := "B!"

	updated, err := s.Update(context.Background(), before[1], service.UpdateTaskInput{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	st := s.State()
	if !slices.Equal(ids(st.Tasks), before) {
		t.Fatalf("order changed: %v", ids(st.Tasks))
	}
	if st.Tasks[1].Title != "B!" || updated.Title != "B!" {
		t.Fatalf("expected replaced entity, got %+v", st.Tasks[1])
	}
	if !st.Tasks[1].UpdatedAt.After(testutil.FakeNow) {
		t.Fatalf("expected server timestamps taken")
	}
}

func TestUpdateOfUncachedTaskIsNoop(t *testing.T) {
	gw, s := seeded(t, "a")
	hidden := gw.AddTask(service.Task{Title: "not fetched"})
	title := "renamed"

	if _, err := s.Update(context.Background(), hidden.ID, service.UpdateTaskInput{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}
	st := s.State()
	if len(st.Tasks) != 1 || st.Tasks[0].Title != "a" {
		t.Fatalf("expected collection untouched, got %+v", st.Tasks)
	}
}

func TestUpdateFailure(t *testing.T) {
	_, s := seeded(t, "a")
	title := "x"
	_, err := s.Update(context.Background(), "missing", service.UpdateTaskInput{Title: &title})
	if apiErr := service.AsAPIError(err); apiErr == nil || !apiErr.NotFound() {
		t.Fatalf("expected 404, got %v", err)
	}
	if st := s.State(); st.Err == nil || !st.Err.NotFound() {
		t.Fatalf("expected error recorded, got %+v", st.Err)
	}
}

func TestSetStatusAndAssign(t *testing.T) {
	gw, s := seeded(t, "a", "b")
	gw.AddUser("u1", "Ada", "Lovelace")
	id := s.State().Tasks[1].ID

	if _, err := s.SetStatus(context.Background(), id, service.StatusInProgress); err != nil {
		t.Fatalf("status: %v", err)
	}
	if _, err := s.Assign(context.Background(), id, "u1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got := s.State().Tasks[1]
	if got.Status != service.StatusInProgress {
		t.Fatalf("expected in progress, got %s", got.Status)
	}
	if got.Assignee == nil || got.Assignee.FirstName != "Ada" {
		t.Fatalf("expected assignee snapshot, got %+v", got.Assignee)
	}

	_, err := s.Assign(context.Background(), id, "nobody")
	if apiErr := service.AsAPIError(err); apiErr == nil || apiErr.Message != "User not found" {
		t.Fatalf("expected user not found, got %v", err)
	}
	if s.State().Tasks[1].Assignee.ID != "u1" {
		t.Fatalf("failed assign must not change the task")
	}
}

func TestDeleteRemovesTask(t *testing.T) {
	_, s := seeded(t, "a", "b", "c")
	before := ids(s.State().Tasks)

	if err := s.Delete(context.Background(), before[1]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	want := []string{before[0], before[2]}
	if got := ids(s.State().Tasks); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDeleteFailureKeepsCollection(t *testing.T) {
	gw, s := seeded(t, "a", "b")
	before := ids(s.State().Tasks)
	gw.DeleteTaskErr = &service.APIError{Message: "Task not found", StatusCode: http.StatusNotFound}

	err := s.Delete(context.Background(), before[0])
	if err == nil {
		t.Fatalf("expected error")
	}
	st := s.State()
	if !slices.Equal(ids(st.Tasks), before) {
		t.Fatalf("collection changed: %v", ids(st.Tasks))
	}
	if st.Err == nil || st.Err.Message != "Task not found" {
		t.Fatalf("expected error recorded, got %+v", st.Err)
	}
}

func TestLoadRefreshesCachedTask(t *testing.T) {
	gw, s := seeded(t, "a")
	id := s.State().Tasks[0].ID
	desc := "changed elsewhere"
	if _, err := gw.UpdateTask(context.Background(), id, service.UpdateTaskInput{Description: &desc}); err != nil {
		t.Fatalf("server update: %v", err)
	}

	task, err := s.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if task.Description != desc || s.State().Tasks[0].Description != desc {
		t.Fatalf("expected refreshed task")
	}

	if _, err := s.Load(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for missing task")
	}
}

func TestClearErrorOnlyClearsError(t *testing.T) {
	gw, s := seeded(t, "a")
	gw.ListTasksErr = errors.New("down")
	s.SetFilters(service.TaskFilters{Status: service.StatusPending})
	s.Fetch(context.Background())
	before := s.State()

	s.ClearError()

	after := s.State()
	if after.Err != nil {
		t.Fatalf("expected error cleared")
	}
	if !slices.Equal(ids(after.Tasks), ids(before.Tasks)) || after.Filters != before.Filters || after.Loading {
		t.Fatalf("ClearError changed more than the error")
	}
}

func TestNextOperationClearsStaleError(t *testing.T) {
	gw, s := seeded(t, "a")
	gw.DeleteTaskErr = errors.New("nope")
	_ = s.Delete(context.Background(), s.State().Tasks[0].ID)
	if s.State().Err == nil {
		t.Fatalf("expected error")
	}

	if _, err := s.Create(context.Background(), service.CreateTaskInput{Title: "b"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.State().Err != nil {
		t.Fatalf("expected error cleared by successful operation")
	}
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddTask(service.Task{Title: "pending", Status: service.StatusPending})
	gw.AddTask(service.Task{Title: "done", Status: service.StatusCompleted})
	s := store.NewTaskStore(gw)
	entered, release := holdFirst(gw, "ListTasks")
	defer release()

	s.SetFilters(service.TaskFilters{Status: service.StatusPending})
	first := make(chan struct{})
	go func() {
		defer close(first)
		s.Fetch(context.Background())
	}()
	<-entered

	s.SetFilters(service.TaskFilters{Status: service.StatusCompleted})
	s.Fetch(context.Background())

	st := s.State()
	if len(st.Tasks) != 1 || st.Tasks[0].Title != "done" {
		t.Fatalf("expected latest fetch applied, got %+v", st.Tasks)
	}
	if !st.Loading {
		t.Fatalf("expected loading while the older fetch is in flight")
	}

	release()
	<-first

	st = s.State()
	if len(st.Tasks) != 1 || st.Tasks[0].Title != "done" {
		t.Fatalf("stale fetch overwrote tasks: %+v", st.Tasks)
	}
	if st.Loading {
		t.Fatalf("expected loading released")
	}
}

func TestStaleFetchErrorIsDiscarded(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddTask(service.Task{Title: "a"})
	s := store.NewTaskStore(gw)
	entered, release := holdFirst(gw, "ListTasks")
	defer release()

	first := make(chan struct{})
	go func() {
		defer close(first)
		s.Fetch(context.Background())
	}()
	<-entered
	s.Fetch(context.Background())

	gw.ListTasksErr = errors.New("late failure")
	release()
	<-first

	if err := s.State().Err; err != nil {
		t.Fatalf("stale error applied: %v", err)
	}
}

func TestMutationsAreSerialized(t *testing.T) {
	gw, s := seeded(t)
	entered, release := holdFirst(gw, "CreateTask")
	defer release()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = s.Create(context.Background(), service.CreateTaskInput{Title: "first"})
	}()
	<-entered
	go func() {
		defer wg.Done()
		_, _ = s.Create(context.Background(), service.CreateTaskInput{Title: "second"})
	}()

	time.Sleep(20 * time.Millisecond)
	if n := gw.Calls("CreateTask"); n != 1 {
		t.Fatalf("expected second create to wait, saw %d calls", n)
	}

	release()
	wg.Wait()

	tasks := s.State().Tasks
	if len(tasks) != 2 || tasks[0].Title != "second" || tasks[1].Title != "first" {
		t.Fatalf("expected arrival order applied, got %+v", tasks)
	}
}

func TestSubscribersSeeLoadingBracket(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddTask(service.Task{Title: "a"})
	s := store.NewTaskStore(gw)

	var mu sync.Mutex
	var seen []store.TaskState
	unsubscribe := s.Subscribe(func(st store.TaskState) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})

	s.Fetch(context.Background())

	mu.Lock()
	got := append([]store.TaskState(nil), seen...)
	mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if !got[0].Loading || len(got[0].Tasks) != 0 {
		t.Fatalf("expected loading snapshot first, got %+v", got[0])
	}
	if got[1].Loading || len(got[1].Tasks) != 1 {
		t.Fatalf("expected settled snapshot last, got %+v", got[1])
	}

	unsubscribe()
	s.ClearError()
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected no notifications after unsubscribe")
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	gw, s := seeded(t, "a")
	gw.AddUser("u1", "Ada", "Lovelace")
	if _, err := s.Assign(context.Background(), s.State().Tasks[0].ID, "u1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	st := s.State()
	st.Tasks[0].Title = "mutated"
	st.Tasks[0].Assignee.FirstName = "mutated"

	again := s.State().Tasks[0]
	if again.Title != "a" || again.Assignee.FirstName != "Ada" {
		t.Fatalf("snapshot shares memory with the store")
	}
}

func TestConcurrentUse(t *testing.T) {
	gw, s := seeded(t, "a", "b")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			s.Fetch(context.Background())
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Create(context.Background(), service.CreateTaskInput{Title: "c"})
		}()
		go func() {
			defer wg.Done()
			_ = s.State()
		}()
	}
	wg.Wait()
	if s.State().Loading {
		t.Fatalf("expected loading released")
	}
	if gw.Calls("CreateTask") != 8 {
		t.Fatalf("expected 8 creates, got %d", gw.Calls("CreateTask"))
	}
}

func TestFilteredFetchOverHTTP(t *testing.T) {
	queries := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","data":[{"id":"1","title":"A","status":"PENDING","priority":"LOW","createdAt":"2024-03-01T09:00:00Z","updatedAt":"2024-03-01T09:00:00Z"}]}`))
	}))
	defer srv.Close()
	client, err := restapi.NewWithBaseURL(srv.URL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	s := store.NewTaskStore(client)

	s.SetFilters(service.TaskFilters{Status: service.StatusPending})
	s.Fetch(context.Background())

	if q := <-queries; q != "status=PENDING" {
		t.Fatalf("unexpected query %q", q)
	}
	st := s.State()
	if st.Err != nil {
		t.Fatalf("fetch: %v", st.Err)
	}
	if len(st.Tasks) != 1 || st.Tasks[0].ID != "1" || st.Tasks[0].Priority != service.PriorityLow {
		t.Fatalf("unexpected tasks %+v", st.Tasks)
	}
}
