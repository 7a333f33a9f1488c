// Package viewmodel bridges the task and user stores to presentation. It
// owns the transient dialog state (edit target, assignment target) and the
// filter-driven fetch trigger, so neither the CLI nor the TUI holds
// server-state logic.
package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"taskdesk/internal/logging"
	"taskdesk/internal/service"
	"taskdesk/internal/store"
)

var (
	// ErrInvalidStatus rejects a status outside the enumeration.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidPriority rejects a priority outside the enumeration.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrNoAssignTarget is returned when no assignment dialog is open.
	ErrNoAssignTarget = errors.New("no task selected for assignment")

	// ErrTaskRefRequired indicates an empty task reference.
	ErrTaskRefRequired = errors.New("task reference required")

	// ErrTaskNotFound indicates a reference that matches no listed task.
	ErrTaskNotFound = errors.New("task not found")

	// ErrOutOfRange indicates a task number past the end of the list.
	ErrOutOfRange = errors.New("task number out of range")
)

// Confirm gates a destructive action on task. Returning false aborts it.
type Confirm func(task service.Task) bool

// TaskForm holds the editable fields of the task dialog.
type TaskForm struct {
	Title       string
	Description string
	Status      service.TaskStatus
	Priority    service.TaskPriority
	DueDate     string
}

// Validate checks the enumerated fields. Everything else is validated by
// the server.
func (f TaskForm) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, f.Status)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidPriority, f.Priority)
	}
	return nil
}

func (f TaskForm) createInput() service.CreateTaskInput {
	return service.CreateTaskInput{
		Title:       f.Title,
		Description: f.Description,
		Status:      f.Status,
		Priority:    f.Priority,
		DueDate:     f.DueDate,
	}
}

func (f TaskForm) updateInput() service.UpdateTaskInput {
	in := service.UpdateTaskInput{
		Title:       &f.Title,
		Description: &f.Description,
	}
	if f.DueDate != "" {
		in.DueDate = &f.DueDate
	}
	if f.Status != "" {
		in.Status = &f.Status
	}
	if f.Priority != "" {
		in.Priority = &f.Priority
	}
	return in
}

// View is a read-only snapshot of everything presentation renders.
type View struct {
	Tasks   []service.Task
	Users   []service.User
	Loading bool
	Err     *service.APIError
	UserErr *service.APIError
	Filters service.TaskFilters

	FormOpen     bool
	Editing      *service.Task
	AssignOpen   bool
	AssignTarget *service.Task
}

// Board is the view-model over a TaskStore and a UserStore.
type Board struct {
	tasks *store.TaskStore
	users *store.UserStore
	log   *logrus.Entry

	mu           sync.Mutex
	started      bool
	usersFetched bool
	fetched      bool
	lastFetched  service.TaskFilters
	formOpen     bool
	editID       string
	assignID     string

	notifyMu  sync.Mutex
	listeners map[int]func(View)
	nextID    int
}

// NewBoard creates a Board over the given stores.
func NewBoard(tasks *store.TaskStore, users *store.UserStore, log *logrus.Entry) *Board {
	b := &Board{
		tasks:     tasks,
		users:     users,
		log:       logging.OrDiscard(log).WithField("component", "board"),
		listeners: make(map[int]func(View)),
	}
	tasks.Subscribe(func(store.TaskState) { b.notify() })
	users.Subscribe(func(store.UserState) { b.notify() })
	return b
}

// Tasks returns the underlying task store.
func (b *Board) Tasks() *store.TaskStore { return b.tasks }

// Users returns the underlying user store.
func (b *Board) Users() *store.UserStore { return b.users }

// Subscribe registers fn to receive a View after every change of either
// store or of the dialog state. fn runs on the goroutine that made the
// change and must not call back into the Board. The returned func
// unsubscribes.
func (b *Board) Subscribe(fn func(View)) func() {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	return func() {
		b.notifyMu.Lock()
		delete(b.listeners, id)
		b.notifyMu.Unlock()
	}
}

func (b *Board) notify() {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()
	if len(b.listeners) == 0 {
		return
	}
	v := b.Snapshot()
	for _, fn := range b.listeners {
		fn(v)
	}
}

// Snapshot returns the current View.
func (b *Board) Snapshot() View {
	ts := b.tasks.State()
	us := b.users.State()

	b.mu.Lock()
	formOpen, editID, assignID := b.formOpen, b.editID, b.assignID
	b.mu.Unlock()

	v := View{
		Tasks:      ts.Tasks,
		Users:      us.Users,
		Loading:    ts.Loading || us.Loading,
		Err:        ts.Err,
		UserErr:    us.Err,
		Filters:    ts.Filters,
		FormOpen:   formOpen,
		AssignOpen: assignID != "",
	}
	if editID != "" {
		if t, ok := findTask(ts.Tasks, editID); ok {
			v.Editing = &t
		}
	}
	if assignID != "" {
		if t, ok := findTask(ts.Tasks, assignID); ok {
			v.AssignTarget = &t
		}
	}
	return v
}

// Start is the first observation: it fetches tasks and, once per board,
// users. Later calls only re-sync tasks when the filters changed.
func (b *Board) Start(ctx context.Context) {
	b.mu.Lock()
	first := !b.started
	b.started = true
	fetchUsers := !b.usersFetched
	b.usersFetched = true
	b.mu.Unlock()

	if fetchUsers {
		b.users.Fetch(ctx)
	}
	if first {
		b.Refresh(ctx)
		return
	}
	b.Sync(ctx)
}

// Sync fetches tasks if the filters differ from those of the last fetch.
// It reports whether a fetch was issued.
func (b *Board) Sync(ctx context.Context) bool {
	b.mu.Lock()
	f := b.tasks.Filters()
	if b.fetched && f == b.lastFetched {
		b.mu.Unlock()
		return false
	}
	b.fetched = true
	b.lastFetched = f
	b.mu.Unlock()

	b.log.WithField("operation", "board.Sync").WithField("filters", fmt.Sprintf("%+v", f)).Debug("filters changed")
	b.tasks.Fetch(ctx)
	return true
}

// SetFilters replaces the filters and fetches if they changed.
func (b *Board) SetFilters(ctx context.Context, f service.TaskFilters) bool {
	b.tasks.SetFilters(f)
	return b.Sync(ctx)
}

// Refresh fetches tasks unconditionally.
func (b *Board) Refresh(ctx context.Context) {
	b.mu.Lock()
	b.fetched = true
	b.lastFetched = b.tasks.Filters()
	b.mu.Unlock()
	b.tasks.Fetch(ctx)
}

// ClearError dismisses both error banners.
func (b *Board) ClearError() {
	b.tasks.ClearError()
	b.users.ClearError()
}

// OpenCreate opens the task dialog with no edit target.
func (b *Board) OpenCreate() {
	b.mu.Lock()
	b.formOpen = true
	b.editID = ""
	b.mu.Unlock()
	b.notify()
}

// OpenEdit opens the task dialog for the listed task id. It reports false
// when the task is not listed.
func (b *Board) OpenEdit(id string) bool {
	if _, ok := findTask(b.tasks.State().Tasks, id); !ok {
		return false
	}
	b.mu.Lock()
	b.formOpen = true
	b.editID = id
	b.mu.Unlock()
	b.notify()
	return true
}

// CloseForm closes the task dialog and drops the edit target.
func (b *Board) CloseForm() {
	b.mu.Lock()
	b.formOpen = false
	b.editID = ""
	b.mu.Unlock()
	b.notify()
}

// Form returns the initial dialog values: the edit target's fields, or the
// defaults for a new task.
func (b *Board) Form() TaskForm {
	if v := b.Snapshot(); v.Editing != nil {
		t := v.Editing
		return TaskForm{
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
			Priority:    t.Priority,
			DueDate:     dateOnly(t.DueDate),
		}
	}
	return TaskForm{Status: service.StatusPending, Priority: service.PriorityMedium}
}

// Submit creates or updates a task depending on whether an edit target is
// set. On success the dialog closes. On a request failure it stays open and
// false is returned; the error is already in the task store state.
//
// A form that fails Validate is rejected without a request and without
// touching store state, so callers that accept free-form status or priority
// should check TaskForm.Validate first to get the reason.
func (b *Board) Submit(ctx context.Context, form TaskForm) bool {
	log := b.log.WithField("operation", "board.Submit")
	if err := form.Validate(); err != nil {
		log.WithError(err).Debug("rejected form")
		return false
	}

	b.mu.Lock()
	editID := b.editID
	b.mu.Unlock()

	var err error
	if editID != "" {
		_, err = b.tasks.Update(ctx, editID, form.updateInput())
	} else {
		_, err = b.tasks.Create(ctx, form.createInput())
	}
	if err != nil {
		log.WithError(err).Debug("submit failed, form stays open")
		return false
	}
	b.CloseForm()
	return true
}

// Delete removes a task once confirm approves it. A nil confirm proceeds.
func (b *Board) Delete(ctx context.Context, id string, confirm Confirm) bool {
	task, ok := findTask(b.tasks.State().Tasks, id)
	if !ok {
		task = service.Task{ID: id}
	}
	if confirm != nil && !confirm(task) {
		b.log.WithField("operation", "board.Delete").WithField("id", id).Debug("delete not confirmed")
		return false
	}
	if err := b.tasks.Delete(ctx, id); err != nil {
		return false
	}

	b.mu.Lock()
	changed := false
	if b.editID == id {
		b.formOpen, b.editID, changed = false, "", true
	}
	if b.assignID == id {
		b.assignID, changed = "", true
	}
	b.mu.Unlock()
	if changed {
		b.notify()
	}
	return true
}

// ChangeStatus parses raw and sets it on the task. Values outside the
// enumeration are rejected with ErrInvalidStatus before any request.
func (b *Board) ChangeStatus(ctx context.Context, id, raw string) error {
	status, err := service.ParseTaskStatus(raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, raw)
	}
	_, err = b.tasks.SetStatus(ctx, id, status)
	return err
}

// OpenAssign opens the assignment dialog for a listed task.
func (b *Board) OpenAssign(id string) bool {
	if _, ok := findTask(b.tasks.State().Tasks, id); !ok {
		return false
	}
	b.mu.Lock()
	b.assignID = id
	b.mu.Unlock()
	b.notify()
	return true
}

// CloseAssign closes the assignment dialog.
func (b *Board) CloseAssign() {
	b.mu.Lock()
	b.assignID = ""
	b.mu.Unlock()
	b.notify()
}

// AssignTarget returns the task of the open assignment dialog.
func (b *Board) AssignTarget() (service.Task, error) {
	if v := b.Snapshot(); v.AssignTarget != nil {
		return *v.AssignTarget, nil
	}
	return service.Task{}, ErrNoAssignTarget
}

// Assign assigns userID to the dialog's task. On success the dialog
// closes; on failure it stays open and false is returned.
func (b *Board) Assign(ctx context.Context, userID string) bool {
	log := b.log.WithField("operation", "board.Assign")
	b.mu.Lock()
	id := b.assignID
	b.mu.Unlock()
	if id == "" {
		log.WithError(ErrNoAssignTarget).Debug("assign without target")
		return false
	}
	if _, err := b.tasks.Assign(ctx, id, userID); err != nil {
		log.WithError(err).Debug("assign failed, dialog stays open")
		return false
	}
	b.CloseAssign()
	return true
}

// ResolveTask maps a reference to a listed task: an exact id first, then a
// 1-based position in the current list.
func (b *Board) ResolveTask(ref string) (service.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return service.Task{}, ErrTaskRefRequired
	}
	tasks := b.tasks.State().Tasks
	if t, ok := findTask(tasks, ref); ok {
		return t, nil
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(tasks) {
			return service.Task{}, fmt.Errorf("%w: %d", ErrOutOfRange, n)
		}
		return tasks[n-1], nil
	}
	return service.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, ref)
}

// NextStatus returns the status after s in display order, wrapping around.
func NextStatus(s service.TaskStatus) service.TaskStatus {
	for i, v := range service.Statuses {
		if v == s {
			return service.Statuses[(i+1)%len(service.Statuses)]
		}
	}
	return service.Statuses[0]
}

func findTask(tasks []service.Task, id string) (service.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return service.Task{}, false
}

// dateOnly trims a timestamp to its date for the dialog's date field.
func dateOnly(s string) string {
	if len(s) > 10 && s[4] == '-' && s[7] == '-' {
		return s[:10]
	}
	return s
}
