// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"taskdesk/internal/service"
)

// FakeNow is the fixed clock of a FakeGateway.
var FakeNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// NotFoundError builds the 404 the service returns for an unknown id.
func NotFoundError(kind string) *service.APIError {
	return &service.APIError{Message: kind + " not found", StatusCode: http.StatusNotFound}
}

// TitleRequiredError builds the 400 the service returns for a blank title.
func TitleRequiredError() *service.APIError {
	return &service.APIError{
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Errors: []service.ValidationError{
			{Location: "body", Path: "title", Type: "field", Msg: "Title is required"},
		},
	}
}

// FakeGateway is an in-memory implementation of service.Service for testing.
// New tasks are placed first, the way the service orders by creation time.
type FakeGateway struct {
	mu          sync.Mutex
	tasks       []service.Task
	users       []service.User
	nextID      int
	calls       map[string]int
	lastFilters service.TaskFilters

	// Error injection for testing
	ListTasksErr        error
	GetTaskErr          error
	CreateTaskErr       error
	UpdateTaskErr       error
	DeleteTaskErr       error
	UpdateTaskStatusErr error
	AssignUserErr       error
	ListUsersErr        error

	// BeforeCall, when set, runs at the start of every call with the
	// operation name. Tests use it to hold a call in flight.
	BeforeCall func(ctx context.Context, op string)
}

// NewFakeGateway creates an empty FakeGateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{calls: make(map[string]int)}
}

// AddTask stores t as-is, filling in an id and defaults when missing, and
// returns the stored copy. Seeded tasks keep insertion order.
func (f *FakeGateway) AddTask(t service.Task) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		t.ID = f.newID()
	}
	if t.Status == "" {
		t.Status = service.StatusPending
	}
	if t.Priority == "" {
		t.Priority = service.PriorityMedium
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = FakeNow
		t.UpdatedAt = FakeNow
	}
	f.tasks = append(f.tasks, t.Clone())
	return t.Clone()
}

// AddUser adds an assignable user.
func (f *FakeGateway) AddUser(id, firstName, lastName string) service.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := service.User{ID: id, FirstName: firstName, LastName: lastName}
	f.users = append(f.users, u)
	return u
}

// Tasks returns a copy of the stored tasks.
func (f *FakeGateway) Tasks() []service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]service.Task, len(f.tasks))
	for i, t := range f.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Calls returns how many times op was invoked, e.g. "ListTasks".
func (f *FakeGateway) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// LastFilters returns the filters of the most recent ListTasks call.
func (f *FakeGateway) LastFilters() service.TaskFilters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFilters
}

func (f *FakeGateway) begin(ctx context.Context, op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
	if f.BeforeCall != nil {
		f.BeforeCall(ctx, op)
	}
}

func (f *FakeGateway) newID() string {
	f.nextID++
	return fmt.Sprintf("task-%d", f.nextID)
}

func (f *FakeGateway) indexOf(id string) int {
	for i, t := range f.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// ListTasks implements service.Service.
func (f *FakeGateway) ListTasks(ctx context.Context, filters service.TaskFilters) ([]service.Task, error) {
	f.begin(ctx, "ListTasks")
	f.mu.Lock()
	f.lastFilters = filters
	f.mu.Unlock()
	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filters.Search))
	out := []service.Task{}
	for _, t := range f.tasks {
		if filters.Status != "" && t.Status != filters.Status {
			continue
		}
		if filters.Priority != "" && t.Priority != filters.Priority {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		out = append(out, t.Clone())
	}
	return out, nil
}

// GetTask implements service.Service.
func (f *FakeGateway) GetTask(ctx context.Context, id string) (service.Task, error) {
	f.begin(ctx, "GetTask")
	if f.GetTaskErr != nil {
		return service.Task{}, f.GetTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		return service.Task{}, NotFoundError("Task")
	}
	return f.tasks[i].Clone(), nil
}

// CreateTask implements service.Service.
func (f *FakeGateway) CreateTask(ctx context.Context, input service.CreateTaskInput) (service.Task, error) {
	f.begin(ctx, "CreateTask")
	if f.CreateTaskErr != nil {
		return service.Task{}, f.CreateTaskErr
	}
	if strings.TrimSpace(input.Title) == "" {
		return service.Task{}, TitleRequiredError()
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	t := service.Task{
		ID:          f.newID(),
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		CreatedAt:   FakeNow,
		UpdatedAt:   FakeNow,
	}
	if t.Status == "" {
		t.Status = service.StatusPending
	}
	if t.Priority == "" {
		t.Priority = service.PriorityMedium
	}
	f.tasks = append([]service.Task{t}, f.tasks...)
	return t.Clone(), nil
}

// UpdateTask implements service.Service.
func (f *FakeGateway) UpdateTask(ctx context.Context, id string, input service.UpdateTaskInput) (service.Task, error) {
	f.begin(ctx, "UpdateTask")
	if f.UpdateTaskErr != nil {
		return service.Task{}, f.UpdateTaskErr
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return service.Task{}, TitleRequiredError()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		return service.Task{}, NotFoundError("Task")
	}
	t := &f.tasks[i]
	if input.Title != nil {
		t.Title = *input.Title
	}
	if input.Description != nil {
		t.Description = *input.Description
	}
	if input.Status != nil {
		t.Status = *input.Status
	}
	if input.Priority != nil {
		t.Priority = *input.Priority
	}
	if input.DueDate != nil {
		t.DueDate = *input.DueDate
	}
	t.UpdatedAt = FakeNow.Add(time.Minute)
	return t.Clone(), nil
}

// DeleteTask implements service.Service.
func (f *FakeGateway) DeleteTask(ctx context.Context, id string) error {
	f.begin(ctx, "DeleteTask")
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		return NotFoundError("Task")
	}
	f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
	return nil
}

// UpdateTaskStatus implements service.Service.
func (f *FakeGateway) UpdateTaskStatus(ctx context.Context, id string, status service.TaskStatus) (service.Task, error) {
	f.begin(ctx, "UpdateTaskStatus")
	if f.UpdateTaskStatusErr != nil {
		return service.Task{}, f.UpdateTaskStatusErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		return service.Task{}, NotFoundError("Task")
	}
	f.tasks[i].Status = status
	f.tasks[i].UpdatedAt = FakeNow.Add(time.Minute)
	return f.tasks[i].Clone(), nil
}

// AssignUser implements service.Service.
func (f *FakeGateway) AssignUser(ctx context.Context, id, userID string) (service.Task, error) {
	f.begin(ctx, "AssignUser")
	if f.AssignUserErr != nil {
		return service.Task{}, f.AssignUserErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		return service.Task{}, NotFoundError("Task")
	}
	var user *service.User
	for j := range f.users {
		if f.users[j].ID == userID {
			user = &f.users[j]
			break
		}
	}
	if user == nil {
		return service.Task{}, NotFoundError("User")
	}
	f.tasks[i].Assignee = &service.Assignee{ID: user.ID, FirstName: user.FirstName, LastName: user.LastName}
	f.tasks[i].UpdatedAt = FakeNow.Add(time.Minute)
	return f.tasks[i].Clone(), nil
}

// ListUsers implements service.Service.
func (f *FakeGateway) ListUsers(ctx context.Context) ([]service.User, error) {
	f.begin(ctx, "ListUsers")
	if f.ListUsersErr != nil {
		return nil, f.ListUsersErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]service.User, len(f.users))
	copy(out, f.users)
	return out, nil
}
