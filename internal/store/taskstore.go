package store

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"taskdesk/internal/service"
)

// TaskState is a point-in-time snapshot of a TaskStore.
type TaskState struct {
	Tasks   []service.Task
	Loading bool
	Err     *service.APIError
	Filters service.TaskFilters
}

// TaskStore owns the client's copy of the task collection.
//
// Mutations are serialized in arrival order. Fetches are not: each fetch
// is numbered and a completion older than the latest issued fetch is
// dropped without touching tasks or error. Loading stays true while any
// call of the store is in flight. Every call clears Err when it starts.
type TaskStore struct {
	svc service.Service
	log *logrus.Entry

	mu       sync.Mutex
	tasks    []service.Task
	pending  int
	err      *service.APIError
	filters  service.TaskFilters
	fetchSeq uint64

	mutateMu sync.Mutex
	subs     broadcaster[TaskState]
}

// NewTaskStore creates an empty store backed by svc.
func NewTaskStore(svc service.Service, opts ...Option) *TaskStore {
	o := buildOptions(opts)
	return &TaskStore{
		svc:   svc,
		log:   o.log,
		tasks: []service.Task{},
	}
}

// State returns a deep copy of the current state.
func (s *TaskStore) State() TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TaskState{
		Tasks:   cloneTasks(s.tasks),
		Loading: s.pending > 0,
		Err:     s.err.Clone(),
		Filters: s.filters,
	}
}

// Filters returns the current filters.
func (s *TaskStore) Filters() service.TaskFilters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned func unsubscribes.
func (s *TaskStore) Subscribe(fn func(TaskState)) func() {
	return s.subs.subscribe(fn)
}

// SetFilters replaces the filters. It never fetches.
func (s *TaskStore) SetFilters(f service.TaskFilters) {
	s.mu.Lock()
	s.filters = f
	s.mu.Unlock()
	s.notify()
}

// ClearError dismisses the current error. Nothing else changes.
func (s *TaskStore) ClearError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
	s.notify()
}

// Fetch replaces the collection with the server's view under the current
// filters. On failure the previous tasks are kept and Err is set. The
// error is never returned; presentation reads it from the state.
func (s *TaskStore) Fetch(ctx context.Context) {
	seq, filters := s.begin(true)
	defer s.release()

	log := s.log.WithField("operation", "store.Fetch")
	tasks, err := s.svc.ListTasks(ctx, filters)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.fetchSeq {
		log.WithField("seq", seq).Debug("dropping stale fetch result")
		return
	}
	if err != nil {
		s.err = service.AsAPIError(err).Clone()
		log.WithError(err).Warn("fetch tasks failed")
		return
	}
	s.tasks = cloneTasks(tasks)
	log.WithField("count", len(tasks)).Debug("tasks fetched")
}

// Load refreshes a single cached task from the server. A task not in the
// collection is left out.
func (s *TaskStore) Load(ctx context.Context, id string) (service.Task, error) {
	s.begin(false)
	defer s.release()

	task, err := s.svc.GetTask(ctx, id)
	if err != nil {
		return service.Task{}, s.fail("store.Load", err)
	}
	s.replace(task)
	return task.Clone(), nil
}

// Create sends input to the server and prepends the canonical task.
func (s *TaskStore) Create(ctx context.Context, input service.CreateTaskInput) (service.Task, error) {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()
	s.begin(false)
	defer s.release()

	task, err := s.svc.CreateTask(ctx, input)
	if err != nil {
		return service.Task{}, s.fail("store.Create", err)
	}
	s.mu.Lock()
	s.tasks = append([]service.Task{task.Clone()}, s.tasks...)
	s.mu.Unlock()
	s.log.WithField("operation", "store.Create").WithField("id", task.ID).Debug("task created")
	return task.Clone(), nil
}

// Update applies a partial update and replaces the task in place.
func (s *TaskStore) Update(ctx context.Context, id string, input service.UpdateTaskInput) (service.Task, error) {
	return s.mutate(ctx, "store.Update", func(ctx context.Context) (service.Task, error) {
		return s.svc.UpdateTask(ctx, id, input)
	})
}

// SetStatus changes only the status of a task.
func (s *TaskStore) SetStatus(ctx context.Context, id string, status service.TaskStatus) (service.Task, error) {
	return s.mutate(ctx, "store.SetStatus", func(ctx context.Context) (service.Task, error) {
		return s.svc.UpdateTaskStatus(ctx, id, status)
	})
}

// Assign assigns a user to a task. The server's assignee snapshot replaces
// the cached task.
func (s *TaskStore) Assign(ctx context.Context, id, userID string) (service.Task, error) {
	return s.mutate(ctx, "store.Assign", func(ctx context.Context) (service.Task, error) {
		return s.svc.AssignUser(ctx, id, userID)
	})
}

// Delete removes a task on the server, then locally. On failure the
// collection is unchanged.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()
	s.begin(false)
	defer s.release()

	if err := s.svc.DeleteTask(ctx, id); err != nil {
		return s.fail("store.Delete", err)
	}
	s.mu.Lock()
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.log.WithField("operation", "store.Delete").WithField("id", id).Debug("task deleted")
	return nil
}

func (s *TaskStore) mutate(ctx context.Context, op string, call func(context.Context) (service.Task, error)) (service.Task, error) {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()
	s.begin(false)
	defer s.release()

	task, err := call(ctx)
	if err != nil {
		return service.Task{}, s.fail(op, err)
	}
	if !s.replace(task) {
		s.log.WithField("operation", op).WithField("id", task.ID).Debug("task not in collection")
	}
	return task.Clone(), nil
}

// replace swaps the cached task with the same id, keeping its position.
func (s *TaskStore) replace(task service.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == task.ID {
			s.tasks[i] = task.Clone()
			return true
		}
	}
	return false
}

// begin marks a call in flight and clears the error. For fetches it also
// issues the next sequence number and captures the filters.
func (s *TaskStore) begin(fetch bool) (uint64, service.TaskFilters) {
	s.mu.Lock()
	s.pending++
	s.err = nil
	if fetch {
		s.fetchSeq++
	}
	seq, filters := s.fetchSeq, s.filters
	s.mu.Unlock()
	s.notify()
	return seq, filters
}

func (s *TaskStore) release() {
	s.mu.Lock()
	s.pending--
	s.mu.Unlock()
	s.notify()
}

func (s *TaskStore) fail(op string, err error) *service.APIError {
	apiErr := service.AsAPIError(err)
	s.mu.Lock()
	s.err = apiErr.Clone()
	s.mu.Unlock()
	s.log.WithField("operation", op).WithError(err).Warn("request failed")
	return apiErr
}

func (s *TaskStore) notify() {
	s.subs.publish(s.State)
}

func cloneTasks(tasks []service.Task) []service.Task {
	out := make([]service.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
