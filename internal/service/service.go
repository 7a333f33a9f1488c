package service

import "context"

// Service defines the gateway to the remote task service.
// Every method resolves to either the decoded entity or an *APIError;
// transport errors never escape unnormalized.
// Stores never import the HTTP backend directly.
type Service interface {
	// ListTasks returns tasks matching filters, in server order.
	// Zero filter fields are not sent.
	ListTasks(ctx context.Context, filters TaskFilters) ([]Task, error)

	// GetTask returns a single task.
	GetTask(ctx context.Context, id string) (Task, error)

	// CreateTask creates a task and returns the canonical entity.
	CreateTask(ctx context.Context, input CreateTaskInput) (Task, error)

	// UpdateTask applies a partial update.
	UpdateTask(ctx context.Context, id string, input UpdateTaskInput) (Task, error)

	// DeleteTask deletes a task.
	DeleteTask(ctx context.Context, id string) error

	// UpdateTaskStatus sets only the status field.
	UpdateTaskStatus(ctx context.Context, id string, status TaskStatus) (Task, error)

	// AssignUser assigns a user; the returned task carries the assignee snapshot.
	AssignUser(ctx context.Context, id, userID string) (Task, error)

	// ListUsers returns all assignable users.
	ListUsers(ctx context.Context) ([]User, error)
}
