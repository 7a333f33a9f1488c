// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusCancelled  TaskStatus = "CANCELLED"
)

// Statuses lists every task status in display order.
var Statuses = []TaskStatus{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}

// Valid reports whether s is one of the enumerated statuses.
func (s TaskStatus) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Label returns the human-readable status name.
func (s TaskStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// UnmarshalJSON rejects values outside the enumeration.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := TaskStatus(raw)
	if !v.Valid() {
		return fmt.Errorf("invalid task status: %q", raw)
	}
	*s = v
	return nil
}

// ParseTaskStatus parses user input such as "in-progress" or "COMPLETED".
func ParseTaskStatus(raw string) (TaskStatus, error) {
	v := TaskStatus(normalizeEnum(raw))
	if !v.Valid() {
		return "", fmt.Errorf("invalid status: %s", raw)
	}
	return v, nil
}

// TaskPriority is the urgency of a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is one of the enumerated priorities.
func (p TaskPriority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// UnmarshalJSON rejects values outside the enumeration.
func (p *TaskPriority) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := TaskPriority(raw)
	if !v.Valid() {
		return fmt.Errorf("invalid task priority: %q", raw)
	}
	*p = v
	return nil
}

// ParseTaskPriority parses user input such as "high".
func ParseTaskPriority(raw string) (TaskPriority, error) {
	v := TaskPriority(normalizeEnum(raw))
	if !v.Valid() {
		return "", fmt.Errorf("invalid priority: %s", raw)
	}
	return v, nil
}

func normalizeEnum(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

// Assignee is the denormalized copy of the user a task is assigned to.
type Assignee struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Name returns "First Last".
func (a Assignee) Name() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Task represents a single task item as returned by the server.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     string       `json:"dueDate,omitempty"` // ISO-8601
	Assignee    *Assignee    `json:"assignee,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// UnmarshalJSON accepts the assignee under either "assignee" or "user".
func (t *Task) UnmarshalJSON(data []byte) error {
	type wire Task
	var w struct {
		wire
		User *Assignee `json:"user"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = Task(w.wire)
	if t.Assignee == nil {
		t.Assignee = w.User
	}
	return nil
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	if t.Assignee != nil {
		a := *t.Assignee
		t.Assignee = &a
	}
	return t
}

// Due parses DueDate. Both full timestamps and plain dates are accepted.
func (t Task) Due() (time.Time, bool) {
	if t.DueDate == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if d, err := time.Parse(layout, t.DueDate); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// Overdue reports whether the task is past due and not completed.
func (t Task) Overdue(now time.Time) bool {
	due, ok := t.Due()
	return ok && due.Before(now) && t.Status != StatusCompleted
}

// User is an assignable user. Users are read-only in this client.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Name returns "First Last".
func (u User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// TaskFilters are client-held query constraints. A zero field means
// "no constraint on that dimension".
type TaskFilters struct {
	Status   TaskStatus
	Priority TaskPriority
	Search   string
}

// IsZero reports whether no constraint is set.
func (f TaskFilters) IsZero() bool {
	return f == TaskFilters{}
}

// CreateTaskInput is the payload for creating a task.
type CreateTaskInput struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status,omitempty"`
	Priority    TaskPriority `json:"priority,omitempty"`
	DueDate     string       `json:"dueDate,omitempty"`
}

// UpdateTaskInput is a partial update; nil fields are not sent.
type UpdateTaskInput struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *TaskStatus   `json:"status,omitempty"`
	Priority    *TaskPriority `json:"priority,omitempty"`
	DueDate     *string       `json:"dueDate,omitempty"`
}

// Pagination is the optional paging block of list responses.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}
