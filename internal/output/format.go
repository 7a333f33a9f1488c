// Package output provides formatters for CLI output.
package output

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"taskdesk/internal/service"
)

// FormatTask formats a task line.
// Format: "{N:>4}  {STATUS:<11}  {PRIORITY:<6}  {TITLE}[ (details)]\n"
func FormatTask(w io.Writer, num int, task service.Task, now time.Time) {
	line := fmt.Sprintf("%4d  %-11s  %-6s  %s", num, task.Status, task.Priority, normalizeTitle(task.Title))
	var details []string
	if task.Assignee != nil {
		details = append(details, "@"+task.Assignee.Name())
	}
	if task.DueDate != "" {
		details = append(details, "due "+formatDue(task))
	}
	if task.Overdue(now) {
		details = append(details, "overdue")
	}
	if len(details) > 0 {
		line += " (" + strings.Join(details, ", ") + ")"
	}
	fmt.Fprintln(w, line)
}

// FormatTaskDetails prints every field of a task, one per line.
func FormatTaskDetails(w io.Writer, task service.Task, now time.Time) {
	fmt.Fprintf(w, "ID:          %s\n", task.ID)
	fmt.Fprintf(w, "Title:       %s\n", normalizeTitle(task.Title))
	fmt.Fprintf(w, "Status:      %s\n", task.Status.Label())
	fmt.Fprintf(w, "Priority:    %s\n", task.Priority)
	if task.DueDate != "" {
		due := formatDue(task)
		if task.Overdue(now) {
			due += " (overdue)"
		}
		fmt.Fprintf(w, "Due:         %s\n", due)
	}
	if task.Assignee != nil {
		fmt.Fprintf(w, "Assignee:    %s\n", task.Assignee.Name())
	}
	if !task.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created:     %s\n", task.CreatedAt.UTC().Format(time.RFC3339))
	}
	if !task.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated:     %s\n", task.UpdatedAt.UTC().Format(time.RFC3339))
	}
	if d := strings.TrimSpace(task.Description); d != "" {
		fmt.Fprintln(w, "")
		for _, line := range strings.Split(d, "\n") {
			fmt.Fprintf(w, "    %s\n", strings.TrimRight(line, "\r"))
		}
	}
}

// FormatUser formats a user line.
// Format: "{ID}  {NAME}\n"
func FormatUser(w io.Writer, user service.User) {
	name := user.Name()
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(w, "%s  %s\n", user.ID, name)
}

// FormatFilters describes active filters, e.g. `status=PENDING search="db"`.
// It returns "" when no filter is set.
func FormatFilters(f service.TaskFilters) string {
	var parts []string
	if f.Status != "" {
		parts = append(parts, "status="+string(f.Status))
	}
	if f.Priority != "" {
		parts = append(parts, "priority="+string(f.Priority))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		parts = append(parts, fmt.Sprintf("search=%q", s))
	}
	return strings.Join(parts, " ")
}

// FormatError prints the error banner: the message, then the first
// field-level validation message when the server sent any.
func FormatError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var apiErr *service.APIError
	if !errors.As(err, &apiErr) {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "error: %s\n", apiErr.Message)
	if msg := apiErr.FirstValidationMessage(); msg != "" {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
}

func formatDue(task service.Task) string {
	if due, ok := task.Due(); ok {
		return due.UTC().Format("2006-01-02")
	}
	return task.DueDate
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
