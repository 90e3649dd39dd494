// Package models defines the records the CLI exchanges with the server.
package models

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	Tags        []string   `json:"tags"`
	Owner       string     `json:"owner"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// String renders a one-line summary for listings.
func (t Task) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  [%s] %-6s %s", t.ID, t.Status, t.Priority, t.Title)
	if t.DueDate != nil {
		fmt.Fprintf(&b, "  due %s", t.DueDate.Format(time.DateOnly))
	}
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, "  #%s", strings.Join(t.Tags, " #"))
	}
	return b.String()
}

// Details renders every field, one per line.
func (t Task) Details() string {
	due := "-"
	if t.DueDate != nil {
		due = t.DueDate.Format(time.DateOnly)
	}
	return fmt.Sprintf("ID:          %s\nTitle:       %s\nDescription: %s\nStatus:      %s\nPriority:    %s\nDue:         %s\nTags:        %s\nCreated:     %s\nUpdated:     %s",
		t.ID, t.Title, t.Description, t.Status, t.Priority, due, strings.Join(t.Tags, ", "),
		t.CreatedAt.Local().Format(time.DateTime), t.UpdatedAt.Local().Format(time.DateTime))
}

// TaskInput is the body of a create request. Empty fields take server
// defaults.
type TaskInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	DueDate     string   `json:"dueDate,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// TaskUpdate is the body of an update request. Nil fields are not sent and
// stay unchanged on the server; a DueDate of "" clears the date.
type TaskUpdate struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

// ListOptions maps to the list endpoint's query parameters.
type ListOptions struct {
	Status   string
	Priority string
	Search   string
	Sort     string
}

type Stats struct {
	Total        int `json:"total"`
	Pending      int `json:"pending"`
	InProgress   int `json:"inProgress"`
	Completed    int `json:"completed"`
	HighPriority int `json:"highPriority"`
}

// ExportLink points at an uploaded export.
type ExportLink struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Session is what register and login return.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
