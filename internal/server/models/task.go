// Package models holds the server's domain records and the small amount of
// logic that belongs with them: enum checks, due-date parsing and filter
// normalization.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
)

// Task is a to-do item owned by exactly one user.
//
// Seq is the insertion sequence assigned by the store; it breaks ordering
// ties and is not part of the wire format.
type Task struct {
	ID          string     `json:"id"`
	Seq         int64      `json:"-"`
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

// TaskPatch lists the fields an update changes. Nil pointers are left
// alone; ClearDueDate removes the due date and wins over DueDate.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *string
	Priority     *string
	DueDate      *time.Time
	ClearDueDate bool
	Tags         *[]string
}

// Apply merges p into t in place. UpdatedAt is not touched.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.Tags != nil {
		t.Tags = append([]string{}, (*p.Tags)...)
	}
}

// TaskFilter narrows and orders a task listing. Use Normalize before
// handing it to a repository.
type TaskFilter struct {
	Status   string
	Priority string
	Search   string
	Sort     string
}

// Normalize drops unrecognized status and priority values and maps unknown
// sort keys to newest-first. Search text is kept verbatim, whitespace
// included; only an empty string means no search.
func (f TaskFilter) Normalize() TaskFilter {
	if !IsValidStatus(f.Status) {
		f.Status = ""
	}
	if !IsValidPriority(f.Priority) {
		f.Priority = ""
	}
	switch f.Sort {
	case common.SortOldest, common.SortDueDate, common.SortPriority:
	default:
		f.Sort = common.SortNewest
	}
	return f
}

// Key is a stable textual form of a normalized filter, used as a cache key
// component.
func (f TaskFilter) Key() string {
	return fmt.Sprintf("s=%s|p=%s|q=%s|o=%s", f.Status, f.Priority, strings.ToLower(f.Search), f.Sort)
}

// Stats summarizes one owner's tasks.
type Stats struct {
	Total        int `json:"total"`
	Pending      int `json:"pending"`
	InProgress   int `json:"inProgress"`
	Completed    int `json:"completed"`
	HighPriority int `json:"highPriority"`
}

func IsValidStatus(s string) bool {
	switch s {
	case common.StatusPending, common.StatusInProgress, common.StatusCompleted:
		return true
	}
	return false
}

func IsValidPriority(p string) bool {
	switch p {
	case common.PriorityLow, common.PriorityMedium, common.PriorityHigh:
		return true
	}
	return false
}

// PriorityRank orders priorities high > medium > low; unknown values rank 0.
func PriorityRank(p string) int {
	switch p {
	case common.PriorityHigh:
		return 3
	case common.PriorityMedium:
		return 2
	case common.PriorityLow:
		return 1
	}
	return 0
}

// ParseDueDate accepts an RFC 3339 timestamp or a plain YYYY-MM-DD date
// (midnight UTC).
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: dueDate must be RFC 3339 or YYYY-MM-DD", common.ErrorValidation)
}

// CleanTags trims every tag and drops empty ones. The result is never nil.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
