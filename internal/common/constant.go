// Package common contains shared constants and sentinel errors used across
// taskkeeper components.
package common

// AuthorizationScheme prefixes the session token in the Authorization header.
const AuthorizationScheme = "Bearer"

// Allowed task statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

// Allowed task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Recognized sort keys for task listings. Anything else means newest first.
const (
	SortNewest   = "newest"
	SortOldest   = "oldest"
	SortDueDate  = "dueDate"
	SortPriority = "priority"
)
