// Package changelog holds the roadmap event read model consumed by the
// newsletter core. Event CRUD itself lives in the admin surface; dispatch
// only ever reads events and writes status transitions.
package changelog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEventNotFound is returned when an operation names an event id with no
// row. Callers match it with errors.Is.
var ErrEventNotFound = errors.New("event not found")

// Reserved status display names. Events land in Backlogs when created and in
// Archived when retired; both always exist and cannot be deleted.
const (
	StatusBacklogs = "Backlogs"
	StatusArchived = "Archived"
)

// Event is a roadmap/changelog item moving through statuses.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Content   string    `json:"content"` // markdown
	Status    string    `json:"status"`
	Date      string    `json:"date"` // free-form, usually YYYY-MM-DD
	IsPublic  bool      `json:"is_public"`
	Tags      []Tag     `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tag is a colored label attached to an event.
type Tag struct {
	Name  string `json:"name"`
	Color string `json:"color"` // hex, e.g. "#3B82F6"
}

// StatusDefinition describes one column of the status pipeline.
type StatusDefinition struct {
	DisplayName string `json:"display_name"`
	Slug        string `json:"slug"`
	SortOrder   int    `json:"sort_order"`
	Reserved    bool   `json:"reserved"`
}
