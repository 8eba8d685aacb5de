package changelog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store provides database operations for events and status definitions.
type Store struct {
	db *sql.DB
}

// NewStore creates a new changelog store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetEvent retrieves an event by ID with its tags preloaded.
func (s *Store) GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error) {
	query := `SELECT e.id, e.title, e.slug, e.content, e.status, e.event_date, e.is_public,
		COALESCE(array_agg(t.name ORDER BY t.name) FILTER (WHERE t.name IS NOT NULL), '{}'),
		COALESCE(array_agg(t.color ORDER BY t.name) FILTER (WHERE t.name IS NOT NULL), '{}'),
		e.created_at, e.updated_at
		FROM events e
		LEFT JOIN event_tags et ON et.event_id = e.id
		LEFT JOIN tags t ON t.id = et.tag_id
		WHERE e.id = $1
		GROUP BY e.id`

	ev := &Event{}
	var tagNames, tagColors []string
	err := s.db.QueryRowContext(ctx, query, eventID).Scan(
		&ev.ID, &ev.Title, &ev.Slug, &ev.Content, &ev.Status, &ev.Date, &ev.IsPublic,
		pq.Array(&tagNames), pq.Array(&tagColors), &ev.CreatedAt, &ev.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for i := range tagNames {
		tag := Tag{Name: tagNames[i]}
		if i < len(tagColors) {
			tag.Color = tagColors[i]
		}
		ev.Tags = append(ev.Tags, tag)
	}
	return ev, nil
}

// GetStatusDefinition resolves a status definition by its display name.
func (s *Store) GetStatusDefinition(ctx context.Context, displayName string) (*StatusDefinition, error) {
	query := `SELECT display_name, slug, sort_order, reserved
		FROM event_statuses WHERE display_name = $1`

	def := &StatusDefinition{}
	err := s.db.QueryRowContext(ctx, query, displayName).Scan(
		&def.DisplayName, &def.Slug, &def.SortOrder, &def.Reserved)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return def, err
}

// ListStatusDefinitions returns the status pipeline in board order.
func (s *Store) ListStatusDefinitions(ctx context.Context) ([]*StatusDefinition, error) {
	query := `SELECT display_name, slug, sort_order, reserved
		FROM event_statuses ORDER BY sort_order`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*StatusDefinition
	for rows.Next() {
		def := &StatusDefinition{}
		if err := rows.Scan(&def.DisplayName, &def.Slug, &def.SortOrder, &def.Reserved); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// UpdateEventStatus persists a status transition and returns the previous
// status. The caller passes both to the newsletter dispatcher afterwards.
func (s *Store) UpdateEventStatus(ctx context.Context, eventID uuid.UUID, newStatus string) (string, error) {
	var oldStatus string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM events WHERE id = $1`, eventID).Scan(&oldStatus)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("event %s: %w", eventID, ErrEventNotFound)
	}
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE events SET status = $1, updated_at = $2 WHERE id = $3`,
		newStatus, time.Now(), eventID)
	if err != nil {
		return "", err
	}
	return oldStatus, nil
}
