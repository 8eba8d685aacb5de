package newsletter

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store provides database operations for newsletter entities.
type Store struct {
	db *sql.DB
}

// NewStore creates a new newsletter store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ---- subscribers ----

// ListActiveSubscribers returns the active subscriber directory in
// subscription order. Dispatch emails recipients in exactly this order.
func (s *Store) ListActiveSubscribers(ctx context.Context) ([]*Subscriber, error) {
	query := `SELECT id, email, active, subscribed_at FROM newsletter_subscribers
		WHERE active = true ORDER BY subscribed_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Subscriber
	for rows.Next() {
		sub := &Subscriber{}
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.Active, &sub.SubscribedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Subscribe upserts a subscriber as active. Re-subscribing a previously
// unsubscribed address reactivates it and refreshes the timestamp.
func (s *Store) Subscribe(ctx context.Context, email string) (*Subscriber, error) {
	sub := &Subscriber{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Active:       true,
		SubscribedAt: time.Now(),
	}

	query := `INSERT INTO newsletter_subscribers (id, email, active, subscribed_at)
		VALUES ($1, $2, true, $3)
		ON CONFLICT (email) DO UPDATE SET active = true, subscribed_at = EXCLUDED.subscribed_at
		RETURNING id`

	if err := s.db.QueryRowContext(ctx, query, sub.ID, sub.Email, sub.SubscribedAt).Scan(&sub.ID); err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe deactivates a subscriber. Unknown addresses are a no-op so the
// link in old emails can be clicked any number of times.
func (s *Store) Unsubscribe(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE newsletter_subscribers SET active = false WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return err
}

// ---- settings (lazily-created singleton rows) ----

const (
	settingAutomation = "automation"
	settingMail       = "mail"
	settingBranding   = "branding"
)

func (s *Store) getSetting(ctx context.Context, key string, out interface{}) (bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM app_settings WHERE key = $1`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// A corrupt settings value must not block status updates; treat it
		// as unconfigured.
		return false, nil
	}
	return true, nil
}

func (s *Store) putSetting(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, raw)
	return err
}

// GetOrCreateAutomationSettings loads the automation singleton, creating it
// disabled with no trigger statuses on first access.
func (s *Store) GetOrCreateAutomationSettings(ctx context.Context) (AutomationSettings, error) {
	var settings AutomationSettings
	found, err := s.getSetting(ctx, settingAutomation, &settings)
	if err != nil {
		return AutomationSettings{}, err
	}
	if !found {
		settings = AutomationSettings{Enabled: false, TriggerStatuses: []string{}}
		if err := s.putSetting(ctx, settingAutomation, settings); err != nil {
			return AutomationSettings{}, err
		}
	}
	if settings.TriggerStatuses == nil {
		settings.TriggerStatuses = []string{}
	}
	return settings, nil
}

// UpdateAutomationSettings replaces the automation singleton.
func (s *Store) UpdateAutomationSettings(ctx context.Context, settings AutomationSettings) error {
	if settings.TriggerStatuses == nil {
		settings.TriggerStatuses = []string{}
	}
	return s.putSetting(ctx, settingAutomation, settings)
}

// GetOrCreateMailSettings loads the SMTP settings row, seeding it from the
// bootstrap defaults on first access.
func (s *Store) GetOrCreateMailSettings(ctx context.Context, defaults MailSettings) (MailSettings, error) {
	var settings MailSettings
	found, err := s.getSetting(ctx, settingMail, &settings)
	if err != nil {
		return MailSettings{}, err
	}
	if !found {
		settings = defaults
		if err := s.putSetting(ctx, settingMail, settings); err != nil {
			return MailSettings{}, err
		}
	}
	return settings, nil
}

// UpdateMailSettings replaces the SMTP settings row.
func (s *Store) UpdateMailSettings(ctx context.Context, settings MailSettings) error {
	return s.putSetting(ctx, settingMail, settings)
}

// GetOrCreateBrandingSettings loads the project identity used in subjects
// and links.
func (s *Store) GetOrCreateBrandingSettings(ctx context.Context) (BrandingSettings, error) {
	var settings BrandingSettings
	found, err := s.getSetting(ctx, settingBranding, &settings)
	if err != nil {
		return BrandingSettings{}, err
	}
	if !found {
		settings = BrandingSettings{ProjectName: "Launchlog", ProjectURL: "http://localhost:8080"}
		if err := s.putSetting(ctx, settingBranding, settings); err != nil {
			return BrandingSettings{}, err
		}
	}
	return settings, nil
}

// UpdateBrandingSettings replaces the branding row.
func (s *Store) UpdateBrandingSettings(ctx context.Context, settings BrandingSettings) error {
	return s.putSetting(ctx, settingBranding, settings)
}

// ---- email history (append-only) ----

// AppendEmailHistory records one send attempt. History rows are never
// updated or deleted.
func (s *Store) AppendEmailHistory(ctx context.Context, h *EmailHistory) error {
	h.ID = uuid.New()
	h.CreatedAt = time.Now()

	query := `INSERT INTO event_email_history
		(id, event_id, status, subject, template, subscriber_count, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query, h.ID, h.EventID, h.Status, h.Subject,
		h.Template, h.SubscriberCount, h.SentAt, h.CreatedAt)
	return err
}

// GetEventEmailHistory returns an event's send log, newest first.
func (s *Store) GetEventEmailHistory(ctx context.Context, eventID uuid.UUID) ([]*EmailHistory, error) {
	query := `SELECT id, event_id, status, subject, template, subscriber_count, sent_at, created_at
		FROM event_email_history WHERE event_id = $1 ORDER BY sent_at DESC`

	rows, err := s.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*EmailHistory
	for rows.Next() {
		h := &EmailHistory{}
		if err := rows.Scan(&h.ID, &h.EventID, &h.Status, &h.Subject, &h.Template,
			&h.SubscriberCount, &h.SentAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// HasRecentSend reports whether any history row for the event has a sent_at
// within the given window. Backs the debounce guard when Redis is absent.
func (s *Store) HasRecentSend(ctx context.Context, eventID uuid.UUID, window time.Duration) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_email_history WHERE event_id = $1 AND sent_at > $2`,
		eventID, time.Now().Add(-window)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ---- publication snapshot ----

// UpsertPublication writes the latest-send snapshot for an event. Each send
// fully supersedes the previous snapshot.
func (s *Store) UpsertPublication(ctx context.Context, p *Publication) error {
	query := `INSERT INTO event_publications
		(event_id, email_sent, subject, content, template, sent_at, subscriber_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO UPDATE SET email_sent = EXCLUDED.email_sent,
			subject = EXCLUDED.subject, content = EXCLUDED.content,
			template = EXCLUDED.template, sent_at = EXCLUDED.sent_at,
			subscriber_count = EXCLUDED.subscriber_count`

	_, err := s.db.ExecContext(ctx, query, p.EventID, p.EmailSent, p.Subject,
		p.Content, p.Template, p.SentAt, p.SubscriberCount)
	return err
}

// GetPublication returns the latest-send snapshot, or nil when the event has
// never been emailed.
func (s *Store) GetPublication(ctx context.Context, eventID uuid.UUID) (*Publication, error) {
	query := `SELECT event_id, email_sent, subject, content, template, sent_at, subscriber_count
		FROM event_publications WHERE event_id = $1`

	p := &Publication{}
	err := s.db.QueryRowContext(ctx, query, eventID).Scan(&p.EventID, &p.EmailSent,
		&p.Subject, &p.Content, &p.Template, &p.SentAt, &p.SubscriberCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// ---- email templates ----

// GetTemplate retrieves a template by type.
func (s *Store) GetTemplate(ctx context.Context, templateType string) (*EmailTemplate, error) {
	query := `SELECT type, subject, body, updated_at FROM email_templates WHERE type = $1`

	t := &EmailTemplate{}
	err := s.db.QueryRowContext(ctx, query, templateType).Scan(&t.Type, &t.Subject, &t.Body, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListTemplates returns all templates.
func (s *Store) ListTemplates(ctx context.Context) ([]*EmailTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, subject, body, updated_at FROM email_templates ORDER BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*EmailTemplate
	for rows.Next() {
		t := &EmailTemplate{}
		if err := rows.Scan(&t.Type, &t.Subject, &t.Body, &t.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// UpdateTemplate replaces a template's subject and body patterns.
func (s *Store) UpdateTemplate(ctx context.Context, t *EmailTemplate) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE email_templates SET subject = $1, body = $2, updated_at = NOW() WHERE type = $3`,
		t.Subject, t.Body, t.Type)
	return err
}

// SeedDefaultTemplates inserts the default template set on first run.
// Existing rows (including admin edits) are left untouched.
func (s *Store) SeedDefaultTemplates(ctx context.Context) error {
	for _, t := range defaultTemplates {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO email_templates (type, subject, body, updated_at)
			VALUES ($1, $2, $3, NOW()) ON CONFLICT (type) DO NOTHING`,
			t.Type, t.Subject, t.Body)
		if err != nil {
			return err
		}
	}
	return nil
}
