// Package newsletter implements the changelog newsletter core: the trigger
// policy evaluated on event status transitions, the email renderer, the
// dispatch paths (automated and manual), and the persistence for
// subscribers, settings, email history and publication snapshots.
package newsletter

import (
	"time"

	"github.com/google/uuid"
)

// Subscriber is one newsletter recipient. Email is unique; only active
// subscribers receive dispatches.
type Subscriber struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Active       bool      `json:"active"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// AutomationSettings is the lazily-created singleton controlling automated
// dispatch. TriggerStatuses is stored as a JSON array of status display
// names; a corrupt or absent value loads as an empty list, never an error.
type AutomationSettings struct {
	Enabled         bool     `json:"enabled"`
	TriggerStatuses []string `json:"trigger_statuses"`
}

// MailSettings is the admin-editable SMTP configuration.
type MailSettings struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"`
	Encryption  string `json:"encryption"` // "none", "starttls", "ssl"
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name"`
}

// BrandingSettings carries the project identity used to build subjects,
// absolute links and unsubscribe URLs.
type BrandingSettings struct {
	ProjectName string `json:"project_name"`
	ProjectURL  string `json:"project_url"`
}

// EmailHistory is one row of the append-only send audit log. Rows are never
// mutated or deleted; SubscriberCount is the number of successful deliveries,
// so a row with 0 records a total failure.
type EmailHistory struct {
	ID              uuid.UUID `json:"id"`
	EventID         uuid.UUID `json:"event_id"`
	Status          string    `json:"status"` // status display label at send time
	Subject         string    `json:"subject"`
	Template        string    `json:"template"`
	SubscriberCount int       `json:"subscriber_count"`
	SentAt          time.Time `json:"sent_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// Publication is the latest-send snapshot for one event, kept for the admin
// UI's "last email sent" card. At most one row per event; each send fully
// overwrites it. The history table, not this, is the system of record.
type Publication struct {
	EventID         uuid.UUID `json:"event_id"`
	EmailSent       bool      `json:"email_sent"`
	Subject         string    `json:"subject"`
	Content         string    `json:"content"`
	Template        string    `json:"template"`
	SentAt          time.Time `json:"sent_at"`
	SubscriberCount int       `json:"subscriber_count"`
}

// EmailTemplate is one admin-editable subject/body pattern. Patterns contain
// {{placeholder}} tokens replaced literally by the renderer.
type EmailTemplate struct {
	Type      string    `json:"type"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Seeded template types.
const (
	TemplateUpcomingFeature = "upcoming_feature"
	TemplateNewRelease      = "new_release"
	TemplateProposedFeature = "proposed_feature"
	TemplateWelcome         = "welcome"

	// TemplateGeneric identifies the fixed layout used by all automated
	// sends, independent of status.
	TemplateGeneric = "generic"
)

// Outcome classifies a dispatch attempt.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"    // every recipient accepted
	OutcomeSkipped Outcome = "skipped" // policy/debounce/no-op, nothing sent
	OutcomePartial Outcome = "partial" // some recipients failed
	OutcomeFailed  Outcome = "failed"  // hard error before any send
)

// DispatchResult reports what a dispatch did. The automated caller logs it
// and moves on; the manual caller surfaces Sent/Total to the operator.
type DispatchResult struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"` // set for skips
	Sent    int     `json:"subscribers_sent"`
	Total   int     `json:"total_subscribers"`
}

func skipped(reason string) DispatchResult {
	return DispatchResult{Outcome: OutcomeSkipped, Reason: reason}
}
