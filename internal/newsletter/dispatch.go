package newsletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/statushq/launchlog/internal/changelog"
	"github.com/statushq/launchlog/internal/pkg/logger"
)

// ErrNoSubscribers is returned by the manual send path when the active
// subscriber directory is empty.
var ErrNoSubscribers = errors.New("no active subscribers")

// Transport delivers one rendered email to one recipient. Multi-recipient
// sends are N sequential calls, never one multi-RCPT transaction, so one
// rejection cannot abort delivery to the rest.
type Transport interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// EventSource reads events and status definitions. Implemented by
// changelog.Store.
type EventSource interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (*changelog.Event, error)
	GetStatusDefinition(ctx context.Context, displayName string) (*changelog.StatusDefinition, error)
}

// Storage is the slice of the newsletter store the dispatcher needs.
type Storage interface {
	ListActiveSubscribers(ctx context.Context) ([]*Subscriber, error)
	GetOrCreateAutomationSettings(ctx context.Context) (AutomationSettings, error)
	GetOrCreateBrandingSettings(ctx context.Context) (BrandingSettings, error)
	GetTemplate(ctx context.Context, templateType string) (*EmailTemplate, error)
	AppendEmailHistory(ctx context.Context, h *EmailHistory) error
	UpsertPublication(ctx context.Context, p *Publication) error
}

// Dispatcher orchestrates newsletter sends. Dispatch runs synchronously on
// the calling goroutine; there is no queue or worker pool, and subscribers
// are emailed strictly in directory order.
type Dispatcher struct {
	store     Storage
	events    EventSource
	transport Transport
	guard     DebounceGuard
	now       func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(store Storage, events EventSource, transport Transport, guard DebounceGuard) *Dispatcher {
	return &Dispatcher{
		store:     store,
		events:    events,
		transport: transport,
		guard:     guard,
		now:       time.Now,
	}
}

// ProcessStatusChange runs the automated dispatch for one status transition.
// The triggering status update must never be rolled back because of
// newsletter problems: every outcome short of a pre-send hard failure is
// returned as a non-error result, and even OutcomeFailed is for the caller
// to log, not to propagate to the status-update response.
func (d *Dispatcher) ProcessStatusChange(ctx context.Context, eventID uuid.UUID, oldStatus, newStatus string) (DispatchResult, error) {
	if oldStatus == newStatus {
		return skipped("status unchanged"), nil
	}

	settings, err := d.store.GetOrCreateAutomationSettings(ctx)
	if err != nil {
		return DispatchResult{Outcome: OutcomeFailed}, fmt.Errorf("load automation settings: %w", err)
	}

	if !ShouldTrigger(oldStatus, newStatus, settings) {
		if !settings.Enabled {
			return skipped("automation disabled"), nil
		}
		return skipped("status not in trigger list"), nil
	}

	// Claimed only for transitions that would actually send, so a suppressed
	// window is never burned on a non-triggering update.
	ok, err := d.guard.Claim(ctx, eventID)
	if err != nil {
		return DispatchResult{Outcome: OutcomeFailed}, fmt.Errorf("debounce check: %w", err)
	}
	if !ok {
		logger.Info("newsletter dispatch debounced", "event_id", eventID, "status", newStatus)
		return skipped("debounced"), nil
	}

	// Nothing has been sent yet, so any failure from here until the first
	// email gives the claim back. Otherwise a transient load error would
	// suppress the corrected retry for the whole window.
	release := func() {
		if err := d.guard.Release(ctx, eventID); err != nil {
			logger.Warn("debounce release failed", "event_id", eventID, "error", err)
		}
	}

	ev, err := d.events.GetEvent(ctx, eventID)
	if err != nil {
		release()
		return DispatchResult{Outcome: OutcomeFailed}, fmt.Errorf("load event: %w", err)
	}
	if ev == nil {
		release()
		return DispatchResult{Outcome: OutcomeFailed}, fmt.Errorf("load event %s: %w", eventID, changelog.ErrEventNotFound)
	}

	def, err := d.events.GetStatusDefinition(ctx, newStatus)
	if err != nil {
		release()
		return DispatchResult{Outcome: OutcomeFailed}, fmt.Errorf("load status definition: %w", err)
	}
	if def == nil {
		release()
		return DispatchResult{Outcome: OutcomeFailed}, fmt.Errorf("status definition %q not found", newStatus)
	}

	branding, err := d.store.GetOrCreateBrandingSettings(ctx)
	if err != nil {
		release()
		return DispatchResult{Outcome: OutcomeFailed}, fmt.Errorf("load branding settings: %w", err)
	}

	subject := AutomatedSubject(def.DisplayName, ev.Title, branding.ProjectName)
	body := AutomatedBody(ev, def.DisplayName, branding)

	result, err := d.fanOut(ctx, ev, def.DisplayName, subject, body, TemplateGeneric, branding, false)
	if err != nil || result.Outcome == OutcomeSkipped {
		release()
	}
	return result, err
}

// SendEventNewsletter is the manual, operator-triggered send with an
// explicit subject, body and template identifier. Unlike the automated path,
// an empty subscriber directory is a hard error, since a manual send with no
// effect is unexpected operator input.
func (d *Dispatcher) SendEventNewsletter(ctx context.Context, eventID uuid.UUID, subject, content, templateID string) (DispatchResult, error) {
	ev, err := d.events.GetEvent(ctx, eventID)
	if err != nil {
		return DispatchResult{Outcome: OutcomeFailed}, fmt.Errorf("load event: %w", err)
	}
	if ev == nil {
		return DispatchResult{Outcome: OutcomeFailed}, fmt.Errorf("load event %s: %w", eventID, changelog.ErrEventNotFound)
	}

	statusLabel := ev.Status
	if def, err := d.events.GetStatusDefinition(ctx, ev.Status); err == nil && def != nil {
		statusLabel = def.DisplayName
	}

	branding, err := d.store.GetOrCreateBrandingSettings(ctx)
	if err != nil {
		return DispatchResult{Outcome: OutcomeFailed}, fmt.Errorf("load branding settings: %w", err)
	}

	result, err := d.fanOut(ctx, ev, statusLabel, subject, content, templateID, branding, true)
	if err != nil {
		return result, err
	}
	return result, nil
}

// fanOut runs the per-recipient loop and records history + publication. A
// per-recipient failure is logged and excluded from the success count; the
// loop never aborts early. History is appended even when every send failed,
// so a row with subscriber_count 0 records a total failure for audit.
func (d *Dispatcher) fanOut(ctx context.Context, ev *changelog.Event, statusLabel, subject, body, templateID string, branding BrandingSettings, emptyIsError bool) (DispatchResult, error) {
	subs, err := d.store.ListActiveSubscribers(ctx)
	if err != nil {
		return DispatchResult{Outcome: OutcomeFailed}, fmt.Errorf("list subscribers: %w", err)
	}
	if len(subs) == 0 {
		if emptyIsError {
			return DispatchResult{Outcome: OutcomeFailed}, ErrNoSubscribers
		}
		return skipped("no active subscribers"), nil
	}

	sent := 0
	for _, sub := range subs {
		personalized := PersonalizeUnsubscribe(body, branding.ProjectURL, sub.Email)
		if err := d.transport.SendEmail(ctx, sub.Email, subject, personalized); err != nil {
			logger.Warn("newsletter send failed",
				"event_id", ev.ID, "recipient", sub.Email, "error", err)
			continue
		}
		sent++
	}

	sentAt := d.now()

	history := &EmailHistory{
		EventID:         ev.ID,
		Status:          statusLabel,
		Subject:         subject,
		Template:        templateID,
		SubscriberCount: sent,
		SentAt:          sentAt,
	}
	if err := d.store.AppendEmailHistory(ctx, history); err != nil {
		// The emails already left; a missing audit row is a data-quality
		// issue, not a failed send.
		logger.Error("failed to append email history", "event_id", ev.ID, "error", err)
	}

	pub := &Publication{
		EventID:         ev.ID,
		EmailSent:       true,
		Subject:         subject,
		Content:         body,
		Template:        templateID,
		SentAt:          sentAt,
		SubscriberCount: sent,
	}
	if err := d.store.UpsertPublication(ctx, pub); err != nil {
		logger.Error("failed to upsert publication", "event_id", ev.ID, "error", err)
	}

	result := DispatchResult{Outcome: OutcomeSent, Sent: sent, Total: len(subs)}
	if sent < len(subs) {
		result.Outcome = OutcomePartial
	}
	logger.Info("newsletter dispatched",
		"event_id", ev.ID, "status", statusLabel, "sent", sent, "total", len(subs), "template", templateID)
	return result, nil
}

// SendWelcome sends the seeded welcome template to a new subscriber.
// Best-effort: callers treat failure as non-fatal to the subscription.
func (d *Dispatcher) SendWelcome(ctx context.Context, email string) error {
	tpl, err := d.store.GetTemplate(ctx, TemplateWelcome)
	if err != nil {
		return fmt.Errorf("load welcome template: %w", err)
	}
	if tpl == nil {
		return nil
	}

	branding, err := d.store.GetOrCreateBrandingSettings(ctx)
	if err != nil {
		return fmt.Errorf("load branding settings: %w", err)
	}

	subject, body := RenderTemplate(tpl.Subject, tpl.Body, TemplateData{
		ProjectName:    branding.ProjectName,
		ProjectURL:     branding.ProjectURL,
		UnsubscribeURL: UnsubscribeURL(branding.ProjectURL, email),
	})
	return d.transport.SendEmail(ctx, email, subject, body)
}
