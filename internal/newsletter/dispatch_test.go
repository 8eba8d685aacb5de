package newsletter

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/statushq/launchlog/internal/changelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to      string
	subject string
	body    string
}

type stubTransport struct {
	sent    []sentMail
	failFor map[string]bool
}

func (t *stubTransport) SendEmail(_ context.Context, to, subject, htmlBody string) error {
	if t.failFor[to] {
		return fmt.Errorf("smtp: 550 mailbox unavailable")
	}
	t.sent = append(t.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

type stubStorage struct {
	subs        []*Subscriber
	settings    AutomationSettings
	settingsErr error
	branding    BrandingSettings
	welcome     *EmailTemplate
	history     []*EmailHistory
	historyErr  error
	pubs        map[uuid.UUID]*Publication
	pubErr      error
}

func (s *stubStorage) ListActiveSubscribers(context.Context) ([]*Subscriber, error) {
	return s.subs, nil
}

func (s *stubStorage) GetOrCreateAutomationSettings(context.Context) (AutomationSettings, error) {
	return s.settings, s.settingsErr
}

func (s *stubStorage) GetOrCreateBrandingSettings(context.Context) (BrandingSettings, error) {
	return s.branding, nil
}

func (s *stubStorage) GetTemplate(_ context.Context, templateType string) (*EmailTemplate, error) {
	if templateType == TemplateWelcome {
		return s.welcome, nil
	}
	return nil, nil
}

func (s *stubStorage) AppendEmailHistory(_ context.Context, h *EmailHistory) error {
	if s.historyErr != nil {
		return s.historyErr
	}
	s.history = append(s.history, h)
	return nil
}

func (s *stubStorage) UpsertPublication(_ context.Context, p *Publication) error {
	if s.pubErr != nil {
		return s.pubErr
	}
	if s.pubs == nil {
		s.pubs = map[uuid.UUID]*Publication{}
	}
	s.pubs[p.EventID] = p
	return nil
}

type stubEvents struct {
	ev  *changelog.Event
	def *changelog.StatusDefinition
}

func (s *stubEvents) GetEvent(_ context.Context, id uuid.UUID) (*changelog.Event, error) {
	if s.ev != nil && s.ev.ID == id {
		return s.ev, nil
	}
	return nil, nil
}

func (s *stubEvents) GetStatusDefinition(_ context.Context, name string) (*changelog.StatusDefinition, error) {
	if s.def != nil && s.def.DisplayName == name {
		return s.def, nil
	}
	return nil, nil
}

// onceGuard allows exactly one claim per event, like the Redis guard inside
// its window.
type onceGuard struct {
	claimed  map[uuid.UUID]bool
	releases int
}

func (g *onceGuard) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	if g.claimed == nil {
		g.claimed = map[uuid.UUID]bool{}
	}
	if g.claimed[id] {
		return false, nil
	}
	g.claimed[id] = true
	return true, nil
}

func (g *onceGuard) Release(_ context.Context, id uuid.UUID) error {
	delete(g.claimed, id)
	g.releases++
	return nil
}

func subscribers(emails ...string) []*Subscriber {
	base := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	subs := make([]*Subscriber, 0, len(emails))
	for i, e := range emails {
		subs = append(subs, &Subscriber{
			ID:           uuid.New(),
			Email:        e,
			Active:       true,
			SubscribedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return subs
}

func newTestDispatcher(store *stubStorage, events *stubEvents, transport *stubTransport) *Dispatcher {
	return NewDispatcher(store, events, transport, &onceGuard{})
}

func testEvent() *changelog.Event {
	return &changelog.Event{
		ID:      uuid.New(),
		Title:   "Dark Mode",
		Slug:    "dark-mode",
		Content: "<p>Now with dark mode.</p>",
		Status:  "Release",
		Date:    "2025-08-10",
		Tags:    []changelog.Tag{{Name: "Beta", Color: "#3B82F6"}},
	}
}

func TestProcessStatusChangeSameStatusIsNoop(t *testing.T) {
	store := &stubStorage{subs: subscribers("a@x.com")}
	transport := &stubTransport{}
	d := newTestDispatcher(store, &stubEvents{}, transport)

	res, err := d.ProcessStatusChange(context.Background(), uuid.New(), "Release", "Release")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Empty(t, transport.sent)
	assert.Empty(t, store.history)
}

func TestProcessStatusChangeDisabledNeverSends(t *testing.T) {
	ev := testEvent()
	store := &stubStorage{
		subs:     subscribers("a@x.com", "b@x.com"),
		settings: AutomationSettings{Enabled: false, TriggerStatuses: []string{"Release"}},
	}
	transport := &stubTransport{}
	events := &stubEvents{ev: ev, def: &changelog.StatusDefinition{DisplayName: "Release", Slug: "release"}}
	d := newTestDispatcher(store, events, transport)

	res, err := d.ProcessStatusChange(context.Background(), ev.ID, "Backlogs", "Release")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, "automation disabled", res.Reason)
	assert.Empty(t, transport.sent)
	assert.Empty(t, store.history)
}

func TestProcessStatusChangeTriggersOnConfiguredStatus(t *testing.T) {
	ev := testEvent()
	store := &stubStorage{
		subs:     subscribers("a@x.com", "b@x.com", "c@x.com"),
		settings: AutomationSettings{Enabled: true, TriggerStatuses: []string{"Release"}},
		branding: BrandingSettings{ProjectName: "Acme", ProjectURL: "https://acme.io"},
	}
	transport := &stubTransport{}
	events := &stubEvents{ev: ev, def: &changelog.StatusDefinition{DisplayName: "Release", Slug: "release"}}
	d := newTestDispatcher(store, events, transport)

	res, err := d.ProcessStatusChange(context.Background(), ev.ID, "Backlogs", "Release")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSent, res.Outcome)
	assert.Equal(t, 3, res.Sent)
	require.Len(t, store.history, 1)
	assert.Equal(t, 3, store.history[0].SubscriberCount)
	assert.Equal(t, "Release", store.history[0].Status)
	assert.Equal(t, TemplateGeneric, store.history[0].Template)

	// Non-trigger transition sends nothing.
	transport.sent = nil
	ev2 := testEvent()
	events.ev = ev2
	res, err = d.ProcessStatusChange(context.Background(), ev2.ID, "Backlogs", "Upcoming")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Empty(t, transport.sent)
	assert.Len(t, store.history, 1)
}

func TestProcessStatusChangeDebounced(t *testing.T) {
	ev := testEvent()
	store := &stubStorage{
		subs:     subscribers("a@x.com"),
		settings: AutomationSettings{Enabled: true, TriggerStatuses: []string{"Release"}},
		branding: BrandingSettings{ProjectName: "Acme", ProjectURL: "https://acme.io"},
	}
	transport := &stubTransport{}
	events := &stubEvents{ev: ev, def: &changelog.StatusDefinition{DisplayName: "Release", Slug: "release"}}
	d := newTestDispatcher(store, events, transport)

	res1, err := d.ProcessStatusChange(context.Background(), ev.ID, "Backlogs", "Release")
	require.NoError(t, err)
	res2, err := d.ProcessStatusChange(context.Background(), ev.ID, "Upcoming", "Release")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSent, res1.Outcome)
	assert.Equal(t, OutcomeSkipped, res2.Outcome)
	assert.Equal(t, "debounced", res2.Reason)
	assert.Len(t, store.history, 1)
	assert.Len(t, transport.sent, 1)
}

func TestProcessStatusChangeNoSubscribersIsNoop(t *testing.T) {
	ev := testEvent()
	store := &stubStorage{
		settings: AutomationSettings{Enabled: true, TriggerStatuses: []string{"Release"}},
		branding: BrandingSettings{ProjectName: "Acme", ProjectURL: "https://acme.io"},
	}
	transport := &stubTransport{}
	events := &stubEvents{ev: ev, def: &changelog.StatusDefinition{DisplayName: "Release", Slug: "release"}}
	guard := &onceGuard{}
	d := NewDispatcher(store, events, transport, guard)

	res, err := d.ProcessStatusChange(context.Background(), ev.ID, "Backlogs", "Release")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, "no active subscribers", res.Reason)
	assert.Empty(t, store.history)
	assert.Nil(t, store.pubs[ev.ID])
	// Nothing was sent, so the window is not burned.
	assert.Equal(t, 1, guard.releases)
}

func TestProcessStatusChangeSettingsErrorPropagates(t *testing.T) {
	store := &stubStorage{settingsErr: fmt.Errorf("connection refused")}
	d := newTestDispatcher(store, &stubEvents{}, &stubTransport{})

	res, err := d.ProcessStatusChange(context.Background(), uuid.New(), "Backlogs", "Release")
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestProcessStatusChangeScenarioDarkMode(t *testing.T) {
	ev := testEvent()
	store := &stubStorage{
		subs:     subscribers("a@x.com", "b@x.com"),
		settings: AutomationSettings{Enabled: true, TriggerStatuses: []string{"Release"}},
		branding: BrandingSettings{ProjectName: "Acme", ProjectURL: "https://acme.io"},
	}
	transport := &stubTransport{}
	events := &stubEvents{ev: ev, def: &changelog.StatusDefinition{DisplayName: "Release", Slug: "release"}}
	d := newTestDispatcher(store, events, transport)

	res, err := d.ProcessStatusChange(context.Background(), ev.ID, "Backlogs", "Release")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, res.Outcome)

	require.Len(t, transport.sent, 2)
	assert.Equal(t, "Release: Dark Mode - Acme", transport.sent[0].subject)
	assert.Contains(t, transport.sent[0].body, "unsubscribe?email=a%40x.com")
	assert.Contains(t, transport.sent[1].body, "unsubscribe?email=b%40x.com")
	assert.NotEqual(t, transport.sent[0].body, transport.sent[1].body)

	pub := store.pubs[ev.ID]
	require.NotNil(t, pub)
	assert.True(t, pub.EmailSent)
	assert.Equal(t, 2, pub.SubscriberCount)
	assert.Equal(t, "Release: Dark Mode - Acme", pub.Subject)
}

func TestSendEventNewsletterZeroSubscribersIsError(t *testing.T) {
	ev := testEvent()
	store := &stubStorage{branding: BrandingSettings{ProjectName: "Acme", ProjectURL: "https://acme.io"}}
	events := &stubEvents{ev: ev}
	d := newTestDispatcher(store, events, &stubTransport{})

	_, err := d.SendEventNewsletter(context.Background(), ev.ID, "Subject", "<p>Body</p>", TemplateNewRelease)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSubscribers)
	assert.Empty(t, store.history)
}

func TestSendEventNewsletterPartialFailure(t *testing.T) {
	ev := testEvent()
	store := &stubStorage{
		subs:     subscribers("a@x.com", "b@x.com", "c@x.com", "d@x.com", "e@x.com"),
		branding: BrandingSettings{ProjectName: "Acme", ProjectURL: "https://acme.io"},
	}
	transport := &stubTransport{failFor: map[string]bool{"b@x.com": true, "d@x.com": true}}
	events := &stubEvents{ev: ev, def: &changelog.StatusDefinition{DisplayName: "Release", Slug: "release"}}
	d := newTestDispatcher(store, events, transport)

	res, err := d.SendEventNewsletter(context.Background(), ev.ID, "Ship it", "<p>Body {{unsubscribe_url}}</p>", TemplateNewRelease)
	require.NoError(t, err)

	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, 5, res.Total)
	require.Len(t, store.history, 1)
	assert.Equal(t, 3, store.history[0].SubscriberCount)
	assert.Equal(t, TemplateNewRelease, store.history[0].Template)
}

func TestSendEventNewsletterUnknownEvent(t *testing.T) {
	store := &stubStorage{subs: subscribers("a@x.com")}
	d := newTestDispatcher(store, &stubEvents{}, &stubTransport{})

	_, err := d.SendEventNewsletter(context.Background(), uuid.New(), "Subject", "Body", TemplateNewRelease)
	require.Error(t, err)
	assert.ErrorIs(t, err, changelog.ErrEventNotFound)
}

func TestProcessStatusChangePersistenceFailureStillSent(t *testing.T) {
	ev := testEvent()
	store := &stubStorage{
		subs:       subscribers("a@x.com", "b@x.com"),
		settings:   AutomationSettings{Enabled: true, TriggerStatuses: []string{"Release"}},
		branding:   BrandingSettings{ProjectName: "Acme", ProjectURL: "https://acme.io"},
		historyErr: fmt.Errorf("disk full"),
		pubErr:     fmt.Errorf("disk full"),
	}
	transport := &stubTransport{}
	events := &stubEvents{ev: ev, def: &changelog.StatusDefinition{DisplayName: "Release", Slug: "release"}}
	d := newTestDispatcher(store, events, transport)

	res, err := d.ProcessStatusChange(context.Background(), ev.ID, "Backlogs", "Release")

	// The emails already left; a lost audit row must not fail the dispatch.
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, res.Outcome)
	assert.Equal(t, 2, res.Sent)
	assert.Len(t, transport.sent, 2)
}

func TestProcessStatusChangeFailureReleasesClaim(t *testing.T) {
	ev := testEvent()
	store := &stubStorage{
		subs:     subscribers("a@x.com"),
		settings: AutomationSettings{Enabled: true, TriggerStatuses: []string{"Release"}},
		branding: BrandingSettings{ProjectName: "Acme", ProjectURL: "https://acme.io"},
	}
	transport := &stubTransport{}
	events := &stubEvents{def: &changelog.StatusDefinition{DisplayName: "Release", Slug: "release"}}
	guard := &onceGuard{}
	d := NewDispatcher(store, events, transport, guard)

	// Event row missing: dispatch fails before any email and gives the
	// claim back.
	res, err := d.ProcessStatusChange(context.Background(), ev.ID, "Backlogs", "Release")
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, guard.releases)

	// The corrected retry inside the window goes through.
	events.ev = ev
	res, err = d.ProcessStatusChange(context.Background(), ev.ID, "Upcoming", "Release")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, res.Outcome)
	assert.Len(t, transport.sent, 1)
}

func TestSendWelcome(t *testing.T) {
	store := &stubStorage{
		branding: BrandingSettings{ProjectName: "Acme", ProjectURL: "https://acme.io"},
		welcome: &EmailTemplate{
			Type:    TemplateWelcome,
			Subject: "Welcome to {{project_name}} updates",
			Body:    `<p>Hi! <a href="{{unsubscribe_url}}">Unsubscribe</a></p>`,
		},
	}
	transport := &stubTransport{}
	d := newTestDispatcher(store, &stubEvents{}, transport)

	require.NoError(t, d.SendWelcome(context.Background(), "new@x.com"))

	require.Len(t, transport.sent, 1)
	assert.Equal(t, "Welcome to Acme updates", transport.sent[0].subject)
	assert.True(t, strings.Contains(transport.sent[0].body, "unsubscribe?email=new%40x.com"))
}

func TestSendWelcomeMissingTemplateIsNoop(t *testing.T) {
	transport := &stubTransport{}
	d := newTestDispatcher(&stubStorage{}, &stubEvents{}, transport)

	require.NoError(t, d.SendWelcome(context.Background(), "new@x.com"))
	assert.Empty(t, transport.sent)
}
