package newsletter

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListActiveSubscribers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	first := uuid.New()
	second := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "email", "active", "subscribed_at"}).
		AddRow(first, "a@example.com", true, time.Now().Add(-time.Hour)).
		AddRow(second, "b@example.com", true, time.Now())
	mock.ExpectQuery("SELECT id, email, active, subscribed_at FROM newsletter_subscribers").
		WillReturnRows(rows)

	subs, err := NewStore(db).ListActiveSubscribers(context.Background())
	require.NoError(t, err)

	require.Len(t, subs, 2)
	assert.Equal(t, first, subs[0].ID)
	assert.Equal(t, "a@example.com", subs[0].Email)
	assert.Equal(t, "b@example.com", subs[1].Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscribeNormalizesEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery("INSERT INTO newsletter_subscribers").
		WithArgs(sqlmock.AnyArg(), "user@example.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))

	sub, err := NewStore(db).Subscribe(context.Background(), "  User@Example.COM ")
	require.NoError(t, err)

	assert.Equal(t, id, sub.ID)
	assert.Equal(t, "user@example.com", sub.Email)
	assert.True(t, sub.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnsubscribeUnknownEmailIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE newsletter_subscribers SET active = false").
		WithArgs("ghost@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewStore(db).Unsubscribe(context.Background(), "ghost@example.com")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateAutomationSettingsSeedsDisabled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT value FROM app_settings").
		WithArgs("automation").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectExec("INSERT INTO app_settings").
		WithArgs("automation", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	settings, err := NewStore(db).GetOrCreateAutomationSettings(context.Background())
	require.NoError(t, err)

	assert.False(t, settings.Enabled)
	assert.Empty(t, settings.TriggerStatuses)
	assert.NotNil(t, settings.TriggerStatuses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateAutomationSettingsReadsExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT value FROM app_settings").
		WithArgs("automation").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).
			AddRow([]byte(`{"enabled":true,"trigger_statuses":["Release","Upcoming"]}`)))

	settings, err := NewStore(db).GetOrCreateAutomationSettings(context.Background())
	require.NoError(t, err)

	assert.True(t, settings.Enabled)
	assert.Equal(t, []string{"Release", "Upcoming"}, settings.TriggerStatuses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateAutomationSettingsToleratesCorruptValue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT value FROM app_settings").
		WithArgs("automation").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{not json`)))
	mock.ExpectExec("INSERT INTO app_settings").
		WithArgs("automation", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	settings, err := NewStore(db).GetOrCreateAutomationSettings(context.Background())
	require.NoError(t, err)
	assert.False(t, settings.Enabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateMailSettingsSeedsDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT value FROM app_settings").
		WithArgs("mail").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectExec("INSERT INTO app_settings").
		WithArgs("mail", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	defaults := MailSettings{Host: "smtp.example.com", Port: 587, Encryption: "starttls", FromAddress: "news@example.com"}
	settings, err := NewStore(db).GetOrCreateMailSettings(context.Background(), defaults)
	require.NoError(t, err)

	assert.Equal(t, defaults, settings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEmailHistoryAssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	eventID := uuid.New()
	mock.ExpectExec("INSERT INTO event_email_history").
		WithArgs(sqlmock.AnyArg(), eventID, "Release", "Release: Dark Mode - Acme",
			TemplateGeneric, 3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	h := &EmailHistory{
		EventID:         eventID,
		Status:          "Release",
		Subject:         "Release: Dark Mode - Acme",
		Template:        TemplateGeneric,
		SubscriberCount: 3,
		SentAt:          time.Now(),
	}
	require.NoError(t, NewStore(db).AppendEmailHistory(context.Background(), h))

	assert.NotEqual(t, uuid.Nil, h.ID)
	assert.False(t, h.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasRecentSend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	eventID := uuid.New()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM event_email_history`).
		WithArgs(eventID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	recent, err := NewStore(db).HasRecentSend(context.Background(), eventID, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, recent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPublicationMissingReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	eventID := uuid.New()
	mock.ExpectQuery("SELECT event_id, email_sent, subject, content, template, sent_at, subscriber_count").
		WithArgs(eventID).
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}))

	pub, err := NewStore(db).GetPublication(context.Background(), eventID)
	require.NoError(t, err)
	assert.Nil(t, pub)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTemplateMissingReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT type, subject, body, updated_at FROM email_templates").
		WithArgs("nonexistent").
		WillReturnRows(sqlmock.NewRows([]string{"type"}))

	tpl, err := NewStore(db).GetTemplate(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, tpl)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedDefaultTemplatesInsertsAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for range defaultTemplates {
		mock.ExpectExec("INSERT INTO email_templates").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}

	require.NoError(t, NewStore(db).SeedDefaultTemplates(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
