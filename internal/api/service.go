package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/statushq/launchlog/internal/changelog"
	"github.com/statushq/launchlog/internal/newsletter"
)

// Dispatch is the slice of the newsletter dispatcher the handlers use.
type Dispatch interface {
	ProcessStatusChange(ctx context.Context, eventID uuid.UUID, oldStatus, newStatus string) (newsletter.DispatchResult, error)
	SendEventNewsletter(ctx context.Context, eventID uuid.UUID, subject, content, templateID string) (newsletter.DispatchResult, error)
	SendWelcome(ctx context.Context, email string) error
}

// Service holds the handler dependencies.
type Service struct {
	db           *sql.DB
	events       *changelog.Store
	news         *newsletter.Store
	dispatcher   Dispatch
	mailDefaults newsletter.MailSettings
}

// NewService creates the API service.
func NewService(db *sql.DB, events *changelog.Store, news *newsletter.Store, dispatcher Dispatch, mailDefaults newsletter.MailSettings) *Service {
	return &Service{
		db:           db,
		events:       events,
		news:         news,
		dispatcher:   dispatcher,
		mailDefaults: mailDefaults,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// HealthCheck reports liveness, including database reachability.
func (s *Service) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "degraded",
			"database": "unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
