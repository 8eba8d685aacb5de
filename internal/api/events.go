package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/statushq/launchlog/internal/changelog"
	"github.com/statushq/launchlog/internal/newsletter"
	"github.com/statushq/launchlog/internal/pkg/logger"
)

// HandleUpdateEventStatus moves an event to a new status and runs the
// automated newsletter dispatch. The dispatch outcome is reported in the
// response but never fails the status update itself.
func (s *Service) HandleUpdateEventStatus(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var input struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	input.Status = strings.TrimSpace(input.Status)
	if input.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	def, err := s.events.GetStatusDefinition(r.Context(), input.Status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check status")
		return
	}
	if def == nil {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	oldStatus, err := s.events.UpdateEventStatus(r.Context(), eventID, input.Status)
	if err != nil {
		if errors.Is(err, changelog.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}

	result, err := s.dispatcher.ProcessStatusChange(r.Context(), eventID, oldStatus, input.Status)
	if err != nil {
		// The status change already committed; the dispatch failure is
		// surfaced in the response body, not as an HTTP error.
		logger.Error("automated newsletter dispatch failed",
			"event_id", eventID, "status", input.Status, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"old_status": oldStatus,
		"new_status": input.Status,
		"newsletter": result,
	})
}

// HandleSendEventNewsletter is the manual send with operator-supplied
// subject, content and template.
func (s *Service) HandleSendEventNewsletter(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var input struct {
		Subject  string `json:"subject"`
		Content  string `json:"content"`
		Template string `json:"template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Subject == "" || input.Content == "" {
		writeError(w, http.StatusBadRequest, "subject and content are required")
		return
	}
	if input.Template == "" {
		input.Template = newsletter.TemplateGeneric
	}

	result, err := s.dispatcher.SendEventNewsletter(r.Context(), eventID, input.Subject, input.Content, input.Template)
	if err != nil {
		logger.Error("manual newsletter send failed", "event_id", eventID, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, changelog.ErrEventNotFound) || errors.Is(err, newsletter.ErrNoSubscribers) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleGetEmailHistory returns an event's send log, newest first.
func (s *Service) HandleGetEmailHistory(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	history, err := s.news.GetEventEmailHistory(r.Context(), eventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load email history")
		return
	}
	if history == nil {
		history = []*newsletter.EmailHistory{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

// HandleGetPublishStatus reports whether an event has ever been emailed,
// with the latest-send snapshot when it has.
func (s *Service) HandleGetPublishStatus(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	pub, err := s.news.GetPublication(r.Context(), eventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load publish status")
		return
	}
	if pub == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"email_sent": false})
		return
	}

	writeJSON(w, http.StatusOK, pub)
}
