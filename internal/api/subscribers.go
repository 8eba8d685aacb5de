package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/statushq/launchlog/internal/pkg/logger"
)

// HandleSubscribe adds or reactivates a subscriber and sends the welcome
// email. A welcome failure does not fail the subscription.
func (s *Service) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !validEmail(email) {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	sub, err := s.news.Subscribe(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}

	if err := s.dispatcher.SendWelcome(r.Context(), sub.Email); err != nil {
		logger.Warn("welcome email failed", "subscriber", sub.Email, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      sub.ID,
		"email":   sub.Email,
	})
}

// HandleUnsubscribe deactivates a subscriber. It answers GET requests from
// the link in an email body, so it renders a small confirmation page rather
// than JSON. Unknown addresses get the same page.
func (s *Service) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := s.news.Unsubscribe(r.Context(), email); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Unsubscribed</title></head>
<body style="font-family: sans-serif; max-width: 480px; margin: 80px auto; text-align: center;">
<h2>You have been unsubscribed</h2>
<p>You will no longer receive update emails at this address.</p>
</body>
</html>`)
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t")
}
