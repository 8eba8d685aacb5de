package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/statushq/launchlog/internal/newsletter"
)

// HandleGetAutomationSettings returns the automation policy, seeding the
// disabled default on first access.
func (s *Service) HandleGetAutomationSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.news.GetOrCreateAutomationSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load automation settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// HandleUpdateAutomationSettings replaces the automation policy. Trigger
// statuses must name existing status definitions.
func (s *Service) HandleUpdateAutomationSettings(w http.ResponseWriter, r *http.Request) {
	var settings newsletter.AutomationSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, status := range settings.TriggerStatuses {
		def, err := s.events.GetStatusDefinition(r.Context(), status)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check status")
			return
		}
		if def == nil {
			writeError(w, http.StatusBadRequest, "unknown status: "+status)
			return
		}
	}

	if err := s.news.UpdateAutomationSettings(r.Context(), settings); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save automation settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleGetMailSettings returns the SMTP settings with the password blanked.
func (s *Service) HandleGetMailSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.news.GetOrCreateMailSettings(r.Context(), s.mailDefaults)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load mail settings")
		return
	}
	settings.Password = ""
	writeJSON(w, http.StatusOK, settings)
}

// HandleUpdateMailSettings replaces the SMTP settings. An empty password in
// the payload keeps the stored one, so the blanked GET response can be
// round-tripped.
func (s *Service) HandleUpdateMailSettings(w http.ResponseWriter, r *http.Request) {
	var settings newsletter.MailSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch settings.Encryption {
	case "", "none", "starttls", "ssl":
	default:
		writeError(w, http.StatusBadRequest, "encryption must be none, starttls or ssl")
		return
	}

	if settings.Password == "" {
		current, err := s.news.GetOrCreateMailSettings(r.Context(), s.mailDefaults)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load mail settings")
			return
		}
		settings.Password = current.Password
	}

	if err := s.news.UpdateMailSettings(r.Context(), settings); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save mail settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleGetBrandingSettings returns the project identity used in subjects
// and unsubscribe links.
func (s *Service) HandleGetBrandingSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.news.GetOrCreateBrandingSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load branding settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// HandleUpdateBrandingSettings replaces the project identity.
func (s *Service) HandleUpdateBrandingSettings(w http.ResponseWriter, r *http.Request) {
	var settings newsletter.BrandingSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings.ProjectName = strings.TrimSpace(settings.ProjectName)
	settings.ProjectURL = strings.TrimRight(strings.TrimSpace(settings.ProjectURL), "/")
	if settings.ProjectName == "" || settings.ProjectURL == "" {
		writeError(w, http.StatusBadRequest, "project_name and project_url are required")
		return
	}

	if err := s.news.UpdateBrandingSettings(r.Context(), settings); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save branding settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
