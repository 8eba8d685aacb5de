package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/statushq/launchlog/internal/newsletter"
)

// HandleListTemplates returns all email templates.
func (s *Service) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.news.ListTemplates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load templates")
		return
	}
	if templates == nil {
		templates = []*newsletter.EmailTemplate{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"templates": templates})
}

// HandleGetTemplate returns one template by type.
func (s *Service) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.news.GetTemplate(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load template")
		return
	}
	if tpl == nil {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// HandleUpdateTemplate replaces a template's subject and body patterns.
// Placeholders are substituted at send time, so the patterns are stored
// verbatim.
func (s *Service) HandleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	templateType := chi.URLParam(r, "type")

	existing, err := s.news.GetTemplate(r.Context(), templateType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load template")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}

	var input struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Subject == "" || input.Body == "" {
		writeError(w, http.StatusBadRequest, "subject and body are required")
		return
	}

	tpl := &newsletter.EmailTemplate{Type: templateType, Subject: input.Subject, Body: input.Body}
	if err := s.news.UpdateTemplate(r.Context(), tpl); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save template")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
