package newsletter

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/statushq/launchlog/internal/changelog"
)

// Placeholder tokens recognized by RenderTemplate. Substitution is literal
// string replacement: no escaping, conditionals or loops, so rendering the
// same inputs twice is byte-identical.
const (
	PlaceholderProjectName    = "{{project_name}}"
	PlaceholderProjectURL     = "{{project_url}}"
	PlaceholderEventName      = "{{event_name}}"
	PlaceholderEventURL       = "{{event_url}}"
	PlaceholderEventContent   = "{{event_content}}"
	PlaceholderEventDate      = "{{event_date}}"
	PlaceholderEventTags      = "{{event_tags}}"
	PlaceholderStatus         = "{{status}}"
	PlaceholderUnsubscribeURL = "{{unsubscribe_url}}"
)

// TemplateData carries the values substituted into a template. Fields left
// empty substitute to empty strings.
type TemplateData struct {
	ProjectName    string
	ProjectURL     string
	EventName      string
	EventURL       string
	EventContent   string
	EventDate      string
	EventTags      string
	Status         string
	UnsubscribeURL string
}

func (d TemplateData) replacer() *strings.Replacer {
	return strings.NewReplacer(
		PlaceholderProjectName, d.ProjectName,
		PlaceholderProjectURL, d.ProjectURL,
		PlaceholderEventName, d.EventName,
		PlaceholderEventURL, d.EventURL,
		PlaceholderEventContent, d.EventContent,
		PlaceholderEventDate, d.EventDate,
		PlaceholderEventTags, d.EventTags,
		PlaceholderStatus, d.Status,
		PlaceholderUnsubscribeURL, d.UnsubscribeURL,
	)
}

// RenderTemplate substitutes the placeholder set into a subject and body
// pattern.
func RenderTemplate(subjectTpl, bodyTpl string, data TemplateData) (subject, body string) {
	r := data.replacer()
	return r.Replace(subjectTpl), r.Replace(bodyTpl)
}

// FormatEventDate reformats an ISO YYYY-MM-DD date as "D Mon. YYYY"
// (e.g. "10 Aug. 2025"). Empty input renders empty; anything unparseable
// (free-form dates like "Q3 2025") passes through unchanged.
func FormatEventDate(date string) string {
	if date == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("2 Jan. 2006")
}

// badgeAlpha is the fixed low-opacity suffix appended to a tag's hex color
// for the badge background (hex alpha ~12%).
const badgeAlpha = "20"

// RenderTagBadges renders one inline-styled badge span per tag, colored from
// the tag's stored hex color.
func RenderTagBadges(tags []changelog.Tag) string {
	if len(tags) == 0 {
		return ""
	}
	var b strings.Builder
	for _, tag := range tags {
		fmt.Fprintf(&b,
			`<span style="display: inline-block; padding: 2px 10px; margin: 0 6px 6px 0; border-radius: 9999px; font-size: 12px; border: 1px solid %s; background-color: %s%s; color: %s;">%s</span>`,
			tag.Color, tag.Color, badgeAlpha, tag.Color, tag.Name)
	}
	return b.String()
}

// AbsolutizeUploadURLs rewrites relative /api/uploads/ image references in
// event content to absolute URLs under the project base URL, covering both
// HTML src attributes and markdown image links.
func AbsolutizeUploadURLs(content, projectURL string) string {
	base := strings.TrimRight(projectURL, "/")
	content = strings.ReplaceAll(content, `src="/api/uploads/`, `src="`+base+`/api/uploads/`)
	content = strings.ReplaceAll(content, `](/api/uploads/`, `](`+base+`/api/uploads/`)
	return content
}

// UnsubscribeURL builds the per-subscriber unsubscribe link.
func UnsubscribeURL(projectURL, email string) string {
	return strings.TrimRight(projectURL, "/") + "/api/newsletter/unsubscribe?email=" + url.QueryEscape(email)
}

// PersonalizeUnsubscribe fills the unsubscribe placeholder in an already
// rendered body for one recipient. Kept as the last step of the per-recipient
// loop so everything before it renders once per dispatch.
func PersonalizeUnsubscribe(body, projectURL, email string) string {
	return strings.ReplaceAll(body, PlaceholderUnsubscribeURL, UnsubscribeURL(projectURL, email))
}

// AutomatedSubject builds the subject line for automated sends:
// "{statusLabel}: {eventTitle} - {projectName}".
func AutomatedSubject(statusLabel, eventTitle, projectName string) string {
	return fmt.Sprintf("%s: %s - %s", statusLabel, eventTitle, projectName)
}

// automatedLayout is the single fixed layout used by every automated send,
// independent of status. The unsubscribe URL stays a placeholder here and is
// personalized per recipient.
const automatedLayout = `<!DOCTYPE html>
<html>
<body style="margin: 0; padding: 0; background-color: #f4f4f5; font-family: -apple-system, 'Segoe UI', Helvetica, Arial, sans-serif;">
  <table role="presentation" width="100%" cellpadding="0" cellspacing="0">
    <tr><td align="center" style="padding: 32px 16px;">
      <table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background-color: #ffffff; border-radius: 8px; overflow: hidden;">
        <tr><td style="padding: 32px 40px 8px 40px;">
          <p style="margin: 0; font-size: 13px; color: #71717a;">{{project_name}} &middot; {{status}}</p>
          <h1 style="margin: 8px 0 4px 0; font-size: 24px; color: #18181b;">{{event_name}}</h1>
          <p style="margin: 0 0 12px 0; font-size: 13px; color: #71717a;">{{event_date}}</p>
          <div style="margin: 0 0 16px 0;">{{event_tags}}</div>
        </td></tr>
        <tr><td style="padding: 0 40px; font-size: 15px; line-height: 1.6; color: #3f3f46;">{{event_content}}</td></tr>
        <tr><td style="padding: 24px 40px 32px 40px;">
          <a href="{{event_url}}" style="display: inline-block; padding: 10px 24px; background-color: #18181b; color: #ffffff; text-decoration: none; border-radius: 6px; font-size: 14px;">View on the roadmap</a>
        </td></tr>
      </table>
      <p style="margin: 24px 0 0 0; font-size: 12px; color: #a1a1aa;">
        You receive this because you subscribed to {{project_name}} updates.
        <a href="{{unsubscribe_url}}" style="color: #a1a1aa;">Unsubscribe</a>
      </p>
    </td></tr>
  </table>
</body>
</html>`

// AutomatedBody renders the generic layout for an event. The returned body
// still contains the unsubscribe placeholder.
func AutomatedBody(ev *changelog.Event, statusLabel string, branding BrandingSettings) string {
	base := strings.TrimRight(branding.ProjectURL, "/")
	data := TemplateData{
		ProjectName:    branding.ProjectName,
		ProjectURL:     base,
		EventName:      ev.Title,
		EventURL:       base + "/" + ev.Slug,
		EventContent:   AbsolutizeUploadURLs(ev.Content, base),
		EventDate:      FormatEventDate(ev.Date),
		EventTags:      RenderTagBadges(ev.Tags),
		Status:         statusLabel,
		UnsubscribeURL: PlaceholderUnsubscribeURL,
	}
	_, body := RenderTemplate("", automatedLayout, data)
	return body
}
