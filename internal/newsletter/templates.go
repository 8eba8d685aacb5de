package newsletter

// defaultTemplates is the template set seeded at first run. Admins can edit
// any of these afterwards; seeding never overwrites.
var defaultTemplates = []EmailTemplate{
	{
		Type:    TemplateUpcomingFeature,
		Subject: "Coming soon: {{event_name}} - {{project_name}}",
		Body: `<h1>{{event_name}}</h1>
<p>{{event_date}}</p>
<div>{{event_tags}}</div>
<div>{{event_content}}</div>
<p><a href="{{event_url}}">See what's coming on the {{project_name}} roadmap</a></p>
<p><a href="{{unsubscribe_url}}">Unsubscribe</a></p>`,
	},
	{
		Type:    TemplateNewRelease,
		Subject: "Just shipped: {{event_name}} - {{project_name}}",
		Body: `<h1>{{event_name}} is live</h1>
<p>{{event_date}}</p>
<div>{{event_tags}}</div>
<div>{{event_content}}</div>
<p><a href="{{event_url}}">Read the release notes</a></p>
<p><a href="{{unsubscribe_url}}">Unsubscribe</a></p>`,
	},
	{
		Type:    TemplateProposedFeature,
		Subject: "We're considering: {{event_name}} - {{project_name}}",
		Body: `<h1>{{event_name}}</h1>
<div>{{event_content}}</div>
<p><a href="{{event_url}}">Vote for this on the {{project_name}} roadmap</a></p>
<p><a href="{{unsubscribe_url}}">Unsubscribe</a></p>`,
	},
	{
		Type:    TemplateWelcome,
		Subject: "Welcome to {{project_name}} updates",
		Body: `<h1>You're subscribed</h1>
<p>You'll get an email when something noteworthy changes on the
<a href="{{project_url}}">{{project_name}}</a> roadmap.</p>
<p><a href="{{unsubscribe_url}}">Unsubscribe</a></p>`,
	},
}
