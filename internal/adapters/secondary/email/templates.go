package email

import (
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

type templateData struct {
	Kind      string
	Number    string
	Tag       string
	Title     string
	Status    string
	Priority  string
	Body      string
	Author    string
	Recipient string
}

func newTemplateData(n ports.Notification) templateData {
	d := templateData{
		Kind:     string(n.Kind),
		Number:   n.Ticket.Number,
		Tag:      domain.ReferenceTag(n.Ticket.Number),
		Title:    n.Ticket.Title,
		Status:   string(n.Ticket.Status),
		Priority: string(n.Ticket.Priority),
		Body:     n.Ticket.Description,
		Author:   "A team member",
	}
	if n.Comment != nil {
		d.Body = n.Comment.Body
	}
	if n.Author != nil {
		d.Author = n.Author.DisplayName()
	}
	if n.Assignee != nil {
		d.Recipient = n.Assignee.DisplayName()
	}
	return d
}

const textLayout = `{{if eq .Kind "confirmation"}}Your support request has been received as ticket {{.Number}}.

Title: {{.Title}}
Priority: {{.Priority}}
Status: {{.Status}}

{{.Body}}
{{else if eq .Kind "comment_added"}}{{.Author}} replied on ticket {{.Number}}:

{{.Body}}
{{else if eq .Kind "status_changed"}}The status of ticket {{.Number}} is now {{.Status}}.
{{else}}Ticket {{.Number}} ({{.Priority}}) has been escalated to you{{if .Recipient}}, {{.Recipient}}{{end}}.

{{.Title}}
{{end}}
Reply to this email to add a comment. Keep {{.Tag}} in the subject line.
`

const htmlLayout = `<html><body>
{{if eq .Kind "confirmation"}}<h2>Ticket Received</h2>
<p>Your support request has been received as ticket <strong>{{.Number}}</strong>.</p>
<ul>
<li><strong>Title:</strong> {{.Title}}</li>
<li><strong>Priority:</strong> {{.Priority}}</li>
<li><strong>Status:</strong> {{.Status}}</li>
</ul>
<p>{{.Body}}</p>
{{else if eq .Kind "comment_added"}}<p>{{.Author}} replied on ticket <strong>{{.Number}}</strong>:</p>
<blockquote>{{.Body}}</blockquote>
{{else if eq .Kind "status_changed"}}<p>The status of ticket <strong>{{.Number}}</strong> is now <strong>{{.Status}}</strong>.</p>
{{else}}<p>Ticket <strong>{{.Number}}</strong> ({{.Priority}}) has been escalated to you.</p>
<p>{{.Title}}</p>
{{end}}<hr>
<p style="color:#666;font-size:12px">Reply to this email to add a comment. Keep {{.Tag}} in the subject line.</p>
</body></html>
`

var (
	textTemplate = texttemplate.Must(texttemplate.New("text").Parse(textLayout))
	htmlTemplate = htmltemplate.Must(htmltemplate.New("html").Parse(htmlLayout))
)
