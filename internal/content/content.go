// Package content renders nudge messages from fixed templates. Rendering is
// fully deterministic: no network, no AI, no clock reads. Optional fields
// branch on presence, so a missing partner name omits the whole clause
// instead of leaving a blank.
package content

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"messageai/api/internal/nudge"
)

var templates = map[nudge.Kind]*template.Template{
	nudge.KindPostSessionNote: mustParse("post_session_note",
		`How did your {{.SessionTitle}} session go?{{if .PartnerName}} Add a note about your session with {{.PartnerName}}.{{end}}`),
	nudge.Kind24hBefore: mustParse("24h_before",
		`Reminder: {{.SessionTitle}}{{if .PartnerName}} with {{.PartnerName}}{{end}} is tomorrow at {{.LocalTime}}.`),
	nudge.Kind2hBefore: mustParse("2h_before",
		`Coming up: {{.SessionTitle}}{{if .PartnerName}} with {{.PartnerName}}{{end}} starts at {{.LocalTime}}.`),
	nudge.KindTaskDueToday: mustParse("task_due_today",
		`Task due today: {{.TaskTitle}}.`),
	nudge.KindTaskOverdue: mustParse("task_overdue",
		`Task overdue: {{.TaskTitle}}. It was due {{.LocalDate}}.`),
	nudge.KindUnconfirmed24h: mustParse("unconfirmed_24h",
		`{{.SessionTitle}} is in about 24 hours and not everyone has confirmed yet. Tap to confirm.`),
	nudge.KindLongGapAlert: mustParse("long_gap_alert",
		`It has been {{.DaysSince}} days since your last session{{if .PartnerName}} with {{.PartnerName}}{{end}}. Time to schedule the next one?`),
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Parse(text))
}

// templateData is the view passed to the templates: the candidate context
// plus the event time pre-formatted in the recipient's timezone.
type templateData struct {
	nudge.Context
	LocalTime string
	LocalDate string
}

// Render produces the message for a kind. Unknown kinds are an error so a
// new kind cannot silently ship without a template.
func Render(kind nudge.Kind, in nudge.Context) (string, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", fmt.Errorf("no template for kind %q", kind)
	}

	data := templateData{Context: in}
	if !in.EventTime.IsZero() {
		local := in.EventTime.In(location(in.Timezone))
		data.LocalTime = local.Format("3:04 PM")
		data.LocalDate = local.Format("Jan 2")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", kind, err)
	}
	return buf.String(), nil
}

// location resolves an IANA timezone name, falling back to UTC on an
// unknown or empty name. A bad stored timezone must not fail rendering.
func location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
