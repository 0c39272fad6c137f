package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// TemplateData is the view passed to notice templates.
type TemplateData struct {
	Kind         Kind
	CustomerName string
	StaffName    string
	ServiceName  string
	Start        time.Time
	End          time.Time
	Status       string
	Notes        string
	// CancelReason is set on cancellation notices only.
	CancelReason string
}

type Rendered struct {
	Subject string
	Email   string
	SMS     string
}

type templateSet struct {
	subject *template.Template
	email   *template.Template
	sms     *template.Template
}

type Templates struct {
	byKind map[Kind]templateSet
	loc    *time.Location
}

var funcs = template.FuncMap{
	"day":   func(t time.Time) string { return t.Format("Monday, 02 January 2006") },
	"clock": func(t time.Time) string { return t.Format("15:04 MST") },
}

var defaultTemplates = map[Kind][3]string{
	KindConfirmation: {
		`Appointment confirmed: {{.ServiceName}} on {{day .Start}}`,
		`Hello {{.CustomerName}},

Your {{.ServiceName}} appointment with {{.StaffName}} is booked for {{day .Start}} from {{clock .Start}} to {{clock .End}}.
{{if .Notes}}
Notes: {{.Notes}}
{{end}}
See you then.`,
		`Booked: {{.ServiceName}} with {{.StaffName}}, {{day .Start}} {{clock .Start}}.`,
	},
	KindUpdate: {
		`Appointment updated: {{.ServiceName}} on {{day .Start}}`,
		`Hello {{.CustomerName}},

Your appointment has changed. It is now {{.ServiceName}} with {{.StaffName}} on {{day .Start}} from {{clock .Start}} to {{clock .End}}.`,
		`Updated: {{.ServiceName}} with {{.StaffName}}, now {{day .Start}} {{clock .Start}}.`,
	},
	KindCancellation: {
		`Appointment cancelled: {{.ServiceName}} on {{day .Start}}`,
		`Hello {{.CustomerName}},

Your {{.ServiceName}} appointment with {{.StaffName}} on {{day .Start}} at {{clock .Start}} has been cancelled.
Reason: {{if .CancelReason}}{{.CancelReason}}{{else}}not given{{end}}`,
		`Cancelled: {{.ServiceName}} on {{day .Start}} {{clock .Start}}.`,
	},
	KindReminder: {
		`Reminder: {{.ServiceName}} on {{day .Start}}`,
		`Hello {{.CustomerName}},

This is a reminder of your {{.ServiceName}} appointment with {{.StaffName}} on {{day .Start}} at {{clock .Start}}.`,
		`Reminder: {{.ServiceName}} with {{.StaffName}}, {{day .Start}} {{clock .Start}}.`,
	},
}

// NewTemplates parses the built-in notice templates; times render in loc (UTC when nil).
func NewTemplates(loc *time.Location) (*Templates, error) {
	if loc == nil {
		loc = time.UTC
	}
	t := &Templates{byKind: map[Kind]templateSet{}, loc: loc}
	for kind, src := range defaultTemplates {
		var set templateSet
		var err error
		if set.subject, err = template.New(string(kind) + ".subject").Funcs(funcs).Parse(src[0]); err != nil {
			return nil, err
		}
		if set.email, err = template.New(string(kind) + ".email").Funcs(funcs).Parse(src[1]); err != nil {
			return nil, err
		}
		if set.sms, err = template.New(string(kind) + ".sms").Funcs(funcs).Parse(src[2]); err != nil {
			return nil, err
		}
		t.byKind[kind] = set
	}
	return t, nil
}

func (t *Templates) Render(kind Kind, data TemplateData) (Rendered, error) {
	set, ok := t.byKind[kind]
	if !ok {
		return Rendered{}, fmt.Errorf("no template for notice kind %q", kind)
	}
	data.Start = data.Start.In(t.loc)
	data.End = data.End.In(t.loc)

	var out Rendered
	var err error
	if out.Subject, err = execute(set.subject, data); err != nil {
		return Rendered{}, err
	}
	if out.Email, err = execute(set.email, data); err != nil {
		return Rendered{}, err
	}
	if out.SMS, err = execute(set.sms, data); err != nil {
		return Rendered{}, err
	}
	return out, nil
}

func execute(tmpl *template.Template, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
