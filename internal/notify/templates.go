package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io"
	"net/url"
	"sort"
	"strings"
	texttemplate "text/template"

	"github.com/amishk599/jobfeed/internal/filter"
	"github.com/amishk599/jobfeed/internal/model"
)

// JobView is the display form of one job in a notification.
type JobView struct {
	Title          string
	Company        string
	Location       string
	Sector         string
	EmploymentType string
	Salary         string
	Posted         string
	ApplyURL       string
}

// TemplateData is everything a notification template can reference.
type TemplateData struct {
	Cadence        model.Cadence
	Subject        string
	Jobs           []JobView
	Top            JobView
	Remaining      int
	Sectors        string
	UnsubscribeURL string
	ManageURL      string
	ViewMoreURL    string
}

var subjects = map[model.Cadence]string{
	model.CadenceImmediate: "New Job Alert",
	model.CadenceDaily:     "Daily Job Digest",
	model.CadenceWeekly:    "Weekly Job Roundup",
}

const emailFooterHTML = `<hr>
<p><small><a href="{{.UnsubscribeURL}}">Unsubscribe</a> | <a href="{{.ManageURL}}">Manage Preferences</a></small></p>
`

var emailHTML = map[model.Cadence]string{
	model.CadenceImmediate: `<h2>New Job Alert</h2>
<p>Hi there!</p>
<p>We found {{len .Jobs}} new job(s) matching your preferences:</p>
{{range .Jobs}}<div style="border: 1px solid #ddd; padding: 15px; margin: 10px 0; border-radius: 5px;">
  <h3>{{.Title}}</h3>
  <p><strong>Company:</strong> {{.Company}}</p>
  <p><strong>Location:</strong> {{.Location}}</p>
  {{with .Sector}}<p><strong>Sector:</strong> {{.}}</p>{{end}}
  {{with .EmploymentType}}<p><strong>Type:</strong> {{.}}</p>{{end}}
  {{with .Salary}}<p><strong>Salary:</strong> {{.}}</p>{{end}}
  <p><strong>Posted:</strong> {{.Posted}}</p>
  {{with .ApplyURL}}<p><a href="{{.}}">Apply Now</a></p>{{end}}
</div>
{{end}}` + emailFooterHTML,

	model.CadenceDaily: `<h2>Daily Job Digest</h2>
<p>Hi there!</p>
<p>Here's your daily summary of {{len .Jobs}} new job(s){{with .Sectors}} in {{.}}{{end}}:</p>
{{range .Jobs}}<div style="border: 1px solid #ddd; padding: 15px; margin: 10px 0; border-radius: 5px;">
  <h3>{{.Title}}</h3>
  <p><strong>{{.Company}}</strong> - {{.Location}}</p>
  <p>{{.Sector}} | {{.EmploymentType}}</p>
  {{with .ApplyURL}}<p><a href="{{.}}">Apply Now</a></p>{{end}}
</div>
{{end}}` + emailFooterHTML,

	model.CadenceWeekly: `<h2>Weekly Job Roundup</h2>
<p>Hi there!</p>
<p>Here are the {{len .Jobs}} new jobs from this week{{with .Sectors}} in {{.}}{{end}}:</p>
{{range .Jobs}}<div style="border-bottom: 1px solid #eee; padding: 10px 0;">
  <h4>{{.Title}} - {{.Company}}</h4>
  <p>{{.Location}} | {{.Sector}} | {{.EmploymentType}}</p>
  {{with .ApplyURL}}<p><a href="{{.}}">Apply Now</a></p>{{end}}
</div>
{{end}}` + emailFooterHTML,
}

const emailText = `{{.Subject}}

{{range .Jobs}}- {{.Title}} at {{.Company}} ({{.Location}}){{with .Salary}}, {{.}}{{end}}{{with .ApplyURL}}
  Apply: {{.}}{{end}}
{{end}}
Unsubscribe: {{.UnsubscribeURL}}
Manage preferences: {{.ManageURL}}
`

var smsText = map[model.Cadence]string{
	model.CadenceImmediate: `New job alert: {{.Top.Title}} at {{.Top.Company}} in {{.Top.Location}}.{{if gt .Remaining 0}} +{{.Remaining}} more jobs.{{end}} View all: {{.ViewMoreURL}}`,
	model.CadenceDaily:     `Daily job digest: {{len .Jobs}} new jobs today. Top: {{.Top.Title}} at {{.Top.Company}}. View all: {{.ViewMoreURL}}`,
	model.CadenceWeekly:    `Weekly jobs: {{len .Jobs}} new positions this week. Latest: {{.Top.Title}} at {{.Top.Company}}. View all: {{.ViewMoreURL}}`,
}

// Renderer turns batches into messages using per-cadence templates.
type Renderer struct {
	baseURL string
	html    map[model.Cadence]*htmltemplate.Template
	sms     map[model.Cadence]*texttemplate.Template
	text    *texttemplate.Template
}

// NewRenderer parses all templates. baseURL prefixes unsubscribe and manage links.
func NewRenderer(baseURL string) (*Renderer, error) {
	r := &Renderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		html:    make(map[model.Cadence]*htmltemplate.Template),
		sms:     make(map[model.Cadence]*texttemplate.Template),
	}
	for cadence, src := range emailHTML {
		t, err := htmltemplate.New("email-" + string(cadence)).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parsing %s email template: %w", cadence, err)
		}
		r.html[cadence] = t
	}
	for cadence, src := range smsText {
		t, err := texttemplate.New("sms-" + string(cadence)).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parsing %s sms template: %w", cadence, err)
		}
		r.sms[cadence] = t
	}
	t, err := texttemplate.New("email-text").Parse(emailText)
	if err != nil {
		return nil, fmt.Errorf("parsing email text template: %w", err)
	}
	r.text = t
	return r, nil
}

// Render builds the message for b. Email gets an HTML body and a plain-text
// alternative; SMS gets text only.
func (r *Renderer) Render(b model.Batch) (model.Message, error) {
	if len(b.Jobs) == 0 {
		return model.Message{}, fmt.Errorf("rendering empty batch for %s", b.Subscription.ID)
	}
	data := r.data(b)
	msg := model.Message{
		Channel:   b.Channel,
		Recipient: b.Subscription.Recipient(b.Channel),
	}

	switch b.Channel {
	case model.ChannelSMS:
		t, ok := r.sms[b.Template]
		if !ok {
			return msg, fmt.Errorf("no sms template for %q", b.Template)
		}
		text, err := execute(t, data)
		if err != nil {
			return msg, err
		}
		msg.Text = text
	case model.ChannelEmail:
		t, ok := r.html[b.Template]
		if !ok {
			return msg, fmt.Errorf("no email template for %q", b.Template)
		}
		html, err := execute(t, data)
		if err != nil {
			return msg, err
		}
		text, err := execute(r.text, data)
		if err != nil {
			return msg, err
		}
		msg.Subject = data.Subject
		msg.HTML = html
		msg.Text = text
	default:
		return msg, fmt.Errorf("unsupported channel %q", b.Channel)
	}
	return msg, nil
}

// tmpl is satisfied by both html/template and text/template.
type tmpl interface {
	Execute(w io.Writer, data any) error
}

func execute(t tmpl, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) data(b model.Batch) TemplateData {
	token := url.QueryEscape(b.Subscription.UnsubscribeToken)
	d := TemplateData{
		Cadence:        b.Template,
		Subject:        subjects[b.Template],
		Jobs:           make([]JobView, len(b.Jobs)),
		Remaining:      len(b.Jobs) - 1,
		UnsubscribeURL: r.baseURL + "/notifications/unsubscribe?token=" + token,
		ManageURL:      r.baseURL + "/notifications/manage?token=" + token,
		ViewMoreURL:    r.baseURL + "/notifications?token=" + token,
	}

	sectors := make(map[string]bool)
	for i, j := range b.Jobs {
		d.Jobs[i] = view(j)
		if j.Sector != "" {
			sectors[j.Sector] = true
		}
	}
	d.Top = d.Jobs[0]

	names := make([]string, 0, len(sectors))
	for s := range sectors {
		names = append(names, s)
	}
	sort.Strings(names)
	d.Sectors = strings.Join(names, ", ")
	return d
}

func view(j model.CanonicalJob) JobView {
	v := JobView{
		Title:          j.Title,
		Company:        j.Company,
		Location:       j.Location,
		Sector:         j.Sector,
		EmploymentType: j.EmploymentType,
		Salary:         j.SalaryText,
		ApplyURL:       j.ApplicationURL,
	}
	if v.Salary == "" {
		if lo, ok := filter.MinSalary(j.RawPosting); ok {
			v.Salary = fmt.Sprintf("from $%d", lo)
		}
	}
	if v.ApplyURL == "" {
		v.ApplyURL = j.SourceURL
	}
	if !j.PostedAt.IsZero() {
		v.Posted = j.PostedAt.Format("Jan 2, 2006")
	}
	return v
}
