package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"boxoffice/internal/logger"
)

// EmailSender delivers a single rendered message.
type EmailSender interface {
	Send(to, subject, body string) error
}

// Notifier renders templated messages and dispatches them asynchronously.
// Delivery is best effort: failures are logged and never reach the caller,
// so a booking succeeds whether or not its confirmation arrives.
type Notifier struct {
	Mailer     EmailSender
	Logger     *logger.Logger
	SubjectTag string
	templates  map[string]*template.Template
}

var templateBodies = map[string]string{
	"booking_confirmation": `Dear {{.name}},

Your booking is confirmed.

Booking reference: {{.booking_ref}}
Tickets: {{.num_tickets}}
Total cost: {{printf "%.2f" .total_cost}}

Please quote your booking reference at the box office.
`,
	"confirm_account": `Dear {{.name}},

Welcome! To confirm your account, use the token below:

{{.token}}
`,
	"reset_password": `Dear {{.name}},

To reset your password, use the token below:

{{.token}}

If you did not request a password reset, ignore this message.
`,
}

func NewNotifier(mailer EmailSender, log *logger.Logger, subjectTag string) *Notifier {
	templates := make(map[string]*template.Template, len(templateBodies))
	for key, body := range templateBodies {
		templates[key] = template.Must(template.New(key).Parse(body))
	}
	return &Notifier{Mailer: mailer, Logger: log, SubjectTag: subjectTag, templates: templates}
}

// Send renders the template and dispatches the message in the background.
func (n *Notifier) Send(toEmail, subject, templateKey string, data map[string]interface{}) {
	tmpl, ok := n.templates[templateKey]
	if !ok {
		n.Logger.Error("MAIL", fmt.Sprintf("unknown template %q", templateKey))
		return
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		n.Logger.Error("MAIL", fmt.Sprintf("failed to render %q: %v", templateKey, err))
		return
	}

	fullSubject := subject
	if n.SubjectTag != "" {
		fullSubject = n.SubjectTag + " " + subject
	}

	go func() {
		if err := n.Mailer.Send(toEmail, fullSubject, body.String()); err != nil {
			n.Logger.Error("MAIL", fmt.Sprintf("failed to send %q to %s: %v", templateKey, toEmail, err))
			return
		}
		n.Logger.LogMail(toEmail, fullSubject, "sent")
	}()
}
