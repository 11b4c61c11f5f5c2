package notify

import (
	"context"
	"fmt"
	"net/http"
)

const (
	resendEndpoint = "https://api.resend.com/emails"
	// DefaultEmailFrom is the sender address of alert e-mails.
	DefaultEmailFrom = "OddsScanner Alertas <alertas@oddsscanner.com.br>"
)

// RecipientLister lists the e-mail addresses that receive alerts.
type RecipientLister interface {
	ListEmails(ctx context.Context) ([]string, error)
}

// ResendSender e-mails alerts to every subscriber through the Resend API.
type ResendSender struct {
	endpoint   string
	apiKey     string
	from       string
	recipients RecipientLister
	client     *http.Client
}

// NewResendSender creates a ResendSender. An empty from uses DefaultEmailFrom.
func NewResendSender(apiKey, from string, recipients RecipientLister) *ResendSender {
	if from == "" {
		from = DefaultEmailFrom
	}
	return &ResendSender{
		endpoint:   resendEndpoint,
		apiKey:     apiKey,
		from:       from,
		recipients: recipients,
		client:     &http.Client{Timeout: DefaultSendTimeout},
	}
}

type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send e-mails the rendered HTML. It is a no-op without subscribers.
func (r *ResendSender) Send(ctx context.Context, msg Message) error {
	to, err := r.recipients.ListEmails(ctx)
	if err != nil {
		return fmt.Errorf("resend: list recipients: %w", err)
	}
	if len(to) == 0 {
		return nil
	}

	subject := msg.Subject
	if subject == "" {
		subject = msg.Title
	}
	html := msg.HTML
	if html == "" {
		html = "<p>" + msg.Body + "</p>"
	}

	payload := resendPayload{From: r.from, To: to, Subject: subject, HTML: html}
	if err := postJSON(ctx, r.client, r.endpoint, "Bearer "+r.apiKey, payload); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (r *ResendSender) Name() string {
	return "resend"
}
