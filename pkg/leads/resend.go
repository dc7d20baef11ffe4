package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultResendEndpoint is the Resend e-mail API.
const DefaultResendEndpoint = "https://api.resend.com/emails"

// ResendConfig configures the e-mail notifier.
type ResendConfig struct {
	APIKey    string
	From      string
	To        string
	Endpoint  string
	Timeout   time.Duration
	FromLabel string
}

// ResendNotifier sends lead alerts through the Resend API.
type ResendNotifier struct {
	cfg    ResendConfig
	client *http.Client
	logger *slog.Logger
}

// NewResendNotifier creates a notifier. An incomplete config is allowed; the
// notifier then skips every notification.
func NewResendNotifier(cfg ResendConfig) *ResendNotifier {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultResendEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FromLabel == "" {
		cfg.FromLabel = "Atlas-G Protocol"
	}
	return &ResendNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default().With("component", "leads.notifier"),
	}
}

// Configured reports whether the notifier has an API key, sender and recipient.
func (n *ResendNotifier) Configured() bool {
	return n.cfg.APIKey != "" && n.cfg.From != "" && n.cfg.To != ""
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Notify implements Notifier.
func (n *ResendNotifier) Notify(ctx context.Context, lead Lead) (bool, error) {
	if !n.Configured() {
		n.logger.Warn("notification skipped, resend is not configured", "lead_id", lead.ID)
		return false, nil
	}

	body, err := json.Marshal(resendEmail{
		From:    fmt.Sprintf("%s <%s>", n.cfg.FromLabel, n.cfg.From),
		To:      []string{n.cfg.To},
		Subject: "New Lead: " + nonEmpty(lead.Name, "Unknown"),
		HTML:    renderLead(lead),
	})
	if err != nil {
		return false, &Error{Operation: "notify", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return false, &Error{Operation: "notify", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return false, &Error{Operation: "notify", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, &Error{
			Operation: "notify",
			Cause:     fmt.Errorf("resend returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)),
		}
	}

	n.logger.Info("lead notification sent", "lead_id", lead.ID)
	return true, nil
}

func renderLead(lead Lead) string {
	return fmt.Sprintf(`<h2>New Contact Form Submission</h2>
<p><strong>Time:</strong> %s</p>
<hr>
<p><strong>Name:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
<p><strong>Message:</strong></p>
<blockquote>%s</blockquote>
<hr>
<p><em>ID: %s</em></p>`,
		lead.Timestamp.Format(time.RFC3339),
		html.EscapeString(lead.Name),
		html.EscapeString(lead.Email),
		html.EscapeString(lead.Message),
		html.EscapeString(lead.ID),
	)
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
