package report

import (
	"context"
	"fmt"

	"github.com/wonny/picker/pkg/config"
	"github.com/wonny/picker/pkg/httputil"
	"github.com/wonny/picker/pkg/logger"
)

// Notifier delivers scan messages to the configured webhook. An empty
// webhook URL disables delivery.
type Notifier struct {
	client *httputil.Client
	url    string
	logger *logger.Logger
}

// NewNotifier creates a new Notifier instance
func NewNotifier(cfg *config.Config, client *httputil.Client, log *logger.Logger) *Notifier {
	return &Notifier{
		client: client,
		url:    cfg.Notify.WebhookURL,
		logger: log.WithField("module", "notify"),
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// webhookPayload is a title/body pair most push gateways accept.
type webhookPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send posts one message to the webhook. Disabled notifiers return nil.
func (n *Notifier) Send(ctx context.Context, title, body string) error {
	if n.url == "" {
		return nil
	}

	resp, err := n.client.PostJSON(ctx, n.url, webhookPayload{Title: title, Body: body})
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.WithField("title", title).Debug("Webhook delivered")
	return nil
}
