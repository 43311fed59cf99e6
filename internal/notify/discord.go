package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/domain"
)

// Discord posts alert text to a Discord webhook. Delivery failures are
// classified as delivery errors; callers log them and move on, they are
// never retried.
type Discord struct {
	webhookURL string
	client     *http.Client
	log        zerolog.Logger
}

// NewDiscord creates a new Discord webhook notifier
func NewDiscord(webhookURL string, timeout time.Duration, log zerolog.Logger) *Discord {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Discord{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		log:        log.With().Str("client", "discord").Logger(),
	}
}

type webhookPayload struct {
	Content string `json:"content"`
}

// Send posts one message to the webhook
func (d *Discord) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(webhookPayload{Content: text})
	if err != nil {
		return domain.E(domain.KindDelivery, "discord.send", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return domain.E(domain.KindDelivery, "discord.send", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return domain.E(domain.KindDelivery, "discord.send", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.Errorf(domain.KindDelivery, "discord.send", "webhook returned %s", resp.Status)
	}

	d.log.Debug().Int("bytes", len(text)).Msg("Alert delivered")
	return nil
}

// SendBestEffort sends and only logs a failure. Used for failure alerts
// and other places where losing the message is acceptable.
func (d *Discord) SendBestEffort(ctx context.Context, format string, args ...interface{}) {
	if err := d.Send(ctx, fmt.Sprintf(format, args...)); err != nil {
		d.log.Error().Err(err).Msg("Best-effort alert dropped")
	}
}
