package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/seancallaway/modbot/internal/config"
)

// Message is one alert to deliver.
type Message struct {
	ID     string    `json:"id"`
	Signal string    `json:"signal"`
	Count  int       `json:"count"`
	Text   string    `json:"message"`
	SentAt time.Time `json:"sent_at"`
}

// Notifier sends a Message. A nil error means the target accepted it.
type Notifier interface {
	Send(ctx context.Context, m Message) error
}

// DeliveryError reports a message the target did not accept.
type DeliveryError struct {
	Target string // webhook type
	Status int    // HTTP status, 0 if no response was read
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("notifier: %s: HTTP %d: %v", e.Target, e.Status, e.Err)
	}
	return fmt.Sprintf("notifier: %s: %v", e.Target, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// New builds the Notifier described by cfg.
func New(cfg config.WebhookConfig) (Notifier, error) {
	switch cfg.Type {
	case "log":
		return Log{}, nil
	case "discord", "slack", "teams", "http":
	default:
		return nil, fmt.Errorf("notifier: unknown webhook type %q", cfg.Type)
	}
	url := cfg.URL()
	if url == "" {
		return nil, fmt.Errorf("notifier: %s webhook has no url", cfg.Type)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultWebhookTimeout
	}
	w := &Webhook{
		kind:   cfg.Type,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return w, nil
}

// Log is the stub notifier: it writes the message to the log and always succeeds.
type Log struct{}

func (Log) Send(_ context.Context, m Message) error {
	log.Info().Str("signal", m.Signal).Int("count", m.Count).Str("id", m.ID).
		Msg("notifier: " + m.Text)
	return nil
}
