package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Webhook posts messages to a chat webhook URL.
type Webhook struct {
	kind    string
	url     string
	client  *http.Client
	limiter *rate.Limiter // nil means unthrottled
}

// Send posts m once. When the rate limiter is exhausted Send waits for a
// token or for ctx to end.
func (w *Webhook) Send(ctx context.Context, m Message) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return &DeliveryError{Target: w.kind, Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	body, err := w.payload(m)
	if err != nil {
		return &DeliveryError{Target: w.kind, Err: fmt.Errorf("encode payload: %w", err)}
	}
	if err := w.post(ctx, body); err != nil {
		return err
	}
	log.Debug().Str("type", w.kind).Str("signal", m.Signal).Str("id", m.ID).
		Msg("notifier: webhook delivered")
	return nil
}

func (w *Webhook) payload(m Message) ([]byte, error) {
	switch w.kind {
	case "discord":
		return json.Marshal(map[string]any{
			"content":          m.Text,
			"allowed_mentions": map[string]any{"parse": []string{}},
		})
	case "slack":
		return json.Marshal(map[string]string{"text": m.Text})
	case "teams":
		return json.Marshal(map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": "FFAB40",
			"summary":    m.Signal,
			"title":      fmt.Sprintf("modbot: %s", m.Signal),
			"text":       m.Text,
		})
	default:
		return json.Marshal(m)
	}
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Target: w.kind, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return &DeliveryError{Target: w.kind, Err: fmt.Errorf("http post: %w", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("webhook rejected message")
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			err = fmt.Errorf("webhook rate limited, retry after %ss", ra)
		}
		return &DeliveryError{Target: w.kind, Status: resp.StatusCode, Err: err}
	}
	return nil
}
