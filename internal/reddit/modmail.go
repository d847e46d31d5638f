package reddit

import (
	"context"
	"encoding/json"
	"fmt"
)

// Modmail reads one field of the modmail unread summary.
type Modmail struct {
	c   *Client
	key string
}

// Modmail returns a counter for the modmail unread summary field key
// ("new", "inprogress", "mod", ...).
func (c *Client) Modmail(key string) *Modmail { return &Modmail{c: c, key: key} }

// Count returns the unread count under the configured key. A summary that
// lacks the key is a DataError wrapping ErrMissingField.
func (m *Modmail) Count(ctx context.Context) (int, error) {
	var summary map[string]json.RawMessage
	if err := m.c.getJSON(ctx, "modmail", "/api/mod/conversations/unread/count", nil, &summary); err != nil {
		return 0, err
	}

	raw, ok := summary[m.key]
	if !ok {
		return 0, &DataError{Op: "modmail", Err: fmt.Errorf("%w %q in unread summary", ErrMissingField, m.key)}
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, &DataError{Op: "modmail", Err: fmt.Errorf("field %q: %w", m.key, err)}
	}
	if n < 0 {
		return 0, &DataError{Op: "modmail", Err: fmt.Errorf("field %q is negative: %d", m.key, n)}
	}
	return n, nil
}
