package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
)

// pageSize is the largest page Reddit serves for listings.
const pageSize = 100

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string            `json:"after"`
		Children []json.RawMessage `json:"children"`
	} `json:"data"`
}

// Modqueue counts the items waiting in the subreddit's moderation queue.
type Modqueue struct {
	c *Client
}

// Modqueue returns a counter for the subreddit's modqueue.
func (c *Client) Modqueue() *Modqueue { return &Modqueue{c: c} }

// Count enumerates every page of the modqueue and returns the number of items.
func (m *Modqueue) Count(ctx context.Context) (int, error) {
	return m.c.countListing(ctx, "modqueue", "/r/"+m.c.subreddit+"/about/modqueue")
}

// countListing follows data.after until the listing is exhausted. A cursor
// seen twice ends the walk so a misbehaving server cannot loop us forever.
func (c *Client) countListing(ctx context.Context, op, path string) (int, error) {
	var (
		total int
		after string
		pages int
		seen  = make(map[string]bool)
	)
	for {
		q := url.Values{
			"limit":    {strconv.Itoa(pageSize)},
			"raw_json": {"1"},
		}
		if after != "" {
			q.Set("after", after)
			q.Set("count", strconv.Itoa(total))
		}

		var page listing
		if err := c.getJSON(ctx, op, path, q, &page); err != nil {
			return 0, err
		}
		if page.Kind != "Listing" {
			return 0, &DataError{Op: op, Err: fmt.Errorf("unexpected kind %q", page.Kind)}
		}
		pages++
		total += len(page.Data.Children)

		next := page.Data.After
		if next == "" || len(page.Data.Children) == 0 {
			break
		}
		if seen[next] {
			log.Warn().Str("op", op).Str("after", next).Msg("reddit: listing cursor repeated, stopping")
			break
		}
		seen[next] = true
		after = next
	}

	log.Debug().Str("op", op).Int("pages", pages).Int("count", total).Msg("reddit: listing counted")
	return total, nil
}
