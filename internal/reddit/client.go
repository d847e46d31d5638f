package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/seancallaway/modbot/internal/config"
)

const (
	DefaultBaseURL  = "https://oauth.reddit.com"
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"

	defaultTimeout = 10 * time.Second
)

// Client is an authenticated Reddit API client scoped to one subreddit.
type Client struct {
	base      string
	http      *http.Client
	subreddit string
}

// userAgentTransport sets the User-Agent header Reddit requires on every request.
type userAgentTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.ua)
	return t.base.RoundTrip(req)
}

// passwordSource re-runs the password grant whenever a token is needed.
// Reddit does not issue refresh tokens for this grant.
type passwordSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	username string
	password string
}

func (s *passwordSource) Token() (*oauth2.Token, error) {
	return s.conf.PasswordCredentialsToken(s.ctx, s.username, s.password)
}

// New authenticates as the configured script app and returns a Client for
// subreddit. Credentials are exchanged once here so bad credentials fail
// fast.
func New(ctx context.Context, cfg config.RedditConfig, subreddit string) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret(),
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	base := &http.Client{
		Timeout:   defaultTimeout,
		Transport: &userAgentTransport{base: http.DefaultTransport, ua: cfg.UserAgent},
	}
	// The token source outlives this call, so it must not inherit cancellation.
	authCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, base)

	src := &passwordSource{
		ctx:      authCtx,
		conf:     conf,
		username: cfg.Username,
		password: cfg.Password(),
	}
	tok, err := src.Token()
	if err != nil {
		return nil, &DataError{Op: "authenticate", Err: err}
	}

	hc := oauth2.NewClient(authCtx, oauth2.ReuseTokenSource(tok, src))
	hc.Timeout = defaultTimeout

	return newClient(baseURL, hc, subreddit), nil
}

func newClient(baseURL string, hc *http.Client, subreddit string) *Client {
	return &Client{
		base:      strings.TrimRight(baseURL, "/"),
		http:      hc,
		subreddit: subreddit,
	}
}

// Subreddit returns the monitored community name.
func (c *Client) Subreddit() string { return c.subreddit }

// CheckAccess verifies that the subreddit exists and is readable with the
// client's credentials.
func (c *Client) CheckAccess(ctx context.Context) error {
	var about struct {
		Kind string `json:"kind"`
		Data struct {
			DisplayName     string `json:"display_name"`
			UserIsModerator bool   `json:"user_is_moderator"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "about", "/r/"+c.subreddit+"/about", nil, &about); err != nil {
		return err
	}
	if about.Kind != "t5" {
		return &DataError{Op: "about", Err: fmt.Errorf("unexpected kind %q for r/%s", about.Kind, c.subreddit)}
	}
	if !about.Data.UserIsModerator {
		return &DataError{Op: "about", Err: fmt.Errorf("account is not a moderator of r/%s", c.subreddit)}
	}
	return nil
}

// getJSON performs a GET to path and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &DataError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &DataError{Op: op, Err: fmt.Errorf("http get: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &DataError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DataError{Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
