// Package reddit counts pending moderation work on a subreddit.
//
// New authenticates with the OAuth2 password grant used by Reddit "script"
// apps (golang.org/x/oauth2) and returns a Client whose *http.Client injects
// the bearer token and User-Agent on every request. Tokens are re-obtained
// with the same grant when they expire.
//
// Two counters are provided:
//   - Modqueue: walks /r/{sub}/about/modqueue page by page (100 items per
//     page, following data.after) and counts every child. The listing has
//     no total, so the whole sequence is consumed.
//   - Modmail: reads /api/mod/conversations/unread/count and returns the
//     configured key (default "new").
//
// Every failure is returned as a *DataError so callers can log it and skip
// the cycle.
package reddit
