package reddit

import (
	"errors"
	"fmt"
)

// ErrMissingField is wrapped by DataError when a payload lacks an expected key.
var ErrMissingField = errors.New("missing field")

// DataError reports a failed or malformed read from the Reddit API.
type DataError struct {
	Op     string // "modqueue", "modmail", "about", "authenticate"
	Status int    // HTTP status, 0 if no response was read
	Err    error
}

func (e *DataError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("reddit: %s: HTTP %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("reddit: %s: %v", e.Op, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }
