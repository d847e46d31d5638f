package config

import "strings"

// Error reports an unusable configuration. It is fatal at startup.
type Error struct {
	// Problems lists every validation failure found.
	Problems []string

	// Err is an underlying cause, such as a failed subreddit access check.
	Err error
}

func (e *Error) add(p string) { e.Problems = append(e.Problems, p) }

func (e *Error) Error() string {
	parts := append([]string(nil), e.Problems...)
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return "config: " + strings.Join(parts, "; ")
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns err as a configuration error with a leading problem statement.
func Wrap(problem string, err error) *Error {
	return &Error{Problems: []string{problem}, Err: err}
}
