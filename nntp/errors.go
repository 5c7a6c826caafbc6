package nntp

import (
	"errors"
	"fmt"
)

// ErrMalformed is the sentinel every parse failure in this module wraps,
// so callers can test with errors.Is(err, nntp.ErrMalformed) regardless of
// which parser produced it.
var ErrMalformed = errors.New("nntp: malformed reply")

// MalformedError reports a reply or listing line that did not match the
// shape its parser expected (RFC 977 §2.4.2's two-pass parsers: skip the
// code token, then read the remaining fields positionally).
type MalformedError struct {
	Context string // e.g. "GROUP reply", "LIST entry", "article pointer".
	Line    string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("nntp: malformed %s: %q", e.Context, e.Line)
}

// Unwrap lets errors.Is(err, ErrMalformed) succeed.
func (e *MalformedError) Unwrap() error {
	return ErrMalformed
}
