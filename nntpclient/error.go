package nntpclient

import (
	"fmt"
	"strings"

	"github.com/fenwick-labs/classictext/internal/textline"
	"github.com/fenwick-labs/classictext/nntp"
)

// NNTPError represents an NNTP protocol error: a non-2xx/3xx reply the
// server sent in response to a command.
type NNTPError struct {
	Code    nntp.ReplyCode
	Message string
}

func (e *NNTPError) Error() string {
	return fmt.Sprintf("nntp: %d %s", e.Code, e.Message)
}

// Temporary reports whether the error represents a transient failure (4xx).
func (e *NNTPError) Temporary() bool {
	return e.Code.IsTransient()
}

// replyToError converts a textline.Reply to an *NNTPError.
func replyToError(reply textline.Reply) *NNTPError {
	return &NNTPError{
		Code:    nntp.ReplyCode(reply.Code),
		Message: strings.Join(reply.Lines, "\n"),
	}
}
