package telnet

import "fmt"

// InvalidOptionError reports a handler registration that violates the
// negotiator's registration contract (spec.md §4.3 "Registration contract").
type InvalidOptionError struct {
	Code   OptionCode
	Reason string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("telnet: invalid option %s: %s", e.Code, e.Reason)
}
