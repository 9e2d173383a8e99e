package bot

import (
	"errors"
	"fmt"
)

// The command core distinguishes user guidance from real failures: guidance
// (bad arguments, missing privileges, unmet preconditions) is answered with a
// reply and never logged as an error; transport and persistence failures are
// logged and answered with a generic failure reply.

// usageError carries the reply shown when a command's arguments don't parse.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return "usage: " + e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

var (
	// errUnauthorized: the acting identity is not in the admin set.
	errUnauthorized = errors.New("admins only")

	// errNoChannel: a publish-class command ran before /setchannel.
	errNoChannel = errors.New("channel not configured")

	// errNothingToPin: /pin_last before any successful publish.
	errNothingToPin = errors.New("nothing to pin")
)
