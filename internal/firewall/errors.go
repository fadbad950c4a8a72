package firewall

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "permission_denied"
	KindToolUnavailable  ErrorKind = "tool_unavailable"
	KindInvalidAddress   ErrorKind = "invalid_address"
	KindCommandFailed    ErrorKind = "command_failed"
	KindTimeout          ErrorKind = "timeout"
)

// Error is returned by every Firewall operation. Command and Stderr are
// empty when the failure happened before anything was executed.
type Error struct {
	Kind    ErrorKind
	IP      string
	Command string
	Stderr  string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("firewall: ")
	b.WriteString(string(e.Kind))
	if e.IP != "" {
		fmt.Fprintf(&b, " for %s", e.IP)
	}
	if e.Command != "" {
		fmt.Fprintf(&b, " (%s)", e.Command)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, ": %s", strings.TrimSpace(e.Stderr))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether any error in err's chain is a firewall error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var fwErr *Error
	if errors.As(err, &fwErr) {
		return fwErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of the firewall error in err's chain, or "" when there is none.
func KindOf(err error) ErrorKind {
	var fwErr *Error
	if errors.As(err, &fwErr) {
		return fwErr.Kind
	}
	return ""
}

func invalidAddress(ip string, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidAddress, IP: ip, Err: fmt.Errorf(format, args...)}
}
