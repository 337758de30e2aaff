package sync

import "fmt"

// ErrorKind classifies aggregator API failures. Each kind gets distinct
// handling: re-auth marks the account as needing user attention, transient
// errors are silently retried on the next scheduled attempt, and unknown
// errors are retried but alerted, since they may indicate an integration
// break.
type ErrorKind int

const (
	KindReauthRequired ErrorKind = iota
	KindTransient
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindReauthRequired:
		return "reauth_required"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error wraps an aggregator failure with its kind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("aggregator error (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
