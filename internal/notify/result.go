// Package notify implements the dual-channel status notification
// dispatcher.  Email and SMS are independent at-most-once delivery
// attempts: each channel's outcome is observable on its own, and no
// failure here ever propagates as an error to the caller, whose stage
// change is already committed by the time dispatch starts.
package notify

// ErrorKind classifies where a channel attempt failed.
type ErrorKind string

const (
	// KindTransport covers failures before a provider response existed
	// (dial errors, timeouts, request building).
	KindTransport ErrorKind = "transport"
	// KindProvider covers non-success responses from the provider.
	KindProvider ErrorKind = "provider"
)

// ChannelError is the failure arm of a channel send.  Detail carries the
// provider's response body verbatim; it is surfaced to operators for
// debugging and must not be summarized away.
type ChannelError struct {
	Kind    ErrorKind
	Message string
	Detail  string
}

func (e *ChannelError) Error() string { return e.Message }

// SendResult is the tagged outcome of a single channel attempt: either
// MessageID is set and Err is nil, or Err describes the failure.
type SendResult struct {
	MessageID string
	Err       *ChannelError
}

// OK reports whether the attempt succeeded.
func (r SendResult) OK() bool { return r.Err == nil }

// Result aggregates both channel outcomes for one status-change event.
// A channel that was skipped reports sent=false; SMS skips additionally
// carry the reason in SMSError so an operator can see why nothing went
// out.  Debug fields hold raw provider payloads when a send failed.
type Result struct {
	EmailSent  bool    `json:"email_sent"`
	EmailError *string `json:"email_error,omitempty"`
	EmailDebug *string `json:"email_debug,omitempty"`
	SMSSent    bool    `json:"sms_sent"`
	SMSError   *string `json:"sms_error,omitempty"`
	SMSDebug   *string `json:"sms_debug,omitempty"`
}

func strptr(s string) *string { return &s }
