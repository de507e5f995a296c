package engine

import (
	"encoding/json"
	"fmt"
)

// Status tags the outcome of an engine operation.
type Status string

const (
	StatusOK       Status = "ok"
	StatusNotFound Status = "not_found"
	StatusInvalid  Status = "invalid_argument"
	StatusUpstream Status = "upstream_error"
)

// Result is returned by every public operation. Callers branch on Status;
// Payload is set only when Status is StatusOK.
type Result struct {
	Status  Status
	Payload any
	Message string
	Details any
}

// OK wraps a successful payload.
func OK(payload any) Result {
	return Result{Status: StatusOK, Payload: payload}
}

// NotFound reports that the requested data does not exist.
func NotFound(format string, args ...any) Result {
	return Result{Status: StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

// Invalid reports a rejected argument. details may be nil.
func Invalid(msg string, details any) Result {
	return Result{Status: StatusInvalid, Message: msg, Details: details}
}

// Upstream reports a failed store call, keeping the underlying message.
func Upstream(action string, err error) Result {
	return Result{Status: StatusUpstream, Message: fmt.Sprintf("Failed to %s: %v", action, err)}
}

// IsOK reports whether the operation succeeded.
func (r Result) IsOK() bool { return r.Status == StatusOK }

// MarshalJSON renders an ok result as its payload and every other status
// as a small status object.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Status == StatusOK {
		return json.Marshal(r.Payload)
	}
	out := struct {
		Status  Status `json:"status"`
		Message string `json:"message,omitempty"`
		Error   string `json:"error,omitempty"`
		Details any    `json:"details,omitempty"`
	}{Status: r.Status, Details: r.Details}
	if r.Status == StatusNotFound {
		out.Message = r.Message
	} else {
		out.Error = r.Message
	}
	return json.Marshal(out)
}
