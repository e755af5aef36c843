package lighting

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failed lighting host call.
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeNotConnected
	CodeNoControl
	CodeIncompatibleProtocol
	CodeInvalidArguments
)

// String returns a human-readable name for the code.
func (c ErrorCode) String() string {
	switch c {
	case CodeNotConnected:
		return "not_connected"
	case CodeNoControl:
		return "no_control"
	case CodeIncompatibleProtocol:
		return "incompatible_protocol"
	case CodeInvalidArguments:
		return "invalid_arguments"
	default:
		return "unknown"
	}
}

// TransportError is returned by Host implementations when a call fails.
type TransportError struct {
	Op     string
	Device DeviceID
	Code   ErrorCode
	Err    error
}

func (e *TransportError) Error() string {
	msg := e.Op + ": " + e.Code.String()
	if e.Device != "" {
		msg = fmt.Sprintf("%s (device %s): %s", e.Op, e.Device, e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError builds a TransportError for op.
func NewTransportError(op string, code ErrorCode, err error) *TransportError {
	return &TransportError{Op: op, Code: code, Err: err}
}

// Code extracts the ErrorCode from err, or CodeUnknown.
func Code(err error) ErrorCode {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeUnknown
}

// IsNotConnected reports whether err means the host session is not ready yet.
func IsNotConnected(err error) bool {
	return err != nil && Code(err) == CodeNotConnected
}
