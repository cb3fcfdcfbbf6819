package errcode

import "errors"

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK          Code = "ok"
	Busy        Code = "busy"
	Unsupported Code = "unsupported"

	// Rejected at the public boundary before touching hardware
	// (empty SSID, nil password, out-of-range value).
	Validation Code = "validation"
	// Pin key did not resolve to a port/pin designator.
	UnsupportedPin Code = "unsupported_pin"
	// Coprocessor failed to answer a command.
	DeviceNotResponding Code = "device_not_responding"
	// Coprocessor answered with a non-success status.
	OperationFailed Code = "operation_failed"
	// Register access or ioctl returned non-zero.
	DriverIO Code = "driver_io"

	InvalidTopic   Code = "invalid_topic"
	InvalidPayload Code = "invalid_payload"

	Error Code = "error" // generic fallback
)

// E is the wrapper used when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.X) match a wrapped code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New builds an *E without a cause.
func New(c Code, op, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}

// Wrap builds an *E around a cause. A nil cause yields nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}
