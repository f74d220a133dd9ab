package node

import (
	"errors"
	"fmt"
)

// ErrRejected matches every canonicalization rejection via errors.Is.
var ErrRejected = errors.New("candidate rejected")

type Reason uint8

const (
	ReasonTooShort Reason = iota + 1
	ReasonUnsupported
	ReasonDecode
	ReasonMissingField
	ReasonBadPort
	ReasonPlaceholder
	ReasonBadHost
	ReasonLabel
)

func (r Reason) String() string {
	switch r {
	case ReasonTooShort:
		return "too_short"
	case ReasonUnsupported:
		return "unsupported"
	case ReasonDecode:
		return "decode"
	case ReasonMissingField:
		return "missing_field"
	case ReasonBadPort:
		return "bad_port"
	case ReasonPlaceholder:
		return "placeholder"
	case ReasonBadHost:
		return "bad_host"
	case ReasonLabel:
		return "blocked_label"
	}
	return "unknown"
}

type RejectError struct {
	Reason Reason
	Detail string
	Err    error
}

func (e *RejectError) Error() string {
	msg := "rejected (" + e.Reason.String() + ")"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RejectError) Is(target error) bool {
	return target == ErrRejected
}

func (e *RejectError) Unwrap() error {
	return e.Err
}

func reject(r Reason, format string, args ...any) error {
	return &RejectError{Reason: r, Detail: fmt.Sprintf(format, args...)}
}

func rejectErr(r Reason, err error, format string, args ...any) error {
	return &RejectError{Reason: r, Detail: fmt.Sprintf(format, args...), Err: err}
}

// ReasonOf extracts the rejection reason from err, or 0 when err is not a rejection.
func ReasonOf(err error) Reason {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason
	}
	return 0
}
