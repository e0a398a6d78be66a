package protocol

import (
	"errors"
	"fmt"
)

// Field names reported in errors.
const (
	FieldKind        = "kind"
	FieldTTL         = "ttl"
	FieldTimestamp   = "timestamp"
	FieldReserved    = "reserved"
	FieldNameLen     = "name_len"
	FieldSenderID    = "sender_id"
	FieldSenderName  = "sender_name"
	FieldMsgFlag     = "msg_flag"
	FieldInnerLen    = "inner_len"
	FieldRecipientID = "recipient_id"
	FieldInner       = "inner"
	FieldFlags       = "flags"
	FieldUID         = "uid"
	FieldContent     = "content"
)

var (
	ErrTruncated      = errors.New("protocol: truncated packet")
	ErrInnerMalformed = errors.New("protocol: malformed inner message")
	ErrFieldTooLong   = errors.New("protocol: field too long")
)

// Reason classifies a DecodeError.
type Reason uint8

const (
	Truncated      Reason = iota + 1 // buffer shorter than a field demands
	InnerMalformed                   // outer packet parsed, inner envelope did not
)

func (r Reason) String() string {
	switch r {
	case Truncated:
		return "truncated"
	case InnerMalformed:
		return "inner malformed"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// DecodeError describes why a single buffer could not be decoded. It is
// always local to that buffer.
type DecodeError struct {
	Reason Reason
	Field  string // field being read; inner fields are prefixed with "inner."
	Need   int    // bytes the field required (Truncated only)
	Have   int    // bytes that remained (Truncated only)
	Cause  error  // inner failure (InnerMalformed only), not unwrapped
	Raw    []byte // copy of the inner envelope (InnerMalformed only)
}

func (e *DecodeError) Error() string {
	switch e.Reason {
	case Truncated:
		return fmt.Sprintf("protocol: truncated at %s: need %d bytes, have %d", e.Field, e.Need, e.Have)
	case InnerMalformed:
		return fmt.Sprintf("protocol: malformed inner message (%d bytes): %v", len(e.Raw), e.Cause)
	default:
		return fmt.Sprintf("protocol: decode %s: %s", e.Field, e.Reason)
	}
}

// Is matches ErrTruncated or ErrInnerMalformed according to Reason.
// DecodeError has no Unwrap, so errors.Is sees the outer Reason alone; the
// inner failure is inspected through Cause.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrTruncated:
		return e.Reason == Truncated
	case ErrInnerMalformed:
		return e.Reason == InnerMalformed
	}
	return false
}


// EncodeError reports a caller-supplied value that does not fit its length
// prefix. The encoder never truncates.
type EncodeError struct {
	Field string
	Max   int
	Len   int
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("protocol: %s is %d bytes, max %d", e.Field, e.Len, e.Max)
}

func (e *EncodeError) Is(target error) bool { return target == ErrFieldTooLong }
