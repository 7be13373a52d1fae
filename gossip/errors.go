package gossip

import "fmt"

// ErrorKind distinguishes the protocol-level parse failures the codec can
// raise, mirroring the teacher's errCode/errResp pattern in eth/handler.go.
type ErrorKind string

const (
	KindMissingActionKey      ErrorKind = "MissingActionKey"
	KindUnknownAction         ErrorKind = "UnknownAction"
	KindDeserializationFailed ErrorKind = "DeserializationFailed"
	KindLimitExceeded         ErrorKind = "LimitExceeded"
)

// ProtocolError is the error type returned by Codec.Unmarshal/FromObject/ToObject.
type ProtocolError struct {
	Kind   ErrorKind
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func errMissingActionKey(key string) error {
	return &ProtocolError{Kind: KindMissingActionKey, Detail: fmt.Sprintf("field %q absent", key)}
}

func errUnknownAction(s string) error {
	return &ProtocolError{Kind: KindUnknownAction, Detail: s}
}

func errDeserializationFailed(field string, cause error) error {
	detail := field
	if cause != nil {
		detail = fmt.Sprintf("%s: %v", field, cause)
	}
	return &ProtocolError{Kind: KindDeserializationFailed, Detail: detail}
}

func errLimitExceeded(n, max int) error {
	return &ProtocolError{Kind: KindLimitExceeded, Detail: fmt.Sprintf("%d entries exceeds limit of %d", n, max)}
}

// IsKind reports whether err is a *ProtocolError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	pe, ok := err.(*ProtocolError)
	return ok && pe.Kind == kind
}
