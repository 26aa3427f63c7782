// Package capability defines the closed error taxonomy shared by every
// backend client (completion, transcription, synthesis, image generation,
// text extraction). Each failure kind maps to exactly one stable user-facing
// message, so the router never has to guess which stage failed or invent
// wording at the call site.
package capability

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a capability failure.
type Kind int

const (
	// KindNetwork covers connection, DNS and timeout failures where the
	// backend was never reached or never answered.
	KindNetwork Kind = iota

	// KindHTTP means the backend was reachable but rejected or failed the
	// request with a non-2xx status.
	KindHTTP

	// KindMalformed means the backend answered 200 but the body did not have
	// the expected shape.
	KindMalformed

	// KindUnavailable means the backend explicitly reported it is not ready
	// yet (model still loading).
	KindUnavailable

	// KindUnknownSelector means the caller picked a model or voice id that is
	// not in the registry. Selection commands report this as a boolean; it
	// only appears as an error when a stale id reaches a client.
	KindUnknownSelector
)

// String returns the kind name for logs.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindMalformed:
		return "malformed_response"
	case KindUnavailable:
		return "service_unavailable"
	case KindUnknownSelector:
		return "unknown_selector"
	default:
		return "unknown"
	}
}

// Error is a classified capability failure. Status is only set for KindHTTP.
type Error struct {
	Kind   Kind
	Op     string // e.g. "completion", "transcription"
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.Status)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NewNetwork wraps a transport-level failure (includes context deadlines).
func NewNetwork(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// NewMalformed wraps an unexpected-shape failure.
func NewMalformed(op string, err error) *Error {
	return &Error{Kind: KindMalformed, Op: op, Err: err}
}

// NewUnavailable marks a backend that reported it is still starting.
func NewUnavailable(op string, err error) *Error {
	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}

// NewUnknownSelector marks an unregistered model/voice id.
func NewUnknownSelector(op, id string) *Error {
	return &Error{Kind: KindUnknownSelector, Op: op, Err: fmt.Errorf("id %q not registered", id)}
}

// FromStatus classifies a non-2xx HTTP status. 503 is the conventional
// "model still loading" answer of the speech/image backends.
func FromStatus(op string, status int, body string) *Error {
	if status == http.StatusServiceUnavailable {
		return &Error{Kind: KindUnavailable, Op: op, Status: status, Err: fmt.Errorf("backend not ready: %s", body)}
	}
	return &Error{Kind: KindHTTP, Op: op, Status: status, Err: fmt.Errorf("backend error: %s", body)}
}

// KindOf extracts the kind from any error. Unclassified errors count
// as network failures.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindNetwork
}

// userMessages maps every kind to one distinct, stable reply. The router
// sends these verbatim; tests pin them down.
var userMessages = map[Kind]string{
	KindNetwork:         "Сервис сейчас недоступен, попробуй еще раз через минуту.",
	KindHTTP:            "Сервис отклонил запрос, попробуй позже.",
	KindMalformed:       "Сервис вернул неожиданный ответ, попробуй еще раз.",
	KindUnavailable:     "Сервис еще запускается, повтори запрос чуть позже.",
	KindUnknownSelector: "Такая модель или голос недоступны. Список — /models и /voices.",
}

// UserMessage returns the user-safe message for a failure. Never empty.
func UserMessage(err error) string {
	return userMessages[KindOf(err)]
}
