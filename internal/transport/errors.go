package transport

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Error is a normalized transport failure. Status is 0 when the server
// was never reached.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call could succeed: the
// network failed, or the server answered with 429 or a 5xx status.
func (e *Error) Retryable() bool {
	return e.Status == 0 ||
		e.Status == http.StatusTooManyRequests ||
		e.Status >= 500
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	te, ok := AsError(err)
	return ok && te.Status == http.StatusUnauthorized
}

// newStatusError builds an Error from a non-2xx response, taking the
// message from the server's structured error body when present.
func newStatusError(status int, body []byte) *Error {
	return &Error{
		Status:  status,
		Message: ErrorMessage(body, status),
	}
}

// ErrorMessage extracts a user-facing message from an error body of the
// form {"message": "..."} or {"errors": {"field": ["..."]}}. It falls
// back to a generic message for the status.
func ErrorMessage(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "message"); msg.Type == gjson.String && msg.Str != "" {
			return msg.Str
		}
		if msg := firstFieldError(gjson.GetBytes(body, "errors")); msg != "" {
			return msg
		}
		if first := gjson.GetBytes(body, "error"); first.Type == gjson.String && first.Str != "" {
			return first.Str
		}
	}

	text := http.StatusText(status)
	if text == "" {
		text = "unexpected response"
	}
	return fmt.Sprintf("request failed: %s", text)
}

// firstFieldError returns the first message of a validation error map
// such as {"email": ["The email field is required."]}.
func firstFieldError(errs gjson.Result) string {
	if !errs.IsObject() {
		return ""
	}
	msg := ""
	errs.ForEach(func(_, v gjson.Result) bool {
		if v.IsArray() {
			msg = v.Get("0").String()
		} else {
			msg = v.String()
		}
		return msg == ""
	})
	return msg
}
