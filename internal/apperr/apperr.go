// Package apperr defines the error taxonomy shared by the workspace packages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an error for propagation and user-visible reporting.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindDuplicateName    Kind = "duplicate_name"
	KindPermissionDenied Kind = "permission_denied"
	KindConflict         Kind = "conflict"
	KindValidation       Kind = "validation"
	KindNetwork          Kind = "network"
	KindRemote           Kind = "remote"
)

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrDuplicateName    = &Error{Kind: KindDuplicateName}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrNetwork          = &Error{Kind: KindNetwork}
	ErrRemote           = &Error{Kind: KindRemote}
)

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(string(e.Kind))
	}
	if e.Message != "" && e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error carrying the same Kind.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e == t || (t.Kind != "" && e.Kind == t.Kind)
}

// New creates a classified error.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// FromStatus maps a non-2xx backend status to a classified error.
// message is the backend's "error"/"detail" text, possibly empty.
func FromStatus(op string, status int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("request failed (%d)", status)
	}
	kind := KindRemote
	switch status {
	case http.StatusBadRequest:
		kind = KindValidation
		if strings.Contains(strings.ToLower(message), "already exists") {
			kind = KindDuplicateName
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindPermissionDenied
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusConflict:
		kind = KindConflict
	}
	return &Error{Kind: kind, Op: op, Message: message}
}

// HTTPStatus is the status the gateway answers with for err.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicateName, KindConflict:
		return http.StatusConflict
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNetwork, KindRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage renders err as text suitable for showing to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong. Please try again."
	}
	switch e.Kind {
	case KindNotFound:
		if e.Message != "" {
			return e.Message
		}
		return "Not found."
	case KindDuplicateName:
		return "A folder with that name already exists."
	case KindPermissionDenied:
		return "Insufficient permission for this action."
	case KindConflict:
		if e.Message != "" {
			return e.Message
		}
		return "The request conflicts with the current state."
	case KindValidation:
		if e.Message != "" {
			return e.Message
		}
		return "Invalid input."
	case KindNetwork:
		return "Network error. Check your connection and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
