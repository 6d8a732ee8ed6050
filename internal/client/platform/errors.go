package platform

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind groups API failures by how the UI should react.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAuth failures are shown inline on the auth form.
	KindAuth
	// KindStorage failures need an actionable alert about the bucket policy.
	KindStorage
	KindForbidden
	KindNotFound
	KindValidation
	KindConflict
	// KindTransient failures are logged and retried later.
	KindTransient
)

var kindNames = [...]string{"unknown", "auth", "storage", "forbidden", "not_found", "validation", "conflict", "transient"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

var ErrNoSession = errors.New("platform: not signed in")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform: %d %s", e.Status, e.Message)
}

func (e *APIError) Kind() Kind {
	switch {
	case e.Status == http.StatusUnauthorized:
		return KindAuth
	case e.Status == http.StatusForbidden && strings.Contains(e.Message, "storage"):
		return KindStorage
	case e.Status == http.StatusForbidden:
		return KindForbidden
	case e.Status == http.StatusNotFound:
		return KindNotFound
	case e.Status == http.StatusBadRequest:
		return KindValidation
	case e.Status == http.StatusConflict:
		return KindConflict
	case e.Status >= http.StatusInternalServerError, e.Status == http.StatusTooManyRequests:
		return KindTransient
	}
	return KindUnknown
}

// KindOf classifies err. Transport failures are transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}
	if errors.Is(err, ErrNoSession) {
		return KindAuth
	}
	return KindTransient
}
