// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"net/http"
)

// Sentinel errors the services wrap to pick a response status.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrUnavailable  = errors.New("temporarily unavailable")
)

type errorMapping struct {
	target error
	status int
	title  string
	// expose copies err.Error() into the problem detail.
	expose bool
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{ErrValidation, http.StatusBadRequest, "Validation Failed", true},
	{ErrUnauthorized, http.StatusUnauthorized, "Unauthorized", true},
	{ErrForbidden, http.StatusForbidden, "Forbidden", true},
	{ErrUnavailable, http.StatusServiceUnavailable, "Service Unavailable", false},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "Gateway Timeout", false},
}

// RespondError maps err to an RFC7807 response. Unknown errors become a 500
// without detail so internal addresses never leak.
func RespondError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		detail := ""
		if m.expose {
			detail = err.Error()
		}
		Problem(w, m.status, m.title, detail)
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
