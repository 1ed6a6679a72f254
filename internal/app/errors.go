package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storyworlds/site/internal/store"
)

// DomainError is an error the site shows to its visitor or editor. Status
// picks the HTTP response; Details carries per-field messages for forms.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{Status: status, Code: code, Message: message, Details: details}
}

func notFound() error {
	return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// fieldErrors collects form validation messages keyed by field name.
type fieldErrors map[string]string

// err returns a 422 carrying every message, or nil when the form is valid.
func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Please correct the highlighted fields", map[string]string(f))
}

// upsertError turns a unique violation on field into a 409 the form can
// show inline. Other store failures are wrapped with op.
func upsertError(op, field string, err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return domainError(http.StatusConflict, strings.ToUpper(field)+"_TAKEN",
			"Another entry already uses that "+field, map[string]string{field: "Already in use"})
	}
	return fmt.Errorf("%s: %w", op, err)
}
