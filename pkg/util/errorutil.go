package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/fieldserve/ticket-engine/internal/domain"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewInvalidTransition reports a status change rejected by the strict
// transition policy.
func NewInvalidTransition(from, to domain.TicketStatus) error {
	return NewDomainError("INVALID_TRANSITION",
		fmt.Sprintf("transition %s -> %s not permitted", from, to),
		http.StatusConflict,
		map[string]any{"from": from, "to": to})
}

// NewReferenceNotFound reports an unresolved ticket/user reference in a
// workflow command (strict-references mode only).
func NewReferenceNotFound(kind, id string) error {
	return NewDomainError("REFERENCE_NOT_FOUND",
		fmt.Sprintf("%s %q could not be resolved", kind, id),
		http.StatusUnprocessableEntity,
		map[string]any{"kind": kind, "id": id})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError, mapping the
// engine's sentinel errors onto the wire taxonomy.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	switch {
	case errors.Is(err, domain.ErrTicketNotFound):
		return NewNotFound("ticket", nil).(*DomainError)
	case errors.Is(err, domain.ErrUserNotFound):
		return NewNotFound("user", nil).(*DomainError)
	case errors.Is(err, domain.ErrInvalidTransition):
		return NewDomainError("INVALID_TRANSITION", err.Error(), http.StatusConflict, nil)
	case errors.Is(err, domain.ErrNoApprovers):
		return &DomainError{
			Code:       "CONFLICT",
			Message:    err.Error(),
			HTTPStatus: http.StatusConflict,
			Err:        err,
		}
	case errors.Is(err, pgx.ErrNoRows):
		return NewNotFound("resource", nil).(*DomainError)
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
