// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine for an expected outcome
// unwraps to exactly one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrTransient    = errors.New("transient failure")
)

// Error is a typed engine failure carrying a human readable message and,
// for validation failures, a field level detail map.
type Error struct {
	Kind    error
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: ErrForbidden, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// InvalidFields builds an InvalidInput error with per-field details.
func InvalidFields(message string, fields map[string]string) *Error {
	return &Error{Kind: ErrInvalidInput, Message: message, Fields: fields}
}

// Transient wraps a downstream failure that may succeed on retry.
func Transient(message string, err error) error {
	return fmt.Errorf("%w: %w", &Error{Kind: ErrTransient, Message: message}, err)
}

// FieldsOf returns the field detail map of err, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

var (
	// Entity lookups
	ErrLockerNotFound       = NotFound("locker not found")
	ErrCompartmentNotFound  = NotFound("compartment doesn't exist")
	ErrUserNotFound         = NotFound("user not found")
	ErrOrganizationNotFound = NotFound("organization not found")
	ErrAreaNotFound         = NotFound("area not found")
	ErrScheduleNotFound     = NotFound("schedule not found")
	ErrGrantNotFound        = NotFound("user has no access to that compartment")
	ErrAccessNotFound       = NotFound("user has no access to that locker")
	ErrDeviceTokenNotFound  = NotFound("device token not found")

	// ErrUserInvited is the soft failure returned when a grant targets an
	// email without an account; an invitation has been sent.
	ErrUserInvited = NotFound("user doesn't exist. An invitation email has been sent to their email")

	// Authorization
	ErrNotLockerAdmin       = Forbidden("you must be an admin or super_admin in that locker")
	ErrNotLockerSuperAdmin  = Forbidden("you must be a super_admin in that locker")
	ErrNotOrganizationOwner = Forbidden("you must be the owner of the organization")
	ErrNotOrganizationAdmin = Forbidden("you must be admin or super_admin in the organization")
	ErrNoLockerAccess       = Forbidden("you do not have access to that locker")

	// Uniqueness and state
	ErrOrganizationExists  = Conflict("organization already exists")
	ErrAreaExists          = Conflict("area already exists in this organization")
	ErrLockerAlreadyLinked = Conflict("locker is already linked to an organization and area")
	ErrSelfRevocation      = Conflict("you cannot remove your own access")
	ErrSelfRoleChange      = Conflict("you cannot change your own role")
	ErrDeviceTokenExists   = Conflict("device token already registered")
	ErrLockerAlreadyInArea = Conflict("locker is already in that area")

	// Schedule slots
	ErrWeeklyScheduleExists = Conflict("a weekly schedule already exists for that day on this locker")
	ErrDatedScheduleExists  = Conflict("a schedule already exists for that date on this locker")

	// Input
	ErrInvalidRole   = InvalidInput("invalid role")
	ErrEmptyUpdate   = InvalidInput("nothing to update")
	ErrInvalidStatus = InvalidInput("invalid compartment status")
	ErrInvalidNumber = InvalidInput("numeric parameters must be positive")
)
