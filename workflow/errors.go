package workflow

import (
	"errors"
	"fmt"

	"Gin_postgres_redis_equipment_tool/store"
)

type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindConflict     Kind = "conflict"
	KindForbidden    Kind = "forbidden"
	KindValidation   Kind = "validation"
)

// Sentinels for errors.Is; every *Error matches the one of its Kind.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation error")
)

var sentinels = map[Kind]error{
	KindNotFound:     ErrNotFound,
	KindInvalidState: ErrInvalidState,
	KindConflict:     ErrConflict,
	KindForbidden:    ErrForbidden,
	KindValidation:   ErrValidation,
}

// Error is the typed failure every operation returns.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
}

func (e *Error) Error() string { return e.Op + ": " + e.Msg }

func (e *Error) Is(target error) bool { return sentinels[e.Kind] == target }

// KindOf returns the kind of a workflow error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newErr(k Kind, op, format string, args ...any) *Error {
	return &Error{Kind: k, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func notFound(op, what string) *Error { return newErr(KindNotFound, op, "%s not found", what) }

func invalidState(op, format string, args ...any) *Error {
	return newErr(KindInvalidState, op, format, args...)
}

func conflict(op, format string, args ...any) *Error {
	return newErr(KindConflict, op, format, args...)
}

func forbidden(op, format string, args ...any) *Error {
	return newErr(KindForbidden, op, format, args...)
}

func invalid(op, format string, args ...any) *Error {
	return newErr(KindValidation, op, format, args...)
}

// miss converts a store miss into NotFound for the named record.
func miss(op, what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(op, what)
	}
	return err
}

// uniq converts a unique-index violation raised at write time into Conflict.
func uniq(op, what string, err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return conflict(op, "%s", what)
	}
	return err
}
