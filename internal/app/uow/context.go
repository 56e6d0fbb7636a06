package uow

import (
	"context"
	"errors"
)

var (
	// ErrNoUnit is returned by Current when no unit is bound to the context.
	ErrNoUnit = errors.New("uow: no unit bound to context")
	// ErrConflict marks a write the backend rejected because a concurrent
	// unit got there first. The unit is dead; the whole command may be
	// replayed in a fresh one.
	ErrConflict = errors.New("uow: write conflict")
)

type boundUnit struct{}

// WithUnit returns a copy of ctx carrying unit.
func WithUnit(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, boundUnit{}, unit)
}

// Current returns the unit bound by WithUnit.
func Current(ctx context.Context) (UnitOfWork, error) {
	if unit, ok := ctx.Value(boundUnit{}).(UnitOfWork); ok && unit != nil {
		return unit, nil
	}
	return nil, ErrNoUnit
}

// Retryable reports whether err came from a unit lost to a concurrent writer.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
