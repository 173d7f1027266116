// Package model holds the plumbing shared by the segmentation and OCR model
// backends: lazily initialized handles, dependency probing for the Python
// runtimes the pretrained models live in, and model weight checks.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/semaphore"
)

// ErrDependencyMissing matches any MissingError with errors.Is.
var ErrDependencyMissing = errors.New("dependency missing")

// MissingError lists the dependencies a model backend could not find.
type MissingError struct {
	Deps []string
}

func (e *MissingError) Error() string {
	return "Missing dependencies: " + strings.Join(e.Deps, ", ")
}

// Is reports whether target is ErrDependencyMissing.
func (e *MissingError) Is(target error) bool {
	return target == ErrDependencyMissing
}

// Missing returns a *MissingError for deps.
func Missing(deps ...string) error {
	return &MissingError{Deps: deps}
}

// Handle is an explicitly constructed, lazily initialized model.
//
// The init function runs on the first Get. A successful result is cached for
// the lifetime of the handle; a failure is returned to that caller and init
// runs again on the next Get, so installing a missing dependency does not
// require a restart.
//
// Handle is safe for concurrent use. Callers queued behind a running init
// give up when their own ctx is done.
type Handle[T any] struct {
	name string
	init func(ctx context.Context) (T, error)

	// lock is a one-slot semaphore so waiting honours ctx.
	lock  *semaphore.Weighted
	ready bool
	value T
}

// NewHandle creates a handle named name whose value is produced by init.
func NewHandle[T any](name string, init func(ctx context.Context) (T, error)) *Handle[T] {
	return &Handle[T]{name: name, init: init, lock: semaphore.NewWeighted(1)}
}

// Ready creates a handle that already holds value. Tests use it to inject
// fakes.
func Ready[T any](name string, value T) *Handle[T] {
	return &Handle[T]{name: name, lock: semaphore.NewWeighted(1), ready: true, value: value}
}

// Name returns the backend name the handle was created with.
func (h *Handle[T]) Name() string {
	return h.name
}

// Get returns the initialized value, running init if needed.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	if err := h.lock.Acquire(ctx, 1); err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", h.name, err)
	}
	defer h.lock.Release(1)

	if h.ready {
		return h.value, nil
	}

	v, err := h.init(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", h.name, err)
	}
	h.value = v
	h.ready = true
	return v, nil
}
