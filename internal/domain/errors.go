// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates a request failed input validation. Handlers wrap
// it with a human-readable suffix (fmt.Errorf("%w: ...", ErrValidation))
// so internal/adapter/http's writeDomainError can strip the sentinel's own
// text and surface only the specific complaint to the client.
var ErrValidation = errors.New("validation")

// ErrCancelled indicates an operation observed an aborted cancellation
// token (C6) and returned early. It is a distinct outcome, not a fatal
// error: callers check it with errors.Is to take the "Cancelled" branch
// of the error taxonomy rather than surfacing an `error` event.
var ErrCancelled = errors.New("operation cancelled")
