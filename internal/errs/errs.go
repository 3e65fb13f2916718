// Package errs defines the stable, code-tagged error kinds the core raises
// at its synchronous boundaries (grab, manual update-check, settings writes).
// Background workers never propagate these out of a tick; they log and
// continue (see internal/logging and each worker's Run loop).
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable error classification independent of message text.
type Kind string

const (
	KindNotConfigured Kind = "not_configured"
	KindNotFound      Kind = "not_found"
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindIntegration   Kind = "integration"
	KindPathTraversal Kind = "path_traversal"
	KindDatabase      Kind = "database"
	KindFileSystem    Kind = "filesystem"
)

// Error is the single error type returned across package boundaries.
// Service names the upstream collaborator for KindIntegration errors
// ("igdb", "prowlarr", "qbittorrent"); it is empty otherwise.
type Error struct {
	Kind    Kind
	Service string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	if e.Service != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Service, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Service, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps a Kind to the status code the (out-of-scope) HTTP
// surface should translate it to, per spec.md §7.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotConfigured, KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindIntegration:
		return http.StatusBadGateway
	case KindPathTraversal:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func NotConfigured(msg string) error { return &Error{Kind: KindNotConfigured, Msg: msg} }

func NotFound(msg string) error { return &Error{Kind: KindNotFound, Msg: msg} }

func Validation(msg string) error { return &Error{Kind: KindValidation, Msg: msg} }

func Conflict(msg string) error { return &Error{Kind: KindConflict, Msg: msg} }

func Integration(service, msg string, err error) error {
	return &Error{Kind: KindIntegration, Service: service, Msg: msg, Err: err}
}

func PathTraversal(msg string) error { return &Error{Kind: KindPathTraversal, Msg: msg} }

func Database(msg string, err error) error {
	return &Error{Kind: KindDatabase, Msg: msg, Err: err}
}

func FileSystem(msg string, err error) error {
	return &Error{Kind: KindFileSystem, Msg: msg, Err: err}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
