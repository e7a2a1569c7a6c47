// Package repository provides data access to the durable MySQL store.
// Sentinel errors defined here let handlers and services distinguish
// referential failures from infrastructure failures without inspecting
// error strings.
package repository

import "errors"

// ErrEventNotFound is returned when an event ID or slug does not resolve
// to an existing event. Handlers should translate this into an HTTP 404.
var ErrEventNotFound = errors.New("event not found")
