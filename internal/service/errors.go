package service

import "errors"

var (
	// ErrBadRequest is returned when a frame is missing a required field.
	ErrBadRequest = errors.New("bad request")
	// ErrForbidden is returned when a host-only control comes from a non-host.
	ErrForbidden = errors.New("forbidden")
	// ErrClosed is returned when the client or the hub is already gone.
	ErrClosed = errors.New("connection closed")
)
