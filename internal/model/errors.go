package model

import "errors"

// Business errors shared by the repository, service and controller layers.
// Callers wrap them with context and match with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrGeocode      = errors.New("geocoding failed")
	ErrUpload       = errors.New("upload failed")
	ErrPayment      = errors.New("payment failed")
)
