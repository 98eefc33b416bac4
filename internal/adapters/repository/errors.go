package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("user already registered")
	ErrChartExists   = errors.New("natal chart already stored")
	ErrUnavailable   = errors.New("store unavailable")
)
