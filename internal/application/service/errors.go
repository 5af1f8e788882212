package service

import "errors"

var (
	// ErrRequestNotFound is returned when no ledger row matches a lookup key
	ErrRequestNotFound = errors.New("request not found")

	// ErrRowNotFound is returned when an update addresses an empty row
	ErrRowNotFound = errors.New("row not found")

	// ErrUnknownRow is returned when a record has no known row number
	ErrUnknownRow = errors.New("row number unknown")

	// ErrInvalidUsageDate is returned when a stored usage date cannot be read
	ErrInvalidUsageDate = errors.New("invalid usage date")
)
