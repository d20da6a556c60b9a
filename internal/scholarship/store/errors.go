package store

import "meritledger/pkg/platform/sentinel"

var (
	// ErrNotFound is returned when a scholarship does not exist.
	ErrNotFound = sentinel.ErrNotFound
	// ErrAlreadyClaimed is returned when a claim for the pair already exists.
	ErrAlreadyClaimed = sentinel.ErrAlreadyUsed
)
