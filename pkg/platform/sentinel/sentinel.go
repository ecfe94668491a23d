package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and collaborator adapters
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: write raced with another writer
// - ErrExpired: session snapshot passed its TTL
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: collaborator or resource temporarily unavailable
//
// For validation errors (bad input, unmet schema constraints), use
// pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
