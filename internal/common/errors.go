// Package common defines shared constants and sentinel errors used across
// readstash layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Remote client errors. ErrUnauthorized is fatal and user-actionable:
	// the API token must be refreshed. The others are surfaced by the
	// client after its own retry budget is exhausted.
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTransient         = errors.New("transient remote failure")
	ErrMalformedResponse = errors.New("malformed remote response")

	// Sync engine errors.
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrCommitFailed   = errors.New("page commit failed")

	// Augmentation errors.
	ErrNoSuchHighlight = errors.New("highlight does not exist")
)
