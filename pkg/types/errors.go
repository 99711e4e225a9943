package types

import "errors"

// Store operation errors.
var (
	ErrNotFound    = errors.New("entity not found")
	ErrInvalidID   = errors.New("invalid entity ID")
	ErrInvalidData = errors.New("invalid entity data")
	ErrStoreClosed = errors.New("store is closed")
	ErrAlreadyOpen = errors.New("store is already open")
)

// Domain model errors.
var (
	ErrInvalidKind       = errors.New("invalid kind")
	ErrUnknownZone       = errors.New("unknown zone")
	ErrInvalidRecordName = errors.New("record name is not in Kind.uuid format")
	ErrMissingField      = errors.New("required record field is missing")
	ErrKindMismatch      = errors.New("record kind does not match entity kind")
	ErrNoteWithoutOwner  = errors.New("note has no owner reference")
	ErrDuplicateRecord   = errors.New("more than one local object shares a record name")
)

// Engine errors.
var (
	ErrSyncDisabled = errors.New("remote sync is disabled")
	ErrSyncBusy     = errors.New("a sync run is already active")
)
