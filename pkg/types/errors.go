package types

import "errors"

// Record errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidHash       = errors.New("invalid hash")
	ErrHashMismatch      = errors.New("record hash does not match its action")
	ErrInvalidAction     = errors.New("invalid action")
	ErrUnknownActionType = errors.New("unknown action type")
	ErrInvalidAuthor     = errors.New("author must not be empty")
	ErrInvalidStatus     = errors.New("invalid validation status")
	ErrSeqOverflow       = errors.New("action sequence overflow")
)

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)
