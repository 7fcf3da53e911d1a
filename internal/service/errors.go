package service

import "errors"

var (
	// ErrNotFound covers missing rows and rows owned by another org; callers
	// cannot distinguish the two.
	ErrNotFound = errors.New("resource not found")

	// ErrConcurrentUpdate means a conditional update lost a race; the caller
	// should re-read and retry the operation if it still applies.
	ErrConcurrentUpdate = errors.New("record changed concurrently")

	// ErrImmutableRecord guards published queue items and publishing records
	// against hard deletion.
	ErrImmutableRecord = errors.New("published records cannot be deleted")

	// ErrMissingPlatformPost rejects platform-side operations before any
	// platform call when the record has no platform item yet.
	ErrMissingPlatformPost = errors.New("record has no platform post")

	// ErrContentNotReady rejects draft materialization while generated title
	// or content are absent.
	ErrContentNotReady = errors.New("generated content not present")

	// ErrIllegalOperation rejects a publishing operation whose status guard
	// fails, before any platform call is made.
	ErrIllegalOperation = errors.New("operation not legal in current status")
)
