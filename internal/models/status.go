package models

import (
	"errors"
	"fmt"
)

// QueueStatus is the lifecycle status of a content generation queue item.
type QueueStatus string

const (
	QueueStatusQueued     QueueStatus = "queued"
	QueueStatusGenerating QueueStatus = "generating"
	QueueStatusGenerated  QueueStatus = "generated"
	QueueStatusPublished  QueueStatus = "published"
	QueueStatusFailed     QueueStatus = "failed"
	QueueStatusCancelled  QueueStatus = "cancelled"
)

// ErrInvalidTransition is matched by errors.Is for any rejected status
// transition, on either state machine.
var ErrInvalidTransition = errors.New("invalid status transition")

// InvalidTransitionError reports the exact pair that was rejected so handlers
// can echo it back to the caller.
type InvalidTransitionError struct {
	Current   string
	Requested string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.Current, e.Requested)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// queueTransitions is the full adjacency table. A pair that is not listed here
// is illegal; there is no fallback.
var queueTransitions = map[QueueStatus][]QueueStatus{
	QueueStatusQueued:     {QueueStatusGenerating, QueueStatusFailed, QueueStatusCancelled},
	QueueStatusGenerating: {QueueStatusGenerated, QueueStatusFailed, QueueStatusCancelled},
	QueueStatusGenerated:  {QueueStatusPublished, QueueStatusFailed, QueueStatusCancelled},
	QueueStatusPublished:  {},
	QueueStatusFailed:     {},
	QueueStatusCancelled:  {},
}

// Valid reports whether s is a member of the closed status set.
func (s QueueStatus) Valid() bool {
	_, ok := queueTransitions[s]
	return ok
}

// Terminal reports whether no further transitions are possible.
func (s QueueStatus) Terminal() bool {
	return len(queueTransitions[s]) == 0
}

// CanTransition reports whether current -> next is in the adjacency table.
// Pure; safe to call from any code path.
func (s QueueStatus) CanTransition(next QueueStatus) bool {
	for _, allowed := range queueTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates current -> next and returns the new status, or an
// *InvalidTransitionError. Self-transitions are not in the table and are
// rejected like any other illegal pair.
func (s QueueStatus) Transition(next QueueStatus) (QueueStatus, error) {
	if !s.CanTransition(next) {
		return s, &InvalidTransitionError{Current: string(s), Requested: string(next)}
	}
	return next, nil
}
