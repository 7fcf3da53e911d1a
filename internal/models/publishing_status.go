package models

// PublishingStatus is the lifecycle status of a per-platform publishing
// record. It is distinct from the platform-side draft/live mode, which is
// tracked by PublishingRecord.IsDraft.
type PublishingStatus string

const (
	PublishingStatusPending     PublishingStatus = "pending"
	PublishingStatusPublished   PublishingStatus = "published"
	PublishingStatusScheduled   PublishingStatus = "scheduled"
	PublishingStatusUnpublished PublishingStatus = "unpublished"
	PublishingStatusFailed      PublishingStatus = "failed"
	PublishingStatusCancelled   PublishingStatus = "cancelled"
)

var publishingTransitions = map[PublishingStatus][]PublishingStatus{
	PublishingStatusPending:     {PublishingStatusPublished, PublishingStatusScheduled, PublishingStatusFailed, PublishingStatusCancelled},
	PublishingStatusScheduled:   {PublishingStatusPublished, PublishingStatusFailed, PublishingStatusCancelled},
	PublishingStatusPublished:   {PublishingStatusUnpublished, PublishingStatusCancelled},
	PublishingStatusUnpublished: {PublishingStatusPublished, PublishingStatusCancelled},
	PublishingStatusFailed:      {PublishingStatusPending, PublishingStatusPublished, PublishingStatusCancelled},
	PublishingStatusCancelled:   {},
}

func (s PublishingStatus) Valid() bool {
	_, ok := publishingTransitions[s]
	return ok
}

func (s PublishingStatus) Terminal() bool {
	return len(publishingTransitions[s]) == 0
}

// CanTransition reports whether current -> next is in the adjacency table.
func (s PublishingStatus) CanTransition(next PublishingStatus) bool {
	for _, allowed := range publishingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates current -> next and returns the new status, or an
// *InvalidTransitionError.
func (s PublishingStatus) Transition(next PublishingStatus) (PublishingStatus, error) {
	if !s.CanTransition(next) {
		return s, &InvalidTransitionError{Current: string(s), Requested: string(next)}
	}
	return next, nil
}
