package order

import (
	"fmt"
	"time"
)

// TransitionError indicates a status change not present in the transition
// table.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition: %s -> %s", e.From, e.To)
}

// transitions is the complete table of allowed status changes. Anything
// not listed is rejected. The happy path runs pending -> confirmed ->
// processing -> shipped -> delivered; cancellation branches off before
// shipping, refunds require a paid state, and a failed delivery re-enters
// processing on reassignment.
var transitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusProcessing, StatusCancelled, StatusRefunded},
	StatusProcessing:     {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:        {StatusDelivered, StatusDeliveryFailed},
	StatusDelivered:      {StatusRefunded},
	StatusDeliveryFailed: {StatusProcessing, StatusRefunded},
	StatusCancelled:      {},
	StatusRefunded:       {},
}

// CanTransition reports whether from -> to is an allowed status change.
// Re-entering the current status is allowed: it re-appends history without
// changing state, which keeps the audit trail append-only rather than
// deduplicated.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are defined from s.
func Terminal(s Status) bool {
	return len(transitions[s]) == 0
}

// UpdateStatus is the only mutation path for the order status. It checks
// the transition table, sets the field, and appends a history entry; there
// is no way to change the status without leaving an audit record.
//
// Entering shipped stamps ShippedAt once and delivered stamps DeliveredAt
// once; re-entries never overwrite the original timestamps.
func (o *Order) UpdateStatus(to Status, note, actor string, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return &TransitionError{From: o.Status, To: to}
	}

	o.Status = to
	o.History = append(o.History, HistoryEntry{
		Status: to,
		At:     now,
		Note:   note,
		Actor:  actor,
	})

	switch to {
	case StatusShipped:
		if o.ShippedAt == nil {
			t := now
			o.ShippedAt = &t
		}
	case StatusDelivered:
		if o.DeliveredAt == nil {
			t := now
			o.DeliveredAt = &t
		}
	}

	o.UpdatedAt = now
	return nil
}
