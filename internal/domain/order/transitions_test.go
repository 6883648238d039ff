package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusConfirmed, StatusProcessing, true},
		{StatusConfirmed, StatusRefunded, true},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusShipped, StatusDeliveryFailed, true},
		{StatusDelivered, StatusRefunded, true},
		{StatusDelivered, StatusShipped, false},
		{StatusDeliveryFailed, StatusProcessing, true},
		{StatusDeliveryFailed, StatusShipped, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusRefunded, StatusPending, false},
		// Same-status re-entry is always allowed.
		{StatusConfirmed, StatusConfirmed, true},
		{StatusCancelled, StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(StatusCancelled))
	assert.True(t, Terminal(StatusRefunded))
	assert.False(t, Terminal(StatusDelivered), "delivered can still be refunded")
	assert.False(t, Terminal(StatusPending))
}

func TestUpdateStatus_AppendsHistory(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	o := &Order{Status: StatusPending}

	require.NoError(t, o.UpdateStatus(StatusConfirmed, "payment received", "mpesa", now))
	require.Len(t, o.History, 1)
	assert.Equal(t, StatusConfirmed, o.History[0].Status)
	assert.Equal(t, "payment received", o.History[0].Note)
	assert.Equal(t, "mpesa", o.History[0].Actor)
	assert.Equal(t, now, o.History[0].At)
}

// History is append-only, not deduplicated: re-applying the current status
// records a second entry. This is expected behavior, not a bug.
func TestUpdateStatus_SameStatusAppendsTwice(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	o := &Order{Status: StatusPending}

	require.NoError(t, o.UpdateStatus(StatusConfirmed, "", "admin", now))
	require.NoError(t, o.UpdateStatus(StatusConfirmed, "", "admin", now.Add(time.Minute)))

	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Len(t, o.History, 2)
}

func TestUpdateStatus_RejectsUndefinedTransition(t *testing.T) {
	o := &Order{Status: StatusShipped}

	err := o.UpdateStatus(StatusCancelled, "", "admin", time.Now())
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusShipped, te.From)
	assert.Equal(t, StatusCancelled, te.To)
	assert.Empty(t, o.History, "rejected transitions leave no history")
	assert.Equal(t, StatusShipped, o.Status)
}

func TestUpdateStatus_StampsShippedAndDeliveredOnce(t *testing.T) {
	t0 := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	o := &Order{Status: StatusProcessing}

	require.NoError(t, o.UpdateStatus(StatusShipped, "", "admin", t0))
	require.NotNil(t, o.ShippedAt)
	assert.Equal(t, t0, *o.ShippedAt)

	// Re-entering shipped later does not move the timestamp.
	require.NoError(t, o.UpdateStatus(StatusShipped, "", "admin", t0.Add(time.Hour)))
	assert.Equal(t, t0, *o.ShippedAt)

	t1 := t0.Add(2 * time.Hour)
	require.NoError(t, o.UpdateStatus(StatusDelivered, "", "agent", t1))
	require.NotNil(t, o.DeliveredAt)
	assert.Equal(t, t1, *o.DeliveredAt)

	require.NoError(t, o.UpdateStatus(StatusDelivered, "", "agent", t1.Add(time.Hour)))
	assert.Equal(t, t1, *o.DeliveredAt)
}
