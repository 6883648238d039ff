package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/order"
	"github.com/Daninc24/dropshipping-sub001/internal/events"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type mockAgentRepo struct {
	AgentRepository

	agents map[string]*Agent
}

func (m *mockAgentRepo) GetByID(_ context.Context, id string) (*Agent, error) {
	a, ok := m.agents[id]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return a, nil
}

func (m *mockAgentRepo) Update(_ context.Context, a *Agent) error {
	m.agents[a.ID] = a
	return nil
}

type mockZoneRepo struct {
	ZoneRepository

	zones map[string]*Zone
}

func (m *mockZoneRepo) GetByID(_ context.Context, id string) (*Zone, error) {
	z, ok := m.zones[id]
	if !ok {
		return nil, ErrZoneNotFound
	}
	return z, nil
}

type mockOrderRepo struct {
	order.Repository

	orders map[string]*order.Order
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *order.Order) error {
	m.orders[o.ID] = o
	return nil
}

func activeAgent() *Agent {
	return &Agent{
		ID: "a1", Name: "Jim", ZoneID: "z1",
		Status: AgentActive, Available: true, Version: 1,
	}
}

func confirmedOrder() *order.Order {
	return &order.Order{
		ID:     "o1",
		UserID: "u1",
		ShippingAddress: order.Address{
			City: "Nairobi", ZoneID: "z1",
		},
		Status:  order.StatusConfirmed,
		History: []order.HistoryEntry{{Status: order.StatusConfirmed, At: fixedNow}},
		Version: 1,
	}
}

func newTestService(agents *mockAgentRepo, zones *mockZoneRepo, orders *mockOrderRepo) *Service {
	s := NewService(agents, zones, orders, events.NopPublisher{}, zap.NewNop())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestAssign_WritesSubdocumentAndMarksAgentBusy(t *testing.T) {
	agents := &mockAgentRepo{agents: map[string]*Agent{"a1": activeAgent()}}
	orders := &mockOrderRepo{orders: map[string]*order.Order{"o1": confirmedOrder()}}
	s := newTestService(agents, &mockZoneRepo{}, orders)

	o, err := s.Assign(context.Background(), "o1", "a1", "admin")
	require.NoError(t, err)

	assert.Equal(t, order.StatusProcessing, o.Status)
	require.NotNil(t, o.Delivery)
	assert.Equal(t, "a1", o.Delivery.AgentID)
	assert.Equal(t, "z1", o.Delivery.ZoneID)
	assert.Equal(t, StatusAssigned, o.Delivery.Status)
	assert.Equal(t, fixedNow, o.Delivery.AssignedAt)

	assert.False(t, agents.agents["a1"].Available)
}

func TestAssign_RejectsUnavailableAgent(t *testing.T) {
	busy := activeAgent()
	busy.Available = false
	suspended := activeAgent()
	suspended.ID = "a2"
	suspended.Status = AgentSuspended

	agents := &mockAgentRepo{agents: map[string]*Agent{"a1": busy, "a2": suspended}}
	orders := &mockOrderRepo{orders: map[string]*order.Order{"o1": confirmedOrder()}}
	s := newTestService(agents, &mockZoneRepo{}, orders)

	_, err := s.Assign(context.Background(), "o1", "a1", "admin")
	require.ErrorIs(t, err, ErrAgentUnavailable)

	_, err = s.Assign(context.Background(), "o1", "a2", "admin")
	require.ErrorIs(t, err, ErrAgentUnavailable)
}

func TestAssign_RejectsPendingOrder(t *testing.T) {
	agents := &mockAgentRepo{agents: map[string]*Agent{"a1": activeAgent()}}
	o := confirmedOrder()
	o.Status = order.StatusPending
	orders := &mockOrderRepo{orders: map[string]*order.Order{"o1": o}}
	s := newTestService(agents, &mockZoneRepo{}, orders)

	_, err := s.Assign(context.Background(), "o1", "a1", "admin")
	var terr *order.TransitionError
	require.ErrorAs(t, err, &terr)
}

func assignedOrder(status order.Status, deliveryStatus string) *order.Order {
	o := confirmedOrder()
	o.Status = status
	o.Delivery = &order.DeliveryInfo{
		AgentID:    "a1",
		ZoneID:     "z1",
		Status:     deliveryStatus,
		AssignedAt: fixedNow.Add(-2 * time.Hour),
	}
	return o
}

func TestUpdateStatus_MapsDeliveryVocabulary(t *testing.T) {
	tests := []struct {
		delivery  string
		fromOrder order.Status
		toOrder   order.Status
	}{
		{StatusPickedUp, order.StatusProcessing, order.StatusProcessing},
		{StatusInTransit, order.StatusProcessing, order.StatusShipped},
		{StatusDelivered, order.StatusShipped, order.StatusDelivered},
		{StatusFailed, order.StatusShipped, order.StatusDeliveryFailed},
	}
	for _, tt := range tests {
		t.Run(tt.delivery, func(t *testing.T) {
			agents := &mockAgentRepo{agents: map[string]*Agent{"a1": activeAgent()}}
			orders := &mockOrderRepo{orders: map[string]*order.Order{
				"o1": assignedOrder(tt.fromOrder, StatusAssigned),
			}}
			s := newTestService(agents, &mockZoneRepo{zones: map[string]*Zone{}}, orders)

			o, err := s.UpdateStatus(context.Background(), "o1", tt.delivery, "a1")
			require.NoError(t, err)
			assert.Equal(t, tt.toOrder, o.Status)
			assert.Equal(t, tt.delivery, o.Delivery.Status)
		})
	}
}

func TestUpdateStatus_UnknownVocabulary(t *testing.T) {
	s := newTestService(&mockAgentRepo{}, &mockZoneRepo{}, &mockOrderRepo{})

	_, err := s.UpdateStatus(context.Background(), "o1", "teleported", "a1")
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestUpdateStatus_RequiresAssignment(t *testing.T) {
	orders := &mockOrderRepo{orders: map[string]*order.Order{"o1": confirmedOrder()}}
	s := newTestService(&mockAgentRepo{}, &mockZoneRepo{}, orders)

	_, err := s.UpdateStatus(context.Background(), "o1", StatusPickedUp, "a1")
	require.ErrorIs(t, err, ErrNotAssigned)
}

func TestUpdateStatus_DeliveredUpdatesRunningAverages(t *testing.T) {
	agent := activeAgent()
	agent.Available = false
	agent.TotalDeliveries = 1
	agent.SuccessfulDeliveries = 1
	agent.AvgDeliveryMinutes = 60
	agent.OnTimeRate = 1

	agents := &mockAgentRepo{agents: map[string]*Agent{"a1": agent}}
	zones := &mockZoneRepo{zones: map[string]*Zone{
		"z1": {ID: "z1", Fee: dec("3"), MinDays: 1, MaxDays: 3, Active: true},
	}}
	orders := &mockOrderRepo{orders: map[string]*order.Order{
		"o1": assignedOrder(order.StatusShipped, StatusInTransit),
	}}
	s := newTestService(agents, zones, orders)

	o, err := s.UpdateStatus(context.Background(), "o1", StatusDelivered, "a1")
	require.NoError(t, err)
	require.NotNil(t, o.Delivery.DeliveredAt)

	// Second delivery took 120 minutes: newAvg = (60*1 + 120) / 2.
	assert.Equal(t, 2, agent.TotalDeliveries)
	assert.Equal(t, 2, agent.SuccessfulDeliveries)
	assert.InDelta(t, 90, agent.AvgDeliveryMinutes, 0.001)
	assert.InDelta(t, 1, agent.OnTimeRate, 0.001)
	assert.True(t, agent.Available, "agent freed after terminal outcome")
}

func TestUpdateStatus_FailureCountsAgainstAverages(t *testing.T) {
	agent := activeAgent()
	agent.Available = false
	agent.TotalDeliveries = 1
	agent.SuccessfulDeliveries = 1
	agent.OnTimeRate = 1

	agents := &mockAgentRepo{agents: map[string]*Agent{"a1": agent}}
	orders := &mockOrderRepo{orders: map[string]*order.Order{
		"o1": assignedOrder(order.StatusShipped, StatusInTransit),
	}}
	s := newTestService(agents, &mockZoneRepo{zones: map[string]*Zone{}}, orders)

	o, err := s.UpdateStatus(context.Background(), "o1", StatusFailed, "a1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusDeliveryFailed, o.Status)

	assert.Equal(t, 2, agent.TotalDeliveries)
	assert.Equal(t, 1, agent.SuccessfulDeliveries)
	assert.InDelta(t, 0.5, agent.SuccessRate(), 0.001)
	assert.InDelta(t, 0.5, agent.OnTimeRate, 0.001)
	assert.True(t, agent.Available)
}

func TestQuote(t *testing.T) {
	zones := &mockZoneRepo{zones: map[string]*Zone{
		"z1": {ID: "z1", Fee: dec("250"), FreeAbove: dec("5000"), MinDays: 1, MaxDays: 3, Active: true},
		"z2": {ID: "z2", Fee: dec("100"), Active: false},
	}}
	s := newTestService(&mockAgentRepo{}, zones, &mockOrderRepo{})

	q, err := s.Quote(context.Background(), "z1", dec("1000"))
	require.NoError(t, err)
	assert.True(t, q.Fee.Equal(dec("250")))
	assert.Equal(t, 1, q.MinDays)
	assert.Equal(t, 3, q.MaxDays)

	q, err = s.Quote(context.Background(), "z1", dec("5000"))
	require.NoError(t, err)
	assert.True(t, q.Fee.IsZero(), "free delivery at the threshold")

	_, err = s.Quote(context.Background(), "z2", dec("1000"))
	require.ErrorIs(t, err, ErrZoneNotFound)

	_, err = s.Quote(context.Background(), "nope", dec("1000"))
	require.ErrorIs(t, err, ErrZoneNotFound)
}

func TestRecordOutcome_IncrementalAverage(t *testing.T) {
	a := &Agent{}

	a.RecordOutcome(true, true, 30)
	a.RecordOutcome(true, false, 60)
	a.RecordOutcome(false, false, 90)

	assert.Equal(t, 3, a.TotalDeliveries)
	assert.Equal(t, 2, a.SuccessfulDeliveries)
	assert.InDelta(t, 60, a.AvgDeliveryMinutes, 0.001)
	assert.InDelta(t, 1.0/3.0, a.OnTimeRate, 0.001)
}
