package delivery

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/order"
	"github.com/Daninc24/dropshipping-sub001/internal/events"
)

// statusMap translates the delivery vocabulary onto order statuses.
var statusMap = map[string]order.Status{
	StatusPickedUp:  order.StatusProcessing,
	StatusInTransit: order.StatusShipped,
	StatusDelivered: order.StatusDelivered,
	StatusFailed:    order.StatusDeliveryFailed,
}

// Service owns agent assignment and delivery progress tracking.
type Service struct {
	agents AgentRepository
	zones  ZoneRepository
	orders order.Repository
	pub    events.Publisher
	lg     *zap.Logger
	now    func() time.Time
}

// NewService creates a delivery Service.
func NewService(
	agents AgentRepository,
	zones ZoneRepository,
	orders order.Repository,
	pub events.Publisher,
	lg *zap.Logger,
) *Service {
	return &Service{
		agents: agents,
		zones:  zones,
		orders: orders,
		pub:    pub,
		lg:     lg,
		now:    time.Now,
	}
}

// Assign pairs the order with an agent. The agent must be active and
// available; assignment writes the delivery sub-document onto the order,
// advances the order to processing and marks the agent busy.
func (s *Service) Assign(ctx context.Context, orderID, agentID, actor string) (*order.Order, error) {
	a, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if a.Status != AgentActive || !a.Available {
		return nil, ErrAgentUnavailable
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := o.UpdateStatus(order.StatusProcessing, "assigned to "+a.Name, actor, now); err != nil {
		return nil, err
	}
	o.Delivery = &order.DeliveryInfo{
		AgentID:    a.ID,
		ZoneID:     o.ShippingAddress.ZoneID,
		Status:     StatusAssigned,
		AssignedAt: now,
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	a.Available = false
	if err := s.agents.Update(ctx, a); err != nil {
		// The order is assigned; a stale availability flag only risks a
		// second assignment, which the version check will catch.
		s.lg.Error("Marking agent busy failed",
			zap.String("agent_id", a.ID), zap.Error(err))
	}

	s.publish(ctx, events.Event{
		Kind:    events.KindOrderStatusChanged,
		OrderID: o.ID,
		UserID:  o.UserID,
		At:      now,
		Payload: map[string]any{"status": string(order.StatusProcessing), "agent_id": a.ID},
	})
	return o, nil
}

// UpdateStatus applies an agent-reported delivery status. The delivery
// vocabulary maps onto order statuses through a fixed table; terminal
// outcomes fold into the agent's running performance averages and free
// the agent for the next assignment.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status, actor string) (*order.Order, error) {
	target, ok := statusMap[status]
	if !ok {
		return nil, ErrUnknownStatus
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Delivery == nil {
		return nil, ErrNotAssigned
	}

	now := s.now()
	if err := o.UpdateStatus(target, "delivery "+status, actor, now); err != nil {
		return nil, err
	}

	o.Delivery.Status = status
	switch status {
	case StatusPickedUp:
		if o.Delivery.PickedUpAt == nil {
			o.Delivery.PickedUpAt = &now
		}
	case StatusDelivered:
		if o.Delivery.DeliveredAt == nil {
			o.Delivery.DeliveredAt = &now
		}
	case StatusFailed:
		if o.Delivery.FailedAt == nil {
			o.Delivery.FailedAt = &now
		}
	}

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	if status == StatusDelivered || status == StatusFailed {
		s.recordOutcome(ctx, o, status == StatusDelivered, now)
	}

	s.publish(ctx, events.Event{
		Kind:    events.KindOrderStatusChanged,
		OrderID: o.ID,
		UserID:  o.UserID,
		At:      now,
		Payload: map[string]any{"status": string(target), "delivery_status": status},
	})
	return o, nil
}

// Quote computes the shipping fee and SLA window for a zone. Carts at or
// above the zone's free-delivery threshold ship for free.
func (s *Service) Quote(ctx context.Context, zoneID string, itemsPrice decimal.Decimal) (order.ShippingQuote, error) {
	z, err := s.zones.GetByID(ctx, zoneID)
	if err != nil {
		return order.ShippingQuote{}, err
	}
	if !z.Active {
		return order.ShippingQuote{}, ErrZoneNotFound
	}

	fee := z.Fee
	if z.FreeAbove.IsPositive() && itemsPrice.GreaterThanOrEqual(z.FreeAbove) {
		fee = decimal.Zero
	}
	return order.ShippingQuote{Fee: fee, MinDays: z.MinDays, MaxDays: z.MaxDays}, nil
}

// RegisterAgent creates a new agent in the pending state.
func (s *Service) RegisterAgent(ctx context.Context, userID, name, phone, zoneID string) (*Agent, error) {
	a := &Agent{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		Phone:     phone,
		ZoneID:    zoneID,
		Status:    AgentPending,
		Version:   1,
		CreatedAt: s.now(),
	}
	if err := s.agents.Create(ctx, a); err != nil {
		return nil, errors.Wrap(err, "create agent")
	}
	return a, nil
}

// SetAgentStatus moves an agent between pending, active and suspended.
// Activation also makes the agent available.
func (s *Service) SetAgentStatus(ctx context.Context, agentID string, status AgentStatus) (*Agent, error) {
	a, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	a.Status = status
	if status == AgentActive {
		a.Available = true
	} else {
		a.Available = false
	}
	if err := s.agents.Update(ctx, a); err != nil {
		return nil, errors.Wrap(err, "update agent")
	}
	return a, nil
}

// GetAgent returns one agent by id.
func (s *Service) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	return s.agents.GetByID(ctx, agentID)
}

// ListAgents returns agents, optionally filtered by status.
func (s *Service) ListAgents(ctx context.Context, status AgentStatus, limit, offset int) ([]Agent, int, error) {
	return s.agents.List(ctx, status, limit, offset)
}

// CreateZone adds a delivery zone.
func (s *Service) CreateZone(ctx context.Context, z *Zone) error {
	if z.ID == "" {
		z.ID = uuid.New().String()
	}
	return s.zones.Create(ctx, z)
}

// ListZones returns all zones.
func (s *Service) ListZones(ctx context.Context) ([]Zone, error) {
	return s.zones.List(ctx)
}

// UpdateZone saves changes to a zone.
func (s *Service) UpdateZone(ctx context.Context, z *Zone) error {
	return s.zones.Update(ctx, z)
}

// recordOutcome updates the agent's running averages after a terminal
// delivery status and frees the agent.
func (s *Service) recordOutcome(ctx context.Context, o *order.Order, success bool, now time.Time) {
	a, err := s.agents.GetByID(ctx, o.Delivery.AgentID)
	if err != nil {
		s.lg.Error("Loading agent for outcome failed",
			zap.String("agent_id", o.Delivery.AgentID), zap.Error(err))
		return
	}

	minutes := now.Sub(o.Delivery.AssignedAt).Minutes()
	onTime := true
	if z, err := s.zones.GetByID(ctx, o.Delivery.ZoneID); err == nil && z.MaxDays > 0 {
		deadline := o.Delivery.AssignedAt.AddDate(0, 0, z.MaxDays)
		onTime = !now.After(deadline)
	}

	a.RecordOutcome(success, onTime, minutes)
	a.Available = true
	if err := s.agents.Update(ctx, a); err != nil {
		s.lg.Error("Updating agent metrics failed",
			zap.String("agent_id", a.ID), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.lg.Warn("Publishing event failed", zap.String("kind", ev.Kind), zap.Error(err))
	}
}

var _ order.FeeQuoter = (*Service)(nil)
