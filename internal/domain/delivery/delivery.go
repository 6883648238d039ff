// Package delivery manages courier agents, pricing zones and the
// assignment of orders to agents.
package delivery

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrAgentNotFound = errors.New("delivery agent not found")
	ErrZoneNotFound  = errors.New("delivery zone not found")
	// ErrAgentUnavailable is returned when the agent is not active or is
	// already out on a delivery.
	ErrAgentUnavailable = errors.New("delivery agent is not available")
	// ErrNotAssigned is returned for delivery status updates on orders that
	// have no assigned agent.
	ErrNotAssigned = errors.New("order has no assigned delivery agent")
	// ErrUnknownStatus is returned for delivery statuses outside the
	// assigned/picked_up/in_transit/delivered/failed vocabulary.
	ErrUnknownStatus = errors.New("unknown delivery status")
	// ErrVersionConflict is returned when a concurrent mutation bumped the
	// agent version between read and write.
	ErrVersionConflict = errors.New("delivery agent was modified concurrently")
)

// AgentStatus is the agent's account state, distinct from availability.
type AgentStatus string

const (
	AgentPending   AgentStatus = "pending"
	AgentActive    AgentStatus = "active"
	AgentSuspended AgentStatus = "suspended"
)

// Delivery status vocabulary used on the order's delivery sub-document.
const (
	StatusAssigned  = "assigned"
	StatusPickedUp  = "picked_up"
	StatusInTransit = "in_transit"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Agent is a courier. The performance figures are running averages
// maintained incrementally as deliveries complete.
type Agent struct {
	ID                   string      `json:"id"`
	UserID               string      `json:"user_id"`
	Name                 string      `json:"name"`
	Phone                string      `json:"phone"`
	ZoneID               string      `json:"zone_id"`
	Status               AgentStatus `json:"status"`
	Available            bool        `json:"available"`
	TotalDeliveries      int         `json:"total_deliveries"`
	SuccessfulDeliveries int         `json:"successful_deliveries"`
	AvgDeliveryMinutes   float64     `json:"avg_delivery_minutes"`
	OnTimeRate           float64     `json:"on_time_rate"`
	Version              int         `json:"version"`
	CreatedAt            time.Time   `json:"created_at"`
}

// SuccessRate is the fraction of completed deliveries that succeeded.
func (a *Agent) SuccessRate() float64 {
	if a.TotalDeliveries == 0 {
		return 0
	}
	return float64(a.SuccessfulDeliveries) / float64(a.TotalDeliveries)
}

// RecordOutcome folds one completed delivery into the agent's counters
// and running averages: newAvg = (oldAvg*(n-1) + value) / n.
func (a *Agent) RecordOutcome(success, onTime bool, minutes float64) {
	a.TotalDeliveries++
	n := float64(a.TotalDeliveries)

	if success {
		a.SuccessfulDeliveries++
	}
	a.AvgDeliveryMinutes = (a.AvgDeliveryMinutes*(n-1) + minutes) / n

	onTimeVal := 0.0
	if success && onTime {
		onTimeVal = 1.0
	}
	a.OnTimeRate = (a.OnTimeRate*(n-1) + onTimeVal) / n
}

// Zone is a priced geographic grouping with a delivery SLA window.
// FreeAbove waives the fee for carts at or above that amount; zero
// disables the waiver.
type Zone struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Fee       decimal.Decimal `json:"fee"`
	FreeAbove decimal.Decimal `json:"free_above"`
	MinDays   int             `json:"min_days"`
	MaxDays   int             `json:"max_days"`
	Active    bool            `json:"active"`
}

// AgentRepository persists delivery agents. Update is guarded by the
// agent's version.
type AgentRepository interface {
	Create(ctx context.Context, a *Agent) error
	GetByID(ctx context.Context, id string) (*Agent, error)
	List(ctx context.Context, status AgentStatus, limit, offset int) ([]Agent, int, error)
	Update(ctx context.Context, a *Agent) error
}

// ZoneRepository persists delivery zones.
type ZoneRepository interface {
	Create(ctx context.Context, z *Zone) error
	GetByID(ctx context.Context, id string) (*Zone, error)
	List(ctx context.Context) ([]Zone, error)
	Update(ctx context.Context, z *Zone) error
}
