package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Daninc24/dropshipping-sub001/internal/domain/delivery"
)

const (
	agentColumns = `id, user_id, name, phone, zone_id, status, available,
		total_deliveries, successful_deliveries, avg_delivery_minutes, on_time_rate, version, created_at`

	getAgentSQL = `SELECT ` + agentColumns + ` FROM delivery_agents WHERE id = $1`

	listAgentsSQL = `SELECT ` + agentColumns + `
		FROM delivery_agents WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	countAgentsSQL = `SELECT count(*) FROM delivery_agents WHERE ($1 = '' OR status = $1)`

	insertAgentSQL = `INSERT INTO delivery_agents (id, user_id, name, phone, zone_id, status, available, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	updateAgentSQL = `UPDATE delivery_agents
		SET name = $2, phone = $3, zone_id = $4, status = $5, available = $6,
		    total_deliveries = $7, successful_deliveries = $8,
		    avg_delivery_minutes = $9, on_time_rate = $10, version = version + 1
		WHERE id = $1 AND version = $11
		RETURNING version`

	zoneColumns = `id, name, fee, free_above, min_days, max_days, active`

	getZoneSQL = `SELECT ` + zoneColumns + ` FROM delivery_zones WHERE id = $1`

	listZonesSQL = `SELECT ` + zoneColumns + ` FROM delivery_zones ORDER BY name`

	insertZoneSQL = `INSERT INTO delivery_zones (id, name, fee, free_above, min_days, max_days, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	upsertZoneSQL = `INSERT INTO delivery_zones (id, name, fee, free_above, min_days, max_days, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, fee = EXCLUDED.fee, free_above = EXCLUDED.free_above,
		    min_days = EXCLUDED.min_days, max_days = EXCLUDED.max_days, active = EXCLUDED.active`

	updateZoneSQL = `UPDATE delivery_zones
		SET name = $2, fee = $3, free_above = $4, min_days = $5, max_days = $6, active = $7
		WHERE id = $1`
)

var (
	_ delivery.AgentRepository = (*AgentRepository)(nil)
	_ delivery.ZoneRepository  = (*ZoneRepository)(nil)
)

// AgentRepository implements delivery.AgentRepository backed by
// PostgreSQL.
type AgentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository returns an AgentRepository that uses the given pool.
func NewAgentRepository(pool *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{pool: pool}
}

// Create inserts a new agent.
func (r *AgentRepository) Create(ctx context.Context, a *delivery.Agent) error {
	_, err := r.pool.Exec(ctx, insertAgentSQL,
		a.ID, a.UserID, a.Name, a.Phone, a.ZoneID, a.Status, a.Available, a.Version, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating agent %q: %w", a.ID, err)
	}
	return nil
}

// GetByID returns a single agent.
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*delivery.Agent, error) {
	rows, err := r.pool.Query(ctx, getAgentSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting agent %q: %w", id, err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, scanAgent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, delivery.ErrAgentNotFound
		}
		return nil, fmt.Errorf("getting agent %q: %w", id, err)
	}
	return &a, nil
}

// List returns agents, optionally filtered by status.
func (r *AgentRepository) List(ctx context.Context, status delivery.AgentStatus, limit, offset int) ([]delivery.Agent, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, countAgentsSQL, string(status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting agents: %w", err)
	}

	rows, err := r.pool.Query(ctx, listAgentsSQL, string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing agents: %w", err)
	}
	agents, err := pgx.CollectRows(rows, scanAgent)
	if err != nil {
		return nil, 0, fmt.Errorf("listing agents: %w", err)
	}
	return agents, total, nil
}

// Update saves the agent under its version check and advances the version
// in place.
func (r *AgentRepository) Update(ctx context.Context, a *delivery.Agent) error {
	var version int
	err := r.pool.QueryRow(ctx, updateAgentSQL,
		a.ID, a.Name, a.Phone, a.ZoneID, a.Status, a.Available,
		a.TotalDeliveries, a.SuccessfulDeliveries,
		a.AvgDeliveryMinutes, a.OnTimeRate, a.Version,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return delivery.ErrVersionConflict
		}
		return fmt.Errorf("updating agent %q: %w", a.ID, err)
	}
	a.Version = version
	return nil
}

func scanAgent(row pgx.CollectableRow) (delivery.Agent, error) {
	var a delivery.Agent
	err := row.Scan(
		&a.ID, &a.UserID, &a.Name, &a.Phone, &a.ZoneID, &a.Status, &a.Available,
		&a.TotalDeliveries, &a.SuccessfulDeliveries, &a.AvgDeliveryMinutes,
		&a.OnTimeRate, &a.Version, &a.CreatedAt,
	)
	return a, err
}

// ZoneRepository implements delivery.ZoneRepository backed by PostgreSQL.
type ZoneRepository struct {
	pool *pgxpool.Pool
}

// NewZoneRepository returns a ZoneRepository that uses the given pool.
func NewZoneRepository(pool *pgxpool.Pool) *ZoneRepository {
	return &ZoneRepository{pool: pool}
}

// Create inserts a new zone.
func (r *ZoneRepository) Create(ctx context.Context, z *delivery.Zone) error {
	_, err := r.pool.Exec(ctx, insertZoneSQL,
		z.ID, z.Name, z.Fee, z.FreeAbove, z.MinDays, z.MaxDays, z.Active,
	)
	if err != nil {
		return fmt.Errorf("creating zone %q: %w", z.ID, err)
	}
	return nil
}

// Upsert inserts or replaces a zone by id. Used by the seed tool.
func (r *ZoneRepository) Upsert(ctx context.Context, z *delivery.Zone) error {
	_, err := r.pool.Exec(ctx, upsertZoneSQL,
		z.ID, z.Name, z.Fee, z.FreeAbove, z.MinDays, z.MaxDays, z.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting zone %q: %w", z.ID, err)
	}
	return nil
}

// GetByID returns a single zone.
func (r *ZoneRepository) GetByID(ctx context.Context, id string) (*delivery.Zone, error) {
	rows, err := r.pool.Query(ctx, getZoneSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting zone %q: %w", id, err)
	}

	z, err := pgx.CollectExactlyOneRow(rows, scanZone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, delivery.ErrZoneNotFound
		}
		return nil, fmt.Errorf("getting zone %q: %w", id, err)
	}
	return &z, nil
}

// List returns all zones ordered by name.
func (r *ZoneRepository) List(ctx context.Context) ([]delivery.Zone, error) {
	rows, err := r.pool.Query(ctx, listZonesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing zones: %w", err)
	}
	return pgx.CollectRows(rows, scanZone)
}

// Update saves zone fields.
func (r *ZoneRepository) Update(ctx context.Context, z *delivery.Zone) error {
	tag, err := r.pool.Exec(ctx, updateZoneSQL,
		z.ID, z.Name, z.Fee, z.FreeAbove, z.MinDays, z.MaxDays, z.Active,
	)
	if err != nil {
		return fmt.Errorf("updating zone %q: %w", z.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return delivery.ErrZoneNotFound
	}
	return nil
}

func scanZone(row pgx.CollectableRow) (delivery.Zone, error) {
	var z delivery.Zone
	err := row.Scan(&z.ID, &z.Name, &z.Fee, &z.FreeAbove, &z.MinDays, &z.MaxDays, &z.Active)
	return z, err
}
