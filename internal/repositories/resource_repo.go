package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prudhvinik1/numberwatch/internal/models"
)

const resourceColumns = `id, account_id, external_id, display_id, verified_name, quality_rating,
	throughput_tier, connection_status, last_verified_at, raw_detail, monitoring_enabled,
	created_at, updated_at`

type PostgresResourceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresResourceRepository(pool *pgxpool.Pool) *PostgresResourceRepository {
	return &PostgresResourceRepository{pool: pool}
}

func (r *PostgresResourceRepository) GetByExternalID(ctx context.Context, externalID string) (*models.PhoneResource, error) {
	query := `SELECT ` + resourceColumns + ` FROM phone_resources WHERE external_id = $1`

	resource, err := scanResource(r.pool.QueryRow(ctx, query, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource by external id: %w", err)
	}
	return resource, nil
}

func (r *PostgresResourceRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.PhoneResource, error) {
	query := `SELECT ` + resourceColumns + `
	          FROM phone_resources
	          WHERE account_id = $1
	          ORDER BY display_id ASC`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	var resources []*models.PhoneResource
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resources: %w", err)
	}
	return resources, nil
}

// Upsert is a single statement so concurrent syncs of the same account cannot
// both insert. On conflict only descriptive fields are refreshed; tracked enums
// keep their stored values and are scanned back into r.
func (r *PostgresResourceRepository) Upsert(ctx context.Context, res *models.PhoneResource) (bool, error) {
	query := `INSERT INTO phone_resources (account_id, external_id, display_id, verified_name,
	              quality_rating, throughput_tier, connection_status, last_verified_at, raw_detail, monitoring_enabled)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
	          ON CONFLICT (external_id) DO UPDATE
	          SET display_id = EXCLUDED.display_id,
	              verified_name = EXCLUDED.verified_name,
	              updated_at = NOW()
	          RETURNING id, quality_rating, throughput_tier, connection_status, last_verified_at,
	                    raw_detail, monitoring_enabled, created_at, updated_at, (xmax = 0) AS created`

	var created bool
	err := r.pool.QueryRow(ctx, query,
		res.AccountID,
		res.ExternalID,
		res.DisplayID,
		res.VerifiedName,
		res.QualityRating,
		res.ThroughputTier,
		res.ConnectionStatus,
		res.LastVerifiedAt,
		rawOrEmpty(res.RawDetail),
	).Scan(
		&res.ID,
		&res.QualityRating,
		&res.ThroughputTier,
		&res.ConnectionStatus,
		&res.LastVerifiedAt,
		&res.RawDetail,
		&res.MonitoringEnabled,
		&res.CreatedAt,
		&res.UpdatedAt,
		&created,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert resource: %w", err)
	}
	return created, nil
}

func (r *PostgresResourceRepository) Touch(ctx context.Context, res *models.PhoneResource) error {
	query := `UPDATE phone_resources
	          SET last_verified_at = $1, raw_detail = $2, display_id = $3, verified_name = $4, updated_at = NOW()
	          WHERE id = $5
	          RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		res.LastVerifiedAt,
		rawOrEmpty(res.RawDetail),
		res.DisplayID,
		res.VerifiedName,
		res.ID,
	).Scan(&res.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to touch resource: %w", err)
	}
	return nil
}

func (r *PostgresResourceRepository) ApplyChange(ctx context.Context, change *ResourceChange) (int, error) {
	if change.Snapshot == nil || !change.Snapshot.HasChange() {
		return 0, errors.New("resource change requires a snapshot with at least one change")
	}

	inserted := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		res := change.Resource
		result, err := tx.Exec(ctx,
			`UPDATE phone_resources
			 SET quality_rating = $1, throughput_tier = $2, connection_status = $3, display_id = $4,
			     verified_name = $5, last_verified_at = $6, raw_detail = $7, updated_at = NOW()
			 WHERE id = $8`,
			res.QualityRating, res.ThroughputTier, res.ConnectionStatus, res.DisplayID,
			res.VerifiedName, res.LastVerifiedAt, rawOrEmpty(res.RawDetail), res.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update resource: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrNotFound
		}

		if err := insertSnapshot(ctx, tx, change.Snapshot); err != nil {
			return err
		}

		for _, alert := range change.Alerts {
			ok, err := insertAlert(ctx, tx, alert)
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}

		for _, alert := range change.Resolved {
			if _, err := tx.Exec(ctx,
				`UPDATE alerts SET resolved = TRUE, resolved_at = $1, resolved_by = $2, resolution = $3
				 WHERE id = $4 AND NOT resolved`,
				alert.ResolvedAt, alert.ResolvedBy, alert.Resolution, alert.ID,
			); err != nil {
				return fmt.Errorf("failed to resolve alert: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *PostgresResourceRepository) SetMonitoring(ctx context.Context, id uuid.UUID, enabled bool) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE phone_resources SET monitoring_enabled = $1, updated_at = NOW() WHERE id = $2`, enabled, id)
	if err != nil {
		return fmt.Errorf("failed to set monitoring: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func insertSnapshot(ctx context.Context, tx pgx.Tx, s *models.HistorySnapshot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	query := `INSERT INTO history_snapshots (id, resource_id, quality_rating, throughput_tier, connection_status,
	              previous_quality_rating, previous_throughput_tier, previous_connection_status,
	              quality_changed, tier_changed, status_changed, captured_at, raw_detail)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		s.ID, s.ResourceID, s.QualityRating, s.ThroughputTier, s.ConnectionStatus,
		s.PreviousQualityRating, s.PreviousThroughputTier, s.PreviousConnectionStatus,
		s.QualityChanged, s.TierChanged, s.StatusChanged, s.CapturedAt, rawOrEmpty(s.RawDetail),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history snapshot: %w", err)
	}
	return nil
}

// insertAlert reports false when an alert of the same type already exists for the snapshot.
func insertAlert(ctx context.Context, tx pgx.Tx, a *models.Alert) (bool, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	query := `INSERT INTO alerts (id, resource_id, snapshot_id, alert_type, priority, title, description,
	              previous_value, current_value)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (snapshot_id, alert_type) DO NOTHING
	          RETURNING created_at`

	err := tx.QueryRow(ctx, query,
		a.ID, a.ResourceID, a.SnapshotID, a.Type, a.Priority, a.Title, a.Description,
		a.PreviousValue, a.CurrentValue,
	).Scan(&a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}
	return true, nil
}

func scanResource(row pgx.Row) (*models.PhoneResource, error) {
	var res models.PhoneResource
	err := row.Scan(
		&res.ID,
		&res.AccountID,
		&res.ExternalID,
		&res.DisplayID,
		&res.VerifiedName,
		&res.QualityRating,
		&res.ThroughputTier,
		&res.ConnectionStatus,
		&res.LastVerifiedAt,
		&res.RawDetail,
		&res.MonitoringEnabled,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func rawOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}
