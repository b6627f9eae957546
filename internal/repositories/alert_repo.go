package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prudhvinik1/numberwatch/internal/models"
)

var ErrAlreadyResolved = errors.New("alert already resolved")

const alertColumns = `a.id, a.resource_id, a.snapshot_id, a.alert_type, a.priority, a.title, a.description,
	a.previous_value, a.current_value, a.resolved, a.resolved_at, a.resolved_by, a.resolution, a.created_at`

type PostgresAlertRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAlertRepository(pool *pgxpool.Pool) *PostgresAlertRepository {
	return &PostgresAlertRepository{pool: pool}
}

func (r *PostgresAlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts a WHERE a.id = $1`

	alert, err := scanAlert(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

func (r *PostgresAlertRepository) ListOpenByResource(ctx context.Context, resourceID uuid.UUID) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + `
	          FROM alerts a
	          WHERE a.resource_id = $1 AND NOT a.resolved
	          ORDER BY a.created_at ASC`
	return r.list(ctx, query, resourceID)
}

func (r *PostgresAlertRepository) ListOpenByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + `
	          FROM alerts a
	          JOIN phone_resources p ON p.id = a.resource_id
	          WHERE p.account_id = $1 AND NOT a.resolved
	          ORDER BY a.created_at DESC`
	return r.list(ctx, query, accountID)
}

func (r *PostgresAlertRepository) Resolve(ctx context.Context, id uuid.UUID, resolvedBy *string, note string, at time.Time) error {
	query := `UPDATE alerts
	          SET resolved = TRUE, resolved_at = $1, resolved_by = $2, resolution = $3
	          WHERE id = $4 AND NOT resolved`

	result, err := r.pool.Exec(ctx, query, at, resolvedBy, note, id)
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyResolved
	}
	return nil
}

func (r *PostgresAlertRepository) list(ctx context.Context, query string, arg uuid.UUID) ([]*models.Alert, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var a models.Alert
	err := row.Scan(
		&a.ID,
		&a.ResourceID,
		&a.SnapshotID,
		&a.Type,
		&a.Priority,
		&a.Title,
		&a.Description,
		&a.PreviousValue,
		&a.CurrentValue,
		&a.Resolved,
		&a.ResolvedAt,
		&a.ResolvedBy,
		&a.Resolution,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
