package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prudhvinik1/numberwatch/internal/models"
)

// auditChainLock is the transaction-scoped advisory lock that serializes
// appends across every process writing to the chain.
const auditChainLock int64 = 0x6e77617564697400

const auditColumns = `id, actor_id, action, resource, success, COALESCE(ip_address, ''), detail,
	occurred_at, prev_hash, hash`

// PostgresAuditRepository is append-only: there is no update or delete.
type PostgresAuditRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAuditRepository(pool *pgxpool.Pool) *PostgresAuditRepository {
	return &PostgresAuditRepository{pool: pool}
}

// AppendLinked links event to the stored tail and inserts it in one transaction.
// seq gives the append order independently of the writers' clocks.
func (r *PostgresAuditRepository) AppendLinked(ctx context.Context, event *models.AuditEvent, seal func(*models.AuditEvent) (string, error)) error {
	detail := event.Detail
	if detail == nil {
		detail = map[string]any{}
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, auditChainLock); err != nil {
			return fmt.Errorf("failed to lock audit chain: %w", err)
		}

		var prev string
		err := tx.QueryRow(ctx, `SELECT hash FROM audit_events ORDER BY seq DESC LIMIT 1`).Scan(&prev)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to read audit chain tail: %w", err)
		}

		event.PrevHash = prev
		hash, err := seal(event)
		if err != nil {
			return err
		}
		event.Hash = hash

		_, err = tx.Exec(ctx,
			`INSERT INTO audit_events (id, actor_id, action, resource, success, ip_address, detail,
			     occurred_at, prev_hash, hash)
			 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)`,
			event.ID,
			event.ActorID,
			event.Action,
			event.Resource,
			event.Success,
			event.IPAddress,
			detail,
			event.OccurredAt,
			event.PrevHash,
			event.Hash,
		)
		if err != nil {
			return fmt.Errorf("failed to append audit event: %w", err)
		}
		return nil
	})
}

// ListChain returns events in append order, starting at the first event that
// occurred at or after since. Everything appended after that event is included
// even if a writer's clock lagged.
func (r *PostgresAuditRepository) ListChain(ctx context.Context, since time.Time) ([]models.AuditEvent, error) {
	query := `SELECT ` + auditColumns + `
	          FROM audit_events
	          WHERE seq >= (SELECT MIN(seq) FROM audit_events WHERE occurred_at >= $1)
	          ORDER BY seq ASC`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit chain: %w", err)
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Resource, &e.Success, &e.IPAddress,
			&e.Detail, &e.OccurredAt, &e.PrevHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.OccurredAt = e.OccurredAt.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}
