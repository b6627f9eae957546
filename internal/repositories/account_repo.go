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

var ErrNotFound = errors.New("not found")

const accountColumns = `id, name, business_account_id, access_token, last_sync_at, last_sync_error,
	needs_reauth, needs_configuration, active, created_at, updated_at`

type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (name, business_account_id, access_token, active)
	          VALUES ($1, $2, $3, TRUE)
	          RETURNING id, active, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, account.Name, account.BusinessAccountID, account.AccessToken).
		Scan(&account.ID, &account.Active, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepository) ListActive(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE active ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

func (r *PostgresAccountRepository) UpdateCredential(ctx context.Context, id uuid.UUID, token string) error {
	return r.exec(ctx, "update credential",
		`UPDATE accounts SET access_token = $1, updated_at = NOW() WHERE id = $2`, token, id)
}

func (r *PostgresAccountRepository) ReplaceCredential(ctx context.Context, id uuid.UUID, token string) error {
	return r.exec(ctx, "replace credential",
		`UPDATE accounts
		 SET access_token = $1, needs_reauth = FALSE, needs_configuration = FALSE,
		     last_sync_error = NULL, updated_at = NOW()
		 WHERE id = $2`, token, id)
}

func (r *PostgresAccountRepository) RecordSyncSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.exec(ctx, "record sync success",
		`UPDATE accounts
		 SET last_sync_at = $1, last_sync_error = NULL, needs_reauth = FALSE,
		     needs_configuration = FALSE, updated_at = NOW()
		 WHERE id = $2`, at, id)
}

func (r *PostgresAccountRepository) RecordSyncFailure(ctx context.Context, id uuid.UUID, failure SyncFailure) error {
	return r.exec(ctx, "record sync failure",
		`UPDATE accounts
		 SET last_sync_error = $1,
		     needs_reauth = needs_reauth OR $2,
		     needs_configuration = needs_configuration OR $3,
		     updated_at = NOW()
		 WHERE id = $4`, failure.Message, failure.NeedsReauth, failure.NeedsConfiguration, id)
}

// ClearConfigurationBlocks unblocks accounts that have a stored credential.
// Accounts without one stay blocked until a credential is registered.
func (r *PostgresAccountRepository) ClearConfigurationBlocks(ctx context.Context) (int, error) {
	result, err := r.pool.Exec(ctx,
		`UPDATE accounts SET needs_configuration = FALSE, updated_at = NOW()
		 WHERE needs_configuration AND access_token <> ''`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear configuration blocks: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func (r *PostgresAccountRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "deactivate account",
		`UPDATE accounts SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
}

func (r *PostgresAccountRepository) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.BusinessAccountID,
		&account.AccessToken,
		&account.LastSyncAt,
		&account.LastSyncError,
		&account.NeedsReauth,
		&account.NeedsConfiguration,
		&account.Active,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
