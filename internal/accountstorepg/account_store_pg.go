package accountstorepg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tyemirov/driveboard/internal/accountstore"
)

const uniqueViolationCode = "23505"

// PostgresAccountStore persists local accounts in PostgreSQL through pgx.
type PostgresAccountStore struct {
	pool *pgxpool.Pool
}

// NewPostgresAccountStore constructs a Postgres store.
func NewPostgresAccountStore(pool *pgxpool.Pool) *PostgresAccountStore {
	return &PostgresAccountStore{pool: pool}
}

// Create inserts a new account row. Uniqueness of email and username is
// enforced by the database; a violation is mapped back to the matching
// sentinel so callers can report which field collided.
func (store *PostgresAccountStore) Create(ctx context.Context, username string, email string, passwordHash string) (accountstore.Account, error) {
	account := accountstore.Account{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO accounts (account_id, username, email, password_hash, created_at_unix)
VALUES ($1, $2, $3, $4, $5)
`, account.ID, account.Username, account.Email, account.PasswordHash, account.CreatedAt.Unix())
	if execErr != nil {
		var pgErr *pgconn.PgError
		if errors.As(execErr, &pgErr) && pgErr.Code == uniqueViolationCode {
			if pgErr.ConstraintName == "idx_accounts_username" {
				return accountstore.Account{}, fmt.Errorf("account_store.create.pgx: %w", accountstore.ErrUsernameTaken)
			}
			return accountstore.Account{}, fmt.Errorf("account_store.create.pgx: %w", accountstore.ErrEmailTaken)
		}
		return accountstore.Account{}, fmt.Errorf("account_store.create.pgx: %w", execErr)
	}
	return account, nil
}

// FindByEmail returns the account registered under the email.
func (store *PostgresAccountStore) FindByEmail(ctx context.Context, email string) (accountstore.Account, error) {
	return store.findOne(ctx, `
SELECT account_id, username, email, password_hash, created_at_unix
FROM accounts
WHERE email = $1
`, email)
}

// FindByUsername returns the account registered under the username.
func (store *PostgresAccountStore) FindByUsername(ctx context.Context, username string) (accountstore.Account, error) {
	return store.findOne(ctx, `
SELECT account_id, username, email, password_hash, created_at_unix
FROM accounts
WHERE username = $1
`, username)
}

// FindByID returns the account with the given identifier.
func (store *PostgresAccountStore) FindByID(ctx context.Context, accountID string) (accountstore.Account, error) {
	return store.findOne(ctx, `
SELECT account_id, username, email, password_hash, created_at_unix
FROM accounts
WHERE account_id = $1
`, accountID)
}

// ListAccounts returns every account's public projection, oldest first.
func (store *PostgresAccountStore) ListAccounts(ctx context.Context) ([]accountstore.PublicAccount, error) {
	rows, queryErr := store.pool.Query(ctx, `
SELECT account_id, username, email, created_at_unix
FROM accounts
ORDER BY created_at_unix ASC, username ASC
`)
	if queryErr != nil {
		return nil, fmt.Errorf("account_store.list.pgx: %w", queryErr)
	}
	defer rows.Close()

	accounts := make([]accountstore.PublicAccount, 0)
	for rows.Next() {
		var public accountstore.PublicAccount
		var createdAtUnix int64
		if scanErr := rows.Scan(&public.ID, &public.Username, &public.Email, &createdAtUnix); scanErr != nil {
			return nil, fmt.Errorf("account_store.list.pgx: %w", scanErr)
		}
		public.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		accounts = append(accounts, public)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("account_store.list.pgx: %w", rowsErr)
	}
	return accounts, nil
}

func (store *PostgresAccountStore) findOne(ctx context.Context, query string, argument any) (accountstore.Account, error) {
	var account accountstore.Account
	var createdAtUnix int64
	row := store.pool.QueryRow(ctx, query, argument)
	scanErr := row.Scan(&account.ID, &account.Username, &account.Email, &account.PasswordHash, &createdAtUnix)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return accountstore.Account{}, accountstore.ErrAccountNotFound
		}
		return accountstore.Account{}, fmt.Errorf("account_store.find.pgx: %w", scanErr)
	}
	account.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	return account, nil
}
