package accountstore

import (
	"context"
	"errors"
	"time"
)

// Account is a locally registered user identity.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// PublicAccount is the projection safe to hand to callers; it never carries the password hash.
type PublicAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public strips the password hash from an account record.
func (account Account) Public() PublicAccount {
	return PublicAccount{
		ID:        account.ID,
		Username:  account.Username,
		Email:     account.Email,
		CreatedAt: account.CreatedAt,
	}
}

var (
	// ErrAccountNotFound indicates no account matched the lookup key.
	ErrAccountNotFound = errors.New("account_store.not_found")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("account_store.email_taken")
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("account_store.username_taken")
)

// AccountStore persists and retrieves local accounts. Email and username are both
// unique; Create reports which one collided.
type AccountStore interface {
	Create(ctx context.Context, username string, email string, passwordHash string) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByUsername(ctx context.Context, username string) (Account, error)
	FindByID(ctx context.Context, accountID string) (Account, error)
	ListAccounts(ctx context.Context) ([]PublicAccount, error)
}
