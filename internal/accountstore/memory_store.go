package accountstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryAccountStore is an in-memory store intended for tests and local runs.
type MemoryAccountStore struct {
	mutex      sync.Mutex
	byID       map[string]Account
	byEmail    map[string]string
	byUsername map[string]string
}

// NewMemoryAccountStore creates an empty in-memory account store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		byID:       make(map[string]Account),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

// Create inserts a new account, enforcing email and username uniqueness.
func (store *MemoryAccountStore) Create(ctx context.Context, username string, email string, passwordHash string) (Account, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if _, exists := store.byEmail[email]; exists {
		return Account{}, ErrEmailTaken
	}
	if _, exists := store.byUsername[username]; exists {
		return Account{}, ErrUsernameTaken
	}
	account := Account{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	store.byID[account.ID] = account
	store.byEmail[email] = account.ID
	store.byUsername[username] = account.ID
	return account, nil
}

// FindByEmail locates an account by its email.
func (store *MemoryAccountStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	accountID, exists := store.byEmail[email]
	if !exists {
		return Account{}, ErrAccountNotFound
	}
	return store.byID[accountID], nil
}

// FindByUsername locates an account by its username.
func (store *MemoryAccountStore) FindByUsername(ctx context.Context, username string) (Account, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	accountID, exists := store.byUsername[username]
	if !exists {
		return Account{}, ErrAccountNotFound
	}
	return store.byID[accountID], nil
}

// FindByID locates an account by its identifier.
func (store *MemoryAccountStore) FindByID(ctx context.Context, accountID string) (Account, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	account, exists := store.byID[accountID]
	if !exists {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

// ListAccounts returns the public projection of every account ordered by creation time.
func (store *MemoryAccountStore) ListAccounts(ctx context.Context) ([]PublicAccount, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	accounts := make([]PublicAccount, 0, len(store.byID))
	for _, account := range store.byID {
		accounts = append(accounts, account.Public())
	}
	sort.Slice(accounts, func(left int, right int) bool {
		if accounts[left].CreatedAt.Equal(accounts[right].CreatedAt) {
			return accounts[left].Username < accounts[right].Username
		}
		return accounts[left].CreatedAt.Before(accounts[right].CreatedAt)
	})
	return accounts, nil
}
