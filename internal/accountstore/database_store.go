package accountstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("account_store.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("account_store.empty_database_url")
	errSQLiteEmptyPath     = errors.New("account_store.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("account_store.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("account_store.unsupported_no_scheme")
)

// DatabaseAccountStore persists accounts using GORM.
type DatabaseAccountStore struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (store *DatabaseAccountStore) Driver() string {
	return store.driverLabel
}

type accountRecord struct {
	AccountID    string `gorm:"column:account_id;primaryKey"`
	Username     string `gorm:"column:username;uniqueIndex;not null"`
	Email        string `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	CreatedUnix  int64  `gorm:"column:created_unix;not null"`
}

func (accountRecord) TableName() string {
	return "accounts"
}

func (record accountRecord) toAccount() Account {
	return Account{
		ID:           record.AccountID,
		Username:     record.Username,
		Email:        record.Email,
		PasswordHash: record.PasswordHash,
		CreatedAt:    time.Unix(record.CreatedUnix, 0).UTC(),
	}
}

// NewDatabaseAccountStore constructs a GORM-backed store from a database URL.
func NewDatabaseAccountStore(ctx context.Context, databaseURL string) (*DatabaseAccountStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("account_store.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("account_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&accountRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("account_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseAccountStore{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// Create inserts a new account after checking both uniqueness constraints.
func (store *DatabaseAccountStore) Create(ctx context.Context, username string, email string, passwordHash string) (Account, error) {
	if _, findErr := store.FindByEmail(ctx, email); findErr == nil {
		return Account{}, fmt.Errorf("account_store.create.%s: %w", store.driverLabel, ErrEmailTaken)
	} else if !errors.Is(findErr, ErrAccountNotFound) {
		return Account{}, findErr
	}
	if _, findErr := store.FindByUsername(ctx, username); findErr == nil {
		return Account{}, fmt.Errorf("account_store.create.%s: %w", store.driverLabel, ErrUsernameTaken)
	} else if !errors.Is(findErr, ErrAccountNotFound) {
		return Account{}, findErr
	}

	record := accountRecord{
		AccountID:    uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedUnix:  time.Now().UTC().Unix(),
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		// The pre-checks race with concurrent signups; the unique indexes are the
		// authoritative guard and a violation still maps to a conflict.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Account{}, fmt.Errorf("account_store.create.%s: %w", store.driverLabel, ErrEmailTaken)
		}
		return Account{}, fmt.Errorf("account_store.create.%s: %w", store.driverLabel, err)
	}
	return record.toAccount(), nil
}

// FindByEmail locates an account by its email.
func (store *DatabaseAccountStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	return store.findOne(ctx, "email = ?", email)
}

// FindByUsername locates an account by its username.
func (store *DatabaseAccountStore) FindByUsername(ctx context.Context, username string) (Account, error) {
	return store.findOne(ctx, "username = ?", username)
}

// FindByID locates an account by its identifier.
func (store *DatabaseAccountStore) FindByID(ctx context.Context, accountID string) (Account, error) {
	return store.findOne(ctx, "account_id = ?", accountID)
}

func (store *DatabaseAccountStore) findOne(ctx context.Context, query string, argument string) (Account, error) {
	var record accountRecord
	err := store.db.WithContext(ctx).Where(query, argument).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Account{}, fmt.Errorf("account_store.find.%s: %w", store.driverLabel, ErrAccountNotFound)
		}
		return Account{}, fmt.Errorf("account_store.find.%s: %w", store.driverLabel, err)
	}
	return record.toAccount(), nil
}

// ListAccounts returns the public projection of every account.
func (store *DatabaseAccountStore) ListAccounts(ctx context.Context) ([]PublicAccount, error) {
	var records []accountRecord
	if err := store.db.WithContext(ctx).Order("created_unix asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("account_store.list.%s: %w", store.driverLabel, err)
	}
	accounts := make([]PublicAccount, 0, len(records))
	for _, record := range records {
		accounts = append(accounts, record.toAccount().Public())
	}
	return accounts, nil
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("account_store.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("account_store.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("account_store.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("account_store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
