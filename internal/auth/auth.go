package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mspace-gateway/internal/persistence"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthenticated rejects a request before any ledger or provider
// interaction.
var ErrUnauthenticated = errors.New("not authenticated")

const keyPrefixLen = 8

type Account struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	APIKeyHash string    `json:"-"`
}

type Service struct {
	db     *persistence.PostgresDB
	logger *zap.Logger
}

func NewService(db *persistence.PostgresDB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// CreateAccount registers an account with a bcrypt-hashed API key. The key
// prefix is stored in clear so authentication can find the row before
// comparing the hash.
func (a *Service) CreateAccount(ctx context.Context, name, apiKey string) (*Account, error) {
	if len(apiKey) < keyPrefixLen {
		return nil, fmt.Errorf("api key too short")
	}

	hashedKey, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash API key: %w", err)
	}

	account := &Account{
		ID:         uuid.New(),
		Name:       name,
		APIKeyHash: string(hashedKey),
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, api_key_prefix, api_key_hash) VALUES ($1, $2, $3, $4)`,
		account.ID, account.Name, apiKey[:keyPrefixLen], account.APIKeyHash)
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	// Every account starts with an empty credit row; top-ups are a
	// separate ledger operation.
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO user_credits (account_id, credits_remaining, credits_used, credits_total)
		 VALUES ($1, 0, 0, 0)`, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert credit record: %w", err)
	}

	return account, nil
}

// Authenticate resolves an API key to its account.
func (a *Service) Authenticate(ctx context.Context, apiKey string) (*Account, error) {
	if len(apiKey) < keyPrefixLen {
		return nil, ErrUnauthenticated
	}

	var account Account
	err := a.db.QueryRowContext(ctx,
		`SELECT id, name, api_key_hash FROM accounts WHERE api_key_prefix = $1`,
		apiKey[:keyPrefixLen]).
		Scan(&account.ID, &account.Name, &account.APIKeyHash)
	if err == sql.ErrNoRows {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(account.APIKeyHash), []byte(apiKey)) != nil {
		return nil, ErrUnauthenticated
	}

	return &account, nil
}

// RequireAPIKey authenticates the X-API-Key header and stashes the account
// in the request context.
func (a *Service) RequireAPIKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		account, err := a.Authenticate(c.Context(), c.Get("X-API-Key"))
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				a.logger.Error("authentication lookup failed", zap.Error(err))
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "invalid API key",
			})
		}

		c.Locals("account", account)
		return c.Next()
	}
}

func AccountFromContext(c *fiber.Ctx) (*Account, error) {
	account, ok := c.Locals("account").(*Account)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return account, nil
}
