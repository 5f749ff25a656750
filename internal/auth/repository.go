package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guild-portal/backend/internal/models"
	"github.com/guild-portal/backend/pkg/database"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already registered")
)

// Repository handles account persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an account repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, email, password_hash, full_name, role, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	var role string
	if err := row.Scan(&a.ID, &a.Email, &a.Password, &a.FullName, &role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	a.Role = models.Role(role)
	return &a, nil
}

// GetByID returns an account by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// GetByEmail returns an account by email (case-insensitive).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email))
}

// List returns the roster ordered by name, for picking eligible voters.
func (r *Repository) List(ctx context.Context) ([]models.AccountPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, full_name, role, created_at FROM accounts ORDER BY full_name, email`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	list := []models.AccountPublic{}
	for rows.Next() {
		var a models.AccountPublic
		var role string
		if err := rows.Scan(&a.ID, &a.Email, &a.FullName, &role, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Role = models.Role(role)
		list = append(list, a)
	}
	return list, rows.Err()
}

// Create inserts a new account. The email is stored normalized; a case
// variant of an existing address is ErrEmailTaken.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.Account, error) {
	email = NormalizeEmail(email)
	const q = `INSERT INTO accounts (email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + accountColumns
	a, err := scanAccount(r.pool.QueryRow(ctx, q, email, passwordHash, fullName, string(role)))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}
