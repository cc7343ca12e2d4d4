package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"discord-claim-bot/internal/model"
)

// ErrBalanceNotFound is returned when no balance record exists.
var ErrBalanceNotFound = errors.New("balance not found")

// BalanceRepository handles capped token balance persistence.
type BalanceRepository struct {
	pool *pgxpool.Pool
}

// NewBalanceRepository creates a new BalanceRepository instance.
func NewBalanceRepository(pool *pgxpool.Pool) *BalanceRepository {
	return &BalanceRepository{pool: pool}
}

// EnsureExists creates a zero balance record if absent.
func (r *BalanceRepository) EnsureExists(ctx context.Context, userID string) error {
	const query = `
		INSERT INTO balances (user_id, balance, updated_at)
		VALUES ($1, 0, NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to ensure balance: %w", err)
	}
	return nil
}

// CappedIncrement credits delta to the balance, clamped so the stored
// value never exceeds model.BalanceCeiling. The delta is clamped, not
// rejected. Returns the applied amount, which may be less than delta,
// and the new balance. The record is created if absent. The row is
// locked for the read-then-update so the applied amount stays exact
// under concurrent credits to the same user.
func (r *BalanceRepository) CappedIncrement(ctx context.Context, userID string, delta int64) (applied, newBalance int64, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const ensureQuery = `
		INSERT INTO balances (user_id, balance, updated_at)
		VALUES ($1, 0, NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, ensureQuery, userID); err != nil {
		return 0, 0, fmt.Errorf("failed to ensure balance: %w", err)
	}

	const lockQuery = `SELECT balance FROM balances WHERE user_id = $1 FOR UPDATE`
	var oldBalance int64
	if err := tx.QueryRow(ctx, lockQuery, userID).Scan(&oldBalance); err != nil {
		return 0, 0, fmt.Errorf("failed to lock balance: %w", err)
	}

	const updateQuery = `
		UPDATE balances
		SET balance = LEAST($3::bigint, balance + $2::bigint), updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`
	if err := tx.QueryRow(ctx, updateQuery, userID, delta, int64(model.BalanceCeiling)).Scan(&newBalance); err != nil {
		return 0, 0, fmt.Errorf("failed to apply capped increment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit capped increment: %w", err)
	}
	return newBalance - oldBalance, newBalance, nil
}

// GetBalance returns the current balance for a user.
// Returns ErrBalanceNotFound if no record exists.
func (r *BalanceRepository) GetBalance(ctx context.Context, userID string) (*model.Balance, error) {
	const query = `
		SELECT user_id, balance, updated_at
		FROM balances
		WHERE user_id = $1
	`

	var bal model.Balance
	err := r.pool.QueryRow(ctx, query, userID).Scan(&bal.UserID, &bal.Amount, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBalanceNotFound
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return &bal, nil
}
