// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"discord-claim-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrPlayerNotFound = errors.New("player not found")
)

// PlayerRepository handles per-(user, guild) claim aggregate persistence.
type PlayerRepository struct {
	pool *pgxpool.Pool
}

// NewPlayerRepository creates a new PlayerRepository instance.
func NewPlayerRepository(pool *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

// EnsureExists creates the player aggregate row if absent, with zeroed
// counters. Safe to call concurrently.
func (r *PlayerRepository) EnsureExists(ctx context.Context, userID, guildID string) error {
	const query = `
		INSERT INTO players (user_id, guild_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id, guild_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, userID, guildID); err != nil {
		return fmt.Errorf("failed to ensure player: %w", err)
	}
	return nil
}

// AppendClaim appends a claim to the player's tier list and increments
// the tier counter, in one transaction, only if no claim with the same
// (claimed_id, card_id, claimed_at) is already recorded for the player.
// The tier list is bounded to model.TierListCapacity; the oldest entry
// beyond capacity is evicted. Returns false when the claim was already
// recorded, which is a normal outcome, not an error.
func (r *PlayerRepository) AppendClaim(ctx context.Context, rec *model.ClaimRecord) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertQuery = `
		INSERT INTO player_claims
			(user_id, guild_id, tier, claimed_id, card_id, card_name, owner, artist, print_number, manual, claimed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, NOW())
		ON CONFLICT (user_id, guild_id, claimed_id, card_id, claimed_at) DO NOTHING
	`
	result, err := tx.Exec(ctx, insertQuery,
		rec.UserID, rec.GuildID, int16(rec.Tier), rec.ClaimedID, rec.CardID,
		rec.CardName, rec.Owner, rec.Artist, rec.PrintNumber, rec.ClaimedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert claim: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Duplicate; leave counters untouched
		return false, nil
	}

	const countQuery = `
		INSERT INTO player_tier_counts (user_id, guild_id, tier, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id, guild_id, tier)
		DO UPDATE SET count = player_tier_counts.count + 1
	`
	if _, err := tx.Exec(ctx, countQuery, rec.UserID, rec.GuildID, int16(rec.Tier)); err != nil {
		return false, fmt.Errorf("failed to increment tier count: %w", err)
	}

	const evictQuery = `
		DELETE FROM player_claims
		WHERE id IN (
			SELECT id FROM player_claims
			WHERE user_id = $1 AND guild_id = $2 AND tier = $3 AND NOT manual
			ORDER BY claimed_at DESC, id DESC
			OFFSET $4
		)
	`
	if _, err := tx.Exec(ctx, evictQuery, rec.UserID, rec.GuildID, int16(rec.Tier), model.TierListCapacity); err != nil {
		return false, fmt.Errorf("failed to evict old claims: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit claim: %w", err)
	}
	return true, nil
}

// AppendManualClaim appends to the player's manual claim list, bounded
// to model.ManualListCapacity. Manual claims live outside the tier
// lists and do not touch the tier counters. Same idempotency contract
// as AppendClaim.
func (r *PlayerRepository) AppendManualClaim(ctx context.Context, rec *model.ClaimRecord) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertQuery = `
		INSERT INTO player_claims
			(user_id, guild_id, tier, claimed_id, card_id, card_name, owner, artist, print_number, manual, claimed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10, NOW())
		ON CONFLICT (user_id, guild_id, claimed_id, card_id, claimed_at) DO NOTHING
	`
	result, err := tx.Exec(ctx, insertQuery,
		rec.UserID, rec.GuildID, int16(rec.Tier), rec.ClaimedID, rec.CardID,
		rec.CardName, rec.Owner, rec.Artist, rec.PrintNumber, rec.ClaimedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert manual claim: %w", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	const evictQuery = `
		DELETE FROM player_claims
		WHERE id IN (
			SELECT id FROM player_claims
			WHERE user_id = $1 AND guild_id = $2 AND manual
			ORDER BY claimed_at DESC, id DESC
			OFFSET $3
		)
	`
	if _, err := tx.Exec(ctx, evictQuery, rec.UserID, rec.GuildID, model.ManualListCapacity); err != nil {
		return false, fmt.Errorf("failed to evict old manual claims: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit manual claim: %w", err)
	}
	return true, nil
}

// GetStats returns the player's per-tier claim counters.
// Returns ErrPlayerNotFound if the aggregate does not exist.
func (r *PlayerRepository) GetStats(ctx context.Context, userID, guildID string) (*model.PlayerStats, error) {
	const existsQuery = `SELECT EXISTS(SELECT 1 FROM players WHERE user_id = $1 AND guild_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, existsQuery, userID, guildID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check player existence: %w", err)
	}
	if !exists {
		return nil, ErrPlayerNotFound
	}

	const countsQuery = `
		SELECT tier, count FROM player_tier_counts
		WHERE user_id = $1 AND guild_id = $2
	`
	rows, err := r.pool.Query(ctx, countsQuery, userID, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tier counts: %w", err)
	}
	defer rows.Close()

	stats := &model.PlayerStats{UserID: userID, GuildID: guildID}
	for rows.Next() {
		var tier int16
		var count int64
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, fmt.Errorf("failed to scan tier count: %w", err)
		}
		if tier >= 0 && int(tier) < model.TierCount {
			stats.Counts[tier] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tier counts: %w", err)
	}

	return stats, nil
}

// GetClaims returns the player's bounded claim list for one tier,
// newest first.
func (r *PlayerRepository) GetClaims(ctx context.Context, userID, guildID string, tier model.Tier) ([]*model.ClaimRecord, error) {
	const query = `
		SELECT claimed_id, user_id, guild_id, card_name, card_id, owner, artist, print_number, tier, claimed_at, manual
		FROM player_claims
		WHERE user_id = $1 AND guild_id = $2 AND tier = $3 AND NOT manual
		ORDER BY claimed_at DESC, id DESC
	`
	return r.queryClaims(ctx, query, userID, guildID, int16(tier))
}

// GetManualClaims returns the player's manual claim list, newest first.
func (r *PlayerRepository) GetManualClaims(ctx context.Context, userID, guildID string) ([]*model.ClaimRecord, error) {
	const query = `
		SELECT claimed_id, user_id, guild_id, card_name, card_id, owner, artist, print_number, tier, claimed_at, manual
		FROM player_claims
		WHERE user_id = $1 AND guild_id = $2 AND manual
		ORDER BY claimed_at DESC, id DESC
	`
	return r.queryClaims(ctx, query, userID, guildID)
}

func (r *PlayerRepository) queryClaims(ctx context.Context, query string, args ...any) ([]*model.ClaimRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get claims: %w", err)
	}
	defer rows.Close()

	var claims []*model.ClaimRecord
	for rows.Next() {
		var rec model.ClaimRecord
		var tier int16
		err := rows.Scan(
			&rec.ClaimedID,
			&rec.UserID,
			&rec.GuildID,
			&rec.CardName,
			&rec.CardID,
			&rec.Owner,
			&rec.Artist,
			&rec.PrintNumber,
			&tier,
			&rec.ClaimedAt,
			&rec.Manual,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		rec.Tier = model.Tier(tier)
		claims = append(claims, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claims: %w", err)
	}

	return claims, nil
}

// Exists checks if a player aggregate exists.
func (r *PlayerRepository) Exists(ctx context.Context, userID, guildID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM players WHERE user_id = $1 AND guild_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, guildID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check player existence: %w", err)
	}
	return exists, nil
}
