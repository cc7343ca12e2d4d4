package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"discord-claim-bot/internal/model"
)

// GuildRepository handles the per-guild claim aggregate that mirrors
// the player aggregates for leaderboard reads. It carries the same
// conditional append-and-increment contract.
type GuildRepository struct {
	pool *pgxpool.Pool
}

// NewGuildRepository creates a new GuildRepository instance.
func NewGuildRepository(pool *pgxpool.Pool) *GuildRepository {
	return &GuildRepository{pool: pool}
}

// EnsureExists creates the guild aggregate row if absent.
func (r *GuildRepository) EnsureExists(ctx context.Context, guildID string) error {
	const query = `
		INSERT INTO guilds (guild_id, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (guild_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, guildID); err != nil {
		return fmt.Errorf("failed to ensure guild: %w", err)
	}
	return nil
}

// AppendClaim applies the conditional append-and-increment to the
// guild aggregate. Returns false when the claim was already recorded
// at guild scope.
func (r *GuildRepository) AppendClaim(ctx context.Context, rec *model.ClaimRecord) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertQuery = `
		INSERT INTO guild_claims
			(guild_id, user_id, tier, claimed_id, card_id, card_name, owner, artist, print_number, claimed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (guild_id, claimed_id, card_id, claimed_at) DO NOTHING
	`
	result, err := tx.Exec(ctx, insertQuery,
		rec.GuildID, rec.UserID, int16(rec.Tier), rec.ClaimedID, rec.CardID,
		rec.CardName, rec.Owner, rec.Artist, rec.PrintNumber, rec.ClaimedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert guild claim: %w", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	const countQuery = `
		INSERT INTO guild_tier_counts (guild_id, tier, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (guild_id, tier)
		DO UPDATE SET count = guild_tier_counts.count + 1
	`
	if _, err := tx.Exec(ctx, countQuery, rec.GuildID, int16(rec.Tier)); err != nil {
		return false, fmt.Errorf("failed to increment guild tier count: %w", err)
	}

	const evictQuery = `
		DELETE FROM guild_claims
		WHERE id IN (
			SELECT id FROM guild_claims
			WHERE guild_id = $1 AND tier = $2
			ORDER BY claimed_at DESC, id DESC
			OFFSET $3
		)
	`
	if _, err := tx.Exec(ctx, evictQuery, rec.GuildID, int16(rec.Tier), model.TierListCapacity); err != nil {
		return false, fmt.Errorf("failed to evict old guild claims: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit guild claim: %w", err)
	}
	return true, nil
}

// GetStats returns the guild's per-tier claim counters.
func (r *GuildRepository) GetStats(ctx context.Context, guildID string) (*model.GuildStats, error) {
	const query = `
		SELECT tier, count FROM guild_tier_counts
		WHERE guild_id = $1
	`
	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guild tier counts: %w", err)
	}
	defer rows.Close()

	stats := &model.GuildStats{GuildID: guildID}
	for rows.Next() {
		var tier int16
		var count int64
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, fmt.Errorf("failed to scan guild tier count: %w", err)
		}
		if tier >= 0 && int(tier) < model.TierCount {
			stats.Counts[tier] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating guild tier counts: %w", err)
	}

	return stats, nil
}
