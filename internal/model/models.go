// Package model defines the data models for the Discord claim bot.
package model

import "time"

// Tier identifies a card rarity tier. The integer value is the index
// into per-tier counter arrays and must stay stable.
type Tier int

// Card tiers, ordered by index.
const (
	TierCT Tier = iota
	TierRT
	TierSRT
	TierSSRT
	TierURT
	TierEXT

	// TierCount is the number of known tiers.
	TierCount = 6
)

var tierNames = [TierCount]string{"CT", "RT", "SRT", "SSRT", "URT", "EXT"}

// String returns the tier code as it appears in claim embeds.
func (t Tier) String() string {
	if t < 0 || int(t) >= TierCount {
		return "UNKNOWN"
	}
	return tierNames[t]
}

// Valid reports whether the tier is one of the six known codes.
func (t Tier) Valid() bool {
	return t >= 0 && int(t) < TierCount
}

// ParseTier maps a tier code from an embed to a Tier.
// Unknown codes return ok=false; callers filter those events out.
func ParseTier(code string) (Tier, bool) {
	for i, name := range tierNames {
		if name == code {
			return Tier(i), true
		}
	}
	return 0, false
}

// Capacity limits for aggregate claim lists and balances.
const (
	TierListCapacity   = 24    // per-tier bounded claim history
	ManualListCapacity = 48    // manual claim history
	BalanceCeiling     = 30000 // hard cap on token balances
)

// ClaimRecord is a structured claim parsed from a card-bot embed.
// Immutable once persisted.
type ClaimRecord struct {
	ClaimedID   string    `db:"claimed_id"` // card instance code from the embed image
	UserID      string    `db:"user_id"`    // resolved Discord user ID of the claimer
	GuildID     string    `db:"guild_id"`
	CardName    string    `db:"card_name"`
	CardID      int64     `db:"card_id"`
	Owner       string    `db:"owner"`
	Artist      string    `db:"artist"`
	PrintNumber int       `db:"print_number"`
	Tier        Tier      `db:"tier"`
	ClaimedAt   time.Time `db:"claimed_at"`
	Manual      bool      `db:"manual"`
}

// TierCounts holds the per-tier claim counters of an aggregate.
type TierCounts [TierCount]int64

// Total returns the sum over all tiers.
func (c TierCounts) Total() int64 {
	var total int64
	for _, n := range c {
		total += n
	}
	return total
}

// PlayerStats is the per-(user, guild) aggregate view.
type PlayerStats struct {
	UserID  string     `db:"user_id"`
	GuildID string     `db:"guild_id"`
	Counts  TierCounts `db:"-"`
}

// GuildStats mirrors PlayerStats at guild scope for leaderboard reads.
type GuildStats struct {
	GuildID string     `db:"guild_id"`
	Counts  TierCounts `db:"-"`
}

// Balance is a capped per-user token balance.
type Balance struct {
	UserID    string    `db:"user_id"`
	Amount    int64     `db:"balance"`
	UpdatedAt time.Time `db:"updated_at"`
}
