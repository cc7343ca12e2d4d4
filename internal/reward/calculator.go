// Package reward implements winner selection and tiered reward rolls
// for summon rounds.
package reward

import (
	"math/rand"
)

// Tier is a reward tier, ordered by evaluation precedence.
type Tier int

// Reward tiers. Rarer tiers are checked first; the first threshold the
// draw falls under wins.
const (
	TierIncredibleLuck Tier = iota
	TierRareDrop
	TierLuckyDraw
	TierCommon
)

// Draws are uniform in [0,100). Each threshold is the tier's
// probability expressed as a fraction of that range.
const (
	thresholdIncredibleLuck = 0.001 // p = 0.00001
	thresholdRareDrop       = 0.01  // p = 0.0001
	thresholdLuckyDraw      = 0.1   // p = 0.001

	payoutIncredibleLuck = 100
	payoutRareDrop       = 50
	payoutLuckyDraw      = 25
	commonPayoutBound    = 5 // common pays uniform in [0,5)
)

// Round multipliers. Booster takes precedence over clan; they never stack.
const (
	MultiplierBooster = 1.5
	MultiplierClan    = 1.25
	MultiplierNone    = 1.0
)

// MaxWinners bounds the number of winners drawn per round.
const MaxWinners = 5

// String returns the tier name used in round summaries.
func (t Tier) String() string {
	switch t {
	case TierIncredibleLuck:
		return "incredible luck"
	case TierRareDrop:
		return "rare drop"
	case TierLuckyDraw:
		return "lucky draw"
	default:
		return "common"
	}
}

// Rare reports whether a tier pre-empts the rest of the round.
// A round spotlights at most one incredible-luck or rare-drop hit;
// remaining winners are skipped once one lands.
func (t Tier) Rare() bool {
	return t == TierIncredibleLuck || t == TierRareDrop
}

// Award is one winner's rolled reward before the round multiplier.
type Award struct {
	UserID string
	Tier   Tier
	Base   int64
}

// DrawWinnerCount draws the number of winners for a round, uniform in
// [1, MaxWinners].
func DrawWinnerCount(r *rand.Rand) int {
	return r.Intn(MaxWinners) + 1
}

// SelectWinners picks n distinct participants by repeatedly drawing a
// uniform index into the remaining pool and removing the drawn entry.
// If the pool is smaller than n, everyone wins. The input slice is not
// modified.
func SelectWinners(r *rand.Rand, participants []string, n int) []string {
	if len(participants) <= n {
		winners := make([]string, len(participants))
		copy(winners, participants)
		return winners
	}

	pool := make([]string, len(participants))
	copy(pool, participants)

	winners := make([]string, 0, n)
	for len(winners) < n {
		i := r.Intn(len(pool))
		winners = append(winners, pool[i])
		pool[i] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return winners
}

// RollTier draws a value in [0,100) and evaluates tier thresholds in
// precedence order.
func RollTier(r *rand.Rand) Tier {
	draw := r.Float64() * 100
	switch {
	case draw < thresholdIncredibleLuck:
		return TierIncredibleLuck
	case draw < thresholdRareDrop:
		return TierRareDrop
	case draw < thresholdLuckyDraw:
		return TierLuckyDraw
	default:
		return TierCommon
	}
}

// payout returns the base payout for a rolled tier.
func payout(t Tier, r *rand.Rand) int64 {
	switch t {
	case TierIncredibleLuck:
		return payoutIncredibleLuck
	case TierRareDrop:
		return payoutRareDrop
	case TierLuckyDraw:
		return payoutLuckyDraw
	default:
		return int64(r.Intn(commonPayoutBound))
	}
}

// RollAwards rolls a tier and base payout for each winner in order.
// On a rare hit the round stops: winners after the rare one receive no
// award at all.
func RollAwards(r *rand.Rand, winners []string) []Award {
	awards := make([]Award, 0, len(winners))
	for _, userID := range winners {
		tier := RollTier(r)
		awards = append(awards, Award{
			UserID: userID,
			Tier:   tier,
			Base:   payout(tier, r),
		})
		if tier.Rare() {
			break
		}
	}
	return awards
}

// RoundMultiplier picks the multiplier for a round from the winner set
// as a whole. Booster wins over clan; the two never combine.
func RoundMultiplier(anyBooster, anyClan bool) float64 {
	switch {
	case anyBooster:
		return MultiplierBooster
	case anyClan:
		return MultiplierClan
	default:
		return MultiplierNone
	}
}

// ApplyMultiplier scales a base payout and floors the result.
func ApplyMultiplier(base int64, multiplier float64) int64 {
	return int64(float64(base) * multiplier)
}
