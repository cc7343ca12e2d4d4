// Property-based tests for winner selection and reward rolls.
package reward

import (
	"math/rand"
	"testing"

	"pgregory.net/rapid"
)

// TestSelectWinnersProperty checks the without-replacement sampling
// invariants:
// - winners are always distinct
// - winner count never exceeds min(requested, participant count)
// - every winner comes from the participant pool
func TestSelectWinnersProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(0, 50).Draw(t, "participantCount")
		participants := make([]string, count)
		for i := range participants {
			participants[i] = rapid.StringMatching(`u[0-9]{1,6}`).Draw(t, "participant")
		}
		// Deduplicate: participant sets never contain repeats
		seen := make(map[string]struct{}, len(participants))
		unique := participants[:0]
		for _, p := range participants {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			unique = append(unique, p)
		}
		participants = unique

		n := rapid.IntRange(1, MaxWinners).Draw(t, "winnerCount")
		seed := rapid.Int64().Draw(t, "seed")
		r := rand.New(rand.NewSource(seed))

		winners := SelectWinners(r, participants, n)

		expected := n
		if len(participants) < expected {
			expected = len(participants)
		}
		if len(winners) != expected {
			t.Fatalf("expected %d winners from %d participants (n=%d), got %d",
				expected, len(participants), n, len(winners))
		}

		winnerSet := make(map[string]struct{}, len(winners))
		for _, w := range winners {
			if _, dup := winnerSet[w]; dup {
				t.Fatalf("winner %q selected twice", w)
			}
			winnerSet[w] = struct{}{}
			if _, ok := seen[w]; !ok {
				t.Fatalf("winner %q is not a participant", w)
			}
		}
	})
}

// TestSingleParticipantAlwaysWinsProperty checks that a round with
// exactly one participant selects that participant regardless of the
// drawn winner count.
func TestSingleParticipantAlwaysWinsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		r := rand.New(rand.NewSource(seed))

		n := DrawWinnerCount(r)
		if n < 1 || n > MaxWinners {
			t.Fatalf("winner count %d outside [1,%d]", n, MaxWinners)
		}

		winners := SelectWinners(r, []string{"solo"}, n)
		if len(winners) != 1 || winners[0] != "solo" {
			t.Fatalf("sole participant not selected: %v", winners)
		}
	})
}

// TestRollAwardsProperty checks the short-circuit shape of a round:
// awards are a prefix of the winner list, only the final award may be
// rare, and base payouts match the rolled tier.
func TestRollAwardsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		winnerCount := rapid.IntRange(1, MaxWinners).Draw(t, "winnerCount")
		winners := make([]string, winnerCount)
		for i := range winners {
			winners[i] = rapid.StringMatching(`w[0-9]{1,4}`).Draw(t, "winner")
		}

		seed := rapid.Int64().Draw(t, "seed")
		r := rand.New(rand.NewSource(seed))

		awards := RollAwards(r, winners)

		if len(awards) == 0 || len(awards) > len(winners) {
			t.Fatalf("award count %d outside [1,%d]", len(awards), len(winners))
		}
		for i, a := range awards {
			if a.UserID != winners[i] {
				t.Fatalf("award %d for %q, expected winner %q", i, a.UserID, winners[i])
			}
			if a.Tier.Rare() && i != len(awards)-1 {
				t.Fatalf("rare award at position %d did not stop the round", i)
			}
			switch a.Tier {
			case TierIncredibleLuck:
				if a.Base != payoutIncredibleLuck {
					t.Fatalf("incredible luck base %d", a.Base)
				}
			case TierRareDrop:
				if a.Base != payoutRareDrop {
					t.Fatalf("rare drop base %d", a.Base)
				}
			case TierLuckyDraw:
				if a.Base != payoutLuckyDraw {
					t.Fatalf("lucky draw base %d", a.Base)
				}
			default:
				if a.Base < 0 || a.Base >= commonPayoutBound {
					t.Fatalf("common base %d outside [0,%d)", a.Base, commonPayoutBound)
				}
			}
		}
		// A non-rare final award means every winner was evaluated
		if !awards[len(awards)-1].Tier.Rare() && len(awards) != len(winners) {
			t.Fatalf("round stopped early without a rare hit: %d of %d", len(awards), len(winners))
		}
	})
}

// TestApplyMultiplierProperty checks that the multiplier never lowers
// a payout and always floors to an integer at or below the product.
func TestApplyMultiplierProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.Int64Range(0, 100).Draw(t, "base")
		multiplier := rapid.SampledFrom([]float64{MultiplierNone, MultiplierClan, MultiplierBooster}).Draw(t, "multiplier")

		got := ApplyMultiplier(base, multiplier)
		if got < base {
			t.Fatalf("multiplier lowered payout: %d -> %d", base, got)
		}
		if float64(got) > float64(base)*multiplier {
			t.Fatalf("payout %d exceeds %v * %d", got, multiplier, base)
		}
	})
}
