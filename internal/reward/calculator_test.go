package reward

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedFloatSource yields a scripted sequence of Float64 draws.
// rand.Rand.Float64 divides Int63 by 1<<63, so each scripted value is
// encoded directly into the Int63 stream.
type fixedFloatSource struct {
	draws []float64
	pos   int
}

func (s *fixedFloatSource) Int63() int64 {
	d := s.draws[s.pos%len(s.draws)]
	s.pos++
	return int64(d * (1 << 63))
}

func (s *fixedFloatSource) Seed(int64) {}

func scriptedRand(draws ...float64) *rand.Rand {
	return rand.New(&fixedFloatSource{draws: draws})
}

func TestRollTier_Precedence(t *testing.T) {
	cases := []struct {
		draw float64 // value in [0,1), scaled to [0,100) by Float64()*100
		want Tier
	}{
		{0.0000001, TierIncredibleLuck}, // 0.00001 < 0.001
		{0.00005, TierRareDrop},         // 0.005 < 0.01
		{0.0005, TierLuckyDraw},         // 0.05 < 0.1
		{0.5, TierCommon},               // 50
		{0.999, TierCommon},
	}
	for _, tc := range cases {
		got := RollTier(scriptedRand(tc.draw))
		assert.Equal(t, tc.want, got, "draw %v", tc.draw)
	}
}

func TestRollAwards_RareHitStopsRound(t *testing.T) {
	// First winner rolls common, second hits a rare drop, the rest of
	// the winners are skipped entirely.
	r := scriptedRand(
		0.5,     // winner 1: common tier
		0.4,     // winner 1: common payout draw
		0.00005, // winner 2: rare drop
	)
	winners := []string{"w1", "w2", "w3", "w4"}

	awards := RollAwards(r, winners)
	require.Len(t, awards, 2)
	assert.Equal(t, "w1", awards[0].UserID)
	assert.Equal(t, TierCommon, awards[0].Tier)
	assert.Equal(t, "w2", awards[1].UserID)
	assert.Equal(t, TierRareDrop, awards[1].Tier)
	assert.Equal(t, int64(payoutRareDrop), awards[1].Base)
}

func TestRollAwards_IncredibleLuckStopsRound(t *testing.T) {
	r := scriptedRand(0.0000001)
	awards := RollAwards(r, []string{"w1", "w2"})

	require.Len(t, awards, 1)
	assert.Equal(t, TierIncredibleLuck, awards[0].Tier)
	assert.Equal(t, int64(payoutIncredibleLuck), awards[0].Base)
}

func TestRollAwards_LuckyDrawDoesNotStopRound(t *testing.T) {
	r := scriptedRand(
		0.0005, // winner 1: lucky draw
		0.5,    // winner 2: common tier
		0.2,    // winner 2: common payout draw
	)
	awards := RollAwards(r, []string{"w1", "w2"})

	require.Len(t, awards, 2)
	assert.Equal(t, TierLuckyDraw, awards[0].Tier)
	assert.Equal(t, int64(payoutLuckyDraw), awards[0].Base)
	assert.Equal(t, TierCommon, awards[1].Tier)
}

func TestRoundMultiplier(t *testing.T) {
	assert.Equal(t, MultiplierBooster, RoundMultiplier(true, false))
	// Booster takes precedence; roles never stack
	assert.Equal(t, MultiplierBooster, RoundMultiplier(true, true))
	assert.Equal(t, MultiplierClan, RoundMultiplier(false, true))
	assert.Equal(t, MultiplierNone, RoundMultiplier(false, false))
}

func TestApplyMultiplier_Floors(t *testing.T) {
	assert.Equal(t, int64(6), ApplyMultiplier(4, MultiplierBooster)) // floor(4*1.5)
	assert.Equal(t, int64(5), ApplyMultiplier(4, MultiplierClan))    // floor(4*1.25)
	assert.Equal(t, int64(4), ApplyMultiplier(4, MultiplierNone))
	assert.Equal(t, int64(0), ApplyMultiplier(0, MultiplierBooster))
	assert.Equal(t, int64(1), ApplyMultiplier(1, MultiplierClan)) // floor(1.25)
}

func TestSelectWinners_FewerParticipantsThanDraw(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	winners := SelectWinners(r, []string{"only"}, 5)
	assert.Equal(t, []string{"only"}, winners)

	winners = SelectWinners(r, []string{"a", "b"}, 4)
	assert.ElementsMatch(t, []string{"a", "b"}, winners)
}

func TestSelectWinners_DoesNotModifyInput(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	participants := []string{"a", "b", "c", "d", "e", "f"}

	SelectWinners(r, participants, 3)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, participants)
}
