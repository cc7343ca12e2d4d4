package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"discord-claim-bot/internal/reward"
)

// Errors for summon rounds.
var (
	// ErrRoundActive is returned when a trigger arrives while a round
	// is already open in the guild. The new trigger is ignored.
	ErrRoundActive = errors.New("summon round already active in this guild")
	ErrNoRound     = errors.New("no active summon round in this guild")
)

// RoleChecker reports whether a guild member holds a role.
type RoleChecker interface {
	HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
}

// Messenger delivers a message to a channel. Implementations are
// expected to sit behind the outbound rate limiter.
type Messenger interface {
	SendMessage(ctx context.Context, channelID, content string) error
}

// BalanceStore is the capped balance persistence needed for rewards.
type BalanceStore interface {
	CappedIncrement(ctx context.Context, userID string, delta int64) (applied, newBalance int64, err error)
}

// Round is one summon collection-and-reward cycle.
type Round struct {
	ID               uuid.UUID
	GuildID          string
	ChannelID        string
	TriggerMessageID string
	StartedAt        time.Time
	EndsAt           time.Time

	mu           sync.Mutex
	participants map[string]struct{}
	order        []string // insertion order, for deterministic settlement
}

// addParticipant records a participant; repeats are no-ops.
func (r *Round) addParticipant(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[userID]; ok {
		return
	}
	r.participants[userID] = struct{}{}
	r.order = append(r.order, userID)
}

// Participants returns the collected participant IDs.
func (r *Round) Participants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SummonConfig holds the knobs a SummonService needs.
type SummonConfig struct {
	GuildID        string
	WindowDuration time.Duration
	BoosterRoleID  string
	ClanRoleID     string
}

// SummonService runs summon rounds: a fixed collection window followed
// by winner selection, reward rolls, and atomic capped credits.
// One active round per guild at a time; a trigger while a round is
// open is ignored.
type SummonService struct {
	cfg       SummonConfig
	balances  BalanceStore
	roles     RoleChecker
	messenger Messenger

	mu     sync.Mutex
	rounds map[string]*Round // guildID -> open round

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSummonService creates a new SummonService instance.
func NewSummonService(cfg SummonConfig, balances BalanceStore, roles RoleChecker, messenger Messenger) *SummonService {
	return &SummonService{
		cfg:       cfg,
		balances:  balances,
		roles:     roles,
		messenger: messenger,
		rounds:    make(map[string]*Round),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRoleChecker binds the role checker. Session-backed, so bound
// after the bot is constructed.
func (s *SummonService) SetRoleChecker(roles RoleChecker) {
	s.roles = roles
}

// SetMessenger binds the summary messenger. Session-backed, so bound
// after the bot is constructed.
func (s *SummonService) SetMessenger(messenger Messenger) {
	s.messenger = messenger
}

// SetRand replaces the random source. For tests.
func (s *SummonService) SetRand(r *rand.Rand) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng = r
}

// StartRound opens a collection window in the guild and schedules its
// settlement after the configured duration. The window is a hard
// timeout; it cannot be extended.
func (s *SummonService) StartRound(ctx context.Context, guildID, channelID, triggerMessageID string) (*Round, error) {
	s.mu.Lock()
	if _, open := s.rounds[guildID]; open {
		s.mu.Unlock()
		return nil, ErrRoundActive
	}

	now := time.Now()
	round := &Round{
		ID:               uuid.New(),
		GuildID:          guildID,
		ChannelID:        channelID,
		TriggerMessageID: triggerMessageID,
		StartedAt:        now,
		EndsAt:           now.Add(s.cfg.WindowDuration),
		participants:     make(map[string]struct{}),
	}
	s.rounds[guildID] = round
	s.mu.Unlock()

	log.Info().
		Str("round_id", round.ID.String()).
		Str("guild_id", guildID).
		Str("channel_id", channelID).
		Dur("window", s.cfg.WindowDuration).
		Msg("Summon round opened")

	go func() {
		timer := time.NewTimer(s.cfg.WindowDuration)
		defer timer.Stop()
		<-timer.C
		if err := s.Settle(context.Background(), guildID); err != nil && !errors.Is(err, ErrNoRound) {
			log.Error().Err(err).Str("round_id", round.ID.String()).Msg("Summon round settlement failed")
		}
	}()

	return round, nil
}

// Observe adds a message author to the open round's participant set if
// the message is in the round's origin channel during the window.
// Set semantics: repeats are no-ops.
func (s *SummonService) Observe(guildID, channelID, authorID string) {
	s.mu.Lock()
	round, open := s.rounds[guildID]
	s.mu.Unlock()

	if !open || round.ChannelID != channelID {
		return
	}
	round.addParticipant(authorID)
}

// IsRoundActive reports whether a round is open in the guild.
func (s *SummonService) IsRoundActive(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, open := s.rounds[guildID]
	return open
}

// Settle closes the guild's round and distributes rewards. Normally
// invoked by the window timer; exported so tests can settle
// deterministically.
func (s *SummonService) Settle(ctx context.Context, guildID string) error {
	s.mu.Lock()
	round, open := s.rounds[guildID]
	delete(s.rounds, guildID)
	s.mu.Unlock()

	if !open {
		return ErrNoRound
	}

	participants := round.Participants()
	if len(participants) == 0 {
		log.Info().Str("round_id", round.ID.String()).Msg("Summon round closed with no participants")
		return nil
	}

	s.rngMu.Lock()
	n := reward.DrawWinnerCount(s.rng)
	winners := reward.SelectWinners(s.rng, participants, n)
	awards := reward.RollAwards(s.rng, winners)
	s.rngMu.Unlock()

	multiplier := s.roundMultiplier(ctx, round.GuildID, winners)

	credited := s.credit(ctx, round, awards, multiplier)
	if len(credited) == 0 {
		return nil
	}

	summary := buildSummary(credited, multiplier)
	if s.messenger == nil {
		return nil
	}
	if err := s.messenger.SendMessage(ctx, round.ChannelID, summary); err != nil {
		// Credits stand regardless of whether the summary is delivered
		log.Warn().Err(err).
			Str("round_id", round.ID.String()).
			Str("channel_id", round.ChannelID).
			Msg("Failed to send summon round summary")
	}

	log.Info().
		Str("round_id", round.ID.String()).
		Int("participants", len(participants)).
		Int("winners", len(winners)).
		Int("credited", len(credited)).
		Float64("multiplier", multiplier).
		Msg("Summon round settled")
	return nil
}

// roundMultiplier evaluates role multipliers once per round from the
// set of all winners. Role lookup failures count as not holding the
// role.
func (s *SummonService) roundMultiplier(ctx context.Context, guildID string, winners []string) float64 {
	if s.roles == nil {
		return reward.MultiplierNone
	}

	var anyBooster, anyClan bool
	for _, userID := range winners {
		if !anyBooster && s.cfg.BoosterRoleID != "" {
			has, err := s.roles.HasRole(ctx, guildID, userID, s.cfg.BoosterRoleID)
			if err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("Booster role lookup failed")
			} else if has {
				anyBooster = true
			}
		}
		if !anyClan && s.cfg.ClanRoleID != "" {
			has, err := s.roles.HasRole(ctx, guildID, userID, s.cfg.ClanRoleID)
			if err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("Clan role lookup failed")
			} else if has {
				anyClan = true
			}
		}
		if anyBooster {
			break
		}
	}
	return reward.RoundMultiplier(anyBooster, anyClan)
}

// CreditedAward is a winner's credit after the multiplier and balance
// cap were applied.
type CreditedAward struct {
	UserID  string
	Tier    reward.Tier
	Payout  int64 // nominal, after multiplier
	Applied int64 // actually credited, may be clamped
}

// credit applies each winner's payout independently; one failure never
// blocks the others.
func (s *SummonService) credit(ctx context.Context, round *Round, awards []reward.Award, multiplier float64) []CreditedAward {
	credited := make([]CreditedAward, 0, len(awards))
	for _, award := range awards {
		payout := reward.ApplyMultiplier(award.Base, multiplier)
		if payout <= 0 {
			continue
		}

		applied, newBalance, err := s.balances.CappedIncrement(ctx, award.UserID, payout)
		if err != nil {
			log.Error().Err(err).
				Str("round_id", round.ID.String()).
				Str("user_id", award.UserID).
				Int64("payout", payout).
				Msg("Failed to credit summon reward")
			continue
		}

		log.Debug().
			Str("user_id", award.UserID).
			Str("tier", award.Tier.String()).
			Int64("payout", payout).
			Int64("applied", applied).
			Int64("balance", newBalance).
			Msg("Summon reward credited")
		credited = append(credited, CreditedAward{
			UserID:  award.UserID,
			Tier:    award.Tier,
			Payout:  payout,
			Applied: applied,
		})
	}
	return credited
}

// buildSummary composes the round summary message.
func buildSummary(credited []CreditedAward, multiplier float64) string {
	var b strings.Builder
	b.WriteString("🎴 Summon rewards:\n")
	for _, c := range credited {
		switch {
		case c.Tier == reward.TierIncredibleLuck:
			fmt.Fprintf(&b, "✨ INCREDIBLE LUCK! <@%s> wins %d tokens!\n", c.UserID, c.Applied)
		case c.Tier == reward.TierRareDrop:
			fmt.Fprintf(&b, "💎 Rare drop! <@%s> wins %d tokens!\n", c.UserID, c.Applied)
		case c.Tier == reward.TierLuckyDraw:
			fmt.Fprintf(&b, "🍀 Lucky draw: <@%s> +%d tokens\n", c.UserID, c.Applied)
		default:
			fmt.Fprintf(&b, "🎁 <@%s> +%d tokens\n", c.UserID, c.Applied)
		}
	}
	if multiplier > reward.MultiplierNone {
		fmt.Fprintf(&b, "(×%.2g role bonus applied)", multiplier)
	}
	return strings.TrimRight(b.String(), "\n")
}
