// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"discord-claim-bot/internal/claim"
	"discord-claim-bot/internal/dedup"
	"discord-claim-bot/internal/model"
)

// ErrUnresolvedIdentity is returned when a claimer display token does
// not resolve to a user ID. Retryable by the caller; the fingerprint is
// released so a retry is not dropped as a duplicate.
var ErrUnresolvedIdentity = errors.New("display token did not resolve")

// ClaimOutcome describes how a claim event was handled.
type ClaimOutcome int

// Claim processing outcomes.
const (
	// ClaimRecorded means both aggregates were updated.
	ClaimRecorded ClaimOutcome = iota
	// ClaimDuplicate means the fingerprint cache dropped the event.
	ClaimDuplicate
	// ClaimAlreadyRecorded means the durable idempotency check found
	// the claim already persisted. A normal outcome, not an error.
	ClaimAlreadyRecorded
	// ClaimDiscarded means the payload was malformed or the tier is
	// not tracked.
	ClaimDiscarded
)

// DisplayResolver resolves a display-time name to a stable user ID.
type DisplayResolver interface {
	ResolveDisplayToken(ctx context.Context, guildID, token string) (string, error)
}

// PlayerStore is the player-aggregate persistence needed by the claim
// pipeline.
type PlayerStore interface {
	EnsureExists(ctx context.Context, userID, guildID string) error
	AppendClaim(ctx context.Context, rec *model.ClaimRecord) (bool, error)
	AppendManualClaim(ctx context.Context, rec *model.ClaimRecord) (bool, error)
}

// GuildStore is the guild-aggregate persistence needed by the claim
// pipeline.
type GuildStore interface {
	EnsureExists(ctx context.Context, guildID string) error
	AppendClaim(ctx context.Context, rec *model.ClaimRecord) (bool, error)
}

// ClaimService turns raw claim embeds into persisted ClaimRecords,
// exactly once per logical event.
type ClaimService struct {
	cache    *dedup.Cache
	resolver DisplayResolver
	players  PlayerStore
	guilds   GuildStore
}

// NewClaimService creates a new ClaimService instance.
func NewClaimService(cache *dedup.Cache, resolver DisplayResolver, players PlayerStore, guilds GuildStore) *ClaimService {
	return &ClaimService{
		cache:    cache,
		resolver: resolver,
		players:  players,
		guilds:   guilds,
	}
}

// SetResolver binds the identity resolver. The resolver needs a live
// gateway session, which exists only after the bot is constructed.
func (s *ClaimService) SetResolver(resolver DisplayResolver) {
	s.resolver = resolver
}

// Process runs the claim pipeline for one event:
// parse -> dedup check-and-mark -> resolve identity -> persist both
// aggregates. Parsing and the check-and-mark happen before any I/O so
// two deliveries of the same event can never both pass the check.
func (s *ClaimService) Process(ctx context.Context, guildID string, embed claim.Embed) (ClaimOutcome, *model.ClaimRecord, error) {
	parsed, err := claim.ParseEmbed(guildID, embed)
	if err != nil {
		if errors.Is(err, claim.ErrUnsupportedTier) {
			// Policy filter, not a fault
			log.Debug().Str("guild_id", guildID).Str("title", embed.Title).Msg("Skipping untracked tier")
			return ClaimDiscarded, nil, nil
		}
		log.Warn().Err(err).Str("guild_id", guildID).Msg("Discarding malformed claim embed")
		return ClaimDiscarded, nil, nil
	}

	fp := claim.Fingerprint(parsed.Record.ClaimedID, parsed.ClaimerToken, guildID, parsed.Record.ClaimedAt)
	if !s.cache.CheckAndMark(fp) {
		log.Debug().Str("fingerprint", fp).Msg("Dropping duplicate claim event")
		return ClaimDuplicate, nil, nil
	}

	if s.resolver == nil {
		s.cache.Forget(fp)
		return 0, nil, errors.New("no display resolver bound")
	}

	userID, err := s.resolver.ResolveDisplayToken(ctx, guildID, parsed.ClaimerToken)
	if err != nil {
		s.cache.Forget(fp)
		return 0, nil, fmt.Errorf("%w: %q: %v", ErrUnresolvedIdentity, parsed.ClaimerToken, err)
	}

	rec := parsed.Record
	rec.UserID = userID

	if err := s.players.EnsureExists(ctx, rec.UserID, rec.GuildID); err != nil {
		s.cache.Forget(fp)
		return 0, nil, err
	}
	if err := s.guilds.EnsureExists(ctx, rec.GuildID); err != nil {
		s.cache.Forget(fp)
		return 0, nil, err
	}

	// Player and guild aggregates are independent targets; both updates
	// are issued concurrently. Success is defined by the player-side
	// write reporting a modified row.
	var playerModified bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		modified, err := s.players.AppendClaim(gctx, &rec)
		playerModified = modified
		return err
	})
	g.Go(func() error {
		_, err := s.guilds.AppendClaim(gctx, &rec)
		return err
	})
	if err := g.Wait(); err != nil {
		s.cache.Forget(fp)
		return 0, nil, fmt.Errorf("failed to persist claim: %w", err)
	}

	if !playerModified {
		log.Debug().
			Str("claimed_id", rec.ClaimedID).
			Str("user_id", rec.UserID).
			Str("guild_id", rec.GuildID).
			Msg("Claim already recorded")
		return ClaimAlreadyRecorded, &rec, nil
	}

	log.Info().
		Str("claimed_id", rec.ClaimedID).
		Str("user_id", rec.UserID).
		Str("guild_id", rec.GuildID).
		Str("tier", rec.Tier.String()).
		Str("card_name", rec.CardName).
		Int("print", rec.PrintNumber).
		Msg("Claim recorded")
	return ClaimRecorded, &rec, nil
}

// RecordManual persists a manually entered claim into the bounded
// manual list. Returns ClaimAlreadyRecorded when the idempotency check
// rejects a duplicate.
func (s *ClaimService) RecordManual(ctx context.Context, rec *model.ClaimRecord) (ClaimOutcome, error) {
	if !rec.Tier.Valid() {
		return ClaimDiscarded, nil
	}
	rec.Manual = true

	if err := s.players.EnsureExists(ctx, rec.UserID, rec.GuildID); err != nil {
		return 0, err
	}

	modified, err := s.players.AppendManualClaim(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("failed to persist manual claim: %w", err)
	}
	if !modified {
		return ClaimAlreadyRecorded, nil
	}

	log.Info().
		Str("claimed_id", rec.ClaimedID).
		Str("user_id", rec.UserID).
		Str("guild_id", rec.GuildID).
		Msg("Manual claim recorded")
	return ClaimRecorded, nil
}
