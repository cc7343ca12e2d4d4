// Package handler translates Discord gateway events into service calls.
package handler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"discord-claim-bot/internal/claim"
	"discord-claim-bot/internal/config"
	"discord-claim-bot/internal/service"
)

// ClaimHandler feeds card-bot claim embeds into the claim pipeline.
// Both message creates and edits are handled; the card bot delivers
// some claims only via an edit of the original drop embed.
type ClaimHandler struct {
	cfg    *config.Config
	claims *service.ClaimService
}

// NewClaimHandler creates a new ClaimHandler instance.
func NewClaimHandler(cfg *config.Config, claims *service.ClaimService) *ClaimHandler {
	return &ClaimHandler{cfg: cfg, claims: claims}
}

// HandleMessageCreate processes new card-bot messages.
func (h *ClaimHandler) HandleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	h.handleMessage(m.Author.ID, m.GuildID, m.Message)
}

// HandleMessageUpdate processes edited card-bot messages. Edits of an
// already-processed claim are dropped by the fingerprint cache.
func (h *ClaimHandler) HandleMessageUpdate(s *discordgo.Session, m *discordgo.MessageUpdate) {
	if m.Author == nil {
		return
	}
	h.handleMessage(m.Author.ID, m.GuildID, m.Message)
}

func (h *ClaimHandler) handleMessage(authorID, guildID string, msg *discordgo.Message) {
	if authorID != h.cfg.Bot.CardBotID || guildID == "" {
		return
	}
	if !h.cfg.IsGuildAllowed(guildID) {
		return
	}

	for _, embed := range msg.Embeds {
		if embed == nil || embed.Title == "" {
			continue
		}

		_, _, err := h.claims.Process(context.Background(), guildID, toClaimEmbed(embed))
		if err != nil {
			if errors.Is(err, service.ErrUnresolvedIdentity) {
				log.Warn().Err(err).
					Str("guild_id", guildID).
					Str("message_id", msg.ID).
					Msg("Claimer identity did not resolve")
				continue
			}
			log.Error().Err(err).
				Str("guild_id", guildID).
				Str("message_id", msg.ID).
				Msg("Claim processing failed")
			continue
		}
	}
}

// toClaimEmbed maps a Discord embed to the parser's input shape.
func toClaimEmbed(e *discordgo.MessageEmbed) claim.Embed {
	out := claim.Embed{
		Title:     e.Title,
		Timestamp: parseEmbedTimestamp(e.Timestamp),
	}
	for _, f := range e.Fields {
		if f == nil {
			continue
		}
		out.Fields = append(out.Fields, claim.EmbedField{Name: f.Name, Value: f.Value})
	}
	if e.Image != nil {
		out.ImageURL = e.Image.URL
	}
	return out
}

// parseEmbedTimestamp parses the embed's ISO8601 timestamp. Missing or
// unparseable timestamps yield the zero time, which the parser rejects
// as malformed: claim identity depends on the embed's own timestamp,
// and substituting local time would give every redelivery a fresh one.
func parseEmbedTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
