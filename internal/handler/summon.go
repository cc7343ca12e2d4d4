package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"discord-claim-bot/internal/config"
	"discord-claim-bot/internal/service"
)

// SummonHandler opens summon rounds on card-bot triggers and feeds
// chat activity into the open round's participant set.
type SummonHandler struct {
	cfg     *config.Config
	summons *service.SummonService
}

// NewSummonHandler creates a new SummonHandler instance.
func NewSummonHandler(cfg *config.Config, summons *service.SummonService) *SummonHandler {
	return &SummonHandler{cfg: cfg, summons: summons}
}

// HandleMessageCreate routes messages: card-bot trigger embeds open a
// round, everything non-automated in the origin channel counts as
// participation.
func (h *SummonHandler) HandleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.GuildID != h.cfg.Summon.GuildID {
		return
	}

	if m.Author.ID == h.cfg.Bot.CardBotID {
		if h.isTrigger(m.Message) {
			h.startRound(m.GuildID, m.ChannelID, m.ID)
		}
		return
	}

	// Automated authors never count as participants
	if m.Author.Bot {
		return
	}
	h.summons.Observe(m.GuildID, m.ChannelID, m.Author.ID)
}

// isTrigger reports whether a card-bot message announces a summon.
func (h *SummonHandler) isTrigger(msg *discordgo.Message) bool {
	phrase := h.cfg.Summon.TriggerPhrase
	if phrase == "" {
		return false
	}
	if strings.Contains(msg.Content, phrase) {
		return true
	}
	for _, embed := range msg.Embeds {
		if embed == nil {
			continue
		}
		if strings.Contains(embed.Title, phrase) || strings.Contains(embed.Description, phrase) {
			return true
		}
	}
	return false
}

func (h *SummonHandler) startRound(guildID, channelID, messageID string) {
	round, err := h.summons.StartRound(context.Background(), guildID, channelID, messageID)
	if err != nil {
		if errors.Is(err, service.ErrRoundActive) {
			// One round per guild; a second trigger is ignored
			log.Debug().Str("guild_id", guildID).Msg("Ignoring summon trigger during open round")
			return
		}
		log.Error().Err(err).Str("guild_id", guildID).Msg("Failed to open summon round")
		return
	}

	log.Debug().
		Str("round_id", round.ID.String()).
		Str("trigger_message_id", messageID).
		Msg("Summon trigger accepted")
}
