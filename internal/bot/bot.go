// Package bot provides the Discord session initialization and handler
// registration.
package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"discord-claim-bot/internal/config"
	"discord-claim-bot/internal/handler"
	"discord-claim-bot/internal/service"
)

// Bot wraps the discordgo session with application dependencies.
type Bot struct {
	session *discordgo.Session
	cfg     *config.Config

	claimHandler  *handler.ClaimHandler
	summonHandler *handler.SummonHandler
}

// Dependencies holds everything the bot handlers need.
type Dependencies struct {
	Config        *config.Config
	ClaimService  *service.ClaimService
	SummonService *service.SummonService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if deps.Config.Bot.CardBotID == "" {
		return nil, fmt.Errorf("card bot id is required")
	}

	session, err := discordgo.New("Bot " + deps.Config.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	b := &Bot{
		session:       session,
		cfg:           deps.Config,
		claimHandler:  handler.NewClaimHandler(deps.Config, deps.ClaimService),
		summonHandler: handler.NewSummonHandler(deps.Config, deps.SummonService),
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.claimHandler.HandleMessageUpdate)

	return b, nil
}

// Session returns the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	log.Info().Msg("Starting bot...")
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}
	return nil
}

// Stop closes the gateway connection gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	if err := b.session.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing gateway")
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Info().
		Str("username", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("Gateway ready")
}

// onMessageCreate fans a message out to both pipelines: the claim
// handler looks for card-bot embeds, the summon handler tracks
// triggers and participation.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author != nil {
		log.Debug().
			Str("guild_id", m.GuildID).
			Str("channel_id", m.ChannelID).
			Str("author_id", m.Author.ID).
			Bool("bot", m.Author.Bot).
			Msg("Received message")
	}

	b.claimHandler.HandleMessageCreate(s, m)
	b.summonHandler.HandleMessageCreate(s, m)
}
