package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"discord-claim-bot/internal/pkg/ratelimit"
)

// messagesLimitKey throttles all channel message sends under one key.
const messagesLimitKey = "discord:messages"

// ThrottledMessenger sends channel messages behind the sliding-window
// rate limiter. The wait completes even if the caller has moved on;
// no cancellation of an admission attempt is exposed.
type ThrottledMessenger struct {
	session *discordgo.Session
	limiter *ratelimit.Limiter
}

// NewThrottledMessenger creates a new ThrottledMessenger instance.
func NewThrottledMessenger(session *discordgo.Session, limiter *ratelimit.Limiter) *ThrottledMessenger {
	return &ThrottledMessenger{session: session, limiter: limiter}
}

// SendMessage delivers content to a channel after rate-limit admission.
func (m *ThrottledMessenger) SendMessage(ctx context.Context, channelID, content string) error {
	m.limiter.Wait(messagesLimitKey)

	if _, err := m.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", channelID, err)
	}
	return nil
}
