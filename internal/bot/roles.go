package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// GuildRoleChecker reports role membership, preferring the session
// state cache and falling back to the REST endpoint.
type GuildRoleChecker struct {
	session *discordgo.Session
}

// NewGuildRoleChecker creates a new GuildRoleChecker instance.
func NewGuildRoleChecker(session *discordgo.Session) *GuildRoleChecker {
	return &GuildRoleChecker{session: session}
}

// HasRole reports whether the guild member holds the given role.
func (c *GuildRoleChecker) HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	member, err := c.session.State.Member(guildID, userID)
	if err != nil {
		member, err = c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		if err != nil {
			return false, fmt.Errorf("member lookup failed: %w", err)
		}
	}

	for _, id := range member.Roles {
		if id == roleID {
			return true, nil
		}
	}
	return false, nil
}
