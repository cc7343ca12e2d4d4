package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// MemberResolver resolves claimer display tokens to user IDs through
// the guild member search endpoint.
type MemberResolver struct {
	session *discordgo.Session
}

// NewMemberResolver creates a new MemberResolver instance.
func NewMemberResolver(session *discordgo.Session) *MemberResolver {
	return &MemberResolver{session: session}
}

// ResolveDisplayToken resolves a display name to a user ID. The token
// is matched against nickname, global display name, and username, in
// that order, case-insensitively. Returns an error when no member
// matches; the caller treats that as retryable.
func (r *MemberResolver) ResolveDisplayToken(ctx context.Context, guildID, token string) (string, error) {
	members, err := r.session.GuildMembersSearch(guildID, token, 10, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("member search failed: %w", err)
	}

	for _, m := range members {
		if m == nil || m.User == nil {
			continue
		}
		if strings.EqualFold(m.Nick, token) ||
			strings.EqualFold(m.User.GlobalName, token) ||
			strings.EqualFold(m.User.Username, token) {
			return m.User.ID, nil
		}
	}

	return "", fmt.Errorf("no member matched %q in guild %s", token, guildID)
}
