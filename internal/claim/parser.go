// Package claim parses card-bot claim embeds into structured records.
package claim

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"discord-claim-bot/internal/model"
)

// Parse errors. Both mean the event is dropped; only ErrMalformedPayload
// is logged as a fault, an unsupported tier is a policy filter.
var (
	ErrMalformedPayload = errors.New("malformed claim payload")
	ErrUnsupportedTier  = errors.New("unsupported card tier")
)

// titlePattern matches claim embed titles of the form
// "<:CT:123> Fireball *#7*": a tier emote, the card name, and the
// print number.
var titlePattern = regexp.MustCompile(`^<:([A-Za-z]+):(\d+)>\s+(.+?)\s+\*#(\d+)\*$`)

// claimedByPrefix introduces the claimer display token in embed fields.
const claimedByPrefix = "Claimed by "

// Embed is the subset of a Discord embed the parser consumes.
type Embed struct {
	Title     string
	Fields    []EmbedField
	ImageURL  string
	Timestamp time.Time
}

// EmbedField is a name/value pair from an embed.
type EmbedField struct {
	Name  string
	Value string
}

// Parsed is a claim embed after structural parsing, before identity
// resolution. ClaimerToken is the display-time name that still has to
// be resolved to a user ID.
type Parsed struct {
	Record       model.ClaimRecord
	ClaimerToken string
}

// ParseEmbed parses a claim embed into a Parsed claim.
// Returns ErrMalformedPayload if the title, claimer field, or image do
// not match the expected structure, and ErrUnsupportedTier for tier
// codes outside the six known ones.
func ParseEmbed(guildID string, e Embed) (*Parsed, error) {
	m := titlePattern.FindStringSubmatch(strings.TrimSpace(e.Title))
	if m == nil {
		return nil, fmt.Errorf("%w: title %q", ErrMalformedPayload, e.Title)
	}

	tier, ok := model.ParseTier(m[1])
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTier, m[1])
	}

	cardID, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: card id %q", ErrMalformedPayload, m[2])
	}

	printNumber, err := strconv.Atoi(m[4])
	if err != nil {
		return nil, fmt.Errorf("%w: print number %q", ErrMalformedPayload, m[4])
	}

	claimer := fieldWithPrefix(e.Fields, claimedByPrefix)
	if claimer == "" {
		return nil, fmt.Errorf("%w: no claimer field", ErrMalformedPayload)
	}

	claimedID, err := instanceIDFromImage(e.ImageURL)
	if err != nil {
		return nil, err
	}

	// The timestamp is part of the claim's identity: both the fingerprint
	// and the durable idempotency key include it. Without one, redeliveries
	// of the same event could not be recognized, so the event is dropped.
	if e.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: no timestamp", ErrMalformedPayload)
	}

	return &Parsed{
		Record: model.ClaimRecord{
			ClaimedID:   claimedID,
			GuildID:     guildID,
			CardName:    m[3],
			CardID:      cardID,
			Owner:       fieldValue(e.Fields, "Owned by"),
			Artist:      fieldValue(e.Fields, "Artist"),
			PrintNumber: printNumber,
			Tier:        tier,
			ClaimedAt:   e.Timestamp.UTC(),
		},
		ClaimerToken: claimer,
	}, nil
}

// fieldWithPrefix returns the remainder of the first field value that
// starts with the given prefix.
func fieldWithPrefix(fields []EmbedField, prefix string) string {
	for _, f := range fields {
		if strings.HasPrefix(f.Value, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(f.Value, prefix))
		}
	}
	return ""
}

// fieldValue returns the value of the first field with the given name.
func fieldValue(fields []EmbedField, name string) string {
	for _, f := range fields {
		if f.Name == name {
			return strings.TrimSpace(f.Value)
		}
	}
	return ""
}

// instanceIDFromImage extracts the card instance code from the embed
// image URL. The card bot encodes it as the image file name, e.g.
// https://cdn.example.com/cards/v7k2x1.png -> v7k2x1.
func instanceIDFromImage(rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("%w: no image", ErrMalformedPayload)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: image url %q", ErrMalformedPayload, rawURL)
	}
	base := path.Base(u.Path)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == "/" {
		return "", fmt.Errorf("%w: image url %q", ErrMalformedPayload, rawURL)
	}
	return base, nil
}

// Fingerprint derives the dedup cache key for a logical claim event.
// Two deliveries of the same logical event (edit, retry, duplicate
// notification) produce the same fingerprint.
func Fingerprint(claimedID, claimerToken, guildID string, ts time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%d", claimedID, claimerToken, guildID, ts.UnixMilli())
}
