package resolve

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/solatis/rolebind/internal/types"
)

// Template tokens recognized by FormatNickname.
const (
	TokenRobloxUsername = "roblox-username"
	TokenRobloxID       = "roblox-id"
	TokenDiscordID      = "discord-id"
	TokenDiscordName    = "discord-name"
	TokenDisplayName    = "display-name"
)

// FormatNickname substitutes {token} spans in template with member facts.
// Unrecognized tokens and unmatched braces are copied through unchanged.
func FormatNickname(template string, facts *MemberFacts) string {
	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:open])
		rest = rest[open:]

		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		if value, ok := tokenValue(rest[1:end], facts); ok {
			b.WriteString(value)
			rest = rest[end+1:]
			continue
		}
		// Emit the brace alone so "{{roblox-id}}" still substitutes the inner token.
		b.WriteByte('{')
		rest = rest[1:]
	}
}

func tokenValue(name string, facts *MemberFacts) (string, bool) {
	switch name {
	case TokenRobloxUsername:
		return facts.RobloxName, true
	case TokenRobloxID:
		return strconv.FormatUint(uint64(facts.RobloxID), 10), true
	case TokenDiscordID:
		return strconv.FormatUint(uint64(facts.DiscordID), 10), true
	case TokenDiscordName:
		return facts.DiscordName, true
	case TokenDisplayName:
		return facts.DisplayName, true
	default:
		return "", false
	}
}

// ValidateNickname rejects blank nicknames and those over the platform limit.
func ValidateNickname(nickname string) error {
	if strings.TrimSpace(nickname) == "" || utf8.RuneCountInString(nickname) > types.MaxNicknameLength {
		return &InvalidNicknameError{Nickname: nickname}
	}
	return nil
}
