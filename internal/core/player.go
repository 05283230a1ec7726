package core

import (
	"strings"

	"github.com/vovakirdan/partyroom-server/internal/proto"
)

const (
	DefaultName   = "Spieler"
	DefaultAvatar = "😄"

	MaxNameLen   = 32
	MaxAvatarLen = 4
	MaxChatLen   = 300
	MaxPromptLen = 400

	MinPhase = 1
	MaxPhase = 10
)

// Player is one participant of a room. It is owned by the room and must only
// be touched while holding the room's lock.
type Player struct {
	ID     string
	Name   string
	Avatar string
	Phase  int
	Score  int

	session *Session
}

func newPlayer(id, name, avatar string, session *Session) *Player {
	return &Player{
		ID:      id,
		Name:    NormalizeName(name),
		Avatar:  NormalizeAvatar(avatar),
		Phase:   MinPhase,
		Score:   0,
		session: session,
	}
}

// View returns the public projection of the player.
func (p *Player) View() proto.PlayerView {
	return proto.PlayerView{
		Name:   p.Name,
		Avatar: p.Avatar,
		Phase:  p.Phase,
		Score:  p.Score,
	}
}

// NormalizeName trims, defaults and caps a display name.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultName
	}
	return truncate(name, MaxNameLen)
}

// NormalizeAvatar defaults and caps a glyph avatar.
func NormalizeAvatar(avatar string) string {
	avatar = strings.TrimSpace(avatar)
	if avatar == "" {
		return DefaultAvatar
	}
	return truncate(avatar, MaxAvatarLen)
}

// ClampPhase bounds a phase into [MinPhase, MaxPhase].
func ClampPhase(phase int) int {
	return max(MinPhase, min(MaxPhase, phase))
}

// NormalizeChat caps a chat line. Whitespace is relayed as sent; a line that
// is blank after trimming yields "" and must be dropped.
func NormalizeChat(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return truncate(text, MaxChatLen)
}

// NormalizePrompt trims and caps an avatar prompt.
func NormalizePrompt(prompt string) string {
	return strings.TrimSpace(truncate(strings.TrimSpace(prompt), MaxPromptLen))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
