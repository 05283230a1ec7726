package core

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/partyroom-server/internal/proto"
)

// Room groups the players of one game session. Every read-modify-write of
// members, hostID, started and destroyed happens under mu, and so does the
// enqueueing of the broadcasts it produces.
type Room struct {
	ID string

	mu        sync.Mutex
	hostID    string
	started   bool
	destroyed bool
	members   map[string]*Player
	order     []string // join order, used for host succession
	log       zerolog.Logger
}

// RoomSnapshot is a consistent copy of a room's public state.
type RoomSnapshot struct {
	ID      string
	HostID  string
	Started bool
	Players map[string]proto.PlayerView
}

// newRoom constructs a room with no players.
func newRoom(id string, logger *zerolog.Logger) *Room {
	return &Room{
		ID:      id,
		members: make(map[string]*Player),
		log:     logger.With().Str("room_id", id).Logger(),
	}
}

// Snapshot returns the room's current public state.
func (r *Room) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RoomSnapshot{
		ID:      r.ID,
		HostID:  r.hostID,
		Started: r.started,
		Players: r.playersLocked(),
	}
}

// Len returns the number of members.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// SetName renames a member and broadcasts the new membership.
func (r *Room) SetName(playerID, name string) error {
	return r.withMember(playerID, func(p *Player) {
		p.Name = NormalizeName(name)
		r.broadcastPlayersLocked()
	})
}

// SetPhase stores a clamped phase for a member and broadcasts the new membership.
func (r *Room) SetPhase(playerID string, phase int) error {
	return r.withMember(playerID, func(p *Player) {
		p.Phase = ClampPhase(phase)
		r.broadcastPlayersLocked()
	})
}

// Start moves the room out of the lobby. Only the host may start, and only once.
func (r *Room) Start(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[playerID]; !ok || r.destroyed {
		return ErrNotMember
	}
	if r.hostID != playerID {
		return ErrForbidden
	}
	if r.started {
		return ErrAlreadyStarted
	}

	r.started = true
	r.broadcastLocked(proto.RoomStart{Type: proto.OutboundTypeRoomStart})
	r.broadcastPlayersLocked()
	return nil
}

// PhaseDone announces that a member finished the current phase.
func (r *Room) PhaseDone(playerID string) error {
	return r.withMember(playerID, func(p *Player) {
		r.broadcastLocked(proto.RoundStart{
			Type:     proto.OutboundTypeRoundStart,
			Finisher: p.ID,
			Name:     p.Name,
		})
	})
}

// SubmitScore adds a signed delta to a member's score.
func (r *Room) SubmitScore(playerID string, points int) error {
	return r.withMember(playerID, func(p *Player) {
		p.Score += points
		r.broadcastLocked(proto.ScoreUpdate{
			Type:   proto.OutboundTypeScoreUpdate,
			ID:     p.ID,
			Points: points,
			Total:  p.Score,
		})
		r.broadcastPlayersLocked()
	})
}

// Chat relays a line of text from a member. Empty lines are dropped.
func (r *Room) Chat(playerID, text string) error {
	text = NormalizeChat(text)
	if text == "" {
		return nil
	}
	return r.withMember(playerID, func(p *Player) {
		r.broadcastLocked(proto.Chat{
			Type: proto.OutboundTypeChat,
			ID:   p.ID,
			Text: text,
		})
	})
}

// SetAvatar stores a generated avatar reference for a member.
func (r *Room) SetAvatar(playerID, avatarURL string) error {
	return r.withMember(playerID, func(p *Player) {
		p.Avatar = avatarURL
		r.broadcastLocked(proto.AvatarUpdated{
			Type:      proto.OutboundTypeAvatarUpdated,
			ID:        p.ID,
			AvatarURL: avatarURL,
		})
		r.broadcastPlayersLocked()
	})
}

func (r *Room) withMember(playerID string, fn func(p *Player)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.members[playerID]
	if !ok || r.destroyed {
		return ErrNotMember
	}
	fn(p)
	return nil
}

// admitLocked adds a player, replies to it with replyType and announces the
// new membership. The first admitted player becomes host.
func (r *Room) admitLocked(p *Player, replyType string) {
	r.members[p.ID] = p
	r.order = append(r.order, p.ID)
	if r.hostID == "" {
		r.hostID = p.ID
	}

	p.session.send(proto.RoomState{
		Type:     replyType,
		RoomID:   r.ID,
		PlayerID: p.ID,
		HostID:   r.hostID,
		Players:  r.playersLocked(),
	})
	r.broadcastPlayersLocked()
}

// removeLocked drops a player and hands the host role to the longest-standing
// remaining member. It reports whether the player was present and whether the
// room is now empty, in which case it is marked destroyed.
func (r *Room) removeLocked(playerID string) (removed, empty bool) {
	if _, ok := r.members[playerID]; !ok {
		return false, false
	}

	delete(r.members, playerID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == playerID })

	if len(r.members) == 0 {
		r.destroyed = true
		r.hostID = ""
		return true, true
	}

	if r.hostID == playerID {
		r.hostID = r.order[0]
		r.log.Info().Str("host_id", r.hostID).Msg("host changed")
	}
	return true, false
}

func (r *Room) playersLocked() map[string]proto.PlayerView {
	out := make(map[string]proto.PlayerView, len(r.members))
	for id, p := range r.members {
		out[id] = p.View()
	}
	return out
}

func (r *Room) broadcastPlayersLocked() {
	r.broadcastLocked(proto.Players{
		Type:    proto.OutboundTypePlayers,
		HostID:  r.hostID,
		Players: r.playersLocked(),
	})
}
