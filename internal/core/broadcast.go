package core

import (
	"github.com/vovakirdan/partyroom-server/internal/proto"
)

// BroadcastRoom delivers msg to every current member of the room with the
// given code. Unknown or already destroyed rooms are ignored.
func (g *Registry) BroadcastRoom(code string, msg any) {
	room, ok := g.lookup(code)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	room.broadcastLocked(msg)
}

// broadcastLocked encodes msg once and queues it on every member's outbox.
// A full outbox drops the frame for that member only; the member stays in the
// room until its connection reports the close. Caller must hold r.mu.
func (r *Room) broadcastLocked(msg any) {
	if r.destroyed {
		return
	}

	data, err := proto.Encode(msg)
	if err != nil {
		r.log.Error().Err(err).Msg("encode broadcast")
		return
	}

	for id, p := range r.members {
		if !p.session.enqueue(data) {
			r.log.Warn().Str("player_id", id).Msg("dropping frame for slow consumer")
		}
	}
}
