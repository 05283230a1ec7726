package core

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/partyroom-server/internal/proto"
)

// binding ties a session to its player in a room.
type binding struct {
	room     *Room
	playerID string
}

// Session is the server side of one client connection. The transport feeds
// inbound frames to Handle and drains Outbox onto the wire.
type Session struct {
	ID string

	hub    *Hub
	out    chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger

	mu    sync.Mutex
	bound *binding
}

// Outbox yields encoded frames queued for this connection.
func (s *Session) Outbox() <-chan []byte {
	return s.out
}

// Done is closed when the session is disconnected or the hub shuts down.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Binding reports the room code and player id the session is bound to.
func (s *Session) Binding() (roomID, playerID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound == nil {
		return "", "", false
	}
	return s.bound.room.ID, s.bound.playerID, true
}

// Handle decodes and dispatches one inbound frame. Malformed frames and
// actions that are not allowed in the session's current state are dropped.
func (s *Session) Handle(frame []byte) {
	in, err := proto.Decode(frame)
	if err != nil {
		s.log.Debug().Err(err).Msg("dropping frame")
		return
	}

	switch in.Type {
	case proto.InboundTypeCreateRoom:
		s.createRoom(in)
	case proto.InboundTypeJoinRoom:
		s.joinRoom(in)
	default:
		s.dispatchBound(in)
	}
}

func (s *Session) createRoom(in proto.Inbound) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if s.bound != nil {
		s.log.Debug().Err(ErrAlreadyBound).Msg("ignoring createRoom")
		return
	}

	room, player, err := s.hub.rooms.Create(s, proto.String(in.Name), proto.String(in.Avatar))
	if err != nil {
		s.log.Error().Err(err).Msg("create room")
		return
	}
	s.bind(room, player)
}

func (s *Session) joinRoom(in proto.Inbound) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if s.bound != nil {
		s.log.Debug().Err(ErrAlreadyBound).Msg("ignoring joinRoom")
		return
	}

	room, player, err := s.hub.rooms.Join(s, proto.String(in.RoomID), proto.String(in.Name), proto.String(in.Avatar))
	if err != nil {
		if ce := roomErrorFor(err); ce != nil {
			s.log.Debug().Err(err).Str("code", ce.Code).Msg("join refused")
			s.send(proto.RoomError{Type: proto.OutboundTypeRoomError, Message: ce.Message})
			return
		}
		s.log.Error().Err(err).Msg("join room")
		return
	}
	s.bind(room, player)
}

// bind records the session's new membership. Caller holds s.mu.
func (s *Session) bind(room *Room, player *Player) {
	s.bound = &binding{room: room, playerID: player.ID}
}

func (s *Session) dispatchBound(in proto.Inbound) {
	s.mu.Lock()
	b := s.bound
	s.mu.Unlock()

	if b == nil {
		s.log.Debug().Err(ErrNotBound).Str("type", in.Type).Msg("ignoring action")
		return
	}

	var err error
	switch in.Type {
	case proto.InboundTypeSetName:
		err = b.room.SetName(b.playerID, proto.String(in.Value))
	case proto.InboundTypeSetPhase:
		err = b.room.SetPhase(b.playerID, proto.Int(in.Value, MinPhase))
	case proto.InboundTypeStartGame:
		err = b.room.Start(b.playerID)
	case proto.InboundTypePhaseDone:
		err = b.room.PhaseDone(b.playerID)
	case proto.InboundTypeScoreSubmit:
		err = b.room.SubmitScore(b.playerID, proto.Int(in.Points, 0))
	case proto.InboundTypeChat:
		err = b.room.Chat(b.playerID, proto.String(in.Text))
	case proto.InboundTypeGenerateAvatar:
		s.generateAvatar(b, proto.String(in.Prompt))
	case proto.InboundTypeLeaveRoom:
		s.leave()
	default:
		s.log.Debug().Str("type", in.Type).Msg("unknown message type")
	}

	if err != nil {
		ev := s.log.Error()
		if errors.Is(err, ErrForbidden) || errors.Is(err, ErrAlreadyStarted) || errors.Is(err, ErrNotMember) {
			ev = s.log.Debug()
		}
		ev.Err(err).Str("room_id", b.room.ID).Str("player_id", b.playerID).Str("type", in.Type).Msg("ignoring action")
	}
}

// leave drops the session's membership, if any. The session may create or
// join a room again afterwards and will get a new player id.
func (s *Session) leave() {
	s.mu.Lock()
	b := s.bound
	s.bound = nil
	s.mu.Unlock()

	if b == nil {
		return
	}
	s.hub.rooms.Leave(b.room.ID, b.playerID)
}

// send encodes msg and queues it for this connection only.
func (s *Session) send(msg any) {
	data, err := proto.Encode(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("encode reply")
		return
	}
	if !s.enqueue(data) {
		s.log.Warn().Msg("dropping reply for slow consumer")
	}
}

// enqueue never blocks; it reports false when the outbox is full.
func (s *Session) enqueue(data []byte) bool {
	select {
	case s.out <- data:
		return true
	default:
		return false
	}
}
