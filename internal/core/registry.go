package core

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/partyroom-server/internal/proto"
	"github.com/vovakirdan/partyroom-server/internal/utils"
)

const (
	codeMin = 10000
	codeMax = 99999

	// maxCodeAttempts bounds collision retries when drawing a room code.
	maxCodeAttempts = 64
)

// Registry owns the mapping from room code to live room.
//
// Lock order: the registry lock may be held while taking the lock of a room
// that is not yet published. A room lock is never held while waiting for the
// registry lock.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	rand       utils.Random
	nextPlayer atomic.Uint64
	log        *zerolog.Logger
}

// NewRegistry creates an empty registry drawing room codes from rnd.
func NewRegistry(rnd utils.Random, logger *zerolog.Logger) *Registry {
	if rnd == nil {
		rnd = utils.NewRandom()
	}
	return &Registry{
		rooms: make(map[string]*Room),
		rand:  rnd,
		log:   logger,
	}
}

// Create opens a new room with the session's player as its only member and
// host. The owner receives roomCreated, then the room gets a players snapshot.
func (g *Registry) Create(s *Session, name, avatar string) (*Room, *Player, error) {
	g.mu.Lock()

	code, err := g.allocateCodeLocked()
	if err != nil {
		g.mu.Unlock()
		return nil, nil, err
	}

	room := newRoom(code, g.log)
	player := newPlayer(g.newPlayerID(), name, avatar, s)

	room.mu.Lock()
	g.rooms[code] = room
	g.mu.Unlock()

	room.admitLocked(player, proto.OutboundTypeRoomCreated)
	room.mu.Unlock()

	g.log.Info().Str("room_id", code).Str("player_id", player.ID).Msg("room created")
	return room, player, nil
}

// Join adds a new player to the room with the given code.
func (g *Registry) Join(s *Session, code, name, avatar string) (*Room, *Player, error) {
	code = strings.TrimSpace(code)

	g.mu.Lock()
	room, ok := g.rooms[code]
	g.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("join %q: %w", code, ErrRoomNotFound)
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.destroyed {
		return nil, nil, fmt.Errorf("join %q: %w", code, ErrRoomNotFound)
	}
	if room.started {
		return nil, nil, fmt.Errorf("join %q: %w", code, ErrAlreadyStarted)
	}

	player := newPlayer(g.newPlayerID(), name, avatar, s)
	room.admitLocked(player, proto.OutboundTypeRoomJoined)

	g.log.Info().Str("room_id", code).Str("player_id", player.ID).Msg("player joined")
	return room, player, nil
}

// Leave removes a player from a room. The last player out destroys the room;
// a departing host is replaced by a remaining member.
func (g *Registry) Leave(code, playerID string) {
	room, ok := g.lookup(code)
	if !ok {
		return
	}

	room.mu.Lock()
	removed, empty := room.removeLocked(playerID)
	if removed && !empty {
		room.broadcastPlayersLocked()
	}
	room.mu.Unlock()

	if !removed {
		return
	}
	g.log.Info().Str("room_id", code).Str("player_id", playerID).Msg("player left")

	if empty {
		g.mu.Lock()
		if g.rooms[code] == room {
			delete(g.rooms, code)
		}
		g.mu.Unlock()
		g.log.Info().Str("room_id", code).Msg("room deleted")
	}
}

// Get returns the live room with the given code.
func (g *Registry) Get(code string) (*Room, bool) {
	return g.lookup(strings.TrimSpace(code))
}

// Len returns the number of rooms in the registry.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Codes returns the codes of all rooms in the registry.
func (g *Registry) Codes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	codes := make([]string, 0, len(g.rooms))
	for code := range g.rooms {
		codes = append(codes, code)
	}
	return codes
}

func (g *Registry) lookup(code string) (*Room, bool) {
	g.mu.Lock()
	room, ok := g.rooms[code]
	g.mu.Unlock()
	if !ok {
		return nil, false
	}

	room.mu.Lock()
	destroyed := room.destroyed
	room.mu.Unlock()
	if destroyed {
		return nil, false
	}
	return room, true
}

func (g *Registry) allocateCodeLocked() (string, error) {
	for range maxCodeAttempts {
		code := strconv.Itoa(codeMin + g.rand.Intn(codeMax-codeMin+1))
		if _, taken := g.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("after %d attempts: %w", maxCodeAttempts, ErrNoFreeCode)
}

func (g *Registry) newPlayerID() string {
	return "p" + strconv.FormatUint(g.nextPlayer.Add(1), 10)
}
