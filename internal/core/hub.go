package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/partyroom-server/internal/utils"
)

const (
	defaultSendBuffer    = 64
	defaultAvatarTimeout = 30 * time.Second
)

// Options tunes a Hub. Zero values fall back to defaults.
type Options struct {
	// Random draws room codes.
	Random utils.Random
	// Avatars generates avatar images. Nil disables generation.
	Avatars AvatarGenerator
	// AvatarTimeout bounds a single generation.
	AvatarTimeout time.Duration
	// SendBuffer is the outbox capacity of each session.
	SendBuffer int
}

// Hub owns the room registry and the set of live sessions.
type Hub struct {
	rooms         *Registry
	avatars       AvatarGenerator
	avatarTimeout time.Duration
	sendBuffer    int
	log           *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	sessions map[string]*Session
}

// NewHub creates a hub with an empty registry.
func NewHub(opts Options, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.AvatarTimeout <= 0 {
		opts.AvatarTimeout = defaultAvatarTimeout
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:         NewRegistry(opts.Random, logger),
		avatars:       opts.Avatars,
		avatarTimeout: opts.AvatarTimeout,
		sendBuffer:    opts.SendBuffer,
		log:           logger,
		ctx:           ctx,
		cancel:        cancel,
		sessions:      make(map[string]*Session),
	}
}

// Rooms exposes the room registry.
func (h *Hub) Rooms() *Registry {
	return h.rooms
}

// Connect registers a new session for a freshly accepted connection.
func (h *Hub) Connect() *Session {
	ctx, cancel := context.WithCancel(h.ctx)
	s := &Session{
		ID:     utils.NewID(),
		hub:    h,
		out:    make(chan []byte, h.sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	s.log = h.log.With().Str("session_id", s.ID).Logger()

	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	s.log.Debug().Msg("session connected")
	return s
}

// Disconnect removes a session whose connection closed, leaving its room.
func (h *Hub) Disconnect(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	h.mu.Unlock()
	if !ok {
		return
	}

	s.cancel()
	s.leave()
	s.log.Debug().Msg("session disconnected")
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Run blocks until ctx is done, then stops background work.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.Close()
}

// Close cancels in-flight avatar generations and waits for them to finish.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	h.tasks.Wait()
	h.log.Info().Int("rooms", h.rooms.Len()).Msg("hub stopped")
}

// spawn runs fn in the background unless the hub is closed.
func (h *Hub) spawn(fn func()) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}

	h.tasks.Add(1)
	go func() {
		defer h.tasks.Done()
		fn()
	}()
	return true
}
