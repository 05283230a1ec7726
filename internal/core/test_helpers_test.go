package core

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/vovakirdan/partyroom-server/internal/proto"
)

// seqRandom replays vals in order and then repeats the last one.
type seqRandom struct {
	vals []int
	i    int
}

func (r *seqRandom) Intn(n int) int {
	if len(r.vals) == 0 {
		return 0
	}
	v := r.vals[min(r.i, len(r.vals)-1)]
	r.i++
	return v % n
}

type avatarFunc func(ctx context.Context, prompt string) (string, error)

func (f avatarFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	h := NewHub(opts, nil)
	t.Cleanup(h.Close)
	return h
}

func nextFrame(t *testing.T, s *Session) []byte {
	t.Helper()

	select {
	case data := <-s.Outbox():
		return data
	case <-time.After(2 * time.Second):
		t.Fatalf("session %s: no frame received", s.ID)
		return nil
	}
}

// mustFrame skips frames until one of the given type arrives.
func mustFrame(t *testing.T, s *Session, typ string) []byte {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-s.Outbox():
			if frameType(t, data) == typ {
				return data
			}
		case <-deadline:
			t.Fatalf("session %s: expected frame %q not received", s.ID, typ)
			return nil
		}
	}
}

func noFrame(t *testing.T, s *Session, within time.Duration) {
	t.Helper()

	select {
	case data := <-s.Outbox():
		t.Fatalf("session %s: expected no frame, got %s", s.ID, data)
	case <-time.After(within):
	}
}

func drain(s *Session) {
	for {
		select {
		case <-s.Outbox():
		default:
			return
		}
	}
}

func frameType(t *testing.T, data []byte) string {
	t.Helper()
	return decode[struct {
		Type string `json:"type"`
	}](t, data).Type
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

// createRoom connects a session that creates a room and returns it with the
// roomCreated reply. The follow-up players frame is consumed.
func createRoom(t *testing.T, h *Hub, name string) (*Session, proto.RoomState) {
	t.Helper()

	s := h.Connect()
	s.Handle([]byte(`{"type":"createRoom","name":"` + name + `"}`))
	created := decode[proto.RoomState](t, mustFrame(t, s, proto.OutboundTypeRoomCreated))
	mustFrame(t, s, proto.OutboundTypePlayers)
	return s, created
}

// joinRoom connects a session that joins code and returns the roomJoined reply.
func joinRoom(t *testing.T, h *Hub, code, name string) (*Session, proto.RoomState) {
	t.Helper()

	s := h.Connect()
	s.Handle([]byte(`{"type":"joinRoom","roomId":"` + code + `","name":"` + name + `"}`))
	joined := decode[proto.RoomState](t, mustFrame(t, s, proto.OutboundTypeRoomJoined))
	mustFrame(t, s, proto.OutboundTypePlayers)
	return s, joined
}
