package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned for frames that are not a JSON object with a type.
var ErrMalformed = errors.New("malformed frame")

// Inbound is a message coming from the client. All fields are flat on the
// frame; the ones a given type does not use are ignored.
type Inbound struct {
	Type   string          `json:"type"`
	Name   json.RawMessage `json:"name,omitempty"`
	Avatar json.RawMessage `json:"avatar,omitempty"`
	RoomID json.RawMessage `json:"roomId,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	Points json.RawMessage `json:"points,omitempty"`
	Text   json.RawMessage `json:"text,omitempty"`
	Prompt json.RawMessage `json:"prompt,omitempty"`
}

const (
	InboundTypeCreateRoom     = "createRoom"
	InboundTypeJoinRoom       = "joinRoom"
	InboundTypeLeaveRoom      = "leaveRoom"
	InboundTypeSetName        = "setName"
	InboundTypeSetPhase       = "setPhase"
	InboundTypeStartGame      = "startGame"
	InboundTypePhaseDone      = "phaseDone"
	InboundTypeScoreSubmit    = "scoreSubmit"
	InboundTypeChat           = "chat"
	InboundTypeGenerateAvatar = "generateAvatar"

	OutboundTypeRoomCreated   = "roomCreated"
	OutboundTypeRoomJoined    = "roomJoined"
	OutboundTypeRoomError     = "roomError"
	OutboundTypePlayers       = "players"
	OutboundTypeRoomStart     = "roomStart"
	OutboundTypeRoundStart    = "roundStart"
	OutboundTypeScoreUpdate   = "scoreUpdate"
	OutboundTypeChat          = "chat"
	OutboundTypeAvatarUpdated = "avatarUpdated"
	OutboundTypeAvatarError   = "avatarError"
)

// Decode parses a single frame. Anything that is not a JSON object carrying a
// non-empty type is reported as ErrMalformed.
func Decode(frame []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.Type == "" {
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return in, nil
}

// Encode serializes an outbound message for the wire.
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

// PlayerView is the public part of a player. Connection handles never leave
// the server.
type PlayerView struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Phase  int    `json:"phase"`
	Score  int    `json:"score"`
}

// RoomState is the reply to a successful createRoom or joinRoom.
type RoomState struct {
	Type     string                `json:"type"`
	RoomID   string                `json:"roomId"`
	PlayerID string                `json:"playerId"`
	HostID   string                `json:"hostId"`
	Players  map[string]PlayerView `json:"players"`
}

// Players is the room-wide membership snapshot.
type Players struct {
	Type    string                `json:"type"`
	HostID  string                `json:"hostId"`
	Players map[string]PlayerView `json:"players"`
}

// RoomError is sent to a client whose join was refused.
type RoomError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RoomStart announces that the host started the game.
type RoomStart struct {
	Type string `json:"type"`
}

// RoundStart announces that a player finished their phase.
type RoundStart struct {
	Type     string `json:"type"`
	Finisher string `json:"finisher"`
	Name     string `json:"name"`
}

// ScoreUpdate carries a submitted delta and the resulting total.
type ScoreUpdate struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Points int    `json:"points"`
	Total  int    `json:"total"`
}

// Chat is a chat line from a room member.
type Chat struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Text string `json:"text"`
}

// AvatarUpdated announces a freshly generated avatar.
type AvatarUpdated struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	AvatarURL string `json:"avatarUrl"`
}

// AvatarError is sent only to the player whose generation failed.
type AvatarError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
