package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/partyroom-server/internal/core"
)

// RoomHandlers provides read-only HTTP views over live rooms.
type RoomHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		hub: hub,
		log: logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RoomResponse describes a room to a client deciding whether to join.
type RoomResponse struct {
	RoomID      string `json:"roomId"`
	Started     bool   `json:"started"`
	PlayerCount int    `json:"playerCount"`
	Joinable    bool   `json:"joinable"`
}

// StatsResponse reports live counters.
type StatsResponse struct {
	Rooms    int `json:"rooms"`
	Sessions int `json:"sessions"`
}

// GetRoom returns a summary of one room.
// GET /api/rooms/:code
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	room, ok := h.hub.Rooms().Get(code)
	if !ok {
		h.log.Debug().Str("room_id", code).Msg("room preview for unknown room")
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}

	snap := room.Snapshot()
	c.JSON(http.StatusOK, RoomResponse{
		RoomID:      snap.ID,
		Started:     snap.Started,
		PlayerCount: len(snap.Players),
		Joinable:    !snap.Started,
	})
}

// Stats reports how many rooms and connections are live.
// GET /api/stats
func (h *RoomHandlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		Rooms:    h.hub.Rooms().Len(),
		Sessions: h.hub.SessionCount(),
	})
}
