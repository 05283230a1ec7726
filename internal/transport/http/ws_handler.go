package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/partyroom-server/internal/core"
)

const writeTimeout = 10 * time.Second

// WSOptions bounds what a single connection may send.
type WSOptions struct {
	MaxMessageBytes int64
	RatePerSec      float64
	RateBurst       int
}

// WSHandler upgrades HTTP connections and bridges them to core sessions.
type WSHandler struct {
	hub  *core.Hub
	opts WSOptions
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, opts WSOptions, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, opts: opts, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	session := h.hub.Connect()
	defer h.hub.Disconnect(session)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch {
	case err == nil:
		status = websocket.StatusGoingAway
		reason = "server shutting down"
	case errors.Is(err, context.Canceled):
	default:
		closeStatus := websocket.CloseStatus(err)
		if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
			h.log.Debug().Str("session_id", session.ID).Msg("ws peer closed")
		} else {
			h.log.Warn().Err(err).Str("session_id", session.ID).Msg("ws connection closed with error")
			if closeStatus == -1 {
				status = websocket.StatusInternalError
				reason = "internal error"
			} else {
				status = closeStatus
			}
		}
	}

	_ = conn.Close(status, reason)
}

// readLoop hands every frame to the session. Frames above the rate limit are dropped.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	limiter := newRateLimiter(h.opts.RatePerSec, h.opts.RateBurst)
	var dropped int
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if !allowFrame(limiter, &dropped, h.log, session.ID) {
			continue
		}
		session.Handle(data)
	}
}

func allowFrame(limiter *rate.Limiter, dropped *int, logger *zerolog.Logger, sessionID string) bool {
	if allow(limiter) {
		*dropped = 0
		return true
	}
	*dropped++
	if *dropped == 1 {
		logger.Warn().Str("session_id", sessionID).Msg("rate limit exceeded, dropping frames")
	}
	return false
}

// writeLoop drains the session outbox onto the wire. It returns nil when the
// session is shut down from the server side.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	for {
		select {
		case frame := <-session.Outbox():
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				h.log.Error().Err(err).Str("session_id", session.ID).Msg("write ws frame")
				return err
			}
		case <-session.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
