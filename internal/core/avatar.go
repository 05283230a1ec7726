package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/partyroom-server/internal/proto"
)

// AvatarGenerator turns a free-text prompt into an image reference.
type AvatarGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// generateAvatar starts a generation for the bound player without blocking
// the session. The room lock is only taken again to merge the result.
func (s *Session) generateAvatar(b *binding, prompt string) {
	prompt = NormalizePrompt(prompt)
	if prompt == "" {
		return
	}

	logger := s.log.With().Str("room_id", b.room.ID).Str("player_id", b.playerID).Logger()

	h := s.hub
	if h.avatars == nil {
		logger.Debug().Msg("avatar generation disabled")
		s.sendAvatarError()
		return
	}

	started := h.spawn(func() {
		ctx, cancel := context.WithTimeout(s.ctx, h.avatarTimeout)
		defer cancel()

		url, err := h.avatars.Generate(ctx, prompt)
		if err == nil && url == "" {
			err = errors.New("empty image reference")
		}
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			logger.Warn().Err(fmt.Errorf("%w: %w", ErrUpstream, err)).Msg("avatar generation failed")
			s.sendAvatarError()
			return
		}

		if err := b.room.SetAvatar(b.playerID, url); err != nil {
			logger.Debug().Err(err).Msg("discarding avatar for departed player")
			return
		}
		logger.Info().Msg("avatar updated")
	})
	if !started {
		s.sendAvatarError()
	}
}

func (s *Session) sendAvatarError() {
	s.send(proto.AvatarError{Type: proto.OutboundTypeAvatarError, Message: msgAvatarFailed})
}
