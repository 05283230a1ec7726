package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/partyroom-server/internal/proto"
)

func newSmokeCmd() *cobra.Command {
	var (
		addr    string
		text    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Create a room, join it from a second connection and exchange a chat line",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			res, err := runSmoke(ctx, addr, text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "room=%s host=%s guest=%s chat=%q\n", res.RoomID, res.HostID, res.GuestID, res.Text)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "ws://localhost:3000/ws", "WebSocket address")
	cmd.Flags().StringVar(&text, "text", "hello from smoke test", "chat line to send")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "total timeout for the run")

	return cmd
}

type smokeResult struct {
	RoomID  string
	HostID  string
	GuestID string
	Text    string
}

func runSmoke(ctx context.Context, addr, text string) (smokeResult, error) {
	var res smokeResult

	host, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return res, fmt.Errorf("dial host: %w", err)
	}
	defer host.Close(websocket.StatusNormalClosure, "bye")

	guest, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return res, fmt.Errorf("dial guest: %w", err)
	}
	defer guest.Close(websocket.StatusNormalClosure, "bye")

	if err := wsjson.Write(ctx, host, map[string]any{"type": proto.InboundTypeCreateRoom, "name": "smoke-host"}); err != nil {
		return res, fmt.Errorf("send createRoom: %w", err)
	}
	var created proto.RoomState
	if err := awaitType(ctx, host, proto.OutboundTypeRoomCreated, &created); err != nil {
		return res, err
	}
	res.RoomID, res.HostID = created.RoomID, created.PlayerID

	if err := wsjson.Write(ctx, guest, map[string]any{"type": proto.InboundTypeJoinRoom, "roomId": created.RoomID, "name": "smoke-guest"}); err != nil {
		return res, fmt.Errorf("send joinRoom: %w", err)
	}
	var joined proto.RoomState
	if err := awaitType(ctx, guest, proto.OutboundTypeRoomJoined, &joined); err != nil {
		return res, err
	}
	res.GuestID = joined.PlayerID

	if err := wsjson.Write(ctx, host, map[string]any{"type": proto.InboundTypeChat, "text": text}); err != nil {
		return res, fmt.Errorf("send chat: %w", err)
	}
	var chat proto.Chat
	if err := awaitType(ctx, guest, proto.OutboundTypeChat, &chat); err != nil {
		return res, err
	}
	res.Text = chat.Text
	return res, nil
}

// awaitType reads frames until one of type typ arrives. A roomError is
// returned as an error.
func awaitType(ctx context.Context, conn *websocket.Conn, typ string, out any) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("await %s: %w", typ, err)
		}
		var head struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
		switch head.Type {
		case typ:
			return json.Unmarshal(data, out)
		case proto.OutboundTypeRoomError:
			return fmt.Errorf("await %s: room error: %s", typ, head.Message)
		}
	}
}
