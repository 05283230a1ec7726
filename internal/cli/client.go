package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/partyroom-server/internal/proto"
)

const clientHelp = `Commands:
  /create [name]        create a room
  /join <code> [name]   join a room
  /name <name>          rename yourself
  /phase <n>            set your phase (1-10)
  /score <n>            add points to your score
  /start                start the game (host only)
  /done                 announce you finished a phase
  /avatar <prompt>      generate an avatar
  /leave                leave the room
  anything else         chat`

func newClientCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Interactive terminal client",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			conn, _, err := websocket.Dial(ctx, addr, nil)
			if err != nil {
				return fmt.Errorf("dial: %w", err)
			}
			defer conn.Close(websocket.StatusNormalClosure, "bye")

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connected to %s\n%s\n", addr, clientHelp)

			go func() {
				defer cancel()
				readFrames(ctx, conn, out)
			}()

			return writeLines(ctx, conn, cmd.InOrStdin(), out)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "ws://localhost:3000/ws", "WebSocket address")

	return cmd
}

func readFrames(ctx context.Context, conn *websocket.Conn, out io.Writer) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			fmt.Fprintf(out, "read error: %v\n", err)
			return
		}
		fmt.Fprintln(out, render(data))
	}
}

func writeLines(ctx context.Context, conn *websocket.Conn, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			msg, err := parseLine(line)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			if msg == nil {
				continue
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}

// parseLine turns one line of input into an inbound message. Blank lines
// yield nil.
func parseLine(line string) (map[string]any, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if !strings.HasPrefix(line, "/") {
		return map[string]any{"type": proto.InboundTypeChat, "text": line}, nil
	}

	cmd, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "create":
		return map[string]any{"type": proto.InboundTypeCreateRoom, "name": rest}, nil
	case "join":
		code, name, _ := strings.Cut(rest, " ")
		if code == "" {
			return nil, errors.New("usage: /join <code> [name]")
		}
		return map[string]any{"type": proto.InboundTypeJoinRoom, "roomId": code, "name": strings.TrimSpace(name)}, nil
	case "name":
		return map[string]any{"type": proto.InboundTypeSetName, "value": rest}, nil
	case "phase":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return nil, errors.New("usage: /phase <n>")
		}
		return map[string]any{"type": proto.InboundTypeSetPhase, "value": n}, nil
	case "score":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return nil, errors.New("usage: /score <n>")
		}
		return map[string]any{"type": proto.InboundTypeScoreSubmit, "points": n}, nil
	case "start":
		return map[string]any{"type": proto.InboundTypeStartGame}, nil
	case "done":
		return map[string]any{"type": proto.InboundTypePhaseDone}, nil
	case "avatar":
		if rest == "" {
			return nil, errors.New("usage: /avatar <prompt>")
		}
		return map[string]any{"type": proto.InboundTypeGenerateAvatar, "prompt": rest}, nil
	case "leave":
		return map[string]any{"type": proto.InboundTypeLeaveRoom}, nil
	default:
		return nil, fmt.Errorf("unknown command /%s\n%s", cmd, clientHelp)
	}
}

// render formats an outbound frame for the terminal.
func render(frame []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame, &head); err != nil {
		return "? " + string(frame)
	}

	switch head.Type {
	case proto.OutboundTypeRoomCreated, proto.OutboundTypeRoomJoined:
		var m proto.RoomState
		if json.Unmarshal(frame, &m) == nil {
			return fmt.Sprintf("* %s %s as %s (host %s)", head.Type, m.RoomID, m.PlayerID, m.HostID)
		}
	case proto.OutboundTypePlayers:
		var m proto.Players
		if json.Unmarshal(frame, &m) == nil {
			return renderPlayers(m)
		}
	case proto.OutboundTypeRoomError, proto.OutboundTypeAvatarError:
		var m proto.RoomError
		if json.Unmarshal(frame, &m) == nil {
			return "! " + m.Message
		}
	case proto.OutboundTypeRoomStart:
		return "* game started"
	case proto.OutboundTypeRoundStart:
		var m proto.RoundStart
		if json.Unmarshal(frame, &m) == nil {
			return fmt.Sprintf("* %s (%s) finished the phase", m.Name, m.Finisher)
		}
	case proto.OutboundTypeScoreUpdate:
		var m proto.ScoreUpdate
		if json.Unmarshal(frame, &m) == nil {
			return fmt.Sprintf("* %s scored %+d, total %d", m.ID, m.Points, m.Total)
		}
	case proto.OutboundTypeChat:
		var m proto.Chat
		if json.Unmarshal(frame, &m) == nil {
			return fmt.Sprintf("[%s] %s", m.ID, m.Text)
		}
	case proto.OutboundTypeAvatarUpdated:
		var m proto.AvatarUpdated
		if json.Unmarshal(frame, &m) == nil {
			return fmt.Sprintf("* %s has a new avatar: %s", m.ID, m.AvatarURL)
		}
	}
	return string(frame)
}

func renderPlayers(m proto.Players) string {
	ids := make([]string, 0, len(m.Players))
	for id := range m.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("* players:")
	for _, id := range ids {
		p := m.Players[id]
		marker := ""
		if id == m.HostID {
			marker = " (host)"
		}
		fmt.Fprintf(&b, "\n    %s %s %s%s phase=%d score=%d", id, p.Avatar, p.Name, marker, p.Phase, p.Score)
	}
	return b.String()
}
