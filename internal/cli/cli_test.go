package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/partyroom-server/internal/config"
	"github.com/vovakirdan/partyroom-server/internal/core"
	"github.com/vovakirdan/partyroom-server/internal/proto"
	transporthttp "github.com/vovakirdan/partyroom-server/internal/transport/http"
)

func startServer(t *testing.T) string {
	t.Helper()
	logger := zerolog.Nop()
	hub := core.NewHub(core.Options{}, &logger)
	t.Cleanup(hub.Close)

	cfg := config.Default()
	srv := transporthttp.NewServer(hub, &cfg, &logger)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}

func TestParseLine(t *testing.T) {
	cases := []struct {
		line string
		want map[string]any
	}{
		{"", nil},
		{"   ", nil},
		{"hello there", map[string]any{"type": proto.InboundTypeChat, "text": "hello there"}},
		{"/create Ana", map[string]any{"type": proto.InboundTypeCreateRoom, "name": "Ana"}},
		{"/join 12345 Bo", map[string]any{"type": proto.InboundTypeJoinRoom, "roomId": "12345", "name": "Bo"}},
		{"/join 12345", map[string]any{"type": proto.InboundTypeJoinRoom, "roomId": "12345", "name": ""}},
		{"/name  Cleo ", map[string]any{"type": proto.InboundTypeSetName, "value": "Cleo"}},
		{"/phase 4", map[string]any{"type": proto.InboundTypeSetPhase, "value": 4}},
		{"/score -3", map[string]any{"type": proto.InboundTypeScoreSubmit, "points": -3}},
		{"/start", map[string]any{"type": proto.InboundTypeStartGame}},
		{"/done", map[string]any{"type": proto.InboundTypePhaseDone}},
		{"/avatar a tiny dragon", map[string]any{"type": proto.InboundTypeGenerateAvatar, "prompt": "a tiny dragon"}},
		{"/leave", map[string]any{"type": proto.InboundTypeLeaveRoom}},
	}
	for _, tc := range cases {
		got, err := parseLine(tc.line)
		require.NoError(t, err, tc.line)
		assert.Equal(t, tc.want, got, tc.line)
	}

	for _, bad := range []string{"/join", "/phase x", "/score", "/avatar", "/dance"} {
		_, err := parseLine(bad)
		assert.Error(t, err, bad)
	}
}

func TestRender(t *testing.T) {
	assert.Equal(t, "[p1] hi", render([]byte(`{"type":"chat","id":"p1","text":"hi"}`)))
	assert.Equal(t, "! Raum nicht gefunden.", render([]byte(`{"type":"roomError","message":"Raum nicht gefunden."}`)))
	assert.Equal(t, "* game started", render([]byte(`{"type":"roomStart"}`)))
	assert.Equal(t, "* p2 scored +5, total 7", render([]byte(`{"type":"scoreUpdate","id":"p2","points":5,"total":7}`)))
	assert.Equal(t, `{"type":"mystery"}`, render([]byte(`{"type":"mystery"}`)))

	players := render([]byte(`{"type":"players","hostId":"p1","players":{"p2":{"name":"Bo","avatar":"x","phase":2,"score":0},"p1":{"name":"Ana","avatar":"y","phase":1,"score":3}}}`))
	assert.Equal(t, "* players:\n    p1 y Ana (host) phase=1 score=3\n    p2 x Bo phase=2 score=0", players)
}

func TestRunSmoke(t *testing.T) {
	addr := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := runSmoke(ctx, addr, "ping")
	require.NoError(t, err)
	assert.Len(t, res.RoomID, 5)
	assert.NotEqual(t, res.HostID, res.GuestID)
	assert.Equal(t, "ping", res.Text)
}

func TestSmokeCommand(t *testing.T) {
	addr := startServer(t)

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"smoke", "--addr", addr, "--text", "via cobra"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), `chat="via cobra"`)
}

func TestSmokeFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := runSmoke(ctx, "ws://127.0.0.1:1/ws", "x")
	assert.Error(t, err)
}
