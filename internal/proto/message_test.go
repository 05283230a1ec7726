package proto

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	frames := []string{
		`{not json`,
		`42`,
		`"createRoom"`,
		`[]`,
		`{}`,
		`{"type":""}`,
		`null`,
	}
	for _, frame := range frames {
		_, err := Decode([]byte(frame))
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("frame %q: expected ErrMalformed, got %v", frame, err)
		}
	}
}

func TestDecodeFlatFields(t *testing.T) {
	in, err := Decode([]byte(`{"type":"joinRoom","roomId":12345,"name":"Ana","avatar":"🐸"}`))
	require.NoError(t, err)

	assert.Equal(t, InboundTypeJoinRoom, in.Type)
	assert.Equal(t, "12345", String(in.RoomID))
	assert.Equal(t, "Ana", String(in.Name))
	assert.Equal(t, "🐸", String(in.Avatar))
	assert.Empty(t, String(in.Text))
}

func TestString(t *testing.T) {
	cases := map[string]string{
		``:        "",
		`null`:    "",
		`false`:   "",
		`true`:    "true",
		`"  hi "`: "  hi ",
		`7`:       "7",
		`-1.5`:    "-1.5",
		`{"a":1}`: "",
		`["x"]`:   "",
		`"ä"`:     "ä",
	}
	for raw, want := range cases {
		assert.Equal(t, want, String(json.RawMessage(raw)), "raw %q", raw)
	}
}

func TestInt(t *testing.T) {
	cases := []struct {
		raw      string
		fallback int
		want     int
	}{
		{``, 1, 1},
		{`null`, 1, 1},
		{`42`, 1, 42},
		{`-3`, 1, -3},
		{`7.9`, 0, 7},
		{`-2.5`, 0, -2},
		{`"5"`, 0, 5},
		{`" 6 "`, 0, 6},
		{`"abc"`, 1, 1},
		{`""`, 0, 0},
		{`true`, 0, 0},
		{`{"n":1}`, 0, 0},
		{`1e300`, 0, 0},
		{`"NaN"`, 1, 1},
		{`"Infinity"`, 1, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Int(json.RawMessage(tc.raw), tc.fallback), "raw %q", tc.raw)
	}
}

func TestEncodePlayersSnapshot(t *testing.T) {
	data, err := Encode(Players{
		Type:   OutboundTypePlayers,
		HostID: "p1",
		Players: map[string]PlayerView{
			"p1": {Name: "Ana", Avatar: "😄", Phase: 1, Score: 0},
		},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"players","hostId":"p1","players":{"p1":{"name":"Ana","avatar":"😄","phase":1,"score":0}}}`, string(data))
}
