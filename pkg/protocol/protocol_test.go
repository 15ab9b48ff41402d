package protocol

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    *Frame
		wantErr bool
	}{
		{
			name: "status frame",
			line: "DISPLAY:status:green:READY_Deep_Sleep:12:WES",
			want: &Frame{To: "DISPLAY", Verb: "STATUS", Noun: "GREEN", Args: []string{"READY_Deep_Sleep", "12"}, From: "WES"},
		},
		{
			name: "no args",
			line: "WES:OK:BLANK:DISPLAY\n",
			want: &Frame{To: "WES", Verb: "OK", Noun: "BLANK", From: "DISPLAY"},
		},
		{name: "empty", line: "  ", wantErr: true},
		{name: "too few fields", line: "A:B:C", wantErr: true},
		{name: "inner space", line: "A:B C:D:E", wantErr: true},
		{name: "bad arg", line: "A:B:C:x'y:E", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, "READY_Deep_Sleep", Tokenize("READY: Deep Sleep"))
	assert.Equal(t, "LISTENING_Say_Yes", Tokenize("LISTENING: Say 'Yes'"))
	assert.Equal(t, "DONE_Wait_Reset", Tokenize("DONE: Wait/Reset"))
	assert.Equal(t, "-", Tokenize("::"))
}

func TestLink_SendAndReceive(t *testing.T) {
	got := make(chan string, 1)
	upgrader := ws.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		got <- string(msg)
		_ = conn.WriteMessage(ws.TextMessage, []byte("OTHER:OK:STATUS:DISPLAY"))
		_ = conn.WriteMessage(ws.TextMessage, []byte("WES:ERR:STATUS:busy:DISPLAY"))
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(server.Close)

	frames := make(chan *Frame, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	link, err := Dial(ctx, Config{
		Shard:        "WES",
		URL:          "ws" + strings.TrimPrefix(server.URL, "http"),
		WriteTimeout: time.Second,
		OnFrame:      func(f *Frame) { frames <- f },
	})
	require.NoError(t, err)
	defer link.Close()
	go link.Run(ctx)

	require.NoError(t, link.Send(ctx, "DISPLAY", "BLANK", "OFF"))
	assert.Equal(t, "DISPLAY:BLANK:OFF:WES", <-got)

	select {
	case f := <-frames:
		assert.True(t, f.IsError())
		assert.Equal(t, []string{"busy"}, f.Args)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}

	assert.Error(t, link.Send(ctx, "DISPLAY", "STATUS", "has space"))
}

func TestDial_InvalidShard(t *testing.T) {
	_, err := Dial(context.Background(), Config{Shard: "W E S", URL: "ws://127.0.0.1:1"})
	assert.Error(t, err)
}
