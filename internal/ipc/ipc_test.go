package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, h Handler) string {
	t.Helper()
	// unix socket paths are length limited; keep it short
	path := filepath.Join(t.TempDir(), "c.sock")

	srv, err := Listen(path, h)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return path
}

func TestRoundTrip(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	path := startServer(t, func(_ context.Context, msg ControlMessage) ControlReply {
		mu.Lock()
		seen = append(seen, msg.Cmd)
		mu.Unlock()
		switch msg.Cmd {
		case CmdStatus:
			return ControlReply{OK: true, Snapshot: json.RawMessage(`{"state":"idle"}`)}
		case CmdTrigger:
			return ControlReply{OK: true}
		}
		return Fail(errors.New("unknown command"))
	})

	ctx := context.Background()
	reply, err := SendCommand(ctx, path, CmdStatus)
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"idle"}`, string(reply.Snapshot))

	_, err = SendCommand(ctx, path, CmdTrigger)
	require.NoError(t, err)

	_, err = SendCommand(ctx, path, "dance")
	assert.EqualError(t, err, "dance: unknown command")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{CmdStatus, CmdTrigger, "dance"}, seen)
}

func TestBadRequest(t *testing.T) {
	path := startServer(t, func(context.Context, ControlMessage) ControlReply {
		return ControlReply{OK: true}
	})

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)

	var reply ControlReply
	require.NoError(t, json.NewDecoder(conn).Decode(&reply))
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Error, "decode")
}

func TestSendCommand_NoDaemon(t *testing.T) {
	_, err := SendCommand(context.Background(), filepath.Join(t.TempDir(), "none.sock"), CmdStatus)
	assert.Error(t, err)
}

func TestListen_ReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, ln.Close())

	srv, err := Listen(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, srv.Addr())
	srv.ln.Close()
}
