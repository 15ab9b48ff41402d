package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wes/internal/ipc"
)

func serve(t *testing.T, h ipc.Handler) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "w.sock")
	srv, err := ipc.Listen(path, h)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatusPrintsSnapshot(t *testing.T) {
	path := serve(t, func(_ context.Context, msg ipc.ControlMessage) ipc.ControlReply {
		assert.Equal(t, ipc.CmdStatus, msg.Cmd)
		return ipc.ControlReply{OK: true, Snapshot: json.RawMessage(`{"state":"idle","word_cached":false}`)}
	})

	out, err := execute(t, "status", "--socket", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"state": "idle"`)
}

func TestTriggerAndReset(t *testing.T) {
	got := make(chan string, 2)
	path := serve(t, func(_ context.Context, msg ipc.ControlMessage) ipc.ControlReply {
		got <- msg.Cmd
		return ipc.ControlReply{OK: true}
	})

	_, err := execute(t, "trigger", "--socket", path)
	require.NoError(t, err)
	_, err = execute(t, "reset", "--socket", path)
	require.NoError(t, err)

	assert.Equal(t, ipc.CmdTrigger, <-got)
	assert.Equal(t, ipc.CmdReset, <-got)
}

func TestDaemonError(t *testing.T) {
	path := serve(t, func(context.Context, ipc.ControlMessage) ipc.ControlReply {
		return ipc.Fail(errors.New("queue full"))
	})

	_, err := execute(t, "reset", "--socket", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue full")
	assert.NotContains(t, err.Error(), "not running")
}

func TestDaemonNotRunning(t *testing.T) {
	_, err := execute(t, "trigger", "--socket", filepath.Join(t.TempDir(), "none.sock"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}
