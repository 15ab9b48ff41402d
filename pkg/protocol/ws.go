package protocol

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

type WebSocket struct {
	url     string
	reconn  time.Duration
	timeout time.Duration

	// conn is swapped on reconnect; writes are serialized by mu.
	mu   sync.Mutex
	conn *ws.Conn
}

func DialWebSocket(ctx context.Context, url string, reconn, timeout time.Duration) (*WebSocket, error) {
	log.Debug("init websocket protocol", "url", url)

	if reconn <= 0 {
		reconn = time.Second
	}
	web := &WebSocket{url: url, reconn: reconn, timeout: timeout}

	conn, _, err := ws.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	web.conn = conn
	return web, nil
}

func (web *WebSocket) Write(ctx context.Context, payload []byte) error {
	web.mu.Lock()
	defer web.mu.Unlock()

	deadline := time.Time{}
	if web.timeout > 0 {
		deadline = time.Now().Add(web.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = web.conn.SetWriteDeadline(deadline)

	log.Debug("Write ws", "msg", string(payload))
	return web.conn.WriteMessage(ws.TextMessage, payload)
}

type incomeKind uint

const (
	connClosed incomeKind = iota
	readFailed
	readOK
)

type income struct {
	kind incomeKind
	msg  []byte
	err  error
}

func (web *WebSocket) Read() income {
	web.mu.Lock()
	conn := web.conn
	web.mu.Unlock()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		if isClosed(err) {
			return income{kind: connClosed, err: err}
		}
		return income{kind: readFailed, err: err}
	}

	log.Debug("Read ws", "msg", string(msg))
	return income{kind: readOK, msg: msg}
}

// Reconnect dials until it succeeds or ctx is done.
func (web *WebSocket) Reconnect(ctx context.Context) error {
	t := time.NewTicker(web.reconn)
	defer t.Stop()
	for {
		conn, _, err := ws.DefaultDialer.DialContext(ctx, web.url, nil)
		if err == nil {
			web.mu.Lock()
			_ = web.conn.Close()
			web.conn = conn
			web.mu.Unlock()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (web *WebSocket) Close() error {
	web.mu.Lock()
	defer web.mu.Unlock()
	_ = web.conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return web.conn.Close()
}

func isClosed(err error) bool {
	var ce *ws.CloseError
	if errors.As(err, &ce) {
		return true
	}
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
