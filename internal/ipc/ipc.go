// Package ipc is the daemon's control socket: one JSON request and one JSON
// reply per unix-socket connection.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const DefaultSocketPath = "/tmp/wes.sock"

const (
	CmdTrigger = "trigger"
	CmdReset   = "reset"
	CmdStatus  = "status"
)

const connTimeout = 5 * time.Second

type ControlMessage struct {
	Cmd string `json:"cmd"`
}

type ControlReply struct {
	OK       bool            `json:"ok"`
	Error    string          `json:"error,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

// Handler answers one control message.
type Handler func(ctx context.Context, msg ControlMessage) ControlReply

// Fail builds an error reply.
func Fail(err error) ControlReply {
	return ControlReply{Error: err.Error()}
}

type Server struct {
	path    string
	ln      net.Listener
	handler Handler
	wg      sync.WaitGroup
}

// Listen replaces any stale socket at path.
func Listen(path string, handler Handler) (*Server, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &Server{path: path, ln: ln, handler: handler}, nil
}

// Serve accepts connections until ctx is done, then closes the listener
// and waits for in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				os.Remove(s.path)
				return nil
			}
			log.Warn("Control socket accept failed", "err", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) Addr() string {
	return s.path
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Warn("Bad control message", "err", err)
		_ = json.NewEncoder(conn).Encode(Fail(fmt.Errorf("decode: %w", err)))
		return
	}

	log.Debug("Control message", "cmd", msg.Cmd)
	reply := s.handler(ctx, msg)
	if err := json.NewEncoder(conn).Encode(reply); err != nil {
		log.Warn("Failed to send control reply", "cmd", msg.Cmd, "err", err)
	}
}

// SendCommand sends cmd to the daemon at path and waits for its reply.
func SendCommand(ctx context.Context, path, cmd string) (ControlReply, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return ControlReply{}, fmt.Errorf("dial %s: %w", path, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(connTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return ControlReply{}, fmt.Errorf("send: %w", err)
	}

	var reply ControlReply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return ControlReply{}, fmt.Errorf("read reply: %w", err)
	}
	if !reply.OK {
		return reply, fmt.Errorf("%s: %s", cmd, reply.Error)
	}
	return reply, nil
}
