// Package protocol speaks the colon-separated line protocol used by the
// panel shards: TO:VERB:NOUN[:ARG...]:FROM, one frame per websocket message.
package protocol

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"regexp"
	"strings"
	"time"
)

type Config struct {
	// Shard is this process's address, appended as FROM to every frame.
	Shard string
	URL   string

	// ReconnectEvery is the pause between dial attempts after the link drops.
	ReconnectEvery time.Duration
	WriteTimeout   time.Duration

	// OnFrame receives every well-formed frame addressed to Shard.
	OnFrame func(*Frame)
}

// Link is a websocket connection carrying frames for one shard.
type Link struct {
	ws      *WebSocket
	shard   string
	onFrame func(*Frame)
}

func Dial(ctx context.Context, cfg Config) (*Link, error) {
	if !isToken(cfg.Shard) {
		return nil, fmt.Errorf("invalid shard name %q", cfg.Shard)
	}
	ws, err := DialWebSocket(ctx, cfg.URL, cfg.ReconnectEvery, cfg.WriteTimeout)
	if err != nil {
		return nil, err
	}
	return &Link{ws: ws, shard: cfg.Shard, onFrame: cfg.OnFrame}, nil
}

// Send writes TO:VERB:NOUN:ARGS...:SHARD. Every part must be a token.
func (l *Link) Send(ctx context.Context, to, verb, noun string, args ...string) error {
	f := &Frame{To: to, Verb: verb, Noun: noun, Args: args, From: l.shard}
	if err := f.Validate(); err != nil {
		return err
	}
	msg := f.String()
	if err := l.ws.Write(ctx, []byte(msg)); err != nil {
		return fmt.Errorf("transmit %s: %w", msg, err)
	}
	return nil
}

// Run reads frames until ctx is done, reconnecting when the peer closes.
func (l *Link) Run(ctx context.Context) {
	for ctx.Err() == nil {
		in := l.ws.Read()
		switch in.kind {
		case connClosed:
			if ctx.Err() != nil {
				return
			}
			log.Warn("Display link closed, reconnecting", "url", l.ws.url)
			if err := l.ws.Reconnect(ctx); err != nil {
				return
			}
			log.Info("Display link reconnected", "url", l.ws.url)

		case readFailed:
			if ctx.Err() != nil {
				return
			}
			log.Error("Failed to read frame", "err", in.err)
			if err := l.ws.Reconnect(ctx); err != nil {
				return
			}

		case readOK:
			f, err := Parse(string(in.msg))
			if err != nil {
				log.Warn("Failed to parse frame", "msg", string(in.msg), "err", err)
				continue
			}
			if f.To != l.shard && f.To != "ALL" {
				continue
			}
			if l.onFrame != nil {
				l.onFrame(f)
			}
		}
	}
}

func (l *Link) Close() error {
	return l.ws.Close()
}

// Frame is one protocol line.
type Frame struct {
	To   string
	Verb string
	Noun string
	Args []string
	From string
}

func (f *Frame) String() string {
	parts := make([]string, 0, 4+len(f.Args))
	parts = append(parts, f.To, f.Verb, f.Noun)
	parts = append(parts, f.Args...)
	parts = append(parts, f.From)
	return strings.Join(parts, ":")
}

func (f *Frame) Validate() error {
	if !isToken(f.To) && !isHexID(f.To) && f.To != "ALL" {
		return fmt.Errorf("invalid TO token: %q", f.To)
	}
	if !isToken(f.From) && !isHexID(f.From) {
		return fmt.Errorf("invalid FROM token: %q", f.From)
	}
	if !isToken(f.Noun) || !isToken(f.Verb) {
		return fmt.Errorf("invalid NOUN/VERB: %q %q", f.Noun, f.Verb)
	}
	for i, a := range f.Args {
		if !isToken(a) {
			return fmt.Errorf("invalid ARG[%d]: %q", i, a)
		}
	}
	return nil
}

// IsError reports whether the peer rejected something.
func (f *Frame) IsError() bool {
	return f.Verb == "ERR"
}

func Parse(line string) (*Frame, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return nil, errors.New("empty message")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return nil, fmt.Errorf("invalid whitespace present")
	}
	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return nil, fmt.Errorf("too few fields: got %d, want >= 4", len(parts))
	}

	f := &Frame{
		To:   parts[0],
		Verb: strings.ToUpper(parts[1]),
		Noun: strings.ToUpper(parts[2]),
		Args: append([]string(nil), parts[3:len(parts)-1]...),
		From: parts[len(parts)-1],
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

var (
	tokenRe    = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	hexIDRe    = regexp.MustCompile(`^[0-9A-F]{2}$`)
	nonTokenRe = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)
)

func isToken(s string) bool {
	return tokenRe.MatchString(s)
}

func isHexID(s string) bool {
	return hexIDRe.MatchString(strings.ToUpper(s))
}

// Tokenize squeezes free text into a single token:
// "LISTENING: Say 'Yes'" -> "LISTENING_Say_Yes".
func Tokenize(s string) string {
	t := strings.Trim(nonTokenRe.ReplaceAllString(s, "_"), "_")
	if t == "" {
		return "-"
	}
	return t
}
