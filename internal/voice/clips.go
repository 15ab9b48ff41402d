package voice

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"wes/internal/engine"
	"wes/pkg/audioconv"
)

// ClipConfirmer answers each listen with the next file from a directory,
// in name order. Audio files are decoded and transcribed; .txt files are
// taken as the transcript. Once the clips run out every listen times out.
type ClipConfirmer struct {
	stt Transcriber

	mu    sync.Mutex
	clips []string
	used  []string
}

// NewClipConfirmer lists dir. stt may be nil when dir holds only .txt clips.
func NewClipConfirmer(dir string, stt Transcriber) (*ClipConfirmer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read clip dir: %w", err)
	}

	var clips []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".txt" || (stt != nil && slices.Contains(audioconv.Extensions, ext)) {
			clips = append(clips, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(clips)
	return &ClipConfirmer{stt: stt, clips: clips}, nil
}

func (c *ClipConfirmer) ListenFor(ctx context.Context, keyword string, timeout time.Duration) (engine.ListenResult, error) {
	clip, ok := c.next()
	if !ok {
		return engine.TimedOut, nil
	}

	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := c.transcript(lctx, clip)
	if err != nil {
		return classify(ctx, lctx, fmt.Errorf("clip %s: %w", filepath.Base(clip), err))
	}

	log.Info("Heard", "clip", filepath.Base(clip), "text", text)
	return Match(text, keyword), nil
}

// Used returns the clips consumed so far.
func (c *ClipConfirmer) Used() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.used...)
}

func (c *ClipConfirmer) next() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.clips) == 0 {
		return "", false
	}
	clip := c.clips[0]
	c.clips = c.clips[1:]
	c.used = append(c.used, clip)
	return clip, true
}

func (c *ClipConfirmer) transcript(ctx context.Context, clip string) (string, error) {
	if strings.EqualFold(filepath.Ext(clip), ".txt") {
		b, err := os.ReadFile(clip)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	pcm, err := audioconv.DecodeFile(ctx, clip, 0)
	if err != nil {
		return "", err
	}
	return transcribe(ctx, c.stt, pcm)
}
