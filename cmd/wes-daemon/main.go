package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"wes/internal/archivist"
	"wes/internal/audio"
	"wes/internal/config"
	"wes/internal/display"
	"wes/internal/engine"
	"wes/internal/ipc"
	"wes/internal/llm"
	"wes/internal/notify"
	"wes/internal/proxy"
	"wes/internal/sensor"
	"wes/internal/store"
	"wes/internal/tts"
	"wes/internal/voice"
	"wes/internal/wotd"
	"wes/pkg/protocol"
	"wes/pkg/stt"
)

const (
	shardName   = "WES"
	pingTimeout = 5 * time.Second
)

func main() {
	config.RegisterFlags(cli.CommandLine)
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{Level: log.LevelInfo})))

	cfg, err := config.Load(cli.CommandLine)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      config.LogLevels[cfg.Log],
		TimeFormat: time.TimeOnly,
	})))

	log.Info("Booting up", "provider", cfg.LLM.Provider, "sensor", cfg.Sensor.Kind, "voice", cfg.Voice.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Daemon failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}

	virtual := sensor.NewVirtual()
	prox, closeSensor, err := newProximity(cfg, virtual)
	if err != nil {
		return err
	}
	cleanup = append(cleanup, closeSensor)
	log.Debug("Loaded proximity source")

	disp, closeDisplay, err := newDisplay(ctx, cfg)
	if err != nil {
		return err
	}
	cleanup = append(cleanup, closeDisplay)
	log.Debug("Loaded display")

	confirmer, closeVoice, err := newConfirmer(cfg)
	if err != nil {
		return err
	}
	cleanup = append(cleanup, closeVoice)
	log.Debug("Loaded voice confirmer")

	var speaker engine.Speaker = tts.Silent{}
	if cfg.Speech.Engine == "espeak" {
		speaker = tts.NewEspeak(cfg.Speech.Voice, cfg.Speech.Rate)
	}

	deps := engine.Deps{
		Proximity: prox,
		Voice:     confirmer,
		Speaker:   speaker,
		Generator: gen,
		Display:   disp,
	}

	cache := wotd.NewDailyWordCache()
	if cfg.Store.Enabled {
		st, err := openStore(ctx, cfg.Store.Path, cache)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, func() { st.Close() })
		deps.Store = st
	}

	eng, err := engine.New(cfg.EngineConfig(), deps, cache)
	if err != nil {
		return err
	}
	runner := engine.NewRunner(eng, cfg.RunnerConfig())

	srv, err := ipc.Listen(cfg.Socket, controlHandler(runner, virtual, cfg))
	if err != nil {
		return fmt.Errorf("control socket: %w", err)
	}
	go func() {
		if err := srv.Serve(ctx); err != nil {
			log.Error("Control socket stopped", "err", err)
		}
	}()

	log.Info("Boot up - successful", "socket", srv.Addr())
	return runner.Run(ctx)
}

func newGenerator(ctx context.Context, cfg config.Config) (*archivist.Archivist, error) {
	httpClient, err := proxy.NewHTTPClient(cfg.Proxy, 0)
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM, httpClient, log.Default())
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := llm.Ping(pctx, provider); err != nil {
		log.Warn("Language model backend unreachable, continuing", "model", provider.ModelID(), "err", err)
	} else {
		log.Info("Language model backend ready", "model", provider.ModelID())
	}

	return archivist.New(provider,
		archivist.WithMaxTokens(cfg.LLM.MaxTokens),
		archivist.WithTemperature(cfg.LLM.Temperature),
	), nil
}

func newProximity(cfg config.Config, virtual *sensor.Virtual) (engine.ProximitySource, func(), error) {
	if cfg.Sensor.Kind != "vcnl4040" {
		return virtual, func() {}, nil
	}
	s, err := sensor.Open(cfg.Sensor.Bus, cfg.Sensor.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("proximity sensor: %w", err)
	}
	return sensor.Max{s, virtual}, func() { s.Close() }, nil
}

// newDisplay fans out to the log, the panel shard and the backlight. The
// returned func closes the shard link; call it after the final Blank.
func newDisplay(ctx context.Context, cfg config.Config) (engine.StatusDisplay, func(), error) {
	displays := display.Multi{display.NewLog()}
	closeLink := func() {}

	if cfg.Display.BusURL != "" {
		link, err := protocol.Dial(ctx, protocol.Config{
			Shard:          shardName,
			URL:            cfg.Display.BusURL,
			ReconnectEvery: 2 * time.Second,
			WriteTimeout:   time.Second,
			OnFrame: func(f *protocol.Frame) {
				if f.IsError() {
					log.Warn("Display shard rejected frame", "frame", f.String())
				}
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("display bus: %w", err)
		}
		go link.Run(ctx)
		displays = append(displays, display.NewBus(link, cfg.Display.Target))
		closeLink = func() {
			if err := link.Close(); err != nil {
				log.Debug("Display link close", "err", err)
			}
		}
	}

	if cfg.Display.BacklightPin != "" {
		bl, err := display.OpenBacklight(cfg.Display.BacklightPin)
		if err != nil {
			closeLink()
			return nil, nil, fmt.Errorf("backlight: %w", err)
		}
		displays = append(displays, bl)
	}
	return displays, closeLink, nil
}

func newConfirmer(cfg config.Config) (engine.VoiceConfirmer, func(), error) {
	var (
		tr      *stt.Transcriber
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	loadWhisper := func() error {
		t, err := stt.NewTranscriber(cfg.Voice.WhisperModel, stt.Options{
			Language:      cfg.Voice.Language,
			InitialPrompt: cfg.Engine.Keyword,
		})
		if err != nil {
			return fmt.Errorf("whisper: %w", err)
		}
		tr = t
		closers = append(closers, func() { t.Close() })
		log.Debug("Loaded whisper", "model", cfg.Voice.WhisperModel)
		return nil
	}

	if cfg.Voice.Mode == "clips" {
		var sttForClips voice.Transcriber
		if _, err := os.Stat(cfg.Voice.WhisperModel); err == nil {
			if err := loadWhisper(); err != nil {
				return nil, nil, err
			}
			sttForClips = tr
		}
		c, err := voice.NewClipConfirmer(cfg.Voice.ClipDir, sttForClips)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		return c, closeAll, nil
	}

	rec := audio.NewRecorder(audio.DefaultRecorderConfig())
	if err := rec.Init(); err != nil {
		return nil, nil, fmt.Errorf("init audio: %w", err)
	}
	closers = append(closers, rec.Close)

	if err := loadWhisper(); err != nil {
		closeAll()
		return nil, nil, err
	}

	var opts []voice.Option
	if cfg.Voice.Chime != "" {
		if _, err := os.Stat(cfg.Voice.Chime); err != nil {
			log.Warn("Listening chime disabled", "path", cfg.Voice.Chime, "err", err)
		} else {
			opts = append(opts, voice.WithCue(notify.NewChime(cfg.Voice.Chime)))
		}
	}
	if cfg.Voice.Duck {
		opts = append(opts, voice.WithDucker(
			audio.NewDucker([]string{"wes", "espeak-ng"}, 10, cfg.Voice.DuckFactor, 300*time.Millisecond),
		))
	}
	return voice.NewConfirmer(rec, tr, opts...), closeAll, nil
}

func openStore(ctx context.Context, path string, cache *wotd.DailyWordCache) (*store.Store, error) {
	if path == "" {
		p, err := store.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("store path: %w", err)
		}
		path = p
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	ok, err := st.Seed(ctx, cache)
	switch {
	case err != nil:
		log.Warn("Ignoring stored word", "path", path, "err", err)
	case ok:
		day, _ := cache.Date()
		log.Info("Restored word of the day", "day", day)
	}
	return st, nil
}

func controlHandler(runner *engine.Runner, virtual *sensor.Virtual, cfg config.Config) ipc.Handler {
	pulse := cfg.Engine.RetriggerHoldoff
	if pulse < 2*cfg.Runner.Tick {
		pulse = 2 * cfg.Runner.Tick
	}

	return func(_ context.Context, msg ipc.ControlMessage) ipc.ControlReply {
		switch msg.Cmd {
		case ipc.CmdTrigger:
			log.Info("Trigger requested by operator")
			virtual.Pulse(cfg.Engine.Threshold+1, pulse)
			return ipc.ControlReply{OK: true}

		case ipc.CmdReset:
			if err := runner.Submit(engine.CommandReset); err != nil {
				return ipc.Fail(err)
			}
			return ipc.ControlReply{OK: true}

		case ipc.CmdStatus:
			b, err := json.Marshal(runner.Snapshot())
			if err != nil {
				return ipc.Fail(err)
			}
			return ipc.ControlReply{OK: true, Snapshot: b}
		}
		log.Warn("Unknown command", "cmd", msg.Cmd)
		return ipc.Fail(errors.New("unknown command"))
	}
}
