// Package engine drives the word-of-day appliance: a single-writer state
// machine advanced one step per tick from proximity readings, voice
// confirmations and generation outcomes.
package engine

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"wes/internal/wotd"
)

// Config tunes the engine. Zero durations fall back to DefaultConfig values.
type Config struct {
	Threshold        int
	Keyword          string
	ListenTimeout    time.Duration
	GenerateTimeout  time.Duration
	RetriggerHoldoff time.Duration

	// Now is the wall clock; tests replace it to cross midnight.
	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Threshold:        200,
		Keyword:          "yes",
		ListenTimeout:    15 * time.Second,
		GenerateTimeout:  45 * time.Second,
		RetriggerHoldoff: time.Second,
		Now:              time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.Keyword == "" {
		c.Keyword = d.Keyword
	}
	if c.ListenTimeout <= 0 {
		c.ListenTimeout = d.ListenTimeout
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = d.GenerateTimeout
	}
	if c.RetriggerHoldoff < 0 {
		c.RetriggerHoldoff = 0
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// Deps are the collaborators the engine drives. Store may be nil.
type Deps struct {
	Proximity ProximitySource
	Voice     VoiceConfirmer
	Speaker   Speaker
	Generator Generator
	Display   StatusDisplay
	Store     CacheStore
}

func (d Deps) validate() error {
	switch {
	case d.Proximity == nil:
		return errors.New("engine: proximity source is required")
	case d.Voice == nil:
		return errors.New("engine: voice confirmer is required")
	case d.Speaker == nil:
		return errors.New("engine: speaker is required")
	case d.Generator == nil:
		return errors.New("engine: generator is required")
	case d.Display == nil:
		return errors.New("engine: status display is required")
	}
	return nil
}

// listenGrace is how long past the confirmer's own timeout the engine waits
// before it stops trusting the confirmer to return.
const listenGrace = 2 * time.Second

// Announcement sources, echoed in logs next to every spoken line.
const (
	sourceWES    = "WES"
	sourceSystem = "SYSTEM ERROR"
	sourcePrompt = "PROMPT"
)

// Engine is the delivery state machine. All methods must be called from one
// goroutine.
type Engine struct {
	cfg  Config
	deps Deps

	cache *wotd.DailyWordCache

	state           State
	held            *wotd.WordPayload
	etymologyWanted bool
	holdUntil       time.Time
	proximity       int
	cycle           string

	wordGenerations int
	speechFailures  int
	displayFailures int
	storeFailures   int
}

// New builds an engine in Idle. A nil cache starts empty.
func New(cfg Config, deps Deps, cache *wotd.DailyWordCache) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cache == nil {
		cache = wotd.NewDailyWordCache()
	}
	return &Engine{
		cfg:   cfg.withDefaults(),
		deps:  deps,
		cache: cache,
		state: StateIdle,
	}, nil
}

func (e *Engine) State() State { return e.state }

// Held returns the word currently being delivered, if any.
func (e *Engine) Held() (wotd.WordPayload, bool) {
	if e.held == nil {
		return wotd.WordPayload{}, false
	}
	return *e.held, true
}

// Start announces the engine and paints the idle frame.
func (e *Engine) Start(ctx context.Context) {
	e.say(ctx, sourceWES, "W.E.S. Initialized. Entering Deep Sleep State. Waiting for proximity.")
	e.proximity = e.deps.Proximity.Read()
	e.render(ctx)
}

// Tick reads the sensor and advances the machine by at most one transition.
// The only error returned for an expected condition is the context's own;
// anything else is an unexpected failure for the caller to handle.
func (e *Engine) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := e.cfg.Now()
	today := wotd.DateOf(now)
	e.proximity = e.deps.Proximity.Read()

	if e.rollover(ctx, today) {
		return nil
	}

	switch e.state {
	case StateIdle:
		e.tickIdle(ctx, now)
		return nil
	case StateAwaitingConfirmation:
		return e.tickConfirm(ctx, today)
	case StateGenerating:
		return e.tickGenerate(ctx, today)
	case StateDelivering:
		return e.tickDeliver(ctx)
	case StateAwaitingEtymology:
		return e.tickEtymology(ctx)
	case StatePostDelivery:
		e.tickPostDelivery(ctx, now)
		return nil
	}
	return fmt.Errorf("%w: %d", ErrUnknownState, int(e.state))
}

// Reset forces Idle with no held word. The day's cache is kept.
func (e *Engine) Reset(ctx context.Context) {
	if e.state == StateIdle {
		e.clearCycle()
		e.render(ctx)
		return
	}
	e.transition(ctx, StateIdle)
}

// Shutdown says goodbye and blanks the panel. ctx should not be the one
// that was just cancelled.
func (e *Engine) Shutdown(ctx context.Context) {
	e.abort()
	e.say(ctx, sourceWES, "Goodbye!")
	if err := e.deps.Display.Blank(ctx); err != nil {
		e.displayFailures++
		log.Warn("Failed to blank display", "err", err)
	}
}

// rollover discards a cached word from an earlier day and, if the machine
// was mid-cycle, sends it back to Idle.
func (e *Engine) rollover(ctx context.Context, today wotd.Date) bool {
	cached, ok := e.cache.Date()
	if !ok || cached == today {
		return false
	}

	log.Info("Day rolled over, dropping cached word", "cached", cached, "today", today)
	e.cache.Clear()

	if e.state == StateIdle && e.held == nil {
		return false
	}
	e.transition(ctx, StateIdle)
	return true
}

func (e *Engine) tickIdle(ctx context.Context, now time.Time) {
	if !e.triggered(now) {
		e.render(ctx)
		return
	}

	e.cycle = uuid.NewString()
	e.holdUntil = now.Add(e.cfg.RetriggerHoldoff)
	e.say(ctx, sourceWES, fmt.Sprintf("Proximity detected (%d)! Starting WOTD process.", e.proximity))
	e.transition(ctx, StateAwaitingConfirmation)
}

func (e *Engine) tickConfirm(ctx context.Context, today wotd.Date) error {
	e.say(ctx, sourceWES, fmt.Sprintf("Hello! Would you like today's word? (Say '%s')", e.cfg.Keyword))

	res := e.listen(ctx)
	if err := ctx.Err(); err != nil {
		e.abort()
		return err
	}

	if res != Heard {
		log.Info("No confirmation", "result", res, "cycle", e.cycle)
		e.say(ctx, sourceWES, "No request received. Returning to Deep Sleep.")
		e.transition(ctx, StateIdle)
		return nil
	}

	if p, ok := e.cache.Get(today); ok {
		log.Info("Reusing today's word", "word", p.Word, "cycle", e.cycle)
		e.held = &p
		e.transition(ctx, StateDelivering)
		return nil
	}

	e.transition(ctx, StateGenerating)
	return nil
}

func (e *Engine) tickGenerate(ctx context.Context, today wotd.Date) error {
	e.say(ctx, sourceWES, "Accessing the Archives of the Day. Please stand by.")

	gctx, cancel := context.WithTimeout(ctx, e.cfg.GenerateTimeout)
	p, err := e.deps.Generator.GenerateWord(gctx, today)
	cancel()
	e.wordGenerations++

	if err == nil {
		err = p.Validate()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.abort()
			return ctxErr
		}
		ge := classifyGeneration("word", err)
		log.Warn("Word generation failed", "kind", ge.Kind, "err", err, "cycle", e.cycle)
		e.say(ctx, sourceSystem, failureAnnouncement(ge.Kind))
		e.transition(ctx, StateIdle)
		return nil
	}

	e.cache.Set(today, p)
	e.persist(ctx, today, p)
	log.Info("Generated word of the day", "word", p.Word, "date", today, "cycle", e.cycle)

	e.held = &p
	e.transition(ctx, StateDelivering)
	return nil
}

func (e *Engine) tickDeliver(ctx context.Context) error {
	if e.held == nil {
		return fmt.Errorf("%s: %w", e.state, ErrNoPayload)
	}
	p := *e.held

	e.say(ctx, sourceWES, fmt.Sprintf("Today's word is %s.", strings.ToUpper(p.Word)))
	e.say(ctx, sourceWES, fmt.Sprintf("That is: %s.", p.Spelling))
	e.say(ctx, sourceWES, fmt.Sprintf("The definition is: %s.", p.Definition))
	e.say(ctx, sourceWES, fmt.Sprintf("For instance: %s.", p.Example))
	e.say(ctx, sourceWES, fmt.Sprintf("Would you like to hear about its origin? (Say '%s')", e.cfg.Keyword))

	res := e.listen(ctx)
	if err := ctx.Err(); err != nil {
		e.abort()
		return err
	}

	e.etymologyWanted = res == Heard
	e.transition(ctx, StateAwaitingEtymology)
	return nil
}

func (e *Engine) tickEtymology(ctx context.Context) error {
	if e.held == nil {
		return fmt.Errorf("%s: %w", e.state, ErrNoPayload)
	}

	if e.etymologyWanted {
		e.say(ctx, sourceWES, "Consulting the Etymological Vault...")

		gctx, cancel := context.WithTimeout(ctx, e.cfg.GenerateTimeout)
		text, err := e.deps.Generator.GenerateEtymology(gctx, e.held.Word)
		cancel()

		switch {
		case ctx.Err() != nil:
			e.abort()
			return ctx.Err()
		case err != nil:
			ge := classifyGeneration("etymology", err)
			log.Warn("Etymology skipped", "kind", ge.Kind, "err", err, "cycle", e.cycle)
		case strings.TrimSpace(text) == "":
			log.Warn("Etymology skipped", "kind", FailureMalformed, "cycle", e.cycle)
		default:
			e.say(ctx, sourceWES, strings.TrimSpace(text))
		}
	}

	e.etymologyWanted = false
	e.say(ctx, sourcePrompt, "Word given. Move away and return to get a new word.")
	e.transition(ctx, StatePostDelivery)
	return nil
}

func (e *Engine) tickPostDelivery(ctx context.Context, now time.Time) {
	if !e.triggered(now) {
		e.render(ctx)
		return
	}

	e.holdUntil = now.Add(e.cfg.RetriggerHoldoff)
	e.say(ctx, sourceWES, "Reset trigger detected. Preparing a new Word of the Day.")
	e.transition(ctx, StateIdle)
}

func (e *Engine) triggered(now time.Time) bool {
	return e.proximity > e.cfg.Threshold && !now.Before(e.holdUntil)
}

// listen runs one bounded confirmation. The confirmer is trusted to honour
// the timeout; the engine's own deadline is a backstop.
func (e *Engine) listen(ctx context.Context) ListenResult {
	lctx, cancel := context.WithTimeout(ctx, e.cfg.ListenTimeout+listenGrace)
	defer cancel()

	res, err := e.deps.Voice.ListenFor(lctx, e.cfg.Keyword, e.cfg.ListenTimeout)
	switch {
	case err == nil:
		return res
	case ctx.Err() != nil:
		return ListenError
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("Voice confirmer overran its timeout", "timeout", e.cfg.ListenTimeout)
		return TimedOut
	}
	log.Warn("Voice confirmation failed", "err", err, "cycle", e.cycle)
	return ListenError
}

func (e *Engine) transition(ctx context.Context, to State) {
	from := e.state
	e.state = to

	switch to {
	case StateIdle:
		e.held = nil
		e.etymologyWanted = false
	case StatePostDelivery:
		e.holdUntil = e.cfg.Now().Add(e.cfg.RetriggerHoldoff)
	}

	log.Info("Transition", "from", from, "to", to, "cycle", e.cycle)
	e.render(ctx)

	if to == StateIdle {
		e.cycle = ""
	}
}

// abort drops to Idle without presenting; used when the tick's context is
// gone and nothing further should reach the collaborators.
func (e *Engine) abort() {
	if e.state != StateIdle {
		log.Info("Cycle aborted", "from", e.state, "cycle", e.cycle)
	}
	e.state = StateIdle
	e.clearCycle()
}

func (e *Engine) clearCycle() {
	e.held = nil
	e.etymologyWanted = false
	e.cycle = ""
}

func (e *Engine) render(ctx context.Context) {
	st := Present(e.state, e.etymologyWanted, e.proximity)
	if err := e.deps.Display.Render(ctx, st); err != nil {
		e.displayFailures++
		log.Warn("Failed to render status", "label", st.Label, "err", err)
	}
}

// say announces text; a speech failure is logged and otherwise ignored.
func (e *Engine) say(ctx context.Context, source, text string) {
	log.Info(source+": "+text, "cycle", e.cycle)
	if err := e.deps.Speaker.Say(ctx, text); err != nil {
		e.speechFailures++
		log.Warn("Failed to voice out", "err", err)
	}
}

func (e *Engine) persist(ctx context.Context, today wotd.Date, p wotd.WordPayload) {
	if e.deps.Store == nil {
		return
	}
	if err := e.deps.Store.Save(ctx, today, p); err != nil {
		e.storeFailures++
		log.Warn("Failed to persist word of the day", "date", today, "err", err)
	}
}

func failureAnnouncement(kind FailureKind) string {
	if kind == FailureMalformed {
		return "I had trouble parsing the word data. Please try again later."
	}
	return "The archive connection failed. Please try again later."
}

// Snapshot is a read-only view of the engine for the control socket.
type Snapshot struct {
	State           State  `json:"state"`
	Status          Status `json:"status"`
	Word            string `json:"word,omitempty"`
	CachedFor       string `json:"cached_for,omitempty"`
	Cycle           string `json:"cycle,omitempty"`
	WordGenerations int    `json:"word_generations"`
	SpeechFailures  int    `json:"speech_failures"`
	DisplayFailures int    `json:"display_failures"`
	StoreFailures   int    `json:"store_failures"`
}

func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		State:           e.state,
		Status:          Present(e.state, e.etymologyWanted, e.proximity),
		Cycle:           e.cycle,
		WordGenerations: e.wordGenerations,
		SpeechFailures:  e.speechFailures,
		DisplayFailures: e.displayFailures,
		StoreFailures:   e.storeFailures,
	}
	if e.held != nil {
		s.Word = e.held.Word
	}
	if d, ok := e.cache.Date(); ok {
		s.CachedFor = d.String()
	}
	return s
}
