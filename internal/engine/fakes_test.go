package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"wes/internal/wotd"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, time.October, 5, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeProximity struct {
	mu    sync.Mutex
	value int
}

func (p *fakeProximity) Read() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

func (p *fakeProximity) Set(v int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
}

type listenCall struct {
	Keyword string
	Timeout time.Duration
}

type fakeVoice struct {
	mu      sync.Mutex
	results []ListenResult
	err     error
	calls   []listenCall
}

func (v *fakeVoice) Queue(rs ...ListenResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.results = append(v.results, rs...)
}

func (v *fakeVoice) ListenFor(_ context.Context, keyword string, timeout time.Duration) (ListenResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, listenCall{Keyword: keyword, Timeout: timeout})
	if v.err != nil {
		return ListenError, v.err
	}
	if len(v.results) == 0 {
		return TimedOut, nil
	}
	r := v.results[0]
	v.results = v.results[1:]
	return r, nil
}

func (v *fakeVoice) Calls() []listenCall {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]listenCall(nil), v.calls...)
}

type fakeSpeaker struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (s *fakeSpeaker) Say(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, text)
	return s.err
}

func (s *fakeSpeaker) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *fakeSpeaker) Count(text string) int {
	n := 0
	for _, l := range s.Lines() {
		if l == text {
			n++
		}
	}
	return n
}

type fakeGenerator struct {
	mu         sync.Mutex
	words      []wordResult
	wordDates  []wotd.Date
	etymology  []string
	etymErr    error
	onWord     func(ctx context.Context) (wotd.WordPayload, error)
	etymCalled int
}

type wordResult struct {
	payload wotd.WordPayload
	err     error
}

func (g *fakeGenerator) QueueWord(p wotd.WordPayload, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.words = append(g.words, wordResult{payload: p, err: err})
}

func (g *fakeGenerator) GenerateWord(ctx context.Context, date wotd.Date) (wotd.WordPayload, error) {
	g.mu.Lock()
	g.wordDates = append(g.wordDates, date)
	hook := g.onWord
	var next *wordResult
	if len(g.words) > 0 {
		next = &g.words[0]
		g.words = g.words[1:]
	}
	g.mu.Unlock()

	if hook != nil {
		return hook(ctx)
	}
	if next == nil {
		return wotd.WordPayload{}, errors.New("no canned word")
	}
	return next.payload, next.err
}

func (g *fakeGenerator) GenerateEtymology(_ context.Context, word string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.etymCalled++
	if g.etymErr != nil {
		return "", g.etymErr
	}
	if len(g.etymology) == 0 {
		return "", errors.New("no canned etymology")
	}
	t := g.etymology[0]
	g.etymology = g.etymology[1:]
	return t, nil
}

func (g *fakeGenerator) WordCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.wordDates)
}

type fakeDisplay struct {
	mu     sync.Mutex
	frames []Status
	blanks int
	err    error
}

func (d *fakeDisplay) Render(_ context.Context, s Status) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, s)
	return d.err
}

func (d *fakeDisplay) Blank(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blanks++
	return d.err
}

func (d *fakeDisplay) Frames() []Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Status(nil), d.frames...)
}

func (d *fakeDisplay) Blanks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blanks
}

func (d *fakeDisplay) Last() Status {
	f := d.Frames()
	return f[len(f)-1]
}

type fakeStore struct {
	mu    sync.Mutex
	saved map[wotd.Date]wotd.WordPayload
	err   error
}

func (s *fakeStore) Save(_ context.Context, date wotd.Date, p wotd.WordPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.saved == nil {
		s.saved = make(map[wotd.Date]wotd.WordPayload)
	}
	s.saved[date] = p
	return nil
}

// harness bundles an engine with its fakes.
type harness struct {
	clock   *fakeClock
	prox    *fakeProximity
	voice   *fakeVoice
	speaker *fakeSpeaker
	gen     *fakeGenerator
	display *fakeDisplay
	store   *fakeStore
	cache   *wotd.DailyWordCache
	engine  *Engine
}

func newHarness(mutate ...func(*Config)) *harness {
	h := &harness{
		clock:   newFakeClock(),
		prox:    &fakeProximity{},
		voice:   &fakeVoice{},
		speaker: &fakeSpeaker{},
		gen:     &fakeGenerator{},
		display: &fakeDisplay{},
		store:   &fakeStore{},
		cache:   wotd.NewDailyWordCache(),
	}
	cfg := DefaultConfig()
	cfg.Now = h.clock.Now
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := New(cfg, Deps{
		Proximity: h.prox,
		Voice:     h.voice,
		Speaker:   h.speaker,
		Generator: h.gen,
		Display:   h.display,
		Store:     h.store,
	}, h.cache)
	if err != nil {
		panic(err)
	}
	h.engine = e
	return h
}

var ebullient = wotd.WordPayload{
	Word:       "EBULLIENT",
	Spelling:   "EH - BUH - LEE - ENT",
	Definition: "Marked by lively excitement",
	Example:    "Her ebullient mood lit up the room",
}
