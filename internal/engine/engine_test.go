package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wes/internal/wotd"
)

func tick(t *testing.T, h *harness) {
	t.Helper()
	require.NoError(t, h.engine.Tick(context.Background()))
}

// deliver walks a fresh engine from Idle to PostDelivery, declining etymology.
func deliver(t *testing.T, h *harness) {
	t.Helper()
	h.prox.Set(300)
	h.voice.Queue(Heard, NotHeard)
	tick(t, h) // idle -> awaiting confirmation
	tick(t, h) // -> generating
	tick(t, h) // -> delivering
	tick(t, h) // -> awaiting etymology
	tick(t, h) // -> post delivery
	require.Equal(t, StatePostDelivery, h.engine.State())
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(DefaultConfig(), Deps{}, nil)
	assert.Error(t, err)
}

func TestEngine_EndToEnd(t *testing.T) {
	h := newHarness()
	h.gen.QueueWord(ebullient, nil)
	h.engine.Start(context.Background())

	h.prox.Set(350)
	h.voice.Queue(Heard, NotHeard)

	tick(t, h)
	assert.Equal(t, StateAwaitingConfirmation, h.engine.State())
	assert.Equal(t, Status{Color: ColorListening, Label: LabelListening, Proximity: 350}, h.display.Last())

	tick(t, h)
	calls := h.voice.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, listenCall{Keyword: "yes", Timeout: 15 * time.Second}, calls[0])
	assert.Equal(t, StateGenerating, h.engine.State())
	assert.Equal(t, ColorProcessing, h.display.Last().Color)

	tick(t, h)
	assert.Equal(t, 1, h.gen.WordCalls())
	assert.Equal(t, StateDelivering, h.engine.State())
	assert.Equal(t, Status{Color: ColorReady, Label: LabelSpeaking, Proximity: 350}, h.display.Last())

	tick(t, h)
	assert.Equal(t, StateAwaitingEtymology, h.engine.State())
	assert.Len(t, h.voice.Calls(), 2)

	lines := h.speaker.Lines()
	assert.Contains(t, lines, "Would you like to hear about its origin? (Say 'yes')")

	labels := make([]string, 0)
	for _, f := range h.display.Frames() {
		labels = append(labels, f.Label)
	}
	assert.Equal(t, []string{LabelReady, LabelListening, LabelProcessing, LabelSpeaking, LabelSpeaking}, labels)
}

func TestEngine_AnnouncesFieldsOnceInOrder(t *testing.T) {
	h := newHarness()
	h.gen.QueueWord(ebullient, nil)
	deliver(t, h)

	want := []string{
		"Today's word is EBULLIENT.",
		"That is: EH - BUH - LEE - ENT.",
		"The definition is: Marked by lively excitement.",
		"For instance: Her ebullient mood lit up the room.",
	}
	lines := h.speaker.Lines()
	last := -1
	for _, w := range want {
		assert.Equal(t, 1, h.speaker.Count(w), w)
		idx := indexOf(lines, w)
		assert.Greater(t, idx, last, "out of order: %s", w)
		last = idx
	}
}

func TestEngine_TimeoutReturnsToIdleWithoutGenerating(t *testing.T) {
	h := newHarness()
	h.prox.Set(300)
	h.voice.Queue(TimedOut)

	tick(t, h)
	tick(t, h)

	assert.Equal(t, StateIdle, h.engine.State())
	assert.Equal(t, 0, h.gen.WordCalls())
	assert.Equal(t, 1, h.speaker.Count("No request received. Returning to Deep Sleep."))
	assert.Equal(t, LabelReady, h.display.Last().Label)
}

func TestEngine_DeclineAndErrorAreLikeTimeout(t *testing.T) {
	for _, res := range []ListenResult{NotHeard, ListenError} {
		t.Run(res.String(), func(t *testing.T) {
			h := newHarness()
			h.prox.Set(300)
			h.voice.Queue(res)
			tick(t, h)
			tick(t, h)
			assert.Equal(t, StateIdle, h.engine.State())
			assert.Equal(t, 0, h.gen.WordCalls())
		})
	}

	t.Run("confirmer error", func(t *testing.T) {
		h := newHarness()
		h.prox.Set(300)
		h.voice.err = errors.New("mic unplugged")
		tick(t, h)
		tick(t, h)
		assert.Equal(t, StateIdle, h.engine.State())
		assert.Equal(t, 0, h.gen.WordCalls())
	})
}

func TestEngine_SameDayReusesCacheButStillConfirms(t *testing.T) {
	h := newHarness()
	h.gen.QueueWord(ebullient, nil)
	deliver(t, h)
	require.Equal(t, 1, h.gen.WordCalls())

	// Leave the hold-off window and re-trigger the reset.
	h.clock.Advance(2 * time.Second)
	tick(t, h)
	require.Equal(t, StateIdle, h.engine.State())
	_, held := h.engine.Held()
	assert.False(t, held)

	// Still close: hold-off suppresses an immediate second trigger.
	tick(t, h)
	assert.Equal(t, StateIdle, h.engine.State())

	h.clock.Advance(2 * time.Second)
	tick(t, h)
	require.Equal(t, StateAwaitingConfirmation, h.engine.State())

	// Without a fresh yes nothing is delivered.
	h.voice.Queue(NotHeard)
	tick(t, h)
	assert.Equal(t, StateIdle, h.engine.State())

	h.clock.Advance(2 * time.Second)
	h.voice.Queue(Heard)
	tick(t, h)
	tick(t, h)
	assert.Equal(t, StateDelivering, h.engine.State(), "cached word bypasses generation")
	assert.Equal(t, 1, h.gen.WordCalls())
	assert.Equal(t, 4, len(h.voice.Calls()))

	p, ok := h.engine.Held()
	require.True(t, ok)
	assert.Equal(t, ebullient, p)
}

func TestEngine_GenerationFailureDiscardsAndAllowsRetry(t *testing.T) {
	h := newHarness()
	h.gen.QueueWord(wotd.WordPayload{}, errors.New("connection refused"))
	h.prox.Set(300)
	h.voice.Queue(Heard)

	tick(t, h)
	tick(t, h)
	tick(t, h)

	assert.Equal(t, StateIdle, h.engine.State())
	_, cached := h.cache.Get(wotd.DateOf(h.clock.Now()))
	assert.False(t, cached)
	assert.Empty(t, h.store.saved)
	assert.Equal(t, 1, h.speaker.Count("The archive connection failed. Please try again later."))

	h.gen.QueueWord(ebullient, nil)
	h.voice.Queue(Heard, NotHeard)
	h.clock.Advance(2 * time.Second)
	tick(t, h)
	tick(t, h)
	tick(t, h)
	assert.Equal(t, StateDelivering, h.engine.State())
	assert.Equal(t, 2, h.gen.WordCalls(), "a failed call may be followed by another the same day")
	assert.Equal(t, ebullient, h.store.saved[wotd.DateOf(h.clock.Now())])
}

func TestEngine_MalformedResponseIsTreatedAsFailure(t *testing.T) {
	h := newHarness()
	_, perr := wotd.ParseWordResponse("EBULLIENT|EH-buh-lee-ent|Marked by lively excitement.")
	require.Error(t, perr)
	h.gen.QueueWord(wotd.WordPayload{}, fmt.Errorf("generate word: %w", perr))
	h.prox.Set(300)
	h.voice.Queue(Heard)

	tick(t, h)
	tick(t, h)
	tick(t, h)

	assert.Equal(t, StateIdle, h.engine.State())
	_, ok := h.cache.Date()
	assert.False(t, ok, "cache must not be updated")
	assert.Equal(t, 1, h.speaker.Count("I had trouble parsing the word data. Please try again later."))
}

func TestEngine_PartialPayloadIsRejected(t *testing.T) {
	h := newHarness()
	h.gen.QueueWord(wotd.WordPayload{Word: "HALF"}, nil)
	h.prox.Set(300)
	h.voice.Queue(Heard)

	tick(t, h)
	tick(t, h)
	tick(t, h)

	assert.Equal(t, StateIdle, h.engine.State())
	_, ok := h.cache.Date()
	assert.False(t, ok)
}

func TestEngine_GenerationTimeout(t *testing.T) {
	h := newHarness(func(c *Config) { c.GenerateTimeout = 10 * time.Millisecond })
	h.gen.onWord = func(ctx context.Context) (wotd.WordPayload, error) {
		<-ctx.Done()
		return wotd.WordPayload{}, ctx.Err()
	}
	h.prox.Set(300)
	h.voice.Queue(Heard)

	tick(t, h)
	tick(t, h)
	tick(t, h)

	assert.Equal(t, StateIdle, h.engine.State())
	assert.Equal(t, 1, h.speaker.Count("The archive connection failed. Please try again later."))
}

func TestEngine_CancellationDuringGenerationLeavesIdle(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.gen.onWord = func(gctx context.Context) (wotd.WordPayload, error) {
		cancel()
		return ebullient, gctx.Err()
	}
	h.prox.Set(300)
	h.voice.Queue(Heard)

	require.NoError(t, h.engine.Tick(ctx))
	require.NoError(t, h.engine.Tick(ctx))
	err := h.engine.Tick(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateIdle, h.engine.State())
	_, held := h.engine.Held()
	assert.False(t, held)
	_, cached := h.cache.Date()
	assert.False(t, cached)
}

func TestEngine_EtymologyHeard(t *testing.T) {
	h := newHarness()
	h.gen.QueueWord(ebullient, nil)
	h.gen.etymology = []string{"  From Latin ebullire, to boil over.  "}
	h.prox.Set(300)
	h.voice.Queue(Heard, Heard)

	for i := 0; i < 4; i++ {
		tick(t, h)
	}
	require.Equal(t, StateAwaitingEtymology, h.engine.State())
	assert.Equal(t, Status{Color: ColorProcessing, Label: LabelProcessing, Proximity: 300}, h.display.Last())

	tick(t, h)
	assert.Equal(t, StatePostDelivery, h.engine.State())
	assert.Equal(t, 1, h.gen.etymCalled)
	assert.Equal(t, 1, h.speaker.Count("From Latin ebullire, to boil over."))
	assert.Equal(t, LabelDone, h.display.Last().Label)
}

func TestEngine_EtymologyFailureIsSilent(t *testing.T) {
	h := newHarness()
	h.gen.QueueWord(ebullient, nil)
	h.gen.etymErr = errors.New("model crashed")
	h.prox.Set(300)
	h.voice.Queue(Heard, Heard)

	for i := 0; i < 5; i++ {
		tick(t, h)
	}
	assert.Equal(t, StatePostDelivery, h.engine.State())
	assert.Equal(t, 1, h.gen.etymCalled)

	before := indexOf(h.speaker.Lines(), "Consulting the Etymological Vault...")
	after := indexOf(h.speaker.Lines(), "Word given. Move away and return to get a new word.")
	assert.Equal(t, before+1, after, "nothing announced for the failed etymology")
}

func TestEngine_DayRolloverForcesIdleAndRegenerates(t *testing.T) {
	h := newHarness()
	h.gen.QueueWord(ebullient, nil)
	deliver(t, h)

	h.clock.Advance(24 * time.Hour)
	tick(t, h)
	assert.Equal(t, StateIdle, h.engine.State())
	_, held := h.engine.Held()
	assert.False(t, held)
	_, cached := h.cache.Date()
	assert.False(t, cached)

	next := wotd.WordPayload{Word: "LUCID", Spelling: "LOO - SID", Definition: "Clear", Example: "A lucid answer"}
	h.gen.QueueWord(next, nil)
	h.voice.Queue(Heard)
	tick(t, h)
	tick(t, h)
	tick(t, h)

	assert.Equal(t, StateDelivering, h.engine.State())
	require.Equal(t, 2, h.gen.WordCalls())
	assert.Equal(t, wotd.Date{Year: 2025, Month: time.October, Day: 6}, h.gen.wordDates[1])
	p, _ := h.engine.Held()
	assert.Equal(t, "LUCID", p.Word)
}

func TestEngine_StaleSeededCacheIsIgnored(t *testing.T) {
	h := newHarness()
	h.cache.Set(wotd.Date{Year: 2025, Month: time.October, Day: 4}, ebullient)
	h.gen.QueueWord(ebullient, nil)
	deliver(t, h)
	assert.Equal(t, 1, h.gen.WordCalls())
}

func TestEngine_OneGenerationPerDay(t *testing.T) {
	h := newHarness()
	h.gen.QueueWord(ebullient, nil)
	deliver(t, h)

	for cycle := 0; cycle < 5; cycle++ {
		h.clock.Advance(2 * time.Second)
		tick(t, h) // post delivery -> idle
		h.clock.Advance(2 * time.Second)
		h.voice.Queue(Heard, NotHeard)
		for i := 0; i < 4; i++ {
			tick(t, h)
		}
		require.Equal(t, StatePostDelivery, h.engine.State())
	}
	assert.Equal(t, 1, h.gen.WordCalls())
}

func TestEngine_CollaboratorFailuresDoNotChangeState(t *testing.T) {
	h := newHarness()
	h.speaker.err = errors.New("no audio device")
	h.display.err = errors.New("spi write failed")
	h.gen.QueueWord(ebullient, nil)
	deliver(t, h)

	s := h.engine.Snapshot()
	assert.Equal(t, StatePostDelivery, s.State)
	assert.Positive(t, s.SpeechFailures)
	assert.Positive(t, s.DisplayFailures)
}

func TestEngine_StoreFailureIsNonFatal(t *testing.T) {
	h := newHarness()
	h.store.err = errors.New("disk full")
	h.gen.QueueWord(ebullient, nil)
	deliver(t, h)

	s := h.engine.Snapshot()
	assert.Equal(t, 1, s.StoreFailures)
	assert.Equal(t, "2025-10-05", s.CachedFor)
	assert.Equal(t, "EBULLIENT", s.Word)
}

func TestEngine_IdleRendersLiveProximity(t *testing.T) {
	h := newHarness()
	h.prox.Set(42)
	tick(t, h)
	h.prox.Set(150)
	tick(t, h)

	frames := h.display.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, Status{Color: ColorReady, Label: LabelReady, Proximity: 42}, frames[0])
	assert.Equal(t, 150, frames[1].Proximity)
	assert.Equal(t, StateIdle, h.engine.State())
}

func TestEngine_ThresholdIsStrict(t *testing.T) {
	h := newHarness()
	h.prox.Set(200)
	tick(t, h)
	assert.Equal(t, StateIdle, h.engine.State())
	h.prox.Set(201)
	tick(t, h)
	assert.Equal(t, StateAwaitingConfirmation, h.engine.State())
}

func TestEngine_ResetKeepsCache(t *testing.T) {
	h := newHarness()
	h.gen.QueueWord(ebullient, nil)
	deliver(t, h)

	h.engine.Reset(context.Background())
	assert.Equal(t, StateIdle, h.engine.State())
	_, ok := h.cache.Get(wotd.DateOf(h.clock.Now()))
	assert.True(t, ok)
}

func TestEngine_DeliveringWithoutPayloadIsUnexpected(t *testing.T) {
	h := newHarness()
	h.engine.state = StateDelivering
	err := h.engine.Tick(context.Background())
	assert.ErrorIs(t, err, ErrNoPayload)

	h.engine.state = State(99)
	err = h.engine.Tick(context.Background())
	assert.ErrorIs(t, err, ErrUnknownState)
}

func TestClassifyGeneration(t *testing.T) {
	_, perr := wotd.ParseWordResponse("x")
	cases := []struct {
		err  error
		want FailureKind
	}{
		{context.Canceled, FailureCanceled},
		{fmt.Errorf("call: %w", context.DeadlineExceeded), FailureTimeout},
		{perr, FailureMalformed},
		{errors.New("503"), FailureBackend},
	}
	for _, c := range cases {
		ge := classifyGeneration("word", c.err)
		assert.Equal(t, c.want, ge.Kind, c.err.Error())
		assert.ErrorIs(t, ge, c.err)
	}
}

func indexOf(lines []string, s string) int {
	for i, l := range lines {
		if l == s {
			return i
		}
	}
	return -1
}
