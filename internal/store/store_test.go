package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wes/internal/wotd"
)

var (
	monday  = wotd.DateOf(time.Date(2025, time.October, 6, 8, 0, 0, 0, time.UTC))
	tuesday = wotd.DateOf(time.Date(2025, time.October, 7, 8, 0, 0, 0, time.UTC))

	ebullient = wotd.WordPayload{
		Word:       "EBULLIENT",
		Spelling:   "IH - BUL - YUHNT",
		Definition: "Cheerful and full of energy.",
		Example:    "She was ebullient after the news.",
	}
	laconic = wotd.WordPayload{
		Word:       "LACONIC",
		Spelling:   "LUH - KON - IK",
		Definition: "Using very few words.",
		Example:    "His laconic reply ended the meeting.",
	}
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoad_Empty(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSave_ReplacesRow(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Save(ctx, monday, ebullient))
	require.NoError(t, s.Save(ctx, tuesday, laconic))

	date, p, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, tuesday, date)
	assert.Equal(t, laconic, p)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM daily_word`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	cache := wotd.NewDailyWordCache()

	ok, err := s.Seed(ctx, cache)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, monday, ebullient))
	ok, err = s.Seed(ctx, cache)
	require.NoError(t, err)
	assert.True(t, ok)

	got, hit := cache.Get(monday)
	assert.True(t, hit)
	assert.Equal(t, ebullient, got)

	_, hit = cache.Get(tuesday)
	assert.False(t, hit)
}

func TestOpen_FileSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "wes.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, monday, ebullient))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	date, p, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, monday, date)
	assert.Equal(t, ebullient, p)

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}
