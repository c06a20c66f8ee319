package kv_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wiki-companion/kv"
)

func openSQLite(t *testing.T, path string) *kv.SQLiteMedium {
	t.Helper()
	s, err := kv.OpenSQLite(path, 20*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteMediumGetSetDelete(t *testing.T) {
	s := openSQLite(t, filepath.Join(t.TempDir(), "state.db"))

	_, ok, err := s.Get("theme")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("theme", `"dark"`))
	require.NoError(t, s.Set("theme", `"light"`))
	v, ok, err := s.Get("theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `"light"`, v)

	require.NoError(t, s.Delete("theme"))
	_, ok, err = s.Get("theme")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteMediumPollSkipsOwnWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	a := openSQLite(t, path)
	b := openSQLite(t, path)

	var got []kv.Change
	cancel := a.Watch(func(c kv.Change) { got = append(got, c) })
	defer cancel()

	require.NoError(t, a.Set("favorites", "[]"))
	require.NoError(t, b.Set("theme", `"dark"`))
	require.NoError(t, b.Delete("favorites"))

	require.NoError(t, a.Poll())
	assert.Equal(t, []kv.Change{
		{Key: "theme", Value: `"dark"`},
		{Key: "favorites", Deleted: true},
	}, got)

	// Nothing new since the last poll.
	require.NoError(t, a.Poll())
	assert.Len(t, got, 2)
}

func TestSQLiteMediumPollLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	a := openSQLite(t, path)
	b := openSQLite(t, path)

	changes := make(chan kv.Change, 4)
	cancel := a.Watch(func(c kv.Change) { changes <- c })
	defer cancel()

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Set("theme", `"dark"`))

	select {
	case c := <-changes:
		assert.Equal(t, "theme", c.Key)
	case <-time.After(3 * time.Second):
		t.Fatal("poll loop did not report foreign write")
	}
}

func TestSQLiteMediumReopenSkipsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	first := openSQLite(t, path)
	require.NoError(t, first.Set("theme", `"dark"`))

	second := openSQLite(t, path)
	calls := 0
	cancel := second.Watch(func(kv.Change) { calls++ })
	defer cancel()

	require.NoError(t, second.Poll())
	assert.Zero(t, calls, "writes that predate the handle are not changes")
}
