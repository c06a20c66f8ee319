package kv_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wiki-companion/kv"
)

type entry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestValueRoundTrip(t *testing.T) {
	s := kv.New(kv.NewMemory(), nil)
	v := kv.NewValue(s, "entries", []entry{})

	want := []entry{{ID: "hutao", Title: "Hu Tao"}, {ID: "xiao", Title: "Xiao"}}
	v.Write(want)

	got, ok := v.Lookup()
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestValueReadAbsentReturnsDefault(t *testing.T) {
	s := kv.New(kv.NewMemory(), nil)
	v := kv.NewValue(s, "theme", "light")

	got, ok := v.Lookup()
	assert.False(t, ok)
	assert.Equal(t, "light", got)
}

func TestValueReadMalformedReturnsDefault(t *testing.T) {
	m := kv.NewMemory()
	require.NoError(t, m.Set("entries", "{not json"))

	v := kv.NewValue(kv.New(m, nil), "entries", []entry{})
	got, ok := v.Lookup()
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestValueReadShapeMismatchReturnsDefault(t *testing.T) {
	m := kv.NewMemory()
	require.NoError(t, m.Set("entries", `{"id":"not-an-array"}`))

	v := kv.NewValue(kv.New(m, nil), "entries", []entry{})
	assert.Empty(t, v.Read())
}

type failingMedium struct {
	kv.Unavailable
	err error
}

func (f failingMedium) Get(string) (string, bool, error) { return "", false, f.err }
func (f failingMedium) Set(string, string) error         { return f.err }

func TestValueMediumErrorsAreSwallowed(t *testing.T) {
	v := kv.NewValue(kv.New(failingMedium{err: errors.New("disk full")}, nil), "k", 7)

	assert.NotPanics(t, func() { v.Write(9) })
	assert.Equal(t, 7, v.Read())
}

func TestValueUnavailableMediumIsNoOp(t *testing.T) {
	v := kv.NewValue(kv.New(nil, nil), "k", "fallback")

	v.Write("stored")
	v.Clear()
	got, ok := v.Lookup()
	assert.False(t, ok)
	assert.Equal(t, "fallback", got)
}

func TestValueSubscribeSeesOtherHandles(t *testing.T) {
	space := kv.NewMemorySpace()
	tabA := kv.NewValue(kv.New(space.Open(), nil), "theme", "light")
	tabB := kv.NewValue(kv.New(space.Open(), nil), "theme", "light")

	var seen []string
	cancel := tabA.Subscribe(func(val string, ok bool) {
		require.True(t, ok)
		seen = append(seen, val)
	})
	defer cancel()

	tabB.Write("dark")
	tabA.Write("light") // own write: not reported back to tabA

	assert.Equal(t, []string{"dark"}, seen)
	assert.Equal(t, "light", tabB.Read())
}

func TestValueSubscribeIgnoresOtherKeys(t *testing.T) {
	space := kv.NewMemorySpace()
	a := kv.New(space.Open(), nil)
	b := kv.New(space.Open(), nil)

	calls := 0
	cancel := kv.NewValue(a, "theme", "").Subscribe(func(string, bool) { calls++ })
	defer cancel()

	kv.NewValue(b, "favorites", []entry{}).Write([]entry{{ID: "x"}})
	assert.Zero(t, calls)
}

func TestValueSubscribeDeleteAndGarbage(t *testing.T) {
	space := kv.NewMemorySpace()
	reader := kv.New(space.Open(), nil)
	writer := space.Open()

	type event struct {
		val int
		ok  bool
	}
	var events []event
	cancel := kv.NewValue(reader, "n", -1).Subscribe(func(v int, ok bool) {
		events = append(events, event{v, ok})
	})

	require.NoError(t, writer.Set("n", "5"))
	require.NoError(t, writer.Set("n", "five"))
	require.NoError(t, writer.Delete("n"))
	cancel()
	require.NoError(t, writer.Set("n", "6"))

	assert.Equal(t, []event{{5, true}, {-1, false}, {-1, false}}, events)
}
