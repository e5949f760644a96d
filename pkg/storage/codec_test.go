package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 10 * time.Millisecond
)

func TestDecode(t *testing.T) {
	v, ok, err := decode[int]("12")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 12, v)

	s, ok, err := decode[string](`"quoted"`)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "quoted", s)

	s, ok, err = decode[string]("bare")
	assert.Error(t, err, "fallback still reports the parse error")
	assert.True(t, ok)
	assert.Equal(t, "bare", s)

	_, ok, err = decode[[]int]("bare")
	assert.Error(t, err)
	assert.False(t, ok)

	p, ok, err := decode[*prefs]("null")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, p)
}

func TestEncode(t *testing.T) {
	s, err := encode("dark")
	require.NoError(t, err)
	assert.Equal(t, `"dark"`, s)

	_, err = encode[any](func() {})
	assert.Error(t, err)
}

func TestListenerRegistry(t *testing.T) {
	var r listenerRegistry[int]

	id1, first := r.add("a", func(int) {})
	assert.True(t, first)
	id2, first := r.add("a", func(int) {})
	assert.False(t, first)
	id3, _ := r.add("b", func(int) {})
	assert.Len(t, r.forKey("a"), 2)

	removed, _ := r.remove("b", id1)
	assert.False(t, removed)

	removed, last := r.remove("a", id1)
	assert.True(t, removed)
	assert.False(t, last)
	removed, last = r.remove("a", id2)
	assert.True(t, removed)
	assert.False(t, last)
	removed, last = r.remove("b", id3)
	assert.True(t, removed)
	assert.True(t, last)
	assert.Equal(t, 0, r.len())
}
