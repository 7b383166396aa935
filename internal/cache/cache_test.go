package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string  `json:"name"`
	Limit float64 `json:"limit"`
}

func TestCache_SetGet(t *testing.T) {
	c := New(nil)

	require.NoError(t, c.Set("chunk:1", payload{Name: "maxheight", Limit: 3.5}, time.Minute, "overpass"))

	var got payload
	found, err := c.Get("chunk:1", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "maxheight", got.Name)
	assert.InDelta(t, 3.5, got.Limit, 1e-9)
}

func TestCache_MissAndExpiry(t *testing.T) {
	c := New(nil)

	var got payload
	found, err := c.Get("missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set("short", payload{}, -time.Second, "overpass"))
	found, err = c.Get("short", &got)
	require.NoError(t, err)
	assert.False(t, found, "expired entry reads as a miss")
	assert.True(t, c.IsStale("short"))
}

func TestCache_CleanupStale(t *testing.T) {
	c := New(nil)

	require.NoError(t, c.Set("fresh", payload{}, time.Minute, "overpass"))
	require.NoError(t, c.Set("stale", payload{}, -time.Second, "overpass"))

	removed := c.CleanupStale()
	assert.Equal(t, 1, removed)

	stats := c.Stats()
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 1, stats.FreshEntries)
}

func TestCache_ClearAndDelete(t *testing.T) {
	c := New(nil)

	require.NoError(t, c.Set("a", payload{}, time.Minute, "overpass"))
	require.NoError(t, c.Set("b", payload{}, time.Minute, "overpass"))

	c.Delete("a")
	assert.True(t, c.IsStale("a"))
	assert.False(t, c.IsStale("b"))

	c.Clear()
	assert.Zero(t, c.Stats().TotalEntries)
}
