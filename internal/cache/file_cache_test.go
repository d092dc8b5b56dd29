package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type product struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

func TestSetGet(t *testing.T) {
	fc := NewFileCache[product](filepath.Join(t.TempDir(), "catalog"))
	key := fc.GenerateKey("POLYGON((0 0,1 0,1 1,0 0))", "2024-01-01", "2024-01-31", 0, 30)

	_, ok := fc.Get(key)
	assert.False(t, ok)

	require.NoError(t, fc.Set(key, product{ID: "abc", Name: "S2A.SAFE"}))
	got, ok := fc.Get(key)
	require.True(t, ok)
	assert.Equal(t, "abc", got.ID)
	assert.NoFileExists(t, filepath.Join(fc.Dir(), key+".json.tmp"))

	require.NoError(t, fc.Delete(key))
	_, ok = fc.Get(key)
	assert.False(t, ok)
	assert.NoError(t, fc.Delete(key))
}

func TestGenerateKeyIsStable(t *testing.T) {
	fc := NewFileCache[int](t.TempDir())
	assert.Equal(t, fc.GenerateKey("a", 1), fc.GenerateKey("a", 1))
	assert.NotEqual(t, fc.GenerateKey("a", 1), fc.GenerateKey("a", 2))
	assert.Len(t, fc.GenerateKey(), 40)
}

func TestTamperedEntryIsMiss(t *testing.T) {
	fc := NewFileCache[product](t.TempDir())
	require.NoError(t, fc.Set("k", product{ID: "abc"}))

	path := filepath.Join(fc.Dir(), "k.json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(string(raw[:len(raw)-5])+"xx}"), 0o644))

	_, ok := fc.Get("k")
	assert.False(t, ok)
}

func TestMaxAge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fc := NewFileCache[product](t.TempDir(), WithMaxAge[product](time.Hour))
	fc.now = func() time.Time { return now }
	require.NoError(t, fc.Set("k", product{ID: "abc"}))

	now = now.Add(30 * time.Minute)
	_, ok := fc.Get("k")
	assert.True(t, ok)

	now = now.Add(time.Hour)
	_, ok = fc.Get("k")
	assert.False(t, ok)
}
