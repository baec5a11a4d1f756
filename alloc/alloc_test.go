package alloc

import (
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeap_AllocFreeBalance(t *testing.T) {
	h := NewHeap(0)

	a, err := h.Alloc(6)
	require.NoError(t, err)
	assert.Len(t, a, 6)
	assert.Equal(t, make([]byte, 6), a, "buffers are zeroed")

	b, err := h.Alloc(1)
	require.NoError(t, err)

	s := h.Stats()
	assert.Equal(t, int64(2), s.Allocs)
	assert.Equal(t, int64(7), s.LiveBytes)
	assert.Equal(t, int64(5), s.HeldBytes)
	assert.False(t, h.Balanced())

	h.Free(a)
	h.Free(b)
	h.Free(nil)

	s = h.Stats()
	assert.Equal(t, int64(2), s.Frees)
	assert.Equal(t, int64(0), s.LiveBytes)
	assert.Equal(t, int64(7), s.PeakBytes)
	assert.True(t, h.Balanced())
}

func TestHeap_InvalidSize(t *testing.T) {
	h := NewHeap(0)
	_, err := h.Alloc(0)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrOutOfMemory))
	assert.Equal(t, int64(0), h.Stats().Allocs)
}

func TestHeap_LimitRefusesContent(t *testing.T) {
	h := NewHeap(4)

	a, err := h.Alloc(5) // four content bytes plus terminator
	require.NoError(t, err)

	_, err = h.Alloc(2)
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, int64(1), h.Stats().Refused)

	h.Free(a)
	b, err := h.Alloc(2)
	require.NoError(t, err)
	h.Free(b)
	assert.True(t, h.Balanced())
}

func TestHeap_TerminatorSlotIgnoresLimit(t *testing.T) {
	h := NewHeap(1)

	full, err := h.Alloc(2)
	require.NoError(t, err)

	var slots [][]byte
	for i := 0; i < 8; i++ {
		b, err := h.Alloc(1)
		require.NoError(t, err, "terminator-only requests must always succeed")
		slots = append(slots, b)
	}
	for _, b := range slots {
		h.Free(b)
	}
	h.Free(full)
	assert.True(t, h.Balanced())
}

func TestHeap_SetLimit(t *testing.T) {
	h := NewHeap(0)
	h.SetLimit(-3)
	assert.Equal(t, int64(0), h.Stats().Limit)

	h.SetLimit(2)
	_, err := h.Alloc(4)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	h.SetLimit(0)
	b, err := h.Alloc(4)
	require.NoError(t, err)
	h.Free(b)
}

func TestHeap_ConcurrentCounters(t *testing.T) {
	h := NewHeap(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b, err := h.Alloc(j%7 + 1)
				if err != nil {
					t.Errorf("Alloc failed: %v", err)
					return
				}
				h.Free(b)
			}
		}()
	}
	wg.Wait()

	s := h.Stats()
	assert.Equal(t, int64(800), s.Allocs)
	assert.True(t, h.Balanced())
}

func TestLoadOptions(t *testing.T) {
	t.Setenv("TEXTVALUE_ALLOC_LIMIT", "1024")
	t.Setenv("TEXTVALUE_LOG_LEVEL", "warn")

	opts, err := LoadOptions()
	require.NoError(t, err)
	assert.Equal(t, int64(1024), opts.Limit)
	assert.Equal(t, "warn", opts.LogLevel)

	h, err := NewHeapFromOptions(opts)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), h.Stats().Limit)
}

func TestLoadOptions_Defaults(t *testing.T) {
	t.Setenv("TEXTVALUE_ALLOC_LIMIT", "")
	t.Setenv("TEXTVALUE_LOG_LEVEL", "")
	os.Unsetenv("TEXTVALUE_ALLOC_LIMIT")
	os.Unsetenv("TEXTVALUE_LOG_LEVEL")

	opts, err := LoadOptions()
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)
}

func TestLoadOptions_Invalid(t *testing.T) {
	t.Run("negative limit", func(t *testing.T) {
		t.Setenv("TEXTVALUE_ALLOC_LIMIT", "-1")
		_, err := LoadOptions()
		assert.Error(t, err)
	})
	t.Run("bad level", func(t *testing.T) {
		t.Setenv("TEXTVALUE_LOG_LEVEL", "loud")
		_, err := NewHeapFromEnv()
		assert.Error(t, err)
	})
	t.Run("bad number", func(t *testing.T) {
		t.Setenv("TEXTVALUE_ALLOC_LIMIT", "lots")
		_, err := LoadOptions()
		assert.Error(t, err)
	})
}

func TestNewDefaultHeap_ReadsEnvironment(t *testing.T) {
	level := logrus.GetLevel()
	t.Cleanup(func() { logrus.SetLevel(level) })

	t.Setenv("TEXTVALUE_ALLOC_LIMIT", "64")
	t.Setenv("TEXTVALUE_LOG_LEVEL", "error")

	h := newDefaultHeap()
	assert.Equal(t, int64(64), h.Stats().Limit)
	assert.Equal(t, logrus.ErrorLevel, logrus.GetLevel())

	_, err := h.Alloc(65)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestNewDefaultHeap_FallsBackOnBadEnvironment(t *testing.T) {
	level := logrus.GetLevel()
	t.Cleanup(func() { logrus.SetLevel(level) })

	t.Setenv("TEXTVALUE_ALLOC_LIMIT", "-5")
	t.Setenv("TEXTVALUE_LOG_LEVEL", "info")

	h := newDefaultHeap()
	require.NotNil(t, h)
	assert.Equal(t, int64(0), h.Stats().Limit)
}
