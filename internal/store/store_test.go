package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	tmpDir := t.TempDir()

	s, err := OpenAt(tmpDir)
	require.NoError(t, err)
	defer s.Close()

	t.Run("DefaultOptions", func(t *testing.T) {
		opts := DefaultOptions()
		assert.Equal(t, 64, opts.HashMB)
		assert.Equal(t, 1, opts.Threads)
		assert.Equal(t, 1, opts.MultiPV)
	})

	t.Run("SaveLoadOptions", func(t *testing.T) {
		opts := DefaultOptions()
		opts.HashMB = 256
		opts.Threads = 4
		opts.Contempt = 12
		require.NoError(t, s.SaveOptions(opts))

		loaded, err := s.LoadOptions()
		require.NoError(t, err)
		assert.Equal(t, 256, loaded.HashMB)
		assert.Equal(t, 4, loaded.Threads)
		assert.Equal(t, 12, loaded.Contempt)
	})

	t.Run("LearnedBookRoundTrip", func(t *testing.T) {
		lb := make(LearnedBook)
		lb.RecordOutcome(0xdeadbeef, "e2e4", true, false)
		lb.RecordOutcome(0xdeadbeef, "e2e4", false, true)
		lb.RecordOutcome(0xdeadbeef, "d2d4", false, false)

		require.NoError(t, s.SaveLearnedBook(lb))

		loaded, err := s.LoadLearnedBook()
		require.NoError(t, err)

		e4 := loaded[0xdeadbeef]["e2e4"]
		assert.Equal(t, 1, e4.Wins)
		assert.Equal(t, 1, e4.Draws)
		assert.Equal(t, 5, e4.Score())

		d4 := loaded[0xdeadbeef]["d2d4"]
		assert.Equal(t, 1, d4.Losses)
		assert.Equal(t, -2, d4.Score())
	})
}

func TestDataDirFallsBackWhenUnset(t *testing.T) {
	scratch := t.TempDir()
	t.Setenv("XDG_DATA_HOME", scratch)

	dir, err := DataDir()
	require.NoError(t, err)
	assert.NotEmpty(t, dir)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Errorf("data directory was not created: %s", dir)
	}
}
