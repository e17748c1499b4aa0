package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/board"
)

func TestTTStoreAndProbe(t *testing.T) {
	tt := NewTranspositionTable(1)

	hash := uint64(0x1234567890abcdef)
	move := board.NewMove(board.E2, board.E4)

	tt.Store(hash, 6, 123, TTExact, move, true)

	entry, found := tt.Probe(hash)
	require.True(t, found)
	assert.Equal(t, int16(123), entry.Score)
	assert.Equal(t, int8(6), entry.Depth)
	assert.Equal(t, TTExact, entry.Flag)
	assert.Equal(t, move, entry.Move)
	assert.True(t, entry.IsPV)
}

func TestTTProbeMissOnEmptyTable(t *testing.T) {
	tt := NewTranspositionTable(1)
	_, found := tt.Probe(0xdeadbeef)
	assert.False(t, found)
}

func TestTTDeeperExactNeverDowngraded(t *testing.T) {
	tt := NewTranspositionTable(1)
	hash := uint64(0x1111)
	move := board.NewMove(board.D2, board.D4)

	tt.Store(hash, 10, 500, TTExact, move, true)
	tt.Store(hash, 3, -50, TTUpperBound, board.NewMove(board.G1, board.F3), false)

	entry, found := tt.Probe(hash)
	require.True(t, found)
	assert.Equal(t, TTExact, entry.Flag, "a shallower non-exact write must not downgrade a deeper exact entry")
	assert.Equal(t, int16(500), entry.Score)
}

func TestTTClear(t *testing.T) {
	tt := NewTranspositionTable(1)
	hash := uint64(0x2222)
	tt.Store(hash, 5, 10, TTExact, board.NoMove, false)

	tt.Clear()

	_, found := tt.Probe(hash)
	assert.False(t, found)
	assert.Equal(t, float64(0), tt.HitRate())
}

func TestAdjustScoreToAndFromTT(t *testing.T) {
	mateScore := MateScore - 5
	stored := AdjustScoreToTT(mateScore, 3)
	assert.Equal(t, mateScore+3, stored)

	back := AdjustScoreFromTT(stored, 3)
	assert.Equal(t, mateScore, back)

	// Non-mate scores pass through unchanged.
	assert.Equal(t, 123, AdjustScoreToTT(123, 7))
	assert.Equal(t, 123, AdjustScoreFromTT(123, 7))
}

func TestTTNewSearchAgesEntries(t *testing.T) {
	tt := NewTranspositionTable(1)
	hash := uint64(0x3333)
	tt.Store(hash, 4, 1, TTExact, board.NoMove, false)

	tt.NewSearch()
	tt.NewSearch()

	// Entry is still probeable (age only affects replacement/HashFull, not validity).
	_, found := tt.Probe(hash)
	assert.True(t, found)
}
