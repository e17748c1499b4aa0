package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/board"
)

func TestMovePickerReturnsTTMoveFirst(t *testing.T) {
	pos := board.NewPosition()
	orderer := NewMoveOrderer()
	ttMove := board.NewMove(board.E2, board.E4)

	mp := NewMovePicker(pos, orderer, 0, ttMove, board.NoMove, board.NoMove)

	first, ok := mp.Next()
	require.True(t, ok)
	assert.Equal(t, ttMove, first)
}

func TestMovePickerEnumeratesEveryLegalMoveExactlyOnce(t *testing.T) {
	pos := board.NewPosition()
	orderer := NewMoveOrderer()

	mp := NewMovePicker(pos, orderer, 0, board.NoMove, board.NoMove, board.NoMove)

	seen := make(map[board.Move]int)
	for {
		m, ok := mp.Next()
		if !ok {
			break
		}
		seen[m]++
	}

	legal := pos.GenerateLegalMoves()
	assert.Equal(t, legal.Len(), len(seen), "picker must yield exactly as many distinct moves as legal-move generation")
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		assert.Equal(t, 1, seen[m], "move %s must be yielded exactly once", m.String())
	}
}

func TestMovePickerSkipsIllegalTTMove(t *testing.T) {
	pos := board.NewPosition()
	orderer := NewMoveOrderer()

	// e2e5 is not a legal move from the starting position.
	bogusTT := board.NewMove(board.E2, board.E5)
	mp := NewMovePicker(pos, orderer, 0, bogusTT, board.NoMove, board.NoMove)

	first, ok := mp.Next()
	require.True(t, ok)
	assert.NotEqual(t, bogusTT, first)
}

func TestMovePickerOrdersGoodCapturesBeforeQuiets(t *testing.T) {
	// A position where white has both a winning capture (pawn takes
	// hanging knight) and plenty of quiet moves available.
	pos, err := board.ParseFEN("4k3/8/8/3n4/4P3/8/8/4K3 w - - 0 1")
	require.NoError(t, err)

	orderer := NewMoveOrderer()
	mp := NewMovePicker(pos, orderer, 0, board.NoMove, board.NoMove, board.NoMove)

	capture := board.NewMove(board.E4, board.D5)

	var order []board.Move
	for {
		m, ok := mp.Next()
		if !ok {
			break
		}
		order = append(order, m)
	}

	captureIdx := -1
	for i, m := range order {
		if m == capture {
			captureIdx = i
			break
		}
	}
	require.GreaterOrEqual(t, captureIdx, 0, "winning capture must be enumerated")
	assert.Equal(t, 0, captureIdx, "the only available capture must be picked before any quiet move")
}
