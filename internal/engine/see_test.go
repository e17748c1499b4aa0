package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/board"
)

func TestSEEWinningCapture(t *testing.T) {
	// White pawn takes a hanging black knight on d5: unambiguous win.
	pos, err := board.ParseFEN("4k3/8/8/3n4/4P3/8/8/4K3 w - - 0 1")
	require.NoError(t, err)

	move := board.NewMove(board.E4, board.D5)
	see := SEE(pos, move)

	assert.Greater(t, see, 0, "pawn takes undefended knight must have positive SEE")
}

func TestSEELosingCapture(t *testing.T) {
	// White knight takes a pawn on d5, defended by a pawn on e6 and c6:
	// the knight is lost for a pawn.
	pos, err := board.ParseFEN("4k3/8/2p1p3/3p4/8/2N5/8/4K3 w - - 0 1")
	require.NoError(t, err)

	move := board.NewMove(board.C3, board.D5)
	see := SEE(pos, move)

	assert.Less(t, see, 0, "knight takes a defended pawn must have negative SEE")
}

func TestSEENonCaptureIsZero(t *testing.T) {
	pos := board.NewPosition()
	move := board.NewMove(board.E2, board.E4)

	assert.Equal(t, 0, SEE(pos, move))
}

func TestSEEUndefendedRookCapture(t *testing.T) {
	// Rook takes a rook that nothing defends: SEE is the full rook value.
	pos, err := board.ParseFEN("4k3/8/8/8/3r4/8/8/3RK3 w - - 0 1")
	require.NoError(t, err)

	move := board.NewMove(board.D1, board.D4)
	see := SEE(pos, move)

	assert.Equal(t, RookValue, see)
}
