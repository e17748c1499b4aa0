package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/board"
)

func TestApplyGravitySaturatesAtBounds(t *testing.T) {
	v := 0
	for i := 0; i < 1000; i++ {
		applyGravity(&v, maxBonus)
	}
	assert.LessOrEqual(t, v, historyMax)
	assert.GreaterOrEqual(t, v, -historyMax)

	for i := 0; i < 1000; i++ {
		applyGravity(&v, -maxBonus)
	}
	assert.GreaterOrEqual(t, v, -historyMax)
}

func TestBonusIsCappedAtMaxBonus(t *testing.T) {
	assert.Equal(t, 1, bonus(1))
	assert.Equal(t, 1600, bonus(100), "depth-squared bonus must cap at maxBonus")
}

func TestMoveOrdererHistoryUpdate(t *testing.T) {
	mo := NewMoveOrderer()
	m := board.NewMove(board.E2, board.E4)

	before := mo.GetHistoryScore(m)
	mo.UpdateHistory(m, 6, true)
	after := mo.GetHistoryScore(m)

	assert.Greater(t, after, before)

	mo.UpdateHistory(m, 6, false)
	assert.Less(t, mo.GetHistoryScore(m), after)
}

func TestMoveOrdererKillers(t *testing.T) {
	mo := NewMoveOrderer()
	m1 := board.NewMove(board.G1, board.F3)
	m2 := board.NewMove(board.B1, board.C3)

	mo.UpdateKillers(m1, 2)
	assert.Equal(t, m1, mo.killers[2][0])

	mo.UpdateKillers(m2, 2)
	assert.Equal(t, m2, mo.killers[2][0])
	assert.Equal(t, m1, mo.killers[2][1])

	// Re-inserting the current first killer is a no-op.
	mo.UpdateKillers(m2, 2)
	assert.Equal(t, m2, mo.killers[2][0])
	assert.Equal(t, m1, mo.killers[2][1])
}

func TestMoveOrdererCounterMove(t *testing.T) {
	mo := NewMoveOrderer()
	pos := board.NewPosition()

	prev := board.NewMove(board.E2, board.E4)
	counter := board.NewMove(board.E7, board.E5)

	assert.Equal(t, board.NoMove, mo.GetCounterMove(prev, pos))

	mo.UpdateCounterMove(prev, counter, pos)
	assert.Equal(t, counter, mo.GetCounterMove(prev, pos))
}

func TestMoveOrdererCaptureHistory(t *testing.T) {
	mo := NewMoveOrderer()
	attacker := board.NewPiece(board.Pawn, board.White)

	before := mo.GetCaptureHistoryScore(attacker, board.D5, board.Pawn)
	mo.UpdateCaptureHistory(attacker, board.D5, board.Pawn, 4, true)
	after := mo.GetCaptureHistoryScore(attacker, board.D5, board.Pawn)

	assert.Greater(t, after, before)
}

func TestMoveOrdererClearResetsAllTables(t *testing.T) {
	mo := NewMoveOrderer()
	m := board.NewMove(board.E2, board.E4)

	mo.UpdateHistory(m, 6, true)
	mo.UpdateKillers(m, 0)

	mo.Clear()

	assert.Equal(t, 0, mo.GetHistoryScore(m))
	assert.Equal(t, board.NoMove, mo.killers[0][0])
}

func TestSharedHistoryUpdateAndAge(t *testing.T) {
	sh := NewSharedHistory()

	sh.Update(int(board.E2), int(board.E4), bonus(6))
	score := sh.Get(int(board.E2), int(board.E4))
	assert.Greater(t, score, 0)

	sh.Age()
	aged := sh.Get(int(board.E2), int(board.E4))
	assert.Equal(t, score*4/5, aged)

	sh.Clear()
	assert.Equal(t, 0, sh.Get(int(board.E2), int(board.E4)))
}

func TestContinuationHistoryUpdate(t *testing.T) {
	mo := NewMoveOrderer()
	prevPiece := board.NewPiece(board.Knight, board.White)
	piece := board.NewPiece(board.Bishop, board.White)

	table := mo.GetContinuationHistoryTable(prevPiece, board.F3)
	before := table[piece][board.G5]

	mo.UpdateContinuationHistory(prevPiece, board.F3, piece, board.G5, 6, 1, true)

	after := mo.GetContinuationHistoryTable(prevPiece, board.F3)[piece][board.G5]
	assert.Greater(t, after, before)
}
