package engine

import (
	"sync/atomic"

	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/board"
)

// Saturation bound for every history table; writes clamp to this range.
const historyMax = 16384

// maxBonus caps the depth-squared bonus/penalty applied on an update.
const maxBonus = 1600

// bonus returns the depth-scaled update magnitude used by every history
// table: min(depth*depth, maxBonus).
func bonus(depth int) int {
	b := depth * depth
	if b > maxBonus {
		b = maxBonus
	}
	return b
}

// applyGravity implements the shared update rule for every table below:
// x += delta - x*|delta|/historyMax, then clamp to +-historyMax. Moves
// that fail to produce a cutoff pass a negative delta.
func applyGravity(x *int, delta int) {
	v := *x
	v += delta - v*abs(delta)/historyMax
	if v > historyMax {
		v = historyMax
	}
	if v < -historyMax {
		v = -historyMax
	}
	*x = v
}

// PieceToHistory is a continuation-history slice indexed by the
// following move's (piece, destination square): what a parent move
// predicts about a child move's quality.
type PieceToHistory [12][64]int

// lowPlyDepth is how many root-adjacent plies get their own history
// table, used to stabilize root move ordering across iterations.
const lowPlyDepth = 5

// SharedHistory is the butterfly history shared across Lazy-SMP
// workers. Unlike the per-worker tables, multiple search goroutines
// update it concurrently; every cell is an atomic counter, and Update
// applies the gravity formula in a compare-and-swap loop so concurrent
// updates to one cell are never lost. Age and Clear store each cell
// directly, without that loop.
type SharedHistory struct {
	table [64][64]atomic.Int64
}

// NewSharedHistory creates an empty shared history table.
func NewSharedHistory() *SharedHistory {
	return &SharedHistory{}
}

// Get returns the shared history score for a from/to pair.
func (sh *SharedHistory) Get(from, to int) int {
	return int(sh.table[from][to].Load())
}

// Update folds a cutoff bonus into the shared table.
func (sh *SharedHistory) Update(from, to, delta int) {
	cell := &sh.table[from][to]
	for {
		old := cell.Load()
		v := int(old)
		v += delta - v*abs(delta)/historyMax
		if v > historyMax {
			v = historyMax
		}
		if v < -historyMax {
			v = -historyMax
		}
		if cell.CompareAndSwap(old, int64(v)) {
			return
		}
	}
}

// Clear resets the shared history table (new-game boundary only).
func (sh *SharedHistory) Clear() {
	for i := range sh.table {
		for j := range sh.table[i] {
			sh.table[i][j].Store(0)
		}
	}
}

// Age decays every cell of the shared table to 4/5 of its value. No
// search path calls it; otherwise the table is reset only by Clear.
func (sh *SharedHistory) Age() {
	for i := range sh.table {
		for j := range sh.table[i] {
			cell := &sh.table[i][j]
			cell.Store(cell.Load() * 4 / 5)
		}
	}
}

// butterflyHistory, counterMoveHistory, followupHistory, captureHistory,
// killers and lowPlyHistory are thread-local: each search instance owns
// an independent copy (see MoveOrderer in orderer.go), matching the
// "history/killer tables (thread-local)" resource model.

// GetContinuationHistoryTable returns the continuation table keyed by
// a move's (piece, destination), used by child plies to score how well
// their move follows this one.
func (mo *MoveOrderer) GetContinuationHistoryTable(piece board.Piece, to board.Square) *PieceToHistory {
	return &mo.continuationHistory[piece][to]
}

// UpdateContinuationHistory updates the continuation-history slot for
// (prevPiece, prevTo) -> (piece, toSq). plyBack selects which ancestor
// this update is attributed to (1 and 2 plies back get full weight,
// more distant ancestors get a reduced weight, following Stockfish's
// update_continuation_histories).
func (mo *MoveOrderer) UpdateContinuationHistory(prevPiece board.Piece, prevTo board.Square, piece board.Piece, toSq board.Square, depth, plyBack int, isGood bool) {
	weight := bonus(depth)
	if plyBack == 3 || plyBack == 5 {
		weight /= 2
	}
	delta := weight
	if !isGood {
		delta = -weight
	}
	applyGravity(&mo.continuationHistory[prevPiece][prevTo][piece][toSq], delta)
}

// UpdateLowPlyHistory boosts root-adjacent move ordering, independent
// of the depth-indexed main history, so shallow iterations converge on
// a stable root move faster.
func (mo *MoveOrderer) UpdateLowPlyHistory(m board.Move, ply, depth int, isGood bool) {
	if ply >= lowPlyDepth {
		return
	}
	delta := bonus(depth)
	if !isGood {
		delta = -delta
	}
	applyGravity(&mo.lowPlyHistory[ply][m.From()][m.To()], delta)
}

// GetLowPlyHistoryScore reads the low-ply history contribution for a move.
func (mo *MoveOrderer) GetLowPlyHistoryScore(m board.Move, ply int) int {
	if ply >= lowPlyDepth {
		return 0
	}
	return mo.lowPlyHistory[ply][m.From()][m.To()]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
