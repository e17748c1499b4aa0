package engine

import (
	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/board"
)

// pickerStage names the seven-stage move enumeration order.
type pickerStage int

const (
	stageTT pickerStage = iota
	stageGoodCaptures
	stageKiller1
	stageKiller2
	stageCounter
	stageQuiets
	stageBadCaptures
	stageDone
)

type scoredMove struct {
	move  board.Move
	score int
}

// MovePicker enumerates a node's legal moves in priority order: TT move,
// good captures (SEE >= 0), the two killers, the counter-move, quiet
// moves, then bad captures (SEE < 0). It is an explicit state machine
// rather than a coroutine so a caller can stop after any move (a pruned
// move simply never calls Next again) and resume cheaply.
type MovePicker struct {
	pos         *board.Position
	orderer     *MoveOrderer
	ply         int
	ttMove      board.Move
	prevMove    board.Move
	prePrevMove board.Move

	stage pickerStage

	killer1, killer2, counter board.Move

	goodCaptures []scoredMove
	badCaptures  []scoredMove
	quiets       []scoredMove
	gi, bi, qi   int

	seen map[board.Move]bool
}

// NewMovePicker starts a staged enumeration for the given node.
// prePrevMove is the move played two plies back (the grandparent move),
// used by the quiet stage's follow-up history term; pass board.NoMove
// when it isn't available (e.g. near the root).
func NewMovePicker(pos *board.Position, orderer *MoveOrderer, ply int, ttMove, prevMove board.Move, prePrevMove board.Move) *MovePicker {
	mp := &MovePicker{
		pos:         pos,
		orderer:     orderer,
		ply:         ply,
		prevMove:    prevMove,
		prePrevMove: prePrevMove,
		seen:        make(map[board.Move]bool, 8),
	}

	if ttMove != board.NoMove && pos.PseudoLegal(ttMove) {
		mp.ttMove = ttMove
	}

	if ply < MaxPly {
		mp.killer1 = orderer.killers[ply][0]
		mp.killer2 = orderer.killers[ply][1]
	}
	mp.counter = orderer.GetCounterMove(prevMove, pos)

	return mp
}

// Next returns the next move in priority order, or (NoMove, false) when
// the enumeration is exhausted.
func (mp *MovePicker) Next() (board.Move, bool) {
	for {
		switch mp.stage {
		case stageTT:
			mp.stage = stageGoodCaptures
			if mp.ttMove != board.NoMove {
				mp.seen[mp.ttMove] = true
				return mp.ttMove, true
			}

		case stageGoodCaptures:
			if mp.goodCaptures == nil && mp.badCaptures == nil {
				mp.splitCaptures()
			}
			if mp.gi < len(mp.goodCaptures) {
				m := mp.goodCaptures[mp.gi].move
				mp.gi++
				if mp.seen[m] {
					continue
				}
				mp.seen[m] = true
				return m, true
			}
			mp.stage = stageKiller1

		case stageKiller1:
			mp.stage = stageKiller2
			if mp.killer1 != board.NoMove && !mp.seen[mp.killer1] && mp.legalQuiet(mp.killer1) {
				mp.seen[mp.killer1] = true
				return mp.killer1, true
			}

		case stageKiller2:
			mp.stage = stageCounter
			if mp.killer2 != board.NoMove && !mp.seen[mp.killer2] && mp.legalQuiet(mp.killer2) {
				mp.seen[mp.killer2] = true
				return mp.killer2, true
			}

		case stageCounter:
			mp.stage = stageQuiets
			if mp.counter != board.NoMove && !mp.seen[mp.counter] && mp.legalQuiet(mp.counter) {
				mp.seen[mp.counter] = true
				return mp.counter, true
			}

		case stageQuiets:
			if mp.quiets == nil {
				mp.prepareQuiets()
			}
			if mp.qi < len(mp.quiets) {
				m := mp.quiets[mp.qi].move
				mp.qi++
				if mp.seen[m] {
					continue
				}
				mp.seen[m] = true
				return m, true
			}
			mp.stage = stageBadCaptures

		case stageBadCaptures:
			if mp.bi < len(mp.badCaptures) {
				m := mp.badCaptures[mp.bi].move
				mp.bi++
				if mp.seen[m] {
					continue
				}
				mp.seen[m] = true
				return m, true
			}
			mp.stage = stageDone

		case stageDone:
			return board.NoMove, false
		}
	}
}

// legalQuiet reports whether m is a legal, non-capture move in this
// position (killers/counter-moves are only ever quiet moves by
// construction, but a transposed position may make them illegal here).
func (mp *MovePicker) legalQuiet(m board.Move) bool {
	if m.IsCapture(mp.pos) {
		return false
	}
	return mp.pos.PseudoLegal(m)
}

func (mp *MovePicker) splitCaptures() {
	captures := mp.pos.GenerateCaptures()
	mp.goodCaptures = make([]scoredMove, 0, captures.Len())
	mp.badCaptures = make([]scoredMove, 0, 4)

	for i := 0; i < captures.Len(); i++ {
		m := captures.Get(i)
		see := SEE(mp.pos, m)
		capHist := mp.captureHistoryFor(m)

		if see >= 0 {
			mp.goodCaptures = append(mp.goodCaptures, scoredMove{m, see*64 + capHist/100})
		} else {
			mp.badCaptures = append(mp.badCaptures, scoredMove{m, see + capHist/100})
		}
	}

	sortDescending(mp.goodCaptures)
	sortDescending(mp.badCaptures)
}

func (mp *MovePicker) captureHistoryFor(m board.Move) int {
	attacker := mp.pos.PieceAt(m.From())
	if attacker == board.NoPiece {
		return 0
	}
	var victim board.PieceType
	if m.IsEnPassant() {
		victim = board.Pawn
	} else {
		captured := mp.pos.PieceAt(m.To())
		if captured == board.NoPiece {
			return 0
		}
		victim = captured.Type()
	}
	if victim >= board.King {
		return 0
	}
	return mp.orderer.GetCaptureHistoryScore(attacker, m.To(), victim)
}

func (mp *MovePicker) prepareQuiets() {
	moves := mp.pos.GenerateLegalMoves()
	mp.quiets = make([]scoredMove, 0, moves.Len())

	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m.IsCapture(mp.pos) {
			continue
		}
		score := mp.orderer.scoreQuiet(mp.pos, m, mp.ply, mp.prevMove, mp.prePrevMove)
		if m.IsPromotion() {
			// Quiet (non-capturing) promotions rank with good captures.
			// GenerateCaptures also yields push promotions, so the
			// good-capture stage normally returns them first and they are
			// skipped here as already seen.
			score += GoodCaptureBase
		}
		mp.quiets = append(mp.quiets, scoredMove{m, score})
	}

	sortDescending(mp.quiets)
}

func sortDescending(s []scoredMove) {
	for i := 1; i < len(s); i++ {
		j := i
		for j > 0 && s[j-1].score < s[j].score {
			s[j-1], s[j] = s[j], s[j-1]
			j--
		}
	}
}
