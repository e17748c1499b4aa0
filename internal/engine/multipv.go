package engine

import (
	"sync/atomic"

	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/board"
)

// PVTable stores the principal variation found at each ply.
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}

// Searcher is a lightweight single-threaded alpha-beta search used to
// fill in secondary Multi-PV lines once the primary Lazy-SMP search has
// settled on its best move; it shares the main transposition table but
// keeps its own move ordering state.
type Searcher struct {
	pos     *board.Position
	tt      *TranspositionTable
	orderer *MoveOrderer

	nodes    uint64
	stopFlag atomic.Bool

	pv PVTable

	undoStack [MaxPly]board.UndoInfo

	contempt int
}

// SetContempt sets the draw-score offset for Multi-PV fill-in searches.
func (s *Searcher) SetContempt(cp int) {
	s.contempt = cp
}

// NewSearcher creates a new searcher.
func NewSearcher(tt *TranspositionTable) *Searcher {
	return &Searcher{
		tt:      tt,
		orderer: NewMoveOrderer(),
	}
}

// Stop signals the search to stop.
func (s *Searcher) Stop() {
	s.stopFlag.Store(true)
}

// Reset resets the searcher for a new search.
func (s *Searcher) Reset() {
	s.stopFlag.Store(false)
	s.nodes = 0
	s.orderer.Clear()
}

// Nodes returns the number of nodes searched.
func (s *Searcher) Nodes() uint64 {
	return s.nodes
}

// Search performs the search at the given depth.
func (s *Searcher) Search(pos *board.Position, depth int) (board.Move, int) {
	s.pos = pos.Copy()
	s.Reset()

	score := s.negamax(depth, 0, -Infinity, Infinity)

	var bestMove board.Move
	if s.pv.length[0] > 0 {
		bestMove = s.pv.moves[0][0]
	}

	return bestMove, score
}

// negamax implements a plain negamax search with alpha-beta pruning.
func (s *Searcher) negamax(depth, ply int, alpha, beta int) int {
	if s.nodes&4095 == 0 && s.stopFlag.Load() {
		return 0
	}

	s.nodes++
	s.pv.length[ply] = ply

	if ply > 0 && s.isDraw() {
		return -s.contempt
	}

	var ttMove board.Move
	ttEntry, found := s.tt.Probe(s.pos.Hash)
	if found {
		ttMove = ttEntry.Move
		if int(ttEntry.Depth) >= depth {
			score := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				return score
			case TTLowerBound:
				if score > alpha {
					alpha = score
				}
			case TTUpperBound:
				if score < beta {
					beta = score
				}
			}
			if alpha >= beta {
				return score
			}
		}
	}

	if depth <= 0 {
		return s.quiescence(ply, alpha, beta)
	}

	inCheck := s.pos.InCheck()

	moves := s.pos.GenerateLegalMoves()

	if moves.Len() == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return -s.contempt
	}

	scores := s.orderer.ScoreMoves(s.pos, moves, ply, ttMove)

	bestScore := -Infinity
	bestMove := board.NoMove
	flag := TTUpperBound

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		s.undoStack[ply] = s.pos.MakeMove(move)

		if !s.undoStack[ply].Valid {
			s.pos.UnmakeMove(move, s.undoStack[ply])
			continue
		}

		score := -s.negamax(depth-1, ply+1, -beta, -alpha)

		s.pos.UnmakeMove(move, s.undoStack[ply])

		if s.stopFlag.Load() {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = move

			if score > alpha {
				alpha = score
				flag = TTExact

				s.pv.moves[ply][ply] = move
				for j := ply + 1; j < s.pv.length[ply+1]; j++ {
					s.pv.moves[ply][j] = s.pv.moves[ply+1][j]
				}
				s.pv.length[ply] = s.pv.length[ply+1]
			}
		}

		if score >= beta {
			s.tt.Store(s.pos.Hash, depth, AdjustScoreToTT(score, ply), TTLowerBound, bestMove, false)

			if !move.IsCapture(s.pos) {
				s.orderer.UpdateKillers(move, ply)
				s.orderer.UpdateHistory(move, depth, true)
			}

			return score
		}
	}

	s.tt.Store(s.pos.Hash, depth, AdjustScoreToTT(bestScore, ply), flag, bestMove, flag == TTExact)

	return bestScore
}

// quiescence searches only captures to avoid horizon effect.
func (s *Searcher) quiescence(ply int, alpha, beta int) int {
	const maxQuiescencePly = 32
	if ply >= MaxPly || ply > maxQuiescencePly {
		return Evaluate(s.pos)
	}

	if s.stopFlag.Load() {
		return 0
	}

	s.nodes++

	standPat := Evaluate(s.pos)

	if standPat >= beta {
		return beta
	}

	if standPat > alpha {
		alpha = standPat
	}

	bigDelta := QueenValue
	if standPat+bigDelta < alpha {
		return alpha
	}

	moves := s.pos.GenerateCaptures()

	scores := s.orderer.ScoreMoves(s.pos, moves, ply, board.NoMove)

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		if !s.pos.InCheck() {
			var captureValue int
			if move.IsEnPassant() {
				captureValue = PawnValue
			} else {
				capturedPiece := s.pos.PieceAt(move.To())
				if capturedPiece != board.NoPiece {
					captureValue = pieceValues[capturedPiece.Type()]
				}
			}
			if move.IsPromotion() {
				captureValue += QueenValue - PawnValue
			}
			if standPat+captureValue+200 < alpha {
				continue
			}
		}

		undo := s.pos.MakeMove(move)

		if !undo.Valid {
			s.pos.UnmakeMove(move, undo)
			continue
		}

		score := -s.quiescence(ply+1, -beta, -alpha)

		s.pos.UnmakeMove(move, undo)

		if score >= beta {
			return beta
		}

		if score > alpha {
			alpha = score
		}
	}

	return alpha
}

// isDraw checks for draw by the fifty-move rule or insufficient material.
// Repetition is not detected here: the Searcher keeps no position history.
func (s *Searcher) isDraw() bool {
	if s.pos.HalfMoveClock >= 100 {
		return true
	}

	if s.pos.IsInsufficientMaterial() {
		return true
	}

	return false
}

// GetPV returns the principal variation from the last search.
func (s *Searcher) GetPV() []board.Move {
	pv := make([]board.Move, s.pv.length[0])
	for i := 0; i < s.pv.length[0]; i++ {
		pv[i] = s.pv.moves[0][i]
	}
	return pv
}
