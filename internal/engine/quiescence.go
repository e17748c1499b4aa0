package engine

import (
	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/board"
)

const maxQuiescencePly = 32

// quiescence searches captures (and, while in check, all evasions) until
// the position is quiet, to avoid the horizon effect at the leaves of
// the main search.
func (s *SearchState) quiescence(ply int, alpha, beta int) int {
	return s.quiescenceInternal(ply, 0, alpha, beta)
}

// quiescenceInternal is the internal quiescence search with qPly tracking:
// TT probe, proper in-check handling (no standing pat), delta and SEE pruning.
func (s *SearchState) quiescenceInternal(ply, qPly int, alpha, beta int) int {
	if ply >= MaxPly || qPly > maxQuiescencePly {
		return s.evaluate()
	}

	if s.stopFlag.Load() {
		return 0
	}

	s.nodes++
	originalAlpha := alpha

	var ttMove board.Move
	ttEntry, ttHit := s.tt.Probe(s.pos.Hash)
	if ttHit {
		ttMove = ttEntry.Move
		if ttMove != board.NoMove && !s.pos.PseudoLegal(ttMove) {
			ttMove = board.NoMove
		}
		if int(ttEntry.Depth) >= 0 {
			score := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				return score
			case TTLowerBound:
				if score >= beta {
					return score
				}
			case TTUpperBound:
				if score <= alpha {
					return score
				}
			}
		}
	}

	inCheck := s.pos.InCheck()

	var standPat, bestValue int
	var bestMove board.Move

	if inCheck {
		bestValue = -MateScore + ply
		standPat = bestValue
	} else {
		lazyEval := EvaluateMaterialWithCache(s.pos, s.materialCache)
		if lazyEval-lazyEvalMargin >= beta {
			return beta
		}
		if lazyEval+lazyEvalMargin <= alpha {
			return alpha
		}

		standPat = s.evaluate()
		bestValue = standPat

		if standPat >= beta {
			s.tt.Store(s.pos.Hash, 0, AdjustScoreToTT(standPat, ply), TTLowerBound, board.NoMove, false)
			return beta
		}

		if standPat > alpha {
			alpha = standPat
		}

		if standPat+QueenValue < alpha {
			return alpha
		}
	}

	var moves *board.MoveList
	if inCheck {
		moves = s.pos.GenerateLegalMoves()
	} else {
		moves = s.pos.GenerateCaptures()
	}
	scores := s.orderer.ScoreMoves(s.pos, moves, ply, ttMove)

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		if !inCheck {
			captureValue := qsCaptureValue(s.pos, move)
			futilityBase := standPat + 351

			if standPat+captureValue+200 < alpha && !move.IsPromotion() {
				if captureValue+futilityBase > bestValue {
					bestValue = captureValue + futilityBase
				}
				continue
			}

			seeValue := SEE(s.pos, move)
			if seeValue < 0 && !s.givesCheck(move) {
				continue
			}

			if futilityBase+seeValue <= alpha {
				if futilityBase > bestValue {
					bestValue = futilityBase
				}
				continue
			}
		}

		undo := s.pos.MakeMove(move)
		if !undo.Valid {
			s.pos.UnmakeMove(move, undo)
			continue
		}

		score := -s.quiescenceInternal(ply+1, qPly+1, -beta, -alpha)
		s.pos.UnmakeMove(move, undo)

		if score > bestValue {
			bestValue = score
			bestMove = move

			if score > alpha {
				alpha = score
				if score >= beta {
					break
				}
			}
		}
	}

	if inCheck && bestValue == -MateScore+ply {
		return -MateScore + ply
	}

	var ttFlag TTFlag
	if bestValue >= beta {
		ttFlag = TTLowerBound
	} else if bestValue > originalAlpha {
		ttFlag = TTExact
	} else {
		ttFlag = TTUpperBound
	}
	s.tt.Store(s.pos.Hash, 0, AdjustScoreToTT(bestValue, ply), ttFlag, bestMove, false)

	return bestValue
}

// givesCheck reports whether playing move leaves the opponent in check.
// Used to exempt checking captures from quiescence's SEE pruning, since
// a losing check can still deliver a decisive follow-up.
func (s *SearchState) givesCheck(move board.Move) bool {
	undo := s.pos.MakeMove(move)
	if !undo.Valid {
		s.pos.UnmakeMove(move, undo)
		return false
	}
	check := s.pos.InCheck()
	s.pos.UnmakeMove(move, undo)
	return check
}

// qsCaptureValue returns the material value of a capture for QS pruning.
func qsCaptureValue(pos *board.Position, move board.Move) int {
	var value int
	if move.IsEnPassant() {
		value = PawnValue
	} else {
		captured := pos.PieceAt(move.To())
		if captured != board.NoPiece {
			value = pieceValues[captured.Type()]
		}
	}
	if move.IsPromotion() {
		value += pieceValues[move.Promotion()] - PawnValue
	}
	return value
}
