package engine

import (
	"math"
	"sync/atomic"

	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/board"
	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/tablebase"
)

// MaxPly is the maximum search depth/ply supported by every fixed-size
// per-ply array in the engine (search stack, PV table, killer table).
const MaxPly = 128

// MateScore is the score assigned to an immediate checkmate; scores near
// it encode mate-in-N via AdjustScoreToTT/AdjustScoreFromTT.
const MateScore = 32000

// Infinity bounds the alpha-beta window at the root.
const Infinity = 32001

// lmrReductions is a precomputed logarithmic reduction table, following
// Stockfish's formula: 21.46 * log(depth) * log(moveCount) / 1024.
var lmrReductions [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			lmrReductions[d][m] = int(21.46 * math.Log(float64(d)) * math.Log(float64(m)) / 1024.0)
		}
	}
}

// SearchStack stores per-ply search state used for continuation-history
// lookups and hindsight depth adjustment, one slot per ply.
type SearchStack struct {
	currentMove         board.Move
	movedPiece          board.Piece
	moveTo              board.Square
	continuationHistory *PieceToHistory
	statScore           int
	reduction           int
	cutoffCnt           int
}

// SearchState is one Lazy-SMP search instance's private state: its own
// position, move orderer, search stacks and node counter. The
// transposition table, shared butterfly history and stop flag are
// pointers into state the coordinator owns across every instance.
type SearchState struct {
	id int

	pos     *board.Position
	orderer *MoveOrderer

	nodes uint64
	pv    PVTable

	undoStack   [MaxPly]board.UndoInfo
	evalStack   [MaxPly]int
	searchStack [MaxPly]SearchStack

	// Pre-allocated buffer for repetition detection: MaxPly (128) search
	// plies plus up to 640 plies of game history before the root.
	posHistoryBuffer [768]uint64
	posHistoryLen    int
	rootPosHashes    []uint64

	excludedRootMoves []board.Move

	tt            *TranspositionTable
	pawnTable     *PawnTable
	evalCache     *EvalCache
	materialCache *MaterialCache
	sharedHistory *SharedHistory
	corrHistory   *CorrectionHistory
	stopFlag      *atomic.Bool

	tbProber     tablebase.Prober
	tbProbeDepth int

	resultCh chan<- SearchResult
	depth    int

	// contempt is a signed centipawn offset folded into draw scores so
	// the engine can be made to avoid (positive) or accept (negative)
	// draws against a given opponent. style, when set, scales the raw
	// static evaluation per the Style_* option family.
	contempt int
	style    *StyleWeights

	// Optimism tracking (per side), scaled by the running average of
	// root scores so the static eval leans toward the side that has
	// been doing well.
	optimism [2]int
	avgScore int

	// rootDelta is the current iteration's aspiration window width,
	// used to scale LMR reductions.
	rootDelta int
}

// SearchResult is what a SearchState reports after completing one
// iterative-deepening depth.
type SearchResult struct {
	WorkerID int
	Depth    int
	Score    int
	Move     board.Move
	PV       []board.Move
	Nodes    uint64
}

// NewSearchState creates a new Lazy-SMP search instance.
func NewSearchState(id int, tt *TranspositionTable, pawnTable *PawnTable, sharedHistory *SharedHistory, stopFlag *atomic.Bool) *SearchState {
	return &SearchState{
		id:            id,
		orderer:       NewMoveOrderer(),
		tt:            tt,
		pawnTable:     pawnTable,
		evalCache:     NewEvalCache(1),
		materialCache: NewMaterialCache(1),
		sharedHistory: sharedHistory,
		corrHistory:   NewCorrectionHistory(),
		stopFlag:      stopFlag,
	}
}

// SetContempt sets the draw-score offset, from this instance's own side's perspective.
func (s *SearchState) SetContempt(cp int) {
	s.contempt = cp
}

// SetStyleWeights sets (or, passed nil, clears) the evaluation-blend knob.
func (s *SearchState) SetStyleWeights(w *StyleWeights) {
	s.style = w
}

// SetTablebase sets the tablebase prober for this instance.
func (s *SearchState) SetTablebase(prober tablebase.Prober, probeDepth int) {
	s.tbProber = prober
	s.tbProbeDepth = probeDepth
	if s.tbProbeDepth < 1 {
		s.tbProbeDepth = 1
	}
}

// ID returns the instance's worker index.
func (s *SearchState) ID() int {
	return s.id
}

// Nodes returns the number of nodes searched by this instance.
func (s *SearchState) Nodes() uint64 {
	return s.nodes
}

// Reset clears per-search state (history, optimism) for a new root search.
func (s *SearchState) Reset() {
	s.nodes = 0
	s.orderer.Clear()
	s.avgScore = -Infinity
	s.optimism[0] = 0
	s.optimism[1] = 0
}

// UpdateOptimism recomputes the optimism term from the running average
// score; called once per iterative-deepening depth.
func (s *SearchState) UpdateOptimism() {
	avg := s.avgScore
	if avg == -Infinity {
		s.optimism[0] = 0
		s.optimism[1] = 0
		return
	}

	us := 0
	if s.pos.SideToMove == board.Black {
		us = 1
	}

	absAvg := avg
	if absAvg < 0 {
		absAvg = -absAvg
	}
	s.optimism[us] = (142 * avg) / (absAvg + 91)
	s.optimism[1-us] = -s.optimism[us]
}

// UpdateAvgScore folds the latest iteration's score into the running
// average used by UpdateOptimism.
func (s *SearchState) UpdateAvgScore(score int) {
	if s.avgScore == -Infinity {
		s.avgScore = score
	} else {
		s.avgScore = (score + s.avgScore) / 2
	}
}

// SetRootHistory installs the game's position history for repetition
// detection, ahead of the positions this search itself will visit.
func (s *SearchState) SetRootHistory(hashes []uint64) {
	s.rootPosHashes = make([]uint64, len(hashes))
	copy(s.rootPosHashes, hashes)
}

// SetResultChannel sets the channel this instance reports depth results on.
func (s *SearchState) SetResultChannel(ch chan<- SearchResult) {
	s.resultCh = ch
}

// SetExcludedMoves sets the root moves to skip (Multi-PV's prior lines).
func (s *SearchState) SetExcludedMoves(moves []board.Move) {
	s.excludedRootMoves = moves
}

// InitSearch prepares the instance for a new root search. pos must be a
// dedicated copy owned by this instance alone — the caller is
// responsible for giving every Lazy-SMP instance an isolated position.
func (s *SearchState) InitSearch(pos *board.Position) {
	s.pos = pos

	rootLen := len(s.rootPosHashes)
	if rootLen > 640 {
		rootLen = 640
		copy(s.posHistoryBuffer[:rootLen], s.rootPosHashes[len(s.rootPosHashes)-640:])
	} else {
		copy(s.posHistoryBuffer[:rootLen], s.rootPosHashes)
	}
	s.posHistoryBuffer[rootLen] = s.pos.Hash
	s.posHistoryLen = rootLen + 1
}

// Pos returns the instance's current position.
func (s *SearchState) Pos() *board.Position {
	return s.pos
}

// SearchDepth runs one iterative-deepening depth and reports the result
// on the instance's result channel, if set.
func (s *SearchState) SearchDepth(depth, alpha, beta int) (board.Move, int) {
	s.depth = depth

	score := s.negamax(depth, 0, alpha, beta, board.NoMove, board.NoMove, false)

	var bestMove board.Move
	if s.pv.length[0] > 0 {
		bestMove = s.pv.moves[0][0]
	}

	if bestMove == board.NoMove && !s.stopFlag.Load() {
		moves := s.pos.GenerateLegalMoves()
		if moves.Len() > 0 {
			bestMove = moves.Get(0)
		}
	}

	if s.resultCh != nil && !s.stopFlag.Load() {
		pv := make([]board.Move, s.pv.length[0])
		for i := 0; i < s.pv.length[0]; i++ {
			pv[i] = s.pv.moves[0][i]
		}
		s.resultCh <- SearchResult{
			WorkerID: s.id,
			Depth:    depth,
			Score:    score,
			Move:     bestMove,
			PV:       pv,
			Nodes:    s.nodes,
		}
	}

	return bestMove, score
}

// evaluate returns the static evaluation, backed by the per-instance
// eval cache (whole-position scores keyed on the zobrist hash) and the
// shared pawn structure cache underneath it.
func (s *SearchState) evaluate() int {
	if cached, found := s.evalCache.Probe(s.pos.Hash); found {
		if s.style != nil {
			return cached * (1000 + s.style.Aggression) / 1000
		}
		return cached
	}

	score := EvaluateWithPawnTable(s.pos, s.pawnTable)
	s.evalCache.Store(s.pos.Hash, score)

	if s.style != nil {
		score = score * (1000 + s.style.Aggression) / 1000
	}
	return score
}

// drawScore returns the contempt-adjusted score for a drawn position.
func (s *SearchState) drawScore() int {
	return -s.contempt
}

func (s *SearchState) stopped() bool {
	return s.stopFlag.Load()
}

// GetPV returns the principal variation found by the last SearchDepth call.
func (s *SearchState) GetPV() []board.Move {
	pv := make([]board.Move, s.pv.length[0])
	for i := 0; i < s.pv.length[0]; i++ {
		pv[i] = s.pv.moves[0][i]
	}
	return pv
}

func (s *SearchState) isExcludedRootMove(move board.Move) bool {
	for _, excluded := range s.excludedRootMoves {
		if move == excluded {
			return true
		}
	}
	return false
}

// isDraw checks for draw by the fifty-move rule, insufficient material,
// or threefold repetition within the tracked position history.
func (s *SearchState) isDraw() bool {
	if s.pos.HalfMoveClock >= 100 {
		return true
	}

	if s.pos.IsInsufficientMaterial() {
		return true
	}

	if s.posHistoryLen > 0 {
		currentHash := s.pos.Hash
		count := 0
		for i := 0; i < s.posHistoryLen; i++ {
			if s.posHistoryBuffer[i] == currentHash {
				count++
				if count >= 2 {
					return true
				}
			}
		}
	}

	return false
}

// negamax implements alpha-beta search with PVS, pruning and extensions.
// excludedMove skips one move (used by singular extension probing);
// cutNode marks an expected-fail-high node.
func (s *SearchState) negamax(depth, ply int, alpha, beta int, prevMove, excludedMove board.Move, cutNode bool) int {
	if ply >= MaxPly-1 {
		return s.evaluate()
	}

	if s.nodes&4095 == 0 && s.stopFlag.Load() {
		return 0
	}

	s.nodes++
	s.pv.length[ply] = ply

	if ply > 0 && s.isDraw() {
		return s.drawScore()
	}

	if ply > 0 && s.tbProber != nil && depth >= s.tbProbeDepth {
		pieceCount := tablebase.CountPieces(s.pos)
		if pieceCount <= s.tbProber.MaxPieces() {
			tbResult := s.tbProber.Probe(s.pos)
			if tbResult.Found {
				tbScore := tablebase.WDLToScore(tbResult.WDL, ply)

				switch tbResult.WDL {
				case tablebase.WDLWin, tablebase.WDLCursedWin:
					if tbScore >= beta {
						s.tt.Store(s.pos.Hash, MaxPly, AdjustScoreToTT(tbScore, ply), TTLowerBound, board.NoMove, true)
						return tbScore
					}
					if tbScore > alpha {
						alpha = tbScore
					}
				case tablebase.WDLLoss, tablebase.WDLBlessedLoss:
					if tbScore <= alpha {
						s.tt.Store(s.pos.Hash, MaxPly, AdjustScoreToTT(tbScore, ply), TTUpperBound, board.NoMove, true)
						return tbScore
					}
					if tbScore < beta {
						beta = tbScore
					}
				default:
					s.tt.Store(s.pos.Hash, MaxPly, AdjustScoreToTT(tbScore, ply), TTExact, board.NoMove, true)
					return tbScore
				}
			}
		}
	}

	var ttMove board.Move
	ttPv := false
	ttEntry, found := s.tt.Probe(s.pos.Hash)
	if found {
		ttMove = ttEntry.Move
		ttPv = ttEntry.IsPV

		if ttMove != board.NoMove && !s.pos.PseudoLegal(ttMove) {
			ttMove = board.NoMove
		}

		ttCutoffAllowed := ply > 0 || !s.isExcludedRootMove(ttMove)

		if int(ttEntry.Depth) >= depth && ttCutoffAllowed {
			score := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				if ply == 0 && ttMove != board.NoMove {
					s.pv.moves[0][0] = ttMove
					s.pv.length[0] = 1
				}
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
				if ply == 0 && ttMove != board.NoMove {
					s.pv.moves[0][0] = ttMove
					s.pv.length[0] = 1
				}
				return score
			}
		}
	}

	if depth <= 0 {
		return s.quiescence(ply, alpha, beta)
	}

	inCheck := s.pos.InCheck()

	// Internal Iterative Reduction: without a TT move to try first,
	// reduce depth rather than recursing to find one (avoids reusing
	// undoStack[ply] within the same call).
	if depth >= 4 && ttMove == board.NoMove && !inCheck {
		depth -= 2
	}

	extension := 0
	if inCheck {
		extension = 1
	}

	if extension == 0 && depth >= threatExtensionMinDepth && ply > 0 {
		if s.detectSeriousThreats() {
			extension = 1
		}
	}

	rawEval := s.evaluate()
	correction := s.corrHistory.Get(s.pos)
	staticEval := rawEval + correction
	s.evalStack[ply] = staticEval

	improving := false
	if ply >= 2 {
		improving = staticEval > s.evalStack[ply-2]
	}

	opponentWorsening := false
	if ply >= 1 {
		opponentWorsening = staticEval > -s.evalStack[ply-1]
	}

	// Hindsight depth adjustment based on how the prior ply's LMR guess
	// played out.
	if ply >= 1 {
		priorReduction := s.searchStack[ply-1].reduction
		if priorReduction >= 3 && !opponentWorsening {
			depth++
		}
		if priorReduction >= 2 && depth >= 2 {
			evalSum := staticEval + s.evalStack[ply-1]
			if evalSum > 173 {
				depth--
			}
		}
	}

	if ply+2 < MaxPly {
		s.searchStack[ply+2].cutoffCnt = 0
	}

	phase := Phase(s.pos)
	nonPV := beta-alpha == 1
	pruningAllowed := nonPV && !inCheck && ply > 0 && abs(beta) < MateScore-MaxPly

	// Reverse futility pruning.
	if pruningAllowed && depth <= 8 {
		if staticEval-80*depth >= beta {
			return staticEval
		}
	}

	// Razoring.
	if pruningAllowed && depth <= 3 {
		if staticEval+300 <= alpha {
			score := s.quiescence(ply, alpha, beta)
			if score <= alpha {
				return score
			}
		}
	}

	// Null move pruning: require s >= beta, a non-null parent (below the
	// root, prevMove is NoMove only directly under a null move) and
	// non-pawn material for the side to move. R grows with depth and with how far s clears beta, and
	// shrinks in the endgame; a fail-high is only trusted once a reduced
	// verification search (searched without the null move) also fails
	// high, per spec's guard against null-move zugzwang blind spots.
	if pruningAllowed && depth >= 3 && staticEval >= beta && prevMove != board.NoMove && s.pos.HasNonPawnMaterial() {
		R := 3 + depth/6
		if staticEval-beta > 50 {
			R++
		}
		if staticEval-beta > 200 {
			R++
		}
		if phase < 64 {
			R--
		}
		if R < 1 {
			R = 1
		}
		if R > depth-1 {
			R = depth - 1
		}

		nullUndo := s.pos.MakeNullMove()
		nullScore := -s.negamax(depth-1-R, ply+1, -beta, -beta+1, board.NoMove, board.NoMove, !cutNode)
		s.pos.UnmakeNullMove(nullUndo)

		if nullScore >= beta {
			verifyScore := s.negamax(depth-R, ply, beta-1, beta, prevMove, board.NoMove, false)
			if verifyScore >= beta {
				return beta
			}
		}
	}

	// ProbCut: a shallow search of winning captures that clears a raised
	// beta lets us skip the full-depth search entirely.
	if pruningAllowed && depth >= probcutDepth {
		probcutMargin := 200
		probcutBeta := beta + probcutMargin

		captures := s.pos.GenerateCaptures()
		for i := 0; i < captures.Len(); i++ {
			capture := captures.Get(i)
			if SEE(s.pos, capture) < probcutBeta-staticEval {
				continue
			}

			undo := s.pos.MakeMove(capture)
			if !undo.Valid {
				s.pos.UnmakeMove(capture, undo)
				continue
			}

			score := -s.negamax(depth-4, ply+1, -probcutBeta, -probcutBeta+1, capture, board.NoMove, !cutNode)
			s.pos.UnmakeMove(capture, undo)

			if score >= probcutBeta {
				return score
			}
		}
	}

	// Multi-Cut: several moves failing high at a reduced depth implies
	// this node itself will fail high.
	if pruningAllowed && depth >= multicutDepth && staticEval >= beta {
		mcMoves := s.pos.GenerateLegalMoves()
		mcScores := s.orderer.ScoreMovesWithCounter(s.pos, mcMoves, ply, ttMove, prevMove)

		mcCutoffs := 0
		mcSearched := 0
		mcSearchDepth := depth - 3
		if mcSearchDepth < 1 {
			mcSearchDepth = 1
		}

		for i := 0; i < mcMoves.Len() && mcSearched < multicutMoves; i++ {
			PickMove(mcMoves, mcScores, i)
			move := mcMoves.Get(i)

			undo := s.pos.MakeMove(move)
			if !undo.Valid {
				s.pos.UnmakeMove(move, undo)
				continue
			}
			mcSearched++

			score := -s.negamax(mcSearchDepth, ply+1, -beta, -beta+1, move, board.NoMove, !cutNode)
			s.pos.UnmakeMove(move, undo)

			if score >= beta {
				mcCutoffs++
				if mcCutoffs >= multicutRequired {
					return beta
				}
			}
		}
	}

	// Singular extensions: when the TT move beats a reduced search of
	// every alternative by a wide margin, extend it; when it doesn't
	// beat its alternatives at all, shrink its depth instead.
	singularExtension := 0
	if depth >= 6 && ttMove != board.NoMove && excludedMove == board.NoMove && found {
		if int(ttEntry.Depth) >= depth-3 && (ttEntry.Flag == TTLowerBound || ttEntry.Flag == TTExact) {
			isPvNode := alpha < beta-1
			margin := 53
			if ttPv && !isPvNode {
				margin = 128
			}
			ttValue := AdjustScoreFromTT(int(ttEntry.Score), ply)
			singularBeta := ttValue - margin*depth/60

			singularDepth := (depth - 1) / 2
			singularScore := s.negamax(singularDepth, ply, singularBeta-1, singularBeta, prevMove, ttMove, cutNode)

			if singularScore < singularBeta {
				ttCapture := ttMove.IsCapture(s.pos)

				doubleMargin := -4
				if isPvNode {
					doubleMargin += 199
				}
				if !ttCapture {
					doubleMargin -= 201
				}

				tripleMargin := 73
				if isPvNode {
					tripleMargin += 302
				}
				if !ttCapture {
					tripleMargin -= 248
				}
				if ttPv {
					tripleMargin += 90
				}

				singularExtension = 1
				if singularScore < singularBeta-doubleMargin {
					singularExtension = 2
				}
				if singularScore < singularBeta-tripleMargin {
					singularExtension = 3
				}
			} else {
				ttValue := AdjustScoreFromTT(int(ttEntry.Score), ply)
				if ttValue >= beta {
					singularExtension = -3
				} else if cutNode {
					singularExtension = -2
				}
			}
		}
	}

	moves := s.pos.GenerateLegalMoves()

	if moves.Len() == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return s.drawScore()
	}

	prePrevMove := board.NoMove
	if ply >= 2 {
		prePrevMove = s.searchStack[ply-2].currentMove
	}
	picker := NewMovePicker(s.pos, s.orderer, ply, ttMove, prevMove, prePrevMove)

	bestScore := -Infinity
	bestMove := board.NoMove
	flag := TTUpperBound
	movesSearched := 0

	for {
		move, ok := picker.Next()
		if !ok {
			break
		}

		if ply == 0 && s.isExcludedRootMove(move) {
			continue
		}

		if move == excludedMove {
			continue
		}

		isCapture := move.IsCapture(s.pos)
		isPromotion := move.IsPromotion()
		isQuiet := !isCapture && !isPromotion

		// Late-move pruning.
		if pruningAllowed && depth <= 7 && isQuiet && movesSearched > 3+2*depth*depth {
			continue
		}

		// SEE pruning.
		if pruningAllowed && movesSearched > 0 {
			if isQuiet && depth <= 4 && SEE(s.pos, move) < -50*depth {
				continue
			}
			if isCapture && depth <= 6 && SEE(s.pos, move) < -depth*100 {
				continue
			}
		}

		// Futility pruning.
		if pruningAllowed && depth <= 4 && isQuiet && movesSearched > 0 {
			margin := 100 + 150*depth
			switch {
			case phase < 64:
				margin = margin * 12 / 10
			case phase > 200:
				margin = margin * 8 / 10
			}
			if staticEval+margin <= alpha {
				continue
			}
		}

		if depth <= 3 && !inCheck && movesSearched > 0 && isQuiet && move != ttMove {
			if s.orderer.GetHistoryScore(move) < historyPruningThreshold {
				continue
			}
		}

		movingPiece := s.pos.PieceAt(move.From())
		moveTo := move.To()

		if movingPiece == board.NoPiece || movingPiece.Color() != s.pos.SideToMove {
			continue
		}

		s.undoStack[ply] = s.pos.MakeMove(move)
		if !s.undoStack[ply].Valid {
			s.pos.UnmakeMove(move, s.undoStack[ply])
			continue
		}

		s.searchStack[ply].currentMove = move
		s.searchStack[ply].movedPiece = movingPiece
		s.searchStack[ply].moveTo = moveTo
		s.searchStack[ply].continuationHistory = s.orderer.GetContinuationHistoryTable(movingPiece, moveTo)

		s.posHistoryBuffer[s.posHistoryLen] = s.pos.Hash
		s.posHistoryLen++
		movesSearched++

		var score int
		newDepth := depth - 1 + extension

		if move == ttMove && singularExtension != 0 {
			newDepth += singularExtension
		}

		if movesSearched > 4 && depth >= 3 && !inCheck && !isCapture && !isPromotion {
			d := depth
			if d > 63 {
				d = 63
			}
			m := movesSearched
			if m > 63 {
				m = 63
			}
			reduction := lmrReductions[d][m]

			if s.rootDelta > 0 && s.rootDelta < Infinity {
				delta := beta - alpha
				reduction -= delta * 608 / s.rootDelta
			}

			if !improving {
				reduction++
			}
			if move == ttMove {
				reduction -= 2
			}
			if ttPv {
				reduction--
			}

			if cutNode {
				extra := 3372
				if ttMove == board.NoMove {
					extra += 997
				}
				reduction += extra / 1024
			}

			isPvNode := alpha < beta-1
			allNode := !isPvNode && !cutNode
			if allNode && depth > 2 {
				reduction += reduction / (depth + 1)
			}

			if ply+1 < MaxPly {
				cutoffCnt := s.searchStack[ply+1].cutoffCnt
				if cutoffCnt > 1 {
					extra := 120
					if cutoffCnt > 2 {
						extra += 1024
					}
					if cutoffCnt > 3 {
						extra += 100
					}
					if allNode {
						extra += 1024
					}
					reduction += extra / 1024
				}
			}

			from := move.From()
			to := move.To()
			localHist := s.orderer.GetHistoryScore(move)
			sharedHist := s.sharedHistory.Get(int(from), int(to))
			mainHist := (localHist + sharedHist) / 2

			contHist0 := 0
			contHist1 := 0
			if ply >= 1 && s.searchStack[ply-1].continuationHistory != nil {
				contHist0 = s.searchStack[ply-1].continuationHistory[movingPiece][moveTo]
			}
			if ply >= 2 && s.searchStack[ply-2].continuationHistory != nil {
				contHist1 = s.searchStack[ply-2].continuationHistory[movingPiece][moveTo]
			}

			statScore := 2*mainHist + contHist0 + contHist1
			s.searchStack[ply].statScore = statScore

			reduction -= statScore * 850 / 8192
			reduction -= movesSearched * 73 / 1024

			if reduction < 1 {
				reduction = 1
			}

			reducedDepth := newDepth - reduction
			if reducedDepth < 1 {
				reducedDepth = 1
			}

			s.searchStack[ply].reduction = reduction

			score = -s.negamax(reducedDepth, ply+1, -alpha-1, -alpha, move, board.NoMove, !cutNode)

			if score > alpha {
				score = -s.negamax(newDepth, ply+1, -beta, -alpha, move, board.NoMove, false)
			}
		} else if movesSearched == 1 {
			score = -s.negamax(newDepth, ply+1, -beta, -alpha, move, board.NoMove, false)
		} else {
			score = -s.negamax(newDepth, ply+1, -alpha-1, -alpha, move, board.NoMove, !cutNode)
			if score > alpha && score < beta {
				score = -s.negamax(newDepth, ply+1, -beta, -alpha, move, board.NoMove, false)
			}
		}

		s.posHistoryLen--
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
			isPvNode := alpha < beta-1
			if extension < 2 || isPvNode {
				s.searchStack[ply].cutoffCnt++
			}

			if ply == 0 && bestMove != board.NoMove {
				s.pv.moves[0][0] = bestMove
				s.pv.length[0] = 1
			}

			s.tt.Store(s.pos.Hash, depth, AdjustScoreToTT(score, ply), TTLowerBound, bestMove, false)

			if isCapture {
				attackerPiece := s.pos.PieceAt(move.From())
				var capturedType board.PieceType
				if move.IsEnPassant() {
					capturedType = board.Pawn
				} else {
					capturedPiece := s.pos.PieceAt(move.To())
					if capturedPiece != board.NoPiece {
						capturedType = capturedPiece.Type()
					}
				}
				s.orderer.UpdateCaptureHistory(attackerPiece, move.To(), capturedType, depth, true)
			} else {
				s.orderer.UpdateKillers(move, ply)
				s.orderer.UpdateHistory(move, depth, true)
				s.orderer.UpdateLowPlyHistory(move, ply, depth, true)

				bonus := depth * depth
				s.sharedHistory.Update(int(move.From()), int(move.To()), bonus)
				s.orderer.UpdateCounterMove(prevMove, move, s.pos)

				if prevMove != board.NoMove {
					prevPiece := s.pos.PieceAt(prevMove.To())
					movePiece := s.pos.PieceAt(move.To())
					s.orderer.UpdateCountermoveHistory(prevMove, move, prevPiece, movePiece, depth, true)
				}

				s.updateContinuationHistories(ply, movingPiece, moveTo, depth, true)
			}

			return score
		}
	}

	if bestMove == board.NoMove && moves.Len() > 0 {
		bestMove = moves.Get(0)
		if bestScore == -Infinity {
			bestScore = alpha
		}
	}

	if flag == TTExact && !inCheck && depth >= 2 {
		s.corrHistory.Update(s.pos, bestScore, rawEval, depth)
	}

	isPV := flag == TTExact
	s.tt.Store(s.pos.Hash, depth, AdjustScoreToTT(bestScore, ply), flag, bestMove, isPV)

	return bestScore
}

// detectSeriousThreats reports whether the opponent has a serious threat
// against one of our pieces, used to extend otherwise-quiet nodes.
func (s *SearchState) detectSeriousThreats() bool {
	pos := s.pos
	us := pos.SideToMove
	them := us.Other()
	occupied := pos.AllOccupied

	enemyPawnAttacks := computePawnAttacksBB(pos, them)
	enemyKnightAttacks := computeKnightAttacksBB(pos, them)
	enemyBishopAttacks := computeBishopAttacksBB(pos, them, occupied)
	enemyRookAttacks := computeRookAttacksBB(pos, them, occupied)
	enemyQueenAttacks := computeQueenAttacksBB(pos, them, occupied)

	enemyAttacks := enemyPawnAttacks | enemyKnightAttacks | enemyBishopAttacks |
		enemyRookAttacks | enemyQueenAttacks

	ourPawnAttacks := computePawnAttacksBB(pos, us)
	ourKnightAttacks := computeKnightAttacksBB(pos, us)
	ourBishopAttacks := computeBishopAttacksBB(pos, us, occupied)
	ourRookAttacks := computeRookAttacksBB(pos, us, occupied)
	ourQueenAttacks := computeQueenAttacksBB(pos, us, occupied)
	ourKingAttacks := board.KingAttacks(pos.KingSquare[us])

	ourDefenses := ourPawnAttacks | ourKnightAttacks | ourBishopAttacks |
		ourRookAttacks | ourQueenAttacks | ourKingAttacks

	ourPieces := pos.Occupied[us] &^ board.SquareBB(pos.KingSquare[us])

	hangingPieces := ourPieces & enemyAttacks & ^ourDefenses

	for hangingPieces != 0 {
		sq := hangingPieces.PopLSB()
		piece := pos.PieceAt(sq)
		if piece != board.NoPiece && pieceValues[piece.Type()] >= threatExtensionThreshold {
			return true
		}
	}

	queens := pos.Pieces[us][board.Queen]
	if queens&(enemyPawnAttacks|enemyKnightAttacks|enemyBishopAttacks|enemyRookAttacks) != 0 {
		return true
	}

	rooks := pos.Pieces[us][board.Rook]
	if rooks&(enemyPawnAttacks|enemyKnightAttacks|enemyBishopAttacks) != 0 {
		return true
	}

	return false
}

// updateContinuationHistories folds a cutoff back into the continuation
// history of each of the last six plies (Stockfish's
// update_continuation_histories), weighting ply-3 and ply-5 less.
func (s *SearchState) updateContinuationHistories(ply int, piece board.Piece, toSq board.Square, depth int, isGood bool) {
	for plyBack := 1; plyBack <= 6; plyBack++ {
		targetPly := ply - plyBack
		if targetPly < 0 {
			break
		}

		ss := &s.searchStack[targetPly]
		if ss.currentMove == board.NoMove || ss.movedPiece == board.NoPiece {
			continue
		}

		s.orderer.UpdateContinuationHistory(
			ss.movedPiece,
			ss.moveTo,
			piece,
			toSq,
			depth,
			plyBack,
			isGood,
		)
	}
}
