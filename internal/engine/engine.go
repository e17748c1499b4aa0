package engine

import (
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/board"
	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/book"
	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/tablebase"
)

// NumWorkers is the number of parallel Lazy-SMP search instances (matches CPU cores).
var NumWorkers = runtime.GOMAXPROCS(0)

// SearchInfo contains information about the current search, reported to
// the UCI layer as it becomes available.
type SearchInfo struct {
	Depth    int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // Permille of hash table used
}

// SearchLimits specifies constraints on the search.
type SearchLimits struct {
	Depth    int           // Maximum depth (0 = no limit)
	Nodes    uint64        // Maximum nodes (0 = no limit)
	MoveTime time.Duration // Time for this move (0 = no limit)
	Infinite bool          // Search until stopped
	MultiPV  int           // Number of principal variations to find (0 or 1 = single best move)
}

// PVResult is one line of a Multi-PV search.
type PVResult struct {
	Move  board.Move
	Score int
	PV    []board.Move
	Depth int
}

// Difficulty represents the AI difficulty level.
type Difficulty int

const (
	Easy   Difficulty = iota // 3 ply, 500ms
	Medium                   // 7 ply, 1s
	Hard                     // up to 40 ply, 3s
)

// DifficultySettings maps difficulty to search limits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 3, MoveTime: 500 * time.Millisecond},
	Medium: {Depth: 7, MoveTime: 1 * time.Second},
	Hard:   {Depth: 40, MoveTime: 3 * time.Second}, // Max strength (time-limited)
}

// Engine is the chess search engine: a pool of Lazy-SMP SearchState
// instances sharing one transposition table and one butterfly history,
// plus an opening book and tablebase prober consulted before the search
// pool is ever started.
type Engine struct {
	instances     []*SearchState
	tt            *TranspositionTable
	sharedHistory *SharedHistory
	stopFlag      atomic.Bool

	// Single-threaded searcher used to fill in secondary Multi-PV lines.
	searcher *Searcher

	difficulty Difficulty
	book       *book.Book
	tablebase  tablebase.Prober

	rootPosHashes []uint64

	contempt         int
	moveOverhead     time.Duration
	syzygyProbeDepth int
	ttSizeMB         int

	OnInfo func(SearchInfo)
}

// SetContempt sets the draw-score offset applied by every search instance.
func (e *Engine) SetContempt(cp int) {
	e.contempt = cp
	for _, instance := range e.instances {
		instance.SetContempt(cp)
	}
	e.searcher.SetContempt(cp)
}

// Contempt returns the currently configured contempt value.
func (e *Engine) Contempt() int {
	return e.contempt
}

// SetStyleWeights sets (or, passed nil, clears) the evaluation-blend knob
// on every search instance.
func (e *Engine) SetStyleWeights(w *StyleWeights) {
	for _, instance := range e.instances {
		instance.SetStyleWeights(w)
	}
}

// SetLearnedBook installs the learned-weight overlay (or clears it,
// passed nil) onto the currently loaded opening book.
func (e *Engine) SetLearnedBook(lb map[uint64]map[string]int) {
	if e.book == nil {
		return
	}
	e.book.SetLearned(lb)
}

// SetSyzygyProbeDepth sets the minimum depth at which tablebase probing
// is attempted.
func (e *Engine) SetSyzygyProbeDepth(depth int) {
	e.syzygyProbeDepth = depth
	if e.tablebase == nil {
		return
	}
	for _, instance := range e.instances {
		instance.SetTablebase(e.tablebase, depth)
	}
}

// SetMoveOverhead sets the fixed per-move communication/GUI overhead
// subtracted from every time-control budget, so the engine never returns
// a move after its allotted clock time due to network or GUI lag.
func (e *Engine) SetMoveOverhead(overhead time.Duration) {
	e.moveOverhead = overhead
}

// NewEngine creates a new chess engine with the given transposition table size in MB.
func NewEngine(ttSizeMB int) *Engine {
	tt := NewTranspositionTable(ttSizeMB)
	sharedHistory := NewSharedHistory()

	e := &Engine{
		tt:               tt,
		sharedHistory:    sharedHistory,
		difficulty:       Medium,
		instances:        make([]*SearchState, NumWorkers),
		moveOverhead:     30 * time.Millisecond,
		syzygyProbeDepth: 1,
		ttSizeMB:         ttSizeMB,
	}

	log.Printf("[engine] starting %d Lazy-SMP instances (GOMAXPROCS=%d)", NumWorkers, runtime.GOMAXPROCS(0))

	for i := 0; i < NumWorkers; i++ {
		instancePawnTable := NewPawnTable(1)
		e.instances[i] = NewSearchState(i, tt, instancePawnTable, sharedHistory, &e.stopFlag)
	}

	e.searcher = NewSearcher(tt)

	return e
}

// SetDifficulty sets the engine difficulty.
func (e *Engine) SetDifficulty(d Difficulty) {
	e.difficulty = d
}

// LoadBook loads an opening book from a Polyglot file.
func (e *Engine) LoadBook(filename string) error {
	b, err := book.LoadPolyglot(filename)
	if err != nil {
		return err
	}
	e.book = b
	return nil
}

// SetBook sets the opening book.
func (e *Engine) SetBook(b *book.Book) {
	e.book = b
}

// SetBookRandomness sets the loaded book's BookRandom percentage (see
// book.Book.SetRandomness); a no-op if no book is loaded.
func (e *Engine) SetBookRandomness(pct int) {
	if e.book == nil {
		return
	}
	e.book.SetRandomness(pct)
}

// HasBook returns true if an opening book is loaded.
func (e *Engine) HasBook() bool {
	return e.book != nil
}

// SetTablebase sets the tablebase prober.
func (e *Engine) SetTablebase(tb tablebase.Prober) {
	e.tablebase = tb

	probeDepth := e.syzygyProbeDepth
	if probeDepth == 0 {
		probeDepth = 1
	}
	for _, instance := range e.instances {
		instance.SetTablebase(tb, probeDepth)
	}
}

// SetHashSizeMB resizes the shared transposition table to sizeMB
// megabytes. All Lazy-SMP instances and the secondary Multi-PV searcher
// are repointed at the new table; the old table's contents are lost.
func (e *Engine) SetHashSizeMB(sizeMB int) {
	if sizeMB < 1 {
		sizeMB = 1
	}
	if sizeMB > 1024 {
		sizeMB = 1024
	}
	e.ttSizeMB = sizeMB
	e.tt = NewTranspositionTable(sizeMB)
	for _, instance := range e.instances {
		instance.tt = e.tt
	}
	if e.searcher != nil {
		e.searcher.tt = e.tt
	}
}

// SetThreads resizes the Lazy-SMP instance pool to n search threads,
// reapplying the currently configured contempt, tablebase and root
// position history to every freshly built instance. Style weights set
// earlier are not reapplied, and per-instance history and pawn-cache
// state is not carried over across a resize.
func (e *Engine) SetThreads(n int) {
	if n < 1 {
		n = 1
	}
	if n > 64 {
		n = 64
	}
	NumWorkers = n

	instances := make([]*SearchState, n)
	for i := 0; i < n; i++ {
		instancePawnTable := NewPawnTable(1)
		instances[i] = NewSearchState(i, e.tt, instancePawnTable, e.sharedHistory, &e.stopFlag)
		instances[i].SetContempt(e.contempt)
		if e.tablebase != nil {
			probeDepth := e.syzygyProbeDepth
			if probeDepth == 0 {
				probeDepth = 1
			}
			instances[i].SetTablebase(e.tablebase, probeDepth)
		}
		if len(e.rootPosHashes) > 0 {
			instances[i].SetRootHistory(e.rootPosHashes)
		}
	}
	e.instances = instances
}

// EnableLichessTablebase enables Lichess online tablebase lookups.
func (e *Engine) EnableLichessTablebase() {
	e.SetTablebase(tablebase.NewLichessProber())
}

// HasTablebase returns true if a tablebase is available.
func (e *Engine) HasTablebase() bool {
	return e.tablebase != nil && e.tablebase.Available()
}

// SetPositionHistory sets the position history for repetition detection.
// This should be called before Search() with hashes from the game's move history.
func (e *Engine) SetPositionHistory(hashes []uint64) {
	e.rootPosHashes = make([]uint64, len(hashes))
	copy(e.rootPosHashes, hashes)

	for _, instance := range e.instances {
		instance.SetRootHistory(hashes)
	}
	e.searcher.SetRootHistory(hashes)
}

// Search finds the best move for the given position.
func (e *Engine) Search(pos *board.Position) board.Move {
	limits := DifficultySettings[e.difficulty]
	return e.SearchWithLimits(pos, limits)
}

func (e *Engine) probeOpeningResources(pos *board.Position) (board.Move, bool) {
	if e.book != nil {
		if move, ok := e.book.Probe(pos); ok {
			return move, true
		}
	}

	if e.tablebase != nil && e.tablebase.Available() {
		pieceCount := tablebase.CountPieces(pos)
		if pieceCount <= e.tablebase.MaxPieces() {
			result := e.tablebase.ProbeRoot(pos)
			if result.Found && result.Move != board.NoMove {
				return result.Move, true
			}
		}
	}

	return board.NoMove, false
}

// SearchWithLimits finds the best move with specific search limits, using
// Lazy SMP across every instance in the pool.
func (e *Engine) SearchWithLimits(pos *board.Position, limits SearchLimits) board.Move {
	if move, ok := e.probeOpeningResources(pos); ok {
		return move
	}

	e.stopFlag.Store(false)
	e.tt.NewSearch()

	for _, instance := range e.instances {
		instance.Reset()
	}

	startTime := time.Now()
	var bestMove board.Move
	var bestScore int
	var bestPV []board.Move
	var bestDepth int

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	var deadline time.Time
	if limits.MoveTime > 0 {
		deadline = startTime.Add(limits.MoveTime)
	}

	resultCh := make(chan SearchResult, NumWorkers*maxDepth)

	var g errgroup.Group
	for i := 0; i < NumWorkers; i++ {
		id := i
		g.Go(func() error {
			e.runInstance(id, pos, maxDepth, resultCh)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(resultCh)
		close(done)
	}()

resultLoop:
	for {
		select {
		case result, ok := <-resultCh:
			if !ok {
				break resultLoop
			}

			if result.Move != board.NoMove {
				if result.Depth > bestDepth ||
					(result.Depth == bestDepth && result.Score > bestScore) {
					bestMove = result.Move
					bestScore = result.Score
					bestPV = result.PV
					bestDepth = result.Depth

					if e.OnInfo != nil {
						elapsed := time.Since(startTime)
						e.OnInfo(SearchInfo{
							Depth:    bestDepth,
							Score:    bestScore,
							Nodes:    e.getTotalNodes(),
							Time:     elapsed,
							PV:       bestPV,
							HashFull: e.tt.HashFull(),
						})
					}

					if bestScore > MateScore-100 || bestScore < -MateScore+100 {
						e.stopFlag.Store(true)
						break resultLoop
					}
				}
			}

			if !deadline.IsZero() && time.Now().After(deadline) {
				e.stopFlag.Store(true)
				break resultLoop
			}

		case <-done:
			break resultLoop
		}
	}

	e.stopFlag.Store(true)
	<-done

	return bestMove
}

// SearchWithUCILimits finds the best move using UCI time controls.
// Supports wtime/btime/winc/binc for proper tournament time management.
func (e *Engine) SearchWithUCILimits(pos *board.Position, limits UCILimits, ply int) board.Move {
	if move, ok := e.probeOpeningResources(pos); ok {
		return move
	}

	tm := NewTimeManager()
	tm.Init(limits, pos.SideToMove, ply, Phase(pos), 0, e.moveOverhead)

	e.stopFlag.Store(false)
	e.tt.NewSearch()

	for _, instance := range e.instances {
		instance.Reset()
	}

	startTime := time.Now()
	var bestMove board.Move
	var bestScore int
	var bestPV []board.Move
	var bestDepth int
	var lastBestMove board.Move
	var stabilityCount int

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	resultCh := make(chan SearchResult, NumWorkers*maxDepth)

	var g errgroup.Group
	for i := 0; i < NumWorkers; i++ {
		id := i
		g.Go(func() error {
			e.runInstance(id, pos, maxDepth, resultCh)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(resultCh)
		close(done)
	}()

resultLoop:
	for {
		select {
		case result, ok := <-resultCh:
			if !ok {
				break resultLoop
			}

			if result.Move != board.NoMove {
				if result.Depth > bestDepth ||
					(result.Depth == bestDepth && result.Score > bestScore) {

					if result.Depth > bestDepth {
						if result.Move == lastBestMove {
							stabilityCount++
						} else {
							stabilityCount = 0
						}
						lastBestMove = result.Move
					}

					bestMove = result.Move
					bestScore = result.Score
					bestPV = result.PV
					bestDepth = result.Depth

					if e.OnInfo != nil {
						elapsed := time.Since(startTime)
						e.OnInfo(SearchInfo{
							Depth:    bestDepth,
							Score:    bestScore,
							Nodes:    e.getTotalNodes(),
							Time:     elapsed,
							PV:       bestPV,
							HashFull: e.tt.HashFull(),
						})
					}

					if bestScore > MateScore-100 || bestScore < -MateScore+100 {
						e.stopFlag.Store(true)
						break resultLoop
					}

					if tm.PastOptimum() && stabilityCount >= 4 {
						e.stopFlag.Store(true)
						break resultLoop
					}
				}
			}

			if tm.ShouldStop() {
				e.stopFlag.Store(true)
				break resultLoop
			}

			if limits.Nodes > 0 && e.getTotalNodes() >= limits.Nodes {
				e.stopFlag.Store(true)
				break resultLoop
			}

		case <-done:
			break resultLoop
		}
	}

	e.stopFlag.Store(true)
	<-done

	return bestMove
}

// runInstance runs iterative deepening with aspiration windows in one
// Lazy-SMP instance's goroutine. Depth staggering has helper instances
// skip shallow depths so the pool isn't redundantly duplicating the
// cheapest work.
func (e *Engine) runInstance(id int, pos *board.Position, maxDepth int, resultCh chan<- SearchResult) {
	instance := e.instances[id]
	instance.InitSearch(pos.Copy())

	var prevScore int
	var consecutiveFails int

	startDepth := 1
	switch {
	case id >= 6:
		startDepth = 4
	case id >= 3:
		startDepth = 3
	case id >= 1:
		startDepth = 2
	}

	for depth := startDepth; depth <= maxDepth; depth++ {
		if e.stopFlag.Load() {
			return
		}

		var move board.Move
		var score int

		if depth > 4 && prevScore != 0 {
			delta := aspirationDelta(prevScore, consecutiveFails)
			instance.rootDelta = delta

			alpha := prevScore - delta
			beta := prevScore + delta
			fails := 0

			for {
				move, score = instance.SearchDepth(depth, alpha, beta)

				if e.stopFlag.Load() {
					return
				}

				// A full-window result is final.
				if alpha == -Infinity && beta == Infinity {
					break
				}

				if score <= alpha {
					fails++
					consecutiveFails++
					if fails >= 3 {
						alpha, beta = -Infinity, Infinity
					} else {
						alpha -= delta
						if alpha < -Infinity {
							alpha = -Infinity
						}
					}
				} else if score >= beta {
					fails++
					consecutiveFails++
					if fails >= 3 {
						alpha, beta = -Infinity, Infinity
					} else {
						beta += delta
						if beta > Infinity {
							beta = Infinity
						}
					}
				} else {
					consecutiveFails = 0
					break
				}
			}
		} else {
			instance.rootDelta = Infinity
			consecutiveFails = 0
			move, score = instance.SearchDepth(depth, -Infinity, Infinity)
		}

		if e.stopFlag.Load() {
			return
		}

		instance.UpdateAvgScore(score)
		instance.UpdateOptimism()
		prevScore = score

		resultCh <- SearchResult{
			WorkerID: id,
			Depth:    depth,
			Score:    score,
			Move:     move,
			PV:       instance.GetPV(),
			Nodes:    instance.Nodes(),
		}
	}
}

// aspirationDelta sizes the aspiration window around the previous
// iteration's score: 25 normally, |prevScore|/8 once the score is more
// than 200 from equality and 100 past 500, widened by 50 per consecutive
// fail the prior iterations suffered, capped at 400.
func aspirationDelta(prevScore, consecutiveFails int) int {
	delta := 25
	absPrev := abs(prevScore)
	switch {
	case absPrev > 500:
		delta = 100
	case absPrev > 200:
		delta = absPrev / 8
	}
	delta += 50 * consecutiveFails
	if delta > 400 {
		delta = 400
	}
	return delta
}

// getTotalNodes returns the total nodes searched across every instance.
func (e *Engine) getTotalNodes() uint64 {
	var total uint64
	for _, instance := range e.instances {
		total += instance.Nodes()
	}
	return total
}

// SearchMultiPV finds multiple best moves (principal variations) for analysis.
func (e *Engine) SearchMultiPV(pos *board.Position, limits SearchLimits) []PVResult {
	numPV := limits.MultiPV
	if numPV <= 0 {
		numPV = 1
	}

	results := make([]PVResult, 0, numPV)
	excludedMoves := make([]board.Move, 0, numPV)

	for i := 0; i < numPV; i++ {
		move, score, pv, depth := e.searchWithExclusions(pos, limits, excludedMoves)
		if move == board.NoMove {
			break
		}

		results = append(results, PVResult{
			Move:  move,
			Score: score,
			PV:    pv,
			Depth: depth,
		})
		excludedMoves = append(excludedMoves, move)
	}

	for i := 0; i < len(results)-1; i++ {
		maxIdx := i
		for j := i + 1; j < len(results); j++ {
			if results[j].Score > results[maxIdx].Score {
				maxIdx = j
			}
		}
		if maxIdx != i {
			results[i], results[maxIdx] = results[maxIdx], results[i]
		}
	}

	return results
}

// searchWithExclusions searches for best move excluding certain moves at the root.
func (e *Engine) searchWithExclusions(pos *board.Position, limits SearchLimits, excluded []board.Move) (board.Move, int, []board.Move, int) {
	e.searcher.Reset()
	e.searcher.SetExcludedMoves(excluded)
	e.tt.NewSearch()

	startTime := time.Now()
	var bestMove board.Move
	var bestScore int
	var bestDepth int

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	var deadline time.Time
	if limits.MoveTime > 0 {
		deadline = startTime.Add(limits.MoveTime)
	}

	for depth := 1; depth <= maxDepth; depth++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		move, score := e.searcher.Search(pos, depth)

		if e.searcher.stopFlag.Load() {
			break
		}

		if move != board.NoMove {
			bestMove = move
			bestScore = score
			bestDepth = depth
		}

		if score > MateScore-100 || score < -MateScore+100 {
			break
		}

		if !deadline.IsZero() {
			elapsed := time.Since(startTime)
			remaining := limits.MoveTime - elapsed
			if remaining < elapsed {
				break
			}
		}
	}

	pv := e.searcher.GetPV()
	e.searcher.SetExcludedMoves(nil)

	return bestMove, bestScore, pv, bestDepth
}

// Stop stops the current search.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
	e.searcher.Stop()
}

// Clear clears the transposition table and every instance's move-ordering
// and evaluation-cache state, for a fresh game.
func (e *Engine) Clear() {
	e.tt.Clear()
	e.sharedHistory.Clear()
	for _, instance := range e.instances {
		instance.orderer.Clear()
		instance.evalCache.Clear()
		instance.materialCache.Clear()
	}
	e.searcher.orderer.Clear()
}

// Perft performs a perft test (for debugging move generation).
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}

	moves := pos.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}

	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		undo := pos.MakeMove(move)
		nodes += e.Perft(pos, depth-1)
		pos.UnmakeMove(move, undo)
	}

	return nodes
}

// Evaluate returns the static evaluation of a position.
func (e *Engine) Evaluate(pos *board.Position) int {
	return Evaluate(pos)
}

// ScoreToString converts a score to a human-readable string.
func ScoreToString(score int) string {
	if score > MateScore-100 {
		mateIn := (MateScore - score + 1) / 2
		return "Mate in " + itoa(mateIn)
	}
	if score < -MateScore+100 {
		mateIn := (MateScore + score + 1) / 2
		return "Mated in " + itoa(mateIn)
	}

	sign := ""
	if score < 0 {
		sign = "-"
		score = -score
	}
	pawns := score / 100
	centipawns := score % 100

	return sign + itoa(pawns) + "." + itoa(centipawns)
}

// itoa avoids pulling in strconv for a single call site.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + itoa(-n)
	}
	s := ""
	for n > 0 {
		s = string('0'+byte(n%10)) + s
		n /= 10
	}
	return s
}
