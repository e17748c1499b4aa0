package engine

import (
	"time"

	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/board"
)

// UCILimits contains UCI time control parameters.
type UCILimits struct {
	Time      [2]time.Duration // wtime, btime (remaining time for each color)
	Inc       [2]time.Duration // winc, binc (increment per move)
	MovesToGo int              // moves until next time control (0 = sudden death)
	MoveTime  time.Duration    // fixed time per move (overrides other time controls)
	Depth     int              // maximum search depth
	Nodes     uint64           // maximum nodes to search
	Infinite  bool             // search until stopped
	Ponder    bool             // ponder mode
}

// TimeManager handles time allocation for searches.
type TimeManager struct {
	optimumTime time.Duration // Target time for this move
	maximumTime time.Duration // Maximum time allowed
	startTime   time.Time     // When search started
}

// NewTimeManager creates a new time manager.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// Init initializes the time manager for a new search. ply is the
// current game ply (half-move number); phase is Phase(pos) (0 bare
// endgame .. 256 full opening material) and score the prior iteration's
// evaluation in centipawns (0 if none yet), both from the side to
// move's perspective; overhead is the configured move-overhead, always
// subtracted from whatever budget the other rules compute.
func (tm *TimeManager) Init(limits UCILimits, us board.Color, ply, phase, score int, overhead time.Duration) {
	tm.startTime = time.Now()

	// Rule 1: infinite search.
	if limits.Infinite || (limits.Time[us] == 0 && limits.MoveTime == 0) {
		tm.optimumTime = time.Hour
		tm.maximumTime = time.Hour
		return
	}

	// Rule 2: fixed move time.
	if limits.MoveTime > 0 {
		budget := limits.MoveTime - overhead
		if budget < 10*time.Millisecond {
			budget = 10 * time.Millisecond
		}
		tm.optimumTime = budget
		tm.maximumTime = budget
		return
	}

	timeLeft := limits.Time[us]
	inc := limits.Inc[us]

	// Rule 3: base allocation.
	var base time.Duration
	if limits.MovesToGo > 0 {
		base = timeLeft / time.Duration(limits.MovesToGo+3)
	} else {
		base = timeLeft / 40
	}
	base += inc * 3 / 4

	// Rule 4: phase scaling.
	switch {
	case phase < 64:
		base = base * 12 / 10 // endgame
	case phase > 200:
		base = base * 8 / 10 // opening
	}

	// Rule 5: score scaling (from the side to move's perspective).
	switch {
	case score > 300:
		base = base * 7 / 10
	case score > 100:
		base = base * 85 / 100
	case score < -300:
		base = base * 14 / 10
	case score < -100:
		base = base * 115 / 100
	}

	// Rule 6: soft/hard budget, with an emergency floor when time is critical.
	tm.optimumTime = base

	hardFromBase := base * 4
	hardFromRemaining := timeLeft / 5
	if hardFromBase < hardFromRemaining {
		tm.maximumTime = hardFromBase
	} else {
		tm.maximumTime = hardFromRemaining
	}

	if inc > 0 && timeLeft < 30*inc {
		floor := timeLeft / 40
		if floor < 10*time.Millisecond {
			floor = 10 * time.Millisecond
		}
		if tm.optimumTime < floor {
			tm.optimumTime = floor
		}
		if tm.maximumTime < floor {
			tm.maximumTime = floor
		}
	}

	// Rule 7: subtract overhead, clamp to a 10ms floor.
	tm.optimumTime -= overhead
	tm.maximumTime -= overhead
	if tm.optimumTime < 10*time.Millisecond {
		tm.optimumTime = 10 * time.Millisecond
	}
	if tm.maximumTime < 10*time.Millisecond {
		tm.maximumTime = 10 * time.Millisecond
	}
}

// Elapsed returns the time elapsed since search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// OptimumTime returns the target time for this move.
func (tm *TimeManager) OptimumTime() time.Duration {
	return tm.optimumTime
}

// MaximumTime returns the maximum time allowed.
func (tm *TimeManager) MaximumTime() time.Duration {
	return tm.maximumTime
}

// ShouldStop returns true if we should stop searching.
func (tm *TimeManager) ShouldStop() bool {
	return tm.Elapsed() >= tm.maximumTime
}

// PastOptimum returns true if we've exceeded the optimum time.
func (tm *TimeManager) PastOptimum() bool {
	return tm.Elapsed() >= tm.optimumTime
}

// AdjustForStability adjusts time allocation based on best move stability.
// If the best move hasn't changed for several depths, we can stop earlier.
// stability: number of consecutive depths with same best move
func (tm *TimeManager) AdjustForStability(stability int) {
	if stability >= 6 {
		// Very stable: use only 40% of optimum
		tm.optimumTime = tm.optimumTime * 40 / 100
	} else if stability >= 4 {
		// Stable: use only 60% of optimum
		tm.optimumTime = tm.optimumTime * 60 / 100
	} else if stability >= 2 {
		// Somewhat stable: use 80% of optimum
		tm.optimumTime = tm.optimumTime * 80 / 100
	}
}

// AdjustForInstability increases time when best move keeps changing.
// changes: number of best move changes in recent depths
func (tm *TimeManager) AdjustForInstability(changes int) {
	if changes >= 4 {
		// Very unstable: use 200% of optimum (up to maximum)
		tm.optimumTime = tm.optimumTime * 200 / 100
		if tm.optimumTime > tm.maximumTime {
			tm.optimumTime = tm.maximumTime
		}
	} else if changes >= 2 {
		// Unstable: use 150% of optimum
		tm.optimumTime = tm.optimumTime * 150 / 100
		if tm.optimumTime > tm.maximumTime {
			tm.optimumTime = tm.maximumTime
		}
	}
}
