package engine

import (
	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/board"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTExact      TTFlag = iota // Exact score
	TTLowerBound               // Failed high (beta cutoff)
	TTUpperBound               // Failed low
)

// NoEval marks a TT entry that was stored without a static evaluation.
const NoEval = -32001

// clusterSize is the number of entries sharing one probe/store bucket.
// Four entries approximate one 64-byte cache line for this entry layout.
const clusterSize = 4

// TTEntry is a single transposition table slot.
type TTEntry struct {
	Key        uint32     // upper 32 bits of the Zobrist key
	Move       board.Move // best/refutation move
	Score      int16      // bounded score, ply-normalized on store
	StaticEval int16      // static eval at the time of store, or NoEval
	Depth      int8       // search depth this entry was stored at
	Flag       TTFlag     // EXACT / LOWER / UPPER
	Age        uint8      // generation counter at time of store
	IsPV       bool       // whether this entry was written by a PV node
}

func (e *TTEntry) occupied() bool {
	return e.Depth > 0 || e.Flag != TTExact || e.Move != board.NoMove
}

// replacementScore implements spec's replacement formula:
// depth*4 + (bound==EXACT ? 16 : 0) - age_distance*2.
func (e *TTEntry) replacementScore(currentAge uint8) int {
	ageDistance := int(currentAge - e.Age)
	score := int(e.Depth) * 4
	if e.Flag == TTExact {
		score += 16
	}
	score -= ageDistance * 2
	return score
}

// cluster groups clusterSize entries that share one probe bucket.
type cluster struct {
	entries [clusterSize]TTEntry
}

// TranspositionTable is a fixed-size, lock-free best-effort hash table.
// Entries are read and written without synchronization: concurrent
// writers may tear a multi-field update, but every reader re-validates
// key, bound, depth and move legality before trusting a hit, so a torn
// entry degrades to a miss rather than corrupting the search.
type TranspositionTable struct {
	clusters []cluster
	mask     uint64
	age      uint8

	hits   uint64
	probes uint64
}

// NewTranspositionTable creates a table sized to sizeMB megabytes,
// rounding the cluster count down to a power of two.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	if sizeMB < 1 {
		sizeMB = 1
	}
	clusterBytes := uint64(64) // one cache line per cluster
	numClusters := (uint64(sizeMB) * 1024 * 1024) / clusterBytes
	numClusters = roundDownToPowerOf2(numClusters)
	if numClusters == 0 {
		numClusters = 1
	}

	return &TranspositionTable{
		clusters: make([]cluster, numClusters),
		mask:     numClusters - 1,
	}
}

func roundDownToPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// Probe scans the bucket's cluster for a matching key.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	tt.probes++

	idx := hash & tt.mask
	keyLo := uint32(hash >> 32)
	cl := &tt.clusters[idx]

	for i := range cl.entries {
		e := &cl.entries[i]
		if e.occupied() && e.Key == keyLo {
			e.Age = tt.age // refresh age on hit
			tt.hits++
			return *e, true
		}
	}

	return TTEntry{}, false
}

// Store writes an entry into the bucket for hash, preferring a
// same-key slot (refresh-in-place when the incoming depth is not much
// shallower than what's stored) and otherwise the slot with the lowest
// replacement score. An EXACT bound already stored is never downgraded
// by a shallower non-EXACT write to the same key.
func (tt *TranspositionTable) Store(hash uint64, depth int, score int, flag TTFlag, bestMove board.Move, isPV bool) {
	tt.StoreWithEval(hash, depth, score, NoEval, flag, bestMove, isPV)
}

// StoreWithEval is Store plus the static evaluation the caller computed
// for this node, per spec's TT entry shape.
func (tt *TranspositionTable) StoreWithEval(hash uint64, depth int, score, staticEval int, flag TTFlag, bestMove board.Move, isPV bool) {
	idx := hash & tt.mask
	keyLo := uint32(hash >> 32)
	cl := &tt.clusters[idx]

	var victim *TTEntry
	victimScore := 1 << 30

	for i := range cl.entries {
		e := &cl.entries[i]

		if e.occupied() && e.Key == keyLo {
			if flag != TTExact && e.Flag == TTExact && depth < int(e.Depth) {
				return // never downgrade a deeper EXACT entry
			}
			if depth >= int(e.Depth)-2 {
				victim = e
			}
			break
		}

		if !e.occupied() {
			victim = e
			break
		}

		rs := e.replacementScore(tt.age)
		if rs < victimScore {
			victimScore = rs
			victim = e
		}
	}

	if victim == nil {
		victim = &cl.entries[0]
	}

	victim.Key = keyLo
	victim.Move = bestMove
	victim.Score = int16(score)
	victim.StaticEval = int16(staticEval)
	victim.Depth = int8(depth)
	victim.Flag = flag
	victim.Age = tt.age
	victim.IsPV = isPV
}

// NewSearch bumps the generation counter; called once per root search.
func (tt *TranspositionTable) NewSearch() {
	tt.age++
}

// Clear wipes every entry and resets statistics.
func (tt *TranspositionTable) Clear() {
	for i := range tt.clusters {
		tt.clusters[i] = cluster{}
	}
	tt.age = 0
	tt.hits = 0
	tt.probes = 0
}

// HashFull returns the permille fill of the first 1000 sampled clusters.
func (tt *TranspositionTable) HashFull() int {
	sampleSize := 1000
	if uint64(sampleSize) > uint64(len(tt.clusters)) {
		sampleSize = len(tt.clusters)
	}

	used := 0
	for i := 0; i < sampleSize; i++ {
		for j := range tt.clusters[i].entries {
			e := &tt.clusters[i].entries[j]
			if e.occupied() && e.Age == tt.age {
				used++
			}
		}
	}

	return (used * 1000) / (sampleSize * clusterSize)
}

// HitRate returns the probe hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	if tt.probes == 0 {
		return 0
	}
	return float64(tt.hits) / float64(tt.probes) * 100
}

// Size returns the number of addressable clusters.
func (tt *TranspositionTable) Size() uint64 {
	return uint64(len(tt.clusters))
}

// AdjustScoreFromTT converts a stored, ply-normalized mate score back
// to one relative to the current search's root.
func AdjustScoreFromTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}

// AdjustScoreToTT normalizes a root-relative mate score for storage so
// the cached distance-to-mate is correct when probed from any root.
func AdjustScoreToTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}
