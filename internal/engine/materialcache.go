package engine

import "github.com/Gideonrgb101/UnderFlaw-sub001/internal/board"

// MaterialEntry stores a cached material balance for one material
// configuration (piece counts only, independent of square placement).
type MaterialEntry struct {
	Key   uint64
	Score int16
}

// MaterialCache is a direct-mapped cache of material-only balances,
// keyed by a packed piece-count signature rather than the full
// position hash: two positions with the same piece counts but
// different squares share an entry, which is exactly the invariant
// EvaluateMaterial's quick lazy-eval callers rely on.
type MaterialCache struct {
	entries []MaterialEntry
	mask    uint64
}

// NewMaterialCache creates a new material cache with the given size in MB.
func NewMaterialCache(sizeMB int) *MaterialCache {
	const entrySize = 10
	numEntries := (sizeMB * 1024 * 1024) / entrySize

	size := 1
	for size*2 <= numEntries {
		size *= 2
	}

	return &MaterialCache{
		entries: make([]MaterialEntry, size),
		mask:    uint64(size - 1),
	}
}

// materialKey packs piece counts (4 bits each, clamped to 15) per color
// and piece type plus side to move into a single signature. It is stable
// under any move that doesn't change material, unlike the zobrist Hash.
func materialKey(pos *board.Position) uint64 {
	var key uint64
	shift := uint(0)
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt <= board.King; pt++ {
			count := pos.Pieces[c][pt].PopCount()
			if count > 15 {
				count = 15
			}
			key |= uint64(count) << shift
			shift += 4
		}
	}
	if pos.SideToMove == board.Black {
		key ^= 1 << 63
	}
	return key
}

// Probe looks up a cached material balance for the position's current
// piece counts.
func (c *MaterialCache) Probe(pos *board.Position) (int, bool) {
	key := materialKey(pos)
	entry := &c.entries[key&c.mask]
	if entry.Key == key {
		return int(entry.Score), true
	}
	return 0, false
}

// Store saves a material balance, keyed by the position's current piece counts.
func (c *MaterialCache) Store(pos *board.Position, score int) {
	key := materialKey(pos)
	entry := &c.entries[key&c.mask]
	entry.Key = key
	entry.Score = int16(clampInt16(score))
}

// Clear empties the cache.
func (c *MaterialCache) Clear() {
	for i := range c.entries {
		c.entries[i] = MaterialEntry{}
	}
}

// EvaluateMaterialWithCache is like EvaluateMaterial but backed by a
// MaterialCache, for lazy-eval call sites (e.g. quiescence delta pruning)
// that run on every node and don't need the full positional evaluation.
func EvaluateMaterialWithCache(pos *board.Position, cache *MaterialCache) int {
	if cache != nil {
		if score, found := cache.Probe(pos); found {
			return score
		}
	}

	score := EvaluateMaterial(pos)

	if cache != nil {
		cache.Store(pos, score)
	}

	return score
}
