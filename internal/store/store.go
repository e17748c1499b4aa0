package store

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v4"
)

// Storage keys.
const (
	keyOptions     = "options"
	keyLearnedBook = "learned_book"
)

// EngineOptions mirrors the UCI-settable options that should survive
// between engine runs (setoption name Hash value 128, etc.).
type EngineOptions struct {
	HashMB       int     `json:"hash_mb"`
	Threads      int     `json:"threads"`
	MoveOverhead int     `json:"move_overhead_ms"`
	Contempt     int     `json:"contempt"`
	MultiPV      int     `json:"multi_pv"`
	SyzygyPath   string  `json:"syzygy_path"`
	OwnBook      bool    `json:"own_book"`
	BookFile     string  `json:"book_file"`
	BookLearning bool    `json:"book_learning"`
	BookRandom   int     `json:"book_random"`
	StyleWeights map[string]int `json:"style_weights,omitempty"`
}

// DefaultOptions returns the engine's built-in option defaults.
func DefaultOptions() *EngineOptions {
	return &EngineOptions{
		HashMB:       64,
		Threads:      1,
		MoveOverhead: 30,
		Contempt:     0,
		MultiPV:      1,
		BookRandom:   0,
	}
}

// LearnedEntry tracks outcome statistics for a single book move so
// BookLearning can nudge weighted selection without rewriting the
// read-only .bin file.
type LearnedEntry struct {
	Wins   int `json:"wins"`
	Draws  int `json:"draws"`
	Losses int `json:"losses"`
}

// Score returns a signed adjustment in the same units as Polyglot
// weights: positive nudges the move up, negative nudges it down.
func (e LearnedEntry) Score() int {
	return (e.Wins*2 + e.Draws - e.Losses*2)
}

// LearnedBook maps a Polyglot position key to per-move outcome stats,
// keyed by the move's long-algebraic string since moves are position-
// relative and can't be compared across positions by raw encoding alone.
type LearnedBook map[uint64]map[string]LearnedEntry

// Store wraps BadgerDB for persisting options and learned book data.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) the on-disk store.
func Open() (*Store, error) {
	dir, err := DatabaseDir()
	if err != nil {
		return nil, err
	}
	return OpenAt(dir)
}

// OpenAt opens the store at an explicit directory, bypassing platform
// path resolution; used by tests and by callers that want a scratch dir.
func OpenAt(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveOptions persists the current engine options.
func (s *Store) SaveOptions(opts *EngineOptions) error {
	data, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyOptions), data)
	})
}

// LoadOptions loads persisted options, or engine defaults if none are stored.
func (s *Store) LoadOptions() (*EngineOptions, error) {
	opts := DefaultOptions()

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyOptions))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, opts)
		})
	})

	return opts, err
}

// SaveLearnedBook persists the learned-book overlay.
func (s *Store) SaveLearnedBook(lb LearnedBook) error {
	data, err := json.Marshal(lb)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyLearnedBook), data)
	})
}

// LoadLearnedBook loads the learned-book overlay, or an empty one if none exists.
func (s *Store) LoadLearnedBook() (LearnedBook, error) {
	lb := make(LearnedBook)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyLearnedBook))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &lb)
		})
	})

	return lb, err
}

// RecordOutcome updates the learned-book overlay for one move played
// from a book position, folding in a single game's result.
func (lb LearnedBook) RecordOutcome(posKey uint64, moveUCI string, won, drew bool) {
	moves, ok := lb[posKey]
	if !ok {
		moves = make(map[string]LearnedEntry)
		lb[posKey] = moves
	}
	e := moves[moveUCI]
	switch {
	case won:
		e.Wins++
	case drew:
		e.Draws++
	default:
		e.Losses++
	}
	moves[moveUCI] = e
}
