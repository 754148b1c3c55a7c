package pebble

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/eigerco/boxtx/pkg/db"
	"github.com/eigerco/boxtx/pkg/log"
	"github.com/rs/zerolog"
)

// Options configures the pebble engine.
type Options struct {
	// InMemory keeps all data in an in-memory filesystem.
	InMemory bool
	// CacheSize is the block cache size in bytes, pebble's default when zero.
	CacheSize int64
	// MemTableSize in bytes, pebble's default when zero.
	MemTableSize uint64
	// Logger receives pebble's internal logging.
	Logger pebble.Logger
}

// Engine is a transactional engine on top of pebble. Read transactions
// are served from snapshots, write transactions from indexed batches.
// Only one write transaction exists at a time.
type Engine struct {
	db     *pebble.DB
	writer chan struct{}
	closed atomic.Bool
	nextID atomic.Uint64
	logger zerolog.Logger

	mu       sync.Mutex
	live     map[uint64]*Tx
	nameToID map[string]uint32
	idToName map[uint32]string
}

var _ db.Engine = (*Engine)(nil)

// Open opens (or creates) an engine in dir.
func Open(dir string, opts Options) (*Engine, error) {
	plog := opts.Logger
	if plog == nil {
		plog = pebble.DefaultLogger
	}
	popts := &pebble.Options{Logger: plog}
	if opts.InMemory {
		popts.FS = vfs.NewMem()
	}
	if opts.CacheSize > 0 {
		cache := pebble.NewCache(opts.CacheSize)
		defer cache.Unref()
		popts.Cache = cache
	}
	if opts.MemTableSize > 0 {
		popts.MemTableSize = opts.MemTableSize
	}

	pdb, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}

	return &Engine{
		db:       pdb,
		writer:   make(chan struct{}, 1),
		logger:   log.Engine,
		live:     make(map[uint64]*Tx),
		nameToID: make(map[string]uint32),
		idToName: make(map[uint32]string),
	}, nil
}

// BeginTx opens a native transaction. A write transaction blocks until
// the previous writer has committed, aborted or been destroyed.
func (e *Engine) BeginTx(readOnly bool) (db.NativeTx, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if !readOnly {
		e.writer <- struct{}{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		if !readOnly {
			<-e.writer
		}
		return nil, ErrEngineClosed
	}

	tx := &Tx{
		engine:   e,
		id:       e.nextID.Add(1),
		readOnly: readOnly,
		active:   true,
		cursors:  make(map[*iterCursor]struct{}),
	}
	if readOnly {
		tx.snap = e.db.NewSnapshot()
	} else {
		tx.batch = e.db.NewIndexedBatch()
		tx.holdsWriter = true
		tx.affected = make(map[uint32]struct{})
	}
	e.live[tx.id] = tx
	return tx, nil
}

// LiveTransactions returns the number of native handles not yet destroyed.
func (e *Engine) LiveTransactions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.live)
}

// IsClosed reports whether Close has been called.
func (e *Engine) IsClosed() bool {
	return e.closed.Load()
}

// Close releases every outstanding native transaction and closes pebble.
// Calling Close more than once has no effect.
func (e *Engine) Close() error {
	e.mu.Lock()
	if !e.closed.CompareAndSwap(false, true) {
		e.mu.Unlock()
		return nil
	}
	live := make([]*Tx, 0, len(e.live))
	for _, tx := range e.live {
		live = append(live, tx)
	}
	e.mu.Unlock()

	var errs []error
	for _, tx := range live {
		if err := tx.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy transaction %d: %w", tx.id, err))
		}
	}
	if err := e.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pebble: %w", err))
	}
	return errors.Join(errs...)
}

// bindEntity ties an entity name to a type id for the engine's lifetime.
func (e *Engine) bindEntity(name string, typeID uint32) error {
	if name == "" {
		return ErrEmptyEntityName
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if id, ok := e.nameToID[name]; ok {
		if id != typeID {
			return fmt.Errorf("%w: %q has id %d, requested %d", ErrSchemaMismatch, name, id, typeID)
		}
		return nil
	}
	if other, ok := e.idToName[typeID]; ok {
		return fmt.Errorf("%w: id %d belongs to %q, requested by %q", ErrSchemaMismatch, typeID, other, name)
	}
	e.nameToID[name] = typeID
	e.idToName[typeID] = name
	return nil
}

func (e *Engine) release(tx *Tx) {
	e.mu.Lock()
	delete(e.live, tx.id)
	e.mu.Unlock()
}

func (e *Engine) logError(err error, tx uint64, msg string) {
	e.logger.Error().Err(err).Uint64("tx", tx).Msg(msg)
}
