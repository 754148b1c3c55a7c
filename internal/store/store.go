// Package store owns the engine and is the counterpart of every
// transaction: it hands transactions out, tracks the open ones, counts
// write commits and notifies observers about changed entity types.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eigerco/boxtx/internal/txn"
	"github.com/eigerco/boxtx/pkg/db/pebble"
	"github.com/eigerco/boxtx/pkg/log"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

var ErrStoreClosed = errors.New("store is closed")

// Store manages transactions over one engine.
type Store struct {
	id       uuid.UUID
	opts     Options
	engine   *pebble.Engine
	entities map[txn.EntityType]Entity
	logger   zerolog.Logger

	closed      atomic.Bool
	commitMu    sync.Mutex
	commitCount atomic.Int64

	txMu sync.Mutex
	txs  map[*txn.Transaction]struct{}

	publisher *publisher
}

var _ txn.Store = (*Store)(nil)

// Open opens the engine described by opts with the given entity model.
func Open(opts Options, entities ...Entity) (*Store, error) {
	model, err := buildModel(entities)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	logger := log.Store.With().Str("store_id", id.String()).Logger()

	engine, err := openEngine(opts, logger)
	if err != nil {
		return nil, err
	}

	s := &Store{
		id:        id,
		opts:      opts,
		engine:    engine,
		entities:  model,
		logger:    logger,
		txs:       make(map[*txn.Transaction]struct{}),
		publisher: newPublisher(logger),
	}
	logger.Info().
		Str("directory", opts.Directory).
		Bool("in_memory", opts.InMemory).
		Int("entities", len(model)).
		Msg("store opened")
	return s, nil
}

func openEngine(opts Options, logger zerolog.Logger) (*pebble.Engine, error) {
	eopts := pebble.Options{
		InMemory:     opts.InMemory,
		CacheSize:    opts.CacheSize,
		MemTableSize: opts.MemTableSize,
		Logger:       log.PebbleLogger{Logger: log.Engine},
	}
	if opts.OpenRetries == 0 {
		return pebble.Open(opts.Directory, eopts)
	}

	var engine *pebble.Engine
	b := retry.NewFibonacci(opts.retryBase())
	err := retry.Do(context.Background(), retry.WithMaxRetries(opts.OpenRetries, b), func(ctx context.Context) error {
		e, err := pebble.Open(opts.Directory, eopts)
		if err != nil {
			logger.Warn().Err(err).Msg("open engine, retrying")
			return retry.RetryableError(err)
		}
		engine = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// ID identifies this store instance in logs.
func (s *Store) ID() uuid.UUID {
	return s.id
}

// BeginRead starts a read transaction on a snapshot of the current state.
func (s *Store) BeginRead() (*txn.Transaction, error) {
	return s.begin(true)
}

// BeginWrite starts the write transaction, waiting for a running writer to finish.
func (s *Store) BeginWrite() (*txn.Transaction, error) {
	return s.begin(false)
}

func (s *Store) begin(readOnly bool) (*txn.Transaction, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	// The baseline must not include commits the snapshot may miss.
	initial := s.CommitCount()
	native, err := s.engine.BeginTx(readOnly)
	if errors.Is(err, pebble.ErrEngineClosed) {
		return nil, fmt.Errorf("%w: %w", ErrStoreClosed, err)
	}
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	var opts []txn.Option
	if s.opts.DebugTransactions {
		opts = append(opts, txn.WithCreationStack())
	}
	tx := txn.New(s, native, initial, opts...)

	s.RegisterTransaction(tx)
	// Close snapshots the registered set under txMu after marking the
	// store closed, so a transaction registered in between is either in
	// that set or sees the flag here.
	if s.closed.Load() {
		tx.Close()
		return nil, ErrStoreClosed
	}
	return tx, nil
}

func (s *Store) RegisterTransaction(tx *txn.Transaction) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.txs[tx] = struct{}{}
}

func (s *Store) UnregisterTransaction(tx *txn.Transaction) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	delete(s.txs, tx)
}

// ActiveTransactions counts transactions handed out and not yet closed.
func (s *Store) ActiveTransactions() int {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return len(s.txs)
}

func (s *Store) IsClosed() bool {
	return s.closed.Load()
}

func (s *Store) CommitCount() int64 {
	return s.commitCount.Load()
}

// TxCommitted counts write commits and queues the change notification.
// Read transaction commits change nothing.
func (s *Store) TxCommitted(tx *txn.Transaction, affected []txn.EntityType) {
	if tx.IsReadOnly() {
		return
	}
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.commitCount.Add(1)
	s.publisher.publish(affected)
}

func (s *Store) EntityCursorFactory(entity txn.EntityType) (txn.CursorFactory, bool) {
	e, ok := s.entities[entity]
	if !ok {
		return txn.CursorFactory{}, false
	}
	return e.Cursor, true
}

func (s *Store) EntityStorageName(entity txn.EntityType) string {
	return s.entities[entity].Name
}

// Subscribe registers fn for commits that changed any of entities, or
// any entity when none are given. The returned func cancels it.
func (s *Store) Subscribe(fn Observer, entities ...txn.EntityType) (cancel func()) {
	return s.publisher.subscribe(fn, entities)
}

// Close closes the store. Transactions still open are reported and closed;
// their native handles are released by the engine itself. Calling Close
// more than once has no effect.
func (s *Store) Close() error {
	s.txMu.Lock()
	if !s.closed.CompareAndSwap(false, true) {
		s.txMu.Unlock()
		return nil
	}
	open := make([]*txn.Transaction, 0, len(s.txs))
	for tx := range s.txs {
		open = append(open, tx)
	}
	s.txMu.Unlock()

	for _, tx := range open {
		s.reportLeak(tx)
		tx.Close()
	}

	// Engine close releases a writer slot an observer may be waiting for.
	err := s.engine.Close()
	s.publisher.close()
	if err != nil {
		return fmt.Errorf("close engine: %w", err)
	}
	s.logger.Info().Int("leaked_transactions", len(open)).Msg("store closed")
	return nil
}

func (s *Store) reportLeak(tx *txn.Transaction) {
	ev := s.logger.Warn().Stringer("tx", tx)
	if stack := tx.CreationStack(); stack != nil {
		ev = ev.Str("created_at", string(stack))
	}
	ev.Msg("transaction was not closed")
}
