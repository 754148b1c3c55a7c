package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/eigerco/boxtx/internal/txn"
	"github.com/eigerco/boxtx/pkg/db/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var seqKey = []byte("seq")

// readSeq returns the commit sequence number visible to tx, 0 before the first commit.
func readSeq(tx *txn.Transaction) (uint64, error) {
	kv, err := tx.CreateKeyValueCursor()
	if err != nil {
		return 0, err
	}
	defer kv.Close() //nolint:errcheck

	v, err := kv.Get(seqKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

func TestBaselineNeverAheadOfSnapshot(t *testing.T) {
	s := newStore(t)
	const commits = 300

	var writerDone atomic.Bool
	var g errgroup.Group
	g.Go(func() error {
		defer writerDone.Store(true)
		for i := uint64(1); i <= commits; i++ {
			err := s.RunInTx(func(tx *txn.Transaction) error {
				kv, err := tx.CreateKeyValueCursor()
				if err != nil {
					return err
				}
				defer kv.Close() //nolint:errcheck
				return kv.Put(seqKey, binary.BigEndian.AppendUint64(nil, i))
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for !writerDone.Load() {
			tx, err := s.BeginRead()
			if err != nil {
				return err
			}
			seen, err := readSeq(tx)
			baseline := tx.InitialCommitCount()
			obsolete := tx.IsObsolete()
			tx.Close()
			if err != nil {
				return err
			}
			// Every commit counted in the baseline must be visible
			if uint64(baseline) > seen {
				return fmt.Errorf("baseline %d ahead of snapshot at commit %d (obsolete=%t)", baseline, seen, obsolete)
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(commits), s.CommitCount())
}

func TestBeginRacingClose(t *testing.T) {
	s := newStore(t)

	start := make(chan struct{})
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			<-start
			for {
				tx, err := s.BeginRead()
				if errors.Is(err, ErrStoreClosed) {
					return nil
				}
				if err != nil {
					return err
				}
				tx.Close()
			}
		})
	}
	close(start)
	require.NoError(t, s.Close())
	require.NoError(t, g.Wait())

	assert.Equal(t, 0, s.ActiveTransactions())
}

func TestRegisterTransaction(t *testing.T) {
	s := newStore(t)

	tx, err := s.BeginRead()
	require.NoError(t, err)
	assert.Equal(t, 1, s.ActiveTransactions())

	// Registering again is harmless
	s.RegisterTransaction(tx)
	assert.Equal(t, 1, s.ActiveTransactions())

	tx.Close()
	assert.Equal(t, 0, s.ActiveTransactions())
}
