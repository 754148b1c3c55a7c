package store

import "github.com/eigerco/boxtx/internal/txn"

// RunInTx runs fn in a write transaction and commits if fn succeeds.
// The transaction is closed on every path; without a commit its writes
// are discarded.
func (s *Store) RunInTx(fn func(tx *txn.Transaction) error) error {
	_, err := CallInTx(s, func(tx *txn.Transaction) (struct{}, error) {
		return struct{}{}, fn(tx)
	})
	return err
}

// RunInReadTx runs fn in a read transaction that is closed afterwards.
func (s *Store) RunInReadTx(fn func(tx *txn.Transaction) error) error {
	_, err := CallInReadTx(s, func(tx *txn.Transaction) (struct{}, error) {
		return struct{}{}, fn(tx)
	})
	return err
}

func CallInTx[R any](s *Store, fn func(tx *txn.Transaction) (R, error)) (R, error) {
	var zero R
	tx, err := s.BeginWrite()
	if err != nil {
		return zero, err
	}
	defer tx.Close()

	result, err := fn(tx)
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, err
	}
	return result, nil
}

func CallInReadTx[R any](s *Store, fn func(tx *txn.Transaction) (R, error)) (R, error) {
	var zero R
	tx, err := s.BeginRead()
	if err != nil {
		return zero, err
	}
	defer tx.Close()

	return fn(tx)
}
