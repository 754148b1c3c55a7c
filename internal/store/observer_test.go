package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eigerco/boxtx/internal/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects notifications delivered to an observer.
type recorder struct {
	mu       sync.Mutex
	received [][]txn.EntityType
}

func (r *recorder) observe(affected []txn.EntityType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, affected)
	return nil
}

func (r *recorder) snapshot() [][]txn.EntityType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]txn.EntityType(nil), r.received...)
}

func TestSubscribeReceivesCommits(t *testing.T) {
	s := newStore(t)

	all := &recorder{}
	authors := &recorder{}
	s.Subscribe(all.observe)
	s.Subscribe(authors.observe, authorType)

	putNote(t, s, 1, "a")
	require.NoError(t, BoxFor[author](s, authorType).Put(1, author{Name: "b"}))
	err := s.RunInTx(func(tx *txn.Transaction) error {
		n, err := BoxFor[note](s, noteType).Cursor(tx)
		if err != nil {
			return err
		}
		a, err := BoxFor[author](s, authorType).Cursor(tx)
		if err != nil {
			return err
		}
		if err := n.Put(2, note{Text: "c"}); err != nil {
			return err
		}
		return a.Put(2, author{Name: "d"})
	})
	require.NoError(t, err)

	// Close drains pending notifications
	require.NoError(t, s.Close())

	assert.Equal(t, [][]txn.EntityType{
		{noteType},
		{authorType},
		{noteType, authorType},
	}, all.snapshot())
	assert.Equal(t, [][]txn.EntityType{
		{authorType},
		{authorType},
	}, authors.snapshot())
}

func TestSubscriptionCancel(t *testing.T) {
	s := newStore(t)

	r := &recorder{}
	cancel := s.Subscribe(r.observe)
	cancel()
	cancel()

	putNote(t, s, 1, "a")
	require.NoError(t, s.Close())
	assert.Empty(t, r.snapshot())
}

func TestNoNotificationWithoutEntityWrites(t *testing.T) {
	s := newStore(t)

	r := &recorder{}
	s.Subscribe(r.observe)

	read, err := s.BeginRead()
	require.NoError(t, err)
	require.NoError(t, read.CommitAndClose())

	require.NoError(t, s.RunInTx(func(tx *txn.Transaction) error {
		kv, err := tx.CreateKeyValueCursor()
		if err != nil {
			return err
		}
		return kv.Put([]byte("k"), []byte("v"))
	}))

	require.NoError(t, s.Close())
	assert.Empty(t, r.snapshot())
}

func TestFailingObserverDoesNotBlockOthers(t *testing.T) {
	s := newStore(t)

	delivered := make(chan struct{}, 1)
	s.Subscribe(func([]txn.EntityType) error {
		return errors.New("observer failed")
	})
	s.Subscribe(func([]txn.EntityType) error {
		delivered <- struct{}{}
		return nil
	})

	putNote(t, s, 1, "a")
	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("observer was not notified")
	}
}

func TestObserverCanCommit(t *testing.T) {
	s := newStore(t)
	const commits = 200

	authors := BoxFor[author](s, authorType)
	s.Subscribe(func([]txn.EntityType) error {
		_, err := authors.PutNew(author{Name: "follower"})
		return err
	}, noteType)

	for i := uint64(1); i <= commits; i++ {
		putNote(t, s, i, "lead")
	}

	require.Eventually(t, func() bool {
		return s.CommitCount() == 2*commits
	}, 10*time.Second, 10*time.Millisecond)

	n, err := authors.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(commits), n)
	require.NoError(t, s.Close())
}
