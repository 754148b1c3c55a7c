package pebble

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open("", Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = e.Close()
	})
	return e
}

func TestEngine(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, e *Engine)
	}{
		{
			name: "close_releases_live_transactions",
			fn:   testCloseReleasesLive,
		},
		{
			name: "begin_after_close",
			fn:   testBeginAfterClose,
		},
		{
			name: "single_writer",
			fn:   testSingleWriter,
		},
		{
			name: "writer_waiting_on_close",
			fn:   testWriterWaitingOnClose,
		},
		{
			name: "entity_binding",
			fn:   testEntityBinding,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newEngine(t))
		})
	}
}

func testCloseReleasesLive(t *testing.T, e *Engine) {
	read, err := e.BeginTx(true)
	require.NoError(t, err)
	_, err = e.BeginTx(false)
	require.NoError(t, err)
	assert.Equal(t, 2, e.LiveTransactions())

	require.NoError(t, e.Close())
	assert.True(t, e.IsClosed())
	assert.Equal(t, 0, e.LiveTransactions())
	assert.False(t, read.IsActive())

	// Double close should not error
	assert.NoError(t, e.Close())
}

func testBeginAfterClose(t *testing.T, e *Engine) {
	require.NoError(t, e.Close())

	_, err := e.BeginTx(true)
	assert.ErrorIs(t, err, ErrEngineClosed)
	_, err = e.BeginTx(false)
	assert.ErrorIs(t, err, ErrEngineClosed)
}

func testSingleWriter(t *testing.T, e *Engine) {
	first, err := e.BeginTx(false)
	require.NoError(t, err)

	started := make(chan struct{})
	acquired := make(chan struct{})
	go func() {
		close(started)
		second, err := e.BeginTx(false)
		if err == nil {
			_ = second.Destroy()
		}
		close(acquired)
	}()

	<-started
	select {
	case <-acquired:
		t.Fatal("second writer started while the first was active")
	case <-time.After(50 * time.Millisecond):
	}

	_, err = first.Commit()
	require.NoError(t, err)

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("second writer never started")
	}
	require.NoError(t, first.Destroy())
}

func testWriterWaitingOnClose(t *testing.T, e *Engine) {
	_, err := e.BeginTx(false)
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() {
		_, err := e.BeginTx(false)
		result <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, e.Close())

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrEngineClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("waiting writer was not released by close")
	}
}

func testEntityBinding(t *testing.T, e *Engine) {
	tx, err := e.BeginTx(true)
	require.NoError(t, err)
	defer tx.Destroy() //nolint:errcheck

	c, err := tx.CreateCursor("Note", 1)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	// Same binding again is fine
	c, err = tx.CreateCursor("Note", 1)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = tx.CreateCursor("Note", 2)
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = tx.CreateCursor("Author", 1)
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = tx.CreateCursor("", 3)
	assert.ErrorIs(t, err, ErrEmptyEntityName)
}

func TestEngineCloseWithLiveTransactionsClosesDB(t *testing.T) {
	dir := t.TempDir()

	e, err := Open(dir, Options{})
	require.NoError(t, err)
	_, err = e.BeginTx(true)
	require.NoError(t, err)
	_, err = e.BeginTx(false)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	// The directory lock is only released once pebble itself is closed
	reopened, err := Open(dir, Options{})
	require.NoError(t, err)
	require.NoError(t, reopened.Close())
}

func TestEngineLogsErrors(t *testing.T) {
	e := newEngine(t)

	var buf bytes.Buffer
	e.logger = zerolog.New(&buf)
	e.logError(errors.New("boom"), 7, "close snapshot")

	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.Contains(t, buf.String(), `"tx":7`)
	assert.Contains(t, buf.String(), `"message":"close snapshot"`)
}
