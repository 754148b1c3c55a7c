package store

import "time"

// Options configures a Store.
type Options struct {
	// Directory holds the engine files. Ignored when InMemory is set.
	Directory string `json:"directory"`
	InMemory  bool   `json:"in_memory"`
	// CacheSize and MemTableSize are passed to the engine, zero keeps its defaults.
	CacheSize    int64  `json:"cache_size"`
	MemTableSize uint64 `json:"memtable_size"`
	// DebugTransactions captures the creation stack of every transaction
	// and reports it when a transaction is still open at Close.
	DebugTransactions bool `json:"debug_transactions"`
	// OpenRetries retries opening the engine, e.g. while another process
	// still holds the directory lock.
	OpenRetries   uint64        `json:"open_retries"`
	OpenRetryBase time.Duration `json:"open_retry_base"`
}

func (o Options) retryBase() time.Duration {
	if o.OpenRetryBase > 0 {
		return o.OpenRetryBase
	}
	return 100 * time.Millisecond
}
