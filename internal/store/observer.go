package store

import (
	"slices"
	"sync"

	"github.com/eigerco/boxtx/internal/txn"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Observer is told which entity types a committed write transaction changed.
type Observer func(affected []txn.EntityType) error

type subscription struct {
	fn       Observer
	entities []txn.EntityType
}

// publisher delivers commit notifications in commit order on its own
// goroutine. Observers of one notification run concurrently. The queue is
// unbounded: publish never waits for observers, and observers may commit.
type publisher struct {
	logger zerolog.Logger

	obsMu  sync.Mutex
	nextID uint64
	subs   map[uint64]subscription

	queueMu sync.Mutex
	ready   *sync.Cond
	closed  bool
	queue   [][]txn.EntityType
	done    chan struct{}
}

func newPublisher(logger zerolog.Logger) *publisher {
	p := &publisher{
		logger: logger,
		subs:   make(map[uint64]subscription),
		done:   make(chan struct{}),
	}
	p.ready = sync.NewCond(&p.queueMu)
	go p.run()
	return p
}

func (p *publisher) subscribe(fn Observer, entities []txn.EntityType) func() {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()

	id := p.nextID
	p.nextID++
	p.subs[id] = subscription{fn: fn, entities: slices.Clone(entities)}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.obsMu.Lock()
			delete(p.subs, id)
			p.obsMu.Unlock()
		})
	}
}

func (p *publisher) publish(affected []txn.EntityType) {
	if len(affected) == 0 {
		return
	}
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	if p.closed {
		return
	}
	p.queue = append(p.queue, affected)
	p.ready.Signal()
}

func (p *publisher) run() {
	defer close(p.done)
	for {
		affected, ok := p.next()
		if !ok {
			return
		}
		p.deliver(affected)
	}
}

// next blocks for the oldest pending notification. It reports false once
// the publisher is closed and the queue is drained.
func (p *publisher) next() ([]txn.EntityType, bool) {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.ready.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}
	affected := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return affected, true
}

func (p *publisher) deliver(affected []txn.EntityType) {
	p.obsMu.Lock()
	subs := make([]subscription, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.obsMu.Unlock()

	var g errgroup.Group
	for _, s := range subs {
		matched := s.match(affected)
		if len(matched) == 0 {
			continue
		}
		g.Go(func() error {
			return s.fn(matched)
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Warn().Err(err).Msg("commit observer failed")
	}
}

// close drains pending notifications and stops the dispatcher.
func (p *publisher) close() {
	p.queueMu.Lock()
	if p.closed {
		p.queueMu.Unlock()
		return
	}
	p.closed = true
	p.ready.Broadcast()
	p.queueMu.Unlock()
	<-p.done
}

func (s subscription) match(affected []txn.EntityType) []txn.EntityType {
	if len(s.entities) == 0 {
		return affected
	}
	var matched []txn.EntityType
	for _, e := range affected {
		if slices.Contains(s.entities, e) {
			matched = append(matched, e)
		}
	}
	return matched
}
