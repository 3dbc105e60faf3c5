package agent

import (
	"context"
	"sync"
)

// convLocks serializes turns per conversation. Entries are dropped once no
// turn holds or waits for them.
type convLocks struct {
	mu sync.Mutex
	m  map[int64]*convLock
}

type convLock struct {
	sem  chan struct{}
	refs int
}

// acquire blocks until the conversation is free or ctx is done. The returned
// func releases the lock and must be called exactly once.
func (l *convLocks) acquire(ctx context.Context, id int64) (func(), error) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[int64]*convLock)
	}
	e, ok := l.m[id]
	if !ok {
		e = &convLock{sem: make(chan struct{}, 1)}
		l.m[id] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			l.put(id, e)
		}, nil
	case <-ctx.Done():
		l.put(id, e)
		return nil, ctx.Err()
	}
}

func (l *convLocks) put(id int64, e *convLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.m, id)
	}
}

// len reports how many conversations have a holder or waiter.
func (l *convLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
