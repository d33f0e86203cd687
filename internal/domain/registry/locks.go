package registry

import (
	"context"
	"sync"
)

// keyedLock hands out one mutex per shell id. Acquisition honours ctx so a
// caller stuck behind a hung command can give up.
type keyedLock struct {
	mu    sync.Mutex
	slots map[uint]chan struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{slots: make(map[uint]chan struct{})}
}

func (k *keyedLock) slot(id uint) chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	ch, ok := k.slots[id]
	if !ok {
		ch = make(chan struct{}, 1)
		k.slots[id] = ch
	}
	return ch
}

// acquire blocks until id is free or ctx is done.
func (k *keyedLock) acquire(ctx context.Context, id uint) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := k.slot(id)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// forget drops the slot of a deleted id. Callers must hold it. A waiter
// already blocked on the old slot still gets it once released and then finds
// the shell gone. That is only safe because shell ids come from a persistent
// sequence and are never reused, so no later shell can share the id with a
// stale slot.
func (k *keyedLock) forget(id uint) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.slots, id)
}
