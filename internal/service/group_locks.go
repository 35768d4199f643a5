package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

type groupLock struct {
	sem  *semaphore.Weighted
	refs int
}

// GroupLocks serializes pipeline runs per changes group
type GroupLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*groupLock
}

func NewGroupLocks() *GroupLocks {
	return &GroupLocks{locks: make(map[uuid.UUID]*groupLock)}
}

// Acquire blocks until no other run holds the group or ctx is done.
// The returned release must be called exactly once.
func (g *GroupLocks) Acquire(ctx context.Context, id uuid.UUID) (func(), error) {
	g.mu.Lock()
	l, ok := g.locks[id]
	if !ok {
		l = &groupLock{sem: semaphore.NewWeighted(1)}
		g.locks[id] = l
	}
	l.refs++
	g.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		g.unref(id, l)
		return nil, err
	}

	return func() {
		l.sem.Release(1)
		g.unref(id, l)
	}, nil
}

func (g *GroupLocks) unref(id uuid.UUID, l *groupLock) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(g.locks, id)
	}
}

// Len reports how many groups currently have a run waiting or in progress
func (g *GroupLocks) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
