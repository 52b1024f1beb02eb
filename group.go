package qchain

import (
	"context"
	"fmt"
	"sync"
	"time"
)

/*
round is one rendezvous of the whole group. Every rank deposits a value and
waits for done; the last rank to arrive closes done, after which values is
read-only and shared by all ranks.
*/
type round struct {
	values  []any
	arrived int
	started time.Time
	done    chan struct{}
}

func newRound(size int) *round {
	return &round{
		values: make([]any, size),
		done:   make(chan struct{}),
	}
}

/*
Group is the shared meeting point of a fixed-size process group.

All collectives are built on a single primitive, exchange, which is an all-gather
of one value per rank. A rank cannot enter round n+1 before round n has closed,
so a round's values are never overwritten while a slow rank is still reading them.
*/
type Group struct {
	mu      sync.Mutex
	ctx     context.Context
	size    int
	current *round
	metrics *Metrics
}

func newGroup(ctx context.Context, size int, metrics *Metrics) *Group {
	return &Group{
		ctx:     ctx,
		size:    size,
		current: newRound(size),
		metrics: metrics,
	}
}

// Size returns the number of ranks in the group.
func (g *Group) Size() int {
	return g.size
}

/*
exchange deposits value for rank and blocks until every rank of the group has
deposited its own. It returns all values indexed by rank. When the group context
is cancelled while waiting, exchange returns ErrAborted instead of hanging.
*/
func (g *Group) exchange(rank int, value any) ([]any, error) {
	if rank < 0 || rank >= g.size {
		return nil, fmt.Errorf("%w: rank %d outside group of %d", ErrValidation, rank, g.size)
	}

	g.mu.Lock()
	r := g.current
	if r.arrived == 0 {
		r.started = time.Now()
	}
	r.values[rank] = value
	r.arrived++
	if r.arrived == g.size {
		g.current = newRound(g.size)
		close(r.done)
		if g.metrics != nil {
			g.metrics.recordCollective(r.started)
		}
	}
	g.mu.Unlock()

	select {
	case <-r.done:
		return r.values, nil
	case <-g.ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrAborted, g.ctx.Err())
	}
}
