package qchain

import (
	"fmt"

	"github.com/charmbracelet/log"
)

/*
Comm is one rank's handle on the process group. Each rank goroutine receives its
own Comm from Runtime.Run; every collective on it must be called by all ranks in
the same order.
*/
type Comm struct {
	rank    int
	group   *Group
	config  *Config
	logger  *log.Logger
	metrics *Metrics
}

// Rank returns this process' index in the group.
func (c *Comm) Rank() int {
	return c.rank
}

// Size returns the number of processes in the group.
func (c *Comm) Size() int {
	return c.group.Size()
}

// Root returns the rank that performs root-only work.
func (c *Comm) Root() int {
	return c.config.Root
}

// IsRoot reports whether this process is the root rank.
func (c *Comm) IsRoot() bool {
	return c.rank == c.config.Root
}

// Config returns the runtime configuration. It must not be modified.
func (c *Comm) Config() *Config {
	return c.config
}

// Logger returns the rank-scoped logger.
func (c *Comm) Logger() *log.Logger {
	return c.logger
}

// Barrier blocks until every rank has reached it.
func (c *Comm) Barrier() error {
	_, err := c.group.exchange(c.rank, nil)
	return err
}

/*
Broadcast returns the root's value on every rank. Values passed by non-root ranks
are ignored.
*/
func Broadcast[T any](c *Comm, value T) (T, error) {
	var zero T

	values, err := c.group.exchange(c.rank, value)
	if err != nil {
		return zero, err
	}
	if c.IsRoot() {
		c.metrics.recordBroadcast()
	}

	out, ok := values[c.config.Root].(T)
	if !ok {
		return zero, fmt.Errorf("%w: broadcast payload has type %T", ErrValidation, values[c.config.Root])
	}
	return out, nil
}

/*
AllGather returns every rank's value, indexed by rank, on every rank.
*/
func AllGather[T any](c *Comm, value T) ([]T, error) {
	values, err := c.group.exchange(c.rank, value)
	if err != nil {
		return nil, err
	}

	out := make([]T, len(values))
	for i, v := range values {
		typed, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("%w: rank %d contributed %T", ErrValidation, i, v)
		}
		out[i] = typed
	}
	return out, nil
}

// AllReduceSum returns the sum of every rank's value on every rank.
func AllReduceSum[T float64 | complex128 | int64](c *Comm, value T) (T, error) {
	var sum T

	values, err := AllGather(c, value)
	if err != nil {
		return sum, err
	}
	if c.IsRoot() {
		c.metrics.recordReduction()
	}

	// summed in rank order so every rank gets a bit-identical result
	for _, v := range values {
		sum += v
	}
	return sum, nil
}

// AllReduceAnd returns true on every rank when every rank passed true.
func AllReduceAnd(c *Comm, value bool) (bool, error) {
	values, err := AllGather(c, value)
	if err != nil {
		return false, err
	}
	for _, v := range values {
		if !v {
			return false, nil
		}
	}
	return true, nil
}

type errBox struct {
	err error
}

/*
agreeOnError shares a possibly rank-local error with the whole group. When any
rank failed, every rank returns an error: the failing rank its own, the others
the first failure in rank order, still matching its class under errors.Is. Used
after root-only work (file I/O) so that all ranks take the same branch afterwards.
*/
func agreeOnError(c *Comm, local error) error {
	boxes, err := AllGather(c, errBox{err: local})
	if err != nil {
		return err
	}
	if local != nil {
		return local
	}
	for rank, box := range boxes {
		if box.err != nil {
			return fmt.Errorf("rank %d: %w", rank, box.err)
		}
	}
	return nil
}
