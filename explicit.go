package qchain

import (
	"fmt"
	"slices"
)

/*
Explicit retains an arbitrary list of product states, indexed in increasing
integer order. It is the stored form of sectors that were discovered at runtime
(for example by exploring which states an operator connects to a seed state).
*/
type Explicit struct {
	l      int
	states []uint64
}

// NewExplicit sorts and de-duplicates states. The list must not be empty.
func NewExplicit(L int, states []uint64) (*Explicit, error) {
	if err := checkChainLength(L); err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: explicit subspace needs at least one state", ErrValidation)
	}

	sorted := slices.Clone(states)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	if last := sorted[len(sorted)-1]; last&^stateMask(L) != 0 {
		return nil, fmt.Errorf("%w: state %d does not fit %d sites", ErrValidation, last, L)
	}

	return &Explicit{l: L, states: sorted}, nil
}

func (e *Explicit) L() int { return e.l }

func (e *Explicit) Dimension() uint64 {
	return uint64(len(e.states))
}

// States returns the retained product states in basis order.
func (e *Explicit) States() []uint64 {
	return slices.Clone(e.states)
}

func (e *Explicit) StateToIdx(state uint64) (int64, bool) {
	idx, found := slices.BinarySearch(e.states, state)
	return int64(idx), found
}

func (e *Explicit) IdxToState(idx int64) (uint64, float64) {
	return e.states[idx], 1
}

func (e *Explicit) Identical(other Subspace) bool {
	o, ok := other.(*Explicit)
	return ok && o.l == e.l && slices.Equal(o.states, e.states)
}

func (e *Explicit) Descriptor() Descriptor {
	return Descriptor{Kind: KindExplicit, L: e.l, States: slices.Clone(e.states)}
}
