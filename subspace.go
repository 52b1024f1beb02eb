package qchain

import (
	"fmt"
	"math/bits"
)

/*
Subspace maps between product-state integers and a contiguous basis index
range [0, Dimension()). A product state is an L-bit integer where bit i is
spin i (1 = up, 0 = down).

Subspaces are immutable after construction and may be shared by any number of
States.
*/
type Subspace interface {
	// L returns the chain length the subspace is defined over.
	L() int
	// Dimension returns the number of basis states retained.
	Dimension() uint64
	// StateToIdx returns the basis index of a product state, or false if the
	// subspace does not retain it.
	StateToIdx(state uint64) (int64, bool)
	// IdxToState returns the product state at a basis index together with the
	// weight it carries in that basis vector.
	IdxToState(idx int64) (uint64, float64)
	// Identical reports whether other has the same type and parameters.
	Identical(other Subspace) bool
	// Descriptor returns the parameters needed to rebuild an identical subspace.
	Descriptor() Descriptor
}

// Subspace kinds as written in a Descriptor.
const (
	KindFull         = "full"
	KindParity       = "parity"
	KindSpinConserve = "spinconserve"
	KindExplicit     = "explicit"
)

/*
Descriptor is the serializable form of a subspace. Only the fields relevant to
Kind are set.
*/
type Descriptor struct {
	Kind   string   `cbor:"kind"`
	L      int      `cbor:"l"`
	Parity int      `cbor:"parity,omitempty"`
	K      int      `cbor:"k,omitempty"`
	Sign   string   `cbor:"sign,omitempty"`
	States []uint64 `cbor:"states,omitempty"`
}

// FromDescriptor rebuilds the subspace a Descriptor was taken from.
func FromDescriptor(d Descriptor) (Subspace, error) {
	switch d.Kind {
	case KindFull:
		return NewFull(d.L)
	case KindParity:
		return NewParity(d.L, ParityKind(d.Parity))
	case KindSpinConserve:
		sign, err := ParseSign(d.Sign)
		if err != nil {
			return nil, err
		}
		return NewSpinConserve(d.L, d.K, sign)
	case KindExplicit:
		return NewExplicit(d.L, d.States)
	default:
		return nil, fmt.Errorf("%w: unknown subspace kind %q", ErrValidation, d.Kind)
	}
}

func checkChainLength(L int) error {
	if L < 0 || L > MaxL {
		return fmt.Errorf("%w: spin chain length must be in [0, %d] (got %d)", ErrValidation, MaxL, L)
	}
	return nil
}

// stateMask has the low L bits set.
func stateMask(L int) uint64 {
	return (uint64(1) << uint(L)) - 1
}

// flip returns the global spin flip of state over L sites.
func flip(state uint64, L int) uint64 {
	return ^state & stateMask(L)
}

/*
Full is the whole 2^L dimensional Hilbert space; basis index and product state
coincide.
*/
type Full struct {
	l int
}

func NewFull(L int) (*Full, error) {
	if err := checkChainLength(L); err != nil {
		return nil, err
	}
	return &Full{l: L}, nil
}

func (f *Full) L() int { return f.l }

func (f *Full) Dimension() uint64 {
	return uint64(1) << uint(f.l)
}

func (f *Full) StateToIdx(state uint64) (int64, bool) {
	if state&^stateMask(f.l) != 0 {
		return 0, false
	}
	return int64(state), true
}

func (f *Full) IdxToState(idx int64) (uint64, float64) {
	return uint64(idx), 1
}

func (f *Full) Identical(other Subspace) bool {
	o, ok := other.(*Full)
	return ok && o.l == f.l
}

func (f *Full) Descriptor() Descriptor {
	return Descriptor{Kind: KindFull, L: f.l}
}

// ParityKind selects the even or odd total up-spin count sector.
type ParityKind int

const (
	Even ParityKind = 0
	Odd  ParityKind = 1
)

func (p ParityKind) String() string {
	if p == Odd {
		return "odd"
	}
	return "even"
}

/*
Parity retains the product states whose number of up spins has a fixed parity.
Spin 0 is implied by the others, so the basis index is the state shifted right
by one.
*/
type Parity struct {
	l      int
	parity ParityKind
}

func NewParity(L int, parity ParityKind) (*Parity, error) {
	if err := checkChainLength(L); err != nil {
		return nil, err
	}
	if L < 1 {
		return nil, fmt.Errorf("%w: parity subspace needs at least one site", ErrValidation)
	}
	if parity != Even && parity != Odd {
		return nil, fmt.Errorf("%w: parity must be even or odd (got %d)", ErrValidation, parity)
	}
	return &Parity{l: L, parity: parity}, nil
}

func (p *Parity) L() int { return p.l }

// Kind returns the retained parity.
func (p *Parity) Kind() ParityKind { return p.parity }

func (p *Parity) Dimension() uint64 {
	return uint64(1) << uint(p.l-1)
}

func (p *Parity) StateToIdx(state uint64) (int64, bool) {
	if state&^stateMask(p.l) != 0 {
		return 0, false
	}
	if ParityKind(bits.OnesCount64(state)&1) != p.parity {
		return 0, false
	}
	return int64(state >> 1), true
}

func (p *Parity) IdxToState(idx int64) (uint64, float64) {
	rest := uint64(idx) << 1
	spin0 := uint64(bits.OnesCount64(rest)&1) ^ uint64(p.parity)
	return rest | spin0, 1
}

func (p *Parity) Identical(other Subspace) bool {
	o, ok := other.(*Parity)
	return ok && o.l == p.l && o.parity == p.parity
}

func (p *Parity) Descriptor() Descriptor {
	return Descriptor{Kind: KindParity, L: p.l, Parity: int(p.parity)}
}
