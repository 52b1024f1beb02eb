package qchain

import (
	"fmt"
	"math/bits"
)

// Sign selects the spin-flip sector of a SpinConserve subspace.
type Sign int8

const (
	SignNone  Sign = 0
	SignPlus  Sign = 1
	SignMinus Sign = -1
)

func (s Sign) String() string {
	switch s {
	case SignPlus:
		return "+"
	case SignMinus:
		return "-"
	default:
		return ""
	}
}

// ParseSign accepts "+", "-" and the empty string for no sector.
func ParseSign(s string) (Sign, error) {
	switch s {
	case "+":
		return SignPlus, nil
	case "-":
		return SignMinus, nil
	case "":
		return SignNone, nil
	default:
		return SignNone, fmt.Errorf("%w: spinflip sign must be '+' or '-' (got %q)", ErrValidation, s)
	}
}

// binomial[n][k] = C(n, k) for n, k <= 64. C(63, 31) still fits an int64.
var binomial = func() [MaxL + 2][MaxL + 2]int64 {
	var t [MaxL + 2][MaxL + 2]int64
	for n := 0; n <= MaxL+1; n++ {
		t[n][0] = 1
		for k := 1; k <= n; k++ {
			t[n][k] = t[n-1][k-1] + t[n-1][k]
		}
	}
	return t
}()

/*
SpinConserve retains the product states with exactly k up spins, indexed in
increasing integer order (the colexicographic rank of the set of up sites).

With a spin-flip sign the subspace is further reduced to the symmetric ("+") or
antisymmetric ("-") combinations (|s⟩ ± |~s⟩)/√2. Each pair {s, ~s} is
represented by the member with spin L-1 down, which is the numerically smaller
one; representatives are exactly the first half of the parent's basis. This
requires an even L and k = L/2.
*/
type SpinConserve struct {
	l    int
	k    int
	sign Sign
}

func NewSpinConserve(L, k int, sign Sign) (*SpinConserve, error) {
	if err := checkChainLength(L); err != nil {
		return nil, err
	}
	if k < 0 || k > L {
		return nil, fmt.Errorf("%w: number of up spins k must be in [0, %d] (got %d)", ErrValidation, L, k)
	}
	switch sign {
	case SignNone:
	case SignPlus, SignMinus:
		if L < 2 || L%2 != 0 || k != L/2 {
			return nil, fmt.Errorf(
				"%w: spinflip requires an even L >= 2 and k = L/2 (got L=%d, k=%d)", ErrValidation, L, k,
			)
		}
	default:
		return nil, fmt.Errorf("%w: invalid spinflip sign %d", ErrValidation, sign)
	}
	return &SpinConserve{l: L, k: k, sign: sign}, nil
}

func (sc *SpinConserve) L() int { return sc.l }

// K returns the number of up spins.
func (sc *SpinConserve) K() int { return sc.k }

// Sign returns the spin-flip sector, SignNone when the subspace has none.
func (sc *SpinConserve) Sign() Sign { return sc.sign }

// Parent returns the same subspace without the spin-flip reduction.
func (sc *SpinConserve) Parent() *SpinConserve {
	return &SpinConserve{l: sc.l, k: sc.k}
}

// WithSign returns the spin-flip sector of this subspace's parent.
func (sc *SpinConserve) WithSign(sign Sign) (*SpinConserve, error) {
	return NewSpinConserve(sc.l, sc.k, sign)
}

func (sc *SpinConserve) Dimension() uint64 {
	dim := uint64(binomial[sc.l][sc.k])
	if sc.sign != SignNone {
		dim /= 2
	}
	return dim
}

func (sc *SpinConserve) StateToIdx(state uint64) (int64, bool) {
	if state&^stateMask(sc.l) != 0 || bits.OnesCount64(state) != sc.k {
		return 0, false
	}
	if sc.sign != SignNone && state>>uint(sc.l-1)&1 == 1 {
		state = flip(state, sc.l)
	}
	return sc.rank(state), true
}

func (sc *SpinConserve) IdxToState(idx int64) (uint64, float64) {
	return sc.unrank(idx), 1
}

func (sc *SpinConserve) Identical(other Subspace) bool {
	o, ok := other.(*SpinConserve)
	return ok && o.l == sc.l && o.k == sc.k && o.sign == sc.sign
}

func (sc *SpinConserve) Descriptor() Descriptor {
	return Descriptor{Kind: KindSpinConserve, L: sc.l, K: sc.k, Sign: sc.sign.String()}
}

// rank returns the colex rank of the up sites of state: Σ_j C(p_j, j).
func (sc *SpinConserve) rank(state uint64) int64 {
	var idx int64
	j := 0
	for state != 0 {
		p := bits.TrailingZeros64(state)
		j++
		idx += binomial[p][j]
		state &= state - 1
	}
	return idx
}

func (sc *SpinConserve) unrank(idx int64) uint64 {
	var state uint64
	p := sc.l - 1
	for j := sc.k; j >= 1; j-- {
		for binomial[p][j] > idx {
			p--
		}
		idx -= binomial[p][j]
		state |= uint64(1) << uint(p)
		p--
	}
	return state
}
