package qchain

import (
	"fmt"
	"math"
)

/*
ConvertSpinFlip maps a state on a spin-flip sector of a SpinConserve subspace
to the equivalent state on the parent SpinConserve subspace.

Sector basis vector i stands for (|s⟩ + sign·|~s⟩)/√2 with s = IdxToState(i),
so its amplitude a contributes a/√2 at the parent index of s and sign·a/√2 at
the parent index of ~s.
*/
func ConvertSpinFlip(state *State) (*State, error) {
	if err := state.requireInitialized(); err != nil {
		return nil, err
	}

	sector, ok := state.subspace.(*SpinConserve)
	if !ok {
		return nil, fmt.Errorf("%w: spinflip conversion needs a SpinConserve subspace (got %T)", ErrValidation, state.subspace)
	}
	if sector.Sign() == SignNone {
		return nil, fmt.Errorf("%w: spinflip sign must be provided", ErrValidation)
	}

	parent := sector.Parent()
	out, err := NewState(state.comm, WithL(state.l), WithSubspace(parent))
	if err != nil {
		return nil, err
	}

	amps, err := state.vec.GatherToAll()
	if err != nil {
		return nil, err
	}

	// every parent index is the image of exactly one sector index
	sign := float64(sector.Sign())
	start, _ := out.vec.OwnershipRange()
	local := out.vec.Local()
	for k := range local {
		s, _ := parent.IdxToState(start + int64(k))
		i, _ := sector.StateToIdx(s)
		a := amps[i]

		rep, _ := sector.IdxToState(i)
		if s != rep {
			a *= complex(sign, 0)
		}
		local[k] = complex(real(a)/math.Sqrt2, imag(a)/math.Sqrt2)
	}

	if err := out.vec.Assemble(); err != nil {
		return nil, err
	}

	out.initialized = true
	return out, nil
}

/*
ConvertToSector is the inverse of ConvertSpinFlip: it projects a state on a
SpinConserve subspace without a sign onto the given spin-flip sector. For each
pair {s, ~s} the sector amplitude at the representative's index is
(v_s + sign·v_~s)/√2.
*/
func ConvertToSector(state *State, sign Sign) (*State, error) {
	if err := state.requireInitialized(); err != nil {
		return nil, err
	}
	if sign != SignPlus && sign != SignMinus {
		return nil, fmt.Errorf("%w: spinflip sign must be provided", ErrValidation)
	}

	parent, ok := state.subspace.(*SpinConserve)
	if !ok {
		return nil, fmt.Errorf("%w: spinflip conversion needs a SpinConserve subspace (got %T)", ErrValidation, state.subspace)
	}
	if parent.Sign() != SignNone {
		return nil, fmt.Errorf("%w: state is already in a spinflip sector", ErrValidation)
	}

	sector, err := parent.WithSign(sign)
	if err != nil {
		return nil, err
	}

	out, err := NewState(state.comm, WithL(state.l), WithSubspace(sector))
	if err != nil {
		return nil, err
	}

	amps, err := state.vec.GatherToAll()
	if err != nil {
		return nil, err
	}

	start, _ := out.vec.OwnershipRange()
	local := out.vec.Local()
	for k := range local {
		s, _ := sector.IdxToState(start + int64(k))
		j, _ := parent.StateToIdx(s)
		jFlip, _ := parent.StateToIdx(flip(s, state.l))

		v := amps[j] + complex(float64(sign), 0)*amps[jFlip]
		local[k] = complex(real(v)/math.Sqrt2, imag(v)/math.Sqrt2)
	}

	if err := out.vec.Assemble(); err != nil {
		return nil, err
	}

	out.initialized = true
	return out, nil
}
