package qchain

import (
	"fmt"
	"math"
	"math/cmplx"
)

/*
Vector is a complex vector partitioned contiguously over the process group.
Each rank stores only its own half-open range [start, end) of global indices.

Writes to indices outside the local range are skipped; values owned by other
ranks can only be reached through the collective methods. Every method that
ends in a collective must be called on all ranks.
*/
type Vector struct {
	comm  *Comm
	size  int64
	start int64
	end   int64
	local []complex128
}

// NewVector allocates a zeroed vector of the given global size.
func NewVector(comm *Comm, size int64) (*Vector, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: vector size must be nonnegative (got %d)", ErrValidation, size)
	}

	// checked against the largest partition so every rank fails alike
	largest := size / int64(comm.Size())
	if size%int64(comm.Size()) != 0 {
		largest++
	}
	if limit := comm.Config().maxLocalLength(); largest > limit {
		return nil, fmt.Errorf(
			"%w: subspace dimension %d cannot be allocated (%d amplitudes per rank, limit %d)",
			ErrValidation, size, largest, limit,
		)
	}

	start, end := ownershipRange(size, comm.Rank(), comm.Size())
	return &Vector{
		comm:  comm,
		size:  size,
		start: start,
		end:   end,
		local: make([]complex128, end-start),
	}, nil
}

/*
ownershipRange splits n elements over size ranks: every rank gets n/size
elements and the first n%size ranks get one more.
*/
func ownershipRange(n int64, rank, size int) (int64, int64) {
	base := n / int64(size)
	extra := n % int64(size)
	r := int64(rank)

	start := r*base + min(r, extra)
	end := start + base
	if r < extra {
		end++
	}
	return start, end
}

// Size returns the global length.
func (v *Vector) Size() int64 {
	return v.size
}

// OwnershipRange returns the half-open global range stored on this rank.
func (v *Vector) OwnershipRange() (int64, int64) {
	return v.start, v.end
}

// Owns reports whether global index i is stored on this rank.
func (v *Vector) Owns(i int64) bool {
	return v.start <= i && i < v.end
}

// Local returns the locally owned slice. Element k is global index start+k.
func (v *Vector) Local() []complex128 {
	return v.local
}

// Get returns the value at global index i if it is owned locally.
func (v *Vector) Get(i int64) (complex128, bool) {
	if !v.Owns(i) {
		return 0, false
	}
	return v.local[i-v.start], true
}

// Set writes value at global index i if it is owned locally and reports whether it did.
func (v *Vector) Set(i int64, value complex128) bool {
	if !v.Owns(i) {
		return false
	}
	v.local[i-v.start] = value
	return true
}

// Fill sets every local element to value.
func (v *Vector) Fill(value complex128) {
	for i := range v.local {
		v.local[i] = value
	}
}

/*
Assemble is the write-assembly barrier. After it returns on every rank, all
writes issued before it are visible to subsequent collectives.
*/
func (v *Vector) Assemble() error {
	return v.comm.Barrier()
}

// Norm returns the global 2-norm.
func (v *Vector) Norm() (float64, error) {
	var local float64
	for _, a := range v.local {
		re, im := real(a), imag(a)
		local += re*re + im*im
	}

	sum, err := AllReduceSum(v.comm, local)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(sum), nil
}

// Normalize divides the vector by its norm and returns the norm it had.
func (v *Vector) Normalize() (float64, error) {
	norm, err := v.Norm()
	if err != nil {
		return 0, err
	}
	if norm == 0 {
		return 0, fmt.Errorf("%w: cannot normalize a zero vector", ErrValidation)
	}

	for i, a := range v.local {
		v.local[i] = complex(real(a)/norm, imag(a)/norm)
	}
	return norm, nil
}

// Scale multiplies every local element by c.
func (v *Vector) Scale(c complex128) {
	for i := range v.local {
		v.local[i] *= c
	}
}

// Dot returns Σ conj(v_i)·other_i over the whole global range.
func (v *Vector) Dot(other *Vector) (complex128, error) {
	if err := v.compatible(other); err != nil {
		return 0, err
	}

	var local complex128
	for i, a := range v.local {
		local += cmplx.Conj(a) * other.local[i]
	}
	return AllReduceSum(v.comm, local)
}

// CopyTo copies every element into dst, which must have the same size.
func (v *Vector) CopyTo(dst *Vector) error {
	if err := v.compatible(dst); err != nil {
		return err
	}

	copy(dst.local, v.local)
	return dst.Assemble()
}

// Equal reports on every rank whether both vectors hold bit-identical values.
func (v *Vector) Equal(other *Vector) (bool, error) {
	if err := v.compatible(other); err != nil {
		return false, err
	}

	same := true
	for i, a := range v.local {
		b := other.local[i]
		if math.Float64bits(real(a)) != math.Float64bits(real(b)) ||
			math.Float64bits(imag(a)) != math.Float64bits(imag(b)) {
			same = false
			break
		}
	}
	return AllReduceAnd(v.comm, same)
}

// GatherToRoot returns the whole vector in global order on the root rank and nil elsewhere.
func (v *Vector) GatherToRoot() ([]complex128, error) {
	full, err := v.gather()
	if err != nil {
		return nil, err
	}
	if !v.comm.IsRoot() {
		return nil, nil
	}
	return full, nil
}

// GatherToAll returns the whole vector in global order on every rank.
func (v *Vector) GatherToAll() ([]complex128, error) {
	return v.gather()
}

func (v *Vector) gather() ([]complex128, error) {
	part := make([]complex128, len(v.local))
	copy(part, v.local)

	parts, err := AllGather(v.comm, part)
	if err != nil {
		return nil, err
	}
	if v.comm.IsRoot() {
		v.comm.metrics.recordGather(int(v.size))
	}

	full := make([]complex128, 0, v.size)
	for _, p := range parts {
		full = append(full, p...)
	}
	return full, nil
}

// Destroy releases the local partition. Afterwards the vector owns no indices.
func (v *Vector) Destroy() {
	v.local = nil
	v.start, v.end = 0, 0
}

/*
compatible checks that two vectors can be combined element-wise. Vectors of
the same size on the same group always share the partition.
*/
func (v *Vector) compatible(other *Vector) error {
	if other == nil {
		return fmt.Errorf("%w: vector is nil", ErrValidation)
	}
	if v.size != other.size {
		return fmt.Errorf("%w: vector sizes differ (%d vs %d)", ErrValidation, v.size, other.size)
	}
	if v.comm.group != other.comm.group {
		return fmt.Errorf("%w: vectors belong to different process groups", ErrValidation)
	}
	return nil
}
