package qchain

import (
	"fmt"
	"math"
)

/*
State is a vector of amplitudes over a Subspace, partitioned across the process
group. Every rank holds its own State value for the same logical state and calls
the same methods in the same order.

A State is uninitialized until it is first written by SetProduct, SetRandom or
by being the target of CopyInto. Every method that reads or mutates the data
fails with ErrUninitialized before that, since an all-zero vector cannot be told
apart from one that was never written.

A State is not safe for concurrent use by multiple goroutines of the same rank.
*/
type State struct {
	comm        *Comm
	l           int
	subspace    Subspace
	vec         *Vector
	initialized bool
	destroyed   bool
}

type stateConfig struct {
	l         int
	lSet      bool
	subspace  Subspace
	product   Product
	random    bool
	randomOps []RandomOption
}

// StateOption configures NewState.
type StateOption func(*stateConfig)

// WithL sets the chain length instead of taking it from the subspace or the config.
func WithL(L int) StateOption {
	return func(c *stateConfig) {
		c.l = L
		c.lSet = true
	}
}

// WithSubspace defines the state on sp instead of the full space.
func WithSubspace(sp Subspace) StateOption {
	return func(c *stateConfig) {
		c.subspace = sp
	}
}

// WithProduct initializes the new state to a product state.
func WithProduct(p Product) StateOption {
	return func(c *stateConfig) {
		c.product = p
	}
}

// WithRandom initializes the new state with SetRandom(opts...).
func WithRandom(opts ...RandomOption) StateOption {
	return func(c *stateConfig) {
		c.random = true
		c.randomOps = opts
	}
}

/*
NewState allocates a state on comm's process group.

Defaults are resolved once, here: the chain length comes from WithL, else from
the subspace, else from the runtime config; the subspace defaults to the full
space over that length. All validation happens before the first collective, so
identical arguments on every rank fail identically on every rank.
*/
func NewState(comm *Comm, opts ...StateOption) (*State, error) {
	cfg := &stateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := resolveDefaults(comm.Config(), cfg); err != nil {
		return nil, err
	}
	if cfg.product != nil && cfg.random {
		return nil, fmt.Errorf("%w: initial state must be either a product state or random", ErrValidation)
	}

	dim := cfg.subspace.Dimension()
	if dim > math.MaxInt64 {
		return nil, fmt.Errorf("%w: subspace dimension %d cannot be allocated", ErrValidation, dim)
	}

	vec, err := NewVector(comm, int64(dim))
	if err != nil {
		return nil, err
	}

	s := &State{
		comm:     comm,
		l:        cfg.l,
		subspace: cfg.subspace,
		vec:      vec,
	}

	switch {
	case cfg.product != nil:
		err = s.SetProduct(cfg.product)
	case cfg.random:
		err = s.SetRandom(cfg.randomOps...)
	}
	if err != nil {
		return nil, err
	}

	return s, nil
}

func resolveDefaults(config *Config, cfg *stateConfig) error {
	if !cfg.lSet {
		cfg.l = config.L
		if cfg.subspace != nil {
			cfg.l = cfg.subspace.L()
		}
	}

	if err := config.validateL(cfg.l); err != nil {
		return err
	}

	if cfg.subspace == nil {
		full, err := NewFull(cfg.l)
		if err != nil {
			return err
		}
		cfg.subspace = full
	}

	if cfg.subspace.L() != cfg.l {
		return fmt.Errorf(
			"%w: subspace is defined for L=%d but the state has L=%d", ErrValidation, cfg.subspace.L(), cfg.l,
		)
	}
	return nil
}

// NewLike allocates an uninitialized state with the same L and subspace as s.
func NewLike(s *State) (*State, error) {
	return NewState(s.comm, WithL(s.l), WithSubspace(s.subspace))
}

// L returns the spin chain length.
func (s *State) L() int { return s.l }

// Subspace returns the subspace the state is defined on.
func (s *State) Subspace() Subspace { return s.subspace }

// Vector returns the underlying distributed vector.
func (s *State) Vector() *Vector { return s.vec }

// Comm returns the process group handle the state lives on.
func (s *State) Comm() *Comm { return s.comm }

// Initialized reports whether the state has been written.
func (s *State) Initialized() bool { return s.initialized }

/*
MarkInitialized flags the state as written. Only needed by callers that fill
the vector themselves through Vector().
*/
func (s *State) MarkInitialized() { s.initialized = true }

// requireWritable rejects writes into a state whose storage was released.
func (s *State) requireWritable() error {
	if s.destroyed {
		return fmt.Errorf("%w: state has been destroyed", ErrValidation)
	}
	return nil
}

func (s *State) requireInitialized() error {
	if !s.initialized {
		return ErrUninitialized
	}
	return nil
}

/*
SetProduct sets the state to a single product state: every amplitude is zeroed
and the rank owning the state's basis index writes 1 there.
*/
func (s *State) SetProduct(p Product) error {
	if err := s.requireWritable(); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: product state must be a RawInteger or a Pattern", ErrValidation)
	}

	state, err := p.productState(s.l)
	if err != nil {
		return err
	}

	idx, ok := s.subspace.StateToIdx(state)
	if !ok {
		return fmt.Errorf("%w: product state %s is not in the subspace", ErrValidation, PatternOf(state, s.l))
	}

	s.vec.Fill(0)
	if s.vec.Set(idx, 1) {
		s.comm.Logger().Debug("set product state", "state", state, "idx", idx)
	}

	if err := s.vec.Assemble(); err != nil {
		return err
	}

	s.initialized = true
	return nil
}

/*
Copy returns a new state with the same L and subspace and a copy of every
amplitude.
*/
func (s *State) Copy() (*State, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}

	out, err := NewLike(s)
	if err != nil {
		return nil, err
	}
	if err := s.CopyInto(out); err != nil {
		return nil, err
	}
	return out, nil
}

/*
CopyInto copies every amplitude into target, index for index. Both states must
have the same L and identical subspaces; amplitudes are never remapped between
bases.
*/
func (s *State) CopyInto(target *State) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("%w: copy target is nil", ErrValidation)
	}
	if err := target.requireWritable(); err != nil {
		return err
	}
	if target.l != s.l {
		return fmt.Errorf("%w: cannot copy a state with L=%d into one with L=%d", ErrValidation, s.l, target.l)
	}
	if !s.subspace.Identical(target.subspace) {
		return fmt.Errorf("%w: cannot copy between states on different subspaces", ErrValidation)
	}

	if err := s.vec.CopyTo(target.vec); err != nil {
		return err
	}

	target.initialized = true
	return nil
}

/*
Project zeroes every amplitude whose product state does not have spin idx equal
to value (0 = down, 1 = up). The result is in general not normalized.
*/
func (s *State) Project(idx, value int) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if idx < 0 || idx >= s.l {
		return fmt.Errorf("%w: index must be in [0, %d) (got %d)", ErrValidation, s.l, idx)
	}
	if value != 0 && value != 1 {
		return fmt.Errorf("%w: projection value must be 0 or 1 (got %d)", ErrValidation, value)
	}

	start, _ := s.vec.OwnershipRange()
	local := s.vec.Local()
	for k := range local {
		state, _ := s.subspace.IdxToState(start + int64(k))
		if int(state>>uint(idx)&1) != value {
			local[k] = 0
		}
	}

	return s.vec.Assemble()
}

/*
Collect returns the amplitudes in global basis order. With toAll false only the
root rank receives them and every other rank gets nil.
*/
func (s *State) Collect(toAll bool) ([]complex128, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	if toAll {
		return s.vec.GatherToAll()
	}
	return s.vec.GatherToRoot()
}

// Norm returns the 2-norm of the state.
func (s *State) Norm() (float64, error) {
	if err := s.requireInitialized(); err != nil {
		return 0, err
	}
	return s.vec.Norm()
}

// Normalize rescales the state to norm 1.
func (s *State) Normalize() error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	_, err := s.vec.Normalize()
	return err
}

// Scale multiplies every amplitude by c.
func (s *State) Scale(c complex128) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	s.vec.Scale(c)
	return nil
}

/*
MulAssign multiplies the state by a scalar given as any Go integer, float or
complex value. Anything else, a slice or another State included, is ErrType.
*/
func (s *State) MulAssign(v any) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	c, err := toScalar(v)
	if err != nil {
		return err
	}
	return s.Scale(c)
}

// DivAssign divides the state by a scalar; see MulAssign.
func (s *State) DivAssign(v any) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	c, err := toScalar(v)
	if err != nil {
		return err
	}
	if c == 0 {
		return fmt.Errorf("%w: division by zero", ErrValidation)
	}
	return s.Scale(1 / c)
}

// Dot returns ⟨s|other⟩, conjugating s.
func (s *State) Dot(other *State) (complex128, error) {
	if err := s.requireInitialized(); err != nil {
		return 0, err
	}
	if other == nil {
		return 0, fmt.Errorf("%w: dot operand is nil", ErrValidation)
	}
	if err := other.requireInitialized(); err != nil {
		return 0, err
	}
	return s.vec.Dot(other.vec)
}

// Equal reports whether both states are on identical subspaces and hold bit-identical amplitudes.
func (s *State) Equal(other *State) (bool, error) {
	if err := s.requireInitialized(); err != nil {
		return false, err
	}
	if other == nil {
		return false, fmt.Errorf("%w: comparison operand is nil", ErrValidation)
	}
	if err := other.requireInitialized(); err != nil {
		return false, err
	}
	if !s.subspace.Identical(other.subspace) {
		return false, fmt.Errorf("%w: cannot compare states on different subspaces", ErrValidation)
	}
	return s.vec.Equal(other.vec)
}

// Destroy releases the local partition. Later writes fail with ErrValidation and
// reads with ErrUninitialized.
func (s *State) Destroy() {
	s.vec.Destroy()
	s.initialized = false
	s.destroyed = true
}

func toScalar(v any) (complex128, error) {
	switch x := v.(type) {
	case int:
		return complex(float64(x), 0), nil
	case int8:
		return complex(float64(x), 0), nil
	case int16:
		return complex(float64(x), 0), nil
	case int32:
		return complex(float64(x), 0), nil
	case int64:
		return complex(float64(x), 0), nil
	case uint:
		return complex(float64(x), 0), nil
	case uint8:
		return complex(float64(x), 0), nil
	case uint16:
		return complex(float64(x), 0), nil
	case uint32:
		return complex(float64(x), 0), nil
	case uint64:
		return complex(float64(x), 0), nil
	case float32:
		return complex(float64(x), 0), nil
	case float64:
		return complex(x, 0), nil
	case complex64:
		return complex128(x), nil
	case complex128:
		return x, nil
	default:
		return 0, fmt.Errorf("%w: can only scale a state by a scalar (got %T)", ErrType, v)
	}
}
