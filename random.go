package qchain

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"time"
)

type randomConfig struct {
	seed      uint32
	seeded    bool
	normalize bool
}

// RandomOption configures SetRandom.
type RandomOption func(*randomConfig)

/*
Seeded fixes the base seed. Every rank must pass the same value; rank r then
draws from stream seed + r, so the result depends only on the seed and the
group size.
*/
func Seeded(seed uint32) RandomOption {
	return func(c *randomConfig) {
		c.seed = seed
		c.seeded = true
	}
}

// Unnormalized keeps the raw Gaussian amplitudes instead of rescaling to norm 1.
func Unnormalized() RandomOption {
	return func(c *randomConfig) {
		c.normalize = false
	}
}

/*
SetRandom fills the state with independent standard complex-normal amplitudes
and, unless Unnormalized is given, rescales it to norm 1, which makes it
uniformly distributed on the unit sphere of the subspace.

Without Seeded, the root rank draws a base seed from the operating system's
entropy source (falling back to the clock) and broadcasts it.
*/
func (s *State) SetRandom(opts ...RandomOption) error {
	if err := s.requireWritable(); err != nil {
		return err
	}

	cfg := &randomConfig{normalize: true}
	for _, opt := range opts {
		opt(cfg)
	}

	seed := cfg.seed
	if !cfg.seeded {
		var err error
		if seed, err = EntropySeed(s.comm); err != nil {
			return err
		}
	}

	// wraps mod 2^32
	stream := seed + uint32(s.comm.Rank())
	rng := mrand.New(mrand.NewSource(int64(stream)))

	local := s.vec.Local()
	re := make([]float64, len(local))
	for i := range re {
		re[i] = rng.NormFloat64()
	}
	for i := range local {
		local[i] = complex(re[i], rng.NormFloat64())
	}

	if err := s.vec.Assemble(); err != nil {
		return err
	}

	if cfg.normalize {
		if _, err := s.vec.Normalize(); err != nil {
			return err
		}
	}

	s.comm.Logger().Debug("set random state", "seed", seed, "stream", stream, "normalized", cfg.normalize)
	s.initialized = true
	return nil
}

/*
EntropySeed returns, on every rank, a base seed drawn by the root from
crypto/rand. If the entropy source fails the root falls back to the clock, so
the ranks never need a shared entropy source of their own.
*/
func EntropySeed(comm *Comm) (uint32, error) {
	var draw seedDraw

	if comm.IsRoot() {
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			comm.Logger().Warn("entropy source unavailable, seeding from clock", "err", err)
			draw.fallback = true
		} else {
			draw.seed = binary.BigEndian.Uint32(buf[:])
		}
	}

	draw, err := Broadcast(comm, draw)
	if err != nil {
		return 0, err
	}
	if draw.fallback {
		return GenerateTimeSeed(comm)
	}
	return draw.seed, nil
}

type seedDraw struct {
	seed     uint32
	fallback bool
}

// GenerateTimeSeed returns, on every rank, the root's wall-clock time in seconds.
func GenerateTimeSeed(comm *Comm) (uint32, error) {
	var seed uint32
	if comm.IsRoot() {
		seed = uint32(time.Now().Unix())
	}
	return Broadcast(comm, seed)
}
