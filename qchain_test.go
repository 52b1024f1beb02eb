package qchain

import (
	"context"
	"math"
	"math/bits"
	"time"
)

const (
	testTimeout = 5 * time.Second
	testL       = 6
	tolerance   = 1e-12
)

var groupSizes = []int{1, 2, 3}

func testConfig(processes int) *Config {
	cfg := NewConfig()
	cfg.L = testL
	cfg.Processes = processes
	cfg.LogLevel = "error"
	return cfg
}

/*
runRanks runs fn on every rank of a fresh group of the given size and returns
the first error any rank reported.
*/
func runRanks(processes int, fn func(comm *Comm) error) error {
	return runConfig(testConfig(processes), fn)
}

func runConfig(cfg *Config, fn func(comm *Comm) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	rt := NewRuntime(ctx, cfg)
	defer rt.Close()

	if err := rt.Start(); err != nil {
		return err
	}

	return rt.Run(func(_ context.Context, comm *Comm) error {
		return fn(comm)
	})
}

/*
collectRoot runs fn on every rank and returns what the root rank produced.
*/
func collectRoot[T any](processes int, fn func(comm *Comm) (T, error)) (T, error) {
	var out T
	err := runRanks(processes, func(comm *Comm) error {
		v, err := fn(comm)
		if err != nil {
			return err
		}
		if comm.IsRoot() {
			out = v
		}
		return nil
	})
	return out, err
}

// sigmaZ is ⟨σz_site⟩ of the amplitudes over sub, with spin down counted as +1.
func sigmaZ(sub Subspace, amps []complex128, site int) float64 {
	var num, den float64
	for i, a := range amps {
		state, _ := sub.IdxToState(int64(i))
		p := real(a)*real(a) + imag(a)*imag(a)
		if state>>uint(site)&1 == 0 {
			num += p
		} else {
			num -= p
		}
		den += p
	}
	return num / den
}

// gatherErrors returns every rank's error, indexed by rank.
func gatherErrors(comm *Comm, local error) ([]error, error) {
	boxes, err := AllGather(comm, errBox{err: local})
	if err != nil {
		return nil, err
	}
	out := make([]error, len(boxes))
	for i, box := range boxes {
		out[i] = box.err
	}
	return out, nil
}

func maxAbsDiff(a, b []complex128) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var worst float64
	for i := range a {
		d := a[i] - b[i]
		worst = math.Max(worst, math.Hypot(real(d), imag(d)))
	}
	return worst
}

func popcount(state uint64) int {
	return bits.OnesCount64(state)
}
