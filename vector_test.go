package qchain

import (
	"errors"
	"fmt"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestVector(t *testing.T) {
	for _, size := range groupSizes {
		Convey(fmt.Sprintf("Given a vector of 10 elements on %d processes", size), t, func() {
			const n = 10

			Convey("Set should only write owned indices", func() {
				written := make([]int, size)
				err := runRanks(size, func(comm *Comm) error {
					v, err := NewVector(comm, n)
					if err != nil {
						return err
					}
					for i := int64(0); i < n; i++ {
						if v.Set(i, complex(float64(i), 0)) {
							written[comm.Rank()]++
						}
					}
					return v.Assemble()
				})
				So(err, ShouldBeNil)

				total := 0
				for _, w := range written {
					total += w
				}
				So(total, ShouldEqual, n)
			})

			Convey("Gathers should return the global order", func() {
				full, err := collectRoot(size, func(comm *Comm) ([]complex128, error) {
					v, err := NewVector(comm, n)
					if err != nil {
						return nil, err
					}
					start, end := v.OwnershipRange()
					for i := start; i < end; i++ {
						v.Set(i, complex(float64(i), -float64(i)))
					}
					if err := v.Assemble(); err != nil {
						return nil, err
					}

					all, err := v.GatherToAll()
					if err != nil {
						return nil, err
					}
					root, err := v.GatherToRoot()
					if err != nil {
						return nil, err
					}
					if !comm.IsRoot() && root != nil {
						return nil, errors.New("non-root rank received data")
					}
					if len(all) != n {
						return nil, fmt.Errorf("gather to all returned %d elements", len(all))
					}
					return root, nil
				})
				So(err, ShouldBeNil)
				So(len(full), ShouldEqual, n)
				for i, a := range full {
					So(a, ShouldEqual, complex(float64(i), -float64(i)))
				}
			})

			Convey("Norm, Dot and Normalize should reduce over the group", func() {
				type result struct {
					norm, after float64
					dot         complex128
				}
				got, err := collectRoot(size, func(comm *Comm) (result, error) {
					var r result
					a, _ := NewVector(comm, n)
					b, _ := NewVector(comm, n)
					a.Fill(1i)
					b.Fill(2)

					var err error
					if r.norm, err = a.Norm(); err != nil {
						return r, err
					}
					if r.dot, err = a.Dot(b); err != nil {
						return r, err
					}
					if _, err = a.Normalize(); err != nil {
						return r, err
					}
					r.after, err = a.Norm()
					return r, err
				})
				So(err, ShouldBeNil)
				So(got.norm, ShouldAlmostEqual, math.Sqrt(n), tolerance)
				So(real(got.dot), ShouldAlmostEqual, 0, tolerance)
				So(imag(got.dot), ShouldAlmostEqual, -2*n, tolerance)
				So(got.after, ShouldAlmostEqual, 1, tolerance)
			})

			Convey("CopyTo and Equal should agree", func() {
				type result struct{ before, after bool }
				got, err := collectRoot(size, func(comm *Comm) (result, error) {
					var r result
					a, _ := NewVector(comm, n)
					b, _ := NewVector(comm, n)
					a.Fill(3 - 1i)

					var err error
					if r.before, err = a.Equal(b); err != nil {
						return r, err
					}
					if err = a.CopyTo(b); err != nil {
						return r, err
					}
					r.after, err = a.Equal(b)
					return r, err
				})
				So(err, ShouldBeNil)
				So(got.before, ShouldBeFalse)
				So(got.after, ShouldBeTrue)
			})

			Convey("Combining vectors of different sizes should fail", func() {
				err := runRanks(size, func(comm *Comm) error {
					a, _ := NewVector(comm, n)
					b, _ := NewVector(comm, n+1)
					_, err := a.Dot(b)
					return err
				})
				So(errors.Is(err, ErrValidation), ShouldBeTrue)
			})

			Convey("A destroyed vector should own nothing", func() {
				owned, err := collectRoot(size, func(comm *Comm) (int, error) {
					v, err := NewVector(comm, n)
					if err != nil {
						return 0, err
					}
					v.Destroy()

					count := 0
					for i := int64(0); i < n; i++ {
						if v.Owns(i) || v.Set(i, 1) {
							count++
						}
					}
					return count, nil
				})
				So(err, ShouldBeNil)
				So(owned, ShouldEqual, 0)
			})

			Convey("Partitions above the configured limit should be rejected", func() {
				cfg := testConfig(size)
				cfg.MaxLocalAmplitudes = 4

				err := runConfig(cfg, func(comm *Comm) error {
					_, err := NewVector(comm, int64(4*size))
					return err
				})
				So(err, ShouldBeNil)

				err = runConfig(cfg, func(comm *Comm) error {
					_, err := NewVector(comm, int64(4*size+1))
					return err
				})
				So(errors.Is(err, ErrValidation), ShouldBeTrue)
			})

			Convey("Normalizing a zero vector should fail", func() {
				err := runRanks(size, func(comm *Comm) error {
					a, _ := NewVector(comm, n)
					_, err := a.Normalize()
					return err
				})
				So(errors.Is(err, ErrValidation), ShouldBeTrue)
			})
		})
	}
}
