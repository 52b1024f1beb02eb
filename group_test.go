package qchain

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestOwnershipRange(t *testing.T) {
	Convey("Given a vector split over a group", t, func() {
		Convey("Ranges should be contiguous, cover everything and differ by at most one", func() {
			for _, n := range []int64{0, 1, 5, 7, 64} {
				for _, size := range []int{1, 2, 3, 4} {
					var next int64
					for rank := 0; rank < size; rank++ {
						start, end := ownershipRange(n, rank, size)
						So(start, ShouldEqual, next)
						So(end-start, ShouldBeBetweenOrEqual, n/int64(size), n/int64(size)+1)
						next = end
					}
					So(next, ShouldEqual, n)
				}
			}
		})
	})
}

func TestCollectives(t *testing.T) {
	for _, size := range groupSizes {
		Convey(fmt.Sprintf("Given a group of %d processes", size), t, func() {
			Convey("Broadcast should deliver the root's value everywhere", func() {
				got := make([]int, size)
				err := runRanks(size, func(comm *Comm) error {
					v, err := Broadcast(comm, 100+comm.Rank())
					got[comm.Rank()] = v
					return err
				})
				So(err, ShouldBeNil)
				for _, v := range got {
					So(v, ShouldEqual, 100)
				}
			})

			Convey("AllGather should return values in rank order", func() {
				got := make([][]int, size)
				err := runRanks(size, func(comm *Comm) error {
					v, err := AllGather(comm, comm.Rank()*10)
					got[comm.Rank()] = v
					return err
				})
				So(err, ShouldBeNil)
				for _, v := range got {
					So(len(v), ShouldEqual, size)
					for rank, x := range v {
						So(x, ShouldEqual, rank*10)
					}
				}
			})

			Convey("AllReduceSum should agree on every rank", func() {
				got := make([]complex128, size)
				err := runRanks(size, func(comm *Comm) error {
					v, err := AllReduceSum(comm, complex(float64(comm.Rank()), 1))
					got[comm.Rank()] = v
					return err
				})
				So(err, ShouldBeNil)
				want := complex(float64(size*(size-1)/2), float64(size))
				for _, v := range got {
					So(v, ShouldEqual, want)
				}
			})

			Convey("Many consecutive collectives should not mix up rounds", func() {
				err := runRanks(size, func(comm *Comm) error {
					for i := 0; i < 200; i++ {
						v, err := AllReduceSum(comm, int64(i))
						if err != nil {
							return err
						}
						if v != int64(i*size) {
							return fmt.Errorf("round %d: got %d", i, v)
						}
					}
					return nil
				})
				So(err, ShouldBeNil)
			})
		})
	}
}

func TestGroupAbort(t *testing.T) {
	Convey("Given a group where one rank fails before a collective", t, func() {
		boom := errors.New("boom")

		err := runRanks(3, func(comm *Comm) error {
			if comm.Rank() == 1 {
				return boom
			}
			return comm.Barrier()
		})

		Convey("Run should return the failure instead of hanging", func() {
			So(errors.Is(err, boom), ShouldBeTrue)
		})
	})

	Convey("Given ranks that disagree on an error", t, func() {
		errs := make([]error, 2)
		err := runRanks(2, func(comm *Comm) error {
			var local error
			if comm.IsRoot() {
				local = fmt.Errorf("%w: root only", ErrFormat)
			}
			errs[comm.Rank()] = agreeOnError(comm, local)
			return nil
		})

		Convey("Every rank should see the same error class", func() {
			So(err, ShouldBeNil)
			So(errors.Is(errs[0], ErrFormat), ShouldBeTrue)
			So(errors.Is(errs[1], ErrFormat), ShouldBeTrue)
		})
	})
}
