package qchain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRuntime(t *testing.T) {
	Convey("Given a new runtime", t, func() {
		rt := NewRuntime(context.Background(), testConfig(3))
		defer rt.Close()

		Convey("Run should fail before Start", func() {
			err := rt.Run(func(context.Context, *Comm) error { return nil })
			So(errors.Is(err, ErrValidation), ShouldBeTrue)
		})

		Convey("Start should be idempotent", func() {
			So(rt.Start(), ShouldBeNil)
			So(rt.Start(), ShouldBeNil)
		})

		Convey("Run should give every rank its own Comm", func() {
			So(rt.Start(), ShouldBeNil)

			var mu sync.Mutex
			seen := map[int]int{}
			err := rt.Run(func(_ context.Context, comm *Comm) error {
				mu.Lock()
				seen[comm.Rank()] = comm.Size()
				mu.Unlock()
				return comm.Barrier()
			})
			So(err, ShouldBeNil)
			So(seen, ShouldResemble, map[int]int{0: 3, 1: 3, 2: 3})
		})

		Convey("Run should fail after Close and Close should be repeatable", func() {
			So(rt.Start(), ShouldBeNil)
			rt.Close()
			rt.Close()

			err := rt.Run(func(context.Context, *Comm) error { return nil })
			So(errors.Is(err, ErrValidation), ShouldBeTrue)
		})
	})

	Convey("Given a runtime with a non-zero root", t, func() {
		cfg := testConfig(3)
		cfg.Root = 2

		Convey("Broadcast should take the value from that rank", func() {
			got := make([]int, 3)
			err := runConfig(cfg, func(comm *Comm) error {
				v, err := Broadcast(comm, comm.Rank())
				got[comm.Rank()] = v
				return err
			})
			So(err, ShouldBeNil)
			So(got, ShouldResemble, []int{2, 2, 2})
		})

		Convey("Only that rank should receive gathered states", func() {
			got := make([]bool, 3)
			err := runConfig(cfg, func(comm *Comm) error {
				s, err := NewState(comm, WithProduct(RawInteger(0)))
				if err != nil {
					return err
				}
				amps, err := s.Collect(false)
				got[comm.Rank()] = amps != nil
				return err
			})
			So(err, ShouldBeNil)
			So(got, ShouldResemble, []bool{false, false, true})
		})
	})

	Convey("Given a runtime whose context is cancelled mid-collective", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rt := NewRuntime(ctx, testConfig(2))
		defer rt.Close()
		So(rt.Start(), ShouldBeNil)

		err := rt.Run(func(_ context.Context, comm *Comm) error {
			if comm.Rank() == 1 {
				cancel()
				return nil
			}
			return comm.Barrier()
		})

		Convey("The waiting rank should abort", func() {
			So(errors.Is(err, ErrAborted), ShouldBeTrue)
		})
	})
}

func TestMetrics(t *testing.T) {
	Convey("Given a runtime that ran a few collectives", t, func() {
		rt := NewRuntime(context.Background(), testConfig(2))
		defer rt.Close()
		So(rt.Start(), ShouldBeNil)

		path := t.TempDir() + "/m.qchn"
		err := rt.Run(func(_ context.Context, comm *Comm) error {
			s, err := NewState(comm, WithRandom(Seeded(1)))
			if err != nil {
				return err
			}
			if err := s.Save(path); err != nil {
				return err
			}
			_, err = Load(comm, path)
			return err
		})
		So(err, ShouldBeNil)

		Convey("The counters should reflect them", func() {
			snapshot := rt.Metrics().ExportMetrics()
			So(snapshot["collectives"], ShouldBeGreaterThan, int64(0))
			So(snapshot["reductions"], ShouldBeGreaterThan, int64(0))
			So(snapshot["gathers"], ShouldEqual, int64(1))
			So(snapshot["gathered_elements"], ShouldEqual, int64(1<<testL))
			So(snapshot["saves"], ShouldEqual, int64(1))
			So(snapshot["loads"], ShouldEqual, int64(1))
		})

		Convey("Wait time percentiles should be ordered", func() {
			m := rt.Metrics()
			So(m.P95WaitTime, ShouldBeLessThanOrEqualTo, m.P99WaitTime)
		})
	})
}

func TestLatencyPercentiles(t *testing.T) {
	Convey("Given more wait samples than the window holds", t, func() {
		m := NewMetrics()
		for i := 1; i <= latencySamples+500; i++ {
			d := time.Duration(i) * time.Millisecond
			m.Collectives++
			m.TotalWaitTime += d
			m.updateLatencyPercentiles(d)
		}

		Convey("Only the most recent samples should count", func() {
			So(len(m.waits), ShouldEqual, latencySamples)
			So(m.P95WaitTime, ShouldEqual, 1451*time.Millisecond)
			So(m.P99WaitTime, ShouldEqual, 1491*time.Millisecond)
		})

		Convey("The average should cover every sample", func() {
			So(m.AverageWaitTime, ShouldEqual, m.TotalWaitTime/time.Duration(latencySamples+500))
		})
	})
}
