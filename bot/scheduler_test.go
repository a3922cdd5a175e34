package bot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slot-bot/lease"
)

type fakeSweeper struct {
	calls   atomic.Int32
	block   chan struct{}
	started chan struct{}
	err     error
}

func (f *fakeSweeper) Sweep(ctx context.Context) (lease.SweepReport, error) {
	n := f.calls.Add(1)
	if f.started != nil && n == 1 {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	return lease.SweepReport{RunID: "run", Checked: int(n)}, f.err
}

func TestSchedulerSweepsImmediatelyAndOnInterval(t *testing.T) {
	f := &fakeSweeper{}
	var reports atomic.Int32
	s := NewScheduler(f, 10*time.Millisecond, func(lease.SweepReport) { reports.Add(1) })

	s.Start()
	assert.Eventually(t, func() bool { return f.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := f.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, f.calls.Load(), "no sweeps after Stop")
	assert.Equal(t, after, reports.Load())
}

func TestSchedulerStopWaitsForSweep(t *testing.T) {
	f := &fakeSweeper{block: make(chan struct{}), started: make(chan struct{})}
	s := NewScheduler(f, time.Hour, nil)
	s.Start()
	<-f.started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a sweep was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(f.block)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the sweep finished")
	}

	// a second Stop is harmless
	s.Stop()
}

func TestSchedulerSkipsReportOnError(t *testing.T) {
	f := &fakeSweeper{err: errors.New("store down")}
	var reports atomic.Int32
	s := NewScheduler(f, time.Hour, func(lease.SweepReport) { reports.Add(1) })

	s.Start()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	assert.Zero(t, reports.Load())
}
