package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"
)

// RunState is owned by a single download run and shared by its workers.
type RunState struct {
	ID        ksuid.KSUID
	StartedAt time.Time

	total     int64
	workers   int32
	threshold float64

	claimed   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	connected atomic.Int32
	finished  atomic.Int32

	stop    atomic.Bool
	aborted atomic.Bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewRunState prepares shared state. thresholdPct of 0 disables the abort.
func NewRunState(totalSegments, workers int, thresholdPct float64) *RunState {
	s := &RunState{
		ID:        ksuid.New(),
		StartedAt: time.Now(),
		total:     int64(totalSegments),
		workers:   int32(workers),
		threshold: thresholdPct,
		done:      make(chan struct{}),
	}
	if workers <= 0 {
		s.signalDone()
	}
	return s
}

func (s *RunState) Stopped() bool { return s.stop.Load() }
func (s *RunState) Aborted() bool { return s.aborted.Load() }
func (s *RunState) Stop()         { s.stop.Store(true) }

func (s *RunState) Claimed()       { s.claimed.Add(1) }
func (s *RunState) RecordSuccess() { s.completed.Add(1) }

// RecordFailure counts a failed segment and reports whether this failure
// pushed the run over the threshold. Only one caller ever sees true.
func (s *RunState) RecordFailure() bool {
	failed := s.failed.Add(1)
	s.completed.Add(1)

	if s.threshold <= 0 || s.total == 0 {
		return false
	}

	if float64(failed)*100/float64(s.total) <= s.threshold {
		return false
	}

	s.stop.Store(true)
	return s.aborted.CompareAndSwap(false, true)
}

func (s *RunState) WorkerConnected() { s.connected.Add(1) }

// WorkerFinished is called by every worker on exit. The last one closes Done.
func (s *RunState) WorkerFinished() {
	if s.finished.Add(1) >= s.workers {
		s.signalDone()
	}
}

func (s *RunState) signalDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Done is closed once every worker has exited.
func (s *RunState) Done() <-chan struct{} { return s.done }

func (s *RunState) Failed() int64    { return s.failed.Load() }
func (s *RunState) Completed() int64 { return s.completed.Load() }
func (s *RunState) Connected() int   { return int(s.connected.Load()) }

// HealthyPercent is the share of segments that have not failed so far.
func (s *RunState) HealthyPercent() float64 {
	if s.total == 0 {
		return 100
	}
	return float64(s.total-s.failed.Load()) / float64(s.total) * 100
}
