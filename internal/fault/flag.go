package fault

import (
	"context"
	"log/slog"
	"sync"

	"capkv/internal/configuration"
	"capkv/internal/metrics"
)

// PartitionFlag is the CA node's belief that the cluster is split.
type PartitionFlag struct {
	node string

	mu      sync.Mutex
	tripped bool
	pinned  bool
	ch      chan struct{}
}

func NewPartitionFlag(node string) *PartitionFlag {
	return &PartitionFlag{node: node, ch: make(chan struct{})}
}

func (f *PartitionFlag) Partitioned() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tripped
}

// Tripped returns a channel that is closed while the flag is set.
func (f *PartitionFlag) Tripped() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ch
}

// Trip sets the flag and reports whether it changed. A pinned flag ignores it.
func (f *PartitionFlag) Trip() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pinned {
		return false
	}
	return f.set(true)
}

// Resolve clears the flag and reports whether it changed. A pinned flag
// ignores it.
func (f *PartitionFlag) Resolve() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pinned {
		return false
	}
	return f.set(false)
}

// Force pins the flag to v until Unpin.
func (f *PartitionFlag) Force(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned = true
	f.set(v)
}

func (f *PartitionFlag) Unpin() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned = false
}

func (f *PartitionFlag) set(v bool) bool {
	if f.tripped == v {
		return false
	}
	f.tripped = v
	if v {
		close(f.ch)
		metrics.PartitionActive.WithLabelValues(f.node).Set(1)
	} else {
		f.ch = make(chan struct{})
		metrics.PartitionActive.WithLabelValues(f.node).Set(0)
	}
	return true
}

// FlagScheduler trips and resolves a CA node's partition flag, both on its
// own schedule and when the node declares a suspected partition.
type FlagScheduler struct {
	ctx  context.Context
	cfg  configuration.CAPartitionProperties
	src  Source
	flag *PartitionFlag
	log  *slog.Logger

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewFlagScheduler ties every background task to ctx.
func NewFlagScheduler(
	ctx context.Context,
	cfg configuration.CAPartitionProperties,
	src Source,
	flag *PartitionFlag,
	log *slog.Logger,
) *FlagScheduler {
	if log == nil {
		log = slog.Default()
	}
	return &FlagScheduler{ctx: ctx, cfg: cfg, src: src, flag: flag, log: log}
}

// Start launches the periodic partition simulation on this node with
// probability StartRate.
func (s *FlagScheduler) Start() {
	if !Chance(s.src, s.cfg.StartRate) {
		return
	}
	s.spawn(s.run)
}

func (s *FlagScheduler) spawn(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *FlagScheduler) run() {
	for cycle := 0; s.cfg.MaxCycles == 0 || cycle < s.cfg.MaxCycles; cycle++ {
		if !Pause(s.ctx, Between(s.src, s.cfg.Quiet.MinDuration(), s.cfg.Quiet.MaxDuration())) {
			return
		}
		if s.flag.Partitioned() || !Chance(s.src, s.cfg.TriggerRate) {
			continue
		}
		s.trip("scheduled")
		if Chance(s.src, s.cfg.ResolveRate) {
			s.holdThenResolve()
		}
	}
}

// Declare handles a partition suspected by the protocol itself. Like the
// scheduler it trips the flag with TriggerRate and arranges a later resolve
// with ResolveRate. It reports whether the flag is set afterwards.
func (s *FlagScheduler) Declare(reason string) bool {
	if s.flag.Partitioned() {
		return true
	}
	if !Chance(s.src, s.cfg.TriggerRate) {
		return false
	}
	if !s.trip(reason) {
		return s.flag.Partitioned()
	}
	if Chance(s.src, s.cfg.ResolveRate) {
		s.spawn(s.holdThenResolve)
	}
	return true
}

// Wait refuses new tasks and blocks until every started one has returned.
// Cancel the scheduler's context first.
func (s *FlagScheduler) Wait() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *FlagScheduler) trip(reason string) bool {
	if !s.flag.Trip() {
		return false
	}
	metrics.FaultsTotal.WithLabelValues("CA", "partition").Inc()
	s.log.Warn("network partition detected", "reason", reason)
	return true
}

func (s *FlagScheduler) holdThenResolve() {
	if !Pause(s.ctx, Between(s.src, s.cfg.Hold.MinDuration(), s.cfg.Hold.MaxDuration())) {
		return
	}
	if s.flag.Resolve() {
		s.log.Warn("network connectivity restored")
	}
}
