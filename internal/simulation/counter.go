package simulation

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"capkv/internal/configuration"
	"capkv/internal/domain"
	"capkv/internal/dsm"
	"capkv/internal/fault"
	"capkv/internal/journal"
	"capkv/internal/metrics"
)

// Recorder receives the journal records an app produces. *journal.Journal
// implements it.
type Recorder interface {
	Append(r journal.Record) error
}

// Tally counts what one app did.
type Tally struct {
	Reads           int
	Writes          int
	Failures        int
	Inconsistencies int
}

func (t *Tally) add(o Tally) {
	t.Reads += o.Reads
	t.Writes += o.Writes
	t.Failures += o.Failures
	t.Inconsistencies += o.Inconsistencies
}

// CounterKey is the key under which node id keeps its counter.
func CounterKey(id string) string {
	return "counter_" + id
}

// CounterApp drives one node: it owns a counter it sometimes increments and
// in every step reads all counters and audits what it sees.
type CounterApp struct {
	node       domain.Replica
	variant    dsm.Variant
	ids        []string
	iterations int
	wait       configuration.Window
	src        fault.Source
	rec        Recorder
	log        *slog.Logger

	// last is only touched by the goroutine running the app.
	last        map[string]int
	initialized bool

	iteration       atomic.Int64
	reads           atomic.Int64
	writes          atomic.Int64
	failures        atomic.Int64
	inconsistencies atomic.Int64
}

func NewCounterApp(
	node domain.Replica,
	variant dsm.Variant,
	ids []string,
	cfg *configuration.SimulationConfigurationProperties,
	src fault.Source,
	rec Recorder,
) *CounterApp {
	last := make(map[string]int, len(ids))
	for _, id := range ids {
		last[id] = 0
	}
	return &CounterApp{
		node:       node,
		variant:    variant,
		ids:        ids,
		iterations: cfg.Iterations,
		wait:       cfg.StepWait,
		src:        src,
		rec:        rec,
		log:        slog.Default().With("app", node.ID(), "variant", variant.String()),
		last:       last,
	}
}

// Init writes the initial zero of the app's own counter.
func (a *CounterApp) Init(ctx context.Context) bool {
	if a.initialized {
		return true
	}
	key := CounterKey(a.node.ID())
	if err := a.write(ctx, key, "0"); err != nil {
		a.log.Warn("counter initialization failed", "key", key, "error", err)
		return false
	}
	a.initialized = true
	a.log.Debug("counter initialized", "key", key)
	return true
}

// Run performs the configured number of steps, pausing between them, until
// done or ctx ends.
func (a *CounterApp) Run(ctx context.Context) {
	a.log.Info("app started", "iterations", a.iterations)
	for i := 0; i < a.iterations; i++ {
		a.Step(ctx)
		a.iteration.Store(int64(i + 1))

		if !fault.Pause(ctx, fault.Between(a.src, a.wait.MinDuration(), a.wait.MaxDuration())) {
			a.log.Warn("app interrupted", "iteration", i+1)
			return
		}
	}
	a.log.Info("app finished")
}

// Step increments the own counter half of the time, then reads and checks
// every counter.
func (a *CounterApp) Step(ctx context.Context) {
	if !a.Init(ctx) {
		return
	}
	if fault.Chance(a.src, 0.5) {
		a.increment(ctx)
	}
	a.checkAll(ctx)
}

func (a *CounterApp) increment(ctx context.Context) {
	key := CounterKey(a.node.ID())

	current, err := a.read(ctx, key)
	if err != nil {
		return
	}

	next := parseCounter(current) + 1
	if err := a.write(ctx, key, strconv.Itoa(next)); err != nil {
		return
	}
	a.last[a.node.ID()] = next
}

func (a *CounterApp) checkAll(ctx context.Context) {
	current := make(map[string]int, len(a.ids))
	highest := 0

	for _, id := range a.ids {
		raw, err := a.read(ctx, CounterKey(id))
		if err != nil || raw == "" {
			continue
		}
		v := parseCounter(raw)
		current[id] = v
		if v > highest {
			highest = v
		}
	}

	for _, id := range a.ids {
		v, ok := current[id]
		if !ok {
			continue
		}
		if violation, found := Check(a.variant, CounterKey(id), id == a.node.ID(), a.last[id], v, highest); found {
			a.report(violation)
		}
		a.last[id] = v
	}
}

func (a *CounterApp) report(v Violation) {
	a.inconsistencies.Add(1)
	metrics.InconsistenciesTotal.WithLabelValues(a.variant.String(), string(v.Rule)).Inc()
	a.log.Error("inconsistency detected", "rule", string(v.Rule), "detail", v.String())
	a.record(journal.Record{
		Type:   journal.RecordInconsistency,
		Op:     string(v.Rule),
		Key:    v.Counter,
		Value:  strconv.Itoa(v.Current),
		Detail: v.String(),
	})
}

func (a *CounterApp) read(ctx context.Context, key string) (string, error) {
	value, err := a.node.Read(ctx, key)
	a.operation("read", key, value, err)
	if err != nil {
		a.failures.Add(1)
		a.log.Warn("read failed", "key", key, "error", err)
		return "", err
	}
	a.reads.Add(1)
	return value, nil
}

func (a *CounterApp) write(ctx context.Context, key, value string) error {
	err := a.node.Write(ctx, key, value)
	a.operation("write", key, value, err)
	if err != nil {
		a.failures.Add(1)
		a.log.Warn("write failed", "key", key, "error", err)
		return err
	}
	a.writes.Add(1)
	return nil
}

func (a *CounterApp) operation(op, key, value string, err error) {
	r := journal.Record{Type: journal.RecordOperation, Op: op, Key: key, Value: value}
	if err != nil {
		r.Detail = err.Error()
	}
	a.record(r)
}

func (a *CounterApp) record(r journal.Record) {
	if a.rec == nil {
		return
	}
	r.Variant = a.variant.String()
	r.Node = a.node.ID()
	r.Timestamp = time.Now().UnixNano()
	if err := a.rec.Append(r); err != nil {
		a.log.Error("journal append failed", "error", err)
	}
}

// Done reports whether every iteration has run.
func (a *CounterApp) Done() bool {
	return a.iteration.Load() >= int64(a.iterations)
}

func (a *CounterApp) Iteration() int {
	return int(a.iteration.Load())
}

func (a *CounterApp) Tally() Tally {
	return Tally{
		Reads:           int(a.reads.Load()),
		Writes:          int(a.writes.Load()),
		Failures:        int(a.failures.Load()),
		Inconsistencies: int(a.inconsistencies.Load()),
	}
}

// parseCounter reads a counter value; anything unparsable counts as zero.
func parseCounter(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		slog.Warn("invalid counter value", "value", s)
		return 0
	}
	return v
}
