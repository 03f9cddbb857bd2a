package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"capkv/internal/configuration"
	"capkv/internal/dsm"
	"capkv/internal/fault"
	"capkv/internal/journal"
	"capkv/internal/transport"
)

// Runner runs the counter workload against each configured variant in turn,
// on a fresh cluster every time.
type Runner struct {
	cfg *configuration.Properties
	rec Recorder
	log *slog.Logger
}

type RunnerOption func(*Runner)

// WithRecorder journals every operation and inconsistency of the run.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) { r.rec = rec }
}

func WithRunnerLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

func NewRunner(cfg *configuration.Properties, opts ...RunnerOption) *Runner {
	r := &Runner{cfg: cfg, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every configured variant. The report holds whatever finished
// before an error or cancellation.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	sim := &r.cfg.Simulation
	report := &Report{Nodes: sim.Nodes, Iterations: sim.Iterations}

	r.log.Warn("simulation started", "nodes", sim.Nodes, "iterations", sim.Iterations, "variants", sim.Variants)

	for i, name := range sim.Variants {
		v, err := dsm.ParseVariant(name)
		if err != nil {
			return report, fmt.Errorf("simulation: %w", err)
		}
		if i > 0 && !fault.Pause(ctx, sim.SettleDuration()) {
			return report, ctx.Err()
		}

		res, err := r.RunVariant(ctx, v)
		if err != nil {
			return report, err
		}
		report.Results = append(report.Results, res)

		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	r.log.Warn("simulation finished")
	return report, nil
}

// RunVariant builds a cluster of v, lets every node's counter app run to
// completion or the time limit, and collects the tallies.
func (r *Runner) RunVariant(ctx context.Context, v dsm.Variant) (Result, error) {
	sim := &r.cfg.Simulation
	start := time.Now()
	log := r.log.With("variant", v.String())

	log.Warn("=== starting " + v.String() + " (" + v.Description() + ") ===")
	r.record(journal.Record{Type: journal.RecordRun, Variant: v.String(), Detail: v.Description()})

	net := transport.NewNetwork(&r.cfg.Transport)
	defer net.Close()

	ids := NodeIDs(sim.Nodes)
	nodes, err := r.cluster(net, v, ids)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		for _, n := range nodes {
			n.Stop()
		}
		log.Warn("=== " + v.String() + " finished ===")
	}()

	apps := make([]*CounterApp, len(nodes))
	for i, n := range nodes {
		apps[i] = NewCounterApp(n, v, ids, sim, r.source(len(nodes)+i), r.rec)
		apps[i].Init(ctx)
	}

	log.Warn("initializing")
	if !fault.Pause(ctx, sim.InitDuration()) {
		return r.collect(v, nodes, apps, false, start), nil
	}

	log.Warn("running apps")
	completed := r.runApps(ctx, apps)
	if completed {
		log.Warn("all apps finished")
	} else {
		log.Warn("time limit reached")
	}

	fault.Pause(ctx, sim.SettleDuration())
	return r.collect(v, nodes, apps, completed, start), nil
}

func (r *Runner) cluster(net *transport.Network, v dsm.Variant, ids []string) ([]dsm.Replica, error) {
	nodes := make([]dsm.Replica, 0, len(ids))
	stopAll := func() {
		for _, n := range nodes {
			n.Stop()
		}
	}

	for i, id := range ids {
		ep, err := net.Join(id)
		if err != nil {
			stopAll()
			return nil, err
		}
		n, err := dsm.New(v, id, ep, r.cfg, dsm.WithSource(r.source(i)))
		if err != nil {
			stopAll()
			return nil, err
		}
		for _, peer := range ids {
			n.AddKnownNode(peer)
		}
		nodes = append(nodes, n)
	}

	for _, n := range nodes {
		n.Start()
	}
	return nodes, nil
}

// runApps starts the apps one stagger apart and waits until all are done or
// the time limit passes. It returns once every app has stopped.
func (r *Runner) runApps(ctx context.Context, apps []*CounterApp) bool {
	sim := &r.cfg.Simulation
	runCtx, cancel := context.WithTimeout(ctx, sim.TimeLimitDuration())
	defer cancel()

	var wg sync.WaitGroup
	for _, app := range apps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.Run(runCtx)
		}()
		if !fault.Pause(runCtx, sim.StaggerDuration()) {
			break
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-runCtx.Done():
		cancel()
		<-done
	}

	for _, app := range apps {
		if !app.Done() {
			return false
		}
	}
	return true
}

func (r *Runner) collect(v dsm.Variant, nodes []dsm.Replica, apps []*CounterApp, completed bool, start time.Time) Result {
	res := Result{Variant: v, Completed: completed, Elapsed: time.Since(start)}
	for i, app := range apps {
		t := app.Tally()
		res.Nodes = append(res.Nodes, NodeResult{
			Node:       nodes[i].ID(),
			Tally:      t,
			Iterations: app.Iteration(),
			Keys:       nodes[i].Store().Len(),
		})
		res.Total.add(t)
	}
	return res
}

// source derives a per-node randomness source. Seed 0 keeps runs random.
func (r *Runner) source(i int) fault.Source {
	seed := r.cfg.Simulation.Seed
	if seed == 0 {
		return fault.NewSource(0)
	}
	return fault.NewSource(seed + int64(i))
}

func (r *Runner) record(rec journal.Record) {
	if r.rec == nil {
		return
	}
	rec.Timestamp = time.Now().UnixNano()
	if err := r.rec.Append(rec); err != nil {
		r.log.Error("journal append failed", "error", err)
	}
}

// NodeIDs names a cluster of n nodes node0..node<n-1>.
func NodeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = "node" + strconv.Itoa(i)
	}
	return ids
}
