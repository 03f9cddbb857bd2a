package configuration

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Default returns the stock simulation: five nodes, five iterations each,
// all three variants with their usual fault rates.
func Default() *Properties {
	return &Properties{
		App: AppConfigurationProperties{
			Profile:  "local",
			LogLevel: "info",
		},
		Simulation: SimulationConfigurationProperties{
			Nodes:        5,
			Iterations:   5,
			TimeLimit:    8000,
			InitTime:     800,
			SettleTime:   1500,
			StartStagger: 20,
			StepWait:     Window{Min: 50, Max: 200},
			Variants:     []string{"AP", "CP", "CA"},
		},
		Transport: TransportConfigurationProperties{
			InboxSize: 1024,
		},
		AP: APConfigurationProperties{
			DropRate:          0.7,
			DelayRate:         0.8,
			CorruptRate:       0.4,
			MinDelay:          50,
			MaxDelay:          5000,
			SweepInterval:     50,
			StaleReadRate:     0.3,
			LostReadRate:      0.15,
			WriteStallRate:    0.2,
			WriteStall:        Window{Min: 100, Max: 300},
			ReceiveJitterRate: 0.3,
			ReceiveJitter:     Window{Min: 0, Max: 50},
			Partition: APPartitionProperties{
				TriggerRate: 0.4,
				PeerRate:    0.4,
				Quiet:       Window{Min: 300, Max: 800},
				Hold:        Window{Min: 800, Max: 1600},
				MaxCycles:   2,
			},
		},
		CP: CPConfigurationProperties{
			QuorumFactor:      0.3,
			Timeout:           200,
			StallRate:         0.05,
			WriteStall:        Window{Min: 100, Max: 250},
			ReadStall:         Window{Min: 50, Max: 150},
			ReceiveJitterRate: 0.1,
			ReceiveJitter:     Window{Min: 100, Max: 250},
			RollbackRate:      0.25,
			ReadFailureRate:   0.3,
		},
		CA: CAConfigurationProperties{
			Timeout:                  1000,
			MaxRetries:               3,
			PartitionThreshold:       0.6,
			StallRate:                0.7,
			Stall:                    Window{Min: 5, Max: 20},
			PartitionedLossRate:      0.7,
			NodeFailureRate:          0.05,
			MessageLossRate:          0.02,
			ReceiveDelayRate:         0.8,
			ReadDelayRate:            0.9,
			ProcessingDelay:          5,
			SyncRate:                 0.8,
			SyncFailurePartitionRate: 0.3,
			Partition: CAPartitionProperties{
				StartRate:   0.2,
				TriggerRate: 0.5,
				ResolveRate: 0.7,
				Quiet:       Window{Min: 500, Max: 1500},
				Hold:        Window{Min: 1000, Max: 3000},
				MaxCycles:   1,
			},
		},
	}
}

// Validate reports every out-of-range setting at once.
func (p *Properties) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	rate := func(name string, v float64) {
		check(v >= 0 && v <= 1, "%s must be within [0,1], got %v", name, v)
	}
	window := func(name string, w Window) {
		check(w.Min >= 0 && w.Min <= w.Max, "%s must satisfy 0 <= min <= max, got %d..%d", name, w.Min, w.Max)
	}

	sim := p.Simulation
	check(sim.Nodes >= 1, "simulation.nodes must be at least 1, got %d", sim.Nodes)
	check(sim.Iterations >= 0, "simulation.iterations must not be negative, got %d", sim.Iterations)
	check(sim.TimeLimit > 0, "simulation.time-limit must be positive, got %d", sim.TimeLimit)
	check(sim.InitTime >= 0 && sim.SettleTime >= 0 && sim.StartStagger >= 0, "simulation pauses must not be negative")
	window("simulation.step-wait", sim.StepWait)
	check(len(sim.Variants) > 0, "simulation.variants must not be empty")
	for _, v := range sim.Variants {
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "AP", "CP", "CA":
		default:
			errs = append(errs, fmt.Errorf("simulation.variants: unknown variant %q", v))
		}
	}

	check(p.Transport.InboxSize > 0, "transport.inbox-size must be positive, got %d", p.Transport.InboxSize)

	ap := p.AP
	rate("ap.drop-rate", ap.DropRate)
	rate("ap.delay-rate", ap.DelayRate)
	rate("ap.corrupt-rate", ap.CorruptRate)
	rate("ap.stale-read-rate", ap.StaleReadRate)
	rate("ap.lost-read-rate", ap.LostReadRate)
	rate("ap.write-stall-rate", ap.WriteStallRate)
	rate("ap.receive-jitter-rate", ap.ReceiveJitterRate)
	rate("ap.partition.trigger-rate", ap.Partition.TriggerRate)
	rate("ap.partition.peer-rate", ap.Partition.PeerRate)
	check(ap.MinDelay >= 0 && ap.MaxDelay >= 0, "ap delays must not be negative")
	check(ap.SweepInterval > 0, "ap.sweep-interval must be positive, got %d", ap.SweepInterval)
	window("ap.write-stall", ap.WriteStall)
	window("ap.receive-jitter", ap.ReceiveJitter)
	window("ap.partition.quiet", ap.Partition.Quiet)
	window("ap.partition.hold", ap.Partition.Hold)
	check(ap.Partition.MaxCycles >= 0, "ap.partition.max-cycles must not be negative")

	cp := p.CP
	check(cp.QuorumFactor > 0 && cp.QuorumFactor <= 1, "cp.quorum-factor must be within (0,1], got %v", cp.QuorumFactor)
	check(cp.Timeout > 0, "cp.timeout must be positive, got %d", cp.Timeout)
	rate("cp.stall-rate", cp.StallRate)
	rate("cp.receive-jitter-rate", cp.ReceiveJitterRate)
	rate("cp.rollback-rate", cp.RollbackRate)
	rate("cp.read-failure-rate", cp.ReadFailureRate)
	window("cp.write-stall", cp.WriteStall)
	window("cp.read-stall", cp.ReadStall)
	window("cp.receive-jitter", cp.ReceiveJitter)

	ca := p.CA
	check(ca.Timeout > 0, "ca.timeout must be positive, got %d", ca.Timeout)
	check(ca.MaxRetries >= 1, "ca.max-retries must be at least 1, got %d", ca.MaxRetries)
	check(ca.PartitionThreshold > 0 && ca.PartitionThreshold <= 1, "ca.partition-threshold must be within (0,1], got %v", ca.PartitionThreshold)
	check(ca.ProcessingDelay >= 0, "ca.processing-delay must not be negative")
	rate("ca.stall-rate", ca.StallRate)
	rate("ca.partitioned-loss-rate", ca.PartitionedLossRate)
	rate("ca.message-loss-rate", ca.MessageLossRate)
	rate("ca.node-failure-rate", ca.NodeFailureRate)
	rate("ca.receive-delay-rate", ca.ReceiveDelayRate)
	rate("ca.read-delay-rate", ca.ReadDelayRate)
	rate("ca.sync-rate", ca.SyncRate)
	rate("ca.sync-failure-partition-rate", ca.SyncFailurePartitionRate)
	rate("ca.partition.start-rate", ca.Partition.StartRate)
	rate("ca.partition.trigger-rate", ca.Partition.TriggerRate)
	rate("ca.partition.resolve-rate", ca.Partition.ResolveRate)
	window("ca.stall", ca.Stall)
	window("ca.partition.quiet", ca.Partition.Quiet)
	window("ca.partition.hold", ca.Partition.Hold)
	check(ca.Partition.MaxCycles >= 0, "ca.partition.max-cycles must not be negative")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
