package main

import (
	"errors"
	"fmt"
	"log/slog"

	"capkv/internal/configuration"
	"capkv/internal/journal"
	"capkv/internal/metrics"
	"capkv/internal/simulation"
)

type Services struct {
	Metrics *metrics.Server
	Journal *journal.Journal
	Runner  *simulation.Runner
}

// NewServices starts the optional metrics server and journal and wires them
// into the simulation runner.
func NewServices(cfg *configuration.Properties) (*Services, error) {
	s := &Services{}

	if addr := cfg.App.MetricsAddr; addr != "" {
		s.Metrics = metrics.NewServer(addr)
		if err := s.Metrics.Start(); err != nil {
			return nil, err
		}
	}

	var opts []simulation.RunnerOption
	if dir := cfg.Simulation.JournalDir; dir != "" {
		j, err := journal.Open(dir, false)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		s.Journal = j
		opts = append(opts, simulation.WithRecorder(j))
		slog.Info("journal enabled", "dir", dir, "records", j.Len())
	}

	s.Runner = simulation.NewRunner(cfg, opts...)
	return s, nil
}

func (s *Services) Close() error {
	var errs []error
	if s.Journal != nil {
		errs = append(errs, s.Journal.Close())
	}
	if s.Metrics != nil {
		s.Metrics.Stop()
	}
	return errors.Join(errs...)
}
