package fault

import (
	"context"
	"log/slog"
	"sync"

	"capkv/internal/configuration"
	"capkv/internal/metrics"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// PartitionSet holds the peers an AP node currently cannot reach.
type PartitionSet struct {
	node  string
	mu    sync.Mutex
	peers cmap.ConcurrentMap[string, struct{}]
}

func NewPartitionSet(node string) *PartitionSet {
	return &PartitionSet{node: node, peers: cmap.New[struct{}]()}
}

// Replace makes exactly ids unreachable.
func (s *PartitionSet) Replace(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers.Clear()
	for _, id := range ids {
		s.peers.Set(id, struct{}{})
	}
	metrics.PartitionActive.WithLabelValues(s.node).Set(float64(len(ids)))
}

// Heal clears the set and returns how many peers were unreachable.
func (s *PartitionSet) Heal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.peers.Count()
	s.peers.Clear()
	metrics.PartitionActive.WithLabelValues(s.node).Set(0)
	return n
}

func (s *PartitionSet) Isolated(id string) bool {
	return s.peers.Has(id)
}

func (s *PartitionSet) Len() int {
	return s.peers.Count()
}

func (s *PartitionSet) Members() []string {
	return s.peers.Keys()
}

// PartitionScheduler periodically cuts an AP node off from a random subset of
// its peers and heals the cut after a while.
type PartitionScheduler struct {
	cfg   configuration.APPartitionProperties
	src   Source
	set   *PartitionSet
	peers func() []string
	log   *slog.Logger
}

func NewPartitionScheduler(
	cfg configuration.APPartitionProperties,
	src Source,
	set *PartitionSet,
	peers func() []string,
	log *slog.Logger,
) *PartitionScheduler {
	if log == nil {
		log = slog.Default()
	}
	return &PartitionScheduler{cfg: cfg, src: src, set: set, peers: peers, log: log}
}

// Run blocks until ctx ends or MaxCycles cycles have passed (0 means no
// limit). The set is always healed on return.
func (s *PartitionScheduler) Run(ctx context.Context) {
	defer s.set.Heal()

	for cycle := 0; s.cfg.MaxCycles == 0 || cycle < s.cfg.MaxCycles; cycle++ {
		if !Pause(ctx, Between(s.src, s.cfg.Quiet.MinDuration(), s.cfg.Quiet.MaxDuration())) {
			return
		}
		if !Chance(s.src, s.cfg.TriggerRate) {
			continue
		}

		var cut []string
		for _, id := range s.peers() {
			if Chance(s.src, s.cfg.PeerRate) {
				cut = append(cut, id)
			}
		}
		s.set.Replace(cut)
		metrics.FaultsTotal.WithLabelValues("AP", "partition").Inc()
		s.log.Warn("network partition", "unreachable", len(cut), "peers", cut)

		held := Pause(ctx, Between(s.src, s.cfg.Hold.MinDuration(), s.cfg.Hold.MaxDuration()))
		n := s.set.Heal()
		s.log.Warn("network partition healed", "reachable_again", n)
		if !held {
			return
		}
	}
}
