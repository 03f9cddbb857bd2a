package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capkv",
		Subsystem: "replica",
		Name:      "operations_total",
		Help:      "Client operations by variant, operation and outcome",
	}, []string{"variant", "op", "outcome"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "capkv",
		Subsystem: "replica",
		Name:      "operation_duration_seconds",
		Help:      "Client operation latency",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 18),
	}, []string{"variant", "op"})

	PendingRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "capkv",
		Subsystem: "correlator",
		Name:      "pending_requests",
		Help:      "Requests waiting for acknowledgments or responses",
	}, []string{"variant"})

	RequestsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capkv",
		Subsystem: "correlator",
		Name:      "requests_finished_total",
		Help:      "Correlated requests by terminal state",
	}, []string{"variant", "state"})

	QuorumSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "capkv",
		Subsystem: "replica",
		Name:      "quorum_size",
		Help:      "Required acknowledgments for the last quorum operation",
	}, []string{"node"})

	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capkv",
		Subsystem: "transport",
		Name:      "messages_total",
		Help:      "Envelopes by direction and kind",
	}, []string{"direction", "kind"})

	MessageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capkv",
		Subsystem: "transport",
		Name:      "message_errors_total",
		Help:      "Envelopes that could not be delivered",
	}, []string{"reason"})

	FaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capkv",
		Subsystem: "fault",
		Name:      "injected_total",
		Help:      "Simulated faults by variant and type",
	}, []string{"variant", "fault"})

	DelayedMessages = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "capkv",
		Subsystem: "fault",
		Name:      "delayed_messages",
		Help:      "Envelopes waiting in delay queues",
	})

	PartitionActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "capkv",
		Subsystem: "fault",
		Name:      "partition_active",
		Help:      "Unreachable peers (AP) or partition flag (CA) per node",
	}, []string{"node"})

	StorageOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capkv",
		Subsystem: "storage",
		Name:      "operations_total",
		Help:      "Total storage operations",
	}, []string{"operation"})

	JournalAppendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capkv",
		Subsystem: "journal",
		Name:      "appends_total",
		Help:      "Journal records appended",
	}, []string{"type"})

	InconsistenciesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capkv",
		Subsystem: "simulation",
		Name:      "inconsistencies_total",
		Help:      "Inconsistencies detected by the observer",
	}, []string{"variant", "rule"})
)
