package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RaftIsLeader = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tuplespace",
		Subsystem: "raft",
		Name:      "is_leader",
		Help:      "Whether this node is the Raft leader (1=leader, 0=follower)",
	})

	RaftTerm = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tuplespace",
		Subsystem: "raft",
		Name:      "term",
		Help:      "Current Raft term",
	})

	RaftCommitIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tuplespace",
		Subsystem: "raft",
		Name:      "commit_index",
		Help:      "Current Raft commit index",
	})

	RaftAppliedIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tuplespace",
		Subsystem: "raft",
		Name:      "applied_index",
		Help:      "Last applied Raft index",
	})

	RaftSnapshotIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tuplespace",
		Subsystem: "raft",
		Name:      "snapshot_index",
		Help:      "Last snapshot index",
	})

	RaftPeersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tuplespace",
		Subsystem: "raft",
		Name:      "peers_total",
		Help:      "Number of Raft peers",
	})

	RaftMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tuplespace",
		Subsystem: "raft",
		Name:      "messages_total",
		Help:      "Total Raft messages sent/received",
	}, []string{"direction", "type"})

	RaftProposalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tuplespace",
		Subsystem: "raft",
		Name:      "proposals_total",
		Help:      "Total proposals submitted",
	})

	RaftProposalsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tuplespace",
		Subsystem: "raft",
		Name:      "proposals_failed_total",
		Help:      "Total failed proposals",
	})

	ReadIndexTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tuplespace",
		Subsystem: "raft",
		Name:      "read_index_total",
		Help:      "Total read index requests",
	}, []string{"status"})

	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tuplespace",
		Subsystem: "space",
		Name:      "operations_total",
		Help:      "Total tuple space operations processed",
	}, []string{"op", "status"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tuplespace",
		Subsystem: "space",
		Name:      "operation_duration_seconds",
		Help:      "Tuple space operation duration, including blocking time",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20),
	}, []string{"op"})

	BlockedWaiters = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tuplespace",
		Subsystem: "space",
		Name:      "blocked_waiters",
		Help:      "in/rd callers currently suspended waiting for a match",
	})

	SpacesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tuplespace",
		Subsystem: "space",
		Name:      "spaces_total",
		Help:      "Number of registered spaces",
	})

	TuplesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tuplespace",
		Subsystem: "space",
		Name:      "tuples_total",
		Help:      "Total tuples stored across all spaces on this replica",
	})

	MembershipTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tuplespace",
		Subsystem: "membership",
		Name:      "transitions_total",
		Help:      "Membership transitions by kind and outcome",
	}, []string{"kind", "status"})

	GRPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tuplespace",
		Subsystem: "grpc",
		Name:      "requests_total",
		Help:      "Total gRPC requests",
	}, []string{"service", "method", "code"})

	GRPCRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tuplespace",
		Subsystem: "grpc",
		Name:      "request_duration_seconds",
		Help:      "gRPC request duration",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20),
	}, []string{"service", "method"})

	WALWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tuplespace",
		Subsystem: "wal",
		Name:      "writes_total",
		Help:      "Total WAL writes",
	})

	WALWriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tuplespace",
		Subsystem: "wal",
		Name:      "write_duration_seconds",
		Help:      "WAL write duration",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 20),
	})
)
