// Package metrics defines the custom Prometheus metrics of the identity
// service. It is the single source of truth for metric names, labels and help
// strings; HTTP request metrics come from the echoprometheus middleware.
//
// All metrics register with the default Prometheus registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// ── Credential metrics ────────────────────────────────────────────────────────

// RegistrationsTotal counts registration attempts.
// Label:
//   - result: "created", "conflict", "invalid" or "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// AuthenticationsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials", "invalid" or "error"
var AuthenticationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authentications_total",
		Help:      "Total number of authentication attempts, by result.",
	},
	[]string{"result"},
)

// ── Deletion metrics ──────────────────────────────────────────────────────────

// ProfileDeletionsTotal counts profile deletions that removed the user row.
// Label:
//   - outcome: "deleted", "peer_skipped" or "partial"
var ProfileDeletionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_deletions_total",
		Help:      "Total number of profile deletions, by cascade outcome.",
	},
	[]string{"outcome"},
)

// PeerCleanupRetriesTotal counts reconciler retries of the peer cascade.
// Label:
//   - result: "resolved" or "failed"
var PeerCleanupRetriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "peer_cleanup_retries_total",
		Help:      "Total number of peer cleanup retries issued by the reconciler, by result.",
	},
	[]string{"result"},
)

// PeerCleanupPending tracks users whose peer data is still awaiting cleanup.
var PeerCleanupPending = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "peer_cleanup_pending",
		Help:      "Number of deleted users whose peer data cleanup is still pending.",
	},
)
