// Package metrics exposes prometheus instrumentation for enroll and
// identify. There is no HTTP exposition server here: spec §1 scopes
// REST/network surfaces out, so callers that want /metrics wire these
// collectors into their own registry and server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// EnrollDuration observes wall-clock time spent per enroll call.
	EnrollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fpcore",
		Subsystem: "enroll",
		Name:      "duration_seconds",
		Help:      "Time spent extracting and writing fingerprints for one track.",
		Buckets:   prometheus.DefBuckets,
	})

	// EnrollPairsTotal counts hash/time pairs written across all enrolls.
	EnrollPairsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fpcore",
		Subsystem: "enroll",
		Name:      "pairs_total",
		Help:      "Total fingerprint pairs written to the index.",
	})

	// EnrollFailuresTotal counts enrolls that aborted due to an I/O or
	// cancellation error (spec §4.4: put/flush failures are fatal).
	EnrollFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fpcore",
		Subsystem: "enroll",
		Name:      "failures_total",
		Help:      "Enroll calls that aborted before completion.",
	})

	// IdentifyDuration observes wall-clock time spent per identify call.
	IdentifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fpcore",
		Subsystem: "identify",
		Name:      "duration_seconds",
		Help:      "Time spent matching a query against the index.",
		Buckets:   prometheus.DefBuckets,
	})

	// IdentifyPartialTotal counts identify calls that hit the wall-clock
	// budget and returned a partial ranking (spec §5).
	IdentifyPartialTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fpcore",
		Subsystem: "identify",
		Name:      "partial_total",
		Help:      "Identify calls that returned a partial ranking after timing out.",
	})

	// IdentifyConfidentTotal counts identify calls whose top candidate
	// met spec §4.5's confidence rule.
	IdentifyConfidentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fpcore",
		Subsystem: "identify",
		Name:      "confident_total",
		Help:      "Identify calls that produced a confident match.",
	})

	// IndexSize reports the last-observed posting/hash/track counts from
	// Store.Stats, one gauge per dimension via a label.
	IndexSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fpcore",
		Subsystem: "index",
		Name:      "size",
		Help:      "Index size by dimension (hashes, postings, tracks).",
	}, []string{"dimension"})
)

// Registry bundles every collector above behind a private prometheus
// registry, so embedding applications can mount it under their own
// HTTP handler without colliding with the default global registry.
func Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		EnrollDuration,
		EnrollPairsTotal,
		EnrollFailuresTotal,
		IdentifyDuration,
		IdentifyPartialTotal,
		IdentifyConfidentTotal,
		IndexSize,
	)
	return reg
}

// ObserveStats updates IndexSize from a store.Stats snapshot.
func ObserveStats(numHashes, numPostings, numTracks uint64) {
	IndexSize.WithLabelValues("hashes").Set(float64(numHashes))
	IndexSize.WithLabelValues("postings").Set(float64(numPostings))
	IndexSize.WithLabelValues("tracks").Set(float64(numTracks))
}
