// Package index implements the inverted fingerprint index of spec §4.4:
// an append-only-during-enroll, read-only-during-identify mapping from
// hash to posting lists, with a durable binary file format (file.go) as
// the reference backing and three alternative backings (memory.go,
// redis.go, postgres.go) that preserve the same five-operation contract,
// per spec §9's redesign note on the source's assumed external KV store.
package index

import (
	"context"

	"github.com/soundmark/fpcore/internal/fingerprint"
)

// Posting is a (track_id, t_anchor) occurrence of a hash inside a
// specific track (spec §3).
type Posting struct {
	TrackID  uint32
	TAnchor  uint32
}

// Stats reports the aggregate size of an index (spec §4.4 stats()).
type Stats struct {
	NumHashes   uint64
	NumPostings uint64
	NumTracks   uint64
}

// Store is the five-operation contract spec §4.4 names. Every backing
// (file, in-memory, Redis, Postgres) implements exactly this interface;
// callers never need to know which one they're holding.
type Store interface {
	// Put appends one posting for hash.
	Put(ctx context.Context, hash fingerprint.Hash, trackID uint32, tAnchor uint32) error

	// PutBulk appends postings for a single track; this is the
	// preferred path for enroll (spec §4.4) and is the only path that
	// guarantees in-list ordering (spec §5).
	PutBulk(ctx context.Context, trackID uint32, pairs []fingerprint.Pair) error

	// AbortTrack discards any postings written for trackID since the
	// last Flush, satisfying spec §5's enroll-cancellation contract.
	AbortTrack(ctx context.Context, trackID uint32) error

	// Get returns the posting list for hash, or an empty slice if absent.
	Get(ctx context.Context, hash fingerprint.Hash) ([]Posting, error)

	// Flush makes all prior Put/PutBulk calls durable and visible to
	// subsequent Get calls (spec §4.4, §5).
	Flush(ctx context.Context) error

	// Stats reports aggregate index size.
	Stats(ctx context.Context) (Stats, error)

	// Close releases any held resources.
	Close() error
}

// ParamConfig is implemented by backings that persist a parameter
// digest and must refuse to open against a mismatched Config (spec §4.4:
// "A reader MUST refuse to open a file whose parameter digest differs
// from the runtime configuration"). Ephemeral backings (memory.go) do
// not implement this, per spec §4.4's carve-out for backings that are
// never shared across processes with different parameters.
type ParamConfig interface {
	Digest() [32]byte
}
