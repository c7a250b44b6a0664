package index

import (
	"context"
	"sync"

	"github.com/soundmark/fpcore/internal/fingerprint"
)

// MemoryStore is an ephemeral, process-local IndexStore backing. It
// ignores parameter-digest concerns entirely, per spec §4.4's carve-out
// for backings "ignore format-digest concerns only if they are
// ephemeral (not shared across processes with different parameters)".
// Useful for tests and for short-lived identify-only sessions.
type MemoryStore struct {
	mu              sync.RWMutex
	postings        map[fingerprint.Hash][]Posting
	trackBoundaries map[uint32][]pendingEntry
	dedup           bool
}

// NewMemoryStore returns an empty in-memory store. Set dedup to collapse
// duplicate (hash, track, t_anchor) triples on PutBulk, matching
// Config.DedupPostings semantics for callers that want the same
// behavior without a Config in hand.
func NewMemoryStore(dedup bool) *MemoryStore {
	return &MemoryStore{
		postings:        map[fingerprint.Hash][]Posting{},
		trackBoundaries: map[uint32][]pendingEntry{},
		dedup:           dedup,
	}
}

func (m *MemoryStore) Put(ctx context.Context, hash fingerprint.Hash, trackID, tAnchor uint32) error {
	return m.PutBulk(ctx, trackID, []fingerprint.Pair{{Hash: hash, AnchorFrame: int(tAnchor)}})
}

func (m *MemoryStore) PutBulk(ctx context.Context, trackID uint32, pairs []fingerprint.Pair) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range pairs {
		list := m.postings[p.Hash]
		posting := Posting{TrackID: trackID, TAnchor: uint32(p.AnchorFrame)}

		if m.dedup {
			dup := false
			for _, existing := range list {
				if existing == posting {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
		}

		idx := len(list)
		m.postings[p.Hash] = append(list, posting)
		m.trackBoundaries[trackID] = append(m.trackBoundaries[trackID], pendingEntry{hash: p.Hash, idx: idx})
	}
	return nil
}

func (m *MemoryStore) AbortTrack(ctx context.Context, trackID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.trackBoundaries[trackID]
	byHash := map[fingerprint.Hash][]int{}
	for _, e := range entries {
		byHash[e.hash] = append(byHash[e.hash], e.idx)
	}
	for h, idxs := range byHash {
		// remove highest index first to keep remaining indices valid
		for i := len(idxs) - 1; i >= 0; i-- {
			idx := idxs[i]
			list := m.postings[h]
			if idx < 0 || idx >= len(list) {
				continue
			}
			list = append(list[:idx], list[idx+1:]...)
			if len(list) == 0 {
				delete(m.postings, h)
			} else {
				m.postings[h] = list
			}
		}
	}
	delete(m.trackBoundaries, trackID)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, hash fingerprint.Hash) ([]Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.postings[hash]
	out := make([]Posting, len(list))
	copy(out, list)
	return out, nil
}

// Flush is a no-op: every Put/PutBulk is already visible to Get.
func (m *MemoryStore) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackBoundaries = map[uint32][]pendingEntry{}
	return nil
}

func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var numPostings uint64
	tracks := map[uint32]struct{}{}
	for _, list := range m.postings {
		numPostings += uint64(len(list))
		for _, p := range list {
			tracks[p.TrackID] = struct{}{}
		}
	}
	return Stats{NumHashes: uint64(len(m.postings)), NumPostings: numPostings, NumTracks: uint64(len(tracks))}, nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
