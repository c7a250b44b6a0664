package index

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/soundmark/fpcore/internal/config"
	"github.com/soundmark/fpcore/internal/fingerprint"
	"github.com/soundmark/fpcore/internal/fperrors"
)

// RedisStore is the "external key-value store" backing spec §9
// anticipates ("External key-value store assumed (Redis): treated as
// one backing for the IndexStore capability... MUST preserve the same
// semantics and parameter digest"). Each hash's posting list is a Redis
// list of packed 8-byte (track_id, t_anchor) entries under
// "<namespace>:h:<hash>"; a namespace-scoped meta key holds the
// parameter digest so two processes sharing a Redis instance under
// different Configs refuse to interoperate, exactly like FileStore.
//
// Writes are buffered client-side until Flush, both so AbortTrack can
// discard an in-progress enroll cheaply and so Get's "may miss
// concurrent unflushed writes" allowance (spec §5) holds naturally:
// Get only ever reads from Redis, never from the local buffer.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
	cfg       config.Config

	mu              sync.Mutex
	pending         map[fingerprint.Hash][]Posting
	trackBoundaries map[uint32][]pendingEntry
}

// OpenRedis connects to rdb under namespace, validating (or, if absent,
// writing) the parameter digest meta key.
func OpenRedis(ctx context.Context, rdb *redis.Client, namespace string, cfg config.Config) (*RedisStore, error) {
	rs := &RedisStore{
		rdb:             rdb,
		namespace:       namespace,
		cfg:             cfg,
		pending:         map[fingerprint.Hash][]Posting{},
		trackBoundaries: map[uint32][]pendingEntry{},
	}

	metaKey := rs.key("meta:digest")
	existing, err := rdb.Get(ctx, metaKey).Bytes()
	if err == redis.Nil {
		digest := cfg.Digest()
		if err := rdb.Set(ctx, metaKey, digest[:], 0).Err(); err != nil {
			return nil, fperrors.IoError("writing redis param digest", err)
		}
		return rs, nil
	}
	if err != nil {
		return nil, fperrors.IoError("reading redis param digest", err)
	}
	digest := cfg.Digest()
	if len(existing) != len(digest) || string(existing) != string(digest[:]) {
		return nil, fperrors.ParamDigestMismatch("redis namespace was built with a different Config")
	}
	return rs, nil
}

func (rs *RedisStore) key(suffix string) string {
	return fmt.Sprintf("%s:%s", rs.namespace, suffix)
}

func (rs *RedisStore) hashKey(h fingerprint.Hash) string {
	return rs.key(fmt.Sprintf("h:%x", uint64(h)))
}

func packPosting(p Posting) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], p.TrackID)
	binary.LittleEndian.PutUint32(buf[4:8], p.TAnchor)
	return buf
}

func unpackPosting(b []byte) Posting {
	return Posting{
		TrackID: binary.LittleEndian.Uint32(b[0:4]),
		TAnchor: binary.LittleEndian.Uint32(b[4:8]),
	}
}

func (rs *RedisStore) Put(ctx context.Context, hash fingerprint.Hash, trackID, tAnchor uint32) error {
	return rs.PutBulk(ctx, trackID, []fingerprint.Pair{{Hash: hash, AnchorFrame: int(tAnchor)}})
}

func (rs *RedisStore) PutBulk(ctx context.Context, trackID uint32, pairs []fingerprint.Pair) error {
	if err := ctx.Err(); err != nil {
		return fperrors.Cancelled("PutBulk cancelled")
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, p := range pairs {
		posting := Posting{TrackID: trackID, TAnchor: uint32(p.AnchorFrame)}
		idx := len(rs.pending[p.Hash])
		rs.pending[p.Hash] = append(rs.pending[p.Hash], posting)
		rs.trackBoundaries[trackID] = append(rs.trackBoundaries[trackID], pendingEntry{hash: p.Hash, idx: idx})
	}
	return nil
}

func (rs *RedisStore) AbortTrack(ctx context.Context, trackID uint32) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	entries, ok := rs.trackBoundaries[trackID]
	if !ok {
		return nil
	}
	byHash := map[fingerprint.Hash][]int{}
	for _, e := range entries {
		byHash[e.hash] = append(byHash[e.hash], e.idx)
	}
	for h, idxs := range byHash {
		sort.Sort(sort.Reverse(sort.IntSlice(idxs)))
		list := rs.pending[h]
		for _, idx := range idxs {
			if idx < 0 || idx >= len(list) {
				continue
			}
			list = append(list[:idx], list[idx+1:]...)
		}
		if len(list) == 0 {
			delete(rs.pending, h)
		} else {
			rs.pending[h] = list
		}
	}
	delete(rs.trackBoundaries, trackID)
	return nil
}

// Get reads directly from Redis, never from the local write buffer
// (see type doc): a reader racing an unflushed writer may miss it, as
// spec §5 permits.
func (rs *RedisStore) Get(ctx context.Context, hash fingerprint.Hash) ([]Posting, error) {
	raw, err := rs.rdb.LRange(ctx, rs.hashKey(hash), 0, -1).Result()
	if err != nil {
		return nil, fperrors.IoError("redis LRANGE", err)
	}
	out := make([]Posting, 0, len(raw))
	for _, s := range raw {
		out = append(out, unpackPosting([]byte(s)))
	}
	return out, nil
}

// Flush pipelines every buffered posting into Redis and updates the
// namespace-wide hash/track/posting counters used by Stats.
func (rs *RedisStore) Flush(ctx context.Context) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if len(rs.pending) == 0 {
		return nil
	}

	pipe := rs.rdb.Pipeline()
	tracks := map[uint32]struct{}{}
	var newPostings int64

	for h, list := range rs.pending {
		members := make([]interface{}, 0, len(list))
		for _, p := range list {
			members = append(members, packPosting(p))
			tracks[p.TrackID] = struct{}{}
		}
		pipe.RPush(ctx, rs.hashKey(h), members...)
		pipe.SAdd(ctx, rs.key("hashes"), uint64(h))
		newPostings += int64(len(list))
	}
	for t := range tracks {
		pipe.SAdd(ctx, rs.key("tracks"), t)
	}
	pipe.IncrBy(ctx, rs.key("stats:postings"), newPostings)

	if _, err := pipe.Exec(ctx); err != nil {
		return fperrors.IoError("redis pipeline exec", err)
	}

	rs.pending = map[fingerprint.Hash][]Posting{}
	rs.trackBoundaries = map[uint32][]pendingEntry{}
	return nil
}

func (rs *RedisStore) Stats(ctx context.Context) (Stats, error) {
	numHashes, err := rs.rdb.SCard(ctx, rs.key("hashes")).Result()
	if err != nil {
		return Stats{}, fperrors.IoError("redis SCARD hashes", err)
	}
	numTracks, err := rs.rdb.SCard(ctx, rs.key("tracks")).Result()
	if err != nil {
		return Stats{}, fperrors.IoError("redis SCARD tracks", err)
	}
	numPostings, err := rs.rdb.Get(ctx, rs.key("stats:postings")).Int64()
	if err != nil && err != redis.Nil {
		return Stats{}, fperrors.IoError("redis GET stats:postings", err)
	}
	return Stats{
		NumHashes:   uint64(numHashes),
		NumTracks:   uint64(numTracks),
		NumPostings: uint64(numPostings),
	}, nil
}

func (rs *RedisStore) Close() error { return rs.rdb.Close() }

func (rs *RedisStore) Digest() [32]byte { return rs.cfg.Digest() }

var _ Store = (*RedisStore)(nil)
