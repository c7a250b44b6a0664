package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/soundmark/fpcore/internal/config"
	"github.com/soundmark/fpcore/internal/fingerprint"
	"github.com/soundmark/fpcore/internal/fperrors"
)

// insertBatchSize bounds how many postings go into a single multi-row
// INSERT, mirroring the teacher's batched StoreFingerprints.
const insertBatchSize = 20000

// PostgresStore is a SQL-backed IndexStore, grounded on the teacher's
// db/postgres.go fingerprints table (address/anchorTimeMs/songID with a
// composite primary key and a b-tree index on address). It is extended
// here to the full Store contract: a params table carries the
// parameter digest, and an uncommitted per-track transaction backs
// AbortTrack directly via tx.Rollback, something the teacher's
// one-shot StoreFingerprints never needed.
type PostgresStore struct {
	db  *sql.DB
	cfg config.Config

	mu        sync.Mutex
	txByTrack map[uint32]*sql.Tx
}

// OpenPostgres connects via dsn, creates the schema if absent, and
// validates the stored parameter digest against cfg (spec §4.4).
func OpenPostgres(ctx context.Context, dsn string, cfg config.Config) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fperrors.IoError("opening postgres connection", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fperrors.IoError("connecting to postgres", err)
	}

	ps := &PostgresStore{db: db, cfg: cfg, txByTrack: map[uint32]*sql.Tx{}}

	if err := ps.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if err := ps.checkOrWriteDigest(ctx); err != nil {
		return nil, err
	}
	return ps, nil
}

func (ps *PostgresStore) ensureSchema(ctx context.Context) error {
	const createParams = `
	CREATE TABLE IF NOT EXISTS fpcore_params (
		id SMALLINT PRIMARY KEY DEFAULT 1,
		digest BYTEA NOT NULL,
		CONSTRAINT fpcore_params_singleton CHECK (id = 1)
	);`

	const createPostings = `
	CREATE TABLE IF NOT EXISTS fpcore_postings (
		hash BIGINT NOT NULL,
		t_anchor INTEGER NOT NULL,
		track_id BIGINT NOT NULL,
		PRIMARY KEY (hash, t_anchor, track_id)
	);
	CREATE INDEX IF NOT EXISTS idx_fpcore_postings_hash ON fpcore_postings (hash);
	`

	if _, err := ps.db.ExecContext(ctx, createParams); err != nil {
		return fperrors.IoError("creating fpcore_params table", err)
	}
	if _, err := ps.db.ExecContext(ctx, createPostings); err != nil {
		return fperrors.IoError("creating fpcore_postings table", err)
	}
	return nil
}

func (ps *PostgresStore) checkOrWriteDigest(ctx context.Context) error {
	digest := ps.cfg.Digest()

	var existing []byte
	err := ps.db.QueryRowContext(ctx, `SELECT digest FROM fpcore_params WHERE id = 1`).Scan(&existing)
	if err == sql.ErrNoRows {
		_, err := ps.db.ExecContext(ctx, `INSERT INTO fpcore_params (id, digest) VALUES (1, $1)`, digest[:])
		if err != nil {
			return fperrors.IoError("writing postgres param digest", err)
		}
		return nil
	}
	if err != nil {
		return fperrors.IoError("reading postgres param digest", err)
	}
	if len(existing) != len(digest) || string(existing) != string(digest[:]) {
		return fperrors.ParamDigestMismatch("postgres fpcore_postings table was built with a different Config")
	}
	return nil
}

// hashToSigned reinterprets a uint64 hash as int64 for BIGINT storage,
// same cast the teacher's address column relies on.
func hashToSigned(h fingerprint.Hash) int64 { return int64(h) }

func (ps *PostgresStore) Put(ctx context.Context, hash fingerprint.Hash, trackID, tAnchor uint32) error {
	return ps.PutBulk(ctx, trackID, []fingerprint.Pair{{Hash: hash, AnchorFrame: int(tAnchor)}})
}

// PutBulk opens (or reuses) a transaction scoped to trackID and
// batch-inserts pairs into it, following the teacher's valueStrings /
// valueArgs batching pattern. The transaction stays open until Flush
// commits it or AbortTrack rolls it back.
func (ps *PostgresStore) PutBulk(ctx context.Context, trackID uint32, pairs []fingerprint.Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	ps.mu.Lock()
	tx, ok := ps.txByTrack[trackID]
	if !ok {
		var err error
		tx, err = ps.db.BeginTx(ctx, nil)
		if err != nil {
			ps.mu.Unlock()
			return fperrors.IoError("beginning postgres transaction", err)
		}
		ps.txByTrack[trackID] = tx
	}
	ps.mu.Unlock()

	for start := 0; start < len(pairs); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		batch := pairs[start:end]

		valueStrings := make([]string, 0, len(batch))
		valueArgs := make([]any, 0, len(batch)*3)
		paramIndex := 1
		for _, p := range batch {
			valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d)", paramIndex, paramIndex+1, paramIndex+2))
			valueArgs = append(valueArgs, hashToSigned(p.Hash), int32(p.AnchorFrame), int64(trackID))
			paramIndex += 3
		}

		insertQuery := fmt.Sprintf(`
			INSERT INTO fpcore_postings (hash, t_anchor, track_id)
			VALUES %s
			ON CONFLICT (hash, t_anchor, track_id) DO NOTHING
		`, strings.Join(valueStrings, ","))

		if _, err := tx.ExecContext(ctx, insertQuery, valueArgs...); err != nil {
			return fperrors.IoError("inserting postgres posting batch", err)
		}
	}
	return nil
}

// AbortTrack rolls back trackID's open transaction, discarding every
// posting written for it since the last Flush (spec §5).
func (ps *PostgresStore) AbortTrack(ctx context.Context, trackID uint32) error {
	ps.mu.Lock()
	tx, ok := ps.txByTrack[trackID]
	delete(ps.txByTrack, trackID)
	ps.mu.Unlock()

	if !ok {
		return nil
	}
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fperrors.IoError("rolling back aborted track", err)
	}
	return nil
}

func (ps *PostgresStore) Get(ctx context.Context, hash fingerprint.Hash) ([]Posting, error) {
	rows, err := ps.db.QueryContext(ctx,
		`SELECT t_anchor, track_id FROM fpcore_postings WHERE hash = $1`, hashToSigned(hash))
	if err != nil {
		return nil, fperrors.IoError("querying postgres postings", err)
	}
	defer rows.Close()

	var out []Posting
	for rows.Next() {
		var tAnchor int32
		var trackID int64
		if err := rows.Scan(&tAnchor, &trackID); err != nil {
			return nil, fperrors.IoError("scanning posting row", err)
		}
		out = append(out, Posting{TrackID: uint32(trackID), TAnchor: uint32(tAnchor)})
	}
	return out, rows.Err()
}

// Flush commits every open per-track transaction, making their
// postings visible to Get (spec §4.4, §5).
func (ps *PostgresStore) Flush(ctx context.Context) error {
	ps.mu.Lock()
	txs := ps.txByTrack
	ps.txByTrack = map[uint32]*sql.Tx{}
	ps.mu.Unlock()

	for trackID, tx := range txs {
		if err := tx.Commit(); err != nil {
			return fperrors.IoError(fmt.Sprintf("committing postgres transaction for track %d", trackID), err)
		}
	}
	return nil
}

func (ps *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var numPostings, numHashes, numTracks uint64
	row := ps.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fpcore_postings`)
	if err := row.Scan(&numPostings); err != nil {
		return Stats{}, fperrors.IoError("counting postgres postings", err)
	}
	row = ps.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT hash) FROM fpcore_postings`)
	if err := row.Scan(&numHashes); err != nil {
		return Stats{}, fperrors.IoError("counting distinct postgres hashes", err)
	}
	row = ps.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT track_id) FROM fpcore_postings`)
	if err := row.Scan(&numTracks); err != nil {
		return Stats{}, fperrors.IoError("counting distinct postgres tracks", err)
	}
	return Stats{NumHashes: numHashes, NumPostings: numPostings, NumTracks: numTracks}, nil
}

func (ps *PostgresStore) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, tx := range ps.txByTrack {
		_ = tx.Rollback()
	}
	return ps.db.Close()
}

func (ps *PostgresStore) Digest() [32]byte { return ps.cfg.Digest() }

var _ Store = (*PostgresStore)(nil)
