package index_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/soundmark/fpcore/internal/config"
	"github.com/soundmark/fpcore/internal/fingerprint"
	"github.com/soundmark/fpcore/internal/index"
)

func pairsOf(hashes ...fingerprint.Hash) []fingerprint.Pair {
	pairs := make([]fingerprint.Pair, len(hashes))
	for i, h := range hashes {
		pairs[i] = fingerprint.Pair{Hash: h, AnchorFrame: i * 10}
	}
	return pairs
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	path := filepath.Join(t.TempDir(), "index.fpidx")

	fs, err := index.OpenFile(ctx, path, index.ModeAppend, cfg)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}

	pairs := pairsOf(1, 2, 3, 2)
	if err := fs.PutBulk(ctx, 42, pairs); err != nil {
		t.Fatalf("put_bulk: %v", err)
	}
	wantStats, err := fs.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if err := fs.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	reopened, err := index.OpenFile(ctx, path, index.ModeRead, cfg)
	if err != nil {
		t.Fatalf("reopen for read: %v", err)
	}
	gotStats, err := reopened.Stats(ctx)
	if err != nil {
		t.Fatalf("stats after reopen: %v", err)
	}
	if gotStats != wantStats {
		t.Fatalf("stats mismatch after reopen: got %+v want %+v", gotStats, wantStats)
	}

	postings, err := reopened.Get(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings for hash=2, got %d", len(postings))
	}
	for _, p := range postings {
		if p.TrackID != 42 {
			t.Fatalf("posting has wrong track id: %+v", p)
		}
	}
}

func TestFileStoreRefusesMismatchedDigest(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	path := filepath.Join(t.TempDir(), "index.fpidx")

	fs, err := index.OpenFile(ctx, path, index.ModeAppend, cfg)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if err := fs.PutBulk(ctx, 1, pairsOf(7)); err != nil {
		t.Fatalf("put_bulk: %v", err)
	}
	if err := fs.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	other := config.Default()
	other.FanOut = cfg.FanOut + 1

	_, err = index.OpenFile(ctx, path, index.ModeRead, other)
	if err == nil {
		t.Fatal("expected ParamDigestMismatch, got nil")
	}
}

func TestFileStoreDetectsTruncation(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	path := filepath.Join(t.TempDir(), "index.fpidx")

	fs, err := index.OpenFile(ctx, path, index.ModeAppend, cfg)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if err := fs.PutBulk(ctx, 1, pairsOf(3, 4, 5)); err != nil {
		t.Fatalf("put_bulk: %v", err)
	}
	if err := fs.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := os.Truncate(path, info.Size()-64); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	_, err = index.OpenFile(ctx, path, index.ModeRead, cfg)
	if err == nil {
		t.Fatal("expected CorruptIndex error on truncated file, got nil")
	}
}

func TestFileStoreAbortTrackBoundaryIDs(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	path := filepath.Join(t.TempDir(), "index.fpidx")

	fs, err := index.OpenFile(ctx, path, index.ModeAppend, cfg)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}

	for _, trackID := range []uint32{0, 4294967295} {
		if err := fs.PutBulk(ctx, trackID, pairsOf(100, 101)); err != nil {
			t.Fatalf("put_bulk for track %d: %v", trackID, err)
		}
	}

	if err := fs.AbortTrack(ctx, 0); err != nil {
		t.Fatalf("abort track 0: %v", err)
	}

	stats, err := fs.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.NumTracks != 1 {
		t.Fatalf("expected exactly 1 remaining track after abort, got %d", stats.NumTracks)
	}

	postings, err := fs.Get(ctx, 100)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for _, p := range postings {
		if p.TrackID == 0 {
			t.Fatal("aborted track's postings should have been removed")
		}
	}
}
