// Package fpcore is the orchestrator surface spec §6 names: enroll,
// identify, and open_index, wiring the signal frontend, peak picker,
// pair hasher, index store, and matcher together behind three calls.
// It mirrors the shape of the teacher's main.go command handlers
// (ProcessUploadedSong / ProcessQuery / InitDB) generalized from a
// fixed Postgres+CLI binding to any Store and Catalog implementation.
package fpcore

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soundmark/fpcore/internal/config"
	"github.com/soundmark/fpcore/internal/fingerprint"
	"github.com/soundmark/fpcore/internal/fperrors"
	"github.com/soundmark/fpcore/internal/index"
	"github.com/soundmark/fpcore/internal/logging"
	"github.com/soundmark/fpcore/internal/matcher"
	"github.com/soundmark/fpcore/internal/metrics"
	"github.com/soundmark/fpcore/internal/peaks"
	"github.com/soundmark/fpcore/internal/signal"
)

// DefaultIdentifyTimeout is spec §5's default wall-clock identify budget.
const DefaultIdentifyTimeout = 1 * time.Second

// Orchestrator binds one Config to one index Store for the lifetime of
// a process or request batch. It holds no other state: enroll and
// identify are otherwise pure functions of their arguments (spec §4.5:
// "identify is idempotent and pure with respect to the index").
type Orchestrator struct {
	cfg    config.Config
	store  index.Store
	logger *slog.Logger
}

// New binds cfg and store into an Orchestrator. The caller is
// responsible for opening store with matching cfg (see OpenIndex) so
// the parameter digest check at open time has already happened.
func New(cfg config.Config, store index.Store) *Orchestrator {
	return &Orchestrator{cfg: cfg, store: store, logger: logging.Get()}
}

// EnrollStats reports what one enroll call produced.
type EnrollStats struct {
	NumHashes int
}

// Enroll implements spec §6's enroll(track_id, pcm) -> {num_hashes}.
// pcm MUST already be at cfg.SampleRate (resampling is a caller
// concern per spec's Non-goals). On any store I/O failure the
// in-progress track is aborted before the error is returned, so a
// retry under the same track_id starts from a clean slate.
func (o *Orchestrator) Enroll(ctx context.Context, trackID uint32, pcm []float64) (EnrollStats, error) {
	start := time.Now()
	defer func() { metrics.EnrollDuration.Observe(time.Since(start).Seconds()) }()

	spectrogram, err := signal.Frontend(pcm, o.cfg)
	if err != nil {
		metrics.EnrollFailuresTotal.Inc()
		return EnrollStats{}, err
	}
	if spectrogram.Frames == 0 {
		// pcm shorter than one FFT window: zero hashes, no error.
		return EnrollStats{NumHashes: 0}, nil
	}

	constellation := peaks.Extract(spectrogram, o.cfg)
	pairs := fingerprint.Pairs(constellation, o.cfg)

	if err := o.store.PutBulk(ctx, trackID, pairs); err != nil {
		if abortErr := o.store.AbortTrack(ctx, trackID); abortErr != nil {
			o.logger.ErrorContext(ctx, "failed to abort track after put_bulk error",
				slog.Uint64("track_id", uint64(trackID)), slog.Any("error", abortErr))
		}
		metrics.EnrollFailuresTotal.Inc()
		return EnrollStats{}, err
	}
	if err := o.store.Flush(ctx); err != nil {
		if abortErr := o.store.AbortTrack(ctx, trackID); abortErr != nil {
			o.logger.ErrorContext(ctx, "failed to abort track after flush error",
				slog.Uint64("track_id", uint64(trackID)), slog.Any("error", abortErr))
		}
		metrics.EnrollFailuresTotal.Inc()
		return EnrollStats{}, err
	}

	metrics.EnrollPairsTotal.Add(float64(len(pairs)))
	return EnrollStats{NumHashes: len(pairs)}, nil
}

// EnrollChunked implements SPEC_FULL.md's chunked-enrollment
// supplement for long recordings: pcm is processed in overlapping
// windows so memory use stays bounded by chunkFrames regardless of the
// track's total length, grounded on the DefaultAudiobookConfig /
// FingerprintAudioChunked pattern from the seek-tune reference. Only
// one Flush happens, at the end, so a mid-stream failure still leaves
// AbortTrack able to discard everything written so far.
func (o *Orchestrator) EnrollChunked(ctx context.Context, trackID uint32, pcm []float64, chunkFrames, overlapFrames int) (EnrollStats, error) {
	if chunkFrames <= overlapFrames {
		return EnrollStats{}, fperrors.IoError("chunkFrames must exceed overlapFrames", nil)
	}

	total := 0
	stride := chunkFrames - overlapFrames

	for start := 0; start < len(pcm); start += stride {
		if err := ctx.Err(); err != nil {
			_ = o.store.AbortTrack(ctx, trackID)
			return EnrollStats{}, fperrors.Cancelled("enroll_chunked cancelled")
		}

		end := start + chunkFrames
		if end > len(pcm) {
			end = len(pcm)
		}
		chunk := pcm[start:end]

		spectrogram, err := signal.Frontend(chunk, o.cfg)
		if err != nil {
			_ = o.store.AbortTrack(ctx, trackID)
			return EnrollStats{}, err
		}
		if spectrogram.Frames == 0 {
			if end == len(pcm) {
				break // final short tail, nothing more to extract
			}
			continue
		}

		constellation := peaks.Extract(spectrogram, o.cfg)
		pairs := fingerprint.Pairs(constellation, o.cfg)
		offsetFrames := start / o.cfg.Hop
		for i := range pairs {
			pairs[i].AnchorFrame += offsetFrames
		}

		if err := o.store.PutBulk(ctx, trackID, pairs); err != nil {
			_ = o.store.AbortTrack(ctx, trackID)
			return EnrollStats{}, err
		}
		total += len(pairs)

		if end == len(pcm) {
			break
		}
	}

	if err := o.store.Flush(ctx); err != nil {
		_ = o.store.AbortTrack(ctx, trackID)
		return EnrollStats{}, err
	}

	return EnrollStats{NumHashes: total}, nil
}

// IdentifyResult is spec §6's identify(...) -> {candidates, partial}.
type IdentifyResult struct {
	Candidates []matcher.Candidate
	Confident  bool
	Partial    bool
}

// Identify implements spec §6's identify(pcm, top_k=5, timeout=1s).
// Cancellation checkpoints sit between extraction and matching and
// inside the matcher itself (spec §5): a caller-cancelled ctx aborts
// with Cancelled and no partial results; timeout expiry instead
// returns the best-so-far ranking with Partial set.
func (o *Orchestrator) Identify(ctx context.Context, pcm []float64, topK int, timeout time.Duration) (IdentifyResult, error) {
	requestID := uuid.NewString()
	logger := o.logger.With(slog.String("request_id", requestID))

	start := time.Now()
	defer func() { metrics.IdentifyDuration.Observe(time.Since(start).Seconds()) }()

	if timeout <= 0 {
		timeout = DefaultIdentifyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	spectrogram, err := signal.Frontend(pcm, o.cfg)
	if err != nil {
		return IdentifyResult{}, err
	}
	if spectrogram.Frames == 0 {
		// pcm shorter than one FFT window: zero hashes, zero candidates, no error.
		return IdentifyResult{}, nil
	}

	constellation := peaks.Extract(spectrogram, o.cfg)
	queryPairs := fingerprint.Pairs(constellation, o.cfg)

	if err := ctx.Err(); err != nil {
		return IdentifyResult{}, fperrors.Cancelled("identify cancelled before matching")
	}

	result, err := matcher.Match(ctx, o.store, queryPairs, o.cfg, topK)
	if err != nil {
		return IdentifyResult{}, err
	}

	if result.Partial {
		metrics.IdentifyPartialTotal.Inc()
		logger.WarnContext(ctx, "identify timed out, returning best-so-far ranking",
			slog.Int("candidates", len(result.Candidates)))
	}
	if result.Confident {
		metrics.IdentifyConfidentTotal.Inc()
	}
	logger.DebugContext(ctx, "identify complete",
		slog.Int("query_pairs", len(queryPairs)), slog.Int("candidates", len(result.Candidates)))

	return IdentifyResult{Candidates: result.Candidates, Confident: result.Confident, Partial: result.Partial}, nil
}

// OpenIndex implements spec §6's open_index(path, mode) for the
// reference file backing. Callers that want the memory, Redis, or
// Postgres backings call index.NewMemoryStore / index.OpenRedis /
// index.OpenPostgres directly, since those take connection parameters
// open_index's two-argument surface has no room for.
func OpenIndex(ctx context.Context, path string, mode index.Mode, cfg config.Config) (index.Store, error) {
	return index.OpenFile(ctx, path, mode, cfg)
}
