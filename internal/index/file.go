package index

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/soundmark/fpcore/internal/config"
	"github.com/soundmark/fpcore/internal/fingerprint"
	"github.com/soundmark/fpcore/internal/fperrors"
)

// File format (spec §6):
//
//	magic        : 8  bytes  "FPIDX\0\0\0"
//	version      : u16
//	param_digest : 32 bytes  (SHA-256 over the configuration table)
//	num_hashes   : u64
//	num_postings : u64
//	postings     : num_postings x (track_id:u32, t_anchor:u32)   little-endian
//	directory    : num_hashes x (hash:u64, offset:u64, count:u32)
//	footer       : dir_offset:u64, dir_crc32:u32, magic:8
var fileMagic = [8]byte{'F', 'P', 'I', 'D', 'X', 0, 0, 0}

const fileVersion uint16 = 1

const (
	headerFixedSize = 8 + 2 + 32 + 8 + 8 // magic, version, digest, num_hashes, num_postings
	postingSize     = 4 + 4
	dirEntrySize    = 8 + 8 + 4
	footerSize      = 8 + 4 + 8
)

// Mode selects how OpenFile treats path (spec §6 open_index).
type Mode int

const (
	ModeRead Mode = iota
	ModeAppend
)

// FileStore is the reference IndexStore backing: a single binary file,
// append-buffered in memory until Flush, then rewritten atomically.
// This mirrors the teacher's arena-then-directory redesign note (spec
// §9: "use an arena/segment writer that batches posting writes per
// track and appends them contiguously; the directory is built at
// flush() from a sorted hash table").
type FileStore struct {
	path string
	mode Mode
	cfg  config.Config

	mu sync.Mutex

	// pending holds postings accumulated since the last Flush, including
	// everything already durable on disk when opened in append mode
	// (loaded once at open so AbortTrack and Stats can see it all).
	pending map[fingerprint.Hash][]Posting

	// trackBoundaries records, for the in-progress batch only, which
	// (hash, index-within-list) entries belong to which track, so
	// AbortTrack can undo a partial enroll without touching anything
	// already durable before this batch began.
	trackBoundaries map[uint32][]pendingEntry
}

type pendingEntry struct {
	hash fingerprint.Hash
	idx  int
}

// OpenFile opens or creates the index file at path under mode.
//
// ModeRead loads the full directory and posting data is read lazily via
// seeks into the file. ModeAppend loads the existing contents (if any)
// into memory so new postings can be merged in before the next Flush.
func OpenFile(ctx context.Context, path string, mode Mode, cfg config.Config) (*FileStore, error) {
	fs := &FileStore{
		path:            path,
		mode:            mode,
		cfg:             cfg,
		pending:         map[fingerprint.Hash][]Posting{},
		trackBoundaries: map[uint32][]pendingEntry{},
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mode == ModeRead {
				return nil, fperrors.IoError("index file does not exist", err)
			}
			return fs, nil // fresh append-mode index
		}
		return nil, fperrors.IoError("stat index file", err)
	}
	if info.Size() == 0 {
		return fs, nil
	}

	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	f, err := os.Open(fs.path)
	if err != nil {
		return fperrors.IoError("open index file", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return fperrors.CorruptIndex("reading magic", err)
	}
	if magic != fileMagic {
		return fperrors.CorruptIndex("bad magic", nil)
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fperrors.CorruptIndex("reading version", err)
	}
	if version != fileVersion {
		return fperrors.CorruptIndex(fmt.Sprintf("unsupported version %d", version), nil)
	}

	var digest [32]byte
	if _, err := io.ReadFull(r, digest[:]); err != nil {
		return fperrors.CorruptIndex("reading digest", err)
	}
	if digest != fs.cfg.Digest() {
		return fperrors.ParamDigestMismatch("index was built with a different Config")
	}

	var numHashes, numPostings uint64
	if err := binary.Read(r, binary.LittleEndian, &numHashes); err != nil {
		return fperrors.CorruptIndex("reading num_hashes", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &numPostings); err != nil {
		return fperrors.CorruptIndex("reading num_postings", err)
	}

	postings := make([]Posting, numPostings)
	for i := range postings {
		var trackID, tAnchor uint32
		if err := binary.Read(r, binary.LittleEndian, &trackID); err != nil {
			return fperrors.CorruptIndex("reading posting track_id", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &tAnchor); err != nil {
			return fperrors.CorruptIndex("reading posting t_anchor", err)
		}
		postings[i] = Posting{TrackID: trackID, TAnchor: tAnchor}
	}

	type dirEntry struct {
		hash   uint64
		offset uint64
		count  uint32
	}
	dir := make([]dirEntry, numHashes)
	dirBuf := make([]byte, int(numHashes)*dirEntrySize)
	if _, err := io.ReadFull(r, dirBuf); err != nil {
		return fperrors.CorruptIndex("reading directory", err)
	}
	for i := range dir {
		base := i * dirEntrySize
		dir[i] = dirEntry{
			hash:   binary.LittleEndian.Uint64(dirBuf[base : base+8]),
			offset: binary.LittleEndian.Uint64(dirBuf[base+8 : base+16]),
			count:  binary.LittleEndian.Uint32(dirBuf[base+16 : base+20]),
		}
	}

	var dirOffset uint64
	var dirCRC uint32
	var footerMagic [8]byte
	if err := binary.Read(r, binary.LittleEndian, &dirOffset); err != nil {
		return fperrors.CorruptIndex("reading footer dir_offset", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &dirCRC); err != nil {
		return fperrors.CorruptIndex("reading footer dir_crc32", err)
	}
	if _, err := io.ReadFull(r, footerMagic[:]); err != nil {
		return fperrors.CorruptIndex("reading footer magic", err)
	}
	if footerMagic != fileMagic {
		return fperrors.CorruptIndex("bad footer magic", nil)
	}

	wantOffset := uint64(headerFixedSize) + numPostings*postingSize
	if dirOffset != wantOffset {
		return fperrors.CorruptIndex("footer dir_offset does not match layout", nil)
	}
	if crc32.ChecksumIEEE(dirBuf) != dirCRC {
		return fperrors.CorruptIndex("directory CRC32 mismatch", nil)
	}

	for _, d := range dir {
		start := d.offset - uint64(headerFixedSize)
		idx := start / postingSize
		list := make([]Posting, d.count)
		copy(list, postings[idx:idx+uint64(d.count)])
		fs.pending[fingerprint.Hash(d.hash)] = list
	}

	return nil
}

// Put appends a single posting (spec §4.4).
func (fs *FileStore) Put(ctx context.Context, hash fingerprint.Hash, trackID, tAnchor uint32) error {
	return fs.PutBulk(ctx, trackID, []fingerprint.Pair{{Hash: hash, AnchorFrame: int(tAnchor)}})
}

// PutBulk appends postings for trackID, tracking boundaries so a
// subsequent AbortTrack(trackID) can undo exactly this call (and any
// other PutBulk calls for the same track since the last Flush).
func (fs *FileStore) PutBulk(ctx context.Context, trackID uint32, pairs []fingerprint.Pair) error {
	if err := ctx.Err(); err != nil {
		return fperrors.Cancelled("PutBulk cancelled")
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, p := range pairs {
		list := fs.pending[p.Hash]
		posting := Posting{TrackID: trackID, TAnchor: uint32(p.AnchorFrame)}

		if fs.cfg.DedupPostings {
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
		fs.pending[p.Hash] = append(list, posting)
		fs.trackBoundaries[trackID] = append(fs.trackBoundaries[trackID], pendingEntry{hash: p.Hash, idx: idx})
	}
	return nil
}

// AbortTrack removes every posting recorded for trackID since the last
// Flush (spec §5: enroll cancellation "MUST provide an abort that
// removes any postings written for that track_id since the batch began").
func (fs *FileStore) AbortTrack(ctx context.Context, trackID uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, ok := fs.trackBoundaries[trackID]
	if !ok {
		return nil
	}

	// Remove highest indices first so earlier indices stay valid as we mutate.
	byHash := map[fingerprint.Hash][]int{}
	for _, e := range entries {
		byHash[e.hash] = append(byHash[e.hash], e.idx)
	}
	for h, idxs := range byHash {
		sort.Sort(sort.Reverse(sort.IntSlice(idxs)))
		list := fs.pending[h]
		for _, idx := range idxs {
			if idx < 0 || idx >= len(list) {
				continue
			}
			list = append(list[:idx], list[idx+1:]...)
		}
		if len(list) == 0 {
			delete(fs.pending, h)
		} else {
			fs.pending[h] = list
		}
	}
	delete(fs.trackBoundaries, trackID)
	return nil
}

// Get returns the posting list for hash (spec §4.4).
func (fs *FileStore) Get(ctx context.Context, hash fingerprint.Hash) ([]Posting, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	list := fs.pending[hash]
	out := make([]Posting, len(list))
	copy(out, list)
	return out, nil
}

// Flush writes the whole index to a temp file and atomically renames it
// into place, then clears the per-track batch boundaries (everything is
// now durable, so AbortTrack no longer applies to it).
func (fs *FileStore) Flush(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir := filepath.Dir(fs.path)
	tmp, err := os.CreateTemp(dir, ".fpindex-*.tmp")
	if err != nil {
		return fperrors.IoError("create temp index file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)

	hashes := make([]fingerprint.Hash, 0, len(fs.pending))
	for h := range fs.pending {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	digest := fs.cfg.Digest()
	var numPostings uint64
	for _, h := range hashes {
		numPostings += uint64(len(fs.pending[h]))
	}

	if _, err := w.Write(fileMagic[:]); err != nil {
		return fperrors.IoError("write magic", err)
	}
	if err := binary.Write(w, binary.LittleEndian, fileVersion); err != nil {
		return fperrors.IoError("write version", err)
	}
	if _, err := w.Write(digest[:]); err != nil {
		return fperrors.IoError("write digest", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(hashes))); err != nil {
		return fperrors.IoError("write num_hashes", err)
	}
	if err := binary.Write(w, binary.LittleEndian, numPostings); err != nil {
		return fperrors.IoError("write num_postings", err)
	}

	type dirEntry struct {
		hash   uint64
		offset uint64
		count  uint32
	}
	dir2 := make([]dirEntry, 0, len(hashes))
	offset := uint64(headerFixedSize)
	for _, h := range hashes {
		list := fs.pending[h]
		for _, p := range list {
			if err := binary.Write(w, binary.LittleEndian, p.TrackID); err != nil {
				return fperrors.IoError("write posting track_id", err)
			}
			if err := binary.Write(w, binary.LittleEndian, p.TAnchor); err != nil {
				return fperrors.IoError("write posting t_anchor", err)
			}
		}
		dir2 = append(dir2, dirEntry{hash: uint64(h), offset: offset, count: uint32(len(list))})
		offset += uint64(len(list)) * postingSize
	}

	dirBuf := make([]byte, len(dir2)*dirEntrySize)
	for i, d := range dir2 {
		base := i * dirEntrySize
		binary.LittleEndian.PutUint64(dirBuf[base:base+8], d.hash)
		binary.LittleEndian.PutUint64(dirBuf[base+8:base+16], d.offset)
		binary.LittleEndian.PutUint32(dirBuf[base+16:base+20], d.count)
	}
	if _, err := w.Write(dirBuf); err != nil {
		return fperrors.IoError("write directory", err)
	}

	dirOffset := offset
	dirCRC := crc32.ChecksumIEEE(dirBuf)
	if err := binary.Write(w, binary.LittleEndian, dirOffset); err != nil {
		return fperrors.IoError("write footer dir_offset", err)
	}
	if err := binary.Write(w, binary.LittleEndian, dirCRC); err != nil {
		return fperrors.IoError("write footer dir_crc32", err)
	}
	if _, err := w.Write(fileMagic[:]); err != nil {
		return fperrors.IoError("write footer magic", err)
	}

	if err := w.Flush(); err != nil {
		return fperrors.IoError("flush temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		return fperrors.IoError("fsync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return fperrors.IoError("close temp file", err)
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		return fperrors.IoError("rename temp file into place", err)
	}

	fs.trackBoundaries = map[uint32][]pendingEntry{}
	return nil
}

// Stats reports aggregate index size (spec §4.4).
func (fs *FileStore) Stats(ctx context.Context) (Stats, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var numPostings uint64
	tracks := map[uint32]struct{}{}
	for _, list := range fs.pending {
		numPostings += uint64(len(list))
		for _, p := range list {
			tracks[p.TrackID] = struct{}{}
		}
	}
	return Stats{
		NumHashes:   uint64(len(fs.pending)),
		NumPostings: numPostings,
		NumTracks:   uint64(len(tracks)),
	}, nil
}

// Close is a no-op for FileStore: all durability happens in Flush.
func (fs *FileStore) Close() error { return nil }

// Digest exposes the configuration digest embedded in this store,
// satisfying ParamConfig.
func (fs *FileStore) Digest() [32]byte { return fs.cfg.Digest() }

var _ Store = (*FileStore)(nil)
