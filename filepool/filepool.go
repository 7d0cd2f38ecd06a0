// Package filepool owns sample-file I/O: a reference-counted preload cache
// keyed by (path, offset), a background streaming worker pool that fills
// per-voice SPSC rings for the tail of long samples, and the ticket scheme
// that lets a cancelled voice's in-flight job be discarded cheaply. Every
// blocking or allocating operation here runs on the loader thread or the
// control thread; the audio thread only ever reads already-published data
// through atomically-shared pointers and the ring's lock-free indices.
package filepool

import (
	"sync"
	"sync/atomic"

	"github.com/rtsampler/sfzcore/audioreader"
	"github.com/rtsampler/sfzcore/sfzerr"
)

// DefaultPreloadSize is the default number of frames decoded into the head
// cache on first request.
const DefaultPreloadSize = 8192

// unboundedFrames stands in for a reader's Frames()==0 "unbounded" report
// (GeneratorReader's *sine/*saw/*square/*noise convention) so acquireSample's
// "preload already covers the whole file" check, which treats a literal
// TotalFrames==0 as an empty file, doesn't mistake an infinite generator for
// one and silence it the instant the preloaded head runs out.
const unboundedFrames = uint64(1) << 62

// MinPreloadSize and MaxPreloadSize bound SetPreloadSize's accepted range.
const (
	MinPreloadSize = 1024
	MaxPreloadSize = 65536
)

// FileInformation is the published, immutable result of a preload: decoded
// header data plus the preloaded head itself. Published once by the loader
// thread and referenced thereafter by atomic refcount; never mutated after
// publish, per spec.md's ownership rule.
type FileInformation struct {
	Path          string
	Channels      int
	SampleRate    uint32
	TotalFrames   uint64
	LoopBegin     uint64
	LoopEnd       uint64
	HasLoop       bool
	PreloadedHead []float32 // interleaved, Channels*len(frames) long

	refs atomic.Int64
}

// Acquire increments the handle's reference count. Called by a Voice when
// it starts playing a preloaded sample.
func (fi *FileInformation) Acquire() { fi.refs.Add(1) }

// Release decrements the handle's reference count. Called when a Voice
// stops referencing this sample (note ends, voice stolen).
func (fi *FileInformation) Release() { fi.refs.Add(-1) }

// RefCount reports the current reference count, including the Pool's own
// cache-held reference.
func (fi *FileInformation) RefCount() int64 { return fi.refs.Load() }

type cacheKey struct {
	path   string
	offset uint64
}

type cacheEntry struct {
	info        *FileInformation
	lastRelease uint64 // logical clock tick at last release-to-refcount-1, for LRU eviction
}

// Pool is the sample cache and streaming coordinator. One Pool instance per
// Synth.
type Pool struct {
	mu          sync.Mutex
	cache       map[cacheKey]*cacheEntry
	targetSize  int
	clock       uint64
	preloadSize int

	ticketCounter atomic.Uint64

	streamer *streamer
}

// NewPool returns an empty Pool with the given target cache size (number of
// distinct (path,offset) entries retained once their refcount drops to the
// pool's own hold) and default preload size.
func NewPool(targetSize int) *Pool {
	p := &Pool{
		cache:       map[cacheKey]*cacheEntry{},
		targetSize:  targetSize,
		preloadSize: DefaultPreloadSize,
	}
	p.streamer = newStreamer(4)
	return p
}

// SetPreloadSize changes the frame count decoded into new preload entries.
// Clamped to [MinPreloadSize, MaxPreloadSize] per spec.md.
func (p *Pool) SetPreloadSize(n int) {
	if n < MinPreloadSize {
		n = MinPreloadSize
	}
	if n > MaxPreloadSize {
		n = MaxPreloadSize
	}
	p.mu.Lock()
	p.preloadSize = n
	p.mu.Unlock()
}

// CacheSize reports how many distinct (path, offset) entries are currently
// cached, regardless of whether a voice still references them.
func (p *Pool) CacheSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

// Preload returns the cached FileInformation for (path, offset), decoding
// and caching it first if absent. Runs on the loader or control thread; the
// audio thread must never call this.
func (p *Pool) Preload(path string, offset uint64) (*FileInformation, error) {
	key := cacheKey{path: path, offset: offset}

	p.mu.Lock()
	if e, ok := p.cache[key]; ok {
		e.info.Acquire()
		p.mu.Unlock()
		return e.info, nil
	}
	preloadSize := p.preloadSize
	p.mu.Unlock()

	fi, err := decodePreload(path, offset, preloadSize)
	if err != nil {
		return nil, err
	}
	fi.refs.Store(1) // the pool's own cache reference

	p.mu.Lock()
	if e, ok := p.cache[key]; ok {
		// Lost a race with another loader-thread call; use theirs, let ours
		// be garbage collected.
		e.info.Acquire()
		p.mu.Unlock()
		return e.info, nil
	}
	p.cache[key] = &cacheEntry{info: fi}
	fi.Acquire() // the caller's reference, taken before eviction so the new entry is never chosen
	p.evictIfOverCapacity()
	p.mu.Unlock()

	return fi, nil
}

// evictIfOverCapacity drops LRU-by-release entries whose only remaining
// reference is the pool's own, until the cache is back at target size.
// Must be called with p.mu held.
func (p *Pool) evictIfOverCapacity() {
	for len(p.cache) > p.targetSize {
		var oldestKey cacheKey
		var oldest *cacheEntry
		found := false
		for k, e := range p.cache {
			if e.info.RefCount() > 1 {
				continue // still in use by a voice, not eligible
			}
			if !found || e.lastRelease < oldest.lastRelease {
				oldestKey, oldest = k, e
				found = true
			}
		}
		if !found {
			return // everything left is still referenced; can't shrink further
		}
		delete(p.cache, oldestKey)
	}
}

// NotifyReleased marks fi as released by a voice; if the cache now holds the
// only remaining reference, it becomes eligible for eviction, and eviction
// runs within this same call when capacity is exceeded.
func (p *Pool) NotifyReleased(path string, offset uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock++
	key := cacheKey{path: path, offset: offset}
	if e, ok := p.cache[key]; ok && e.info.RefCount() <= 1 {
		e.lastRelease = p.clock
		p.evictIfOverCapacity()
	}
}

func decodePreload(path string, offset uint64, preloadFrames int) (*FileInformation, error) {
	r, err := audioreader.Open(path)
	if err != nil {
		return nil, sfzerr.Wrap(sfzerr.KindFile, "preload open", err)
	}
	defer r.Close()

	ch := r.Channels()
	if err := skipFrames(r, offset, ch); err != nil {
		return nil, sfzerr.Wrap(sfzerr.KindFile, "preload seek", err)
	}

	buf := make([]float32, preloadFrames*ch)
	n, err := r.ReadNextBlock(buf)
	if err != nil {
		return nil, sfzerr.Wrap(sfzerr.KindFile, "preload decode", err)
	}

	totalFrames := r.Frames()
	if totalFrames == 0 && n > 0 {
		// A real empty/exhausted file also reports Frames()==0, but then
		// ReadNextBlock returns n==0 too; n>0 here means this is an
		// unbounded generator reader instead.
		totalFrames = unboundedFrames
	}

	meta, hasMeta := r.GetInstrumentMetadata()
	fi := &FileInformation{
		Path:          path,
		Channels:      ch,
		SampleRate:    r.SampleRate(),
		TotalFrames:   totalFrames,
		PreloadedHead: buf[:n*ch],
	}
	if hasMeta {
		fi.LoopBegin = meta.LoopBegin
		fi.LoopEnd = meta.LoopEnd
		fi.HasLoop = meta.HasLoop
	}
	lockPreloadedHead(fi.PreloadedHead)
	return fi, nil
}

// skipFrames discards the first n frames of r by decoding and dropping them,
// the same forward-only skip runStreamJob uses to reach a StreamJob's
// StartFrame: AudioReader only offers sequential decode, no random seek.
func skipFrames(r audioreader.Reader, n uint64, channels int) error {
	if n == 0 {
		return nil
	}
	scratch := make([]float32, streamJobChunkFrames*channels)
	skipped := uint64(0)
	for skipped < n {
		want := n - skipped
		if want > streamJobChunkFrames {
			want = streamJobChunkFrames
		}
		read, err := r.ReadNextBlock(scratch[:int(want)*channels])
		if err != nil {
			return err
		}
		if read == 0 {
			return nil // offset past end of file; preload will just come up empty
		}
		skipped += uint64(read)
	}
	return nil
}
