package audioreader

import (
	"os"

	"github.com/go-audio/wav"

	"github.com/rtsampler/sfzcore/sfzerr"
)

// WAVReader decodes PCM/float WAV files via go-audio/wav. WAV's flat,
// uncompressed layout gives it fast random access, so the same reader
// serves both DirForward and DirReverse — reverse playback just walks the
// decoded frame buffer backward instead of forward.
type WAVReader struct {
	f          *os.File
	dir        Direction
	channels   int
	sampleRate uint32
	frames     []float32 // interleaved
	cursor     int       // frame index, direction-dependent
	meta       InstrumentMetadata
	hasMeta    bool
}

// OpenWAV decodes path fully into memory. Whole-file decode keeps reverse
// access trivial (it's just indexing backward) at the cost of holding the
// entire sample in RAM. FilePool opens every WAV through this path, both
// for the preload head and for each streaming job, so a streamed WAV is
// decoded whole once per job.
func OpenWAV(path string) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return DummyReader{}, sfzerr.Wrap(sfzerr.KindFile, "open wav", err)
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return DummyReader{}, sfzerr.New(sfzerr.KindFile, "not a valid WAV file: "+path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		f.Close()
		return DummyReader{}, sfzerr.Wrap(sfzerr.KindFile, "decode wav", err)
	}
	fb := buf.AsFloatBuffer()

	r := &WAVReader{
		f:          f,
		dir:        DirForward,
		channels:   buf.Format.NumChannels,
		sampleRate: uint32(buf.Format.SampleRate),
		frames:     make([]float32, len(fb.Data)),
	}
	for i, v := range fb.Data {
		r.frames[i] = float32(v)
	}
	return r, nil
}

// OpenWAVReverse is identical to OpenWAV except ReadNextBlock walks frames
// from the end backward, matching spec.md's ReverseReader contract for
// fast-seeking containers.
func OpenWAVReverse(path string) (Reader, error) {
	rd, err := OpenWAV(path)
	if err != nil {
		return rd, err
	}
	w := rd.(*WAVReader)
	w.dir = DirReverse
	w.cursor = w.frameCount()
	return w, nil
}

func (r *WAVReader) frameCount() int {
	if r.channels == 0 {
		return 0
	}
	return len(r.frames) / r.channels
}

func (r *WAVReader) Type() Direction    { return r.dir }
func (r *WAVReader) Format() Format     { return FormatWAV }
func (r *WAVReader) Frames() uint64     { return uint64(r.frameCount()) }
func (r *WAVReader) Channels() int      { return r.channels }
func (r *WAVReader) SampleRate() uint32 { return r.sampleRate }
func (r *WAVReader) Close() error {
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}

func (r *WAVReader) GetInstrumentMetadata() (InstrumentMetadata, bool) {
	return r.meta, r.hasMeta
}

func (r *WAVReader) ReadNextBlock(buf []float32) (int, error) {
	ch := r.channels
	if ch == 0 {
		return 0, nil
	}
	wantFrames := len(buf) / ch

	if r.dir == DirForward {
		avail := r.frameCount() - r.cursor
		n := min(wantFrames, avail)
		if n <= 0 {
			return 0, nil
		}
		start := r.cursor * ch
		copy(buf[:n*ch], r.frames[start:start+n*ch])
		r.cursor += n
		return n, nil
	}

	// Reverse: cursor marks the end of the not-yet-emitted frames; each
	// block is copied forward and then its frames are reversed in place, so
	// the stream as a whole runs from the last frame to the first.
	n := min(wantFrames, r.cursor)
	if n <= 0 {
		return 0, nil
	}
	r.cursor -= n
	start := r.cursor * ch
	copy(buf[:n*ch], r.frames[start:start+n*ch])
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		for c := 0; c < ch; c++ {
			buf[i*ch+c], buf[j*ch+c] = buf[j*ch+c], buf[i*ch+c]
		}
	}
	return n, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
