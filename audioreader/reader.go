// Package audioreader wraps decoders for the container formats regions can
// reference behind one polymorphic interface, with three access patterns:
// sequential forward decode, random-access reverse decode (for formats with
// fast seeking, like PCM/FLAC), and whole-file reverse decode (for formats
// like OGG/Vorbis where seeking is prohibitively slow). FilePool is the only
// caller; it never cares which concrete Reader it holds.
package audioreader

import (
	"sync/atomic"

	"github.com/rtsampler/sfzcore/sfzerr"
)

// Format identifies the decoded container.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatFLAC
	FormatAIFF
	FormatOGGVorbis
	FormatGenerated
)

// Direction selects which of the three access patterns a Reader implements.
type Direction int

const (
	// DirForward decodes sequentially from the start of the file.
	DirForward Direction = iota
	// DirReverse seeks to fixed-size blocks from the end and decodes
	// backward, reversing frames in place. Only viable for formats with
	// fast random access (PCM, FLAC).
	DirReverse
	// DirNoSeekReverse decodes the entire file on first use and streams
	// frames from the tail backward, for formats where seeking is too
	// slow to do incrementally (OGG/Vorbis).
	DirNoSeekReverse
)

// InstrumentMetadata carries loop points and other tags a container may
// embed (e.g. WAV `smpl` chunks, FLAC Vorbis comments).
type InstrumentMetadata struct {
	LoopBegin uint64
	LoopEnd   uint64
	HasLoop   bool
	RootNote  int8 // -1 if absent
}

// Reader is the uniform decoder interface FilePool consumes. All
// implementations report frame counts and sample data as interleaved
// float32, regardless of the source bit depth.
type Reader interface {
	Type() Direction
	Format() Format
	Frames() uint64
	Channels() int
	SampleRate() uint32

	// ReadNextBlock decodes up to len(buf)/Channels() frames into buf
	// (interleaved) and returns the number of frames actually decoded;
	// a short read below the requested count signals end of stream.
	ReadNextBlock(buf []float32) (framesRead int, err error)

	// GetInstrumentMetadata reports embedded loop/tuning metadata, if any.
	GetInstrumentMetadata() (InstrumentMetadata, bool)

	// Close releases any open file handle.
	Close() error
}

// DummyReader is substituted whenever Open fails; it reports zero frames
// and never errors on read, so callers can treat "no file" uniformly with
// "empty file" rather than threading a nil check through the hot path.
type DummyReader struct{}

func (DummyReader) Type() Direction      { return DirForward }
func (DummyReader) Format() Format       { return FormatUnknown }
func (DummyReader) Frames() uint64       { return 0 }
func (DummyReader) Channels() int        { return 2 }
func (DummyReader) SampleRate() uint32   { return 44100 }
func (DummyReader) Close() error         { return nil }
func (DummyReader) ReadNextBlock(buf []float32) (int, error) {
	return 0, nil
}
func (DummyReader) GetInstrumentMetadata() (InstrumentMetadata, bool) {
	return InstrumentMetadata{}, false
}

// ErrUnsupportedFormat is returned by Open for containers named in the
// format matrix that have no decoder wired in this build (AIFF, OGG/Vorbis:
// no pure-Go decoder for either is present anywhere in the reference corpus
// this engine was grounded on, so rather than fabricate one, Open reports
// the gap explicitly and the caller falls back to DummyReader).
var ErrUnsupportedFormat = sfzerr.New(sfzerr.KindFile, "unsupported audio container")

// generatorFreq is the reference pitch every built-in generator plays at;
// a region's own pitch_keycenter/key offset retunes it exactly the way it
// would retune a sampled file, through the same playback-ratio path.
const generatorFreq = 440.0

// generatorSampleRate is the nominal rate GeneratorReader produces at;
// voice.go resamples from a reader's reported SampleRate() to the engine's
// output rate the same way it does for a decoded file, so this need not
// match the engine's configured rate.
const generatorSampleRate = 44100

var generatorSeed atomic.Int64

// Open picks a decoder for path by extension, or a built-in generator for
// the `*sine`/`*saw`/`*square`/`*noise` sample names, and returns it wrapping
// DummyReader and ErrUnsupportedFormat-worthy errors uniformly: callers
// that can't use the error still get something they can call methods on.
func Open(path string) (Reader, error) {
	if wave, ok := GeneratorWaveform(path); ok {
		seed := generatorSeed.Add(1)
		return NewGeneratorReader(wave, generatorFreq, generatorSampleRate, seed), nil
	}
	switch extOf(path) {
	case "wav":
		return OpenWAV(path)
	case "flac":
		return OpenFLAC(path)
	case "aiff", "aif":
		return DummyReader{}, ErrUnsupportedFormat
	case "ogg":
		return DummyReader{}, ErrUnsupportedFormat
	default:
		return DummyReader{}, sfzerr.New(sfzerr.KindFile, "unrecognized sample file extension: "+path)
	}
}

func extOf(path string) string {
	dot := -1
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			dot = i
			break
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	if dot < 0 {
		return ""
	}
	ext := path[dot+1:]
	out := make([]byte, len(ext))
	for i := 0; i < len(ext); i++ {
		c := ext[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
