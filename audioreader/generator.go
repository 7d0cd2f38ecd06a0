package audioreader

import (
	"math"
	"math/rand"
)

// Waveform selects which built-in generator GeneratorReader produces.
// These back the `sample=*sine`, `*saw`, `*square`, `*noise` built-in
// sample names, a generator region can reference without any file on disk.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSaw
	WaveSquare
	WaveNoise
)

const twoPi = 2 * math.Pi

// GeneratorWaveform maps an SFZ built-in generator sample name (`*sine`,
// `*saw`, `*square`, `*noise`) to a Waveform. ok is false for any other
// sample name, meaning the caller should fall through to Open.
func GeneratorWaveform(sampleName string) (Waveform, bool) {
	switch sampleName {
	case "*sine":
		return WaveSine, true
	case "*saw":
		return WaveSaw, true
	case "*square":
		return WaveSquare, true
	case "*noise":
		return WaveNoise, true
	default:
		return 0, false
	}
}

// GeneratorReader synthesizes an infinite tone instead of decoding a file.
// It always reports DirForward and Frames()==0 (unbounded), matching how a
// region with a built-in generator sample never reaches end-of-file.
type GeneratorReader struct {
	wave       Waveform
	freq       float64
	sampleRate uint32
	phase      float64
	rng        *rand.Rand
}

// NewGeneratorReader builds a generator producing freq Hz at sampleRate.
// rngSeed lets tests pin the noise sequence; callers outside tests should
// derive it from a real entropy source once at voice trigger time, never
// per-block (that would allocate/reseed on the audio thread).
func NewGeneratorReader(wave Waveform, freq float64, sampleRate uint32, rngSeed int64) *GeneratorReader {
	return &GeneratorReader{
		wave:       wave,
		freq:       freq,
		sampleRate: sampleRate,
		rng:        rand.New(rand.NewSource(rngSeed)),
	}
}

func (g *GeneratorReader) Type() Direction    { return DirForward }
func (g *GeneratorReader) Format() Format     { return FormatGenerated }
func (g *GeneratorReader) Frames() uint64     { return 0 }
func (g *GeneratorReader) Channels() int      { return 1 }
func (g *GeneratorReader) SampleRate() uint32 { return g.sampleRate }
func (g *GeneratorReader) Close() error       { return nil }

func (g *GeneratorReader) GetInstrumentMetadata() (InstrumentMetadata, bool) {
	return InstrumentMetadata{}, false
}

func (g *GeneratorReader) ReadNextBlock(buf []float32) (int, error) {
	inc := twoPi * g.freq / float64(g.sampleRate)
	for i := range buf {
		buf[i] = g.sampleAt(g.phase)
		g.phase += inc
		if g.phase >= twoPi {
			g.phase -= twoPi
		}
	}
	return len(buf), nil
}

func (g *GeneratorReader) sampleAt(phase float64) float32 {
	switch g.wave {
	case WaveSine:
		return float32(math.Sin(phase))
	case WaveSaw:
		// Ramp from -1 to 1 across one period.
		return float32(phase/math.Pi - 1)
	case WaveSquare:
		if phase < math.Pi {
			return 1
		}
		return -1
	case WaveNoise:
		return float32(g.rng.Float64()*2 - 1)
	default:
		return 0
	}
}
