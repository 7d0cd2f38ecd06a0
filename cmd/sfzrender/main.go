// Command sfzrender is the headless counterpart to sfzplay: it strikes one
// note against a loaded instrument, renders a fixed number of frames with no
// live audio device involved, and writes the result to a WAV file. It exists
// for integration tests and benchmarking that want a real end-to-end render
// (parse → trigger → resample → filter → mix) without depending on a sound
// card, the same role the teacher's own headless backend build tag serves
// for its GUI-driven emulator.
package main

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/pflag"

	"github.com/rtsampler/sfzcore/buffer"
	"github.com/rtsampler/sfzcore/sfzerr"
	"github.com/rtsampler/sfzcore/synth"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sfzrender:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		sfzPath      = pflag.StringP("sfz", "f", "", "path to the .sfz instrument to load (required)")
		outPath      = pflag.StringP("out", "o", "out.wav", "path to write the rendered WAV file to")
		sampleRate   = pflag.Int("sample-rate", 48000, "output sample rate in Hz")
		blockSize    = pflag.Int("block-size", 512, "render block size in frames")
		numVoices    = pflag.Int("voices", synth.DefaultNumVoices, "voice pool size")
		oversampling = pflag.Int("oversample", synth.DefaultOversampling, "oversampling factor")
		channel      = pflag.Int("channel", 0, "MIDI channel of the note to strike")
		key          = pflag.Int("note", 60, "MIDI key number of the note to strike (0-127)")
		velocity     = pflag.Float64("velocity", 1.0, "note-on velocity, 0-1")
		sustainMs    = pflag.Int("sustain-ms", 1000, "milliseconds to hold the note before note-off")
		releaseMs    = pflag.Int("release-ms", 1000, "milliseconds to keep rendering after note-off")
	)
	pflag.Parse()

	if *sfzPath == "" {
		pflag.Usage()
		return fmt.Errorf("--sfz is required")
	}

	s := synth.New()
	if err := s.SetSampleRate(float64(*sampleRate)); err != nil {
		return err
	}
	if err := s.SetSamplesPerBlock(*blockSize); err != nil {
		return err
	}
	if err := s.SetNumVoices(*numVoices); err != nil {
		return err
	}
	if err := s.SetOversampling(*oversampling); err != nil {
		return err
	}

	switch result := s.LoadSFZFile(*sfzPath); result {
	case sfzerr.LoadOK:
	case sfzerr.LoadNotFound:
		return fmt.Errorf("instrument not found: %s", *sfzPath)
	case sfzerr.LoadParseError:
		return fmt.Errorf("failed to parse instrument: %s", *sfzPath)
	case sfzerr.LoadEmptyInstrument:
		return fmt.Errorf("instrument defines no regions: %s", *sfzPath)
	default:
		return fmt.Errorf("unexpected load result %v", result)
	}

	totalFrames := (*sustainMs + *releaseMs) * (*sampleRate) / 1000
	noteOffAtFrame := (*sustainMs) * (*sampleRate) / 1000

	l := make([]float32, *blockSize)
	r := make([]float32, *blockSize)
	pcm := make([]int, 0, totalFrames*2)

	s.NoteOn(*channel, *key, float32(*velocity), 0)
	rendered := 0
	noteOffSent := false
	for rendered < totalFrames {
		n := *blockSize
		if totalFrames-rendered < n {
			n = totalFrames - rendered
		}
		span := buffer.NewAudioSpan(l[:n], r[:n])

		if !noteOffSent && rendered+n > noteOffAtFrame {
			offOffset := noteOffAtFrame - rendered
			if offOffset < 0 {
				offOffset = 0
			}
			s.NoteOff(*channel, *key, offOffset)
			noteOffSent = true
		}
		s.RenderBlock(span)

		for i := 0; i < n; i++ {
			pcm = append(pcm, floatToPCM16(l[i]), floatToPCM16(r[i]))
		}
		rendered += n
	}

	return writeWAV(*outPath, *sampleRate, pcm)
}

func floatToPCM16(x float32) int {
	v := float64(x) * 32767
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return int(math.Round(v))
}

func writeWAV(path string, sampleRate int, pcm []int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sfzrender: create %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           pcm,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("sfzrender: encode wav: %w", err)
	}
	return enc.Close()
}
