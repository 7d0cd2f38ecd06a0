// Command sfzplay is the reference demo host: it loads an SFZ instrument,
// strikes a single note for a configurable duration, and streams the
// rendered audio to the platform's default output (or discards it, under
// the `headless` build tag used for CI). In the default and headless builds
// the "event stream" is just the note this CLI was told to play; only the
// `jack` build's backend also feeds the synth live JACK MIDI input.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/rtsampler/sfzcore/config"
	"github.com/rtsampler/sfzcore/sfzerr"
	"github.com/rtsampler/sfzcore/synth"
	"github.com/rtsampler/sfzcore/telemetry"
)

// backend is the common surface every output implementation (oto, headless,
// and the jack-tagged build) satisfies, mirroring the teacher's MusicPlayer
// control surface (Start/Stop/Close/IsStarted) narrowed to what a
// non-interactive demo needs.
type backend interface {
	Start()
	Stop()
	Close()
	IsStarted() bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sfzplay:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		sfzPath      = pflag.StringP("sfz", "f", "", "path to the .sfz instrument to load (required)")
		configPath   = pflag.String("config", "", "path to a YAML host-state file to load before --sfz/--master-volume are applied")
		saveConfig   = pflag.String("save-config", "", "path to write the resulting host state to on exit")
		sampleRate   = pflag.Int("sample-rate", 48000, "output sample rate in Hz")
		blockSize    = pflag.Int("block-size", 512, "render block size in frames")
		numVoices    = pflag.Int("voices", synth.DefaultNumVoices, "voice pool size")
		oversampling = pflag.Int("oversample", synth.DefaultOversampling, "oversampling factor (1, 2, 4, ... 128)")
		preloadSize  = pflag.Int("preload-size", 0, "preload-cache head size in frames (0 keeps the filepool default)")
		masterVol    = pflag.Float64("master-volume", 1.0, "linear master gain applied to the mix")
		channel      = pflag.Int("channel", 0, "MIDI channel of the note to strike")
		key          = pflag.Int("note", 60, "MIDI key number of the note to strike (0-127)")
		velocity     = pflag.Float64("velocity", 1.0, "note-on velocity, 0-1")
		duration     = pflag.Duration("duration", 2*time.Second, "how long to hold the note before releasing it")
		tail         = pflag.Duration("tail", 1*time.Second, "how long to keep rendering after note-off, to let the release ring out")
		logLevel     = pflag.String("log-level", "warn", "diagnostic log level: debug, info, warn, error")
		csvPath      = pflag.String("csv", "", "path to a per-block CSV telemetry sidecar (disabled if empty)")
	)
	pflag.Parse()

	if *sfzPath == "" && *configPath == "" {
		pflag.Usage()
		return fmt.Errorf("--sfz is required (or --config pointing at a saved host state)")
	}

	state := config.DefaultHostState()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		state = loaded
	}
	if *sfzPath != "" {
		state.SFZPath = *sfzPath
	}
	if pflag.CommandLine.Changed("master-volume") {
		state.MasterVolume = *masterVol
	}

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", *logLevel, err)
	}
	logger := telemetry.NewLogger(os.Stderr, level)

	var sidecar *telemetry.Sidecar
	if *csvPath != "" {
		sidecar, err = telemetry.NewSidecar(*csvPath)
		if err != nil {
			return err
		}
		defer sidecar.Close()
	}

	s := synth.New()
	s.SetLogger(logger)
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
	if *preloadSize > 0 {
		if err := s.SetPreloadSize(*preloadSize); err != nil {
			return err
		}
	}
	s.SetMasterVolume(state.MasterVolume)

	if state.SFZPath == "" {
		return fmt.Errorf("no SFZ path to load (pass --sfz or a --config with sfz_path set)")
	}
	switch result := s.LoadSFZFile(state.SFZPath); result {
	case sfzerr.LoadOK:
		logger.Info("loaded instrument", "path", state.SFZPath, "regions", s.GetNumRegions())
	case sfzerr.LoadNotFound:
		return fmt.Errorf("instrument not found: %s", state.SFZPath)
	case sfzerr.LoadParseError:
		return fmt.Errorf("failed to parse instrument: %s", state.SFZPath)
	case sfzerr.LoadEmptyInstrument:
		return fmt.Errorf("instrument defines no regions: %s", state.SFZPath)
	default:
		return fmt.Errorf("unexpected load result %v", result)
	}
	if unknown := s.GetUnknownOpcodes(); len(unknown) > 0 {
		logger.Warn("instrument used unrecognized opcodes", "opcodes", unknown)
	}

	src := newRenderSource(s, *blockSize, sidecar)
	player, err := newBackend(s, src, *sampleRate)
	if err != nil {
		return err
	}
	defer player.Close()

	s.NoteOn(*channel, *key, float32(*velocity), 0)
	player.Start()
	time.Sleep(*duration)
	s.NoteOff(*channel, *key, 0)
	time.Sleep(*tail)
	player.Stop()

	if *saveConfig != "" {
		if err := state.Save(*saveConfig); err != nil {
			return err
		}
	}
	return nil
}
