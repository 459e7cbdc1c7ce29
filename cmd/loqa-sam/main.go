package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/loqalabs/loqa-sam/internal/config"
	"github.com/loqalabs/loqa-sam/internal/formant"
	"github.com/loqalabs/loqa-sam/internal/playback"
	"github.com/loqalabs/loqa-sam/internal/runtime"
	"github.com/loqalabs/loqa-sam/internal/sam"
	"github.com/loqalabs/loqa-sam/internal/tables"
	"github.com/loqalabs/loqa-sam/internal/tts"
	"github.com/loqalabs/loqa-sam/internal/wavfile"
	"github.com/spf13/afero"
)

var version = "0.1.0-dev"

const usage = "expected 'speak', 'phonemes', 'voices', 'tables' or 'version'"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "speak":
		err = runSpeak(os.Args[2:], os.Stdout)
	case "phonemes":
		err = runPhonemes(os.Args[2:], os.Stdout)
	case "voices":
		err = runVoices(os.Args[2:], os.Stdout)
	case "tables":
		err = runTables(os.Args[2:], os.Stdout)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// voiceFlags are per-call overrides of the selected preset. Negative values
// leave the preset untouched.
type voiceFlags struct {
	voice  string
	pitch  int
	speed  int
	mouth  int
	throat int
	sing   bool
	timing string
}

func (v *voiceFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&v.voice, "voice", "", "Voice preset (default from config)")
	fs.IntVar(&v.pitch, "pitch", -1, "Pitch override (0-255)")
	fs.IntVar(&v.speed, "speed", -1, "Speed override (1-255)")
	fs.IntVar(&v.mouth, "mouth", -1, "Mouth override (0-255)")
	fs.IntVar(&v.throat, "throat", -1, "Throat override (0-255)")
	fs.BoolVar(&v.sing, "sing", false, "Disable the pitch contour")
	fs.StringVar(&v.timing, "timing", "", "Sample timing: historical or aggregate")
}

func (v *voiceFlags) options(voices config.VoiceConfig) (sam.Options, error) {
	if v.timing != "" {
		voices.Timing = v.timing
	}
	opts, err := tts.VoiceOptions(voices, v.voice)
	if err != nil {
		return opts, err
	}
	for _, o := range []struct {
		name  string
		value int
		dst   *uint8
	}{
		{"pitch", v.pitch, &opts.Pitch},
		{"speed", v.speed, &opts.Speed},
		{"mouth", v.mouth, &opts.Mouth},
		{"throat", v.throat, &opts.Throat},
	} {
		if o.value < 0 {
			continue
		}
		if o.value > 255 {
			return opts, fmt.Errorf("%s %d out of range 0-255", o.name, o.value)
		}
		*o.dst = uint8(o.value)
	}
	if opts.Speed == 0 {
		return opts, errors.New("speed must be greater than 0")
	}
	if v.sing {
		opts.Sing = true
	}
	return opts, nil
}

func loadEngine(configPath string) (*sam.Engine, config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, cfg, err
	}
	set, err := runtime.LoadTables(cfg.Tables)
	if err != nil {
		return nil, cfg, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return sam.New(set, sam.DefaultOptions(), logger), cfg, nil
}

func runSpeak(args []string, stdout io.Writer) error {
	var (
		configPath string
		output     string
		play       bool
		phonetic   bool
		voice      voiceFlags
	)
	cmd := flag.NewFlagSet("speak", flag.ExitOnError)
	cmd.StringVar(&configPath, "config", "", "Path to configuration file")
	cmd.StringVar(&output, "o", "", "Write a WAV file to this path ('-' for stdout)")
	cmd.BoolVar(&play, "play", false, "Play through the configured playback command")
	cmd.BoolVar(&phonetic, "phonetic", false, "Treat input as phoneme mnemonics")
	voice.register(cmd)
	cmd.Parse(args)

	text := strings.Join(cmd.Args(), " ")
	if text == "" {
		return errors.New("speak: no text given")
	}
	if output == "" && !play {
		output = "sam.wav"
	}

	engine, cfg, err := loadEngine(configPath)
	if err != nil {
		return err
	}
	if !flagSet(cmd, "phonetic") {
		phonetic = cfg.Voice.Phonetic
	}
	opts, err := voice.options(cfg.Voice)
	if err != nil {
		return err
	}

	u, err := engine.SpeakWith([]byte(text), phonetic, opts)
	if err != nil {
		return err
	}

	switch output {
	case "":
	case "-":
		wav, err := wavfile.Encode(u.PCM, u.SampleRate)
		if err != nil {
			return err
		}
		if _, err := stdout.Write(wav); err != nil {
			return err
		}
	default:
		if err := wavfile.WriteFile(afero.NewOsFs(), output, u.PCM, u.SampleRate); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s (%s, %d phonemes)\n", output, u.Duration(), u.Phonemes)
	}

	if play {
		player, err := playback.New(cfg.Playback.Command)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return player.Play(ctx, u.PCM, u.SampleRate)
	}
	return nil
}

func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func runPhonemes(args []string, stdout io.Writer) error {
	var (
		configPath string
		phonetic   bool
	)
	cmd := flag.NewFlagSet("phonemes", flag.ExitOnError)
	cmd.StringVar(&configPath, "config", "", "Path to configuration file")
	cmd.BoolVar(&phonetic, "phonetic", false, "Treat input as phoneme mnemonics")
	cmd.Parse(args)

	text := strings.Join(cmd.Args(), " ")
	engine, _, err := loadEngine(configPath)
	if err != nil {
		return err
	}
	if !phonetic {
		transcription, err := engine.Transcribe([]byte(text))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "transcription: %s\n", transcription)
	}
	phonemes, err := engine.Phonemes([]byte(text), phonetic)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "phonemes:      %s\n", phonemes)
	return nil
}

func runVoices(args []string, stdout io.Writer) error {
	var configPath string
	cmd := flag.NewFlagSet("voices", flag.ExitOnError)
	cmd.StringVar(&configPath, "config", "", "Path to configuration file")
	cmd.Parse(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	for _, name := range cfg.Voice.Names() {
		p := cfg.Voice.Presets[name]
		marker := " "
		if name == cfg.Voice.Default {
			marker = "*"
		}
		fmt.Fprintf(stdout, "%s %-18s pitch=%-3d speed=%-3d mouth=%-3d throat=%-3d sing=%v\n",
			marker, name, p.Pitch, p.Speed, p.Mouth, p.Throat, p.Sing)
	}
	return nil
}

func runTables(args []string, stdout io.Writer) error {
	var (
		path string
		dump bool
	)
	cmd := flag.NewFlagSet("tables", flag.ExitOnError)
	cmd.StringVar(&path, "file", "", "Table file to validate (default: built-in tables)")
	cmd.BoolVar(&dump, "dump", false, "Print the built-in table document")
	cmd.Parse(args)

	if dump {
		_, err := stdout.Write(tables.BuiltinYAML())
		return err
	}
	set, err := runtime.LoadTables(config.TablesConfig{Path: path})
	if err != nil {
		return err
	}
	if err := set.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "tables valid (%d phonemes, sample rate %d)\n", tables.PhonemeCount, formant.SampleRate)
	return nil
}
