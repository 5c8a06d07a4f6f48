//go:build !ios && !android && (amd64 || arm64)

package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/speechgen"
	"github.com/obinnaokechukwu/speechgen/bark"
	"github.com/obinnaokechukwu/speechgen/engine"
	"github.com/obinnaokechukwu/speechgen/internal/audio"
	"github.com/obinnaokechukwu/speechgen/internal/config"
	"github.com/obinnaokechukwu/speechgen/sherpa"
)

// Output formats for generated audio.
const (
	formatWAV = "wav"
	formatF32 = "f32"
	formatS16 = "s16"
)

var generateFlags struct {
	engine      string
	model       string
	text        string
	output      string
	format      string
	rate        int
	play        bool
	seed        uint32
	temperature float32
	threads     int
	speaker     int
	speed       float32
}

var generateCmd = &cobra.Command{
	Use:   "generate [text...]",
	Short: "Synthesize speech from text",
	Long: `Synthesize speech from text with a local model.

Engines:
  bark    - bark.cpp GGML weights (needs libbark and the sgshim library)
  sherpa  - sherpa-onnx VITS model (.onnx, with tokens.txt next to it)

Output formats:
  wav  - 16-bit PCM WAV (default)
  f32  - raw little-endian float32 samples
  s16  - raw little-endian signed 16-bit samples

Example:
  speechgen generate --model ggml_weights.bin --text "Hello" -o hello.wav
  speechgen generate --engine sherpa --model en_US-amy-low.onnx --play "Hi there"
  echo "From stdin" | speechgen generate --model ggml_weights.bin -o out.f32 --format f32 -`,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateFlags.engine, "engine", "", "speech engine: bark or sherpa (default from config)")
	f.StringVarP(&generateFlags.model, "model", "m", "", "model path (default from config)")
	f.StringVarP(&generateFlags.text, "text", "t", "", "text to synthesize")
	f.StringVarP(&generateFlags.output, "output", "o", "", "output file")
	f.StringVar(&generateFlags.format, "format", "", "output format: wav, f32 or s16 (default from file extension)")
	f.IntVar(&generateFlags.rate, "rate", 0, "resample output to this rate in Hz")
	f.BoolVar(&generateFlags.play, "play", false, "play the audio on the default output device")
	f.Uint32Var(&generateFlags.seed, "seed", 0, "sampling seed")
	f.Float32Var(&generateFlags.temperature, "temperature", 0, "sampling temperature")
	f.IntVar(&generateFlags.threads, "threads", 0, "CPU threads")
	f.IntVar(&generateFlags.speaker, "speaker", 0, "speaker id for multi-speaker models")
	f.Float32Var(&generateFlags.speed, "speed", 0, "speaking rate multiplier")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := getConfig()

	text, err := inputText(cmd, generateFlags.text, args)
	if err != nil {
		return err
	}
	if generateFlags.output == "" && !generateFlags.play {
		return fmt.Errorf("output file is required, use -o flag or --play")
	}
	format, err := outputFormat(generateFlags.format, generateFlags.output)
	if err != nil {
		return err
	}

	engineName := firstNonEmpty(generateFlags.engine, cfg.Engine)
	modelPath := firstNonEmpty(generateFlags.model, cfg.Model)
	if modelPath == "" {
		return fmt.Errorf("model path is required, use --model or set model in the config file")
	}

	speech, params, err := newSpeechEngine(engineName, cfg)
	if err != nil {
		return err
	}
	opts := generationOptions(cmd)

	bridge := speechgen.NewBridge(speech, nil, speechgen.WithLogger(log), speechgen.WithDefaultParams(params))
	defer bridge.Close()

	printVerbose("Engine: %s", engineName)
	printVerbose("Model: %s", modelPath)

	h, err := bridge.InitSpeechGeneration(modelPath, opts...)
	if err != nil {
		return err
	}
	defer bridge.ReleaseSpeechGeneration(h)

	data, err := bridge.GenerateSpeech(h, text)
	if err != nil {
		return err
	}
	samples, err := speechgen.DecodeAudio(data)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("engine produced no audio")
	}
	rate, err := bridge.SampleRate(h)
	if err != nil {
		return err
	}

	if generateFlags.rate > 0 && generateFlags.rate != rate {
		samples, err = audio.Resample(samples, rate, generateFlags.rate)
		if err != nil {
			return err
		}
		rate = generateFlags.rate
	}

	seconds := float64(len(samples)) / float64(rate)
	log.Info("speech generated",
		zap.String("engine", engineName),
		zap.Int("samples", len(samples)),
		zap.Int("sample_rate", rate),
		zap.Float64("seconds", seconds))

	if generateFlags.output != "" {
		if err := writeAudio(generateFlags.output, format, samples, rate); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Audio saved to: %s (%s, %d Hz, %s)\n",
			generateFlags.output, format, rate, formatDuration(seconds))
	}

	if generateFlags.play {
		player, err := audio.NewPlayer(log)
		if err != nil {
			return err
		}
		defer player.Close()
		if err := player.Play(cmd.Context(), samples, rate); err != nil {
			return err
		}
	}
	return nil
}

// newSpeechEngine builds the named engine and its default parameters from cfg.
func newSpeechEngine(name string, cfg *config.Config) (engine.SpeechEngine, engine.GenerationParams, error) {
	params := engine.DefaultParams()
	switch name {
	case config.EngineBark:
		e := bark.NewEngine()
		e.FineTemperature = cfg.Bark.FineTemperature
		e.Verbosity = bark.Verbosity(cfg.Bark.Verbosity)
		params.Temperature = cfg.Bark.Temperature
		params.Seed = cfg.Bark.Seed
		params.Threads = cfg.Bark.Threads
		return e, params, nil
	case config.EngineSherpa:
		e := sherpa.NewEngine()
		e.Provider = cfg.Sherpa.Provider
		e.Debug = cfg.Sherpa.Debug
		e.Tokens = cfg.Sherpa.Tokens
		e.Lexicon = cfg.Sherpa.Lexicon
		e.DataDir = cfg.Sherpa.DataDir
		params.Threads = cfg.Sherpa.Threads
		params.Speaker = cfg.Sherpa.Speaker
		params.Speed = cfg.Sherpa.Speed
		return e, params, nil
	}
	return nil, params, fmt.Errorf("unknown engine %q (want %s or %s)", name, config.EngineBark, config.EngineSherpa)
}

// generationOptions turns explicitly set flags into per-context overrides.
func generationOptions(cmd *cobra.Command) []speechgen.GenerationOption {
	var opts []speechgen.GenerationOption
	f := cmd.Flags()
	if f.Changed("seed") {
		opts = append(opts, speechgen.WithSeed(generateFlags.seed))
	}
	if f.Changed("temperature") {
		opts = append(opts, speechgen.WithTemperature(generateFlags.temperature))
	}
	if f.Changed("threads") {
		opts = append(opts, speechgen.WithThreads(generateFlags.threads))
	}
	if f.Changed("speaker") {
		opts = append(opts, speechgen.WithSpeaker(generateFlags.speaker))
	}
	if f.Changed("speed") {
		opts = append(opts, speechgen.WithSpeed(generateFlags.speed))
	}
	return opts
}

// outputFormat resolves the format from the flag or the file extension.
func outputFormat(format, path string) (string, error) {
	if format == "" {
		switch {
		case strings.HasSuffix(path, ".f32"), strings.HasSuffix(path, ".raw"):
			return formatF32, nil
		case strings.HasSuffix(path, ".s16"), strings.HasSuffix(path, ".pcm"):
			return formatS16, nil
		}
		return formatWAV, nil
	}
	switch format {
	case formatWAV, formatF32, formatS16:
		return format, nil
	}
	return "", fmt.Errorf("unknown format %q (want %s, %s or %s)", format, formatWAV, formatF32, formatS16)
}

func writeAudio(path, format string, samples []float32, rate int) error {
	switch format {
	case formatF32:
		return saveToFile(path, speechgen.EncodeAudio(samples))
	case formatS16:
		return saveToFile(path, speechgen.EncodePCM16(samples))
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	return audio.SaveWAV(path, samples, rate)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
