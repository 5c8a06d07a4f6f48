//go:build !ios && !android && (amd64 || arm64)

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/speechgen"
	"github.com/obinnaokechukwu/speechgen/internal/config"
	"github.com/obinnaokechukwu/speechgen/internal/logger"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	globalConfig *config.Config
	log          = zap.NewNop()
	closeLog     = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "speechgen",
	Short: "Local speech generation and phonemization",
	Long: `speechgen - offline text to speech on top of native engines.

Speech is generated with bark.cpp or sherpa-onnx (VITS/piper voices).
Text is phonemized with espeak-ng.

Native libraries are searched in SPEECHGEN_LIBRARY_PATH, then the usual
system locations. Run 'speechgen doctor' to see what was found.

Examples:
  # Generate speech with a bark model
  speechgen generate --model ggml_weights.bin --text "Hello there" -o hello.wav

  # Phonemize with espeak-ng
  speechgen phonemize --voice en-us "Hello, world."`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(phonemizeCmd)
	rootCmd.AddCommand(voicesCmd)
	rootCmd.AddCommand(doctorCmd)
}

// setup loads the configuration and builds the logger before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfgFile != "" {
		globalConfig, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
	} else {
		globalConfig = config.Default()
	}
	if err := globalConfig.Apply(); err != nil {
		return fmt.Errorf("failed to apply library paths: %w", err)
	}

	lc := logger.Config{
		Level:      globalConfig.Log.Level,
		File:       globalConfig.Log.File,
		MaxSize:    globalConfig.Log.MaxSize,
		MaxBackups: globalConfig.Log.MaxBackups,
		MaxAge:     globalConfig.Log.MaxAge,
	}
	if verbose {
		lc.Level = "debug"
	}
	l, closer, err := logger.New(lc)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	log, closeLog = l, closer
	speechgen.SetLogger(log)
	return nil
}

// getConfig returns the global configuration
func getConfig() *config.Config {
	if globalConfig == nil {
		return config.Default()
	}
	return globalConfig
}

// printVerbose prints to stderr when verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose {
		rootCmd.PrintErrf("[verbose] "+format+"\n", args...)
	}
}
