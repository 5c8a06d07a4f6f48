//go:build !ios && !android && (amd64 || arm64)

package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obinnaokechukwu/speechgen"
	"github.com/obinnaokechukwu/speechgen/espeak"
	"github.com/obinnaokechukwu/speechgen/piper"
)

var phonemizeFlags struct {
	data        string
	voice       string
	text        string
	clause      bool
	ids         bool
	voiceConfig string
}

var phonemizeCmd = &cobra.Command{
	Use:   "phonemize [text...]",
	Short: "Convert text to IPA phonemes",
	Long: `Convert text to IPA phonemes with espeak-ng.

By default the whole text is phonemized clause by clause and printed one
sentence per line. With --clause only the first clause is converted and the
raw (remaining, phonemes, terminator) triple is printed.

With --ids each sentence is also mapped to piper phoneme ids, using the
phoneme_id_map of --voice-config when given.

Example:
  speechgen phonemize --voice en-us "Hello, world. How are you?"
  speechgen phonemize --clause "Hello, world."
  speechgen phonemize --ids --voice-config en_US-amy-low.onnx.json "Hello"`,
	RunE: runPhonemize,
}

func init() {
	f := phonemizeCmd.Flags()
	f.StringVar(&phonemizeFlags.data, "data", "", "espeak-ng data directory (default from config)")
	f.StringVar(&phonemizeFlags.voice, "voice", "", "espeak-ng voice (default from config)")
	f.StringVarP(&phonemizeFlags.text, "text", "t", "", "text to phonemize")
	f.BoolVar(&phonemizeFlags.clause, "clause", false, "convert only the first clause and print the raw triple")
	f.BoolVar(&phonemizeFlags.ids, "ids", false, "print piper phoneme ids for each sentence")
	f.StringVar(&phonemizeFlags.voiceConfig, "voice-config", "", "piper voice config (.onnx.json) for voice and id map")
}

func runPhonemize(cmd *cobra.Command, args []string) error {
	cfg := getConfig()

	text, err := inputText(cmd, phonemizeFlags.text, args)
	if err != nil {
		return err
	}

	voice := firstNonEmpty(phonemizeFlags.voice, cfg.Espeak.Voice)
	idCfg := piper.DefaultIDConfig()
	if phonemizeFlags.voiceConfig != "" {
		vc, err := piper.LoadConfig(phonemizeFlags.voiceConfig)
		if err != nil {
			return err
		}
		if phonemizeFlags.voice == "" {
			voice = vc.Espeak.Voice
		}
		idCfg.IDMap = vc.IDMap()
	}

	bridge, err := newPhonemizerBridge(firstNonEmpty(phonemizeFlags.data, cfg.Espeak.DataPath))
	if err != nil {
		return err
	}
	defer bridge.Close()

	printVerbose("Voice: %s", voice)
	out := cmd.OutOrStdout()

	if phonemizeFlags.clause {
		t, err := bridge.Phonemize(voice, text)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %q\n", labelStyle.Render("remaining: "), t[0])
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("phonemes:  "), t[1])
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("terminator:"), t[2])
		return nil
	}

	phonemes, err := piper.Phonemize(bridge, voice, text)
	if err != nil {
		return err
	}
	for _, sentence := range piper.Sentences(phonemes) {
		fmt.Fprintln(out, sentence)
		if !phonemizeFlags.ids {
			continue
		}
		ids, missing := piper.PhonemeIDs(sentence, idCfg)
		fmt.Fprintln(out, dimStyle.Render(formatIDs(ids)))
		for r, n := range missing {
			log.Sugar().Warnf("phoneme %q missing from id map (%d occurrences)", r, n)
		}
	}
	return nil
}

// newPhonemizerBridge returns a bridge with an initialized espeak-ng phonemizer.
func newPhonemizerBridge(dataPath string) (*speechgen.Bridge, error) {
	bridge := speechgen.NewBridge(nil, espeak.NewPhonemizer(), speechgen.WithLogger(log))
	if err := bridge.InitPhonemizer(dataPath); err != nil {
		return nil, err
	}
	return bridge, nil
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
