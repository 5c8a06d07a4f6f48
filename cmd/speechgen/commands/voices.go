//go:build !ios && !android && (amd64 || arm64)

package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var voicesFlags struct {
	data     string
	language string
}

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List installed espeak-ng voices",
	Long: `List the voices espeak-ng can phonemize with.

Example:
  speechgen voices
  speechgen voices --language en`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		bridge, err := newPhonemizerBridge(firstNonEmpty(voicesFlags.data, cfg.Espeak.DataPath))
		if err != nil {
			return err
		}
		defer bridge.Close()

		voices, err := bridge.Voices()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, titleStyle.Render("IDENTIFIER")+"\t"+titleStyle.Render("NAME")+"\t"+titleStyle.Render("LANGUAGES"))
		n := 0
		for _, v := range voices {
			if voicesFlags.language != "" && !hasLanguagePrefix(v.Languages, voicesFlags.language) {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", v.Identifier, v.Name, dimStyle.Render(strings.Join(v.Languages, ", ")))
			n++
		}
		if err := w.Flush(); err != nil {
			return err
		}
		printVerbose("%d voices", n)
		return nil
	},
}

func init() {
	voicesCmd.Flags().StringVar(&voicesFlags.data, "data", "", "espeak-ng data directory (default from config)")
	voicesCmd.Flags().StringVar(&voicesFlags.language, "language", "", "only list voices for this language prefix")
}

func hasLanguagePrefix(languages []string, prefix string) bool {
	for _, l := range languages {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}
