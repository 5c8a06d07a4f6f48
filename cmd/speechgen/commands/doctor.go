//go:build !ios && !android && (amd64 || arm64)

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obinnaokechukwu/speechgen/internal/bindings"
	"github.com/obinnaokechukwu/speechgen/internal/platform"
	"github.com/obinnaokechukwu/speechgen/internal/shim"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report which native libraries can be found",
	Long: `Report the platform and the native libraries speechgen can find.

Example:
  speechgen doctor
  SPEECHGEN_LIBRARY_PATH=/opt/bark/build speechgen doctor`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, titleStyle.Render("Platform"))
		fmt.Fprintf(out, "  %s %s\n", labelStyle.Render("target:"), platform.Target())
		fmt.Fprintf(out, "  %s %v\n", labelStyle.Render("struct by value:"), platform.SupportsStructByValue)

		fmt.Fprintln(out, titleStyle.Render("Libraries"))
		for _, lib := range []*bindings.Library{bindings.Espeak, bindings.Bark} {
			path, err := bindings.FindLibrary(lib.Name, lib.Versions)
			if err != nil {
				fmt.Fprintf(out, "  %s\n", status(false, lib.Name+": "+dimStyle.Render(err.Error())))
				continue
			}
			fmt.Fprintf(out, "  %s\n", status(true, lib.Name+": "+path))
		}

		_ = shim.Load()
		fmt.Fprintf(out, "  %s\n", status(shim.IsLoaded(), "sgshim: "+shim.Status()))
		if !shim.IsLoaded() {
			fmt.Fprintln(out)
			fmt.Fprintln(out, dimStyle.Render(shim.BuildInstructions()))
		}

		printVerbose("Search paths: %v", bindings.LibrarySearchPaths())
		return nil
	},
}
