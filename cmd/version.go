package cmd

import (
	"fmt"
	"io"
	"maps"
	"runtime"
	"slices"
	"strings"

	"github.com/huangsam/tzcluster/schema"
	"github.com/spf13/cobra"
)

// versionCmd reports the build and what this binary can read, store and lock with.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tzcluster.",
	Long: `Display build details and the capabilities compiled into this binary:
the input formats analyze accepts, the summary store and run lock backends,
and the confidence decay policies. Include this output when reporting bugs.`,
	Run: func(cmd *cobra.Command, _ []string) {
		short, _ := cmd.Flags().GetBool("short")
		if err := writeVersion(cmd.OutOrStdout(), short); err != nil {
			cmd.PrintErrln(err)
		}
	},
}

// writeVersion prints the version line, or the full build and capability report.
func writeVersion(w io.Writer, short bool) error {
	if short {
		_, err := fmt.Fprintln(w, version)
		return err
	}
	lines := []string{
		"tzcluster CLI",
		"  Version:  " + version,
		"  Commit:   " + commit,
		"  Built:    " + date,
		"  Runtime:  " + runtime.Version(),
		"  Platform: " + runtime.GOOS + "/" + runtime.GOARCH,
		"Capabilities",
		"  Input formats:  " + names(schema.ValidInputFormats),
		"  Store backends: " + names(schema.ValidDatabaseBackends),
		"  Lock backends:  " + names(schema.ValidLockBackends),
		"  Decay policies: " + names(schema.ValidDecayPolicies),
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// names lists the keys of a set in sorted order.
func names[K ~string](set map[K]struct{}) string {
	keys := slices.Sorted(maps.Keys(set))
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return strings.Join(out, ", ")
}
