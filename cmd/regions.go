package cmd

import (
	"github.com/huangsam/tzcluster/core"
	"github.com/spf13/cobra"
)

// regionsCmd prints the candidate region table.
var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the candidate regions used for mapping.",
	Long: `Show each candidate region with its UTC offset and local work window.

The table comes from the regions key of .tzcluster.yaml, or the built-in
table when the key is absent.`,
	Args:    cobra.NoArgs,
	PreRunE: configSetupWrapper,
	Run:     runExecutor("Cannot list regions", core.ExecuteRegions),
}
