package cli

import (
	"encoding/json"
	"fmt"

	"github.com/lockaudit/lockaudit/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

var versionJSON bool

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output JSON")
}

// GetVersionCmd export
func GetVersionCmd() *cobra.Command {
	return versionCmd
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Get()
	if versionJSON {
		b, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "lockaudit %s", info.Version)
	if info.Commit != "" {
		fmt.Fprintf(cmd.OutOrStdout(), " (%s)", info.Commit)
	}
	fmt.Fprintf(cmd.OutOrStdout(), " %s %s\n", info.GoVersion, info.Platform)
	return nil
}
