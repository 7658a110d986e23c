package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/sourcechain/pkg/sqlite"
	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and storage",
		Long:  "Create the configuration directory with a default config.yaml, then create\nthe data directory and an empty action log.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.storeConfig()
			if err != nil {
				return err
			}
			// Only an explicit --data-dir is recorded; otherwise resolution
			// stays relative to the working directory.
			var dataDir string
			if a.dataDir != "" {
				dataDir = cfg.DataDir
			}
			written, err := writeConfigIfMissing(a.configDir, configFile{
				Backend: types.BackendSQLite,
				DataDir: dataDir,
			})
			if err != nil {
				return err
			}
			if err := a.withBackend(func(*sqlite.Backend) error { return nil }); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "sourcechain initialized")
			if written {
				fmt.Fprintln(out, "  config:", a.configDir, "(created)")
			} else {
				fmt.Fprintln(out, "  config:", a.configDir)
			}
			fmt.Fprintln(out, "  data:  ", cfg.DataDir)
			return nil
		},
	}
}
