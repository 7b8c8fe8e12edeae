package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/gatekeeper/internal/config"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	dbOverride string
	cfg        *config.Config

	rootCmd = &cobra.Command{
		Use:   "gatekeeper",
		Short: "Validate control actions against a temporal safety formula before committing them",
		Long: `gatekeeper runs proposed actions on a shadow copy of a simulated
intersection, scores the recorded trajectory against a fuzzy temporal
formula, and only commits actions that are safe in both the shadow and
the world.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbOverride != "" {
				loaded.Store.Path = dbOverride
			}
			cfg = loaded
			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the gatekeeper version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("gatekeeper", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&dbOverride, "db", "", "ledger database path (overrides store.path and GATEKEEPER_DB)")

	rootCmd.AddCommand(runCmd, checkCmd, replayCmd, inspectCmd, exportCmd, rollbackCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("[CLI] %v", err)
		os.Exit(1)
	}
}
