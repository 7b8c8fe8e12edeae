package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/gatekeeper/internal/logging"
	"github.com/danielpatrickdp/gatekeeper/internal/replay"
	"github.com/danielpatrickdp/gatekeeper/internal/state"
)

var (
	exportRounds []string
	exportLast   int
	exportOut    string

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export ledger entries as a replay fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			if exportOut == "" {
				return fmt.Errorf("--out is required")
			}
			store, err := state.NewStore(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()

			var entries []logging.ProvenanceEntry
			if len(exportRounds) > 0 {
				for _, id := range exportRounds {
					round, err := logging.ListRound(store.DB(), id)
					if err != nil {
						return err
					}
					entries = append(entries, round...)
				}
			} else {
				entries, err = logging.ListRecent(store.DB(), exportLast)
				if err != nil {
					return err
				}
				slices.Reverse(entries)
			}
			if len(entries) == 0 {
				return fmt.Errorf("no ledger entries to export")
			}

			fixture, err := replay.FromLedger(entries, fmt.Sprintf("exported from %s", cfg.Store.Path))
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(fixture, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal fixture: %w", err)
			}
			if err := os.WriteFile(exportOut, data, 0o644); err != nil {
				return fmt.Errorf("write fixture: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d steps to %s\n", len(fixture.Steps), exportOut)
			return nil
		},
	}

	rollbackCmd = &cobra.Command{
		Use:   "rollback <version-id>",
		Short: "Make an earlier world version the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := state.NewStore(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()

			if err := store.Rollback(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "active world is now %s\n", args[0])
			return nil
		},
	}
)

func init() {
	f := exportCmd.Flags()
	f.StringSliceVar(&exportRounds, "round", nil, "round IDs to export (repeatable)")
	f.IntVar(&exportLast, "last", 20, "number of most recent ledger entries when no --round is given")
	f.StringVarP(&exportOut, "out", "o", "", "output fixture JSON path")
}
