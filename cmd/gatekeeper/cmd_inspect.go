package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/gatekeeper/internal/logging"
	"github.com/danielpatrickdp/gatekeeper/internal/state"
)

// #region command

var (
	inspectLast    int
	inspectVersion string
	inspectRound   string
	inspectJSONOut bool

	inspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Show world versions, one version in detail, or the ledger of one round",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := state.NewStore(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			switch {
			case inspectVersion != "":
				return runDetailMode(store, inspectVersion, out)
			case inspectRound != "":
				return runRoundMode(store, inspectRound, out)
			default:
				return runListMode(store, inspectLast, out)
			}
		},
	}
)

func init() {
	f := inspectCmd.Flags()
	f.IntVar(&inspectLast, "last", 20, "show N most recent versions")
	f.StringVar(&inspectVersion, "version", "", "show single version detail")
	f.StringVar(&inspectRound, "round", "", "show the ledger entries of one round")
	f.BoolVar(&inspectJSONOut, "json", false, "output as JSON instead of a table")
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion command

// #region list-mode

func runListMode(store *state.Store, last int, out io.Writer) error {
	versions, err := store.ListVersions(last)
	if err != nil {
		return err
	}
	if inspectJSONOut {
		return writeJSON(out, versions)
	}
	if len(versions) == 0 {
		fmt.Fprintln(out, "no versions found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tROUND\tACTION\tDEGREE\tCRASHES\tTHROUGHPUT\tCREATED")
	// Oldest first.
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		round := v.RoundID
		if round == "" {
			round = "(initial)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.6f\t%d\t%d\t%s\n",
			short(v.VersionID), short(round), v.Action, v.Degree, v.Crashes, v.Throughput,
			v.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion list-mode

// #region detail-mode

func runDetailMode(store *state.Store, id string, out io.Writer) error {
	rec, err := store.GetVersion(id)
	if err != nil {
		return err
	}
	if inspectJSONOut {
		return writeJSON(out, rec)
	}

	fmt.Fprintf(out, "version:    %s\n", rec.VersionID)
	fmt.Fprintf(out, "parent:     %s\n", rec.ParentID)
	fmt.Fprintf(out, "round:      %s\n", rec.RoundID)
	fmt.Fprintf(out, "action:     %s (degree %.6f)\n", rec.Action, rec.Degree)
	fmt.Fprintf(out, "lights:     %s\n", rec.World.Green)
	fmt.Fprintf(out, "crashes:    %d\n", rec.World.Crashes)
	fmt.Fprintf(out, "throughput: %d\n", rec.World.Throughput)
	fmt.Fprintf(out, "metrics:    %s\n", rec.MetricsJSON)
	fmt.Fprintf(out, "cars:       %d\n", len(rec.World.Cars))
	for _, c := range rec.World.Cars {
		fmt.Fprintf(out, "  #%-5d %s at %d\n", c.ID, c.Light, c.Position)
	}
	return nil
}

// #endregion detail-mode

// #region round-mode

func runRoundMode(store *state.Store, roundID string, out io.Writer) error {
	entries, err := logging.ListRound(store.DB(), roundID)
	if err != nil {
		return err
	}
	if inspectJSONOut {
		return writeJSON(out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "no ledger entries for round %s\n", roundID)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ATTEMPT\tSTAGE\tACTION\tDEGREE\tDECISION\tREASON")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.6f\t%s\t%s\n", e.Attempt, e.Stage, e.Action, e.Degree, e.Decision, e.Reason)
	}
	return w.Flush()
}

// #endregion round-mode
