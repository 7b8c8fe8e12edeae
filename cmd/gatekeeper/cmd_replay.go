package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/gatekeeper/internal/replay"
)

var (
	replayJSONOut bool

	replayCmd = &cobra.Command{
		Use:   "replay <fixture.json>",
		Short: "Re-judge recorded trajectories and compare against expected actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := replay.LoadFixture(args[0])
			if err != nil {
				return err
			}
			results, err := replay.Replay(cmd.Context(), f.ToSteps(), f.Config.ToReplayConfig())
			if err != nil {
				return err
			}
			summary := replay.Summarize(results)

			expected := make(map[string]string, len(f.ExpectedResults))
			for _, e := range f.ExpectedResults {
				expected[e.StepID] = e.Action
			}
			mismatches := 0
			for _, r := range results {
				if want, ok := expected[r.StepID]; ok && want != r.Action {
					mismatches++
				}
			}

			out := cmd.OutOrStdout()
			if replayJSONOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(struct {
					Results    []replay.ReplayResult `json:"results"`
					Summary    replay.ReplaySummary  `json:"summary"`
					Mismatches int                   `json:"mismatches"`
				}{results, summary, mismatches}); err != nil {
					return err
				}
			} else {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "STEP\tACTION\tEXPECTED\tSHADOW\tWORLD\tREASON")
				for _, r := range results {
					world := "-"
					if r.World != nil {
						world = fmt.Sprintf("%.6f", r.World.Degree)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%.6f\t%s\t%s\n",
						r.StepID, r.Action, expected[r.StepID], r.Shadow.Degree, world, r.Reason)
				}
				w.Flush()
				fmt.Fprintf(out, "\n%d steps: %d commit, %d shadow reject, %d world reject, %d incomplete (commit rate %.2f)\n",
					summary.TotalSteps, summary.Commits, summary.ShadowRejects, summary.WorldRejects,
					summary.Incomplete, summary.CommitRate)
			}
			if mismatches > 0 {
				return fmt.Errorf("%d steps diverged from the expected actions", mismatches)
			}
			return nil
		},
	}
)

func init() {
	replayCmd.Flags().BoolVar(&replayJSONOut, "json", false, "output as JSON")
}
