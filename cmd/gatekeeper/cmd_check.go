package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/gatekeeper/internal/eval"
	"github.com/danielpatrickdp/gatekeeper/internal/traffic"
)

var (
	checkSpec    string
	checkJSONOut bool

	checkCmd = &cobra.Command{
		Use:   "check <trajectory.json|->",
		Short: "Score a recorded trajectory against the safety formula",
		Long: `check reads a JSON array of trajectory entries, for example
[{"num_crashes_local":0,"num_cars_throughput":1}, ...], and prints the
per-trajectory safety verdict. Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trajectory, err := readTrajectory(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			text := cfg.Gate.Spec
			if checkSpec != "" {
				text = checkSpec
			}
			spec, err := traffic.Spec(text)
			if err != nil {
				return err
			}

			harness := eval.NewEvalHarness[traffic.TrajectoryEntry](cfg.Eval())
			result, err := harness.Run(cmd.Context(), trajectory, spec(trajectory))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if checkJSONOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Fprintf(out, "spec:   %s\n", text)
			fmt.Fprintf(out, "steps:  %d\n", result.Steps)
			fmt.Fprintf(out, "degree: %.6f\n", result.Degree)
			for _, m := range result.Metrics {
				fmt.Fprintf(out, "  %-12s %.6f\n", m.Name, m.Value)
			}
			verdict := "SAFE"
			if !result.Passed {
				verdict = "UNSAFE"
			}
			fmt.Fprintf(out, "%s: %s\n", verdict, result.Reason)
			if !result.Passed {
				return fmt.Errorf("trajectory rejected")
			}
			return nil
		},
	}
)

func init() {
	checkCmd.Flags().StringVar(&checkSpec, "spec", "", "formula to check instead of gate.spec")
	checkCmd.Flags().BoolVar(&checkJSONOut, "json", false, "output as JSON")
}

func readTrajectory(path string, stdin io.Reader) ([]traffic.TrajectoryEntry, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read trajectory: %w", err)
	}
	var trajectory []traffic.TrajectoryEntry
	if err := json.Unmarshal(data, &trajectory); err != nil {
		return nil, fmt.Errorf("parse trajectory: %w", err)
	}
	return trajectory, nil
}
