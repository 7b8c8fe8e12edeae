package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/gatekeeper/internal/config"
	"github.com/danielpatrickdp/gatekeeper/internal/controller"
	"github.com/danielpatrickdp/gatekeeper/internal/eval"
	"github.com/danielpatrickdp/gatekeeper/internal/gate"
	"github.com/danielpatrickdp/gatekeeper/internal/logging"
	"github.com/danielpatrickdp/gatekeeper/internal/state"
	"github.com/danielpatrickdp/gatekeeper/internal/traffic"
)

// #region flags

type runOptions struct {
	rounds      int
	policy      string
	lights      string
	policySeed  uint64
	trace       bool
	metricsAddr string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run gating rounds against the persisted world",
	Long: `run resumes the active world version from the ledger database (creating
an empty intersection on first use), then runs --rounds gating rounds. Each
round's outcome is stored as a new world version and every judged stage is
written to the attempt ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if runOpts.trace {
			shutdown, err := initTracing(os.Stderr)
			if err != nil {
				return err
			}
			defer flush(shutdown)
		}
		if runOpts.metricsAddr != "" {
			defer flush(serveMetrics(runOpts.metricsAddr))
		}
		return runRounds(ctx, cfg, runOpts, cmd.OutOrStdout())
	},
}

func init() {
	f := runCmd.Flags()
	f.IntVarP(&runOpts.rounds, "rounds", "n", 1, "number of gating rounds")
	f.StringVar(&runOpts.policy, "policy", "random", "action proposer: random | fixed")
	f.StringVar(&runOpts.lights, "lights", "", "green set for --policy fixed, e.g. N,S")
	f.Uint64Var(&runOpts.policySeed, "policy-seed", 1, "seed for --policy random")
	f.BoolVar(&runOpts.trace, "trace", false, "print spans to stderr")
	f.StringVar(&runOpts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")
}

func flush(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Printf("[CLI] shutdown: %v", err)
	}
}

// #endregion flags

// #region rounds

func newPolicy(opts runOptions) (gate.Policy[traffic.Lights, traffic.Observation], error) {
	switch opts.policy {
	case "random":
		return controller.NewRandom(opts.policySeed), nil
	case "fixed":
		lights, err := traffic.ParseLights(opts.lights)
		if err != nil {
			return nil, fmt.Errorf("--lights: %w", err)
		}
		return &controller.Fixed{Action: lights}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q", opts.policy)
	}
}

// openWorld resumes the active world version or creates the first one.
func openWorld(store *state.Store, simConfig traffic.Config) (*traffic.Simulation, state.WorldRecord, error) {
	current, err := store.GetCurrent()
	if errors.Is(err, state.ErrNoWorld) {
		log.Println("[STATE] no active world found, creating an empty intersection")
		sim := traffic.NewSimulation(simConfig)
		world, err := sim.State()
		if err != nil {
			return nil, state.WorldRecord{}, err
		}
		rec, err := store.CreateInitialWorld(world)
		if err != nil {
			return nil, state.WorldRecord{}, fmt.Errorf("create initial world: %w", err)
		}
		return sim, rec, nil
	}
	if err != nil {
		return nil, state.WorldRecord{}, err
	}
	sim, err := traffic.RestoreSimulation(simConfig, current.World)
	if err != nil {
		return nil, state.WorldRecord{}, fmt.Errorf("resume world %s: %w", current.VersionID, err)
	}
	return sim, current, nil
}

func runRounds(ctx context.Context, cfg *config.Config, opts runOptions, out io.Writer) error {
	spec, err := traffic.Spec(cfg.Gate.Spec)
	if err != nil {
		return err
	}
	policy, err := newPolicy(opts)
	if err != nil {
		return err
	}

	store, err := state.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	sim, parent, err := openWorld(store, cfg.Traffic())
	if err != nil {
		return err
	}

	gateConfig := cfg.Gatekeeper()
	ledger := logging.NewLedger(store.DB(), logging.GateRecordThresholds{
		Spec:         cfg.Gate.Spec,
		Horizon:      gateConfig.Horizon,
		MaxTimestamp: cfg.Logic.MaxTimestamp,
		Epsilon:      gateConfig.Eval.Epsilon,
	})
	gk := gate.New[traffic.Lights, traffic.Observation, traffic.TrajectoryEntry](
		gateConfig, sim, policy, spec, gate.WithRecorder(ledger))

	fmt.Fprintf(out, "world %s | db %s | spec %s\n", parent.VersionID, cfg.Store.Path, cfg.Gate.Spec)
	for i := 0; i < opts.rounds; i++ {
		result, err := gk.Run(ctx)
		action, degree := result.Action.String(), result.World.Degree
		switch {
		case errors.Is(err, gate.ErrNoSafeAction):
			// Rejected world stages still moved the world; keep the store in step.
			action, degree = "none", 0
		case err != nil:
			return err
		}

		rec, perr := persistRound(store, sim, parent, result.RoundID, action, degree, result.World)
		if perr != nil {
			return perr
		}
		parent = rec

		in := sim.Intersection()
		fmt.Fprintf(out, "[%s] action=%s attempts=%d degree=%.6f crashes=%d throughput=%d\n",
			result.RoundID, action, result.Attempts, degree, in.NumCrashes(), in.TotalThroughput())
		if err != nil {
			fmt.Fprintf(out, "[%s] %v\n", result.RoundID, err)
		}
	}
	return nil
}

func persistRound(
	store *state.Store,
	sim *traffic.Simulation,
	parent state.WorldRecord,
	roundID, action string,
	degree float64,
	world eval.EvalResult,
) (state.WorldRecord, error) {
	snapshot, err := sim.State()
	if err != nil {
		return state.WorldRecord{}, err
	}
	metrics := make(map[string]float64, len(world.Metrics))
	for _, m := range world.Metrics {
		metrics[m.Name] = m.Value
	}
	raw, err := json.Marshal(metrics)
	if err != nil {
		return state.WorldRecord{}, fmt.Errorf("marshal metrics: %w", err)
	}

	rec := state.WorldRecord{
		VersionID:   uuid.New().String(),
		ParentID:    parent.VersionID,
		RoundID:     roundID,
		Action:      action,
		Degree:      degree,
		World:       snapshot,
		CreatedAt:   time.Now().UTC(),
		MetricsJSON: string(raw),
	}
	if err := store.CommitWorld(rec); err != nil {
		return state.WorldRecord{}, fmt.Errorf("commit world: %w", err)
	}
	return rec, nil
}

// #endregion rounds
