package eval

import (
	"context"
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/danielpatrickdp/gatekeeper/internal/interval"
	"github.com/danielpatrickdp/gatekeeper/internal/logic"
)

type step float64

func (s step) Val() interval.Valuation { return float64(s) }
func (s step) String() string          { return strconv.FormatFloat(float64(s), 'g', -1, 64) }

func trajectory(values ...float64) []step {
	out := make([]step, len(values))
	for i, v := range values {
		out[i] = step(v)
	}
	return out
}

func always(traj []step) logic.Prop[step] {
	return logic.Always(logic.Var(logic.NewSignal("safe", traj)))
}

func TestEvalPassesOnSafeTrajectory(t *testing.T) {
	h := NewEvalHarness[step](DefaultEvalConfig())
	traj := trajectory(1, 1, 1, 1, 1)

	result, err := h.Run(context.Background(), traj, always(traj))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	if result.Degree != 1 || result.Steps != 5 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestEvalFailsOnUnsafeStep(t *testing.T) {
	h := NewEvalHarness[step](DefaultEvalConfig())
	traj := trajectory(1, 1, 0.5, 1)
	spec := logic.Var(logic.NewSignal("safe", traj))

	result, err := h.Run(context.Background(), traj, spec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Passed {
		t.Fatal("expected fail on a half-safe step")
	}
	if math.Abs(result.Degree-0.875) > 1e-12 {
		t.Fatalf("expected mean 0.875, got %g", result.Degree)
	}
	want := []float64{1, 1, 0.5, 1}
	if len(result.Degrees) != len(want) {
		t.Fatalf("expected %d per-step degrees, got %v", len(want), result.Degrees)
	}
	for i, d := range result.Degrees {
		if d != want[i] {
			t.Fatalf("degree at step %d = %g, want %g", i, d, want[i])
		}
	}

	found := false
	for _, m := range result.Metrics {
		if m.Name == "worst_step" {
			found = true
			if m.Value != 2 || m.Pass {
				t.Fatalf("unexpected worst_step metric %+v", m)
			}
		}
	}
	if !found {
		t.Fatal("expected worst_step metric")
	}
}

func TestEvalAlwaysSeesFutureViolation(t *testing.T) {
	h := NewEvalHarness[step](DefaultEvalConfig())
	traj := trajectory(1, 1, 1, 0.5)

	result, err := h.Run(context.Background(), traj, always(traj))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Every step looks ahead to the dip at step 3.
	if math.Abs(result.Degree-0.5) > 1e-9 {
		t.Fatalf("expected mean 0.5, got %g", result.Degree)
	}
}

func TestEvalEmptyTrajectoryNeverPasses(t *testing.T) {
	h := NewEvalHarness[step](DefaultEvalConfig())

	result, err := h.Run(context.Background(), nil, logic.True[step]())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Passed || result.Degree != 0 {
		t.Fatalf("empty trajectory should fail with degree 0, got %+v", result)
	}
}

func TestEvalPropagatesOutOfRange(t *testing.T) {
	config := DefaultEvalConfig()
	config.Logic.MaxTime = 10
	h := NewEvalHarness[step](config)
	traj := trajectory(1, 1, 1)

	_, err := h.Run(context.Background(), traj, always(traj))
	if !errors.Is(err, logic.ErrIndexOutOfRange) {
		t.Fatalf("expected out-of-range error, got %v", err)
	}
}

func TestEvalWorkerCountDoesNotChangeResult(t *testing.T) {
	traj := trajectory(1, 0.9, 0.95, 1, 0.7, 1, 1, 0.99)
	spec := logic.Eventually(logic.Var(logic.NewSignal("safe", traj)))

	var degrees []float64
	for _, workers := range []int{0, 1, 3, 16} {
		config := DefaultEvalConfig()
		config.Workers = workers
		result, err := NewEvalHarness[step](config).Run(context.Background(), traj, spec)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		degrees = append(degrees, result.Degree)
	}
	for _, d := range degrees[1:] {
		if d != degrees[0] {
			t.Fatalf("degree depends on worker count: %v", degrees)
		}
	}
}

func TestEvalCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	traj := trajectory(1, 1)

	_, err := NewEvalHarness[step](DefaultEvalConfig()).Run(ctx, traj, always(traj))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEvalMetricCount(t *testing.T) {
	h := NewEvalHarness[step](DefaultEvalConfig())
	traj := trajectory(1)

	result, err := h.Run(context.Background(), traj, always(traj))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Expect: mean_degree + min_degree + worst_step = 3 metrics
	if len(result.Metrics) != 3 {
		t.Fatalf("expected 3 metrics, got %d", len(result.Metrics))
	}
}
