package eval

import (
	"context"
	"fmt"
	"log"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/gatekeeper/internal/logic"
)

var tracer = otel.Tracer("github.com/danielpatrickdp/gatekeeper/internal/eval")

// #region eval-harness
// EvalHarness scores trajectories against a safety formula.
type EvalHarness[E logic.Atomic] struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness[E logic.Atomic](config EvalConfig) *EvalHarness[E] {
	return &EvalHarness[E]{config: config}
}

// Config returns the harness configuration.
func (h *EvalHarness[E]) Config() EvalConfig { return h.config }

// Run interprets spec at every step of the trajectory and averages the
// degrees. The trajectory passes when the mean exceeds 1 - Epsilon.
// An empty trajectory carries no evidence and has degree 0.
//
// Steps are interpreted concurrently; each worker writes only its own slot,
// and the sum and minimum are reduced after all workers finish.
func (h *EvalHarness[E]) Run(ctx context.Context, trajectory []E, spec logic.Prop[E]) (EvalResult, error) {
	ctx, span := tracer.Start(ctx, "eval.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("eval.steps", len(trajectory)),
		attribute.String("eval.spec", spec.String()),
	)

	threshold := 1 - h.config.Epsilon
	if len(trajectory) == 0 {
		return EvalResult{
			Passed: false,
			Reason: "eval failed: empty trajectory",
			Metrics: []EvalMetric{
				{Name: "mean_degree", Value: 0, Pass: false},
			},
		}, nil
	}

	cfg := h.config.Logic
	if cfg.MaxTime == 0 {
		cfg.MaxTime = len(trajectory)
	}
	interp := logic.NewInterpreter[E](cfg)

	degrees := make([]float64, len(trajectory))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, h.config.Workers))
	for t := range trajectory {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := interp.Interpret(spec, t)
			if err != nil {
				return fmt.Errorf("interpret at step %d: %w", t, err)
			}
			degrees[t] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return EvalResult{}, err
	}

	var sum float64
	worst, worstAt := math.Inf(1), 0
	for t, v := range degrees {
		sum += v
		if v < worst {
			worst, worstAt = v, t
		}
	}
	mean := sum / float64(len(degrees))
	passed := mean > threshold

	metrics := []EvalMetric{
		{Name: "mean_degree", Value: mean, Pass: passed},
		{Name: "min_degree", Value: worst, Pass: worst > threshold},
		{Name: "worst_step", Value: float64(worstAt), Pass: worst > threshold},
	}

	reason := fmt.Sprintf("mean degree %.6f over %d steps", mean, len(degrees))
	if !passed {
		reason = fmt.Sprintf("eval failed: mean degree %.6f <= %.6f (worst %.6f at step %d)",
			mean, threshold, worst, worstAt)
	}
	if cfg.Debug {
		log.Printf("[EVAL] %s: %s", spec, reason)
	}
	span.SetAttributes(attribute.Float64("eval.degree", mean), attribute.Bool("eval.passed", passed))

	return EvalResult{
		Passed:  passed,
		Degree:  mean,
		Steps:   len(degrees),
		Degrees: degrees,
		Metrics: metrics,
		Reason:  reason,
	}, nil
}

// #endregion eval-harness
