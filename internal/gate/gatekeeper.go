package gate

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/gatekeeper/internal/eval"
	"github.com/danielpatrickdp/gatekeeper/internal/logic"
)

var tracer = otel.Tracer("github.com/danielpatrickdp/gatekeeper/internal/gate")

// #region metrics

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_gate_attempts_total",
		Help: "Judged validation stages by stage and decision",
	}, []string{"stage", "action"})

	roundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_gate_rounds_total",
		Help: "Gate rounds by outcome",
	}, []string{"outcome"})

	degreeObserved = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatekeeper_gate_degree",
		Help:    "Mean safety degree per validated trajectory",
		Buckets: []float64{0, 0.5, 0.9, 0.99, 0.999, 0.9999, 0.99999, 1},
	}, []string{"stage"})
)

// #endregion metrics

// #region gatekeeper

// Gatekeeper runs the propose / shadow-validate / world-validate / commit
// loop against one authoritative environment.
type Gatekeeper[A, O any, E logic.Atomic] struct {
	config   GateConfig
	gate     *Gate
	harness  *eval.EvalHarness[E]
	world    Environment[A, O, E]
	policy   Policy[A, O]
	spec     SpecFunc[E]
	recorder Recorder
	limiter  *rate.Limiter
}

// Option configures a Gatekeeper.
type Option func(*options)

type options struct {
	recorder Recorder
}

// WithRecorder sends every judged stage to r.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// New creates a gatekeeper owning world.
func New[A, O any, E logic.Atomic](
	config GateConfig,
	world Environment[A, O, E],
	policy Policy[A, O],
	spec SpecFunc[E],
	opts ...Option,
) *Gatekeeper[A, O, E] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var limiter *rate.Limiter
	if config.RetryRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RetryRate), 1)
	}
	return &Gatekeeper[A, O, E]{
		config:   config,
		gate:     NewGate(config),
		harness:  eval.NewEvalHarness[E](config.Eval),
		world:    world,
		policy:   policy,
		spec:     spec,
		recorder: o.recorder,
		limiter:  limiter,
	}
}

// World returns the authoritative environment.
func (g *Gatekeeper[A, O, E]) World() Environment[A, O, E] { return g.world }

// Run executes one gating round. It returns once an action has been
// validated on both a fresh shadow copy and the world. Rejected attempts
// go back to the policy. After MaxAttempts rejections Run returns
// ErrNoSafeAction; a world stage that was rejected has still advanced the
// world.
func (g *Gatekeeper[A, O, E]) Run(ctx context.Context) (RoundResult[A], error) {
	roundID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "gate.Round", trace.WithAttributes(
		attribute.String("gate.round_id", roundID),
		attribute.Int("gate.horizon", g.config.Horizon),
	))
	defer span.End()

	g.policy.Reset()

	for attempt := 1; ; attempt++ {
		if g.config.MaxAttempts > 0 && attempt > g.config.MaxAttempts {
			roundsTotal.WithLabelValues("exhausted").Inc()
			log.Printf("[GATE] round %s: no safe action after %d attempts", roundID, g.config.MaxAttempts)
			err := fmt.Errorf("round %s: %w", roundID, ErrNoSafeAction)
			span.SetStatus(codes.Error, err.Error())
			return RoundResult[A]{RoundID: roundID, Attempts: attempt - 1}, err
		}
		if err := g.pace(ctx); err != nil {
			roundsTotal.WithLabelValues("cancelled").Inc()
			span.SetStatus(codes.Error, err.Error())
			return RoundResult[A]{RoundID: roundID, Attempts: attempt - 1}, err
		}

		result, committed, err := g.attempt(ctx, roundID, attempt)
		if err != nil {
			roundsTotal.WithLabelValues("error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return RoundResult[A]{RoundID: roundID, Attempts: attempt}, err
		}
		if committed {
			roundsTotal.WithLabelValues("commit").Inc()
			span.SetAttributes(attribute.Int("gate.attempts", attempt))
			log.Printf("[GATE] round %s: committed %v after %d attempts (world degree %.6f)",
				roundID, result.Action, attempt, result.World.Degree)
			return result, nil
		}
	}
}

// attempt walks SelectAction -> ValidateShadow -> ValidateWorld -> Commit
// once. committed is false when either validation rejected the action.
func (g *Gatekeeper[A, O, E]) attempt(ctx context.Context, roundID string, n int) (RoundResult[A], bool, error) {
	ctx, span := tracer.Start(ctx, "gate.Attempt", trace.WithAttributes(attribute.Int("gate.attempt", n)))
	defer span.End()

	// SelectAction
	action := g.policy.SelectAction(g.world.Observe())
	span.SetAttributes(attribute.String("gate.action", fmt.Sprint(action)))

	// ValidateShadow: every attempt gets a fresh copy of the world.
	shadowRes, shadowDec, err := g.validate(ctx, g.world.Snapshot(), action, StageValidateShadow, roundID, n)
	if err != nil {
		return RoundResult[A]{}, false, err
	}
	if shadowDec.Vetoed {
		return RoundResult[A]{}, false, nil
	}

	// ValidateWorld
	worldRes, worldDec, err := g.validate(ctx, g.world, action, StageValidateWorld, roundID, n)
	if err != nil {
		return RoundResult[A]{}, false, err
	}
	if worldDec.Vetoed {
		return RoundResult[A]{}, false, nil
	}

	// Commit
	return RoundResult[A]{
		RoundID:  roundID,
		Action:   action,
		Attempts: n,
		Shadow:   shadowRes,
		World:    worldRes,
		Decision: worldDec,
	}, true, nil
}

func (g *Gatekeeper[A, O, E]) validate(
	ctx context.Context,
	env Environment[A, O, E],
	action A,
	stage Stage,
	roundID string,
	n int,
) (eval.EvalResult, GateDecision, error) {
	trajectory := env.RunRecordingTrajectory(action, g.config.Horizon)
	result, err := g.harness.Run(ctx, trajectory, g.spec(trajectory))
	if err != nil {
		return eval.EvalResult{}, GateDecision{}, fmt.Errorf("%s: %w", stage, err)
	}
	decision := g.gate.Evaluate(stage, result)

	attemptsTotal.WithLabelValues(string(stage), decision.Action).Inc()
	degreeObserved.WithLabelValues(string(stage)).Observe(result.Degree)
	if g.config.Debug {
		log.Printf("[GATE] round %s attempt %d %s action=%v: %s", roundID, n, stage, action, decision.Reason)
	}

	if g.recorder != nil {
		values := make([]float64, len(trajectory))
		for i, e := range trajectory {
			values[i] = e.Val()
		}
		rec := AttemptRecord{
			RoundID:    roundID,
			Attempt:    n,
			Stage:      stage,
			Action:     fmt.Sprint(action),
			AtomValues: values,
			Result:     result,
			Decision:   decision,
		}
		if err := g.recorder.RecordAttempt(rec); err != nil {
			log.Printf("[GATE] failed to record attempt: %v", err)
		}
	}
	return result, decision, nil
}

// pace blocks for the retry limiter, if any, and honors cancellation.
func (g *Gatekeeper[A, O, E]) pace(ctx context.Context) error {
	if g.limiter != nil {
		return g.limiter.Wait(ctx)
	}
	return ctx.Err()
}

// #endregion gatekeeper
