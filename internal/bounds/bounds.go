package bounds

import (
	"log"
	"math"

	"github.com/danielpatrickdp/gatekeeper/internal/interval"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #region metrics

var (
	searchIterations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatekeeper_bounds_iterations",
		Help:    "Bisection steps per bound search",
		Buckets: prometheus.ExponentialBuckets(1, 2, 16),
	}, []string{"kind"})

	searchNonConvergence = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_bounds_nonconvergence_total",
		Help: "Bound searches that stopped before reaching epsilon",
	}, []string{"kind", "reason"})
)

// #endregion metrics

// #region entry-points

// Supremum approximates sup { eval(formula, t) | t in window }.
func Supremum[F any](cfg Config, eval Evaluator[F], formula F, window interval.TimeWindow) (Estimate, error) {
	return Approximate(cfg, eval, formula, window, interval.Supremum)
}

// Infimum approximates inf { eval(formula, t) | t in window }.
func Infimum[F any](cfg Config, eval Evaluator[F], formula F, window interval.TimeWindow) (Estimate, error) {
	return Approximate(cfg, eval, formula, window, interval.Infimum)
}

// Approximate runs a branch-and-bound bisection over the steps of window and
// returns the safe end of the final global bound. Errors from eval abort the
// search and are returned unchanged.
//
// An empty window carries no evidence. Its supremum is Prior.Lower and its
// infimum Prior.Upper, the identities of max and min over the prior range.
func Approximate[F any](
	cfg Config,
	eval Evaluator[F],
	formula F,
	window interval.TimeWindow,
	kind interval.BoundType,
) (Estimate, error) {
	if window.Empty() {
		value := cfg.Prior.Lower()
		if kind == interval.Infimum {
			value = cfg.Prior.Upper()
		}
		return Estimate{
			Kind:      kind,
			Value:     value,
			Bound:     cfg.Prior,
			Converged: true,
			Empty:     true,
		}, nil
	}

	s := &search[F]{
		cfg:     cfg,
		eval:    eval,
		formula: formula,
		kind:    kind,
		window:  window,
		samples: make(map[interval.Time]interval.Valuation),
		list:    newWorklist(kind),
	}
	return s.run()
}

// #endregion entry-points

// #region search

type search[F any] struct {
	cfg     Config
	eval    Evaluator[F]
	formula F
	kind    interval.BoundType
	window  interval.TimeWindow

	samples map[interval.Time]interval.Valuation
	list    *worklist
	best    interval.Valuation // max sample for Supremum, min sample for Infimum
	global  interval.Interval
}

func (s *search[F]) run() (Estimate, error) {
	s.global = s.cfg.Prior
	if s.kind == interval.Infimum {
		s.best = math.Inf(1)
	} else {
		s.best = math.Inf(-1)
	}

	root := s.window.Span()
	lo, hi := int(root.Lower()), int(root.Upper())
	flo, err := s.sample(lo)
	if err != nil {
		return Estimate{}, err
	}
	fhi, err := s.sample(hi)
	if err != nil {
		return Estimate{}, err
	}
	s.enqueue(root, flo, fhi, s.cfg.Prior)

	iterations := 0
	for {
		if !s.tighten() {
			return s.giveUp(iterations, reasonCrossed), nil
		}
		if s.cfg.Observe != nil {
			s.cfg.Observe(iterations, s.global)
		}
		// An empty worklist means every step was sampled and the bound is exact.
		if s.global.Width() < s.cfg.Epsilon || s.list.size() == 0 {
			return s.converged(iterations), nil
		}

		iterations++
		if s.cfg.MaxIterations > 0 && iterations > s.cfg.MaxIterations {
			return s.giveUp(iterations-1, reasonBudget), nil
		}
		n, _ := s.list.pop()

		a, b := int(n.span.Lower()), int(n.span.Upper())
		mid := int(math.Floor(n.span.Midpoint()))
		fa, fmid, fb := s.samples[a], 0.0, s.samples[b]
		if fmid, err = s.sample(mid); err != nil {
			return Estimate{}, err
		}
		s.enqueue(interval.Must(float64(a), float64(mid)), fa, fmid, n.bound)
		s.enqueue(interval.Must(float64(mid), float64(b)), fmid, fb, n.bound)
	}
}

// sample evaluates one step, once per search.
func (s *search[F]) sample(t interval.Time) (interval.Valuation, error) {
	if v, ok := s.samples[t]; ok {
		return v, nil
	}
	v, err := s.eval(s.formula, t)
	if err != nil {
		return 0, err
	}
	s.samples[t] = v
	if s.kind == interval.Infimum {
		s.best = math.Min(s.best, v)
	} else {
		s.best = math.Max(s.best, v)
	}
	return v, nil
}

// enqueue queues a span whose endpoints are sampled. Spans of width <= 1 have
// no unsampled steps left and are not queued.
func (s *search[F]) enqueue(span interval.Interval, fa, fb interval.Valuation, parent interval.Interval) {
	if span.Width() <= 1 {
		return
	}
	s.list.push(span, s.envelope(span, fa, fb, parent))
}

// envelope bounds the values a span can attain. Without a Lipschitz constant
// nothing is known beyond the parent's bound.
func (s *search[F]) envelope(span interval.Interval, fa, fb interval.Valuation, parent interval.Interval) interval.Interval {
	if s.cfg.Lipschitz <= 0 {
		return parent
	}
	reach := s.cfg.Lipschitz * span.Width() / 2
	local, err := interval.New(math.Min(fa, fb)-reach, math.Max(fa, fb)+reach)
	if err != nil {
		return parent
	}
	tight, err := parent.Intersect(local)
	if err != nil {
		return parent
	}
	return tight
}

// tighten intersects global_bound with what the samples and the open spans
// allow. It reports false, leaving global_bound untouched, if they cross.
func (s *search[F]) tighten() bool {
	var (
		candidate interval.Interval
		err       error
	)
	top, open := s.list.peek()
	if s.kind == interval.Infimum {
		frontier := s.best
		if open {
			frontier = math.Min(frontier, top.bound.Lower())
		}
		candidate, err = interval.New(frontier, s.best)
	} else {
		frontier := s.best
		if open {
			frontier = math.Max(frontier, top.bound.Upper())
		}
		candidate, err = interval.New(s.best, frontier)
	}
	if err != nil {
		// NaN samples land here.
		return false
	}
	next, err := s.global.Intersect(candidate)
	if err != nil {
		return false
	}
	s.global = next
	return true
}

func (s *search[F]) extract() interval.Valuation {
	if s.kind == interval.Infimum {
		return s.global.Upper()
	}
	return s.global.Lower()
}

func (s *search[F]) converged(iterations int) Estimate {
	searchIterations.WithLabelValues(s.kind.String()).Observe(float64(iterations))
	if s.cfg.Debug {
		log.Printf("[BOUNDS] %s over %v converged in %d iterations (%d samples), error %g",
			s.kind, s.window, iterations, len(s.samples), s.global.Width())
	}
	return Estimate{
		Kind:       s.kind,
		Value:      s.extract(),
		Bound:      s.global,
		Iterations: iterations,
		Samples:    len(s.samples),
		Converged:  true,
	}
}

func (s *search[F]) giveUp(iterations int, reason string) Estimate {
	warning := &NonConvergenceWarning{
		Kind:       s.kind,
		Window:     s.window,
		Bound:      s.global,
		Iterations: iterations,
		Reason:     reason,
	}
	searchIterations.WithLabelValues(s.kind.String()).Observe(float64(iterations))
	searchNonConvergence.WithLabelValues(s.kind.String(), reason).Inc()
	log.Printf("[BOUNDS] warning: %v", warning)
	return Estimate{
		Kind:       s.kind,
		Value:      s.extract(),
		Bound:      s.global,
		Iterations: iterations,
		Samples:    len(s.samples),
		Warning:    warning,
	}
}

// #endregion search
