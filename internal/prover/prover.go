// Package prover decides whether a goal predicate follows from a set of
// known facts.
//
// TryProve runs the in-process strategies in order (pattern rules, then
// Fourier-Motzkin elimination) and only then consults an optional external
// decision procedure. Every failure mode resolves to "not proven": a caller
// keeps its runtime check whenever a Result is not Proven.
package prover

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orizon-lang/refinement/internal/facts"
	"github.com/orizon-lang/refinement/internal/fourier"
	"github.com/orizon-lang/refinement/internal/pattern"
	"github.com/orizon-lang/refinement/internal/proof"
	"github.com/orizon-lang/refinement/internal/registry"
	"github.com/orizon-lang/refinement/internal/solver"
)

// DefaultTimeout bounds a single external decision procedure call.
const DefaultTimeout = 5 * time.Second

// Prover orchestrates the proof strategies. It holds no mutable state of
// its own and is safe for concurrent use.
type Prover struct {
	registry *registry.Registry
	plugin   solver.Plugin
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *Metrics
}

// Option configures a Prover.
type Option func(*Prover)

// WithPlugin sets the external decision procedure consulted after the
// in-process strategies fail.
func WithPlugin(p solver.Plugin) Option {
	return func(pr *Prover) {
		pr.plugin = p
	}
}

// WithTimeout bounds each plugin call.
func WithTimeout(d time.Duration) Option {
	return func(pr *Prover) {
		if d > 0 {
			pr.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(pr *Prover) {
		pr.logger = logger
	}
}

// WithMetrics records attempt outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(pr *Prover) {
		pr.metrics = m
	}
}

// New creates a prover reading brands from reg. A nil reg uses
// registry.Default().
func New(reg *registry.Registry, opts ...Option) *Prover {
	if reg == nil {
		reg = registry.Default()
	}
	p := &Prover{registry: reg, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Registry returns the registry the prover reads brands from.
func (p *Prover) Registry() *registry.Registry { return p.registry }

// TryProve attempts goal from fs. Compound facts are split first. A goal
// that is a conjunction is proven conjunct by conjunct.
func (p *Prover) TryProve(ctx context.Context, goal string, fs []facts.Fact) proof.Result {
	return p.attempt(ctx, goal, fs, p.plugin)
}

// attempt is TryProve with an explicit plugin; a nil plugin keeps the
// attempt in process.
func (p *Prover) attempt(ctx context.Context, goal string, fs []facts.Fact, plugin solver.Plugin) proof.Result {
	ctx, id := ensureAttempt(ctx)
	logger := p.logger.With(slog.String("attempt", id))

	split := facts.SplitCompound(fs)
	r := p.prove(ctx, logger, plugin, goal, split)
	p.metrics.observe(r)

	if r.Proven {
		logger.Debug("goal proven",
			slog.String("goal", goal),
			slog.String("rule", r.Rule()),
			slog.String("strategy", string(r.Strategy)))
	} else {
		logger.Debug("goal not proven", slog.String("goal", goal), slog.String("reason", r.Reason))
	}
	return r
}

func (p *Prover) prove(ctx context.Context, logger *slog.Logger, plugin solver.Plugin, goal string, fs []facts.Fact) proof.Result {
	conjuncts := facts.SplitConjuncts(goal)
	switch len(conjuncts) {
	case 0:
		return proof.Unproven("empty goal")
	case 1:
		return p.proveAtom(ctx, logger, plugin, conjuncts[0], fs)
	}

	var subgoals []proof.Result
	var used []facts.Fact
	method, strategy := proof.MethodLinear, proof.StrategyPattern
	for _, c := range conjuncts {
		r := p.proveAtom(ctx, logger, plugin, c, fs)
		if !r.Proven {
			return proof.Unproven("conjunct %q: %s", c, r.Reason)
		}
		subgoals = append(subgoals, r)
		used = appendUnique(used, r.UsedFacts()...)
		if r.Method == proof.MethodExternal {
			method = proof.MethodExternal
		}
		strategy = weaker(strategy, r.Strategy)
	}

	return proof.Proven(method, strategy, proof.Step{
		Rule:          proof.RuleConjunction,
		Description:   fmt.Sprintf("each of %d conjuncts proven", len(conjuncts)),
		Justification: strings.Join(conjuncts, " and ") + " all hold",
		UsedFacts:     used,
		Subgoals:      subgoals,
	})
}

// proveAtom runs the strategy pipeline on a single relation.
func (p *Prover) proveAtom(ctx context.Context, logger *slog.Logger, plugin solver.Plugin, goal string, fs []facts.Fact) proof.Result {
	r := inCore(goal, fs)
	if r.Proven || plugin == nil {
		return r
	}

	ext := p.external(ctx, logger, plugin, goal, fs)
	if ext.Proven {
		return ext
	}
	return proof.Unproven("%s; %s", r.Reason, ext.Reason)
}

// inCore tries the pattern rules, then elimination.
func inCore(goal string, fs []facts.Fact) proof.Result {
	if lhs, rhs, ok := disequality(goal); ok {
		return proveDisequality(goal, lhs, rhs, fs)
	}
	if r := pattern.TrySimple(goal, fs); r.Proven {
		return r
	}
	return fourier.Decide(goal, fs)
}

// proveDisequality proves lhs != rhs by proving one of the strict orders.
func proveDisequality(goal, lhs, rhs string, fs []facts.Fact) proof.Result {
	var reasons []string
	for _, op := range []string{">", "<"} {
		branch := lhs + " " + op + " " + rhs
		r := inCore(branch, fs)
		if r.Proven {
			return proof.Proven(r.Method, r.Strategy, proof.Step{
				Rule:          proof.RuleDisequality,
				Description:   fmt.Sprintf("%s is implied by %s", goal, branch),
				Justification: branch + " excludes equality",
				UsedFacts:     r.UsedFacts(),
				Subgoals:      []proof.Result{r},
			})
		}
		reasons = append(reasons, r.Reason)
	}
	return proof.Unproven("neither order of %s proven: %s", goal, strings.Join(reasons, "; "))
}

// external calls the plugin under the prover timeout. Errors, panics and
// timeouts all come back as unproven results.
func (p *Prover) external(ctx context.Context, logger *slog.Logger, plugin solver.Plugin, goal string, fs []facts.Fact) proof.Result {
	name := plugin.Name()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type outcome struct {
		result proof.Result
		err    error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- outcome{err: fmt.Errorf("plugin panicked: %v", v)}
			}
		}()
		r, err := plugin.Prove(ctx, goal, fs, p.timeout)
		done <- outcome{result: r, err: err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-ctx.Done():
		o.err = ctx.Err()
	}
	p.metrics.observeSolver(time.Since(start).Seconds())

	if o.err != nil {
		logger.Warn("external decision procedure failed",
			slog.String("solver", name),
			slog.String("goal", goal),
			slog.String("error", o.err.Error()))
		return proof.Unproven("%s: %v", name, o.err)
	}
	if !o.result.Proven {
		if o.result.Reason == "" {
			return proof.Unproven("%s did not prove the goal", name)
		}
		return o.result
	}

	o.result.Method = proof.MethodExternal
	o.result.Strategy = proof.StrategyExternal
	return o.result
}

// disequality splits "lhs != rhs" when both sides are plain terms.
func disequality(goal string) (lhs, rhs string, ok bool) {
	lhs, rhs, found := strings.Cut(goal, "!=")
	if !found {
		return "", "", false
	}
	lhs, rhs = strings.TrimSpace(lhs), strings.TrimSpace(rhs)
	if lhs == "" || rhs == "" || strings.ContainsAny(lhs+rhs, "<>=!&|") {
		return "", "", false
	}
	return lhs, rhs, true
}

var strategyOrder = map[proof.Strategy]int{
	proof.StrategyRegistry:    0,
	proof.StrategyPattern:     1,
	proof.StrategyElimination: 2,
	proof.StrategyExternal:    3,
}

// weaker returns the later pipeline stage of a and b.
func weaker(a, b proof.Strategy) proof.Strategy {
	if strategyOrder[b] > strategyOrder[a] {
		return b
	}
	return a
}

func appendUnique(dst []facts.Fact, fs ...facts.Fact) []facts.Fact {
	for _, f := range fs {
		dup := false
		for _, d := range dst {
			if d == f {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, f)
		}
	}
	return dst
}

type attemptKey struct{}

// WithAttempt tags ctx with a proof attempt id used in log lines.
func WithAttempt(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, attemptKey{}, id)
}

// Attempt returns the attempt id carried by ctx, if any.
func Attempt(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(attemptKey{}).(string)
	return id, ok && id != ""
}

func ensureAttempt(ctx context.Context) (context.Context, string) {
	if id, ok := Attempt(ctx); ok {
		return ctx, id
	}
	id := uuid.New().String()
	return WithAttempt(ctx, id), id
}

var defaultProver = sync.OnceValue(func() *Prover {
	return New(registry.Default())
})

// TryProve proves goal from fs using the process-wide registry and no
// external decision procedure.
func TryProve(goal string, fs []facts.Fact) proof.Result {
	return defaultProver().TryProve(context.Background(), goal, fs)
}
