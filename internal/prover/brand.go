package prover

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/orizon-lang/refinement/internal/facts"
	"github.com/orizon-lang/refinement/internal/proof"
	"github.com/orizon-lang/refinement/internal/registry"
)

// widenVariable names the value in a widening proof.
const widenVariable = "value"

// ProveBrand proves that variable satisfies brand's predicate. The brand's
// preferred strategy is honored: runtime brands are never proven and smt
// brands consult the plugin before the in-process strategies. When a
// compile-time brand is not proven the Reason carries the mismatch
// diagnostic.
func (p *Prover) ProveBrand(ctx context.Context, variable, brand string, fs []facts.Fact) proof.Result {
	goal, ok := p.registry.Instantiate(brand, variable)
	if !ok {
		return proof.Unproven("unknown brand %s", brand)
	}

	ctx, id := ensureAttempt(ctx)
	logger := p.logger.With(slog.String("attempt", id), slog.String("brand", brand))

	strategy := p.registry.PreferredStrategy(brand)
	if strategy == registry.StrategyRuntime {
		r := proof.Unproven("brand %s is checked at runtime", brand)
		p.metrics.observe(r)
		return r
	}

	plugin := p.plugin
	if strategy == registry.StrategySMT && plugin != nil {
		if r := p.external(ctx, logger, plugin, goal, facts.SplitCompound(fs)); r.Proven {
			p.metrics.observe(r)
			return r
		}
		plugin = nil
	}

	r := p.attempt(ctx, goal, fs, plugin)
	if r.Proven {
		return r
	}

	if err := p.registry.CheckFallback(brand, goal); err != nil {
		logger.Warn("compile-time brand fell back to a runtime check", slog.String("goal", goal))
		r.Reason = fmt.Sprintf("%s; %v", r.Reason, err)
	}
	return r
}

// Widen reports whether every value of brand from is also a value of brand
// to. Identity and registered subtyping rules are answered from the
// registry; otherwise to's predicate is proven from from's predicate.
func (p *Prover) Widen(ctx context.Context, from, to string) proof.Result {
	if from == to {
		return proof.Proven(proof.MethodLinear, proof.StrategyRegistry, proof.Step{
			Rule:          proof.RuleReflexivity,
			Description:   fmt.Sprintf("%s widens to itself", from),
			Justification: "every brand is a subtype of itself",
		})
	}

	if rule, ok := p.registry.SubtypingRule(from, to); ok {
		return proof.Proven(proof.MethodLinear, proof.StrategyRegistry, proof.Step{
			Rule:          proof.RuleSubtyping,
			Description:   fmt.Sprintf("registered rule %s: %s <: %s", rule.ProofID, from, to),
			Justification: rule.Justification,
		})
	}

	fromPred, ok := p.registry.Instantiate(from, widenVariable)
	if !ok {
		return proof.Unproven("unknown brand %s", from)
	}
	toPred, ok := p.registry.Instantiate(to, widenVariable)
	if !ok {
		return proof.Unproven("unknown brand %s", to)
	}

	r := p.TryProve(ctx, toPred, []facts.Fact{facts.New(widenVariable, fromPred)})
	if !r.Proven {
		return proof.Unproven("%s does not widen to %s: %s", from, to, r.Reason)
	}
	return r
}
