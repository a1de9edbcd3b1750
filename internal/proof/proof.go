// Package proof defines proof results and the certificate trail attached to
// successful proofs.
package proof

import (
	"fmt"
	"strings"

	"github.com/orizon-lang/refinement/internal/facts"
)

// Method names the family of reasoning that settled a goal.
type Method string

const (
	MethodNone     Method = ""
	MethodLinear   Method = "linear"
	MethodExternal Method = "external"
)

// Strategy names the orchestrator stage that produced a result.
type Strategy string

const (
	StrategyPattern     Strategy = "pattern"
	StrategyElimination Strategy = "elimination"
	StrategyExternal    Strategy = "external"
	StrategyRegistry    Strategy = "registry"
)

// Rule identifiers recorded in certificates.
const (
	RuleDirectMatch         = "direct_match"
	RuleBoundTightening     = "bound_tightening"
	RuleEqualityImplication = "equality_implication"
	RuleSignComposition     = "sign_composition"
	RuleTransitivity        = "transitivity"
	RuleSignComparison      = "sign_comparison"
	RuleFourierMotzkin      = "fourier_motzkin"
	RuleEqualitySplit       = "equality_split"
	RuleExternal            = "external_procedure"
	RuleSubtyping           = "subtyping_rule"
	RuleReflexivity         = "reflexivity"
	RuleConjunction         = "conjunction"
	RuleDisequality         = "disequality"
)

// Step is one node of a proof certificate.
type Step struct {
	Rule          string       `json:"rule"`
	Description   string       `json:"description"`
	Justification string       `json:"justification"`
	UsedFacts     []facts.Fact `json:"used_facts,omitempty"`
	Subgoals      []Result     `json:"subgoals,omitempty"`
}

// Result is the outcome of a single proof attempt. A Result is never
// modified after it is returned.
type Result struct {
	Proven   bool     `json:"proven"`
	Method   Method   `json:"method,omitempty"`
	Strategy Strategy `json:"strategy,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Step     *Step    `json:"step,omitempty"`
}

// Proven builds a successful result.
func Proven(method Method, strategy Strategy, step Step) Result {
	return Result{Proven: true, Method: method, Strategy: strategy, Step: &step}
}

// Unproven builds a failed result carrying a reason.
func Unproven(format string, args ...interface{}) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// UsedFacts returns the facts cited by the certificate root.
func (r Result) UsedFacts() []facts.Fact {
	if r.Step == nil {
		return nil
	}
	return r.Step.UsedFacts
}

// Rule returns the certificate root's rule, or "" for unproven results.
func (r Result) Rule() string {
	if r.Step == nil {
		return ""
	}
	return r.Step.Rule
}

// String renders a result on one line, e.g. "proven by transitivity (linear): a > b, b > 0".
func (r Result) String() string {
	if !r.Proven {
		if r.Reason == "" {
			return "not proven"
		}
		return "not proven: " + r.Reason
	}

	var used []string
	for _, f := range r.UsedFacts() {
		used = append(used, f.Predicate)
	}

	s := fmt.Sprintf("proven by %s (%s)", r.Rule(), r.Method)
	if len(used) > 0 {
		s += ": " + strings.Join(used, ", ")
	}
	return s
}
