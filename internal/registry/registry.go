// Package registry holds the lookup tables that map refinement brands to
// predicate templates, subtyping rules, and decidability metadata.
//
// Every mutation is a single atomic insert or replace; concurrent
// registration from independent packages needs no external locking and the
// last writer for a key wins.
package registry

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	perrors "github.com/orizon-lang/refinement/internal/errors"
)

// Placeholder is the identifier that stands for the refined value inside a
// predicate template, e.g. "$ > 0".
const Placeholder = "$"

// Decidability classifies how a brand's predicate can be settled.
type Decidability string

const (
	CompileTime Decidability = "compile-time"
	Decidable   Decidability = "decidable"
	Runtime     Decidability = "runtime"
	Undecidable Decidability = "undecidable"
)

// Strategy is the proof approach a brand prefers.
type Strategy string

const (
	StrategyConstant Strategy = "constant"
	StrategyAlgebra  Strategy = "algebra"
	StrategyLinear   Strategy = "linear"
	StrategySMT      Strategy = "smt"
	StrategyRuntime  Strategy = "runtime"
)

// SubtypingRule declares that every value satisfying From's predicate also
// satisfies To's predicate.
type SubtypingRule struct {
	From          string `yaml:"from" json:"from"`
	To            string `yaml:"to" json:"to"`
	ProofID       string `yaml:"proof_id" json:"proof_id"`
	Justification string `yaml:"justification" json:"justification"`
}

// DecidabilityInfo is per-brand proof metadata.
type DecidabilityInfo struct {
	Brand             string       `yaml:"brand" json:"brand"`
	Decidability      Decidability `yaml:"decidability" json:"decidability"`
	PreferredStrategy Strategy     `yaml:"strategy" json:"strategy"`
}

// Generator synthesizes a predicate template from the capture groups of a
// dynamic brand pattern; groups[0] is the full match.
type Generator func(groups []string) string

type dynamic struct {
	pattern  *regexp.Regexp
	generate Generator
}

type ruleKey struct{ from, to string }

// Registry is a set of brand lookup tables. The zero value is not usable;
// call New.
type Registry struct {
	predicates   sync.Map // string -> string
	rules        sync.Map // ruleKey -> SubtypingRule
	decidability sync.Map // string -> DecidabilityInfo
	generators   atomic.Pointer[[]dynamic]
}

// New creates an empty registry.
func New() *Registry {
	r := &Registry{}
	r.generators.Store(&[]dynamic{})
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r := New()
	RegisterBuiltins(r)
	return r
})

// Default returns the process-wide registry, seeded with the builtin brands.
func Default() *Registry {
	return defaultRegistry()
}

// RegisterRefinementPredicate sets brand's predicate template.
func (r *Registry) RegisterRefinementPredicate(brand, template string) {
	r.predicates.Store(brand, strings.TrimSpace(template))
}

// Predicate returns brand's template. The static table is consulted first,
// then dynamic generators in registration order.
func (r *Registry) Predicate(brand string) (string, bool) {
	if v, ok := r.predicates.Load(brand); ok {
		return v.(string), true
	}

	for _, d := range *r.generators.Load() {
		if m := d.pattern.FindStringSubmatch(brand); m != nil {
			return d.generate(m), true
		}
	}

	return "", false
}

// Instantiate returns brand's predicate with the placeholder replaced by
// variable.
func (r *Registry) Instantiate(brand, variable string) (string, bool) {
	tmpl, ok := r.Predicate(brand)
	if !ok {
		return "", false
	}
	return Substitute(tmpl, variable), true
}

// Brands lists the statically registered brands, sorted.
func (r *Registry) Brands() []string {
	var brands []string
	r.predicates.Range(func(k, _ any) bool {
		brands = append(brands, k.(string))
		return true
	})
	sort.Strings(brands)
	return brands
}

// RegisterSubtypingRule adds rule, replacing any rule for the same pair.
func (r *Registry) RegisterSubtypingRule(rule SubtypingRule) {
	r.rules.Store(ruleKey{rule.From, rule.To}, rule)
}

// SubtypingRule returns the rule registered for (from, to).
func (r *Registry) SubtypingRule(from, to string) (SubtypingRule, bool) {
	v, ok := r.rules.Load(ruleKey{from, to})
	if !ok {
		return SubtypingRule{}, false
	}
	return v.(SubtypingRule), true
}

// SubtypingRules lists every registered rule ordered by (from, to).
func (r *Registry) SubtypingRules() []SubtypingRule {
	var rules []SubtypingRule
	r.rules.Range(func(_, v any) bool {
		rules = append(rules, v.(SubtypingRule))
		return true
	})
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].From != rules[j].From {
			return rules[i].From < rules[j].From
		}
		return rules[i].To < rules[j].To
	})
	return rules
}

// CanWiden reports whether a value branded from may be used as to without
// a runtime check.
func (r *Registry) CanWiden(from, to string) bool {
	if from == to {
		return true
	}
	_, ok := r.SubtypingRule(from, to)
	return ok
}

// RegisterDecidability sets info for info.Brand.
func (r *Registry) RegisterDecidability(info DecidabilityInfo) {
	if info.PreferredStrategy == "" {
		info.PreferredStrategy = StrategyAlgebra
	}
	r.decidability.Store(info.Brand, info)
}

// Decidability returns brand's metadata. Unregistered brands are decidable
// and prefer the algebra strategy.
func (r *Registry) Decidability(brand string) DecidabilityInfo {
	if v, ok := r.decidability.Load(brand); ok {
		return v.(DecidabilityInfo)
	}
	return DecidabilityInfo{Brand: brand, Decidability: Decidable, PreferredStrategy: StrategyAlgebra}
}

// PreferredStrategy returns brand's preferred proof strategy.
func (r *Registry) PreferredStrategy(brand string) Strategy {
	return r.Decidability(brand).PreferredStrategy
}

// RequiresRuntimeCheck reports brands that can never be settled statically.
func (r *Registry) RequiresRuntimeCheck(brand string) bool {
	switch r.Decidability(brand).Decidability {
	case Runtime, Undecidable:
		return true
	default:
		return false
	}
}

// IsCompileTimeDecidable reports brands declared compile-time decidable.
func (r *Registry) IsCompileTimeDecidable(brand string) bool {
	return r.Decidability(brand).Decidability == CompileTime
}

// CheckFallback is consulted when a proof of goal for brand failed. It
// returns a DecidabilityMismatch error when the brand promised a
// compile-time answer, and nil otherwise.
func (r *Registry) CheckFallback(brand, goal string) error {
	if r.IsCompileTimeDecidable(brand) {
		return perrors.DecidabilityMismatch(brand, goal)
	}
	return nil
}

// RegisterDynamicPredicateGenerator adds a generator for brands matching
// pattern. A generator registered again under the same pattern text
// replaces the earlier one.
func (r *Registry) RegisterDynamicPredicateGenerator(pattern *regexp.Regexp, generate Generator) {
	for {
		old := r.generators.Load()
		next := make([]dynamic, 0, len(*old)+1)
		replaced := false
		for _, d := range *old {
			if d.pattern.String() == pattern.String() {
				next = append(next, dynamic{pattern: pattern, generate: generate})
				replaced = true
				continue
			}
			next = append(next, d)
		}
		if !replaced {
			next = append(next, dynamic{pattern: pattern, generate: generate})
		}
		if r.generators.CompareAndSwap(old, &next) {
			return
		}
	}
}

// RegisterDynamicTemplate registers a generator whose template refers to
// capture groups as {1}, {2}, ...
func (r *Registry) RegisterDynamicTemplate(pattern, template string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.RegisterDynamicPredicateGenerator(re, TemplateGenerator(template))
	return nil
}

// TemplateGenerator returns a Generator that fills {n} with capture group n.
func TemplateGenerator(template string) Generator {
	return func(groups []string) string {
		out := template
		for i := len(groups) - 1; i >= 1; i-- {
			out = strings.ReplaceAll(out, "{"+strconv.Itoa(i)+"}", strings.TrimSpace(groups[i]))
		}
		return out
	}
}

// Substitute replaces every standalone placeholder identifier in template
// with variable. Identifiers that merely contain '$', such as $len, are
// left alone.
func Substitute(template, variable string) string {
	var sb strings.Builder
	prev := rune(-1)
	for i := 0; i < len(template); {
		r, size := utf8.DecodeRuneInString(template[i:])
		if r == '$' && !identPart(prev) {
			next, _ := utf8.DecodeRuneInString(template[i+size:])
			if i+size >= len(template) || !identPart(next) {
				sb.WriteString(variable)
				prev = r
				i += size
				continue
			}
		}
		sb.WriteRune(r)
		prev = r
		i += size
	}
	return sb.String()
}

func identPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
