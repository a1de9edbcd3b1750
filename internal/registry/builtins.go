package registry

import "regexp"

var builtinPredicates = map[string]string{
	"Positive":    "$ > 0",
	"NonNegative": "$ >= 0",
	"Negative":    "$ < 0",
	"NonPositive": "$ <= 0",
	"NonZero":     "$ != 0",
	"Byte":        "$ >= 0 && $ <= 255",
	"Int8":        "$ >= -128 && $ <= 127",
	"Percentage":  "$ >= 0 && $ <= 100",
	"Port":        "$ >= 1 && $ <= 65535",
	"UnitRange":   "$ >= 0 && $ <= 1",
	"Email":       "isEmail($)",
}

var builtinRules = []SubtypingRule{
	{From: "Positive", To: "NonNegative", ProofID: "positive-nonnegative", Justification: "x > 0 implies x >= 0"},
	{From: "Positive", To: "NonZero", ProofID: "positive-nonzero", Justification: "x > 0 implies x != 0"},
	{From: "Negative", To: "NonPositive", ProofID: "negative-nonpositive", Justification: "x < 0 implies x <= 0"},
	{From: "Negative", To: "NonZero", ProofID: "negative-nonzero", Justification: "x < 0 implies x != 0"},
	{From: "Byte", To: "NonNegative", ProofID: "byte-nonnegative", Justification: "0 <= x <= 255 implies x >= 0"},
	{From: "Percentage", To: "NonNegative", ProofID: "percentage-nonnegative", Justification: "0 <= x <= 100 implies x >= 0"},
	{From: "Percentage", To: "Byte", ProofID: "percentage-byte", Justification: "0 <= x <= 100 implies 0 <= x <= 255"},
	{From: "Port", To: "Positive", ProofID: "port-positive", Justification: "1 <= x <= 65535 implies x > 0"},
	{From: "UnitRange", To: "NonNegative", ProofID: "unitrange-nonnegative", Justification: "0 <= x <= 1 implies x >= 0"},
}

var builtinDecidability = []DecidabilityInfo{
	{Brand: "Positive", Decidability: Decidable, PreferredStrategy: StrategyAlgebra},
	{Brand: "NonNegative", Decidability: Decidable, PreferredStrategy: StrategyAlgebra},
	{Brand: "Negative", Decidability: Decidable, PreferredStrategy: StrategyAlgebra},
	{Brand: "NonPositive", Decidability: Decidable, PreferredStrategy: StrategyAlgebra},
	{Brand: "NonZero", Decidability: Decidable, PreferredStrategy: StrategySMT},
	{Brand: "Byte", Decidability: Decidable, PreferredStrategy: StrategyLinear},
	{Brand: "Int8", Decidability: Decidable, PreferredStrategy: StrategyLinear},
	{Brand: "Percentage", Decidability: Decidable, PreferredStrategy: StrategyLinear},
	{Brand: "Port", Decidability: Decidable, PreferredStrategy: StrategyLinear},
	{Brand: "UnitRange", Decidability: Decidable, PreferredStrategy: StrategyLinear},
	{Brand: "Email", Decidability: Runtime, PreferredStrategy: StrategyRuntime},
}

const number = `(-?\d+(?:\.\d+)?)`

var builtinTemplates = []struct {
	pattern  *regexp.Regexp
	template string
}{
	{regexp.MustCompile(`^Vec<(\d+)>$`), "$.length == {1}"},
	{regexp.MustCompile(`^Range<` + number + `,\s*` + number + `>$`), "$ >= {1} && $ <= {2}"},
	{regexp.MustCompile(`^Min<` + number + `>$`), "$ >= {1}"},
	{regexp.MustCompile(`^Max<` + number + `>$`), "$ <= {1}"},
}

// RegisterBuiltins seeds r with the standard numeric brands.
func RegisterBuiltins(r *Registry) {
	for brand, tmpl := range builtinPredicates {
		r.RegisterRefinementPredicate(brand, tmpl)
	}
	for _, rule := range builtinRules {
		r.RegisterSubtypingRule(rule)
	}
	for _, info := range builtinDecidability {
		r.RegisterDecidability(info)
	}
	for _, t := range builtinTemplates {
		r.RegisterDynamicPredicateGenerator(t.pattern, TemplateGenerator(t.template))
	}
}
