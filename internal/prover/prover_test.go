package prover

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/orizon-lang/refinement/internal/constraint"
	"github.com/orizon-lang/refinement/internal/facts"
	"github.com/orizon-lang/refinement/internal/proof"
	"github.com/orizon-lang/refinement/internal/registry"
	"github.com/orizon-lang/refinement/internal/solver/solvermock"
)

func known(preds ...string) []facts.Fact {
	out := make([]facts.Fact, len(preds))
	for i, p := range preds {
		out[i] = facts.Fact{Predicate: p}
	}
	return out
}

func builtins() *registry.Registry {
	r := registry.New()
	registry.RegisterBuiltins(r)
	return r
}

func TestScenarios(t *testing.T) {
	p := New(builtins())
	ctx := context.Background()

	t.Run("A_SumOfBounds", func(t *testing.T) {
		r := p.TryProve(ctx, "x + y > 0", known("x > 0", "y >= 0"))
		require.True(t, r.Proven, r.Reason)
		assert.Equal(t, proof.MethodLinear, r.Method)
	})

	t.Run("B_WeakerFact", func(t *testing.T) {
		r := p.TryProve(ctx, "x > 10", known("x > 5"))
		assert.False(t, r.Proven)
		assert.NotEmpty(t, r.Reason)
	})

	t.Run("C_NonLinear", func(t *testing.T) {
		r := p.TryProve(ctx, "x * y > 0", known("x > 0", "y > 0"))
		assert.False(t, r.Proven)
	})

	t.Run("D_ConstantGoal", func(t *testing.T) {
		r := p.TryProve(ctx, "5 > 3", nil)
		require.True(t, r.Proven, r.Reason)
		assert.Equal(t, proof.MethodLinear, r.Method)
	})

	t.Run("E_Transitivity", func(t *testing.T) {
		fs := known("a > b", "b > 0")
		r := p.TryProve(ctx, "a > 0", fs)
		require.True(t, r.Proven, r.Reason)
		assert.Equal(t, proof.RuleTransitivity, r.Rule())
		assert.ElementsMatch(t, fs, r.UsedFacts())
	})
}

func TestTryProveSplitsCompoundFacts(t *testing.T) {
	p := New(builtins())

	r := p.TryProve(context.Background(), "x <= 300", known("x >= 0 && x <= 255"))
	require.True(t, r.Proven, r.Reason)
	assert.Equal(t, []facts.Fact{{Predicate: "x <= 255"}}, r.UsedFacts())

	r = p.TryProve(context.Background(), "x > 0", known("x > 0 &&"))
	require.True(t, r.Proven, r.Reason)
	assert.Equal(t, proof.RuleDirectMatch, r.Rule())
}

func TestTryProveConjunctiveGoal(t *testing.T) {
	p := New(builtins())
	ctx := context.Background()

	r := p.TryProve(ctx, "x >= 0 && x <= 100", known("x >= 10", "x <= 20"))
	require.True(t, r.Proven, r.Reason)
	assert.Equal(t, proof.RuleConjunction, r.Rule())
	require.Len(t, r.Step.Subgoals, 2)
	assert.ElementsMatch(t, known("x >= 10", "x <= 20"), r.UsedFacts())

	r = p.TryProve(ctx, "x >= 0 && x <= 15", known("x >= 10", "x <= 20"))
	assert.False(t, r.Proven)
	assert.Contains(t, r.Reason, "x <= 15")
}

func TestTryProveDisequality(t *testing.T) {
	p := New(builtins())
	ctx := context.Background()

	r := p.TryProve(ctx, "x != 0", known("x > 3"))
	require.True(t, r.Proven, r.Reason)
	assert.Equal(t, proof.RuleDisequality, r.Rule())

	r = p.TryProve(ctx, "x != y", known("x < y"))
	require.True(t, r.Proven, r.Reason)

	r = p.TryProve(ctx, "x != 0", known("x >= 0"))
	assert.False(t, r.Proven)
}

func TestPackageTryProve(t *testing.T) {
	r := TryProve("n >= 1", known("n > 4"))
	assert.True(t, r.Proven, r.Reason)

	r = TryProve("n >= 5", known("n > 4"))
	assert.False(t, r.Proven, "integer reasoning is not assumed")
}

func TestPluginConsultedLast(t *testing.T) {
	ctrl := gomock.NewController(t)
	plugin := solvermock.NewMockPlugin(ctrl)
	// No Prove expectation: the in-process strategies settle the goal.
	p := New(builtins(), WithPlugin(plugin))

	r := p.TryProve(context.Background(), "x > 0", known("x > 1"))
	assert.True(t, r.Proven)
	assert.Equal(t, proof.StrategyPattern, r.Strategy)
}

func TestPluginProves(t *testing.T) {
	ctrl := gomock.NewController(t)
	plugin := solvermock.NewMockPlugin(ctrl)
	plugin.EXPECT().Name().Return("mock").AnyTimes()
	plugin.EXPECT().
		Prove(gomock.Any(), "x * y > 0", gomock.Any(), 2*time.Second).
		Return(proof.Result{Proven: true, Step: &proof.Step{Rule: proof.RuleExternal}}, nil)

	p := New(builtins(), WithPlugin(plugin), WithTimeout(2*time.Second))

	r := p.TryProve(context.Background(), "x * y > 0", known("x > 0", "y > 0"))
	require.True(t, r.Proven)
	assert.Equal(t, proof.MethodExternal, r.Method)
	assert.Equal(t, proof.StrategyExternal, r.Strategy)
}

func TestPluginFailuresAreUnproven(t *testing.T) {
	tests := []struct {
		name  string
		setup func(plugin *solvermock.MockPlugin, release chan struct{})
	}{
		{"Error", func(plugin *solvermock.MockPlugin, _ chan struct{}) {
			plugin.EXPECT().Prove(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Return(proof.Result{}, errors.New("solver crashed"))
		}},
		{"Panic", func(plugin *solvermock.MockPlugin, _ chan struct{}) {
			plugin.EXPECT().Prove(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(context.Context, string, []facts.Fact, time.Duration) (proof.Result, error) {
					panic("boom")
				})
		}},
		{"IgnoresDeadline", func(plugin *solvermock.MockPlugin, release chan struct{}) {
			plugin.EXPECT().Prove(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(context.Context, string, []facts.Fact, time.Duration) (proof.Result, error) {
					<-release
					return proof.Result{Proven: true}, nil
				})
		}},
		{"Unavailable", func(plugin *solvermock.MockPlugin, _ chan struct{}) {
			plugin.EXPECT().Prove(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, _ string, _ []facts.Fact, _ time.Duration) (proof.Result, error) {
					return proof.Result{}, context.Canceled
				})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release := make(chan struct{})
			defer close(release)

			ctrl := gomock.NewController(t)
			plugin := solvermock.NewMockPlugin(ctrl)
			plugin.EXPECT().Name().Return("mock").AnyTimes()
			tt.setup(plugin, release)

			p := New(builtins(), WithPlugin(plugin), WithTimeout(100*time.Millisecond))

			start := time.Now()
			r := p.TryProve(context.Background(), "x * y > 0", known("x > 0", "y > 0"))
			assert.False(t, r.Proven)
			assert.Contains(t, r.Reason, "mock")
			assert.Less(t, time.Since(start), 2*time.Second)
		})
	}
}

func TestProveBrand(t *testing.T) {
	ctx := context.Background()

	t.Run("Byte", func(t *testing.T) {
		p := New(builtins())
		r := p.ProveBrand(ctx, "b", "Byte", []facts.Fact{facts.New("b", "b >= 10 && b <= 20")})
		require.True(t, r.Proven, r.Reason)
		assert.Equal(t, proof.RuleConjunction, r.Rule())
	})

	t.Run("DynamicBrand", func(t *testing.T) {
		p := New(builtins())
		r := p.ProveBrand(ctx, "n", "Range<0, 50>", []facts.Fact{facts.New("n", "n >= 1 && n <= 49")})
		assert.True(t, r.Proven, r.Reason)
	})

	t.Run("RuntimeBrand", func(t *testing.T) {
		p := New(builtins())
		r := p.ProveBrand(ctx, "s", "Email", nil)
		assert.False(t, r.Proven)
		assert.Contains(t, r.Reason, "runtime")
	})

	t.Run("UnknownBrand", func(t *testing.T) {
		p := New(builtins())
		r := p.ProveBrand(ctx, "s", "Nope", nil)
		assert.False(t, r.Proven)
	})

	t.Run("CompileTimeMismatch", func(t *testing.T) {
		reg := builtins()
		reg.RegisterRefinementPredicate("Small", "$ < 10")
		reg.RegisterDecidability(registry.DecidabilityInfo{Brand: "Small", Decidability: registry.CompileTime, PreferredStrategy: registry.StrategyLinear})

		p := New(reg)
		r := p.ProveBrand(ctx, "k", "Small", []facts.Fact{facts.New("k", "k < 20")})
		assert.False(t, r.Proven)
		assert.Contains(t, r.Reason, "DECIDABILITY_MISMATCH")

		r = p.ProveBrand(ctx, "k", "Small", []facts.Fact{facts.New("k", "k < 5")})
		assert.True(t, r.Proven, r.Reason)
	})

	t.Run("SMTBrandAsksPluginFirst", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		plugin := solvermock.NewMockPlugin(ctrl)
		plugin.EXPECT().Name().Return("mock").AnyTimes()
		plugin.EXPECT().Prove(gomock.Any(), "q != 0", gomock.Any(), gomock.Any()).
			Return(proof.Result{Proven: true, Step: &proof.Step{Rule: proof.RuleExternal}}, nil)

		p := New(builtins(), WithPlugin(plugin))
		r := p.ProveBrand(ctx, "q", "NonZero", []facts.Fact{facts.New("q", "q > 0")})
		require.True(t, r.Proven)
		assert.Equal(t, proof.StrategyExternal, r.Strategy)
	})

	t.Run("SMTBrandPluginAskedOnce", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		plugin := solvermock.NewMockPlugin(ctrl)
		plugin.EXPECT().Name().Return("mock").AnyTimes()
		plugin.EXPECT().Prove(gomock.Any(), "q != 0", gomock.Any(), gomock.Any()).
			Return(proof.Unproven("unknown"), nil).
			Times(1)

		p := New(builtins(), WithPlugin(plugin))
		r := p.ProveBrand(ctx, "q", "NonZero", []facts.Fact{facts.New("q", "q > 0")})
		require.True(t, r.Proven, r.Reason)
		assert.Equal(t, proof.RuleDisequality, r.Rule())
	})

	t.Run("SMTBrandWithoutPlugin", func(t *testing.T) {
		p := New(builtins())
		r := p.ProveBrand(ctx, "q", "NonZero", []facts.Fact{facts.New("q", "q > 0")})
		require.True(t, r.Proven, r.Reason)
		assert.Equal(t, proof.RuleDisequality, r.Rule())
	})
}

func TestWiden(t *testing.T) {
	p := New(builtins())
	ctx := context.Background()

	tests := []struct {
		from, to string
		proven   bool
		rule     string
	}{
		{"Positive", "Positive", true, proof.RuleReflexivity},
		{"Positive", "NonNegative", true, proof.RuleSubtyping},
		{"Range<0, 10>", "Percentage", true, proof.RuleConjunction},
		{"Min<5>", "Positive", true, ""},
		{"Percentage", "Port", false, ""},
		{"NonNegative", "Positive", false, ""},
		{"Positive", "Nope", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			r := p.Widen(ctx, tt.from, tt.to)
			assert.Equal(t, tt.proven, r.Proven, r.Reason)
			if tt.rule != "" {
				assert.Equal(t, tt.rule, r.Rule())
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	p := New(builtins(), WithMetrics(m))
	ctx := context.Background()

	p.TryProve(ctx, "x > 0", known("x > 1"))
	p.TryProve(ctx, "x + y > 0", known("x > 0", "y >= 0"))
	p.TryProve(ctx, "x > 10", known("x > 5"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("pattern", "proven")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("none", "unproven")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, strings.Join(names, ","), "orizon_prover_attempts_total")
}

func TestAttemptID(t *testing.T) {
	ctx := WithAttempt(context.Background(), "abc")
	id, ok := Attempt(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = Attempt(context.Background())
	assert.False(t, ok)

	ctx, id = ensureAttempt(context.Background())
	assert.Len(t, id, 36)
	got, _ := Attempt(ctx)
	assert.Equal(t, id, got)
}

// compile turns a conjunction of linear relations and disequalities into an
// evaluator over integer assignments.
func compile(t *testing.T, text string) func(env map[string]*big.Rat) bool {
	t.Helper()
	type check struct {
		c      constraint.LinearConstraint
		negate bool
	}
	var checks []check
	for _, part := range facts.SplitConjuncts(text) {
		negate := strings.Contains(part, "!=")
		if negate {
			part = strings.Replace(part, "!=", "==", 1)
		}
		c, ok := constraint.Parse(part)
		require.True(t, ok, part)
		checks = append(checks, check{c: c, negate: negate})
	}
	return func(env map[string]*big.Rat) bool {
		for _, ch := range checks {
			if ch.c.Eval(env) == ch.negate {
				return false
			}
		}
		return true
	}
}

// TestTryProveSoundness runs random goals through the whole pipeline and
// checks every proof against brute-force enumeration over an integer grid.
func TestTryProveSoundness(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vars := []string{"x", "y", "z"}
	ops := []string{"<", "<=", ">", ">=", "==", "!="}

	relation := func(withDisequality bool) string {
		a := vars[rng.Intn(len(vars))]
		b := vars[rng.Intn(len(vars))]
		n := len(ops)
		if !withDisequality {
			n--
		}
		op := ops[rng.Intn(n)]
		k := rng.Intn(9) - 4
		if op == "!=" {
			if rng.Intn(2) == 0 {
				return fmt.Sprintf("%s != %d", a, k)
			}
			return fmt.Sprintf("%s != %s", a, b)
		}
		switch rng.Intn(5) {
		case 0:
			return fmt.Sprintf("%s %s %d", a, op, k)
		case 1:
			return fmt.Sprintf("%d %s %s", k, op, a)
		case 2:
			return fmt.Sprintf("%s %s %s", a, op, b)
		case 3:
			return fmt.Sprintf("%s + %s %s %d", a, b, op, k)
		default:
			return fmt.Sprintf("%s - %s %s %d", a, b, op, k)
		}
	}

	p := New(builtins())
	ctx := context.Background()
	rules := map[string]int{}

	for trial := 0; trial < 1500; trial++ {
		var fs []facts.Fact
		for i, n := 0, 1+rng.Intn(3); i < n; i++ {
			pred := relation(rng.Intn(6) == 0)
			if rng.Intn(5) == 0 {
				pred += " && " + relation(false)
			}
			fs = append(fs, facts.Fact{Predicate: pred})
		}

		goal := relation(true)
		if rng.Intn(4) == 0 {
			atoms := facts.SplitCompound(fs)
			goal = atoms[rng.Intn(len(atoms))].Predicate + " && " + goal
		}

		r := p.TryProve(ctx, goal, fs)
		if !r.Proven {
			continue
		}
		rules[r.Rule()]++

		premises := make([]func(map[string]*big.Rat) bool, len(fs))
		for i, f := range fs {
			premises[i] = compile(t, f.Predicate)
		}
		conclusion := compile(t, goal)

		for x := -6; x <= 6; x++ {
			for y := -6; y <= 6; y++ {
				for z := -6; z <= 6; z++ {
					env := map[string]*big.Rat{
						"x": big.NewRat(int64(x), 1),
						"y": big.NewRat(int64(y), 1),
						"z": big.NewRat(int64(z), 1),
					}
					satisfied := true
					for _, holds := range premises {
						if !holds(env) {
							satisfied = false
							break
						}
					}
					if satisfied && !conclusion(env) {
						t.Fatalf("unsound %s proof of %q from %v at x=%d y=%d z=%d", r.Rule(), goal, fs, x, y, z)
					}
				}
			}
		}
	}

	assert.Positive(t, rules[proof.RuleDisequality], "rules hit: %v", rules)
	assert.Positive(t, rules[proof.RuleConjunction], "rules hit: %v", rules)
	assert.Greater(t, len(rules), 3, "rules hit: %v", rules)
}
