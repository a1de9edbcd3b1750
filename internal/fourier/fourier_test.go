package fourier

import (
	"fmt"
	"math/big"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orizon-lang/refinement/internal/constraint"
	"github.com/orizon-lang/refinement/internal/facts"
	"github.com/orizon-lang/refinement/internal/proof"
)

func known(preds ...string) []facts.Fact {
	out := make([]facts.Fact, len(preds))
	for i, p := range preds {
		out[i] = facts.Fact{Predicate: p}
	}
	return out
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		facts  []facts.Fact
		goal   string
		proven bool
	}{
		{"SumOfBounds", known("x > 0", "y >= 0"), "x + y > 0", true},
		{"WeakerFact", known("x > 5"), "x > 10", false},
		{"NonLinearGoal", known("x > 0", "y > 0"), "x * y > 0", false},
		{"ConstantGoal", nil, "5 > 3", true},
		{"FalseConstantGoal", nil, "3 > 5", false},
		{"Transitive", known("a > b", "b > 0"), "a > 0", true},
		{"ThreeHop", known("a >= b", "b >= c", "c > 2"), "a > 2", true},
		{"DifferenceBound", known("x - y >= 3", "y >= 1"), "x >= 4", true},
		{"DifferenceTooWeak", known("x - y >= 3", "y >= 1"), "x > 4", false},
		{"EqualityFact", known("x == 4", "y <= x"), "y <= 4", true},
		{"EqualityGoal", known("x >= 3", "x <= 3"), "x == 3", true},
		{"EqualityGoalOneSided", known("x >= 3"), "x == 3", false},
		{"NoVariablesInFacts", nil, "x > 0", false},
		{"UnparsedFactsIgnored", known("x * x >= 0"), "x >= 0", false},
		{"ContradictoryFacts", known("x > 1", "x < 0"), "y > 100", true},
		{"StrictChainToNonStrict", known("x < y", "y < 1"), "x < 1", true},
		{"ScaledCoefficients", known("x + x <= 6"), "x <= 3", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Decide(tt.goal, tt.facts)
			assert.Equal(t, tt.proven, r.Proven, "reason: %s", r.Reason)
			if tt.proven {
				assert.Equal(t, proof.MethodLinear, r.Method)
				assert.Equal(t, proof.StrategyElimination, r.Strategy)
				require.NotNil(t, r.Step)
			} else {
				assert.NotEmpty(t, r.Reason)
			}
		})
	}
}

func TestDecideNonLinearReason(t *testing.T) {
	r := Decide("x * y > 0", known("x > 0", "y > 0"))
	assert.False(t, r.Proven)
	assert.Contains(t, r.Reason, "[PARSE:NOT_LINEAR]")
}

func TestDecideCertificate(t *testing.T) {
	r := Decide("x + y > 0", known("x > 0", "y >= 0", "z < 7"))
	require.True(t, r.Proven)
	assert.Equal(t, proof.RuleFourierMotzkin, r.Rule())
	assert.Contains(t, r.Step.Description, "assumed x + y <= 0")
	assert.Contains(t, r.Step.Description, "eliminated x")

	var used []string
	for _, f := range r.UsedFacts() {
		used = append(used, f.Predicate)
	}
	assert.ElementsMatch(t, []string{"x > 0", "y >= 0"}, used, "unrelated facts must not be cited")
}

func TestDecideTautologyCitesNoFacts(t *testing.T) {
	r := Decide("5 > 3", nil)
	require.True(t, r.Proven)
	assert.Empty(t, r.UsedFacts())
	assert.Contains(t, r.Step.Justification, "is false")
}

func TestDecideEqualitySplit(t *testing.T) {
	r := Decide("x == 3", known("x >= 3", "x <= 3"))
	require.True(t, r.Proven)
	assert.Equal(t, proof.RuleEqualitySplit, r.Rule())
	require.Len(t, r.Step.Subgoals, 2)
	for _, sub := range r.Step.Subgoals {
		assert.True(t, sub.Proven)
		assert.Equal(t, proof.RuleFourierMotzkin, sub.Rule())
	}
	assert.Len(t, r.UsedFacts(), 2)
}

func TestRefute(t *testing.T) {
	parse := func(text string) constraint.LinearConstraint {
		c, ok := constraint.Parse(text)
		require.True(t, ok, text)
		return c
	}

	out := Refute([]constraint.LinearConstraint{parse("x > 1"), parse("x < 1"), parse("y > 0")})
	assert.True(t, out.Contradiction)
	assert.Equal(t, []int{0, 1}, out.Origins)
	assert.Equal(t, []string{"x"}, out.Eliminated)

	out = Refute([]constraint.LinearConstraint{parse("x >= 1"), parse("x <= 1")})
	assert.False(t, out.Contradiction)
	assert.Equal(t, []string{"x"}, out.Eliminated)
}

func TestEliminateDoesNotMutateInput(t *testing.T) {
	c, _ := constraint.Parse("x - y > 0")
	d, _ := constraint.Parse("y > x")
	rows := append(lower(c, 0), lower(d, 1)...)
	before := rows[0].c.String()

	_, ok := eliminate(rows, "x")
	assert.True(t, ok)
	assert.Equal(t, before, rows[0].c.String())
	assert.Len(t, rows, 2)
}

func TestDecideAbortsBeforeQuadraticRound(t *testing.T) {
	var fs []facts.Fact
	for i := 0; i < 2000; i++ {
		fs = append(fs,
			facts.Fact{Predicate: fmt.Sprintf("a - x_%d >= %d", i, i)},
			facts.Fact{Predicate: fmt.Sprintf("a + y_%d <= %d", i, i)})
	}

	start := time.Now()
	r := Decide("z > 0", fs)
	assert.False(t, r.Proven)
	assert.Contains(t, r.Reason, "elimination exceeded")
	assert.Less(t, time.Since(start), 5*time.Second)

	one, minusOne := big.NewRat(1, 1), big.NewRat(-1, 1)
	var rows []row
	for i := 0; i < 64; i++ {
		rows = append(rows,
			lower(constraint.New(map[string]*big.Rat{"a": one}, constraint.OpGE, big.NewRat(int64(i), 1), ""), 2*i)...)
		rows = append(rows,
			lower(constraint.New(map[string]*big.Rat{"a": minusOne}, constraint.OpGE, big.NewRat(int64(-100-i), 1), ""), 2*i+1)...)
	}
	rows = append(rows, lower(constraint.New(map[string]*big.Rat{"b": one}, constraint.OpGE, nil, ""), 200)...)

	next, ok := eliminate(rows, "a")
	assert.False(t, ok, "64 x 64 pairs plus a pass-through row exceed the row cap")
	assert.Nil(t, next)
}

// TestDecideSoundness checks every proven goal against brute-force
// enumeration over a bounded integer grid.
func TestDecideSoundness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	vars := []string{"x", "y", "z"}
	ops := []string{"<", "<=", ">", ">=", "=="}

	randomPredicate := func() string {
		a := vars[rng.Intn(len(vars))]
		b := vars[rng.Intn(len(vars))]
		op := ops[rng.Intn(len(ops))]
		k := rng.Intn(9) - 4
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

	provenCount := 0
	for trial := 0; trial < 400; trial++ {
		n := 1 + rng.Intn(3)
		var fs []facts.Fact
		var parsed []constraint.LinearConstraint
		for i := 0; i < n; i++ {
			p := randomPredicate()
			c, ok := constraint.Parse(p)
			require.True(t, ok, p)
			fs = append(fs, facts.Fact{Predicate: p})
			parsed = append(parsed, c)
		}
		goalText := randomPredicate()
		goal, _ := constraint.Parse(goalText)

		r := Decide(goalText, fs)
		if !r.Proven {
			continue
		}
		provenCount++

		for x := -6; x <= 6; x++ {
			for y := -6; y <= 6; y++ {
				for z := -6; z <= 6; z++ {
					env := map[string]*big.Rat{
						"x": big.NewRat(int64(x), 1),
						"y": big.NewRat(int64(y), 1),
						"z": big.NewRat(int64(z), 1),
					}
					satisfied := true
					for _, c := range parsed {
						if !c.Eval(env) {
							satisfied = false
							break
						}
					}
					if satisfied && !goal.Eval(env) {
						t.Fatalf("unsound proof of %q from %v at x=%d y=%d z=%d", goalText, fs, x, y, z)
					}
				}
			}
		}
	}

	assert.Positive(t, provenCount, "generator should produce some provable goals")
}
