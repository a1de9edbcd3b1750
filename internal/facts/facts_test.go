package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCompound(t *testing.T) {
	t.Run("ByteRange", func(t *testing.T) {
		got := SplitCompound([]Fact{{Variable: "x", Predicate: "x >= 0 && x <= 255"}})
		require.Len(t, got, 2)
		assert.Equal(t, Fact{Variable: "x", Predicate: "x >= 0"}, got[0])
		assert.Equal(t, Fact{Variable: "x", Predicate: "x <= 255"}, got[1])
	})

	t.Run("NestedParentheses", func(t *testing.T) {
		got := SplitCompound([]Fact{{Variable: "x", Predicate: "(x > 0 && (y > 0 && z > 0))"}})
		require.Len(t, got, 3)
		assert.Equal(t, "x > 0", got[0].Predicate)
		assert.Equal(t, "y > 0", got[1].Predicate)
		assert.Equal(t, "z > 0", got[2].Predicate)
	})

	t.Run("DisjunctionLeftWhole", func(t *testing.T) {
		got := SplitCompound([]Fact{{Variable: "x", Predicate: "x > 0 && y > 0 || z > 0"}})
		require.Len(t, got, 1)
		assert.Equal(t, "x > 0 && y > 0 || z > 0", got[0].Predicate)
	})

	t.Run("DisjunctionInsideConjunct", func(t *testing.T) {
		got := SplitCompound([]Fact{{Predicate: "x > 0 && (y > 0 || z > 0)"}})
		require.Len(t, got, 2)
		assert.Equal(t, "x > 0", got[0].Predicate)
		assert.Equal(t, "y > 0 || z > 0", got[1].Predicate)
	})

	t.Run("EmptyPiecesDropped", func(t *testing.T) {
		got := SplitCompound([]Fact{{Predicate: "x > 0 &&  "}, {Predicate: "   "}})
		require.Len(t, got, 1)
		assert.Equal(t, "x > 0", got[0].Predicate)
	})

	t.Run("DanglingSeparators", func(t *testing.T) {
		assert.Equal(t, []string{"x > 0"}, SplitConjuncts("&& x > 0 &&"))
		assert.Equal(t, []string{"x > 0", "y < 1"}, SplitConjuncts("x > 0 && && y < 1"))
		assert.Empty(t, SplitConjuncts("&&"))
	})

	t.Run("UnbalancedOuterParens", func(t *testing.T) {
		got := SplitConjuncts("(x > 0) && (y > 0)")
		assert.Equal(t, []string{"x > 0", "y > 0"}, got)
	})
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "x > 0", Normalize("  x   >\t0 "))
	// U+0065 U+0301 composes to U+00E9.
	assert.Equal(t, "\u00e9 > 0", Normalize("e\u0301 > 0"))
	assert.Equal(t, "x: x > 0", New("x", " x  > 0").String())
}
