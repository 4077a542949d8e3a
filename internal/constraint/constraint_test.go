package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreyAkinshin/conform/internal/diag"
)

func intPtr(v int) *int { return &v }

func TestConstraint_Identity(t *testing.T) {
	t.Parallel()

	q := diag.QName{Namespace: "http://www.xbrl.org/2003/instance", Prefix: "xbrl", Local: "4.9"}
	tests := []struct {
		name string
		c    Constraint
		want string
	}{
		{"qname", Named(q), "xbrl:4.9"},
		{"pattern", Code("EFM.6.05.20"), "EFM.6.05.20"},
		{"any", Constraint{Count: 1}, AnyIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Identity())
		})
	}
	assert.True(t, Constraint{}.MatchesAnything())
	assert.False(t, Invalid().MatchesAnything())
}

func TestConstraint_DiffFor(t *testing.T) {
	t.Parallel()

	fixed := Constraint{Pattern: "a", Count: 2}
	assert.Equal(t, -2, fixed.DiffFor(0))
	assert.Equal(t, 0, fixed.DiffFor(2))
	assert.Equal(t, 1, fixed.DiffFor(3))

	ranged := Constraint{Pattern: "a", Min: intPtr(1), Max: intPtr(3)}
	assert.Equal(t, -1, ranged.DiffFor(0))
	assert.Equal(t, 0, ranged.DiffFor(1))
	assert.Equal(t, 0, ranged.DiffFor(3))
	assert.Equal(t, 1, ranged.DiffFor(4))

	atLeast := Constraint{Pattern: "a", Min: intPtr(1)}
	assert.Equal(t, 0, atLeast.DiffFor(100))
}

func TestConstraint_Capacity(t *testing.T) {
	t.Parallel()

	n, bounded := Code("x").Capacity()
	assert.True(t, bounded)
	assert.Equal(t, 1, n)

	_, bounded = Constraint{Min: intPtr(1)}.Capacity()
	assert.False(t, bounded)

	n, bounded = Constraint{Min: intPtr(0), Max: intPtr(2)}.Capacity()
	assert.True(t, bounded)
	assert.Equal(t, 2, n)
}

func TestConstraint_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "utr:invalid [error]", Code("utr:invalid").String())
	assert.Equal(t, "a [warning] x3", Constraint{Pattern: "a", Count: 3, Severity: diag.Warning}.String())
	assert.Equal(t, "a [error] x1..", Constraint{Pattern: "a", Min: intPtr(1)}.String())
}

func TestSet_RequiresAll(t *testing.T) {
	t.Parallel()

	assert.True(t, Set{}.RequiresAll())
	assert.True(t, Set{Constraints: []Constraint{Code("a")}, MatchAll: true}.RequiresAll())
	assert.False(t, Set{Constraints: []Constraint{Code("a")}}.RequiresAll())
}

func TestNormalize_SumsCounts(t *testing.T) {
	t.Parallel()

	got := Normalize([]Constraint{
		Code("a"),
		Code("b"),
		Code("a"),
		{Pattern: "a", Count: 1, Severity: diag.Warning},
	})

	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Pattern)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, "b", got[1].Pattern)
	assert.Equal(t, diag.Warning, got[2].Severity)
}

func TestNormalize_MergesQNamesByNamespace(t *testing.T) {
	t.Parallel()

	ns := "http://fasb.org/us-gaap/err"
	got := Normalize([]Constraint{
		Named(diag.QName{Namespace: ns, Prefix: "a", Local: "E1"}),
		Named(diag.QName{Namespace: ns, Prefix: "b", Local: "E1"}),
	})
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, "a", got[0].QName.Prefix)
}

func TestNormalize_Ranges(t *testing.T) {
	t.Parallel()

	got := Normalize([]Constraint{
		{Pattern: "a", Min: intPtr(1), Max: intPtr(2)},
		{Pattern: "a", Count: 3},
		{Pattern: "b", Min: intPtr(1)},
		{Pattern: "b", Min: intPtr(2)},
	})

	require.Len(t, got, 2)
	require.NotNil(t, got[0].Min)
	require.NotNil(t, got[0].Max)
	assert.Equal(t, 4, *got[0].Min)
	assert.Equal(t, 5, *got[0].Max)

	require.NotNil(t, got[1].Min)
	assert.Equal(t, 3, *got[1].Min)
	assert.Nil(t, got[1].Max)
}

func TestNormalize_CountWithOpenRange(t *testing.T) {
	t.Parallel()

	got := Normalize([]Constraint{
		Code("x"),
		{Pattern: "x", Min: intPtr(2)},
		{Pattern: "y", Max: intPtr(1)},
		{Pattern: "y", Min: intPtr(1)},
	})

	require.Len(t, got, 2)
	require.NotNil(t, got[0].Min)
	assert.Equal(t, 3, *got[0].Min)
	assert.Nil(t, got[0].Max, "an open range keeps the merged maximum unbounded")
	assert.Equal(t, 0, got[0].DiffFor(3))
	assert.Equal(t, 0, got[0].DiffFor(10))
	assert.Equal(t, -1, got[0].DiffFor(2))
	_, bounded := got[0].Capacity()
	assert.False(t, bounded)

	require.NotNil(t, got[1].Min)
	assert.Equal(t, 1, *got[1].Min)
	assert.Nil(t, got[1].Max)
}

func TestNormalize_DoesNotAliasInput(t *testing.T) {
	t.Parallel()

	in := []Constraint{
		{Pattern: "a", Min: intPtr(1)},
		{Pattern: "a", Min: intPtr(1)},
	}
	_ = Normalize(in)
	assert.Equal(t, 1, *in[0].Min)
}

func TestAdditional_Applies(t *testing.T) {
	t.Parallel()

	a := Additional{Suffix: "6-1-3/6-1-3-testcase.xml:_001gd"}
	assert.True(t, a.Applies("conf/6-1-3/6-1-3-testcase.xml:_001gd"))
	assert.False(t, a.Applies("conf/6-1-3/6-1-3-testcase.xml:_002gd"))

	glob := Additional{Suffix: "*-testcase.xml:_001*"}
	assert.True(t, glob.Applies("conf/6-1-3/6-1-3-testcase.xml:_001gd"))
	assert.False(t, glob.Applies("conf/6-1-3/6-1-3-testcase.xml:_002gd"))

	assert.False(t, Additional{}.Applies("anything"))
}

func TestApply(t *testing.T) {
	t.Parallel()

	set := Set{Constraints: []Constraint{Code("EFM.6.03.04")}, MatchAll: true}
	extra := []Additional{
		{Suffix: "tc.xml:v1", Constraints: []Constraint{Code("EFM.6.03.04"), Code("xbrl.4.9")}},
		{Suffix: "tc.xml:v2", Constraints: []Constraint{Code("never")}},
	}

	got := Apply(set, "suite/tc.xml:v1", extra)
	assert.True(t, got.MatchAll)
	require.Len(t, got.Constraints, 2)
	assert.Equal(t, 2, got.Constraints[0].Count)
	assert.Equal(t, "xbrl.4.9", got.Constraints[1].Pattern)
	assert.Len(t, set.Constraints, 1)
}
