package instance

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	in, err := Load("testdata/E-n8-k2.vrp", VariantX, 25)
	require.NoError(t, err)

	assert.Equal(t, "E-n8-k2", in.Name())
	assert.Equal(t, 8, in.VerticesNum())
	assert.Equal(t, 7, in.CustomersNum())
	assert.Equal(t, 10, in.Capacity())
	assert.Equal(t, 0, in.Demand(Depot))
	assert.Equal(t, 5, in.Demand(5))
	assert.Equal(t, 20, in.TotalDemand())
	assert.True(t, in.RoundCosts())

	assert.Equal(t, 5.0, in.Cost(0, 1))
	assert.Equal(t, 5.0, in.Cost(1, 2))
	assert.Equal(t, 10.0, in.Cost(0, 2))
	assert.Equal(t, in.Cost(3, 6), in.Cost(6, 3))
	assert.Equal(t, 0.0, in.Cost(4, 4))
}

func TestRoundingByVariant(t *testing.T) {
	src := `NAME : r
TYPE : CVRP
DIMENSION : 2
EDGE_WEIGHT_TYPE : EUC_2D
CAPACITY : 5
NODE_COORD_SECTION
1 0 0
2 1 1
DEMAND_SECTION
1 0
2 1
DEPOT_SECTION
1
-1
EOF
`
	x, err := Read(strings.NewReader(src), "r", VariantX, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, x.Cost(0, 1))

	k, err := Read(strings.NewReader(src), "r", VariantK, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.41421356, k.Cost(0, 1), 1e-6)
	assert.False(t, k.RoundCosts())
}

func TestNeighborsStartWithSelf(t *testing.T) {
	in, err := Load("testdata/E-n8-k2.vrp", VariantX, 3)
	require.NoError(t, err)

	for i := 0; i < in.VerticesNum(); i++ {
		list := in.Neighbors(i)
		require.Len(t, list, 4)
		assert.Equal(t, i, list[0])
		for k := 2; k < len(list); k++ {
			assert.LessOrEqual(t, in.Cost(i, list[k-1]), in.Cost(i, list[k]))
		}
	}

	// ties are broken by vertex index
	assert.Equal(t, []int{0, 1, 3, 5}, in.Neighbors(0))
}

func TestNeighborsNumClamped(t *testing.T) {
	in, err := Load("testdata/E-n8-k2.vrp", VariantX, 100)
	require.NoError(t, err)
	assert.Len(t, in.Neighbors(0), 8)
}

func TestRouteCountEstimate(t *testing.T) {
	in, err := Load("testdata/E-n8-k2.vrp", VariantX, 0)
	require.NoError(t, err)
	// demands 5,4,3,3,2,2,1 into capacity 10: {5,4,1} {3,3,2,2}
	assert.Equal(t, 2, in.RouteCountEstimate())
}

func TestMeanArcCost(t *testing.T) {
	in, err := New("line", []float64{0, 1, 2}, []float64{0, 0, 0}, []int{0, 1, 1}, 5, false, 0)
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3.0, in.MeanArcCost(), 1e-9)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing dimension", "NAME : a\nCAPACITY : 5\nEOF\n"},
		{"bad edge weight", "DIMENSION : 2\nEDGE_WEIGHT_TYPE : GEO\n"},
		{"node out of range", "DIMENSION : 2\nCAPACITY : 5\nNODE_COORD_SECTION\n3 0 0\n"},
		{"missing demand", "DIMENSION : 2\nCAPACITY : 5\nNODE_COORD_SECTION\n1 0 0\n2 1 1\nDEMAND_SECTION\n1 0\nEOF\n"},
		{"depot not first", "DIMENSION : 2\nCAPACITY : 5\nNODE_COORD_SECTION\n1 0 0\n2 1 1\nDEMAND_SECTION\n1 0\n2 0\nDEPOT_SECTION\n2\n-1\nEOF\n"},
		{"demand over capacity", "DIMENSION : 2\nCAPACITY : 5\nNODE_COORD_SECTION\n1 0 0\n2 1 1\nDEMAND_SECTION\n1 0\n2 9\nEOF\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.src), "bad", VariantX, 0)
			require.Error(t, err)
			var perr *ParseError
			assert.True(t, errors.As(err, &perr), "expected ParseError, got %T", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/does-not-exist.vrp", VariantX, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("z")
	require.NoError(t, err)
	assert.Equal(t, VariantZ, v)

	_, err = ParseVariant("Q")
	assert.Error(t, err)
}
