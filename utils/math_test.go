package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func reconstruct(d SVD2) Matrix2 {
	return d.U.Mul(Diag2(d.S[0], d.S[1])).Mul(d.V.T())
}

func assertMatrixInDelta(t *testing.T, expected, actual Matrix2, delta float64) {
	t.Helper()
	for i := range 2 {
		for j := range 2 {
			assert.InDelta(t, expected[i][j], actual[i][j], delta, "entry (%d,%d)", i, j)
		}
	}
}

func TestSVD2x2_MatchesGonum(t *testing.T) {
	cases := []Matrix2{
		{{3, 1}, {1, 2}},
		{{0.01, 0.002}, {-0.003, 0.012}},
		{{-2, 5}, {4, 1}},
		{{0, 1}, {-1, 0}},
		{{1, 2}, {2, 4}},
		{{7, 0}, {0, 7}},
		{{1e-3, -4e-4}, {2e-4, 9e-4}},
	}

	for _, a := range cases {
		d, err := SVD2x2(a)
		require.NoError(t, err)

		var svd mat.SVD
		ok := svd.Factorize(mat.NewDense(2, 2, []float64{a[0][0], a[0][1], a[1][0], a[1][1]}), mat.SVDFull)
		require.True(t, ok)
		values := svd.Values(nil)

		assert.InDelta(t, values[0], d.S[0], 1e-7)
		assert.InDelta(t, values[1], d.S[1], 1e-7)
		assert.GreaterOrEqual(t, d.S[0], d.S[1])

		assertMatrixInDelta(t, a, reconstruct(d), 1e-9)
		assertMatrixInDelta(t, Diag2(1, 1), d.U.T().Mul(d.U), 1e-9)
		assertMatrixInDelta(t, Diag2(1, 1), d.V.T().Mul(d.V), 1e-9)
	}
}

func TestSVD2x2_RankDeficient(t *testing.T) {
	d, err := SVD2x2(Matrix2{{1, 2}, {2, 4}})
	require.NoError(t, err)
	assert.Equal(t, 1, d.Rank(1e-6))

	d, err = SVD2x2(Matrix2{})
	require.NoError(t, err)
	assert.Equal(t, 0, d.Rank(1e-6))
	assert.Equal(t, Diag2(1, 1), d.U)
}

func TestSVD2x2_NonFinite(t *testing.T) {
	_, err := SVD2x2(Matrix2{{math.NaN(), 0}, {0, 1}})
	assert.Error(t, err)

	_, err = SVD2x2(Matrix2{{math.Inf(1), 0}, {0, 1}})
	assert.Error(t, err)
}

func TestMatrix2(t *testing.T) {
	m := Matrix2{{1, 2}, {3, 4}}
	assert.Equal(t, -2.0, m.Det())
	assert.Equal(t, Matrix2{{1, 3}, {2, 4}}, m.T())
	assert.Equal(t, Matrix2{{7, 10}, {15, 22}}, m.Mul(m))
	x, y := m.MulVec(1, 1)
	assert.Equal(t, 3.0, x)
	assert.Equal(t, 7.0, y)
}

func TestL2Normalize(t *testing.T) {
	v := []float32{3, 4}
	assert.NoError(t, L2Normalize(v))
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	assert.Error(t, L2Normalize([]float32{0, 0}))
}

func TestBytesToT(t *testing.T) {
	raw := []byte{0, 0, 128, 63, 0, 0, 0, 64}
	assert.Equal(t, []float32{1, 2}, BytesToT32[float32](raw))
	assert.Nil(t, BytesToT32[float32](nil))

	raw64 := []byte{0, 0, 0, 0, 0, 0, 240, 63}
	assert.Equal(t, []float64{1}, BytesToT64[float64](raw64))
}

func TestPointers(t *testing.T) {
	assert.Equal(t, 3, DerefPointer(RefPointer(3), 5))
	assert.Equal(t, 5, DerefPointer[int](nil, 5))
	assert.True(t, DerefPointer[bool](nil, true))
}
