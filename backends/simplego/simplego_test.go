/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package simplego_test

import (
	"math"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/neurago/neurago/backends"
	"github.com/neurago/neurago/backends/simplego"
	"github.com/neurago/neurago/types/tensors"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) backends.Backend {
	t.Helper()
	return backends.NewWithConfig(simplego.BackendName + ":0")
}

func TestMatMulAndBias(t *testing.T) {
	b := newTestBackend(t)
	x := tensors.FromFlat([]float32{1, 2, 3, 4}, 2, 2)
	w := tensors.FromFlat([]float32{1, 0, 0, 1}, 2, 2)
	require.True(t, b.MatMul(x, w).Equal(x))

	bias := tensors.FromFlat([]float32{10, 20}, 2)
	got := b.Add(x, bias)
	require.Equal(t, []float32{11, 22, 13, 24}, tensors.Flat[float32](got))

	require.Panics(t, func() { b.MatMul(x, tensors.FromFlat([]float32{1, 2, 3}, 3, 1)) })
}

func TestConcatAndSlice(t *testing.T) {
	b := newTestBackend(t)
	a := tensors.FromFlat([]float64{1, 2, 3, 4}, 2, 2)
	c := tensors.FromFlat([]float64{5, 6}, 2, 1)
	joined := b.Concat([]*tensors.Tensor{a, c}, 1)
	require.Equal(t, []int{2, 3}, joined.Shape().Dimensions)
	require.Equal(t, []float64{1, 2, 5, 3, 4, 6}, tensors.Flat[float64](joined))

	col := b.Slice(joined, 1, 2)
	require.Equal(t, []int{2}, col.Shape().Dimensions)
	require.Equal(t, []float64{5, 6}, tensors.Flat[float64](col))
}

func TestSoftmax(t *testing.T) {
	b := newTestBackend(t)
	x := tensors.FromFlat([]float64{1, 1, 1, 0, 0, 2}, 2, 3)
	got := tensors.Flat[float64](b.Softmax(x, 1))
	for row := 0; row < 2; row++ {
		sum := got[row*3] + got[row*3+1] + got[row*3+2]
		require.InDelta(t, 1.0, sum, 1e-9)
	}
	require.InDelta(t, 1.0/3.0, got[0], 1e-9)
	require.Greater(t, got[5], got[3])
}

func TestActivationKernels(t *testing.T) {
	b := newTestBackend(t)
	x := tensors.FromFlat([]float64{-2, 0, 2}, 3)

	require.Equal(t, []float64{0, 0, 2}, tensors.Flat[float64](b.Relu(x)))
	require.Equal(t, []float64{-0.02, 0, 2}, tensors.Flat[float64](b.LeakyRelu(x, 0.01)))

	sig := tensors.Flat[float64](b.Sigmoid(x))
	require.InDelta(t, 0.5, sig[1], 1e-9)
	require.InDelta(t, 1/(1+math.Exp(2)), sig[0], 1e-9)

	hard := tensors.Flat[float64](b.HardSigmoid(x))
	require.Equal(t, []float64{0.1, 0.5, 0.9}, hard)

	elu := tensors.Flat[float64](b.Elu(x))
	require.InDelta(t, math.Exp(-2)-1, elu[0], 1e-9)
	require.Equal(t, 2.0, elu[2])
}

func TestPRelu(t *testing.T) {
	b := newTestBackend(t)
	x := tensors.FromFlat([]float64{-1, -1, 1, -2}, 2, 2)
	alpha := tensors.FromFlat([]float64{0.1, 0.5}, 2)
	got := tensors.Flat[float64](b.PRelu(x, alpha, []int{1}))
	require.Equal(t, []float64{-0.1, -0.5, 1, -1}, got)
}

func TestGather(t *testing.T) {
	b := newTestBackend(t)
	table := tensors.FromFlat([]float32{0, 0, 1, 1, 2, 2}, 3, 2)
	indices := tensors.FromFlat([]int32{2, 0}, 2, 1)
	got := b.Gather(table, indices)
	require.Equal(t, []int{2, 1, 2}, got.Shape().Dimensions)
	require.Equal(t, []float32{2, 2, 0, 0}, tensors.Flat[float32](got))

	require.Panics(t, func() { b.Gather(table, tensors.FromFlat([]int32{3}, 1)) })
}

func TestMomentsAndNormalize(t *testing.T) {
	b := newTestBackend(t)
	x := tensors.FromFlat([]float64{1, 10, 3, 20}, 2, 2)
	mean, variance := b.Moments(x, 1)
	require.Equal(t, []float64{2, 15}, tensors.Flat[float64](mean))
	require.Equal(t, []float64{1, 25}, tensors.Flat[float64](variance))

	gamma := tensors.FromFlat([]float64{1, 1}, 2)
	beta := tensors.FromFlat([]float64{0, 0}, 2)
	normalized := b.Normalize(x, mean, variance, gamma, beta, 0, 1)
	require.Equal(t, []float64{-1, -1, 1, 1}, tensors.Flat[float64](normalized))
}

func TestDropoutScaling(t *testing.T) {
	b := newTestBackend(t)
	x := tensors.FromFlat([]float64{1, 1, 1, 1, 1, 1, 1, 1}, 8)
	got := tensors.Flat[float64](b.Dropout(x, 0.5))
	for _, v := range got {
		require.True(t, v == 0 || v == 2, "dropout must zero or rescale, got %g", v)
	}
}

func TestLerp(t *testing.T) {
	b := newTestBackend(t)
	a := tensors.FromFlat([]float64{0, 10}, 2)
	c := tensors.FromFlat([]float64{10, 0}, 2)
	require.Equal(t, []float64{1, 9}, tensors.Flat[float64](b.Lerp(a, c, 0.9)))
}

func TestConvertsBackToInputDType(t *testing.T) {
	b := newTestBackend(t)
	x := tensors.FromFlat([]float32{-1, 1}, 2)
	require.Equal(t, dtypes.Float32, b.Tanh(x).DType())
	require.Equal(t, dtypes.Float32, b.Add(x, x).DType())
}
