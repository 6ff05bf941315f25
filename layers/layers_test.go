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

package layers_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/neurago/neurago/backends"
	_ "github.com/neurago/neurago/backends/simplego"
	"github.com/neurago/neurago/graph"
	"github.com/neurago/neurago/layers"
	"github.com/neurago/neurago/types/shapes"
	"github.com/neurago/neurago/types/tensors"
	"github.com/stretchr/testify/require"
)

func testCtx() *graph.ExecContext {
	return &graph.ExecContext{Backend: backends.NewWithConfig("go:17")}
}

func TestActivationEnum(t *testing.T) {
	require.Equal(t, "leaky_relu", layers.ActivationLeakyRelu.String())
	require.Equal(t, "softmax", layers.ActivationSoftmax.String())
	parsed, err := layers.ActivationString("hard_sigmoid")
	require.NoError(t, err)
	require.Equal(t, layers.ActivationHardSigmoid, parsed)
	_, err = layers.ActivationString("swish")
	require.Error(t, err)

	caught := graph.TryCatch(func() {
		layers.NewDense(3, layers.Activation(99), layers.WithSession(graph.NewSession()))
	})
	var configErr *graph.ConfigurationError
	require.ErrorAs(t, caught, &configErr)
	require.Equal(t, "activation", configErr.Option)
}

func TestDenseValues(t *testing.T) {
	session := graph.NewSession()
	weight := tensors.FromFlat([]float32{1, 0, 1, 0, 1, 1}, 2, 3)
	bias := tensors.FromFlat([]float32{0, 0, 10}, 3)
	network := graph.Join(
		layers.NewInput(2, layers.WithSession(session)),
		layers.NewDense(3, layers.ActivationNone, layers.WithSession(session),
			layers.WithWeight(weight), layers.WithBias(bias)))

	out := network.Output(testCtx(), tensors.FromFlat([]float32{2, 3}, 1, 2))
	require.Equal(t, []float32{2, 3, 15}, tensors.Flat[float32](out))

	caught := graph.TryCatch(func() { layers.NewDense(0, layers.ActivationNone, layers.WithSession(session)) })
	var configErr *graph.ConfigurationError
	require.ErrorAs(t, caught, &configErr)
	require.Equal(t, "units", configErr.Option)
}

func TestInputAssertsShapes(t *testing.T) {
	session := graph.NewSession()
	trunk := graph.Join(
		layers.NewInput(8, layers.WithSession(session)),
		layers.NewDense(4, layers.ActivationNone, layers.WithSession(session)))

	// Compatible assertion passes and refines nothing.
	asserted := graph.Join(trunk, layers.NewInput(4, layers.WithSession(session)))
	require.Equal(t, "(Float32)[?, 4]", asserted.OutputShape().String())

	// Incompatible assertion fails naming the input layer.
	wrong := layers.NewInput(5, layers.WithSession(session))
	bad := graph.Join(trunk, wrong)
	err := graph.TryCatch(func() { bad.PropagateShapes() })
	var shapeErr *graph.ShapeError
	require.ErrorAs(t, err, &shapeErr)
	require.Equal(t, wrong.Name(), shapeErr.LayerName)
}

func TestConcatenateReportsOffendingInputs(t *testing.T) {
	session := graph.NewSession()
	a := layers.NewInputShaped(shapes.Batched(dtypes.Float32, 4, 2), layers.WithSession(session))
	b := layers.NewInputShaped(shapes.Batched(dtypes.Float32, 5, 2), layers.WithSession(session))
	network := graph.Join(graph.Parallel(a, b), layers.NewConcatenate(-1, layers.WithSession(session)))
	err := graph.TryCatch(func() { network.PropagateShapes() })
	var shapeErr *graph.ShapeError
	require.ErrorAs(t, err, &shapeErr)
	require.Contains(t, shapeErr.Message, "#1")
	require.Contains(t, shapeErr.Message, "incompatible")

	// Unknown dimension on the concatenation axis is rejected.
	c := layers.NewInputShaped(shapes.Make(dtypes.Float32, shapes.UnknownDim, 4, shapes.UnknownDim),
		layers.WithSession(session))
	d := layers.NewInputShaped(shapes.Batched(dtypes.Float32, 4, 2), layers.WithSession(session))
	network = graph.Join(graph.Parallel(c, d), layers.NewConcatenate(-1, layers.WithSession(session)))
	err = graph.TryCatch(func() { network.PropagateShapes() })
	require.ErrorAs(t, err, &shapeErr)
	require.Contains(t, shapeErr.Message, "unknown dimension on the concatenation axis")
}

func TestElementwiseResidual(t *testing.T) {
	session := graph.NewSession()
	input := layers.NewInput(3, layers.WithSession(session))
	identity := layers.NewDense(3, layers.ActivationNone, layers.WithSession(session),
		layers.WithWeight(tensors.FromFlat([]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}, 3, 3)),
		layers.WithBias(tensors.FromFlat([]float32{0, 0, 0}, 3)))
	network := graph.Join(
		graph.Parallel(input.AsNetwork(), graph.Join(input, identity)),
		layers.NewAdd(layers.WithSession(session)))

	out := network.Output(testCtx(), tensors.FromFlat([]float32{1, 2, 3}, 1, 3))
	require.Equal(t, []float32{2, 4, 6}, tensors.Flat[float32](out))
}

func TestDropoutAndNoiseAreInferenceNoOps(t *testing.T) {
	session := graph.NewSession()
	network := graph.Join(
		layers.NewInput(4, layers.WithSession(session)),
		layers.NewDropout(0.5, layers.WithSession(session)),
		layers.NewGaussianNoise(0, 1, layers.WithSession(session)))
	x := tensors.FromFlat([]float32{1, 2, 3, 4}, 1, 4)

	out := network.Output(testCtx(), x)
	require.True(t, out.Equal(x), "inference pass must not disturb the input")

	training := network.Output(&graph.ExecContext{Backend: backends.NewWithConfig("go:3"), Training: true}, x)
	require.False(t, training.Equal(x), "training pass applies dropout and noise")

	caught := graph.TryCatch(func() { layers.NewDropout(1.0, layers.WithSession(session)) })
	var configErr *graph.ConfigurationError
	require.ErrorAs(t, caught, &configErr)
	require.Equal(t, "proba", configErr.Option)
}

func TestPRelu(t *testing.T) {
	session := graph.NewSession()
	network := graph.Join(
		layers.NewInput(2, layers.WithSession(session)),
		layers.NewPRelu(layers.WithSession(session), layers.WithAlpha(tensors.FromFlat([]float32{0.1, 0.5}, 2))))
	out := network.Output(testCtx(), tensors.FromFlat([]float32{-1, -2, 4, -2}, 2, 2))
	require.Equal(t, []float32{-0.1, -1, 4, -1}, tensors.Flat[float32](out))

	caught := graph.TryCatch(func() {
		layers.NewPRelu(layers.WithSession(session), layers.WithAlphaAxes(0))
	})
	var configErr *graph.ConfigurationError
	require.ErrorAs(t, caught, &configErr)
	require.Equal(t, "alphaAxes", configErr.Option)

	// Alpha axes out of the input's rank fail at propagation.
	bad := graph.Join(
		layers.NewInput(2, layers.WithSession(session)),
		layers.NewPRelu(layers.WithSession(session), layers.WithAlphaAxes(2)))
	err := graph.TryCatch(func() { bad.PropagateShapes() })
	var shapeErr *graph.ShapeError
	require.ErrorAs(t, err, &shapeErr)
	require.Contains(t, shapeErr.Message, "out of range")
}

func TestBatchNorm(t *testing.T) {
	session := graph.NewSession()
	network := graph.Join(
		layers.NewInput(2, layers.WithSession(session), layers.WithDType(dtypes.Float64)),
		layers.NewBatchNorm(layers.WithSession(session), layers.WithMomentum(0.5), layers.WithEpsilon(1e-12)))
	x := tensors.FromFlat([]float64{1, 10, 3, 20}, 2, 2)

	trainingCtx := &graph.ExecContext{Backend: backends.NewWithConfig("go:1"), Training: true}
	out := network.Output(trainingCtx, x)
	got := tensors.Flat[float64](out)
	want := []float64{-1, -1, 1, 1}
	for ii := range want {
		require.InDelta(t, want[ii], got[ii], 1e-5)
	}

	// The training pass blended the batch statistics into the running state.
	byName := make(map[string]*graph.Parameter)
	for _, p := range network.Parameters() {
		byName[p.Name()] = p
	}
	mean := byName["batch-norm-1/running_mean"]
	require.NotNil(t, mean)
	require.InDelta(t, 0.5*2+0.5*0, mean.Value().Float64Data()[0], 1e-9)
	require.InDelta(t, 0.5*15+0.5*0, mean.Value().Float64Data()[1], 1e-9)

	// Inference normalizes with the running statistics, not the batch ones.
	inference := network.Output(testCtx(), x)
	require.False(t, inference.Equal(out))
}

func TestMaterializeRequiresInputShapes(t *testing.T) {
	session := graph.NewSession()
	backend := backends.New()
	for _, layer := range []graph.Layer{
		layers.NewDense(3, layers.ActivationNone, layers.WithSession(session)),
		layers.NewBatchNorm(layers.WithSession(session)),
		layers.NewPRelu(layers.WithSession(session)),
	} {
		err := graph.TryCatch(func() { layer.AsNetwork().Materialize(backend) })
		var shapeErr *graph.ShapeError
		require.ErrorAs(t, err, &shapeErr, "layer %q", layer.Name())
		require.Equal(t, layer.Name(), shapeErr.LayerName)
	}
}

func TestBatchNormParameterTying(t *testing.T) {
	session := graph.NewSession()
	backend := backends.New()
	first := graph.Join(
		layers.NewInput(2, layers.WithSession(session)),
		layers.NewBatchNorm(layers.WithSession(session)))
	first.Materialize(backend)
	gamma := first.Parameters()[0]
	require.Contains(t, gamma.Name(), "/gamma")

	second := graph.Join(
		layers.NewInput(2, layers.WithSession(session)),
		layers.NewBatchNorm(layers.WithSession(session), layers.WithGamma(gamma)))
	second.Materialize(backend)
	require.Same(t, gamma, second.Parameters()[0])
}

func TestReshapeAndFlatten(t *testing.T) {
	session := graph.NewSession()
	flatten := graph.Join(
		layers.NewInputShaped(shapes.Batched(dtypes.Float32, 3, 4), layers.WithSession(session)),
		layers.NewFlatten(layers.WithSession(session)))
	require.Equal(t, "(Float32)[?, 12]", flatten.OutputShape().String())

	out := flatten.Output(testCtx(), tensors.FromFlat(make([]float32, 2*3*4), 2, 3, 4))
	require.Equal(t, []int{2, 12}, out.Shape().Dimensions)

	// Mismatched element counts fail at propagation.
	bad := graph.Join(
		layers.NewInputShaped(shapes.Batched(dtypes.Float32, 3, 4), layers.WithSession(session)),
		layers.NewReshape([]int{5, 2}, layers.WithSession(session)))
	err := graph.TryCatch(func() { bad.PropagateShapes() })
	var shapeErr *graph.ShapeError
	require.ErrorAs(t, err, &shapeErr)

	caught := graph.TryCatch(func() { layers.NewReshape([]int{-1, -1}, layers.WithSession(session)) })
	var configErr *graph.ConfigurationError
	require.ErrorAs(t, caught, &configErr)
}

func TestEmbedding(t *testing.T) {
	session := graph.NewSession()
	weight := tensors.FromFlat([]float32{0, 1, 2, 3, 4, 5, 6, 7}, 4, 2)
	network := graph.Join(
		layers.NewInputShaped(shapes.Batched(dtypes.Int32, 3), layers.WithSession(session)),
		layers.NewEmbedding(4, 2, layers.WithSession(session), layers.WithWeight(weight)))
	require.Equal(t, "(Float32)[?, 3, 2]", network.OutputShape().String())

	out := network.Output(testCtx(), tensors.FromFlat([]int32{0, 2, 3}, 1, 3))
	require.Equal(t, []int{1, 3, 2}, out.Shape().Dimensions)
	require.Equal(t, []float32{0, 1, 4, 5, 6, 7}, tensors.Flat[float32](out))

	// Float inputs are rejected.
	bad := graph.Join(
		layers.NewInput(3, layers.WithSession(session)),
		layers.NewEmbedding(4, 2, layers.WithSession(session)))
	err := graph.TryCatch(func() { bad.PropagateShapes() })
	var shapeErr *graph.ShapeError
	require.ErrorAs(t, err, &shapeErr)
	require.Contains(t, shapeErr.Message, "integer")
}

func TestGatedAverage(t *testing.T) {
	gate := tensors.FromFlat([]float64{1, 0, 0.5, 0.5}, 2, 2)
	e1 := tensors.FromFlat([]float64{10, 20}, 2, 1)
	e2 := tensors.FromFlat([]float64{30, 40}, 2, 1)

	layer := layers.NewGatedAverage(layers.WithSession(graph.NewSession()))
	out := layer.BuildOutput(testCtx(), []*tensors.Tensor{gate, e1, e2})
	require.Equal(t, []float64{10, 30}, tensors.Flat[float64](out))

	err := graph.TryCatch(func() {
		layer.SetInputShapes([]shapes.Shape{
			shapes.Batched(dtypes.Float64, 3), // gate sized for 3 experts
			shapes.Batched(dtypes.Float64, 1),
			shapes.Batched(dtypes.Float64, 1),
		})
	})
	var shapeErr *graph.ShapeError
	require.ErrorAs(t, err, &shapeErr)
	require.Contains(t, shapeErr.Message, "3 weights for 2 expert")
}
