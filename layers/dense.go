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

package layers

import (
	"github.com/neurago/neurago/backends"
	"github.com/neurago/neurago/graph"
	"github.com/neurago/neurago/initializers"
	"github.com/neurago/neurago/types/shapes"
	"github.com/neurago/neurago/types/tensors"
)

// Dense is the fully-connected layer: output = activation(input x weight + bias),
// with weight of shape [features, units] and bias of shape [units]. The activation is
// configuration, not a subtype; see Activation.
//
// The weight and bias start as declared specs (by default Xavier-normal and zeros)
// and are bound to the backend on materialization, once the input feature dimension
// is known. Pass a bound *graph.Parameter via WithWeight/WithBias to tie weights with
// another layer.
type Dense struct {
	Base
	units      int
	activation Activation

	weightSpec, biasSpec any
	weight, bias         *graph.Parameter
}

// NewDense creates a fully-connected layer with the given output width.
func NewDense(units int, activation Activation, opts ...Option) *Dense {
	if units < 1 {
		graph.ConfigErrorf("Dense", "units", "must be a positive dimension, got %d", units)
	}
	activation.validate("Dense")
	o := collectOptions(opts)
	l := &Dense{units: units, activation: activation, weightSpec: o.weight, biasSpec: o.bias}
	if l.weightSpec == nil {
		l.weightSpec = initializers.XavierNormalFn(initializers.NoSeed)
	}
	if l.biasSpec == nil {
		l.biasSpec = initializers.Initializer(initializers.Zero)
	}
	l.initBase(l, "Dense", 1, 1, o)
	return l
}

// SetInputShapes implements graph.Layer: requires a single rank-2 (batch, features)
// input with a known feature dimension.
func (l *Dense) SetInputShapes(inputs []shapes.Shape) {
	in := l.singleInput(inputs)
	if !in.Ok() {
		l.storeInputShapes(inputs)
		return
	}
	if in.Rank() != 2 {
		graph.ShapeErrorf(l.name, "expects a rank-2 (batch, features) input, got %s", in)
	}
	if in.Dim(-1) == shapes.UnknownDim {
		graph.ShapeErrorf(l.name, "input %s has an unknown feature dimension, cannot size the weight", in)
	}
	l.storeInputShapes(inputs)
}

// OutputShape implements graph.Layer: (batch, units), batch preserved.
func (l *Dense) OutputShape() shapes.Shape {
	if l.inputShapes == nil || !l.inputShapes[0].Ok() {
		return shapes.Invalid()
	}
	in := l.inputShapes[0]
	return shapes.Make(in.DType, in.Dim(0), l.units)
}

func (l *Dense) features() int { return l.inputShapes[0].Dim(-1) }

// ParameterSizes implements graph.Layer.
func (l *Dense) ParameterSizes() int {
	if l.inputShapes == nil || !l.inputShapes[0].Ok() {
		return 0
	}
	return l.features()*l.units + l.units
}

// Materialize implements graph.Layer.
func (l *Dense) Materialize(backend backends.Backend) {
	dtype := l.materializeInputShape().DType
	if l.weight == nil {
		l.weight = l.registerParam(graph.MaterializeParameter(
			backend, l.name, "weight", l.weightSpec, shapes.Make(dtype, l.features(), l.units), true))
	}
	if l.bias == nil {
		l.bias = l.registerParam(graph.MaterializeParameter(
			backend, l.name, "bias", l.biasSpec, shapes.Make(dtype, l.units), true))
	}
}

// BuildOutput implements graph.Layer.
func (l *Dense) BuildOutput(ctx *graph.ExecContext, inputs []*tensors.Tensor) *tensors.Tensor {
	backend := ctx.Backend
	out := backend.Add(backend.MatMul(inputs[0], l.weight.Value()), l.bias.Value())
	return l.activation.apply(backend, out)
}

// Clone implements graph.Layer: the clone re-declares the original specs, so tied
// parameters stay tied and initializers are re-sampled.
func (l *Dense) Clone() graph.Layer {
	opts := append(l.cloneOptions(), WithWeight(l.weightSpec), WithBias(l.biasSpec))
	return NewDense(l.units, l.activation, opts...)
}
