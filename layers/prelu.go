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
	"github.com/neurago/neurago/types/xslices"
)

// PRelu is the parametrized rectifier: like a leaky relu, but the negative slope
// alpha is a trainable parameter spanning the input axes selected by WithAlphaAxes
// (the last axis by default). It is the one activation that isn't a plain Activation
// enum value, because it carries a parameter.
type PRelu struct {
	Base
	alphaAxes []int // as configured, possibly negative
	alphaSpec any
	alpha     *graph.Parameter
}

// NewPRelu creates a parametrized-relu layer. Alpha defaults to a constant 0.25 over
// the last axis.
func NewPRelu(opts ...Option) *PRelu {
	o := collectOptions(opts)
	axes := o.alphaAxes
	if len(axes) == 0 {
		axes = []int{-1}
	}
	seen := make(map[int]bool)
	for _, axis := range axes {
		if axis == 0 {
			graph.ConfigErrorf("PRelu", "alphaAxes", "axis 0 corresponds to the batch dimension, alpha cannot span it")
		}
		if seen[axis] {
			graph.ConfigErrorf("PRelu", "alphaAxes", "axis %d repeated", axis)
		}
		seen[axis] = true
	}
	l := &PRelu{alphaAxes: axes, alphaSpec: o.alpha}
	if l.alphaSpec == nil {
		l.alphaSpec = initializers.ConstantFn(0.25)
	}
	l.initBase(l, "PRelu", 1, 1, o)
	return l
}

// SetInputShapes implements graph.Layer: the alpha axes must exist in the input and
// their dimensions must be known.
func (l *PRelu) SetInputShapes(inputs []shapes.Shape) {
	in := l.singleInput(inputs)
	if !in.Ok() {
		l.storeInputShapes(inputs)
		return
	}
	for _, axis := range l.alphaAxes {
		if axis >= in.Rank() || axis < -in.Rank() {
			graph.ShapeErrorf(l.name, "alpha axis %d is out of range for input %s", axis, in)
		}
		if normalized := in.Axis(axis); normalized == 0 {
			graph.ShapeErrorf(l.name, "alpha axis %d resolves to the batch dimension of input %s", axis, in)
		} else if in.Dimensions[normalized] == shapes.UnknownDim {
			graph.ShapeErrorf(l.name, "alpha axis %d of input %s has an unknown dimension", axis, in)
		}
	}
	l.storeInputShapes(inputs)
}

// OutputShape implements graph.Layer: identical to the input shape.
func (l *PRelu) OutputShape() shapes.Shape {
	if l.inputShapes == nil {
		return shapes.Invalid()
	}
	return l.inputShapes[0]
}

func (l *PRelu) normalizedAxes() []int {
	in := l.inputShapes[0]
	return xslices.Map(l.alphaAxes, func(axis int) int { return in.Axis(axis) })
}

func (l *PRelu) alphaShape() shapes.Shape {
	in := l.inputShapes[0]
	dims := xslices.Map(l.normalizedAxes(), func(axis int) int { return in.Dimensions[axis] })
	return shapes.Make(in.DType, dims...)
}

// ParameterSizes implements graph.Layer.
func (l *PRelu) ParameterSizes() int {
	if l.inputShapes == nil || !l.inputShapes[0].Ok() {
		return 0
	}
	return l.alphaShape().Size()
}

// Materialize implements graph.Layer.
func (l *PRelu) Materialize(backend backends.Backend) {
	if l.alpha == nil {
		l.materializeInputShape()
		l.alpha = l.registerParam(graph.MaterializeParameter(
			backend, l.name, "alpha", l.alphaSpec, l.alphaShape(), true))
	}
}

// BuildOutput implements graph.Layer.
func (l *PRelu) BuildOutput(ctx *graph.ExecContext, inputs []*tensors.Tensor) *tensors.Tensor {
	return ctx.Backend.PRelu(inputs[0], l.alpha.Value(), l.normalizedAxes())
}

// Clone implements graph.Layer.
func (l *PRelu) Clone() graph.Layer {
	opts := append(l.cloneOptions(), WithAlpha(l.alphaSpec), WithAlphaAxes(l.alphaAxes...))
	return NewPRelu(opts...)
}
