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
	"github.com/neurago/neurago/graph"
	"github.com/neurago/neurago/types/shapes"
	"github.com/neurago/neurago/types/tensors"
)

// Input is the placeholder layer where tensors are fed into a network. It is the only
// layer that declares its input shape at construction; every other layer receives its
// shape through propagation.
//
// Joined after another layer, an Input acts as a shape assertion: the predecessor's
// output shape must be compatible with the declared one. That is what lets a shared
// Input be re-joined in front of several pre-built branches.
type Input struct {
	Base
	declared shapes.Shape
}

// NewInput creates a placeholder for batches of feature vectors: shape
// (batch, features) with an unknown batch dimension. The dtype defaults to Float32,
// see WithDType.
func NewInput(features int, opts ...Option) *Input {
	o := collectOptions(opts)
	if features < 1 {
		graph.ConfigErrorf("Input", "features", "must be a positive dimension, got %d", features)
	}
	return newInputShaped(shapes.Batched(o.dtype, features), o)
}

// NewInputShaped creates a placeholder with an arbitrary declared shape, possibly
// with unknown dimensions beyond the batch one.
func NewInputShaped(shape shapes.Shape, opts ...Option) *Input {
	if !shape.Ok() {
		graph.ConfigErrorf("Input", "shape", "declared shape is invalid")
	}
	return newInputShaped(shape, collectOptions(opts))
}

func newInputShaped(shape shapes.Shape, o *options) *Input {
	l := &Input{declared: shape}
	l.initBase(l, "Input", 0, 1, o)
	return l
}

// SetInputShapes implements graph.Layer: the predecessor's output shape must be
// compatible with the declared shape, and the merged shape (known dimensions win)
// becomes the output.
func (l *Input) SetInputShapes(inputs []shapes.Shape) {
	in := l.singleInput(inputs)
	if !in.Ok() {
		l.storeInputShapes(inputs)
		return
	}
	if !in.Compatible(l.declared) {
		graph.ShapeErrorf(l.name, "declared shape %s, connected to an input of shape %s", l.declared, in)
	}
	l.declared = l.declared.Merge(in)
	l.storeInputShapes(inputs)
}

// OutputShape implements graph.Layer.
func (l *Input) OutputShape() shapes.Shape { return l.declared }

// BuildOutput implements graph.Layer: it checks the tensor against the declared
// shape and passes it through.
func (l *Input) BuildOutput(ctx *graph.ExecContext, inputs []*tensors.Tensor) *tensors.Tensor {
	x := inputs[0]
	if !x.Shape().Compatible(l.declared) {
		graph.ShapeErrorf(l.name, "fed tensor of shape %s, declared shape is %s", x.Shape(), l.declared)
	}
	return x
}

// Clone implements graph.Layer.
func (l *Input) Clone() graph.Layer {
	return NewInputShaped(l.declared.Clone(), l.cloneOptions()...)
}
