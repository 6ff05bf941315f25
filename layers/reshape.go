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

// Reshape reorganizes the non-batch axes of its input into the configured
// dimensions, preserving the batch (leading) axis. One target dimension may be -1,
// inferred from the remaining size; all non-batch input dimensions must be known.
type Reshape struct {
	Base
	targetDims []int // non-batch dimensions; at most one -1
}

// NewReshape creates a reshape layer with the given non-batch target dimensions.
func NewReshape(dims []int, opts ...Option) *Reshape {
	if len(dims) == 0 {
		graph.ConfigErrorf("Reshape", "dims", "at least one target dimension is required")
	}
	inferred := 0
	for _, dim := range dims {
		if dim == -1 {
			inferred++
		} else if dim < 1 {
			graph.ConfigErrorf("Reshape", "dims", "dimensions must be positive or -1 (inferred), got %d", dim)
		}
	}
	if inferred > 1 {
		graph.ConfigErrorf("Reshape", "dims", "only one dimension can be inferred (-1), got %v", dims)
	}
	l := &Reshape{targetDims: dims}
	l.initBase(l, "Reshape", 1, 1, collectOptions(opts))
	return l
}

// NewFlatten creates a reshape layer that flattens all non-batch axes into one:
// (batch, d1, ..., dn) -> (batch, d1*...*dn).
func NewFlatten(opts ...Option) *Reshape {
	return NewReshape([]int{-1}, opts...)
}

// SetInputShapes implements graph.Layer.
func (l *Reshape) SetInputShapes(inputs []shapes.Shape) {
	in := l.singleInput(inputs)
	if !in.Ok() {
		l.storeInputShapes(inputs)
		return
	}
	if in.Rank() < 2 {
		graph.ShapeErrorf(l.name, "expects at least a rank-2 (batch, ...) input, got %s", in)
	}
	available := 1
	for _, dim := range in.Dimensions[1:] {
		if dim == shapes.UnknownDim {
			graph.ShapeErrorf(l.name, "input %s has unknown non-batch dimensions, cannot reshape", in)
		}
		available *= dim
	}
	required := 1
	for _, dim := range l.targetDims {
		if dim != -1 {
			required *= dim
		}
	}
	hasInferred := false
	for _, dim := range l.targetDims {
		hasInferred = hasInferred || dim == -1
	}
	if hasInferred {
		if available%required != 0 {
			graph.ShapeErrorf(l.name, "cannot infer dimension: input %s has %d non-batch elements, not divisible by %d",
				in, available, required)
		}
	} else if available != required {
		graph.ShapeErrorf(l.name, "input %s has %d non-batch elements, target dimensions %v require %d",
			in, available, l.targetDims, required)
	}
	l.storeInputShapes(inputs)
}

// OutputShape implements graph.Layer.
func (l *Reshape) OutputShape() shapes.Shape {
	if l.inputShapes == nil || !l.inputShapes[0].Ok() {
		return shapes.Invalid()
	}
	in := l.inputShapes[0]
	available := 1
	for _, dim := range in.Dimensions[1:] {
		available *= dim
	}
	dims := make([]int, 0, len(l.targetDims)+1)
	dims = append(dims, in.Dim(0))
	known := 1
	for _, dim := range l.targetDims {
		if dim != -1 {
			known *= dim
		}
	}
	for _, dim := range l.targetDims {
		if dim == -1 {
			dim = available / known
		}
		dims = append(dims, dim)
	}
	return shapes.Make(in.DType, dims...)
}

// BuildOutput implements graph.Layer.
func (l *Reshape) BuildOutput(ctx *graph.ExecContext, inputs []*tensors.Tensor) *tensors.Tensor {
	x := inputs[0]
	out := l.OutputShape().Clone()
	out.Dimensions[0] = x.Shape().Dim(0) // the concrete batch size
	return ctx.Backend.Reshape(x, out.Dimensions...)
}

// Clone implements graph.Layer.
func (l *Reshape) Clone() graph.Layer {
	dims := make([]int, len(l.targetDims))
	copy(dims, l.targetDims)
	return NewReshape(dims, l.cloneOptions()...)
}
