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
	"fmt"
	"strings"

	"github.com/neurago/neurago/graph"
	"github.com/neurago/neurago/types/shapes"
	"github.com/neurago/neurago/types/tensors"
)

// The merge layers: nodes with several predecessors combining their outputs. Their
// input order is the order in which edges were joined -- for parallel branch lists,
// the branch list's order.

// Concatenate merges its inputs along one axis: every other dimension must agree
// across inputs, the concatenation-axis dimensions must all be known, and the output
// dimension on that axis is their sum.
type Concatenate struct {
	Base
	axis int // as configured, possibly negative
}

// NewConcatenate creates a concatenation merge along the given axis; negative values
// count from the last axis, so -1 concatenates features.
func NewConcatenate(axis int, opts ...Option) *Concatenate {
	if axis == 0 {
		graph.ConfigErrorf("Concatenate", "axis", "cannot concatenate along axis 0, the batch dimension")
	}
	l := &Concatenate{axis: axis}
	l.initBase(l, "Concatenate", 2, graph.UnlimitedInputs, collectOptions(opts))
	return l
}

// SetInputShapes implements graph.Layer, enforcing the concatenation shape law. The
// error lists the inputs (by position) that disagree with the first one.
func (l *Concatenate) SetInputShapes(inputs []shapes.Shape) {
	if len(inputs) < 2 {
		graph.ShapeErrorf(l.name, "requires at least 2 inputs, got %d", len(inputs))
	}
	for _, in := range inputs {
		if !in.Ok() {
			l.storeInputShapes(inputs)
			return
		}
	}
	first := inputs[0]
	axis := first.Axis(l.axis)
	var offending []string
	for ii, in := range inputs[1:] {
		if in.DType != first.DType || in.Rank() != first.Rank() {
			offending = append(offending, fmt.Sprintf("#%d (%s)", ii+1, in))
			continue
		}
		for a := 0; a < in.Rank(); a++ {
			if a == axis {
				continue
			}
			if !shapes.DimsCompatible(in.Dimensions[a], first.Dimensions[a]) {
				offending = append(offending, fmt.Sprintf("#%d (%s)", ii+1, in))
				break
			}
		}
	}
	if len(offending) > 0 {
		graph.ShapeErrorf(l.name, "inputs %s are incompatible with input #0 (%s) outside the concatenation axis %d",
			strings.Join(offending, ", "), first, axis)
	}
	for ii, in := range inputs {
		if in.Dimensions[axis] == shapes.UnknownDim {
			graph.ShapeErrorf(l.name, "input #%d (%s) has an unknown dimension on the concatenation axis %d",
				ii, in, axis)
		}
	}
	l.storeInputShapes(inputs)
}

// OutputShape implements graph.Layer: merged non-axis dimensions, summed axis
// dimension.
func (l *Concatenate) OutputShape() shapes.Shape {
	if l.inputShapes == nil {
		return shapes.Invalid()
	}
	for _, in := range l.inputShapes {
		if !in.Ok() {
			return shapes.Invalid()
		}
	}
	out := l.inputShapes[0].Clone()
	axis := out.Axis(l.axis)
	for _, in := range l.inputShapes[1:] {
		for a := range out.Dimensions {
			if a == axis {
				out.Dimensions[a] += in.Dimensions[a]
			} else if out.Dimensions[a] == shapes.UnknownDim {
				out.Dimensions[a] = in.Dimensions[a]
			}
		}
	}
	return out
}

// BuildOutput implements graph.Layer.
func (l *Concatenate) BuildOutput(ctx *graph.ExecContext, inputs []*tensors.Tensor) *tensors.Tensor {
	return ctx.Backend.Concat(inputs, inputs[0].Shape().Axis(l.axis))
}

// Clone implements graph.Layer.
func (l *Concatenate) Clone() graph.Layer {
	return NewConcatenate(l.axis, l.cloneOptions()...)
}

// Elementwise merges its inputs with an elementwise sum or product; all input shapes
// must be compatible. The classic residual connection is
// Join(Parallel(identityBranch, transformedBranch), NewAdd()).
type Elementwise struct {
	Base
	multiply bool
}

// NewAdd creates an elementwise-sum merge layer.
func NewAdd(opts ...Option) *Elementwise {
	l := &Elementwise{}
	l.initBase(l, "Add", 2, graph.UnlimitedInputs, collectOptions(opts))
	return l
}

// NewMultiply creates an elementwise-product merge layer.
func NewMultiply(opts ...Option) *Elementwise {
	l := &Elementwise{multiply: true}
	l.initBase(l, "Multiply", 2, graph.UnlimitedInputs, collectOptions(opts))
	return l
}

// SetInputShapes implements graph.Layer: all inputs must have compatible shapes.
func (l *Elementwise) SetInputShapes(inputs []shapes.Shape) {
	if len(inputs) < 2 {
		graph.ShapeErrorf(l.name, "requires at least 2 inputs, got %d", len(inputs))
	}
	first := inputs[0]
	for ii, in := range inputs[1:] {
		if !in.Ok() || !first.Ok() {
			continue
		}
		if !in.Compatible(first) {
			graph.ShapeErrorf(l.name, "input #%d (%s) is not elementwise-compatible with input #0 (%s)",
				ii+1, in, first)
		}
	}
	l.storeInputShapes(inputs)
}

// OutputShape implements graph.Layer: the merge of all input shapes.
func (l *Elementwise) OutputShape() shapes.Shape {
	if l.inputShapes == nil {
		return shapes.Invalid()
	}
	out := shapes.Invalid()
	for _, in := range l.inputShapes {
		if !in.Ok() {
			return shapes.Invalid()
		}
		if !out.Ok() {
			out = in.Clone()
		} else {
			out = out.Merge(in)
		}
	}
	return out
}

// BuildOutput implements graph.Layer.
func (l *Elementwise) BuildOutput(ctx *graph.ExecContext, inputs []*tensors.Tensor) *tensors.Tensor {
	out := inputs[0]
	for _, in := range inputs[1:] {
		if l.multiply {
			out = ctx.Backend.Mul(out, in)
		} else {
			out = ctx.Backend.Add(out, in)
		}
	}
	return out
}

// Clone implements graph.Layer.
func (l *Elementwise) Clone() graph.Layer {
	if l.multiply {
		return NewMultiply(l.cloneOptions()...)
	}
	return NewAdd(l.cloneOptions()...)
}

// GatedAverage merges expert branches weighted by a gating branch: input #0 is the
// gate with shape (batch, n), inputs #1..#n are the experts, all with compatible
// shapes and matching leading (batch) dimension. The output is the gate-weighted sum
// of the experts. See architectures.MixtureOfExperts for the usual wiring.
type GatedAverage struct {
	Base
}

// NewGatedAverage creates a gated-average merge layer.
func NewGatedAverage(opts ...Option) *GatedAverage {
	l := &GatedAverage{}
	l.initBase(l, "GatedAverage", 3, graph.UnlimitedInputs, collectOptions(opts))
	return l
}

// SetInputShapes implements graph.Layer.
func (l *GatedAverage) SetInputShapes(inputs []shapes.Shape) {
	gate := inputs[0]
	experts := inputs[1:]
	if gate.Ok() {
		if gate.Rank() != 2 {
			graph.ShapeErrorf(l.name, "gate input must be rank-2 (batch, experts), got %s", gate)
		}
		if gate.Dim(-1) != shapes.UnknownDim && gate.Dim(-1) != len(experts) {
			graph.ShapeErrorf(l.name, "gate produces %d weights for %d expert inputs", gate.Dim(-1), len(experts))
		}
	}
	for ii, in := range experts[1:] {
		if !in.Ok() || !experts[0].Ok() {
			continue
		}
		if !in.Compatible(experts[0]) {
			graph.ShapeErrorf(l.name, "expert input #%d (%s) is not compatible with expert input #0 (%s)",
				ii+1, in, experts[0])
		}
	}
	l.storeInputShapes(inputs)
}

// OutputShape implements graph.Layer: the merged expert shape.
func (l *GatedAverage) OutputShape() shapes.Shape {
	if l.inputShapes == nil {
		return shapes.Invalid()
	}
	out := shapes.Invalid()
	for _, in := range l.inputShapes[1:] {
		if !in.Ok() {
			return shapes.Invalid()
		}
		if !out.Ok() {
			out = in.Clone()
		} else {
			out = out.Merge(in)
		}
	}
	return out
}

// BuildOutput implements graph.Layer.
func (l *GatedAverage) BuildOutput(ctx *graph.ExecContext, inputs []*tensors.Tensor) *tensors.Tensor {
	backend := ctx.Backend
	gate := inputs[0]
	experts := inputs[1:]
	var out *tensors.Tensor
	for ii, expert := range experts {
		weighted := backend.ScaleRows(expert, backend.Slice(gate, 1, ii))
		if ii == 0 {
			out = weighted
		} else {
			out = backend.Add(out, weighted)
		}
	}
	return out
}

// Clone implements graph.Layer.
func (l *GatedAverage) Clone() graph.Layer {
	return NewGatedAverage(l.cloneOptions()...)
}
