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

// Package shapes defines Shape and associated tools.
//
// Shape represents the rank, dimensions and DType either of a concrete Tensor or of the
// expected value of a layer in a network, in which case some of the dimensions may still
// be unknown -- notably the leading (batch) dimension, which by convention is only defined
// when a concrete batch of values is fed to the network.
//
// DType indicates the type of the unit element of a Tensor and is defined in
// github.com/gomlx/gopjrt/dtypes. Float16 support uses the github.com/x448/float16
// implementation.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a Tensor.
//   - Axis: the index of a dimension. Plural axes. Negative values are accepted by most
//     functions and count from the end, so axis=-1 refers to the last axis.
//   - Dimension: the size of the Tensor in one of its axes. The special value UnknownDim
//     marks a dimension whose size is not yet known.
//   - Fully defined: a shape with no unknown dimensions. Only fully defined shapes can be
//     materialized into concrete tensors.
//
// Example: a network input holding batches of 10 features has shape `(Float32)[?, 10]`,
// created with `shapes.Batched(dtypes.Float32, 10)`. A concrete batch of 5 examples fed to
// it has shape `(Float32)[5, 10]`, created with `shapes.Make(dtypes.Float32, 5, 10)`.
package shapes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// UnknownDim marks a dimension whose size is not yet known. The leading (batch)
// dimension of layer shapes is conventionally unknown until execution time.
const UnknownDim = -1

// Shape represents the shape of either a concrete Tensor or the expected input/output
// value of a layer, in which case dimensions may be UnknownDim.
//
// Use Make or Batched to create one. The zero value is an invalid shape (Ok() == false),
// used to represent "not yet known" shapes, e.g. the output shape of a layer whose input
// shape hasn't been set.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a Shape with the given dimensions. Dimensions must be positive or
// UnknownDim, otherwise it panics.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim <= 0 && dim != UnknownDim {
			exceptions.Panicf("shapes.Make(%s): dimensions must be positive or UnknownDim, got %v", dtype, dimensions)
		}
	}
	return s
}

// Batched returns a Shape with an unknown leading (batch) dimension followed by the
// given dimensions. It is the conventional shape of layer inputs/outputs.
func Batched(dtype dtypes.DType, dimensions ...int) Shape {
	return Make(dtype, append([]int{UnknownDim}, dimensions...)...)
}

// Invalid returns an invalid shape: Invalid().Ok() == false.
func Invalid() Shape { return Shape{DType: dtypes.InvalidDType} }

// Ok returns whether this is a valid Shape. The zero value Shape{} is invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape has no dimensions (rank 0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// Dim returns the dimension of the given axis. Negative axis values count from the
// end, so axis=-1 refers to the last axis. It panics for an out-of-bounds axis.
func (s Shape) Dim(axis int) int {
	adjusted := axis
	if adjusted < 0 {
		adjusted += s.Rank()
	}
	if adjusted < 0 || adjusted >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjusted]
}

// Axis normalizes a possibly negative axis to the [0, rank) range. It panics if the
// axis is out-of-bounds for the shape's rank.
func (s Shape) Axis(axis int) int {
	adjusted := axis
	if adjusted < 0 {
		adjusted += s.Rank()
	}
	if adjusted < 0 || adjusted >= s.Rank() {
		exceptions.Panicf("Shape.Axis(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return adjusted
}

// IsFullyDefined returns whether the shape is valid and has no unknown dimensions.
func (s Shape) IsFullyDefined() bool {
	if !s.Ok() {
		return false
	}
	return !slices.Contains(s.Dimensions, UnknownDim)
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// String implements fmt.Stringer, pretty-printing the shape with "?" marking
// unknown dimensions: e.g. "(Float32)[?, 10]".
func (s Shape) String() string {
	if !s.Ok() {
		return "(invalid shape)"
	}
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	parts := make([]string, 0, s.Rank())
	for _, dim := range s.Dimensions {
		if dim == UnknownDim {
			parts = append(parts, "?")
		} else {
			parts = append(parts, fmt.Sprintf("%d", dim))
		}
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, ", "))
}

// Size returns the number of elements of DType needed for this shape, the product of
// all dimensions. It panics if the shape is not fully defined.
func (s Shape) Size() (size int) {
	if !s.IsFullyDefined() {
		exceptions.Panicf("Shape.Size() requires a fully defined shape, got %s", s)
	}
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the number of bytes needed to store an array of the given shape.
func (s Shape) Memory() uintptr {
	return s.DType.Memory() * uintptr(s.Size())
}

// Equal compares two shapes for strict equality: dtype and dimensions, with unknown
// dimensions only matching unknown dimensions.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType {
		return false
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// DimsCompatible reports whether two dimension values are compatible: they are equal,
// or at least one of them is UnknownDim.
func DimsCompatible(a, b int) bool {
	return a == b || a == UnknownDim || b == UnknownDim
}

// Compatible compares two shapes for compatibility: same dtype, same rank, and every
// pair of dimensions equal or with at least one of them unknown.
func (s Shape) Compatible(s2 Shape) bool {
	if s.DType != s2.DType || s.Rank() != s2.Rank() {
		return false
	}
	for axis, dim := range s.Dimensions {
		if !DimsCompatible(dim, s2.Dimensions[axis]) {
			return false
		}
	}
	return true
}

// Merge combines two compatible shapes, taking the known dimension wherever one of the
// two is unknown. It panics if the shapes are not compatible; check Compatible first
// when incompatibility is an expected condition.
func (s Shape) Merge(s2 Shape) Shape {
	if !s.Compatible(s2) {
		exceptions.Panicf("Shape.Merge: shapes %s and %s are not compatible", s, s2)
	}
	merged := s.Clone()
	for axis, dim := range merged.Dimensions {
		if dim == UnknownDim {
			merged.Dimensions[axis] = s2.Dimensions[axis]
		}
	}
	return merged
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{DType: s.DType, Dimensions: slices.Clone(s.Dimensions)}
}

// HasShape is an interface for anything that has an associated Shape -- tensors,
// parameters and shapes themselves implement it.
type HasShape interface {
	Shape() Shape
}
