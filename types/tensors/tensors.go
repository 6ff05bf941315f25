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

// Package tensors implements the concrete, in-memory multidimensional arrays exchanged
// with the backend at the execution boundary.
//
// The layer-graph machinery itself only manipulates shapes (see types/shapes); tensors
// appear when feeding values to a network, when initializers sample parameter values and
// when backends return results.
package tensors

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/neurago/neurago/types/shapes"
	"github.com/x448/float16"
)

// Supported are the Go types a Tensor can be built from directly. Float16 tensors are
// created by conversion, see Tensor.ConvertTo.
type Supported interface {
	float32 | float64 | int32 | int64
}

// Tensor is a dense multidimensional array of one of the supported dtypes, stored as a
// flat slice in row-major order. Its shape is always fully defined.
//
// Tensors are not thread-safe for mutation; the library never mutates a tensor it did
// not create.
type Tensor struct {
	shape shapes.Shape
	flat  any // []float32, []float64, []int32, []int64 or []float16.Float16
}

// FromFlat creates a Tensor with the given dimensions from a flat slice in row-major
// order. The flat data is copied. It panics if the number of elements doesn't match
// the dimensions.
func FromFlat[T Supported](flat []T, dimensions ...int) *Tensor {
	shape := shapes.Make(dtypes.FromGenericsType[T](), dimensions...)
	if shape.Size() != len(flat) {
		exceptions.Panicf("tensors.FromFlat: shape %s requires %d values, got %d", shape, shape.Size(), len(flat))
	}
	return &Tensor{shape: shape, flat: slices.Clone(flat)}
}

// FromScalar creates a rank-0 Tensor holding the given value.
func FromScalar[T Supported](value T) *Tensor {
	return &Tensor{
		shape: shapes.Make(dtypes.FromGenericsType[T]()),
		flat:  []T{value},
	}
}

// Zeros creates a Tensor of the given shape filled with zeros. The shape must be fully
// defined.
func Zeros(shape shapes.Shape) *Tensor {
	return Full(shape, 0)
}

// Ones creates a Tensor of the given shape filled with ones.
func Ones(shape shapes.Shape) *Tensor {
	return Full(shape, 1)
}

// Full creates a Tensor of the given shape with every element set to value, converted
// to the shape's dtype. The shape must be fully defined.
func Full(shape shapes.Shape, value float64) *Tensor {
	size := shape.Size()
	switch shape.DType {
	case dtypes.Float32:
		flat := make([]float32, size)
		for ii := range flat {
			flat[ii] = float32(value)
		}
		return &Tensor{shape: shape.Clone(), flat: flat}
	case dtypes.Float64:
		flat := make([]float64, size)
		for ii := range flat {
			flat[ii] = value
		}
		return &Tensor{shape: shape.Clone(), flat: flat}
	case dtypes.Int32:
		flat := make([]int32, size)
		for ii := range flat {
			flat[ii] = int32(value)
		}
		return &Tensor{shape: shape.Clone(), flat: flat}
	case dtypes.Int64:
		flat := make([]int64, size)
		for ii := range flat {
			flat[ii] = int64(value)
		}
		return &Tensor{shape: shape.Clone(), flat: flat}
	case dtypes.Float16:
		flat := make([]float16.Float16, size)
		for ii := range flat {
			flat[ii] = float16.Fromfloat32(float32(value))
		}
		return &Tensor{shape: shape.Clone(), flat: flat}
	default:
		exceptions.Panicf("tensors.Full: unsupported dtype %s", shape.DType)
	}
	return nil
}

// Shape of the tensor. Always fully defined.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's elements.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the total number of elements.
func (t *Tensor) Size() int { return t.shape.Size() }

// Flat returns the tensor's underlying flat data. It panics if T doesn't match the
// tensor's dtype. The returned slice is shared with the tensor, not a copy.
func Flat[T Supported](t *Tensor) []T {
	flat, ok := t.flat.([]T)
	if !ok {
		exceptions.Panicf("tensors.Flat[%s] on tensor of dtype %s", dtypes.FromGenericsType[T](), t.DType())
	}
	return flat
}

// Float64Data returns a copy of the tensor's data converted to float64, regardless of
// dtype. It is the lingua franca used by the pure-Go backend.
func (t *Tensor) Float64Data() []float64 {
	out := make([]float64, t.Size())
	switch flat := t.flat.(type) {
	case []float32:
		for ii, v := range flat {
			out[ii] = float64(v)
		}
	case []float64:
		copy(out, flat)
	case []int32:
		for ii, v := range flat {
			out[ii] = float64(v)
		}
	case []int64:
		for ii, v := range flat {
			out[ii] = float64(v)
		}
	case []float16.Float16:
		for ii, v := range flat {
			out[ii] = float64(v.Float32())
		}
	}
	return out
}

// IntData returns a copy of the tensor's data converted to int. It panics for
// non-integer dtypes -- it is meant for index tensors (e.g. embedding lookups).
func (t *Tensor) IntData() []int {
	out := make([]int, t.Size())
	switch flat := t.flat.(type) {
	case []int32:
		for ii, v := range flat {
			out[ii] = int(v)
		}
	case []int64:
		for ii, v := range flat {
			out[ii] = int(v)
		}
	default:
		exceptions.Panicf("Tensor.IntData on tensor of dtype %s: only integer dtypes can be used as indices", t.DType())
	}
	return out
}

// FromFloat64 builds a Tensor of the given dtype and dimensions from float64 data,
// converting each element. It is the counterpart of Tensor.Float64Data.
func FromFloat64(flat []float64, dtype dtypes.DType, dimensions ...int) *Tensor {
	shape := shapes.Make(dtype, dimensions...)
	if shape.Size() != len(flat) {
		exceptions.Panicf("tensors.FromFloat64: shape %s requires %d values, got %d", shape, shape.Size(), len(flat))
	}
	switch dtype {
	case dtypes.Float32:
		data := make([]float32, len(flat))
		for ii, v := range flat {
			data[ii] = float32(v)
		}
		return &Tensor{shape: shape, flat: data}
	case dtypes.Float64:
		return &Tensor{shape: shape, flat: slices.Clone(flat)}
	case dtypes.Int32:
		data := make([]int32, len(flat))
		for ii, v := range flat {
			data[ii] = int32(v)
		}
		return &Tensor{shape: shape, flat: data}
	case dtypes.Int64:
		data := make([]int64, len(flat))
		for ii, v := range flat {
			data[ii] = int64(v)
		}
		return &Tensor{shape: shape, flat: data}
	case dtypes.Float16:
		data := make([]float16.Float16, len(flat))
		for ii, v := range flat {
			data[ii] = float16.Fromfloat32(float32(v))
		}
		return &Tensor{shape: shape, flat: data}
	default:
		exceptions.Panicf("tensors.FromFloat64: unsupported dtype %s", dtype)
	}
	return nil
}

// ConvertTo returns a copy of the tensor converted to the given dtype. Converting to
// the same dtype still copies.
func (t *Tensor) ConvertTo(dtype dtypes.DType) *Tensor {
	return FromFloat64(t.Float64Data(), dtype, t.shape.Dimensions...)
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	return t.ConvertTo(t.DType())
}

// Reshape returns a view-copy of the tensor with new dimensions. The total size must
// match, otherwise it panics.
func (t *Tensor) Reshape(dimensions ...int) *Tensor {
	shape := shapes.Make(t.DType(), dimensions...)
	if shape.Size() != t.Size() {
		exceptions.Panicf("Tensor.Reshape: cannot reshape %s to %s, sizes differ", t.shape, shape)
	}
	t2 := t.Clone()
	t2.shape = shape
	return t2
}

// Equal compares dtype, dimensions and every element for equality.
func (t *Tensor) Equal(other *Tensor) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	return slices.Equal(t.Float64Data(), other.Float64Data())
}

// MaxSizeToPrint limits how many elements Tensor.String prints.
const MaxSizeToPrint = 8

// String implements fmt.Stringer. Large tensors are elided.
func (t *Tensor) String() string {
	var data string
	if t.Size() <= MaxSizeToPrint {
		parts := make([]string, 0, t.Size())
		for _, v := range t.Float64Data() {
			parts = append(parts, fmt.Sprintf("%g", v))
		}
		data = fmt.Sprintf(": [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("Tensor%s%s", t.shape, data)
}
