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

package tensors

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/neurago/neurago/types/shapes"
	"github.com/stretchr/testify/require"
)

func TestFromFlat(t *testing.T) {
	tensor := FromFlat([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	require.Equal(t, dtypes.Float32, tensor.DType())
	require.Equal(t, 2, tensor.Rank())
	require.Equal(t, 6, tensor.Size())
	require.Equal(t, []float32{1, 2, 3, 4, 5, 6}, Flat[float32](tensor))
	require.Panics(t, func() { Flat[float64](tensor) })
	require.Panics(t, func() { FromFlat([]float32{1, 2, 3}, 2, 3) })
}

func TestFullAndZeros(t *testing.T) {
	tensor := Full(shapes.Make(dtypes.Float64, 2, 2), 3.5)
	require.Equal(t, []float64{3.5, 3.5, 3.5, 3.5}, Flat[float64](tensor))

	zeros := Zeros(shapes.Make(dtypes.Int32, 3))
	require.Equal(t, []int32{0, 0, 0}, Flat[int32](zeros))

	require.Panics(t, func() { Zeros(shapes.Batched(dtypes.Float32, 3)) })
}

func TestConversions(t *testing.T) {
	tensor := FromFlat([]int32{1, 2, 3}, 3)
	require.Equal(t, []float64{1, 2, 3}, tensor.Float64Data())
	require.Equal(t, []int{1, 2, 3}, tensor.IntData())

	asF32 := tensor.ConvertTo(dtypes.Float32)
	require.Equal(t, []float32{1, 2, 3}, Flat[float32](asF32))

	floats := FromFlat([]float32{1.5, 2.5}, 2)
	require.Panics(t, func() { floats.IntData() })

	// Float16 round-trips through conversion.
	half := floats.ConvertTo(dtypes.Float16)
	require.Equal(t, dtypes.Float16, half.DType())
	require.Equal(t, []float64{1.5, 2.5}, half.Float64Data())
}

func TestReshapeAndEqual(t *testing.T) {
	tensor := FromFlat([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	reshaped := tensor.Reshape(3, 2)
	require.Equal(t, []int{3, 2}, reshaped.Shape().Dimensions)
	require.Panics(t, func() { tensor.Reshape(4, 2) })

	require.True(t, tensor.Equal(FromFlat([]float64{1, 2, 3, 4, 5, 6}, 2, 3)))
	require.False(t, tensor.Equal(reshaped))
	require.False(t, tensor.Equal(FromFlat([]float64{1, 2, 3, 4, 5, 7}, 2, 3)))
}
