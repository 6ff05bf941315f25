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

package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())
	require.False(t, Shape{}.Ok())

	shape := Make(dtypes.Float32, 4, 3, 2)
	require.True(t, shape.Ok())
	require.Equal(t, 3, shape.Rank())
	require.True(t, shape.IsFullyDefined())
	require.Equal(t, 4*3*2, shape.Size())
	require.Equal(t, 4*4*3*2, int(shape.Memory()))
	require.Equal(t, "(Float32)[4, 3, 2]", shape.String())

	batched := Batched(dtypes.Float32, 10)
	require.Equal(t, 2, batched.Rank())
	require.Equal(t, UnknownDim, batched.Dim(0))
	require.Equal(t, 10, batched.Dim(-1))
	require.False(t, batched.IsFullyDefined())
	require.Equal(t, "(Float32)[?, 10]", batched.String())
	require.Panics(t, func() { batched.Size() })

	require.Panics(t, func() { Make(dtypes.Float32, 0) })
	require.Panics(t, func() { Make(dtypes.Float32, -2) })
}

func TestDimAndAxis(t *testing.T) {
	shape := Make(dtypes.Float64, 4, 3, 2)
	require.Equal(t, 4, shape.Dim(0))
	require.Equal(t, 2, shape.Dim(-1))
	require.Equal(t, 3, shape.Dim(-2))
	require.Panics(t, func() { shape.Dim(3) })
	require.Panics(t, func() { shape.Dim(-4) })

	require.Equal(t, 2, shape.Axis(-1))
	require.Equal(t, 0, shape.Axis(0))
	require.Panics(t, func() { shape.Axis(3) })
}

func TestCompatibleAndMerge(t *testing.T) {
	a := Batched(dtypes.Float32, 10)
	b := Make(dtypes.Float32, 5, 10)
	c := Make(dtypes.Float32, 5, 11)

	require.True(t, a.Compatible(b))
	require.True(t, b.Compatible(a))
	require.False(t, b.Compatible(c))
	require.False(t, a.Compatible(Make(dtypes.Float64, 5, 10)))
	require.False(t, a.Compatible(Make(dtypes.Float32, 10)))

	merged := a.Merge(b)
	require.True(t, merged.Equal(b))
	require.Panics(t, func() { b.Merge(c) })

	// Equal is strict about unknown dimensions, Compatible is not.
	require.False(t, a.Equal(b))
	require.True(t, a.Equal(Batched(dtypes.Float32, 10)))
}
