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
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/neurago/neurago/backends"
	"github.com/neurago/neurago/graph"
	"github.com/neurago/neurago/initializers"
	"github.com/neurago/neurago/types/shapes"
	"github.com/neurago/neurago/types/tensors"
)

// Embedding looks up dense vectors for integer indices: a (batch, n) integer input
// becomes a (batch, n, dim) output, each index replaced by the matching row of the
// [vocabSize, dim] weight table.
type Embedding struct {
	Base
	vocabSize, dim int
	dtype          dtypes.DType

	weightSpec any
	weight     *graph.Parameter
}

// NewEmbedding creates an embedding layer mapping indices in [0, vocabSize) to
// dim-sized vectors. The weight defaults to a uniform initialization; the output
// dtype defaults to Float32, see WithDType.
func NewEmbedding(vocabSize, dim int, opts ...Option) *Embedding {
	if vocabSize < 1 {
		graph.ConfigErrorf("Embedding", "vocabSize", "must be a positive dimension, got %d", vocabSize)
	}
	if dim < 1 {
		graph.ConfigErrorf("Embedding", "dim", "must be a positive dimension, got %d", dim)
	}
	o := collectOptions(opts)
	if !o.dtype.IsFloat() {
		graph.ConfigErrorf("Embedding", "dtype", "embedding vectors must be a float dtype, got %s", o.dtype)
	}
	l := &Embedding{vocabSize: vocabSize, dim: dim, dtype: o.dtype, weightSpec: o.weight}
	if l.weightSpec == nil {
		l.weightSpec = initializers.RandomUniformFn(initializers.NoSeed, -0.05, 0.05)
	}
	l.initBase(l, "Embedding", 1, 1, o)
	return l
}

// SetInputShapes implements graph.Layer: requires an integer-typed input.
func (l *Embedding) SetInputShapes(inputs []shapes.Shape) {
	in := l.singleInput(inputs)
	if !in.Ok() {
		l.storeInputShapes(inputs)
		return
	}
	if in.DType != dtypes.Int32 && in.DType != dtypes.Int64 {
		graph.ShapeErrorf(l.name, "expects an integer index input, got %s", in)
	}
	if in.Rank() < 1 {
		graph.ShapeErrorf(l.name, "expects at least a rank-1 index input, got %s", in)
	}
	l.storeInputShapes(inputs)
}

// OutputShape implements graph.Layer: the input shape with a trailing dim axis,
// converted to the embedding dtype.
func (l *Embedding) OutputShape() shapes.Shape {
	if l.inputShapes == nil || !l.inputShapes[0].Ok() {
		return shapes.Invalid()
	}
	in := l.inputShapes[0]
	dims := make([]int, 0, in.Rank()+1)
	dims = append(dims, in.Dimensions...)
	dims = append(dims, l.dim)
	return shapes.Make(l.dtype, dims...)
}

// ParameterSizes implements graph.Layer.
func (l *Embedding) ParameterSizes() int { return l.vocabSize * l.dim }

// Materialize implements graph.Layer.
func (l *Embedding) Materialize(backend backends.Backend) {
	if l.weight == nil {
		l.weight = l.registerParam(graph.MaterializeParameter(
			backend, l.name, "weight", l.weightSpec, shapes.Make(l.dtype, l.vocabSize, l.dim), true))
	}
}

// BuildOutput implements graph.Layer.
func (l *Embedding) BuildOutput(ctx *graph.ExecContext, inputs []*tensors.Tensor) *tensors.Tensor {
	return ctx.Backend.Gather(l.weight.Value(), inputs[0])
}

// Clone implements graph.Layer.
func (l *Embedding) Clone() graph.Layer {
	opts := append(l.cloneOptions(), WithWeight(l.weightSpec), WithDType(l.dtype))
	return NewEmbedding(l.vocabSize, l.dim, opts...)
}
