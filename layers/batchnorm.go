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

// BatchNorm normalizes activations over the batch, per feature (the last axis):
// gamma * (x - mean) / sqrt(variance + epsilon) + beta.
//
// During training passes it normalizes with the current batch statistics and blends
// them into the running mean/variance -- non-trainable state parameters, updated
// through the layer's pending-updates list. Inference passes normalize with the
// running statistics. Concurrent training passes over a shared network would race on
// that state; the build-then-use model is single-writer.
//
// Gamma and beta accept bound parameters (WithGamma/WithBeta) for weight tying.
type BatchNorm struct {
	Base
	momentum, epsilon float64

	gammaSpec, betaSpec, meanSpec, varianceSpec any
	gamma, beta, runningMean, runningVariance   *graph.Parameter
}

// NewBatchNorm creates a batch-normalization layer. See WithMomentum, WithEpsilon,
// WithGamma, WithBeta, WithRunningMean and WithRunningVariance.
func NewBatchNorm(opts ...Option) *BatchNorm {
	o := collectOptions(opts)
	if o.momentum <= 0 || o.momentum > 1 {
		graph.ConfigErrorf("BatchNorm", "momentum", "must be in (0, 1], got %g", o.momentum)
	}
	if o.epsilon <= 0 {
		graph.ConfigErrorf("BatchNorm", "epsilon", "must be positive, got %g", o.epsilon)
	}
	l := &BatchNorm{
		momentum:     o.momentum,
		epsilon:      o.epsilon,
		gammaSpec:    o.gamma,
		betaSpec:     o.beta,
		meanSpec:     o.runningMean,
		varianceSpec: o.runningVariance,
	}
	if l.gammaSpec == nil {
		l.gammaSpec = initializers.Initializer(initializers.One)
	}
	if l.betaSpec == nil {
		l.betaSpec = initializers.Initializer(initializers.Zero)
	}
	if l.meanSpec == nil {
		l.meanSpec = initializers.Initializer(initializers.Zero)
	}
	if l.varianceSpec == nil {
		l.varianceSpec = initializers.Initializer(initializers.One)
	}
	l.initBase(l, "BatchNorm", 1, 1, o)
	return l
}

// SetInputShapes implements graph.Layer: requires rank >= 2 with a known feature
// (last) dimension.
func (l *BatchNorm) SetInputShapes(inputs []shapes.Shape) {
	in := l.singleInput(inputs)
	if !in.Ok() {
		l.storeInputShapes(inputs)
		return
	}
	if in.Rank() < 2 {
		graph.ShapeErrorf(l.name, "expects at least a rank-2 (batch, features) input, got %s", in)
	}
	if in.Dim(-1) == shapes.UnknownDim {
		graph.ShapeErrorf(l.name, "input %s has an unknown feature dimension, cannot size the statistics", in)
	}
	l.storeInputShapes(inputs)
}

// OutputShape implements graph.Layer: identical to the input shape.
func (l *BatchNorm) OutputShape() shapes.Shape {
	if l.inputShapes == nil {
		return shapes.Invalid()
	}
	return l.inputShapes[0]
}

func (l *BatchNorm) featureShape() shapes.Shape {
	in := l.materializeInputShape()
	return shapes.Make(in.DType, in.Dim(-1))
}

// ParameterSizes implements graph.Layer.
func (l *BatchNorm) ParameterSizes() int {
	if l.inputShapes == nil || !l.inputShapes[0].Ok() {
		return 0
	}
	return 4 * l.inputShapes[0].Dim(-1)
}

// Materialize implements graph.Layer.
func (l *BatchNorm) Materialize(backend backends.Backend) {
	shape := l.featureShape()
	if l.gamma == nil {
		l.gamma = l.registerParam(graph.MaterializeParameter(backend, l.name, "gamma", l.gammaSpec, shape, true))
	}
	if l.beta == nil {
		l.beta = l.registerParam(graph.MaterializeParameter(backend, l.name, "beta", l.betaSpec, shape, true))
	}
	if l.runningMean == nil {
		l.runningMean = l.registerParam(graph.MaterializeParameter(backend, l.name, "running_mean", l.meanSpec, shape, false))
	}
	if l.runningVariance == nil {
		l.runningVariance = l.registerParam(graph.MaterializeParameter(backend, l.name, "running_variance", l.varianceSpec, shape, false))
	}
}

// BuildOutput implements graph.Layer.
func (l *BatchNorm) BuildOutput(ctx *graph.ExecContext, inputs []*tensors.Tensor) *tensors.Tensor {
	backend := ctx.Backend
	x := inputs[0]
	featureAxis := x.Rank() - 1
	if !ctx.Training {
		return backend.Normalize(x, l.runningMean.Value(), l.runningVariance.Value(),
			l.gamma.Value(), l.beta.Value(), l.epsilon, featureAxis)
	}
	mean, variance := backend.Moments(x, featureAxis)
	l.AddUpdate(l.runningMean, backend.Lerp(mean, l.runningMean.Value(), l.momentum))
	l.AddUpdate(l.runningVariance, backend.Lerp(variance, l.runningVariance.Value(), l.momentum))
	return backend.Normalize(x, mean, variance, l.gamma.Value(), l.beta.Value(), l.epsilon, featureAxis)
}

// Clone implements graph.Layer.
func (l *BatchNorm) Clone() graph.Layer {
	opts := append(l.cloneOptions(),
		WithMomentum(l.momentum), WithEpsilon(l.epsilon),
		WithGamma(l.gammaSpec), WithBeta(l.betaSpec),
		WithRunningMean(l.meanSpec), WithRunningVariance(l.varianceSpec))
	return NewBatchNorm(opts...)
}
