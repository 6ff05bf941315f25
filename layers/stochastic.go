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

// The stochastic layers only act during training passes (ExecContext.Training); on
// inference they pass their input through unchanged.

// Dropout zeroes each element with the configured probability and rescales the
// survivors so the expected activation stays constant.
type Dropout struct {
	Base
	proba float64
}

// NewDropout creates a dropout layer. proba is the drop probability, a proper
// fraction in [0, 1).
func NewDropout(proba float64, opts ...Option) *Dropout {
	if proba < 0 || proba >= 1 {
		graph.ConfigErrorf("Dropout", "proba", "must be a proper fraction in [0, 1), got %g", proba)
	}
	l := &Dropout{proba: proba}
	l.initBase(l, "Dropout", 1, 1, collectOptions(opts))
	return l
}

// SetInputShapes implements graph.Layer.
func (l *Dropout) SetInputShapes(inputs []shapes.Shape) {
	l.storeInputShapes([]shapes.Shape{l.singleInput(inputs)})
}

// OutputShape implements graph.Layer: identical to the input shape.
func (l *Dropout) OutputShape() shapes.Shape {
	if l.inputShapes == nil {
		return shapes.Invalid()
	}
	return l.inputShapes[0]
}

// BuildOutput implements graph.Layer.
func (l *Dropout) BuildOutput(ctx *graph.ExecContext, inputs []*tensors.Tensor) *tensors.Tensor {
	if !ctx.Training || l.proba == 0 {
		return inputs[0]
	}
	return ctx.Backend.Dropout(inputs[0], l.proba)
}

// Clone implements graph.Layer.
func (l *Dropout) Clone() graph.Layer {
	return NewDropout(l.proba, l.cloneOptions()...)
}

// GaussianNoise adds elementwise gaussian noise during training passes.
type GaussianNoise struct {
	Base
	mean, stddev float64
}

// NewGaussianNoise creates a gaussian-noise layer with the given noise mean and
// standard deviation; stddev must be positive.
func NewGaussianNoise(mean, stddev float64, opts ...Option) *GaussianNoise {
	if stddev <= 0 {
		graph.ConfigErrorf("GaussianNoise", "stddev", "must be positive, got %g", stddev)
	}
	l := &GaussianNoise{mean: mean, stddev: stddev}
	l.initBase(l, "GaussianNoise", 1, 1, collectOptions(opts))
	return l
}

// SetInputShapes implements graph.Layer.
func (l *GaussianNoise) SetInputShapes(inputs []shapes.Shape) {
	l.storeInputShapes([]shapes.Shape{l.singleInput(inputs)})
}

// OutputShape implements graph.Layer: identical to the input shape.
func (l *GaussianNoise) OutputShape() shapes.Shape {
	if l.inputShapes == nil {
		return shapes.Invalid()
	}
	return l.inputShapes[0]
}

// BuildOutput implements graph.Layer.
func (l *GaussianNoise) BuildOutput(ctx *graph.ExecContext, inputs []*tensors.Tensor) *tensors.Tensor {
	if !ctx.Training {
		return inputs[0]
	}
	return ctx.Backend.GaussianNoise(inputs[0], l.mean, l.stddev)
}

// Clone implements graph.Layer.
func (l *GaussianNoise) Clone() graph.Layer {
	return NewGaussianNoise(l.mean, l.stddev, l.cloneOptions()...)
}
