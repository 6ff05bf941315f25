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

// Package initializers includes several weight initializers, used as the default values
// of layer parameters. They are sampled exactly once per parameter, when the network is
// materialized.
package initializers

import (
	"math"
	"math/rand"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/neurago/neurago/types/shapes"
	"github.com/neurago/neurago/types/tensors"
)

// Initializer samples an initial value for a parameter of the given shape. The shape is
// always fully defined by the time an initializer runs.
type Initializer func(shape shapes.Shape) *tensors.Tensor

// NoSeed asks for a seed taken from the nanosecond clock.
const NoSeed = int64(0)

func newRng(initialSeed int64) *rand.Rand {
	if initialSeed == NoSeed {
		initialSeed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(initialSeed))
}

func checkFloat(name string, shape shapes.Shape) {
	if !shape.DType.IsFloat() {
		exceptions.Panicf("cannot initialize non-float parameter with %s -- shape requested %s", name, shape)
	}
}

// Zero initializes parameters with zero.
func Zero(shape shapes.Shape) *tensors.Tensor {
	return tensors.Zeros(shape)
}

// One initializes parameters with one.
func One(shape shapes.Shape) *tensors.Tensor {
	return tensors.Ones(shape)
}

// ConstantFn returns an initializer that fills the parameter with the given value.
func ConstantFn(value float64) Initializer {
	return func(shape shapes.Shape) *tensors.Tensor {
		return tensors.Full(shape, value)
	}
}

// RandomNormalFn returns an initializer that generates random normal values with the
// given standard deviation and mean set to 0.
//
// The parameter initialSeed seeds the random number generator. If it is set to 0
// (NoSeed), a random seed is instead generated (from the nanosecond clock).
func RandomNormalFn(initialSeed int64, stddev float64) Initializer {
	rng := newRng(initialSeed)
	return func(shape shapes.Shape) *tensors.Tensor {
		checkFloat("RandomNormal", shape)
		flat := make([]float64, shape.Size())
		for ii := range flat {
			flat[ii] = rng.NormFloat64() * stddev
		}
		return tensors.FromFloat64(flat, shape.DType, shape.Dimensions...)
	}
}

// RandomUniformFn returns an initializer that generates random uniform values from
// [min, max). Seeding works as in RandomNormalFn.
func RandomUniformFn(initialSeed int64, min, max float64) Initializer {
	rng := newRng(initialSeed)
	return func(shape shapes.Shape) *tensors.Tensor {
		checkFloat("RandomUniform", shape)
		flat := make([]float64, shape.Size())
		for ii := range flat {
			flat[ii] = min + rng.Float64()*(max-min)
		}
		return tensors.FromFloat64(flat, shape.DType, shape.Dimensions...)
	}
}

// fans computes the fan-in and fan-out of a parameter shape: for rank >= 2 the first
// axis is fan-in and the last fan-out; rank-1 and scalar parameters use the size.
func fans(shape shapes.Shape) (fanIn, fanOut float64) {
	if shape.Rank() >= 2 {
		return float64(shape.Dim(0)), float64(shape.Dim(-1))
	}
	size := float64(shape.Size())
	return size, size
}

// XavierNormalFn returns the Glorot/Xavier normal initializer: samples a normal with
// stddev sqrt(2 / (fanIn + fanOut)). The usual default for weights feeding saturating
// activations (tanh, sigmoid).
func XavierNormalFn(initialSeed int64) Initializer {
	rng := newRng(initialSeed)
	return func(shape shapes.Shape) *tensors.Tensor {
		checkFloat("XavierNormal", shape)
		fanIn, fanOut := fans(shape)
		stddev := math.Sqrt(2.0 / (fanIn + fanOut))
		flat := make([]float64, shape.Size())
		for ii := range flat {
			flat[ii] = rng.NormFloat64() * stddev
		}
		return tensors.FromFloat64(flat, shape.DType, shape.Dimensions...)
	}
}

// XavierUniformFn returns the Glorot/Xavier uniform initializer: samples uniformly from
// [-limit, limit] with limit sqrt(6 / (fanIn + fanOut)).
func XavierUniformFn(initialSeed int64) Initializer {
	rng := newRng(initialSeed)
	return func(shape shapes.Shape) *tensors.Tensor {
		checkFloat("XavierUniform", shape)
		fanIn, fanOut := fans(shape)
		limit := math.Sqrt(6.0 / (fanIn + fanOut))
		flat := make([]float64, shape.Size())
		for ii := range flat {
			flat[ii] = -limit + rng.Float64()*2*limit
		}
		return tensors.FromFloat64(flat, shape.DType, shape.Dimensions...)
	}
}

// HeNormalFn returns the He initializer, a normal with stddev gain*sqrt(2/fanIn),
// usually preferred for relu-family activations. Use gain=1 for the standard form.
func HeNormalFn(initialSeed int64, gain float64) Initializer {
	rng := newRng(initialSeed)
	return func(shape shapes.Shape) *tensors.Tensor {
		checkFloat("HeNormal", shape)
		fanIn, _ := fans(shape)
		stddev := gain * math.Sqrt(2.0/fanIn)
		flat := make([]float64, shape.Size())
		for ii := range flat {
			flat[ii] = rng.NormFloat64() * stddev
		}
		return tensors.FromFloat64(flat, shape.DType, shape.Dimensions...)
	}
}
