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
	"github.com/neurago/neurago/types/shapes"
	"github.com/neurago/neurago/types/tensors"
)

// Activation is an enum for the supported activation functions. Dense takes one as
// configuration instead of there being one layer type per activation; the trainable
// PRelu is the exception, see prelu.go.
//
// It converts to snake-format strings (ActivationLeakyRelu -> "leaky_relu") and back
// with ActivationString.
type Activation int

const (
	ActivationNone Activation = iota
	ActivationSigmoid
	ActivationHardSigmoid
	ActivationTanh
	ActivationRelu
	ActivationLeakyRelu
	ActivationElu
	ActivationSoftplus
	ActivationSoftmax
)

//go:generate enumer -type=Activation -trimprefix=Activation -transform=snake -values -text activation.go

// leakyReluSlope is the fixed negative slope of ActivationLeakyRelu. For a trainable
// slope use PRelu.
const leakyReluSlope = 0.01

// apply dispatches the activation kernel on the backend. ActivationNone is a no-op.
func (a Activation) apply(backend backends.Backend, x *tensors.Tensor) *tensors.Tensor {
	switch a {
	case ActivationNone:
		return x
	case ActivationSigmoid:
		return backend.Sigmoid(x)
	case ActivationHardSigmoid:
		return backend.HardSigmoid(x)
	case ActivationTanh:
		return backend.Tanh(x)
	case ActivationRelu:
		return backend.Relu(x)
	case ActivationLeakyRelu:
		return backend.LeakyRelu(x, leakyReluSlope)
	case ActivationElu:
		return backend.Elu(x)
	case ActivationSoftplus:
		return backend.Softplus(x)
	case ActivationSoftmax:
		return backend.Softmax(x, x.Rank()-1)
	}
	return x
}

// validate throws a *ConfigurationError for values outside the enum.
func (a Activation) validate(layerKind string) {
	if !a.IsAActivation() {
		graph.ConfigErrorf(layerKind, "activation", "invalid activation value %d: options are %v",
			int(a), ActivationValues())
	}
}

// ActivationLayer applies an activation function without changing shapes or carrying
// parameters. Useful to post-process a merge layer's output; for the usual
// fully-connected case prefer Dense's activation configuration.
type ActivationLayer struct {
	Base
	activation Activation
}

// NewActivation creates a standalone activation layer.
func NewActivation(activation Activation, opts ...Option) *ActivationLayer {
	activation.validate("Activation")
	l := &ActivationLayer{activation: activation}
	l.initBase(l, "Activation", 1, 1, collectOptions(opts))
	return l
}

// SetInputShapes implements graph.Layer.
func (l *ActivationLayer) SetInputShapes(inputs []shapes.Shape) {
	l.storeInputShapes([]shapes.Shape{l.singleInput(inputs)})
}

// OutputShape implements graph.Layer: identical to the input shape.
func (l *ActivationLayer) OutputShape() shapes.Shape {
	if l.inputShapes == nil {
		return shapes.Invalid()
	}
	return l.inputShapes[0]
}

// BuildOutput implements graph.Layer.
func (l *ActivationLayer) BuildOutput(ctx *graph.ExecContext, inputs []*tensors.Tensor) *tensors.Tensor {
	return l.activation.apply(ctx.Backend, inputs[0])
}

// Clone implements graph.Layer.
func (l *ActivationLayer) Clone() graph.Layer {
	return NewActivation(l.activation, l.cloneOptions()...)
}
