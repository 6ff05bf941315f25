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

// Package layers implements the concrete graph.Layer types: Input placeholders, Dense
// (activation-parameterized), standalone Activation, PRelu, the merge layers
// (Concatenate, Elementwise, GatedAverage), the stochastic layers (Dropout,
// GaussianNoise), BatchNorm, Reshape and Embedding.
//
// Every constructor validates its configuration eagerly, throwing a
// *graph.ConfigurationError naming the offending option, and registers the new layer
// in a Session (graph.Default() unless WithSession is given) under a unique name.
package layers

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/neurago/neurago/backends"
	"github.com/neurago/neurago/graph"
	"github.com/neurago/neurago/types/shapes"
	"github.com/neurago/neurago/types/tensors"
)

// options collects the configuration shared by layer constructors. Each layer reads
// only the fields that apply to it.
type options struct {
	name    string
	session *graph.Session

	// Parameter specs: an initializers.Initializer, a *tensors.Tensor, a scalar or
	// an already-bound *graph.Parameter (weight tying).
	weight, bias                              any
	gamma, beta, runningMean, runningVariance any
	alpha                                     any

	alphaAxes []int
	momentum  float64
	epsilon   float64
	dtype     dtypes.DType
}

// Option configures a layer constructor.
type Option func(*options)

// WithName gives the layer an explicit name instead of an auto-generated one. It must
// be unique within the session; explicitly named layers are not auto-renamed by
// Network.Copy.
func WithName(name string) Option { return func(o *options) { o.name = name } }

// WithSession creates the layer in the given build session instead of the
// process-wide default one.
func WithSession(session *graph.Session) Option { return func(o *options) { o.session = session } }

// WithWeight declares the layer's weight: an initializer, a tensor, a scalar or a
// bound *graph.Parameter to tie weights with another layer.
func WithWeight(spec any) Option { return func(o *options) { o.weight = spec } }

// WithBias declares the layer's bias; same accepted specs as WithWeight.
func WithBias(spec any) Option { return func(o *options) { o.bias = spec } }

// WithGamma declares BatchNorm's scale parameter.
func WithGamma(spec any) Option { return func(o *options) { o.gamma = spec } }

// WithBeta declares BatchNorm's offset parameter.
func WithBeta(spec any) Option { return func(o *options) { o.beta = spec } }

// WithRunningMean declares BatchNorm's (non-trainable) running mean.
func WithRunningMean(spec any) Option { return func(o *options) { o.runningMean = spec } }

// WithRunningVariance declares BatchNorm's (non-trainable) running variance.
func WithRunningVariance(spec any) Option { return func(o *options) { o.runningVariance = spec } }

// WithAlpha declares PRelu's trainable negative-slope parameter.
func WithAlpha(spec any) Option { return func(o *options) { o.alpha = spec } }

// WithAlphaAxes selects the input axes PRelu's alpha spans. Axis 0 (the batch axis)
// is not allowed. Defaults to the last axis.
func WithAlphaAxes(axes ...int) Option { return func(o *options) { o.alphaAxes = axes } }

// WithMomentum sets the fraction of the batch statistics blended into BatchNorm's
// running statistics per training pass. Defaults to 0.1.
func WithMomentum(momentum float64) Option { return func(o *options) { o.momentum = momentum } }

// WithEpsilon sets BatchNorm's numerical-stability constant. Defaults to 1e-5.
func WithEpsilon(epsilon float64) Option { return func(o *options) { o.epsilon = epsilon } }

// WithDType sets the dtype of layers that create values from scratch (Input,
// Embedding). Defaults to Float32.
func WithDType(dtype dtypes.DType) Option { return func(o *options) { o.dtype = dtype } }

func collectOptions(opts []Option) *options {
	o := &options{dtype: dtypes.Float32, momentum: 0.1, epsilon: 1e-5}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Base carries the bookkeeping half of the graph.Layer contract: session
// registration, naming, arity, stored input shapes, materialized parameters and
// pending updates. Concrete layers embed it and implement the semantic half
// (SetInputShapes validation, OutputShape, Materialize, BuildOutput, Clone).
type Base struct {
	self      graph.Layer
	session   *graph.Session
	name      string
	kind      string
	autoNamed bool

	minInputs, maxInputs int

	inputShapes []shapes.Shape
	params      []*graph.Parameter
	updates     []graph.Update
}

// initBase registers the layer in its session. self is the concrete layer embedding
// this Base; the back-reference is what lets Base implement AsNetwork on its behalf.
func (b *Base) initBase(self graph.Layer, kind string, minInputs, maxInputs int, o *options) {
	b.self = self
	b.kind = kind
	b.minInputs, b.maxInputs = minInputs, maxInputs
	b.session = o.session
	if b.session == nil {
		b.session = graph.Default()
	}
	b.autoNamed = o.name == ""
	b.name = b.session.Register(self, o.name)
}

// Name implements graph.Layer.
func (b *Base) Name() string { return b.name }

// Kind implements graph.Layer.
func (b *Base) Kind() string { return b.kind }

// Session implements graph.Layer.
func (b *Base) Session() *graph.Session { return b.session }

// InputArity implements graph.Layer.
func (b *Base) InputArity() (min, max int) { return b.minInputs, b.maxInputs }

// AsNetwork implements graph.Composable, so layers can stand directly as Join and
// Parallel operands.
func (b *Base) AsNetwork() *graph.Network { return graph.NewNetwork(b.self) }

// InputShapes implements graph.Layer.
func (b *Base) InputShapes() []shapes.Shape { return b.inputShapes }

// storeInputShapes records the validated input shapes.
func (b *Base) storeInputShapes(inputs []shapes.Shape) { b.inputShapes = inputs }

// SetInputShapes stores the shapes without layer-specific validation. Most concrete
// layers override it.
func (b *Base) SetInputShapes(inputs []shapes.Shape) { b.storeInputShapes(inputs) }

// singleInput returns the single input shape, throwing a *ShapeError otherwise. The
// helper for the many single-input layers.
func (b *Base) singleInput(inputs []shapes.Shape) shapes.Shape {
	if len(inputs) != 1 {
		graph.ShapeErrorf(b.name, "expects exactly one input, got %d", len(inputs))
	}
	return inputs[0]
}

// materializeInputShape returns the single input shape parameters are sized from,
// throwing a *ShapeError when it was never propagated to the layer (an unconnected
// layer materialized directly) or is still undefined.
func (b *Base) materializeInputShape() shapes.Shape {
	if len(b.inputShapes) == 0 || !b.inputShapes[0].Ok() {
		graph.ShapeErrorf(b.name, "input shape is not known, cannot size the parameters; connect the layer before materializing")
	}
	return b.inputShapes[0]
}

// Materialize implements graph.Layer for parameter-less layers as a no-op.
func (b *Base) Materialize(backend backends.Backend) {}

// Parameters implements graph.Layer.
func (b *Base) Parameters() []*graph.Parameter { return b.params }

// ParameterSizes implements graph.Layer for parameter-less layers.
func (b *Base) ParameterSizes() int { return 0 }

// registerParam records a materialized parameter, keeping declaration order and
// skipping parameters already registered (tied or re-materialized).
func (b *Base) registerParam(p *graph.Parameter) *graph.Parameter {
	for _, existing := range b.params {
		if existing == p {
			return p
		}
	}
	b.params = append(b.params, p)
	return p
}

// AddUpdate appends a pending state-update operation, applied by the execution
// driver after the layer's output is built in a training pass.
func (b *Base) AddUpdate(param *graph.Parameter, value *tensors.Tensor) {
	b.updates = append(b.updates, graph.Update{Parameter: param, Value: value})
}

// TakeUpdates implements graph.Layer.
func (b *Base) TakeUpdates() []graph.Update {
	updates := b.updates
	b.updates = nil
	return updates
}

// cloneOptions rebuilds the identity options for Clone: the session, and the explicit
// name when the layer has one (so cloning an explicitly named layer conflicts, per
// the copy policy).
func (b *Base) cloneOptions() []Option {
	opts := []Option{WithSession(b.session)}
	if !b.autoNamed {
		opts = append(opts, WithName(b.name))
	}
	return opts
}
