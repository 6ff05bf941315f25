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

// Package graph implements the layer-graph machinery: the Layer node contract, the
// build Session (the "full graph" holding every created layer for name uniqueness),
// Network subgraphs with sequential/parallel joins, deterministic topological
// traversal, lazy shape propagation, parameter materialization and the execution
// driver that feeds tensors through a backend.
//
// Graphs are built by composing layers:
//
//	network := graph.Join(
//		layers.NewInput(10),
//		layers.NewDense(20, layers.ActivationRelu),
//		layers.NewDense(3, layers.ActivationSoftmax))
//	out := network.Output(&graph.ExecContext{Backend: backend}, batch)
//
// Errors are thrown (panic) as the structured types in errors.go, with stack traces;
// use TryCatch or the ...OrError variants to handle them as values.
package graph

import (
	"github.com/neurago/neurago/backends"
	"github.com/neurago/neurago/types/shapes"
	"github.com/neurago/neurago/types/tensors"
)

// UnlimitedInputs marks a variadic merge layer's maximum input arity.
const UnlimitedInputs = -1

// ExecContext is the runtime context of one execution pass.
type ExecContext struct {
	Backend backends.Backend

	// Training toggles stochastic behavior (dropout, noise) and state updates
	// (normalization running statistics). Inference passes leave it false.
	Training bool
}

// Update is a pending state-update operation appended by a stateful layer during a
// training pass: Parameter takes Value after the layer's output is built.
type Update struct {
	Parameter *Parameter
	Value     *tensors.Tensor
}

// Composable is anything that can stand as an operand of Join and Parallel: a Layer
// or an already-built Network.
type Composable interface {
	// AsNetwork returns the operand as a (possibly single-layer) Network.
	AsNetwork() *Network
}

// Layer is the graph node contract. Concrete layers live in the layers package; they
// typically embed layers.Base, which provides the bookkeeping half of this interface.
//
// A layer's life has two phases. Declared: constructed with validated configuration,
// registered in a Session under a unique name, parameters held as specs (initializer,
// tensor, scalar or an already-bound *Parameter for weight tying). Bound: after shape
// propagation fixed its input shapes, Materialize resolved every spec into a concrete
// backend parameter; from then on parameter shapes are frozen.
type Layer interface {
	Composable

	// Name is unique within the layer's Session.
	Name() string

	// Kind is the layer type name, e.g. "Dense"; it seeds auto-generated names.
	Kind() string

	// Session is the full graph the layer was created in.
	Session() *Session

	// InputArity returns how many predecessors the layer requires and accepts.
	// max == UnlimitedInputs means "variadic, matching current predecessor count".
	// Input placeholders return (0, 1): joining into one turns it into a shape
	// assertion on its predecessor.
	InputArity() (min, max int)

	// SetInputShapes validates the predecessors' output shapes against the layer's
	// constraints and stores them. It throws a *ShapeError naming the layer and the
	// violated constraint. Idempotent: re-setting the same shapes is a no-op.
	SetInputShapes(inputs []shapes.Shape)

	// InputShapes returns the stored input shapes, nil if never set.
	InputShapes() []shapes.Shape

	// OutputShape is a pure function of the stored input shapes and configuration.
	// It returns a shape with unknown dimensions (or shapes.Invalid) while the input
	// shapes are unknown, and must be side-effect free.
	OutputShape() shapes.Shape

	// Materialize resolves every declared parameter spec into a concrete
	// backend-resident parameter. Idempotent: parameters already bound are kept,
	// preserving object identity.
	Materialize(backend backends.Backend)

	// Parameters returns the layer's materialized parameters in declaration order.
	// Empty before Materialize.
	Parameters() []*Parameter

	// ParameterSizes returns total element count of the layer's parameters once the
	// input shape is known, without materializing. Used by Network.Summary.
	ParameterSizes() int

	// BuildOutput builds the output tensor from the predecessors' output tensors
	// using backend math. Stateful layers may append pending updates, drained by
	// TakeUpdates after each training pass.
	BuildOutput(ctx *ExecContext, inputs []*tensors.Tensor) *tensors.Tensor

	// TakeUpdates drains and returns the pending state-update operations.
	TakeUpdates() []Update

	// Clone creates an unmaterialized copy of the layer in the same session, with
	// the same configuration. Auto-named layers get a fresh auto-generated name;
	// explicitly named layers keep their name, so cloning them throws a
	// *NamingConflictError. Used by Network.Copy.
	Clone() Layer
}
