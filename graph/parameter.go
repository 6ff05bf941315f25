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

package graph

import (
	"fmt"

	"github.com/neurago/neurago/backends"
	"github.com/neurago/neurago/initializers"
	"github.com/neurago/neurago/types/shapes"
	"github.com/neurago/neurago/types/tensors"
)

// Parameter is a materialized, backend-resident layer parameter. Its shape is frozen
// once created. The same *Parameter can be declared by several layers (weight tying):
// the materializer passes bound parameters through unchanged.
type Parameter struct {
	name      string
	trainable bool
	handle    backends.Parameter
}

// Name is "<layer-name>/<param-name>", stable and unique within a session, so
// external storage can match parameters by name.
func (p *Parameter) Name() string { return p.name }

// Trainable is false for state parameters such as running statistics.
func (p *Parameter) Trainable() bool { return p.trainable }

// Shape of the parameter, fully defined and frozen.
func (p *Parameter) Shape() shapes.Shape { return p.handle.Shape() }

// Value returns the current backend-resident value.
func (p *Parameter) Value() *tensors.Tensor { return p.handle.Value() }

// SetValue replaces the value, keeping the shape. Used by pending updates and by
// checkpoint restores.
func (p *Parameter) SetValue(value *tensors.Tensor) { p.handle.SetValue(value) }

func (p *Parameter) String() string {
	return fmt.Sprintf("Parameter<%s %s>", p.name, p.Shape())
}

// MaterializeParameter resolves a declared parameter spec into a bound *Parameter of
// the given shape, exactly once. Accepted specs:
//
//   - *Parameter: returned unchanged (weight tying across layers); its shape must be
//     compatible with the requested one.
//   - *tensors.Tensor: used as the value; its shape must be compatible.
//   - initializers.Initializer: called with the shape to sample the value.
//   - float64 / int: broadcast as a constant fill.
//
// The shape must be fully defined by materialization time; layerName only feeds error
// messages and the parameter's stable name.
func MaterializeParameter(backend backends.Backend, layerName, paramName string, spec any, shape shapes.Shape, trainable bool) *Parameter {
	if !shape.IsFullyDefined() {
		ShapeErrorf(layerName, "cannot materialize parameter %q with partially unknown shape %s", paramName, shape)
	}
	fullName := layerName + "/" + paramName
	var value *tensors.Tensor
	switch s := spec.(type) {
	case *Parameter:
		if !s.Shape().Compatible(shape) {
			ShapeErrorf(layerName, "shared parameter %q has shape %s, expected %s", s.Name(), s.Shape(), shape)
		}
		return s
	case *tensors.Tensor:
		if !s.Shape().Compatible(shape) {
			ShapeErrorf(layerName, "value given for parameter %q has shape %s, expected %s", paramName, s.Shape(), shape)
		}
		value = s
	case initializers.Initializer:
		value = s(shape)
		if !value.Shape().Compatible(shape) {
			ShapeErrorf(layerName, "initializer for parameter %q produced shape %s, expected %s", paramName, value.Shape(), shape)
		}
	case func(shapes.Shape) *tensors.Tensor: // an initializer given as a plain func, e.g. initializers.Zero
		value = s(shape)
		if !value.Shape().Compatible(shape) {
			ShapeErrorf(layerName, "initializer for parameter %q produced shape %s, expected %s", paramName, value.Shape(), shape)
		}
	case float64:
		value = tensors.Full(shape, s)
	case int:
		value = tensors.Full(shape, float64(s))
	case nil:
		ShapeErrorf(layerName, "no value, initializer or parameter declared for parameter %q", paramName)
	default:
		ConfigErrorf(layerName, paramName,
			"unsupported parameter spec of type %T -- use an initializer, a tensor, a scalar or a bound parameter", spec)
	}
	return &Parameter{
		name:      fullName,
		trainable: trainable,
		handle:    backend.Parameter(fullName, value),
	}
}
