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

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// The error taxonomy of the layer-graph machinery. All four are fatal and thrown
// (panicked) with a stack trace attached; recover them with
// exceptions.TryCatch[error] or the Network ...OrError entry points. Each carries
// enough context (layer names, shapes, option name) to diagnose without re-running.

// ConfigurationError reports an invalid option value at layer construction time,
// before any graph work happens.
type ConfigurationError struct {
	LayerKind string // layer kind, if the layer has no name yet
	Option    string
	Message   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration of %s layer, option %q: %s", e.LayerKind, e.Option, e.Message)
}

// ConnectionError reports a graph-structural violation: a cycle, an arity mismatch or
// a multiple-output/input join. Raised at join time, before any shape work.
type ConnectionError struct {
	Message string
}

func (e *ConnectionError) Error() string { return e.Message }

// ShapeError reports a rank or dimension mismatch, discovered when setting a layer's
// input shape or during shape propagation. It aborts propagation.
type ShapeError struct {
	LayerName string
	Message   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("layer %q: %s", e.LayerName, e.Message)
}

// NamingConflictError reports a duplicate layer name within one session (the full
// graph). Raised at name registration time.
type NamingConflictError struct {
	Name string
}

func (e *NamingConflictError) Error() string {
	return fmt.Sprintf("layer name %q is already taken in this session", e.Name)
}

// throw panics with err wrapped with a stack trace.
func throw(err error) {
	panic(errors.WithStack(err))
}

// ConfigErrorf throws a *ConfigurationError. Exported for the layers package.
func ConfigErrorf(layerKind, option, format string, args ...any) {
	throw(&ConfigurationError{LayerKind: layerKind, Option: option, Message: fmt.Sprintf(format, args...)})
}

// ConnectionErrorf throws a *ConnectionError.
func ConnectionErrorf(format string, args ...any) {
	throw(&ConnectionError{Message: fmt.Sprintf(format, args...)})
}

// ShapeErrorf throws a *ShapeError naming the offending layer.
func ShapeErrorf(layerName, format string, args ...any) {
	throw(&ShapeError{LayerName: layerName, Message: fmt.Sprintf(format, args...)})
}

// TryCatch runs fn and returns the thrown error, if any. It is a thin alias of
// exceptions.TryCatch[error], re-exported so callers of this package don't need a
// second import for the common case.
func TryCatch(fn func()) error {
	return exceptions.TryCatch[error](fn)
}
