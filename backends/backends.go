// Package backends defines the narrow contract a tensor-execution engine needs to
// implement to serve as the numeric collaborator of the layer-graph machinery.
//
// The graph/layers packages never do math themselves: they construct the graph, infer
// shapes and materialize parameters, then call a Backend to build output tensors from
// input tensors. A backend that doesn't implement every operation can simply panic with
// a "not implemented" error for that op; any network that doesn't reach it still works.
//
// To simplify error handling, all functions are expected to throw (panic) with a stack
// trace in case of errors. See package github.com/gomlx/exceptions.
package backends

import (
	"os"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/neurago/neurago/types/shapes"
	"github.com/neurago/neurago/types/tensors"
)

// Parameter is a backend-resident trainable (or state) array. The parameter
// materializer converts declared parameter specs (initializers, raw tensors, scalars)
// into Parameters exactly once per layer; see the graph package.
//
// SetValue is used by layer state updates (e.g. batch-norm running statistics) and by
// checkpoint restores; the new value must keep the parameter's shape.
type Parameter interface {
	Name() string
	Shape() shapes.Shape
	Value() *tensors.Tensor
	SetValue(value *tensors.Tensor)
}

// Backend is the API a tensor-execution engine implements.
//
// Binary elementwise operations (Add, Mul) support the limited broadcasting the layers
// need: operands of equal shape, a rank-1 operand matching the other's last dimension
// (bias), or a scalar.
type Backend interface {
	// Name returns the short name of the backend, e.g. "go" for the pure-Go backend.
	Name() string

	// Parameter binds a concrete value as a named backend-resident parameter.
	Parameter(name string, value *tensors.Tensor) Parameter

	// MatMul multiplies a rank-2 `[batch, in]` tensor by a rank-2 `[in, out]` tensor.
	MatMul(a, b *tensors.Tensor) *tensors.Tensor

	// Add and Mul are elementwise with broadcasting as described above.
	Add(a, b *tensors.Tensor) *tensors.Tensor
	Mul(a, b *tensors.Tensor) *tensors.Tensor

	// ScaleRows multiplies each row (leading-axis entry) of x by the matching element
	// of scale, a rank-1 tensor with dimension x.Shape().Dim(0).
	ScaleRows(x, scale *tensors.Tensor) *tensors.Tensor

	// Concat concatenates the parts along the given (non-negative) axis.
	Concat(parts []*tensors.Tensor, axis int) *tensors.Tensor

	// Slice extracts index along the given axis, dropping that axis from the result.
	Slice(x *tensors.Tensor, axis, index int) *tensors.Tensor

	// Reshape returns x with the new dimensions; total size must match.
	Reshape(x *tensors.Tensor, dimensions ...int) *tensors.Tensor

	// Gather looks up rows of a `[vocab, dim]` table by integer indices, returning a
	// tensor shaped like indices with a trailing dim axis appended.
	Gather(table, indices *tensors.Tensor) *tensors.Tensor

	// Activation kernels. Softmax normalizes along the given (non-negative) axis.
	Softmax(x *tensors.Tensor, axis int) *tensors.Tensor
	Sigmoid(x *tensors.Tensor) *tensors.Tensor
	HardSigmoid(x *tensors.Tensor) *tensors.Tensor
	Tanh(x *tensors.Tensor) *tensors.Tensor
	Relu(x *tensors.Tensor) *tensors.Tensor
	LeakyRelu(x *tensors.Tensor, alpha float64) *tensors.Tensor
	Elu(x *tensors.Tensor) *tensors.Tensor
	Softplus(x *tensors.Tensor) *tensors.Tensor

	// PRelu is a leaky-relu whose negative slope alpha is itself a tensor, shaped as
	// the dimensions of x selected by axes (the trainable parametrized relu).
	PRelu(x, alpha *tensors.Tensor, axes []int) *tensors.Tensor

	// Dropout zeroes each element with probability rate and scales the survivors by
	// 1/(1-rate). Only called during training passes.
	Dropout(x *tensors.Tensor, rate float64) *tensors.Tensor

	// GaussianNoise adds elementwise gaussian noise. Only called during training passes.
	GaussianNoise(x *tensors.Tensor, mean, stddev float64) *tensors.Tensor

	// Moments returns mean and variance of x reduced over every axis except
	// featureAxis (non-negative); both are rank-1 with the feature dimension.
	Moments(x *tensors.Tensor, featureAxis int) (mean, variance *tensors.Tensor)

	// Normalize computes gamma * (x - mean) / sqrt(variance + epsilon) + beta, with
	// mean, variance, gamma and beta rank-1 over featureAxis.
	Normalize(x, mean, variance, gamma, beta *tensors.Tensor, epsilon float64, featureAxis int) *tensors.Tensor

	// Lerp returns weight*a + (1-weight)*b, elementwise over equal shapes. Used for
	// moving averages of running statistics.
	Lerp(a, b *tensors.Tensor, weight float64) *tensors.Tensor
}

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) Backend

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register a backend constructor under the given name. To be safe, call Register
// during initialization of a package.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// DefaultConfig is the backend configuration to use if the environment variable is
// not set. See NewWithConfig for the format.
var DefaultConfig string

// EnvVarName is the environment variable with the default backend configuration,
// formatted as "<backend_name>:<backend_configuration>".
const EnvVarName = "NEURAGO_BACKEND"

// New returns a new default Backend: the EnvVarName environment variable if set,
// else DefaultConfig, else the first registered backend with an empty configuration.
//
// It panics if no backend was registered.
func New() Backend {
	config, found := os.LookupEnv(EnvVarName)
	if found {
		return NewWithConfig(config)
	}
	return NewWithConfig(DefaultConfig)
}

// NewWithConfig creates the backend described by a "<backend_name>:<backend_config>"
// string. An empty name selects the first registered backend.
func NewWithConfig(config string) Backend {
	if len(registeredConstructors) == 0 {
		exceptions.Panicf(`no registered backends -- import the default pure-Go one with import _ "github.com/neurago/neurago/backends/simplego"`)
	}
	backendName, backendConfig, _ := strings.Cut(config, ":")
	if backendName == "" {
		backendName = firstRegistered
	}
	constructor, found := registeredConstructors[backendName]
	if !found {
		exceptions.Panicf("can't find backend %q for configuration %q given", backendName, config)
	}
	return constructor(backendConfig)
}
