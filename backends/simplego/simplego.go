// Package simplego implements a simple, and not very fast, pure-Go backend for the
// layer-graph library. It computes in float64 (matrix multiplication is delegated to
// gonum) and converts results back to the input dtype.
//
// It is registered under the name "go", and because importing it registers it, it is
// the default backend for anyone who imports it:
//
//	import _ "github.com/neurago/neurago/backends/simplego"
package simplego

import (
	"math"
	"math/rand"
	"strconv"

	"github.com/gomlx/exceptions"
	"github.com/neurago/neurago/backends"
	"github.com/neurago/neurago/types/shapes"
	"github.com/neurago/neurago/types/tensors"
	"gonum.org/v1/gonum/mat"
)

// BackendName under which this backend is registered.
const BackendName = "go"

func init() {
	backends.Register(BackendName, New)
}

// Backend implements backends.Backend in pure Go.
type Backend struct {
	rng *rand.Rand
}

// New creates a simplego backend. The config string is either empty or a decimal
// seed for the random number generator used by stochastic ops (dropout, noise).
func New(config string) backends.Backend {
	seed := int64(42)
	if config != "" {
		parsed, err := strconv.ParseInt(config, 10, 64)
		if err != nil {
			exceptions.Panicf("simplego.New: config must be empty or a decimal seed, got %q", config)
		}
		seed = parsed
	}
	return &Backend{rng: rand.New(rand.NewSource(seed))}
}

// Name implements backends.Backend.
func (b *Backend) Name() string { return BackendName }

// parameter is a backend-resident parameter: in pure Go, just the tensor itself.
type parameter struct {
	name  string
	value *tensors.Tensor
}

func (p *parameter) Name() string           { return p.name }
func (p *parameter) Shape() shapes.Shape    { return p.value.Shape() }
func (p *parameter) Value() *tensors.Tensor { return p.value }

func (p *parameter) SetValue(value *tensors.Tensor) {
	if !value.Shape().Equal(p.value.Shape()) {
		exceptions.Panicf("parameter %q: cannot set value of shape %s, parameter shape is frozen to %s",
			p.name, value.Shape(), p.value.Shape())
	}
	p.value = value
}

// Parameter implements backends.Backend.
func (b *Backend) Parameter(name string, value *tensors.Tensor) backends.Parameter {
	return &parameter{name: name, value: value}
}

// strides returns the row-major strides for the given dimensions.
func strides(dims []int) []int {
	s := make([]int, len(dims))
	stride := 1
	for axis := len(dims) - 1; axis >= 0; axis-- {
		s[axis] = stride
		stride *= dims[axis]
	}
	return s
}

// sameAs builds a result tensor with the given float64 data, dtype of ref and the
// given dimensions.
func sameAs(ref *tensors.Tensor, flat []float64, dims ...int) *tensors.Tensor {
	return tensors.FromFloat64(flat, ref.DType(), dims...)
}

// MatMul implements backends.Backend using gonum.
func (b *Backend) MatMul(a, w *tensors.Tensor) *tensors.Tensor {
	if a.Rank() != 2 || w.Rank() != 2 {
		exceptions.Panicf("MatMul requires rank-2 operands, got %s and %s", a.Shape(), w.Shape())
	}
	rows, inner := a.Shape().Dim(0), a.Shape().Dim(1)
	if w.Shape().Dim(0) != inner {
		exceptions.Panicf("MatMul: inner dimensions don't match, got %s and %s", a.Shape(), w.Shape())
	}
	cols := w.Shape().Dim(1)
	var product mat.Dense
	product.Mul(
		mat.NewDense(rows, inner, a.Float64Data()),
		mat.NewDense(inner, cols, w.Float64Data()))
	flat := make([]float64, rows*cols)
	copy(flat, product.RawMatrix().Data)
	return sameAs(a, flat, rows, cols)
}

// binary applies fn elementwise, supporting the broadcasting described in the
// backends.Backend contract: equal shapes, rank-1 against the last axis, or scalar.
func binary(a, other *tensors.Tensor, fn func(x, y float64) float64) *tensors.Tensor {
	lhs, rhs := a.Float64Data(), other.Float64Data()
	dims := a.Shape().Dimensions
	switch {
	case equalDims(a, other):
		out := make([]float64, len(lhs))
		for ii := range lhs {
			out[ii] = fn(lhs[ii], rhs[ii])
		}
		return sameAs(a, out, dims...)
	case other.Rank() == 0:
		out := make([]float64, len(lhs))
		for ii := range lhs {
			out[ii] = fn(lhs[ii], rhs[0])
		}
		return sameAs(a, out, dims...)
	case a.Rank() == 0:
		out := make([]float64, len(rhs))
		for ii := range rhs {
			out[ii] = fn(lhs[0], rhs[ii])
		}
		return sameAs(other, out, other.Shape().Dimensions...)
	case other.Rank() == 1 && a.Rank() > 1 && other.Shape().Dim(0) == a.Shape().Dim(-1):
		out := make([]float64, len(lhs))
		width := other.Shape().Dim(0)
		for ii := range lhs {
			out[ii] = fn(lhs[ii], rhs[ii%width])
		}
		return sameAs(a, out, dims...)
	case a.Rank() == 1 && other.Rank() > 1 && a.Shape().Dim(0) == other.Shape().Dim(-1):
		out := make([]float64, len(rhs))
		width := a.Shape().Dim(0)
		for ii := range rhs {
			out[ii] = fn(lhs[ii%width], rhs[ii])
		}
		return sameAs(other, out, other.Shape().Dimensions...)
	}
	exceptions.Panicf("cannot broadcast operands of shapes %s and %s", a.Shape(), other.Shape())
	return nil
}

func equalDims(a, b *tensors.Tensor) bool {
	if a.Rank() != b.Rank() {
		return false
	}
	for axis, dim := range a.Shape().Dimensions {
		if b.Shape().Dimensions[axis] != dim {
			return false
		}
	}
	return true
}

// Add implements backends.Backend.
func (b *Backend) Add(a, other *tensors.Tensor) *tensors.Tensor {
	return binary(a, other, func(x, y float64) float64 { return x + y })
}

// Mul implements backends.Backend.
func (b *Backend) Mul(a, other *tensors.Tensor) *tensors.Tensor {
	return binary(a, other, func(x, y float64) float64 { return x * y })
}

// ScaleRows implements backends.Backend.
func (b *Backend) ScaleRows(x, scale *tensors.Tensor) *tensors.Tensor {
	if scale.Rank() != 1 || scale.Shape().Dim(0) != x.Shape().Dim(0) {
		exceptions.Panicf("ScaleRows: scale must be rank-1 matching the leading axis of x, got x=%s, scale=%s",
			x.Shape(), scale.Shape())
	}
	data, scales := x.Float64Data(), scale.Float64Data()
	rowSize := x.Size() / x.Shape().Dim(0)
	out := make([]float64, len(data))
	for ii := range data {
		out[ii] = data[ii] * scales[ii/rowSize]
	}
	return sameAs(x, out, x.Shape().Dimensions...)
}

// Concat implements backends.Backend.
func (b *Backend) Concat(parts []*tensors.Tensor, axis int) *tensors.Tensor {
	if len(parts) == 0 {
		exceptions.Panicf("Concat of no parts")
	}
	first := parts[0]
	rank := first.Rank()
	outDims := append([]int{}, first.Shape().Dimensions...)
	outDims[axis] = 0
	for _, part := range parts {
		outDims[axis] += part.Shape().Dim(axis)
	}
	// outer: product of dims before axis; inner: product of dims after.
	outer, inner := 1, 1
	for a := 0; a < axis; a++ {
		outer *= outDims[a]
	}
	for a := axis + 1; a < rank; a++ {
		inner *= outDims[a]
	}
	out := make([]float64, outer*outDims[axis]*inner)
	offset := 0
	for _, part := range parts {
		data := part.Float64Data()
		axisDim := part.Shape().Dim(axis)
		for o := 0; o < outer; o++ {
			src := o * axisDim * inner
			dst := o*outDims[axis]*inner + offset*inner
			copy(out[dst:dst+axisDim*inner], data[src:src+axisDim*inner])
		}
		offset += axisDim
	}
	return sameAs(first, out, outDims...)
}

// Slice implements backends.Backend.
func (b *Backend) Slice(x *tensors.Tensor, axis, index int) *tensors.Tensor {
	dims := x.Shape().Dimensions
	outer, inner := 1, 1
	for a := 0; a < axis; a++ {
		outer *= dims[a]
	}
	for a := axis + 1; a < len(dims); a++ {
		inner *= dims[a]
	}
	data := x.Float64Data()
	out := make([]float64, outer*inner)
	for o := 0; o < outer; o++ {
		src := (o*dims[axis] + index) * inner
		copy(out[o*inner:(o+1)*inner], data[src:src+inner])
	}
	outDims := append(append([]int{}, dims[:axis]...), dims[axis+1:]...)
	return sameAs(x, out, outDims...)
}

// Reshape implements backends.Backend.
func (b *Backend) Reshape(x *tensors.Tensor, dimensions ...int) *tensors.Tensor {
	return x.Reshape(dimensions...)
}

// Gather implements backends.Backend.
func (b *Backend) Gather(table, indices *tensors.Tensor) *tensors.Tensor {
	if table.Rank() != 2 {
		exceptions.Panicf("Gather requires a rank-2 table, got %s", table.Shape())
	}
	vocab, dim := table.Shape().Dim(0), table.Shape().Dim(1)
	rows := table.Float64Data()
	out := make([]float64, indices.Size()*dim)
	for ii, index := range indices.IntData() {
		if index < 0 || index >= vocab {
			exceptions.Panicf("Gather: index %d out of range for table %s", index, table.Shape())
		}
		copy(out[ii*dim:(ii+1)*dim], rows[index*dim:(index+1)*dim])
	}
	outDims := append(append([]int{}, indices.Shape().Dimensions...), dim)
	return tensors.FromFloat64(out, table.DType(), outDims...)
}

// unary applies fn elementwise.
func unary(x *tensors.Tensor, fn func(v float64) float64) *tensors.Tensor {
	data := x.Float64Data()
	out := make([]float64, len(data))
	for ii, v := range data {
		out[ii] = fn(v)
	}
	return sameAs(x, out, x.Shape().Dimensions...)
}

// Softmax implements backends.Backend.
func (b *Backend) Softmax(x *tensors.Tensor, axis int) *tensors.Tensor {
	dims := x.Shape().Dimensions
	outer, inner := 1, 1
	for a := 0; a < axis; a++ {
		outer *= dims[a]
	}
	for a := axis + 1; a < len(dims); a++ {
		inner *= dims[a]
	}
	axisDim := dims[axis]
	data := x.Float64Data()
	out := make([]float64, len(data))
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*axisDim*inner + i
			max := math.Inf(-1)
			for k := 0; k < axisDim; k++ {
				if v := data[base+k*inner]; v > max {
					max = v
				}
			}
			sum := 0.0
			for k := 0; k < axisDim; k++ {
				e := math.Exp(data[base+k*inner] - max)
				out[base+k*inner] = e
				sum += e
			}
			for k := 0; k < axisDim; k++ {
				out[base+k*inner] /= sum
			}
		}
	}
	return sameAs(x, out, dims...)
}

// Sigmoid implements backends.Backend.
func (b *Backend) Sigmoid(x *tensors.Tensor) *tensors.Tensor {
	return unary(x, func(v float64) float64 { return 1 / (1 + math.Exp(-v)) })
}

// HardSigmoid implements backends.Backend.
func (b *Backend) HardSigmoid(x *tensors.Tensor) *tensors.Tensor {
	return unary(x, func(v float64) float64 {
		return math.Min(math.Max(0.2*v+0.5, 0), 1)
	})
}

// Tanh implements backends.Backend.
func (b *Backend) Tanh(x *tensors.Tensor) *tensors.Tensor {
	return unary(x, math.Tanh)
}

// Relu implements backends.Backend.
func (b *Backend) Relu(x *tensors.Tensor) *tensors.Tensor {
	return unary(x, func(v float64) float64 { return math.Max(v, 0) })
}

// LeakyRelu implements backends.Backend.
func (b *Backend) LeakyRelu(x *tensors.Tensor, alpha float64) *tensors.Tensor {
	return unary(x, func(v float64) float64 {
		if v >= 0 {
			return v
		}
		return alpha * v
	})
}

// Elu implements backends.Backend.
func (b *Backend) Elu(x *tensors.Tensor) *tensors.Tensor {
	return unary(x, func(v float64) float64 {
		if v >= 0 {
			return v
		}
		return math.Exp(v) - 1
	})
}

// Softplus implements backends.Backend.
func (b *Backend) Softplus(x *tensors.Tensor) *tensors.Tensor {
	return unary(x, func(v float64) float64 { return math.Log1p(math.Exp(v)) })
}

// PRelu implements backends.Backend.
func (b *Backend) PRelu(x, alpha *tensors.Tensor, axes []int) *tensors.Tensor {
	dims := x.Shape().Dimensions
	xStrides := strides(dims)
	alphaStrides := strides(alpha.Shape().Dimensions)
	data := x.Float64Data()
	alphas := alpha.Float64Data()
	out := make([]float64, len(data))
	for ii, v := range data {
		if v >= 0 {
			out[ii] = v
			continue
		}
		alphaIdx := 0
		for pos, axis := range axes {
			coord := (ii / xStrides[axis]) % dims[axis]
			alphaIdx += coord * alphaStrides[pos]
		}
		out[ii] = alphas[alphaIdx] * v
	}
	return sameAs(x, out, dims...)
}

// Dropout implements backends.Backend.
func (b *Backend) Dropout(x *tensors.Tensor, rate float64) *tensors.Tensor {
	keep := 1 - rate
	return unary(x, func(v float64) float64 {
		if b.rng.Float64() < rate {
			return 0
		}
		return v / keep
	})
}

// GaussianNoise implements backends.Backend.
func (b *Backend) GaussianNoise(x *tensors.Tensor, mean, stddev float64) *tensors.Tensor {
	return unary(x, func(v float64) float64 {
		return v + mean + stddev*b.rng.NormFloat64()
	})
}

// Moments implements backends.Backend.
func (b *Backend) Moments(x *tensors.Tensor, featureAxis int) (mean, variance *tensors.Tensor) {
	dims := x.Shape().Dimensions
	features := dims[featureAxis]
	count := x.Size() / features
	xStrides := strides(dims)
	data := x.Float64Data()
	means := make([]float64, features)
	variances := make([]float64, features)
	for ii, v := range data {
		feature := (ii / xStrides[featureAxis]) % features
		means[feature] += v
	}
	for f := range means {
		means[f] /= float64(count)
	}
	for ii, v := range data {
		feature := (ii / xStrides[featureAxis]) % features
		delta := v - means[feature]
		variances[feature] += delta * delta
	}
	for f := range variances {
		variances[f] /= float64(count)
	}
	return sameAs(x, means, features), sameAs(x, variances, features)
}

// Normalize implements backends.Backend.
func (b *Backend) Normalize(x, mean, variance, gamma, beta *tensors.Tensor, epsilon float64, featureAxis int) *tensors.Tensor {
	dims := x.Shape().Dimensions
	features := dims[featureAxis]
	xStrides := strides(dims)
	data := x.Float64Data()
	means, variances := mean.Float64Data(), variance.Float64Data()
	gammas, betas := gamma.Float64Data(), beta.Float64Data()
	out := make([]float64, len(data))
	for ii, v := range data {
		f := (ii / xStrides[featureAxis]) % features
		out[ii] = gammas[f]*(v-means[f])/math.Sqrt(variances[f]+epsilon) + betas[f]
	}
	return sameAs(x, out, dims...)
}

// Lerp implements backends.Backend.
func (b *Backend) Lerp(a, other *tensors.Tensor, weight float64) *tensors.Tensor {
	return binary(a, other, func(x, y float64) float64 {
		return y + weight*(x-y)
	})
}
