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

package architectures_test

import (
	"testing"

	"github.com/neurago/neurago/architectures"
	"github.com/neurago/neurago/backends"
	_ "github.com/neurago/neurago/backends/simplego"
	"github.com/neurago/neurago/graph"
	"github.com/neurago/neurago/layers"
	"github.com/neurago/neurago/types/tensors"
	"github.com/stretchr/testify/require"
)

func newExpert(session *graph.Session, units int) *graph.Network {
	return graph.Join(
		layers.NewInput(4, layers.WithSession(session)),
		layers.NewDense(units, layers.ActivationRelu, layers.WithSession(session)),
		layers.NewDense(2, layers.ActivationNone, layers.WithSession(session)))
}

func TestMixtureOfExperts(t *testing.T) {
	session := graph.NewSession()
	moe := architectures.MixtureOfExperts(newExpert(session, 8), newExpert(session, 16))
	require.Equal(t, "(Float32)[?, 2]", moe.OutputShape().String())

	batch := make([]float32, 3*4)
	for ii := range batch {
		batch[ii] = float32(ii) / 12
	}
	out := moe.Output(&graph.ExecContext{Backend: backends.New()}, tensors.FromFlat(batch, 3, 4))
	require.Equal(t, []int{3, 2}, out.Shape().Dimensions)
}

func TestMixtureOfExpertsValidation(t *testing.T) {
	session := graph.NewSession()

	// Second network exposes two outputs.
	input := layers.NewInput(4, layers.WithSession(session))
	twoHeaded := graph.Parallel(
		graph.Join(input, layers.NewDense(2, layers.ActivationNone, layers.WithSession(session))),
		graph.Join(input, layers.NewDense(2, layers.ActivationNone, layers.WithSession(session))))
	err := graph.TryCatch(func() {
		architectures.MixtureOfExperts(newExpert(session, 8), twoHeaded)
	})
	var connErr *graph.ConnectionError
	require.ErrorAs(t, err, &connErr)
	require.Contains(t, connErr.Message, "network #2 has more than one output layer")

	// Second network takes a different input width.
	narrow := graph.Join(
		layers.NewInput(5, layers.WithSession(session)),
		layers.NewDense(2, layers.ActivationNone, layers.WithSession(session)))
	err = graph.TryCatch(func() {
		architectures.MixtureOfExperts(newExpert(session, 8), narrow)
	})
	require.ErrorAs(t, err, &connErr)
	require.Contains(t, connErr.Message, "network #2")
	require.Contains(t, connErr.Message, "input")

	// A lone expert is not a mixture.
	err = graph.TryCatch(func() {
		architectures.MixtureOfExperts(newExpert(session, 8))
	})
	require.ErrorAs(t, err, &connErr)
	require.Contains(t, connErr.Message, "at least 2")
}
