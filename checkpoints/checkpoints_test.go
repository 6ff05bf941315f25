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

package checkpoints_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/neurago/neurago/backends"
	_ "github.com/neurago/neurago/backends/simplego"
	"github.com/neurago/neurago/checkpoints"
	"github.com/neurago/neurago/graph"
	"github.com/neurago/neurago/layers"
	"github.com/neurago/neurago/types/tensors"
	"github.com/stretchr/testify/require"
)

func buildNetwork(units int) *graph.Network {
	session := graph.NewSession()
	return graph.Join(
		layers.NewInput(4, layers.WithSession(session)),
		layers.NewDense(units, layers.ActivationRelu, layers.WithSession(session), layers.WithName("head")))
}

func TestSaveAndRestoreRoundTrip(t *testing.T) {
	backend := backends.New()
	network := buildNetwork(3)
	network.Materialize(backend)

	original := make(map[string]*tensors.Tensor)
	for _, p := range network.Parameters() {
		original[p.Name()] = p.Value().Clone()
	}

	var buf bytes.Buffer
	require.NoError(t, checkpoints.Save(&buf, network))

	// Clobber the values, then restore them.
	for _, p := range network.Parameters() {
		p.SetValue(tensors.Zeros(p.Shape()))
	}
	require.NoError(t, checkpoints.Restore(&buf, network))
	for _, p := range network.Parameters() {
		require.True(t, p.Value().Equal(original[p.Name()]), "parameter %q did not round-trip", p.Name())
	}
}

func TestSaveAndRestoreFile(t *testing.T) {
	backend := backends.New()
	network := buildNetwork(3)
	network.Materialize(backend)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, checkpoints.SaveFile(path, network))
	require.NoError(t, checkpoints.RestoreFile(path, network))
}

func TestRestoreShapeMismatch(t *testing.T) {
	backend := backends.New()
	network := buildNetwork(3)
	network.Materialize(backend)
	var buf bytes.Buffer
	require.NoError(t, checkpoints.Save(&buf, network))

	// Same layer names, different width.
	other := buildNetwork(2)
	other.Materialize(backend)
	err := checkpoints.Restore(&buf, other)
	require.Error(t, err)
	require.Contains(t, err.Error(), "head/weight")
	require.Contains(t, err.Error(), "shape")
}

func TestRestoreMissingParameter(t *testing.T) {
	backend := backends.New()
	network := buildNetwork(3)
	network.Materialize(backend)
	var buf bytes.Buffer
	require.NoError(t, checkpoints.Save(&buf, network))

	session := graph.NewSession()
	other := graph.Join(
		layers.NewInput(4, layers.WithSession(session)),
		layers.NewDense(3, layers.ActivationNone, layers.WithSession(session), layers.WithName("other")))
	other.Materialize(backend)
	err := checkpoints.Restore(&buf, other)
	require.Error(t, err)
	require.Contains(t, err.Error(), `"other/weight"`)
}

func TestSaveRequiresMaterializedNetwork(t *testing.T) {
	network := buildNetwork(3)
	var buf bytes.Buffer
	require.Error(t, checkpoints.Save(&buf, network))
}
