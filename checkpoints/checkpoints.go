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

// Package checkpoints saves and restores a network's parameter values as JSON,
// keyed by the stable "<layer-name>/<param-name>" parameter names. It is the external
// storage collaborator of the layer-graph machinery: restoration matches parameters
// by name, which is why layer names are unique and stable within a session.
//
// Unlike graph construction, storage I/O returns errors instead of throwing.
package checkpoints

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/neurago/neurago/graph"
	"github.com/neurago/neurago/types/tensors"
	"github.com/pkg/errors"
)

// FormatVersion of the checkpoint JSON layout.
const FormatVersion = 1

// Checkpoint is the serialized form of a network's parameters.
type Checkpoint struct {
	Version    int         `json:"version"`
	SessionID  string      `json:"session_id"`
	CreatedAt  time.Time   `json:"created_at"`
	Parameters []Parameter `json:"parameters"`
}

// Parameter is one serialized parameter value.
type Parameter struct {
	Name       string    `json:"name"`
	DType      string    `json:"dtype"`
	Dimensions []int     `json:"dimensions"`
	Trainable  bool      `json:"trainable"`
	Values     []float64 `json:"values"`
}

// Save writes the network's materialized parameters to w. The network must have been
// materialized (it has to hold bound parameters).
func Save(w io.Writer, network *graph.Network) error {
	params := network.Parameters()
	if len(params) == 0 {
		return errors.New("network has no materialized parameters to save -- materialize or execute it first")
	}
	checkpoint := Checkpoint{
		Version:   FormatVersion,
		SessionID: network.Session().ID,
		CreatedAt: time.Now().UTC(),
	}
	for _, p := range params {
		value := p.Value()
		checkpoint.Parameters = append(checkpoint.Parameters, Parameter{
			Name:       p.Name(),
			DType:      value.DType().String(),
			Dimensions: value.Shape().Dimensions,
			Trainable:  p.Trainable(),
			Values:     value.Float64Data(),
		})
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return errors.Wrap(encoder.Encode(checkpoint), "encoding checkpoint")
}

// SaveFile is Save to a file path.
func SaveFile(path string, network *graph.Network) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating checkpoint file %q", path)
	}
	if err := Save(f, network); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "closing checkpoint file %q", path)
}

// Restore reads a checkpoint from r and sets the network's parameters, matching by
// name. The network must already be materialized with the same layer names and
// parameter shapes; every network parameter must be present in the checkpoint.
func Restore(r io.Reader, network *graph.Network) error {
	var checkpoint Checkpoint
	if err := json.NewDecoder(r).Decode(&checkpoint); err != nil {
		return errors.Wrap(err, "decoding checkpoint")
	}
	if checkpoint.Version != FormatVersion {
		return errors.Errorf("unsupported checkpoint version %d, this build reads version %d",
			checkpoint.Version, FormatVersion)
	}
	saved := make(map[string]Parameter, len(checkpoint.Parameters))
	for _, p := range checkpoint.Parameters {
		saved[p.Name] = p
	}
	params := network.Parameters()
	if len(params) == 0 {
		return errors.New("network has no materialized parameters to restore into -- materialize it first")
	}
	for _, p := range params {
		state, found := saved[p.Name()]
		if !found {
			return errors.Errorf("checkpoint has no value for parameter %q", p.Name())
		}
		dtype, err := dtypes.DTypeString(state.DType)
		if err != nil {
			return errors.Wrapf(err, "parameter %q has invalid dtype %q", p.Name(), state.DType)
		}
		var value *tensors.Tensor
		if err := graph.TryCatch(func() {
			value = tensors.FromFloat64(state.Values, dtype, state.Dimensions...)
		}); err != nil {
			return errors.Wrapf(err, "parameter %q has a corrupted checkpoint value", p.Name())
		}
		if !value.Shape().Equal(p.Shape()) {
			return errors.Errorf("parameter %q has shape %s, checkpoint value has shape %s",
				p.Name(), p.Shape(), value.Shape())
		}
		p.SetValue(value)
	}
	return nil
}

// RestoreFile is Restore from a file path.
func RestoreFile(path string, network *graph.Network) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening checkpoint file %q", path)
	}
	defer func() { _ = f.Close() }()
	return Restore(f, network)
}
