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

// Package architectures holds helpers that assemble whole network topologies out of
// user-supplied building blocks.
package architectures

import (
	"github.com/neurago/neurago/graph"
	"github.com/neurago/neurago/layers"
	"github.com/neurago/neurago/types/shapes"
)

// MixtureOfExperts combines expert networks behind a learned softmax gate: a shared
// Input feeds every expert and a Dense gating head, and a GatedAverage merge weights
// the expert outputs by the gate. All experts must take the same rank-2 input shape
// and produce compatible outputs.
//
// Validation failures name the expert by position, e.g. "network #2 has more than
// one output layer".
func MixtureOfExperts(experts ...*graph.Network) *graph.Network {
	if len(experts) < 2 {
		graph.ConnectionErrorf("mixture of experts requires at least 2 expert networks, got %d", len(experts))
	}
	session := experts[0].Session()
	inputShape := shapes.Invalid()
	outputShape := shapes.Invalid()
	for ii, expert := range experts {
		if expert.Session() != session {
			graph.ConnectionErrorf("network #%d belongs to a different session than network #1", ii+1)
		}
		checkExpert(ii+1, expert)
		inputShape = mergeAcross(ii+1, "input", inputShape, expert.InputLayers()[0].OutputShape())
		outputShape = mergeAcross(ii+1, "output", outputShape, expert.OutputShape())
	}
	if inputShape.Dim(-1) == shapes.UnknownDim {
		graph.ConnectionErrorf("expert networks have an unknown input feature dimension (%s), the gate cannot be sized", inputShape)
	}

	shared := layers.NewInputShaped(inputShape, layers.WithSession(session))
	gate := layers.NewDense(len(experts), layers.ActivationSoftmax, layers.WithSession(session))
	branches := make([]graph.Composable, 0, len(experts)+1)
	branches = append(branches, graph.Join(shared, gate))
	for _, expert := range experts {
		branches = append(branches, graph.Join(shared, expert))
	}
	return graph.Join(
		graph.Parallel(branches...),
		layers.NewGatedAverage(layers.WithSession(session)))
}

func checkExpert(position int, expert *graph.Network) {
	inputs := expert.InputLayers()
	if len(inputs) > 1 {
		graph.ConnectionErrorf("network #%d has more than one input layer", position)
	}
	outputs := expert.OutputLayers()
	if len(outputs) > 1 {
		graph.ConnectionErrorf("network #%d has more than one output layer", position)
	}
	expert.PropagateShapes()
	in := inputs[0].OutputShape()
	if !in.Ok() {
		graph.ConnectionErrorf("network #%d does not declare its input shape, start experts with an Input layer", position)
	}
	if in.Rank() != 2 {
		graph.ConnectionErrorf("network #%d expects a rank-2 (batch, features) input, got %s", position, in)
	}
}

func mergeAcross(position int, side string, merged, shape shapes.Shape) shapes.Shape {
	if !merged.Ok() {
		return shape
	}
	if !shape.Ok() || !merged.Compatible(shape) {
		graph.ConnectionErrorf("network #%d has %s shape %s, incompatible with the other experts' %s",
			position, side, shape, merged)
	}
	return merged.Merge(shape)
}
