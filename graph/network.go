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
	"strings"

	"github.com/neurago/neurago/backends"
	"github.com/neurago/neurago/types/shapes"
	"github.com/neurago/neurago/types/tensors"
	"github.com/neurago/neurago/types/xslices"
	"k8s.io/klog/v2"
)

// Network is a subgraph view over a Session: a set of layers plus the designated
// input and output layers that joins wire through. It is the value produced and
// consumed by Join and Parallel, and the handle used to propagate shapes, materialize
// parameters and execute.
//
// Networks are cheap views; the layers and edges live in the Session.
type Network struct {
	session *Session
	layers  []Layer // in creation order

	// Designated entry and exit points. inputs follows creation order; outputs
	// follows branch-list order for parallel networks, which is what gives merge
	// layers their input ordering.
	inputs  []Layer
	outputs []Layer
}

// NewNetwork wraps a single layer as a Network. Layers implement Composable through
// this, so they can stand directly as Join/Parallel operands.
func NewNetwork(layer Layer) *Network {
	return &Network{
		session: layer.Session(),
		layers:  []Layer{layer},
		inputs:  []Layer{layer},
		outputs: []Layer{layer},
	}
}

// AsNetwork implements Composable.
func (n *Network) AsNetwork() *Network { return n }

// Session the network's layers belong to.
func (n *Network) Session() *Session { return n.session }

// Layers of the network, in creation order.
func (n *Network) Layers() []Layer { return n.layers }

// contains reports whether layer is part of the network.
func (n *Network) contains(layer Layer) bool {
	for _, l := range n.layers {
		if l == layer {
			return true
		}
	}
	return false
}

// predecessors returns layer's predecessors restricted to the network, in edge
// insertion order.
func (n *Network) predecessors(layer Layer) []Layer {
	return xslices.Keep(n.session.Predecessors(layer), n.contains)
}

// InputLayers returns the layers with no predecessor within the network, in creation
// order.
func (n *Network) InputLayers() []Layer {
	return xslices.Keep(n.layers, func(l Layer) bool { return len(n.predecessors(l)) == 0 })
}

// OutputLayers returns the layers with no successor within the network, in creation
// order.
func (n *Network) OutputLayers() []Layer {
	return xslices.Keep(n.layers, func(l Layer) bool {
		return len(xslices.Keep(n.session.Successors(l), n.contains)) == 0
	})
}

func describeLayers(layers []Layer) string {
	return strings.Join(xslices.Map(layers, func(l Layer) string { return l.Name() }), ", ")
}

// mergeLayerSets unions the layer slices, deduplicated, in session creation order.
func mergeLayerSets(session *Session, sets ...[]Layer) []Layer {
	seen := make(map[Layer]bool)
	var union []Layer
	for _, set := range sets {
		for _, l := range set {
			if !seen[l] {
				seen[l] = true
				union = append(union, l)
			}
		}
	}
	ordered := make([]Layer, len(union))
	copy(ordered, union)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && session.creationIndex(ordered[j-1]) > session.creationIndex(ordered[j]); j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}
	return ordered
}

// Join composes operands sequentially, left to right: each operand's output layers
// become predecessors of the next operand's single input layer.
//
// A pairwise join A then B requires B to expose exactly one input layer; A's output
// layers connect to it in order, so A may expose several outputs only when B's input
// layer accepts that many inputs (a variadic or multi-input merge layer). Violations
// throw *ConnectionError; a join that would create a cycle as well.
func Join(operands ...Composable) *Network {
	if len(operands) == 0 {
		ConnectionErrorf("Join requires at least one operand")
	}
	result := operands[0].AsNetwork()
	for _, operand := range operands[1:] {
		result = join2(result, operand.AsNetwork())
	}
	return result
}

func join2(a, b *Network) *Network {
	if a.session != b.session {
		ConnectionErrorf("cannot join networks from different sessions")
	}
	session := a.session
	bInputs := b.inputs
	if len(bInputs) != 1 {
		ConnectionErrorf("network (%s) has more than one input (%s), cannot join into it sequentially",
			describeLayers(b.outputs), describeLayers(bInputs))
	}
	target := bInputs[0]
	_, maxInputs := target.InputArity()
	if maxInputs >= 0 && len(a.outputs) > 1 {
		capacity := maxInputs - len(session.Predecessors(target))
		if len(a.outputs) > capacity {
			ConnectionErrorf("network (%s) has more than one output (%s), cannot join it into layer %q which accepts %d more input(s)",
				describeLayers(a.inputs), describeLayers(a.outputs), target.Name(), capacity)
		}
	}
	// Single-output overflows are reported by addEdge, naming both the existing and
	// the attempted predecessor.
	for _, out := range a.outputs {
		session.addEdge(out, target)
	}
	return &Network{
		session: session,
		layers:  mergeLayerSets(session, a.layers, b.layers),
		inputs:  a.inputs,
		outputs: b.outputs,
	}
}

// Parallel groups operands as branches of a multi-input/multi-output network, without
// wiring any edge between them. The branch order is kept in the resulting output
// layer order, which in turn fixes the input order of a merge layer joined after it
// -- semantically significant for concatenation.
func Parallel(operands ...Composable) *Network {
	if len(operands) == 0 {
		ConnectionErrorf("Parallel requires at least one operand")
	}
	branches := xslices.Map(operands, func(c Composable) *Network { return c.AsNetwork() })
	session := branches[0].session
	var layers, inputs, outputs []Layer
	seenIn, seenOut := make(map[Layer]bool), make(map[Layer]bool)
	for _, branch := range branches {
		if branch.session != session {
			ConnectionErrorf("cannot group networks from different sessions")
		}
		for _, l := range branch.inputs {
			if !seenIn[l] {
				seenIn[l] = true
				inputs = append(inputs, l)
			}
		}
		for _, l := range branch.outputs {
			if !seenOut[l] {
				seenOut[l] = true
				outputs = append(outputs, l)
			}
		}
		layers = append(layers, branch.layers...)
	}
	return &Network{
		session: session,
		layers:  mergeLayerSets(session, layers),
		inputs:  inputs,
		outputs: outputs,
	}
}

// TopologicalOrder returns a deterministic linearization of the network's layers:
// every layer appears after all its in-network predecessors, ties broken by creation
// order.
func (n *Network) TopologicalOrder() []Layer {
	done := make(map[Layer]bool)
	order := make([]Layer, 0, len(n.layers))
	for len(order) < len(n.layers) {
		progressed := false
		for _, layer := range n.layers {
			if done[layer] {
				continue
			}
			ready := true
			for _, pred := range n.predecessors(layer) {
				if !done[pred] {
					ready = false
					break
				}
			}
			if ready {
				done[layer] = true
				order = append(order, layer)
				progressed = true
				break
			}
		}
		if !progressed {
			// Unreachable while addEdge rejects cycles.
			ConnectionErrorf("network contains a cycle")
		}
	}
	return order
}

// SubgraphEndingAt returns the induced subgraph of all ancestors of layer plus layer
// itself, with layer as the single output. Used to truncate a network (e.g. a
// pretrained architecture) before attaching a new head.
func (n *Network) SubgraphEndingAt(layer Layer) *Network {
	if !n.contains(layer) {
		ConnectionErrorf("layer %q is not part of this network", layer.Name())
	}
	members := map[Layer]bool{layer: true}
	queue := []Layer{layer}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, pred := range n.predecessors(current) {
			if !members[pred] {
				members[pred] = true
				queue = append(queue, pred)
			}
		}
	}
	sub := &Network{
		session: n.session,
		layers:  xslices.Keep(n.layers, func(l Layer) bool { return members[l] }),
		outputs: []Layer{layer},
	}
	sub.inputs = sub.InputLayers()
	return sub
}

// PropagateShapes walks the network in topological order, feeding each layer's
// computed output shape(s) as the next layers' input shapes. Layers with no
// predecessor keep their declared input shape (or stay unknown). The first shape
// violation anywhere throws a *ShapeError naming the layer; arity shortfalls throw
// *ConnectionError.
//
// Idempotent: re-running on an unchanged network sets identical shapes.
func (n *Network) PropagateShapes() {
	for _, layer := range n.TopologicalOrder() {
		preds := n.predecessors(layer)
		if len(preds) == 0 {
			continue
		}
		minInputs, _ := layer.InputArity()
		if len(preds) < minInputs {
			ConnectionErrorf("layer %q requires at least %d inputs, it is connected to %d (%s)",
				layer.Name(), minInputs, len(preds), describeLayers(preds))
		}
		inputs := xslices.Map(preds, func(p Layer) shapes.Shape { return p.OutputShape() })
		layer.SetInputShapes(inputs)
		klog.V(2).Infof("propagate: %q inputs %v -> output %s", layer.Name(), inputs, layer.OutputShape())
	}
}

// Materialize propagates shapes and resolves every layer's declared parameters into
// backend-resident ones. Idempotent: parameters already bound keep their identity.
func (n *Network) Materialize(backend backends.Backend) {
	n.PropagateShapes()
	for _, layer := range n.TopologicalOrder() {
		layer.Materialize(backend)
	}
}

// Parameters returns the materialized parameters of all layers in topological order,
// deduplicated (tied parameters appear once).
func (n *Network) Parameters() []*Parameter {
	seen := make(map[*Parameter]bool)
	var params []*Parameter
	for _, layer := range n.TopologicalOrder() {
		for _, p := range layer.Parameters() {
			if !seen[p] {
				seen[p] = true
				params = append(params, p)
			}
		}
	}
	return params
}

// OutputShapes propagates shapes and returns the output shape of each designated
// output layer.
func (n *Network) OutputShapes() []shapes.Shape {
	n.PropagateShapes()
	return xslices.Map(n.outputs, func(l Layer) shapes.Shape { return l.OutputShape() })
}

// OutputShape is OutputShapes for the common single-output network.
func (n *Network) OutputShape() shapes.Shape {
	if len(n.outputs) != 1 {
		ConnectionErrorf("network has %d outputs (%s), expected exactly one",
			len(n.outputs), describeLayers(n.outputs))
	}
	return n.OutputShapes()[0]
}

// Outputs executes a forward pass: it materializes the network on ctx.Backend if
// needed, feeds the given tensors to the designated input layers in order, runs every
// layer in topological order and returns the designated output layers' tensors.
//
// During training passes (ctx.Training) each layer's pending state updates are
// applied right after its output is built.
func (n *Network) Outputs(ctx *ExecContext, inputs ...*tensors.Tensor) []*tensors.Tensor {
	if ctx == nil || ctx.Backend == nil {
		ConfigErrorf("Network", "Backend", "an ExecContext with a Backend is required to execute")
	}
	if len(inputs) != len(n.inputs) {
		ConnectionErrorf("network has %d input layers (%s), got %d input tensors",
			len(n.inputs), describeLayers(n.inputs), len(inputs))
	}
	n.Materialize(ctx.Backend)

	fedIndex := make(map[Layer]int, len(n.inputs))
	for ii, layer := range n.inputs {
		fedIndex[layer] = ii
	}
	values := make(map[Layer]*tensors.Tensor, len(n.layers))
	for _, layer := range n.TopologicalOrder() {
		var layerInputs []*tensors.Tensor
		preds := n.predecessors(layer)
		if len(preds) == 0 {
			idx, fed := fedIndex[layer]
			if !fed {
				ShapeErrorf(layer.Name(), "has no predecessor and no fed input tensor")
			}
			layerInputs = []*tensors.Tensor{inputs[idx]}
		} else {
			layerInputs = xslices.Map(preds, func(p Layer) *tensors.Tensor { return values[p] })
		}
		values[layer] = layer.BuildOutput(ctx, layerInputs)
		updates := layer.TakeUpdates()
		if ctx.Training {
			for _, u := range updates {
				u.Parameter.SetValue(u.Value)
			}
		}
	}
	return xslices.Map(n.outputs, func(l Layer) *tensors.Tensor { return values[l] })
}

// Output is Outputs for the common single-output network.
func (n *Network) Output(ctx *ExecContext, inputs ...*tensors.Tensor) *tensors.Tensor {
	if len(n.outputs) != 1 {
		ConnectionErrorf("network has %d outputs (%s), expected exactly one",
			len(n.outputs), describeLayers(n.outputs))
	}
	return n.Outputs(ctx, inputs...)[0]
}

// OutputsOrError is Outputs with the thrown error returned as a value instead.
func (n *Network) OutputsOrError(ctx *ExecContext, inputs ...*tensors.Tensor) (outputs []*tensors.Tensor, err error) {
	err = TryCatch(func() { outputs = n.Outputs(ctx, inputs...) })
	return
}

// OutputOrError is Output with the thrown error returned as a value instead.
func (n *Network) OutputOrError(ctx *ExecContext, inputs ...*tensors.Tensor) (output *tensors.Tensor, err error) {
	err = TryCatch(func() { output = n.Output(ctx, inputs...) })
	return
}

// Copy deep-copies the network within its session: every layer is cloned
// unmaterialized with the same configuration, and the edges among copied layers are
// rewired between the clones. Auto-named layers are renamed in the copy; explicitly
// named layers keep their name, which throws a *NamingConflictError -- give layers
// you intend to duplicate auto-generated names.
//
// Used by ensembling helpers that instantiate an architecture template repeatedly.
func (n *Network) Copy() *Network {
	clones := make(map[Layer]Layer, len(n.layers))
	for _, layer := range n.layers {
		clones[layer] = layer.Clone()
	}
	for _, layer := range n.layers {
		for _, pred := range n.predecessors(layer) {
			n.session.addEdge(clones[pred], clones[layer])
		}
	}
	mapped := func(layers []Layer) []Layer {
		return xslices.Map(layers, func(l Layer) Layer { return clones[l] })
	}
	return &Network{
		session: n.session,
		layers:  mapped(n.layers),
		inputs:  mapped(n.inputs),
		outputs: mapped(n.outputs),
	}
}
