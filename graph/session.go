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
	"strconv"
	"strings"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// Session is the full graph: the registry of every layer created within one build
// scope, plus the directed edges joined between them. Layer names are unique per
// session, and auto-generated names scan the whole session -- including layers not yet
// wired into any visible subgraph -- so that later joins can never silently collide.
//
// A process-wide default session exists for the common script-like use; tests and
// long-lived processes building independent models should create their own with
// NewSession. Sessions are not safe for concurrent construction: the model is
// single-writer build, then read-only use.
type Session struct {
	// ID identifies the session, e.g. in checkpoint metadata.
	ID string

	layers []Layer // in creation order
	byName map[string]Layer

	preds map[Layer][]Layer // in edge insertion order, semantically significant
	succs map[Layer][]Layer
}

// NewSession creates an empty build session.
func NewSession() *Session {
	return &Session{
		ID:     uuid.NewString(),
		byName: make(map[string]Layer),
		preds:  make(map[Layer][]Layer),
		succs:  make(map[Layer][]Layer),
	}
}

var defaultSession = NewSession()

// Default returns the process-wide default session, used by layer constructors when
// no explicit session is given.
func Default() *Session { return defaultSession }

// ResetDefault replaces the process-wide default session with a fresh one and returns
// it. Meant for tests and REPL-like usage.
func ResetDefault() *Session {
	defaultSession = NewSession()
	return defaultSession
}

// Register adds a layer to the session under the given name, or under a generated
// "<kind-slug>-<n>" name if name is empty. It throws a *NamingConflictError if the
// name is already taken. Called by layer constructors; the returned string is the
// final name.
func (s *Session) Register(layer Layer, name string) string {
	if name == "" {
		name = s.generateName(kindToSlug(layer.Kind()))
	} else if _, taken := s.byName[name]; taken {
		throw(&NamingConflictError{Name: name})
	}
	s.byName[name] = layer
	s.layers = append(s.layers, layer)
	klog.V(1).Infof("session %s: registered layer %q (%s)", s.ID, name, layer.Kind())
	return name
}

// generateName appends to slug the smallest positive integer suffix not already used
// by any layer in the session whose name shares the slug prefix.
func (s *Session) generateName(slug string) string {
	used := make(map[int]bool)
	prefix := slug + "-"
	for name := range s.byName {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if n, err := strconv.Atoi(name[len(prefix):]); err == nil && n > 0 {
			used[n] = true
		}
	}
	for n := 1; ; n++ {
		if !used[n] {
			return fmt.Sprintf("%s-%d", slug, n)
		}
	}
}

// LayerByName returns the layer registered under name, or nil.
func (s *Session) LayerByName(name string) Layer { return s.byName[name] }

// Layers returns all layers of the session in creation order. The returned slice is
// shared, not a copy.
func (s *Session) Layers() []Layer { return s.layers }

// creationIndex returns the position of layer in the session's creation order, or -1.
func (s *Session) creationIndex(layer Layer) int {
	for ii, l := range s.layers {
		if l == layer {
			return ii
		}
	}
	return -1
}

// Predecessors of a layer, in edge insertion order. The order is what merge layers
// see as their input order.
func (s *Session) Predecessors(layer Layer) []Layer { return s.preds[layer] }

// Successors of a layer, in edge insertion order.
func (s *Session) Successors(layer Layer) []Layer { return s.succs[layer] }

// addEdge wires from as a predecessor of to. It throws a *ConnectionError if the edge
// would create a cycle, or if to is a single-input layer that already has a
// predecessor -- the error names both the attempted and the existing predecessor.
func (s *Session) addEdge(from, to Layer) {
	for _, existing := range s.preds[to] {
		if existing == from {
			return // already wired, rejoining is a no-op
		}
	}
	if s.reaches(to, from) {
		ConnectionErrorf("joining %q into %q would create a cycle", from.Name(), to.Name())
	}
	_, maxInputs := to.InputArity()
	if existing := s.preds[to]; maxInputs >= 0 && len(existing)+1 > maxInputs {
		if maxInputs == 1 {
			ConnectionErrorf("layer %q accepts a single input and is already connected to %q, cannot also connect %q",
				to.Name(), existing[0].Name(), from.Name())
		}
		ConnectionErrorf("layer %q accepts at most %d inputs, cannot connect %q as input #%d",
			to.Name(), maxInputs, from.Name(), len(existing)+1)
	}
	s.preds[to] = append(s.preds[to], from)
	s.succs[from] = append(s.succs[from], to)
	klog.V(2).Infof("session %s: edge %q -> %q", s.ID, from.Name(), to.Name())
}

// reaches reports whether to is reachable from from following successor edges.
func (s *Session) reaches(from, to Layer) bool {
	if from == to {
		return true
	}
	for _, next := range s.succs[from] {
		if s.reaches(next, to) {
			return true
		}
	}
	return false
}

// kindToSlug converts a CamelCase layer kind into a lower-case hyphen-separated slug:
// "Dense" -> "dense", "BatchNorm" -> "batch-norm", "PRelu" -> "p-relu".
func kindToSlug(kind string) string {
	var b strings.Builder
	for ii, r := range kind {
		if r >= 'A' && r <= 'Z' {
			if ii > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
