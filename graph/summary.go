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
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/neurago/neurago/types/shapes"
	"github.com/neurago/neurago/types/xslices"
)

var (
	summaryCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	summaryNumberStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	summaryBorderColor = "#705090"
)

// Summary propagates shapes and renders a table of the network's layers in
// topological order -- name, kind, input/output shapes and parameter count -- plus
// totals with a humanized parameter-memory estimate.
func (n *Network) Summary() string {
	n.PropagateShapes()
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(summaryBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col >= 4 {
				return summaryNumberStyle
			}
			return summaryCellStyle
		})
	table.Headers("Layer", "Kind", "Input Shapes", "Output Shape", "#Params")

	totalParams := 0
	var totalMemory uintptr
	for _, layer := range n.TopologicalOrder() {
		inputs := "-"
		if layer.InputShapes() != nil {
			inputs = strings.Join(
				xslices.Map(layer.InputShapes(), func(s shapes.Shape) string { return s.String() }), ", ")
		}
		output := layer.OutputShape()
		outputDesc := "?"
		if output.Ok() {
			outputDesc = output.String()
		}
		numParams := layer.ParameterSizes()
		totalParams += numParams
		if output.Ok() {
			totalMemory += uintptr(numParams) * output.DType.Memory()
		}
		table.Row(layer.Name(), layer.Kind(), inputs, outputDesc, humanize.Comma(int64(numParams)))
	}

	return fmt.Sprintf("%s\nTotal: %s parameters (%s)\n",
		table.Render(), humanize.Comma(int64(totalParams)), humanize.Bytes(uint64(totalMemory)))
}
