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

// Package xslices holds small generic slice helpers used throughout the library.
package xslices

import (
	"golang.org/x/exp/constraints"
)

// Map applies fn to each element of in and returns the resulting slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// Last returns the last element of the slice. It panics if the slice is empty.
func Last[T any](slice []T) T {
	return slice[len(slice)-1]
}

// Max scans the slice and returns the largest element. It panics if the slice is empty.
func Max[T constraints.Ordered](slice []T) (max T) {
	max = slice[0]
	for _, v := range slice[1:] {
		if v > max {
			max = v
		}
	}
	return
}

// Fill returns a slice of the given size with every element set to value.
func Fill[T any](size int, value T) (slice []T) {
	slice = make([]T, size)
	for ii := range slice {
		slice[ii] = value
	}
	return
}

// Keep returns the elements of the slice for which fn returns true, preserving order.
func Keep[T any](slice []T, fn func(e T) bool) (kept []T) {
	for _, e := range slice {
		if fn(e) {
			kept = append(kept, e)
		}
	}
	return
}
