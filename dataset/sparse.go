// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"math"
	"slices"
)

// SparseVector stores non-zero entries of a vector sorted by index.
type SparseVector struct {
	Indices []int32
	Values  []float64
}

// Len returns the number of non-zero entries.
func (vec *SparseVector) Len() int {
	return len(vec.Indices)
}

// Get returns the value at an index, or 0 if the entry is absent.
func (vec *SparseVector) Get(index int32) float64 {
	if i, found := slices.BinarySearch(vec.Indices, index); found {
		return vec.Values[i]
	}
	return 0
}

// ForEach iterates entries in the sparse vector.
func (vec *SparseVector) ForEach(f func(index int32, value float64)) {
	for i := range vec.Indices {
		f(vec.Indices[i], vec.Values[i])
	}
}

// ForIntersection iterates entries present in both vectors in linear time.
func (vec *SparseVector) ForIntersection(other *SparseVector, f func(index int32, a, b float64)) {
	i, j := 0, 0
	for i < len(vec.Indices) && j < len(other.Indices) {
		if vec.Indices[i] == other.Indices[j] {
			f(vec.Indices[i], vec.Values[i], other.Values[j])
			i++
			j++
		} else if vec.Indices[i] < other.Indices[j] {
			i++
		} else {
			j++
		}
	}
}

// Dot returns the inner product of two vectors.
func (vec *SparseVector) Dot(other *SparseVector) float64 {
	sum := 0.0
	vec.ForIntersection(other, func(_ int32, a, b float64) {
		sum += a * b
	})
	return sum
}

// Norm returns the Euclidean norm of the vector.
func (vec *SparseVector) Norm() float64 {
	sum := 0.0
	for _, v := range vec.Values {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Max returns the largest absolute value in the vector, or 0 if it is empty.
func (vec *SparseVector) Max() float64 {
	m := 0.0
	for _, v := range vec.Values {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

// Div returns a copy of the vector with every value divided by d. The
// indices are shared with the receiver.
func (vec *SparseVector) Div(d float64) *SparseVector {
	values := make([]float64, len(vec.Values))
	for i, v := range vec.Values {
		values[i] = v / d
	}
	return &SparseVector{Indices: vec.Indices, Values: values}
}
