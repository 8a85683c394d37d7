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
	"slices"
	"sort"
)

// Dict maps identifiers to dense positions. Positions follow the ascending
// order of identifiers so that indices are reproducible across runs.
type Dict struct {
	si map[string]int32
	is []string
}

// NewDict creates a dictionary from identifiers, dropping duplicates.
func NewDict(ids []string) *Dict {
	is := slices.Clone(ids)
	sort.Strings(is)
	is = slices.Compact(is)
	si := make(map[string]int32, len(is))
	for i, s := range is {
		si[s] = int32(i)
	}
	return &Dict{si: si, is: is}
}

// Count returns the number of identifiers.
func (d *Dict) Count() int {
	return len(d.is)
}

// Id returns the position of an identifier.
func (d *Dict) Id(s string) (int32, bool) {
	y, ok := d.si[s]
	return y, ok
}

// String returns the identifier at a position.
func (d *Dict) String(id int32) (string, bool) {
	if id < 0 || int(id) >= len(d.is) {
		return "", false
	}
	return d.is[id], true
}

// Strings returns all identifiers in ascending order. The returned slice
// must not be modified.
func (d *Dict) Strings() []string {
	return d.is
}
