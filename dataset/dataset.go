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
	"sort"

	"github.com/juju/errors"
	"github.com/samber/lo"
)

var (
	ErrEmptyInput      = errors.NotValidf("empty transactions")
	ErrInvalidQuantity = errors.NotValidf("quantity")
)

// Transaction is the total quantity of a product bought by a customer.
type Transaction struct {
	CustomerId string
	ProductId  string
	Quantity   float64
}

// InteractionMatrix is a customer by product matrix of purchased quantities.
// Rows and columns are sorted by identifiers. Absent cells are zero.
type InteractionMatrix struct {
	customers *Dict
	products  *Dict
	rows      []SparseVector
	count     int
}

// Build creates an interaction matrix from transactions. Quantities of
// duplicated customer-product pairs are summed.
func Build(transactions []Transaction) (*InteractionMatrix, error) {
	if len(transactions) == 0 {
		return nil, errors.Trace(ErrEmptyInput)
	}
	type cell struct {
		customer string
		product  string
	}
	// sum quantities
	quantities := make(map[cell]float64, len(transactions))
	for _, t := range transactions {
		if t.Quantity < 0 || math.IsNaN(t.Quantity) || math.IsInf(t.Quantity, 0) {
			return nil, errors.Annotatef(ErrInvalidQuantity, "%v of product %v bought by customer %v",
				t.Quantity, t.ProductId, t.CustomerId)
		}
		quantities[cell{t.CustomerId, t.ProductId}] += t.Quantity
	}
	m := &InteractionMatrix{
		customers: NewDict(lo.Map(transactions, func(t Transaction, _ int) string { return t.CustomerId })),
		products:  NewDict(lo.Map(transactions, func(t Transaction, _ int) string { return t.ProductId })),
	}
	// fill rows
	m.rows = make([]SparseVector, m.customers.Count())
	for c, quantity := range quantities {
		if quantity == 0 {
			continue
		}
		customerIndex, _ := m.customers.Id(c.customer)
		productIndex, _ := m.products.Id(c.product)
		row := &m.rows[customerIndex]
		row.Indices = append(row.Indices, productIndex)
		row.Values = append(row.Values, quantity)
		m.count++
	}
	for i := range m.rows {
		sort.Sort(byIndex{&m.rows[i]})
	}
	return m, nil
}

type byIndex struct {
	*SparseVector
}

func (v byIndex) Less(i, j int) bool {
	return v.Indices[i] < v.Indices[j]
}

func (v byIndex) Swap(i, j int) {
	v.Indices[i], v.Indices[j] = v.Indices[j], v.Indices[i]
	v.Values[i], v.Values[j] = v.Values[j], v.Values[i]
}

// CountCustomers returns the number of rows.
func (m *InteractionMatrix) CountCustomers() int {
	return m.customers.Count()
}

// CountProducts returns the number of columns.
func (m *InteractionMatrix) CountProducts() int {
	return m.products.Count()
}

// Count returns the number of non-zero cells.
func (m *InteractionMatrix) Count() int {
	return m.count
}

// Density returns the ratio of non-zero cells.
func (m *InteractionMatrix) Density() float64 {
	return float64(m.count) / float64(m.CountCustomers()) / float64(m.CountProducts())
}

func (m *InteractionMatrix) CustomerIds() []string {
	return m.customers.Strings()
}

func (m *InteractionMatrix) ProductIds() []string {
	return m.products.Strings()
}

func (m *InteractionMatrix) CustomerIndex(customerId string) (int32, bool) {
	return m.customers.Id(customerId)
}

func (m *InteractionMatrix) ProductIndex(productId string) (int32, bool) {
	return m.products.Id(productId)
}

func (m *InteractionMatrix) CustomerId(index int32) string {
	s, _ := m.customers.String(index)
	return s
}

func (m *InteractionMatrix) ProductId(index int32) string {
	s, _ := m.products.String(index)
	return s
}

// Row returns quantities bought by the i-th customer. It must not be modified.
func (m *InteractionMatrix) Row(i int32) *SparseVector {
	return &m.rows[i]
}

// Get returns the quantity of a product bought by a customer. Unknown
// identifiers read as zero.
func (m *InteractionMatrix) Get(customerId, productId string) float64 {
	customerIndex, ok := m.customers.Id(customerId)
	if !ok {
		return 0
	}
	productIndex, ok := m.products.Id(productId)
	if !ok {
		return 0
	}
	return m.rows[customerIndex].Get(productIndex)
}

// Purchased returns indices of products bought by the i-th customer in
// ascending order. It must not be modified.
func (m *InteractionMatrix) Purchased(i int32) []int32 {
	return m.rows[i].Indices
}
