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

package logics

import (
	"context"
	"math"
	"time"

	"github.com/gorse-io/gorse-ubcf/base/log"
	"github.com/gorse-io/gorse-ubcf/common/parallel"
	"github.com/gorse-io/gorse-ubcf/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// SimilarityMatrix is a symmetric customer by customer matrix of cosine
// similarities. Rows and columns follow the row order of the interaction
// matrix it was computed from.
type SimilarityMatrix struct {
	n      int
	values []float64
}

// Count returns the number of customers.
func (s *SimilarityMatrix) Count() int {
	return s.n
}

// Get returns the similarity between the i-th and the j-th customer.
func (s *SimilarityMatrix) Get(i, j int32) float64 {
	return s.values[int(i)*s.n+int(j)]
}

// Row returns similarities between the i-th customer and all customers. It
// must not be modified.
func (s *SimilarityMatrix) Row(i int32) []float64 {
	return s.values[int(i)*s.n : int(i+1)*s.n]
}

// userToUser holds the column view and norms shared by similarity routines.
// Every row is divided by its largest quantity before use, so norms lie in
// [1, sqrt(n_products)] and neither overflow nor underflow to zero. Cosine
// is invariant to per-row scaling.
type userToUser struct {
	rows      []*dataset.SparseVector
	norms     []float64
	customers [][]int32
	values    [][]float64
}

func newUserToUser(m *dataset.InteractionMatrix) *userToUser {
	u := &userToUser{
		rows:      make([]*dataset.SparseVector, m.CountCustomers()),
		norms:     make([]float64, m.CountCustomers()),
		customers: make([][]int32, m.CountProducts()),
		values:    make([][]float64, m.CountProducts()),
	}
	for i := range u.rows {
		row := m.Row(int32(i))
		if peak := row.Max(); peak > 0 {
			row = row.Div(peak)
		}
		u.rows[i] = row
		u.norms[i] = row.Norm()
		row.ForEach(func(productIndex int32, quantity float64) {
			u.customers[productIndex] = append(u.customers[productIndex], int32(i))
			u.values[productIndex] = append(u.values[productIndex], quantity)
		})
	}
	return u
}

// dots accumulates inner products between the i-th customer and customers
// accepted by the filter. Terms are added in ascending product order so
// that every pair sums identically whichever side drives the loop. A
// customer is reported in touched once, even if its partial sums are 0.
func (u *userToUser) dots(i int32, buf []float64, seen []bool, touched []int32, accept func(j int32) bool) []int32 {
	touched = touched[:0]
	u.rows[i].ForEach(func(productIndex int32, a float64) {
		for k, j := range u.customers[productIndex] {
			if j == i || !accept(j) {
				continue
			}
			if !seen[j] {
				seen[j] = true
				touched = append(touched, j)
			}
			buf[j] += a * u.values[productIndex][k]
		}
	})
	return touched
}

func (u *userToUser) cosine(i, j int32, dot float64) float64 {
	if u.norms[i] == 0 || u.norms[j] == 0 {
		return 0
	}
	return math.Max(0, math.Min(1, dot/(u.norms[i]*u.norms[j])))
}

func (u *userToUser) self(i int32) float64 {
	if u.norms[i] == 0 {
		return 0
	}
	return 1
}

// ComputeSimilarity computes cosine similarities between all pairs of
// customers. Customers without purchases are dissimilar to everyone,
// including themselves. Rows are distributed over jobs workers.
func ComputeSimilarity(ctx context.Context, m *dataset.InteractionMatrix, jobs int) (*SimilarityMatrix, error) {
	start := time.Now()
	n := m.CountCustomers()
	u := newUserToUser(m)
	s := &SimilarityMatrix{n: n, values: make([]float64, n*n)}
	if jobs < 1 {
		jobs = 1
	}
	buffers := make([][]float64, jobs)
	seen := make([][]bool, jobs)
	touched := make([][]int32, jobs)
	for i := range buffers {
		buffers[i] = make([]float64, n)
		seen[i] = make([]bool, n)
	}
	// compute upper triangle and mirror it
	err := parallel.Parallel(ctx, n, jobs, func(workerId, jobId int) error {
		i := int32(jobId)
		buf, mark := buffers[workerId], seen[workerId]
		touched[workerId] = u.dots(i, buf, mark, touched[workerId], func(j int32) bool { return j > i })
		for _, j := range touched[workerId] {
			sim := u.cosine(i, j, buf[j])
			s.values[int(i)*n+int(j)] = sim
			s.values[int(j)*n+int(i)] = sim
			buf[j] = 0
			mark[j] = false
		}
		s.values[int(i)*n+int(i)] = u.self(i)
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	elapsed := time.Since(start)
	ComputeSimilaritySeconds.Observe(elapsed.Seconds())
	log.Logger().Info("compute customer similarity",
		zap.Int("n_customers", n),
		zap.Int("n_products", m.CountProducts()),
		zap.Int("n_purchases", m.Count()),
		zap.Int("n_jobs", jobs),
		zap.Duration("elapsed", elapsed))
	return s, nil
}

// ComputeSimilarityRow computes similarities between one customer and all
// customers. The values are identical to the corresponding row of
// ComputeSimilarity.
func ComputeSimilarityRow(m *dataset.InteractionMatrix, target int32) []float64 {
	u := newUserToUser(m)
	row := make([]float64, m.CountCustomers())
	seen := make([]bool, len(row))
	touched := u.dots(target, row, seen, nil, func(int32) bool { return true })
	for _, j := range touched {
		row[j] = u.cosine(target, j, row[j])
	}
	row[target] = u.self(target)
	return row
}
