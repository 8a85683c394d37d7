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
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/gorse-ubcf/common/heap"
	"github.com/gorse-io/gorse-ubcf/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

var (
	ErrUnknownCustomer  = errors.NotFoundf("customer")
	ErrInvalidNeighbors = errors.NotValidf("number of neighbors")
)

// Neighbor is a customer similar to the target customer.
type Neighbor struct {
	CustomerId string
	Similarity float64
}

// Recommendation is a product bought by neighbors but not by the target
// customer. Score is the maximum similarity among supporting neighbors.
type Recommendation struct {
	ProductId           string
	Score               float64
	SupportingNeighbors []string
}

// Result is the outcome of recommending products to a customer.
type Result struct {
	// Purchased products of the target customer in ascending order.
	Purchased []string
	// Neighbors ordered by descending similarity, then ascending customer id.
	Neighbors []Neighbor
	// Recommendations ordered by descending score, then ascending product id.
	Recommendations []Recommendation
}

// Top returns the first n recommendations, or all of them if n is not positive.
func (r *Result) Top(n int) []Recommendation {
	if n <= 0 || n >= len(r.Recommendations) {
		return r.Recommendations
	}
	return r.Recommendations[:n]
}

// Recommend recommends products to a customer from the k most similar
// customers.
func Recommend(target string, m *dataset.InteractionMatrix, s *SimilarityMatrix, k int) (*Result, error) {
	targetIndex, ok := m.CustomerIndex(target)
	if !ok {
		return nil, errors.Annotatef(ErrUnknownCustomer, "%v", target)
	}
	if s.Count() != m.CountCustomers() {
		return nil, errors.Errorf("similarity matrix has %d customers but interaction matrix has %d",
			s.Count(), m.CountCustomers())
	}
	return recommend(targetIndex, m, s.Row(targetIndex), k)
}

// RecommendByRow is the same as Recommend but only requires similarities
// between the target customer and others, as returned by ComputeSimilarityRow.
func RecommendByRow(target string, m *dataset.InteractionMatrix, row []float64, k int) (*Result, error) {
	targetIndex, ok := m.CustomerIndex(target)
	if !ok {
		return nil, errors.Annotatef(ErrUnknownCustomer, "%v", target)
	}
	if len(row) != m.CountCustomers() {
		return nil, errors.Errorf("similarity row has %d customers but interaction matrix has %d",
			len(row), m.CountCustomers())
	}
	return recommend(targetIndex, m, row, k)
}

func recommend(target int32, m *dataset.InteractionMatrix, similarities []float64, k int) (*Result, error) {
	if k < 1 {
		return nil, errors.Annotatef(ErrInvalidNeighbors, "%d", k)
	}
	start := time.Now()
	defer func() {
		RecommendSeconds.Observe(time.Since(start).Seconds())
	}()

	// purchased products
	purchased := m.Purchased(target)
	purchasedSet := mapset.NewThreadUnsafeSet(purchased...)

	// find neighbors, customer indices follow the order of customer ids
	filter := heap.NewTopKFilter[int32, float64](k)
	for j, sim := range similarities {
		if int32(j) != target {
			filter.Push(int32(j), sim)
		}
	}
	neighbors := filter.PopAll()

	// collect candidates
	type candidate struct {
		score     float64
		neighbors []string
	}
	candidates := make(map[int32]*candidate)
	for _, neighbor := range neighbors {
		neighborId := m.CustomerId(neighbor.Value)
		for _, productIndex := range m.Purchased(neighbor.Value) {
			if purchasedSet.Contains(productIndex) {
				continue
			}
			if c, exist := candidates[productIndex]; exist {
				c.score = max(c.score, neighbor.Weight)
				c.neighbors = append(c.neighbors, neighborId)
			} else {
				candidates[productIndex] = &candidate{
					score:     neighbor.Weight,
					neighbors: []string{neighborId},
				}
			}
		}
	}

	// rank candidates
	recommendations := make([]Recommendation, 0, len(candidates))
	for productIndex, c := range candidates {
		recommendations = append(recommendations, Recommendation{
			ProductId:           m.ProductId(productIndex),
			Score:               c.score,
			SupportingNeighbors: c.neighbors,
		})
	}
	sort.Slice(recommendations, func(i, j int) bool {
		if recommendations[i].Score != recommendations[j].Score {
			return recommendations[i].Score > recommendations[j].Score
		}
		return recommendations[i].ProductId < recommendations[j].ProductId
	})

	return &Result{
		Purchased: lo.Map(purchased, func(productIndex int32, _ int) string {
			return m.ProductId(productIndex)
		}),
		Neighbors: lo.Map(neighbors, func(e heap.Elem[int32, float64], _ int) Neighbor {
			return Neighbor{CustomerId: m.CustomerId(e.Value), Similarity: e.Weight}
		}),
		Recommendations: recommendations,
	}, nil
}
