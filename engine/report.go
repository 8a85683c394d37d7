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

package engine

import (
	"time"

	"github.com/gorse-io/gorse-ubcf/logics"
	"github.com/gorse-io/gorse-ubcf/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

type NeighborReport struct {
	data.Customer
	Similarity float64 `json:"similarity"`
	// Percent is the similarity in percent.
	Percent float64 `json:"percent"`
}

type RecommendationReport struct {
	data.Product
	Score float64 `json:"score"`
	// Confidence is the score in percent.
	Confidence          float64  `json:"confidence"`
	SupportingNeighbors []string `json:"supporting_neighbors"`
	NumSupporting       int      `json:"num_supporting"`
}

// Report is a recommendation for a customer with display names resolved.
type Report struct {
	Customer        data.Customer          `json:"customer"`
	Purchased       []data.Product         `json:"purchased"`
	Neighbors       []NeighborReport       `json:"neighbors"`
	Recommendations []RecommendationReport `json:"recommendations"`
	// NumCandidates counts recommendations before truncation to the top n.
	NumCandidates int     `json:"num_candidates"`
	MaxSimilarity float64 `json:"max_similarity"`
}

// Recommend recommends the top n products to a customer from k neighbors.
func (s *Snapshot) Recommend(customerId string, k, n int) (*Report, error) {
	if n < 1 {
		return nil, errors.Annotatef(ErrInvalidRecommendations, "%d", n)
	}
	result, err := s.recommend(customerId, k)
	if err != nil {
		return nil, errors.Trace(err)
	}
	report := &Report{
		Customer: s.Customer(customerId),
		Purchased: lo.Map(result.Purchased, func(productId string, _ int) data.Product {
			return s.Product(productId)
		}),
		Neighbors: s.neighborReports(result.Neighbors),
		Recommendations: lo.Map(result.Top(n), func(r logics.Recommendation, _ int) RecommendationReport {
			return RecommendationReport{
				Product:             s.Product(r.ProductId),
				Score:               r.Score,
				Confidence:          r.Score * 100,
				SupportingNeighbors: r.SupportingNeighbors,
				NumSupporting:       len(r.SupportingNeighbors),
			}
		}),
		NumCandidates: len(result.Recommendations),
	}
	if len(result.Neighbors) > 0 {
		report.MaxSimilarity = result.Neighbors[0].Similarity * 100
	}
	return report, nil
}

// Neighbors returns the k customers most similar to a customer.
func (s *Snapshot) Neighbors(customerId string, k int) ([]NeighborReport, error) {
	result, err := s.recommend(customerId, k)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return s.neighborReports(result.Neighbors), nil
}

func (s *Snapshot) recommend(customerId string, k int) (*logics.Result, error) {
	if s.Similarity != nil {
		return logics.Recommend(customerId, s.Matrix, s.Similarity, k)
	}
	index, ok := s.Matrix.CustomerIndex(customerId)
	if !ok {
		return nil, errors.Annotatef(logics.ErrUnknownCustomer, "%v", customerId)
	}
	return logics.RecommendByRow(customerId, s.Matrix, logics.ComputeSimilarityRow(s.Matrix, index), k)
}

func (s *Snapshot) neighborReports(neighbors []logics.Neighbor) []NeighborReport {
	return lo.Map(neighbors, func(neighbor logics.Neighbor, _ int) NeighborReport {
		return NeighborReport{
			Customer:   s.Customer(neighbor.CustomerId),
			Similarity: neighbor.Similarity,
			Percent:    neighbor.Similarity * 100,
		}
	})
}

// Stats summarizes the interaction matrix.
type Stats struct {
	NumCustomers    int       `json:"num_customers"`
	NumProducts     int       `json:"num_products"`
	NumTransactions int       `json:"num_transactions"`
	Density         float64   `json:"density"`
	Timestamp       time.Time `json:"timestamp"`
}

func (s *Snapshot) Stats() Stats {
	return Stats{
		NumCustomers:    s.Matrix.CountCustomers(),
		NumProducts:     s.Matrix.CountProducts(),
		NumTransactions: s.Matrix.Count(),
		Density:         s.Matrix.Density() * 100,
		Timestamp:       s.Timestamp,
	}
}
