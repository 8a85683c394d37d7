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
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/gorse-ubcf/dataset"
	"github.com/jaswdr/faker"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type RecommendTestSuite struct {
	suite.Suite
}

func (suite *RecommendTestSuite) compute(m *dataset.InteractionMatrix) *SimilarityMatrix {
	s, err := ComputeSimilarity(context.Background(), m, 2)
	suite.NoError(err)
	return s
}

func (suite *RecommendTestSuite) TestScenario() {
	m := newScenario(suite.T())
	s := suite.compute(m)
	result, err := Recommend("A", m, s, 1)
	suite.NoError(err)
	suite.Equal([]string{"P1"}, result.Purchased)
	suite.Len(result.Neighbors, 1)
	suite.Equal("B", result.Neighbors[0].CustomerId)
	suite.InDelta(0.894, result.Neighbors[0].Similarity, 1e-3)
	suite.Len(result.Recommendations, 1)
	suite.Equal("P2", result.Recommendations[0].ProductId)
	suite.InDelta(4/(2*math.Sqrt(5)), result.Recommendations[0].Score, 1e-9)
	suite.Equal([]string{"B"}, result.Recommendations[0].SupportingNeighbors)
}

func (suite *RecommendTestSuite) TestTieBreak() {
	m := newScenario(suite.T())
	s := suite.compute(m)
	// C is dissimilar to both A and B, ties rank by customer id
	result, err := Recommend("C", m, s, 1)
	suite.NoError(err)
	suite.Equal([]Neighbor{{CustomerId: "A", Similarity: 0}}, result.Neighbors)
	suite.Equal([]Recommendation{{ProductId: "P1", Score: 0, SupportingNeighbors: []string{"A"}}}, result.Recommendations)
}

func (suite *RecommendTestSuite) TestOverflow() {
	m := newScenario(suite.T())
	s := suite.compute(m)
	result, err := Recommend("A", m, s, 10)
	suite.NoError(err)
	suite.Equal([]string{"B", "C"}, lo.Map(result.Neighbors, func(n Neighbor, _ int) string { return n.CustomerId }))
	suite.Equal([]string{"P2", "P3"}, lo.Map(result.Recommendations, func(r Recommendation, _ int) string { return r.ProductId }))
	suite.Equal([]string{"C"}, result.Recommendations[1].SupportingNeighbors)
	suite.Zero(result.Recommendations[1].Score)
}

func (suite *RecommendTestSuite) TestMaxAggregation() {
	m, err := dataset.Build([]dataset.Transaction{
		{CustomerId: "T", ProductId: "P1", Quantity: 1},
		{CustomerId: "T", ProductId: "P2", Quantity: 1},
		{CustomerId: "N1", ProductId: "P1", Quantity: 1},
		{CustomerId: "N1", ProductId: "P2", Quantity: 1},
		{CustomerId: "N1", ProductId: "X", Quantity: 1},
		{CustomerId: "N2", ProductId: "P1", Quantity: 1},
		{CustomerId: "N2", ProductId: "X", Quantity: 5},
		{CustomerId: "N2", ProductId: "Y", Quantity: 1},
	})
	suite.NoError(err)
	s := suite.compute(m)
	n1, _ := m.CustomerIndex("N1")
	n2, _ := m.CustomerIndex("N2")
	t, _ := m.CustomerIndex("T")
	suite.Greater(s.Get(t, n1), s.Get(t, n2))

	// a single supporting neighbor
	single, err := Recommend("T", m, s, 1)
	suite.NoError(err)
	suite.Equal([]string{"X"}, lo.Map(single.Recommendations, func(r Recommendation, _ int) string { return r.ProductId }))
	// the weaker neighbor neither dilutes nor lowers the score
	both, err := Recommend("T", m, s, 2)
	suite.NoError(err)
	suite.Equal("X", both.Recommendations[0].ProductId)
	suite.Equal(single.Recommendations[0].Score, both.Recommendations[0].Score)
	suite.Equal(s.Get(t, n1), both.Recommendations[0].Score)
	suite.Equal([]string{"N1", "N2"}, both.Recommendations[0].SupportingNeighbors)
	suite.Equal("Y", both.Recommendations[1].ProductId)
	suite.Equal(s.Get(t, n2), both.Recommendations[1].Score)
}

func (suite *RecommendTestSuite) TestNoPurchases() {
	m, err := dataset.Build([]dataset.Transaction{
		{CustomerId: "A", ProductId: "P1", Quantity: 1},
		{CustomerId: "B", ProductId: "P2", Quantity: 1},
		{CustomerId: "Z", ProductId: "P1", Quantity: 0},
	})
	suite.NoError(err)
	s := suite.compute(m)
	result, err := Recommend("Z", m, s, 2)
	suite.NoError(err)
	suite.Empty(result.Purchased)
	suite.Len(result.Neighbors, 2)
	suite.Equal([]string{"P1", "P2"}, lo.Map(result.Recommendations, func(r Recommendation, _ int) string { return r.ProductId }))
}

func (suite *RecommendTestSuite) TestNoNeighbors() {
	m, err := dataset.Build([]dataset.Transaction{
		{CustomerId: "A", ProductId: "P1", Quantity: 1},
	})
	suite.NoError(err)
	result, err := Recommend("A", m, suite.compute(m), 5)
	suite.NoError(err)
	suite.Equal([]string{"P1"}, result.Purchased)
	suite.Empty(result.Neighbors)
	suite.Empty(result.Recommendations)
}

func (suite *RecommendTestSuite) TestNoCandidates() {
	m, err := dataset.Build([]dataset.Transaction{
		{CustomerId: "A", ProductId: "P1", Quantity: 1},
		{CustomerId: "A", ProductId: "P2", Quantity: 1},
		{CustomerId: "B", ProductId: "P1", Quantity: 3},
	})
	suite.NoError(err)
	result, err := Recommend("A", m, suite.compute(m), 5)
	suite.NoError(err)
	suite.Len(result.Neighbors, 1)
	suite.NotNil(result.Recommendations)
	suite.Empty(result.Recommendations)
}

func (suite *RecommendTestSuite) TestErrors() {
	m := newScenario(suite.T())
	s := suite.compute(m)
	_, err := Recommend("D", m, s, 1)
	suite.True(errors.Is(err, ErrUnknownCustomer))
	suite.True(errors.Is(err, errors.NotFound))
	_, err = RecommendByRow("D", m, s.Row(0), 1)
	suite.True(errors.Is(err, ErrUnknownCustomer))
	_, err = Recommend("A", m, s, 0)
	suite.True(errors.Is(err, ErrInvalidNeighbors))
	_, err = RecommendByRow("A", m, []float64{1}, 1)
	suite.Error(err)
}

func (suite *RecommendTestSuite) TestTop() {
	result := &Result{Recommendations: []Recommendation{{ProductId: "1"}, {ProductId: "2"}, {ProductId: "3"}}}
	suite.Len(result.Top(2), 2)
	suite.Len(result.Top(3), 3)
	suite.Len(result.Top(10), 3)
	suite.Len(result.Top(0), 3)
}

func (suite *RecommendTestSuite) TestProperties() {
	fake := faker.New()
	m, err := dataset.Build(randomTransactions(fake, 50, 30, 300))
	suite.NoError(err)
	s := suite.compute(m)
	for _, customerId := range m.CustomerIds() {
		k := fake.IntBetween(1, 10)
		result, err := Recommend(customerId, m, s, k)
		suite.NoError(err)
		// exclusion
		purchased := mapset.NewSet(result.Purchased...)
		for _, r := range result.Recommendations {
			suite.False(purchased.Contains(r.ProductId))
			suite.NotEmpty(r.SupportingNeighbors)
		}
		// ranking order
		suite.Len(result.Neighbors, min(k, m.CountCustomers()-1))
		for i := 1; i < len(result.Neighbors); i++ {
			prev, cur := result.Neighbors[i-1], result.Neighbors[i]
			suite.True(prev.Similarity > cur.Similarity ||
				(prev.Similarity == cur.Similarity && prev.CustomerId < cur.CustomerId))
		}
		for i := 1; i < len(result.Recommendations); i++ {
			prev, cur := result.Recommendations[i-1], result.Recommendations[i]
			suite.True(prev.Score > cur.Score ||
				(prev.Score == cur.Score && prev.ProductId < cur.ProductId))
		}
		// determinism and on-demand rows
		again, err := Recommend(customerId, m, s, k)
		suite.NoError(err)
		suite.Equal(result, again)
		index, _ := m.CustomerIndex(customerId)
		byRow, err := RecommendByRow(customerId, m, ComputeSimilarityRow(m, index), k)
		suite.NoError(err)
		suite.Equal(result, byRow)
	}
}

func TestRecommend(t *testing.T) {
	suite.Run(t, new(RecommendTestSuite))
}
