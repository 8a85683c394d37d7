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
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorse-io/gorse-ubcf/config"
	"github.com/gorse-io/gorse-ubcf/dataset"
	"github.com/gorse-io/gorse-ubcf/logics"
	"github.com/gorse-io/gorse-ubcf/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type flakyDatabase struct {
	data.Database
	failures int
}

func (db *flakyDatabase) GetTransactions(ctx context.Context, customerType string) ([]dataset.Transaction, error) {
	if db.failures > 0 {
		db.failures--
		return nil, errors.New("connection refused")
	}
	return db.Database.GetTransactions(ctx, customerType)
}

type EngineTestSuite struct {
	suite.Suite
	data.Database
	config *config.Config
}

func (suite *EngineTestSuite) SetupTest() {
	var err error
	suite.Database, err = data.Open("sqlite://"+filepath.Join(suite.T().TempDir(), "data.db"), "")
	suite.NoError(err)
	suite.NoError(suite.Database.Init())
	ctx := context.Background()
	suite.NoError(suite.Database.BatchInsertCustomers(ctx, []data.Customer{
		{CustomerId: "A", Name: "Alice", CustomerType: data.PersonCustomer},
		{CustomerId: "B", Name: "Bob", CustomerType: data.PersonCustomer},
		{CustomerId: "C", Name: "Carol", CustomerType: data.PersonCustomer},
		{CustomerId: "D", Name: "Contoso", CustomerType: data.CompanyCustomer},
	}))
	suite.NoError(suite.Database.BatchInsertProducts(ctx, []data.Product{
		{ProductId: "P1", Name: "Laptop"},
		{ProductId: "P2", Name: "Phone"},
	}))
	suite.NoError(suite.Database.BatchInsertSales(ctx, []data.Sale{
		{CustomerId: "A", ProductId: "P1", Quantity: 1},
		{CustomerId: "A", ProductId: "P1", Quantity: 1},
		{CustomerId: "B", ProductId: "P1", Quantity: 2},
		{CustomerId: "B", ProductId: "P2", Quantity: 1},
		{CustomerId: "C", ProductId: "P3", Quantity: 3},
		{CustomerId: "D", ProductId: "P2", Quantity: 5},
	}))
	suite.config = config.GetDefaultConfig()
	suite.config.Similarity.NumJobs = 2
	suite.config.Retry.InitialInterval = time.Millisecond
	suite.config.Retry.MaxElapsedTime = time.Second
}

func (suite *EngineTestSuite) TearDownTest() {
	suite.NoError(suite.Database.Close())
}

func (suite *EngineTestSuite) TestLoad() {
	snapshot, err := Load(context.Background(), suite.Database, suite.config)
	suite.NoError(err)
	stats := snapshot.Stats()
	suite.Equal(3, stats.NumCustomers)
	suite.Equal(3, stats.NumProducts)
	suite.Equal(4, stats.NumTransactions)
	suite.InDelta(400.0/9, stats.Density, 1e-9)
	suite.Equal(snapshot.Timestamp, stats.Timestamp)
	suite.Equal([]string{"Alice", "Bob", "Carol"}, lo.Map(snapshot.CustomerList(), func(c data.Customer, _ int) string {
		return c.Name
	}))

	// all customers
	suite.config.Recommend.CustomerType = ""
	snapshot, err = Load(context.Background(), suite.Database, suite.config)
	suite.NoError(err)
	suite.Equal(4, snapshot.Stats().NumCustomers)
	suite.Equal("Contoso", snapshot.Customer("D").Name)
}

func (suite *EngineTestSuite) TestRecommend() {
	snapshot, err := Load(context.Background(), suite.Database, suite.config)
	suite.NoError(err)
	report, err := snapshot.Recommend("A", 1, 3)
	suite.NoError(err)
	suite.Equal(data.Customer{CustomerId: "A", Name: "Alice", CustomerType: data.PersonCustomer}, report.Customer)
	suite.Equal([]data.Product{{ProductId: "P1", Name: "Laptop"}}, report.Purchased)
	suite.Len(report.Neighbors, 1)
	suite.Equal("Bob", report.Neighbors[0].Name)
	suite.InDelta(200/math.Sqrt(5), report.Neighbors[0].Percent, 1e-9)
	suite.InDelta(200/math.Sqrt(5), report.MaxSimilarity, 1e-9)
	suite.Equal(1, report.NumCandidates)
	suite.Len(report.Recommendations, 1)
	suite.Equal(data.Product{ProductId: "P2", Name: "Phone"}, report.Recommendations[0].Product)
	suite.InDelta(2/math.Sqrt(5), report.Recommendations[0].Score, 1e-9)
	suite.InDelta(200/math.Sqrt(5), report.Recommendations[0].Confidence, 1e-9)
	suite.Equal([]string{"B"}, report.Recommendations[0].SupportingNeighbors)
	suite.Equal(1, report.Recommendations[0].NumSupporting)

	// products missing from the catalog are named by id
	report, err = snapshot.Recommend("A", 2, 3)
	suite.NoError(err)
	suite.Equal(2, report.NumCandidates)
	suite.Equal(data.Product{ProductId: "P3", Name: "P3"}, report.Recommendations[1].Product)
	// truncated to top n
	report, err = snapshot.Recommend("A", 2, 1)
	suite.NoError(err)
	suite.Equal(2, report.NumCandidates)
	suite.Len(report.Recommendations, 1)
}

func (suite *EngineTestSuite) TestNeighbors() {
	snapshot, err := Load(context.Background(), suite.Database, suite.config)
	suite.NoError(err)
	neighbors, err := snapshot.Neighbors("C", 5)
	suite.NoError(err)
	suite.Equal([]string{"A", "B"}, lo.Map(neighbors, func(n NeighborReport, _ int) string { return n.CustomerId }))
	suite.Zero(neighbors[0].Similarity)
	purchased, err := snapshot.Purchased("B")
	suite.NoError(err)
	suite.Equal([]data.Product{{ProductId: "P1", Name: "Laptop"}, {ProductId: "P2", Name: "Phone"}}, purchased)
}

func (suite *EngineTestSuite) TestLoadMatrix() {
	full, err := Load(context.Background(), suite.Database, suite.config)
	suite.NoError(err)
	lazy, err := LoadMatrix(context.Background(), suite.Database, suite.config)
	suite.NoError(err)
	suite.Nil(lazy.Similarity)
	suite.Equal(full.Stats().NumTransactions, lazy.Stats().NumTransactions)
	for _, customerId := range full.Matrix.CustomerIds() {
		for k := 1; k <= 3; k++ {
			expected, err := full.Recommend(customerId, k, 3)
			suite.NoError(err)
			actual, err := lazy.Recommend(customerId, k, 3)
			suite.NoError(err)
			suite.Equal(expected, actual)
			neighbors, err := lazy.Neighbors(customerId, k)
			suite.NoError(err)
			suite.Equal(expected.Neighbors, neighbors)
		}
	}
	_, err = lazy.Recommend("D", 5, 3)
	suite.True(errors.Is(err, logics.ErrUnknownCustomer))
	_, err = lazy.Recommend("A", 0, 3)
	suite.True(errors.Is(err, errors.NotValid))

	suite.NoError(suite.Database.Purge())
	_, err = LoadMatrix(context.Background(), suite.Database, suite.config)
	suite.True(errors.Is(err, dataset.ErrEmptyInput))
}

func (suite *EngineTestSuite) TestErrors() {
	snapshot, err := Load(context.Background(), suite.Database, suite.config)
	suite.NoError(err)
	_, err = snapshot.Recommend("D", 5, 3)
	suite.True(errors.Is(err, logics.ErrUnknownCustomer))
	_, err = snapshot.Recommend("A", 0, 3)
	suite.True(errors.Is(err, errors.NotValid))
	_, err = snapshot.Recommend("A", 5, 0)
	suite.True(errors.Is(err, ErrInvalidRecommendations))
	_, err = snapshot.Neighbors("X", 5)
	suite.True(errors.Is(err, errors.NotFound))
	_, err = snapshot.Purchased("X")
	suite.True(errors.Is(err, errors.NotFound))
}

func (suite *EngineTestSuite) TestRetry() {
	db := &flakyDatabase{Database: suite.Database, failures: 2}
	snapshot, err := Load(context.Background(), db, suite.config)
	suite.NoError(err)
	suite.Zero(db.failures)
	suite.Equal(3, snapshot.Stats().NumCustomers)

	// give up
	db = &flakyDatabase{Database: suite.Database, failures: math.MaxInt}
	suite.config.Retry.MaxElapsedTime = 20 * time.Millisecond
	_, err = Load(context.Background(), db, suite.config)
	suite.Error(err)
}

func (suite *EngineTestSuite) TestEmpty() {
	suite.NoError(suite.Database.Purge())
	_, err := Load(context.Background(), suite.Database, suite.config)
	suite.True(errors.Is(err, dataset.ErrEmptyInput))
}

func TestEngine(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func TestLoadNoDatabase(t *testing.T) {
	start := time.Now()
	_, err := Load(context.Background(), nil, config.GetDefaultConfig())
	assert.True(t, errors.Is(err, errors.NotAssigned))
	_, err = Load(context.Background(), data.NoDatabase{}, config.GetDefaultConfig())
	assert.ErrorIs(t, err, data.ErrNoDatabase)
	// no retries without a database
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestNewSnapshot(t *testing.T) {
	snapshot, err := NewSnapshot(context.Background(), []dataset.Transaction{
		{CustomerId: "1", ProductId: "10", Quantity: 1},
		{CustomerId: "2", ProductId: "10", Quantity: 1},
		{CustomerId: "2", ProductId: "20", Quantity: 1},
	}, nil, nil, 1)
	assert.NoError(t, err)
	assert.Equal(t, data.Customer{CustomerId: "1", Name: "1"}, snapshot.Customer("1"))
	report, err := snapshot.Recommend("1", 5, 5)
	assert.NoError(t, err)
	assert.Equal(t, "20", report.Recommendations[0].Name)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewSnapshot(ctx, []dataset.Transaction{{CustomerId: "1", ProductId: "10", Quantity: 1}}, nil, nil, 1)
	assert.True(t, errors.Is(err, context.Canceled))
}
