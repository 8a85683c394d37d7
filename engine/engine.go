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

// Package engine runs the analysis over the data store and answers
// recommendation queries against its result.
package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorse-io/gorse-ubcf/base/log"
	"github.com/gorse-io/gorse-ubcf/config"
	"github.com/gorse-io/gorse-ubcf/dataset"
	"github.com/gorse-io/gorse-ubcf/logics"
	"github.com/gorse-io/gorse-ubcf/storage/data"
	"github.com/juju/errors"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var ErrInvalidRecommendations = errors.NotValidf("number of recommendations")

// Snapshot is the immutable result of one analytical run. Similarity is nil
// if the snapshot was loaded by LoadMatrix.
type Snapshot struct {
	Matrix     *dataset.InteractionMatrix
	Similarity *logics.SimilarityMatrix
	Customers  map[string]data.Customer
	Products   map[string]data.Product
	Timestamp  time.Time
}

// Load reads sales and catalogs from the data store and analyzes them.
// Reads are retried with exponential backoff.
func Load(ctx context.Context, db data.Database, cfg *config.Config) (*Snapshot, error) {
	ctx, span := otel.Tracer("gorse-ubcf").Start(ctx, "Load")
	defer span.End()
	transactions, customers, products, err := read(ctx, db, cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewSnapshot(ctx, transactions, customers, products, cfg.Similarity.NumJobs)
}

// LoadMatrix is the same as Load but skips the similarity matrix. Queries
// on the returned snapshot compute similarities of the queried customer
// only.
func LoadMatrix(ctx context.Context, db data.Database, cfg *config.Config) (*Snapshot, error) {
	ctx, span := otel.Tracer("gorse-ubcf").Start(ctx, "LoadMatrix")
	defer span.End()
	transactions, customers, products, err := read(ctx, db, cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	matrix, err := dataset.Build(transactions)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return newSnapshot(matrix, nil, customers, products), nil
}

func read(ctx context.Context, db data.Database, cfg *config.Config) ([]dataset.Transaction, []data.Customer, []data.Product, error) {
	if db == nil {
		db = data.NoDatabase{}
	}
	opts := []backoff.RetryOption{
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     cfg.Retry.InitialInterval,
			RandomizationFactor: backoff.DefaultRandomizationFactor,
			Multiplier:          backoff.DefaultMultiplier,
			MaxInterval:         backoff.DefaultMaxInterval,
		}),
		backoff.WithMaxElapsedTime(cfg.Retry.MaxElapsedTime),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.Logger().Warn("failed to read data store, retrying", zap.Error(err), zap.Duration("after", d))
		}),
	}
	transactions, err := backoff.Retry(ctx, func() ([]dataset.Transaction, error) {
		return retryable(db.GetTransactions(ctx, cfg.Recommend.CustomerType))
	}, opts...)
	if err != nil {
		return nil, nil, nil, errors.Annotate(err, "failed to load transactions")
	}
	customers, err := backoff.Retry(ctx, func() ([]data.Customer, error) {
		return retryable(db.GetCustomers(ctx, cfg.Recommend.CustomerType))
	}, opts...)
	if err != nil {
		return nil, nil, nil, errors.Annotate(err, "failed to load customers")
	}
	products, err := backoff.Retry(ctx, func() ([]data.Product, error) {
		return retryable(db.GetProducts(ctx))
	}, opts...)
	if err != nil {
		return nil, nil, nil, errors.Annotate(err, "failed to load products")
	}
	return transactions, customers, products, nil
}

// retryable stops retries if no database is connected.
func retryable[T any](result T, err error) (T, error) {
	if errors.Is(err, data.ErrNoDatabase) {
		return result, backoff.Permanent(err)
	}
	return result, err
}

// NewSnapshot builds the interaction matrix and the similarity matrix.
func NewSnapshot(ctx context.Context, transactions []dataset.Transaction, customers []data.Customer, products []data.Product, jobs int) (*Snapshot, error) {
	start := time.Now()
	matrix, err := dataset.Build(transactions)
	if err != nil {
		return nil, errors.Trace(err)
	}
	similarity, err := logics.ComputeSimilarity(ctx, matrix, jobs)
	if err != nil {
		return nil, errors.Trace(err)
	}
	snapshot := newSnapshot(matrix, similarity, customers, products)
	log.Logger().Info("complete analysis",
		zap.Int("n_customers", matrix.CountCustomers()),
		zap.Int("n_products", matrix.CountProducts()),
		zap.Int("n_transactions", matrix.Count()),
		zap.Duration("used_time", time.Since(start)))
	return snapshot, nil
}

func newSnapshot(matrix *dataset.InteractionMatrix, similarity *logics.SimilarityMatrix, customers []data.Customer, products []data.Product) *Snapshot {
	snapshot := &Snapshot{
		Matrix:     matrix,
		Similarity: similarity,
		Customers:  make(map[string]data.Customer, len(customers)),
		Products:   make(map[string]data.Product, len(products)),
		Timestamp:  time.Now(),
	}
	for _, customer := range customers {
		snapshot.Customers[customer.CustomerId] = customer
	}
	for _, product := range products {
		snapshot.Products[product.ProductId] = product
	}
	return snapshot
}

// Customer returns a customer from the catalog. Customers missing from the
// catalog are named by their id.
func (s *Snapshot) Customer(customerId string) data.Customer {
	if customer, ok := s.Customers[customerId]; ok {
		return customer
	}
	return data.Customer{CustomerId: customerId, Name: customerId}
}

// Product returns a product from the catalog. Products missing from the
// catalog are named by their id.
func (s *Snapshot) Product(productId string) data.Product {
	if product, ok := s.Products[productId]; ok {
		return product
	}
	return data.Product{ProductId: productId, Name: productId}
}

// CustomerList returns customers in the interaction matrix ordered by id.
func (s *Snapshot) CustomerList() []data.Customer {
	customerIds := s.Matrix.CustomerIds()
	customers := make([]data.Customer, len(customerIds))
	for i, customerId := range customerIds {
		customers[i] = s.Customer(customerId)
	}
	return customers
}

// Purchased returns products bought by a customer ordered by id.
func (s *Snapshot) Purchased(customerId string) ([]data.Product, error) {
	index, ok := s.Matrix.CustomerIndex(customerId)
	if !ok {
		return nil, errors.Annotatef(logics.ErrUnknownCustomer, "%v", customerId)
	}
	purchased := s.Matrix.Purchased(index)
	products := make([]data.Product, len(purchased))
	for i, productIndex := range purchased {
		products[i] = s.Product(s.Matrix.ProductId(productIndex))
	}
	return products, nil
}
