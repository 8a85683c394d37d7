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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/emicklei/go-restful/v3"
	"github.com/gorse-io/gorse-ubcf/config"
	"github.com/gorse-io/gorse-ubcf/engine"
	"github.com/gorse-io/gorse-ubcf/storage/data"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/suite"
)

const apiKey = "test_api_key"

type ServerTestSuite struct {
	suite.Suite
	*RestServer
	handler *restful.Container
}

func (suite *ServerTestSuite) SetupSuite() {
	dataClient, err := data.Open(fmt.Sprintf("sqlite://%s/data.db", suite.T().TempDir()), "")
	suite.NoError(err)
	err = dataClient.Init()
	suite.NoError(err)
	cfg := config.GetDefaultConfig()
	cfg.Server.APIKey = apiKey
	cfg.Similarity.NumJobs = 2
	suite.RestServer = NewRestServer(cfg, dataClient)
	suite.handler = suite.CreateContainer()
}

func (suite *ServerTestSuite) TearDownSuite() {
	err := suite.DataClient.Close()
	suite.NoError(err)
}

func (suite *ServerTestSuite) SetupTest() {
	ctx := context.Background()
	err := suite.DataClient.Purge()
	suite.NoError(err)
	suite.NoError(suite.DataClient.BatchInsertCustomers(ctx, []data.Customer{
		{CustomerId: "A", Name: "Alice", CustomerType: data.PersonCustomer},
		{CustomerId: "B", Name: "Bob", CustomerType: data.PersonCustomer},
		{CustomerId: "C", Name: "Carol", CustomerType: data.PersonCustomer},
	}))
	suite.NoError(suite.DataClient.BatchInsertProducts(ctx, []data.Product{
		{ProductId: "P1", Name: "Laptop"},
		{ProductId: "P2", Name: "Phone"},
		{ProductId: "P3", Name: "Camera"},
	}))
	suite.NoError(suite.DataClient.BatchInsertSales(ctx, []data.Sale{
		{CustomerId: "A", ProductId: "P1", Quantity: 2},
		{CustomerId: "B", ProductId: "P1", Quantity: 2},
		{CustomerId: "B", ProductId: "P2", Quantity: 1},
		{CustomerId: "C", ProductId: "P3", Quantity: 3},
	}))
	suite.NoError(suite.Refresh(ctx))
}

func (suite *ServerTestSuite) marshal(v interface{}) string {
	s, err := json.Marshal(v)
	suite.NoError(err)
	return string(s)
}

func (suite *ServerTestSuite) TestCustomers() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get("/api/customers").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal([]data.Customer{
			{CustomerId: "A", Name: "Alice", CustomerType: data.PersonCustomer},
			{CustomerId: "B", Name: "Bob", CustomerType: data.PersonCustomer},
			{CustomerId: "C", Name: "Carol", CustomerType: data.PersonCustomer},
		})).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/customer/B").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(CustomerDetail{
			Customer:  data.Customer{CustomerId: "B", Name: "Bob", CustomerType: data.PersonCustomer},
			Purchased: []data.Product{{ProductId: "P1", Name: "Laptop"}, {ProductId: "P2", Name: "Phone"}},
		})).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/customer/Z").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func (suite *ServerTestSuite) TestRecommend() {
	t := suite.T()
	// default parameters
	expected, err := suite.Snapshot().Recommend("A", 5, 3)
	suite.NoError(err)
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/A").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
	// explicit parameters
	expected, err = suite.Snapshot().Recommend("A", 1, 1)
	suite.NoError(err)
	suite.Equal("Phone", expected.Recommendations[0].Name)
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/A").
		Header("X-API-Key", apiKey).
		QueryParams(map[string]string{"k": "1", "n": "1"}).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
}

func (suite *ServerTestSuite) TestRecommendErrors() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/Z").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusNotFound).
		End()
	for _, params := range []map[string]string{
		{"k": "0"},
		{"k": "abc"},
		{"n": "0"},
		{"n": "-1"},
	} {
		apitest.New().
			Handler(suite.handler).
			Get("/api/recommend/A").
			Header("X-API-Key", apiKey).
			QueryParams(params).
			Expect(t).
			Status(http.StatusBadRequest).
			End()
	}
}

func (suite *ServerTestSuite) TestNeighbors() {
	t := suite.T()
	expected, err := suite.Snapshot().Neighbors("C", 2)
	suite.NoError(err)
	suite.Len(expected, 2)
	apitest.New().
		Handler(suite.handler).
		Get("/api/neighbors/C").
		Header("X-API-Key", apiKey).
		QueryParams(map[string]string{"k": "2"}).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/neighbors/C").
		Header("X-API-Key", apiKey).
		QueryParams(map[string]string{"k": "-1"}).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) TestRefresh() {
	t := suite.T()
	ctx := context.Background()
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/C").
		Header("X-API-Key", apiKey).
		QueryParams(map[string]string{"k": "1"}).
		Expect(t).
		Status(http.StatusOK).
		End()
	// C becomes similar to B
	suite.NoError(suite.DataClient.BatchInsertSales(ctx, []data.Sale{{CustomerId: "C", ProductId: "P2", Quantity: 1}}))
	apitest.New().
		Handler(suite.handler).
		Post("/api/refresh").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/stats").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(suite.Snapshot().Stats())).
		End()
	expected, err := suite.Snapshot().Recommend("C", 1, 3)
	suite.NoError(err)
	suite.Equal("B", expected.Neighbors[0].CustomerId)
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/C").
		Header("X-API-Key", apiKey).
		QueryParams(map[string]string{"k": "1"}).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
}

func (suite *ServerTestSuite) TestRefreshEmpty() {
	t := suite.T()
	expected := suite.Snapshot().Stats()
	suite.NoError(suite.DataClient.Purge())
	apitest.New().
		Handler(suite.handler).
		Post("/api/refresh").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusConflict).
		End()
	// the previous analysis is still served
	apitest.New().
		Handler(suite.handler).
		Get("/api/stats").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(expected)).
		End()
}

func (suite *ServerTestSuite) TestStats() {
	t := suite.T()
	stats := suite.Snapshot().Stats()
	suite.Equal(engine.Stats{
		NumCustomers:    3,
		NumProducts:     3,
		NumTransactions: 4,
		Density:         stats.Density,
		Timestamp:       stats.Timestamp,
	}, stats)
	apitest.New().
		Handler(suite.handler).
		Get("/api/stats").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		Body(suite.marshal(stats)).
		End()
}

func (suite *ServerTestSuite) TestRequestID() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get("/api/stats").
		Header("X-API-Key", apiKey).
		Header("X-Request-ID", "3f2a").
		Expect(t).
		Status(http.StatusOK).
		Header("X-Request-ID", "3f2a").
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/stats").
		Header("X-API-Key", apiKey).
		Expect(t).
		Status(http.StatusOK).
		HeaderPresent("X-Request-ID").
		End()
}

func (suite *ServerTestSuite) TestAuth() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get("/api/stats").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/stats").
		Header("X-API-Key", "wrong_api_key").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func (suite *ServerTestSuite) TestMetrics() {
	t := suite.T()
	apitest.New().
		Handler(suite.handler).
		Get("/metrics").
		Expect(t).
		Status(http.StatusOK).
		End()
	apitest.New().
		Handler(suite.handler).
		Get(apiDocsPath).
		Expect(t).
		Status(http.StatusOK).
		End()
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func TestNotReady(t *testing.T) {
	cfg := config.GetDefaultConfig()
	s := NewRestServer(cfg, nil)
	handler := s.CreateContainer()
	for _, path := range []string{"/api/customers", "/api/customer/A", "/api/recommend/A", "/api/neighbors/A", "/api/stats"} {
		apitest.New().
			Handler(handler).
			Get(path).
			Expect(t).
			Status(http.StatusServiceUnavailable).
			End()
	}
	// refresh without a data store
	apitest.New().
		Handler(handler).
		Post("/api/refresh").
		Expect(t).
		Status(http.StatusInternalServerError).
		End()
}
