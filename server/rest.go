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
	"fmt"
	"net/http"
	"sync"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/gorse-io/gorse-ubcf/base/log"
	"github.com/gorse-io/gorse-ubcf/common/util"
	"github.com/gorse-io/gorse-ubcf/config"
	"github.com/gorse-io/gorse-ubcf/dataset"
	"github.com/gorse-io/gorse-ubcf/engine"
	"github.com/gorse-io/gorse-ubcf/storage/data"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/emicklei/go-restful/otelrestful"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const apiDocsPath = "/apidocs.json"

type recommendKey struct {
	snapshot   *engine.Snapshot
	customerId string
	k, n       int
}

// RestServer implements a REST-ful API server.
type RestServer struct {
	Config     *config.Config
	DataClient data.Database
	WebService *restful.WebService
	HttpServer *http.Server

	snapshot  atomic.Pointer[engine.Snapshot]
	cache     *ttlcache.Cache[recommendKey, *engine.Report]
	refreshMu sync.Mutex
}

func NewRestServer(cfg *config.Config, dataClient data.Database) *RestServer {
	if dataClient == nil {
		dataClient = data.NoDatabase{}
	}
	return &RestServer{
		Config:     cfg,
		DataClient: dataClient,
		WebService: new(restful.WebService),
		cache: ttlcache.New[recommendKey, *engine.Report](
			ttlcache.WithTTL[recommendKey, *engine.Report](cfg.Recommend.CacheTTL),
			ttlcache.WithDisableTouchOnHit[recommendKey, *engine.Report](),
		),
	}
}

// Snapshot returns the current analysis or nil before the first refresh.
func (s *RestServer) Snapshot() *engine.Snapshot {
	return s.snapshot.Load()
}

// SetSnapshot replaces the current analysis and drops cached responses.
func (s *RestServer) SetSnapshot(snapshot *engine.Snapshot) {
	s.snapshot.Store(snapshot)
	s.cache.DeleteAll()
	stats := snapshot.Stats()
	SnapshotCustomers.Set(float64(stats.NumCustomers))
	SnapshotProducts.Set(float64(stats.NumProducts))
}

// Refresh runs a fresh analysis over the data store. Concurrent refreshes
// are serialized and queries keep using the previous analysis meanwhile.
func (s *RestServer) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	start := time.Now()
	snapshot, err := engine.Load(ctx, s.DataClient, s.Config)
	if err != nil {
		return errors.Trace(err)
	}
	s.SetSnapshot(snapshot)
	RefreshSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// StartHttpServer starts the REST-ful API server.
func (s *RestServer) StartHttpServer() error {
	container := s.CreateContainer()
	go s.cache.Start()
	s.HttpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port),
		Handler: container,
	}
	log.Logger().Info("start http server",
		zap.String("url", fmt.Sprintf("http://%s:%d", s.Config.Server.Host, s.Config.Server.Port)))
	if err := s.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Trace(err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *RestServer) Shutdown(ctx context.Context) error {
	s.cache.Stop()
	if s.HttpServer == nil {
		return nil
	}
	return errors.Trace(s.HttpServer.Shutdown(ctx))
}

// CreateContainer registers the web service, the OpenAPI document and
// prometheus metrics.
func (s *RestServer) CreateContainer() *restful.Container {
	s.CreateWebService()
	container := restful.NewContainer()
	container.Filter(otelrestful.OTelFilter("gorse-ubcf"))
	container.Add(s.WebService)
	container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     apiDocsPath,
	}))
	container.Handle("/metrics", promhttp.Handler())
	return container
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	if req.HeaderParameter("X-Request-ID") == "" {
		req.Request.Header.Set("X-Request-ID", uuid.New().String())
	}
	resp.AddHeader("X-Request-ID", req.HeaderParameter("X-Request-ID"))
	chain.ProcessFilter(req, resp)
	log.RequestLogger(req).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("used_time", time.Since(start)))
}

func (s *RestServer) AuthFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	if s.auth(req, resp) {
		chain.ProcessFilter(req, resp)
	}
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(LogFilter)
	ws.Filter(s.AuthFilter)

	/* Catalog */

	ws.Route(ws.GET("/customers").To(s.getCustomers).
		Doc("Get customers in the analysis.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"customer"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Writes([]data.Customer{}))
	ws.Route(ws.GET("/customer/{customer-id}").To(s.getCustomer).
		Doc("Get a customer with purchased products.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"customer"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("customer-id", "identifier of the customer").DataType("string")).
		Writes(CustomerDetail{}))

	/* Recommendation */

	ws.Route(ws.GET("/recommend/{customer-id}").To(s.getRecommend).
		Doc("Recommend products to a customer from similar customers.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("customer-id", "identifier of the customer").DataType("string")).
		Param(ws.QueryParameter("k", "number of similar customers").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned products").DataType("integer")).
		Writes(engine.Report{}))
	ws.Route(ws.GET("/neighbors/{customer-id}").To(s.getNeighbors).
		Doc("Get the most similar customers of a customer.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("customer-id", "identifier of the customer").DataType("string")).
		Param(ws.QueryParameter("k", "number of similar customers").DataType("integer")).
		Writes([]engine.NeighborReport{}))

	/* Analysis */

	ws.Route(ws.GET("/stats").To(s.getStats).
		Doc("Get statistics of the interaction matrix.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"analysis"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Writes(engine.Stats{}))
	ws.Route(ws.POST("/refresh").To(s.refresh).
		Doc("Analyze sales in the data store again.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"analysis"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Writes(engine.Stats{}))
}

// ParseInt parses integers from the query parameter.
func ParseInt(request *restful.Request, name string, fallback int) (value int, err error) {
	valueString := request.QueryParameter(name)
	value, err = util.ParseInt[int](valueString)
	if err != nil && valueString == "" {
		value = fallback
		err = nil
	}
	return
}

type CustomerDetail struct {
	data.Customer
	Purchased []data.Product `json:"purchased"`
}

func (s *RestServer) getCustomers(request *restful.Request, response *restful.Response) {
	snapshot := s.Snapshot()
	if snapshot == nil {
		ServiceUnavailable(response)
		return
	}
	Ok(response, snapshot.CustomerList())
}

func (s *RestServer) getCustomer(request *restful.Request, response *restful.Response) {
	snapshot := s.Snapshot()
	if snapshot == nil {
		ServiceUnavailable(response)
		return
	}
	customerId := request.PathParameter("customer-id")
	purchased, err := snapshot.Purchased(customerId)
	if err != nil {
		writeError(response, err)
		return
	}
	Ok(response, CustomerDetail{Customer: snapshot.Customer(customerId), Purchased: purchased})
}

func (s *RestServer) getRecommend(request *restful.Request, response *restful.Response) {
	start := time.Now()
	snapshot := s.Snapshot()
	if snapshot == nil {
		ServiceUnavailable(response)
		return
	}
	customerId := request.PathParameter("customer-id")
	k, err := ParseInt(request, "k", s.Config.Recommend.NumNeighbors)
	if err != nil {
		BadRequest(response, err)
		return
	}
	n, err := ParseInt(request, "n", s.Config.Recommend.NumRecommendations)
	if err != nil {
		BadRequest(response, err)
		return
	}
	key := recommendKey{snapshot: snapshot, customerId: customerId, k: k, n: n}
	if item := s.cache.Get(key); item != nil {
		RecommendCacheHitTotal.Inc()
		Ok(response, item.Value())
		return
	}
	RecommendCacheMissTotal.Inc()
	report, err := snapshot.Recommend(customerId, k, n)
	if err != nil {
		writeError(response, err)
		return
	}
	if s.Config.Recommend.CacheTTL > 0 {
		s.cache.Set(key, report, ttlcache.DefaultTTL)
	}
	GetRecommendSeconds.Observe(time.Since(start).Seconds())
	Ok(response, report)
}

func (s *RestServer) getNeighbors(request *restful.Request, response *restful.Response) {
	snapshot := s.Snapshot()
	if snapshot == nil {
		ServiceUnavailable(response)
		return
	}
	k, err := ParseInt(request, "k", s.Config.Recommend.NumNeighbors)
	if err != nil {
		BadRequest(response, err)
		return
	}
	neighbors, err := snapshot.Neighbors(request.PathParameter("customer-id"), k)
	if err != nil {
		writeError(response, err)
		return
	}
	Ok(response, neighbors)
}

func (s *RestServer) getStats(request *restful.Request, response *restful.Response) {
	snapshot := s.Snapshot()
	if snapshot == nil {
		ServiceUnavailable(response)
		return
	}
	Ok(response, snapshot.Stats())
}

func (s *RestServer) refresh(request *restful.Request, response *restful.Response) {
	if err := s.Refresh(request.Request.Context()); err != nil {
		// nothing to analyze in the data store
		if errors.Is(err, dataset.ErrEmptyInput) || errors.Is(err, dataset.ErrInvalidQuantity) {
			Conflict(response, err)
			return
		}
		InternalServerError(response, err)
		return
	}
	Ok(response, s.Snapshot().Stats())
}

func writeError(response *restful.Response, err error) {
	switch {
	case errors.Is(err, errors.NotFound):
		PageNotFound(response, err)
	case errors.Is(err, errors.NotValid):
		BadRequest(response, err)
	default:
		InternalServerError(response, err)
	}
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.Logger().Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// Conflict returns a conflict error if the data store can't be analyzed.
func Conflict(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.Logger().Error("conflict", zap.Error(err))
	if err = response.WriteError(http.StatusConflict, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.Logger().Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteError(http.StatusNotFound, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// ServiceUnavailable is returned before the first analysis completes.
func ServiceUnavailable(response *restful.Response) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteError(http.StatusServiceUnavailable, errors.New("analysis is not ready")); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content interface{}) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.Logger().Error("failed to write json", zap.Error(err))
	}
}

func (s *RestServer) auth(request *restful.Request, response *restful.Response) bool {
	if s.Config.Server.APIKey == "" {
		return true
	}
	apikey := request.HeaderParameter("X-API-Key")
	if apikey == s.Config.Server.APIKey {
		return true
	}
	log.Logger().Error("unauthorized", zap.String("X-API-Key", apikey))
	if err := response.WriteError(http.StatusUnauthorized, fmt.Errorf("unauthorized")); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
	return false
}
