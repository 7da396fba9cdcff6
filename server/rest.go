// Copyright 2025 cinematch Project Authors
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
	"strconv"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cinematch-io/cinematch/base/log"
	"github.com/cinematch-io/cinematch/engine"
	"github.com/cinematch-io/cinematch/model"
	"github.com/cinematch-io/cinematch/online"
)

// RestServer exposes the engine operations over HTTP.
type RestServer struct {
	engine     *engine.Engine
	httpHost   string
	httpPort   int
	container  *restful.Container
	httpServer *http.Server
}

// NewRestServer creates a RestServer around an engine.
func NewRestServer(e *engine.Engine, httpHost string, httpPort int) *RestServer {
	s := &RestServer{
		engine:    e,
		httpHost:  httpHost,
		httpPort:  httpPort,
		container: restful.NewContainer(),
	}
	s.container.Add(s.createWebService())
	s.container.Handle("/metrics", promhttp.Handler())
	return s
}

// Serve blocks serving HTTP until Shutdown is called.
func (s *RestServer) Serve() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.httpHost, s.httpPort),
		Handler: s.container,
	}
	log.Logger().Info("start rest server",
		zap.String("url", fmt.Sprintf("http://%s:%d", s.httpHost, s.httpPort)))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Trace(err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *RestServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return errors.Trace(s.httpServer.Shutdown(ctx))
}

// LogFilter logs the latency and status of every request.
func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)
	log.ResponseLogger(resp).Info(req.Request.Method,
		zap.String("path", req.Request.URL.Path),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)))
}

func (s *RestServer) createWebService() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path("/api/").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON).
		Filter(LogFilter)

	ws.Route(ws.POST("/feedback").To(s.insertFeedback).
		Doc("Insert a feedback event.").
		Reads(feedbackRequest{}))
	ws.Route(ws.GET("/recommend/{user-id}").To(s.getRecommend).
		Doc("Get recommendations for a user.").
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("string")).
		Param(ws.QueryParameter("n", "number of recommendations").DataType("integer")))
	ws.Route(ws.GET("/predict/{user-id}/{item-id}").To(s.getPredict).
		Doc("Get the predicted rating of an item by a user.").
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("string")).
		Param(ws.PathParameter("item-id", "identifier of the item").DataType("string")))
	ws.Route(ws.GET("/metrics").To(s.getMetrics).
		Doc("Get the rolling quality metrics."))
	ws.Route(ws.GET("/status").To(s.getStatus).
		Doc("Get the update queue status."))
	return ws
}

type feedbackRequest struct {
	UserId   string  `json:"user_id"`
	ItemId   string  `json:"item_id"`
	Value    float32 `json:"value"`
	Priority string  `json:"priority"`
}

func (s *RestServer) insertFeedback(request *restful.Request, response *restful.Response) {
	var body feedbackRequest
	if err := request.ReadEntity(&body); err != nil {
		BadRequest(response, err)
		return
	}
	if body.UserId == "" || body.ItemId == "" {
		BadRequest(response, errors.NotValidf("empty user_id or item_id"))
		return
	}
	priority := online.PriorityMedium
	if body.Priority != "" {
		var err error
		if priority, err = online.ParsePriority(body.Priority); err != nil {
			BadRequest(response, err)
			return
		}
	}
	err := s.engine.RecordFeedback(request.Request.Context(),
		body.UserId, body.ItemId, body.Value, priority)
	if err != nil {
		if errors.Is(err, model.ErrInvalidValue) {
			BadRequest(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	Ok(response, struct {
		RowAffected int `json:"row_affected"`
	}{RowAffected: 1})
}

func (s *RestServer) getRecommend(request *restful.Request, response *restful.Response) {
	userId := request.PathParameter("user-id")
	n := 0
	if raw := request.QueryParameter("n"); raw != "" {
		var err error
		if n, err = strconv.Atoi(raw); err != nil {
			BadRequest(response, err)
			return
		}
	}
	Ok(response, s.engine.Recommend(request.Request.Context(), userId, n))
}

func (s *RestServer) getPredict(request *restful.Request, response *restful.Response) {
	rating := s.engine.PredictRating(request.Request.Context(),
		request.PathParameter("user-id"), request.PathParameter("item-id"))
	Ok(response, struct {
		Rating float32 `json:"rating"`
	}{Rating: rating})
}

func (s *RestServer) getMetrics(request *restful.Request, response *restful.Response) {
	Ok(response, s.engine.GetMetrics())
}

func (s *RestServer) getStatus(request *restful.Request, response *restful.Response) {
	Ok(response, s.engine.GetQueueStatus())
}

// Ok writes content as JSON.
func Ok(response *restful.Response, content interface{}) {
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}

// BadRequest writes an error with status 400.
func BadRequest(response *restful.Response, err error) {
	log.ResponseLogger(response).Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError writes an error with status 500.
func InternalServerError(response *restful.Response, err error) {
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}
