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
	"encoding/json"
	"net/http"
	"testing"

	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/require"

	"github.com/cinematch-io/cinematch/config"
	"github.com/cinematch-io/cinematch/engine"
	"github.com/cinematch-io/cinematch/online"
	"github.com/cinematch-io/cinematch/storage/cache"
)

func newTestServer(t *testing.T) *RestServer {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Model.RandomState = 42
	e, err := engine.NewEngine(cfg, cache.NewMemoryDatabase(), engine.Collaborators{})
	require.NoError(t, err)
	return NewRestServer(e, cfg.Server.HttpHost, cfg.Server.HttpPort)
}

func marshal(t *testing.T, v interface{}) string {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestInsertFeedback(t *testing.T) {
	s := newTestServer(t)
	apitest.New().
		Handler(s.container).
		Post("/api/feedback").
		JSON(feedbackRequest{UserId: "alice", ItemId: "matrix", Value: 5, Priority: "high"}).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"row_affected":1}`).
		End()
	// default priority
	apitest.New().
		Handler(s.container).
		Post("/api/feedback").
		JSON(feedbackRequest{UserId: "alice", ItemId: "inception", Value: 4}).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"row_affected":1}`).
		End()
	// out-of-range rating
	apitest.New().
		Handler(s.container).
		Post("/api/feedback").
		JSON(feedbackRequest{UserId: "alice", ItemId: "matrix", Value: 9}).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	// unknown priority
	apitest.New().
		Handler(s.container).
		Post("/api/feedback").
		JSON(feedbackRequest{UserId: "alice", ItemId: "matrix", Value: 3, Priority: "urgent"}).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
	// missing identifiers
	apitest.New().
		Handler(s.container).
		Post("/api/feedback").
		JSON(feedbackRequest{Value: 3}).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestGetRecommend(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	for _, userId := range []string{"bob", "carol"} {
		require.NoError(t, s.engine.RecordFeedback(ctx, userId, "matrix", 5, online.PriorityLow))
	}
	require.NoError(t, s.engine.RecordFeedback(ctx, "alice", "matrix", 5, online.PriorityLow))
	apitest.New().
		Handler(s.container).
		Get("/api/recommend/alice").
		Query("n", "1").
		Expect(t).
		Status(http.StatusOK).
		Body(marshal(t, s.engine.Recommend(ctx, "alice", 1))).
		End()
	apitest.New().
		Handler(s.container).
		Get("/api/recommend/alice").
		Query("n", "bogus").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestGetPredict(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.engine.RecordFeedback(ctx, "alice", "matrix", 5, online.PriorityHigh))
	// read-your-write: the just-recorded rating is served
	apitest.New().
		Handler(s.container).
		Get("/api/predict/alice/matrix").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"rating":5}`).
		End()
	// cold start fallback
	apitest.New().
		Handler(s.container).
		Get("/api/predict/nobody/nothing").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"rating":3}`).
		End()
}

func TestGetMetricsAndStatus(t *testing.T) {
	s := newTestServer(t)
	apitest.New().
		Handler(s.container).
		Get("/api/status").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"length":0,"is_draining":false}`).
		End()
	apitest.New().
		Handler(s.container).
		Get("/api/metrics").
		Expect(t).
		Status(http.StatusOK).
		Body(marshal(t, s.engine.GetMetrics())).
		End()
}
