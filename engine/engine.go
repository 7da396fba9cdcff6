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

package engine

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/cinematch-io/cinematch/base/log"
	"github.com/cinematch-io/cinematch/config"
	"github.com/cinematch-io/cinematch/dataset"
	"github.com/cinematch-io/cinematch/logics"
	"github.com/cinematch-io/cinematch/model"
	"github.com/cinematch-io/cinematch/online"
	"github.com/cinematch-io/cinematch/storage/cache"
)

// ContentScorer supplies normalized content-based similarity scores.
type ContentScorer interface {
	Score(userId, itemId string) float64
}

// Catalog looks up item metadata, in particular genres for the diversity term.
type Catalog interface {
	Genres(itemId string) []string
}

// EventStore is a durable sink for feedback events, used for audit and
// replay. Appends are best-effort and never block the ingestion path.
type EventStore interface {
	Append(ctx context.Context, feedback dataset.Feedback) error
}

// Collaborators are the optional external sources of the engine. Nil members
// contribute nothing: a nil ContentScorer scores 0, a nil Catalog yields no
// genres, a nil EventStore skips persistence.
type Collaborators struct {
	Content ContentScorer
	Catalog Catalog
	Events  EventStore
}

// Engine is the recommendation engine facade. It owns the factor model, the
// online learning coordinator, the popularity tracker and the user profiles,
// and serves the exposed operations.
type Engine struct {
	config        *config.Config
	model         *model.FactorModel
	coordinator   *online.Coordinator
	cacheStore    cache.Database
	popularity    *logics.Popularity
	profiles      *logics.UserProfiles
	collaborators Collaborators
}

// NewEngine creates an Engine and initializes the factor model with the
// configured capacities. Initialization errors are fatal.
func NewEngine(cfg *config.Config, cacheStore cache.Database, collaborators Collaborators) (*Engine, error) {
	if cacheStore == nil {
		cacheStore = cache.NoDatabase{}
	}
	factorModel := model.NewFactorModel(cfg.ModelParams())
	if err := factorModel.Initialize(cfg.Model.UserCapacity, cfg.Model.ItemCapacity, 0); err != nil {
		return nil, errors.Trace(err)
	}
	return &Engine{
		config:        cfg,
		model:         factorModel,
		coordinator:   online.NewCoordinator(cfg.OnlineConfig(), factorModel, cacheStore),
		cacheStore:    cacheStore,
		popularity:    logics.NewPopularity(),
		profiles:      logics.NewUserProfiles(),
		collaborators: collaborators,
	}, nil
}

// Start launches the coordinator's periodic drain timer.
func (e *Engine) Start() {
	e.coordinator.Start()
}

// Train bootstraps the model from a batch of historical events and feeds the
// popularity tracker and user profiles.
func (e *Engine) Train(events []dataset.Feedback, epochs int, validationSplit float32) ([]float32, error) {
	losses, err := e.model.Train(events, epochs, validationSplit)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, event := range events {
		e.popularity.Push(event)
		e.profiles.Add(event.UserId, e.genres(event.ItemId))
	}
	return losses, nil
}

// RecordFeedback ingests one feedback event: the value is validated against
// the rating range, the point prediction is cached synchronously so direct
// reads observe the write, and the event is enqueued for incremental training.
// Cache and event store failures are absorbed, ingestion never fails on them.
func (e *Engine) RecordFeedback(ctx context.Context, userId, itemId string, value float32, priority online.Priority) error {
	minRating, maxRating := e.model.RatingRange()
	if value < minRating || value > maxRating {
		return errors.Annotatef(model.ErrInvalidValue,
			"rating %v outside range [%v, %v]", value, minRating, maxRating)
	}
	feedback := dataset.Feedback{
		UserId:    userId,
		ItemId:    itemId,
		Type:      dataset.Rate,
		Value:     value,
		Timestamp: time.Now(),
	}
	FeedbackTotal.Inc()
	// read-your-write point prediction
	key := cache.Key("prediction", userId, itemId)
	if err := e.cacheStore.Set(ctx, key,
		strconv.FormatFloat(float64(value), 'f', -1, 32), 0, cache.UserTag(userId)); err != nil {
		log.Logger().Warn("failed to cache point prediction", zap.String("key", key), zap.Error(err))
	}
	e.popularity.Push(feedback)
	e.profiles.Add(userId, e.genres(itemId))
	if e.collaborators.Events != nil {
		if err := e.collaborators.Events.Append(ctx, feedback); err != nil {
			log.Logger().Warn("failed to append feedback event", zap.Error(err))
		}
	}
	e.coordinator.Enqueue(online.NewUpdateJob(feedback, priority))
	return nil
}

// PredictRating returns the estimated rating of an item by a user, preferring
// the point-prediction cache over the model so a just-recorded rating is
// reflected before the model catches up.
func (e *Engine) PredictRating(ctx context.Context, userId, itemId string) float32 {
	value, err := e.cacheStore.Get(ctx, cache.Key("prediction", userId, itemId))
	if err == nil {
		if cached, parseErr := strconv.ParseFloat(value, 32); parseErr == nil {
			return float32(cached)
		}
	}
	return e.model.Predict(userId, itemId)
}

// Recommend returns the top n hybrid recommendations for a user. Results are
// served from the recommendation-list cache when present; otherwise candidates
// are gathered from the popularity source, scored by every component, combined
// with the user's weight tier and cached with a TTL. A user without history
// falls back to the popularity ranking at the requested cardinality.
func (e *Engine) Recommend(ctx context.Context, userId string, n int) []logics.Recommendation {
	if n <= 0 {
		n = e.config.Recommend.DefaultCount
	}
	key := cache.Key("recommend", userId, strconv.Itoa(n))
	if cached, err := e.cacheStore.Get(ctx, key); err == nil {
		var recommendations []logics.Recommendation
		if err = json.Unmarshal([]byte(cached), &recommendations); err == nil {
			CacheHitTotal.Inc()
			return recommendations
		}
		log.Logger().Warn("failed to decode cached recommendation", zap.String("key", key), zap.Error(err))
	}
	CacheMissTotal.Inc()
	recommendations := e.recommend(userId, n)
	if encoded, err := json.Marshal(recommendations); err == nil {
		if err = e.cacheStore.Set(ctx, key, string(encoded),
			e.config.Recommend.CacheTTL, cache.UserTag(userId), cache.PopularityTag); err != nil {
			log.Logger().Warn("failed to cache recommendation", zap.String("key", key), zap.Error(err))
		}
	}
	return recommendations
}

func (e *Engine) recommend(userId string, n int) []logics.Recommendation {
	pool := e.popularity.TopK(e.config.Recommend.CandidatePool)
	// cold start
	if len(pool) == 0 || e.profiles.FeedbackCount(userId) == 0 {
		return e.popularity.TopK(n)
	}
	pairs := lo.Map(pool, func(entry logics.Recommendation, _ int) model.Pair {
		return model.Pair{UserId: userId, ItemId: entry.ItemId}
	})
	predictions := e.model.BatchPredict(pairs)
	minRating, maxRating := e.model.RatingRange()
	candidates := make([]logics.Candidate, len(pool))
	for i, entry := range pool {
		candidate := logics.Candidate{
			ItemId:        entry.ItemId,
			Genres:        e.genres(entry.ItemId),
			Collaborative: float64((predictions[i] - minRating) / (maxRating - minRating)),
			Popularity:    entry.Score,
		}
		if e.collaborators.Content != nil {
			candidate.Content = e.collaborators.Content.Score(userId, entry.ItemId)
		}
		candidates[i] = candidate
	}
	weights := logics.WeightsForUser(e.profiles.FeedbackCount(userId))
	recommendations := logics.Combine(weights, candidates, e.profiles.GenreDistribution(userId))
	if len(recommendations) > n {
		recommendations = recommendations[:n]
	}
	return recommendations
}

// GetMetrics returns the rolling quality metrics of the online learner.
func (e *Engine) GetMetrics() online.Snapshot {
	return e.coordinator.Metrics()
}

// GetQueueStatus returns the state of the update queue.
func (e *Engine) GetQueueStatus() online.QueueStatus {
	return e.coordinator.QueueStatus()
}

// Shutdown drains the remaining queued jobs and releases the cache store.
func (e *Engine) Shutdown() {
	e.coordinator.Shutdown()
	if err := e.cacheStore.Close(); err != nil && !errors.Is(err, cache.ErrNoDatabase) {
		log.Logger().Warn("failed to close cache store", zap.Error(err))
	}
}

func (e *Engine) genres(itemId string) []string {
	if e.collaborators.Catalog == nil {
		return nil
	}
	return e.collaborators.Catalog.Genres(itemId)
}
