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

package online

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/cinematch-io/cinematch/base/log"
	"github.com/cinematch-io/cinematch/dataset"
	"github.com/cinematch-io/cinematch/model"
	"github.com/cinematch-io/cinematch/storage/cache"
)

// Config holds the settings of the online learning coordinator.
type Config struct {
	BatchSize      int           // maximum jobs per drain cycle
	QueueCapacity  int           // update queue capacity, 0 = unbounded
	DrainThreshold int           // queue length that triggers a drain
	DrainInterval  time.Duration // timer tick for periodic drains
	DrainPacing    time.Duration // delay between consecutive timer-driven cycles
	ValidationSize int           // bound of the validation subset per drain

	LearningRate        float32 // initial incremental learning rate
	LearningRateCeiling float32
	LearningRateDecay   float32 // multiplier applied on degrading accuracy, < 1
	LearningRateGrowth  float32 // multiplier applied on improving accuracy, > 1
	SlopeWindow         int     // number of snapshots for the accuracy trend
	SlopeThreshold      float64 // absolute slope below/above which the rate adapts

	// DeadLetter receives batches that failed to process. Nil means failed
	// batches are dropped, which is the default best-effort behavior.
	DeadLetter func([]UpdateJob)
}

// NewConfig creates a Config with default settings.
func NewConfig() *Config {
	return &Config{
		BatchSize:           64,
		QueueCapacity:       4096,
		DrainThreshold:      32,
		DrainInterval:       10 * time.Second,
		DrainPacing:         time.Second,
		ValidationSize:      32,
		LearningRate:        0.005,
		LearningRateCeiling: 0.05,
		LearningRateDecay:   0.5,
		LearningRateGrowth:  1.2,
		SlopeWindow:         10,
		SlopeThreshold:      0.001,
	}
}

// Snapshot is a point-in-time view of the rolling quality metrics. It is
// mutated only by the coordinator after a drain cycle completes.
type Snapshot struct {
	Accuracy    float64   `json:"accuracy"`
	Loss        float64   `json:"loss"`
	UpdateCount int64     `json:"update_count"`
	SampleSize  int64     `json:"sample_size"`
	LastUpdated time.Time `json:"last_updated"`
}

// QueueStatus reports the state of the update queue.
type QueueStatus struct {
	Length     int  `json:"length"`
	IsDraining bool `json:"is_draining"`
}

// Coordinator drains the update queue into the factor model. It is the single
// writer of the model: drains are serialized by a draining flag, re-entrant
// triggers are no-ops. Each completed drain refreshes the rolling metrics,
// adapts the learning rate by the accuracy trend, and invalidates the cache
// tags of every user touched by the batch.
type Coordinator struct {
	config *Config
	model  *model.FactorModel
	cache  cache.Database
	queue  *UpdateQueue

	draining     atomic.Bool
	learningRate atomic.Float64

	metricsMu sync.RWMutex
	metrics   Snapshot
	history   []Snapshot

	subscribers []func(Snapshot)

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewCoordinator creates a Coordinator owning a fresh update queue.
func NewCoordinator(config *Config, factorModel *model.FactorModel, cacheStore cache.Database) *Coordinator {
	if config == nil {
		config = NewConfig()
	}
	if cacheStore == nil {
		cacheStore = cache.NoDatabase{}
	}
	c := &Coordinator{
		config: config,
		model:  factorModel,
		cache:  cacheStore,
		queue:  NewUpdateQueue(config.QueueCapacity),
		done:   make(chan struct{}),
	}
	c.learningRate.Store(float64(config.LearningRate))
	LearningRate.Set(float64(config.LearningRate))
	return c
}

// Start launches the periodic drain timer.
func (c *Coordinator) Start() {
	c.ticker = time.NewTicker(c.config.DrainInterval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.done:
				return
			case <-c.ticker.C:
				if c.TryDrain() {
					// pacing between consecutive cycles bounds resource consumption
					time.Sleep(c.config.DrainPacing)
				}
			}
		}
	}()
}

// Enqueue buffers an update job. Crossing the drain threshold triggers a
// synchronous drain cycle on the caller's goroutine.
func (c *Coordinator) Enqueue(job UpdateJob) {
	c.queue.Enqueue(job)
	if c.queue.Length() >= c.config.DrainThreshold {
		c.TryDrain()
	}
}

// TryDrain runs one drain cycle unless one is already in progress, in which
// case it is a no-op. Returns true if a cycle ran.
func (c *Coordinator) TryDrain() bool {
	if !c.draining.CompareAndSwap(false, true) {
		return false
	}
	defer c.draining.Store(false)
	c.drainOnce()
	return true
}

// Subscribe registers a callback invoked synchronously after every completed
// drain cycle. Subscribers must be registered before Start.
func (c *Coordinator) Subscribe(callback func(Snapshot)) {
	c.subscribers = append(c.subscribers, callback)
}

// Metrics returns the current rolling metrics snapshot.
func (c *Coordinator) Metrics() Snapshot {
	c.metricsMu.RLock()
	defer c.metricsMu.RUnlock()
	return c.metrics
}

// QueueStatus returns the length of the update queue and whether a drain is
// in progress.
func (c *Coordinator) QueueStatus() QueueStatus {
	return QueueStatus{
		Length:     c.queue.Length(),
		IsDraining: c.draining.Load(),
	}
}

// CurrentLearningRate returns the adapted incremental learning rate.
func (c *Coordinator) CurrentLearningRate() float32 {
	return float32(c.learningRate.Load())
}

// Shutdown stops the timer and synchronously drains the remaining queued jobs
// before releasing resources.
func (c *Coordinator) Shutdown() {
	if c.ticker != nil {
		c.ticker.Stop()
	}
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.wg.Wait()
	for !c.queue.IsEmpty() {
		if !c.TryDrain() {
			// another drain is finishing, let it complete
			time.Sleep(10 * time.Millisecond)
		}
	}
	log.Logger().Info("online learning coordinator stopped",
		zap.Int64("update_count", c.Metrics().UpdateCount))
}

func (c *Coordinator) drainOnce() {
	jobs := c.queue.DequeueBatch(c.config.BatchSize)
	if len(jobs) == 0 {
		return
	}
	start := time.Now()
	events := lo.Map(jobs, func(job UpdateJob, _ int) dataset.Feedback {
		return job.Feedback()
	})
	learningRate := c.CurrentLearningRate()
	if err := c.model.IncrementalTrain(events, learningRate); err != nil {
		DrainFailuresTotal.Inc()
		log.Logger().Error("drop failed batch",
			zap.Int("batch_size", len(jobs)),
			zap.Error(err))
		if c.config.DeadLetter != nil {
			c.config.DeadLetter(jobs)
		}
		return
	}
	// evaluate a bounded validation subset against current predictions
	validation := events[:min(len(events), c.config.ValidationSize)]
	accuracy, loss := c.evaluate(validation)
	snapshot := c.updateMetrics(accuracy, loss, len(jobs))
	c.adaptLearningRate()
	c.invalidate(jobs)
	DrainCyclesTotal.Inc()
	DrainSeconds.Observe(time.Since(start).Seconds())
	log.Logger().Debug("drain cycle complete",
		zap.Int("batch_size", len(jobs)),
		zap.Float64("rolling_accuracy", snapshot.Accuracy),
		zap.Float32("learning_rate", learningRate),
		zap.Duration("elapsed", time.Since(start)))
	for _, subscriber := range c.subscribers {
		subscriber(snapshot)
	}
}

// evaluate computes the mean absolute error of predictions over events and
// converts it to a normalized accuracy score in [0, 1].
func (c *Coordinator) evaluate(events []dataset.Feedback) (accuracy, loss float64) {
	if len(events) == 0 {
		return 0, 0
	}
	var sum float32
	for _, event := range events {
		sum += math32.Abs(event.Value - c.model.Predict(event.UserId, event.ItemId))
	}
	mae := float64(sum) / float64(len(events))
	minRating, maxRating := c.model.RatingRange()
	return 1 - mae/float64(maxRating-minRating), mae
}

const emaWeight = 0.1

func (c *Coordinator) updateMetrics(accuracy, loss float64, sampleSize int) Snapshot {
	c.metricsMu.Lock()
	defer c.metricsMu.Unlock()
	if c.metrics.UpdateCount == 0 {
		c.metrics.Accuracy = accuracy
		c.metrics.Loss = loss
	} else {
		c.metrics.Accuracy = (1-emaWeight)*c.metrics.Accuracy + emaWeight*accuracy
		c.metrics.Loss = (1-emaWeight)*c.metrics.Loss + emaWeight*loss
	}
	c.metrics.UpdateCount++
	c.metrics.SampleSize += int64(sampleSize)
	c.metrics.LastUpdated = time.Now()
	c.history = append(c.history, c.metrics)
	if len(c.history) > c.config.SlopeWindow {
		c.history = c.history[len(c.history)-c.config.SlopeWindow:]
	}
	RollingAccuracy.Set(c.metrics.Accuracy)
	return c.metrics
}

// adaptLearningRate adjusts the incremental learning rate by the slope of the
// rolling accuracy over the last snapshots: decay on a degrading trend, grow
// on an improving trend up to the configured ceiling.
func (c *Coordinator) adaptLearningRate() {
	c.metricsMu.RLock()
	history := c.history
	slope := accuracySlope(history)
	c.metricsMu.RUnlock()
	if len(history) < c.config.SlopeWindow {
		return
	}
	learningRate := c.learningRate.Load()
	ceiling := float64(c.config.LearningRateCeiling)
	switch {
	case slope < -c.config.SlopeThreshold:
		learningRate *= float64(c.config.LearningRateDecay)
	case slope > c.config.SlopeThreshold && learningRate < ceiling:
		learningRate = math.Min(ceiling, learningRate*float64(c.config.LearningRateGrowth))
	default:
		return
	}
	c.learningRate.Store(learningRate)
	LearningRate.Set(learningRate)
	log.Logger().Info("adapt learning rate",
		zap.Float64("slope", slope),
		zap.Float64("learning_rate", learningRate))
}

// accuracySlope fits accuracy over snapshot index by least squares and
// returns the slope.
func accuracySlope(history []Snapshot) float64 {
	n := float64(len(history))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, snapshot := range history {
		x := float64(i)
		sumX += x
		sumY += snapshot.Accuracy
		sumXY += x * snapshot.Accuracy
		sumXX += x * x
	}
	return (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
}

// invalidate deletes the cache tag of every distinct user touched by the batch.
func (c *Coordinator) invalidate(jobs []UpdateJob) {
	ctx := context.Background()
	users := mapset.NewThreadUnsafeSet[string]()
	for _, job := range jobs {
		users.Add(job.UserId)
	}
	users.Each(func(userId string) bool {
		if err := c.cache.DeleteTag(ctx, cache.UserTag(userId)); err != nil {
			log.Logger().Warn("failed to invalidate cache tag",
				zap.String("tag", cache.UserTag(userId)), zap.Error(err))
		}
		return false
	})
}
