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

package model

import (
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/cinematch-io/cinematch/base"
	"github.com/cinematch-io/cinematch/base/log"
	"github.com/cinematch-io/cinematch/common/floats"
	"github.com/cinematch-io/cinematch/dataset"
)

// Pair is a (user, item) pair for batch prediction.
type Pair struct {
	UserId string
	ItemId string
}

type sample struct {
	userIndex int32
	itemIndex int32
	rating    float32
}

// FactorModel is a biased matrix factorization model trained by SGD:
//
//	\hat{r}_{ui} = μ + b_u + b_i + q_i^T p_u
//
// Predictions are clamped to the rating range. Unseen users or items fall back
// to the mean rating of the range. Model mutation is single-writer: a second
// concurrent training run is rejected (Train) or skipped (IncrementalTrain),
// and readers block on a read lock instead of observing torn state.
//
// Hyper-parameters:
//
//	NFactors   - The number of latent factors. Default is 16.
//	NEpochs    - The number of epochs of full training. Default is 20.
//	Lr         - The learning rate of SGD. Default is 0.005.
//	Reg        - The L2 regularization strength. Default is 0.02.
//	InitMean   - The mean of initial random latent factors. Default is 0.
//	InitStdDev - The standard deviation of initial random latent factors. Default is 0.1.
//	BatchSize  - The mini-batch size. Default is 128.
//	MinRating  - The lower bound of the rating range. Default is 1.
//	MaxRating  - The upper bound of the rating range. Default is 5.
type FactorModel struct {
	Params Params
	// hyper parameters
	nFactors   int
	nEpochs    int
	lr         float32
	reg        float32
	initMean   float32
	initStdDev float32
	batchSize  int
	minRating  float32
	maxRating  float32
	rng        base.RandomGenerator

	training    atomic.Bool
	mu          sync.RWMutex
	initialized bool
	userIndex   *dataset.Dict
	itemIndex   *dataset.Dict
	userFactor  [][]float32 // p_u
	itemFactor  [][]float32 // q_i
	userBias    []float32   // b_u
	itemBias    []float32   // b_i
	globalBias  float32     // μ
	userTrained *bitset.BitSet
	itemTrained *bitset.BitSet
}

// NewFactorModel creates a FactorModel. Call Initialize before training.
func NewFactorModel(params Params) *FactorModel {
	m := new(FactorModel)
	m.SetParams(params)
	return m
}

// SetParams sets hyper-parameters of the model.
func (m *FactorModel) SetParams(params Params) {
	m.Params = params
	m.nFactors = params.GetInt(NFactors, 16)
	m.nEpochs = params.GetInt(NEpochs, 20)
	m.lr = params.GetFloat32(Lr, 0.005)
	m.reg = params.GetFloat32(Reg, 0.02)
	m.initMean = params.GetFloat32(InitMean, 0)
	m.initStdDev = params.GetFloat32(InitStdDev, 0.1)
	m.batchSize = params.GetInt(BatchSize, 128)
	m.minRating = params.GetFloat32(MinRating, 1)
	m.maxRating = params.GetFloat32(MaxRating, 5)
	m.rng = base.NewRandomGenerator(params.GetInt64(RandomState, time.Now().UnixNano()))
}

// Initialize allocates embedding tables and bias terms for the declared
// capacities. Latent factors are randomized, biases start at zero. Growth
// beyond capacity appends rows and never discards learned parameters.
func (m *FactorModel) Initialize(userCapacity, itemCapacity, factorDim int) error {
	if userCapacity <= 0 || itemCapacity <= 0 {
		return errors.Annotatef(ErrNotInitializable,
			"user capacity %d, item capacity %d", userCapacity, itemCapacity)
	}
	if factorDim > 0 {
		m.nFactors = factorDim
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userIndex = dataset.NewDict()
	m.itemIndex = dataset.NewDict()
	m.userFactor = m.rng.NormalMatrix(userCapacity, m.nFactors, m.initMean, m.initStdDev)
	m.itemFactor = m.rng.NormalMatrix(itemCapacity, m.nFactors, m.initMean, m.initStdDev)
	m.userBias = make([]float32, userCapacity)
	m.itemBias = make([]float32, itemCapacity)
	m.globalBias = 0
	m.userTrained = bitset.New(uint(userCapacity))
	m.itemTrained = bitset.New(uint(itemCapacity))
	m.initialized = true
	log.Logger().Info("initialize factor model",
		zap.Int("user_capacity", userCapacity),
		zap.Int("item_capacity", itemCapacity),
		zap.Int("n_factors", m.nFactors))
	return nil
}

// Initialized reports whether Initialize has completed.
func (m *FactorModel) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// RatingRange returns the declared rating range.
func (m *FactorModel) RatingRange() (float32, float32) {
	return m.minRating, m.maxRating
}

// Fallback is the cold-start prediction: the mean rating of the range.
func (m *FactorModel) Fallback() float32 {
	return (m.minRating + m.maxRating) / 2
}

// Train runs full-batch optimization over events, minimizing squared prediction
// error with L2 penalty, using shuffled mini-batches. It returns the training
// loss per epoch. Train fails with ErrAlreadyTraining if another training run
// (full or incremental) is in progress.
func (m *FactorModel) Train(events []dataset.Feedback, epochs int, validationSplit float32) ([]float32, error) {
	if !m.Initialized() {
		return nil, errors.Trace(ErrNotInitialized)
	}
	if !m.training.CompareAndSwap(false, true) {
		return nil, errors.Trace(ErrAlreadyTraining)
	}
	defer m.training.Store(false)
	if epochs <= 0 {
		epochs = m.nEpochs
	}
	samples := m.index(events)
	if len(samples) == 0 {
		return nil, nil
	}
	// hold out a validation split
	m.rng.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
	})
	numValidate := int(validationSplit * float32(len(samples)))
	validateSet := samples[:numValidate]
	trainSet := samples[numValidate:]
	log.Logger().Info("train factor model",
		zap.Int("train_set_size", len(trainSet)),
		zap.Int("validate_set_size", len(validateSet)),
		zap.Int("n_epochs", epochs),
		zap.Any("params", m.Params))
	a := make([]float32, m.nFactors)
	b := make([]float32, m.nFactors)
	epochLosses := make([]float32, 0, epochs)
	for epoch := 1; epoch <= epochs; epoch++ {
		perm := m.rng.Perm(len(trainSet))
		var cost float32
		for lo := 0; lo < len(perm); lo += m.batchSize {
			hi := min(lo+m.batchSize, len(perm))
			m.mu.Lock()
			for _, i := range perm[lo:hi] {
				s := trainSet[i]
				cost += m.step(s.userIndex, s.itemIndex, s.rating, m.lr, a, b)
			}
			m.mu.Unlock()
		}
		trainLoss := cost / float32(len(trainSet))
		epochLosses = append(epochLosses, trainLoss)
		log.Logger().Debug("train factor model",
			zap.Int("epoch", epoch),
			zap.Int("n_epochs", epochs),
			zap.Float32("train_loss", trainLoss),
			zap.Float32("validate_loss", m.evaluate(validateSet)))
	}
	return epochLosses, nil
}

// IncrementalTrain folds a small batch of events into the model with a single
// low-epoch gradient pass. If a training run is already in progress the call is
// a logged no-op: contended updates are dropped, never queued or retried.
func (m *FactorModel) IncrementalTrain(events []dataset.Feedback, learningRate float32) error {
	if !m.Initialized() {
		return errors.Trace(ErrNotInitialized)
	}
	if !m.training.CompareAndSwap(false, true) {
		log.Logger().Info("skip incremental training, another training run is in progress",
			zap.Int("n_events", len(events)))
		return nil
	}
	defer m.training.Store(false)
	if learningRate <= 0 {
		learningRate = m.lr
	}
	samples := m.index(events)
	if len(samples) == 0 {
		return nil
	}
	a := make([]float32, m.nFactors)
	b := make([]float32, m.nFactors)
	perm := m.rng.Perm(len(samples))
	var cost float32
	for lo := 0; lo < len(perm); lo += m.batchSize {
		hi := min(lo+m.batchSize, len(perm))
		m.mu.Lock()
		for _, i := range perm[lo:hi] {
			s := samples[i]
			cost += m.step(s.userIndex, s.itemIndex, s.rating, learningRate, a, b)
		}
		m.mu.Unlock()
	}
	log.Logger().Debug("incremental train factor model",
		zap.Int("n_samples", len(samples)),
		zap.Float32("learning_rate", learningRate),
		zap.Float32("loss", cost/float32(len(samples))))
	return nil
}

// Predict returns the estimated rating given by a user to an item, clamped to
// the rating range. Unseen users or items return the fallback value.
func (m *FactorModel) Predict(userId, itemId string) float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.predict(userId, itemId)
}

// BatchPredict predicts ratings for pairs. Pairs with unseen identifiers are
// replaced by the fallback value in place, so the output length always equals
// the input length.
func (m *FactorModel) BatchPredict(pairs []Pair) []float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	predictions := make([]float32, len(pairs))
	for i, pair := range pairs {
		predictions[i] = m.predict(pair.UserId, pair.ItemId)
	}
	return predictions
}

func (m *FactorModel) predict(userId, itemId string) float32 {
	if !m.initialized {
		return m.Fallback()
	}
	userIndex := m.userIndex.Id(userId)
	itemIndex := m.itemIndex.Id(itemId)
	if userIndex == dataset.NotId || !m.userTrained.Test(uint(userIndex)) ||
		itemIndex == dataset.NotId || !m.itemTrained.Test(uint(itemIndex)) {
		return m.Fallback()
	}
	return m.clamp(m.internalPredict(userIndex, itemIndex))
}

// IsUserTrained returns false if the user has no trained embedding yet.
func (m *FactorModel) IsUserTrained(userId string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return false
	}
	userIndex := m.userIndex.Id(userId)
	return userIndex != dataset.NotId && m.userTrained.Test(uint(userIndex))
}

func (m *FactorModel) internalPredict(userIndex, itemIndex int32) float32 {
	return m.globalBias + m.userBias[userIndex] + m.itemBias[itemIndex] +
		floats.Dot(m.userFactor[userIndex], m.itemFactor[itemIndex])
}

func (m *FactorModel) clamp(v float32) float32 {
	return math32.Min(m.maxRating, math32.Max(m.minRating, v))
}

// step performs one SGD update and returns the squared error before the update.
// Callers must hold the write lock. a and b are scratch buffers of size nFactors.
func (m *FactorModel) step(userIndex, itemIndex int32, rating, lr float32, a, b []float32) float32 {
	prediction := m.internalPredict(userIndex, itemIndex)
	residual := rating - prediction
	// Update biases: b <- b + γ (e_{ui} - λ b)
	m.globalBias += lr * residual
	m.userBias[userIndex] += lr * (residual - m.reg*m.userBias[userIndex])
	m.itemBias[itemIndex] += lr * (residual - m.reg*m.itemBias[itemIndex])
	// Update latent factors from pre-update copies:
	// p_u <- p_u + γ (e_{ui} q_i - λ p_u)
	// q_i <- q_i + γ (e_{ui} p_u - λ q_i)
	copy(a, m.userFactor[userIndex])
	copy(b, m.itemFactor[itemIndex])
	floats.MulConstAdd(b, lr*residual, m.userFactor[userIndex])
	floats.MulConstAdd(a, -lr*m.reg, m.userFactor[userIndex])
	floats.MulConstAdd(a, lr*residual, m.itemFactor[itemIndex])
	floats.MulConstAdd(b, -lr*m.reg, m.itemFactor[itemIndex])
	m.userTrained.Set(uint(userIndex))
	m.itemTrained.Set(uint(itemIndex))
	return residual * residual
}

// index maps events to dense samples, assigning indices lazily and growing the
// embedding tables when capacity is exceeded. Learned rows are never discarded.
func (m *FactorModel) index(events []dataset.Feedback) []sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	samples := make([]sample, 0, len(events))
	for _, event := range events {
		if event.Value < m.minRating || event.Value > m.maxRating {
			log.Logger().Warn("drop out-of-range feedback",
				zap.String("user_id", event.UserId),
				zap.String("item_id", event.ItemId),
				zap.Float32("value", event.Value))
			continue
		}
		userIndex := m.userIndex.Add(event.UserId)
		itemIndex := m.itemIndex.Add(event.ItemId)
		m.growUsers(int(userIndex) + 1)
		m.growItems(int(itemIndex) + 1)
		samples = append(samples, sample{userIndex, itemIndex, event.Value})
	}
	return samples
}

func (m *FactorModel) growUsers(n int) {
	for len(m.userFactor) < n {
		m.userFactor = append(m.userFactor, m.rng.NormalVector(m.nFactors, m.initMean, m.initStdDev))
		m.userBias = append(m.userBias, 0)
	}
}

func (m *FactorModel) growItems(n int) {
	for len(m.itemFactor) < n {
		m.itemFactor = append(m.itemFactor, m.rng.NormalVector(m.nFactors, m.initMean, m.initStdDev))
		m.itemBias = append(m.itemBias, 0)
	}
}

// evaluate returns the mean squared error over samples. Used for per-epoch
// validation reporting.
func (m *FactorModel) evaluate(samples []sample) float32 {
	if len(samples) == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var cost float32
	for _, s := range samples {
		residual := s.rating - m.clamp(m.internalPredict(s.userIndex, s.itemIndex))
		cost += residual * residual
	}
	return cost / float32(len(samples))
}
