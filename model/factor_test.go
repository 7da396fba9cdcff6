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
	"fmt"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinematch-io/cinematch/dataset"
)

func newTestModel() *FactorModel {
	return NewFactorModel(Params{
		NFactors:    8,
		Lr:          0.01,
		Reg:         0.01,
		BatchSize:   16,
		RandomState: 42,
	})
}

// syntheticEvents generates ratings with a simple structure: even users love
// even items and dislike odd items, odd users the other way around.
func syntheticEvents(numUsers, numItems int) []dataset.Feedback {
	var events []dataset.Feedback
	for u := 0; u < numUsers; u++ {
		for i := 0; i < numItems; i++ {
			value := float32(1)
			if u%2 == i%2 {
				value = 5
			}
			events = append(events, dataset.Feedback{
				UserId:    fmt.Sprintf("u%d", u),
				ItemId:    fmt.Sprintf("i%d", i),
				Type:      dataset.Rate,
				Value:     value,
				Timestamp: time.Now(),
			})
		}
	}
	return events
}

func TestFactorModel_Initialize(t *testing.T) {
	m := newTestModel()
	assert.False(t, m.Initialized())
	err := m.Initialize(0, 10, 8)
	assert.True(t, errors.Is(err, ErrNotInitializable))
	err = m.Initialize(10, -1, 8)
	assert.True(t, errors.Is(err, ErrNotInitializable))
	err = m.Initialize(10, 10, 8)
	assert.NoError(t, err)
	assert.True(t, m.Initialized())
	// biases start at zero, factors are randomized
	assert.Equal(t, float32(0), m.userBias[0])
	assert.Equal(t, float32(0), m.itemBias[0])
	assert.Len(t, m.userFactor, 10)
	assert.Len(t, m.userFactor[0], 8)
}

func TestFactorModel_NotInitialized(t *testing.T) {
	m := newTestModel()
	_, err := m.Train(syntheticEvents(2, 2), 1, 0)
	assert.True(t, errors.Is(err, ErrNotInitialized))
	err = m.IncrementalTrain(syntheticEvents(2, 2), 0)
	assert.True(t, errors.Is(err, ErrNotInitialized))
	// prediction degrades to the fallback value instead of failing
	assert.Equal(t, m.Fallback(), m.Predict("u0", "i0"))
}

func TestFactorModel_Train(t *testing.T) {
	m := newTestModel()
	require.NoError(t, m.Initialize(20, 10, 8))
	losses, err := m.Train(syntheticEvents(20, 10), 30, 0.1)
	require.NoError(t, err)
	assert.Len(t, losses, 30)
	assert.Less(t, losses[len(losses)-1], losses[0])
	// learned structure: even user prefers even item
	assert.Greater(t, m.Predict("u0", "i0"), m.Predict("u0", "i1"))
	// predictions stay inside the rating range
	for u := 0; u < 20; u++ {
		for i := 0; i < 10; i++ {
			value := m.Predict(fmt.Sprintf("u%d", u), fmt.Sprintf("i%d", i))
			assert.GreaterOrEqual(t, value, float32(1))
			assert.LessOrEqual(t, value, float32(5))
		}
	}
}

func TestFactorModel_Fallback(t *testing.T) {
	m := newTestModel()
	require.NoError(t, m.Initialize(10, 10, 8))
	_, err := m.Train(syntheticEvents(4, 4), 5, 0)
	require.NoError(t, err)
	// unseen identifiers return the fallback value, deterministically
	for i := 0; i < 10; i++ {
		assert.Equal(t, float32(3), m.Predict("stranger", "i0"))
		assert.Equal(t, float32(3), m.Predict("u0", "unknown"))
	}
	predictions := m.BatchPredict([]Pair{
		{"u0", "i0"},
		{"stranger", "i0"},
		{"u1", "unknown"},
	})
	assert.Len(t, predictions, 3)
	assert.NotEqual(t, m.Fallback(), predictions[0])
	assert.Equal(t, m.Fallback(), predictions[1])
	assert.Equal(t, m.Fallback(), predictions[2])
}

func TestFactorModel_SingleWriter(t *testing.T) {
	m := newTestModel()
	require.NoError(t, m.Initialize(10, 10, 8))
	events := syntheticEvents(4, 4)
	_, err := m.Train(events, 5, 0)
	require.NoError(t, err)
	// simulate an in-progress training run
	require.True(t, m.training.CompareAndSwap(false, true))
	before := make([][]float32, len(m.userFactor))
	for i := range m.userFactor {
		before[i] = append([]float32(nil), m.userFactor[i]...)
	}
	globalBias := m.globalBias
	// full training is rejected
	_, err = m.Train(events, 1, 0)
	assert.True(t, errors.Is(err, ErrAlreadyTraining))
	// incremental training is a silent no-op that mutates nothing
	assert.NoError(t, m.IncrementalTrain(events, 0.1))
	assert.Equal(t, before, m.userFactor)
	assert.Equal(t, globalBias, m.globalBias)
	m.training.Store(false)
	// without contention, the incremental step mutates the model
	assert.NoError(t, m.IncrementalTrain(events, 0.1))
	assert.NotEqual(t, before, m.userFactor)
}

func TestFactorModel_Grow(t *testing.T) {
	m := newTestModel()
	require.NoError(t, m.Initialize(2, 2, 8))
	_, err := m.Train(syntheticEvents(2, 2), 5, 0)
	require.NoError(t, err)
	learned := append([]float32(nil), m.userFactor[0]...)
	// events beyond capacity expand the tables and keep learned rows
	err = m.IncrementalTrain([]dataset.Feedback{
		{UserId: "u7", ItemId: "i7", Type: dataset.Rate, Value: 4},
	}, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(m.userFactor), 3)
	assert.Equal(t, learned, m.userFactor[0])
	assert.NotEqual(t, m.Fallback(), m.Predict("u7", "i7"))
}

func TestFactorModel_DropInvalidValue(t *testing.T) {
	m := newTestModel()
	require.NoError(t, m.Initialize(4, 4, 8))
	samples := m.index([]dataset.Feedback{
		{UserId: "u0", ItemId: "i0", Value: 3},
		{UserId: "u0", ItemId: "i1", Value: 6},
		{UserId: "u0", ItemId: "i2", Value: 0.5},
	})
	assert.Len(t, samples, 1)
}
