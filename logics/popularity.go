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

package logics

import (
	"sync"

	"github.com/cinematch-io/cinematch/common/heap"
	"github.com/cinematch-io/cinematch/dataset"
)

// Popularity ranks items by accumulated feedback count. Scores are normalized
// to (0, 1] against the current maximum count so they compose with the other
// hybrid components.
type Popularity struct {
	mu       sync.RWMutex
	counts   map[string]int64
	maxCount int64
}

// NewPopularity creates an empty popularity tracker.
func NewPopularity() *Popularity {
	return &Popularity{counts: make(map[string]int64)}
}

// Push counts one feedback event for its item.
func (p *Popularity) Push(feedback dataset.Feedback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[feedback.ItemId]++
	if p.counts[feedback.ItemId] > p.maxCount {
		p.maxCount = p.counts[feedback.ItemId]
	}
}

// Score returns the normalized popularity of an item. Unknown items score 0.
func (p *Popularity) Score(itemId string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.maxCount == 0 {
		return 0
	}
	return float64(p.counts[itemId]) / float64(p.maxCount)
}

// TopK returns the n most popular items with normalized scores, most popular
// first, ties broken by item id ascending.
func (p *Popularity) TopK(n int) []Recommendation {
	p.mu.RLock()
	filter := heap.NewTopKFilter[string, int64](n)
	for itemId, count := range p.counts {
		filter.Push(itemId, count)
	}
	maxCount := p.maxCount
	p.mu.RUnlock()
	itemIds, counts := filter.PopAll()
	recommendations := make([]Recommendation, len(itemIds))
	for i, itemId := range itemIds {
		recommendations[i] = Recommendation{
			ItemId:      itemId,
			Score:       float64(counts[i]) / float64(maxCount),
			Explanation: "popular with other users",
		}
	}
	sortRecommendations(recommendations)
	return recommendations
}
