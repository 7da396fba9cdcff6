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

import "sync"

// UserProfiles accumulates per-user feedback history: the total event count
// that selects the weight tier and the genre distribution that feeds the
// diversity term.
type UserProfiles struct {
	mu          sync.RWMutex
	genreCounts map[string]map[string]int64
	eventCounts map[string]int64
}

// NewUserProfiles creates an empty profile store.
func NewUserProfiles() *UserProfiles {
	return &UserProfiles{
		genreCounts: make(map[string]map[string]int64),
		eventCounts: make(map[string]int64),
	}
}

// Add records one feedback event and the genres of the item it touched.
func (p *UserProfiles) Add(userId string, genres []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eventCounts[userId]++
	if len(genres) == 0 {
		return
	}
	counts, exist := p.genreCounts[userId]
	if !exist {
		counts = make(map[string]int64)
		p.genreCounts[userId] = counts
	}
	for _, genre := range genres {
		counts[genre]++
	}
}

// FeedbackCount returns the number of events recorded for a user.
func (p *UserProfiles) FeedbackCount(userId string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return int(p.eventCounts[userId])
}

// GenreDistribution returns the user's historical genre distribution. The
// returned shares sum to 1 for users with genre history, and the map is a
// copy safe to read without locking.
func (p *UserProfiles) GenreDistribution(userId string) map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	counts := p.genreCounts[userId]
	if len(counts) == 0 {
		return nil
	}
	var total int64
	for _, count := range counts {
		total += count
	}
	distribution := make(map[string]float64, len(counts))
	for genre, count := range counts {
		distribution[genre] = float64(count) / float64(total)
	}
	return distribution
}
