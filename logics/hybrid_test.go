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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightsForUser(t *testing.T) {
	// new user
	assert.Equal(t, Weights{Content: 0.4, Collaborative: 0.1, Popularity: 0.4, Diversity: 0.1},
		WeightsForUser(0))
	assert.Equal(t, WeightsForUser(0), WeightsForUser(4))
	// light user
	assert.Equal(t, Weights{Content: 0.35, Collaborative: 0.25, Popularity: 0.3, Diversity: 0.1},
		WeightsForUser(5))
	// regular user
	assert.Equal(t, Weights{Content: 0.3, Collaborative: 0.4, Popularity: 0.2, Diversity: 0.1},
		WeightsForUser(20))
	// heavy user, collaborative grows linearly past 100 events
	assert.InDelta(t, 0.45, WeightsForUser(150).Collaborative, 1e-9)
	// ceiling
	assert.InDelta(t, 0.7, WeightsForUser(1000).Collaborative, 1e-9)
	// every tier sums to 1
	for _, count := range []int{0, 4, 5, 19, 20, 99, 100, 150, 500, 10000} {
		w := WeightsForUser(count)
		assert.InDelta(t, 1.0, w.Content+w.Collaborative+w.Popularity+w.Diversity, 1e-9,
			"feedback count %d", count)
		assert.GreaterOrEqual(t, w.Content, 0.0)
		assert.GreaterOrEqual(t, w.Popularity, 0.0)
	}
}

func TestCombine_WeightedSum(t *testing.T) {
	weights := Weights{Content: 0.4, Collaborative: 0.1, Popularity: 0.4, Diversity: 0.1}
	candidates := []Candidate{
		{ItemId: "a", Content: 1, Collaborative: 1, Popularity: 1},
		{ItemId: "b", Content: 0.5},
		{ItemId: "c"}, // all components missing
	}
	recommendations := Combine(weights, candidates, nil)
	require.Len(t, recommendations, 3)
	assert.Equal(t, "a", recommendations[0].ItemId)
	assert.InDelta(t, 0.9, recommendations[0].Score, 1e-9)
	assert.Equal(t, "b", recommendations[1].ItemId)
	assert.InDelta(t, 0.2, recommendations[1].Score, 1e-9)
	assert.Equal(t, "c", recommendations[2].ItemId)
	assert.Zero(t, recommendations[2].Score)
}

func TestCombine_Deterministic(t *testing.T) {
	weights := WeightsForUser(50)
	candidates := []Candidate{
		{ItemId: "a", Genres: []string{"action", "sci-fi"}, Content: 0.8, Collaborative: 0.6, Popularity: 0.3},
		{ItemId: "b", Genres: []string{"drama"}, Content: 0.4, Collaborative: 0.9, Popularity: 0.7},
		{ItemId: "c", Genres: []string{"comedy"}, Popularity: 1},
	}
	profile := map[string]float64{"action": 0.5, "sci-fi": 0.3, "comedy": 0.2}
	first := Combine(weights, candidates, profile)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Combine(weights, candidates, profile))
	}
}

func TestCombine_TieBreakByItemId(t *testing.T) {
	weights := Weights{Content: 1}
	candidates := []Candidate{
		{ItemId: "zebra", Content: 0.5},
		{ItemId: "apple", Content: 0.5},
		{ItemId: "mango", Content: 0.5},
	}
	recommendations := Combine(weights, candidates, nil)
	assert.Equal(t, "apple", recommendations[0].ItemId)
	assert.Equal(t, "mango", recommendations[1].ItemId)
	assert.Equal(t, "zebra", recommendations[2].ItemId)
}

func TestNovelty(t *testing.T) {
	profile := map[string]float64{"action": 0.6, "drama": 0.4}
	// fully familiar
	assert.InDelta(t, 0.5, Novelty([]string{"action", "drama"}, profile), 1e-9)
	// fully novel genre
	assert.InDelta(t, 1.0, Novelty([]string{"western"}, profile), 1e-9)
	// mixed
	assert.InDelta(t, 0.7, Novelty([]string{"action", "western"}, profile), 1e-9)
	// no metadata earns no boost
	assert.Zero(t, Novelty(nil, profile))
	// empty profile means everything is novel
	assert.InDelta(t, 1.0, Novelty([]string{"action"}, nil), 1e-9)
}

func TestCombine_DiversityBoundedByWeight(t *testing.T) {
	weights := Weights{Diversity: 0.1}
	candidates := []Candidate{{ItemId: "a", Genres: []string{"western"}}}
	recommendations := Combine(weights, candidates, nil)
	assert.InDelta(t, 0.1, recommendations[0].Score, 1e-9)
}

func TestCombine_Explanation(t *testing.T) {
	weights := Weights{Content: 0.4, Collaborative: 0.1, Popularity: 0.4, Diversity: 0.1}
	recommendations := Combine(weights, []Candidate{
		{ItemId: "a", Content: 1, Popularity: 0.5},
	}, nil)
	// content 0.4 and popularity 0.2 pass the threshold, strongest first
	assert.Equal(t, "based on movies you liked; popular with other users",
		recommendations[0].Explanation)
	recommendations = Combine(weights, []Candidate{{ItemId: "b"}}, nil)
	assert.Equal(t, "recommended for you", recommendations[0].Explanation)
}

func TestUserProfiles(t *testing.T) {
	profiles := NewUserProfiles()
	assert.Zero(t, profiles.FeedbackCount("alice"))
	assert.Nil(t, profiles.GenreDistribution("alice"))
	profiles.Add("alice", []string{"action", "sci-fi"})
	profiles.Add("alice", []string{"action"})
	profiles.Add("alice", nil)
	assert.Equal(t, 3, profiles.FeedbackCount("alice"))
	distribution := profiles.GenreDistribution("alice")
	assert.InDelta(t, 2.0/3.0, distribution["action"], 1e-9)
	assert.InDelta(t, 1.0/3.0, distribution["sci-fi"], 1e-9)
	// other users are unaffected
	assert.Zero(t, profiles.FeedbackCount("bob"))
}
