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
	"math"
	"sort"
	"strings"
)

// Weights is the hybrid component weight quadruple. The four weights are
// non-negative and sum to 1.
type Weights struct {
	Content       float64 `json:"content"`
	Collaborative float64 `json:"collaborative"`
	Popularity    float64 `json:"popularity"`
	Diversity     float64 `json:"diversity"`
}

const (
	collaborativeCeiling = 0.7
	collaborativeSlope   = 0.001
)

// WeightsForUser selects the weight quadruple by the user's historical
// feedback count. New users lean on content and popularity, heavy users lean
// collaborative with the weight growing linearly past 100 events up to the
// ceiling. The non-collaborative remainder splits 3:2 between content and
// popularity, diversity stays fixed.
func WeightsForUser(feedbackCount int) Weights {
	switch {
	case feedbackCount < 5:
		return Weights{Content: 0.4, Collaborative: 0.1, Popularity: 0.4, Diversity: 0.1}
	case feedbackCount < 20:
		return Weights{Content: 0.35, Collaborative: 0.25, Popularity: 0.3, Diversity: 0.1}
	case feedbackCount < 100:
		return Weights{Content: 0.3, Collaborative: 0.4, Popularity: 0.2, Diversity: 0.1}
	default:
		collaborative := math.Min(collaborativeCeiling,
			0.4+float64(feedbackCount-100)*collaborativeSlope)
		remainder := 1 - collaborative - 0.1
		return Weights{
			Content:       remainder * 3 / 5,
			Collaborative: collaborative,
			Popularity:    remainder * 2 / 5,
			Diversity:     0.1,
		}
	}
}

// Candidate carries the normalized component scores of one item. Components a
// source cannot provide are left at zero.
type Candidate struct {
	ItemId        string
	Genres        []string
	Content       float64
	Collaborative float64
	Popularity    float64
}

// Recommendation is one entry of a ranked recommendation list.
type Recommendation struct {
	ItemId      string  `json:"item_id"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// explanationThreshold is the minimum weighted contribution a component needs
// to appear in the explanation.
const explanationThreshold = 0.1

// Combine blends the component scores of each candidate into a single ranking.
// The combined score is the weighted sum of the content, collaborative and
// popularity components plus a diversity term bounded by the diversity weight.
// The diversity term is the genre novelty of the candidate against the user's
// historical genre distribution, so identical inputs always produce identical
// rankings. Output is ordered score descending, ties by item id ascending.
func Combine(weights Weights, candidates []Candidate, genreProfile map[string]float64) []Recommendation {
	recommendations := make([]Recommendation, 0, len(candidates))
	for _, candidate := range candidates {
		novelty := Novelty(candidate.Genres, genreProfile)
		contributions := []contribution{
			{"based on movies you liked", weights.Content * candidate.Content},
			{"predicted from your ratings", weights.Collaborative * candidate.Collaborative},
			{"popular with other users", weights.Popularity * candidate.Popularity},
			{"adds variety to your list", weights.Diversity * novelty},
		}
		var score float64
		for _, c := range contributions {
			score += c.value
		}
		recommendations = append(recommendations, Recommendation{
			ItemId:      candidate.ItemId,
			Score:       score,
			Explanation: explain(contributions),
		})
	}
	sortRecommendations(recommendations)
	return recommendations
}

// Novelty measures how unfamiliar an item's genres are to a user, in [0, 1].
// A user who has never seen any of the item's genres gets 1, an item fully
// inside the user's taste profile approaches 0. Items without genres score 0:
// absent metadata earns no diversity boost.
func Novelty(genres []string, genreProfile map[string]float64) float64 {
	if len(genres) == 0 {
		return 0
	}
	var familiarity float64
	for _, genre := range genres {
		familiarity += genreProfile[genre]
	}
	return 1 - familiarity/float64(len(genres))
}

type contribution struct {
	reason string
	value  float64
}

// explain lists the reasons of components whose weighted contribution exceeds
// the threshold, strongest first.
func explain(contributions []contribution) string {
	sorted := make([]contribution, len(contributions))
	copy(sorted, contributions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].value > sorted[j].value
	})
	var reasons []string
	for _, c := range sorted {
		if c.value >= explanationThreshold {
			reasons = append(reasons, c.reason)
		}
	}
	if len(reasons) == 0 {
		return "recommended for you"
	}
	return strings.Join(reasons, "; ")
}

func sortRecommendations(recommendations []Recommendation) {
	sort.Slice(recommendations, func(i, j int) bool {
		if recommendations[i].Score != recommendations[j].Score {
			return recommendations[i].Score > recommendations[j].Score
		}
		return recommendations[i].ItemId < recommendations[j].ItemId
	})
}
