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

package dataset

import "time"

// FeedbackType is the kind of action a feedback event carries.
type FeedbackType string

const (
	Rate  FeedbackType = "rate"
	Like  FeedbackType = "like"
	Watch FeedbackType = "watch"
)

// Feedback is a single feedback event from a user about an item.
type Feedback struct {
	UserId    string       `json:"user_id"`
	ItemId    string       `json:"item_id"`
	Type      FeedbackType `json:"type"`
	Value     float32      `json:"value"`
	Timestamp time.Time    `json:"timestamp"`
}
