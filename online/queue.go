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
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cinematch-io/cinematch/base/log"
	"github.com/cinematch-io/cinematch/dataset"
)

// Priority is the closed set of update priorities.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	}
	return "unknown"
}

// ParsePriority parses a priority name. Unrecognized names are an error, there
// is no silent fallback.
func ParsePriority(name string) (Priority, error) {
	switch name {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	}
	return 0, errors.NotValidf("priority %q", name)
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return errors.Trace(err)
	}
	priority, err := ParsePriority(name)
	if err != nil {
		return errors.Trace(err)
	}
	*p = priority
	return nil
}

// UpdateJob is a feedback event enriched with a priority tier and an enqueue
// timestamp, awaiting incorporation into the model.
type UpdateJob struct {
	Id         uuid.UUID            `json:"id"`
	UserId     string               `json:"user_id"`
	ItemId     string               `json:"item_id"`
	Action     dataset.FeedbackType `json:"action"`
	Value      float32              `json:"value"`
	Priority   Priority             `json:"priority"`
	Timestamp  time.Time            `json:"timestamp"`
	EnqueuedAt time.Time            `json:"enqueued_at"`
}

// NewUpdateJob creates an UpdateJob from a feedback event.
func NewUpdateJob(feedback dataset.Feedback, priority Priority) UpdateJob {
	return UpdateJob{
		Id:         uuid.New(),
		UserId:     feedback.UserId,
		ItemId:     feedback.ItemId,
		Action:     feedback.Type,
		Value:      feedback.Value,
		Priority:   priority,
		Timestamp:  feedback.Timestamp,
		EnqueuedAt: time.Now(),
	}
}

// Feedback converts the job back to a feedback event.
func (job UpdateJob) Feedback() dataset.Feedback {
	return dataset.Feedback{
		UserId:    job.UserId,
		ItemId:    job.ItemId,
		Type:      job.Action,
		Value:     job.Value,
		Timestamp: job.Timestamp,
	}
}

// UpdateQueue buffers update jobs ordered by tier then FIFO: across tiers the
// higher tier always dequeues first, within a tier insertion order is kept.
// When the capacity is exceeded the oldest lowest-priority jobs are evicted
// first until capacity is restored.
type UpdateQueue struct {
	mu       sync.Mutex
	capacity int
	tiers    [3][]UpdateJob // index 0 = low, 2 = high
}

// NewUpdateQueue creates an UpdateQueue. capacity <= 0 means unbounded.
func NewUpdateQueue(capacity int) *UpdateQueue {
	return &UpdateQueue{capacity: capacity}
}

// Enqueue inserts a job preserving tier-then-FIFO ordering, evicting on overflow.
func (q *UpdateQueue) Enqueue(job UpdateJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	tier := int(job.Priority) - 1
	if tier < 0 || tier > 2 {
		tier = 0
	}
	q.tiers[tier] = append(q.tiers[tier], job)
	if q.capacity > 0 {
		for q.length() > q.capacity {
			q.evictLocked()
		}
	}
	QueueLength.Set(float64(q.length()))
}

// evictLocked drops the oldest job of the lowest non-empty tier.
func (q *UpdateQueue) evictLocked() {
	for tier := 0; tier < 3; tier++ {
		if len(q.tiers[tier]) > 0 {
			victim := q.tiers[tier][0]
			q.tiers[tier] = q.tiers[tier][1:]
			QueueOverflowTotal.Inc()
			log.Logger().Warn("update queue overflow",
				zap.String("job_id", victim.Id.String()),
				zap.String("priority", victim.Priority.String()),
				zap.Time("enqueued_at", victim.EnqueuedAt))
			return
		}
	}
}

// DequeueBatch removes and returns up to maxSize jobs from the head,
// respecting tier-then-FIFO order.
func (q *UpdateQueue) DequeueBatch(maxSize int) []UpdateJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	var batch []UpdateJob
	for tier := 2; tier >= 0 && len(batch) < maxSize; tier-- {
		take := min(maxSize-len(batch), len(q.tiers[tier]))
		batch = append(batch, q.tiers[tier][:take]...)
		q.tiers[tier] = q.tiers[tier][take:]
	}
	QueueLength.Set(float64(q.length()))
	return batch
}

// Length returns the number of buffered jobs.
func (q *UpdateQueue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length()
}

// IsEmpty returns true if no jobs are buffered.
func (q *UpdateQueue) IsEmpty() bool {
	return q.Length() == 0
}

func (q *UpdateQueue) length() int {
	return len(q.tiers[0]) + len(q.tiers[1]) + len(q.tiers[2])
}
