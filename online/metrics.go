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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cinematch",
		Subsystem: "online",
		Name:      "queue_length",
	})
	QueueOverflowTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cinematch",
		Subsystem: "online",
		Name:      "queue_overflow_total",
	})
	DrainCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cinematch",
		Subsystem: "online",
		Name:      "drain_cycles_total",
	})
	DrainFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cinematch",
		Subsystem: "online",
		Name:      "drain_failures_total",
	})
	DrainSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cinematch",
		Subsystem: "online",
		Name:      "drain_seconds",
	})
	RollingAccuracy = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cinematch",
		Subsystem: "online",
		Name:      "rolling_accuracy",
	})
	LearningRate = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cinematch",
		Subsystem: "online",
		Name:      "learning_rate",
	})
)
