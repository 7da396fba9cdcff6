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

import "github.com/juju/errors"

var (
	// ErrNotInitializable is returned by Initialize for non-positive capacities.
	ErrNotInitializable = errors.New("capacities must be positive")
	// ErrNotInitialized is returned by training operations before Initialize.
	ErrNotInitialized = errors.New("model is not initialized")
	// ErrAlreadyTraining is returned by Train while another training run is in progress.
	ErrAlreadyTraining = errors.New("another training run is in progress")
	// ErrInvalidValue is returned for feedback values outside the rating range.
	ErrInvalidValue = errors.New("feedback value out of rating range")
)
