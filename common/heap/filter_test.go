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

package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopKFilter(t *testing.T) {
	filter := NewTopKFilter[string, float64](3)
	filter.Push("a", 1)
	filter.Push("b", 5)
	filter.Push("c", 3)
	filter.Push("d", 4)
	filter.Push("e", 2)
	items, weights := filter.PopAll()
	assert.Equal(t, []string{"b", "d", "c"}, items)
	assert.Equal(t, []float64{5, 4, 3}, weights)
}
