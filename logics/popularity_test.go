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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinematch-io/cinematch/dataset"
)

func pushFeedback(p *Popularity, itemId string, n int) {
	for i := 0; i < n; i++ {
		p.Push(dataset.Feedback{
			UserId: fmt.Sprintf("user%d", i),
			ItemId: itemId,
			Type:   dataset.Watch,
		})
	}
}

func TestPopularity(t *testing.T) {
	p := NewPopularity()
	assert.Zero(t, p.Score("unknown"))
	assert.Empty(t, p.TopK(10))
	pushFeedback(p, "matrix", 10)
	pushFeedback(p, "inception", 5)
	pushFeedback(p, "alien", 1)
	assert.Equal(t, 1.0, p.Score("matrix"))
	assert.Equal(t, 0.5, p.Score("inception"))
	assert.Zero(t, p.Score("unknown"))
	top := p.TopK(2)
	require.Len(t, top, 2)
	assert.Equal(t, "matrix", top[0].ItemId)
	assert.Equal(t, 1.0, top[0].Score)
	assert.Equal(t, "inception", top[1].ItemId)
	assert.Equal(t, 0.5, top[1].Score)
	// k larger than the catalog returns everything
	assert.Len(t, p.TopK(10), 3)
}
