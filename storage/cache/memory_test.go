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

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	defer db.Close()
	_, err := db.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrObjectNotExist))
	require.NoError(t, db.Set(ctx, "a", "1", 0))
	value, err := db.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", value)
	// overwrite
	require.NoError(t, db.Set(ctx, "a", "2", 0))
	value, err = db.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2", value)
	// delete
	require.NoError(t, db.Delete(ctx, "a"))
	_, err = db.Get(ctx, "a")
	assert.True(t, errors.Is(err, ErrObjectNotExist))
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	defer db.Close()
	require.NoError(t, db.Set(ctx, "a", "1", 10*time.Millisecond))
	value, err := db.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", value)
	time.Sleep(20 * time.Millisecond)
	_, err = db.Get(ctx, "a")
	assert.True(t, errors.Is(err, ErrObjectNotExist))
}

func TestMemory_DeleteTag(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	defer db.Close()
	require.NoError(t, db.Set(ctx, "a", "1", 0, UserTag("alice")))
	require.NoError(t, db.Set(ctx, "b", "2", 0, UserTag("alice"), PopularityTag))
	require.NoError(t, db.Set(ctx, "c", "3", 0, UserTag("bob")))
	require.NoError(t, db.DeleteTag(ctx, UserTag("alice")))
	// exactly the tagged entries are removed
	_, err := db.Get(ctx, "a")
	assert.True(t, errors.Is(err, ErrObjectNotExist))
	_, err = db.Get(ctx, "b")
	assert.True(t, errors.Is(err, ErrObjectNotExist))
	value, err := db.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "3", value)
	// deleting an unknown tag is a no-op
	assert.NoError(t, db.DeleteTag(ctx, UserTag("nobody")))
	// overwriting replaces tag associations
	require.NoError(t, db.Set(ctx, "c", "4", 0, PopularityTag))
	require.NoError(t, db.DeleteTag(ctx, UserTag("bob")))
	value, err = db.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "4", value)
	require.NoError(t, db.DeleteTag(ctx, PopularityTag))
	_, err = db.Get(ctx, "c")
	assert.True(t, errors.Is(err, ErrObjectNotExist))
}

func TestOpen(t *testing.T) {
	db, err := Open("memory://")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, db)
	assert.NoError(t, db.Close())
	_, err = Open("mysql://root@localhost/cache")
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "prediction/alice/item1", Key("prediction", "alice", "item1"))
	assert.Equal(t, "user/alice", UserTag("alice"))
}
