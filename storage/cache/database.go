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
	"strings"
	"time"

	"github.com/juju/errors"
)

const (
	memoryPrefix = "memory://"
	redisPrefix  = "redis://"
)

var (
	// ErrObjectNotExist is returned by Get for missing or expired keys.
	ErrObjectNotExist = errors.NotFoundf("object")
	// ErrNoDatabase is returned when no cache store is configured.
	ErrNoDatabase = errors.NotAssignedf("no database specified")
)

// Database is a key-value cache store with TTL and tag-based invalidation.
// Entries may carry tags; DeleteTag removes exactly the entries associated
// with the tag and nothing else. Individual key writes and tag-index writes
// are independently best-effort and idempotent.
type Database interface {
	Close() error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration, tags ...string) error
	Delete(ctx context.Context, key string) error
	DeleteTag(ctx context.Context, tag string) error
}

// Key concatenates keys by slashes.
func Key(keys ...string) string {
	return strings.Join(keys, "/")
}

// UserTag is the invalidation tag covering all cached results of a user.
func UserTag(userId string) string {
	return "user/" + userId
}

// PopularityTag is the invalidation tag covering popularity-derived entries.
const PopularityTag = "popularity"

// Open a connection to a cache store. Supported schemes are memory:// and redis://.
func Open(path string) (Database, error) {
	switch {
	case strings.HasPrefix(path, memoryPrefix), path == "":
		return NewMemoryDatabase(), nil
	case strings.HasPrefix(path, redisPrefix):
		return OpenRedis(path)
	}
	return nil, errors.Errorf("unknown cache store: %s", path)
}
