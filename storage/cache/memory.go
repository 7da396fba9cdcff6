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
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jellydator/ttlcache/v3"
)

// Memory is an in-process cache store backed by a TTL cache plus a tag index.
type Memory struct {
	cache   *ttlcache.Cache[string, string]
	mu      sync.Mutex
	tagKeys map[string]mapset.Set[string] // tag -> keys
	keyTags map[string]mapset.Set[string] // key -> tags
}

// NewMemoryDatabase creates an in-process cache store.
func NewMemoryDatabase() *Memory {
	m := &Memory{
		cache:   ttlcache.New[string, string](ttlcache.WithDisableTouchOnHit[string, string]()),
		tagKeys: make(map[string]mapset.Set[string]),
		keyTags: make(map[string]mapset.Set[string]),
	}
	m.cache.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, string]) {
		m.untag(item.Key())
	})
	go m.cache.Start()
	return m
}

func (m *Memory) Close() error {
	m.cache.Stop()
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	item := m.cache.Get(key)
	if item == nil || item.IsExpired() {
		return "", ErrObjectNotExist
	}
	return item.Value(), nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration, tags ...string) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	// overwriting a key replaces its tag associations
	m.untag(key)
	m.cache.Set(key, value, ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tag := range tags {
		keys, exist := m.tagKeys[tag]
		if !exist {
			keys = mapset.NewThreadUnsafeSet[string]()
			m.tagKeys[tag] = keys
		}
		keys.Add(key)
	}
	if len(tags) > 0 {
		m.keyTags[key] = mapset.NewThreadUnsafeSet(tags...)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	m.untag(key)
	return nil
}

func (m *Memory) DeleteTag(_ context.Context, tag string) error {
	m.mu.Lock()
	var keys []string
	if tagged, exist := m.tagKeys[tag]; exist {
		keys = tagged.ToSlice()
	}
	m.mu.Unlock()
	// cache deletion fires the eviction hook, which cleans the tag index
	for _, key := range keys {
		m.cache.Delete(key)
	}
	return nil
}

// untag removes a key from the tag index.
func (m *Memory) untag(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tags, exist := m.keyTags[key]; exist {
		tags.Each(func(tag string) bool {
			if keys, ok := m.tagKeys[tag]; ok {
				keys.Remove(key)
				if keys.Cardinality() == 0 {
					delete(m.tagKeys, tag)
				}
			}
			return false
		})
		delete(m.keyTags, key)
	}
}
