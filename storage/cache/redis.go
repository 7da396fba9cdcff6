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
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
)

// Redis is a cache store backed by a Redis server. Tags are stored as Redis
// sets holding the tagged keys.
type Redis struct {
	client *redis.Client
}

// OpenRedis connects to a Redis server, retrying the initial ping with
// exponential backoff.
func OpenRedis(path string) (*Redis, error) {
	options, err := redis.ParseURL(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	client := redis.NewClient(options)
	_, err = backoff.Retry(context.Background(), func() (struct{}, error) {
		return struct{}{}, client.Ping(context.Background()).Err()
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrObjectNotExist
	} else if err != nil {
		return "", errors.Trace(err)
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration, tags ...string) error {
	pipeline := r.client.Pipeline()
	pipeline.Set(ctx, key, value, ttl)
	for _, tag := range tags {
		pipeline.SAdd(ctx, tagKey(tag), key)
	}
	_, err := pipeline.Exec(ctx)
	return errors.Trace(err)
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return errors.Trace(r.client.Del(ctx, key).Err())
}

func (r *Redis) DeleteTag(ctx context.Context, tag string) error {
	keys, err := r.client.SMembers(ctx, tagKey(tag)).Result()
	if err != nil {
		return errors.Trace(err)
	}
	pipeline := r.client.Pipeline()
	if len(keys) > 0 {
		pipeline.Del(ctx, keys...)
	}
	pipeline.Del(ctx, tagKey(tag))
	_, err = pipeline.Exec(ctx)
	return errors.Trace(err)
}

func tagKey(tag string) string {
	return "tags/" + tag
}
