// Copyright 2025 Ying-Yu Ho. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package trace

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Pusher abstracts the minimal surface we need from a Redis client.
// *redis.Client satisfies it; tests supply a fake.
type Pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisSink mirrors event-log lines into a Redis list so external
// post-processors can tail a run without sharing a filesystem. Lines are
// batched; a batch is pushed when it reaches batchSize and on Flush.
// Push failures are logged and dropped — the event log on stdout remains
// the source of truth.
type RedisSink struct {
	client    Pusher
	key       string
	batchSize int
	timeout   time.Duration
	pending   []interface{}
}

// NewRedisSink returns a sink pushing to the given list key. batchSize
// <= 0 selects a default of 256 lines per push.
func NewRedisSink(client Pusher, key string, batchSize int) *RedisSink {
	if batchSize <= 0 {
		batchSize = 256
	}
	return &RedisSink{
		client:    client,
		key:       key,
		batchSize: batchSize,
		timeout:   5 * time.Second,
	}
}

// DialRedisSink connects to addr with go-redis defaults and returns a
// sink over the connection.
func DialRedisSink(addr, key string, batchSize int) *RedisSink {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return NewRedisSink(client, key, batchSize)
}

// Line buffers one event line, pushing the batch when full. The logger
// serializes calls, so no locking is needed here.
func (s *RedisSink) Line(line string) {
	s.pending = append(s.pending, line)
	if len(s.pending) >= s.batchSize {
		s.push()
	}
}

// Flush pushes any buffered lines.
func (s *RedisSink) Flush() error {
	if len(s.pending) > 0 {
		s.push()
	}
	return nil
}

func (s *RedisSink) push() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.RPush(ctx, s.key, s.pending...).Err(); err != nil {
		logrus.WithError(err).WithField("key", s.key).
			Warn("dropping event-log batch: redis push failed")
	}
	s.pending = s.pending[:0]
}
