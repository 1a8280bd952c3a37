// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package metrics implements the process-wide counter bag consulted by
// the command engine and session framing: increment-by-name, with
// counters created lazily on first use.
package metrics

import (
	"fmt"
	"io"
	"sync"

	"github.com/elastic/elastic-agent-libs/monitoring"
)

// Sink is a counter bag keyed by string, backed by a monitoring
// registry so counters show up the same way publisher/pipeline's
// output stats do. Increment is safe for concurrent use from multiple
// sessions.
type Sink struct {
	mu       sync.Mutex
	registry *monitoring.Registry
}

// New returns an empty Sink.
func New() *Sink {
	return &Sink{registry: monitoring.NewRegistry()}
}

// Increment adds n to the named counter, creating it on first use. An
// n of 0 is a no-op and does not create the counter.
func (s *Sink) Increment(key string, n int64) {
	if n == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v := s.registry.Get(key); v != nil {
		if counter, ok := v.(*monitoring.Int); ok {
			counter.Add(n)
			return
		}
	}
	monitoring.NewInt(s.registry, key).Set(n)
}

// Dump writes every counter as "prefix.key = value" lines to w. If
// prefix is empty, lines are written as "key = value".
func (s *Sink) Dump(prefix string, w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry.Do(monitoring.Full, func(key string, v interface{}) {
		counter, ok := v.(*monitoring.Int)
		if !ok {
			return
		}
		if prefix != "" {
			fmt.Fprintf(w, "%s.%s = %d\n", prefix, key, counter.Get())
		} else {
			fmt.Fprintf(w, "%s = %d\n", key, counter.Get())
		}
	})
}
