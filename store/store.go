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

// Package store implements the durable, multi-queue record store: the
// on-disk block-file naming convention, the crash-safe append
// protocol, and the restart-time recovery procedure that reconstructs
// every queue from the files found in a working directory.
package store

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/elastic/elastic-agent-libs/logp"
)

// QueueStore is the set of all queues, keyed by name. Names are
// created lazily on first Queue() lookup or first recovered block.
type QueueStore struct {
	dir string
	log *logp.Logger

	mu     sync.Mutex
	queues map[string]*Queue
}

// NewQueueStore returns a QueueStore rooted at dir. dir is both the
// directory Load scans at startup and the directory Queue.Push writes
// into.
func NewQueueStore(dir string) *QueueStore {
	return &QueueStore{
		dir:    dir,
		log:    logp.L().Named("store"),
		queues: make(map[string]*Queue),
	}
}

// Queue returns the named queue, creating an empty one if it does not
// yet exist. The caller is responsible for validating name syntax.
func (s *QueueStore) Queue(name string) *Queue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queueLocked(name)
}

func (s *QueueStore) queueLocked(name string) *Queue {
	q, ok := s.queues[name]
	if !ok {
		q = newQueue(name, s.dir)
		s.queues[name] = q
	}
	return q
}

// Names returns every known queue name in ascending order.
func (s *QueueStore) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load performs restart recovery: it scans dir for files matching the
// block filename convention, sorts them, and replays them in order to
// reconstruct each queue's block list and tail. It must be called
// exactly once, before the store serves any requests.
func (s *QueueStore) Load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	var candidates []*RecordsBlock
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		rb, err := newRecordsBlock(filepath.Join(s.dir, entry.Name()), entry.Name())
		if err != nil {
			// Not a block filename; not our file, ignore silently.
			continue
		}
		candidates = append(candidates, rb)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Last != b.Last {
			return a.Last > b.Last
		}
		if a.First != b.First {
			return a.First < b.First
		}
		// non-tmp before tmp
		return !a.Tmp && b.Tmp
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	brokenQueues := make(map[string]bool)

	for _, rb := range candidates {
		if rb.Tmp {
			if err := os.Remove(rb.Path); err != nil && !os.IsNotExist(err) {
				s.log.Warnf("couldn't remove stale tmp block %s: %v", rb.Path, err)
			}
			continue
		}

		if brokenQueues[rb.Name] {
			continue
		}

		q := s.queueLocked(rb.Name)

		front, frontLast, hasFront := q.frontBlockRange()

		switch {
		case q.BlocksEmpty() && rb.First == rb.Last && (q.Empty() || rb.Last+1 == q.First()):
			// Case A: no on-disk block installed for this queue yet and
			// this is a single-record file directly preceding the tail:
			// collapse it back into the in-memory tail. Repeated
			// single-record trailers (one per late push) keep absorbing
			// here for as long as no real block exists, not just on the
			// very first one; a non-adjacent one falls through to Case C.
			if err := q.absorbSingleRecordBlock(rb); err != nil {
				s.log.Warnf("queue %s: couldn't load block %s: %v", rb.Name, rb.Path, err)
				brokenQueues[rb.Name] = true
			}

		case hasFront && rb.First >= front && rb.Last <= frontLast:
			// Case B: duplicate/subrange of the existing first block.

		case !q.Empty() && rb.Last+1 != q.First():
			// Case C: gap detected; stop processing this queue.
			s.log.Warnf("broken sequence in queue %s at block %s", rb.Name, rb.Path)
			brokenQueues[rb.Name] = true

		default:
			// Case D: prepend; the descending-last sort walks from the
			// newest-ending block to the oldest, so prepending
			// maintains ascending order by First.
			q.prependBlock(rb)
		}
	}

	return nil
}
