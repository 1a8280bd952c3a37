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

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/elastic/elastic-agent-libs/logp"
)

// Queue is a named, append-only sequence of records: a sorted,
// contiguous, non-overlapping list of on-disk blocks holding the
// historical prefix, plus an in-memory tail of recently pushed
// records each backed by its own single-record file.
//
// A Queue is safe for concurrent use; mutating operations (Push, and
// the recovery-time block installation done by QueueStore.Load) and
// readers (At, First, Last, Empty) are serialized by mu, mirroring how
// diskQueue guards its segment list with a single RWMutex.
type Queue struct {
	Name string
	dir  string

	mu     sync.Mutex
	blocks []*RecordsBlock
	tail   []Record

	log *logp.Logger
}

func newQueue(name, dir string) *Queue {
	return &Queue{
		Name: name,
		dir:  dir,
		log:  logp.L().Named("store.queue").With("queue", name),
	}
}

// Empty reports whether the queue holds no blocks and no tail records.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.empty()
}

func (q *Queue) empty() bool {
	return len(q.blocks) == 0 && len(q.tail) == 0
}

// BlocksEmpty reports whether the queue has no on-disk blocks yet,
// regardless of whether it already has an in-memory tail. Used by
// QueueStore.Load's recovery Case A, which must keep absorbing trailing
// single-record files into the tail as long as no block has been
// installed, not just when the whole queue is still empty.
func (q *Queue) BlocksEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.blocks) == 0
}

// First returns the lowest position held by the queue, or 0 if empty.
func (q *Queue) First() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.first()
}

func (q *Queue) first() uint64 {
	if len(q.blocks) > 0 {
		return q.blocks[0].First
	}
	if len(q.tail) > 0 {
		return q.tail[0].Pos
	}
	return 0
}

// Last returns the highest position held by the queue, or 0 if empty.
func (q *Queue) Last() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.last()
}

func (q *Queue) last() uint64 {
	if len(q.tail) > 0 {
		return q.tail[len(q.tail)-1].Pos
	}
	if len(q.blocks) > 0 {
		return q.blocks[len(q.blocks)-1].Last
	}
	return 0
}

// Push appends data as a new record at position last()+1 (or 0 for an
// empty queue). The record is written to a tmp file, then atomically
// renamed into place before it is added to the in-memory tail; a
// rename failure leaves the tail untouched and returns a wrapped
// ErrStorageError.
func (q *Queue) Push(data string) (Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pos := uint64(0)
	if !q.empty() {
		pos = q.last() + 1
	}

	stem := fmt.Sprintf("%s.%d.%d", q.Name, pos, pos)
	finalPath := filepath.Join(q.dir, stem+".rec")
	tmpPath := filepath.Join(q.dir, stem+".rec.tmp")

	if err := os.WriteFile(tmpPath, []byte(data+"\n"), 0o644); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		if rmErr := os.Remove(tmpPath); rmErr != nil {
			q.log.Warnf("couldn't clean up tmp file %s: %v", tmpPath, rmErr)
		}
		return Record{}, fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	r := Record{Pos: pos, Data: data}
	q.tail = append(q.tail, r)
	return r, nil
}

// At returns the record at pos, lazily loading the backing block if
// pos falls in a historical range. ErrPositionNotFound is returned if
// pos is outside [First(), Last()].
func (q *Queue) At(pos uint64) (Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tail) > 0 && q.tail[0].Pos <= pos && pos <= q.tail[len(q.tail)-1].Pos {
		return q.tail[pos-q.tail[0].Pos], nil
	}

	for _, rb := range q.blocks {
		if rb.First <= pos && pos <= rb.Last {
			if err := rb.load(); err != nil {
				return Record{}, err
			}
			return rb.at(pos), nil
		}
	}

	return Record{}, fmt.Errorf("%w: %d", ErrPositionNotFound, pos)
}

// prependBlock installs rb at the front of the block list. Called only
// during QueueStore.Load recovery, which walks blocks widest-last-first
// and therefore must prepend to keep blocks ascending by First.
func (q *Queue) prependBlock(rb *RecordsBlock) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.blocks = append([]*RecordsBlock{rb}, q.blocks...)
}

// absorbSingleRecordBlock loads rb (which must be a first==last block)
// and moves its sole record into the tail. Used by recovery case A to
// collapse a pushed-but-not-yet-compacted record back into memory.
// Recovery walks blocks widest-last-first, so each absorbed record is
// older than anything already in the tail; it is prepended to keep the
// tail ordered ascending by position.
func (q *Queue) absorbSingleRecordBlock(rb *RecordsBlock) error {
	if err := rb.load(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tail = append([]Record{rb.at(rb.First)}, q.tail...)
	return nil
}

// frontBlockRange returns the First/Last of the current first block,
// used by QueueStore.Load's duplicate-subrange check (case B).
func (q *Queue) frontBlockRange() (first, last uint64, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.blocks) == 0 {
		return 0, 0, false
	}
	return q.blocks[0].First, q.blocks[0].Last, true
}
