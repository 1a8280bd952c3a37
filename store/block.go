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
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"
)

// blockFilenamePattern parses "{name}.{first}.{last}.rec" and its
// "{name}.{first}.{last}.rec.tmp" in-flight variant.
var blockFilenamePattern = regexp.MustCompile(`^([^.]+)\.(\d+)\.(\d+)\.rec(\.tmp)?$`)

// RecordsBlock is the metadata for one on-disk ".rec" file covering a
// contiguous range of positions [First, Last] within one queue. Its
// record vector is loaded lazily and may be unloaded again without
// affecting the backing file.
type RecordsBlock struct {
	Path  string
	Name  string
	First uint64
	Last  uint64
	Tmp   bool

	records        []Record
	lastAccessTime time.Time
}

// parseBlockFilename extracts the (name, first, last, tmp) groups from
// a bare filename (no directory component).
func parseBlockFilename(filename string) (name string, first, last uint64, tmp bool, err error) {
	groups := blockFilenamePattern.FindStringSubmatch(filename)
	if groups == nil {
		return "", 0, 0, false, fmt.Errorf("%w: %s", ErrInvalidBlockFilename, filename)
	}

	first, err = strconv.ParseUint(groups[2], 10, 64)
	if err != nil {
		return "", 0, 0, false, fmt.Errorf("%w: %s", ErrInvalidBlockFilename, filename)
	}
	last, err = strconv.ParseUint(groups[3], 10, 64)
	if err != nil {
		return "", 0, 0, false, fmt.Errorf("%w: %s", ErrInvalidBlockFilename, filename)
	}
	if first > last {
		return "", 0, 0, false, fmt.Errorf("%w: %s", ErrInvalidBlockFilename, filename)
	}

	return groups[1], first, last, groups[4] == ".tmp", nil
}

// newRecordsBlock constructs a RecordsBlock from a full path, parsing
// its basename against blockFilenamePattern.
func newRecordsBlock(path, basename string) (*RecordsBlock, error) {
	name, first, last, tmp, err := parseBlockFilename(basename)
	if err != nil {
		return nil, err
	}

	return &RecordsBlock{
		Path:           path,
		Name:           name,
		First:          first,
		Last:           last,
		Tmp:            tmp,
		lastAccessTime: time.Now(),
	}, nil
}

// loaded reports whether the record vector is currently materialized.
func (rb *RecordsBlock) loaded() bool {
	return rb.records != nil
}

// load reads the backing file into memory if not already loaded,
// refreshing the last-access timestamp either way. Extra lines past
// Last-First+1 are ignored; fewer lines is ErrBrokenBlock.
func (rb *RecordsBlock) load() error {
	rb.lastAccessTime = time.Now()

	if rb.loaded() {
		return nil
	}

	f, err := os.Open(rb.Path)
	if err != nil {
		return fmt.Errorf("records block %s: %w", rb.Path, err)
	}
	defer f.Close()

	want := int(rb.Last-rb.First) + 1
	records := make([]Record, 0, want)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	pos := rb.First
	for len(records) < want && scanner.Scan() {
		records = append(records, Record{Pos: pos, Data: scanner.Text()})
		pos++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("records block %s: %w", rb.Path, err)
	}

	if len(records) < want {
		return fmt.Errorf("%w: %s", ErrBrokenBlock, rb.Path)
	}

	rb.records = records
	return nil
}

// unload drops the in-memory record vector. Idempotent; the backing
// file and metadata are untouched.
func (rb *RecordsBlock) unload() {
	rb.records = nil
}

// at returns the record at pos, which must already satisfy
// First <= pos <= Last. Callers must call load first.
func (rb *RecordsBlock) at(pos uint64) Record {
	return rb.records[pos-rb.First]
}
