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

import "errors"

var (
	// ErrInvalidBlockFilename is returned when a path does not match the
	// "{name}.{first}.{last}.rec[.tmp]" naming convention.
	ErrInvalidBlockFilename = errors.New("invalid block filename")

	// ErrBrokenBlock is returned by RecordsBlock.load when the backing
	// file ends before last-first+1 lines have been read.
	ErrBrokenBlock = errors.New("broken records block: not enough data")

	// ErrPositionNotFound is returned by Queue.At when pos falls outside
	// every block and the in-memory tail.
	ErrPositionNotFound = errors.New("position not found")

	// ErrStorageError wraps a failure to persist a pushed record.
	ErrStorageError = errors.New("can't store data")
)
