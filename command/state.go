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

// Package command implements the per-session command engine: a
// dispatch table of USE/LIST/QUEUE/PUSH/POP/DUMP/HELP commands, each
// with a side-effect-free validate phase and an executing phase,
// operating against one session's selected queue and cursor.
package command

import (
	"io"

	"github.com/njcx/rq/metrics"
	"github.com/njcx/rq/store"
)

// State is the per-session state a CommandEngine carries between
// commands: the selected queue (nil until USE succeeds) and the
// cursor position within it.
type State struct {
	Queue  *store.Queue
	Cursor uint64
}

// commandSpec is one dispatch-table entry: a syntactic/precondition
// validate phase with no side effects, and an execute phase that may
// write response bytes and mutate State.
type commandSpec struct {
	validate func(tokens []string, st *State) string
	execute  func(tokens []string, st *State, qs *store.QueueStore, w io.Writer, yield func()) string
}

// Engine is the per-session command dispatcher. It is not safe for
// concurrent use by more than one goroutine at a time; a session runs
// its commands strictly sequentially.
type Engine struct {
	store   *store.QueueStore
	metrics *metrics.Sink
	state   State
}

// NewEngine returns an Engine bound to qs and reporting to m, with no
// queue selected and cursor at 0.
func NewEngine(qs *store.QueueStore, m *metrics.Sink) *Engine {
	return &Engine{store: qs, metrics: m}
}
