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

package command

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/njcx/rq/metrics"
	"github.com/njcx/rq/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	qs := store.NewQueueStore(t.TempDir())
	require.NoError(t, qs.Load())
	return NewEngine(qs, metrics.New())
}

func noopYield() {}

func TestDispatchEmptyTokens(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	require.Equal(t, "ERR no command", e.Dispatch(nil, &buf, noopYield))
}

func TestDispatchUnknownCommand(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	require.Equal(t, "ERR unknown command", e.Dispatch([]string{"BOGUS"}, &buf, noopYield))
}

func TestPushBeforeUseFails(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	require.Equal(t, "ERR queue not selected", e.Dispatch([]string{"PUSH", "x"}, &buf, noopYield))
}

func TestUseInvalidName(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	require.Equal(t, "ERR invalid queue name", e.Dispatch([]string{"USE", "bad!name"}, &buf, noopYield))
}

func TestRoundTripPushPop(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer

	require.Equal(t, "", e.Dispatch([]string{"USE", "q1", "NEW"}, &buf, noopYield))
	require.Equal(t, "", e.Dispatch([]string{"PUSH", "hello", "world"}, &buf, noopYield))

	buf.Reset()
	require.Equal(t, "", e.Dispatch([]string{"LIST"}, &buf, noopYield))
	require.Equal(t, "q1\t0\t1\n", buf.String())

	require.Equal(t, "", e.Dispatch([]string{"USE", "q1", "FIRST"}, &buf, noopYield))

	buf.Reset()
	require.Equal(t, "", e.Dispatch([]string{"POP"}, &buf, noopYield))
	require.Equal(t, "0\thello\n", buf.String())

	buf.Reset()
	require.Equal(t, "", e.Dispatch([]string{"POP"}, &buf, noopYield))
	require.Equal(t, "1\tworld\n", buf.String())

	require.Equal(t, "ERR no new data", e.Dispatch([]string{"POP"}, &buf, noopYield))
}

func TestQueueCommandRequiresSelection(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	require.Equal(t, "ERR queue not selected", e.Dispatch([]string{"QUEUE"}, &buf, noopYield))
}

func TestQueueCommandReportsCursor(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer

	require.Equal(t, "", e.Dispatch([]string{"USE", "q1", "NEW"}, &buf, noopYield))
	require.Equal(t, "", e.Dispatch([]string{"PUSH", "a", "b"}, &buf, noopYield))
	require.Equal(t, "", e.Dispatch([]string{"USE", "q1", "FIRST"}, &buf, noopYield))
	require.Equal(t, "", e.Dispatch([]string{"POP"}, &buf, noopYield))

	buf.Reset()
	require.Equal(t, "", e.Dispatch([]string{"QUEUE"}, &buf, noopYield))
	require.Equal(t, "q1\t0\t1\t1\n", buf.String())
}

func TestPopEmptyQueue(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	require.Equal(t, "", e.Dispatch([]string{"USE", "q1", "NEW"}, &buf, noopYield))
	require.Equal(t, "ERR queue empty", e.Dispatch([]string{"POP"}, &buf, noopYield))
}

func TestDumpEmitsAllQueues(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	require.Equal(t, "", e.Dispatch([]string{"USE", "q1", "NEW"}, &buf, noopYield))
	require.Equal(t, "", e.Dispatch([]string{"PUSH", "a"}, &buf, noopYield))

	buf.Reset()
	require.Equal(t, "", e.Dispatch([]string{"DUMP"}, &buf, noopYield))
	require.Equal(t, "q1\t0\t0\n0\ta\n\n", buf.String())
}

func TestHelpIsFixedText(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	require.Equal(t, "", e.Dispatch([]string{"HELP"}, &buf, noopYield))
	require.True(t, strings.HasPrefix(buf.String(), "USE name"))
}

func TestPushYieldsBetweenRecords(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	require.Equal(t, "", e.Dispatch([]string{"USE", "q1", "NEW"}, &buf, noopYield))

	count := 0
	require.Equal(t, "", e.Dispatch([]string{"PUSH", "a", "b", "c"}, &buf, func() { count++ }))
	require.Equal(t, 3, count)
}
