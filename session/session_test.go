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

package session

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/njcx/rq/command"
	"github.com/njcx/rq/metrics"
	"github.com/njcx/rq/store"
)

func newPipeSession(t *testing.T, echo bool) (net.Conn, *bufio.Reader) {
	t.Helper()
	server, client := net.Pipe()

	qs := store.NewQueueStore(t.TempDir())
	require.NoError(t, qs.Load())
	engine := command.NewEngine(qs, metrics.New())

	s := New(server, engine, metrics.New(), echo)
	go s.Serve()

	t.Cleanup(func() { client.Close() })
	return client, bufio.NewReader(client)
}

func sendLine(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(2*time.Second)))
	_, err := conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func TestSessionRoundTripNoEcho(t *testing.T) {
	conn, r := newPipeSession(t, false)

	sendLine(t, conn, "USE q1 NEW")
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "OK\n", line)

	sendLine(t, conn, "PUSH hello world")
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "OK\n", line)

	sendLine(t, conn, "USE q1 FIRST")
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "OK\n", line)

	sendLine(t, conn, "POP")
	data, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "0\thello\n", data)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "OK\n", line)
}

func TestSessionEchoWritesLineBack(t *testing.T) {
	conn, r := newPipeSession(t, true)

	sendLine(t, conn, "HELP")

	echoed, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "HELP\n", echoed)

	// help text followed eventually by OK; just confirm we can keep reading.
	_, err = r.ReadString('\n')
	require.NoError(t, err)
}

func TestSessionUnknownCommand(t *testing.T) {
	conn, r := newPipeSession(t, false)

	sendLine(t, conn, "BOGUS")
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "ERR unknown command\n", line)
}
