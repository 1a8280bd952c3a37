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

// Package session bridges a single TCP connection to a command.Engine:
// byte buffering, line framing, tokenization and response emission.
package session

import (
	"errors"
	"io"
	"net"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/elastic/elastic-agent-libs/logp"

	"github.com/njcx/rq/command"
	"github.com/njcx/rq/metrics"
)

const readBufferSize = 8192

// Session owns one client connection. Commands for a given session run
// strictly sequentially on the goroutine that calls Serve, so the
// write lane is naturally serialized; writeMu exists only to guard
// against a future command implementation that writes from more than
// one goroutine.
type Session struct {
	conn    net.Conn
	engine  *command.Engine
	metrics *metrics.Sink
	log     *logp.Logger

	echo bool

	writeMu sync.Mutex

	readBuf [readBufferSize]byte
	pending []byte // accumulated bytes not yet split into complete lines
}

// New returns a Session ready to serve conn. echo controls whether each
// received line is written back to the client before its response.
func New(conn net.Conn, engine *command.Engine, m *metrics.Sink, echo bool) *Session {
	return &Session{
		conn:    conn,
		engine:  engine,
		metrics: m,
		echo:    echo,
		log:     logp.L().Named("session").With("remote", conn.RemoteAddr()),
	}
}

// Serve runs the session's read loop until the connection is closed or
// a non-recoverable error occurs. It never returns an error for a
// quiet client disconnect (EOF or connection reset); other failures
// are logged before Serve returns.
func (s *Session) Serve() {
	s.metrics.Increment("session.count", 1)
	s.log.Debug("new session")

	for {
		n, err := s.conn.Read(s.readBuf[:])
		if n > 0 {
			s.pending = append(s.pending, s.readBuf[:n]...)
			s.processBuffered()
		}
		if err != nil {
			if isQuietDisconnect(err) {
				return
			}
			s.log.Warnf("read error: %v", err)
			return
		}
	}
}

func isQuietDisconnect(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, net.ErrClosed)
}

// processBuffered extracts and handles every complete line currently
// held in s.pending, retaining any trailing partial line for the next
// read.
func (s *Session) processBuffered() {
	start := 0
	for {
		idx := indexByte(s.pending[start:], '\n')
		if idx < 0 {
			break
		}
		end := start + idx + 1 // include the newline
		if !s.handleLine(s.pending[start:end]) {
			// End the session: closing conn makes the next Read in
			// Serve fail with net.ErrClosed, so Serve returns.
			s.conn.Close()
			return
		}
		start = end
	}
	s.pending = append([]byte(nil), s.pending[start:]...)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// handleLine processes one complete, newline-terminated line. It
// returns false if a write error forced early termination of the
// session.
func (s *Session) handleLine(line []byte) bool {
	s.metrics.Increment("session.lines", 1)

	if s.echo {
		if !s.write(line) {
			return false
		}
	}

	tokens := tokenize(line)

	var sb strings.Builder
	resp := s.engine.Dispatch(tokens, &sb, runtime.Gosched)

	if resp == "" {
		resp = "OK"
	}
	sb.WriteString(resp)
	sb.WriteByte('\n')

	return s.write([]byte(sb.String()))
}

// tokenize splits line on ASCII space and newline, dropping empty
// tokens, mirroring the protocol's whitespace-separated token rule.
func tokenize(line []byte) []string {
	fields := strings.FieldsFunc(string(line), func(r rune) bool {
		return r == ' ' || r == '\n'
	})
	return fields
}

func (s *Session) write(b []byte) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.Write(b); err != nil {
		if !isQuietDisconnect(err) {
			s.log.Warnf("write error: %v", err)
		}
		return false
	}
	return true
}
