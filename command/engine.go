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
	"io"
	"strings"
)

// Dispatch runs one already-tokenized command line. tokens[0] selects
// the command (case-insensitive); w receives any response data lines
// the command writes; yield is called after each record PUSH stores
// to let other sessions make progress during bulk ingestion. The returned string is "" on success or "ERR ..." text;
// it does not include a trailing newline.
func (e *Engine) Dispatch(tokens []string, w io.Writer, yield func()) string {
	if len(tokens) == 0 {
		e.metrics.Increment("session.errors.empty", 1)
		return "ERR no command"
	}

	name := strings.ToUpper(tokens[0])

	cmd, ok := commands[name]
	if !ok {
		e.metrics.Increment("session.errors.unknown", 1)
		return "ERR unknown command"
	}

	if resp := cmd.validate(tokens, &e.state); resp != "" {
		e.metrics.Increment("session.errors."+name, 1)
		return resp
	}

	if resp := cmd.execute(tokens, &e.state, e.store, w, yield); resp != "" {
		e.metrics.Increment("session.errors."+name, 1)
		return resp
	}

	e.metrics.Increment("session.successes."+name, 1)
	return ""
}
