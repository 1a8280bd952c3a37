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
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/njcx/rq/store"
)

var queueNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

const helpText = `USE name [pos|FIRST|LAST|NEW]
LIST
QUEUE
PUSH data...
POP
DUMP
HELP`

// commands is the dispatch table: one entry per protocol command, case
// folded to upper case on lookup. It is built once at package init and
// never mutated afterwards, so concurrent sessions can share it without
// locking.
var commands = map[string]commandSpec{
	"USE":   useCommand,
	"LIST":  listCommand,
	"QUEUE": queueCommand,
	"PUSH":  pushCommand,
	"POP":   popCommand,
	"DUMP":  dumpCommand,
	"HELP":  helpCommand,
}

var useCommand = commandSpec{
	validate: func(tokens []string, st *State) string {
		if len(tokens) < 2 {
			return "ERR not enough argument"
		}
		if !queueNamePattern.MatchString(tokens[1]) {
			return "ERR invalid queue name"
		}
		if len(tokens) > 2 {
			pos := strings.ToUpper(tokens[2])
			if pos != "FIRST" && pos != "LAST" && pos != "NEW" {
				if _, err := strconv.ParseUint(tokens[2], 10, 64); err != nil {
					return "ERR not enough argument"
				}
			}
		}
		return ""
	},
	execute: func(tokens []string, st *State, qs *store.QueueStore, w io.Writer, yield func()) string {
		q := qs.Queue(tokens[1])
		st.Queue = q

		if q.Empty() {
			st.Cursor = 0
			return ""
		}

		if len(tokens) <= 2 {
			st.Cursor = q.First()
			return ""
		}

		switch strings.ToUpper(tokens[2]) {
		case "FIRST":
			st.Cursor = q.First()
		case "LAST":
			st.Cursor = q.Last()
		case "NEW":
			st.Cursor = q.Last() + 1
		default:
			// validate already confirmed this parses.
			pos, _ := strconv.ParseUint(tokens[2], 10, 64)
			st.Cursor = pos
		}
		return ""
	},
}

var listCommand = commandSpec{
	validate: func(tokens []string, st *State) string { return "" },
	execute: func(tokens []string, st *State, qs *store.QueueStore, w io.Writer, yield func()) string {
		for _, name := range qs.Names() {
			writeQueueLine(w, qs.Queue(name))
		}
		return ""
	},
}

var queueCommand = commandSpec{
	validate: func(tokens []string, st *State) string {
		if st.Queue == nil {
			return "ERR queue not selected"
		}
		return ""
	},
	execute: func(tokens []string, st *State, qs *store.QueueStore, w io.Writer, yield func()) string {
		if st.Queue.Empty() {
			fmt.Fprintf(w, "%s\t\t\n", st.Queue.Name)
			return ""
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", st.Queue.Name, st.Queue.First(), st.Queue.Last(), st.Cursor)
		return ""
	},
}

var pushCommand = commandSpec{
	validate: func(tokens []string, st *State) string {
		if st.Queue == nil {
			return "ERR queue not selected"
		}
		if len(tokens) < 2 {
			return "ERR not enough argument"
		}
		return ""
	},
	execute: func(tokens []string, st *State, qs *store.QueueStore, w io.Writer, yield func()) string {
		for i, data := range tokens[1:] {
			if _, err := st.Queue.Push(data); err != nil {
				return fmt.Sprintf("ERR can't store data part %d", i)
			}
			yield()
		}
		return ""
	},
}

var popCommand = commandSpec{
	validate: func(tokens []string, st *State) string {
		if st.Queue == nil {
			return "ERR queue not selected"
		}
		return ""
	},
	execute: func(tokens []string, st *State, qs *store.QueueStore, w io.Writer, yield func()) string {
		q := st.Queue
		if q.Empty() {
			return "ERR queue empty"
		}
		if st.Cursor > q.Last() {
			return "ERR no new data"
		}
		if st.Cursor < q.First() {
			return "ERR data lost in cursor position"
		}

		r, err := q.At(st.Cursor)
		if err != nil {
			return "ERR data lost in cursor position"
		}

		fmt.Fprintf(w, "%d\t%s\n", r.Pos, r.Data)
		st.Cursor++
		return ""
	},
}

var dumpCommand = commandSpec{
	validate: func(tokens []string, st *State) string { return "" },
	execute: func(tokens []string, st *State, qs *store.QueueStore, w io.Writer, yield func()) string {
		names := qs.Names()
		for _, name := range names {
			q := qs.Queue(name)
			writeQueueLine(w, q)

			if !q.Empty() {
				for pos := q.First(); ; pos++ {
					r, err := q.At(pos)
					if err != nil {
						break
					}
					fmt.Fprintf(w, "%d\t%s\n", r.Pos, r.Data)
					if pos == q.Last() {
						break
					}
				}
			}
			fmt.Fprint(w, "\n")
		}
		return ""
	},
}

var helpCommand = commandSpec{
	validate: func(tokens []string, st *State) string { return "" },
	execute: func(tokens []string, st *State, qs *store.QueueStore, w io.Writer, yield func()) string {
		fmt.Fprintln(w, helpText)
		return ""
	},
}

// writeQueueLine writes the LIST/DUMP header line for q: "name\tfirst\tlast\n"
// or "name\t\t\n" when empty.
func writeQueueLine(w io.Writer, q *store.Queue) {
	if q.Empty() {
		fmt.Fprintf(w, "%s\t\t\n", q.Name)
		return
	}
	fmt.Fprintf(w, "%s\t%d\t%d\n", q.Name, q.First(), q.Last())
}
