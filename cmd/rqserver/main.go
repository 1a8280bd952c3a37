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

// Command rqserver runs the durable multi-queue broker: it recovers
// whatever queues already exist in the current working directory, then
// accepts TCP connections and serves the USE/LIST/QUEUE/PUSH/POP/DUMP
// protocol on each one.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/elastic/elastic-agent-libs/logp"
	"github.com/elastic/elastic-agent-libs/service"
	"github.com/spf13/pflag"

	"github.com/njcx/rq/command"
	"github.com/njcx/rq/metrics"
	"github.com/njcx/rq/session"
	"github.com/njcx/rq/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	echo := pflag.Bool("echo", false, "echo each received command line back to the client")
	debug := pflag.Bool("d", false, "enable debug logging")
	pflag.Parse()

	if err := setupLogging(*debug); err != nil {
		fmt.Fprintln(os.Stderr, "logging setup failed:", err)
		return 1
	}
	log := logp.L().Named("rqserver")

	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: rqserver <port>")
		return 1
	}
	port := pflag.Arg(0)

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("can't determine working directory: %v", err)
		return 2
	}

	m := metrics.New()

	qs := store.NewQueueStore(wd)
	if err := qs.Load(); err != nil {
		log.Errorf("recovery failed: %v", err)
		return 2
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("0.0.0.0", port))
	if err != nil {
		log.Errorf("listen failed: %v", err)
		return 2
	}

	service.BeforeRun()
	defer service.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	service.HandleSignals(func() {
		log.Info("shutting down")
		ln.Close()
	}, cancel)

	log.Infof("listening on %s", ln.Addr())
	var wg sync.WaitGroup
	acceptLoop(ctx, ln, qs, m, log, *echo, &wg)

	// The acceptor has stopped; let every in-flight session run to
	// completion before reporting final metrics, matching the
	// original's io_service::run() not returning until every spawned
	// session coroutine has finished.
	wg.Wait()

	m.Dump("rq_server", os.Stdout)
	return 0
}

// acceptLoop accepts connections until ln is closed (by the SIGINT
// handler); ctx is consulted only when Accept fails, and a cancelled
// ctx then ends the loop as well. Each connection gets its own session
// goroutine, tracked on wg, so sessions progress independently of one
// another, all sharing the same QueueStore and MetricsSink.
func acceptLoop(ctx context.Context, ln net.Listener, qs *store.QueueStore, m *metrics.Sink, log *logp.Logger, echo bool, wg *sync.WaitGroup) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if isClosed(err) {
				return
			}
			log.Warnf("accept error: %v", err)
			continue
		}

		engine := command.NewEngine(qs, m)
		sess := session.New(conn, engine, m, echo)

		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Serve()
		}()
	}
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

func setupLogging(debug bool) error {
	if debug {
		return logp.DevelopmentSetup(logp.WithLevel(logp.DebugLevel))
	}
	return logp.DevelopmentSetup()
}
