// Copyright 2025 Ying-Yu Ho. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// netsim runs a discrete-event simulation of a packet-switched network.
//
// The topology and flow list are read from stdin; the time-stamped
// event log is written to stdout, ready for the downstream binner.
// Diagnostics go to stderr so the log stays machine-readable.
//
//	netsim <sim_time_seconds> [tahoe|reno|fast|cubic]
//
// Optional sinks: --metrics-addr exposes Prometheus counters derived
// from the event stream while a long run is in progress; --redis-addr
// mirrors the log into a Redis list for remote post-processors.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yingyuho/networksim/internal/flow"
	"github.com/yingyuho/networksim/internal/topo"
	"github.com/yingyuho/networksim/internal/trace"
	"github.com/yingyuho/networksim/pkg/sim"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		metricsAddr string
		redisAddr   string
		redisKey    string
	)
	cmd := &cobra.Command{
		Use:          "netsim <sim_time_seconds> [tahoe|reno|fast|cubic]",
		Short:        "Discrete-event simulator of a packet-switched network",
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			until, err := strconv.ParseFloat(args[0], 64)
			if err != nil || until <= 0 {
				return fmt.Errorf("bad simulation time %q", args[0])
			}
			algorithm := "fast"
			if len(args) == 2 {
				algorithm = args[1]
			}
			if !validAlgorithm(algorithm) {
				return fmt.Errorf("unknown algorithm %q (want one of %s)",
					algorithm, strings.Join(flow.Algorithms(), ", "))
			}
			return run(until, algorithm, metricsAddr, redisAddr, redisKey)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "mirror the event log to a Redis instance at this address")
	cmd.Flags().StringVar(&redisKey, "redis-key", "networksim:events", "Redis list key for the mirrored event log")
	return cmd
}

func validAlgorithm(name string) bool {
	for _, a := range flow.Algorithms() {
		if a == name {
			return true
		}
	}
	return false
}

func run(until float64, algorithm, metricsAddr, redisAddr, redisKey string) error {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	t, err := topo.Parse(os.Stdin)
	if err != nil {
		return fmt.Errorf("parsing topology: %w", err)
	}

	var sinks []trace.Sink
	var redisSink *trace.RedisSink
	if redisAddr != "" {
		redisSink = trace.DialRedisSink(redisAddr, redisKey, 0)
		sinks = append(sinks, redisSink)
	}
	events := trace.New(os.Stdout, sinks...)

	reg := prometheus.NewRegistry()
	metrics := trace.NewMetrics(reg)
	events.AddObserver(metrics)
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	events.Header(t.Header)

	s := sim.New()
	net, err := topo.Build(s, events, t, algorithm)
	if err != nil {
		return fmt.Errorf("building network: %w", err)
	}
	log.WithFields(logrus.Fields{
		"hosts":     len(net.Hosts),
		"routers":   len(net.Routers),
		"links":     len(net.Links),
		"flows":     len(net.Flows),
		"algorithm": algorithm,
		"until":     until,
	}).Info("starting simulation")

	s.Run(until)

	if err := events.Flush(); err != nil {
		return fmt.Errorf("flushing event log: %w", err)
	}

	finished := 0
	for _, f := range net.Flows {
		if f.Finished() {
			finished++
		}
	}
	log.WithFields(logrus.Fields{
		"time":           s.Now(),
		"flows_finished": fmt.Sprintf("%d/%d", finished, len(net.Flows)),
	}).Info("simulation complete")
	return nil
}
