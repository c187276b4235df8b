// Copyright 2022 Sogang University
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

// Package main implements the ensemble trainer.  Every rank of the group runs
// the same binary with the same positional arguments; the highest rank is the
// aggregator.  With --local, the whole group runs inside a single process.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/9rum/ensemble/communicator"
	"github.com/9rum/ensemble/ensemble"
	"github.com/9rum/ensemble/scheduler"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	defer glog.Flush()

	if err := newCommand(viper.New()).ExecuteContext(context.Background()); err != nil {
		glog.Exitf("%v", err)
	}
}

func newCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ensemble " + ensemble.Usage,
		Short:         "Train the final model of a stacked ensemble",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return load(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd.Context(), v, args)
			var configErr *ensemble.ConfigError
			if errors.As(err, &configErr) {
				cmd.PrintErrln(cmd.UsageString())
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.Int("rank", 0, "rank of this process")
	flags.StringSlice("peers", nil, "addresses of every rank in rank order")
	flags.Bool("local", false, "run every rank in this process")
	flags.Int("workers", 2, "number of workers with --local")
	flags.Duration("task-timeout", scheduler.DefaultTaskTimeout, "bound on the wait for a single reply (negative for none)")
	flags.Duration("send-timeout", time.Minute, "bound on each send (0 for none)")
	flags.Duration("recv-timeout", 0, "bound on each wait of a worker (0 waits through ingestion, then 10m; negative for none)")
	flags.String("negative-count", string(ensemble.CountNegatives), `sample files the negatives are counted from: "negative" or "positive-twice"`)
	flags.String("metrics-addr", "", "address to expose Prometheus metrics on")
	flags.String("config", "", "configuration file")
	flags.AddGoFlagSet(flag.CommandLine)

	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	v.SetEnvPrefix("ensemble")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

// load reads the configuration file, if any.
func load(v *viper.Viper) error {
	// glog reads its flags from the standard flag set.
	if err := flag.CommandLine.Parse(nil); err != nil {
		return err
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
		glog.Infof("configuration read from %s", v.ConfigFileUsed())
	}
	return nil
}

func run(ctx context.Context, v *viper.Viper, args []string) error {
	config, err := ensemble.ParseArgs(args)
	if err != nil {
		return err
	}
	config.NegativeCount = ensemble.NegativeCount(v.GetString("negative-count"))
	config.TaskTimeout = v.GetDuration("task-timeout")
	config.SendTimeout = v.GetDuration("send-timeout")
	config.RecvTimeout = v.GetDuration("recv-timeout")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := scheduler.MustNewMetrics(registry)
	if addr := v.GetString("metrics-addr"); addr != "" {
		server := serveMetrics(addr, registry)
		defer server.Close()
	}

	if v.GetBool("local") {
		topology, err := ensemble.NewTopology(v.GetInt("workers")+1, config.LoadingCount)
		if err != nil {
			return err
		}
		_, err = ensemble.RunLocal(ctx, config, topology, metrics)
		return err
	}

	peers := v.GetStringSlice("peers")
	topology, err := ensemble.NewTopology(len(peers), config.LoadingCount)
	if err != nil {
		return err
	}
	rank := v.GetInt("rank")
	if rank < 0 || len(peers) <= rank {
		return &ensemble.ConfigError{Field: "rank", Value: v.GetString("rank"), Reason: "not in the peer list"}
	}
	// Arguments are checked before any listener is opened.
	if err := config.Validate(topology); err != nil {
		return err
	}

	comm, err := communicator.Listen(rank, peers)
	if err != nil {
		return err
	}
	defer func() {
		if err := comm.Close(); err != nil {
			glog.Warningf("rank %d failed to close: %v", rank, err)
		}
	}()

	return ensemble.Run(ctx, config, topology, comm, metrics)
}

func serveMetrics(addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		glog.Infof("metrics listening at %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorf("failed to serve metrics: %v", err)
		}
	}()

	return server
}
