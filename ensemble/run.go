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

package ensemble

import (
	"context"
	"strconv"

	"github.com/9rum/ensemble/communicator"
	"github.com/9rum/ensemble/scheduler"
	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

// Run runs the role of the rank of the given communicator.
func Run(ctx context.Context, config Config, topology Topology, comm communicator.Comm, metrics *scheduler.Metrics) error {
	if err := config.Validate(topology); err != nil {
		return err
	}
	if comm.Size() != topology.WorldSize() {
		return &ConfigError{Field: "world size", Value: strconv.Itoa(comm.Size()), Reason: "does not match the topology"}
	}

	rank := comm.Rank()
	glog.Infof("rank %d started as %s", rank, topology.Role(rank))
	if rank == topology.Aggregator() {
		return NewAggregator(config, topology, comm, metrics).Run(ctx)
	}
	return NewWorker(config, topology, comm).Run(ctx)
}

// RunLocal runs every rank of the topology as a goroutine of the calling
// process and returns the aggregator for inspection.  The first error of any
// rank cancels the others.
func RunLocal(ctx context.Context, config Config, topology Topology, metrics *scheduler.Metrics) (*Aggregator, error) {
	if err := config.Validate(topology); err != nil {
		return nil, err
	}

	comms := communicator.NewLocal(topology.WorldSize())
	defer func() {
		for _, comm := range comms {
			comm.Close()
		}
	}()
	aggregator := NewAggregator(config, topology, comms[topology.Aggregator()], metrics)

	g, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < topology.Workers(); rank++ {
		worker := NewWorker(config, topology, comms[rank])
		g.Go(func() error {
			return worker.Run(ctx)
		})
	}
	g.Go(func() error {
		return aggregator.Run(ctx)
	})
	return aggregator, g.Wait()
}
