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
	"fmt"
	"time"

	"github.com/9rum/ensemble/communicator"
	"github.com/9rum/ensemble/internal/data"
	"github.com/9rum/ensemble/internal/svm"
	"github.com/golang/glog"
)

// DefaultRecvTimeout bounds each wait of a worker once it has received the
// first task of a phase, unless Config.RecvTimeout says otherwise.
var DefaultRecvTimeout = 10 * time.Minute

// Worker is a predictor process, and a loader during ingestion when its rank
// falls in the loader range.
type Worker struct {
	config   Config
	topology Topology
	comm     communicator.Comm
}

// NewWorker creates a worker.
func NewWorker(config Config, topology Topology, comm communicator.Comm) *Worker {
	return &Worker{
		config:   config,
		topology: topology,
		comm:     comm,
	}
}

// Run serves the aggregator until it releases the worker.
func (w *Worker) Run(ctx context.Context) error {
	rank := w.comm.Rank()
	role := w.topology.Role(rank)

	err := func() error {
		if role == RoleLoader {
			if err := w.Load(ctx); err != nil {
				return err
			}
		}
		return w.Predict(ctx)
	}()
	if err != nil {
		glog.Errorf("<%d>%v", rank, err)
		return &RankError{Rank: rank, Role: role, Err: err}
	}
	return nil
}

// Load reads the component models the aggregator asks for and sends them
// back until it receives the sentinel.
func (w *Worker) Load(ctx context.Context) error {
	aggregator := w.topology.Aggregator()
	for first := true; ; first = false {
		task, err := w.recvTask(ctx, first)
		if err != nil {
			return err
		}
		if task == w.config.Components {
			return nil
		}

		path := w.config.ComponentPath(task)
		glog.Infof("rank %d loading component %d from %s", w.comm.Rank(), task, path)
		model, err := svm.LoadRBF(path)
		if err != nil {
			return err
		}
		b, err := model.MarshalBinary()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		sendCtx, cancel := bounded(ctx, w.config.SendTimeout)
		err = communicator.SendModel(sendCtx, w.comm, aggregator, b)
		cancel()
		if err != nil {
			return fmt.Errorf("sending component %d: %w", task, err)
		}
	}
}

// Predict loads the sample shards once and scores them against every model
// the aggregator sends until it receives the sentinel.
func (w *Worker) Predict(ctx context.Context) error {
	shards, err := data.LoadShards(ctx, w.config.SampleGroups, w.config.Dimension, w.config.SamplePath)
	if err != nil {
		return err
	}
	glog.Infof("rank %d loaded %d instances", w.comm.Rank(), shards.Layout().Instances())

	aggregator := w.topology.Aggregator()
	for first := true; ; first = false {
		task, err := w.recvTask(ctx, first)
		if err != nil {
			return err
		}
		if task == w.config.Components {
			return nil
		}

		recvCtx, cancel := bounded(ctx, w.recvTimeout(false))
		b, err := communicator.RecvModel(recvCtx, w.comm, aggregator)
		cancel()
		if err != nil {
			return fmt.Errorf("receiving component %d: %w", task, err)
		}
		model, err := svm.UnmarshalRBF(b)
		if err != nil {
			return fmt.Errorf("component %d: %w", task, err)
		}

		scores := shards.Score(model)
		sendCtx, cancel := bounded(ctx, w.config.SendTimeout)
		err = communicator.SendResult(sendCtx, w.comm, aggregator, scores)
		cancel()
		if err != nil {
			return fmt.Errorf("sending scores of component %d: %w", task, err)
		}
	}
}

// recvTask receives the next component index, or the sentinel.  The first
// task of a phase may follow the whole ingestion phase.
func (w *Worker) recvTask(ctx context.Context, first bool) (int, error) {
	ctx, cancel := bounded(ctx, w.recvTimeout(first))
	defer cancel()

	task, err := communicator.RecvTask(ctx, w.comm, w.topology.Aggregator())
	if err != nil {
		return 0, fmt.Errorf("receiving task: %w", err)
	}
	if task < 0 || w.config.Components < task {
		return 0, fmt.Errorf("task %d out of range [0, %d]", task, w.config.Components)
	}
	return task, nil
}

// recvTimeout returns the bound on a single wait, zero for none.
func (w *Worker) recvTimeout(first bool) time.Duration {
	switch {
	case w.config.RecvTimeout < 0:
		return 0
	case 0 < w.config.RecvTimeout:
		return w.config.RecvTimeout
	case first:
		return 0
	default:
		return DefaultRecvTimeout
	}
}

// bounded derives a context that expires after the given timeout, or never
// when it is zero.
func bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
