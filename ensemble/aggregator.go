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

// Package ensemble implements the roles of the distributed stacked-ensemble
// trainer.  The aggregator collects the component models from the loaders,
// redistributes each of them to every worker for scoring, stacks the scores
// into the result table and trains the final model on it.
package ensemble

import (
	"context"
	"fmt"
	"time"

	"github.com/9rum/ensemble/communicator"
	"github.com/9rum/ensemble/internal/data"
	"github.com/9rum/ensemble/internal/svm"
	"github.com/9rum/ensemble/scheduler"
	"github.com/golang/glog"
	"google.golang.org/protobuf/proto"
)

// Aggregator owns the schedule, the component models and the result table.
type Aggregator struct {
	config   Config
	topology Topology
	comm     communicator.Comm
	metrics  *scheduler.Metrics
	trainer  svm.Trainer

	layout  data.Layout
	models  [][]byte
	results *data.Table
}

// NewAggregator creates an aggregator.  metrics may be nil.
func NewAggregator(config Config, topology Topology, comm communicator.Comm, metrics *scheduler.Metrics) *Aggregator {
	return &Aggregator{
		config:   config,
		topology: topology,
		comm:     comm,
		metrics:  metrics,
	}
}

// Run counts the instances and runs every phase of the protocol.
func (a *Aggregator) Run(ctx context.Context) error {
	start := time.Now()
	if err := a.run(ctx); err != nil {
		glog.Errorf("<%d>%v", a.comm.Rank(), err)
		return &RankError{Rank: a.comm.Rank(), Role: RoleAggregator, Err: err}
	}
	glog.Infof("aggregator finished in %.3f seconds", time.Since(start).Seconds())
	return nil
}

func (a *Aggregator) run(ctx context.Context) (err error) {
	if a.layout, err = CountInstances(a.config); err != nil {
		return
	}
	if err = a.Ingest(ctx); err != nil {
		return
	}
	if err = a.Predict(ctx); err != nil {
		return
	}
	_, err = a.Finalize()
	return
}

// Layout returns the row layout of the result table.
func (a *Aggregator) Layout() data.Layout {
	return a.layout
}

// Results returns the result table, which is nil before prediction.
func (a *Aggregator) Results() *data.Table {
	return a.results
}

func (a *Aggregator) options() scheduler.Options {
	return scheduler.Options{
		TaskTimeout: a.config.TaskTimeout,
		SendTimeout: a.config.SendTimeout,
		Metrics:     a.metrics,
	}
}

// Ingest collects every component model from the loaders.
func (a *Aggregator) Ingest(ctx context.Context) error {
	phase := &ingestPhase{
		topology: a.topology,
		models:   make([][]byte, a.config.Components),
	}
	if err := scheduler.Run(ctx, a.comm, phase, a.options()); err != nil {
		return err
	}
	a.models = phase.models
	return nil
}

// Predict redistributes the component models to every worker and stacks the
// returned scores.  The final column of the table is left neutral.
func (a *Aggregator) Predict(ctx context.Context) error {
	if len(a.models) != a.config.Components {
		return fmt.Errorf("%d of %d component models ingested", len(a.models), a.config.Components)
	}
	phase := &predictPhase{
		comm:     a.comm,
		topology: a.topology,
		models:   a.models,
		results:  data.NewTable(a.layout.Instances(), a.config.Components+1),
	}
	if err := scheduler.Run(ctx, a.comm, phase, a.options()); err != nil {
		return err
	}
	a.results = phase.results
	a.models = nil
	return nil
}

// Finalize trains the final model on the result table and writes it out.
func (a *Aggregator) Finalize() (*svm.Linear, error) {
	if a.config.Components == 0 {
		return nil, ErrNoComponents
	}
	if a.results == nil {
		return nil, fmt.Errorf("finalize called before predict")
	}

	path := a.config.FinalPath()
	model, err := a.trainer.Train(svm.TrainInput{
		Negatives:      a.layout.Negatives(),
		Weight:         a.config.FinalWeight,
		Results:        a.results,
		SupportVectors: data.NewTable(a.results.Rows(), a.results.Cols()),
		Labels:         a.layout.Labels(),
	})
	if err != nil {
		return nil, fmt.Errorf("training %s: %w", path, err)
	}
	if err := model.Dump(path); err != nil {
		return nil, fmt.Errorf("dumping %s: %w", path, err)
	}
	glog.Infof("final model written to %s", path)

	return model, nil
}

// ingestPhase drives the loaders.  A task carries only the component index.
type ingestPhase struct {
	scheduler.PhaseBase
	topology Topology
	models   [][]byte
}

func (p *ingestPhase) Name() string {
	return "ingest"
}

func (p *ingestPhase) Slots() int {
	return p.topology.LoadingCount()
}

func (p *ingestPhase) Tasks() int {
	return len(p.models)
}

func (p *ingestPhase) Peer(slot int) int {
	return p.topology.LoaderPeer(slot)
}

func (p *ingestPhase) Reply() communicator.Tag {
	return communicator.TagModel
}

func (p *ingestPhase) Consume(task int, reply proto.Message) (err error) {
	p.models[task], err = communicator.ModelOf(reply)
	return
}

// predictPhase drives the predictors.  A task is followed by the model it
// names and answered with its scores.
type predictPhase struct {
	scheduler.PhaseBase
	comm     communicator.Comm
	topology Topology
	models   [][]byte
	results  *data.Table
}

func (p *predictPhase) Name() string {
	return "predict"
}

func (p *predictPhase) Slots() int {
	return p.topology.Workers()
}

func (p *predictPhase) Tasks() int {
	return len(p.models)
}

func (p *predictPhase) Peer(slot int) int {
	return p.topology.PredictorPeer(slot)
}

func (p *predictPhase) Reply() communicator.Tag {
	return communicator.TagResult
}

func (p *predictPhase) Dispatch(ctx context.Context, peer, task int) error {
	return communicator.SendModel(ctx, p.comm, peer, p.models[task])
}

func (p *predictPhase) Consume(task int, reply proto.Message) error {
	scores, err := communicator.ResultOf(reply)
	if err != nil {
		return err
	}
	return p.results.Scatter(task, scores)
}
