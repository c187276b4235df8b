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

import "fmt"

// Role represents the duty of a process in the group.
type Role int

const (
	// RolePredictor scores the local sample shards against received models.
	RolePredictor Role = iota
	// RoleLoader reads component models from storage during ingestion and
	// becomes a predictor afterwards.
	RoleLoader
	// RoleAggregator owns the schedule and the result table.
	RoleAggregator
)

func (r Role) String() string {
	switch r {
	case RolePredictor:
		return "predictor"
	case RoleLoader:
		return "loader"
	case RoleAggregator:
		return "aggregator"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Topology partitions the ranks of the group by role.  The aggregator is the
// highest rank, every other rank is a worker, and the loaders are the last
// loadingCount workers.
type Topology struct {
	worldSize    int
	loadingCount int
}

// NewTopology validates and creates a topology.
func NewTopology(worldSize, loadingCount int) (Topology, error) {
	if worldSize < 2 {
		return Topology{}, &ConfigError{Field: "world size", Value: fmt.Sprint(worldSize), Reason: "at least one worker besides the aggregator is required"}
	}
	if loadingCount < 1 || worldSize-1 < loadingCount {
		return Topology{}, &ConfigError{Field: "loading number", Value: fmt.Sprint(loadingCount), Reason: fmt.Sprintf("must be in [1, %d]", worldSize-1)}
	}
	return Topology{worldSize: worldSize, loadingCount: loadingCount}, nil
}

// WorldSize returns the total number of processes.
func (t Topology) WorldSize() int {
	return t.worldSize
}

// Workers returns the number of predictor processes.
func (t Topology) Workers() int {
	return t.worldSize - 1
}

// LoadingCount returns the number of loader processes.
func (t Topology) LoadingCount() int {
	return t.loadingCount
}

// Aggregator returns the rank of the aggregator.
func (t Topology) Aggregator() int {
	return t.worldSize - 1
}

// Role returns the role of the given rank during ingestion.
func (t Topology) Role(rank int) Role {
	switch {
	case rank == t.Aggregator():
		return RoleAggregator
	case t.Workers()-t.loadingCount <= rank:
		return RoleLoader
	default:
		return RolePredictor
	}
}

// LoaderPeer maps an ingestion slot to its rank.
func (t Topology) LoaderPeer(slot int) int {
	return t.Workers() - t.loadingCount + slot
}

// PredictorPeer maps a prediction slot to its rank.
func (t Topology) PredictorPeer(slot int) int {
	return slot
}
