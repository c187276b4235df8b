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

package data

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Shard holds the positive and negative instances of a single sample group.
type Shard struct {
	Positive *Sparse
	Negative *Sparse
}

// Shards represents the sample shards kept by a predictor, indexed by sample
// group.
type Shards []Shard

// Layout returns the row layout that scoring the shards produces.
func (s Shards) Layout() Layout {
	groups := make([]Group, 0, len(s))
	for _, shard := range s {
		groups = append(groups, Group{Positives: shard.Positive.Rows(), Negatives: shard.Negative.Rows()})
	}
	return Layout{Groups: groups}
}

// Scorer scores every row of a sparse matrix.
type Scorer interface {
	Score(instances *Sparse) []float64
}

// Score scores the shards in the global row order: groups in ascending index,
// positives before negatives.  It is a pure function of the scorer and the
// shards.
func (s Shards) Score(scorer Scorer) []float64 {
	scores := make([]float64, 0, s.Layout().Instances())
	for _, shard := range s {
		scores = append(scores, scorer.Score(shard.Positive)...)
		scores = append(scores, scorer.Score(shard.Negative)...)
	}
	return scores
}

// LoadShards reads the given number of sample groups concurrently.  path
// returns the file of the positive or negative instances of a group.
func LoadShards(ctx context.Context, groups, dimension int, path func(group int, positive bool) string) (Shards, error) {
	shards := make(Shards, groups)

	g, ctx := errgroup.WithContext(ctx)
	for group := range shards {
		group := group
		g.Go(func() (err error) {
			if err = ctx.Err(); err != nil {
				return
			}
			if shards[group].Positive, err = ReadSparse(path(group, true), dimension); err != nil {
				return
			}
			shards[group].Negative, err = ReadSparse(path(group, false), dimension)
			return
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return shards, nil
}
