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
	"fmt"
	"math"
	"strconv"
	"time"
)

// Usage lists the positional arguments of the trainer.
const Usage = "<file root> <data folder> <model name> <split number> <feature dimension> " +
	"<pos name> <neg name> <final weight> <loading number> " +
	"<sample pos name> <sample neg name> <sample number>"

// NegativeCount selects the file the negative instances are counted from.
type NegativeCount string

const (
	// CountNegatives counts the lines of the negative sample files.
	CountNegatives NegativeCount = "negative"
	// CountPositivesTwice counts the lines of the positive sample files for
	// both classes.
	CountPositivesTwice NegativeCount = "positive-twice"
)

// Config holds the arguments shared by every rank.
type Config struct {
	FileRoot   string
	DataFolder string
	ModelName  string

	// Components is the number of component models, the split number.
	Components int
	Dimension  int

	// PositiveName and NegativeName name the training files of the
	// components.  The trainer only carries them along.
	PositiveName string
	NegativeName string

	FinalWeight  float64
	LoadingCount int

	SamplePositiveName string
	SampleNegativeName string
	SampleGroups       int

	NegativeCount NegativeCount

	// TaskTimeout bounds the wait of the aggregator for a single reply.
	// Zero means scheduler.DefaultTaskTimeout and a negative value no bound.
	TaskTimeout time.Duration
	// SendTimeout bounds each synchronous send.  Zero means no bound.
	SendTimeout time.Duration
	// RecvTimeout bounds each wait of a worker.  Zero means no bound on the
	// first task of a phase and DefaultRecvTimeout on every later wait; a
	// negative value means no bound at all.
	RecvTimeout time.Duration
}

// ParseArgs parses the positional arguments.  The result still has to be
// validated.
func ParseArgs(args []string) (Config, error) {
	if len(args) != 12 {
		return Config{}, &ConfigError{Field: "argument count", Value: strconv.Itoa(len(args)), Reason: "want 12: " + Usage}
	}

	config := Config{
		FileRoot:           args[0],
		DataFolder:         args[1],
		ModelName:          args[2],
		PositiveName:       args[5],
		NegativeName:       args[6],
		SamplePositiveName: args[9],
		SampleNegativeName: args[10],
		NegativeCount:      CountNegatives,
	}

	var err error
	if config.Components, err = integer("split number", args[3]); err != nil {
		return Config{}, err
	}
	if config.Dimension, err = integer("feature dimension", args[4]); err != nil {
		return Config{}, err
	}
	if config.FinalWeight, err = strconv.ParseFloat(args[7], 64); err != nil {
		return Config{}, &ConfigError{Field: "final weight", Value: args[7], Reason: "not a number"}
	}
	if config.LoadingCount, err = integer("loading number", args[8]); err != nil {
		return Config{}, err
	}
	if config.SampleGroups, err = integer("sample number", args[11]); err != nil {
		return Config{}, err
	}

	return config, nil
}

func integer(field, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ConfigError{Field: field, Value: value, Reason: "not an integer"}
	}
	return n, nil
}

// Validate checks the ranges of the arguments against the given topology.
func (c Config) Validate(topology Topology) error {
	switch {
	case c.FileRoot == "" || c.DataFolder == "":
		return &ConfigError{Field: "file root", Value: c.FileRoot + "/" + c.DataFolder, Reason: "must not be empty"}
	case c.ModelName == "":
		return &ConfigError{Field: "model name", Value: c.ModelName, Reason: "must not be empty"}
	case c.Components < 0:
		return &ConfigError{Field: "split number", Value: strconv.Itoa(c.Components), Reason: "must not be negative"}
	case c.Dimension < 1:
		return &ConfigError{Field: "feature dimension", Value: strconv.Itoa(c.Dimension), Reason: "must be positive"}
	case !(epsilon <= c.FinalWeight) || math.IsInf(c.FinalWeight, 0):
		return &ConfigError{Field: "final weight", Value: fmt.Sprint(c.FinalWeight), Reason: "must be a finite number not less than machine epsilon"}
	case c.LoadingCount != topology.LoadingCount():
		return &ConfigError{Field: "loading number", Value: strconv.Itoa(c.LoadingCount), Reason: fmt.Sprintf("topology loads with %d ranks", topology.LoadingCount())}
	case c.SamplePositiveName == "" || c.SampleNegativeName == "":
		return &ConfigError{Field: "sample name", Value: c.SamplePositiveName + "," + c.SampleNegativeName, Reason: "must not be empty"}
	case c.SampleGroups < 1:
		return &ConfigError{Field: "sample number", Value: strconv.Itoa(c.SampleGroups), Reason: "must be positive"}
	case c.NegativeCount != CountNegatives && c.NegativeCount != CountPositivesTwice:
		return &ConfigError{Field: "negative count", Value: string(c.NegativeCount), Reason: fmt.Sprintf("must be %q or %q", CountNegatives, CountPositivesTwice)}
	case c.SendTimeout < 0:
		return &ConfigError{Field: "send timeout", Value: c.SendTimeout.String(), Reason: "must not be negative"}
	}
	return nil
}

// epsilon is the machine epsilon of float64.
var epsilon = math.Nextafter(1, 2) - 1
