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
	"errors"
	"fmt"
)

// ErrNoComponents is returned by finalization when there is no component
// score to train on.
var ErrNoComponents = errors.New("no component models to stack")

// ConfigError reports an invalid argument or topology.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// RankError attaches the identity of the process that detected an error.
type RankError struct {
	Rank int
	Role Role
	Err  error
}

func (e *RankError) Error() string {
	return fmt.Sprintf("<%d> %s: %v", e.Rank, e.Role, e.Err)
}

func (e *RankError) Unwrap() error {
	return e.Err
}
