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
	"path/filepath"
	"strconv"
)

// Root returns the directory every artifact of the split lives under.
func (c Config) Root() string {
	return filepath.Join(c.FileRoot, c.DataFolder, strconv.Itoa(c.Components))
}

// ComponentPath returns the path of the given component model.
func (c Config) ComponentPath(component int) string {
	return filepath.Join(c.Root(), strconv.Itoa(component), c.ModelName)
}

// SamplePath returns the path of the positive or negative instances of the
// given sample group.
func (c Config) SamplePath(group int, positive bool) string {
	name := c.SampleNegativeName
	if positive {
		name = c.SamplePositiveName
	}
	return filepath.Join(c.Root(), strconv.Itoa(group), name)
}

// FinalPath returns the path of the final model.
func (c Config) FinalPath() string {
	return filepath.Join(c.Root(), c.ModelName)
}
