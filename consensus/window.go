// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package consensus

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Window is a half-open interval [Start, End) on contig RefID.
type Window struct {
	RefID int
	Start int
	End   int
}

// Len returns the number of reference positions in the window.
func (w Window) Len() int { return w.End - w.Start }

// Contains reports whether pos lies within the window.
func (w Window) Contains(pos int) bool { return pos >= w.Start && pos < w.End }

// Intersect returns the overlap of w and o, and whether it is non-empty.
func (w Window) Intersect(o Window) (Window, bool) {
	if w.RefID != o.RefID {
		return Window{}, false
	}
	out := Window{RefID: w.RefID, Start: w.Start, End: w.End}
	if o.Start > out.Start {
		out.Start = o.Start
	}
	if o.End < out.End {
		out.End = o.End
	}
	if out.Start >= out.End {
		return Window{}, false
	}
	return out, true
}

func (w Window) String() string {
	return fmt.Sprintf("%d:%d-%d", w.RefID, w.Start, w.End)
}

// Validate checks that w is a well-formed window on a contig of length
// refLen.
func (w Window) Validate(refLen int) error {
	if w.Start < 0 || w.Start > w.End || w.End > refLen {
		return errors.E(errors.Invalid, fmt.Sprintf("window %v invalid for contig of length %d", w, refLen))
	}
	return nil
}

// Chunk is a unit of work. Window is the interval reads are fetched and
// clipped to; it extends past Domain by the configured overlap at interior
// boundaries. Domain is the only interval for which the chunk's variants
// and consensus are authoritative.
type Chunk struct {
	Window Window
	Domain Window
}

func (c Chunk) String() string {
	return fmt.Sprintf("%v[%d-%d]", c.Domain, c.Window.Start, c.Window.End)
}
