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

package schedule

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bioconsensus/consensus"
	"github.com/grailbio/bioconsensus/interval"
	"github.com/grailbio/hts/sam"
)

// Adaptive widens windows so that none falls entirely within a region
// without coverage. A run of uncovered windows is absorbed into the covered
// window before it, or into the first covered window when the run starts
// the region. If nothing is covered, the result is a single window spanning
// the input.
//
// windows must be contiguous and in order; so is the result, and it covers
// exactly the same interval.
func Adaptive(windows []consensus.Window, covered func(consensus.Window) bool) []consensus.Window {
	if len(windows) == 0 {
		return nil
	}
	var out []consensus.Window
	leading := windows[0].Start
	for _, w := range windows {
		switch {
		case covered(w) && len(out) == 0:
			out = append(out, consensus.Window{RefID: w.RefID, Start: leading, End: w.End})
		case covered(w):
			out = append(out, w)
		case len(out) > 0:
			out[len(out)-1].End = w.End
		}
	}
	if len(out) == 0 {
		last := windows[len(windows)-1]
		out = append(out, consensus.Window{RefID: last.RefID, Start: leading, End: last.End})
	}
	return out
}

// Coverage is the union of read spans on one contig.
type Coverage struct {
	RefID int
	Union interval.Union
}

// NewCoverage builds the coverage of a contig from read spans.
func NewCoverage(refID int, spans []interval.Span) Coverage {
	return Coverage{RefID: refID, Union: interval.NewUnion(spans)}
}

// Covers reports whether any read overlaps w.
func (c Coverage) Covers(w consensus.Window) bool {
	return w.RefID == c.RefID && c.Union.Intersects(interval.PosType(w.Start), interval.PosType(w.End))
}

// ParseRegions resolves region strings against the contigs of a header.
// The end of a region is clamped to its contig length.
func ParseRegions(regions []string, refs []*sam.Reference) ([]consensus.Window, error) {
	byName := make(map[string]*sam.Reference, len(refs))
	for _, ref := range refs {
		byName[ref.Name()] = ref
	}
	var out []consensus.Window
	for _, region := range regions {
		entry, err := interval.ParseRegionString(region)
		if err != nil {
			return nil, errors.E(errors.Invalid, err)
		}
		ref, ok := byName[entry.ChrName]
		if !ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("region %q: unknown contig %s", region, entry.ChrName))
		}
		w := consensus.Window{RefID: ref.ID(), Start: int(entry.Start0), End: int(entry.End)}
		if w.End > ref.Len() {
			w.End = ref.Len()
		}
		if w.Start >= w.End {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("region %q lies outside contig %s of length %d",
				region, ref.Name(), ref.Len()))
		}
		out = append(out, w)
	}
	return out, nil
}
