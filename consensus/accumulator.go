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
	"context"
	"fmt"
	"sort"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
)

type chunkKey struct {
	start int
	c     *Consensus
}

// Compare compares two chunkKey objects for use in llrb.
func (k chunkKey) Compare(c2 llrb.Comparable) int {
	return k.start - c2.(chunkKey).start
}

// Accumulator keeps consensus chunks ordered by window start per contig,
// and the variants of all chunks. Results may be added in any order.
type Accumulator struct {
	byRef    map[int]*llrb.Tree
	variants []Variant
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{byRef: make(map[int]*llrb.Tree)}
}

// Add records one chunk result. Adding two results for the same window
// start is an error.
func (a *Accumulator) Add(r Result) error {
	c := r.Consensus
	if err := c.Validate(); err != nil {
		return err
	}
	tree := a.byRef[c.Window.RefID]
	if tree == nil {
		tree = &llrb.Tree{}
		a.byRef[c.Window.RefID] = tree
	}
	k := chunkKey{start: c.Window.Start, c: &c}
	if tree.Get(k) != nil {
		return errors.E(errors.Integrity, fmt.Sprintf("duplicate result for window %v", c.Window))
	}
	tree.Insert(k)
	a.variants = append(a.variants, r.Variants...)
	return nil
}

// RefIDs returns the contigs that have at least one chunk, in increasing
// order.
func (a *Accumulator) RefIDs() []int {
	ids := make([]int, 0, len(a.byRef))
	for id := range a.byRef {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Joined joins the chunks of one contig in reference order.
func (a *Accumulator) Joined(refID int) (Consensus, error) {
	tree := a.byRef[refID]
	if tree == nil {
		return Consensus{}, errors.E(errors.NotExist, fmt.Sprintf("no consensus for contig %d", refID))
	}
	chunks := make([]Consensus, 0, tree.Len())
	tree.Do(func(item llrb.Comparable) bool {
		chunks = append(chunks, *item.(chunkKey).c)
		return false
	})
	return Join(chunks)
}

// Variants returns all variants, sorted.
func (a *Accumulator) Variants() []Variant {
	out := append([]Variant(nil), a.variants...)
	SortVariants(out)
	return out
}

// Flush joins every contig and writes it, then the variants, to sink.
func (a *Accumulator) Flush(ctx context.Context, sink Sink) error {
	for _, refID := range a.RefIDs() {
		c, err := a.Joined(refID)
		if err != nil {
			return err
		}
		if err := sink.WriteConsensus(ctx, c); err != nil {
			return err
		}
	}
	return sink.WriteVariants(ctx, a.Variants())
}
