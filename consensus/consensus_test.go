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
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func chunkOf(refID, start int, seq string) Consensus {
	conf := make([]uint8, len(seq))
	for i := range conf {
		conf[i] = uint8(start + i)
	}
	return Consensus{
		Window:     Window{RefID: refID, Start: start, End: start + len(seq)},
		Sequence:   []byte(seq),
		Confidence: conf,
	}
}

func TestJoin(t *testing.T) {
	a := chunkOf(0, 100, "ACGTACGTAC")
	b := chunkOf(0, 110, "GGGGGCCCCC")
	c, err := Join([]Consensus{a, b})
	assert.NoError(t, err)
	expect.EQ(t, c.Window, Window{RefID: 0, Start: 100, End: 120})
	expect.EQ(t, string(c.Sequence), "ACGTACGTACGGGGGCCCCC")
	expect.EQ(t, c.Confidence, append(append([]uint8(nil), a.Confidence...), b.Confidence...))

	_, err = Join([]Consensus{b, a})
	expect.True(t, errors.Is(errors.Integrity, err))
	_, err = Join([]Consensus{a, chunkOf(0, 111, "A")})
	expect.True(t, errors.Is(errors.Integrity, err))
	_, err = Join([]Consensus{a, chunkOf(1, 110, "A")})
	expect.True(t, errors.Is(errors.Integrity, err))
	_, err = Join(nil)
	expect.NotNil(t, err)

	bad := a
	bad.Confidence = bad.Confidence[:3]
	_, err = Join([]Consensus{bad})
	expect.NotNil(t, err)
}

func TestPhred(t *testing.T) {
	for _, tc := range []struct {
		p    float64
		want int
	}{
		{0, 93},
		{1, 0},
		{0.1, 10},
		{0.001, 30},
		{1e-12, 93},
		{0.5, 3},
	} {
		expect.EQ(t, Phred(tc.p), tc.want, "p=%v", tc.p)
	}
}

func TestNoEvidencePolicy(t *testing.T) {
	ref := []byte("nnGATtaca")
	w := Window{Start: 2, End: 9}
	for _, tc := range []struct {
		name string
		want string
	}{
		{"nocall", "NNNNNNN"},
		{"reference", "GATTACA"},
		{"lowercasereference", "gattaca"},
		{"Reference", "GATTACA"},
	} {
		p, err := ParseNoEvidencePolicy(tc.name)
		assert.NoError(t, err)
		c := NoCallConsensus(p, w, ref)
		expect.EQ(t, string(c.Sequence), tc.want)
		expect.EQ(t, c.Confidence, make([]uint8, 7))
		expect.EQ(t, c.Window, w)
	}
	_, err := ParseNoEvidencePolicy("bogus")
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestWindow(t *testing.T) {
	w := Window{RefID: 1, Start: 10, End: 20}
	expect.EQ(t, w.Len(), 10)
	expect.True(t, w.Contains(10))
	expect.False(t, w.Contains(20))
	got, ok := w.Intersect(Window{RefID: 1, Start: 15, End: 30})
	expect.True(t, ok)
	expect.EQ(t, got, Window{RefID: 1, Start: 15, End: 20})
	_, ok = w.Intersect(Window{RefID: 1, Start: 20, End: 30})
	expect.False(t, ok)
	_, ok = w.Intersect(Window{RefID: 2, Start: 0, End: 30})
	expect.False(t, ok)
	expect.NoError(t, w.Validate(20))
	expect.NotNil(t, w.Validate(19))
	expect.EQ(t, w.String(), "1:10-20")
}

func TestSortVariants(t *testing.T) {
	v := []Variant{
		{RefID: 1, RefStart: 3, RefEnd: 4},
		{RefID: 0, RefStart: 9, RefEnd: 10},
		{RefID: 0, RefStart: 3, RefEnd: 4},
		{RefID: 0, RefStart: 3, RefEnd: 3, Type: Insertion},
	}
	SortVariants(v)
	expect.EQ(t, v[0], Variant{RefID: 0, RefStart: 3, RefEnd: 3, Type: Insertion})
	expect.EQ(t, v[1].RefStart, 3)
	expect.EQ(t, v[1].RefEnd, 4)
	expect.EQ(t, v[2].RefStart, 9)
	expect.EQ(t, v[3].RefID, 1)
}

type memSink struct {
	consensus []Consensus
	variants  []Variant
}

func (s *memSink) WriteConsensus(_ context.Context, c Consensus) error {
	s.consensus = append(s.consensus, c)
	return nil
}

func (s *memSink) WriteVariants(_ context.Context, v []Variant) error {
	s.variants = v
	return nil
}

func TestAccumulator(t *testing.T) {
	a := NewAccumulator()
	// Out of order arrival, two contigs.
	assert.NoError(t, a.Add(Result{Consensus: chunkOf(1, 0, "TT")}))
	assert.NoError(t, a.Add(Result{Consensus: chunkOf(0, 20, "GG"),
		Variants: []Variant{{RefID: 0, RefStart: 21, RefEnd: 22}}}))
	assert.NoError(t, a.Add(Result{Consensus: chunkOf(0, 10, "AAAAACCCCC"),
		Variants: []Variant{{RefID: 0, RefStart: 12, RefEnd: 13}}}))
	assert.NoError(t, a.Add(Result{Consensus: chunkOf(0, 0, "ACGTACGTAC")}))

	err := a.Add(Result{Consensus: chunkOf(0, 10, "A")})
	expect.True(t, errors.Is(errors.Integrity, err))

	expect.EQ(t, a.RefIDs(), []int{0, 1})
	sink := &memSink{}
	assert.NoError(t, a.Flush(context.Background(), sink))
	assert.EQ(t, len(sink.consensus), 2)
	expect.EQ(t, string(sink.consensus[0].Sequence), "ACGTACGTACAAAAACCCCCGG")
	expect.EQ(t, sink.consensus[0].Window, Window{RefID: 0, Start: 0, End: 22})
	expect.EQ(t, string(sink.consensus[1].Sequence), "TT")
	assert.EQ(t, len(sink.variants), 2)
	expect.EQ(t, sink.variants[0].RefStart, 12)
	expect.EQ(t, sink.variants[1].RefStart, 21)
}

func TestAccumulatorGap(t *testing.T) {
	a := NewAccumulator()
	assert.NoError(t, a.Add(Result{Consensus: chunkOf(0, 0, "AC")}))
	assert.NoError(t, a.Add(Result{Consensus: chunkOf(0, 5, "AC")}))
	_, err := a.Joined(0)
	expect.True(t, errors.Is(errors.Integrity, err))
}
