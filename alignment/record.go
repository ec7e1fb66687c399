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

package alignment

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
)

const (
	// BaseChannel names the read bases.
	BaseChannel = "base"
	// QualChannel names the per-base quality values from the QUAL field.
	QualChannel = "qual"
)

// Gap fills deleted columns of the base channel.
const Gap = '-'

// Record is a read-to-reference alignment.
//
// [RefStart, RefEnd) is the reference span in genomic coordinates.
// [ReadStart, ReadEnd) is the aligned part of the read, in native read
// coordinates. Ops is natively ordered. Each channel holds one value per
// base of the whole read, in native orientation.
//
// A Record is never modified once built; ClippedTo and the view methods
// return new values and share the channel storage.
type Record struct {
	Name      string
	RefID     int
	RefStart  int
	RefEnd    int
	ReadStart int
	ReadEnd   int
	Reverse   bool
	MapQ      int
	Ops       []Op
	Channels  map[string][]byte
}

// IsRangeError reports whether err was caused by a request outside an
// alignment's span.
func IsRangeError(err error) bool { return errors.Is(errors.Invalid, err) }

// IsInvariantViolation reports whether err signals an internally
// inconsistent alignment.
func IsInvariantViolation(err error) bool { return errors.Is(errors.Integrity, err) }

func rangeError(format string, args ...interface{}) error {
	return errors.E(errors.Invalid, fmt.Sprintf(format, args...))
}

func invariantError(format string, args ...interface{}) error {
	return errors.E(errors.Integrity, fmt.Sprintf(format, args...))
}

func (r *Record) String() string {
	strand := '+'
	if r.Reverse {
		strand = '-'
	}
	return fmt.Sprintf("%s(%d:%d-%d%c read %d-%d)", r.Name, r.RefID, r.RefStart, r.RefEnd, strand, r.ReadStart, r.ReadEnd)
}

// Validate checks that the spans agree with the operations and that every
// channel covers the aligned part of the read.
func (r *Record) Validate() error {
	if r.RefStart < 0 || r.ReadStart < 0 {
		return invariantError("%v: negative coordinate", r)
	}
	if n := countOps(r.Ops, Op.advancesRef); n != r.RefEnd-r.RefStart {
		return invariantError("%v: %d reference columns for a %d base span", r, n, r.RefEnd-r.RefStart)
	}
	if n := countOps(r.Ops, Op.advancesRead); n != r.ReadEnd-r.ReadStart {
		return invariantError("%v: %d read columns for a %d base span", r, n, r.ReadEnd-r.ReadStart)
	}
	for name, values := range r.Channels {
		if len(values) < r.ReadEnd {
			return invariantError("%v: channel %s has %d values, need %d", r, name, len(values), r.ReadEnd)
		}
	}
	return nil
}

// Len returns the number of alignment columns.
func (r *Record) Len() int { return len(r.Ops) }

// OrientedOps returns the operations in the given orientation.
func (r *Record) OrientedOps(orientation Orientation) []Op {
	return Orient(r.Ops, r.Reverse, orientation)
}

// positions builds a coordinate per column by cumulative summation of
// advance, excluding the current column. When keep is non-nil, only columns
// passing keep are returned.
func positions(ops []Op, start, step int, advance, keep func(Op) bool) []int {
	var out []int
	if keep == nil {
		out = make([]int, 0, len(ops))
	}
	pos := start
	for _, op := range ops {
		if keep == nil || keep(op) {
			out = append(out, pos)
		}
		if advance(op) {
			pos += step
		}
	}
	return out
}

// ReferencePositions returns the reference coordinate of every alignment
// column if aligned is true, or of every read base otherwise. Inserted
// columns carry the coordinate of the next reference base in the
// orientation's direction.
func (r *Record) ReferencePositions(aligned bool, orientation Orientation) []int {
	start, step := r.RefStart, 1
	if r.Reverse && orientation == Native {
		start, step = r.RefEnd-1, -1
	}
	var keep func(Op) bool
	if !aligned {
		keep = Op.advancesRead
	}
	return positions(r.OrientedOps(orientation), start, step, Op.advancesRef, keep)
}

// ReadPositions returns the native read coordinate of every alignment
// column if aligned is true, or of every reference base otherwise.
func (r *Record) ReadPositions(aligned bool, orientation Orientation) []int {
	start, step := r.ReadStart, 1
	if r.Reverse && orientation == Genomic {
		start, step = r.ReadEnd-1, -1
	}
	var keep func(Op) bool
	if !aligned {
		keep = Op.advancesRef
	}
	return positions(r.OrientedOps(orientation), start, step, Op.advancesRead, keep)
}

// ClippedTo returns the part of the alignment that falls within the
// reference interval [refStart, refEnd). The interval is first intersected
// with the alignment's span. A range error is returned when the interval is
// empty or misses the alignment entirely.
func (r *Record) ClippedTo(refStart, refEnd int) (*Record, error) {
	if refStart >= refEnd {
		return nil, rangeError("%v: empty clip interval [%d,%d)", r, refStart, refEnd)
	}
	if refStart >= r.RefEnd || refEnd <= r.RefStart {
		return nil, rangeError("%v: clip interval [%d,%d) does not overlap the alignment", r, refStart, refEnd)
	}
	if refStart < r.RefStart {
		refStart = r.RefStart
	}
	if refEnd > r.RefEnd {
		refEnd = r.RefEnd
	}
	ops := r.OrientedOps(Genomic)
	refPos := r.ReferencePositions(true, Genomic)
	readPos := r.ReadPositions(true, Genomic)
	n := len(ops)

	// Last column at or before refStart, and first column at or after refEnd.
	clipStart := sort.Search(n, func(i int) bool { return refPos[i] > refStart }) - 1
	clipEnd := sort.Search(n, func(i int) bool { return refPos[i] >= refEnd })
	if refEnd == r.RefEnd {
		// Trailing insertions sit at RefEnd and belong to the last base.
		clipEnd = n
	}
	if clipStart < 0 || clipStart > clipEnd {
		return nil, invariantError("%v: bad clip columns [%d,%d) for [%d,%d)", r, clipStart, clipEnd, refStart, refEnd)
	}

	var readStart, readEnd int
	if !r.Reverse {
		readStart = readPos[clipStart]
		readEnd = r.ReadEnd
		if clipEnd < n {
			readEnd = readPos[clipEnd]
		}
	} else {
		readEnd = readPos[clipStart] + 1
		readStart = r.ReadStart
		if clipEnd < n {
			readStart = readPos[clipEnd] + 1
		}
	}

	sub := Reorient(ops[clipStart:clipEnd], r.Reverse, Genomic, Native)
	if nRead := countOps(sub, Op.advancesRead); nRead != readEnd-readStart {
		return nil, invariantError("%v: clip to [%d,%d) has %d read columns for read span [%d,%d)",
			r, refStart, refEnd, nRead, readStart, readEnd)
	}
	return &Record{
		Name:      r.Name,
		RefID:     r.RefID,
		RefStart:  refStart,
		RefEnd:    refEnd,
		ReadStart: readStart,
		ReadEnd:   readEnd,
		Reverse:   r.Reverse,
		MapQ:      r.MapQ,
		Ops:       append([]Op(nil), sub...),
		Channels:  r.Channels,
	}, nil
}

// Gapify spreads values over the columns of ops, writing fill at every
// column whose op is gapOp. The result has one entry per column.
func Gapify(values []byte, ops []Op, gapOp Op, fill byte) ([]byte, error) {
	out := make([]byte, len(ops))
	k := 0
	for i, op := range ops {
		if op == gapOp {
			out[i] = fill
			continue
		}
		if k >= len(values) {
			return nil, invariantError("gapify: %d values for %d columns", len(values), len(ops))
		}
		out[i] = values[k]
		k++
	}
	if k != len(values) {
		return nil, invariantError("gapify: %d values left over", len(values)-k)
	}
	return out, nil
}

// ExtractChannel returns the named channel restricted to the aligned part
// of the read. In Genomic orientation a reverse-strand channel is reversed,
// and the base channel is also complemented. If aligned is true, deleted
// columns are filled with Gap for bases and 0 for other channels.
func (r *Record) ExtractChannel(name string, aligned bool, orientation Orientation) ([]byte, error) {
	data, ok := r.Channels[name]
	if !ok {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("%v: no channel %q", r, name))
	}
	values := data[r.ReadStart:r.ReadEnd]
	switch {
	case r.Reverse && orientation == Genomic && name == BaseChannel:
		values = ReverseComplement(values)
	case r.Reverse && orientation == Genomic:
		values = reverseBytes(values)
	default:
		values = append([]byte(nil), values...)
	}
	if !aligned {
		return values, nil
	}
	var fill byte
	if name == BaseChannel {
		fill = Gap
	}
	return Gapify(values, r.OrientedOps(orientation), Deletion, fill)
}

// Read returns the read bases of the alignment.
func (r *Record) Read(aligned bool, orientation Orientation) ([]byte, error) {
	return r.ExtractChannel(BaseChannel, aligned, orientation)
}

// Reference returns the reference bases the alignment spans, taken from the
// contig sequence refSeq. If aligned is true, inserted columns are filled
// with Gap.
func (r *Record) Reference(refSeq []byte, aligned bool, orientation Orientation) ([]byte, error) {
	if r.RefEnd > len(refSeq) {
		return nil, rangeError("%v: reference of length %d is too short", r, len(refSeq))
	}
	values := append([]byte(nil), refSeq[r.RefStart:r.RefEnd]...)
	if r.Reverse && orientation == Native {
		values = ReverseComplement(values)
	}
	if !aligned {
		return values, nil
	}
	return Gapify(values, r.OrientedOps(orientation), Insertion, Gap)
}
