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

// Package alignment derives clipped, oriented, gap-aware views of a
// read-to-reference alignment.
//
// A Record stores its column operations and per-base channels in native
// (as-sequenced) orientation. Views requested in Genomic orientation are
// expressed along the forward strand of the reference; for reverse-strand
// reads this reverses the column order and complements bases.
package alignment

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// Op is a single alignment column operation.
type Op byte

const (
	// Match is a column where one read base is aligned to one reference
	// base. Mismatches are also Match columns.
	Match Op = 'M'
	// Insertion is a column with a read base and no reference base.
	Insertion Op = 'I'
	// Deletion is a column with a reference base and no read base.
	Deletion Op = 'D'
)

func (op Op) String() string { return string(op) }

// advancesRef reports whether the column consumes a reference base.
func (op Op) advancesRef() bool { return op != Insertion }

// advancesRead reports whether the column consumes a read base.
func (op Op) advancesRead() bool { return op != Deletion }

// Orientation selects the coordinate frame of a view.
type Orientation int

const (
	// Native is the orientation the read was sequenced in.
	Native Orientation = iota
	// Genomic is the orientation of the reference forward strand.
	Genomic
)

func (o Orientation) String() string {
	switch o {
	case Native:
		return "native"
	case Genomic:
		return "genomic"
	}
	return fmt.Sprintf("Orientation(%d)", int(o))
}

// UnrollOperations expands a CIGAR into one Op per alignment column, in the
// CIGAR's own order.
//
// Hard clips are permitted only as the first or last operation and are
// dropped. Soft clips are excised. Sequence match and mismatch become Match,
// reference skips become Deletion, and padding is dropped.
func UnrollOperations(cigar sam.Cigar) ([]Op, error) {
	n := 0
	for _, co := range cigar {
		n += co.Len()
	}
	ops := make([]Op, 0, n)
	for i, co := range cigar {
		var op Op
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			op = Match
		case sam.CigarInsertion:
			op = Insertion
		case sam.CigarDeletion, sam.CigarSkipped:
			op = Deletion
		case sam.CigarSoftClipped, sam.CigarPadded:
			continue
		case sam.CigarHardClipped:
			if i != 0 && i != len(cigar)-1 {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("hard clip at position %d of cigar %v", i, cigar))
			}
			continue
		default:
			return nil, errors.E(errors.Invalid, fmt.Sprintf("unsupported cigar operation %v in %v", co, cigar))
		}
		for j := 0; j < co.Len(); j++ {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

// Orient presents natively ordered ops in the given orientation. Ops are
// returned unchanged for Native and for forward-strand reads; otherwise
// their order is reversed. Insertion and deletion roles are never swapped.
func Orient(ops []Op, reverse bool, mode Orientation) []Op {
	return Reorient(ops, reverse, Native, mode)
}

// Reorient converts ops ordered in orientation "from" to orientation "to".
func Reorient(ops []Op, reverse bool, from, to Orientation) []Op {
	if !reverse || from == to {
		return ops
	}
	out := make([]Op, len(ops))
	for i, op := range ops {
		out[len(ops)-1-i] = op
	}
	return out
}

// countOps returns the number of columns whose op passes pred.
func countOps(ops []Op, pred func(Op) bool) int {
	n := 0
	for _, op := range ops {
		if pred(op) {
			n++
		}
	}
	return n
}
