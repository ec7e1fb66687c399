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

// Package schedule partitions reference contigs into windows and work
// chunks.
package schedule

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bioconsensus/consensus"
)

// WindowIterator yields consecutive [start, start+stride) windows covering
// a region. The last window may be shorter than stride.
//
// Example:
//   it, err := schedule.Windows(0, refLen, 500, nil)
//   for it.Scan() {
//     w := it.Window()
//     ...
//   }
type WindowIterator struct {
	region consensus.Window
	stride int
	next   int
	cur    consensus.Window
}

// Windows returns an iterator over the contig refID of length refLen, or
// over restrictTo if it is non-nil.
func Windows(refID, refLen, stride int, restrictTo *consensus.Window) (*WindowIterator, error) {
	if stride <= 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("window stride %d must be positive", stride))
	}
	region := consensus.Window{RefID: refID, Start: 0, End: refLen}
	if restrictTo != nil {
		if restrictTo.RefID != refID {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("window %v is not on contig %d", *restrictTo, refID))
		}
		if err := restrictTo.Validate(refLen); err != nil {
			return nil, err
		}
		region = *restrictTo
	}
	return &WindowIterator{region: region, stride: stride, next: region.Start}, nil
}

// Region returns the interval the iterator partitions.
func (it *WindowIterator) Region() consensus.Window { return it.region }

// Scan advances to the next window. It returns false once the region is
// exhausted.
func (it *WindowIterator) Scan() bool {
	if it.next >= it.region.End {
		return false
	}
	end := it.next + it.stride
	if end > it.region.End {
		end = it.region.End
	}
	it.cur = consensus.Window{RefID: it.region.RefID, Start: it.next, End: end}
	it.next = end
	return true
}

// Window returns the current window.
//
// REQUIRES: Scan() returned true.
func (it *WindowIterator) Window() consensus.Window { return it.cur }

// Reset rewinds the iterator to the start of the region.
func (it *WindowIterator) Reset() {
	it.next = it.region.Start
	it.cur = consensus.Window{}
}

// EnumerateWindows collects every window produced by Windows.
func EnumerateWindows(refID, refLen, stride int, restrictTo *consensus.Window) ([]consensus.Window, error) {
	it, err := Windows(refID, refLen, stride, restrictTo)
	if err != nil {
		return nil, err
	}
	var out []consensus.Window
	for it.Scan() {
		out = append(out, it.Window())
	}
	return out, nil
}

// Pad turns a window into a chunk whose fetch window extends overlap bases
// past each window boundary, clamped to region. Boundaries of the region
// itself are therefore never padded.
func Pad(w, region consensus.Window, overlap int) consensus.Chunk {
	padded := consensus.Window{RefID: w.RefID, Start: w.Start - overlap, End: w.End + overlap}
	if padded.Start < region.Start {
		padded.Start = region.Start
	}
	if padded.End > region.End {
		padded.End = region.End
	}
	return consensus.Chunk{Window: padded, Domain: w}
}

// ChunkIterator yields padded chunks over the windows of a WindowIterator.
type ChunkIterator struct {
	windows *WindowIterator
	overlap int
	cur     consensus.Chunk
}

// Chunks is like Windows, but yields chunks padded by overlap at interior
// boundaries.
func Chunks(refID, refLen, stride int, restrictTo *consensus.Window, overlap int) (*ChunkIterator, error) {
	if overlap < 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("window overlap %d must be nonnegative", overlap))
	}
	windows, err := Windows(refID, refLen, stride, restrictTo)
	if err != nil {
		return nil, err
	}
	return &ChunkIterator{windows: windows, overlap: overlap}, nil
}

// Scan advances to the next chunk.
func (it *ChunkIterator) Scan() bool {
	if !it.windows.Scan() {
		return false
	}
	it.cur = Pad(it.windows.Window(), it.windows.Region(), it.overlap)
	return true
}

// Chunk returns the current chunk.
//
// REQUIRES: Scan() returned true.
func (it *ChunkIterator) Chunk() consensus.Chunk { return it.cur }

// Reset rewinds the iterator.
func (it *ChunkIterator) Reset() { it.windows.Reset() }

// EnumerateChunks collects every chunk produced by Chunks.
func EnumerateChunks(refID, refLen, stride int, restrictTo *consensus.Window, overlap int) ([]consensus.Chunk, error) {
	it, err := Chunks(refID, refLen, stride, restrictTo, overlap)
	if err != nil {
		return nil, err
	}
	var out []consensus.Chunk
	for it.Scan() {
		out = append(out, it.Chunk())
	}
	return out, nil
}
