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

// Package consensus holds the data model shared by consensus algorithms
// and the pipeline that runs them: reference windows and work chunks,
// consensus chunks and variants, phred math, and the algorithm registry.
package consensus

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
)

// Consensus is the inferred sequence for a reference window. Sequence may
// be longer or shorter than the window when insertions or deletions were
// called. Confidence holds one phred value per base of Sequence.
type Consensus struct {
	Window     Window
	Sequence   []byte
	Confidence []uint8
}

// Validate checks that sequence and confidence have the same length.
func (c Consensus) Validate() error {
	if len(c.Sequence) != len(c.Confidence) {
		return errors.E(errors.Integrity, fmt.Sprintf("consensus %v: %d bases but %d confidence values",
			c.Window, len(c.Sequence), len(c.Confidence)))
	}
	return nil
}

// Join concatenates consensus chunks over contiguous windows of one contig.
// The chunks must already be in reference order. Gaps, overlaps and
// out-of-order chunks are reported as errors.Integrity.
func Join(chunks []Consensus) (Consensus, error) {
	if len(chunks) == 0 {
		return Consensus{}, errors.E(errors.Integrity, "join: no consensus chunks")
	}
	n := 0
	for i, c := range chunks {
		if err := c.Validate(); err != nil {
			return Consensus{}, err
		}
		if i > 0 {
			prev := chunks[i-1].Window
			if c.Window.RefID != prev.RefID || c.Window.Start != prev.End {
				return Consensus{}, errors.E(errors.Integrity,
					fmt.Sprintf("join: window %v does not follow %v", c.Window, prev))
			}
		}
		n += len(c.Sequence)
	}
	out := Consensus{
		Window: Window{
			RefID: chunks[0].Window.RefID,
			Start: chunks[0].Window.Start,
			End:   chunks[len(chunks)-1].Window.End,
		},
		Sequence:   make([]byte, 0, n),
		Confidence: make([]uint8, 0, n),
	}
	for _, c := range chunks {
		out.Sequence = append(out.Sequence, c.Sequence...)
		out.Confidence = append(out.Confidence, c.Confidence...)
	}
	return out, nil
}

// NoEvidencePolicy chooses the consensus base for positions without enough
// read evidence.
type NoEvidencePolicy int

const (
	// NoCall emits N.
	NoCall NoEvidencePolicy = iota
	// Reference emits the upper-cased reference base.
	Reference
	// LowercaseReference emits the lower-cased reference base.
	LowercaseReference
)

var policyNames = []string{"nocall", "reference", "lowercasereference"}

func (p NoEvidencePolicy) String() string {
	if int(p) < len(policyNames) && p >= 0 {
		return policyNames[p]
	}
	return fmt.Sprintf("NoEvidencePolicy(%d)", int(p))
}

// ParseNoEvidencePolicy parses one of "nocall", "reference" or
// "lowercasereference".
func ParseNoEvidencePolicy(name string) (NoEvidencePolicy, error) {
	for i, n := range policyNames {
		if strings.EqualFold(name, n) {
			return NoEvidencePolicy(i), nil
		}
	}
	return NoCall, errors.E(errors.Invalid, fmt.Sprintf("unknown no-evidence policy %q, must be one of %s",
		name, strings.Join(policyNames, ", ")))
}

// Base returns the consensus base for a position whose reference base is
// ref.
func (p NoEvidencePolicy) Base(ref byte) byte {
	switch p {
	case Reference:
		return upper(ref)
	case LowercaseReference:
		return lower(ref)
	}
	return 'N'
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}

// NoCallConsensus returns the consensus for window w when no read evidence
// is used at all. refSeq is the whole contig sequence. Every confidence is
// zero.
func NoCallConsensus(policy NoEvidencePolicy, w Window, refSeq []byte) Consensus {
	c := Consensus{
		Window:     w,
		Sequence:   make([]byte, w.Len()),
		Confidence: make([]uint8, w.Len()),
	}
	for i := range c.Sequence {
		c.Sequence[i] = policy.Base(refSeq[w.Start+i])
	}
	return c
}

// Result is what a worker publishes for one chunk.
type Result struct {
	Chunk     Chunk
	Consensus Consensus
	Variants  []Variant
}
