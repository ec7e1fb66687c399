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

// Package plurality implements column-voting consensus. Every reference
// column is called with the most frequent read base at that column, along
// with any bases the read inserts immediately before it. Confidence is the
// phred-scaled probability that sequencing errors alone would produce a
// call at least as frequent.
package plurality

import (
	"context"
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bioconsensus/alignment"
	"github.com/grailbio/bioconsensus/consensus"
	"gonum.org/v1/gonum/stat/distuv"
)

// Name is the name the algorithm is registered under.
const Name = "plurality"

func init() {
	consensus.Register(consensus.Descriptor{
		Name:        Name,
		DefaultOpts: func() consensus.Opts { return consensus.DefaultOpts },
		Compatible:  compatible,
		New:         New,
	})
}

func compatible(d consensus.Dataset) error {
	if !d.HasChannel(alignment.BaseChannel) {
		return errors.E(errors.Precondition, "plurality needs read bases, but the alignments carry none")
	}
	return nil
}

type algorithm struct {
	opts consensus.Opts
}

// New instantiates the algorithm.
func New(cfg consensus.Config) (consensus.Algorithm, error) {
	if err := cfg.Opts.Validate(); err != nil {
		return nil, err
	}
	return &algorithm{opts: cfg.Opts}, nil
}

func (a *algorithm) NewProcessor() (consensus.Processor, error) {
	return NewProcessor(a.opts), nil
}

func (a *algorithm) NewCollector(sink consensus.Sink) consensus.Collector {
	return &collector{acc: consensus.NewAccumulator(), sink: sink}
}

// Processor computes plurality consensus for chunks. Thread compatible.
type Processor struct {
	opts    consensus.Opts
	columns []tally
	pending []byte
	conf    map[[2]int]int
}

// NewProcessor returns a processor using opts.
func NewProcessor(opts consensus.Opts) *Processor {
	return &Processor{opts: opts, conf: make(map[[2]int]int)}
}

// Confidence returns the confidence of a call made by k of n reads:
// min(MaxConfidence, Phred(P[X > k-1])) for X ~ Binomial(n, ErrorRate).
func (p *Processor) Confidence(n, k int) int {
	key := [2]int{n, k}
	if c, ok := p.conf[key]; ok {
		return c
	}
	b := distuv.Binomial{N: float64(n), P: p.opts.ErrorRate}
	c := consensus.Phred(b.Survival(float64(k - 1)))
	if c > p.opts.MaxConfidence {
		c = p.opts.MaxConfidence
	}
	p.conf[key] = c
	return c
}

// tabulate builds the frequency table of every column of w.
func (p *Processor) tabulate(w consensus.Window, reads []*alignment.Record) error {
	n := w.Len()
	if cap(p.columns) < n {
		p.columns = make([]tally, n)
	} else {
		p.columns = p.columns[:n]
		for i := range p.columns {
			p.columns[i].reset()
		}
	}
	for _, r := range reads {
		ops := r.OrientedOps(alignment.Genomic)
		bases, err := r.Read(true, alignment.Genomic)
		if err != nil {
			return err
		}
		pos := r.RefStart
		p.pending = p.pending[:0]
		for i, op := range ops {
			if op != alignment.Deletion {
				p.pending = append(p.pending, bases[i])
			}
			if op == alignment.Insertion {
				continue
			}
			if w.Contains(pos) {
				p.columns[pos-w.Start].add(string(p.pending))
			}
			p.pending = p.pending[:0]
			pos++
		}
	}
	return nil
}

func isUpper(s string) bool { return strings.ToUpper(s) == s }

func isN(b byte) bool { return b == 'N' || b == 'n' }

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// OnChunk implements consensus.Processor. Consensus and variants cover only
// the chunk's domain; the padding supplies context to the reads.
func (p *Processor) OnChunk(ctx context.Context, chunk consensus.Chunk, refSeq []byte, reads []*alignment.Record) (consensus.Result, error) {
	if err := ctx.Err(); err != nil {
		return consensus.Result{}, errors.E(errors.Canceled, err)
	}
	w := chunk.Window
	if err := w.Validate(len(refSeq)); err != nil {
		return consensus.Result{}, err
	}
	domain, ok := chunk.Domain.Intersect(w)
	if !ok || domain != chunk.Domain {
		return consensus.Result{}, errors.E(errors.Invalid, fmt.Sprintf("chunk %v: domain outside window", chunk))
	}
	if err := p.tabulate(w, reads); err != nil {
		return consensus.Result{}, err
	}
	res := consensus.Result{
		Chunk: chunk,
		Consensus: consensus.Consensus{
			Window:     domain,
			Sequence:   make([]byte, 0, domain.Len()),
			Confidence: make([]uint8, 0, domain.Len()),
		},
	}
	for pos := domain.Start; pos < domain.End; pos++ {
		col := &p.columns[pos-w.Start]
		ref := upper(refSeq[pos])
		if col.total == 0 || col.total < p.opts.MinCoverage {
			conf := col.total
			if conf > consensus.MaxQV {
				conf = consensus.MaxQV
			}
			res.Consensus.Sequence = append(res.Consensus.Sequence, p.opts.NoEvidence.Base(refSeq[pos]))
			res.Consensus.Confidence = append(res.Consensus.Confidence, uint8(conf))
			continue
		}
		first, second, ok2 := col.top()
		conf := p.Confidence(col.total, first.n)
		for i := 0; i < len(first.call); i++ {
			res.Consensus.Sequence = append(res.Consensus.Sequence, first.call[i])
			res.Consensus.Confidence = append(res.Consensus.Confidence, uint8(conf))
		}
		if isN(ref) {
			continue
		}
		if p.opts.Diploid && ok2 {
			if v, ok := p.heterozygous(w.RefID, pos, ref, col.total, first, second); ok {
				res.Variants = append(res.Variants, v)
				continue
			}
		}
		if conf < p.opts.MinConfidence || first.call == "N" || !isUpper(first.call) {
			continue
		}
		res.Variants = append(res.Variants, p.variants(w.RefID, pos, ref, col.total, conf, first)...)
	}
	consensus.SortVariants(res.Variants)
	log.Debug.Printf("plurality: chunk %v: %d reads, %d variants", chunk, len(reads), len(res.Variants))
	return res, nil
}

// variants derives the variants implied by calling call at pos.
func (p *Processor) variants(refID, pos int, ref byte, coverage, conf int, call count) []consensus.Variant {
	base := consensus.Variant{
		RefID:      refID,
		RefStart:   pos,
		RefEnd:     pos + 1,
		RefSeq:     string(ref),
		Coverage:   coverage,
		Confidence: conf,
		Frequency1: call.n,
	}
	if p.opts.Diploid {
		base.Zygosity = consensus.Homozygous
	}
	var out []consensus.Variant
	s := call.call
	if len(s) > 1 {
		v := base
		v.Type = consensus.Insertion
		v.RefEnd = pos
		v.RefSeq = ""
		v.ReadSeq1 = s[:len(s)-1]
		out = append(out, v)
	}
	switch {
	case len(s) == 0:
		v := base
		v.Type = consensus.Deletion
		out = append(out, v)
	case s[len(s)-1] != ref:
		v := base
		v.Type = consensus.Substitution
		v.ReadSeq1 = s[len(s)-1:]
		out = append(out, v)
	}
	return out
}

// heterozygous returns a heterozygous substitution at pos when the two
// most frequent calls are single bases and the second is frequent enough.
func (p *Processor) heterozygous(refID, pos int, ref byte, coverage int, first, second count) (consensus.Variant, bool) {
	if len(first.call) != 1 || len(second.call) != 1 ||
		second.n < p.opts.MinHetCoverage ||
		float64(second.n) < p.opts.MinHetFraction*float64(coverage) {
		return consensus.Variant{}, false
	}
	if first.call[0] == ref && second.call[0] == ref {
		return consensus.Variant{}, false
	}
	for _, c := range []string{first.call, second.call} {
		if c == "N" || !isUpper(c) {
			return consensus.Variant{}, false
		}
	}
	conf := p.Confidence(coverage, second.n)
	if conf < p.opts.MinConfidence {
		return consensus.Variant{}, false
	}
	return consensus.Variant{
		Type:       consensus.Substitution,
		RefID:      refID,
		RefStart:   pos,
		RefEnd:     pos + 1,
		RefSeq:     string(ref),
		ReadSeq1:   first.call,
		ReadSeq2:   second.call,
		Coverage:   coverage,
		Confidence: conf,
		Frequency1: first.n,
		Frequency2: second.n,
		Zygosity:   consensus.Heterozygous,
	}, true
}

type collector struct {
	acc     *consensus.Accumulator
	sink    consensus.Sink
	nChunks int
}

func (c *collector) OnResult(r consensus.Result) error {
	c.nChunks++
	return c.acc.Add(r)
}

func (c *collector) OnFinish(ctx context.Context) error {
	log.Printf("plurality: joining %d chunks on %d contigs", c.nChunks, len(c.acc.RefIDs()))
	return c.acc.Flush(ctx, c.sink)
}
