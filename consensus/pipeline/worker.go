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

package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bioconsensus/alignment"
	"github.com/grailbio/bioconsensus/consensus"
	"github.com/grailbio/bioconsensus/encoding/bamprovider"
	"github.com/grailbio/bioconsensus/reference"
	"github.com/grailbio/hts/sam"
)

// workerConfig is shared read-only by all workers of a run.
type workerConfig struct {
	opts     Opts
	provider bamprovider.Provider
	table    *reference.Table
	alg      consensus.Algorithm
	stats    *Stats
}

type workerState int

const (
	idle workerState = iota
	fetching
	computing
	publishing
	done
)

var stateNames = []string{"idle", "fetching", "computing", "publishing", "done"}

func (s workerState) String() string { return stateNames[s] }

type worker struct {
	id      int
	cfg     *workerConfig
	work    *queue
	results *queue

	state  workerState
	chunk  consensus.Chunk
	proc   consensus.Processor
	reader bamprovider.Reader
}

func (w *worker) String() string {
	return fmt.Sprintf("worker %d (%v %v)", w.id, w.state, w.chunk)
}

// run is the body of a worker. It returns nil after forwarding its
// end-of-stream marker, and an error on any failure that must abort the
// run.
func (w *worker) run(ctx context.Context) (err error) {
	if w.proc, err = w.cfg.alg.NewProcessor(); err != nil {
		return errors.E(err, fmt.Sprintf("worker %d: setup", w.id))
	}
	if w.reader, err = w.cfg.provider.NewReader(); err != nil {
		return errors.E(err, fmt.Sprintf("worker %d: opening alignments", w.id))
	}
	defer func() {
		if e := w.reader.Close(); e != nil && err == nil {
			err = e
		}
	}()
	for {
		w.state = idle
		m, ok := w.work.pop()
		if !ok {
			return errors.E(errors.Canceled, fmt.Sprintf("worker %d: work queue closed", w.id))
		}
		if m.kind == endOfStream {
			w.state = done
			if !w.results.push(message{kind: endOfStream, worker: w.id}) {
				return errors.E(errors.Canceled, fmt.Sprintf("worker %d: result queue closed", w.id))
			}
			return nil
		}
		w.chunk = m.chunk
		res, err := w.process(ctx, m.chunk)
		if err != nil {
			return errors.E(err, w.String())
		}
		w.state = publishing
		if !w.results.push(message{kind: resultMessage, result: res}) {
			return errors.E(errors.Canceled, fmt.Sprintf("worker %d: result queue closed", w.id))
		}
	}
}

// process computes the result of one chunk. A recoverable algorithm error
// degrades the chunk to a no-call consensus.
func (w *worker) process(ctx context.Context, chunk consensus.Chunk) (consensus.Result, error) {
	contig := w.cfg.table.ByID(chunk.Window.RefID)
	if contig == nil {
		return consensus.Result{}, errors.E(errors.Integrity, fmt.Sprintf("chunk %v on unknown contig", chunk))
	}
	w.state = fetching
	reads, err := w.fetch(chunk)
	if err != nil {
		return consensus.Result{}, err
	}
	w.state = computing
	res, err := w.proc.OnChunk(ctx, chunk, contig.Seq, reads)
	if err == nil {
		return res, nil
	}
	if consensus.IsFatal(err) {
		return consensus.Result{}, err
	}
	log.Error.Printf("chunk %v: %v; emitting no-evidence consensus", chunk, err)
	count(&w.cfg.stats.ChunksDegraded, 1)
	return consensus.Result{
		Chunk:     chunk,
		Consensus: consensus.NoCallConsensus(w.cfg.opts.Consensus.NoEvidence, chunk.Domain, contig.Seq),
	}, nil
}

// fetch returns the reads of the chunk window clipped to it. Reads the
// adapter rejects are logged and skipped.
func (w *worker) fetch(chunk consensus.Chunk) ([]*alignment.Record, error) {
	win := chunk.Window
	iter := w.reader.Query(win.RefID, win.Start, win.End)
	var (
		recs     []*sam.Record
		filtered int
	)
	for iter.Scan() {
		rec := iter.Record()
		if int(rec.MapQ) < w.cfg.opts.MinMapQ || rec.Flags&w.cfg.opts.ExcludeFlags != 0 {
			filtered++
			continue
		}
		recs = append(recs, rec)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.E(err, fmt.Sprintf("fetching reads of %v", win))
	}
	count(&w.cfg.stats.ReadsFetched, len(recs)+filtered)
	count(&w.cfg.stats.ReadsFiltered, filtered)
	if n := len(recs); w.cfg.opts.MaxDepth > 0 && n > w.cfg.opts.MaxDepth {
		recs = downsample(recs, win, w.cfg.opts.MaxDepth)
		count(&w.cfg.stats.ReadsDownsampled, n-len(recs))
	}
	reads := make([]*alignment.Record, 0, len(recs))
	for _, rec := range recs {
		a, err := alignment.FromSAM(rec)
		if err == nil {
			a, err = a.ClippedTo(win.Start, win.End)
		}
		if err != nil {
			log.Error.Printf("chunk %v: skipping read %s: %v", chunk, rec.Name, err)
			count(&w.cfg.stats.ReadsSkipped, 1)
			continue
		}
		reads = append(reads, a)
	}
	log.Debug.Printf("worker %d: chunk %v: %d reads", w.id, chunk, len(reads))
	return reads, nil
}

// downsample keeps the maxDepth reads that overlap w the most, in their
// original order. Ties keep the earlier read.
func downsample(recs []*sam.Record, w consensus.Window, maxDepth int) []*sam.Record {
	overlap := make([]int, len(recs))
	idx := make([]int, len(recs))
	for i, rec := range recs {
		start, end := rec.Pos, rec.End()
		if start < w.Start {
			start = w.Start
		}
		if end > w.End {
			end = w.End
		}
		overlap[i] = end - start
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return overlap[idx[a]] > overlap[idx[b]] })
	idx = idx[:maxDepth]
	sort.Ints(idx)
	out := make([]*sam.Record, len(idx))
	for i, j := range idx {
		out[i] = recs[j]
	}
	return out
}
