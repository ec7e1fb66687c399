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
	"runtime"
	"sync/atomic"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/bioconsensus/alignment"
	"github.com/grailbio/bioconsensus/consensus"
	"github.com/grailbio/bioconsensus/consensus/output"
	_ "github.com/grailbio/bioconsensus/consensus/plurality" // default algorithm
	"github.com/grailbio/bioconsensus/consensus/schedule"
	"github.com/grailbio/bioconsensus/encoding/bamprovider"
	"github.com/grailbio/bioconsensus/interval"
	"github.com/grailbio/bioconsensus/reference"
	"github.com/grailbio/hts/sam"
)

// queueDepth is the capacity of each queue per worker.
const queueDepth = 2

// Run runs the pipeline described by opts. Configuration problems are
// reported before any worker starts. On failure the returned error is the
// first failure observed.
func Run(ctx context.Context, opts Opts) (err error) {
	if err := opts.Validate(); err != nil {
		return err
	}
	strategy, err := ParseExecution(opts.Execution)
	if err != nil {
		return err
	}
	provider := bamprovider.NewProvider(opts.BAMPath, bamprovider.ProviderOpts{Index: opts.IndexPath})
	defer func() {
		if e := provider.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if err := provider.Validate(); err != nil {
		return err
	}
	header, err := provider.GetHeader()
	if err != nil {
		return err
	}
	table, err := reference.Load(ctx, opts.ReferencePath, header)
	if err != nil {
		return err
	}
	desc, err := consensus.Lookup(opts.Algorithm)
	if err != nil {
		return err
	}
	dataset, err := sampleDataset(provider, header)
	if err != nil {
		return err
	}
	if desc.Compatible != nil {
		if err := desc.Compatible(dataset); err != nil {
			return errors.E(errors.Precondition, err, fmt.Sprintf("algorithm %s cannot run on %s", desc.Name, opts.BAMPath))
		}
	}
	alg, err := desc.New(consensus.Config{Opts: opts.Consensus, Header: header})
	if err != nil {
		return err
	}
	regions, err := Regions(header, opts.Regions)
	if err != nil {
		return err
	}
	r := &runner{
		cfg: workerConfig{
			opts:     opts,
			provider: provider,
			table:    table,
			alg:      alg,
			stats:    &Stats{},
		},
		strategy: strategy,
		workers:  opts.Workers,
	}
	if r.workers == 0 {
		r.workers = runtime.NumCPU()
	}
	chunks, err := r.schedule(regions)
	if err != nil {
		return err
	}
	sink, err := output.Open(ctx, opts.OutputPaths, table.Contigs(), output.Meta{
		Source:     "bio-consensus",
		Command:    opts.Command,
		Date:       time.Now().Format("20060102"),
		Reference:  opts.ReferencePath,
		NameSuffix: "|" + desc.Name,
	})
	if err != nil {
		return err
	}
	log.Printf("%s: %d chunks over %d regions, %d workers (%s)", desc.Name, len(chunks), len(regions), r.workers, strategy.Name())
	start := time.Now()
	err = r.execute(ctx, chunks, sink)
	if e := sink.Close(ctx); e != nil && err == nil {
		err = e
	}
	log.Printf("%s: finished in %v; %v", desc.Name, time.Since(start), r.cfg.stats)
	return err
}

// sampleDataset describes the alignments by their first record.
func sampleDataset(provider bamprovider.Provider, header *sam.Header) (consensus.Dataset, error) {
	d := consensus.Dataset{Header: header}
	reader, err := provider.NewReader()
	if err != nil {
		return d, err
	}
	defer reader.Close() // nolint: errcheck
	for _, ref := range header.Refs() {
		iter := reader.Query(ref.ID(), 0, ref.Len())
		found := iter.Scan()
		var rec *sam.Record
		if found {
			rec = iter.Record()
		}
		if err := iter.Close(); err != nil {
			return d, err
		}
		if !found {
			continue
		}
		a, err := alignment.FromSAM(rec)
		if err != nil {
			return d, errors.E(errors.Precondition, err, "first record")
		}
		for name := range a.Channels {
			d.Channels = append(d.Channels, name)
		}
		return d, nil
	}
	return d, errors.E(errors.Precondition, "no mapped records")
}

// Regions resolves region strings against header. Without regions, every
// contig is one region. A contig may appear in at most one region, since
// its consensus is joined into a single record.
func Regions(header *sam.Header, regions []string) ([]consensus.Window, error) {
	if len(regions) == 0 {
		var out []consensus.Window
		for _, ref := range header.Refs() {
			if ref.Len() > 0 {
				out = append(out, consensus.Window{RefID: ref.ID(), Start: 0, End: ref.Len()})
			}
		}
		return out, nil
	}
	out, err := schedule.ParseRegions(regions, header.Refs())
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	for i, w := range out {
		if seen[w.RefID] {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("region %s: contig named twice", regions[i]))
		}
		seen[w.RefID] = true
	}
	return out, nil
}

type runner struct {
	cfg      workerConfig
	strategy ExecutionStrategy
	workers  int
}

// schedule partitions regions into chunks.
func (r *runner) schedule(regions []consensus.Window) ([]consensus.Chunk, error) {
	opts := r.cfg.opts
	var chunks []consensus.Chunk
	if !opts.FancyChunking {
		for _, region := range regions {
			region := region
			c, err := schedule.EnumerateChunks(region.RefID, r.cfg.table.ByID(region.RefID).Len, opts.WindowSize, &region, opts.Overlap)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, c...)
		}
		return chunks, nil
	}
	coverage, err := r.coverage(regions)
	if err != nil {
		return nil, err
	}
	for i, region := range regions {
		region := region
		windows, err := schedule.EnumerateWindows(region.RefID, r.cfg.table.ByID(region.RefID).Len, opts.WindowSize, &region)
		if err != nil {
			return nil, err
		}
		for _, w := range schedule.Adaptive(windows, coverage[i].Covers) {
			chunks = append(chunks, schedule.Pad(w, region, opts.Overlap))
		}
	}
	return chunks, nil
}

// coverage computes the union of read spans of each region, using reads
// that pass the worker filters.
func (r *runner) coverage(regions []consensus.Window) ([]schedule.Coverage, error) {
	out := make([]schedule.Coverage, len(regions))
	err := traverse.Limit(r.workers).Each(len(regions), func(i int) (err error) {
		region := regions[i]
		reader, err := r.cfg.provider.NewReader()
		if err != nil {
			return err
		}
		defer func() {
			if e := reader.Close(); e != nil && err == nil {
				err = e
			}
		}()
		var spans []interval.Span
		iter := reader.Query(region.RefID, region.Start, region.End)
		for iter.Scan() {
			rec := iter.Record()
			if int(rec.MapQ) < r.cfg.opts.MinMapQ || rec.Flags&r.cfg.opts.ExcludeFlags != 0 {
				continue
			}
			spans = append(spans, interval.Span{Start: interval.PosType(rec.Pos), End: interval.PosType(rec.End())})
		}
		if err := iter.Close(); err != nil {
			return err
		}
		out[i] = schedule.NewCoverage(region.RefID, spans)
		return nil
	})
	return out, err
}

// execute runs the coordinator, workers, collector and monitor over chunks
// and returns the first failure.
func (r *runner) execute(ctx context.Context, chunks []consensus.Chunk, sink consensus.Sink) error {
	n := r.workers
	work := newQueue(queueDepth * n)
	results := newQueue(queueDepth * n)
	var (
		failure errors.Once
		aborted int32
	)
	abort := func(err error) {
		failure.Set(err)
		if atomic.CompareAndSwapInt32(&aborted, 0, 1) {
			log.Error.Printf("aborting run: %v", err)
			work.close()
			results.close()
		}
	}

	exits := make(chan error, n)
	for i := 0; i < n; i++ {
		w := &worker{id: i, cfg: &r.cfg, work: work, results: results}
		r.strategy.Launch(func() error { return w.run(ctx) }, exits)
	}
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		if err := protect(func() error { return r.collect(ctx, results, n, sink) }); err != nil {
			abort(err)
		}
	}()
	monitored := make(chan struct{})
	go func() {
		defer close(monitored)
		for i := 0; i < n; i++ {
			if err := <-exits; err != nil {
				abort(err)
			}
		}
	}()
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			abort(errors.E(errors.Canceled, ctx.Err()))
		case <-finished:
		}
	}()

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			abort(errors.E(errors.Canceled, err))
		}
		if atomic.LoadInt32(&aborted) != 0 {
			break
		}
		if !work.push(message{kind: chunkMessage, chunk: c}) {
			break
		}
		count(&r.cfg.stats.ChunksSubmitted, 1)
	}
	for i := 0; i < n && atomic.LoadInt32(&aborted) == 0; i++ {
		if !work.push(message{kind: endOfStream}) {
			break
		}
	}
	<-monitored
	<-collected
	return failure.Err()
}

// collect drains the result queue until every worker has sent its
// end-of-stream marker, then finishes the algorithm's collector.
func (r *runner) collect(ctx context.Context, results *queue, n int, sink consensus.Sink) error {
	coll := r.cfg.alg.NewCollector(sink)
	for eos := 0; eos < n; {
		m, ok := results.pop()
		if !ok {
			return errors.E(errors.Canceled, "result queue closed")
		}
		switch m.kind {
		case endOfStream:
			eos++
			log.Debug.Printf("collector: worker %d done (%d/%d)", m.worker, eos, n)
		case resultMessage:
			if err := coll.OnResult(m.result); err != nil {
				return err
			}
			count(&r.cfg.stats.ResultsCollected, 1)
		default:
			return errors.E(errors.Integrity, fmt.Sprintf("unexpected message kind %d on result queue", m.kind))
		}
	}
	return coll.OnFinish(ctx)
}
