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
	"strings"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bioconsensus/alignment"
	"github.com/grailbio/hts/sam"
)

// Dataset describes the alignments an algorithm will be run on.
type Dataset struct {
	Header *sam.Header
	// Channels lists the per-base channels found on a sample record.
	Channels []string
}

// HasChannel reports whether the dataset carries the named channel.
func (d Dataset) HasChannel(name string) bool {
	for _, c := range d.Channels {
		if c == name {
			return true
		}
	}
	return false
}

// Config is the immutable configuration an algorithm is instantiated with.
type Config struct {
	Opts   Opts
	Header *sam.Header
}

// Processor computes results for chunks. Each worker owns one Processor,
// so implementations need not be safe for concurrent use.
type Processor interface {
	// OnChunk computes the result for chunk. refSeq is the whole contig
	// sequence. reads are already clipped to chunk.Window.
	OnChunk(ctx context.Context, chunk Chunk, refSeq []byte, reads []*alignment.Record) (Result, error)
}

// Collector aggregates results. It runs on a single goroutine.
type Collector interface {
	OnResult(r Result) error
	// OnFinish is called once after the last result.
	OnFinish(ctx context.Context) error
}

// Sink receives the final genome-scale outputs.
type Sink interface {
	// WriteConsensus writes the joined consensus of one contig.
	WriteConsensus(ctx context.Context, c Consensus) error
	// WriteVariants writes the sorted variants of all contigs.
	WriteVariants(ctx context.Context, variants []Variant) error
}

// Algorithm is an instantiated consensus algorithm.
type Algorithm interface {
	// NewProcessor performs per-worker setup.
	NewProcessor() (Processor, error)
	NewCollector(sink Sink) Collector
}

// Descriptor declares a consensus algorithm to the registry.
type Descriptor struct {
	Name string
	// Available returns nil if the algorithm can run in this binary.
	Available func() error
	// DefaultOpts returns the algorithm's default options.
	DefaultOpts func() Opts
	// Compatible returns nil if the algorithm can run on the dataset.
	Compatible func(d Dataset) error
	New        func(cfg Config) (Algorithm, error)
}

var (
	registryMu sync.Mutex
	registry   = map[string]Descriptor{}
)

// Register adds an algorithm to the registry. It panics on duplicate names.
func Register(d Descriptor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[d.Name]; ok {
		panic(fmt.Sprintf("consensus: algorithm %s registered twice", d.Name))
	}
	registry[d.Name] = d
}

// Lookup finds a registered algorithm and checks that it is available.
func Lookup(name string) (Descriptor, error) {
	registryMu.Lock()
	d, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return Descriptor{}, errors.E(errors.NotExist,
			fmt.Sprintf("unknown algorithm %q, known: %s", name, strings.Join(Names(), ", ")))
	}
	if d.Available != nil {
		if err := d.Available(); err != nil {
			return Descriptor{}, errors.E(errors.Precondition, fmt.Sprintf("algorithm %s unavailable", name), err)
		}
	}
	return d, nil
}

// Names lists the registered algorithms.
func Names() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	var names []string
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsFatal reports whether a chunk error must end the run rather than
// degrade the chunk to a no-call result.
func IsFatal(err error) bool {
	return errors.Is(errors.Canceled, err) ||
		errors.Is(errors.Integrity, err) ||
		errors.Is(errors.Precondition, err)
}
