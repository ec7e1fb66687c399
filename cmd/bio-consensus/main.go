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

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bioconsensus/consensus"
	"github.com/grailbio/bioconsensus/consensus/pipeline"
	"github.com/grailbio/bioconsensus/encoding/bamprovider"
	"github.com/grailbio/hts/sam"
)

var (
	referencePath = flag.String("reference", "", "FASTA reference the BAM was aligned against; required")
	indexPath     = flag.String("index", "", "Input BAM index path. Defaults to bampath + .bai")
	buildIndex    = flag.Bool("build-index", false, "Build the BAM index before running")
	outputs       = flag.String("out", "consensus.fa", "Comma-separated output paths; the format is chosen by extension")
	windowSize    = flag.Int("window", pipeline.DefaultOpts.WindowSize, "Reference window size")
	overlap       = flag.Int("overlap", pipeline.DefaultOpts.Overlap, "Bases added to each side of interior window boundaries")
	workers       = flag.Int("workers", pipeline.DefaultOpts.Workers, "Number of workers; 0 = runtime.NumCPU()")
	maxDepth      = flag.Int("max-depth", pipeline.DefaultOpts.MaxDepth, "Maximum reads per window; 0 = unlimited")
	minMapQ       = flag.Int("mapq", pipeline.DefaultOpts.MinMapQ, "Reads with MAPQ below this level are skipped")
	flagExclude   = flag.Int("flag-exclude", int(pipeline.DefaultOpts.ExcludeFlags), "Reads with a FLAG bit intersecting this value are skipped")
	regions       = flag.String("regions", "", "Comma-separated regions, formatted as <contig>, <contig>:<pos> or <contig>:<first>-<last> (1-based); at most one per contig")
	fancyChunking = flag.Bool("fancy-chunking", pipeline.DefaultOpts.FancyChunking, "Widen windows so that none lies entirely in a region without coverage")
	algorithm     = flag.String("algorithm", pipeline.DefaultOpts.Algorithm, "Consensus algorithm")
	execution     = flag.String("execution", pipeline.DefaultOpts.Execution, "Worker execution strategy; 'goroutines' or 'threads'")

	minCoverage    = flag.Int("min-coverage", consensus.DefaultOpts.MinCoverage, "Minimum coverage for a consensus call")
	minConfidence  = flag.Int("min-confidence", consensus.DefaultOpts.MinConfidence, "Minimum confidence for a reported variant")
	noEvidence     = flag.String("no-evidence", consensus.DefaultOpts.NoEvidence.String(), "Consensus base where coverage is too low; 'nocall', 'reference' or 'lowercasereference'")
	errorRate      = flag.Float64("error-rate", consensus.DefaultOpts.ErrorRate, "Assumed per-base error rate")
	maxConfidence  = flag.Int("max-confidence", consensus.DefaultOpts.MaxConfidence, "Upper bound on per-base confidence")
	diploid        = flag.Bool("diploid", consensus.DefaultOpts.Diploid, "Report heterozygous variants")
	minHetCoverage = flag.Int("min-het-coverage", consensus.DefaultOpts.MinHetCoverage, "Minimum reads supporting the second allele of a heterozygous call")
	minHetFraction = flag.Float64("min-het-fraction", consensus.DefaultOpts.MinHetFraction, "Minimum fraction of coverage supporting the second allele of a heterozygous call")
)

func bioConsensusUsage() {
	fmt.Printf("Usage: %s [OPTIONS] -reference fapath bampath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func main() {
	flag.Usage = bioConsensusUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("Expected exactly one positional argument (bampath), got '%s'", strings.Join(flag.Args(), " "))
	}
	if *referencePath == "" {
		log.Fatalf("-reference is required")
	}
	policy, err := consensus.ParseNoEvidencePolicy(*noEvidence)
	if err != nil {
		log.Fatalf("%v", err)
	}
	ctx := vcontext.Background()
	opts := pipeline.DefaultOpts
	opts.BAMPath = flag.Arg(0)
	opts.IndexPath = *indexPath
	opts.ReferencePath = *referencePath
	opts.OutputPaths = splitList(*outputs)
	opts.WindowSize = *windowSize
	opts.Overlap = *overlap
	opts.Workers = *workers
	opts.MaxDepth = *maxDepth
	opts.MinMapQ = *minMapQ
	opts.ExcludeFlags = sam.Flags(*flagExclude)
	opts.Regions = splitList(*regions)
	opts.FancyChunking = *fancyChunking
	opts.Algorithm = *algorithm
	opts.Execution = *execution
	opts.Consensus = consensus.Opts{
		MinCoverage:    *minCoverage,
		MinConfidence:  *minConfidence,
		NoEvidence:     policy,
		ErrorRate:      *errorRate,
		MaxConfidence:  *maxConfidence,
		Diploid:        *diploid,
		MinHetCoverage: *minHetCoverage,
		MinHetFraction: *minHetFraction,
	}
	opts.Command = strings.Join(os.Args, " ")

	if *buildIndex {
		path := opts.IndexPath
		if path == "" {
			path = opts.BAMPath + ".bai"
		}
		if err := bamprovider.BuildIndex(ctx, opts.BAMPath, path); err != nil {
			log.Fatalf("%v", err)
		}
	}
	if err := pipeline.Run(ctx, opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
