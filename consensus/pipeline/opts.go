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
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bioconsensus/consensus"
	"github.com/grailbio/hts/sam"
)

// Opts configures a run. It is built once by the caller and never
// modified afterwards.
type Opts struct {
	// BAMPath is the coordinate-sorted alignment file.
	BAMPath string
	// IndexPath is its BAI index. If empty, BAMPath + ".bai".
	IndexPath string
	// ReferencePath is the FASTA reference, optionally compressed.
	ReferencePath string
	// OutputPaths lists the outputs; see consensus/output for formats.
	OutputPaths []string

	// WindowSize is the reference stride of the scheduler.
	WindowSize int
	// Overlap pads interior window boundaries.
	Overlap int
	// Workers is the number of workers. 0 means one per CPU.
	Workers int
	// MaxDepth caps the reads used per chunk. 0 means no cap.
	MaxDepth int
	// MinMapQ drops reads with lower mapping quality.
	MinMapQ int
	// ExcludeFlags drops reads with any of these flags set.
	ExcludeFlags sam.Flags
	// Regions restricts the run to "chr", "chr:start-end" regions, at most
	// one per contig. Empty means every contig of the header.
	Regions []string
	// FancyChunking widens windows so that none lies entirely in a region
	// without coverage.
	FancyChunking bool

	// Algorithm names a registered consensus algorithm.
	Algorithm string
	// Execution names the worker execution strategy.
	Execution string
	Consensus consensus.Opts

	// Command is recorded in output headers.
	Command string
}

// DefaultOpts is the default run configuration.
var DefaultOpts = Opts{
	WindowSize:    500,
	Overlap:       5,
	MaxDepth:      100,
	MinMapQ:       10,
	ExcludeFlags:  sam.Secondary | sam.QCFail | sam.Duplicate,
	FancyChunking: true,
	Algorithm:     "plurality",
	Execution:     Goroutines.Name(),
	Consensus:     consensus.DefaultOpts,
}

// Validate checks the options that can be checked without touching any
// file.
func (o Opts) Validate() error {
	switch {
	case o.BAMPath == "":
		return errors.E(errors.Invalid, "no alignment file given")
	case o.ReferencePath == "":
		return errors.E(errors.Invalid, "no reference given")
	case len(o.OutputPaths) == 0:
		return errors.E(errors.Invalid, "no output given")
	case o.WindowSize <= 0:
		return errors.E(errors.Invalid, fmt.Sprintf("window size %d must be positive", o.WindowSize))
	case o.Overlap < 0:
		return errors.E(errors.Invalid, fmt.Sprintf("overlap %d must be nonnegative", o.Overlap))
	case o.Workers < 0:
		return errors.E(errors.Invalid, fmt.Sprintf("worker count %d must be nonnegative", o.Workers))
	case o.MaxDepth < 0:
		return errors.E(errors.Invalid, fmt.Sprintf("max depth %d must be nonnegative", o.MaxDepth))
	}
	if _, err := ParseExecution(o.Execution); err != nil {
		return err
	}
	return o.Consensus.Validate()
}
