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
	"fmt"

	"github.com/grailbio/base/errors"
)

// Opts holds the options every consensus algorithm understands.
type Opts struct {
	// MinCoverage is the smallest number of reads at a position for which
	// a call is attempted.
	MinCoverage int
	// MinConfidence is the smallest confidence for which a variant is
	// reported.
	MinConfidence int
	// NoEvidence picks the consensus base where coverage is insufficient.
	NoEvidence NoEvidencePolicy
	// ErrorRate is the assumed per-base error rate.
	ErrorRate float64
	// MaxConfidence caps per-position confidence.
	MaxConfidence int
	// Diploid enables heterozygous calls.
	Diploid bool
	// MinHetCoverage is the minimum count of the second allele for a
	// heterozygous call.
	MinHetCoverage int
	// MinHetFraction is the minimum fraction of coverage the second allele
	// must have for a heterozygous call.
	MinHetFraction float64
}

// DefaultOpts is the default algorithm configuration.
var DefaultOpts = Opts{
	MinCoverage:    5,
	MinConfidence:  40,
	NoEvidence:     NoCall,
	ErrorRate:      0.15,
	MaxConfidence:  40,
	MinHetCoverage: 5,
	MinHetFraction: 0.25,
}

// Validate checks option ranges.
func (o Opts) Validate() error {
	switch {
	case o.MinCoverage < 0:
		return errors.E(errors.Invalid, fmt.Sprintf("min coverage %d must be nonnegative", o.MinCoverage))
	case o.MinConfidence < 0 || o.MinConfidence > MaxQV:
		return errors.E(errors.Invalid, fmt.Sprintf("min confidence %d must be in [0,%d]", o.MinConfidence, MaxQV))
	case o.ErrorRate <= 0 || o.ErrorRate >= 1:
		return errors.E(errors.Invalid, fmt.Sprintf("error rate %v must be in (0,1)", o.ErrorRate))
	case o.MaxConfidence <= 0 || o.MaxConfidence > MaxQV:
		return errors.E(errors.Invalid, fmt.Sprintf("max confidence %d must be in (0,%d]", o.MaxConfidence, MaxQV))
	case o.MinHetFraction < 0 || o.MinHetFraction > 1:
		return errors.E(errors.Invalid, fmt.Sprintf("min het fraction %v must be in [0,1]", o.MinHetFraction))
	}
	return nil
}
