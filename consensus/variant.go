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
	"math"
	"sort"
)

// VariantType is the kind of a Variant.
type VariantType int

const (
	Substitution VariantType = iota
	Insertion
	Deletion
)

func (t VariantType) String() string {
	switch t {
	case Substitution:
		return "substitution"
	case Insertion:
		return "insertion"
	case Deletion:
		return "deletion"
	}
	return fmt.Sprintf("VariantType(%d)", int(t))
}

// Zygosity is only set by diploid callers.
type Zygosity int

const (
	ZygosityUnknown Zygosity = iota
	Homozygous
	Heterozygous
)

func (z Zygosity) String() string {
	switch z {
	case Homozygous:
		return "homozygous"
	case Heterozygous:
		return "heterozygous"
	}
	return ""
}

// Variant is a difference between the consensus and the reference.
//
// [RefStart, RefEnd) is empty for insertions, which sit immediately before
// RefStart. ReadSeq2 and Frequency2 describe the second allele of a
// heterozygous call.
type Variant struct {
	Type       VariantType
	RefID      int
	RefStart   int
	RefEnd     int
	RefSeq     string
	ReadSeq1   string
	ReadSeq2   string
	Coverage   int
	Confidence int
	Frequency1 int
	Frequency2 int
	Zygosity   Zygosity
}

func (v Variant) String() string {
	return fmt.Sprintf("%v %d:%d-%d %q>%q cov=%d conf=%d", v.Type, v.RefID, v.RefStart, v.RefEnd,
		v.RefSeq, v.ReadSeq1, v.Coverage, v.Confidence)
}

// SortVariants orders variants by contig, then reference start, then end.
func SortVariants(v []Variant) {
	sort.SliceStable(v, func(i, j int) bool {
		if v[i].RefID != v[j].RefID {
			return v[i].RefID < v[j].RefID
		}
		if v[i].RefStart != v[j].RefStart {
			return v[i].RefStart < v[j].RefStart
		}
		return v[i].RefEnd < v[j].RefEnd
	})
}

// MaxQV is the largest phred value this package produces.
const MaxQV = 93

// Phred converts an error probability to a phred-scaled quality, rounded
// to the nearest integer and capped at MaxQV. A zero probability maps to
// MaxQV.
func Phred(errProb float64) int {
	if errProb <= 0 {
		return MaxQV
	}
	qv := math.Round(-10 * math.Log10(errProb))
	if qv > MaxQV {
		return MaxQV
	}
	if qv < 0 {
		return 0
	}
	return int(qv)
}
