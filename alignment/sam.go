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

package alignment

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// missingQual is the QUAL value BAM stores when qualities are absent.
const missingQual = 0xff

// softClips returns the number of soft-clipped bases at the left and right
// ends of cigar, in genomic order.
func softClips(cigar sam.Cigar) (left, right int) {
	i := 0
	for ; i < len(cigar) && cigar[i].Type() == sam.CigarHardClipped; i++ {
	}
	if i < len(cigar) && cigar[i].Type() == sam.CigarSoftClipped {
		left = cigar[i].Len()
	}
	j := len(cigar) - 1
	for ; j > i && cigar[j].Type() == sam.CigarHardClipped; j-- {
	}
	if j > i && cigar[j].Type() == sam.CigarSoftClipped {
		right = cigar[j].Len()
	}
	return left, right
}

// FromSAM converts a mapped BAM record.
//
// BAM stores SEQ, QUAL and the cigar along the forward strand; reverse-strand
// records are flipped to native orientation here. Per-base aux fields whose
// length matches the read become channels named by their tag: Z strings are
// decoded as phred+33, B arrays of uint8 are copied.
func FromSAM(rec *sam.Record) (*Record, error) {
	if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil || rec.Pos < 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("%s: unmapped record", rec.Name))
	}
	genomicOps, err := UnrollOperations(rec.Cigar)
	if err != nil {
		return nil, errors.E(err, rec.Name)
	}
	reverse := rec.Flags&sam.Reverse != 0
	readLen := rec.Seq.Length
	left, right := softClips(rec.Cigar)

	r := &Record{
		Name:     rec.Name,
		RefID:    rec.Ref.ID(),
		RefStart: rec.Pos,
		Reverse:  reverse,
		MapQ:     int(rec.MapQ),
		Ops:      Reorient(genomicOps, reverse, Genomic, Native),
		Channels: make(map[string][]byte),
	}
	r.RefEnd = r.RefStart + countOps(genomicOps, Op.advancesRef)
	if reverse {
		r.ReadStart, r.ReadEnd = right, readLen-left
	} else {
		r.ReadStart, r.ReadEnd = left, readLen-right
	}

	flip := func(b []byte) []byte {
		if reverse {
			return reverseBytes(b)
		}
		return append([]byte(nil), b...)
	}
	bases := rec.Seq.Expand()
	if reverse {
		bases = ReverseComplement(bases)
	}
	r.Channels[BaseChannel] = bases
	if len(rec.Qual) == readLen && (readLen == 0 || rec.Qual[0] != missingQual) {
		r.Channels[QualChannel] = flip(rec.Qual)
	}
	for _, aux := range rec.AuxFields {
		name := aux.Tag().String()
		switch aux.Type() {
		case 'Z':
			s, ok := aux.Value().(string)
			if !ok || len(s) != readLen {
				continue
			}
			values := make([]byte, len(s))
			for i := 0; i < len(s); i++ {
				if s[i] < 33 {
					return nil, errors.E(errors.Invalid, fmt.Sprintf("%s: aux %s has byte %d below phred+33 range at %d", rec.Name, name, s[i], i))
				}
				values[i] = s[i] - 33
			}
			r.Channels[name] = flip(values)
		case 'B':
			values, ok := aux.Value().([]uint8)
			if !ok || len(values) != readLen {
				continue
			}
			r.Channels[name] = flip(values)
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
