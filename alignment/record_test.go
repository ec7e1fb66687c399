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
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func opsOf(s string) []Op {
	ops := make([]Op, len(s))
	for i := range s {
		ops[i] = Op(s[i])
	}
	return ops
}

func opsString(ops []Op) string {
	b := make([]byte, len(ops))
	for i, op := range ops {
		b[i] = byte(op)
	}
	return string(b)
}

// forwardRecord aligns ACGTAC to [10,16) with ops MMIMDMM.
func forwardRecord(t *testing.T) *Record {
	r := &Record{
		Name:      "fwd",
		RefStart:  10,
		RefEnd:    16,
		ReadStart: 0,
		ReadEnd:   6,
		Ops:       opsOf("MMIMDMM"),
		Channels:  map[string][]byte{BaseChannel: []byte("ACGTAC")},
	}
	assert.NoError(t, r.Validate())
	return r
}

// reverseRecord aligns native read ACGGAC to [10,16). The genomic ops are
// MMDMIMM.
func reverseRecord(t *testing.T) *Record {
	r := &Record{
		Name:      "rev",
		RefStart:  10,
		RefEnd:    16,
		ReadStart: 0,
		ReadEnd:   6,
		Reverse:   true,
		Ops:       opsOf("MMIMDMM"),
		Channels: map[string][]byte{
			BaseChannel: []byte("ACGGAC"),
			QualChannel: {30, 31, 32, 33, 34, 35},
		},
	}
	assert.NoError(t, r.Validate())
	return r
}

func TestUnrollOperations(t *testing.T) {
	cigar := sam.Cigar{
		sam.NewCigarOp(sam.CigarHardClipped, 2),
		sam.NewCigarOp(sam.CigarSoftClipped, 3),
		sam.NewCigarOp(sam.CigarMatch, 2),
		sam.NewCigarOp(sam.CigarInsertion, 1),
		sam.NewCigarOp(sam.CigarEqual, 1),
		sam.NewCigarOp(sam.CigarDeletion, 2),
		sam.NewCigarOp(sam.CigarMismatch, 1),
		sam.NewCigarOp(sam.CigarSkipped, 1),
		sam.NewCigarOp(sam.CigarMatch, 1),
		sam.NewCigarOp(sam.CigarSoftClipped, 1),
		sam.NewCigarOp(sam.CigarHardClipped, 4),
	}
	ops, err := UnrollOperations(cigar)
	assert.NoError(t, err)
	expect.EQ(t, opsString(ops), "MMIMDDMDM")

	_, err = UnrollOperations(sam.Cigar{
		sam.NewCigarOp(sam.CigarMatch, 2),
		sam.NewCigarOp(sam.CigarHardClipped, 1),
		sam.NewCigarOp(sam.CigarMatch, 2),
	})
	expect.NotNil(t, err)
}

func TestOrientRoundTrip(t *testing.T) {
	ops := opsOf("MMIMDDMIM")
	for _, reverse := range []bool{false, true} {
		genomic := Orient(ops, reverse, Genomic)
		expect.EQ(t, opsString(Reorient(genomic, reverse, Genomic, Native)), opsString(ops))
		expect.EQ(t, opsString(Orient(ops, reverse, Native)), opsString(ops))
	}
	expect.EQ(t, opsString(Orient(ops, true, Genomic)), "MIMDDMIMM")
	expect.EQ(t, opsString(Orient(ops, false, Genomic)), opsString(ops))
}

func TestPositions(t *testing.T) {
	fwd := forwardRecord(t)
	expect.EQ(t, fwd.ReferencePositions(true, Genomic), []int{10, 11, 12, 12, 13, 14, 15})
	expect.EQ(t, fwd.ReadPositions(true, Genomic), []int{0, 1, 2, 3, 4, 4, 5})
	expect.EQ(t, fwd.ReferencePositions(false, Genomic), []int{10, 11, 12, 12, 14, 15})
	expect.EQ(t, fwd.ReadPositions(false, Genomic), []int{0, 1, 3, 4, 4, 5})

	rev := reverseRecord(t)
	expect.EQ(t, rev.ReferencePositions(true, Genomic), []int{10, 11, 12, 13, 14, 14, 15})
	expect.EQ(t, rev.ReadPositions(true, Genomic), []int{5, 4, 3, 3, 2, 1, 0})
	expect.EQ(t, rev.ReferencePositions(true, Native), []int{15, 14, 13, 13, 12, 11, 10})
	expect.EQ(t, rev.ReadPositions(true, Native), []int{0, 1, 2, 3, 4, 4, 5})
}

func TestClippedToForward(t *testing.T) {
	fwd := forwardRecord(t)
	c, err := fwd.ClippedTo(12, 14)
	assert.NoError(t, err)
	expect.EQ(t, c.RefStart, 12)
	expect.EQ(t, c.RefEnd, 14)
	expect.EQ(t, c.ReadStart, 3)
	expect.EQ(t, c.ReadEnd, 4)
	expect.EQ(t, opsString(c.Ops), "MD")
	bases, err := c.Read(true, Genomic)
	assert.NoError(t, err)
	expect.EQ(t, string(bases), "T-")

	// The interval is intersected with the alignment span.
	c, err = fwd.ClippedTo(0, 12)
	assert.NoError(t, err)
	expect.EQ(t, c.RefStart, 10)
	expect.EQ(t, c.RefEnd, 12)
	expect.EQ(t, opsString(c.Ops), "MM")
	bases, err = c.Read(false, Genomic)
	assert.NoError(t, err)
	expect.EQ(t, string(bases), "AC")

	// The original is untouched.
	expect.EQ(t, opsString(fwd.Ops), "MMIMDMM")
	expect.EQ(t, fwd.ReadEnd, 6)
}

func TestClippedToReverse(t *testing.T) {
	rev := reverseRecord(t)
	c, err := rev.ClippedTo(11, 14)
	assert.NoError(t, err)
	expect.EQ(t, c.ReadStart, 3)
	expect.EQ(t, c.ReadEnd, 5)
	expect.EQ(t, opsString(c.Ops), "MDM")

	native, err := c.Read(false, Native)
	assert.NoError(t, err)
	expect.EQ(t, string(native), "GA")
	genomic, err := c.Read(true, Genomic)
	assert.NoError(t, err)
	expect.EQ(t, string(genomic), "T-C")
	quals, err := c.ExtractChannel(QualChannel, true, Genomic)
	assert.NoError(t, err)
	expect.EQ(t, quals, []byte{34, 0, 33})
}

func TestClippedToTrailingInsertion(t *testing.T) {
	for _, reverse := range []bool{false, true} {
		ops := "MMMI"
		if reverse {
			ops = "IMMM"
		}
		r := &Record{
			Name:      "ins",
			RefStart:  10,
			RefEnd:    13,
			ReadStart: 0,
			ReadEnd:   4,
			Reverse:   reverse,
			Ops:       opsOf(ops),
			Channels:  map[string][]byte{BaseChannel: []byte("ACGT")},
		}
		assert.NoError(t, r.Validate())

		c, err := r.ClippedTo(0, 100)
		assert.NoError(t, err)
		expect.EQ(t, opsString(c.OrientedOps(Genomic)), "MMMI", "reverse=%v", reverse)
		expect.EQ(t, c.ReadEnd-c.ReadStart, 4)

		c, err = r.ClippedTo(11, 13)
		assert.NoError(t, err)
		expect.EQ(t, opsString(c.OrientedOps(Genomic)), "MMI", "reverse=%v", reverse)
		expect.EQ(t, c.ReadEnd-c.ReadStart, 3)

		// An interior end still leaves the insertion out.
		c, err = r.ClippedTo(10, 12)
		assert.NoError(t, err)
		expect.EQ(t, opsString(c.OrientedOps(Genomic)), "MM", "reverse=%v", reverse)
		expect.EQ(t, c.ReadEnd-c.ReadStart, 2)
	}
}

func TestClippedToRange(t *testing.T) {
	fwd := forwardRecord(t)
	for _, tc := range []struct{ start, end int }{
		{12, 12},
		{14, 13},
		{16, 20},
		{0, 10},
	} {
		_, err := fwd.ClippedTo(tc.start, tc.end)
		expect.True(t, IsRangeError(err), "clip [%d,%d)", tc.start, tc.end)
	}
}

func TestClipInvariant(t *testing.T) {
	for _, r := range []*Record{forwardRecord(t), reverseRecord(t)} {
		for a := 8; a < 17; a++ {
			for b := a + 1; b < 19; b++ {
				c, err := r.ClippedTo(a, b)
				if b <= r.RefStart || a >= r.RefEnd {
					expect.True(t, IsRangeError(err))
					continue
				}
				assert.NoError(t, err, "%v [%d,%d)", r, a, b)
				expect.EQ(t, countOps(c.Ops, Op.advancesRead), c.ReadEnd-c.ReadStart)
				expect.NoError(t, c.Validate())
			}
		}
	}
}

func TestGapify(t *testing.T) {
	out, err := Gapify([]byte("ACG"), opsOf("MIDM"), Deletion, '-')
	assert.NoError(t, err)
	expect.EQ(t, string(out), "AC-G")
	out, err = Gapify([]byte("AGT"), opsOf("MIDM"), Insertion, '-')
	assert.NoError(t, err)
	expect.EQ(t, string(out), "A-GT")

	_, err = Gapify([]byte("A"), opsOf("MM"), Deletion, '-')
	expect.True(t, IsInvariantViolation(err))
}

func TestReference(t *testing.T) {
	refSeq := []byte("NNNNNNNNNNGATTACAGTT")
	fwd := forwardRecord(t)
	view, err := fwd.Reference(refSeq, true, Genomic)
	assert.NoError(t, err)
	expect.EQ(t, string(view), "GA-TTAC")

	rev := reverseRecord(t)
	view, err = rev.Reference(refSeq, false, Native)
	assert.NoError(t, err)
	expect.EQ(t, string(view), "GTAATC")
}

func TestFromSAM(t *testing.T) {
	ref, err := sam.NewReference("chr1", "", "", 100, nil, nil)
	assert.NoError(t, err)
	_, err = sam.NewHeader(nil, []*sam.Reference{ref})
	assert.NoError(t, err)
	cigar := []sam.CigarOp{
		sam.NewCigarOp(sam.CigarSoftClipped, 2),
		sam.NewCigarOp(sam.CigarMatch, 3),
		sam.NewCigarOp(sam.CigarInsertion, 1),
		sam.NewCigarOp(sam.CigarMatch, 2),
		sam.NewCigarOp(sam.CigarSoftClipped, 1),
	}
	qual := []byte{10, 11, 12, 13, 14, 15, 16, 17, 18}
	tagged, err := sam.NewAux(sam.NewTag("XQ"), "!\"#$%&'()")
	assert.NoError(t, err)
	rec, err := sam.NewRecord("r1", ref, nil, 20, -1, 0, 60, cigar, []byte("GGACGTTCA"), qual, []sam.Aux{tagged})
	assert.NoError(t, err)
	rec.Flags = sam.Reverse

	r, err := FromSAM(rec)
	assert.NoError(t, err)
	expect.True(t, r.Reverse)
	expect.EQ(t, r.RefStart, 20)
	expect.EQ(t, r.RefEnd, 25)
	expect.EQ(t, r.ReadStart, 1)
	expect.EQ(t, r.ReadEnd, 7)
	expect.EQ(t, r.MapQ, 60)
	expect.EQ(t, opsString(r.Ops), "MMIMMM")
	expect.EQ(t, string(r.Channels[BaseChannel]), "TGAACGTCC")

	genomic, err := r.Read(false, Genomic)
	assert.NoError(t, err)
	expect.EQ(t, string(genomic), "ACGTTC")
	native, err := r.Read(false, Native)
	assert.NoError(t, err)
	expect.EQ(t, string(native), "GAACGT")
	quals, err := r.ExtractChannel(QualChannel, false, Genomic)
	assert.NoError(t, err)
	expect.EQ(t, quals, []byte{12, 13, 14, 15, 16, 17})
	aux, err := r.ExtractChannel("XQ", false, Genomic)
	assert.NoError(t, err)
	expect.EQ(t, aux, []byte{2, 3, 4, 5, 6, 7})

	_, err = r.ExtractChannel("ZZ", false, Genomic)
	expect.NotNil(t, err)
}

func TestFromSAMBadAux(t *testing.T) {
	ref, err := sam.NewReference("chr1", "", "", 100, nil, nil)
	assert.NoError(t, err)
	_, err = sam.NewHeader(nil, []*sam.Reference{ref})
	assert.NoError(t, err)
	tagged, err := sam.NewAux(sam.NewTag("XQ"), "!! !")
	assert.NoError(t, err)
	rec, err := sam.NewRecord("r1", ref, nil, 20, -1, 0, 60,
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 4)}, []byte("ACGT"), []byte{30, 30, 30, 30}, []sam.Aux{tagged})
	assert.NoError(t, err)
	_, err = FromSAM(rec)
	assert.NotNil(t, err)
	expect.True(t, IsRangeError(err))
}
