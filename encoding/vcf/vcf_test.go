package vcf_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/bioconsensus/consensus"
	"github.com/grailbio/bioconsensus/encoding/vcf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seq = []byte("GATTACAGTT")

func TestAlleles(t *testing.T) {
	tests := []struct {
		v        consensus.Variant
		pos      int
		ref, alt string
	}{
		{consensus.Variant{Type: consensus.Substitution, RefStart: 3, RefEnd: 4, RefSeq: "T", ReadSeq1: "A"}, 3, "T", "A"},
		{consensus.Variant{Type: consensus.Insertion, RefStart: 4, RefEnd: 4, ReadSeq1: "GG"}, 3, "T", "TGG"},
		{consensus.Variant{Type: consensus.Insertion, RefStart: 0, RefEnd: 0, ReadSeq1: "C"}, 0, "G", "CG"},
		{consensus.Variant{Type: consensus.Deletion, RefStart: 5, RefEnd: 6, RefSeq: "C"}, 4, "AC", "A"},
		{consensus.Variant{Type: consensus.Deletion, RefStart: 0, RefEnd: 1, RefSeq: "G"}, 0, "GA", "A"},
		{consensus.Variant{Type: consensus.Substitution, RefStart: 3, RefEnd: 4, RefSeq: "T", ReadSeq1: "T", ReadSeq2: "C",
			Zygosity: consensus.Heterozygous}, 3, "T", "C"},
		{consensus.Variant{Type: consensus.Substitution, RefStart: 3, RefEnd: 4, RefSeq: "T", ReadSeq1: "A", ReadSeq2: "C",
			Zygosity: consensus.Heterozygous}, 3, "T", "A,C"},
	}
	for _, tt := range tests {
		pos, ref, alt, err := vcf.Alleles(tt.v, seq)
		require.NoError(t, err, "%v", tt.v)
		assert.Equal(t, tt.pos, pos, "%v", tt.v)
		assert.Equal(t, tt.ref, ref, "%v", tt.v)
		assert.Equal(t, tt.alt, alt, "%v", tt.v)
	}

	_, _, _, err := vcf.Alleles(consensus.Variant{Type: consensus.Deletion, RefStart: 0, RefEnd: 10, RefSeq: string(seq)}, seq)
	assert.Error(t, err)
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := vcf.NewWriter(&buf, vcf.Meta{
		Source:    "bio-consensus",
		Date:      "20200101",
		Reference: "ref.fa",
		Contigs:   []vcf.Contig{{Name: "chr1", Seq: seq}},
	})
	require.NoError(t, err)
	require.NoError(t, w.Write(consensus.Variant{
		Type: consensus.Substitution, RefStart: 3, RefEnd: 4, RefSeq: "T", ReadSeq1: "A", Coverage: 10, Confidence: 39,
	}))
	require.NoError(t, w.Write(consensus.Variant{
		Type: consensus.Deletion, RefStart: 5, RefEnd: 6, RefSeq: "C", Coverage: 9, Confidence: 40,
		Zygosity: consensus.Homozygous,
	}))
	assert.Error(t, w.Write(consensus.Variant{RefID: 1}))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "##fileformat=VCFv4.2", lines[0])
	assert.Contains(t, lines, "##contig=<ID=chr1,length=10>")
	assert.Contains(t, lines, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tSAMPLE")
	n := len(lines)
	assert.Equal(t, "chr1\t4\t.\tT\tA\t39\tPASS\tDP=10\tGT\t1", lines[n-2])
	assert.Equal(t, "chr1\t5\t.\tAC\tA\t40\tPASS\tDP=9\tGT\t1/1", lines[n-1])
}
