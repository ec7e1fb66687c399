package fasta_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/bioconsensus/encoding/fasta"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

var fastaData = ">seq1\n" + "ACGTA\ncgtac\nGT\n" + ">seq2 A viral sequence\r\n" + "ACGT\r\n" + "\n" + "ACGT\n"

func TestGet(t *testing.T) {
	tests := []struct {
		seq   string
		start uint64
		end   uint64
		want  string
		err   bool
	}{
		{"seq1", 1, 2, "C", false},
		{"seq1", 1, 6, "CGTAc", false},
		{"seq1", 0, 12, "ACGTAcgtacGT", false},
		{"seq1", 10, 12, "GT", false},
		{"seq2", 0, 8, "ACGTACGT", false},
		{"seq2", 2, 5, "GTA", false},
		{"seq0", 0, 1, "", true},
		{"seq1", 10, 13, "", true},
		{"seq1", 4, 3, "", true},
	}
	f, err := fasta.New(strings.NewReader(fastaData))
	assert.NoError(t, err)
	for _, tt := range tests {
		got, err := f.Get(tt.seq, tt.start, tt.end)
		expect.EQ(t, err != nil, tt.err, "%s [%d,%d): %v", tt.seq, tt.start, tt.end, err)
		expect.EQ(t, got, tt.want)
	}
	expect.EQ(t, f.SeqNames(), []string{"seq1", "seq2"})
	n, err := f.Len("seq2")
	assert.NoError(t, err)
	expect.EQ(t, n, uint64(8))
}

func TestUpper(t *testing.T) {
	f, err := fasta.New(strings.NewReader(fastaData), fasta.OptUpper)
	assert.NoError(t, err)
	got, err := f.Get("seq1", 0, 12)
	assert.NoError(t, err)
	expect.EQ(t, got, "ACGTACGTACGT")
}

func TestMalformed(t *testing.T) {
	for _, data := range []string{
		"ACGT\n>seq1\nACGT\n",
		">seq1\nACGT\n>seq1\nA\n",
		">\nACGT\n",
	} {
		_, err := fasta.New(strings.NewReader(data))
		expect.NotNil(t, err, data)
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := fasta.NewWriter(&buf, 4)
	assert.NoError(t, w.Write("chr1", []byte("ACGTACGTAC")))
	assert.NoError(t, w.Write("chr2", []byte("ACGT")))
	assert.NoError(t, w.Write("empty", nil))
	expect.EQ(t, buf.String(), ">chr1\nACGT\nACGT\nAC\n>chr2\nACGT\n>empty\n")

	// Round trip through the reader.
	f, err := fasta.New(&buf)
	assert.NoError(t, err)
	got, err := f.Get("chr1", 0, 10)
	assert.NoError(t, err)
	expect.EQ(t, got, "ACGTACGTAC")
}
