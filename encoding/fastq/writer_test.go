package fastq_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/grailbio/bioconsensus/encoding/fastq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeQuality(t *testing.T) {
	assert.Equal(t, "!+I~~", fastq.EncodeQuality([]uint8{0, 10, 40, 93, 255}))
	assert.Equal(t, "", fastq.EncodeQuality(nil))
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := fastq.NewWriter(&buf)
	require.NoError(t, w.Write(&fastq.Read{ID: "chr1", Seq: "ACGT", Qual: "IIII"}))
	require.NoError(t, w.Write(&fastq.Read{ID: "chr2", Seq: "A", Unk: "chr2", Qual: "!"}))
	// An ID that starts with '@' keeps it.
	require.NoError(t, w.Write(&fastq.Read{ID: "@x", Seq: "C", Qual: "#"}))
	assert.Equal(t, "@chr1\nACGT\n+\nIIII\n@chr2\nA\n+chr2\n!\n@@x\nC\n+\n#\n", buf.String())
}

type failWriter struct{ n int }

func (f *failWriter) Write(p []byte) (int, error) {
	f.n++
	return 0, errors.New("disk full")
}

func TestWriterStickyError(t *testing.T) {
	fw := &failWriter{}
	w := fastq.NewWriter(fw)
	assert.Error(t, w.Write(&fastq.Read{ID: "r", Seq: "A", Qual: "!"}))
	assert.Error(t, w.Write(&fastq.Read{ID: "r", Seq: "A", Qual: "!"}))
	assert.Equal(t, 1, fw.n)
}
