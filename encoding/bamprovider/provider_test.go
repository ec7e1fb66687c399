package bamprovider_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bioconsensus/encoding/bamprovider"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func newHeader(t *testing.T, sorted bool) *sam.Header {
	chr1, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	assert.NoError(t, err)
	chr2, err := sam.NewReference("chr2", "", "", 500, nil, nil)
	assert.NoError(t, err)
	chr3, err := sam.NewReference("chr3", "", "", 300, nil, nil)
	assert.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{chr1, chr2, chr3})
	assert.NoError(t, err)
	h.Version = "1.6"
	if sorted {
		h.SortOrder = sam.Coordinate
	}
	return h
}

func newRecord(t *testing.T, name string, ref *sam.Reference, pos, length int) *sam.Record {
	seq := bytes.Repeat([]byte("A"), length)
	qual := bytes.Repeat([]byte{30}, length)
	rec, err := sam.NewRecord(name, ref, nil, pos, -1, 0, 60,
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, length)}, seq, qual, nil)
	assert.NoError(t, err)
	return rec
}

func testRecords(t *testing.T, h *sam.Header) []*sam.Record {
	chr1, chr2 := h.Refs()[0], h.Refs()[1]
	return []*sam.Record{
		newRecord(t, "a", chr1, 10, 50),
		newRecord(t, "b", chr1, 40, 50),
		newRecord(t, "c", chr1, 100, 50),
		newRecord(t, "d", chr1, 900, 100),
		newRecord(t, "e", chr2, 0, 20),
	}
}

func names(t *testing.T, iter bamprovider.Iterator) []string {
	var n []string
	for iter.Scan() {
		n = append(n, iter.Record().Name)
	}
	assert.NoError(t, iter.Close())
	return n
}

func testQueries(t *testing.T, p bamprovider.Provider) {
	r, err := p.NewReader()
	assert.NoError(t, err)
	expect.EQ(t, names(t, r.Query(0, 0, 1000)), []string{"a", "b", "c", "d"})
	// a covers [10,60).
	expect.EQ(t, names(t, r.Query(0, 55, 100)), []string{"a", "b"})
	expect.EQ(t, names(t, r.Query(0, 60, 100)), []string{"b"})
	expect.EQ(t, names(t, r.Query(0, 60, 101)), []string{"b", "c"})
	// A read ending exactly at the window start does not overlap it.
	expect.EQ(t, names(t, r.Query(0, 90, 100)), []string(nil))
	expect.EQ(t, names(t, r.Query(0, 300, 800)), []string(nil))
	expect.EQ(t, names(t, r.Query(1, 0, 500)), []string{"e"})
	// chr3 has no reads.
	expect.EQ(t, names(t, r.Query(2, 0, 300)), []string(nil))
	expect.EQ(t, names(t, r.Query(2, 100, 200)), []string(nil))
	// Queries on the same reader may go backwards.
	expect.EQ(t, names(t, r.Query(0, 0, 20)), []string{"a"})
	assert.NoError(t, r.Close())
}

func TestBAMProvider(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()
	h := newHeader(t, true)
	path := filepath.Join(tempDir, "test.bam")
	assert.NoError(t, bamprovider.WriteIndexed(ctx, path, h, testRecords(t, h)))

	p := bamprovider.NewProvider(path)
	expect.NoError(t, p.Validate())
	header, err := p.GetHeader()
	assert.NoError(t, err)
	expect.EQ(t, len(header.Refs()), 3)
	testQueries(t, p)
	assert.NoError(t, p.Close())
}

func TestFakeProvider(t *testing.T) {
	h := newHeader(t, true)
	recs := testRecords(t, h)
	// Input order does not matter to the fake.
	recs[0], recs[4] = recs[4], recs[0]
	p := bamprovider.NewFakeProvider(h, recs)
	expect.NoError(t, p.Validate())
	testQueries(t, p)
	assert.NoError(t, p.Close())
}

func TestValidate(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	unsorted := newHeader(t, false)
	path := filepath.Join(tempDir, "unsorted.bam")
	// The BAM is written but indexing refuses unsorted input.
	expect.NotNil(t, bamprovider.WriteIndexed(ctx, path, unsorted, testRecords(t, unsorted)))
	err := bamprovider.NewProvider(path).Validate()
	assert.NotNil(t, err)
	expect.True(t, errors.Is(errors.Precondition, err))

	sorted := newHeader(t, true)
	path = filepath.Join(tempDir, "noindex.bam")
	assert.NoError(t, bamprovider.WriteIndexed(ctx, path, sorted, testRecords(t, sorted)))
	assert.NoError(t, os.Remove(path+".bai"))
	err = bamprovider.NewProvider(path).Validate()
	assert.NotNil(t, err)
	expect.True(t, errors.Is(errors.Precondition, err))

	path = filepath.Join(tempDir, "empty.bam")
	assert.NoError(t, bamprovider.WriteIndexed(ctx, path, sorted, nil))
	err = bamprovider.NewProvider(path).Validate()
	assert.NotNil(t, err)
	expect.True(t, errors.Is(errors.Precondition, err))

	// An explicit index path overrides the default.
	path = filepath.Join(tempDir, "moved.bam")
	assert.NoError(t, bamprovider.WriteIndexed(ctx, path, sorted, testRecords(t, sorted)))
	moved := filepath.Join(tempDir, "moved.index")
	assert.NoError(t, os.Rename(path+".bai", moved))
	expect.NoError(t, bamprovider.NewProvider(path, bamprovider.ProviderOpts{Index: moved}).Validate())
}
