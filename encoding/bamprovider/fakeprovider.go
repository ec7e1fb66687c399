package bamprovider

import (
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// fakeProvider is only for unittests. It yields the given records.
type fakeProvider struct {
	header *sam.Header
	recs   []*sam.Record
}

type fakeReader struct {
	recs []*sam.Record
}

type fakeIterator struct {
	recs              []*sam.Record
	rec               *sam.Record
	refID, start, end int
}

// NewFakeProvider creates a provider that returns "header" in response to a
// GetHeader() call, and the records of recs overlapping each Query.
func NewFakeProvider(header *sam.Header, recs []*sam.Record) Provider {
	sorted := make([]*sam.Record, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].Ref.ID(), sorted[j].Ref.ID()
		if ri != rj {
			return ri < rj
		}
		return sorted[i].Pos < sorted[j].Pos
	})
	return &fakeProvider{header, sorted}
}

// GetHeader implements the Provider interface. It returns the header passed to
// the constructor.
func (b *fakeProvider) GetHeader() (*sam.Header, error) {
	return b.header, nil
}

// Validate implements the Provider interface.
func (b *fakeProvider) Validate() error {
	if len(b.header.Refs()) == 0 {
		return errors.E(errors.Precondition, "header names no reference sequences")
	}
	if len(b.recs) == 0 {
		return errors.E(errors.Precondition, "no records")
	}
	return nil
}

// NewReader implements the Provider interface.
func (b *fakeProvider) NewReader() (Reader, error) {
	return &fakeReader{recs: b.recs}, nil
}

// Close implements the Provider interface.
func (b *fakeProvider) Close() error {
	return nil
}

func (r *fakeReader) Query(refID, start, end int) Iterator {
	return &fakeIterator{recs: r.recs, refID: refID, start: start, end: end}
}

func (r *fakeReader) Close() error { return nil }

// Err implements the Iterator interface.
func (i *fakeIterator) Err() error {
	return nil
}

// Close implements the Iterator interface.
func (i *fakeIterator) Close() error {
	return nil
}

func (i *fakeIterator) Scan() bool {
	for len(i.recs) > 0 {
		i.rec = i.recs[0]
		i.recs = i.recs[1:]
		if overlaps(i.rec, i.refID, i.start, i.end) {
			return true
		}
	}
	return false
}

func (i *fakeIterator) Record() *sam.Record {
	// Return a copy so that the code under test cannot alter the
	// original test input data.
	c := *i.rec
	return &c
}
