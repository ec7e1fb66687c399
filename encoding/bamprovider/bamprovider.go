package bamprovider

import (
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/hts/bgzf/index"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// BAMProvider implements Provider for BAM files.  Both BAM and the index
// filenames are allowed to be S3 URLs, in which case the data will be read from
// S3. Otherwise the data will be read from the local filesystem.
type BAMProvider struct {
	// Path of the *.bam file. Must be nonempty.
	Path string
	// Index is the pathname of *.bam.bai file. If "", Path + ".bai"
	Index string
	err   errors.Once

	mu      sync.Mutex
	nActive int
	header  *sam.Header
}

type bamReader struct {
	provider *BAMProvider
	in       file.File
	reader   *bam.Reader
	index    *bam.Index
	iter     bamIterator
	closed   bool
}

type bamIterator struct {
	reader            *bam.Reader
	refID, start, end int

	err  error
	next *sam.Record
}

// IndexPath returns the path of the index file.
func (b *BAMProvider) IndexPath() string {
	index := b.Index
	if index == "" {
		index = b.Path + ".bai"
	}
	return index
}

// GetHeader implements the Provider interface.
func (b *BAMProvider) GetHeader() (*sam.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.header != nil {
		return b.header, nil
	}

	ctx := vcontext.Background()
	reader, err := file.Open(ctx, b.Path)
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	defer reader.Close(ctx) // nolint: errcheck
	bamReader, err := bam.NewReader(reader.Reader(ctx), 1)
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	defer bamReader.Close() // nolint: errcheck
	b.header = bamReader.Header()
	return b.header, nil
}

// Validate implements the Provider interface.
func (b *BAMProvider) Validate() error {
	header, err := b.GetHeader()
	if err != nil {
		return errors.E(errors.Precondition, err, "reading header of", b.Path)
	}
	if header.SortOrder != sam.Coordinate {
		return errors.E(errors.Precondition, b.Path, "is not coordinate sorted (sort order", header.SortOrder.String()+")")
	}
	if len(header.Refs()) == 0 {
		return errors.E(errors.Precondition, b.Path, "names no reference sequences")
	}
	r, err := b.NewReader()
	if err != nil {
		return errors.E(errors.Precondition, err, "opening", b.Path, "for indexed reads")
	}
	br := r.(*bamReader)
	_, readErr := br.reader.Read()
	if err := r.Close(); err != nil {
		return errors.E(errors.Precondition, err)
	}
	if readErr == io.EOF {
		return errors.E(errors.Precondition, b.Path, "contains no records")
	}
	if readErr != nil {
		return errors.E(errors.Precondition, readErr, "reading first record of", b.Path)
	}
	return nil
}

// NewReader implements the Provider interface.
func (b *BAMProvider) NewReader() (Reader, error) {
	r := &bamReader{provider: b}
	ctx := vcontext.Background()
	var err error
	if r.in, err = file.Open(ctx, b.Path); err != nil {
		return nil, err
	}
	indexIn, err := file.Open(ctx, b.IndexPath())
	if err != nil {
		r.in.Close(ctx) // nolint: errcheck
		return nil, err
	}
	defer indexIn.Close(ctx) // nolint: errcheck
	if r.index, err = bam.ReadIndex(indexIn.Reader(ctx)); err != nil {
		r.in.Close(ctx) // nolint: errcheck
		return nil, errors.E(errors.Invalid, err, "reading index", b.IndexPath())
	}
	if r.reader, err = bam.NewReader(r.in.Reader(ctx), 1); err != nil {
		r.in.Close(ctx) // nolint: errcheck
		return nil, err
	}
	b.mu.Lock()
	b.nActive++
	b.mu.Unlock()
	return r, nil
}

// Close implements the Provider interface.
func (b *BAMProvider) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nActive > 0 {
		vlog.Fatalf("%d readers still active for %+v", b.nActive, b.Path)
	}
	return b.err.Err()
}

// Query implements the Reader interface.
func (r *bamReader) Query(refID, start, end int) Iterator {
	if r.closed {
		vlog.Fatal("Query on closed reader")
	}
	refs := r.reader.Header().Refs()
	if refID < 0 || refID >= len(refs) {
		return NewErrorIterator(errors.E(errors.Invalid, "reference id out of range:", refID))
	}
	if start >= end {
		return NewErrorIterator(nil)
	}
	found, offset, err := r.findRecordOffset(refs[refID], start, end)
	if err != nil {
		return NewErrorIterator(err)
	}
	if !found {
		return NewErrorIterator(nil)
	}
	if err := r.reader.Seek(offset); err != nil {
		return NewErrorIterator(err)
	}
	vlog.VI(2).Infof("%v: query %d:%d-%d from offset %+v", r.provider.Path, refID, start, end, offset)
	r.iter = bamIterator{reader: r.reader, refID: refID, start: start, end: end}
	return &r.iter
}

// Find the the file offset at which the first record overlapping <ref,pos> is
// stored. This function is conservative; it may return an offset that's smaller
// than absolutely necessary.
func (r *bamReader) findRecordOffset(ref *sam.Reference, startPos, endPos int) (bool, bgzf.Offset, error) {
	chunks, err := r.index.Chunks(ref, startPos, endPos)
	if err == index.ErrInvalid || err == index.ErrNoReference || (err == nil && len(chunks) == 0) {
		// No reads for this interval. A reference with no records at all has
		// no index entry and reports ErrNoReference.
		return false, bgzf.Offset{}, nil
	}
	if err != nil {
		return false, bgzf.Offset{}, err
	}
	return true, chunks[0].Begin, nil
}

// Close implements the Reader interface.
func (r *bamReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.reader.Close()
	if e := r.in.Close(vcontext.Background()); e != nil && err == nil {
		err = e
	}
	r.provider.err.Set(err)
	r.provider.mu.Lock()
	r.provider.nActive--
	r.provider.mu.Unlock()
	return err
}

func (i *bamIterator) Scan() bool {
	if i.err != nil {
		return false
	}
	for {
		i.next, i.err = i.reader.Read()
		if i.err != nil {
			return false
		}
		rec := i.next
		if rec.Ref == nil || rec.Ref.ID() > i.refID || (rec.Ref.ID() == i.refID && rec.Pos >= i.end) {
			i.err = io.EOF
			return false
		}
		if overlaps(rec, i.refID, i.start, i.end) {
			return true
		}
	}
}

func (i *bamIterator) Record() *sam.Record {
	return i.next
}

// Err implements the Iterator interface.
func (i *bamIterator) Err() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

// Close implements the Iterator interface.
func (i *bamIterator) Close() error {
	return i.Err()
}
