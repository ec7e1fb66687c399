package bamprovider

import (
	"github.com/grailbio/hts/sam"
)

// ProviderOpts defines options for NewProvider.
type ProviderOpts struct {
	// Index specifies the name of the BAM index file. If Index=="", it
	// defaults to path + ".bai".
	Index string
}

// Provider gives access to an alignment file. Thread safe.
type Provider interface {
	// GetHeader returns the header of the file. The callee must not modify
	// the returned header object.
	//
	// REQUIRES: Close has not been called.
	GetHeader() (*sam.Header, error)

	// Validate checks that the file can serve windowed queries: it must be
	// coordinate sorted, have an index, name at least one reference and
	// contain at least one record. The error has kind errors.Precondition.
	Validate() error

	// NewReader opens a reader with handles private to the caller. Readers
	// are not thread safe; each worker opens its own.
	//
	// REQUIRES: Close has not been called.
	NewReader() (Reader, error)

	// Close must be called exactly once. It returns any error encountered
	// by the provider, or any reader created by the provider.
	//
	// REQUIRES: All the readers created by NewReader have been closed.
	Close() error
}

// Reader serves range queries. Thread compatible.
type Reader interface {
	// Query returns an iterator over mapped records on reference refID
	// whose aligned span overlaps [start, end). Records are yielded in
	// ascending start position. At most one iterator may be open at a time.
	Query(refID, start, end int) Iterator

	// Close releases the handles of the reader.
	Close() error
}

// Iterator iterates over sam.Records in a particular genomic range, in
// coordinate order. Thread compatible.
type Iterator interface {
	// Scan returns where there are any records remaining in the iterator,
	// and if so, advances the iterator to the next record. If the iterator
	// reaches the end of its range, Scan() returns false.  If an error
	// occurs, Scan() returns false and the error can be retrieved by
	// calling Err().
	Scan() bool

	// Record returns the current record in the iterator. This must be
	// called only after a call to Scan() returns true.
	Record() *sam.Record

	// Err returns the error encoutered during iteration, or nil if no error
	// occurred.  An io.EOF error will be translated to nil.
	Err() error

	// Close must be called exactly once. It returns the value of Err().
	Close() error
}

// NewProvider creates a Provider for the BAM file at path.
func NewProvider(path string, optList ...ProviderOpts) Provider {
	p := &BAMProvider{Path: path}
	for _, o := range optList {
		if o.Index != "" {
			p.Index = o.Index
		}
	}
	return p
}

// overlaps reports whether rec is a mapped record on refID whose aligned
// span intersects [start, end).
func overlaps(rec *sam.Record, refID, start, end int) bool {
	if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil || rec.Ref.ID() != refID {
		return false
	}
	return rec.Pos < end && rec.End() > start
}
