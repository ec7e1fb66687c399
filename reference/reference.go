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

// Package reference loads the reference contigs named by an alignment
// header and cross-checks them against it.
package reference

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/bioconsensus/encoding/fasta"
	"github.com/grailbio/hts/sam"
)

// Contig is one reference sequence. ID is the index of the contig in the
// alignment header.
type Contig struct {
	ID   int
	Name string
	Len  int
	// Seq is upper-cased.
	Seq []byte
	MD5 [md5.Size]byte
}

// Checksum returns the hex-encoded MD5 of the sequence, as found in the
// M5 field of a SAM @SQ line.
func (c *Contig) Checksum() string { return hex.EncodeToString(c.MD5[:]) }

// Table holds the contigs of one run, indexed by header reference id.
type Table struct {
	contigs []*Contig
	byName  map[string]*Contig
	byMD5   map[[md5.Size]byte]*Contig
}

// NewTable builds a table; contigs[i].ID must be i.
func NewTable(contigs []*Contig) (*Table, error) {
	t := &Table{
		contigs: contigs,
		byName:  make(map[string]*Contig, len(contigs)),
		byMD5:   make(map[[md5.Size]byte]*Contig, len(contigs)),
	}
	for i, c := range contigs {
		if c.ID != i {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("contig %s has id %d at index %d", c.Name, c.ID, i))
		}
		if _, ok := t.byName[c.Name]; ok {
			return nil, errors.E(errors.Invalid, "duplicate contig", c.Name)
		}
		t.byName[c.Name] = c
		if _, ok := t.byMD5[c.MD5]; !ok {
			t.byMD5[c.MD5] = c
		}
	}
	return t, nil
}

// Len returns the number of contigs.
func (t *Table) Len() int { return len(t.contigs) }

// Contigs returns the contigs in header order.
func (t *Table) Contigs() []*Contig { return t.contigs }

// ByID returns the contig with the given header id, or nil.
func (t *Table) ByID(id int) *Contig {
	if id < 0 || id >= len(t.contigs) {
		return nil
	}
	return t.contigs[id]
}

// ByName returns the named contig, or nil.
func (t *Table) ByName(name string) *Contig { return t.byName[name] }

// ByChecksum returns the first contig whose sequence has the given
// hex-encoded MD5, or nil.
func (t *Table) ByChecksum(m5 string) *Contig {
	var sum [md5.Size]byte
	b, err := hex.DecodeString(m5)
	if err != nil || len(b) != md5.Size {
		return nil
	}
	copy(sum[:], b)
	return t.byMD5[sum]
}

// IsMismatch reports whether err reports a disagreement between the
// reference and the alignment header.
func IsMismatch(err error) bool { return errors.Is(errors.Precondition, err) }

func mismatch(format string, args ...interface{}) error {
	return errors.E(errors.Precondition, "reference mismatch: "+fmt.Sprintf(format, args...))
}

// Load reads the FASTA file at fapath, which may be compressed, and
// returns the contigs named by header in header order. It fails with an
// error for which IsMismatch is true if a header contig is missing from
// the FASTA, or its length or M5 checksum disagree with the header.
func Load(ctx context.Context, fapath string, header *sam.Header) (t *Table, err error) {
	infile, err := file.Open(ctx, fapath)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, infile, &err)
	reader, _ := compress.NewReader(infile.Reader(ctx))
	defer func() {
		if e := reader.Close(); e != nil && err == nil {
			err = e
		}
	}()
	fa, err := fasta.New(reader, fasta.OptUpper)
	if err != nil {
		return nil, errors.E(err, "reading reference", fapath)
	}
	return FromFasta(fa, header)
}

// FromFasta extracts the contigs named by header from fa and cross-checks
// them. See Load.
func FromFasta(fa fasta.Fasta, header *sam.Header) (*Table, error) {
	refs := header.Refs()
	contigs := make([]*Contig, len(refs))
	for i, ref := range refs {
		n, err := fa.Len(ref.Name())
		if err != nil {
			return nil, mismatch("contig %s of the alignment header is not in the reference", ref.Name())
		}
		if int(n) != ref.Len() {
			return nil, mismatch("inconsistent lengths for contig %s (%d in header, %d in reference)",
				ref.Name(), ref.Len(), n)
		}
		var seq string
		if n > 0 {
			if seq, err = fa.Get(ref.Name(), 0, n); err != nil {
				return nil, err
			}
		}
		contigs[i] = &Contig{ID: i, Name: ref.Name(), Len: ref.Len(), Seq: []byte(seq)}
	}
	// Checksums of large contigs dominate load time.
	err := traverse.Each(len(contigs), func(i int) error {
		c := contigs[i]
		c.MD5 = md5.Sum(c.Seq)
		if m5 := refs[i].MD5(); len(m5) > 0 && !bytes.Equal(m5, c.MD5[:]) {
			return mismatch("checksum of contig %s is %s, header says %s", c.Name, c.Checksum(), hex.EncodeToString(m5))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("reference: loaded %d contigs", len(contigs))
	return NewTable(contigs)
}
