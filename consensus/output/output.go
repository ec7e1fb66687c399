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

// Package output writes the genome-scale results of a consensus run. The
// format of each output is inferred from its file extension.
package output

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bioconsensus/consensus"
	"github.com/grailbio/bioconsensus/encoding/fasta"
	"github.com/grailbio/bioconsensus/encoding/fastq"
	"github.com/grailbio/bioconsensus/encoding/gff"
	"github.com/grailbio/bioconsensus/encoding/vcf"
	"github.com/grailbio/bioconsensus/reference"
	"github.com/grailbio/hts/bgzf"
	"github.com/klauspost/compress/gzip"
)

// Format is an output file format.
type Format int

const (
	// FASTA holds one consensus sequence per contig.
	FASTA Format = iota
	// FASTQ holds consensus sequences with their confidence as qualities.
	FASTQ
	// GFF holds variants.
	GFF
	// VCF holds variants.
	VCF
)

var formatNames = []string{"fasta", "fastq", "gff", "vcf"}

func (f Format) String() string {
	if f >= 0 && int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

var extensions = map[string]Format{
	".fa":    FASTA,
	".fasta": FASTA,
	".fna":   FASTA,
	".fq":    FASTQ,
	".fastq": FASTQ,
	".gff":   GFF,
	".gff3":  GFF,
	".vcf":   VCF,
}

// ParseFormat infers the format of path from its extension. A trailing
// ".gz" selects compression: BGZF for VCF, gzip otherwise.
func ParseFormat(path string) (format Format, compressed bool, err error) {
	base := strings.ToLower(path)
	if strings.HasSuffix(base, ".gz") {
		compressed = true
		base = strings.TrimSuffix(base, ".gz")
	}
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		if f, ok := extensions[base[i:]]; ok {
			return f, compressed, nil
		}
	}
	return 0, false, errors.E(errors.Invalid, fmt.Sprintf("%s: unknown output format, want one of .fa, .fasta, .fq, .fastq, .gff, .vcf", path))
}

// Meta describes the run in output headers.
type Meta struct {
	// Source names the producing program.
	Source    string
	Command   string
	Date      string
	Reference string
	Sample    string
	// NameSuffix is appended to the contig name of consensus records.
	NameSuffix string
}

type output struct {
	path   string
	format Format
	f      file.File
	comp   io.WriteCloser
	buf    *bufio.Writer

	fa  *fasta.Writer
	fq  *fastq.Writer
	gff *gff.VariantWriter
	vcf *vcf.Writer
}

// Writer implements consensus.Sink over a set of output files.
type Writer struct {
	contigs []*reference.Contig
	meta    Meta
	outputs []*output
}

// Open creates every output of paths. It fails before creating any file if
// a path has an unknown format. contigs are indexed by reference id.
func Open(ctx context.Context, paths []string, contigs []*reference.Contig, meta Meta) (*Writer, error) {
	w := &Writer{contigs: contigs, meta: meta}
	formats := make([]Format, len(paths))
	compressed := make([]bool, len(paths))
	for i, path := range paths {
		var err error
		if formats[i], compressed[i], err = ParseFormat(path); err != nil {
			return nil, err
		}
	}
	for i, path := range paths {
		out, err := w.create(ctx, path, formats[i], compressed[i])
		if err != nil {
			if e := w.Close(ctx); e != nil {
				log.Error.Printf("closing outputs: %v", e)
			}
			return nil, err
		}
		w.outputs = append(w.outputs, out)
	}
	return w, nil
}

func (w *Writer) create(ctx context.Context, path string, format Format, compressed bool) (*output, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "creating output", path)
	}
	out := &output{path: path, format: format, f: f}
	var dst io.Writer = f.Writer(ctx)
	if compressed {
		if format == VCF {
			out.comp = bgzf.NewWriter(dst, 1)
		} else {
			out.comp = gzip.NewWriter(dst)
		}
		dst = out.comp
	}
	out.buf = bufio.NewWriter(dst)
	switch format {
	case FASTA:
		out.fa = fasta.NewWriter(out.buf, fasta.DefaultLineWidth)
	case FASTQ:
		out.fq = fastq.NewWriter(out.buf)
	case GFF:
		meta := gff.Meta{Source: w.meta.Source, Date: w.meta.Date, Command: w.meta.Command}
		for _, c := range w.contigs {
			meta.Contigs = append(meta.Contigs, gff.Contig{Name: c.Name, Len: c.Len})
		}
		out.gff, err = gff.NewVariantWriter(out.buf, meta)
	case VCF:
		meta := vcf.Meta{Source: w.meta.Source, Date: w.meta.Date, Reference: w.meta.Reference, Sample: w.meta.Sample}
		for _, c := range w.contigs {
			meta.Contigs = append(meta.Contigs, vcf.Contig{Name: c.Name, Seq: c.Seq})
		}
		out.vcf, err = vcf.NewWriter(out.buf, meta)
	}
	if err != nil {
		out.close(ctx) // nolint: errcheck
		return nil, errors.E(err, "writing header of", path)
	}
	return out, nil
}

// WriteConsensus implements consensus.Sink.
func (w *Writer) WriteConsensus(ctx context.Context, c consensus.Consensus) error {
	if c.Window.RefID < 0 || c.Window.RefID >= len(w.contigs) {
		return errors.E(errors.Invalid, fmt.Sprintf("consensus for unknown contig %d", c.Window.RefID))
	}
	name := w.contigs[c.Window.RefID].Name + w.meta.NameSuffix
	for _, out := range w.outputs {
		var err error
		switch out.format {
		case FASTA:
			err = out.fa.Write(name, c.Sequence)
		case FASTQ:
			err = out.fq.Write(&fastq.Read{ID: name, Seq: string(c.Sequence), Qual: fastq.EncodeQuality(c.Confidence)})
		}
		if err != nil {
			return errors.E(err, "writing", out.path)
		}
	}
	return nil
}

// WriteVariants implements consensus.Sink.
func (w *Writer) WriteVariants(ctx context.Context, variants []consensus.Variant) error {
	for _, out := range w.outputs {
		for _, v := range variants {
			var err error
			switch out.format {
			case GFF:
				err = out.gff.Write(v)
			case VCF:
				err = out.vcf.Write(v)
			}
			if err != nil {
				return errors.E(err, "writing", out.path)
			}
		}
		var err error
		switch {
		case out.vcf != nil:
			err = out.vcf.Flush()
		case out.gff != nil:
			err = out.gff.Flush()
		}
		if err != nil {
			return errors.E(err, "writing", out.path)
		}
	}
	return nil
}

// Close flushes and closes every output. It returns the first error.
func (w *Writer) Close(ctx context.Context) error {
	var err error
	for _, out := range w.outputs {
		if e := out.close(ctx); e != nil && err == nil {
			err = e
		}
	}
	w.outputs = nil
	return err
}

func (out *output) close(ctx context.Context) (err error) {
	switch {
	case out.vcf != nil:
		err = out.vcf.Flush()
	case out.gff != nil:
		err = out.gff.Flush()
	}
	if e := out.buf.Flush(); e != nil && err == nil {
		err = e
	}
	if out.comp != nil {
		if e := out.comp.Close(); e != nil && err == nil {
			err = e
		}
	}
	file.CloseAndReport(ctx, out.f, &err)
	if err != nil {
		return errors.E(err, "closing", out.path)
	}
	return nil
}
