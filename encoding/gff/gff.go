// Package gff writes consensus variants as GFF3 records.
//
// Coordinates are converted to GFF's 1-based closed intervals. An insertion
// is reported on the reference base preceding the insertion point, or on the
// first base when the insertion starts the contig.
package gff

import (
	"fmt"
	"io"
	"strings"

	"github.com/biogo/biogo/io/featio/gff"
	"github.com/biogo/biogo/seq"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/bioconsensus/consensus"
	"github.com/pkg/errors"
)

// Contig is a sequence-region entry of the header.
type Contig struct {
	Name string
	Len  int
}

// Meta is the fixed header block.
type Meta struct {
	Source  string
	Date    string
	Command string
	Contigs []Contig
}

// VariantWriter writes variants to a GFF3 stream.
type VariantWriter struct {
	w      *tsv.Writer
	source string
	names  []string
}

// NewVariantWriter writes the header block described by meta to w and
// returns a writer for variants on meta.Contigs; Variant.RefID indexes
// meta.Contigs.
func NewVariantWriter(w io.Writer, meta Meta) (*VariantWriter, error) {
	vw := &VariantWriter{w: tsv.NewWriter(w), source: meta.Source}
	lines := []string{
		"##gff-version 3",
		"##date " + meta.Date,
		"##feature-ontology http://song.cvs.sourceforge.net/*checkout*/song/ontology/sofa.obo?revision=1.12",
		"##source " + meta.Source,
		"##source-commandline " + meta.Command,
	}
	for _, c := range meta.Contigs {
		lines = append(lines, fmt.Sprintf("##sequence-region %s 1 %d", c.Name, c.Len))
		vw.names = append(vw.names, c.Name)
	}
	for _, line := range lines {
		vw.w.WriteString(line)
		if err := vw.w.EndLine(); err != nil {
			return nil, errors.Wrap(err, "writing GFF header")
		}
	}
	return vw, nil
}

// Feature converts v into a GFF feature. FeatStart is 0-based and FeatEnd
// exclusive, as in biogo.
func Feature(v consensus.Variant, seqName, source string) *gff.Feature {
	f := &gff.Feature{
		SeqName:    seqName,
		Source:     source,
		Feature:    v.Type.String(),
		FeatStart:  v.RefStart,
		FeatEnd:    v.RefEnd,
		FeatStrand: seq.None,
		FeatFrame:  gff.NoFrame,
	}
	if v.Type == consensus.Insertion {
		if v.RefStart > 0 {
			f.FeatStart, f.FeatEnd = v.RefStart-1, v.RefStart
		} else {
			f.FeatStart, f.FeatEnd = 0, 1
		}
	}
	refSeq, readSeq := v.RefSeq, v.ReadSeq1
	if refSeq == "" {
		refSeq = "."
	}
	if readSeq == "" {
		readSeq = "."
	}
	if v.Zygosity == consensus.Heterozygous {
		readSeq += "/" + v.ReadSeq2
	}
	f.FeatAttributes = gff.Attributes{
		{Tag: "reference", Value: refSeq},
		{Tag: "variantSeq", Value: readSeq},
		{Tag: "coverage", Value: fmt.Sprint(v.Coverage)},
		{Tag: "confidence", Value: fmt.Sprint(v.Confidence)},
	}
	if v.Zygosity != consensus.ZygosityUnknown {
		f.FeatAttributes = append(f.FeatAttributes,
			gff.Attribute{Tag: "frequency", Value: fmt.Sprintf("%d/%d", v.Frequency1, v.Frequency2)},
			gff.Attribute{Tag: "zygosity", Value: v.Zygosity.String()})
	}
	return f
}

var escaper = strings.NewReplacer("%", "%25", ";", "%3B", "=", "%3D", "&", "%26", ",", "%2C", "\t", "%09", "\n", "%0A")

// Attributes formats attrs as the GFF3 column 9, "tag=value" pairs joined
// by ';'.
func Attributes(attrs gff.Attributes) string {
	if len(attrs) == 0 {
		return "."
	}
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = escaper.Replace(a.Tag) + "=" + escaper.Replace(a.Value)
	}
	return strings.Join(parts, ";")
}

func strand(s seq.Strand) string {
	switch s {
	case seq.Plus:
		return "+"
	case seq.Minus:
		return "-"
	}
	return "."
}

// Write writes one variant.
func (w *VariantWriter) Write(v consensus.Variant) error {
	if v.RefID < 0 || v.RefID >= len(w.names) {
		return errors.Errorf("variant %v on unknown contig", v)
	}
	f := Feature(v, w.names[v.RefID], w.source)
	w.w.WriteString(f.SeqName)
	w.w.WriteString(f.Source)
	w.w.WriteString(f.Feature)
	w.w.WriteUint32(uint32(f.FeatStart + 1))
	w.w.WriteUint32(uint32(f.FeatEnd))
	if f.FeatScore != nil {
		w.w.WriteString(fmt.Sprint(*f.FeatScore))
	} else {
		w.w.WriteByte('.')
	}
	w.w.WriteString(strand(f.FeatStrand))
	w.w.WriteByte('.')
	w.w.WriteString(Attributes(f.FeatAttributes))
	return w.w.EndLine()
}

// Flush flushes buffered records to the underlying writer.
func (w *VariantWriter) Flush() error {
	return w.w.Flush()
}
