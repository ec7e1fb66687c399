// Package vcf writes consensus variants in VCF 4.2 format.
//
// Positions are 1-based. Insertions and deletions carry the padding base
// VCF requires: the reference base before the event, or the base after it
// when the event starts the contig.
package vcf

import (
	"fmt"
	"io"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/bioconsensus/consensus"
	"github.com/pkg/errors"
)

// Contig is a reference sequence variants may refer to.
type Contig struct {
	Name string
	Seq  []byte
}

// Meta fills the header.
type Meta struct {
	Source    string
	Date      string
	Reference string
	Sample    string
	Contigs   []Contig
}

// Writer writes variants as VCF records.
type Writer struct {
	w       *tsv.Writer
	contigs []Contig
}

// NewWriter writes the header described by meta to w.
func NewWriter(w io.Writer, meta Meta) (*Writer, error) {
	vw := &Writer{w: tsv.NewWriter(w), contigs: meta.Contigs}
	sample := meta.Sample
	if sample == "" {
		sample = "SAMPLE"
	}
	lines := []string{
		"##fileformat=VCFv4.2",
		"##fileDate=" + meta.Date,
		"##source=" + meta.Source,
		"##reference=" + meta.Reference,
	}
	for _, c := range meta.Contigs {
		lines = append(lines, fmt.Sprintf("##contig=<ID=%s,length=%d>", c.Name, len(c.Seq)))
	}
	lines = append(lines,
		`##INFO=<ID=DP,Number=1,Type=Integer,Description="Read depth at the variant">`,
		`##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`,
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\t"+sample,
	)
	for _, line := range lines {
		vw.w.WriteString(line)
		if err := vw.w.EndLine(); err != nil {
			return nil, errors.Wrap(err, "writing VCF header")
		}
	}
	return vw, nil
}

// Alleles returns the 0-based position of the first base of the REF
// allele, and the padded REF and ALT alleles of v. seq is the contig
// sequence.
func Alleles(v consensus.Variant, seq []byte) (pos int, ref, alt string, err error) {
	switch v.Type {
	case consensus.Substitution:
		alt = v.ReadSeq1
		if v.Zygosity == consensus.Heterozygous {
			alt = hetAlt(v)
		}
		return v.RefStart, v.RefSeq, alt, nil
	case consensus.Insertion:
		if v.RefStart > len(seq) || len(seq) == 0 {
			break
		}
		if v.RefStart > 0 {
			pad := string(seq[v.RefStart-1])
			return v.RefStart - 1, pad, pad + v.ReadSeq1, nil
		}
		pad := string(seq[0])
		return 0, pad, v.ReadSeq1 + pad, nil
	case consensus.Deletion:
		if v.RefEnd > len(seq) {
			break
		}
		if v.RefStart > 0 {
			pad := string(seq[v.RefStart-1])
			return v.RefStart - 1, pad + v.RefSeq, pad, nil
		}
		if v.RefEnd < len(seq) {
			pad := string(seq[v.RefEnd])
			return 0, v.RefSeq + pad, pad, nil
		}
	}
	return 0, "", "", errors.Errorf("cannot express variant %v in VCF", v)
}

// hetAlt lists the non-reference alleles of a heterozygous substitution.
func hetAlt(v consensus.Variant) string {
	switch {
	case v.ReadSeq1 == v.RefSeq:
		return v.ReadSeq2
	case v.ReadSeq2 == v.RefSeq:
		return v.ReadSeq1
	}
	return v.ReadSeq1 + "," + v.ReadSeq2
}

func genotype(v consensus.Variant) string {
	switch v.Zygosity {
	case consensus.Homozygous:
		return "1/1"
	case consensus.Heterozygous:
		if v.ReadSeq1 != v.RefSeq && v.ReadSeq2 != v.RefSeq {
			return "1/2"
		}
		return "0/1"
	}
	return "1"
}

// Write writes one variant.
func (w *Writer) Write(v consensus.Variant) error {
	if v.RefID < 0 || v.RefID >= len(w.contigs) {
		return errors.Errorf("variant %v on unknown contig", v)
	}
	c := w.contigs[v.RefID]
	pos, ref, alt, err := Alleles(v, c.Seq)
	if err != nil {
		return err
	}
	w.w.WriteString(c.Name)
	w.w.WriteUint32(uint32(pos + 1))
	w.w.WriteByte('.')
	w.w.WriteString(ref)
	w.w.WriteString(alt)
	w.w.WriteUint32(uint32(v.Confidence))
	w.w.WriteString("PASS")
	w.w.WriteString(fmt.Sprintf("DP=%d", v.Coverage))
	w.w.WriteString("GT")
	w.w.WriteString(genotype(v))
	return w.w.EndLine()
}

// Flush flushes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
