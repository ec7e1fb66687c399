// Package fastq writes FASTQ records.
package fastq

import "io"

var newline = []byte{'\n'}

// A Read is a FASTQ read, comprising an ID, sequence, line 3
// ("unknown"), and a quality string.
type Read struct {
	ID, Seq, Unk, Qual string
}

// MaxQualChar is the largest printable quality character.
const MaxQualChar = 126

// EncodeQuality converts phred values to a FASTQ quality string. Each value
// is offset by 33 and capped at MaxQualChar.
func EncodeQuality(qvs []uint8) string {
	b := make([]byte, len(qvs))
	for i, qv := range qvs {
		c := 33 + int(qv)
		if c > MaxQualChar {
			c = MaxQualChar
		}
		b[i] = byte(c)
	}
	return string(b)
}

// Writer is a FASTQ file writer.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter constructs a new FASTQ writer
// that writes reads to the underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes the read r in FASTQ format. '@' is prepended to the ID and
// '+' to line 3, whatever they already start with.
// An error is returned if the write failed.
func (w *Writer) Write(r *Read) error {
	w.writeln("@", r.ID)
	w.writeln("", r.Seq)
	w.writeln("+", r.Unk)
	w.writeln("", r.Qual)
	return w.err
}

func (w *Writer) writeln(prefix, line string) {
	if w.err != nil {
		return
	}
	if prefix != "" {
		_, w.err = io.WriteString(w.w, prefix)
	}
	if w.err == nil {
		_, w.err = io.WriteString(w.w, line)
	}
	if w.err == nil {
		_, w.err = w.w.Write(newline)
	}
}
