package fasta

import "io"

// DefaultLineWidth is the sequence line width written by NewWriter when
// width is not positive.
const DefaultLineWidth = 60

var newline = []byte{'\n'}

// Writer is a FASTA file writer that wraps sequence lines at a fixed width.
type Writer struct {
	w     io.Writer
	width int
	err   error
}

// NewWriter constructs a new FASTA writer that writes sequences to the
// underlying writer w, wrapping them every width bases.
func NewWriter(w io.Writer, width int) *Writer {
	if width <= 0 {
		width = DefaultLineWidth
	}
	return &Writer{w: w, width: width}
}

// Write writes one named sequence.
// An error is returned if the write failed.
func (w *Writer) Write(name string, seq []byte) error {
	w.writeString(">")
	w.writeString(name)
	w.write(newline)
	for start := 0; start < len(seq); start += w.width {
		end := start + w.width
		if end > len(seq) {
			end = len(seq)
		}
		w.write(seq[start:end])
		w.write(newline)
	}
	return w.err
}

func (w *Writer) writeString(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}
