package bamprovider

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// BuildIndex scans the coordinate-sorted BAM file at bamPath and writes its
// BAI index to indexPath.
func BuildIndex(ctx context.Context, bamPath, indexPath string) (err error) {
	in, err := file.Open(ctx, bamPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	r, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return err
	}
	if r.Header().SortOrder != sam.Coordinate {
		return errors.E(errors.Precondition, bamPath, "is not coordinate sorted")
	}
	var idx bam.Index
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := idx.Add(rec, r.LastChunk()); err != nil {
			return errors.E(err, "indexing", bamPath)
		}
	}
	if err := r.Close(); err != nil {
		return err
	}
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	return bam.WriteIndex(out.Writer(ctx), &idx)
}

// WriteIndexed writes recs as a BAM file at path, followed by its index at
// path + ".bai". recs must be sorted by coordinate.
func WriteIndexed(ctx context.Context, path string, header *sam.Header, recs []*sam.Record) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	w, err := bam.NewWriter(out.Writer(ctx), header, 1)
	if err != nil {
		out.Close(ctx) // nolint: errcheck
		return err
	}
	for _, rec := range recs {
		if err = w.Write(rec); err != nil {
			break
		}
	}
	if e := w.Close(); e != nil && err == nil {
		err = e
	}
	if e := out.Close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return err
	}
	return BuildIndex(ctx, path, path+".bai")
}
