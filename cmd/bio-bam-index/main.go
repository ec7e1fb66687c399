package main

// See doc.go for documentation
import (
	"flag"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bioconsensus/encoding/bamprovider"
)

var (
	out = flag.String("out", "", "Index path; defaults to bampath + .bai")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("usage: bio-bam-index [--out=path] bampath")
	}
	bamPath := flag.Arg(0)
	indexPath := *out
	if indexPath == "" {
		indexPath = bamPath + ".bai"
	}
	if err := bamprovider.BuildIndex(vcontext.Background(), bamPath, indexPath); err != nil {
		log.Fatalf("%v", err)
	}
}
