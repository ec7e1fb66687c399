/*Command bio-bam-index reads a coordinate-sorted .bam file and writes its
  .bai index, which bio-consensus needs for windowed queries.  The index is
  written to bampath + ".bai" unless --out is given.

  Usage: bio-bam-index [--out=foo.bai] foo.bam
*/
package main
