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

/*
Given a coordinate-sorted, indexed BAM and the FASTA reference it was aligned
against, bio-consensus computes a consensus sequence per contig and the
variants of that consensus relative to the reference.

The reference is cut into windows of -window bases. Each window is padded by
-overlap bases on interior boundaries, and the reads overlapping it are
handed to one of -workers workers running the consensus algorithm. Results
are collected, trimmed to their window and written in reference order.

Outputs are selected by file extension; any number may be given:

    .fa, .fasta    consensus FASTA
    .fq, .fastq    consensus FASTQ, qualities are per-base confidences
    .gff           variants as GFF
    .vcf           variants as VCF 4.2

A ".gz" suffix compresses the output; VCF is then BGZF compressed.

Sample usage:
bio-consensus \
    -reference hg19.fa \
    -out consensus.fa,variants.vcf.gz \
    -workers 16 \
    my.bam
*/
package main
