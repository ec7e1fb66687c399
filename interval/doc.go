/*Package interval implements interval-union operations on genomic
  coordinates, and parsing of samtools-style region strings.
  (Note the 'union'.  Overlapping and touching intervals are merged, not
  tracked separately.)
  It assumes every position fits in a PosType, which is currently defined as
  int32 since that's what BAM files are limited to.
*/
package interval
