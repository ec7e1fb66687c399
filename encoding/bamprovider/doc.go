// Package bamprovider provides windowed access to a coordinate-sorted,
// indexed BAM file.
//
// A Provider is shared by all workers of a run. Each worker opens its own
// Reader, which holds private file and index handles, and issues Query
// calls against it for the windows it processes.
package bamprovider
