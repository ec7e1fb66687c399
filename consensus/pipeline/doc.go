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

// Package pipeline runs a consensus algorithm over a coordinate-sorted
// alignment file.
//
// A coordinator partitions the reference into chunks and submits them on
// a bounded work queue, followed by one end-of-stream marker per worker.
// Each worker owns an algorithm processor and a private alignment reader.
// It pops chunks, fetches and clips the overlapping reads, computes the
// chunk result and pushes it on a bounded result queue. On its marker it
// forwards one marker to the result queue and exits. A single collector
// drains results until it has seen one marker per worker, then asks the
// algorithm to write the genome-scale outputs.
//
// A monitor watches worker exit statuses. The first failure closes both
// queues, which unblocks every party, and marks the run aborted; the
// coordinator stops submitting as soon as it notices.
package pipeline
