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

package pipeline

import (
	"fmt"
	"sync/atomic"
)

// Stats counts what happened during a run. Fields are updated atomically
// by workers and may be read once the run is over.
type Stats struct {
	ChunksSubmitted  int64
	ChunksDegraded   int64
	ResultsCollected int64
	ReadsFetched     int64
	ReadsFiltered    int64
	ReadsDownsampled int64
	ReadsSkipped     int64
}

func count(field *int64, n int) { atomic.AddInt64(field, int64(n)) }

func (s *Stats) String() string {
	return fmt.Sprintf("chunks: %d submitted, %d collected, %d degraded; reads: %d fetched, %d filtered, %d downsampled, %d skipped",
		atomic.LoadInt64(&s.ChunksSubmitted), atomic.LoadInt64(&s.ResultsCollected), atomic.LoadInt64(&s.ChunksDegraded),
		atomic.LoadInt64(&s.ReadsFetched), atomic.LoadInt64(&s.ReadsFiltered), atomic.LoadInt64(&s.ReadsDownsampled),
		atomic.LoadInt64(&s.ReadsSkipped))
}
