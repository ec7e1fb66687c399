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

package plurality

// count is one distinct base call and the number of reads making it.
type count struct {
	call string
	n    int
}

// tally is the frequency table of one reference column. Columns rarely
// see more than a handful of distinct calls, so a slice beats a map.
type tally struct {
	counts []count
	total  int
}

func (t *tally) add(call string) {
	t.total++
	for i := range t.counts {
		if t.counts[i].call == call {
			t.counts[i].n++
			return
		}
	}
	t.counts = append(t.counts, count{call: call, n: 1})
}

func (t *tally) reset() {
	t.counts = t.counts[:0]
	t.total = 0
}

// better reports whether a ranks above b: more reads, then the
// lexicographically larger call.
func better(a, b count) bool {
	if a.n != b.n {
		return a.n > b.n
	}
	return a.call > b.call
}

// top returns the plurality call and the runner-up. ok2 is false when the
// column has a single distinct call.
func (t *tally) top() (first, second count, ok2 bool) {
	for i, c := range t.counts {
		switch {
		case i == 0:
			first = c
		case better(c, first):
			first, second, ok2 = c, first, true
		case !ok2 || better(c, second):
			second, ok2 = c, true
		}
	}
	return
}
