package interval

import (
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestNewUnion(t *testing.T) {
	u := NewUnion([]Span{{20, 25}, {7, 17}, {5, 15}, {3, 3}, {25, 27}})
	expect.EQ(t, u.Spans(), []Span{{5, 17}, {20, 27}})
	expect.EQ(t, u.Len(), 2)
	expect.EQ(t, u.Size(), 19)

	var empty Union
	expect.EQ(t, empty.Len(), 0)
	expect.False(t, empty.Contains(0))
	expect.False(t, empty.Intersects(0, 100))
}

func TestUnionContains(t *testing.T) {
	u := NewUnion([]Span{{5, 17}, {20, 25}})
	for _, tc := range []struct {
		pos  PosType
		want bool
	}{
		{4, false}, {5, true}, {16, true}, {17, false}, {19, false}, {20, true}, {24, true}, {25, false},
	} {
		expect.EQ(t, u.Contains(tc.pos), tc.want, "pos %d", tc.pos)
	}
}

func TestUnionIntersects(t *testing.T) {
	u := NewUnion([]Span{{5, 17}, {20, 25}})
	for _, tc := range []struct {
		start, end PosType
		want       bool
	}{
		{0, 5, false},
		{0, 6, true},
		{16, 18, true},
		{17, 20, false},
		{17, 21, true},
		{25, 100, false},
		{10, 10, false},
		{0, 100, true},
	} {
		expect.EQ(t, u.Intersects(tc.start, tc.end), tc.want, "[%d,%d)", tc.start, tc.end)
	}
}

func TestParseRegionString(t *testing.T) {
	for _, tc := range []struct {
		region string
		want   Entry
	}{
		{"chr1", Entry{"chr1", 0, PosTypeMax - 1}},
		{"chr1:100", Entry{"chr1", 99, 100}},
		{"chr1:100-200", Entry{"chr1", 99, 200}},
		{"chr1:1,000-2,000", Entry{"chr1", 999, 2000}},
		{"HLA-A*01:01:1-5", Entry{"HLA-A*01:01", 0, 5}},
	} {
		got, err := ParseRegionString(tc.region)
		assert.NoError(t, err, tc.region)
		expect.EQ(t, got, tc.want)
	}
	for _, bad := range []string{"", ":1-2", "chr1:0", "chr1:5-3", "chr1:x-3", "chr1:0-3"} {
		_, err := ParseRegionString(bad)
		expect.NotNil(t, err, bad)
	}
}
