package filter

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/roadkit/graph"
)

func edge(id int32) graph.Edge { return graph.Edge{ID: id} }

func TestConstants(t *testing.T) {
	assert.True(t, All().Accept(edge(1)))
	assert.False(t, None().Accept(edge(1)))
	assert.True(t, OrAll(nil).Accept(edge(1)))
	assert.False(t, OrAll(None()).Accept(edge(1)))
}

func TestCombinators(t *testing.T) {
	even := Func(func(e graph.Edge) bool { return e.ID%2 == 0 })
	small := Func(func(e graph.Edge) bool { return e.ID < 10 })

	tests := []struct {
		name string
		f    EdgeFilter
		id   int32
		want bool
	}{
		{"AndBoth", And(even, small), 4, true},
		{"AndOne", And(even, small), 12, false},
		{"AndEmpty", And(), 3, true},
		{"AndNil", And(nil, even), 2, true},
		{"OrOne", Or(even, small), 12, true},
		{"OrNone", Or(even, small), 13, false},
		{"OrEmpty", Or(), 3, false},
		{"Not", Not(even), 3, true},
		{"NotNot", Not(Not(even)), 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.Accept(edge(tt.id)))
		})
	}
}

func TestBitmapLists(t *testing.T) {
	ids := roaring.BitmapOf(1, 5, 1000)

	allow := AllowList(ids)
	assert.True(t, allow.Accept(edge(5)))
	assert.False(t, allow.Accept(edge(6)))
	assert.False(t, allow.Accept(edge(-1)))

	deny := DenyList(ids)
	assert.False(t, deny.Accept(edge(1000)))
	assert.True(t, deny.Accept(edge(2)))

	assert.False(t, And(allow, deny).Accept(edge(5)))
}
