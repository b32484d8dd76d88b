package syntax

import (
	"testing"
)

func Test_SortKeyCompare(t *testing.T) {
	tests := []struct {
		name     string
		k1       sortKey
		k2       sortKey
		expected int
	}{
		// start differs
		{"Start less", sortKey{start: 1, depth: 0}, sortKey{start: 2, depth: 3}, -1},
		{"Start greater", sortKey{start: 2, depth: 3}, sortKey{start: 1, depth: 0}, 1},

		// start equal, deeper layers first
		{"Deeper first", sortKey{start: 3, depth: 2}, sortKey{start: 3, depth: 1}, -1},
		{"Shallower last", sortKey{start: 3, depth: 1}, sortKey{start: 3, depth: 2}, 1},

		// start and depth equal, pattern differs
		{"Pattern less", sortKey{start: 3, depth: 1, pattern: 0}, sortKey{start: 3, depth: 1, pattern: 4}, -1},
		{"Pattern greater", sortKey{start: 3, depth: 1, pattern: 4}, sortKey{start: 3, depth: 1, pattern: 0}, 1},

		// only the layer order differs
		{"Order less", sortKey{start: 3, depth: 1, pattern: 2, order: 1}, sortKey{start: 3, depth: 1, pattern: 2, order: 5}, -1},
		{"Order greater", sortKey{start: 3, depth: 1, pattern: 2, order: 5}, sortKey{start: 3, depth: 1, pattern: 2, order: 1}, 1},

		{"All fields equal", sortKey{start: 3, depth: 1, pattern: 2, order: 1}, sortKey{start: 3, depth: 1, pattern: 2, order: 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.k1.compare(tt.k2)
			if result != tt.expected {
				t.Errorf("compare(%+v, %+v) = %d, expected %d", tt.k1, tt.k2, result, tt.expected)
			}
			if tt.k1.lessThan(tt.k2) != (tt.expected == -1) {
				t.Errorf("lessThan(%+v, %+v) disagrees with compare", tt.k1, tt.k2)
			}
			if tt.k1.greaterThan(tt.k2) != (tt.expected == 1) {
				t.Errorf("greaterThan(%+v, %+v) disagrees with compare", tt.k1, tt.k2)
			}
		})
	}
}
