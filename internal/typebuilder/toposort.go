package typebuilder

import (
	"errors"
	"fmt"
	"sort"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
)

// topoSort returns indices in creation order. deps(i) yields the indices
// that must be created before i. Among the ready nodes the smallest index
// goes first, so the order is deterministic.
func topoSort(n int, deps func(i int) []int) ([]int, error) {
	if n <= 0 {
		return nil, nil
	}

	indeg := make([]int, n)
	out := make([][]int, n)
	for i := 0; i < n; i++ {
		for _, d := range deps(i) {
			if d < 0 || d >= n {
				return nil, fmt.Errorf("dependency index out of range: %d depends on %d", i, d)
			}
			indeg[i]++
			out[d] = append(out[d], i)
		}
	}

	var ready []int
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, n)
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, i)
		for _, j := range out[i] {
			indeg[j]--
			if indeg[j] == 0 {
				k := sort.SearchInts(ready, j)
				ready = append(ready, 0)
				copy(ready[k+1:], ready[k:])
				ready[k] = j
			}
		}
	}

	if len(order) != n {
		return nil, errors.Join(constants.ErrDependencyCycle, fmt.Errorf("%d of %d fields ordered", len(order), n))
	}
	return order, nil
}
