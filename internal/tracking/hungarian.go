package tracking

import (
	"errors"
	"math"
)

// ForbiddenCost stands in for infinity in assignment cost matrices. The
// solver needs finite costs; gated-out pairs get this value and are never
// reported as matches.
const ForbiddenCost = 1e9

// ErrDegenerateCostMatrix is returned when the cost matrix is ragged or
// contains NaN/Inf entries.
var ErrDegenerateCostMatrix = errors.New("degenerate cost matrix")

// HungarianAssign solves the rectangular assignment problem for an n×m
// cost matrix using Kuhn–Munkres with potentials (Jonker–Volgenant
// variant) in O(max(n,m)³). It returns assignments[i] = column assigned to
// row i, or -1 if row i is unassigned. Costs ≥ ForbiddenCost are treated
// as forbidden: the solver may route through them to complete the square
// matching, but never reports them.
func HungarianAssign(cost [][]float64) ([]int, error) {
	n := len(cost)
	if n == 0 {
		return nil, nil
	}
	m := len(cost[0])
	for _, row := range cost {
		if len(row) != m {
			return nil, ErrDegenerateCostMatrix
		}
		for _, c := range row {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return nil, ErrDegenerateCostMatrix
			}
		}
	}
	if m == 0 {
		result := make([]int, n)
		for i := range result {
			result[i] = -1
		}
		return result, nil
	}

	// Pad to square; forbidden values are clamped so a single huge entry
	// cannot swamp the potentials.
	dim := max(n, m)
	c := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		c[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			if i < n && j < m && cost[i][j] < ForbiddenCost {
				c[i][j] = cost[i][j]
			} else {
				c[i][j] = ForbiddenCost
			}
		}
	}

	// 1-indexed arrays; index 0 is the virtual column.
	const inf = math.MaxFloat64 / 2

	u := make([]float64, dim+1) // row potentials
	v := make([]float64, dim+1) // column potentials
	p := make([]int, dim+1)     // p[j] = row assigned to column j
	way := make([]int, dim+1)   // way[j] = previous column in augmenting path
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0

		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		// Augment along the path.
		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	rowAssign := make([]int, dim)
	for i := range rowAssign {
		rowAssign[i] = -1
	}
	for j := 1; j <= dim; j++ {
		if p[j] > 0 && p[j] <= dim {
			rowAssign[p[j]-1] = j - 1
		}
	}

	// Trim to original dimensions and drop forbidden pairs.
	result := make([]int, n)
	for i := 0; i < n; i++ {
		col := rowAssign[i]
		if col < 0 || col >= m || cost[i][col] >= ForbiddenCost {
			result[i] = -1
		} else {
			result[i] = col
		}
	}

	return result, nil
}
