// Package assign solves minimum-cost bipartite assignment.
package assign

import "math"

// Forbidden is the cost marking an infeasible pairing. Any cell at or above
// Forbidden is never reported as assigned, even when the solver has to
// route through it to complete a square matching.
//
// Feasible costs must stay small next to Forbidden (their sum over a
// matching well below it) so the potentials keep their precision; the
// grouper's costs lie in [0,1].
const Forbidden = 1e9

// Hungarian solves the rectangular assignment problem for an n×m cost
// matrix using Kuhn–Munkres with row and column potentials (the
// Jonker–Volgenant shortest augmenting path form), O(dim³).
//
// It returns result[i] = column assigned to row i, or -1 when row i is
// unmatched: either because there are more rows than columns or because
// its only reachable columns cost Forbidden.
func Hungarian(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	result := make([]int, n)
	if m == 0 {
		for i := range result {
			result[i] = -1
		}
		return result
	}

	// Pad to square with Forbidden cells.
	dim := max(n, m)
	c := make([][]float64, dim)
	for i := range c {
		c[i] = make([]float64, dim)
		for j := range c[i] {
			if i < n && j < m {
				c[i][j] = min(cost[i][j], Forbidden)
			} else {
				c[i][j] = Forbidden
			}
		}
	}

	const inf = math.MaxFloat64 / 2

	// 1-indexed; column 0 is the virtual start of every augmenting path.
	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	owner := make([]int, dim+1) // owner[j] = row matched to column j
	prev := make([]int, dim+1)  // prev[j] = column before j on the path
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		owner[0] = i
		j0 := 0
		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := owner[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				reduced := c[i0-1][j-1] - u[i0] - v[j]
				if reduced < minv[j] {
					minv[j] = reduced
					prev[j] = j0
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
					u[owner[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if owner[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			owner[j0] = owner[prev[j0]]
			j0 = prev[j0]
		}
	}

	rowToCol := make([]int, dim)
	for i := range rowToCol {
		rowToCol[i] = -1
	}
	for j := 1; j <= dim; j++ {
		if owner[j] > 0 {
			rowToCol[owner[j]-1] = j - 1
		}
	}

	for i := 0; i < n; i++ {
		col := rowToCol[i]
		if col < 0 || col >= m || cost[i][col] >= Forbidden {
			result[i] = -1
			continue
		}
		result[i] = col
	}
	return result
}
