package planner

import (
	"math"

	"github.com/sentryops/operation/opmodel"
)

// Exact computes a minimum-length open tour from start through every point
// using the Held-Karp dynamic program. It is the "exact" counterpart to
// NearestNeighbor's heuristic, selected by the same factory when a mission
// has few enough points to make the exponential state space affordable.
//
// No integer-programming solver is available in this module's dependency
// set, so this is an exact stdlib-only alternative rather than a port of
// the source system's ILP-based planner; it answers the same question
// (minimum-length visiting order) without requiring an external solver.
type Exact struct{}

func (Exact) PlanPath(start opmodel.Point2D, points []opmodel.Point2D) []opmodel.Point2D {
	n := len(points)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []opmodel.Point2D{points[0]}
	}

	dist := make([][]float64, n+1)
	all := append([]opmodel.Point2D{start}, points...)
	for i := range dist {
		dist[i] = make([]float64, n+1)
		for j := range dist[i] {
			dist[i][j] = all[i].DistanceTo(all[j])
		}
	}

	full := 1 << uint(n)
	const inf = math.MaxFloat64
	// cost[mask][j] = shortest path visiting exactly the points in mask,
	// starting at "start" (index 0 in `all`), ending at point j (0-indexed
	// into `points`, i.e. all[j+1]).
	cost := make([][]float64, full)
	parent := make([][]int, full)
	for m := range cost {
		cost[m] = make([]float64, n)
		parent[m] = make([]int, n)
		for j := range cost[m] {
			cost[m][j] = inf
			parent[m][j] = -1
		}
	}
	for j := 0; j < n; j++ {
		mask := 1 << uint(j)
		cost[mask][j] = dist[0][j+1]
	}
	for mask := 1; mask < full; mask++ {
		for j := 0; j < n; j++ {
			if mask&(1<<uint(j)) == 0 || cost[mask][j] == inf {
				continue
			}
			for k := 0; k < n; k++ {
				if mask&(1<<uint(k)) != 0 {
					continue
				}
				nextMask := mask | (1 << uint(k))
				candidate := cost[mask][j] + dist[j+1][k+1]
				if candidate < cost[nextMask][k] {
					cost[nextMask][k] = candidate
					parent[nextMask][k] = j
				}
			}
		}
	}

	fullMask := full - 1
	bestJ, bestCost := -1, inf
	for j := 0; j < n; j++ {
		if cost[fullMask][j] < bestCost {
			bestCost = cost[fullMask][j]
			bestJ = j
		}
	}
	if bestJ == -1 {
		return nil
	}

	order := make([]int, 0, n)
	mask, j := fullMask, bestJ
	for j != -1 {
		order = append(order, j)
		pj := parent[mask][j]
		mask &^= 1 << uint(j)
		j = pj
	}
	path := make([]opmodel.Point2D, n)
	for i, idx := range order {
		path[n-1-i] = points[idx]
	}
	return path
}
