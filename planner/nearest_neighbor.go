package planner

import "github.com/sentryops/operation/opmodel"

// NearestNeighbor orders points by repeatedly visiting whichever unvisited
// point is closest to the current position. Cheap, O(n^2), and gives a
// reasonable (if not optimal) tour for the point counts a single mission
// produces.
type NearestNeighbor struct{}

func (NearestNeighbor) PlanPath(start opmodel.Point2D, points []opmodel.Point2D) []opmodel.Point2D {
	if len(points) == 0 {
		return nil
	}
	remaining := make([]opmodel.Point2D, len(points))
	copy(remaining, points)

	current := start
	path := make([]opmodel.Point2D, 0, len(points))

	for len(remaining) > 0 {
		bestIdx := 0
		bestDist := current.DistanceTo(remaining[0])
		for i := 1; i < len(remaining); i++ {
			d := current.DistanceTo(remaining[i])
			if d < bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		next := remaining[bestIdx]
		path = append(path, next)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		current = next
	}
	return path
}
