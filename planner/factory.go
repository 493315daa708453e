package planner

import (
	"fmt"

	"github.com/sentryops/operation/opmodel"
)

// Strategy names selectable via config.
const (
	StrategyNearestNeighbor = "nearest_neighbor"
	StrategyExact           = "exact"
)

// ExactMaxPoints bounds how many points Exact will accept before the
// Held-Karp state space (O(2^n)) becomes impractical; the factory falls
// back to NearestNeighbor above this threshold regardless of the
// configured strategy.
const ExactMaxPoints = 15

// New selects a PathPlanner implementation by name. An unknown name is a
// configuration error the caller should fail fast on, matching the
// operation's fail-fast config validation elsewhere.
func New(strategy string) (PathPlanner, error) {
	switch strategy {
	case "", StrategyNearestNeighbor:
		return NearestNeighbor{}, nil
	case StrategyExact:
		return boundedExact{}, nil
	default:
		return nil, fmt.Errorf("planner: unknown strategy %q", strategy)
	}
}

// boundedExact guards Exact against being handed more points than its
// dynamic program can reasonably solve in-mission.
type boundedExact struct{}

func (boundedExact) PlanPath(start opmodel.Point2D, points []opmodel.Point2D) []opmodel.Point2D {
	if len(points) > ExactMaxPoints {
		return NearestNeighbor{}.PlanPath(start, points)
	}
	return Exact{}.PlanPath(start, points)
}
