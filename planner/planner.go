// Package planner orders a mission's detected points into a path for the
// inspector to fly, behind a swappable PathPlanner strategy selected by
// config, matching the source system's interchangeable planner design.
package planner

import "github.com/sentryops/operation/opmodel"

// PathPlanner plans an ordered visiting path starting from the inspector's
// current position through every given point.
type PathPlanner interface {
	PlanPath(start opmodel.Point2D, points []opmodel.Point2D) []opmodel.Point2D
}
