package registry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sentryops/operation/opmodel"
)

// LoadCheckpoint reads a checkpoint file written by a prior run's
// checkpointLoop and returns every point's latest recorded state (a point
// appears multiple times in the file if it was later inspected; the last
// occurrence wins). Operation.Resume passes the result to Registry.Restore.
func LoadCheckpoint(path string) ([]opmodel.DetectedPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	latest := make(map[opmodel.PointID]opmodel.DetectedPoint)
	order := make([]opmodel.PointID, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var dp opmodel.DetectedPoint
		if err := json.Unmarshal(scanner.Bytes(), &dp); err != nil {
			continue
		}
		if _, seen := latest[dp.ID]; !seen {
			order = append(order, dp.ID)
		}
		latest[dp.ID] = dp
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}

	out := make([]opmodel.DetectedPoint, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out, nil
}

// Restore seeds a freshly constructed Registry with previously checkpointed
// points, preserving their PointIDs and reverse coordinate index.
func (r *Registry) Restore(points []opmodel.DetectedPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, dp := range points {
		cp := dp
		r.points[cp.ID] = &cp
		if r.byCoord[cp.Mission] == nil {
			r.byCoord[cp.Mission] = make(map[opmodel.Point2D]opmodel.PointID)
		}
		r.byCoord[cp.Mission][cp.Position] = cp.ID
		if cp.ID > r.nextID {
			r.nextID = cp.ID
		}
		r.touch(cp.ID)
	}
}
