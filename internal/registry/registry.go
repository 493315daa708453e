// Package registry is the operation's global point registry: every point
// the explorer detects is inserted here, and the inspector mutates the
// matching entry once it has been visited. It is also responsible for
// periodic checkpoint persistence so an interrupted operation's recorded
// points can be loaded back into a new registry.
package registry

import (
	"bufio"
	"container/list"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sentryops/operation/opmodel"
)

// Config tunes the registry's optional LRU tracking and checkpoint writer.
// CacheCapacity of 0 disables LRU bookkeeping (every point stays hot);
// CheckpointPath of "" disables checkpointing entirely.
type Config struct {
	CacheCapacity      int
	CheckpointPath     string
	CheckpointInterval time.Duration
}

// Registry stores every DetectedPoint by synthetic PointID, plus a
// per-mission reverse index from absolute coordinates to PointID that the
// inspection driver uses to find the entry a freshly-inspected point
// corresponds to.
type Registry struct {
	cfg Config

	mu       sync.Mutex
	points   map[opmodel.PointID]*opmodel.DetectedPoint
	byCoord  map[opmodel.MissionID]map[opmodel.Point2D]opmodel.PointID
	nextID   opmodel.PointID
	lru      *list.List
	lruIndex map[opmodel.PointID]*list.Element

	checkpointCh chan opmodel.DetectedPoint
	wg           sync.WaitGroup
}

func New(cfg Config) (*Registry, error) {
	r := &Registry{
		cfg:      cfg,
		points:   make(map[opmodel.PointID]*opmodel.DetectedPoint),
		byCoord:  make(map[opmodel.MissionID]map[opmodel.Point2D]opmodel.PointID),
		lru:      list.New(),
		lruIndex: make(map[opmodel.PointID]*list.Element),
	}
	if cfg.CheckpointPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.CheckpointPath), 0o755); err != nil {
			return nil, fmt.Errorf("create checkpoint directory: %w", err)
		}
		r.checkpointCh = make(chan opmodel.DetectedPoint, 1024)
		r.wg.Add(1)
		go r.checkpointLoop()
	}
	return r, nil
}

func (r *Registry) Close() error {
	if r.checkpointCh != nil {
		close(r.checkpointCh)
		r.wg.Wait()
	}
	return nil
}

// Insert records a newly detected point and assigns it a synthetic PointID.
// It is the exploration driver's only write path into the registry.
func (r *Registry) Insert(mission opmodel.MissionID, position opmodel.Point2D, detectedAt time.Time) opmodel.PointID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	dp := &opmodel.DetectedPoint{ID: id, Position: position, Mission: mission, DetectedAt: detectedAt}
	r.points[id] = dp

	if r.byCoord[mission] == nil {
		r.byCoord[mission] = make(map[opmodel.Point2D]opmodel.PointID)
	}
	r.byCoord[mission][position] = id

	r.touch(id)
	r.checkpoint(*dp)
	return id
}

// MarkInspected records that the point of `mission` whose coordinates equal
// `position` exactly has been visited, attaching the supplied telemetry
// snapshot. It returns false when no point in that mission has exactly
// those coordinates.
func (r *Registry) MarkInspected(mission opmodel.MissionID, position opmodel.Point2D, inspectedAt time.Time, telemetry map[string]float64) (opmodel.PointID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byPos := r.byCoord[mission]
	if byPos == nil {
		return 0, false
	}
	id, ok := byPos[position]
	if !ok {
		return 0, false
	}
	dp := r.points[id]
	if dp == nil {
		return 0, false
	}
	dp.Inspected = true
	dp.InspectedAt = inspectedAt
	dp.Telemetry = telemetry
	r.touch(id)
	r.checkpoint(*dp)
	return id, true
}

// Get returns a copy of a point's current record.
func (r *Registry) Get(id opmodel.PointID) (opmodel.DetectedPoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dp := r.points[id]
	if dp == nil {
		return opmodel.DetectedPoint{}, false
	}
	return *dp, true
}

// All returns a snapshot copy of every point currently registered, ordered
// by PointID.
func (r *Registry) All() []opmodel.DetectedPoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]opmodel.DetectedPoint, 0, len(r.points))
	for id := opmodel.PointID(1); id <= r.nextID; id++ {
		if dp, ok := r.points[id]; ok {
			out = append(out, *dp)
		}
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.points)
}

// touch updates LRU order; called with mu held. Capacity bounds are
// advisory only (points are never evicted from the authoritative map — an
// operation's point count is small by construction); nothing in the
// registry reads the LRU order.
func (r *Registry) touch(id opmodel.PointID) {
	if r.cfg.CacheCapacity <= 0 {
		return
	}
	if el, ok := r.lruIndex[id]; ok {
		r.lru.MoveToFront(el)
		return
	}
	el := r.lru.PushFront(id)
	r.lruIndex[id] = el
}

// Backlog reports how many checkpoint entries are queued but not yet
// flushed, consumed by the health evaluator.
func (r *Registry) Backlog() int {
	if r.checkpointCh == nil {
		return 0
	}
	return len(r.checkpointCh)
}

func (r *Registry) checkpoint(dp opmodel.DetectedPoint) {
	if r.checkpointCh == nil {
		return
	}
	select {
	case r.checkpointCh <- dp:
	default:
		// backlog full; this record is dropped and is not written to the
		// checkpoint later.
	}
}

func (r *Registry) checkpointLoop() {
	defer r.wg.Done()
	interval := r.cfg.CheckpointInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	buf := make([]opmodel.DetectedPoint, 0, 64)
	flush := func() {
		if len(buf) == 0 {
			return
		}
		f, err := os.OpenFile(r.cfg.CheckpointPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return
		}
		w := bufio.NewWriter(f)
		enc := json.NewEncoder(w)
		for _, dp := range buf {
			_ = enc.Encode(dp)
		}
		_ = w.Flush()
		_ = f.Close()
		buf = buf[:0]
	}
	for {
		select {
		case dp, ok := <-r.checkpointCh:
			if !ok {
				flush()
				return
			}
			buf = append(buf, dp)
			if len(buf) >= 64 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
