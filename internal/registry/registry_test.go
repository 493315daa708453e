package registry_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryops/operation/internal/registry"
	"github.com/sentryops/operation/opmodel"
)

func TestRegistry_InsertAndGet(t *testing.T) {
	reg, err := registry.New(registry.Config{})
	require.NoError(t, err)
	defer reg.Close()

	id := reg.Insert(0, opmodel.Point2D{X: 1, Y: 1}, time.Now())
	dp, ok := reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, opmodel.Point2D{X: 1, Y: 1}, dp.Position)
	assert.False(t, dp.Inspected)
}

func TestRegistry_MarkInspected(t *testing.T) {
	reg, err := registry.New(registry.Config{})
	require.NoError(t, err)
	defer reg.Close()

	pos := opmodel.Point2D{X: 2, Y: 2}
	id := reg.Insert(0, pos, time.Now())

	gotID, ok := reg.MarkInspected(0, pos, time.Now(), map[string]float64{"temperature": 22.5})
	require.True(t, ok)
	assert.Equal(t, id, gotID)

	dp, _ := reg.Get(id)
	assert.True(t, dp.Inspected)
	assert.Equal(t, 22.5, dp.Telemetry["temperature"])
}

func TestRegistry_MarkInspectedUnknownPointFails(t *testing.T) {
	reg, err := registry.New(registry.Config{})
	require.NoError(t, err)
	defer reg.Close()

	_, ok := reg.MarkInspected(0, opmodel.Point2D{X: 99, Y: 99}, time.Now(), nil)
	assert.False(t, ok)
}

func TestRegistry_CrossMissionSamePositionAreDistinct(t *testing.T) {
	reg, err := registry.New(registry.Config{})
	require.NoError(t, err)
	defer reg.Close()

	pos := opmodel.Point2D{X: 1, Y: 1}
	id0 := reg.Insert(0, pos, time.Now())
	id1 := reg.Insert(1, pos, time.Now())
	assert.NotEqual(t, id0, id1)

	// Marking mission 0's point inspected does not affect mission 1's.
	_, ok := reg.MarkInspected(0, pos, time.Now(), nil)
	require.True(t, ok)

	dp0, _ := reg.Get(id0)
	dp1, _ := reg.Get(id1)
	assert.True(t, dp0.Inspected)
	assert.False(t, dp1.Inspected)
}

func TestRegistry_AllOrderedByInsertion(t *testing.T) {
	reg, err := registry.New(registry.Config{})
	require.NoError(t, err)
	defer reg.Close()

	reg.Insert(0, opmodel.Point2D{X: 1, Y: 1}, time.Now())
	reg.Insert(0, opmodel.Point2D{X: 2, Y: 2}, time.Now())
	reg.Insert(0, opmodel.Point2D{X: 3, Y: 3}, time.Now())

	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, opmodel.Point2D{X: 1, Y: 1}, all[0].Position)
	assert.Equal(t, opmodel.Point2D{X: 3, Y: 3}, all[2].Position)
}

func TestRegistry_CheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.log")

	reg, err := registry.New(registry.Config{CheckpointPath: path, CheckpointInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	id := reg.Insert(0, opmodel.Point2D{X: 5, Y: 5}, time.Now())
	_, ok := reg.MarkInspected(0, opmodel.Point2D{X: 5, Y: 5}, time.Now(), map[string]float64{"voltage": 11.9})
	require.True(t, ok)

	require.NoError(t, reg.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	points, err := registry.LoadCheckpoint(path)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, id, points[0].ID)
	assert.True(t, points[0].Inspected, "the last checkpointed record for a point should reflect its final state")
}

func TestRegistry_Restore(t *testing.T) {
	reg, err := registry.New(registry.Config{})
	require.NoError(t, err)
	defer reg.Close()

	reg.Restore([]opmodel.DetectedPoint{
		{ID: 5, Mission: 0, Position: opmodel.Point2D{X: 1, Y: 1}, Inspected: true},
	})

	assert.Equal(t, 1, reg.Count())
	// A subsequent Insert must not collide with the restored ID.
	newID := reg.Insert(0, opmodel.Point2D{X: 9, Y: 9}, time.Now())
	assert.Greater(t, int(newID), 5)
}

func TestRegistry_Backlog(t *testing.T) {
	reg, err := registry.New(registry.Config{})
	require.NoError(t, err)
	defer reg.Close()
	assert.Equal(t, 0, reg.Backlog(), "checkpointing disabled means backlog is always zero")
}
