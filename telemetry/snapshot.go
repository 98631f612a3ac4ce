package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the observable simulation state at one tick.
type Snapshot struct {
	Version int     `json:"version"`
	Tick    int     `json:"tick"`
	SimTime float64 `json:"sim_time"`

	ArenaWidth  float64 `json:"arena_width"`
	ArenaHeight float64 `json:"arena_height"`

	// Every wall flattened to its boundary segments
	Walls   []SegmentState `json:"walls"`
	Beacons []BeaconState  `json:"beacons,omitempty"`

	Robot    RobotState     `json:"robot"`
	Estimate *EstimateState `json:"estimate,omitempty"`

	CellsCleaned int     `json:"cells_cleaned"`
	Coverage     float64 `json:"coverage"`
}

// SegmentState is a wall segment.
type SegmentState struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// BeaconState is a beacon at a fixed position.
type BeaconState struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// RobotState holds the robot's pose, actuators and last sensor sweep.
type RobotState struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
	Radius  float64 `json:"radius"`

	Model  string  `json:"model"`
	SpeedA float64 `json:"speed_a"`
	SpeedB float64 `json:"speed_b"`

	Sensors []SensorState `json:"sensors"`
	Outcome string        `json:"outcome"`
}

// SensorState is one ray reading. Distance is from the hull.
type SensorState struct {
	Distance float64 `json:"distance"`
	Hit      bool    `json:"hit"`
	HitX     float64 `json:"hit_x,omitempty"`
	HitY     float64 `json:"hit_y,omitempty"`
}

// EstimateState is the localizer belief.
type EstimateState struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Heading     float64 `json:"heading"`
	Uncertainty float64 `json:"uncertainty"`
}

// SaveSnapshot writes a snapshot to dir as snapshot_<tick>.json.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.json", snapshot.Tick))

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}
	return &snapshot, nil
}
