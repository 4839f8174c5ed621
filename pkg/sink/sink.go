// Package sink implements the node's two external outputs: a state
// snapshot broadcast and a short-name audio cue trigger, each with a
// logging implementation and (for state) an HTTP implementation serving
// the snapshot as JSON, grounded on the teacher's chi-based reference
// server.
package sink

import (
	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

// Cue names the core ever plays. Playing an unknown name is a no-op.
const (
	CueArmed     = "armed"
	CueGo        = "go"
	CueFinish    = "finish"
	CueSpeedTrap = "speed_trap"
	CueRecord    = "record"
	CueReset     = "reset"
	CueSync      = "sync"
	CueError     = "error"
)

// LidarStatus is the optional LiDAR sub-object in a state snapshot.
type LidarStatus struct {
	DistanceCm   uint16 `json:"distance_cm"`
	AmplitudeRaw uint16 `json:"amplitude_raw"`
}

// SpeedTrapStatus is the optional speed-trap sub-object in a snapshot.
type SpeedTrapStatus struct {
	LastSpeedMps float64 `json:"last_speed_mps"`
}

// Snapshot is the JSON shape emitted by broadcast_state: race state,
// connection status, car metadata, the timing result once FINISHED, peer
// counts by status, and the two optional sensor sub-objects.
type Snapshot struct {
	Role       domain.RoleTag        `json:"role"`
	RaceState  domain.RaceState      `json:"race_state"`
	Connected  bool                  `json:"connected"`
	Car        string                `json:"car,omitempty"`
	WeightG    float64               `json:"weight_g,omitempty"`
	Result     *domain.RaceResult    `json:"result,omitempty"`
	PeerCounts map[string]int        `json:"peer_counts"`
	LiDAR      *LidarStatus          `json:"lidar,omitempty"`
	SpeedTrap  *SpeedTrapStatus      `json:"speed_trap,omitempty"`
}

// EventSink publishes the node's current state snapshot.
type EventSink interface {
	BroadcastState(Snapshot) error
}

// CueSink plays a named audio cue.
type CueSink interface {
	PlayCue(name string) error
}
