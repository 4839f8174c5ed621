// Package config loads and saves the device's full configuration,
// config.json, the way the original firmware keeps one struct in flash:
// Default returns safe values, Load falls back to them on any read
// failure, and Save writes atomically.
package config

import (
	"fmt"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
	"github.com/Ryan4n6/MASS-Trap/pkg/storage"
)

// DeviceConfig is the full device configuration persisted to config.json.
type DeviceConfig struct {
	Role     domain.RoleTag `json:"role"`
	Hostname string         `json:"hostname"`
	DeviceID uint8          `json:"device_id"`

	// LegacyManualMAC is a retirable fallback: early deployments paired
	// by hand-entering the peer's MAC instead of using Brother's Six.
	// Still honored if set, but new installs should leave it empty and
	// let discovery do the work.
	LegacyManualMAC string `json:"legacy_manual_mac,omitempty"`

	TrackLengthM      float64 `json:"track_length_m"`
	SpeedSensorSpaceM float64 `json:"speed_sensor_spacing_m"`
	ScaleFactor       float64 `json:"scale_factor"`
	DefaultCarWeightG float64 `json:"default_car_weight_g"`

	LiDARThresholdCm uint16 `json:"lidar_threshold_cm"`
	LiDARPort        string `json:"lidar_port,omitempty"`

	// GPIO pin numbers for the sysfs-backed digital inputs. 0 means
	// "not wired", falling back to an in-process mock beam so the node
	// still runs (dry-run / demo / bench testing without hardware).
	ProximityGPIOPin int `json:"proximity_gpio_pin,omitempty"`
	StartBeamGPIOPin int `json:"start_beam_gpio_pin,omitempty"`

	FinishBeamGPIOPin int `json:"finish_beam_gpio_pin,omitempty"`

	TrapBeam1GPIOPin int `json:"trap_beam1_gpio_pin,omitempty"`
	TrapBeam2GPIOPin int `json:"trap_beam2_gpio_pin,omitempty"`

	DryRun bool `json:"dry_run"`

	DataDir string `json:"data_dir"`

	Transport TransportConfig `json:"transport"`
}

// TransportConfig selects and configures the radio.Transport
// implementation this node uses.
type TransportConfig struct {
	Kind string `json:"kind"` // "loopback", "udp", or "redis"

	UDPListenAddr    string `json:"udp_listen_addr,omitempty"`
	UDPBroadcastAddr string `json:"udp_broadcast_addr,omitempty"`

	RedisAddr  string `json:"redis_addr,omitempty"`
	RedisTopic string `json:"redis_topic,omitempty"`
}

// Default returns a safe configuration for an unconfigured device: no
// role (RoleUnknown, which Validate rejects), a 35 g default car weight,
// dry-run on, loopback transport. A node entering
// setup mode after a failed load uses exactly this.
func Default() DeviceConfig {
	return DeviceConfig{
		Role:              domain.RoleUnknown,
		Hostname:          "masstrap-node",
		TrackLengthM:      2.0,
		SpeedSensorSpaceM: 0.10,
		ScaleFactor:       1.0,
		DefaultCarWeightG: 35.0,
		LiDARThresholdCm:  30,
		DryRun:            true,
		DataDir:           ".",
		Transport: TransportConfig{
			Kind: "loopback",
		},
	}
}

// Load reads path as JSON, falling back to Default on any error so a
// missing or corrupt config.json still yields a usable (if unconfigured)
// node rather than a startup failure.
func Load(path string) (DeviceConfig, error) {
	cfg := Default()
	if err := storage.LoadJSON(path, &cfg); err != nil {
		return Default(), fmt.Errorf("config: load %s, falling back to defaults: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as JSON.
func Save(path string, cfg DeviceConfig) error {
	return storage.SaveJSON(path, cfg)
}

// Validate reports a non-nil error if cfg cannot be used to run a node.
func Validate(cfg DeviceConfig) error {
	if cfg.Role == domain.RoleUnknown {
		return fmt.Errorf("config: role is unset; device is in setup mode")
	}
	if cfg.TrackLengthM <= 0 {
		return fmt.Errorf("config: track_length_m must be positive, got %v", cfg.TrackLengthM)
	}
	if cfg.SpeedSensorSpaceM <= 0 {
		return fmt.Errorf("config: speed_sensor_spacing_m must be positive, got %v", cfg.SpeedSensorSpaceM)
	}
	switch cfg.Transport.Kind {
	case "loopback", "udp", "redis":
	default:
		return fmt.Errorf("config: unknown transport kind %q", cfg.Transport.Kind)
	}
	return nil
}
