package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tracker defaults file.
const DefaultConfigPath = "config/tracker.defaults.json"

// TuningConfig represents the root configuration for tracker tuning.
// Every field is optional; the Get* accessors supply the default when a
// field is absent, so partial JSON files are safe.
type TuningConfig struct {
	// Lifecycle
	MaxDisappeared      *int `json:"max_disappeared,omitempty"`
	MinTrackLength      *int `json:"min_track_length,omitempty"`
	TrajectoryMinLength *int `json:"trajectory_min_length,omitempty"`

	// Gating
	BaseSearchRadius *float64 `json:"base_search_radius,omitempty"`
	SpeedGain        *float64 `json:"speed_gain,omitempty"`
	MaxSpeedBonus    *float64 `json:"max_speed_bonus,omitempty"`
	DisappearedGain  *float64 `json:"disappeared_gain,omitempty"`

	// Motion filter
	ProcessNoise      *float64 `json:"process_noise,omitempty"`
	MeasurementNoise  *float64 `json:"measurement_noise,omitempty"`
	InitialCovariance *float64 `json:"initial_covariance,omitempty"`

	// History limits
	CentroidHistoryLength *int `json:"centroid_history_length,omitempty"`
	BBoxHistoryLength     *int `json:"bbox_history_length,omitempty"`
	VelocityHistoryLength *int `json:"velocity_history_length,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the Get* defaults.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	return &TuningConfig{
		MaxDisappeared:        ptrInt(empty.GetMaxDisappeared()),
		MinTrackLength:        ptrInt(empty.GetMinTrackLength()),
		TrajectoryMinLength:   ptrInt(empty.GetTrajectoryMinLength()),
		BaseSearchRadius:      ptrFloat64(empty.GetBaseSearchRadius()),
		SpeedGain:             ptrFloat64(empty.GetSpeedGain()),
		MaxSpeedBonus:         ptrFloat64(empty.GetMaxSpeedBonus()),
		DisappearedGain:       ptrFloat64(empty.GetDisappearedGain()),
		ProcessNoise:          ptrFloat64(empty.GetProcessNoise()),
		MeasurementNoise:      ptrFloat64(empty.GetMeasurementNoise()),
		InitialCovariance:     ptrFloat64(empty.GetInitialCovariance()),
		CentroidHistoryLength: ptrInt(empty.GetCentroidHistoryLength()),
		BBoxHistoryLength:     ptrInt(empty.GetBBoxHistoryLength()),
		VelocityHistoryLength: ptrInt(empty.GetVelocityHistoryLength()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ErrDefaultConfigNotFound is returned by LoadDefaultConfig when no
// candidate location holds DefaultConfigPath.
var ErrDefaultConfigNotFound = errors.New("default config not found")

// defaultConfigCandidates lists the current directory and common parent
// directories, so package tests find the repository copy.
var defaultConfigCandidates = []string{
	DefaultConfigPath,
	"../" + DefaultConfigPath,
	"../../" + DefaultConfigPath,       // from internal/config/
	"../../../" + DefaultConfigPath,    // from internal/storage/sqlite/
	"../../../../" + DefaultConfigPath, // deeper packages
}

// LoadDefaultConfig loads the first DefaultConfigPath found among the
// candidate locations. A file that exists but fails to load is an error;
// ErrDefaultConfigNotFound means none exists.
func LoadDefaultConfig() (*TuningConfig, error) {
	for _, path := range defaultConfigCandidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return LoadTuningConfig(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrDefaultConfigNotFound, DefaultConfigPath)
}

// MustLoadDefaultConfig is LoadDefaultConfig for test setup.
// Panics if the file cannot be loaded.
func MustLoadDefaultConfig() *TuningConfig {
	cfg, err := LoadDefaultConfig()
	if err != nil {
		panic(fmt.Sprintf("%v - run tests from repository root", err))
	}
	return cfg
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MaxDisappeared != nil && *c.MaxDisappeared < 0 {
		return fmt.Errorf("max_disappeared must be non-negative, got %d", *c.MaxDisappeared)
	}
	if c.MinTrackLength != nil && *c.MinTrackLength < 1 {
		return fmt.Errorf("min_track_length must be at least 1, got %d", *c.MinTrackLength)
	}
	if c.TrajectoryMinLength != nil && *c.TrajectoryMinLength < 0 {
		return fmt.Errorf("trajectory_min_length must be non-negative, got %d", *c.TrajectoryMinLength)
	}
	if c.BaseSearchRadius != nil && *c.BaseSearchRadius <= 0 {
		return fmt.Errorf("base_search_radius must be positive, got %f", *c.BaseSearchRadius)
	}

	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"speed_gain", c.SpeedGain},
		{"max_speed_bonus", c.MaxSpeedBonus},
		{"disappeared_gain", c.DisappearedGain},
	}
	for _, f := range nonNegative {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", f.name, *f.v)
		}
	}

	positive := []struct {
		name string
		v    *float64
	}{
		{"process_noise", c.ProcessNoise},
		{"measurement_noise", c.MeasurementNoise},
		{"initial_covariance", c.InitialCovariance},
	}
	for _, f := range positive {
		if f.v != nil && *f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", f.name, *f.v)
		}
	}

	lengths := []struct {
		name string
		v    *int
	}{
		{"centroid_history_length", c.CentroidHistoryLength},
		{"bbox_history_length", c.BBoxHistoryLength},
		{"velocity_history_length", c.VelocityHistoryLength},
	}
	for _, f := range lengths {
		if f.v != nil && *f.v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", f.name, *f.v)
		}
	}

	return nil
}

// GetMaxDisappeared returns the max_disappeared value or the default.
func (c *TuningConfig) GetMaxDisappeared() int {
	if c.MaxDisappeared == nil {
		return 15
	}
	return *c.MaxDisappeared
}

// GetMinTrackLength returns the min_track_length value or the default.
func (c *TuningConfig) GetMinTrackLength() int {
	if c.MinTrackLength == nil {
		return 3
	}
	return *c.MinTrackLength
}

// GetTrajectoryMinLength returns the trajectory_min_length value or the default.
func (c *TuningConfig) GetTrajectoryMinLength() int {
	if c.TrajectoryMinLength == nil {
		return 5
	}
	return *c.TrajectoryMinLength
}

// GetBaseSearchRadius returns the base_search_radius value or the default.
func (c *TuningConfig) GetBaseSearchRadius() float64 {
	if c.BaseSearchRadius == nil {
		return 50
	}
	return *c.BaseSearchRadius
}

// GetSpeedGain returns the speed_gain value or the default.
func (c *TuningConfig) GetSpeedGain() float64 {
	if c.SpeedGain == nil {
		return 2
	}
	return *c.SpeedGain
}

// GetMaxSpeedBonus returns the max_speed_bonus value or the default.
func (c *TuningConfig) GetMaxSpeedBonus() float64 {
	if c.MaxSpeedBonus == nil {
		return 100
	}
	return *c.MaxSpeedBonus
}

// GetDisappearedGain returns the disappeared_gain value or the default.
func (c *TuningConfig) GetDisappearedGain() float64 {
	if c.DisappearedGain == nil {
		return 5
	}
	return *c.DisappearedGain
}

// GetProcessNoise returns the process_noise value or the default.
func (c *TuningConfig) GetProcessNoise() float64 {
	if c.ProcessNoise == nil {
		return 0.03
	}
	return *c.ProcessNoise
}

// GetMeasurementNoise returns the measurement_noise value or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 1.0
	}
	return *c.MeasurementNoise
}

// GetInitialCovariance returns the initial_covariance value or the default.
func (c *TuningConfig) GetInitialCovariance() float64 {
	if c.InitialCovariance == nil {
		return 1.0
	}
	return *c.InitialCovariance
}

// GetCentroidHistoryLength returns the centroid_history_length value or the default.
func (c *TuningConfig) GetCentroidHistoryLength() int {
	if c.CentroidHistoryLength == nil {
		return 50
	}
	return *c.CentroidHistoryLength
}

// GetBBoxHistoryLength returns the bbox_history_length value or the default.
func (c *TuningConfig) GetBBoxHistoryLength() int {
	if c.BBoxHistoryLength == nil {
		return 10
	}
	return *c.BBoxHistoryLength
}

// GetVelocityHistoryLength returns the velocity_history_length value or the default.
func (c *TuningConfig) GetVelocityHistoryLength() int {
	if c.VelocityHistoryLength == nil {
		return 10
	}
	return *c.VelocityHistoryLength
}
