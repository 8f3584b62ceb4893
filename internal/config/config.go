package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cwon789/adaptive-filter/internal/fusion"
)

// DefaultConfigPath is where the daemon looks for its configuration
// when no -config flag is given. The file is optional; every field
// has a built-in default.
const DefaultConfigPath = "config/fusion.json"

// Config is the root daemon configuration. All fields are pointers so
// a partial JSON file overrides only what it names; the Get* methods
// supply defaults for everything else.
type Config struct {
	// Filter params
	Enabled        *bool    `json:"enabled,omitempty"`
	EnableInertial *bool    `json:"enable_inertial,omitempty"`
	EnableWheel    *bool    `json:"enable_wheel,omitempty"`
	EnableRange    *bool    `json:"enable_range,omitempty"`
	PublishTrigger *string  `json:"publish_trigger,omitempty"` // prediction, inertial, wheel or range
	RangeGain      *float64 `json:"range_gain,omitempty"`
	WheelGain      *float64 `json:"wheel_gain,omitempty"`
	InertialGain   *float64 `json:"inertial_gain,omitempty"`
	TickInterval   *string  `json:"tick_interval,omitempty"` // duration string like "5ms"
	RangePeriod    *string  `json:"range_period,omitempty"`  // duration string like "100ms"
	GimbalMargin   *float64 `json:"gimbal_margin,omitempty"`
	MapFrame       *string  `json:"map_frame,omitempty"`
	RobotFrame     *string  `json:"robot_frame,omitempty"`
	DerivedFrame   *string  `json:"derived_frame,omitempty"`

	// Adaptive covariance params
	CornerSaturation *float64 `json:"corner_saturation,omitempty"`
	SurfSaturation   *float64 `json:"surf_saturation,omitempty"`
	AdaptiveFloor    *float64 `json:"adaptive_floor,omitempty"`
	AdaptiveGainX    *float64 `json:"adaptive_gain_x,omitempty"`
	AdaptiveGainY    *float64 `json:"adaptive_gain_y,omitempty"`
	AdaptiveGainZ    *float64 `json:"adaptive_gain_z,omitempty"`
	AdaptiveGainRoll *float64 `json:"adaptive_gain_roll,omitempty"`
	AdaptiveGainPit  *float64 `json:"adaptive_gain_pitch,omitempty"`
	AdaptiveGainYaw  *float64 `json:"adaptive_gain_yaw,omitempty"`

	// Ingest params
	ListenAddr    *string `json:"listen_addr,omitempty"`
	InertialTopic *string `json:"inertial_topic,omitempty"`
	WheelTopic    *string `json:"wheel_topic,omitempty"`
	RangeTopic    *string `json:"range_topic,omitempty"`
	JournalDir    *string `json:"journal_dir,omitempty"` // empty disables journalling

	// Wheel serial params
	SerialPort *string `json:"serial_port,omitempty"` // empty disables the serial reader
	SerialBaud *int    `json:"serial_baud,omitempty"`

	// Publish params
	EgressAddr        *string `json:"egress_addr,omitempty"` // empty disables UDP egress
	OdometryTopic     *string `json:"odometry_topic,omitempty"`
	DerivedTwistTopic *string `json:"derived_twist_topic,omitempty"`
	TransformTopic    *string `json:"transform_topic,omitempty"`

	// Recorder params
	DatabasePath *string `json:"database_path,omitempty"` // empty disables recording

	// Monitor params
	HTTPAddr *string `json:"http_addr,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyConfig returns a Config with all fields nil, so every getter
// falls through to its default.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file. The file must have a
// .json extension and stay under the max file size. Fields omitted
// from the JSON keep their defaults, so partial configs are safe.
func LoadConfig(path string) (*Config, error) {
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

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that any set values are usable.
func (c *Config) Validate() error {
	if c.PublishTrigger != nil {
		if !fusion.ValidStage(fusion.Stage(*c.PublishTrigger)) {
			return fmt.Errorf("publish_trigger must be prediction, inertial, wheel or range, got %q", *c.PublishTrigger)
		}
	}

	if c.TickInterval != nil && *c.TickInterval != "" {
		d, err := time.ParseDuration(*c.TickInterval)
		if err != nil {
			return fmt.Errorf("invalid tick_interval '%s': %w", *c.TickInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("tick_interval must be positive, got %s", d)
		}
	}

	if c.RangePeriod != nil && *c.RangePeriod != "" {
		d, err := time.ParseDuration(*c.RangePeriod)
		if err != nil {
			return fmt.Errorf("invalid range_period '%s': %w", *c.RangePeriod, err)
		}
		if d <= 0 {
			return fmt.Errorf("range_period must be positive, got %s", d)
		}
	}

	for name, v := range map[string]*float64{
		"range_gain":    c.RangeGain,
		"wheel_gain":    c.WheelGain,
		"inertial_gain": c.InertialGain,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", name, *v)
		}
	}

	if c.GimbalMargin != nil {
		if *c.GimbalMargin <= 0 || *c.GimbalMargin >= 1 {
			return fmt.Errorf("gimbal_margin must be in (0, 1) radians, got %f", *c.GimbalMargin)
		}
	}

	if c.CornerSaturation != nil && *c.CornerSaturation <= 0 {
		return fmt.Errorf("corner_saturation must be positive, got %f", *c.CornerSaturation)
	}
	if c.SurfSaturation != nil && *c.SurfSaturation <= 0 {
		return fmt.Errorf("surf_saturation must be positive, got %f", *c.SurfSaturation)
	}
	if c.AdaptiveFloor != nil && *c.AdaptiveFloor < 0 {
		return fmt.Errorf("adaptive_floor must be non-negative, got %f", *c.AdaptiveFloor)
	}

	if c.SerialBaud != nil && *c.SerialBaud <= 0 {
		return fmt.Errorf("serial_baud must be positive, got %d", *c.SerialBaud)
	}

	return nil
}

// FilterParams assembles the immutable filter parameters from this
// configuration.
func (c *Config) FilterParams() fusion.Params {
	p := fusion.DefaultParams()
	p.Enabled = c.GetEnabled()
	p.EnableInertial = c.GetEnableInertial()
	p.EnableWheel = c.GetEnableWheel()
	p.EnableRange = c.GetEnableRange()
	p.PublishTrigger = fusion.Stage(c.GetPublishTrigger())
	p.RangeGain = c.GetRangeGain()
	p.WheelGain = c.GetWheelGain()
	p.InertialGain = c.GetInertialGain()
	p.TickInterval = c.GetTickInterval()
	p.RangePeriod = c.GetRangePeriod().Seconds()
	p.GimbalMargin = c.GetGimbalMargin()
	p.MapFrame = c.GetMapFrame()
	p.RobotFrame = c.GetRobotFrame()
	p.DerivedFrame = c.GetDerivedFrame()

	p.Adaptive.CornerSaturation = c.GetCornerSaturation()
	p.Adaptive.SurfSaturation = c.GetSurfSaturation()
	p.Adaptive.Floor = c.GetAdaptiveFloor()
	p.Adaptive.GainX = c.GetAdaptiveGainX()
	p.Adaptive.GainY = c.GetAdaptiveGainY()
	p.Adaptive.GainZ = c.GetAdaptiveGainZ()
	p.Adaptive.GainRoll = c.GetAdaptiveGainRoll()
	p.Adaptive.GainPitch = c.GetAdaptiveGainPitch()
	p.Adaptive.GainYaw = c.GetAdaptiveGainYaw()
	return p
}

// GetEnabled returns the enabled value or the default.
func (c *Config) GetEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// GetEnableInertial returns the enable_inertial value or the default.
func (c *Config) GetEnableInertial() bool {
	if c.EnableInertial == nil {
		return true
	}
	return *c.EnableInertial
}

// GetEnableWheel returns the enable_wheel value or the default.
func (c *Config) GetEnableWheel() bool {
	if c.EnableWheel == nil {
		return true
	}
	return *c.EnableWheel
}

// GetEnableRange returns the enable_range value or the default.
func (c *Config) GetEnableRange() bool {
	if c.EnableRange == nil {
		return true
	}
	return *c.EnableRange
}

// GetPublishTrigger returns the publish_trigger value or the default.
func (c *Config) GetPublishTrigger() string {
	if c.PublishTrigger == nil || *c.PublishTrigger == "" {
		return string(fusion.StageRange)
	}
	return *c.PublishTrigger
}

// GetRangeGain returns the range_gain value or the default.
func (c *Config) GetRangeGain() float64 {
	if c.RangeGain == nil {
		return 1000
	}
	return *c.RangeGain
}

// GetWheelGain returns the wheel_gain value or the default.
func (c *Config) GetWheelGain() float64 {
	if c.WheelGain == nil {
		return 0.05
	}
	return *c.WheelGain
}

// GetInertialGain returns the inertial_gain value or the default.
func (c *Config) GetInertialGain() float64 {
	if c.InertialGain == nil {
		return 0.1
	}
	return *c.InertialGain
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *Config) GetTickInterval() time.Duration {
	if c.TickInterval == nil || *c.TickInterval == "" {
		return 5 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.TickInterval)
	if err != nil {
		return 5 * time.Millisecond
	}
	return d
}

// GetRangePeriod parses and returns the RangePeriod as a time.Duration.
func (c *Config) GetRangePeriod() time.Duration {
	if c.RangePeriod == nil || *c.RangePeriod == "" {
		return 100 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.RangePeriod)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

// GetGimbalMargin returns the gimbal_margin value or the default.
func (c *Config) GetGimbalMargin() float64 {
	if c.GimbalMargin == nil {
		return 0.01
	}
	return *c.GimbalMargin
}

// GetMapFrame returns the map_frame value or the default.
func (c *Config) GetMapFrame() string {
	if c.MapFrame == nil || *c.MapFrame == "" {
		return "chassis_init"
	}
	return *c.MapFrame
}

// GetRobotFrame returns the robot_frame value or the default.
func (c *Config) GetRobotFrame() string {
	if c.RobotFrame == nil || *c.RobotFrame == "" {
		return "ekf_odom_frame"
	}
	return *c.RobotFrame
}

// GetDerivedFrame returns the derived_frame value or the default.
func (c *Config) GetDerivedFrame() string {
	if c.DerivedFrame == nil || *c.DerivedFrame == "" {
		return "ind_lidar_frame"
	}
	return *c.DerivedFrame
}

// GetCornerSaturation returns the corner_saturation value or the default.
func (c *Config) GetCornerSaturation() float64 {
	if c.CornerSaturation == nil {
		return 500
	}
	return *c.CornerSaturation
}

// GetSurfSaturation returns the surf_saturation value or the default.
func (c *Config) GetSurfSaturation() float64 {
	if c.SurfSaturation == nil {
		return 5000
	}
	return *c.SurfSaturation
}

// GetAdaptiveFloor returns the adaptive_floor value or the default.
func (c *Config) GetAdaptiveFloor() float64 {
	if c.AdaptiveFloor == nil {
		return 0.005
	}
	return *c.AdaptiveFloor
}

// GetAdaptiveGainX returns the adaptive_gain_x value or the default.
func (c *Config) GetAdaptiveGainX() float64 {
	if c.AdaptiveGainX == nil {
		return 0.0022
	}
	return *c.AdaptiveGainX
}

// GetAdaptiveGainY returns the adaptive_gain_y value or the default.
func (c *Config) GetAdaptiveGainY() float64 {
	if c.AdaptiveGainY == nil {
		return 0.0016
	}
	return *c.AdaptiveGainY
}

// GetAdaptiveGainZ returns the adaptive_gain_z value or the default.
func (c *Config) GetAdaptiveGainZ() float64 {
	if c.AdaptiveGainZ == nil {
		return 0.0048
	}
	return *c.AdaptiveGainZ
}

// GetAdaptiveGainRoll returns the adaptive_gain_roll value or the default.
func (c *Config) GetAdaptiveGainRoll() float64 {
	if c.AdaptiveGainRoll == nil {
		return 0.0052
	}
	return *c.AdaptiveGainRoll
}

// GetAdaptiveGainPitch returns the adaptive_gain_pitch value or the default.
func (c *Config) GetAdaptiveGainPitch() float64 {
	if c.AdaptiveGainPit == nil {
		return 0.005
	}
	return *c.AdaptiveGainPit
}

// GetAdaptiveGainYaw returns the adaptive_gain_yaw value or the default.
func (c *Config) GetAdaptiveGainYaw() float64 {
	if c.AdaptiveGainYaw == nil {
		return 0.0044
	}
	return *c.AdaptiveGainYaw
}

// GetListenAddr returns the listen_addr value or the default.
func (c *Config) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":7447"
	}
	return *c.ListenAddr
}

// GetInertialTopic returns the inertial_topic value or the default.
func (c *Config) GetInertialTopic() string {
	if c.InertialTopic == nil || *c.InertialTopic == "" {
		return "imu/data"
	}
	return *c.InertialTopic
}

// GetWheelTopic returns the wheel_topic value or the default.
func (c *Config) GetWheelTopic() string {
	if c.WheelTopic == nil || *c.WheelTopic == "" {
		return "odom"
	}
	return *c.WheelTopic
}

// GetRangeTopic returns the range_topic value or the default.
func (c *Config) GetRangeTopic() string {
	if c.RangeTopic == nil || *c.RangeTopic == "" {
		return "laser_odom_to_init"
	}
	return *c.RangeTopic
}

// GetJournalDir returns the journal_dir value; empty means disabled.
func (c *Config) GetJournalDir() string {
	if c.JournalDir == nil {
		return ""
	}
	return *c.JournalDir
}

// GetSerialPort returns the serial_port value; empty means disabled.
func (c *Config) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetSerialBaud returns the serial_baud value or the default.
func (c *Config) GetSerialBaud() int {
	if c.SerialBaud == nil {
		return 115200
	}
	return *c.SerialBaud
}

// GetEgressAddr returns the egress_addr value; empty means disabled.
func (c *Config) GetEgressAddr() string {
	if c.EgressAddr == nil {
		return ""
	}
	return *c.EgressAddr
}

// GetOdometryTopic returns the odometry_topic value or the default.
func (c *Config) GetOdometryTopic() string {
	if c.OdometryTopic == nil || *c.OdometryTopic == "" {
		return "ekf/odometry"
	}
	return *c.OdometryTopic
}

// GetDerivedTwistTopic returns the derived_twist_topic value or the default.
func (c *Config) GetDerivedTwistTopic() string {
	if c.DerivedTwistTopic == nil || *c.DerivedTwistTopic == "" {
		return "ekf/indirect_twist"
	}
	return *c.DerivedTwistTopic
}

// GetTransformTopic returns the transform_topic value or the default.
func (c *Config) GetTransformTopic() string {
	if c.TransformTopic == nil || *c.TransformTopic == "" {
		return "tf"
	}
	return *c.TransformTopic
}

// GetDatabasePath returns the database_path value or the default.
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath == nil {
		return "fusion.db"
	}
	return *c.DatabasePath
}

// GetHTTPAddr returns the http_addr value or the default.
func (c *Config) GetHTTPAddr() string {
	if c.HTTPAddr == nil || *c.HTTPAddr == "" {
		return ":8080"
	}
	return *c.HTTPAddr
}
