// Package config provides configuration management for mixarr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jmylchreest/mixarr/pkg/units"
)

// Default configuration values.
const (
	defaultServerPort         = 8080
	defaultServerTimeout      = 30 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultHealthInterval     = 10 * time.Second
	defaultStaleTimeout       = 15 * time.Second
	defaultSignalLossCycles   = 2
	defaultRestartAttempts    = 5
	defaultRestartBackoff     = 2 * time.Second
	defaultProbeTimeout       = 3 * time.Second
	defaultCameraFramerate    = 30
	defaultCameraBitrate      = 4_000_000 // bits/s
	defaultDiskCheckInterval  = 30 * time.Second
	defaultFinalizeTimeout    = 10 * time.Second
	defaultMixerHealthTimeout = 5 * time.Second
	defaultMixDuration        = 500 * time.Millisecond
	defaultAutoDuration       = 1000 * time.Millisecond
	defaultReadyTimeout       = 10 * time.Second
	defaultServiceTimeout     = 30 * time.Second
	defaultTriggerTimeout     = 5 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server          ServerConfig           `mapstructure:"server"`
	Logging         LoggingConfig          `mapstructure:"logging"`
	MediaServer     MediaServerConfig      `mapstructure:"media_server"`
	Cameras         []CameraConfig         `mapstructure:"cameras"`
	Ingest          IngestConfig           `mapstructure:"ingest"`
	Recording       RecordingConfig        `mapstructure:"recording"`
	Mixer           MixerConfig            `mapstructure:"mixer"`
	Reveal          RevealConfig           `mapstructure:"reveal"`
	Overlay         OverlayConfig          `mapstructure:"overlay"`
	ModeManager     ModeManagerConfig      `mapstructure:"mode_manager"`
	ExternalCameras []ExternalCameraConfig `mapstructure:"external_cameras"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`  // debug, info, warn, error
	Format    string `mapstructure:"format"` // json, text
	AddSource bool   `mapstructure:"add_source"`
	// File enables rotated log output to the given path in addition to stdout.
	// Empty disables file logging.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MediaServerConfig describes the local media server the pipelines publish to
// and subscribe from. All addresses are expected to be loopback; publishing
// uses IPv4 explicitly because rtspclientsink trips over IPv6 resolution of
// "localhost" on the target image.
type MediaServerConfig struct {
	RTSPAddress  string        `mapstructure:"rtsp_address"`
	APIAddress   string        `mapstructure:"api_address"`
	WHEPAddress  string        `mapstructure:"whep_address"`
	ReadyTimeout time.Duration `mapstructure:"ready_timeout"`
}

// CameraConfig is the immutable capture spec for one HDMI input.
type CameraConfig struct {
	ID        string `mapstructure:"id"`
	Device    string `mapstructure:"device"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
	Framerate int    `mapstructure:"framerate"`
	// Bitrate is the encoder target in bits per second.
	Bitrate int    `mapstructure:"bitrate"`
	Codec   string `mapstructure:"codec"` // h264, h265
	Enabled bool   `mapstructure:"enabled"`
}

// IngestConfig tunes the per-camera publish supervisors.
type IngestConfig struct {
	HealthInterval     time.Duration `mapstructure:"health_interval"`
	StaleTimeout       time.Duration `mapstructure:"stale_timeout"`
	SignalLossCycles   int           `mapstructure:"signal_loss_cycles"`
	MaxRestartAttempts int           `mapstructure:"max_restart_attempts"`
	RestartBackoff     time.Duration `mapstructure:"restart_backoff"`
	ProbeTimeout       time.Duration `mapstructure:"probe_timeout"`
	// Platform selects the encoder/decoder element family: "rockchip" for the
	// RK3588 MPP elements, "generic" for software elements on dev hosts.
	Platform string `mapstructure:"platform"`
}

// RecordingConfig holds recording session configuration.
type RecordingConfig struct {
	Root             string          `mapstructure:"root"`
	SessionsDir      string          `mapstructure:"sessions_dir"`
	Fragmented       bool            `mapstructure:"fragmented"`
	FragmentDuration time.Duration   `mapstructure:"fragment_duration"`
	MinDiskSpace     units.Size      `mapstructure:"min_disk_space"`
	WarningDiskSpace units.Size      `mapstructure:"warning_disk_space"`
	CheckInterval    time.Duration   `mapstructure:"check_interval"`
	FinalizeTimeout  time.Duration   `mapstructure:"finalize_timeout"`
	Retention        RetentionConfig `mapstructure:"retention"`
}

// RetentionConfig holds scheduled pruning of old recordings and session files.
type RetentionConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Cron    string         `mapstructure:"cron"` // standard 5-field cron expression
	MaxAge  units.Duration `mapstructure:"max_age"`
}

// MixerConfig holds live compositor configuration.
type MixerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	OutputWidth      int           `mapstructure:"output_width"`
	OutputHeight     int           `mapstructure:"output_height"`
	OutputFramerate  int           `mapstructure:"output_framerate"`
	OutputBitrate    int           `mapstructure:"output_bitrate"` // bits/s
	OutputCodec      string        `mapstructure:"output_codec"`
	RecordingEnabled bool          `mapstructure:"recording_enabled"`
	MediaServerPath  string        `mapstructure:"media_server_path"`
	ScenesDir        string        `mapstructure:"scenes_dir"`
	WatchScenes      bool          `mapstructure:"watch_scenes"`
	HealthTimeout    time.Duration `mapstructure:"health_timeout"`
	MixDuration      time.Duration `mapstructure:"mix_duration"`
	AutoDuration     time.Duration `mapstructure:"auto_duration"`
}

// RevealConfig holds browser-to-video output configuration.
type RevealConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
	Framerate int    `mapstructure:"framerate"`
	Bitrate   int    `mapstructure:"bitrate"`  // bits/s
	Renderer  string `mapstructure:"renderer"` // wpe, cef
}

// OverlayConfig holds broadcast overlay rendering configuration.
type OverlayConfig struct {
	// FontPath points at a TTF/OTF file for overlay text. Empty falls back to
	// the built-in bitmap face.
	FontPath string `mapstructure:"font_path"`
}

// ModeManagerConfig holds operational mode arbitration configuration.
type ModeManagerConfig struct {
	StateFile   string `mapstructure:"state_file"`
	DefaultMode string `mapstructure:"default_mode"` // recorder, vdo_publisher
	// PublisherUnitTemplate names the per-camera systemd unit started in
	// vdo_publisher mode; %s is replaced with the camera id.
	PublisherUnitTemplate string        `mapstructure:"publisher_unit_template"`
	ServiceTimeout        time.Duration `mapstructure:"service_timeout"`
}

// ExternalCameraConfig is a parallel-recording trigger invoked on session
// start/stop. Failures are logged, never gating.
type ExternalCameraConfig struct {
	ID       string        `mapstructure:"id"`
	StartURL string        `mapstructure:"start_url"`
	StopURL  string        `mapstructure:"stop_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with MIXARR_ and use underscores for
// nesting. Example: MIXARR_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/mixarr")
		v.AddConfigPath("$HOME/.mixarr")
	}

	v.SetEnvPrefix("MIXARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// decodeHook extends Viper's defaults so units.Size and units.Duration values
// can be written as strings ("500MB", "30d") in the config file.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file so file and env values
// override them.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("logging.compress", true)

	// Media server defaults
	v.SetDefault("media_server.rtsp_address", "127.0.0.1:8554")
	v.SetDefault("media_server.api_address", "127.0.0.1:9997")
	v.SetDefault("media_server.whep_address", "127.0.0.1:8889")
	v.SetDefault("media_server.ready_timeout", defaultReadyTimeout)

	// Ingest defaults
	v.SetDefault("ingest.health_interval", defaultHealthInterval)
	v.SetDefault("ingest.stale_timeout", defaultStaleTimeout)
	v.SetDefault("ingest.signal_loss_cycles", defaultSignalLossCycles)
	v.SetDefault("ingest.max_restart_attempts", defaultRestartAttempts)
	v.SetDefault("ingest.restart_backoff", defaultRestartBackoff)
	v.SetDefault("ingest.probe_timeout", defaultProbeTimeout)
	v.SetDefault("ingest.platform", "rockchip")

	// Recording defaults
	v.SetDefault("recording.root", "/var/lib/mixarr/recordings")
	v.SetDefault("recording.sessions_dir", "/var/lib/mixarr/sessions")
	v.SetDefault("recording.fragmented", false)
	v.SetDefault("recording.fragment_duration", 2*time.Second)
	v.SetDefault("recording.min_disk_space", "500MB")
	v.SetDefault("recording.warning_disk_space", "2GB")
	v.SetDefault("recording.check_interval", defaultDiskCheckInterval)
	v.SetDefault("recording.finalize_timeout", defaultFinalizeTimeout)
	v.SetDefault("recording.retention.enabled", false)
	v.SetDefault("recording.retention.cron", "0 3 * * *") // daily at 03:00
	v.SetDefault("recording.retention.max_age", "30d")

	// Mixer defaults
	v.SetDefault("mixer.enabled", false)
	v.SetDefault("mixer.output_width", 1920)
	v.SetDefault("mixer.output_height", 1080)
	v.SetDefault("mixer.output_framerate", defaultCameraFramerate)
	v.SetDefault("mixer.output_bitrate", 6_000_000)
	v.SetDefault("mixer.output_codec", "h264")
	v.SetDefault("mixer.recording_enabled", false)
	v.SetDefault("mixer.media_server_path", "mixer_program")
	v.SetDefault("mixer.scenes_dir", "/etc/mixarr/scenes")
	v.SetDefault("mixer.watch_scenes", true)
	v.SetDefault("mixer.health_timeout", defaultMixerHealthTimeout)
	v.SetDefault("mixer.mix_duration", defaultMixDuration)
	v.SetDefault("mixer.auto_duration", defaultAutoDuration)

	// Reveal defaults
	v.SetDefault("reveal.enabled", false)
	v.SetDefault("reveal.width", 1920)
	v.SetDefault("reveal.height", 1080)
	v.SetDefault("reveal.framerate", defaultCameraFramerate)
	v.SetDefault("reveal.bitrate", 4_000_000)
	v.SetDefault("reveal.renderer", "wpe")

	// Overlay defaults
	v.SetDefault("overlay.font_path", "")

	// Mode manager defaults
	v.SetDefault("mode_manager.state_file", "/var/lib/mixarr/mode.json")
	v.SetDefault("mode_manager.default_mode", "recorder")
	v.SetDefault("mode_manager.publisher_unit_template", "vdo-publisher@%s.service")
	v.SetDefault("mode_manager.service_timeout", defaultServiceTimeout)
}

// Validate checks the configuration for errors. A failure here must abort
// startup.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.MediaServer.RTSPAddress == "" {
		return fmt.Errorf("media_server.rtsp_address is required")
	}
	if c.MediaServer.APIAddress == "" {
		return fmt.Errorf("media_server.api_address is required")
	}

	seen := make(map[string]bool, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("cameras[%d].id is required", i)
		}
		if seen[cam.ID] {
			return fmt.Errorf("cameras[%d].id %q is duplicated", i, cam.ID)
		}
		seen[cam.ID] = true
		if cam.Enabled && cam.Device == "" {
			return fmt.Errorf("cameras[%d] (%s): device is required for enabled cameras", i, cam.ID)
		}
		if cam.Width < 0 || cam.Height < 0 {
			return fmt.Errorf("cameras[%d] (%s): resolution must not be negative", i, cam.ID)
		}
		if cam.Framerate < 1 {
			return fmt.Errorf("cameras[%d] (%s): framerate must be at least 1", i, cam.ID)
		}
		if cam.Bitrate < 1 {
			return fmt.Errorf("cameras[%d] (%s): bitrate must be positive", i, cam.ID)
		}
		switch cam.Codec {
		case "h264", "h265":
		default:
			return fmt.Errorf("cameras[%d] (%s): codec must be h264 or h265", i, cam.ID)
		}
	}

	if c.Ingest.SignalLossCycles < 1 {
		return fmt.Errorf("ingest.signal_loss_cycles must be at least 1")
	}
	if c.Ingest.Platform != "rockchip" && c.Ingest.Platform != "generic" {
		return fmt.Errorf("ingest.platform must be rockchip or generic")
	}

	if c.Recording.Root == "" {
		return fmt.Errorf("recording.root is required")
	}
	if c.Recording.SessionsDir == "" {
		return fmt.Errorf("recording.sessions_dir is required")
	}
	if c.Recording.WarningDiskSpace < c.Recording.MinDiskSpace {
		return fmt.Errorf("recording.warning_disk_space must not be below recording.min_disk_space")
	}

	if c.Mixer.Enabled {
		if c.Mixer.OutputWidth < 1 || c.Mixer.OutputHeight < 1 {
			return fmt.Errorf("mixer.output_width and mixer.output_height must be positive")
		}
		if c.Mixer.OutputFramerate < 1 {
			return fmt.Errorf("mixer.output_framerate must be at least 1")
		}
		if c.Mixer.OutputCodec != "h264" {
			return fmt.Errorf("mixer.output_codec must be h264")
		}
		if c.Mixer.MediaServerPath == "" {
			return fmt.Errorf("mixer.media_server_path is required")
		}
		if c.Mixer.ScenesDir == "" {
			return fmt.Errorf("mixer.scenes_dir is required")
		}
	}

	if c.Reveal.Enabled {
		if c.Reveal.Renderer != "wpe" && c.Reveal.Renderer != "cef" {
			return fmt.Errorf("reveal.renderer must be wpe or cef")
		}
		if c.Reveal.Width < 1 || c.Reveal.Height < 1 || c.Reveal.Framerate < 1 {
			return fmt.Errorf("reveal resolution and framerate must be positive")
		}
	}

	switch c.ModeManager.DefaultMode {
	case "recorder", "vdo_publisher":
	default:
		return fmt.Errorf("mode_manager.default_mode must be recorder or vdo_publisher")
	}
	if c.ModeManager.StateFile == "" {
		return fmt.Errorf("mode_manager.state_file is required")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RTSPURL returns the loopback RTSP URL for a published path.
func (c *MediaServerConfig) RTSPURL(path string) string {
	return fmt.Sprintf("rtsp://%s/%s", c.RTSPAddress, path)
}

// APIURL returns the admin API base URL.
func (c *MediaServerConfig) APIURL() string {
	return fmt.Sprintf("http://%s", c.APIAddress)
}

// WHEPURL returns the WHEP endpoint URL for a published path.
func (c *MediaServerConfig) WHEPURL(path string) string {
	return fmt.Sprintf("http://%s/%s/whep", c.WHEPAddress, path)
}

// CameraByID returns the camera spec for the given id.
func (c *Config) CameraByID(id string) (CameraConfig, bool) {
	for _, cam := range c.Cameras {
		if cam.ID == id {
			return cam, true
		}
	}
	return CameraConfig{}, false
}

// EnabledCameras returns the cameras with the enabled flag set, in config
// order.
func (c *Config) EnabledCameras() []CameraConfig {
	out := make([]CameraConfig, 0, len(c.Cameras))
	for _, cam := range c.Cameras {
		if cam.Enabled {
			out = append(out, cam)
		}
	}
	return out
}
