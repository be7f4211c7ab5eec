package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mixarr/pkg/units"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:8554", cfg.MediaServer.RTSPAddress)
	assert.Equal(t, 10*time.Second, cfg.Ingest.HealthInterval)
	assert.Equal(t, 15*time.Second, cfg.Ingest.StaleTimeout)
	assert.Equal(t, 2, cfg.Ingest.SignalLossCycles)
	assert.Equal(t, "rockchip", cfg.Ingest.Platform)
	assert.Equal(t, 500*units.MB, cfg.Recording.MinDiskSpace)
	assert.Equal(t, 2*units.GB, cfg.Recording.WarningDiskSpace)
	assert.Equal(t, 5*time.Second, cfg.Mixer.HealthTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Mixer.MixDuration)
	assert.Equal(t, time.Second, cfg.Mixer.AutoDuration)
	assert.Equal(t, "mixer_program", cfg.Mixer.MediaServerPath)
	assert.Equal(t, "recorder", cfg.ModeManager.DefaultMode)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9090
cameras:
  - id: cam0
    device: /dev/video0
    width: 1920
    height: 1080
    framerate: 30
    bitrate: 4000000
    codec: h264
    enabled: true
  - id: cam1
    device: /dev/video1
    framerate: 25
    bitrate: 2000000
    codec: h265
    enabled: false
recording:
  root: /tmp/rec
  sessions_dir: /tmp/sessions
  min_disk_space: 1GB
  warning_disk_space: 4GB
  retention:
    enabled: true
    max_age: 14d
mixer:
  enabled: true
  output_width: 1280
  output_height: 720
  scenes_dir: /tmp/scenes
`))
	require.NoError(t, err)

	require.Len(t, cfg.Cameras, 2)
	assert.Equal(t, "cam0", cfg.Cameras[0].ID)
	assert.True(t, cfg.Cameras[0].Enabled)
	assert.Equal(t, "h265", cfg.Cameras[1].Codec)
	assert.Equal(t, units.GB, cfg.Recording.MinDiskSpace)
	assert.Equal(t, 4*units.GB, cfg.Recording.WarningDiskSpace)
	assert.Equal(t, 14*24*time.Hour, cfg.Recording.Retention.MaxAge.Std())
	assert.Equal(t, 1280, cfg.Mixer.OutputWidth)

	enabled := cfg.EnabledCameras()
	require.Len(t, enabled, 1)
	assert.Equal(t, "cam0", enabled[0].ID)

	cam, ok := cfg.CameraByID("cam1")
	require.True(t, ok)
	assert.Equal(t, "/dev/video1", cam.Device)
	_, ok = cfg.CameraByID("cam9")
	assert.False(t, ok)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MIXARR_SERVER_PORT", "9999")
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Server.Port = 8080
		cfg.Logging.Level = "info"
		cfg.Logging.Format = "json"
		cfg.MediaServer.RTSPAddress = "127.0.0.1:8554"
		cfg.MediaServer.APIAddress = "127.0.0.1:9997"
		cfg.Ingest.SignalLossCycles = 2
		cfg.Ingest.Platform = "rockchip"
		cfg.Recording.Root = "/tmp/rec"
		cfg.Recording.SessionsDir = "/tmp/sessions"
		cfg.Recording.MinDiskSpace = 500 * units.MB
		cfg.Recording.WarningDiskSpace = 2 * units.GB
		cfg.ModeManager.DefaultMode = "recorder"
		cfg.ModeManager.StateFile = "/tmp/mode.json"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"missing rtsp", func(c *Config) { c.MediaServer.RTSPAddress = "" }, "rtsp_address"},
		{
			"camera without id",
			func(c *Config) { c.Cameras = []CameraConfig{{Device: "/dev/video0"}} },
			"cameras[0].id",
		},
		{
			"duplicate camera id",
			func(c *Config) {
				c.Cameras = []CameraConfig{
					{ID: "cam0", Device: "/dev/video0", Framerate: 30, Bitrate: 1, Codec: "h264"},
					{ID: "cam0", Device: "/dev/video1", Framerate: 30, Bitrate: 1, Codec: "h264"},
				}
			},
			"duplicated",
		},
		{
			"enabled camera without device",
			func(c *Config) {
				c.Cameras = []CameraConfig{{ID: "cam0", Enabled: true, Framerate: 30, Bitrate: 1, Codec: "h264"}}
			},
			"device is required",
		},
		{
			"bad codec",
			func(c *Config) {
				c.Cameras = []CameraConfig{{ID: "cam0", Device: "/dev/video0", Framerate: 30, Bitrate: 1, Codec: "vp8"}}
			},
			"codec",
		},
		{"bad platform", func(c *Config) { c.Ingest.Platform = "jetson" }, "ingest.platform"},
		{
			"warning below minimum",
			func(c *Config) { c.Recording.WarningDiskSpace = 100 * units.MB },
			"warning_disk_space",
		},
		{
			"mixer enabled without scenes dir",
			func(c *Config) {
				c.Mixer.Enabled = true
				c.Mixer.OutputWidth = 1920
				c.Mixer.OutputHeight = 1080
				c.Mixer.OutputFramerate = 30
				c.Mixer.OutputCodec = "h264"
				c.Mixer.MediaServerPath = "mixer_program"
			},
			"scenes_dir",
		},
		{
			"reveal bad renderer",
			func(c *Config) {
				c.Reveal.Enabled = true
				c.Reveal.Renderer = "chromium"
			},
			"reveal.renderer",
		},
		{"bad default mode", func(c *Config) { c.ModeManager.DefaultMode = "studio" }, "default_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMediaServerURLs(t *testing.T) {
	ms := MediaServerConfig{
		RTSPAddress: "127.0.0.1:8554",
		APIAddress:  "127.0.0.1:9997",
		WHEPAddress: "127.0.0.1:8889",
	}
	assert.Equal(t, "rtsp://127.0.0.1:8554/cam0", ms.RTSPURL("cam0"))
	assert.Equal(t, "http://127.0.0.1:9997", ms.APIURL())
	assert.Equal(t, "http://127.0.0.1:8889/cam0/whep", ms.WHEPURL("cam0"))
}

func TestServerAddress(t *testing.T) {
	sc := ServerConfig{Host: "10.0.0.1", Port: 8080}
	assert.Equal(t, "10.0.0.1:8080", sc.Address())
}
