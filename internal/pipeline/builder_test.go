package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mixarr/internal/config"
)

func testCamera() config.CameraConfig {
	return config.CameraConfig{
		ID:        "cam0",
		Device:    "/dev/video0",
		Framerate: 30,
		Bitrate:   4_000_000,
		Codec:     "h264",
		Enabled:   true,
	}
}

func TestIngestPublishRockchip(t *testing.T) {
	spec := IngestPublish(testCamera(), 1920, 1080, PlatformRockchip, "rtsp://127.0.0.1:8554/cam0")

	assert.Equal(t, RoleIngestPublish, spec.Role)
	assert.Equal(t, TapName, spec.Tap)

	d := spec.Description
	assert.Contains(t, d, "v4l2src device=/dev/video0")
	assert.Contains(t, d, "video/x-raw,width=1920,height=1080,framerate=30/1")
	// The encoder parameter set proven stable on the SoC must survive intact.
	assert.Contains(t, d, "mpph264enc qp-init=26 qp-min=10 qp-max=51 gop=30 rc-mode=cbr bps=4000000")
	assert.Contains(t, d, "h264parse")
	assert.Contains(t, d, "rtspclientsink location=rtsp://127.0.0.1:8554/cam0")
	assert.Contains(t, d, "appsink name=livetap")
	// The capture element negotiates its own format with the device.
	assert.NotContains(t, d, "format=", "no pixel format may be forced on v4l2src")
	// rtspclientsink does the payloading itself.
	assert.NotContains(t, d, "rtph264pay")
}

func TestIngestPublishGenericFallback(t *testing.T) {
	spec := IngestPublish(testCamera(), 1280, 720, PlatformGeneric, "rtsp://127.0.0.1:8554/cam0")

	assert.Contains(t, spec.Description, "x264enc")
	assert.Contains(t, spec.Description, "bitrate=4000")
	assert.NotContains(t, spec.Description, "mpph264enc")
}

func TestIngestPublishH265(t *testing.T) {
	cam := testCamera()
	cam.Codec = "h265"
	spec := IngestPublish(cam, 1920, 1080, PlatformRockchip, "rtsp://127.0.0.1:8554/cam0")

	assert.Contains(t, spec.Description, "mpph265enc")
	assert.Contains(t, spec.Description, "h265parse")
}

func TestRecordSubscribe(t *testing.T) {
	spec := RecordSubscribe("rtsp://127.0.0.1:8554/cam0", "h264",
		"/data/recordings/cam0/recording_session_20251218_114450.mp4", false, 0)

	d := spec.Description
	assert.Contains(t, d, "rtspsrc location=rtsp://127.0.0.1:8554/cam0 latency=100")
	assert.Contains(t, d, "rtph264depay ! h264parse")
	assert.Contains(t, d, "mp4mux name=mux")
	assert.NotContains(t, d, "fragment-duration")
	assert.Contains(t, d, "filesink location=/data/recordings/cam0/recording_session_20251218_114450.mp4")
}

func TestRecordSubscribeFollowsPublishedCodec(t *testing.T) {
	// The camera preference may say h265 while the path publishes h264; the
	// recording chain must follow the published codec.
	spec := RecordSubscribe("rtsp://127.0.0.1:8554/cam2", "h264", "/tmp/out.mp4", false, 0)
	assert.Contains(t, spec.Description, "rtph264depay")
	assert.NotContains(t, spec.Description, "rtph265depay")

	spec = RecordSubscribe("rtsp://127.0.0.1:8554/cam2", "h265", "/tmp/out.mp4", false, 0)
	assert.Contains(t, spec.Description, "rtph265depay ! h265parse")
}

func TestRecordSubscribeFragmented(t *testing.T) {
	spec := RecordSubscribe("rtsp://127.0.0.1:8554/cam0", "h264", "/tmp/out.mp4", true, 2000)
	assert.Contains(t, spec.Description, "mp4mux name=mux fragment-duration=2000")
}

func TestMixerProgramPadOrder(t *testing.T) {
	sources := []MixerSource{
		{ID: "cam0", RTSPURL: "rtsp://127.0.0.1:8554/cam0", Codec: "h264"},
		{ID: "cam1", RTSPURL: "rtsp://127.0.0.1:8554/cam1", Codec: "h264"},
		{ID: "slides", RTSPURL: "rtsp://127.0.0.1:8554/slides", Codec: "h264"},
	}
	out := MixerOutput{
		Width: 1920, Height: 1080, Framerate: 30, Bitrate: 6_000_000,
		Codec: "h264", PublishURL: "rtsp://127.0.0.1:8554/mixer_program",
	}

	spec := MixerProgram(sources, out, PlatformRockchip)

	require.Equal(t, RoleMixerProgram, spec.Role)
	assert.Equal(t, "mix", spec.Mixer)
	assert.Equal(t, map[string]string{
		"cam0":   "sink_0",
		"cam1":   "sink_1",
		"slides": "sink_2",
	}, spec.Pads)
	assert.Equal(t, map[string]string{
		"cam0":   "crop_cam0",
		"cam1":   "crop_cam1",
		"slides": "crop_slides",
	}, spec.Crops)
	assert.Equal(t, "sink_3", spec.OverlayPad)

	d := spec.Description
	assert.Contains(t, d, "compositor name=mix background=black")
	assert.Contains(t, d, "video/x-raw,width=1920,height=1080,framerate=30/1")
	assert.Contains(t, d, "rtspclientsink location=rtsp://127.0.0.1:8554/mixer_program")
	assert.Contains(t, d, "appsrc name=overlaysrc is-live=true format=time")
	assert.Contains(t, d, "mppvideodec")
	assert.Contains(t, d, "videocrop name=crop_cam1")
	assert.Equal(t, 3, strings.Count(d, "rtspsrc location="))
	// The overlay appsrc must be the last branch linked into the compositor.
	assert.Greater(t, strings.Index(d, "appsrc name=overlaysrc"), strings.LastIndex(d, "rtspsrc location="))
}

func TestMixerProgramGenericDecoders(t *testing.T) {
	sources := []MixerSource{
		{ID: "cam0", RTSPURL: "rtsp://127.0.0.1:8554/cam0", Codec: "h265"},
	}
	out := MixerOutput{Width: 1280, Height: 720, Framerate: 30, Bitrate: 4_000_000, Codec: "h264", PublishURL: "rtsp://127.0.0.1:8554/mixer_program"}

	spec := MixerProgram(sources, out, PlatformGeneric)
	assert.Contains(t, spec.Description, "avdec_h265")
	assert.Contains(t, spec.Description, "x264enc")
}

func TestRevealPublish(t *testing.T) {
	cfg := config.RevealConfig{
		Enabled: true, Width: 1920, Height: 1080, Framerate: 30,
		Bitrate: 4_000_000, Renderer: "wpe",
	}

	spec := RevealPublish("http://127.0.0.1:3000/presentation/intro", cfg, PlatformRockchip,
		"rtsp://127.0.0.1:8554/slides")

	d := spec.Description
	assert.Contains(t, d, "wpevideosrc location=http://127.0.0.1:3000/presentation/intro")
	assert.Contains(t, d, "video/x-raw,width=1920,height=1080,framerate=30/1")
	assert.Contains(t, d, "mpph264enc")
	assert.Contains(t, d, "rtspclientsink location=rtsp://127.0.0.1:8554/slides")

	cfg.Renderer = "cef"
	spec = RevealPublish("http://127.0.0.1:3000/p", cfg, PlatformGeneric, "rtsp://127.0.0.1:8554/slides_overlay")
	assert.Contains(t, spec.Description, "cefsrc url=http://127.0.0.1:3000/p")
	assert.Contains(t, spec.Description, "x264enc")
}

func TestRequiredElements(t *testing.T) {
	rockchip := RequiredElements(PlatformRockchip, "wpe")
	assert.Contains(t, rockchip, "mpph264enc")
	assert.Contains(t, rockchip, "mppvideodec")
	assert.Contains(t, rockchip, "wpevideosrc")
	assert.NotContains(t, rockchip, "x264enc")

	generic := RequiredElements(PlatformGeneric, "")
	assert.Contains(t, generic, "x264enc")
	assert.Contains(t, generic, "avdec_h264")
	assert.NotContains(t, generic, "mpph264enc")
	assert.NotContains(t, generic, "wpevideosrc")
	assert.NotContains(t, generic, "cefsrc")

	assert.Contains(t, RequiredElements(PlatformGeneric, "cef"), "cefsrc")
}
