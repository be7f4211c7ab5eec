// Package pipeline builds GStreamer pipeline descriptions for every media
// role in the system. Builders are pure functions over their inputs: all ids,
// paths and URLs are substituted by the caller and no global state is read.
//
// The descriptions use gst-launch syntax and are parsed by the gst runtime.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/mixarr/internal/config"
)

// Role names the purpose of a built pipeline.
type Role string

const (
	RoleIngestPublish   Role = "ingest_publish"
	RoleRecordSubscribe Role = "record_subscribe"
	RoleMixerProgram    Role = "mixer_program"
	RoleRevealPublish   Role = "reveal_publish"
)

// Platform selects the encoder/decoder element family.
type Platform string

const (
	// PlatformRockchip uses the RK3588 MPP hardware elements.
	PlatformRockchip Platform = "rockchip"
	// PlatformGeneric uses software elements for development hosts.
	PlatformGeneric Platform = "generic"
)

// Well-known element names callers look up after parsing.
const (
	// TapName is the appsink liveness tap teed off the encoded output.
	TapName = "livetap"
	// OverlaySrcName is the appsrc the overlay renderer feeds.
	OverlaySrcName = "overlaysrc"
	// MixName is the compositor element of the mixer pipeline.
	MixName = "mix"
)

// Spec is a complete pipeline description plus the named handles the runtime
// needs afterwards.
type Spec struct {
	Role        Role
	Description string
	// Tap names the appsink used for buffer liveness tracking, empty when
	// the pipeline has none.
	Tap string
	// OverlaySrc names the appsrc overlay feed (mixer only).
	OverlaySrc string
	// Mixer names the compositor element (mixer only).
	Mixer string
	// Pads maps source ids to compositor sink pad names in request order
	// (mixer only).
	Pads map[string]string
	// Crops maps source ids to the videocrop element in their branch
	// (mixer only).
	Crops map[string]string
	// OverlayPad is the compositor pad of the overlay branch (mixer only).
	OverlayPad string
}

// rtspLatencyMS keeps subscribe paths close to live without starving the
// depayloader.
const rtspLatencyMS = 100

// IngestPublish builds the always-on publish pipeline for one camera.
// width/height are the working resolution chosen by the supervisor (probe
// result, or the configured scale target); fps and bitrate come from the
// camera spec. The encoder parameter set on rockchip is the one proven stable
// on RK3588: explicit init/min/max quantization, gop equal to the framerate,
// CBR with an explicit bit rate. Publishing goes through rtspclientsink,
// which performs its own payloading, to a loopback IPv4 URL.
func IngestPublish(cam config.CameraConfig, width, height int, platform Platform, rtspURL string) Spec {
	var b strings.Builder

	fmt.Fprintf(&b, "v4l2src device=%s ! queue ! videorate ! videoconvert ! videoscale ! ", cam.Device)
	fmt.Fprintf(&b, "video/x-raw,width=%d,height=%d,framerate=%d/1 ! ", width, height, cam.Framerate)
	b.WriteString(encoderChain(cam.Codec, platform, cam.Bitrate, cam.Framerate))
	fmt.Fprintf(&b, " ! tee name=t ! queue ! rtspclientsink location=%s ", rtspURL)
	fmt.Fprintf(&b, "t. ! queue leaky=downstream max-size-buffers=1 ! appsink name=%s", TapName)

	return Spec{
		Role:        RoleIngestPublish,
		Description: b.String(),
		Tap:         TapName,
	}
}

// RecordSubscribe builds a recording pipeline that subscribes to the media
// server and writes one MP4 file. codec must be the codec the path actually
// publishes, which may differ from the camera's configured preference.
func RecordSubscribe(rtspURL, codec, outputFile string, fragmented bool, fragmentMS int) Spec {
	var b strings.Builder

	fmt.Fprintf(&b, "rtspsrc location=%s latency=%d protocols=tcp ! ", rtspURL, rtspLatencyMS)
	b.WriteString(depayParse(codec))
	b.WriteString(" ! queue ! ")
	if fragmented {
		fmt.Fprintf(&b, "mp4mux name=mux fragment-duration=%d", fragmentMS)
	} else {
		b.WriteString("mp4mux name=mux")
	}
	fmt.Fprintf(&b, " ! filesink location=%s", outputFile)

	return Spec{
		Role:        RoleRecordSubscribe,
		Description: b.String(),
	}
}

// MixerSource is one subscribed input of the mixer pipeline.
type MixerSource struct {
	ID      string
	RTSPURL string
	Codec   string
}

// MixerOutput describes the composited program stream.
type MixerOutput struct {
	Width      int
	Height     int
	Framerate  int
	Bitrate    int
	Codec      string
	PublishURL string
}

// MixerProgram builds the superset composition pipeline: one subscribe branch
// per source plus the overlay appsrc branch, composited and re-published.
// Branches link to the compositor in slice order, so pad numbering is
// deterministic: sources get sink_0..sink_N-1 and the overlay branch gets
// sink_N (kept on top by the runtime's z-order updates).
func MixerProgram(sources []MixerSource, out MixerOutput, platform Platform) Spec {
	var b strings.Builder

	fmt.Fprintf(&b, "compositor name=%s background=black ! ", MixName)
	fmt.Fprintf(&b, "video/x-raw,width=%d,height=%d,framerate=%d/1 ! videoconvert ! ", out.Width, out.Height, out.Framerate)
	b.WriteString(encoderChain(out.Codec, platform, out.Bitrate, out.Framerate))
	fmt.Fprintf(&b, " ! tee name=t ! queue ! rtspclientsink location=%s ", out.PublishURL)
	fmt.Fprintf(&b, "t. ! queue leaky=downstream max-size-buffers=1 ! appsink name=%s", TapName)

	pads := make(map[string]string, len(sources))
	crops := make(map[string]string, len(sources))
	for i, src := range sources {
		fmt.Fprintf(&b, " %s %s.", SubscribeBranch(src, platform), MixName)
		pads[src.ID] = fmt.Sprintf("sink_%d", i)
		crops[src.ID] = CropName(src.ID)
	}

	fmt.Fprintf(&b, " appsrc name=%s is-live=true format=time ! videoconvert ! queue ! %s.",
		OverlaySrcName, MixName)
	overlayPad := fmt.Sprintf("sink_%d", len(sources))

	return Spec{
		Role:        RoleMixerProgram,
		Description: b.String(),
		Tap:         TapName,
		OverlaySrc:  OverlaySrcName,
		Mixer:       MixName,
		Pads:        pads,
		Crops:       crops,
		OverlayPad:  overlayPad,
	}
}

// SubscribeBranch builds one decoded media-only source chain for the mixer:
// rtspsrc through depay/parse/decode to raw video frames. The videocrop
// element stays in the chain at zero crop so scene slots can trim the source
// at runtime without a rebuild.
func SubscribeBranch(src MixerSource, platform Platform) string {
	return fmt.Sprintf("rtspsrc location=%s latency=%d protocols=tcp ! %s ! %s ! videocrop name=%s ! videoconvert ! videoscale ! queue !",
		src.RTSPURL, rtspLatencyMS, depayParse(src.Codec), decoderElement(src.Codec, platform), CropName(src.ID))
}

// CropName returns the videocrop element name for one mixer source branch.
func CropName(sourceID string) string {
	return "crop_" + sourceID
}

// RevealPublish builds the browser-to-video publish pipeline for one reveal
// output.
func RevealPublish(url string, cfg config.RevealConfig, platform Platform, rtspURL string) Spec {
	var b strings.Builder

	switch cfg.Renderer {
	case "cef":
		fmt.Fprintf(&b, "cefsrc url=%s ! ", url)
	default:
		fmt.Fprintf(&b, "wpevideosrc location=%s draw-background=true ! ", url)
	}
	fmt.Fprintf(&b, "videoconvert ! videoscale ! videorate ! ")
	fmt.Fprintf(&b, "video/x-raw,width=%d,height=%d,framerate=%d/1 ! ", cfg.Width, cfg.Height, cfg.Framerate)
	b.WriteString(encoderChain("h264", platform, cfg.Bitrate, cfg.Framerate))
	fmt.Fprintf(&b, " ! tee name=t ! queue ! rtspclientsink location=%s ", rtspURL)
	fmt.Fprintf(&b, "t. ! queue leaky=downstream max-size-buffers=1 ! appsink name=%s", TapName)

	return Spec{
		Role:        RoleRevealPublish,
		Description: b.String(),
		Tap:         TapName,
	}
}

// encoderChain returns the encode+parse portion for the requested codec.
// bitrate is in bits per second.
func encoderChain(codec string, platform Platform, bitrate, framerate int) string {
	if platform == PlatformRockchip {
		enc := "mpph264enc"
		if codec == "h265" {
			enc = "mpph265enc"
		}
		// qp window plus explicit gop/cbr/bps. Loosening this set has caused
		// rkvenc faults on RK3588, keep all six properties.
		return fmt.Sprintf("%s qp-init=26 qp-min=10 qp-max=51 gop=%d rc-mode=cbr bps=%d ! %s",
			enc, framerate, bitrate, parseElement(codec))
	}

	kbps := bitrate / 1000
	if codec == "h265" {
		return fmt.Sprintf("x265enc tune=zerolatency bitrate=%d key-int-max=%d ! %s",
			kbps, framerate, parseElement(codec))
	}
	return fmt.Sprintf("x264enc tune=zerolatency speed-preset=ultrafast bitrate=%d key-int-max=%d ! %s",
		kbps, framerate, parseElement(codec))
}

// depayParse returns the RTP depayloader and parser pair for a codec.
func depayParse(codec string) string {
	if codec == "h265" {
		return "rtph265depay ! h265parse"
	}
	return "rtph264depay ! h264parse"
}

// decoderElement returns the raw-video decoder for a codec.
func decoderElement(codec string, platform Platform) string {
	if platform == PlatformRockchip {
		return "mppvideodec"
	}
	if codec == "h265" {
		return "avdec_h265"
	}
	return "avdec_h264"
}

// parseElement returns the stream parser for a codec.
func parseElement(codec string) string {
	if codec == "h265" {
		return "h265parse"
	}
	return "h264parse"
}

// RequiredElements lists every element factory the built descriptions can
// reference for a platform. renderer is the reveal renderer setting, empty
// when no browser outputs run. Startup checks the installed registry against
// this list so a missing plugin surfaces as one log line instead of a parse
// failure on first use.
func RequiredElements(platform Platform, renderer string) []string {
	elements := []string{
		"v4l2src", "videoconvert", "videoscale", "videorate", "videocrop",
		"queue", "tee", "capsfilter", "appsink", "appsrc", "compositor",
		"rtspclientsink", "rtspsrc",
		"rtph264depay", "rtph265depay", "h264parse", "h265parse",
		"mp4mux", "filesink",
	}
	switch renderer {
	case "":
	case "cef":
		elements = append(elements, "cefsrc")
	default:
		elements = append(elements, "wpevideosrc")
	}
	if platform == PlatformRockchip {
		return append(elements, "mpph264enc", "mpph265enc", "mppvideodec")
	}
	return append(elements, "x264enc", "x265enc", "avdec_h264", "avdec_h265")
}
