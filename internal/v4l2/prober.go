// Package v4l2 probes capture devices for their active signal through
// v4l2-ctl. HDMI capture bridges report detected timings only while a source
// is connected, which makes the probe double as signal detection.
package v4l2

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

// Runner executes a command and returns its combined output. It exists so
// tests can substitute canned v4l2-ctl transcripts.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Resolution is the active width and height reported by a device.
type Resolution struct {
	Width  int
	Height int
}

var (
	// --query-dv-timings output: "Active width: 1920"
	dvWidthRe  = regexp.MustCompile(`Active width:\s*(\d+)`)
	dvHeightRe = regexp.MustCompile(`Active height:\s*(\d+)`)
	// --get-fmt-video output: "Width/Height : 1920/1080"
	fmtRe = regexp.MustCompile(`Width/Height\s*:\s*(\d+)/(\d+)`)
)

// Prober queries capture devices with a bounded per-probe timeout.
type Prober struct {
	runner  Runner
	timeout time.Duration
}

// NewProber builds a prober. A nil runner uses os/exec.
func NewProber(runner Runner, timeout time.Duration) *Prober {
	if runner == nil {
		runner = ExecRunner{}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Prober{runner: runner, timeout: timeout}
}

// Probe returns the device's detected resolution and whether a signal is
// present. It prefers DV timings, which track the connected HDMI source, and
// falls back to the configured capture format for devices without DV timing
// support. A failed probe means no signal, not an error: sources come and go
// while the engine keeps running.
func (p *Prober) Probe(ctx context.Context, device string) (Resolution, bool) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.runner.Run(ctx, "v4l2-ctl", "--device", device, "--query-dv-timings")
	if err == nil {
		if res, ok := parseDVTimings(out); ok {
			return res, true
		}
	}

	out, err = p.runner.Run(ctx, "v4l2-ctl", "--device", device, "--get-fmt-video")
	if err != nil {
		return Resolution{}, false
	}
	if res, ok := parseFormat(out); ok {
		return res, true
	}
	return Resolution{}, false
}

func parseDVTimings(out []byte) (Resolution, bool) {
	wm := dvWidthRe.FindSubmatch(out)
	hm := dvHeightRe.FindSubmatch(out)
	if wm == nil || hm == nil {
		return Resolution{}, false
	}
	w, _ := strconv.Atoi(string(wm[1]))
	h, _ := strconv.Atoi(string(hm[1]))
	if w <= 0 || h <= 0 {
		return Resolution{}, false
	}
	return Resolution{Width: w, Height: h}, true
}

func parseFormat(out []byte) (Resolution, bool) {
	m := fmtRe.FindSubmatch(out)
	if m == nil {
		return Resolution{}, false
	}
	w, _ := strconv.Atoi(string(m[1]))
	h, _ := strconv.Atoi(string(m[2]))
	if w <= 0 || h <= 0 {
		return Resolution{}, false
	}
	return Resolution{Width: w, Height: h}, true
}
