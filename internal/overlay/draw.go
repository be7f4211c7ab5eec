package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/jmylchreest/mixarr/internal/models"
)

// renderInstruction is one element snapshot with its frame-resolved
// animation values.
type renderInstruction struct {
	el      models.OverlayElement
	alpha   float64
	elapsed time.Duration
	pts     time.Duration
}

// Renderer rasterizes elements onto a transparent RGBA canvas matching the
// mixer output. It is driven by a single goroutine (the mixer frame loop)
// and reuses its buffers between frames.
type Renderer struct {
	width  int
	height int
	logger *slog.Logger

	canvas *image.RGBA
	strip  *image.RGBA

	fnt   *sfnt.Font
	faces map[int]font.Face
	logos map[string]image.Image
}

// NewRenderer loads the configured font, falling back to the built-in
// bitmap face when the file is missing or unreadable.
func NewRenderer(width, height int, fontPath string, logger *slog.Logger) *Renderer {
	r := &Renderer{
		width:  width,
		height: height,
		logger: logger,
		canvas: image.NewRGBA(image.Rect(0, 0, width, height)),
		faces:  make(map[int]font.Face),
		logos:  make(map[string]image.Image),
	}

	if fontPath != "" {
		data, err := os.ReadFile(fontPath)
		if err == nil {
			fnt, perr := opentype.Parse(data)
			if perr == nil {
				r.fnt = fnt
			} else {
				err = perr
			}
		}
		if r.fnt == nil {
			logger.Warn("overlay font unavailable, using built-in face",
				slog.String("font", fontPath),
				slog.String("error", err.Error()),
			)
		}
	}
	return r
}

// Render draws all instructions onto a cleared canvas and returns it. The
// canvas is reused; callers consume it before the next call.
func (r *Renderer) Render(instructions []renderInstruction) *image.RGBA {
	clear(r.canvas.Pix)

	for _, inst := range instructions {
		switch inst.el.Kind {
		case models.OverlayLowerThird:
			r.drawLowerThird(inst)
		case models.OverlayScoreboard:
			r.drawScoreboard(inst)
		case models.OverlayTicker:
			r.drawTicker(inst)
		case models.OverlayTimer:
			r.drawTimer(inst)
		case models.OverlayLogo:
			r.drawLogo(inst)
		}
	}
	return r.canvas
}

// Size returns the canvas dimensions.
func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}

func (r *Renderer) face(size int) font.Face {
	if r.fnt == nil {
		return basicfont.Face7x13
	}
	if face, ok := r.faces[size]; ok {
		return face
	}
	face, err := opentype.NewFace(r.fnt, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	r.faces[size] = face
	return face
}

func (r *Renderer) measure(s string, size int) int {
	return font.MeasureString(r.face(size), s).Ceil()
}

func (r *Renderer) ascent(size int) int {
	return r.face(size).Metrics().Ascent.Ceil()
}

func (r *Renderer) lineHeight(size int) int {
	return r.face(size).Metrics().Height.Ceil()
}

// drawText draws s with its baseline at (x, y).
func (r *Renderer) drawText(dst draw.Image, x, y int, s string, size int, col color.NRGBA) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: r.face(size),
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func fillRect(dst draw.Image, rect image.Rectangle, col color.NRGBA) {
	draw.Draw(dst, rect, image.NewUniform(col), image.Point{}, draw.Over)
}

func (r *Renderer) drawLowerThird(inst renderInstruction) {
	el := inst.el
	fg := scaleAlpha(parseColor(el.FGColor), inst.alpha)
	bg := scaleAlpha(parseColor(el.BGColor), inst.alpha)

	size := el.FontSize
	subSize := size * 2 / 3
	padX := size
	padY := size / 2

	textW := r.measure(el.Text, size)
	barH := r.lineHeight(size) + 2*padY
	if el.Subtext != "" {
		if w := r.measure(el.Subtext, subSize); w > textW {
			textW = w
		}
		barH += r.lineHeight(subSize)
	}
	barW := textW + 2*padX

	// Slides up into place as it fades in.
	x := int(el.X * float64(r.width))
	y := int(el.Y*float64(r.height)) + int((1-inst.alpha)*40)

	fillRect(r.canvas, image.Rect(x, y, x+barW, y+barH), bg)
	fillRect(r.canvas, image.Rect(x, y, x+size/5, y+barH), fg)

	baseline := y + padY + r.ascent(size)
	r.drawText(r.canvas, x+padX, baseline, el.Text, size, fg)
	if el.Subtext != "" {
		r.drawText(r.canvas, x+padX, baseline+r.lineHeight(subSize)+padY/2, el.Subtext, subSize, fg)
	}
}

func (r *Renderer) drawScoreboard(inst renderInstruction) {
	el := inst.el
	fg := scaleAlpha(parseColor(el.FGColor), inst.alpha)
	bg := scaleAlpha(parseColor(el.BGColor), inst.alpha)

	size := el.FontSize
	text := fmt.Sprintf("%s %d - %d %s", el.HomeName, el.HomeScore, el.AwayScore, el.AwayName)

	padX := size
	padY := size / 3
	boxW := r.measure(text, size) + 2*padX
	boxH := r.lineHeight(size) + 2*padY

	x := int(el.X * float64(r.width))
	y := int(el.Y * float64(r.height))

	fillRect(r.canvas, image.Rect(x, y, x+boxW, y+boxH), bg)
	r.drawText(r.canvas, x+padX, y+padY+r.ascent(size), text, size, fg)
}

func (r *Renderer) drawTicker(inst renderInstruction) {
	el := inst.el
	fg := scaleAlpha(parseColor(el.FGColor), inst.alpha)
	bg := scaleAlpha(parseColor(el.BGColor), inst.alpha)

	size := el.FontSize
	barH := size * 2
	text := el.Text
	if len(el.Items) > 0 {
		text = strings.Join(el.Items, "   •   ")
	}
	if text == "" {
		return
	}

	if r.strip == nil || r.strip.Bounds().Dy() != barH {
		r.strip = image.NewRGBA(image.Rect(0, 0, r.width, barH))
	}
	clear(r.strip.Pix)
	fillRect(r.strip, r.strip.Bounds(), bg)

	// Speed is screen widths per second; the text marches left and wraps
	// with a quarter-screen gap.
	textW := r.measure(text, size)
	span := textW + r.width/4
	phase := int(inst.pts.Seconds()*el.Speed*float64(r.width)) % span
	first := (r.width - phase) % span
	if first > 0 {
		first -= span
	}
	baseline := (barH+r.ascent(size))/2 - 1
	for x := first; x < r.width; x += span {
		r.drawText(r.strip, x, baseline, text, size, fg)
	}

	y := int(el.Y * float64(r.height))
	if y+barH > r.height {
		y = r.height - barH
	}
	draw.Draw(r.canvas, image.Rect(0, y, r.width, y+barH), r.strip, image.Point{}, draw.Over)
}

func (r *Renderer) drawTimer(inst renderInstruction) {
	el := inst.el
	fg := scaleAlpha(parseColor(el.FGColor), inst.alpha)
	bg := scaleAlpha(parseColor(el.BGColor), inst.alpha)

	var val time.Duration
	if el.CountDown {
		val = el.TimerFrom - inst.elapsed
		if val < 0 {
			val = 0
		}
	} else {
		val = el.TimerFrom + inst.elapsed
	}

	size := el.FontSize
	text := formatClock(val)
	padX := size / 2
	padY := size / 4
	boxW := r.measure(text, size) + 2*padX
	boxH := r.lineHeight(size) + 2*padY

	x := int(el.X * float64(r.width))
	y := int(el.Y * float64(r.height))

	fillRect(r.canvas, image.Rect(x, y, x+boxW, y+boxH), bg)
	r.drawText(r.canvas, x+padX, y+padY+r.ascent(size), text, size, fg)
}

func (r *Renderer) drawLogo(inst renderInstruction) {
	el := inst.el
	x := int(el.X * float64(r.width))
	y := int(el.Y * float64(r.height))

	if el.Image != "" {
		img := r.logoImage(el.Image)
		if img != nil {
			b := img.Bounds()
			mask := image.NewUniform(color.Alpha{A: uint8(inst.alpha * 255)})
			draw.DrawMask(r.canvas,
				image.Rect(x, y, x+b.Dx(), y+b.Dy()),
				img, b.Min, mask, image.Point{}, draw.Over)
			return
		}
	}

	if el.Text == "" {
		return
	}
	fg := scaleAlpha(parseColor(el.FGColor), inst.alpha)
	bg := scaleAlpha(parseColor(el.BGColor), inst.alpha)
	size := el.FontSize
	pad := size / 3
	boxW := r.measure(el.Text, size) + 2*pad
	boxH := r.lineHeight(size) + 2*pad
	fillRect(r.canvas, image.Rect(x, y, x+boxW, y+boxH), bg)
	r.drawText(r.canvas, x+pad, y+pad+r.ascent(size), el.Text, size, fg)
}

func (r *Renderer) logoImage(path string) image.Image {
	if img, ok := r.logos[path]; ok {
		return img
	}
	f, err := os.Open(path)
	if err != nil {
		r.logger.Warn("logo image unreadable", slog.String("path", path), slog.String("error", err.Error()))
		r.logos[path] = nil
		return nil
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		r.logger.Warn("logo image undecodable", slog.String("path", path), slog.String("error", err.Error()))
		r.logos[path] = nil
		return nil
	}
	r.logos[path] = img
	return img
}

// formatClock renders a duration as m:ss or h:mm:ss.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// parseColor reads #rrggbb or #rrggbbaa hex colors, returning opaque white
// on anything it cannot parse.
func parseColor(s string) color.NRGBA {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "#")
	var c color.NRGBA
	c.A = 0xff
	switch len(s) {
	case 8:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A); err != nil {
			return color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
		}
	case 6:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
			return color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
		}
	default:
		return color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	return c
}

// scaleAlpha multiplies a color's alpha by the animation opacity.
func scaleAlpha(c color.NRGBA, alpha float64) color.NRGBA {
	if alpha >= 1 {
		return c
	}
	if alpha < 0 {
		alpha = 0
	}
	c.A = uint8(float64(c.A) * alpha)
	return c
}
