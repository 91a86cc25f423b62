package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi      = 120.0
	fontSize = 12.0

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 40
)

// Track is one trajectory to draw, in degrees.
type Track struct {
	Description string
	Connection  string
	Lon         []float64
	Lat         []float64
}

// RenderConfig holds the track map rendering options.
type RenderConfig struct {
	Width    int
	Height   int
	FontSize float64

	// Border configuration
	Borders BorderConfig
}

// BorderConfig defines the white space around the map area.
type BorderConfig struct {
	Top    int
	Left   int
	Bottom int
	Right  int
}

// TrackRenderer draws converted trajectories onto an annotated canvas.
type TrackRenderer struct {
	config RenderConfig
}

// NewTrackRenderer creates a renderer, filling in defaults for zero values.
func NewTrackRenderer(config RenderConfig) (*TrackRenderer, error) {
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.Borders.Top == 0 {
		config.Borders.Top = defaultTopBorder
	}
	if config.Borders.Left == 0 {
		config.Borders.Left = defaultLeftBorder
	}
	if config.Borders.Bottom == 0 {
		config.Borders.Bottom = defaultBottomBorder
	}
	if config.Borders.Right == 0 {
		config.Borders.Right = defaultRightBorder
	}
	return &TrackRenderer{config: config}, nil
}

// Render draws all tracks scaled to a shared geographic extent, with the
// extent labelled along the borders and a legend line per track.
func (r *TrackRenderer) Render(tracks []*Track) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.config.Width, r.config.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(
		r.config.Borders.Left,
		r.config.Borders.Top,
		r.config.Width-r.config.Borders.Right,
		r.config.Height-r.config.Borders.Bottom,
	)

	ext := extentOf(tracks)
	for i, track := range tracks {
		r.renderTrack(img, area, ext, track, trackColor(i, len(tracks)))
	}

	ann, err := newAnnotator(r.config)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err := ann.annotate(img, area, ext, tracks); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}
	return img, nil
}

func (r *TrackRenderer) renderTrack(img *image.RGBA, area image.Rectangle, ext extent, track *Track, col color.Color) {
	var px, py int
	for i := range track.Lon {
		x, y := ext.project(track.Lon[i], track.Lat[i], area)
		if i > 0 {
			drawLine(img, px, py, x, y, col)
		}
		px, py = x, y
	}
}

// extent is the geographic bounding box of all tracks, padded slightly so
// border points stay visible.
type extent struct {
	minLon, maxLon float64
	minLat, maxLat float64
}

func extentOf(tracks []*Track) extent {
	e := extent{minLon: math.Inf(1), maxLon: math.Inf(-1), minLat: math.Inf(1), maxLat: math.Inf(-1)}
	for _, t := range tracks {
		for i := range t.Lon {
			e.minLon = math.Min(e.minLon, t.Lon[i])
			e.maxLon = math.Max(e.maxLon, t.Lon[i])
			e.minLat = math.Min(e.minLat, t.Lat[i])
			e.maxLat = math.Max(e.maxLat, t.Lat[i])
		}
	}

	padLon := (e.maxLon - e.minLon) * 0.02
	padLat := (e.maxLat - e.minLat) * 0.02
	if padLon == 0 {
		padLon = 1e-6
	}
	if padLat == 0 {
		padLat = 1e-6
	}
	e.minLon, e.maxLon = e.minLon-padLon, e.maxLon+padLon
	e.minLat, e.maxLat = e.minLat-padLat, e.maxLat+padLat
	return e
}

func (e extent) project(lon, lat float64, area image.Rectangle) (x, y int) {
	x = area.Min.X + int(float64(area.Dx())*(lon-e.minLon)/(e.maxLon-e.minLon))
	// Image y grows downward, latitude grows upward.
	y = area.Max.Y - int(float64(area.Dy())*(lat-e.minLat)/(e.maxLat-e.minLat))
	return x, y
}

// drawLine draws a straight segment with a simple DDA walk; track segments
// are short enough that anti-aliasing is not worth the cost.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.Color) {
	dx, dy := x1-x0, y1-y0
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		img.Set(x0, y0, col)
		return
	}
	for i := 0; i <= steps; i++ {
		x := x0 + dx*i/steps
		y := y0 + dy*i/steps
		img.Set(x, y, col)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// trackColor assigns each track an evenly spaced hue.
func trackColor(i, n int) color.Color {
	return HSV{H: float64(i) * 360 / float64(n), S: 0.9, V: 0.75}.RGB()
}

// HSV represents a color in HSV color space.
type HSV struct {
	H float64 // Hue [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value [0-1]
}

// RGB converts HSV color space to RGB.
func (hsv HSV) RGB() color.Color {
	h, s, v := hsv.H, hsv.S, hsv.V

	if s <= 0.0 {
		rgb := uint8(v * 255)
		return color.RGBA{R: rgb, G: rgb, B: rgb, A: 0xff}
	}

	h = math.Mod(h, 360) / 60
	i := math.Floor(h)
	f := h - i

	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 0xff}
}

type annotator struct {
	context  *freetype.Context
	config   RenderConfig
	fontFace font.Face
}

func newAnnotator(config RenderConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, area image.Rectangle, ext extent, tracks []*Track) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	// Extent labels on the top and left borders.
	if err := a.drawString(fmt.Sprintf("lon %.6f .. %.6f", ext.minLon, ext.maxLon),
		area.Min.X, area.Min.Y-10); err != nil {
		return err
	}
	if err := a.drawString(fmt.Sprintf("lat %.6f", ext.maxLat), 5, area.Min.Y+12); err != nil {
		return err
	}
	if err := a.drawString(fmt.Sprintf("lat %.6f", ext.minLat), 5, area.Max.Y); err != nil {
		return err
	}

	// Legend along the bottom border, coloured per track.
	x := area.Min.X
	for i, track := range tracks {
		label := fmt.Sprintf("%s (%s)", track.Description, track.Connection)
		col := trackColor(i, len(tracks))
		for dy := -8; dy <= 0; dy++ {
			for dx := 0; dx < 10; dx++ {
				img.Set(x+dx, area.Max.Y+20+dy, col)
			}
		}
		if err := a.drawString(label, x+14, area.Max.Y+20); err != nil {
			return err
		}
		x += 14 + textWidth(a.fontFace, label) + 20
	}
	return nil
}

func (a *annotator) drawString(s string, x, y int) error {
	_, err := a.context.DrawString(s, freetype.Pt(x, y))
	return err
}

func textWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}
