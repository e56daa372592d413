// Package raster draws a tracked path with the current position marker and a
// summary bar into a bitmap image.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"slices"
	"time"

	"github.com/fogleman/gg"

	"github.com/roman-kulish/speedtrack/internal/geo"
	"github.com/roman-kulish/speedtrack/internal/render"
	"github.com/roman-kulish/speedtrack/internal/tracker"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"

	defaultWidth     = 1024
	defaultHeight    = 768
	defaultPadding   = 40
	defaultLineWidth = 4.0
	markerRadius     = 8.0
	startRadius      = 5.0

	// Smallest span shown, in degrees; about 11 m of latitude
	minSpan = 1e-4
)

type ImageFormat string

// ParseImageFormat validates an image format name.
func ParseImageFormat(name string) (ImageFormat, error) {
	switch f := ImageFormat(name); f {
	case ImagePNG, ImageJPEG:
		return f, nil
	}
	return "", fmt.Errorf("invalid image format: %s", name)
}

// BorderConfig defines the sizes of white space around the map
type BorderConfig struct {
	Padding int // Space between the path and the map edge
	Bottom  int // Space for the summary bar
}

// Config holds all configuration options for path rendering
type Config struct {
	Width  int // Image width in pixels
	Height int // Image height in pixels, summary bar included

	// Time display configuration
	DatetimeFormat string         // Format string for the session start
	Location       *time.Location // Timezone for time display

	// Visual configuration
	FontSize     float64    // Font size in points
	LineWidth    float64    // Path width in pixels
	ColorTheme   ColorTheme // Path gradient
	PaletteSize  int        // Number of colors in gradient (0 for default)
	MarkerColor  color.Color
	NoAnnotation bool // Skip the summary bar

	BorderConfig BorderConfig
}

// Summary is the session information printed under the map.
type Summary struct {
	StartTime       time.Time
	TotalDistance   float64  // meters
	ElapsedSeconds  int64    // whole seconds
	AverageSpeedKmh *float64 // nil until a second has elapsed
	Points          int
}

// NewSummary extracts a Summary from a session snapshot.
func NewSummary(snap tracker.Snapshot) Summary {
	return Summary{
		StartTime:       snap.StartTime,
		TotalDistance:   snap.TotalDistance,
		ElapsedSeconds:  snap.ElapsedSeconds,
		AverageSpeedKmh: snap.AverageSpeedKmh,
		Points:          len(snap.TrackPoints),
	}
}

// viewport maps coordinates onto the map area with an equirectangular
// projection scaled by the cosine of the centre latitude.
type viewport struct {
	centerX, centerY float64 // projected centre
	originX, originY float64 // pixel centre of the map area
	k                float64 // longitude scale
	scale            float64 // pixels per projected degree
}

func (v *viewport) project(p geo.Point) (x, y float64) {
	x = v.originX + (p.Longitude*v.k-v.centerX)*v.scale
	y = v.originY - (p.Latitude-v.centerY)*v.scale
	return x, y
}

// Renderer is a render.PathRenderer producing bitmap images.
type Renderer struct {
	config  Config
	palette *palette

	path   []geo.Point
	marker *geo.Point
	view   *viewport
}

var _ render.PathRenderer = (*Renderer)(nil)

// NewRenderer creates a new path renderer with the given configuration
func NewRenderer(config Config) *Renderer {
	// Set defaults for zero values
	if config.Width <= 0 {
		config.Width = defaultWidth
	}
	if config.Height <= 0 {
		config.Height = defaultHeight
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = time.DateTime
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.LineWidth == 0 {
		config.LineWidth = defaultLineWidth
	}
	if config.ColorTheme == "" {
		config.ColorTheme = ClassicTheme
	}
	if config.MarkerColor == nil {
		config.MarkerColor = color.RGBA{B: 255, A: 255}
	}
	if config.BorderConfig.Padding == 0 {
		config.BorderConfig.Padding = defaultPadding
	}
	if config.BorderConfig.Bottom == 0 && !config.NoAnnotation {
		config.BorderConfig.Bottom = defaultBottomBorder
	}

	return &Renderer{
		config:  config,
		palette: newPalette(config.PaletteSize, config.ColorTheme),
	}
}

func (r *Renderer) SetPath(points []geo.Point) {
	r.path = slices.Clone(points)
}

func (r *Renderer) SetMarkerPosition(p geo.Point) {
	r.marker = &p
}

// FitView fits the path and the marker into the map area, keeping the aspect
// ratio. A single point or a very short path is shown at the minimum span.
func (r *Renderer) FitView() {
	points := r.path
	if r.marker != nil {
		points = append(slices.Clip(points), *r.marker)
	}

	sw, ne, ok := geo.Bounds(points)
	if !ok {
		r.view = nil
		return
	}

	area := r.mapArea()
	k := math.Cos((sw.Latitude + ne.Latitude) / 2 * math.Pi / 180)

	spanX := math.Max((ne.Longitude-sw.Longitude)*k, minSpan)
	spanY := math.Max(ne.Latitude-sw.Latitude, minSpan)

	width := float64(area.Dx() - 2*r.config.BorderConfig.Padding)
	height := float64(area.Dy() - 2*r.config.BorderConfig.Padding)

	r.view = &viewport{
		centerX: (sw.Longitude + ne.Longitude) / 2 * k,
		centerY: (sw.Latitude + ne.Latitude) / 2,
		originX: float64(area.Min.X) + float64(area.Dx())/2,
		originY: float64(area.Min.Y) + float64(area.Dy())/2,
		k:       k,
		scale:   math.Min(width/spanX, height/spanY),
	}
}

// Project returns the pixel position of p in the current view. ok is false
// until FitView has seen at least one point.
func (r *Renderer) Project(p geo.Point) (x, y float64, ok bool) {
	if r.view == nil {
		return 0, 0, false
	}
	x, y = r.view.project(p)
	return x, y, true
}

func (r *Renderer) mapArea() image.Rectangle {
	return image.Rect(0, 0, r.config.Width, r.config.Height-r.config.BorderConfig.Bottom)
}

// Render creates an image of the path and marker with the summary bar.
func (r *Renderer) Render(summary Summary) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.config.Width, r.config.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	if r.view != nil {
		r.renderPath(img)
	}

	if r.config.NoAnnotation {
		return img, nil
	}

	ann, err := newAnnotator(annotatorConfig{
		DatetimeFormat: r.config.DatetimeFormat,
		Location:       r.config.Location,
		FontSize:       r.config.FontSize,
		Borders:        r.config.BorderConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(img, summary); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	return img, nil
}

func (r *Renderer) renderPath(img *image.RGBA) {
	dc := gg.NewContextForRGBA(img)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.SetLineWidth(r.config.LineWidth)

	for i := 1; i < len(r.path); i++ {
		x1, y1 := r.view.project(r.path[i-1])
		x2, y2 := r.view.project(r.path[i])

		dc.SetColor(r.palette.At(float64(i) / float64(len(r.path)-1)))
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
	}

	// Start of the path
	if len(r.path) > 0 {
		x, y := r.view.project(r.path[0])
		dc.SetColor(r.palette.At(0))
		dc.DrawCircle(x, y, startRadius)
		dc.Fill()
	}

	// Current position marker
	if r.marker != nil {
		x, y := r.view.project(*r.marker)
		dc.SetColor(r.config.MarkerColor)
		dc.DrawCircle(x, y, markerRadius)
		dc.Fill()
		dc.SetColor(color.White)
		dc.SetLineWidth(2)
		dc.DrawCircle(x, y, markerRadius)
		dc.Stroke()
	}
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format ImageFormat) error {
	switch format {
	case ImagePNG:
		return png.Encode(w, img)

	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return fmt.Errorf("invalid image format: %s", format)
}
