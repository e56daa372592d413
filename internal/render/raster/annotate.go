package raster

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/speedtrack/internal/geo"
)

const (
	dpi                 = 120.0
	fontSize            = 10.0
	defaultBottomBorder = 40
)

type annotatorConfig struct {
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
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

func (a *annotator) annotate(img *image.RGBA, summary Summary) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	// Center text vertically in bottom border
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-fontHeight)/2 - metrics.Descent.Round()

	pt := freetype.Pt(a.config.Borders.Padding, textY)
	if _, err := a.context.DrawString(summaryLine(summary, a.config.Location, a.config.DatetimeFormat), pt); err != nil {
		return fmt.Errorf("drawing summary: %w", err)
	}

	return nil
}

func summaryLine(s Summary, loc *time.Location, layout string) string {
	var sb strings.Builder

	if !s.StartTime.IsZero() {
		sb.WriteString(fmt.Sprintf("Start: %s; ", s.StartTime.In(loc).Format(layout)))
	}
	sb.WriteString(fmt.Sprintf("Time: %s; ", geo.FormatElapsed(s.ElapsedSeconds)))
	sb.WriteString(fmt.Sprintf("Distance: %s; ", FormatDistance(s.TotalDistance)))
	sb.WriteString(fmt.Sprintf("Avg: %s; ", FormatSpeed(s.AverageSpeedKmh)))
	sb.WriteString(fmt.Sprintf("Points: %s", humanize.Comma(int64(s.Points))))

	return sb.String()
}

// FormatDistance renders meters with an SI prefix, e.g. "1.25 km".
func FormatDistance(meters float64) string {
	return humanize.SIWithDigits(meters, 2, "m")
}

// FormatSpeed renders a km/h speed or "--" when there is none.
func FormatSpeed(kmh *float64) string {
	if kmh == nil {
		return "--"
	}
	return fmt.Sprintf("%.1f km/h", *kmh)
}
