// Package export writes a finished session snapshot to output artefacts: a
// rendered image, a GeoJSON document and a GPX track.
package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roman-kulish/speedtrack/internal/location/gpxreplay"
	"github.com/roman-kulish/speedtrack/internal/render"
	"github.com/roman-kulish/speedtrack/internal/render/geojson"
	"github.com/roman-kulish/speedtrack/internal/render/raster"
	"github.com/roman-kulish/speedtrack/internal/tracker"
)

// Options selects the artefacts to write. An empty path skips the artefact.
type Options struct {
	Name string // Track name stored in GeoJSON and GPX

	ImagePath   string
	ImageFormat raster.ImageFormat
	Raster      raster.Config

	GeoJSONPath string
	GPXPath     string
}

// Write renders snap to every configured artefact. All artefacts are
// attempted; failures are joined.
func Write(snap tracker.Snapshot, options Options, logger *slog.Logger) error {
	var errs []error

	if options.ImagePath != "" {
		if err := writeFile(options.ImagePath, func(w io.Writer) error {
			return Image(w, snap, options.ImageFormat, options.Raster)
		}); err != nil {
			errs = append(errs, fmt.Errorf("writing image: %w", err))
		} else {
			logger.Info("image written", slog.String("path", options.ImagePath), slog.String("format", string(options.ImageFormat)))
		}
	}

	if options.GeoJSONPath != "" {
		if err := writeFile(options.GeoJSONPath, func(w io.Writer) error {
			return GeoJSON(w, snap, options.Name)
		}); err != nil {
			errs = append(errs, fmt.Errorf("writing GeoJSON: %w", err))
		} else {
			logger.Info("GeoJSON written", slog.String("path", options.GeoJSONPath))
		}
	}

	if options.GPXPath != "" {
		if err := writeFile(options.GPXPath, func(w io.Writer) error {
			return gpxreplay.Export(w, options.Name, snap.TrackPoints)
		}); err != nil {
			errs = append(errs, fmt.Errorf("writing GPX: %w", err))
		} else {
			logger.Info("GPX written", slog.String("path", options.GPXPath), slog.Int("points", len(snap.TrackPoints)))
		}
	}

	return errors.Join(errs...)
}

// Image draws snap with the raster renderer and encodes it to w.
func Image(w io.Writer, snap tracker.Snapshot, format raster.ImageFormat, config raster.Config) error {
	if format == "" {
		format = raster.ImagePNG
	}

	r := raster.NewRenderer(config)
	render.Draw(r, snap)

	img, err := r.Render(raster.NewSummary(snap))
	if err != nil {
		return fmt.Errorf("rendering path: %w", err)
	}

	return raster.Encode(w, img, format)
}

// GeoJSON writes snap as a FeatureCollection.
func GeoJSON(w io.Writer, snap tracker.Snapshot, name string) error {
	r := geojson.NewRenderer(name)
	render.Draw(r, snap)

	_, err := r.WriteTo(w)
	return err
}

func writeFile(path string, fn func(w io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeWithError(f, &err)

	return fn(f)
}

func closeWithError(cl io.Closer, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
