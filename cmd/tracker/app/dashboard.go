package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/speedtrack/internal/timeutil"
	"github.com/roman-kulish/speedtrack/internal/tracker"
)

// Dashboard prints session snapshots as one status line per refresh.
type Dashboard struct {
	w io.Writer
}

func NewDashboard(w io.Writer) *Dashboard {
	return &Dashboard{w: w}
}

// Run prints source() every interval until ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context, clock timeutil.Clock, interval time.Duration, source func() tracker.Snapshot) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C():
			_ = d.Print(source())
		}
	}
}

// Print writes one line describing snap.
func (d *Dashboard) Print(snap tracker.Snapshot) error {
	_, err := fmt.Fprintln(d.w, FormatSnapshot(snap))
	return err
}

// FormatSnapshot renders the time, distance, speed, average speed and
// location cards of a snapshot.
func FormatSnapshot(snap tracker.Snapshot) string {
	status := "stopped"
	if snap.IsTracking {
		status = "tracking"
		if snap.IsMoving {
			status = "moving"
		}
	}

	fields := []string{
		fmt.Sprintf("[%s]", status),
		snap.Elapsed(),
		fmt.Sprintf("%s m (%.2f km)", humanize.CommafWithDigits(snap.TotalDistance, 2), snap.TotalDistance/1000),
		"speed " + formatSpeed(snap.SpeedMps, snap.SpeedKmh),
		"avg " + formatSpeed(snap.AverageSpeedMps, snap.AverageSpeedKmh),
	}

	if snap.Position != nil {
		fields = append(fields, fmt.Sprintf("%.4f, %.4f", snap.Position.Latitude, snap.Position.Longitude))
	} else {
		fields = append(fields, "no position")
	}

	fields = append(fields, humanize.Comma(int64(len(snap.TrackPoints)))+" points")

	if snap.Error != "" {
		fields = append(fields, "error: "+snap.Error)
	}

	return strings.Join(fields, " | ")
}

func formatSpeed(mps, kmh *float64) string {
	if mps == nil || kmh == nil {
		return "-- m/s (-- km/h)"
	}
	return fmt.Sprintf("%.2f m/s (%.2f km/h)", *mps, *kmh)
}
