// Package capture replays position captures recorded in a SQLite database,
// such as telemetry logged by a drone or a vehicle tracker.
//
// The database must contain a positions table:
//
//	CREATE TABLE positions (
//	    timestamp INTEGER NOT NULL, -- epoch milliseconds
//	    latitude  REAL    NOT NULL,
//	    longitude REAL    NOT NULL,
//	    speed     REAL              -- m/s, NULL when not measured
//	);
package capture

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/speedtrack/internal/geo"
	"github.com/roman-kulish/speedtrack/internal/location"
	"github.com/roman-kulish/speedtrack/internal/timeutil"
)

const (
	Name = "capture"

	selectPositionsSQL = `
SELECT
    timestamp,
    latitude,
    longitude,
    speed
FROM positions`
)

// WithLogger sets the logger for the replay
func WithLogger(logger *slog.Logger) func(r *Replay) {
	return func(r *Replay) {
		r.logger = logger.With(slog.String("provider", Name), slog.String("path", r.dbPath))
	}
}

// WithPace sets the replay speed factor. 0 replays as fast as possible.
func WithPace(factor float64) func(r *Replay) {
	return func(r *Replay) {
		r.pace = factor
	}
}

// WithClock sets the clock used for pacing
func WithClock(clock timeutil.Clock) func(r *Replay) {
	return func(r *Replay) {
		r.clock = clock
	}
}

// WithStartTime excludes positions recorded before t
func WithStartTime(t time.Time) func(r *Replay) {
	return func(r *Replay) {
		r.startTime = &t
	}
}

// WithEndTime excludes positions recorded after t
func WithEndTime(t time.Time) func(r *Replay) {
	return func(r *Replay) {
		r.endTime = &t
	}
}

// Replay is a location.Provider reading a positions table in timestamp order.
type Replay struct {
	dbPath string
	pace   float64
	clock  timeutil.Clock
	logger *slog.Logger

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter
}

var _ location.Provider = (*Replay)(nil)

// New creates a Replay of the SQLite capture at dbPath.
func New(dbPath string, options ...func(r *Replay)) *Replay {
	r := Replay{
		dbPath: dbPath,
		clock:  timeutil.RealClock{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

func (r *Replay) Name() string {
	return Name
}

// Available reports whether the capture file exists.
func (r *Replay) Available() bool {
	stat, err := os.Stat(r.dbPath)
	return err == nil && !stat.IsDir()
}

// Watch opens the capture read-only and streams its rows.
func (r *Replay) Watch(ctx context.Context) (*location.Stream, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", r.dbPath, "mode=ro"))
	if err != nil {
		return nil, fmt.Errorf("opening read connection: %w", err)
	}

	query, args := r.query()
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("querying positions: %w", err)
	}

	r.logger.Info("replaying capture", slog.Float64("pace", r.pace))

	pacer := &location.Pacer{Clock: r.clock, Factor: r.pace}
	return location.NewStream(ctx, func(ctx context.Context, emit func(location.Fix) error) (err error) {
		defer closeWithError(db, &err)
		defer closeWithError(rows, &err)

		var count int
		for rows.Next() {
			var ts int64
			var lat, lon float64
			var speed sql.NullFloat64
			if err = rows.Scan(&ts, &lat, &lon, &speed); err != nil {
				return fmt.Errorf("scanning position: %w", err)
			}

			if err = pacer.Wait(ctx, ts); err != nil {
				return err
			}

			fix := location.Fix{Sample: geo.Sample{Latitude: lat, Longitude: lon, Timestamp: ts}}
			if speed.Valid {
				fix.Speed = &speed.Float64
			}
			if err = emit(fix); err != nil {
				return err
			}
			count++
		}
		if err = rows.Err(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("iterating positions: %w", err)
		}

		r.logger.Info("capture replay finished", slog.Int("positions", count))
		return nil
	}), nil
}

func (r *Replay) query() (string, []any) {
	var where []string
	var args []any

	if r.startTime != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, r.startTime.UnixMilli())
	}
	if r.endTime != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, r.endTime.UnixMilli())
	}

	var sb strings.Builder
	sb.WriteString(selectPositionsSQL)
	if len(where) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString("\nORDER BY timestamp")

	return sb.String(), args
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
