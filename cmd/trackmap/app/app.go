package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/fieldtrace/isoxml-convert/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	trajectories, err := store.Trajectories(ctx, config.RunID)
	if err != nil {
		return err
	}
	if len(trajectories) == 0 {
		return fmt.Errorf("run %d has no trajectories", config.RunID)
	}

	var tracks []*Track
	var total int64
	for _, t := range trajectories {
		track, err := readTrack(ctx, store, t)
		if err != nil {
			return err
		}
		if len(track.Lon) == 0 {
			logger.Warn("skipping empty trajectory", slog.String("description", t.Description))
			continue
		}
		total += int64(len(track.Lon))
		tracks = append(tracks, track)
	}
	if len(tracks) == 0 {
		return fmt.Errorf("run %d has no points to draw", config.RunID)
	}

	logger.Info("read trajectories",
		slog.Int("trajectories", len(tracks)),
		slog.String("points", humanize.Comma(total)))

	renderer, err := NewTrackRenderer(RenderConfig{Width: config.Width, Height: config.Height})
	if err != nil {
		return fmt.Errorf("creating track renderer: %w", err)
	}

	logger.Info("rendering track map",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height),
		))

	img, err := renderer.Render(tracks)
	if err != nil {
		return fmt.Errorf("rendering track map: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: 98})
	default:
		err = png.Encode(out, img)
	}
	return err
}

func readTrack(ctx context.Context, store *storage.SqliteStore, t storage.Trajectory) (*Track, error) {
	reader, err := storage.ReadPoints[storage.Point](ctx, store, t.ID)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	track := &Track{
		Description: t.Description,
		Connection:  t.Connection,
	}
	for reader.Next() {
		p := reader.Current()
		track.Lon = append(track.Lon, p.Longitude)
		track.Lat = append(track.Lat, p.Latitude)
	}
	if err := reader.Error(); err != nil {
		return nil, fmt.Errorf("reading trajectory %d: %w", t.ID, err)
	}
	return track, nil
}
