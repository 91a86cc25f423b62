package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/fieldtrace/isoxml-convert/internal/device"
	"github.com/fieldtrace/isoxml-convert/internal/isoxml"
	"github.com/fieldtrace/isoxml-convert/internal/output"
	"github.com/fieldtrace/isoxml-convert/internal/sim"
	"github.com/fieldtrace/isoxml-convert/internal/storage"
	"github.com/fieldtrace/isoxml-convert/internal/timelog"
)

// errDegraded reports that some tasks or time logs failed; the run itself
// completes regardless and converts everything it can.
var errDegraded = errors.New("conversion completed with errors")

// Run converts every task in the task file. Failures are scoped: a broken
// time log or connection costs only its own output, never the run.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	doc, err := isoxml.Load(config.TaskPath)
	if err != nil {
		return fmt.Errorf("loading task data: %w", err)
	}

	var store storage.Store
	if config.Settings.DatabasePath != "" {
		if config.Cartesian {
			logger.Warn("database sink stores geodetic coordinates, disabled in cartesian mode")
		} else {
			s := storage.NewSqliteStore(config.Settings.DatabasePath)
			defer s.Close()
			store = s
		}
	}

	resolver := device.NewResolver(logger)
	ok := true
	for i := range doc.Tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !convertTask(ctx, doc, &doc.Tasks[i], resolver, config, store, logger) {
			ok = false
		}
	}

	if !ok {
		return errDegraded
	}
	return nil
}

func convertTask(ctx context.Context, doc *isoxml.TaskData, task *isoxml.Task,
	resolver *device.Resolver, config *Config, store storage.Store, logger *slog.Logger) bool {

	name := taskName(task)
	records, resolved := resolver.Resolve(doc, task)
	ok := resolved
	if !resolved {
		logger.Warn("geometry resolution degraded, converting with partial geometry",
			slog.String("task", name))
	}

	farm, field := taskContext(doc, task)

	var runID int64
	if store != nil {
		var err error
		if runID, err = store.CreateRun(ctx, name, farm, field); err != nil {
			logger.Error("creating run, disabling database sink",
				slog.String("task", name), slog.String("error", err.Error()))
			store = nil
			ok = false
		}
	}

	for _, tlg := range task.TimeLogs {
		if ctx.Err() != nil {
			return false
		}
		if err := convertTimeLog(ctx, doc, tlg, records, name, farm, field, config, store, runID, logger); err != nil {
			logger.Error("time log conversion failed",
				slog.String("task", name),
				slog.String("timelog", tlg.Filename),
				slog.String("error", err.Error()))
			ok = false
		}
	}
	return ok
}

func convertTimeLog(ctx context.Context, doc *isoxml.TaskData, tlg isoxml.TimeLogRef,
	records []*device.GeometryRecord, task, farm, field string,
	config *Config, store storage.Store, runID int64, logger *slog.Logger) error {

	dir := filepath.Dir(config.TaskPath)
	headerPath := filepath.Join(dir, tlg.Filename+".XML")

	hdr, err := isoxml.LoadTimeLogHeader(headerPath)
	if err != nil {
		return err
	}
	schema := timelog.BuildSchema(hdr, doc, logger)

	bin, err := os.Open(isoxml.BinaryPath(headerPath))
	if err != nil {
		return fmt.Errorf("opening binary log: %w", err)
	}
	defer bin.Close()

	var size uint64
	if stat, err := bin.Stat(); err == nil {
		size = uint64(stat.Size())
	}

	header, data, err := timelog.Decode(schema, bin)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", tlg.Filename, err)
	}

	logger.Info("decoded time log",
		slog.String("timelog", tlg.Filename),
		slog.String("records", humanize.Comma(int64(header.Rows()))),
		slog.String("size", humanize.Bytes(size)))

	// Records are rebuilt per task but reused across its time logs; channel
	// buffers must not leak between logs.
	for _, rec := range records {
		rec.ClearChannels()
	}
	device.Partition(records, data, config.NoSimulation)

	if !sim.Simulate(header, records, sim.Options{Cartesian: config.Cartesian}, logger) {
		return fmt.Errorf("simulating %s: no usable position channels", tlg.Filename)
	}

	for _, rec := range outputRecords(records) {
		if err := writeRecord(rec, task, farm, field, config); err != nil {
			return err
		}
		if store != nil {
			if err := storeRecord(ctx, store, runID, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// outputRecords picks the geometries worth emitting: those that own data
// channels, or just the antenna trace when nothing was attributed.
func outputRecords(records []*device.GeometryRecord) []*device.GeometryRecord {
	var out []*device.GeometryRecord
	for _, rec := range records {
		if len(rec.DataChannels.Columns) > 0 {
			out = append(out, rec)
		}
	}
	if out != nil {
		return out
	}
	for _, rec := range records {
		if rec.Element == device.FallbackElement {
			return []*device.GeometryRecord{rec}
		}
	}
	return nil
}

func writeRecord(rec *device.GeometryRecord, task, farm, field string, config *Config) error {
	base := output.BaseName(farm, field, task, rec.Description, &rec.HeaderChannels)
	path := filepath.Join(config.Settings.OutputDirectory,
		fmt.Sprintf("%s.%s", base, strings.ToLower(string(config.Format))))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	switch config.Format {
	case FormatCSV:
		err = output.WriteCSV(f, &rec.HeaderChannels, &rec.DataChannels)
	default:
		err = output.WriteGML(f, &rec.HeaderChannels, &rec.DataChannels)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func storeRecord(ctx context.Context, store storage.Store, runID int64, rec *device.GeometryRecord) error {
	trajectoryID, err := store.CreateTrajectory(ctx, runID, rec.Element, rec.Description, rec.Connection.String())
	if err != nil {
		return err
	}

	north := rec.HeaderChannels.ByName(timelog.ChanPositionNorth)
	east := rec.HeaderChannels.ByName(timelog.ChanPositionEast)
	up := rec.HeaderChannels.ByName(timelog.ChanPositionUp)
	date := firstNonNil(rec.HeaderChannels.ByName(timelog.ChanGpsUtcDate), rec.HeaderChannels.ByName(timelog.ChanTimeStartDATE))
	tod := firstNonNil(rec.HeaderChannels.ByName(timelog.ChanGpsUtcTime), rec.HeaderChannels.ByName(timelog.ChanTimeStartTOFD))

	points := make([]storage.PointWithChannels, 0, north.Len())
	for i := 0; i < north.Len(); i++ {
		p := storage.PointWithChannels{
			Point: storage.Point{
				Seq:       i,
				Longitude: float64(east.Int32At(i)) * 1e-7,
				Latitude:  float64(north.Int32At(i)) * 1e-7,
				Height:    float64(up.Int32At(i)) * 1e-3,
			},
		}
		if date != nil {
			p.Date = date.StringAt(i)
		}
		if tod != nil {
			p.Time = tod.StringAt(i)
		}
		if len(rec.DataChannels.Columns) > 0 {
			p.Channels = make(map[string]string, len(rec.DataChannels.Columns))
			for _, c := range rec.DataChannels.Columns {
				p.Channels[c.Name] = c.ValueString(i)
			}
		}
		points = append(points, p)
	}

	return store.StorePoints(ctx, trajectoryID, points)
}

func firstNonNil(cols ...*timelog.Column) *timelog.Column {
	for _, c := range cols {
		if c != nil {
			return c
		}
	}
	return nil
}

func taskName(task *isoxml.Task) string {
	if task.Designator != "" {
		return task.Designator
	}
	return task.ID
}

// taskContext resolves the farm and field designators referenced by the
// task, for output naming.
func taskContext(doc *isoxml.TaskData, task *isoxml.Task) (farm, field string) {
	if f, ok := doc.FarmByID(task.FarmIDRef); ok {
		farm = f.Designator
	}
	if p, ok := doc.PartfieldByID(task.PartfieldRef); ok {
		field = p.Designator
	}
	return farm, field
}
