package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
)

// SqliteStore implements Store on a sqlite database file. Write and read
// connections are opened lazily and independently: the writer runs in WAL
// mode, the reader is read-only so render tools can open a database that is
// still being written.
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the database at dbPath. The
// schema is initialized on first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.dbPath))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		s.writeDB = db
	})
	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", s.dbPath))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})
	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateRun(ctx context.Context, task, farm, field string) (runID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx, insertRunSQL, task, farm, field)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	if runID, err = result.LastInsertId(); err != nil {
		return 0, fmt.Errorf("getting run ID: %w", err)
	}
	return runID, nil
}

func (s *SqliteStore) Runs(ctx context.Context) (runs []Run, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectRunsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r Run
		if err = rows.Scan(&r.ID, &r.StartTime, &r.Task, &r.Farm, &r.Field); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SqliteStore) CreateTrajectory(ctx context.Context, runID int64, element, description, connection string) (trajectoryID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx, insertTrajectorySQL, runID, element, description, connection)
	if err != nil {
		return 0, fmt.Errorf("inserting trajectory: %w", err)
	}
	if trajectoryID, err = result.LastInsertId(); err != nil {
		return 0, fmt.Errorf("getting trajectory ID: %w", err)
	}
	return trajectoryID, nil
}

func (s *SqliteStore) Trajectories(ctx context.Context, runID int64) (trajectories []Trajectory, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectTrajectoriesSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("querying trajectories: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var t Trajectory
		if err = rows.Scan(&t.ID, &t.RunID, &t.Element, &t.Description, &t.Connection); err != nil {
			return nil, fmt.Errorf("scanning trajectory: %w", err)
		}
		trajectories = append(trajectories, t)
	}
	return trajectories, rows.Err()
}

func (s *SqliteStore) StorePoints(ctx context.Context, trajectoryID int64, points []PointWithChannels) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			rollbackWithError(tx, &err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertPointSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, p := range points {
		var channels sql.NullString
		if len(p.Channels) > 0 {
			data, mErr := json.Marshal(p.Channels)
			if mErr != nil {
				return fmt.Errorf("marshaling channels: %w", mErr)
			}
			channels.Valid = true
			channels.String = string(data)
		}
		if _, err = stmt.ExecContext(ctx, trajectoryID, p.Seq, p.Date, p.Time,
			p.Longitude, p.Latitude, p.Height, channels); err != nil {
			return fmt.Errorf("inserting point: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing points: %w", err)
	}
	committed = true
	return nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		if s.writeDB != nil {
			s.closeErr = s.writeDB.Close()
		}
		if s.readDB != nil {
			if err := s.readDB.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}
