package storage

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time DATETIME NOT NULL,
    task       TEXT NOT NULL,
    farm       TEXT NOT NULL DEFAULT '',
    field      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS trajectories (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      INTEGER NOT NULL REFERENCES runs (id),
    element     TEXT NOT NULL,
    description TEXT NOT NULL,
    connection  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS points (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    trajectory_id INTEGER NOT NULL REFERENCES trajectories (id),
    seq           INTEGER NOT NULL,
    log_date      TEXT NOT NULL DEFAULT '',
    log_time      TEXT NOT NULL DEFAULT '',
    longitude     REAL NOT NULL,
    latitude      REAL NOT NULL,
    height        REAL NOT NULL,
    channels      TEXT
);

CREATE INDEX IF NOT EXISTS idx_trajectories_run ON trajectories (run_id);
CREATE INDEX IF NOT EXISTS idx_points_trajectory ON points (trajectory_id, seq);
`

const (
	insertRunSQL = `
INSERT INTO runs (start_time, task, farm, field)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectRunsSQL = `
SELECT id, start_time, task, farm, field
FROM runs
ORDER BY start_time`

	insertTrajectorySQL = `
INSERT INTO trajectories (run_id, element, description, connection)
VALUES (?, ?, ?, ?)`

	selectTrajectoriesSQL = `
SELECT id, run_id, element, description, connection
FROM trajectories
WHERE run_id = ?
ORDER BY id`

	insertPointSQL = `
INSERT INTO points (trajectory_id, seq, log_date, log_time, longitude, latitude, height, channels)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectTrajectorySQL = `
SELECT id, run_id, element, description, connection
FROM trajectories
WHERE id = ?`

	selectPointsSQL = `
SELECT seq, log_date, log_time, longitude, latitude, height, channels
FROM points
WHERE trajectory_id = ?`
)
