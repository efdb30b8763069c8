package store

const schema = `
-- Known drives (identified by sensor name, persistent across restarts)
CREATE TABLE IF NOT EXISTS drives (
    name        TEXT PRIMARY KEY,
    dev_path    TEXT NOT NULL,
    source      TEXT NOT NULL,
    host        TEXT,
    model       TEXT,
    serial      TEXT,
    strategy    TEXT NOT NULL,
    policy      TEXT NOT NULL,
    has_lowest  INTEGER NOT NULL DEFAULT 0,
    has_highest INTEGER NOT NULL DEFAULT 0,
    temp_min    INTEGER,
    temp_max    INTEGER,
    temp_lcrit  INTEGER,
    temp_crit   INTEGER,
    first_seen  INTEGER NOT NULL,
    last_seen   INTEGER NOT NULL
);

-- Drive temperature time series (48h retention by default).
-- Temperatures are millidegrees Celsius.
CREATE TABLE IF NOT EXISTS temp_snapshots (
    ts          INTEGER NOT NULL,
    drive       TEXT    NOT NULL,
    temp        INTEGER NOT NULL,
    lowest      INTEGER,
    highest     INTEGER,
    strategy    TEXT    NOT NULL,
    PRIMARY KEY (ts, drive)
) WITHOUT ROWID;

-- Alert log (30d retention)
CREATE TABLE IF NOT EXISTS alert_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    ts          INTEGER NOT NULL,
    alert_type  TEXT    NOT NULL,
    drive       TEXT,
    subject     TEXT    NOT NULL,
    message     TEXT    NOT NULL,
    severity    TEXT    NOT NULL
);

-- Secondary indexes
CREATE INDEX IF NOT EXISTS idx_temp_drive ON temp_snapshots(drive, ts);
CREATE INDEX IF NOT EXISTS idx_alert_ts ON alert_log(ts);
`
