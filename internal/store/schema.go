package store

const schema = `
CREATE TABLE IF NOT EXISTS index_cache (
    community TEXT PRIMARY KEY,
    fetched_at TIMESTAMP NOT NULL,
    package_count INTEGER NOT NULL,
    payload BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS backups (
    filename TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    size_bytes INTEGER NOT NULL,
    source_dir TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS install_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    full_name TEXT NOT NULL,
    version TEXT,
    action TEXT NOT NULL,
    success BOOLEAN NOT NULL,
    message TEXT,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_full_name ON install_history(full_name);
CREATE INDEX IF NOT EXISTS idx_history_timestamp ON install_history(timestamp);
CREATE INDEX IF NOT EXISTS idx_backups_created ON backups(created_at);
`
