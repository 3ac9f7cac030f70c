package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/divledger/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS dividends_fact (
		row_hash TEXT NOT NULL,
		account_id TEXT,
		broker TEXT,
		broker_account TEXT,
		symbol TEXT,
		cusip TEXT,
		isin TEXT,
		security_name TEXT,
		event_type TEXT,
		ex_date TEXT,
		record_date TEXT,
		pay_date TEXT NOT NULL,
		quantity REAL,
		gross_amount REAL,
		withholding_tax REAL,
		fees REAL,
		net_amount REAL,
		currency TEXT,
		reinvested BOOLEAN,
		drip_price REAL,
		created_ts TIMESTAMP NOT NULL,
		source_file TEXT NOT NULL,
		line_no INTEGER NOT NULL,
		notes TEXT
	);
	CREATE UNIQUE INDEX IF NOT EXISTS uniq_dividends_row_hash ON dividends_fact(row_hash);

	CREATE TABLE IF NOT EXISTS rejected_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_file TEXT NOT NULL,
		line_no INTEGER,
		reason TEXT NOT NULL,
		row_fields TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS ingest_batches (
		batch_id TEXT PRIMARY KEY,
		source_file TEXT NOT NULL,
		profile TEXT,
		rows_in INTEGER NOT NULL,
		accepted INTEGER NOT NULL,
		rejected INTEGER NOT NULL,
		loaded_rows INTEGER NOT NULL,
		duplicate_rows INTEGER NOT NULL,
		file_reason TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := DB.Exec(createTableStatement); err != nil {
		stdlog.Fatalf("failed to run database migrations: %v", err)
	}

	if logger.L != nil {
		logger.L.Info("Database schema ready")
	}
}
