package sinks

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/username/divledger/src/database"
	"github.com/username/divledger/src/logger"
	"github.com/username/divledger/src/models"
)

const dateLayout = "2006-01-02"

// LoadAccepted appends canonical rows to the dividends fact table.
// Duplicate row hashes are skipped, not errors; that skip is the dedup
// contract for re-ingested files. Returns how many rows were inserted and
// how many were duplicates.
func LoadAccepted(rows []*models.CanonicalRow) (inserted, duplicates int, err error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`INSERT INTO dividends_fact
		(row_hash, account_id, broker, broker_account, symbol, cusip, isin, security_name,
		 event_type, ex_date, record_date, pay_date, quantity, gross_amount, withholding_tax,
		 fees, net_amount, currency, reinvested, drip_price, created_ts, source_file, line_no, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, 0, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		notes, jsonErr := notesJSON(row.Notes)
		if jsonErr != nil {
			return inserted, duplicates, fmt.Errorf("error serializing notes for row %s: %w", row.RowHash, jsonErr)
		}
		_, execErr := stmt.Exec(
			row.RowHash, row.AccountID, row.Broker, row.BrokerAccount,
			row.Symbol, row.Cusip, row.Isin, row.SecurityName, row.EventType,
			nullDate(row.ExDate), nullDate(row.RecordDate), nullDate(row.PayDate),
			nullFloat(row.Quantity), nullFloat(row.GrossAmount), nullFloat(row.WithholdingTax),
			nullFloat(row.Fees), nullFloat(row.NetAmount), row.Currency,
			nullBool(row.Reinvested), nullFloat(row.DripPrice),
			row.CreatedTS.Format(time.RFC3339), row.SourceFile, row.LineNo, notes,
		)
		if execErr != nil {
			if strings.Contains(strings.ToLower(execErr.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping duplicate row on load", "rowHash", row.RowHash, "line", row.LineNo)
				duplicates++
				continue
			}
			return inserted, duplicates, fmt.Errorf("error inserting row (line %d): %w", row.LineNo, execErr)
		}
		inserted++
	}

	if err := dbTx.Commit(); err != nil {
		return inserted, duplicates, fmt.Errorf("error committing load: %w", err)
	}
	return inserted, duplicates, nil
}

// RecordRejected persists the rejected stream for diagnosis alongside the
// dead-letter files.
func RecordRejected(rows []models.RejectedRow) error {
	if len(rows) == 0 {
		return nil
	}
	dbTx, err := database.DB.Begin()
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`INSERT INTO rejected_rows (source_file, line_no, reason, row_fields) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing rejected insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		fields, jsonErr := json.Marshal(r.Row)
		if jsonErr != nil {
			return fmt.Errorf("error serializing rejected row fields: %w", jsonErr)
		}
		if _, err := stmt.Exec(r.SourceFile, r.LineNo, r.Reason, string(fields)); err != nil {
			return fmt.Errorf("error inserting rejected row (line %d): %w", r.LineNo, err)
		}
	}
	return dbTx.Commit()
}

// RecordBatch writes the batch audit record.
func RecordBatch(s *models.BatchSummary) error {
	_, err := database.DB.Exec(`INSERT INTO ingest_batches
		(batch_id, source_file, profile, rows_in, accepted, rejected, loaded_rows, duplicate_rows, file_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.BatchID, s.SourceFile, s.Profile, s.RowsIn, s.Accepted, s.Rejected,
		s.LoadedRows, s.DuplicateRows, s.FileReason)
	if err != nil {
		return fmt.Errorf("error recording batch %s: %w", s.BatchID, err)
	}
	return nil
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func notesJSON(notes map[string]string) (sql.NullString, error) {
	if len(notes) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(notes)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
