package sinks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/username/divledger/src/logger"
	"github.com/username/divledger/src/models"
)

// parquetRow mirrors the fixed canonical column order and carries declared
// types: downstream schema-evolution-tolerant loaders depend on real DATE,
// DOUBLE, and TIMESTAMP columns rather than untyped text.
type parquetRow struct {
	RowHash        string   `parquet:"name=row_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	AccountID      string   `parquet:"name=account_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Broker         string   `parquet:"name=broker, type=BYTE_ARRAY, convertedtype=UTF8"`
	BrokerAccount  string   `parquet:"name=broker_account, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol         string   `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Cusip          string   `parquet:"name=cusip, type=BYTE_ARRAY, convertedtype=UTF8"`
	Isin           string   `parquet:"name=isin, type=BYTE_ARRAY, convertedtype=UTF8"`
	SecurityName   string   `parquet:"name=security_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventType      string   `parquet:"name=event_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	ExDate         *int32   `parquet:"name=ex_date, type=INT32, convertedtype=DATE, repetitiontype=OPTIONAL"`
	RecordDate     *int32   `parquet:"name=record_date, type=INT32, convertedtype=DATE, repetitiontype=OPTIONAL"`
	PayDate        int32    `parquet:"name=pay_date, type=INT32, convertedtype=DATE"`
	Quantity       *float64 `parquet:"name=quantity, type=DOUBLE, repetitiontype=OPTIONAL"`
	GrossAmount    *float64 `parquet:"name=gross_amount, type=DOUBLE, repetitiontype=OPTIONAL"`
	WithholdingTax *float64 `parquet:"name=withholding_tax, type=DOUBLE, repetitiontype=OPTIONAL"`
	Fees           *float64 `parquet:"name=fees, type=DOUBLE, repetitiontype=OPTIONAL"`
	NetAmount      *float64 `parquet:"name=net_amount, type=DOUBLE, repetitiontype=OPTIONAL"`
	Currency       string   `parquet:"name=currency, type=BYTE_ARRAY, convertedtype=UTF8"`
	Reinvested     *bool    `parquet:"name=reinvested, type=BOOLEAN, repetitiontype=OPTIONAL"`
	DripPrice      *float64 `parquet:"name=drip_price, type=DOUBLE, repetitiontype=OPTIONAL"`
	CreatedTS      int64    `parquet:"name=created_ts, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	SourceFile     string   `parquet:"name=source_file, type=BYTE_ARRAY, convertedtype=UTF8"`
	LineNo         int64    `parquet:"name=line_no, type=INT64"`
	Notes          *string  `parquet:"name=notes, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

// WriteParquet writes the accepted stream for one batch as a SNAPPY
// compressed Parquet file and returns its path.
func WriteParquet(dir, stem, batchID string, rows []*models.CanonicalRow) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.parquet", stem, batchID))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating parquet file: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return "", fmt.Errorf("building parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		pr, convErr := toParquetRow(row)
		if convErr != nil {
			pw.WriteStop()
			file.Close()
			return "", convErr
		}
		if err := pw.Write(pr); err != nil {
			pw.WriteStop()
			file.Close()
			return "", fmt.Errorf("writing parquet row (line %d): %w", row.LineNo, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return "", fmt.Errorf("flushing parquet file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("closing parquet file: %w", err)
	}

	logger.L.Info("Wrote accepted stream", "path", path, "rows", len(rows))
	return path, nil
}

func toParquetRow(row *models.CanonicalRow) (*parquetRow, error) {
	if row.PayDate == nil {
		// Accepted rows always carry a pay_date; a nil here means a row
		// skipped validation.
		return nil, fmt.Errorf("row at line %d has no pay_date", row.LineNo)
	}
	pr := &parquetRow{
		RowHash:        row.RowHash,
		AccountID:      row.AccountID,
		Broker:         row.Broker,
		BrokerAccount:  row.BrokerAccount,
		Symbol:         row.Symbol,
		Cusip:          row.Cusip,
		Isin:           row.Isin,
		SecurityName:   row.SecurityName,
		EventType:      row.EventType,
		ExDate:         dateDaysOpt(row.ExDate),
		RecordDate:     dateDaysOpt(row.RecordDate),
		PayDate:        dateDays(*row.PayDate),
		Quantity:       row.Quantity,
		GrossAmount:    row.GrossAmount,
		WithholdingTax: row.WithholdingTax,
		Fees:           row.Fees,
		NetAmount:      row.NetAmount,
		Currency:       row.Currency,
		Reinvested:     row.Reinvested,
		DripPrice:      row.DripPrice,
		CreatedTS:      row.CreatedTS.UnixMicro(),
		SourceFile:     row.SourceFile,
		LineNo:         int64(row.LineNo),
	}
	if len(row.Notes) > 0 {
		b, err := json.Marshal(row.Notes)
		if err != nil {
			return nil, fmt.Errorf("serializing notes (line %d): %w", row.LineNo, err)
		}
		s := string(b)
		pr.Notes = &s
	}
	return pr, nil
}

func dateDays(t time.Time) int32 {
	return int32(t.Unix() / 86400)
}

func dateDaysOpt(t *time.Time) *int32 {
	if t == nil {
		return nil
	}
	d := dateDays(*t)
	return &d
}
