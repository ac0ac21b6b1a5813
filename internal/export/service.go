// Package export produces XLSX reports from the read-only tracker and store
// queries, for the reporting collaborator.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipts-lifecycle/constants"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/entity"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/errclass"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/tracker"
)

const (
	recordsSheet = "Records"
	errorsSheet  = "Error Summary"
)

// RecordSource is the read-only query surface the exporter consumes.
type RecordSource interface {
	ListAll(ctx context.Context) ([]*entity.ReceiptLog, error)
}

// Service is a small façade over the store and tracker that produces XLSX
// bytes for reports.
type Service struct {
	source  RecordSource
	tracker *tracker.Tracker
	logger  *slog.Logger
}

func NewService(source RecordSource, trk *tracker.Tracker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, tracker: trk, logger: logger}
}

// ExportXLSX returns a workbook with one sheet listing every record and one
// summarizing errors by category.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	logs, err := s.source.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	summary, err := s.tracker.ErrorSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("error summary: %w", err)
	}

	f := excelize.NewFile()
	if err := s.writeRecordsSheet(f, logs); err != nil {
		return nil, err
	}
	if err := s.writeErrorsSheet(f, summary); err != nil {
		return nil, err
	}
	// Drop the default sheet and activate Records.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	idx, err := f.GetSheetIndex(recordsSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("exported report", "records", len(logs), "duration", time.Since(start))
	return buf.Bytes(), nil
}

func (s *Service) writeRecordsSheet(f *excelize.File, logs []*entity.ReceiptLog) error {
	if _, err := f.NewSheet(recordsSheet); err != nil {
		return err
	}

	headers := []string{
		"ID",
		"Original Filename",
		"Status",
		"Vendor",
		"Transaction Date",
		"Amount",
		"Currency",
		"Attempts",
		"Created At",
		"Processed At",
		"Last Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(recordsSheet, cell, h); err != nil {
			return err
		}
	}

	row := 2
	for _, l := range logs {
		vendor, txDate, amount, currency := "", "", "", ""
		if d := l.ReceiptData; d != nil {
			vendor = d.VendorName
			currency = d.Currency
			if d.TransactionDate != nil {
				txDate = d.TransactionDate.Format("2006-01-02")
			}
			if d.TotalAmount != nil {
				amount = fmt.Sprintf("%.2f", *d.TotalAmount)
			}
		}
		processedAt := ""
		if l.ProcessedAt != nil {
			processedAt = l.ProcessedAt.UTC().Format(time.RFC3339)
		}
		lastError := ""
		if l.LastError != nil {
			lastError = *l.LastError
		}

		values := []any{
			l.ID.String(),
			l.OriginalFilename,
			string(l.CurrentStatus),
			vendor,
			txDate,
			amount,
			currency,
			l.ProcessingAttempts,
			l.CreatedAt.UTC().Format(time.RFC3339),
			processedAt,
			lastError,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			if err := f.SetCellValue(recordsSheet, cell, v); err != nil {
				return err
			}
		}
		row++
	}
	return nil
}

func (s *Service) writeErrorsSheet(f *excelize.File, summary tracker.ErrorSummary) error {
	if _, err := f.NewSheet(errorsSheet); err != nil {
		return err
	}

	headers := []string{"Category", "Priority", "Count"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(errorsSheet, cell, h); err != nil {
			return err
		}
	}

	type catRow struct {
		category constants.ErrorCategory
		priority int
		count    int
	}
	rows := make([]catRow, 0, len(summary.ByCategory))
	for cat, count := range summary.ByCategory {
		rows = append(rows, catRow{category: cat, priority: errclass.Priority(cat), count: count})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].priority < rows[j].priority })

	r := 2
	for _, row := range rows {
		values := []any{string(row.category), row.priority, row.count}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, r)
			if err := f.SetCellValue(errorsSheet, cell, v); err != nil {
				return err
			}
		}
		r++
	}

	totalsRow := r + 1
	if err := f.SetCellValue(errorsSheet, fmt.Sprintf("A%d", totalsRow), "Total errors"); err != nil {
		return err
	}
	if err := f.SetCellValue(errorsSheet, fmt.Sprintf("B%d", totalsRow), summary.TotalErrors); err != nil {
		return err
	}
	if err := f.SetCellValue(errorsSheet, fmt.Sprintf("A%d", totalsRow+1), "Total retries"); err != nil {
		return err
	}
	if err := f.SetCellValue(errorsSheet, fmt.Sprintf("B%d", totalsRow+1), summary.TotalRetries); err != nil {
		return err
	}
	return nil
}
