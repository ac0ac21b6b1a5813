package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipts-lifecycle/internal/entity"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/storage"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/tracker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, *storage.Store, *tracker.Tracker) {
	t.Helper()
	s, err := storage.NewStore(filepath.Join(t.TempDir(), "receipt_log.json"), "", testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	trk := tracker.NewTracker(s, tracker.Config{}, testLogger())
	return NewService(s, trk, testLogger()), s, trk
}

func TestExportXLSX(t *testing.T) {
	svc, s, trk := newTestService(t)
	ctx := context.Background()

	// One processed entry with a payload.
	ok := entity.NewReceiptLog("lunch.jpg", "/in/lunch.jpg", 2048)
	if err := s.Add(ctx, ok); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := trk.StartProcessing(ctx, ok.ID); err != nil {
		t.Fatalf("StartProcessing: %v", err)
	}
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	amount := 18.75
	if err := trk.CompleteProcessing(ctx, ok.ID, &entity.ReceiptData{
		VendorName:           "Cafe Milano",
		TransactionDate:      &date,
		TotalAmount:          &amount,
		Currency:             "USD",
		ExtractionConfidence: 0.9,
	}); err != nil {
		t.Fatalf("CompleteProcessing: %v", err)
	}

	// One terminally errored entry.
	bad := entity.NewReceiptLog("broken.jpg", "/in/broken.jpg", 1)
	if err := s.Add(ctx, bad); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := trk.StartProcessing(ctx, bad.ID); err != nil {
		t.Fatalf("StartProcessing: %v", err)
	}
	if _, err := trk.RecordError(ctx, bad.ID, "Missing configuration setting", false); err != nil {
		t.Fatalf("RecordError: %v", err)
	}

	data, err := svc.ExportXLSX(ctx)
	if err != nil {
		t.Fatalf("ExportXLSX: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "Records" && sheets[1] != "Records" {
		t.Fatalf("sheets = %v, want Records and Error Summary", sheets)
	}

	rows, err := f.GetRows("Records")
	if err != nil {
		t.Fatalf("read Records sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Records holds %d rows, want header plus 2 records", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][2] != "Status" || rows[0][3] != "Vendor" {
		t.Errorf("header row = %v", rows[0])
	}

	byFilename := map[string][]string{}
	for _, row := range rows[1:] {
		byFilename[row[1]] = row
	}
	okRow, found := byFilename["lunch.jpg"]
	if !found {
		t.Fatal("processed record missing from Records sheet")
	}
	if okRow[2] != "processed" || okRow[3] != "Cafe Milano" || okRow[4] != "2024-06-01" || okRow[5] != "18.75" {
		t.Errorf("processed row = %v", okRow)
	}
	badRow, found := byFilename["broken.jpg"]
	if !found {
		t.Fatal("errored record missing from Records sheet")
	}
	if badRow[2] != "error" || badRow[len(badRow)-1] != "Missing configuration setting" {
		t.Errorf("errored row = %v", badRow)
	}

	summaryRows, err := f.GetRows("Error Summary")
	if err != nil {
		t.Fatalf("read Error Summary sheet: %v", err)
	}
	if summaryRows[1][0] != "configuration_error" || summaryRows[1][2] != "1" {
		t.Errorf("summary category row = %v", summaryRows[1])
	}
	foundTotal := false
	for _, row := range summaryRows {
		if len(row) >= 2 && row[0] == "Total errors" && row[1] == "1" {
			foundTotal = true
		}
	}
	if !foundTotal {
		t.Error("Error Summary should report total errors")
	}
}

func TestExportXLSXEmptyCollection(t *testing.T) {
	svc, _, _ := newTestService(t)

	data, err := svc.ExportXLSX(context.Background())
	if err != nil {
		t.Fatalf("ExportXLSX on empty collection: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Records")
	if err != nil {
		t.Fatalf("read Records sheet: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Records holds %d rows, want just the header", len(rows))
	}
}
