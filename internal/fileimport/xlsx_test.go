package fileimport

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/dhkim/bankfeed/internal/domain"
)

// buildWorkbook writes the given grid into the first sheet of an
// in-memory workbook and returns its bytes.
func buildWorkbook(t *testing.T, grid [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, cells := range grid {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"동호회 회비 계좌"},
		{"거래일자", "적요", "출금금액", "입금금액", "잔액"},
		{"2024-07-01", "회비 김철수", 0, 50000, 1050000},
		{"2024-07-02", "간식비", 12000, 0, 1038000},
	})

	rows, err := ParseXLSX(data)
	if err != nil {
		t.Fatalf("ParseXLSX error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2: %v", len(rows), rows)
	}

	if rows[0][domain.FieldDescription] != "회비 김철수" {
		t.Errorf("description = %q", rows[0][domain.FieldDescription])
	}
	if rows[1][domain.FieldOut] != "12000" {
		t.Errorf("out = %q", rows[1][domain.FieldOut])
	}
}

func TestParseXLSXNoHeader(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"안내문"},
		{"값1", "값2"},
	})

	rows, err := ParseXLSX(data)
	if err != nil {
		t.Fatalf("ParseXLSX error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}

func TestParseXLSXGarbageBytes(t *testing.T) {
	if _, err := ParseXLSX([]byte("not a zip archive")); err == nil {
		t.Error("expected error for invalid workbook bytes")
	}
}
