package normalize

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dhkim/bankfeed/internal/domain"
)

func TestParseDate(t *testing.T) {
	want := civil.Date{Year: 2024, Month: 7, Day: 1}

	tests := []struct {
		name  string
		input string
		want  civil.Date
		ok    bool
	}{
		{"iso", "2024-07-01", want, true},
		{"slash", "2024/07/01", want, true},
		{"dot year first", "2024.07.01", want, true},
		{"eight digits", "20240701", want, true},
		{"day first dotted", "01.07.2024", want, true},
		{"korean long form", "2024년 7월 1일", want, true},
		{"korean long form padded", "2024년 07월 01일", want, true},
		{"date inside datetime text", "2024-07-01 09:15:22", want, true},
		{"date inside free text", "거래일: 2024.7.1 기준", want, true},
		{"whitespace padded", "  2024-07-01  ", want, true},
		{"garbage", "내역없음", civil.Date{}, false},
		{"empty", "", civil.Date{}, false},
		{"impossible month", "2024-13-40", civil.Date{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.ok {
				if err != nil {
					t.Fatalf("ParseDate(%q) error = %v", tt.input, err)
				}
				if got != tt.want {
					t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
				}
				return
			}
			if !errors.Is(err, ErrDateUnparseable) {
				t.Errorf("ParseDate(%q) error = %v, want ErrDateUnparseable", tt.input, err)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"50000", 50000},
		{"50,000", 50000},
		{"1,050,000", 1050000},
		{"₩12,000", 12000},
		{"12,000원", 12000},
		{"KRW 3,500", 3500},
		{"-7,000", -7000},
		{"1234.6", 1235},
		{"", 0},
		{"-", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if err != nil {
				t.Fatalf("ParseAmount(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}

	if _, err := ParseAmount("오만원"); err == nil {
		t.Error("expected error for non-numeric amount")
	}
}

func TestRowCanonicalScenario(t *testing.T) {
	// CSV: 거래일자,출금금액,입금금액,잔액,적요 / 2024-07-01,0,50000,1050000,회비 김철수
	row := domain.Row{
		domain.FieldDate:        "2024-07-01",
		domain.FieldOut:         "0",
		domain.FieldIn:          "50000",
		domain.FieldBalance:     "1050000",
		domain.FieldDescription: "회비 김철수",
	}

	tx, err := Row(row)
	if err != nil {
		t.Fatalf("Row error = %v", err)
	}

	if tx.Date.String() != "2024-07-01" {
		t.Errorf("date = %s", tx.Date)
	}
	if tx.In != 50000 || tx.Out != 0 {
		t.Errorf("in/out = %d/%d, want 50000/0", tx.In, tx.Out)
	}
	if tx.Balance != 1050000 {
		t.Errorf("balance = %d", tx.Balance)
	}
	if tx.Description != "회비 김철수" {
		t.Errorf("description = %q", tx.Description)
	}
}

func TestRowSignedAmountWithType(t *testing.T) {
	tests := []struct {
		name     string
		typeText string
		amount   string
		wantIn   int64
		wantOut  int64
	}{
		{"deposit type", "입금", "50,000", 50000, 0},
		{"withdrawal type wins over positive sign", "출금", "12,000", 0, 12000},
		{"no type, positive routes to in", "", "30,000", 30000, 0},
		{"no type, negative routes to out", "", "-30,000", 0, 30000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := Row(domain.Row{
				domain.FieldDate:   "2024-07-01",
				domain.FieldType:   tt.typeText,
				domain.FieldAmount: tt.amount,
			})
			if err != nil {
				t.Fatalf("Row error = %v", err)
			}
			if tx.In != tt.wantIn || tx.Out != tt.wantOut {
				t.Errorf("in/out = %d/%d, want %d/%d", tx.In, tx.Out, tt.wantIn, tt.wantOut)
			}
		})
	}
}

func TestRowTimestamp(t *testing.T) {
	withTime, err := Row(domain.Row{
		domain.FieldDate: "2024-07-01",
		domain.FieldTime: "09:15:22",
		domain.FieldIn:   "1000",
	})
	if err != nil {
		t.Fatalf("Row error = %v", err)
	}
	want := time.Date(2024, 7, 1, 9, 15, 22, 0, domain.KST)
	if !withTime.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", withTime.Timestamp, want)
	}

	midnight, err := Row(domain.Row{
		domain.FieldDate: "2024-07-01",
		domain.FieldIn:   "1000",
	})
	if err != nil {
		t.Fatalf("Row error = %v", err)
	}
	wantMidnight := time.Date(2024, 7, 1, 0, 0, 0, 0, domain.KST)
	if !midnight.Timestamp.Equal(wantMidnight) {
		t.Errorf("timestamp = %v, want midnight KST", midnight.Timestamp)
	}
}

func TestRowUnparseableDate(t *testing.T) {
	_, err := Row(domain.Row{
		domain.FieldDate: "날짜미상",
		domain.FieldIn:   "1000",
	})
	if !errors.Is(err, ErrDateUnparseable) {
		t.Errorf("error = %v, want ErrDateUnparseable", err)
	}
}
