package ledger

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"

	"github.com/dhkim/bankfeed/internal/domain"
)

func sampleTx() domain.Transaction {
	return domain.Transaction{
		Date:        civil.Date{Year: 2024, Month: 7, Day: 1},
		Timestamp:   time.Date(2024, 7, 1, 9, 15, 22, 0, domain.KST),
		In:          50000,
		Out:         0,
		Balance:     1050000,
		Description: "회비 김철수",
		Branch:      "본점",
	}
}

func TestTransactionToProperties(t *testing.T) {
	props := TransactionToProperties(sampleTx())

	title, ok := props[propDescription].(notionapi.TitleProperty)
	if !ok {
		t.Fatalf("description property is %T, want TitleProperty", props[propDescription])
	}
	if title.Title[0].PlainText != "회비 김철수" {
		t.Errorf("title = %q", title.Title[0].PlainText)
	}

	in, ok := props[propIn].(notionapi.NumberProperty)
	if !ok || in.Number != 50000 {
		t.Errorf("in property = %+v", props[propIn])
	}

	date, ok := props[propDate].(notionapi.DateProperty)
	if !ok || date.Date == nil || date.Date.Start == nil {
		t.Fatalf("date property = %+v", props[propDate])
	}
	if !time.Time(*date.Date.Start).Equal(time.Date(2024, 7, 1, 9, 15, 22, 0, domain.KST)) {
		t.Errorf("date start = %v", time.Time(*date.Date.Start))
	}

	// Empty optional fields must not be emitted.
	if _, ok := props[propMemo]; ok {
		t.Error("memo property emitted for empty memo")
	}
}

func TestPageToTransactionRoundTrip(t *testing.T) {
	tx := sampleTx()
	props := TransactionToProperties(tx)

	page := notionapi.Page{
		ID:         "page-1",
		Properties: props,
	}

	got, ok := PageToTransaction(page)
	if !ok {
		t.Fatal("PageToTransaction reported not a transaction")
	}

	if got.Date != tx.Date {
		t.Errorf("date = %v, want %v", got.Date, tx.Date)
	}
	if got.In != tx.In || got.Out != tx.Out || got.Balance != tx.Balance {
		t.Errorf("amounts = %d/%d/%d", got.In, got.Out, got.Balance)
	}
	if got.Description != tx.Description {
		t.Errorf("description = %q", got.Description)
	}
	if got.Branch != tx.Branch {
		t.Errorf("branch = %q", got.Branch)
	}
}

func TestPageToTransactionNoDate(t *testing.T) {
	page := notionapi.Page{
		Properties: notionapi.Properties{
			propDescription: notionapi.TitleProperty{Title: richText("untitled")},
		},
	}
	if _, ok := PageToTransaction(page); ok {
		t.Error("page without date property must not map to a transaction")
	}
}
