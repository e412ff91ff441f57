package ledger

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"

	"github.com/dhkim/bankfeed/internal/domain"
)

// Property names of the ledger database schema.
const (
	propDescription = "Description"
	propDate        = "Date"
	propIn          = "In"
	propOut         = "Out"
	propBalance     = "Balance"
	propBranch      = "Branch"
	propBank        = "Bank"
	propMemo        = "Memo"
)

// TransactionToProperties converts a canonical transaction into Notion
// page properties. The description is the page title; amounts are
// numbers; the date property carries the full timestamp so same-day
// ordering survives in the ledger view.
func TransactionToProperties(tx domain.Transaction) notionapi.Properties {
	start := notionapi.Date(tx.Timestamp)

	props := notionapi.Properties{
		propDescription: notionapi.TitleProperty{
			Title: richText(tx.Description),
		},
		propDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &start},
		},
		propIn:      notionapi.NumberProperty{Number: float64(tx.In)},
		propOut:     notionapi.NumberProperty{Number: float64(tx.Out)},
		propBalance: notionapi.NumberProperty{Number: float64(tx.Balance)},
	}

	if tx.Branch != "" {
		props[propBranch] = notionapi.RichTextProperty{RichText: richText(tx.Branch)}
	}
	if tx.Bank != "" {
		props[propBank] = notionapi.RichTextProperty{RichText: richText(tx.Bank)}
	}
	if tx.Memo != "" {
		props[propMemo] = notionapi.RichTextProperty{RichText: richText(tx.Memo)}
	}

	return props
}

// PageToTransaction converts a ledger page back into a canonical
// transaction. Pages without a date property are not transactions and
// report ok=false.
func PageToTransaction(page notionapi.Page) (domain.Transaction, bool) {
	ts, ok := pageDate(page)
	if !ok {
		return domain.Transaction{}, false
	}

	tx := domain.Transaction{
		Date:        civil.DateOf(ts),
		Timestamp:   ts,
		In:          pageNumber(page, propIn),
		Out:         pageNumber(page, propOut),
		Balance:     pageNumber(page, propBalance),
		Description: pageTitle(page, propDescription),
		Branch:      pageRichText(page, propBranch),
		Bank:        pageRichText(page, propBank),
		Memo:        pageRichText(page, propMemo),
	}
	return tx, true
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type:      notionapi.ObjectTypeText,
			Text:      &notionapi.Text{Content: s},
			PlainText: s,
		},
	}
}

func pageDate(page notionapi.Page) (time.Time, bool) {
	prop, ok := page.Properties[propDate]
	if !ok {
		return time.Time{}, false
	}

	var obj *notionapi.DateObject
	switch p := prop.(type) {
	case *notionapi.DateProperty:
		obj = p.Date
	case notionapi.DateProperty:
		obj = p.Date
	}
	if obj == nil || obj.Start == nil {
		return time.Time{}, false
	}
	return time.Time(*obj.Start).In(domain.KST), true
}

func pageNumber(page notionapi.Page, name string) int64 {
	prop, ok := page.Properties[name]
	if !ok {
		return 0
	}
	switch p := prop.(type) {
	case *notionapi.NumberProperty:
		return int64(p.Number)
	case notionapi.NumberProperty:
		return int64(p.Number)
	}
	return 0
}

func pageTitle(page notionapi.Page, name string) string {
	prop, ok := page.Properties[name]
	if !ok {
		return ""
	}
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		return plainText(p.Title)
	case notionapi.TitleProperty:
		return plainText(p.Title)
	}
	return ""
}

func pageRichText(page notionapi.Page, name string) string {
	prop, ok := page.Properties[name]
	if !ok {
		return ""
	}
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		return plainText(p.RichText)
	case notionapi.RichTextProperty:
		return plainText(p.RichText)
	}
	return ""
}

func plainText(rt []notionapi.RichText) string {
	if len(rt) == 0 {
		return ""
	}
	return rt[0].PlainText
}
