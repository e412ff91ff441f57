package securemail

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// affirmativeToken is the literal label of the confirm control on
// known secure-mail pages.
const affirmativeToken = "확인"

var (
	confirmWords = []string{"확인", "조회", "제출", "submit", "confirm", "ok"}
	cancelWords  = []string{"취소", "닫기", "cancel", "close"}
)

// controlSelector matches every element that can act as a submit
// control on the barrier page.
const controlSelector = "input[type=submit], input[type=button], input[type=image], button, a"

// SubmitStrategy is one named heuristic for locating the submit
// control. Strategies run in priority order; the first hit wins. They
// operate on a parsed DOM so the heuristic is testable without a
// browser.
type SubmitStrategy struct {
	Name string
	Find func(doc *goquery.Document) (selector string, ok bool)
}

// Strategies is the prioritized submit-control heuristic.
var Strategies = []SubmitStrategy{
	{Name: "affirmative-token", Find: findAffirmative},
	{Name: "confirm-keyword", Find: findConfirmKeyword},
	{Name: "submit-typed", Find: findSubmitTyped},
	{Name: "first-non-cancel", Find: findFirstNonCancel},
}

// FindSubmitControl runs the strategies in order and returns the CSS
// selector of the chosen control with the name of the strategy that
// found it.
func FindSubmitControl(doc *goquery.Document) (selector, strategy string, ok bool) {
	for _, s := range Strategies {
		if sel, found := s.Find(doc); found {
			return sel, s.Name, true
		}
	}
	return "", "", false
}

// findAffirmative picks a control whose value or text is the literal
// affirmative token.
func findAffirmative(doc *goquery.Document) (string, bool) {
	return firstMatch(doc, func(s *goquery.Selection) bool {
		return controlLabel(s) == affirmativeToken
	})
}

// findConfirmKeyword picks a control whose id, name or label matches a
// confirmation keyword while matching no cancellation keyword.
func findConfirmKeyword(doc *goquery.Document) (string, bool) {
	return firstMatch(doc, func(s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		name, _ := s.Attr("name")
		hay := strings.ToLower(id + " " + name + " " + controlLabel(s))
		if containsAny(hay, cancelWords) {
			return false
		}
		return containsAny(hay, confirmWords)
	})
}

// findSubmitTyped picks any submit-typed control.
func findSubmitTyped(doc *goquery.Document) (string, bool) {
	return firstMatch(doc, func(s *goquery.Selection) bool {
		t, _ := s.Attr("type")
		return strings.EqualFold(t, "submit")
	})
}

// findFirstNonCancel is the last resort: the first control that is not
// a cancellation control.
func findFirstNonCancel(doc *goquery.Document) (string, bool) {
	return firstMatch(doc, func(s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		hay := strings.ToLower(id + " " + controlLabel(s))
		return !containsAny(hay, cancelWords)
	})
}

func firstMatch(doc *goquery.Document, pred func(*goquery.Selection) bool) (string, bool) {
	var selector string
	doc.Find(controlSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !pred(s) {
			return true
		}
		selector = selectorFor(s)
		return false
	})
	return selector, selector != ""
}

// controlLabel is the human-visible label of a control: the value
// attribute for inputs, the text content otherwise.
func controlLabel(s *goquery.Selection) string {
	if v, ok := s.Attr("value"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(s.Text())
}

// selectorFor builds a CSS selector for the chosen control, preferring
// stable attributes over structural position.
func selectorFor(s *goquery.Selection) string {
	tag := goquery.NodeName(s)
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}
	if name, ok := s.Attr("name"); ok && name != "" {
		return fmt.Sprintf("%s[name=%q]", tag, name)
	}
	if v, ok := s.Attr("value"); ok && v != "" {
		return fmt.Sprintf("%s[value=%q]", tag, v)
	}
	if t, ok := s.Attr("type"); ok && t != "" {
		return fmt.Sprintf("%s[type=%q]", tag, t)
	}
	return tag
}

func containsAny(hay string, words []string) bool {
	for _, w := range words {
		if strings.Contains(hay, w) {
			return true
		}
	}
	return false
}
