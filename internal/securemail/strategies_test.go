package securemail

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestFindSubmitControl(t *testing.T) {
	tests := []struct {
		name         string
		html         string
		wantSelector string
		wantStrategy string
	}{
		{
			name: "literal affirmative token wins",
			html: `<form>
				<input type="password" name="pw">
				<input type="button" value="취소">
				<input type="button" id="btnOk" value="확인">
			</form>`,
			wantSelector: "#btnOk",
			wantStrategy: "affirmative-token",
		},
		{
			name: "confirmation keyword in id",
			html: `<form>
				<input type="password">
				<input type="button" id="btnConfirm" value="열기">
			</form>`,
			wantSelector: "#btnConfirm",
			wantStrategy: "confirm-keyword",
		},
		{
			name: "cancel keyword excluded despite confirm match",
			html: `<form>
				<input type="password">
				<a id="closeConfirm">창닫기</a>
				<input type="submit" value="내역조회">
			</form>`,
			wantSelector: `input[value="내역조회"]`,
			wantStrategy: "confirm-keyword",
		},
		{
			name: "submit typed fallback",
			html: `<form>
				<input type="password">
				<input type="submit" value="→">
			</form>`,
			wantSelector: `input[value="→"]`,
			wantStrategy: "submit-typed",
		},
		{
			name: "first non-cancel control as last resort",
			html: `<form>
				<input type="password">
				<input type="button" value="닫기">
				<input type="button" name="go" value="▶">
			</form>`,
			wantSelector: `input[name="go"]`,
			wantStrategy: "first-non-cancel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selector, strategy, ok := FindSubmitControl(parseDoc(t, tt.html))
			if !ok {
				t.Fatal("no control found")
			}
			if selector != tt.wantSelector || strategy != tt.wantStrategy {
				t.Errorf("got (%q, %q), want (%q, %q)", selector, strategy, tt.wantSelector, tt.wantStrategy)
			}
		})
	}
}

func TestFindSubmitControlNoControls(t *testing.T) {
	doc := parseDoc(t, `<p>본문만 있는 페이지</p>`)
	if _, _, ok := FindSubmitControl(doc); ok {
		t.Error("found a control on a page without any")
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"korean secure mail banner", `<html><body>NH 보안메일 안내: 비밀번호를 입력하세요</body></html>`, true},
		{"english wrapper", `<div>Enter your verification code to continue</div>`, true},
		{"plain statement", `<table><tr><td>거래일자</td><td>잔액</td></tr></table>`, false},
		{"empty", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.html); got != tt.want {
				t.Errorf("Detect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPassthroughResolver(t *testing.T) {
	got, err := PassthroughResolver{}.Resolve(t.Context(), "<html>as-is</html>")
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	if got != "<html>as-is</html>" {
		t.Errorf("content changed: %q", got)
	}
}
