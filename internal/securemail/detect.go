// Package securemail resolves interactive "secure mail" barriers some
// bank notifications impose before the real transaction table is
// revealed.
package securemail

import "strings"

// barrierKeywords identify an interactive secure-mail wrapper. The
// match is intentionally loose: false positives only cost a browser
// round-trip that passes unchanged content through.
var barrierKeywords = []string{
	"보안메일",
	"보안 메일",
	"인증번호",
	"비밀번호를 입력",
	"securemail",
	"secure mail",
	"verification code",
}

// Detect reports whether raw HTML looks like a secure-mail wrapper
// rather than a plain statement.
func Detect(html string) bool {
	h := strings.ToLower(html)
	for _, kw := range barrierKeywords {
		if strings.Contains(h, kw) {
			return true
		}
	}
	return false
}
