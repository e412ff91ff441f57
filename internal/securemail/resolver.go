package securemail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog"
)

// Resolver turns secure-mail wrapper HTML into plain statement HTML.
// Implementations must tolerate failure by passing the original
// content through: an unresolved document means "no transactions in
// this message", never a batch error.
type Resolver interface {
	Resolve(ctx context.Context, html string) (string, error)
}

// resolveTimeout bounds the whole browser interaction so one stuck
// page cannot stall the scheduler.
const resolveTimeout = 60 * time.Second

// resultWait is how long the resolver waits for the statement table to
// appear after submitting the verification code.
const resultWait = 15 * time.Second

// handlerNames are bespoke client-side submit functions observed on
// secure-mail pages, tried when no clickable control is found.
var handlerNames = []string{"doAction", "goSubmit", "fnSubmit"}

// codeInputSelector targets the credential-entry field: the first
// password or text input on the page.
const codeInputSelector = "input[type=password], input[type=text]"

// ChromeResolver drives a headless browser to pass the interactive
// verification barrier.
type ChromeResolver struct {
	code string
	log  zerolog.Logger
}

// NewChromeResolver creates a resolver that injects the given fixed
// verification code.
func NewChromeResolver(code string, log zerolog.Logger) *ChromeResolver {
	return &ChromeResolver{code: code, log: log}
}

// Resolve implements Resolver. Content without a detected barrier is
// returned unchanged without starting a browser. All browser-side
// failures degrade to returning the original HTML.
func (r *ChromeResolver) Resolve(ctx context.Context, html string) (string, error) {
	if !Detect(html) {
		return html, nil
	}
	if r.code == "" {
		r.log.Warn().Msg("Secure mail detected but no verification code configured, passing through")
		return html, nil
	}

	resolved, err := r.drive(ctx, html)
	if err != nil {
		r.log.Warn().Err(err).Msg("Secure mail resolution failed, passing original content through")
		return html, nil
	}
	return resolved, nil
}

func (r *ChromeResolver) drive(ctx context.Context, html string) (string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, resolveTimeout)
	defer cancelRun()

	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(html))
	if err := chromedp.Run(runCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("securemail: load page: %w", err)
	}

	// No credential-entry form means there is nothing to resolve; grab
	// whatever the page rendered.
	hasInput := false
	if err := chromedp.Run(runCtx, chromedp.Evaluate(
		fmt.Sprintf("document.querySelector(%q) !== null", codeInputSelector), &hasInput)); err != nil {
		return "", fmt.Errorf("securemail: inspect form: %w", err)
	}
	if !hasInput {
		return r.pageHTML(runCtx)
	}

	if err := chromedp.Run(runCtx,
		chromedp.SendKeys(codeInputSelector, r.code, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("securemail: enter code: %w", err)
	}

	r.submit(runCtx, html)

	// Wait for a results table, or give up after the bounded wait and
	// return whatever is present; the caller tolerates both.
	waitCtx, cancelWait := context.WithTimeout(runCtx, resultWait)
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible("table", chromedp.ByQuery)); err != nil {
		r.log.Debug().Err(err).Msg("No table appeared after secure mail submit")
	}
	cancelWait()

	return r.pageHTML(runCtx)
}

// submit triggers the verification form using the prioritized
// strategies: click the chosen control, retry via direct DOM event
// dispatch, then fall back to bespoke handler functions and finally an
// Enter keypress.
func (r *ChromeResolver) submit(ctx context.Context, html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc = nil
	}

	if doc != nil {
		if selector, strategy, ok := FindSubmitControl(doc); ok {
			r.log.Debug().Str("strategy", strategy).Str("selector", selector).Msg("Submitting secure mail form")

			if err := chromedp.Run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err == nil {
				return
			}

			// Click can fail on overlapped or off-screen controls;
			// dispatching the event directly usually still works.
			dispatch := fmt.Sprintf(
				`(() => { const el = document.querySelector(%q); if (el) el.dispatchEvent(new MouseEvent("click", {bubbles: true})); })()`,
				selector)
			if err := chromedp.Run(ctx, chromedp.Evaluate(dispatch, nil)); err == nil {
				return
			}
		}
	}

	for _, fn := range handlerNames {
		call := fmt.Sprintf(`typeof %s === "function" ? (%s(), true) : false`, fn, fn)
		var invoked bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(call, &invoked)); err == nil && invoked {
			r.log.Debug().Str("handler", fn).Msg("Invoked page submit handler")
			return
		}
	}

	if err := chromedp.Run(ctx, chromedp.SendKeys(codeInputSelector, kb.Enter, chromedp.ByQuery)); err != nil {
		r.log.Debug().Err(err).Msg("Enter-key fallback failed")
	}
}

func (r *ChromeResolver) pageHTML(ctx context.Context) (string, error) {
	var out string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &out, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("securemail: read page: %w", err)
	}
	return out, nil
}

// PassthroughResolver is a no-op resolver for deployments that never
// receive secure mails, and for tests.
type PassthroughResolver struct{}

// Resolve returns the input unchanged.
func (PassthroughResolver) Resolve(_ context.Context, html string) (string, error) {
	return html, nil
}
