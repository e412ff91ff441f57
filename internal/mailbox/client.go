// Package mailbox is the email source adapter: it searches the
// bank-notification mailbox and fetches raw HTML documents out of
// (possibly nested) multipart messages.
package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/dhkim/bankfeed/internal/credential"
	"github.com/dhkim/bankfeed/internal/domain"
)

const userID = "me"

// Query describes one mailbox search. Sender and subject are fixed
// per deployment; the date bounds are optional.
type Query struct {
	Sender   string
	Subject  string
	Since    time.Time
	Before   time.Time
	PageSize int64
	PageTok  string
}

// Client wraps the Gmail API for the ingestion pipeline.
type Client struct {
	svc *gmail.Service
}

// NewClient builds a mailbox client using a valid session from the
// credential manager. Credential absence surfaces as ErrAuthMissing
// and fails the email path only.
func NewClient(ctx context.Context, mgr *credential.Manager) (*Client, error) {
	tok, err := mgr.Token(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(tok)))
	if err != nil {
		return nil, fmt.Errorf("mailbox: create service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Search lists message IDs matching the query, newest first, and
// returns the next page token for continuation.
func (c *Client) Search(ctx context.Context, q Query) ([]string, string, error) {
	call := c.svc.Users.Messages.List(userID).Q(BuildQuery(q)).Context(ctx)
	if q.PageSize > 0 {
		call = call.MaxResults(q.PageSize)
	}
	if q.PageTok != "" {
		call = call.PageToken(q.PageTok)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, "", fmt.Errorf("mailbox: search: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, resp.NextPageToken, nil
}

// Fetch retrieves one message and extracts its HTML body. A message
// with no HTML-bearing part yields a nil document, not an error.
func (c *Client) Fetch(ctx context.Context, messageID string) (*domain.RawDocument, error) {
	msg, err := c.svc.Users.Messages.Get(userID, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("mailbox: fetch %s: %w", messageID, err)
	}
	if msg.Payload == nil {
		return nil, nil
	}

	part := FindHTMLPart(msg.Payload)
	if part == nil {
		return nil, nil
	}

	html, err := c.partBody(ctx, messageID, part)
	if err != nil {
		return nil, fmt.Errorf("mailbox: body of %s: %w", messageID, err)
	}
	if html == "" {
		return nil, nil
	}

	return &domain.RawDocument{
		Source:      domain.SourceMail,
		MessageID:   messageID,
		RetrievedAt: time.Now(),
		HTML:        html,
	}, nil
}

// BuildQuery renders the Gmail search expression: fixed sender/subject
// filter plus optional date bounds. Gmail's after/before operators use
// slash-separated dates and before is exclusive.
func BuildQuery(q Query) string {
	var parts []string
	if q.Sender != "" {
		parts = append(parts, fmt.Sprintf("from:(%s)", q.Sender))
	}
	if q.Subject != "" {
		parts = append(parts, fmt.Sprintf("subject:(%s)", q.Subject))
	}
	if !q.Since.IsZero() {
		parts = append(parts, "after:"+q.Since.Format("2006/01/02"))
	}
	if !q.Before.IsZero() {
		parts = append(parts, "before:"+q.Before.Format("2006/01/02"))
	}
	return strings.Join(parts, " ")
}

// FindHTMLPart walks the MIME tree depth-first and returns the first
// text/html part. When no inline HTML exists it falls back to the
// first attachment named or typed as HTML. Nil means the message
// carries no HTML at all.
func FindHTMLPart(p *gmail.MessagePart) *gmail.MessagePart {
	if part := findByMIME(p); part != nil {
		return part
	}
	return findHTMLAttachment(p)
}

func findByMIME(p *gmail.MessagePart) *gmail.MessagePart {
	if p == nil {
		return nil
	}
	if strings.EqualFold(p.MimeType, "text/html") && p.Filename == "" {
		return p
	}
	for _, child := range p.Parts {
		if part := findByMIME(child); part != nil {
			return part
		}
	}
	return nil
}

func findHTMLAttachment(p *gmail.MessagePart) *gmail.MessagePart {
	if p == nil {
		return nil
	}
	name := strings.ToLower(p.Filename)
	if strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm") ||
		(p.Filename != "" && strings.EqualFold(p.MimeType, "text/html")) {
		return p
	}
	for _, child := range p.Parts {
		if part := findHTMLAttachment(child); part != nil {
			return part
		}
	}
	return nil
}

// partBody decodes a part's body, following the attachment indirection
// when the content is not inline.
func (c *Client) partBody(ctx context.Context, messageID string, part *gmail.MessagePart) (string, error) {
	if part.Body == nil {
		return "", nil
	}
	if part.Body.Data != "" {
		return DecodeBody(part.Body.Data)
	}
	if part.Body.AttachmentId == "" {
		return "", nil
	}

	att, err := c.svc.Users.Messages.Attachments.Get(userID, messageID, part.Body.AttachmentId).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("attachment %s: %w", part.Body.AttachmentId, err)
	}
	return DecodeBody(att.Data)
}

// DecodeBody decodes the web-safe base64 body encoding the Gmail API
// uses, tolerating both padded and unpadded forms.
func DecodeBody(data string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(b), nil
}
