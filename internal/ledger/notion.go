package ledger

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"

	"github.com/dhkim/bankfeed/internal/domain"
)

// NotionService defines the slice of the Notion API the ledger store
// needs. The interface enables mocking in tests.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// NotionClient is the concrete NotionService over the official SDK.
type NotionClient struct {
	client *notionapi.Client
}

// NewNotionClient creates a NotionService with the provided API token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{client: notionapi.NewClient(notionapi.Token(token))}
}

// CreatePage creates a new page in a Notion database.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	page, err := n.client.Page.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}
	return page, nil
}

// QueryDatabase queries a Notion database.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}
	return resp, nil
}

// NotionStore implements Store on top of a Notion database acting as
// the club's transaction ledger.
type NotionStore struct {
	svc        NotionService
	databaseID string
}

// NewNotionStore creates a ledger store over the given database.
func NewNotionStore(svc NotionService, databaseID string) *NotionStore {
	return &NotionStore{svc: svc, databaseID: databaseID}
}

// QueryRange implements Store. Pagination is handled transparently.
func (s *NotionStore) QueryRange(ctx context.Context, start, end civil.Date) ([]domain.Transaction, error) {
	startDate := notionapi.Date(start.In(domain.KST))
	endDate := notionapi.Date(end.In(domain.KST))

	var txs []domain.Transaction
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
			Filter: notionapi.PropertyFilter{
				Property: propDate,
				Date: &notionapi.DateFilterCondition{
					OnOrAfter:  &startDate,
					OnOrBefore: &endDate,
				},
			},
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := s.svc.QueryDatabase(ctx, s.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("QueryRange: %w", err)
		}

		for _, page := range resp.Results {
			tx, ok := PageToTransaction(page)
			if !ok {
				continue
			}
			txs = append(txs, tx)
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return txs, nil
}

// Insert implements Store.
func (s *NotionStore) Insert(ctx context.Context, tx domain.Transaction) (string, error) {
	page, err := s.svc.CreatePage(ctx, s.databaseID, TransactionToProperties(tx))
	if err != nil {
		return "", fmt.Errorf("Insert: %w", err)
	}
	return string(page.ID), nil
}

var _ Store = (*NotionStore)(nil)
