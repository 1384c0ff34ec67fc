package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"notespace/client/internal/content"
)

func documentPath(id content.ID) string {
	return "/documents/" + url.PathEscape(id.String()) + "/"
}

func (c *Client) GetDocument(ctx context.Context, id content.ID) (content.Document, error) {
	var doc content.Document
	if err := c.do(ctx, request{method: http.MethodGet, path: documentPath(id)}, &doc); err != nil {
		return content.Document{}, err
	}
	return doc, nil
}

func (c *Client) ListDocuments(ctx context.Context) ([]content.Document, error) {
	var docs []content.Document
	err := c.do(ctx, request{method: http.MethodGet, path: "/documents/"}, &docs)
	return docs, err
}

// RootDocuments lists the caller's root documents. There should be exactly
// one; racing creators can leave more.
func (c *Client) RootDocuments(ctx context.Context) ([]content.Document, error) {
	var docs []content.Document
	err := c.do(ctx, request{method: http.MethodGet, path: "/documents/?root=true"}, &docs)
	return docs, err
}

func (c *Client) Favorites(ctx context.Context) ([]content.Document, error) {
	var docs []content.Document
	err := c.do(ctx, request{method: http.MethodGet, path: "/documents/favorites/"}, &docs)
	return docs, err
}

func (c *Client) SharedWithMe(ctx context.Context) ([]content.Document, error) {
	var docs []content.Document
	err := c.do(ctx, request{method: http.MethodGet, path: "/documents/shared_with_me/"}, &docs)
	return docs, err
}

// Search matches document titles; an empty query returns nothing.
func (c *Client) Search(ctx context.Context, query string) ([]content.Document, error) {
	if query == "" {
		return nil, nil
	}
	var docs []content.Document
	err := c.do(ctx, request{method: http.MethodGet, path: "/documents/search/?q=" + url.QueryEscape(query)}, &docs)
	return docs, err
}

// NewDocument is the body of a create call.
type NewDocument struct {
	Title   string           `json:"title"`
	Content *content.Content `json:"content,omitempty"`
	Parent  *content.ID      `json:"parent"`
	IsRoot  bool             `json:"is_root,omitempty"`
}

func (c *Client) CreateDocument(ctx context.Context, in NewDocument) (content.Document, error) {
	var doc content.Document
	if err := c.do(ctx, request{method: http.MethodPost, path: "/documents/", body: in}, &doc); err != nil {
		return content.Document{}, err
	}
	if doc.ID == "" {
		return content.Document{}, fmt.Errorf("create document: response carried no id")
	}
	return doc, nil
}

// SaveDocument replaces the whole record of id.
func (c *Client) SaveDocument(ctx context.Context, id content.ID, rec content.Record) (content.Document, error) {
	var doc content.Document
	if err := c.do(ctx, request{method: http.MethodPut, path: documentPath(id), body: rec}, &doc); err != nil {
		return content.Document{}, err
	}
	return doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id content.ID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: documentPath(id)}, nil)
}

// ToggleFavorite flips the favourite flag and returns the updated document.
func (c *Client) ToggleFavorite(ctx context.Context, id content.ID) (content.Document, error) {
	var doc content.Document
	err := c.do(ctx, request{method: http.MethodPost, path: documentPath(id) + "toggle_favorite/"}, &doc)
	return doc, err
}

type ShareRequest struct {
	User            content.ID `json:"user"`
	Role            string     `json:"role"`
	IncludeChildren bool       `json:"include_children"`
}

type AccessRight struct {
	ID              content.ID `json:"id"`
	Document        content.ID `json:"document"`
	User            content.ID `json:"user"`
	UserDetails     *User      `json:"user_details,omitempty"`
	Role            string     `json:"role"`
	IncludeChildren bool       `json:"include_children"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (c *Client) Share(ctx context.Context, id content.ID, in ShareRequest) (AccessRight, error) {
	var right AccessRight
	err := c.do(ctx, request{method: http.MethodPost, path: documentPath(id) + "share/", body: in}, &right)
	return right, err
}

// AccessRights lists who the document is shared with; owner only.
func (c *Client) AccessRights(ctx context.Context, id content.ID) ([]AccessRight, error) {
	var rights []AccessRight
	err := c.do(ctx, request{method: http.MethodGet, path: documentPath(id) + "access_rights/"}, &rights)
	return rights, err
}

type HistoryEntry struct {
	ID            content.ID      `json:"id"`
	Document      content.ID      `json:"document"`
	DocumentTitle string          `json:"document_title"`
	User          content.ID      `json:"user"`
	UserDetails   *User           `json:"user_details,omitempty"`
	Changes       json.RawMessage `json:"changes,omitempty"`
	ActionType    string          `json:"action_type"`
	ActionLabel   string          `json:"action_label"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (c *Client) History(ctx context.Context, id content.ID) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := c.do(ctx, request{method: http.MethodGet, path: documentPath(id) + "history/"}, &entries)
	return entries, err
}

type Statistics struct {
	CreatedAt            time.Time `json:"created_at"`
	EditorCount          int       `json:"editor_count"`
	NestedDocumentsCount int       `json:"nested_documents_count"`
	TasksCount           int       `json:"tasks_count"`
	CompletedTasksCount  int       `json:"completed_tasks_count"`
	CompletionPercentage float64   `json:"completion_percentage"`
	MostActiveUser       string    `json:"most_active_user"`
}

func (c *Client) Statistics(ctx context.Context, id content.ID) (Statistics, error) {
	var stats Statistics
	err := c.do(ctx, request{method: http.MethodGet, path: documentPath(id) + "statistics/"}, &stats)
	return stats, err
}

// ToggleTask sets the completion of the task block with blockID.
func (c *Client) ToggleTask(ctx context.Context, id content.ID, blockID string, completed bool) error {
	body := map[string]any{"task_id": blockID, "is_completed": completed}
	return c.do(ctx, request{method: http.MethodPost, path: documentPath(id) + "toggle_task/", body: body}, nil)
}
