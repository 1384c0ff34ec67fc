// Package content models documents and their block-structured content
// snapshots as exchanged with the remote store and the sync channel.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID is an opaque document or user identifier. The remote store emits
// numeric ids; strings are accepted too.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*id = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(trimmed), 64); err != nil {
		return fmt.Errorf("decode id: unexpected %s", trimmed)
	}
	*id = ID(trimmed)
	return nil
}

// MarshalJSON emits purely numeric ids as JSON numbers, matching what the
// remote store sends.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// Less orders ids numerically when both are numeric, lexically otherwise.
func (id ID) Less(other ID) bool {
	if id.numeric() && other.numeric() {
		a, _ := strconv.ParseInt(string(id), 10, 64)
		b, _ := strconv.ParseInt(string(other), 10, 64)
		return a < b
	}
	return id < other
}

func (id ID) numeric() bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type PathItem struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
}

// Document is a record of the remote store. Content is kept raw because the
// store has held several shapes over time; use Resolve to coerce it.
type Document struct {
	ID            ID              `json:"id"`
	Title         string          `json:"title"`
	Content       json.RawMessage `json:"content,omitempty"`
	Parent        *ID             `json:"parent"`
	IsFavorite    bool            `json:"is_favorite"`
	IsRoot        bool            `json:"is_root,omitempty"`
	Path          []PathItem      `json:"path,omitempty"`
	Owner         ID              `json:"owner,omitempty"`
	OwnerUsername string          `json:"owner_username,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ParentID returns the parent id or "" for top-level documents.
func (d Document) ParentID() ID {
	if d.Parent == nil {
		return ""
	}
	return *d.Parent
}

// Record is the full-record body of a save. The remote store replaces the
// whole record, so title and parent always travel with the content.
type Record struct {
	Title      string  `json:"title"`
	Content    Content `json:"content"`
	Parent     *ID     `json:"parent"`
	IsFavorite bool    `json:"is_favorite"`
}

// NewRecord builds a save body for doc carrying c as its content.
func NewRecord(doc Document, c Content) Record {
	return Record{
		Title:      doc.Title,
		Content:    c,
		Parent:     doc.Parent,
		IsFavorite: doc.IsFavorite,
	}
}
