package content

import (
	"bytes"
	"encoding/json"
	"time"
)

// EditorVersion is stamped on snapshots that arrive without a version.
const EditorVersion = "2.27.0"

const (
	TypeHeader         = "header"
	TypeParagraph      = "paragraph"
	TypeList           = "list"
	TypeChecklist      = "checklist"
	TypeImage          = "image"
	TypeTable          = "table"
	TypeNestedDocument = "nestedDocument"
	TypeTask           = "task"
)

// Block is one unit of content. Data is the type-specific payload as it
// appears on the wire; typed views are available through Payload.
type Block struct {
	ID   string         `json:"id,omitempty"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Content is a complete snapshot of a document's block tree.
type Content struct {
	Time    int64   `json:"time"`
	Version string  `json:"version"`
	Blocks  []Block `json:"blocks"`
}

func Empty(now time.Time) Content {
	return Content{
		Time:    now.UnixMilli(),
		Version: EditorVersion,
		Blocks:  []Block{},
	}
}

func (c Content) IsEmpty() bool {
	return len(c.Blocks) == 0
}

// Clone returns a deep copy; block payloads are copied through their JSON form.
func (c Content) Clone() Content {
	raw, err := json.Marshal(c)
	if err != nil {
		return c
	}
	var out Content
	if err := json.Unmarshal(raw, &out); err != nil {
		return c
	}
	if out.Blocks == nil {
		out.Blocks = []Block{}
	}
	return out
}

// Equal reports whether a and b carry the same ordered blocks. The snapshot
// time is metadata and is ignored.
func Equal(a, b Content) bool {
	left, err := json.Marshal(normalizeBlocks(a.Blocks))
	if err != nil {
		return false
	}
	right, err := json.Marshal(normalizeBlocks(b.Blocks))
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}

func normalizeBlocks(blocks []Block) []Block {
	if blocks == nil {
		return []Block{}
	}
	out := make([]Block, len(blocks))
	for i, block := range blocks {
		if block.Data == nil {
			block.Data = map[string]any{}
		}
		out[i] = block
	}
	return out
}

// Parse decodes raw as a structured snapshot. It succeeds only for a JSON
// object whose "blocks" member is an array.
func Parse(raw json.RawMessage) (Content, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Content{}, false
	}
	var probe struct {
		Time    json.Number     `json:"time"`
		Version string          `json:"version"`
		Blocks  json.RawMessage `json:"blocks"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return Content{}, false
	}
	blocksRaw := bytes.TrimSpace(probe.Blocks)
	if len(blocksRaw) == 0 || blocksRaw[0] != '[' {
		return Content{}, false
	}
	var blocks []Block
	if err := json.Unmarshal(blocksRaw, &blocks); err != nil {
		return Content{}, false
	}
	c := Content{Version: probe.Version, Blocks: normalizeBlocks(blocks)}
	if t, err := probe.Time.Int64(); err == nil {
		c.Time = t
	} else if f, err := probe.Time.Float64(); err == nil {
		c.Time = int64(f)
	}
	return c, true
}

// Source names where Resolve found usable content.
type Source string

const (
	SourceCache  Source = "cache"
	SourceServer Source = "server"
	SourceLegacy Source = "legacy"
	SourceEmpty  Source = "empty"
)

// Resolve picks the content to load into the editor, in priority order:
// a structured cached snapshot, structured server content, server content
// stored as a string (reparsed, or wrapped in one paragraph), and finally an
// empty block list. A cached snapshot with an invalid block is skipped; the
// server copy is authoritative.
func Resolve(cached, server json.RawMessage, now time.Time) (Content, Source) {
	if c, ok := Parse(cached); ok && ValidateContent(c) == nil {
		return fill(c, now), SourceCache
	}
	if c, ok := Parse(server); ok {
		return fill(c, now), SourceServer
	}
	trimmed := bytes.TrimSpace(server)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err == nil {
			if c, ok := Parse(json.RawMessage(text)); ok {
				return fill(c, now), SourceLegacy
			}
			c := Empty(now)
			c.Blocks = []Block{Paragraph(text)}
			return c, SourceLegacy
		}
	}
	return Empty(now), SourceEmpty
}

func fill(c Content, now time.Time) Content {
	if c.Time == 0 {
		c.Time = now.UnixMilli()
	}
	if c.Version == "" {
		c.Version = EditorVersion
	}
	return c
}

// Paragraph builds a paragraph block holding text.
func Paragraph(text string) Block {
	return Block{Type: TypeParagraph, Data: map[string]any{"text": text}}
}
