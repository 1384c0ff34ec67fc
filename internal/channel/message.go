package channel

import (
	"encoding/json"

	"notespace/client/internal/content"
)

type Type string

const (
	TypeDocumentUpdate        Type = "document_update"
	TypeCursorConnect         Type = "cursor_connect"
	TypeCursorUpdate          Type = "cursor_update"
	TypeCursorDisconnect      Type = "cursor_disconnect"
	TypeConnectionEstablished Type = "connection_established"
)

// aliases maps the names the broadcast server uses when relaying cursor
// events back to the canonical names this client sends.
var aliases = map[Type]Type{
	"cursor_position_update": TypeCursorUpdate,
	"cursor_active":          TypeCursorUpdate,
	"cursor_connected":       TypeCursorConnect,
	"cursor_disconnected":    TypeCursorDisconnect,
}

// Canonical resolves inbound aliases.
func (t Type) Canonical() Type {
	if canonical, ok := aliases[t]; ok {
		return canonical
	}
	return t
}

func (t Type) isCursor() bool {
	switch t {
	case TypeCursorConnect, TypeCursorUpdate, TypeCursorDisconnect:
		return true
	}
	return false
}

func (t Type) known() bool {
	return t == TypeDocumentUpdate || t.isCursor()
}

// Position is a cursor location. Peers send either container-relative
// coordinates or a logical block position; BlockIndex is set for the latter.
type Position struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	BlockIndex *int    `json:"blockIndex,omitempty"`
	Offset     float64 `json:"offset,omitempty"`
}

// Message is one frame on the sync channel.
type Message struct {
	Type     Type
	Content  *content.Content
	SenderID string
	CursorID string
	UserID   content.ID
	Username string
	Position *Position
}

type wireMessage struct {
	Type     Type             `json:"type"`
	Content  json.RawMessage  `json:"content,omitempty"`
	SenderID string           `json:"sender_id,omitempty"`
	CursorID string           `json:"cursor_id,omitempty"`
	UserID   content.ID       `json:"user_id,omitempty"`
	Username string           `json:"username,omitempty"`
	Position *json.RawMessage `json:"position,omitempty"`
}

var nullPosition = json.RawMessage("null")

func (m Message) MarshalJSON() ([]byte, error) {
	wire := wireMessage{
		Type:     m.Type,
		SenderID: m.SenderID,
		CursorID: m.CursorID,
		UserID:   m.UserID,
		Username: m.Username,
	}
	if m.Content != nil {
		raw, err := json.Marshal(m.Content)
		if err != nil {
			return nil, err
		}
		wire.Content = raw
	}
	switch {
	case m.Position != nil:
		raw, err := json.Marshal(m.Position)
		if err != nil {
			return nil, err
		}
		pos := json.RawMessage(raw)
		wire.Position = &pos
	case m.Type == TypeCursorUpdate:
		// a null position tells peers to hide the cursor
		wire.Position = &nullPosition
	}
	return json.Marshal(wire)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*m = Message{
		Type:     wire.Type,
		SenderID: wire.SenderID,
		CursorID: wire.CursorID,
		UserID:   wire.UserID,
		Username: wire.Username,
	}
	if len(wire.Content) > 0 {
		if c, ok := content.Parse(wire.Content); ok {
			m.Content = &c
		}
	}
	if wire.Position != nil {
		var pos *Position
		if err := json.Unmarshal(*wire.Position, &pos); err != nil {
			return err
		}
		m.Position = pos
	}
	return nil
}

// origin is the session id that produced the message.
func (m Message) origin() string {
	if m.Type == TypeDocumentUpdate {
		return m.SenderID
	}
	return m.CursorID
}
