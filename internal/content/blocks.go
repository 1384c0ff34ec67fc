package content

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

type HeaderData struct {
	Text  string `json:"text"`
	Level int    `json:"level" validate:"omitempty,min=1,max=6"`
}

type ParagraphData struct {
	Text string `json:"text"`
}

type ListData struct {
	Style string `json:"style" validate:"omitempty,oneof=ordered unordered"`
	Items []any  `json:"items"`
}

type ChecklistItem struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

type ChecklistData struct {
	Items []ChecklistItem `json:"items" validate:"dive"`
}

type ImageFile struct {
	URL string `json:"url" validate:"required"`
}

type ImageData struct {
	File           ImageFile `json:"file"`
	Caption        string    `json:"caption"`
	WithBorder     bool      `json:"withBorder"`
	WithBackground bool      `json:"withBackground"`
	Stretched      bool      `json:"stretched"`
}

type TableData struct {
	WithHeadings bool       `json:"withHeadings"`
	Content      [][]string `json:"content"`
}

// NestedDocumentData references a child document. An empty ID marks a
// placeholder inserted by the editor before the child exists.
type NestedDocumentData struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
}

type Assignee struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// TaskData is the task block payload. Deadline and Reminder are ISO-8601
// instants; empty means unset.
type TaskData struct {
	Text        string     `json:"text"`
	Checked     bool       `json:"checked"`
	Expanded    bool       `json:"expanded"`
	Description string     `json:"description,omitempty"`
	Deadline    string     `json:"deadline,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Reminder    string     `json:"reminder,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Assignees   []Assignee `json:"assignees,omitempty" validate:"dive"`
}

// Payload decodes the block's data into a typed view. Wire payloads are
// loosely typed (ids arrive as numbers or strings), so weak conversion is on.
func Payload[T any](b Block) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, fmt.Errorf("payload decoder: %w", err)
	}
	if err := decoder.Decode(b.Data); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", b.Type, err)
	}
	return out, nil
}

// ToData converts a typed payload back into the wire map.
func ToData(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// NewBlock builds a block of blockType from a typed payload.
func NewBlock(blockType string, payload any) (Block, error) {
	data, err := ToData(payload)
	if err != nil {
		return Block{}, err
	}
	return Block{Type: blockType, Data: data}, nil
}

// NestedDocument builds a reference block for a child document.
func NestedDocument(id ID, title string) Block {
	return Block{
		Type: TypeNestedDocument,
		Data: map[string]any{"id": id.String(), "title": title},
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the payload of a known block type. Unknown types are
// accepted untouched; renderers skip them.
func Validate(b Block) error {
	var (
		payload any
		err     error
	)
	switch b.Type {
	case TypeHeader:
		payload, err = Payload[HeaderData](b)
	case TypeParagraph:
		payload, err = Payload[ParagraphData](b)
	case TypeList:
		payload, err = Payload[ListData](b)
	case TypeChecklist:
		payload, err = Payload[ChecklistData](b)
	case TypeImage:
		payload, err = Payload[ImageData](b)
	case TypeTable:
		payload, err = Payload[TableData](b)
	case TypeNestedDocument:
		payload, err = Payload[NestedDocumentData](b)
	case TypeTask:
		payload, err = Payload[TaskData](b)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if err := validatorInstance().Struct(payload); err != nil {
		return fmt.Errorf("invalid %s block: %w", b.Type, err)
	}
	return nil
}

// ValidateContent validates every block and reports the first failure with
// its index.
func ValidateContent(c Content) error {
	for i, block := range c.Blocks {
		if err := Validate(block); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	return nil
}
