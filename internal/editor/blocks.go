package editor

import (
	"errors"
	"sync"

	"notespace/client/internal/content"
)

var ErrReadOnly = errors.New("document is read-only")

// BlockEditor is the surface that holds the blocks of an open document.
// Implementations report every content change, including those caused by
// Render, through the OnChange callback.
type BlockEditor interface {
	Render(c content.Content) error
	Save() (content.Content, error)
	SetReadOnly(readOnly bool)
	OnChange(fn func())
}

// MemoryEditor is a BlockEditor backed by an in-memory snapshot. It serves
// headless sessions and tests.
type MemoryEditor struct {
	mu       sync.Mutex
	current  content.Content
	readOnly bool
	onChange []func()
	renders  int
}

func NewMemoryEditor() *MemoryEditor {
	return &MemoryEditor{current: content.Content{Blocks: []content.Block{}}}
}

func (m *MemoryEditor) Render(c content.Content) error {
	m.mu.Lock()
	m.current = c.Clone()
	m.renders++
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *MemoryEditor) Save() (content.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone(), nil
}

func (m *MemoryEditor) SetReadOnly(readOnly bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = readOnly
}

func (m *MemoryEditor) ReadOnly() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readOnly
}

func (m *MemoryEditor) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Renders counts Render calls.
func (m *MemoryEditor) Renders() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renders
}

// Edit applies a local edit to the snapshot and reports the change.
func (m *MemoryEditor) Edit(fn func(c *content.Content)) error {
	m.mu.Lock()
	if m.readOnly {
		m.mu.Unlock()
		return ErrReadOnly
	}
	fn(&m.current)
	m.mu.Unlock()
	m.notify()
	return nil
}

// Append adds a block at the end of the document.
func (m *MemoryEditor) Append(b content.Block) error {
	return m.Edit(func(c *content.Content) { c.Blocks = append(c.Blocks, b) })
}

// SetText replaces the text of the block at index.
func (m *MemoryEditor) SetText(index int, text string) error {
	return m.Edit(func(c *content.Content) {
		if index < 0 || index >= len(c.Blocks) {
			return
		}
		if c.Blocks[index].Data == nil {
			c.Blocks[index].Data = map[string]any{}
		}
		c.Blocks[index].Data["text"] = text
	})
}

func (m *MemoryEditor) notify() {
	m.mu.Lock()
	handlers := append([]func(){}, m.onChange...)
	m.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}
